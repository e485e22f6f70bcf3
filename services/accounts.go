package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/upb/paper-archive/access"
	"github.com/upb/paper-archive/models"
	"github.com/upb/paper-archive/repositories"
	"github.com/upb/paper-archive/utils"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// GoogleProfile is the verified identity returned by Google sign-in
type GoogleProfile struct {
	Subject string
	Email   string
	Name    string
}

// Actor is the signed-in account performing an administrative operation
type Actor struct {
	ID          uuid.UUID
	Role        access.Role
	Permissions access.PermissionSet
}

// CanManageAccounts reports whether the actor may change other accounts' access
func (a Actor) CanManageAccounts() bool {
	switch a.Role {
	case access.RoleSuperAdmin:
		return true
	case access.RoleAdmin:
		return a.Permissions.Contains(access.PermManageAccounts)
	default:
		return false
	}
}

// AccessChange is the role and ordered permission list to assign to an account
type AccessChange struct {
	Role        access.Role
	Permissions []string
}

// AccountService owns the accounts that back the identity store:
// provisioning on first login, listing and access assignment.
type AccountService struct {
	users       repositories.UserRepository
	audits      repositories.AuditRepository
	txMgr       repositories.TransactionManager
	superAdmins map[string]struct{}
	logger      *zap.Logger
}

// NewAccountService creates a new AccountService. Emails in superAdminEmails
// are provisioned as superadmin on their first login.
func NewAccountService(
	users repositories.UserRepository,
	audits repositories.AuditRepository,
	txMgr repositories.TransactionManager,
	superAdminEmails []string,
	logger *zap.Logger,
) *AccountService {
	superAdmins := make(map[string]struct{}, len(superAdminEmails))
	for _, email := range superAdminEmails {
		if email = normalizeEmail(email); email != "" {
			superAdmins[email] = struct{}{}
		}
	}

	return &AccountService{
		users:       users,
		audits:      audits,
		txMgr:       txMgr,
		superAdmins: superAdmins,
		logger:      logger,
	}
}

// Resolve returns the account for a verified Google profile, provisioning it on first login.
// An account already linked to a different Google subject is rejected.
func (s *AccountService) Resolve(ctx context.Context, profile GoogleProfile) (*models.User, error) {
	email := normalizeEmail(profile.Email)
	if err := utils.ValidateEmail(email); err != nil {
		return nil, ErrInvalidEmail.WithDetail("email", profile.Email)
	}
	if profile.Subject == "" {
		return nil, ErrInvalidInput.WithDetail("field", "subject")
	}

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return s.provision(ctx, email, profile)
	case err != nil:
		return nil, WrapInternal("failed to look up account", err)
	}

	if user.GoogleSub != "" && user.GoogleSub != profile.Subject {
		s.logger.Warn("google subject does not match linked account",
			zap.String("user_id", user.ID.String()))
		return nil, ErrUnauthorized
	}

	if user.GoogleSub == "" || user.DisplayName != profile.Name {
		if err := s.users.UpdateGoogleSub(ctx, user.ID, profile.Subject, profile.Name); err != nil {
			return nil, WrapInternal("failed to link google account", err)
		}
		user.GoogleSub = profile.Subject
		user.DisplayName = profile.Name
	}

	return user, nil
}

func (s *AccountService) provision(ctx context.Context, email string, profile GoogleProfile) (*models.User, error) {
	role := access.RoleStudent
	if _, ok := s.superAdmins[email]; ok {
		role = access.RoleSuperAdmin
	}
	user := models.NewUser(email, profile.Subject, profile.Name, role)

	err := WithTransaction(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) error {
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}

		entry := models.NewAuditLog(models.AuditActionUserCreated).
			WithTarget(user.ID).
			WithDetails(map[string]interface{}{
				"email": user.Email,
				"role":  user.Role,
			})
		return s.audits.Insert(ctx, entry)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrDuplicateEmail.WithDetail("email", email)
		}
		return nil, WrapInternal("failed to provision account", err)
	}

	s.logger.Info("provisioned account",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)))

	return user, nil
}

// Get returns an account by ID
func (s *AccountService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, WrapInternal("failed to get account", err)
	}
	return user, nil
}

// List returns accounts ordered by email. Limit is clamped to (0, 200].
func (s *AccountService) List(ctx context.Context, actor Actor, limit, offset int) ([]*models.User, error) {
	if !actor.CanManageAccounts() {
		return nil, ErrInsufficientPermissions
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, WrapInternal("failed to list accounts", err)
	}
	return users, nil
}

// AssignAccess replaces the role and permissions of an account.
//
// A superadmin may assign any role. An admin holding manage_accounts may only
// move students and instructors between those two roles. Permissions are only
// accepted with the admin role, must be known, and keep their given order with
// duplicates dropped. Nobody may change their own access.
func (s *AccountService) AssignAccess(ctx context.Context, actor Actor, userID uuid.UUID, change AccessChange) (*models.User, error) {
	if !actor.CanManageAccounts() {
		return nil, ErrInsufficientPermissions
	}
	if actor.ID == userID {
		return nil, ErrSelfRoleChange
	}

	role, ok := access.ParseRole(string(change.Role))
	if !ok {
		return nil, ErrInvalidRole.WithDetail("role", string(change.Role))
	}
	perms, err := normalizePermissions(role, change.Permissions)
	if err != nil {
		return nil, err
	}
	if actor.Role != access.RoleSuperAdmin && !adminAssignable(role) {
		return nil, ErrRoleNotAssignable.WithDetail("role", string(role))
	}

	return WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) (*models.User, error) {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, WrapInternal("failed to get account", err)
		}
		if actor.Role != access.RoleSuperAdmin && !adminAssignable(user.Role) {
			return nil, ErrRoleNotAssignable.WithDetail("role", string(user.Role))
		}

		if err := s.users.UpdateAccess(ctx, user.ID, role, perms); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, ErrConcurrentUpdate
			}
			return nil, WrapInternal("failed to update access", err)
		}

		entry := models.NewAuditLog(models.AuditActionAccessChanged).
			WithActor(actor.ID).
			WithTarget(user.ID).
			WithDetails(map[string]interface{}{
				"from_role":   user.Role,
				"to_role":     role,
				"permissions": perms,
			})
		if err := s.audits.Insert(ctx, entry); err != nil {
			return nil, WrapInternal("failed to record access change", err)
		}

		s.logger.Info("account access changed",
			zap.String("user_id", user.ID.String()),
			zap.String("actor_id", actor.ID.String()),
			zap.String("from_role", string(user.Role)),
			zap.String("to_role", string(role)),
			zap.Strings("permissions", perms))

		user.Role = role
		user.Permissions = perms
		return user, nil
	})
}

// AuditTrail returns the audit entries recorded against an account, newest first
func (s *AccountService) AuditTrail(ctx context.Context, actor Actor, userID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	if !actor.CanManageAccounts() {
		return nil, ErrInsufficientPermissions
	}
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	logs, err := s.audits.ListByTarget(ctx, userID, limit, offset)
	if err != nil {
		return nil, WrapInternal("failed to list audit trail", err)
	}
	return logs, nil
}

func adminAssignable(role access.Role) bool {
	return role == access.RoleStudent || role == access.RoleInstructor
}

func normalizePermissions(role access.Role, raw []string) ([]string, error) {
	if role != access.RoleAdmin {
		if len(raw) > 0 {
			return nil, ErrInvalidPermission.WithDetail("reason", "permissions require the admin role")
		}
		return []string{}, nil
	}

	perms := make([]access.Permission, 0, len(raw))
	for _, p := range raw {
		perm, ok := access.ParsePermission(p)
		if !ok {
			return nil, ErrInvalidPermission.WithDetail("permission", p)
		}
		perms = append(perms, perm)
	}
	return access.NewPermissionSet(perms...).Strings(), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
