package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/upb/paper-archive/access"
	"github.com/upb/paper-archive/models"
	"github.com/upb/paper-archive/repositories"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

const userColumns = `id, email, google_sub, display_name, role, permissions, created_at, updated_at`

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	perms, err := encodePermissions(user.Permissions)
	if err != nil {
		return err
	}

	executor := GetExecutor(ctx, r.db)
	_, err = executor.ExecContext(ctx, query,
		user.ID,
		strings.ToLower(user.Email),
		nullString(user.GoogleSub),
		user.DisplayName,
		string(user.Role),
		perms,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user %s", repositories.ErrDuplicate, user.Email)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.Debug("user created", zap.String("id", user.ID.String()), zap.String("role", string(user.Role)))
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", repositories.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user with email %s", repositories.ErrNotFound, email)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// List retrieves users ordered by email
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY email LIMIT $1 OFFSET $2`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	return users, nil
}

// UpdateAccess replaces the role and permissions of a user
func (r *UserRepository) UpdateAccess(ctx context.Context, id uuid.UUID, role access.Role, permissions []string) error {
	query := `
		UPDATE users
		SET role = $2,
		    permissions = $3,
		    updated_at = $4
		WHERE id = $1
	`

	perms, err := encodePermissions(permissions)
	if err != nil {
		return err
	}

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, id, string(role), perms, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update user access: %w", err)
	}

	if err := expectOneRow(result, id); err != nil {
		return err
	}

	r.logger.Debug("user access updated", zap.String("id", id.String()), zap.String("role", string(role)))
	return nil
}

// UpdateGoogleSub links the Google account of a user
func (r *UserRepository) UpdateGoogleSub(ctx context.Context, id uuid.UUID, googleSub, displayName string) error {
	query := `
		UPDATE users
		SET google_sub = $2,
		    display_name = $3,
		    updated_at = $4
		WHERE id = $1
	`

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, id, nullString(googleSub), displayName, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: google account already linked", repositories.ErrDuplicate)
		}
		return fmt.Errorf("failed to update google sub: %w", err)
	}

	return expectOneRow(result, id)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user      models.User
		googleSub sql.NullString
		role      string
		perms     []byte
	)

	err := row.Scan(
		&user.ID,
		&user.Email,
		&googleSub,
		&user.DisplayName,
		&role,
		&perms,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.GoogleSub = googleSub.String
	user.Role = access.Role(role)
	user.Permissions = []string{}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &user.Permissions); err != nil {
			return nil, fmt.Errorf("failed to decode permissions: %w", err)
		}
	}

	return &user, nil
}

func encodePermissions(perms []string) ([]byte, error) {
	if perms == nil {
		perms = []string{}
	}
	data, err := json.Marshal(perms)
	if err != nil {
		return nil, fmt.Errorf("failed to encode permissions: %w", err)
	}
	return data, nil
}

func expectOneRow(result sql.Result, id uuid.UUID) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: user %s", repositories.ErrNotFound, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
