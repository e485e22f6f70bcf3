package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/upb/paper-archive/access"
	"github.com/upb/paper-archive/models"
)

var (
	// ErrNotFound is returned when no row matches the lookup
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique constraint is violated
	ErrDuplicate = errors.New("duplicate record")
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	Context() context.Context
}

// UserRepository handles account data operations
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by lower-cased email
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// List retrieves users ordered by email
	List(ctx context.Context, limit, offset int) ([]*models.User, error)

	// UpdateAccess replaces the role and ordered permission list of a user
	UpdateAccess(ctx context.Context, id uuid.UUID, role access.Role, permissions []string) error

	// UpdateGoogleSub links a Google account and refreshes the display name
	UpdateGoogleSub(ctx context.Context, id uuid.UUID, googleSub, displayName string) error
}

// AuditRepository handles audit log data operations
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// ListByTarget retrieves the audit trail of an account, newest first
	ListByTarget(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.AuditLog, error)
}

// Repositories groups all repositories
type Repositories struct {
	Users     UserRepository
	AuditLogs AuditRepository
}
