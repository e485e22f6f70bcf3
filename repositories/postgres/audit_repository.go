package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/paper-archive/models"
	"github.com/upb/paper-archive/repositories"
	"go.uber.org/zap"
)

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new audit log entry
func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, actor_id, target_user_id, action, details,
			ip_address, user_agent, request_id, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	details := []byte(log.Details)
	if len(details) == 0 {
		details = []byte(`{}`)
	}

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query,
		log.ID,
		log.ActorID,
		log.TargetUserID,
		string(log.Action),
		details,
		log.IPAddress,
		log.UserAgent,
		log.RequestID,
		log.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	r.logger.Debug("audit log inserted", zap.String("id", log.ID.String()), zap.String("action", string(log.Action)))
	return nil
}

// ListByTarget retrieves the audit trail of an account, newest first
func (r *AuditRepository) ListByTarget(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, actor_id, target_user_id, action, details,
		       COALESCE(ip_address, ''), COALESCE(user_agent, ''), COALESCE(request_id, ''), timestamp
		FROM audit_logs
		WHERE target_user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	logs := []*models.AuditLog{}
	for rows.Next() {
		var (
			log     models.AuditLog
			actor   uuid.NullUUID
			target  uuid.NullUUID
			action  string
			details []byte
		)
		if err := rows.Scan(
			&log.ID,
			&actor,
			&target,
			&action,
			&details,
			&log.IPAddress,
			&log.UserAgent,
			&log.RequestID,
			&log.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		if actor.Valid {
			log.ActorID = &actor.UUID
		}
		if target.Valid {
			log.TargetUserID = &target.UUID
		}
		log.Action = models.AuditAction(action)
		log.Details = details
		logs = append(logs, &log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}

	return logs, nil
}
