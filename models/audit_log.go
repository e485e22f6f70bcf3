package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionLogin         AuditAction = "login"
	AuditActionLogout        AuditAction = "logout"
	AuditActionUserCreated   AuditAction = "user_created"
	AuditActionAccessChanged AuditAction = "access_changed"
)

// AuditLog represents an audit trail entry for account activity
type AuditLog struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	ActorID      *uuid.UUID      `json:"actor_id,omitempty" db:"actor_id"`
	TargetUserID *uuid.UUID      `json:"target_user_id,omitempty" db:"target_user_id"`
	Action       AuditAction     `json:"action" db:"action"`
	Details      json.RawMessage `json:"details" db:"details"`
	IPAddress    string          `json:"ip_address" db:"ip_address"`
	UserAgent    string          `json:"user_agent" db:"user_agent"`
	RequestID    string          `json:"request_id" db:"request_id"`
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(action AuditAction) *AuditLog {
	return &AuditLog{
		ID:        uuid.New(),
		Action:    action,
		Details:   json.RawMessage(`{}`),
		Timestamp: time.Now().UTC(),
	}
}

// WithActor sets the user who performed the action
func (a *AuditLog) WithActor(actorID uuid.UUID) *AuditLog {
	a.ActorID = &actorID
	return a
}

// WithTarget sets the account the action applied to
func (a *AuditLog) WithTarget(userID uuid.UUID) *AuditLog {
	a.TargetUserID = &userID
	return a
}

// WithRequest sets request metadata
func (a *AuditLog) WithRequest(requestID, ipAddress, userAgent string) *AuditLog {
	a.RequestID = requestID
	a.IPAddress = ipAddress
	a.UserAgent = userAgent
	return a
}

// WithDetails sets the details map. Unencodable values leave the details empty.
func (a *AuditLog) WithDetails(details map[string]interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}
