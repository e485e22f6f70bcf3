// Package audit records account activity (sign-ins, sign-outs) without
// blocking the request that produced it.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upb/paper-archive/access"
	"github.com/upb/paper-archive/models"
	"github.com/upb/paper-archive/repositories"
	"go.uber.org/zap"
)

var (
	// ErrNotRunning is returned when events are logged outside Start/Stop
	ErrNotRunning = errors.New("audit service not running")

	// ErrBufferFull is returned when the event buffer cannot take another event
	ErrBufferFull = errors.New("audit event buffer full")
)

const insertTimeout = 5 * time.Second

// RequestMeta identifies the HTTP request an event came from
type RequestMeta struct {
	RequestID string
	IPAddress string
	UserAgent string
}

// AuditService writes audit logs through a pool of background workers
type AuditService struct {
	auditRepo   repositories.AuditRepository
	logger      *zap.Logger
	eventChan   chan *models.AuditLog
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	started     bool
	stopped     bool
	mu          sync.Mutex
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1000,
		WorkerCount: 2,
	}
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repositories.AuditRepository, logger *zap.Logger, config Config) *AuditService {
	if config.BufferSize <= 0 || config.WorkerCount <= 0 {
		config = DefaultConfig()
	}

	return &AuditService{
		auditRepo:   auditRepo,
		logger:      logger,
		eventChan:   make(chan *models.AuditLog, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop stops accepting events and waits for queued ones to be written
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.stopped = true
	close(s.eventChan)
	pending := len(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", pending))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// LogEvent queues an audit log without blocking. A full buffer drops the event.
func (s *AuditService) LogEvent(log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.stopped {
		return ErrNotRunning
	}

	select {
	case s.eventChan <- log:
		return nil
	default:
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("action", string(log.Action)),
			zap.String("request_id", log.RequestID))
		return ErrBufferFull
	}
}

func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for log := range s.eventChan {
		if err := s.processEvent(log); err != nil {
			s.logger.Error("failed to process audit event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", string(log.Action)),
				zap.String("request_id", log.RequestID))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

func (s *AuditService) processEvent(log *models.AuditLog) error {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	if err := s.auditRepo.Insert(ctx, log); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started && !s.stopped,
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
}

// LogLogin records a completed sign-in and the identity it was granted
func (s *AuditService) LogLogin(userID uuid.UUID, role access.Role, permissions []string, meta RequestMeta) error {
	log := models.NewAuditLog(models.AuditActionLogin).
		WithActor(userID).
		WithTarget(userID).
		WithRequest(meta.RequestID, meta.IPAddress, meta.UserAgent).
		WithDetails(map[string]interface{}{
			"role":        role,
			"permissions": permissions,
		})

	return s.LogEvent(log)
}

// LogLogout records a sign-out. userID is nil when the session was already gone.
func (s *AuditService) LogLogout(userID *uuid.UUID, meta RequestMeta) error {
	log := models.NewAuditLog(models.AuditActionLogout).
		WithRequest(meta.RequestID, meta.IPAddress, meta.UserAgent)
	if userID != nil {
		log.WithActor(*userID).WithTarget(*userID)
	}

	return s.LogEvent(log)
}
