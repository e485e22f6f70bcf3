package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/paper-archive/access"
	"github.com/upb/paper-archive/models"
	"go.uber.org/zap"
)

// MockAuditRepository is a mock implementation of AuditRepository
type MockAuditRepository struct {
	mock.Mock
	mu           sync.Mutex
	insertedLogs []*models.AuditLog
}

func (m *MockAuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	args := m.Called(ctx, log)

	m.mu.Lock()
	m.insertedLogs = append(m.insertedLogs, log)
	m.mu.Unlock()

	return args.Error(0)
}

func (m *MockAuditRepository) ListByTarget(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, userID, limit, offset)
	if logs := args.Get(0); logs != nil {
		return logs.([]*models.AuditLog), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditRepository) GetInsertedLogs() []*models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.AuditLog(nil), m.insertedLogs...)
}

func startService(t *testing.T, repo *MockAuditRepository, config Config) *AuditService {
	t.Helper()
	service := NewAuditService(repo, zap.NewNop(), config)
	require.NoError(t, service.Start())
	return service
}

func TestAuditService_StartStop(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	service := startService(t, mockRepo, Config{BufferSize: 10, WorkerCount: 2})

	stats := service.GetStats()
	assert.True(t, stats.Started)
	assert.Equal(t, 2, stats.WorkerCount)
	assert.Equal(t, 10, stats.BufferSize)

	assert.Error(t, service.Start(), "cannot start twice")

	require.NoError(t, service.Stop(5*time.Second))
	assert.False(t, service.GetStats().Started)
	assert.ErrorIs(t, service.Stop(time.Second), ErrNotRunning)
}

func TestAuditService_LogEventRequiresRunning(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	service := NewAuditService(mockRepo, zap.NewNop(), DefaultConfig())

	assert.ErrorIs(t, service.LogEvent(models.NewAuditLog(models.AuditActionLogin)), ErrNotRunning)

	require.NoError(t, service.Start())
	require.NoError(t, service.Stop(time.Second))

	assert.ErrorIs(t, service.LogEvent(models.NewAuditLog(models.AuditActionLogin)), ErrNotRunning)
}

func TestAuditService_InvalidConfigFallsBackToDefault(t *testing.T) {
	service := NewAuditService(new(MockAuditRepository), zap.NewNop(), Config{})

	stats := service.GetStats()
	assert.Equal(t, DefaultConfig().BufferSize, stats.BufferSize)
	assert.Equal(t, DefaultConfig().WorkerCount, stats.WorkerCount)
}

func TestAuditService_StopDrainsQueuedEvents(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := startService(t, mockRepo, Config{BufferSize: 100, WorkerCount: 3})

	for i := 0; i < 50; i++ {
		require.NoError(t, service.LogEvent(models.NewAuditLog(models.AuditActionLogin)))
	}
	require.NoError(t, service.Stop(5*time.Second))

	assert.Len(t, mockRepo.GetInsertedLogs(), 50)
}

func TestAuditService_ConcurrentLogging(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := startService(t, mockRepo, Config{BufferSize: 1000, WorkerCount: 5})

	goroutineCount := 10
	eventsPerGoroutine := 10
	var wg sync.WaitGroup

	for i := 0; i < goroutineCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				_ = service.LogEvent(models.NewAuditLog(models.AuditActionLogout))
			}
		}()
	}

	wg.Wait()
	require.NoError(t, service.Stop(5*time.Second))

	assert.Len(t, mockRepo.GetInsertedLogs(), goroutineCount*eventsPerGoroutine)
}

func TestAuditService_InsertErrorDoesNotStopWorkers(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := startService(t, mockRepo, Config{BufferSize: 10, WorkerCount: 1})

	require.NoError(t, service.LogEvent(models.NewAuditLog(models.AuditActionLogin)))
	require.NoError(t, service.LogEvent(models.NewAuditLog(models.AuditActionLogin)))
	require.NoError(t, service.Stop(5*time.Second))

	assert.Len(t, mockRepo.GetInsertedLogs(), 2)
}

func TestAuditService_BufferFull(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	release := make(chan struct{})
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		<-release
	})
	service := startService(t, mockRepo, Config{BufferSize: 2, WorkerCount: 1})

	var full int
	for i := 0; i < 10; i++ {
		if err := service.LogEvent(models.NewAuditLog(models.AuditActionLogin)); errors.Is(err, ErrBufferFull) {
			full++
		}
	}
	close(release)
	require.NoError(t, service.Stop(5*time.Second))

	// one event may be held by the worker, two by the buffer
	assert.GreaterOrEqual(t, full, 7)
}

func TestAuditService_LogLogin(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := startService(t, mockRepo, DefaultConfig())

	userID := uuid.New()
	meta := RequestMeta{RequestID: "req-1", IPAddress: "10.0.0.1", UserAgent: "firefox"}
	require.NoError(t, service.LogLogin(userID, access.RoleAdmin, []string{"manage_accounts"}, meta))
	require.NoError(t, service.Stop(5*time.Second))

	logs := mockRepo.GetInsertedLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionLogin, logs[0].Action)
	assert.Equal(t, userID, *logs[0].ActorID)
	assert.Equal(t, userID, *logs[0].TargetUserID)
	assert.Equal(t, "req-1", logs[0].RequestID)

	var details map[string]interface{}
	require.NoError(t, json.Unmarshal(logs[0].Details, &details))
	assert.Equal(t, "admin", details["role"])
	assert.Equal(t, []interface{}{"manage_accounts"}, details["permissions"])
}

func TestAuditService_LogLogout(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := startService(t, mockRepo, DefaultConfig())

	userID := uuid.New()
	require.NoError(t, service.LogLogout(&userID, RequestMeta{RequestID: "req-2"}))
	require.NoError(t, service.LogLogout(nil, RequestMeta{RequestID: "req-3"}))
	require.NoError(t, service.Stop(5*time.Second))

	logs := mockRepo.GetInsertedLogs()
	require.Len(t, logs, 2)
	byRequest := map[string]*models.AuditLog{}
	for _, l := range logs {
		assert.Equal(t, models.AuditActionLogout, l.Action)
		byRequest[l.RequestID] = l
	}
	assert.Equal(t, userID, *byRequest["req-2"].ActorID)
	assert.Nil(t, byRequest["req-3"].ActorID)
}
