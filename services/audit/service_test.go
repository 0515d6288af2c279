package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/faculty-auth/models"
	"github.com/upb/faculty-auth/tenancy"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
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

func (m *MockAuditRepository) ListByPrincipal(ctx context.Context, principalID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, principalID, limit, offset)
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
	service := NewAuditService(repo, zaptest.NewLogger(t), config)
	require.NoError(t, service.Start())
	return service
}

func TestAuditService_StartStop(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	service := NewAuditService(mockRepo, zaptest.NewLogger(t), Config{BufferSize: 10, WorkerCount: 2})

	require.NoError(t, service.Start())

	stats := service.GetStats()
	assert.True(t, stats.Started)
	assert.Equal(t, 2, stats.WorkerCount)
	assert.Equal(t, 10, stats.BufferSize)

	// Cannot start again
	assert.Error(t, service.Start())

	require.NoError(t, service.Stop(5*time.Second))
	assert.False(t, service.GetStats().Started)
	assert.Error(t, service.Stop(time.Second))
}

func TestAuditService_InvalidConfigUsesDefaults(t *testing.T) {
	service := NewAuditService(new(MockAuditRepository), zap.NewNop(), Config{})

	stats := service.GetStats()
	assert.Equal(t, DefaultConfig().BufferSize, stats.BufferSize)
	assert.Equal(t, DefaultConfig().WorkerCount, stats.WorkerCount)
}

func TestAuditService_LogEventBeforeStart(t *testing.T) {
	service := NewAuditService(new(MockAuditRepository), zap.NewNop(), DefaultConfig())

	err := service.LogEvent(&AuditEvent{Log: models.NewAuditLog(models.AuditActionLogout, "refresh_token")})
	assert.Error(t, err)
}

func TestAuditService_StopDrainsPendingEvents(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := startService(t, mockRepo, Config{BufferSize: 100, WorkerCount: 3})

	eventCount := 50
	for i := 0; i < eventCount; i++ {
		require.NoError(t, service.LogEvent(&AuditEvent{Log: models.NewAuditLog(models.AuditActionLoginFailed, "principal")}))
	}

	require.NoError(t, service.Stop(5*time.Second))
	assert.Len(t, mockRepo.GetInsertedLogs(), eventCount)

	err := service.LogEvent(&AuditEvent{Log: models.NewAuditLog(models.AuditActionLogout, "refresh_token")})
	assert.Error(t, err, "stopped service refuses events")
}

func TestAuditService_LogEventBlocking(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := startService(t, mockRepo, Config{BufferSize: 1, WorkerCount: 1})

	require.NoError(t, service.LogEventBlocking(context.Background(), &AuditEvent{
		Log: models.NewAuditLog(models.AuditActionTokenRefreshed, "refresh_token"),
	}))
	require.NoError(t, service.Stop(5*time.Second))

	assert.Len(t, mockRepo.GetInsertedLogs(), 1)
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
				_ = service.LogEvent(&AuditEvent{Log: models.NewAuditLog(models.AuditActionLoginSucceeded, "principal")})
			}
		}()
	}
	wg.Wait()

	require.NoError(t, service.Stop(5*time.Second))
	assert.Len(t, mockRepo.GetInsertedLogs(), goroutineCount*eventsPerGoroutine)
}

func TestAuditService_BufferFull(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	release := make(chan struct{})
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		<-release
	})
	service := startService(t, mockRepo, Config{BufferSize: 5, WorkerCount: 1})

	successCount := 0
	for i := 0; i < 20; i++ {
		if err := service.LogEvent(&AuditEvent{Log: models.NewAuditLog(models.AuditActionLoginFailed, "principal")}); err == nil {
			successCount++
		}
	}

	// One event is held by the worker, five wait in the buffer
	assert.LessOrEqual(t, successCount, 6)
	assert.GreaterOrEqual(t, successCount, 5)

	close(release)
	require.NoError(t, service.Stop(5*time.Second))
}

func TestAuditService_SecurityEvents(t *testing.T) {
	mockRepo := new(MockAuditRepository)
	mockRepo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	service := startService(t, mockRepo, Config{BufferSize: 10, WorkerCount: 1})

	facultyID := uuid.New()
	principal := models.NewPrincipal("ana@upb.edu", "Ana", facultyID, models.RoleProfessor)
	next := "01HZZZNEXT"
	reused := &models.RefreshToken{
		ID:          "01HZZZOLD",
		PrincipalID: principal.ID,
		CreatedByIP: "10.0.0.7",
		UserAgent:   "firefox",
		ReplacedBy:  &next,
	}
	ctx := WithRequestMeta(context.Background(), RequestMeta{RequestID: "req-1", IP: "10.9.9.9", UserAgent: "curl/8"})

	service.LoginSucceeded(ctx, principal)
	service.LoginFailed(ctx, " Ana@UPB.edu ")
	service.TokenRefreshed(ctx, principal, "01HZZZOLD", next)
	service.RefreshTokenReuse(ctx, reused)
	service.Logout(ctx, principal.ID, next)
	service.TenantScopeBypassed(ctx, tenancy.Scope{PrincipalID: principal.ID, Role: models.RoleSuperadmin, NoTenant: true}, "accreditation")

	require.NoError(t, service.Stop(5*time.Second))

	byAction := map[models.AuditAction]*models.AuditLog{}
	for _, l := range mockRepo.GetInsertedLogs() {
		byAction[l.Action] = l
		assert.Equal(t, "req-1", l.RequestID)
		assert.Equal(t, "10.9.9.9", l.IPAddress)
	}
	require.Len(t, byAction, 6)

	login := byAction[models.AuditActionLoginSucceeded]
	require.NotNil(t, login.FacultyID)
	assert.Equal(t, facultyID, *login.FacultyID)

	assert.Nil(t, byAction[models.AuditActionLoginFailed].PrincipalID)
	assert.JSONEq(t, `{"email":"ana@upb.edu"}`, string(byAction[models.AuditActionLoginFailed].Details))

	reuse := byAction[models.AuditActionRefreshTokenReuse]
	assert.Equal(t, "01HZZZOLD", reuse.ResourceID)
	assert.Contains(t, string(reuse.Details), `"replaced_by":"01HZZZNEXT"`)

	bypass := byAction[models.AuditActionTenantScopeBypassed]
	assert.Nil(t, bypass.FacultyID)
	assert.Contains(t, string(bypass.Details), "accreditation")
}

func TestAuditService_SecurityEventWhenStoppedIsOnlyLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	service := NewAuditService(new(MockAuditRepository), zap.New(core), DefaultConfig())

	assert.NotPanics(t, func() {
		service.LoginFailed(context.Background(), "a@upb.edu")
	})
	assert.Equal(t, 1, logs.FilterMessage("audit event not recorded").Len())
}
