package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upb/faculty-auth/models"
	"github.com/upb/faculty-auth/repositories"
	"github.com/upb/faculty-auth/tenancy"
	"go.uber.org/zap"
)

// AuditEvent represents an event to be audited
type AuditEvent struct {
	Log *models.AuditLog
}

// AuditService writes security events through a pool of background workers
type AuditService struct {
	auditRepo   repositories.AuditRepository
	logger      *zap.Logger
	eventChan   chan *AuditEvent
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
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
		BufferSize:  256,
		WorkerCount: 2,
	}
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repositories.AuditRepository, logger *zap.Logger, config Config) *AuditService {
	if config.WorkerCount <= 0 || config.BufferSize <= 0 {
		config = DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &AuditService{
		auditRepo:   auditRepo,
		logger:      logger,
		eventChan:   make(chan *AuditEvent, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		ctx:         ctx,
		cancel:      cancel,
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

// Stop gracefully stops the audit service
// Waits for all pending events to be processed
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	s.stopped = true
	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))
	// No more events are accepted once the channel is closed
	close(s.eventChan)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// LogEvent logs an event asynchronously (non-blocking)
// Returns immediately, event is processed in background
func (s *AuditService) LogEvent(event *AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopped {
		return fmt.Errorf("audit service not started")
	}

	select {
	case s.eventChan <- event:
		return nil
	default:
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("action", string(event.Log.Action)))
		return fmt.Errorf("audit event buffer full")
	}
}

// LogEventBlocking logs an event synchronously (blocking)
// Waits until event is queued or context is cancelled
func (s *AuditService) LogEventBlocking(ctx context.Context, event *AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopped {
		return fmt.Errorf("audit service not started")
	}

	select {
	case s.eventChan <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return fmt.Errorf("audit service stopped")
	}
}

// worker processes events from the channel
func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for event := range s.eventChan {
		if err := s.processEvent(event); err != nil {
			s.logger.Error("failed to process audit event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", string(event.Log.Action)))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

// processEvent processes a single audit event
func (s *AuditService) processEvent(event *AuditEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.auditRepo.Insert(ctx, event.Log); err != nil {
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

// Security events. Enqueue failures are logged and never reach the caller.

func (s *AuditService) record(ctx context.Context, log *models.AuditLog) {
	meta := RequestMetaFrom(ctx)
	log.WithRequest(meta.RequestID, meta.IP, meta.UserAgent)
	if err := s.LogEvent(&AuditEvent{Log: log}); err != nil {
		s.logger.Warn("audit event not recorded",
			zap.String("action", string(log.Action)),
			zap.Error(err))
	}
}

// LoginSucceeded records a successful credential check
func (s *AuditService) LoginSucceeded(ctx context.Context, principal *models.Principal) {
	s.record(ctx, models.NewAuditLog(models.AuditActionLoginSucceeded, "principal").
		WithPrincipal(principal.ID, principal.FacultyID).
		WithResource(principal.ID.String()))
}

// LoginFailed records a rejected login. The attempted email is kept so
// credential stuffing against one account is visible.
func (s *AuditService) LoginFailed(ctx context.Context, email string) {
	s.record(ctx, models.NewAuditLog(models.AuditActionLoginFailed, "principal").
		WithDetails(map[string]string{"email": models.NormalizeEmail(email)}))
}

// TokenRefreshed records a rotation from one refresh token record to the next
func (s *AuditService) TokenRefreshed(ctx context.Context, principal *models.Principal, fromID, toID string) {
	s.record(ctx, models.NewAuditLog(models.AuditActionTokenRefreshed, "refresh_token").
		WithPrincipal(principal.ID, principal.FacultyID).
		WithResource(fromID).
		WithDetails(map[string]string{"replaced_by": toID}))
}

// RefreshTokenReuse records the redemption of an already rotated token
func (s *AuditService) RefreshTokenReuse(ctx context.Context, token *models.RefreshToken) {
	details := map[string]string{
		"issued_to_ip":         token.CreatedByIP,
		"issued_to_user_agent": token.UserAgent,
	}
	if token.ReplacedBy != nil {
		details["replaced_by"] = *token.ReplacedBy
	}
	s.record(ctx, models.NewAuditLog(models.AuditActionRefreshTokenReuse, "refresh_token").
		WithPrincipal(token.PrincipalID, uuid.Nil).
		WithResource(token.ID).
		WithDetails(details))
}

// Logout records a refresh token revoked on request
func (s *AuditService) Logout(ctx context.Context, principalID uuid.UUID, tokenID string) {
	s.record(ctx, models.NewAuditLog(models.AuditActionLogout, "refresh_token").
		WithPrincipal(principalID, uuid.Nil).
		WithResource(tokenID))
}

// TenantScopeBypassed implements tenancy.BypassAuditor
func (s *AuditService) TenantScopeBypassed(ctx context.Context, scope tenancy.Scope, reason string) {
	s.record(ctx, models.NewAuditLog(models.AuditActionTenantScopeBypassed, "tenant_scope").
		WithPrincipal(scope.PrincipalID, scope.TenantID).
		WithDetails(map[string]string{"reason": reason, "role": string(scope.Role)}))
}

var _ tenancy.BypassAuditor = (*AuditService)(nil)
