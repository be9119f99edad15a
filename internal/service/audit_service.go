package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telsite/fieldops-api/internal/models"
	"github.com/telsite/fieldops-api/pkg/config"
	"github.com/telsite/fieldops-api/pkg/jobs"
)

type auditStore interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

// auditRecorder is the hook workflow services use to emit audit entries.
type auditRecorder interface {
	Record(actorID *string, action, resource string, resourceID *string, details interface{}, ip string)
}

// AuditService writes the append-only audit trail. Entries are queued and
// written by background workers so a slow audit insert never delays a
// workflow transition; on queue pressure it falls back to a direct write.
type AuditService struct {
	store  auditStore
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditService constructs the audit pipeline.
func NewAuditService(store auditStore, logger *zap.Logger, cfg config.AuditConfig) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{store: store, logger: logger}
	s.queue = jobs.NewQueue("audit-trail", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		Logger:     logger,
	})
	return s
}

// Start launches the background writers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record emits one audit entry. Never fails the caller.
func (s *AuditService) Record(actorID *string, action, resource string, resourceID *string, details interface{}, ip string) {
	var payload []byte
	if details != nil {
		payload, _ = json.Marshal(details)
	}
	entry := &models.AuditLog{
		ID:         uuid.NewString(),
		ActorID:    actorID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    payload,
		IPAddress:  ip,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.queue.Enqueue(jobs.Job{ID: entry.ID, Type: action, Payload: entry}); err != nil {
		if err := s.store.Create(context.Background(), entry); err != nil {
			s.logger.Warn("failed to record audit entry", zap.String("action", action), zap.Error(err))
		}
	}
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(*models.AuditLog)
	if !ok {
		return nil
	}
	return s.store.Create(ctx, entry)
}
