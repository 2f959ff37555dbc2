package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/vacation-api/internal/models"
	appErrors "github.com/noah-isme/vacation-api/pkg/errors"
	"github.com/noah-isme/vacation-api/pkg/jobs"
)

type auditRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
	ListForExport(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error)
}

// auditRecorder is what other services need from the audit trail.
type auditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
	RecordTx(ctx context.Context, entry AuditEntry) error
}

// AuditEntry describes one auditable event before it is persisted.
type AuditEntry struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Metadata   map[string]interface{}
	Meta       models.RequestMeta
}

func (e AuditEntry) toLog() (*models.AuditLog, error) {
	log := &models.AuditLog{
		Action:     e.Action,
		EntityType: e.EntityType,
		IPAddress:  e.Meta.IP,
		UserAgent:  e.Meta.UserAgent,
	}
	if e.ActorID != "" {
		actor := e.ActorID
		log.ActorID = &actor
	}
	if e.EntityID != "" {
		id := e.EntityID
		log.EntityID = &id
	}
	metadata := e.Metadata
	if e.Meta.RequestID != "" {
		metadata = make(map[string]interface{}, len(e.Metadata)+1)
		for k, v := range e.Metadata {
			metadata[k] = v
		}
		metadata["requestId"] = e.Meta.RequestID
	}
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, err
		}
		log.Metadata = raw
	}
	return log, nil
}

// AuditConfig sizes the background writer.
type AuditConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
}

// AuditService appends audit entries and serves the audit log.
type AuditService struct {
	repo    auditRepository
	queue   *jobs.Queue[*models.AuditLog]
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAuditService constructs the service and its background writer. Call
// Start before serving traffic and Stop on shutdown.
func NewAuditService(repo auditRepository, metrics *MetricsService, logger *zap.Logger, cfg AuditConfig) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{repo: repo, metrics: metrics, logger: logger}
	s.queue = jobs.NewQueue("audit", s.handleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the background writer.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop flushes pending entries and stops the writer.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

func (s *AuditService) handleJob(ctx context.Context, job jobs.Job[*models.AuditLog]) error {
	err := s.repo.Create(ctx, job.Payload)
	s.metrics.RecordAuditWrite("async", err)
	return err
}

// Record persists entry in the background. Failures are logged, never returned.
// When the writer is not running or is saturated the entry is written inline.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) {
	log, err := entry.toLog()
	if err != nil {
		s.logger.Warn("failed to encode audit metadata", zap.String("action", entry.Action), zap.Error(err))
		return
	}
	log.ID = uuid.NewString()

	err = s.queue.Enqueue(log.ID, log)
	if err == nil {
		return
	}
	s.logger.Debug("audit queue unavailable, writing inline", zap.Error(err))

	err = s.repo.Create(context.WithoutCancel(ctx), log)
	s.metrics.RecordAuditWrite("inline", err)
	if err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", entry.Action), zap.Error(err))
	}
}

// RecordTx writes entry synchronously using ctx, so it joins a surrounding
// transaction and rolls back with it.
func (s *AuditService) RecordTx(ctx context.Context, entry AuditEntry) error {
	log, err := entry.toLog()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode audit metadata")
	}
	err = s.repo.Create(ctx, log)
	s.metrics.RecordAuditWrite("tx", err)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record audit log")
	}
	return nil
}

// List returns a page of audit entries.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) (*models.Page[models.AuditLog], error) {
	filter.PageRequest = filter.PageRequest.Normalize()
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	page := models.NewPage(logs, filter.PageRequest, total)
	return &page, nil
}

// ListForExport returns every entry matching filter.
func (s *AuditService) ListForExport(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error) {
	logs, err := s.repo.ListForExport(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit logs")
	}
	return logs, nil
}
