package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vacation-api/internal/models"
)

type memoryAuditRepo struct {
	mu   sync.Mutex
	logs []models.AuditLog
}

func (r *memoryAuditRepo) Create(_ context.Context, log *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}

func (r *memoryAuditRepo) List(context.Context, models.AuditFilter) ([]models.AuditLog, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AuditLog(nil), r.logs...), len(r.logs), nil
}

func (r *memoryAuditRepo) ListForExport(context.Context, models.AuditFilter) ([]models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AuditLog(nil), r.logs...), nil
}

func TestAuditEntryCarriesRequestID(t *testing.T) {
	entry := AuditEntry{
		ActorID:    "user-1",
		Action:     models.AuditActionLogin,
		EntityType: models.EntityAuth,
		Metadata:   map[string]interface{}{"email": "ada@example.com"},
		Meta:       models.RequestMeta{IP: "10.0.0.1", UserAgent: "curl", RequestID: "req-42"},
	}

	log, err := entry.toLog()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", log.IPAddress)
	require.NotNil(t, log.ActorID)
	assert.Equal(t, "user-1", *log.ActorID)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(log.Metadata, &meta))
	assert.Equal(t, "req-42", meta["requestId"])
	assert.Equal(t, "ada@example.com", meta["email"])
	assert.NotContains(t, entry.Metadata, "requestId")
}

func TestAuditRecordFlushesOnStop(t *testing.T) {
	repo := &memoryAuditRepo{}
	svc := NewAuditService(repo, NewMetricsService(), nil, AuditConfig{Workers: 2, BufferSize: 8, MaxRetries: 1})
	svc.Start(context.Background())

	for i := 0; i < 5; i++ {
		svc.Record(context.Background(), AuditEntry{Action: models.AuditActionLogout, EntityType: models.EntityAuth})
	}
	svc.Stop()

	page, err := svc.List(context.Background(), models.AuditFilter{})
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalElements)
}

func TestAuditRecordWritesInlineWhenWriterStopped(t *testing.T) {
	repo := &memoryAuditRepo{}
	svc := NewAuditService(repo, nil, nil, AuditConfig{Workers: 1, BufferSize: 1})

	svc.Record(context.Background(), AuditEntry{Action: models.AuditActionLogin, EntityType: models.EntityAuth})

	logs, err := svc.ListForExport(context.Background(), models.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.NotEmpty(t, logs[0].ID)
}
