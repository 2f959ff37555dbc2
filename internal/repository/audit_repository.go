package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/vacation-api/internal/models"
)

const auditSelect = `SELECT a.id, a.actor_id, u.email AS actor_email, a.action, a.entity_type, a.entity_id, a.metadata, a.ip_address, a.user_agent, a.created_at
FROM audit_logs a
LEFT JOIN users u ON u.id = a.actor_id`

// AuditRepository appends and reads audit log entries. There is no update or delete.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create stores an audit log entry, joining the caller's transaction if any.
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if len(log.Metadata) == 0 {
		log.Metadata = []byte("{}")
	}
	const query = `INSERT INTO audit_logs (id, actor_id, action, entity_type, entity_id, metadata, ip_address, user_agent, created_at)
VALUES (:id, :actor_id, :action, :entity_type, :entity_id, :metadata, :ip_address, :user_agent, :created_at)`
	if _, err := conn(ctx, r.db).NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

func auditConditions(filter models.AuditFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		conditions = append(conditions, fmt.Sprintf("a.entity_type = $%d", len(args)))
	}
	if filter.EntityID != "" {
		args = append(args, filter.EntityID)
		conditions = append(conditions, fmt.Sprintf("a.entity_id = $%d", len(args)))
	}
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		conditions = append(conditions, fmt.Sprintf("a.actor_id = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		conditions = append(conditions, fmt.Sprintf("a.action = $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List returns a page of entries, newest first, and the total count.
func (r *AuditRepository) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	where, args := auditConditions(filter)
	page := filter.PageRequest.Normalize()

	db := conn(ctx, r.db)
	listQuery := fmt.Sprintf("%s%s ORDER BY a.created_at DESC LIMIT %d OFFSET %d", auditSelect, where, page.Size, page.Offset())
	var logs []models.AuditLog
	if err := db.SelectContext(ctx, &logs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}

	var total int
	if err := db.GetContext(ctx, &total, "SELECT COUNT(*) FROM audit_logs a"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}
	return logs, total, nil
}

// ListForExport returns every entry matching the filter, newest first.
func (r *AuditRepository) ListForExport(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error) {
	where, args := auditConditions(filter)
	query := fmt.Sprintf("%s%s ORDER BY a.created_at DESC LIMIT %d", auditSelect, where, exportLimit)
	var logs []models.AuditLog
	if err := conn(ctx, r.db).SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("export audit logs: %w", err)
	}
	return logs, nil
}
