package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/vacation-api/internal/models"
	"github.com/noah-isme/vacation-api/internal/policy"
	appErrors "github.com/noah-isme/vacation-api/pkg/errors"
	"github.com/noah-isme/vacation-api/pkg/export"
)

type vacationExportSource interface {
	ListForExport(ctx context.Context, actor models.Principal, filter models.VacationFilter) ([]models.VacationRequest, error)
}

type auditExportSource interface {
	ListForExport(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

// ExportService renders vacation requests and audit logs as CSV or PDF.
type ExportService struct {
	vacations vacationExportSource
	audits    auditExportSource
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(vacations vacationExportSource, audits auditExportSource, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{vacations: vacations, audits: audits, logger: logger, now: time.Now}
}

// Vacations exports the requests visible to actor.
func (s *ExportService) Vacations(ctx context.Context, actor models.Principal, filter models.VacationFilter, format export.Format) (*ExportFile, error) {
	items, err := s.vacations.ListForExport(ctx, actor, filter)
	if err != nil {
		return nil, err
	}

	data := export.Dataset{
		Title:   "Vacation Requests",
		Headers: []string{"Employee", "Email", "Start", "End", "Days", "Status", "Requested At", "Decided At", "Comment"},
	}
	for _, v := range items {
		data.AddRow(
			v.EmployeeName,
			v.EmployeeEmail,
			v.StartDate.String(),
			v.EndDate.String(),
			strconv.Itoa(v.DaysCount),
			string(v.Status),
			formatExportTime(&v.RequestedAt),
			formatExportTime(v.DecisionAt),
			deref(v.ManagerComment),
		)
	}
	return s.render("vacations", format, data)
}

// AuditLogs exports audit entries. ADMIN only.
func (s *ExportService) AuditLogs(ctx context.Context, actor models.Principal, filter models.AuditFilter, format export.Format) (*ExportFile, error) {
	if err := policy.Authorize(actor, policy.ActionAuditView, policy.Resource{}); err != nil {
		return nil, err
	}
	logs, err := s.audits.ListForExport(ctx, filter)
	if err != nil {
		return nil, err
	}

	data := export.Dataset{
		Title:   "Audit Log",
		Headers: []string{"Timestamp", "Actor", "Action", "Entity", "Entity ID", "IP Address", "Details"},
	}
	for _, l := range logs {
		data.AddRow(
			formatExportTime(&l.CreatedAt),
			deref(l.ActorEmail),
			l.Action,
			l.EntityType,
			deref(l.EntityID),
			l.IPAddress,
			string(l.Metadata),
		)
	}
	return s.render("audit-logs", format, data)
}

func (s *ExportService) render(name string, format export.Format, data export.Dataset) (*ExportFile, error) {
	payload, err := export.Render(format, data)
	if err != nil {
		s.logger.Error("export render failed", zap.String("export", name), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	filename := fmt.Sprintf("%s_%s.%s", name, s.now().UTC().Format("20060102_150405"), format)
	s.logger.Info("export generated", zap.String("file", filename), zap.Int("rows", len(data.Rows)))
	return &ExportFile{Filename: filename, ContentType: format.ContentType(), Data: payload, Rows: len(data.Rows)}, nil
}

func formatExportTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
