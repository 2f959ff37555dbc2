package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vacation-api/internal/models"
	"github.com/noah-isme/vacation-api/internal/service"
	appErrors "github.com/noah-isme/vacation-api/pkg/errors"
	"github.com/noah-isme/vacation-api/pkg/export"
	"github.com/noah-isme/vacation-api/pkg/response"
)

type auditLister interface {
	List(ctx context.Context, filter models.AuditFilter) (*models.Page[models.AuditLog], error)
}

type auditExporter interface {
	AuditLogs(ctx context.Context, actor models.Principal, filter models.AuditFilter, format export.Format) (*service.ExportFile, error)
}

// AuditHandler serves the audit trail. Routes are ADMIN only.
type AuditHandler struct {
	audits   auditLister
	exporter auditExporter
}

// NewAuditHandler constructs an AuditHandler.
func NewAuditHandler(audits auditLister, exporter auditExporter) *AuditHandler {
	return &AuditHandler{audits: audits, exporter: exporter}
}

func auditFilter(c *gin.Context) models.AuditFilter {
	return models.AuditFilter{
		EntityType: strings.ToUpper(strings.TrimSpace(c.Query("entityType"))),
		EntityID:   strings.TrimSpace(c.Query("entityId")),
		ActorID:    strings.TrimSpace(c.Query("actorId")),
		Action:     strings.ToUpper(strings.TrimSpace(c.Query("action"))),
	}
}

// List godoc
// @Summary List audit entries
// @Tags Audit
// @Produce json
// @Param entityType query string false "Entity type"
// @Param entityId query string false "Entity ID"
// @Param actorId query string false "Actor user ID"
// @Param action query string false "Action code"
// @Param page query int false "Zero-based page"
// @Param size query int false "Page size"
// @Success 200 {object} models.Page[models.AuditLog]
// @Security BearerAuth
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	h.list(c, auditFilter(c))
}

// ByEntity godoc
// @Summary Audit entries for one entity type
// @Tags Audit
// @Produce json
// @Param type path string true "USER, EMPLOYEE, VACATION_REQUEST or AUTH"
// @Success 200 {object} models.Page[models.AuditLog]
// @Security BearerAuth
// @Router /audit-logs/entity/{type} [get]
func (h *AuditHandler) ByEntity(c *gin.Context) {
	filter := auditFilter(c)
	filter.EntityType = strings.ToUpper(c.Param("type"))
	h.list(c, filter)
}

func (h *AuditHandler) list(c *gin.Context, filter models.AuditFilter) {
	page, err := pageRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.PageRequest = page
	logs, err := h.audits.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, logs)
}

// Export godoc
// @Summary Export audit entries
// @Tags Audit
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /audit-logs/export [get]
func (h *AuditHandler) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.WithField("format", "must be csv or pdf"))
		return
	}
	file, err := h.exporter.AuditLogs(c.Request.Context(), principal(c), auditFilter(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
