package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/vacation-api/internal/models"
	"github.com/noah-isme/vacation-api/internal/service"
	appErrors "github.com/noah-isme/vacation-api/pkg/errors"
	"github.com/noah-isme/vacation-api/pkg/export"
	"github.com/noah-isme/vacation-api/pkg/response"
)

type vacationService interface {
	Create(ctx context.Context, actor models.Principal, req models.CreateVacationRequest, meta models.RequestMeta) (*models.VacationRequest, error)
	Get(ctx context.Context, actor models.Principal, id string) (*models.VacationRequest, error)
	List(ctx context.Context, actor models.Principal, filter models.VacationFilter) (*models.Page[models.VacationRequest], error)
	Update(ctx context.Context, actor models.Principal, id string, req models.UpdateVacationRequest, meta models.RequestMeta) (*models.VacationRequest, error)
	Approve(ctx context.Context, actor models.Principal, id string, req models.VacationDecisionRequest, meta models.RequestMeta) (*models.VacationRequest, error)
	Reject(ctx context.Context, actor models.Principal, id string, req models.VacationDecisionRequest, meta models.RequestMeta) (*models.VacationRequest, error)
	Cancel(ctx context.Context, actor models.Principal, id string, meta models.RequestMeta) (*models.VacationRequest, error)
	Calendar(ctx context.Context, actor models.Principal, query models.CalendarQuery) ([]models.VacationRequest, error)
}

type vacationExporter interface {
	Vacations(ctx context.Context, actor models.Principal, filter models.VacationFilter, format export.Format) (*service.ExportFile, error)
}

// VacationHandler exposes the request lifecycle.
type VacationHandler struct {
	service  vacationService
	exporter vacationExporter
}

// NewVacationHandler constructs a VacationHandler.
func NewVacationHandler(svc vacationService, exporter vacationExporter) *VacationHandler {
	return &VacationHandler{service: svc, exporter: exporter}
}

func vacationFilter(c *gin.Context) (models.VacationFilter, error) {
	var filter models.VacationFilter
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := models.VacationStatus(strings.ToUpper(raw))
		if !status.Valid() {
			return filter, appErrors.WithField("status", "must be one of PENDING APPROVED REJECTED CANCELLED")
		}
		filter.Status = &status
	}
	filter.EmployeeID = strings.TrimSpace(c.Query("employeeId"))
	var err error
	if filter.From, err = dateQuery(c, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = dateQuery(c, "to"); err != nil {
		return filter, err
	}
	return filter, nil
}

// List godoc
// @Summary List vacation requests
// @Description ADMIN and MANAGER see every request, COLLABORATOR only their own
// @Tags Vacations
// @Produce json
// @Param status query string false "PENDING, APPROVED, REJECTED or CANCELLED"
// @Param employeeId query string false "Employee ID"
// @Param from query string false "Window start (YYYY-MM-DD)"
// @Param to query string false "Window end (YYYY-MM-DD)"
// @Param page query int false "Zero-based page"
// @Param size query int false "Page size"
// @Success 200 {object} models.Page[models.VacationRequest]
// @Security BearerAuth
// @Router /vacations [get]
func (h *VacationHandler) List(c *gin.Context) {
	filter, err := vacationFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if filter.PageRequest, err = pageRequest(c); err != nil {
		response.Error(c, err)
		return
	}
	page, err := h.service.List(c.Request.Context(), principal(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, page)
}

// Get godoc
// @Summary Get vacation request
// @Tags Vacations
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} models.VacationRequest
// @Failure 403 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Security BearerAuth
// @Router /vacations/{id} [get]
func (h *VacationHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "vacation request")
	if !ok {
		return
	}
	vacation, err := h.service.Get(c.Request.Context(), principal(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vacation)
}

// Create godoc
// @Summary Submit vacation request
// @Tags Vacations
// @Accept json
// @Produce json
// @Param payload body models.CreateVacationRequest true "Request"
// @Success 201 {object} models.VacationRequest
// @Failure 400 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Security BearerAuth
// @Router /vacations [post]
func (h *VacationHandler) Create(c *gin.Context) {
	var req models.CreateVacationRequest
	if !bindJSON(c, &req) {
		return
	}
	vacation, err := h.service.Create(c.Request.Context(), principal(c), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, vacation)
}

// Update godoc
// @Summary Edit a PENDING request
// @Tags Vacations
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body models.UpdateVacationRequest true "Request"
// @Success 200 {object} models.VacationRequest
// @Failure 409 {object} response.ErrorBody
// @Security BearerAuth
// @Router /vacations/{id} [put]
func (h *VacationHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "vacation request")
	if !ok {
		return
	}
	var req models.UpdateVacationRequest
	if !bindJSON(c, &req) {
		return
	}
	vacation, err := h.service.Update(c.Request.Context(), principal(c), id, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vacation)
}

// decision reads the optional comment; an empty body is allowed.
func decision(c *gin.Context) (models.VacationDecisionRequest, bool) {
	var req models.VacationDecisionRequest
	if c.Request.ContentLength == 0 {
		return req, true
	}
	return req, bindJSON(c, &req)
}

// Approve godoc
// @Summary Approve request
// @Description Reserves the requested days on the start-year balance
// @Tags Vacations
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body models.VacationDecisionRequest false "Reviewer comment"
// @Success 200 {object} models.VacationRequest
// @Failure 403 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Security BearerAuth
// @Router /vacations/{id}/approve [post]
func (h *VacationHandler) Approve(c *gin.Context) {
	id, ok := pathID(c, "vacation request")
	if !ok {
		return
	}
	req, ok := decision(c)
	if !ok {
		return
	}
	vacation, err := h.service.Approve(c.Request.Context(), principal(c), id, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vacation)
}

// Reject godoc
// @Summary Reject request
// @Tags Vacations
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body models.VacationDecisionRequest false "Reviewer comment"
// @Success 200 {object} models.VacationRequest
// @Failure 403 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Security BearerAuth
// @Router /vacations/{id}/reject [post]
func (h *VacationHandler) Reject(c *gin.Context) {
	id, ok := pathID(c, "vacation request")
	if !ok {
		return
	}
	req, ok := decision(c)
	if !ok {
		return
	}
	vacation, err := h.service.Reject(c.Request.Context(), principal(c), id, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vacation)
}

// Cancel godoc
// @Summary Cancel request
// @Description Cancelling an APPROVED request returns its days to the balance
// @Tags Vacations
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} models.VacationRequest
// @Failure 409 {object} response.ErrorBody
// @Security BearerAuth
// @Router /vacations/{id}/cancel [post]
func (h *VacationHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "vacation request")
	if !ok {
		return
	}
	vacation, err := h.service.Cancel(c.Request.Context(), principal(c), id, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, vacation)
}

// Calendar godoc
// @Summary Team calendar
// @Description PENDING and APPROVED requests intersecting the window
// @Tags Vacations
// @Produce json
// @Param startDate query string true "YYYY-MM-DD"
// @Param endDate query string true "YYYY-MM-DD"
// @Success 200 {array} models.VacationRequest
// @Failure 400 {object} response.ErrorBody
// @Security BearerAuth
// @Router /vacations/calendar [get]
func (h *VacationHandler) Calendar(c *gin.Context) {
	start, err := dateQuery(c, "startDate")
	if err != nil {
		response.Error(c, err)
		return
	}
	end, err := dateQuery(c, "endDate")
	if err != nil {
		response.Error(c, err)
		return
	}
	var query models.CalendarQuery
	if start != nil {
		query.StartDate = *start
	}
	if end != nil {
		query.EndDate = *end
	}
	items, err := h.service.Calendar(c.Request.Context(), principal(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items)
}

// Export godoc
// @Summary Export vacation requests
// @Tags Vacations
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param status query string false "Status filter"
// @Param employeeId query string false "Employee ID"
// @Success 200 {file} file
// @Security BearerAuth
// @Router /vacations/export [get]
func (h *VacationHandler) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.WithField("format", "must be csv or pdf"))
		return
	}
	filter, err := vacationFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exporter.Vacations(c.Request.Context(), principal(c), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
