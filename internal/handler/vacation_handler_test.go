package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vacation-api/internal/models"
	"github.com/noah-isme/vacation-api/internal/service"
	appErrors "github.com/noah-isme/vacation-api/pkg/errors"
	"github.com/noah-isme/vacation-api/pkg/export"
)

type vacationServiceMock struct {
	actor    models.Principal
	meta     models.RequestMeta
	create   models.CreateVacationRequest
	decision models.VacationDecisionRequest
	filter   models.VacationFilter
	query    models.CalendarQuery
	calledID string
	result   *models.VacationRequest
	err      error
}

func (m *vacationServiceMock) Create(_ context.Context, actor models.Principal, req models.CreateVacationRequest, meta models.RequestMeta) (*models.VacationRequest, error) {
	m.actor, m.create, m.meta = actor, req, meta
	return m.result, m.err
}

func (m *vacationServiceMock) Get(_ context.Context, actor models.Principal, id string) (*models.VacationRequest, error) {
	m.actor, m.calledID = actor, id
	return m.result, m.err
}

func (m *vacationServiceMock) List(_ context.Context, actor models.Principal, filter models.VacationFilter) (*models.Page[models.VacationRequest], error) {
	m.actor, m.filter = actor, filter
	if m.err != nil {
		return nil, m.err
	}
	page := models.NewPage([]models.VacationRequest{*m.result}, filter.PageRequest, 1)
	return &page, nil
}

func (m *vacationServiceMock) Update(_ context.Context, actor models.Principal, id string, _ models.UpdateVacationRequest, _ models.RequestMeta) (*models.VacationRequest, error) {
	m.actor, m.calledID = actor, id
	return m.result, m.err
}

func (m *vacationServiceMock) Approve(_ context.Context, actor models.Principal, id string, req models.VacationDecisionRequest, _ models.RequestMeta) (*models.VacationRequest, error) {
	m.actor, m.calledID, m.decision = actor, id, req
	return m.result, m.err
}

func (m *vacationServiceMock) Reject(_ context.Context, actor models.Principal, id string, req models.VacationDecisionRequest, _ models.RequestMeta) (*models.VacationRequest, error) {
	m.actor, m.calledID, m.decision = actor, id, req
	return m.result, m.err
}

func (m *vacationServiceMock) Cancel(_ context.Context, actor models.Principal, id string, _ models.RequestMeta) (*models.VacationRequest, error) {
	m.actor, m.calledID = actor, id
	return m.result, m.err
}

func (m *vacationServiceMock) Calendar(_ context.Context, _ models.Principal, query models.CalendarQuery) ([]models.VacationRequest, error) {
	m.query = query
	if m.err != nil {
		return nil, m.err
	}
	return []models.VacationRequest{*m.result}, nil
}

type exporterMock struct {
	format export.Format
	filter models.VacationFilter
}

func (e *exporterMock) Vacations(_ context.Context, _ models.Principal, filter models.VacationFilter, format export.Format) (*service.ExportFile, error) {
	e.format, e.filter = format, filter
	return &service.ExportFile{Filename: "vacations_x." + string(format), ContentType: format.ContentType(), Data: []byte("a,b\n")}, nil
}

func pendingVacation() *models.VacationRequest {
	return &models.VacationRequest{
		ID:         testVacationID,
		EmployeeID: testEmployeeID,
		StartDate:  models.NewDate(2026, 3, 10),
		EndDate:    models.NewDate(2026, 3, 14),
		DaysCount:  5,
		Status:     models.VacationPending,
	}
}

func TestVacationHandlerCreate(t *testing.T) {
	svc := &vacationServiceMock{result: pendingVacation()}
	h := NewVacationHandler(svc, &exporterMock{})

	c, w := newGinContext(http.MethodPost, "/api/vacations", []byte(`{"startDate":"2026-03-10","endDate":"2026-03-14","reason":"trip"}`))
	withClaims(c, collabClaims)
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "2026-03-10", svc.create.StartDate.String())
	assert.Equal(t, collabClaims.UserID, svc.actor.UserID)
	assert.Equal(t, testEmployeeID, svc.actor.EmployeeID)
	assert.Equal(t, "handler-test", svc.meta.UserAgent)
	assert.Contains(t, w.Body.String(), `"daysCount":5`)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestVacationHandlerCreateMalformedDate(t *testing.T) {
	svc := &vacationServiceMock{result: pendingVacation()}
	h := NewVacationHandler(svc, &exporterMock{})

	c, w := newGinContext(http.MethodPost, "/api/vacations", []byte(`{"startDate":"10/03/2026"}`))
	withClaims(c, collabClaims)
	h.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, errorBody(t, w).Code)
	assert.Empty(t, svc.actor.UserID)
}

func TestVacationHandlerApproveMapsConflict(t *testing.T) {
	svc := &vacationServiceMock{err: appErrors.Clone(appErrors.ErrInsufficientBalance, "only 2 days remaining")}
	h := NewVacationHandler(svc, &exporterMock{})

	c, w := newGinContext(http.MethodPost, "/api/vacations/"+testVacationID+"/approve", []byte(`{"comment":"ok"}`))
	withClaims(c, managerClaims)
	withID(c, testVacationID)
	h.Approve(c)

	require.Equal(t, http.StatusConflict, w.Code)
	body := errorBody(t, w)
	assert.Equal(t, "INSUFFICIENT_BALANCE", body.Code)
	assert.Equal(t, http.StatusConflict, body.Status)
	assert.Equal(t, "Conflict", body.Error)
	require.NotNil(t, svc.decision.Comment)
	assert.Equal(t, "ok", *svc.decision.Comment)
}

func TestVacationHandlerRejectWithoutBody(t *testing.T) {
	result := pendingVacation()
	result.Status = models.VacationRejected
	svc := &vacationServiceMock{result: result}
	h := NewVacationHandler(svc, &exporterMock{})

	c, w := newGinContext(http.MethodPost, "/api/vacations/"+testVacationID+"/reject", nil)
	withClaims(c, managerClaims)
	withID(c, testVacationID)
	h.Reject(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, svc.decision.Comment)
	assert.Contains(t, w.Body.String(), `"status":"REJECTED"`)
}

func TestVacationHandlerUnknownIDIsNotFound(t *testing.T) {
	svc := &vacationServiceMock{result: pendingVacation()}
	h := NewVacationHandler(svc, &exporterMock{})

	c, w := newGinContext(http.MethodPost, "/api/vacations/nope/cancel", nil)
	withClaims(c, collabClaims)
	withID(c, "nope")
	h.Cancel(c)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, svc.calledID)
}

func TestVacationHandlerListFilters(t *testing.T) {
	svc := &vacationServiceMock{result: pendingVacation()}
	h := NewVacationHandler(svc, &exporterMock{})

	c, w := newGinContext(http.MethodGet, "/api/vacations?status=pending&page=1&size=5&from=2026-03-01", nil)
	withClaims(c, managerClaims)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.filter.Status)
	assert.Equal(t, models.VacationPending, *svc.filter.Status)
	assert.Equal(t, models.PageRequest{Page: 1, Size: 5}, svc.filter.PageRequest)
	require.NotNil(t, svc.filter.From)
	assert.Equal(t, "2026-03-01", svc.filter.From.String())
	assert.Contains(t, w.Body.String(), `"totalElements":1`)

	for _, q := range []string{"status=LOST", "size=500", "page=-1", "from=yesterday"} {
		c, w = newGinContext(http.MethodGet, "/api/vacations?"+q, nil)
		withClaims(c, managerClaims)
		h.List(c)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestVacationHandlerCalendar(t *testing.T) {
	svc := &vacationServiceMock{result: pendingVacation()}
	h := NewVacationHandler(svc, &exporterMock{})

	c, w := newGinContext(http.MethodGet, "/api/vacations/calendar?startDate=2026-03-01&endDate=2026-03-31", nil)
	withClaims(c, collabClaims)
	h.Calendar(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2026-03-01", svc.query.StartDate.String())
	assert.Equal(t, "2026-03-31", svc.query.EndDate.String())

	c, w = newGinContext(http.MethodGet, "/api/vacations/calendar?startDate=March", nil)
	withClaims(c, collabClaims)
	h.Calendar(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorBody(t, w).FieldErrors, "startDate")
}

func TestVacationHandlerExport(t *testing.T) {
	exp := &exporterMock{}
	h := NewVacationHandler(&vacationServiceMock{}, exp)

	c, w := newGinContext(http.MethodGet, "/api/vacations/export?format=PDF&status=APPROVED", nil)
	withClaims(c, adminClaims)
	h.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.FormatPDF, exp.format)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="vacations_x.pdf"`, w.Header().Get("Content-Disposition"))

	c, w = newGinContext(http.MethodGet, "/api/vacations/export?format=xlsx", nil)
	withClaims(c, adminClaims)
	h.Export(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
