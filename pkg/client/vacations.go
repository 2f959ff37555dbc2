package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/noah-isme/vacation-api/internal/models"
	"github.com/noah-isme/vacation-api/internal/policy"
)

// VacationQuery filters ListVacations.
type VacationQuery struct {
	Status     models.VacationStatus
	EmployeeID string
	From       *models.Date
	To         *models.Date
	Page       int
	Size       int
}

// VacationResult is the server state after a mutation: the request as stored
// and the balance of its year. Balance is nil when no ledger row exists.
type VacationResult struct {
	Request *models.VacationRequest
	Balance *models.VacationBalance
}

// ListVacations returns one page of the requests visible to the caller.
func (c *Client) ListVacations(ctx context.Context, q VacationQuery) (*models.Page[models.VacationRequest], error) {
	query := pageQuery(q.Page, q.Size)
	if q.Status != "" {
		query.Set("status", string(q.Status))
	}
	if q.EmployeeID != "" {
		query.Set("employeeId", q.EmployeeID)
	}
	if q.From != nil {
		query.Set("from", q.From.String())
	}
	if q.To != nil {
		query.Set("to", q.To.String())
	}
	var page models.Page[models.VacationRequest]
	if err := c.do(ctx, call{method: http.MethodGet, path: "/vacations", query: query}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetVacation fetches one request.
func (c *Client) GetVacation(ctx context.Context, id string) (*models.VacationRequest, error) {
	var v models.VacationRequest
	if err := c.do(ctx, call{method: http.MethodGet, path: "/vacations/" + url.PathEscape(id)}, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Calendar returns pending and approved requests overlapping [start, end].
func (c *Client) Calendar(ctx context.Context, start, end models.Date) ([]models.VacationRequest, error) {
	if _, err := checkRange(start, end); err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("startDate", start.String())
	query.Set("endDate", end.String())
	var items []models.VacationRequest
	if err := c.do(ctx, call{method: http.MethodGet, path: "/vacations/calendar", query: query}, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Balance fetches the ledger of employeeID for year. Year zero means the
// server's current year.
func (c *Client) Balance(ctx context.Context, employeeID string, year int) (*models.VacationBalance, error) {
	query := url.Values{}
	if year != 0 {
		query.Set("year", fmt.Sprint(year))
	}
	var b models.VacationBalance
	if err := c.do(ctx, call{method: http.MethodGet, path: "/balances/employee/" + url.PathEscape(employeeID), query: query}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Balances lists the ledgers visible to the caller for year.
func (c *Client) Balances(ctx context.Context, year, page, size int) (*models.Page[models.VacationBalance], error) {
	query := pageQuery(page, size)
	if year != 0 {
		query.Set("year", fmt.Sprint(year))
	}
	var out models.Page[models.VacationBalance]
	if err := c.do(ctx, call{method: http.MethodGet, path: "/balances", query: query}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateVacation submits a request. The date range and the known balance are
// checked before anything is sent; a missing ledger row does not block.
func (c *Client) CreateVacation(ctx context.Context, req models.CreateVacationRequest) (*VacationResult, error) {
	p := c.session.Principal()
	if !p.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	if req.EmployeeID == "" {
		req.EmployeeID = p.EmployeeID
	}
	if req.EmployeeID == "" {
		return nil, fieldError("employeeId", "employee is required")
	}
	if err := c.authorize(policy.ActionVacationCreate, policy.Resource{OwnerEmployeeID: req.EmployeeID}); err != nil {
		return nil, err
	}
	days, err := checkRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	release, err := c.guard(policy.ActionVacationCreate, req.EmployeeID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := c.checkBalance(ctx, req.EmployeeID, req.StartDate.Year(), days); err != nil {
		return nil, err
	}

	var created models.VacationRequest
	if err := c.do(ctx, call{method: http.MethodPost, path: "/vacations", body: req}, &created); err != nil {
		return nil, err
	}
	return c.reload(ctx, created.ID)
}

// UpdateVacation rewrites the dates or reason of a PENDING request.
func (c *Client) UpdateVacation(ctx context.Context, id string, req models.UpdateVacationRequest) (*VacationResult, error) {
	days, err := checkRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	release, err := c.guard(policy.ActionVacationUpdate, id)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := c.GetVacation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.authorize(policy.ActionVacationUpdate, resourceOf(current)); err != nil {
		return nil, err
	}
	if current.Status != models.VacationPending {
		return &VacationResult{Request: current}, &ConflictError{
			Code:    "INVALID_TRANSITION",
			Message: fmt.Sprintf("a %s request cannot be edited", current.Status),
		}
	}
	if err := c.checkBalance(ctx, current.EmployeeID, req.StartDate.Year(), days); err != nil {
		return nil, err
	}

	err = c.do(ctx, call{method: http.MethodPut, path: "/vacations/" + url.PathEscape(id), body: req}, nil)
	return c.afterMutation(ctx, id, err)
}

// ApproveVacation approves a PENDING request. Roles without the grant are
// refused before any call is made.
func (c *Client) ApproveVacation(ctx context.Context, id string, comment *string) (*VacationResult, error) {
	return c.decide(ctx, policy.ActionVacationApprove, "approve", id, comment)
}

// RejectVacation rejects a PENDING request.
func (c *Client) RejectVacation(ctx context.Context, id string, comment *string) (*VacationResult, error) {
	return c.decide(ctx, policy.ActionVacationReject, "reject", id, comment)
}

func (c *Client) decide(ctx context.Context, action policy.Action, verb, id string, comment *string) (*VacationResult, error) {
	p := c.session.Principal()
	if !p.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	if policy.ScopeOf(p.Role, action) == policy.ScopeNone {
		return nil, &AuthorizationError{
			Code:    "FORBIDDEN",
			Message: fmt.Sprintf("role %s may not perform %s", p.Role, action),
			Local:   true,
		}
	}

	release, err := c.guard(action, id)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := c.GetVacation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.authorize(action, resourceOf(current)); err != nil {
		return nil, err
	}
	if current.Status != models.VacationPending {
		return &VacationResult{Request: current}, &ConflictError{
			Code:    "INVALID_TRANSITION",
			Message: fmt.Sprintf("request is already %s", current.Status),
		}
	}

	err = c.do(ctx, call{
		method: http.MethodPost,
		path:   "/vacations/" + url.PathEscape(id) + "/" + verb,
		body:   models.VacationDecisionRequest{Comment: comment},
	}, nil)
	return c.afterMutation(ctx, id, err)
}

// CancelVacation cancels a PENDING or APPROVED request. The server restores
// the balance of an approved one; the returned balance reflects that.
func (c *Client) CancelVacation(ctx context.Context, id string) (*VacationResult, error) {
	release, err := c.guard(policy.ActionVacationCancel, id)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := c.GetVacation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.authorize(policy.ActionVacationCancel, resourceOf(current)); err != nil {
		return nil, err
	}
	if current.Status != models.VacationPending && current.Status != models.VacationApproved {
		return &VacationResult{Request: current}, &ConflictError{
			Code:    "NOT_CANCELLABLE",
			Message: fmt.Sprintf("a %s request cannot be cancelled", current.Status),
		}
	}

	err = c.do(ctx, call{method: http.MethodPost, path: "/vacations/" + url.PathEscape(id) + "/cancel"}, nil)
	return c.afterMutation(ctx, id, err)
}

// afterMutation re-reads server state. A conflict still returns the fresh
// state alongside the error.
func (c *Client) afterMutation(ctx context.Context, id string, err error) (*VacationResult, error) {
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			if res, reloadErr := c.reload(ctx, id); reloadErr == nil {
				return res, err
			}
		}
		return nil, err
	}
	return c.reload(ctx, id)
}

func (c *Client) reload(ctx context.Context, id string) (*VacationResult, error) {
	v, err := c.GetVacation(ctx, id)
	if err != nil {
		return nil, err
	}
	res := &VacationResult{Request: v}
	balance, err := c.Balance(ctx, v.EmployeeID, v.BalanceYear())
	switch {
	case err == nil:
		res.Balance = balance
	case IsNotFound(err):
	default:
		var denied *AuthorizationError
		if !errors.As(err, &denied) {
			return nil, err
		}
	}
	return res, nil
}

func (c *Client) checkBalance(ctx context.Context, employeeID string, year, days int) error {
	balance, err := c.Balance(ctx, employeeID, year)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	if days > balance.RemainingDays {
		return fieldError("endDate", fmt.Sprintf("insufficient balance: requested %d days, %d remaining in %d", days, balance.RemainingDays, year))
	}
	return nil
}

func checkRange(start, end models.Date) (int, error) {
	fields := map[string]string{}
	if start.IsZero() {
		fields["startDate"] = "start date is required"
	}
	if end.IsZero() {
		fields["endDate"] = "end date is required"
	}
	if len(fields) == 0 && end.Before(start.Time) {
		fields["endDate"] = "end date must not be before start date"
	}
	if len(fields) > 0 {
		return 0, &ValidationError{Message: "invalid date range", Fields: fields}
	}
	return models.DaysBetween(start, end), nil
}

func resourceOf(v *models.VacationRequest) policy.Resource {
	res := policy.Resource{OwnerEmployeeID: v.EmployeeID}
	if v.ManagerID != nil {
		res.ManagerUserID = *v.ManagerID
	}
	return res
}
