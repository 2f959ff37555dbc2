package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/vacation-api/internal/models"
	"github.com/noah-isme/vacation-api/internal/policy"
	"github.com/noah-isme/vacation-api/internal/repository"
	appErrors "github.com/noah-isme/vacation-api/pkg/errors"
)

const maxCalendarSpanDays = 366

type vacationRepository interface {
	Create(ctx context.Context, v *models.VacationRequest) error
	FindByID(ctx context.Context, id string) (*models.VacationRequest, error)
	FindByIDForUpdate(ctx context.Context, id string) (*models.VacationRequest, error)
	List(ctx context.Context, filter models.VacationFilter) ([]models.VacationRequest, int, error)
	ListForExport(ctx context.Context, filter models.VacationFilter) ([]models.VacationRequest, error)
	FindOverlapping(ctx context.Context, employeeID string, start, end models.Date, excludeID string) ([]models.VacationRequest, error)
	Calendar(ctx context.Context, start, end models.Date, statuses []models.VacationStatus) ([]models.VacationRequest, error)
	UpdatePending(ctx context.Context, v *models.VacationRequest) error
	UpdateStatus(ctx context.Context, t repository.StatusTransition) error
}

type vacationEmployeeRepository interface {
	FindByID(ctx context.Context, id string) (*models.Employee, error)
	FindByIDForUpdate(ctx context.Context, id string) (*models.Employee, error)
}

type vacationLedger interface {
	Lookup(ctx context.Context, employeeID string, year int) (*models.VacationBalance, error)
	Reserve(ctx context.Context, employeeID string, year, days int) (models.VacationBalance, models.VacationBalance, error)
	Release(ctx context.Context, employeeID string, year, days int) (models.VacationBalance, models.VacationBalance, error)
}

type txRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// VacationConfig tunes the lifecycle service.
type VacationConfig struct {
	TeamScope bool
}

// VacationService implements the vacation request lifecycle:
// PENDING -> APPROVED | REJECTED | CANCELLED, and APPROVED -> CANCELLED.
// Every transition runs in one transaction with its balance movement and
// audit entry.
type VacationService struct {
	repo      vacationRepository
	employees vacationEmployeeRepository
	ledger    vacationLedger
	tx        txRunner
	audit     auditRecorder
	calendar  *CalendarCache
	metrics   *MetricsService
	policy    policy.Policy
	validator *validator.Validate
	logger    *zap.Logger
	cfg       VacationConfig
	now       func() time.Time
}

// NewVacationService constructs a VacationService.
func NewVacationService(
	repo vacationRepository,
	employees vacationEmployeeRepository,
	ledger vacationLedger,
	tx txRunner,
	audit auditRecorder,
	calendar *CalendarCache,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg VacationConfig,
) *VacationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &VacationService{
		repo:      repo,
		employees: employees,
		ledger:    ledger,
		tx:        tx,
		audit:     audit,
		calendar:  calendar,
		metrics:   metrics,
		policy:    policy.Policy{TeamScope: cfg.TeamScope},
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

type lifecycleAction string

const (
	lifecycleCreate  lifecycleAction = "create"
	lifecycleUpdate  lifecycleAction = "update"
	lifecycleApprove lifecycleAction = "approve"
	lifecycleReject  lifecycleAction = "reject"
	lifecycleCancel  lifecycleAction = "cancel"
)

// nextStatus is the lifecycle transition table.
func nextStatus(from models.VacationStatus, action lifecycleAction) (models.VacationStatus, error) {
	switch action {
	case lifecycleUpdate:
		if from == models.VacationPending {
			return models.VacationPending, nil
		}
	case lifecycleApprove:
		if from == models.VacationPending {
			return models.VacationApproved, nil
		}
	case lifecycleReject:
		if from == models.VacationPending {
			return models.VacationRejected, nil
		}
	case lifecycleCancel:
		if from == models.VacationPending || from == models.VacationApproved {
			return models.VacationCancelled, nil
		}
		return from, appErrors.Clone(appErrors.ErrNotCancellable, fmt.Sprintf("a %s request cannot be cancelled", from))
	}
	return from, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot %s a %s request", action, from))
}

func vacationResource(v *models.VacationRequest) policy.Resource {
	res := policy.Resource{OwnerEmployeeID: v.EmployeeID}
	if v.ManagerID != nil {
		res.ManagerUserID = *v.ManagerID
	}
	return res
}

func validateRange(start, end models.Date) error {
	if start.IsZero() {
		return appErrors.WithField("startDate", "startDate is required")
	}
	if end.IsZero() {
		return appErrors.WithField("endDate", "endDate is required")
	}
	if end.Before(start.Time) {
		return appErrors.WithField("endDate", "endDate must be on or after startDate")
	}
	return nil
}

// Create submits a PENDING request after the policy, date, balance and overlap checks.
func (s *VacationService) Create(ctx context.Context, actor models.Principal, req models.CreateVacationRequest, meta models.RequestMeta) (*models.VacationRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid vacation payload")
	}
	if err := validateRange(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	employeeID := req.EmployeeID
	if employeeID == "" {
		employeeID = actor.EmployeeID
	}
	if employeeID == "" {
		return nil, appErrors.WithField("employeeId", "employeeId is required")
	}

	var created models.VacationRequest
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		employee, err := s.employees.FindByIDForUpdate(ctx, employeeID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "employee not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
		}
		if err := s.policy.Authorize(actor, policy.ActionVacationCreate, employeeResource(employee)); err != nil {
			return err
		}
		if !employee.Active {
			return appErrors.WithField("employeeId", "employee is inactive")
		}

		days := models.DaysBetween(req.StartDate, req.EndDate)
		if err := s.checkBalance(ctx, employee.ID, req.StartDate.Year(), days); err != nil {
			return err
		}
		if err := s.checkOverlap(ctx, employee.ID, req.StartDate, req.EndDate, ""); err != nil {
			return err
		}

		created = models.VacationRequest{
			EmployeeID: employee.ID,
			StartDate:  req.StartDate,
			EndDate:    req.EndDate,
			DaysCount:  days,
			Status:     models.VacationPending,
			Reason:     req.Reason,
		}
		if err := s.repo.Create(ctx, &created); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create vacation request")
		}
		return s.audit.RecordTx(ctx, AuditEntry{
			ActorID:    actor.UserID,
			Action:     models.AuditActionVacationCreate,
			EntityType: models.EntityVacationRequest,
			EntityID:   created.ID,
			Metadata: map[string]interface{}{
				"employeeName": employee.FullName,
				"after":        vacationSnapshot(&created),
			},
			Meta: meta,
		})
	})
	if err != nil {
		return nil, s.fail(lifecycleCreate, err)
	}
	return s.afterWrite(ctx, lifecycleCreate, created.ID)
}

// Get returns one request when the actor may view it.
func (s *VacationService) Get(ctx context.Context, actor models.Principal, id string) (*models.VacationRequest, error) {
	v, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(actor, policy.ActionVacationView, vacationResource(v)); err != nil {
		return nil, err
	}
	return v, nil
}

// List returns a page of requests visible to the actor.
func (s *VacationService) List(ctx context.Context, actor models.Principal, filter models.VacationFilter) (*models.Page[models.VacationRequest], error) {
	filter.PageRequest = filter.PageRequest.Normalize()
	scoped, ok, err := s.scopeFilter(actor, filter)
	if err != nil {
		return nil, err
	}
	if !ok {
		empty := models.NewPage[models.VacationRequest](nil, filter.PageRequest, 0)
		return &empty, nil
	}

	items, total, err := s.repo.List(ctx, scoped)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list vacation requests")
	}
	page := models.NewPage(items, scoped.PageRequest, total)
	return &page, nil
}

// ListForExport returns every request matching filter that the actor may export.
func (s *VacationService) ListForExport(ctx context.Context, actor models.Principal, filter models.VacationFilter) ([]models.VacationRequest, error) {
	if err := s.policy.Authorize(actor, policy.ActionVacationExport, policy.Resource{}); err != nil {
		return nil, err
	}
	scoped, ok, err := s.scopeFilter(actor, filter)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []models.VacationRequest{}, nil
	}
	items, err := s.repo.ListForExport(ctx, scoped)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load vacation requests")
	}
	return items, nil
}

// scopeFilter narrows filter to what actor may see. ok is false when the
// actor can see nothing at all.
func (s *VacationService) scopeFilter(actor models.Principal, filter models.VacationFilter) (models.VacationFilter, bool, error) {
	if !actor.Authenticated() {
		return filter, false, appErrors.ErrUnauthorized
	}
	switch policy.ScopeOf(actor.Role, policy.ActionVacationListAll) {
	case policy.ScopeAny:
		if s.cfg.TeamScope && actor.Role == models.RoleManager {
			filter.ManagerID = actor.UserID
			filter.IncludeEmployeeID = actor.EmployeeID
		}
		return filter, true, nil
	}
	if policy.ScopeOf(actor.Role, policy.ActionVacationView) != policy.ScopeOwn {
		return filter, false, appErrors.Clone(appErrors.ErrForbidden, "vacation requests are not visible to this role")
	}
	if actor.EmployeeID == "" {
		return filter, false, nil
	}
	if filter.EmployeeID != "" && filter.EmployeeID != actor.EmployeeID {
		return filter, false, nil
	}
	filter.EmployeeID = actor.EmployeeID
	return filter, true, nil
}

// Update rewrites the dates or reason of a PENDING request.
func (s *VacationService) Update(ctx context.Context, actor models.Principal, id string, req models.UpdateVacationRequest, meta models.RequestMeta) (*models.VacationRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid vacation payload")
	}
	if err := validateRange(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		v, err := s.lock(ctx, id)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(actor, policy.ActionVacationUpdate, vacationResource(v)); err != nil {
			return err
		}
		if _, err := nextStatus(v.Status, lifecycleUpdate); err != nil {
			return err
		}
		if _, err := s.employees.FindByIDForUpdate(ctx, v.EmployeeID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock employee")
		}

		days := models.DaysBetween(req.StartDate, req.EndDate)
		if err := s.checkBalance(ctx, v.EmployeeID, req.StartDate.Year(), days); err != nil {
			return err
		}
		if err := s.checkOverlap(ctx, v.EmployeeID, req.StartDate, req.EndDate, v.ID); err != nil {
			return err
		}

		before := vacationSnapshot(v)
		v.StartDate = req.StartDate
		v.EndDate = req.EndDate
		v.DaysCount = days
		v.Reason = req.Reason
		if err := s.repo.UpdatePending(ctx, v); err != nil {
			return s.transitionConflict(err, lifecycleUpdate, v.Status)
		}
		return s.audit.RecordTx(ctx, AuditEntry{
			ActorID:    actor.UserID,
			Action:     models.AuditActionVacationUpdate,
			EntityType: models.EntityVacationRequest,
			EntityID:   v.ID,
			Metadata:   map[string]interface{}{"before": before, "after": vacationSnapshot(v)},
			Meta:       meta,
		})
	})
	if err != nil {
		return nil, s.fail(lifecycleUpdate, err)
	}
	return s.afterWrite(ctx, lifecycleUpdate, id)
}

// Approve moves a PENDING request to APPROVED and charges its days to the
// balance of the start-date year.
func (s *VacationService) Approve(ctx context.Context, actor models.Principal, id string, req models.VacationDecisionRequest, meta models.RequestMeta) (*models.VacationRequest, error) {
	return s.decide(ctx, actor, id, lifecycleApprove, req, meta)
}

// Reject moves a PENDING request to REJECTED. Balances are untouched.
func (s *VacationService) Reject(ctx context.Context, actor models.Principal, id string, req models.VacationDecisionRequest, meta models.RequestMeta) (*models.VacationRequest, error) {
	return s.decide(ctx, actor, id, lifecycleReject, req, meta)
}

func (s *VacationService) decide(ctx context.Context, actor models.Principal, id string, action lifecycleAction, req models.VacationDecisionRequest, meta models.RequestMeta) (*models.VacationRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid decision payload")
	}
	policyAction, auditAction := policy.ActionVacationApprove, models.AuditActionVacationApprove
	if action == lifecycleReject {
		policyAction, auditAction = policy.ActionVacationReject, models.AuditActionVacationReject
	}

	reserved := 0
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		v, err := s.lock(ctx, id)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(actor, policyAction, vacationResource(v)); err != nil {
			return err
		}
		to, err := nextStatus(v.Status, action)
		if err != nil {
			return err
		}

		metadata := map[string]interface{}{
			"employeeName": v.EmployeeName,
			"before":       vacationSnapshot(v),
		}
		if action == lifecycleApprove {
			if err := s.checkOverlap(ctx, v.EmployeeID, v.StartDate, v.EndDate, v.ID); err != nil {
				return err
			}
			before, after, err := s.ledger.Reserve(ctx, v.EmployeeID, v.BalanceYear(), v.DaysCount)
			if err != nil {
				return err
			}
			metadata["balanceBefore"] = balanceSnapshot(before)
			metadata["balanceAfter"] = balanceSnapshot(after)
			reserved = v.DaysCount
		}

		decidedAt := s.now().UTC()
		decidedBy := actor.UserID
		transition := repository.StatusTransition{
			ID:         v.ID,
			From:       v.Status,
			To:         to,
			DecidedBy:  &decidedBy,
			DecisionAt: &decidedAt,
			Comment:    req.Comment,
		}
		if err := s.repo.UpdateStatus(ctx, transition); err != nil {
			return s.transitionConflict(err, action, v.Status)
		}

		v.Status = to
		v.DecidedBy = &decidedBy
		v.DecisionAt = &decidedAt
		v.ManagerComment = req.Comment
		metadata["after"] = vacationSnapshot(v)
		return s.audit.RecordTx(ctx, AuditEntry{
			ActorID:    actor.UserID,
			Action:     auditAction,
			EntityType: models.EntityVacationRequest,
			EntityID:   v.ID,
			Metadata:   metadata,
			Meta:       meta,
		})
	})
	if err != nil {
		return nil, s.fail(action, err)
	}
	s.metrics.RecordLedger(reserved, 0)
	return s.afterWrite(ctx, action, id)
}

// Cancel withdraws a PENDING or APPROVED request. Cancelling an APPROVED
// request returns its days to the balance in the same transaction.
func (s *VacationService) Cancel(ctx context.Context, actor models.Principal, id string, meta models.RequestMeta) (*models.VacationRequest, error) {
	released := 0
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		v, err := s.lock(ctx, id)
		if err != nil {
			return err
		}
		if err := s.policy.Authorize(actor, policy.ActionVacationCancel, vacationResource(v)); err != nil {
			return err
		}
		to, err := nextStatus(v.Status, lifecycleCancel)
		if err != nil {
			return err
		}

		metadata := map[string]interface{}{
			"employeeName": v.EmployeeName,
			"before":       vacationSnapshot(v),
		}
		if v.Status == models.VacationApproved {
			before, after, err := s.ledger.Release(ctx, v.EmployeeID, v.BalanceYear(), v.DaysCount)
			if err != nil {
				return err
			}
			metadata["balanceBefore"] = balanceSnapshot(before)
			metadata["balanceAfter"] = balanceSnapshot(after)
			released = v.DaysCount
		}

		if err := s.repo.UpdateStatus(ctx, repository.StatusTransition{ID: v.ID, From: v.Status, To: to}); err != nil {
			return s.transitionConflict(err, lifecycleCancel, v.Status)
		}
		v.Status = to
		metadata["after"] = vacationSnapshot(v)
		return s.audit.RecordTx(ctx, AuditEntry{
			ActorID:    actor.UserID,
			Action:     models.AuditActionVacationCancel,
			EntityType: models.EntityVacationRequest,
			EntityID:   v.ID,
			Metadata:   metadata,
			Meta:       meta,
		})
	})
	if err != nil {
		return nil, s.fail(lifecycleCancel, err)
	}
	s.metrics.RecordLedger(0, released)
	return s.afterWrite(ctx, lifecycleCancel, id)
}

// Calendar returns PENDING and APPROVED requests intersecting [start, end].
func (s *VacationService) Calendar(ctx context.Context, actor models.Principal, query models.CalendarQuery) ([]models.VacationRequest, error) {
	if err := s.policy.Authorize(actor, policy.ActionCalendarView, policy.Resource{}); err != nil {
		return nil, err
	}
	if err := validateRange(query.StartDate, query.EndDate); err != nil {
		return nil, err
	}
	if models.DaysBetween(query.StartDate, query.EndDate) > maxCalendarSpanDays {
		return nil, appErrors.WithField("endDate", fmt.Sprintf("calendar window cannot exceed %d days", maxCalendarSpanDays))
	}

	cached, cacheKey, hit := s.calendar.Lookup(ctx, query.StartDate, query.EndDate)
	if hit {
		return cached, nil
	}

	items, err := s.repo.Calendar(ctx, query.StartDate, query.EndDate, []models.VacationStatus{models.VacationApproved, models.VacationPending})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar")
	}
	if items == nil {
		items = []models.VacationRequest{}
	}
	s.calendar.Store(ctx, cacheKey, items)
	return items, nil
}

func (s *VacationService) find(ctx context.Context, id string) (*models.VacationRequest, error) {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "vacation request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load vacation request")
	}
	return v, nil
}

func (s *VacationService) lock(ctx context.Context, id string) (*models.VacationRequest, error) {
	v, err := s.repo.FindByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "vacation request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock vacation request")
	}
	return v, nil
}

// checkBalance rejects a request larger than what is left for year. A
// missing balance row does not bound the request.
func (s *VacationService) checkBalance(ctx context.Context, employeeID string, year, days int) error {
	balance, err := s.ledger.Lookup(ctx, employeeID, year)
	if err != nil {
		return err
	}
	if balance != nil && !balance.Covers(days) {
		return appErrors.Clone(appErrors.ErrInsufficientBalance,
			fmt.Sprintf("insufficient balance: requested %d days, %d remaining in %d", days, balance.RemainingDays, year))
	}
	return nil
}

func (s *VacationService) checkOverlap(ctx context.Context, employeeID string, start, end models.Date, excludeID string) error {
	overlapping, err := s.repo.FindOverlapping(ctx, employeeID, start, end, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check overlapping requests")
	}
	if len(overlapping) == 0 {
		return nil
	}
	conflict := overlapping[0]
	return appErrors.Clone(appErrors.ErrOverlap, fmt.Sprintf("dates overlap the %s request from %s to %s",
		conflict.Status, conflict.StartDate, conflict.EndDate))
}

// transitionConflict maps a lost conditional update to INVALID_TRANSITION.
func (s *VacationService) transitionConflict(err error, action lifecycleAction, from models.VacationStatus) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("request changed concurrently; %s of a %s request lost", action, from))
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update vacation request")
}

func (s *VacationService) fail(action lifecycleAction, err error) error {
	appErr := appErrors.FromError(err)
	s.metrics.RecordTransition(string(action), appErr.Code)
	if appErr.Status >= 500 {
		s.logger.Error("vacation operation failed", zap.String("action", string(action)), zap.Error(err))
	}
	return appErr
}

// afterWrite invalidates derived views and returns the stored request.
func (s *VacationService) afterWrite(ctx context.Context, action lifecycleAction, id string) (*models.VacationRequest, error) {
	s.metrics.RecordTransition(string(action), "ok")
	s.calendar.Invalidate(ctx)
	return s.find(ctx, id)
}

func vacationSnapshot(v *models.VacationRequest) map[string]interface{} {
	snap := map[string]interface{}{
		"status":    v.Status,
		"startDate": v.StartDate.String(),
		"endDate":   v.EndDate.String(),
		"daysCount": v.DaysCount,
	}
	if v.DecidedBy != nil {
		snap["decidedBy"] = *v.DecidedBy
	}
	if v.DecisionAt != nil {
		snap["decisionAt"] = v.DecisionAt.Format(time.RFC3339)
	}
	if v.ManagerComment != nil {
		snap["managerComment"] = *v.ManagerComment
	}
	return snap
}

func balanceSnapshot(b models.VacationBalance) map[string]interface{} {
	return map[string]interface{}{
		"year":          b.Year,
		"entitledDays":  b.EntitledDays,
		"usedDays":      b.UsedDays,
		"remainingDays": b.RemainingDays,
	}
}
