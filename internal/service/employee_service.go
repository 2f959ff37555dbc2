package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/vacation-api/internal/models"
	"github.com/noah-isme/vacation-api/internal/policy"
	appErrors "github.com/noah-isme/vacation-api/pkg/errors"
)

type employeeRepository interface {
	FindByID(ctx context.Context, id string) (*models.Employee, error)
	FindByUserID(ctx context.Context, userID string) (*models.Employee, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error)
	Create(ctx context.Context, employee *models.Employee) error
	Update(ctx context.Context, employee *models.Employee) error
	Deactivate(ctx context.Context, id string) error
}

// EmployeeService manages HR records.
type EmployeeService struct {
	repo      employeeRepository
	users     userFinder
	balances  balanceOpener
	tx        txRunner
	audit     auditRecorder
	policy    policy.Policy
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEmployeeService constructs an EmployeeService.
func NewEmployeeService(
	repo employeeRepository,
	users userFinder,
	balances balanceOpener,
	tx txRunner,
	audit auditRecorder,
	validate *validator.Validate,
	logger *zap.Logger,
	teamScope bool,
) *EmployeeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EmployeeService{
		repo:      repo,
		users:     users,
		balances:  balances,
		tx:        tx,
		audit:     audit,
		policy:    policy.Policy{TeamScope: teamScope},
		validator: validate,
		logger:    logger,
	}
}

// List returns a page of employees; team-scoped managers only see their reports.
func (s *EmployeeService) List(ctx context.Context, actor models.Principal, filter models.EmployeeFilter) (*models.Page[models.Employee], error) {
	if err := s.policy.Authorize(actor, policy.ActionEmployeeView, policy.Resource{}); err != nil {
		return nil, err
	}
	if s.policy.TeamScope && actor.Role == models.RoleManager {
		filter.ManagerID = actor.UserID
	}
	filter.PageRequest = filter.PageRequest.Normalize()

	employees, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list employees")
	}
	page := models.NewPage(employees, filter.PageRequest, total)
	return &page, nil
}

// Get returns one employee.
func (s *EmployeeService) Get(ctx context.Context, actor models.Principal, id string) (*models.Employee, error) {
	employee, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Authorize(actor, policy.ActionEmployeeView, employeeResource(employee)); err != nil {
		return nil, err
	}
	return employee, nil
}

// Create adds an employee and opens its current-year balance.
func (s *EmployeeService) Create(ctx context.Context, actor models.Principal, req models.EmployeeRequest, meta models.RequestMeta) (*models.Employee, error) {
	if err := s.policy.Authorize(actor, policy.ActionEmployeeManage, policy.Resource{}); err != nil {
		return nil, err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid employee payload")
	}
	if err := s.checkRequest(ctx, req, ""); err != nil {
		return nil, err
	}

	employee := &models.Employee{
		FullName:  strings.TrimSpace(req.FullName),
		Email:     req.Email,
		ManagerID: req.ManagerID,
		UserID:    req.UserID,
		Active:    true,
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, employee); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create employee")
		}
		if err := s.balances.EnsureForYear(ctx, employee.ID, 0); err != nil {
			return err
		}
		return s.audit.RecordTx(ctx, AuditEntry{
			ActorID:    actor.UserID,
			Action:     models.AuditActionEmployeeCreate,
			EntityType: models.EntityEmployee,
			EntityID:   employee.ID,
			Metadata:   map[string]interface{}{"after": employeeSnapshot(employee)},
			Meta:       meta,
		})
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return s.load(ctx, employee.ID)
}

// Update rewrites an employee's name, email, manager and user link.
func (s *EmployeeService) Update(ctx context.Context, actor models.Principal, id string, req models.EmployeeRequest, meta models.RequestMeta) (*models.Employee, error) {
	if err := s.policy.Authorize(actor, policy.ActionEmployeeManage, policy.Resource{}); err != nil {
		return nil, err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid employee payload")
	}
	employee, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkRequest(ctx, req, id); err != nil {
		return nil, err
	}
	if req.ManagerID != nil && req.UserID != nil && *req.ManagerID == *req.UserID {
		return nil, appErrors.WithField("managerId", "an employee cannot manage themselves")
	}

	before := employeeSnapshot(employee)
	employee.FullName = strings.TrimSpace(req.FullName)
	employee.Email = req.Email
	employee.ManagerID = req.ManagerID
	employee.UserID = req.UserID

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, employee); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "employee not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update employee")
		}
		return s.audit.RecordTx(ctx, AuditEntry{
			ActorID:    actor.UserID,
			Action:     models.AuditActionEmployeeUpdate,
			EntityType: models.EntityEmployee,
			EntityID:   employee.ID,
			Metadata:   map[string]interface{}{"before": before, "after": employeeSnapshot(employee)},
			Meta:       meta,
		})
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return s.load(ctx, id)
}

// Delete deactivates an employee. Requests and balances are kept.
func (s *EmployeeService) Delete(ctx context.Context, actor models.Principal, id string, meta models.RequestMeta) error {
	if err := s.policy.Authorize(actor, policy.ActionEmployeeManage, policy.Resource{}); err != nil {
		return err
	}
	employee, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Deactivate(ctx, id); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete employee")
		}
		return s.audit.RecordTx(ctx, AuditEntry{
			ActorID:    actor.UserID,
			Action:     models.AuditActionEmployeeDelete,
			EntityType: models.EntityEmployee,
			EntityID:   id,
			Metadata:   map[string]interface{}{"before": employeeSnapshot(employee)},
			Meta:       meta,
		})
	})
	if err != nil {
		return appErrors.FromError(err)
	}
	return nil
}

// checkRequest enforces email uniqueness, the manager role and a one-to-one user link.
func (s *EmployeeService) checkRequest(ctx context.Context, req models.EmployeeRequest, selfID string) error {
	exists, err := s.repo.ExistsByEmail(ctx, req.Email, selfID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "email already used by another employee")
	}

	if req.ManagerID != nil {
		if err := checkManager(ctx, s.users, *req.ManagerID); err != nil {
			return err
		}
	}

	if req.UserID != nil {
		if _, err := s.users.FindByID(ctx, *req.UserID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.WithField("userId", "user not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
		}
		linked, err := s.repo.FindByUserID(ctx, *req.UserID)
		switch {
		case err == nil && linked.ID != selfID:
			return appErrors.Clone(appErrors.ErrConflict, "user is already linked to another employee")
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check user link")
		}
	}
	return nil
}

func (s *EmployeeService) load(ctx context.Context, id string) (*models.Employee, error) {
	employee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	return employee, nil
}

func employeeSnapshot(e *models.Employee) map[string]interface{} {
	snap := map[string]interface{}{
		"fullName": e.FullName,
		"email":    e.Email,
		"active":   e.Active,
	}
	if e.ManagerID != nil {
		snap["managerId"] = *e.ManagerID
	}
	if e.UserID != nil {
		snap["userId"] = *e.UserID
	}
	return snap
}
