package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/vacation-api/internal/models"
	"github.com/noah-isme/vacation-api/internal/policy"
	appErrors "github.com/noah-isme/vacation-api/pkg/errors"
)

// DefaultEntitledDays is used when no entitlement is configured.
const DefaultEntitledDays = 22

type balanceRepository interface {
	FindByEmployeeAndYear(ctx context.Context, employeeID string, year int) (*models.VacationBalance, error)
	LockOrCreate(ctx context.Context, employeeID string, year, entitled int) (*models.VacationBalance, error)
	Create(ctx context.Context, balance *models.VacationBalance) error
	Save(ctx context.Context, balance *models.VacationBalance) error
	List(ctx context.Context, filter models.BalanceFilter) ([]models.VacationBalance, int, error)
}

type employeeFinder interface {
	FindByID(ctx context.Context, id string) (*models.Employee, error)
}

// BalanceConfig tunes the ledger.
type BalanceConfig struct {
	DefaultEntitledDays int
	TeamScope           bool
}

// BalanceService reads and moves days on the per-year vacation ledger.
type BalanceService struct {
	repo      balanceRepository
	employees employeeFinder
	policy    policy.Policy
	logger    *zap.Logger
	cfg       BalanceConfig
	now       func() time.Time
}

// NewBalanceService constructs a BalanceService.
func NewBalanceService(repo balanceRepository, employees employeeFinder, logger *zap.Logger, cfg BalanceConfig) *BalanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultEntitledDays <= 0 {
		cfg.DefaultEntitledDays = DefaultEntitledDays
	}
	return &BalanceService{
		repo:      repo,
		employees: employees,
		policy:    policy.Policy{TeamScope: cfg.TeamScope},
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *BalanceService) currentYear() int {
	return s.now().UTC().Year()
}

// Get returns the balance of employeeID for year (current year when zero).
func (s *BalanceService) Get(ctx context.Context, actor models.Principal, employeeID string, year int) (*models.VacationBalance, error) {
	if year == 0 {
		year = s.currentYear()
	}
	employee, err := s.employees.FindByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	if err := s.policy.Authorize(actor, policy.ActionBalanceView, employeeResource(employee)); err != nil {
		return nil, err
	}

	balance, err := s.repo.FindByEmployeeAndYear(ctx, employeeID, year)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no balance for employee in %d", year))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load balance")
	}
	return balance, nil
}

// List returns balances for year, scoped by the actor's role.
func (s *BalanceService) List(ctx context.Context, actor models.Principal, year int, page models.PageRequest) (*models.Page[models.VacationBalance], error) {
	if !actor.Authenticated() {
		return nil, appErrors.ErrUnauthorized
	}
	if year == 0 {
		year = s.currentYear()
	}
	filter := models.BalanceFilter{Year: year, PageRequest: page.Normalize()}

	switch policy.ScopeOf(actor.Role, policy.ActionBalanceListAll) {
	case policy.ScopeAny:
		if s.cfg.TeamScope && actor.Role == models.RoleManager {
			filter.ManagerID = actor.UserID
		}
	default:
		if policy.ScopeOf(actor.Role, policy.ActionBalanceView) == policy.ScopeNone {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "balances are not visible to this role")
		}
		if actor.EmployeeID == "" {
			empty := models.NewPage[models.VacationBalance](nil, filter.PageRequest, 0)
			return &empty, nil
		}
		filter.EmployeeID = actor.EmployeeID
	}

	balances, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list balances")
	}
	result := models.NewPage(balances, filter.PageRequest, total)
	return &result, nil
}

// Lookup returns the ledger row or nil when none exists. No authorization.
func (s *BalanceService) Lookup(ctx context.Context, employeeID string, year int) (*models.VacationBalance, error) {
	balance, err := s.repo.FindByEmployeeAndYear(ctx, employeeID, year)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load balance")
	}
	return balance, nil
}

// EnsureForYear opens the ledger of employeeID for year with the default
// entitlement unless it already exists.
func (s *BalanceService) EnsureForYear(ctx context.Context, employeeID string, year int) error {
	if year == 0 {
		year = s.currentYear()
	}
	if err := s.repo.Create(ctx, models.NewBalance(employeeID, year, s.cfg.DefaultEntitledDays)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create balance")
	}
	return nil
}

// Reserve charges days to the ledger. It must run inside a transaction; the
// row is locked until commit. Returns the balance before and after.
func (s *BalanceService) Reserve(ctx context.Context, employeeID string, year, days int) (models.VacationBalance, models.VacationBalance, error) {
	return s.move(ctx, employeeID, year, func(b *models.VacationBalance) error { return b.Reserve(days) })
}

// Release returns days to the ledger under the same rules as Reserve.
func (s *BalanceService) Release(ctx context.Context, employeeID string, year, days int) (models.VacationBalance, models.VacationBalance, error) {
	return s.move(ctx, employeeID, year, func(b *models.VacationBalance) error { return b.Release(days) })
}

func (s *BalanceService) move(ctx context.Context, employeeID string, year int, apply func(*models.VacationBalance) error) (models.VacationBalance, models.VacationBalance, error) {
	balance, err := s.repo.LockOrCreate(ctx, employeeID, year, s.cfg.DefaultEntitledDays)
	if err != nil {
		return models.VacationBalance{}, models.VacationBalance{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock balance")
	}
	before := *balance
	if err := apply(balance); err != nil {
		if appErrors.FromError(err).Code == appErrors.ErrBalanceCorruption.Code {
			s.logger.Error("balance ledger out of sync",
				zap.String("employee_id", employeeID), zap.Int("year", year), zap.Int("used_days", before.UsedDays), zap.Error(err))
		}
		return before, before, err
	}
	if err := s.repo.Save(ctx, balance); err != nil {
		return before, before, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save balance")
	}
	return before, *balance, nil
}

func employeeResource(e *models.Employee) policy.Resource {
	res := policy.Resource{OwnerEmployeeID: e.ID}
	if e.ManagerID != nil {
		res.ManagerUserID = *e.ManagerID
	}
	return res
}
