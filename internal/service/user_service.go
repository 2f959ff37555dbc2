package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/vacation-api/internal/models"
	"github.com/noah-isme/vacation-api/internal/policy"
	appErrors "github.com/noah-isme/vacation-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindManagers(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	Deactivate(ctx context.Context, id string) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// UserService handles account administration.
type UserService struct {
	users     userRepository
	employees authEmployeeRepository
	balances  balanceOpener
	tx        txRunner
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(
	users userRepository,
	employees authEmployeeRepository,
	balances balanceOpener,
	tx txRunner,
	audit auditRecorder,
	validate *validator.Validate,
	logger *zap.Logger,
) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{
		users:     users,
		employees: employees,
		balances:  balances,
		tx:        tx,
		audit:     audit,
		validator: validate,
		logger:    logger,
	}
}

// List returns a page of users.
func (s *UserService) List(ctx context.Context, actor models.Principal, filter models.UserFilter) (*models.Page[models.User], error) {
	if err := policy.Authorize(actor, policy.ActionUserManage, policy.Resource{}); err != nil {
		return nil, err
	}
	filter.PageRequest = filter.PageRequest.Normalize()
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	page := models.NewPage(users, filter.PageRequest, total)
	return &page, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, actor models.Principal, id string) (*models.User, error) {
	if err := policy.Authorize(actor, policy.ActionUserManage, policy.Resource{}); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Managers lists the active accounts that can be assigned as managers.
func (s *UserService) Managers(ctx context.Context, actor models.Principal) ([]models.User, error) {
	if err := policy.Authorize(actor, policy.ActionUserManage, policy.Resource{}); err != nil {
		return nil, err
	}
	users, err := s.users.FindManagers(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list managers")
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// Create provisions an account. Non-admin accounts also get an employee
// record and a current-year balance.
func (s *UserService) Create(ctx context.Context, actor models.Principal, req models.CreateUserRequest, meta models.RequestMeta) (*models.User, error) {
	if err := policy.Authorize(actor, policy.ActionUserManage, policy.Resource{}); err != nil {
		return nil, err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid create user payload")
	}
	if req.Role == models.RoleCollaborator && req.ManagerID == nil {
		return nil, appErrors.WithField("managerId", "collaborators require a manager")
	}
	if req.ManagerID != nil {
		if err := checkManager(ctx, s.users, *req.ManagerID); err != nil {
			return nil, err
		}
	}
	if err := s.ensureEmailFree(ctx, req.Email, ""); err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		Active:       true,
		PasswordHash: string(passwordHash),
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
		}
		metadata := map[string]interface{}{"email": user.Email, "role": user.Role}
		if user.Role != models.RoleAdmin {
			employee := &models.Employee{
				FullName:  user.FullName,
				Email:     user.Email,
				ManagerID: req.ManagerID,
				UserID:    &user.ID,
				Active:    true,
			}
			if err := s.employees.Create(ctx, employee); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create employee")
			}
			if err := s.balances.EnsureForYear(ctx, employee.ID, 0); err != nil {
				return err
			}
			metadata["employeeId"] = employee.ID
		}
		return s.audit.RecordTx(ctx, AuditEntry{
			ActorID:    actor.UserID,
			Action:     models.AuditActionUserCreate,
			EntityType: models.EntityUser,
			EntityID:   user.ID,
			Metadata:   metadata,
			Meta:       meta,
		})
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return user, nil
}

// Update modifies the account and keeps the linked employee's email in sync.
func (s *UserService) Update(ctx context.Context, actor models.Principal, id string, req models.UpdateUserRequest, meta models.RequestMeta) (*models.User, error) {
	if err := policy.Authorize(actor, policy.ActionUserManage, policy.Resource{}); err != nil {
		return nil, err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid update payload")
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if id == actor.UserID && req.Active != nil && !*req.Active {
		return nil, appErrors.WithField("active", "you cannot deactivate your own account")
	}

	employee, err := s.linkedEmployee(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if req.Email != user.Email {
		excludeEmployee := ""
		if employee != nil {
			excludeEmployee = employee.ID
		}
		if err := s.ensureEmailFree(ctx, req.Email, excludeEmployee); err != nil {
			return nil, err
		}
	}

	before := map[string]interface{}{"email": user.Email, "fullName": user.FullName, "role": user.Role, "active": user.Active}
	user.Email = req.Email
	user.Role = req.Role
	if strings.TrimSpace(req.FullName) != "" {
		user.FullName = strings.TrimSpace(req.FullName)
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Update(ctx, user); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
		}
		if req.Password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
			}
			if err := s.users.UpdatePassword(ctx, user.ID, string(hash), time.Now().UTC()); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
			}
			if err := s.users.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke sessions")
			}
		}
		if employee != nil {
			employee.Email = user.Email
			employee.FullName = user.FullName
			if err := s.employees.Update(ctx, employee); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sync employee")
			}
		}
		return s.audit.RecordTx(ctx, AuditEntry{
			ActorID:    actor.UserID,
			Action:     models.AuditActionUserUpdate,
			EntityType: models.EntityUser,
			EntityID:   user.ID,
			Metadata: map[string]interface{}{
				"before":          before,
				"after":           map[string]interface{}{"email": user.Email, "fullName": user.FullName, "role": user.Role, "active": user.Active},
				"passwordChanged": req.Password != "",
			},
			Meta: meta,
		})
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return user, nil
}

// Delete deactivates the account, revokes its sessions and unlinks its
// employee record. An administrator cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actor models.Principal, id string, meta models.RequestMeta) error {
	if err := policy.Authorize(actor, policy.ActionUserManage, policy.Resource{}); err != nil {
		return err
	}
	if id == actor.UserID {
		return appErrors.WithField("id", "you cannot delete your own account")
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Deactivate(ctx, user.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
		}
		if err := s.users.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke sessions")
		}
		metadata := map[string]interface{}{"email": user.Email, "before": map[string]bool{"active": user.Active}}
		employee, err := s.linkedEmployee(ctx, user.ID)
		if err != nil {
			return err
		}
		if employee != nil {
			employee.UserID = nil
			if err := s.employees.Update(ctx, employee); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlink employee")
			}
			metadata["unlinkedEmployeeId"] = employee.ID
		}
		return s.audit.RecordTx(ctx, AuditEntry{
			ActorID:    actor.UserID,
			Action:     models.AuditActionUserDelete,
			EntityType: models.EntityUser,
			EntityID:   user.ID,
			Metadata:   metadata,
			Meta:       meta,
		})
	})
	if err != nil {
		return appErrors.FromError(err)
	}
	return nil
}

func (s *UserService) load(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

func (s *UserService) linkedEmployee(ctx context.Context, userID string) (*models.Employee, error) {
	employee, err := s.employees.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	return employee, nil
}

// ensureEmailFree checks both accounts and employee records; excludeEmployeeID
// skips the caller's own employee row.
func (s *UserService) ensureEmailFree(ctx context.Context, email, excludeEmployeeID string) error {
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}
	exists, err := s.employees.ExistsByEmail(ctx, email, excludeEmployeeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "email already exists")
	}
	return nil
}

// checkManager requires id to be an active MANAGER or ADMIN account.
func checkManager(ctx context.Context, users userFinder, id string) error {
	manager, err := users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.WithField("managerId", "manager not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load manager")
	}
	if !manager.Active || !manager.HasManagerRole() {
		return appErrors.WithField("managerId", "manager must be an active MANAGER or ADMIN")
	}
	return nil
}
