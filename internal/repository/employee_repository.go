package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/vacation-api/internal/models"
)

const employeeSelect = `SELECT e.id, e.full_name, e.email, e.manager_id, m.full_name AS manager_name, e.user_id, e.active, e.created_at, e.updated_at
FROM employees e
LEFT JOIN users m ON m.id = e.manager_id`

// EmployeeRepository persists employee records.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository constructs the repository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// FindByID returns an employee regardless of its active flag.
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	var employee models.Employee
	if err := conn(ctx, r.db).GetContext(ctx, &employee, employeeSelect+` WHERE e.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find employee by id: %w", err)
	}
	return &employee, nil
}

// FindByIDForUpdate row-locks an employee, serialising writers of its requests.
// Must run inside a transaction.
func (r *EmployeeRepository) FindByIDForUpdate(ctx context.Context, id string) (*models.Employee, error) {
	var employee models.Employee
	if err := conn(ctx, r.db).GetContext(ctx, &employee, employeeSelect+` WHERE e.id = $1 FOR UPDATE OF e`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock employee: %w", err)
	}
	return &employee, nil
}

// FindByUserID returns the employee linked to a user account.
func (r *EmployeeRepository) FindByUserID(ctx context.Context, userID string) (*models.Employee, error) {
	var employee models.Employee
	if err := conn(ctx, r.db).GetContext(ctx, &employee, employeeSelect+` WHERE e.user_id = $1`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find employee by user: %w", err)
	}
	return &employee, nil
}

// ExistsByEmail reports whether another employee already uses email.
func (r *EmployeeRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM employees WHERE LOWER(email) = LOWER($1) AND id::text <> $2)`
	var exists bool
	if err := conn(ctx, r.db).GetContext(ctx, &exists, query, email, excludeID); err != nil {
		return false, fmt.Errorf("check employee email: %w", err)
	}
	return exists, nil
}

// List returns a page of employees matching the filter and the total count.
func (r *EmployeeRepository) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("e.active = $%d", len(args)))
	}
	if filter.ManagerID != "" {
		args = append(args, filter.ManagerID)
		conditions = append(conditions, fmt.Sprintf("e.manager_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(e.full_name) LIKE $%d OR LOWER(e.email) LIKE $%d)", len(args), len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.PageRequest.Normalize()
	listQuery := fmt.Sprintf("%s%s ORDER BY e.full_name ASC LIMIT %d OFFSET %d", employeeSelect, where, page.Size, page.Offset())

	db := conn(ctx, r.db)
	var employees []models.Employee
	if err := db.SelectContext(ctx, &employees, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list employees: %w", err)
	}

	var total int
	if err := db.GetContext(ctx, &total, "SELECT COUNT(*) FROM employees e"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count employees: %w", err)
	}
	return employees, total, nil
}

// Create inserts a new employee.
func (r *EmployeeRepository) Create(ctx context.Context, employee *models.Employee) error {
	if employee.ID == "" {
		employee.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if employee.CreatedAt.IsZero() {
		employee.CreatedAt = now
	}
	employee.UpdatedAt = now

	const query = `INSERT INTO employees (id, full_name, email, manager_id, user_id, active, created_at, updated_at)
VALUES (:id, :full_name, :email, :manager_id, :user_id, :active, :created_at, :updated_at)`
	if _, err := conn(ctx, r.db).NamedExecContext(ctx, query, employee); err != nil {
		return fmt.Errorf("create employee: %w", err)
	}
	return nil
}

// Update writes the mutable columns of an employee.
func (r *EmployeeRepository) Update(ctx context.Context, employee *models.Employee) error {
	employee.UpdatedAt = time.Now().UTC()
	const query = `UPDATE employees SET full_name = :full_name, email = :email, manager_id = :manager_id, user_id = :user_id, active = :active, updated_at = :updated_at WHERE id = :id`
	result, err := conn(ctx, r.db).NamedExecContext(ctx, query, employee)
	if err != nil {
		return fmt.Errorf("update employee: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check employee update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Deactivate soft deletes an employee.
func (r *EmployeeRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE employees SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate employee: %w", err)
	}
	return nil
}
