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

const balanceColumns = `b.id, b.employee_id, e.full_name AS employee_name, b.year, b.entitled_days, b.used_days, b.remaining_days, b.updated_at`

// BalanceRepository persists the per-year vacation ledger.
type BalanceRepository struct {
	db *sqlx.DB
}

// NewBalanceRepository constructs the repository.
func NewBalanceRepository(db *sqlx.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// FindByEmployeeAndYear returns the ledger row or sql.ErrNoRows.
func (r *BalanceRepository) FindByEmployeeAndYear(ctx context.Context, employeeID string, year int) (*models.VacationBalance, error) {
	query := `SELECT ` + balanceColumns + ` FROM vacation_balances b JOIN employees e ON e.id = b.employee_id WHERE b.employee_id = $1 AND b.year = $2`
	var balance models.VacationBalance
	if err := conn(ctx, r.db).GetContext(ctx, &balance, query, employeeID, year); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find vacation balance: %w", err)
	}
	return &balance, nil
}

// LockOrCreate returns the ledger row locked FOR UPDATE, inserting it with
// entitled days first when missing. Must run inside a transaction.
func (r *BalanceRepository) LockOrCreate(ctx context.Context, employeeID string, year, entitled int) (*models.VacationBalance, error) {
	db := conn(ctx, r.db)
	const insert = `INSERT INTO vacation_balances (id, employee_id, year, entitled_days, used_days, remaining_days, updated_at)
VALUES ($1, $2, $3, $4, 0, $4, $5)
ON CONFLICT (employee_id, year) DO NOTHING`
	if _, err := db.ExecContext(ctx, insert, uuid.NewString(), employeeID, year, entitled, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("ensure vacation balance: %w", err)
	}

	const lock = `SELECT id, employee_id, year, entitled_days, used_days, remaining_days, updated_at
FROM vacation_balances WHERE employee_id = $1 AND year = $2 FOR UPDATE`
	var balance models.VacationBalance
	if err := db.GetContext(ctx, &balance, lock, employeeID, year); err != nil {
		return nil, fmt.Errorf("lock vacation balance: %w", err)
	}
	return &balance, nil
}

// Create inserts a ledger row if none exists for the employee and year.
func (r *BalanceRepository) Create(ctx context.Context, balance *models.VacationBalance) error {
	if balance.ID == "" {
		balance.ID = uuid.NewString()
	}
	balance.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO vacation_balances (id, employee_id, year, entitled_days, used_days, remaining_days, updated_at)
VALUES (:id, :employee_id, :year, :entitled_days, :used_days, :remaining_days, :updated_at)
ON CONFLICT (employee_id, year) DO NOTHING`
	if _, err := conn(ctx, r.db).NamedExecContext(ctx, query, balance); err != nil {
		return fmt.Errorf("create vacation balance: %w", err)
	}
	return nil
}

// Save persists the ledger counters.
func (r *BalanceRepository) Save(ctx context.Context, balance *models.VacationBalance) error {
	balance.UpdatedAt = time.Now().UTC()
	const query = `UPDATE vacation_balances SET entitled_days = :entitled_days, used_days = :used_days, remaining_days = :remaining_days, updated_at = :updated_at WHERE id = :id`
	result, err := conn(ctx, r.db).NamedExecContext(ctx, query, balance)
	if err != nil {
		return fmt.Errorf("save vacation balance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check vacation balance rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns a page of balances for a year and the total count.
func (r *BalanceRepository) List(ctx context.Context, filter models.BalanceFilter) ([]models.VacationBalance, int, error) {
	conditions := []string{"b.year = $1"}
	args := []interface{}{filter.Year}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		conditions = append(conditions, fmt.Sprintf("b.employee_id = $%d", len(args)))
	}
	if filter.ManagerID != "" {
		args = append(args, filter.ManagerID)
		conditions = append(conditions, fmt.Sprintf("e.manager_id = $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")
	page := filter.PageRequest.Normalize()

	db := conn(ctx, r.db)
	listQuery := fmt.Sprintf("SELECT %s FROM vacation_balances b JOIN employees e ON e.id = b.employee_id%s ORDER BY e.full_name ASC LIMIT %d OFFSET %d", balanceColumns, where, page.Size, page.Offset())
	var balances []models.VacationBalance
	if err := db.SelectContext(ctx, &balances, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list vacation balances: %w", err)
	}

	var total int
	if err := db.GetContext(ctx, &total, "SELECT COUNT(*) FROM vacation_balances b JOIN employees e ON e.id = b.employee_id"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count vacation balances: %w", err)
	}
	return balances, total, nil
}
