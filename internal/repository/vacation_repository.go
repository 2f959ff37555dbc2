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

const vacationSelect = `SELECT v.id, v.employee_id, e.full_name AS employee_name, e.email AS employee_email, e.manager_id AS employee_manager_id,
       v.start_date, v.end_date, v.days_count, v.status, v.reason, v.manager_comment,
       v.requested_at, v.decision_at, v.decided_by, d.email AS decided_by_email, v.updated_at
FROM vacation_requests v
JOIN employees e ON e.id = v.employee_id
LEFT JOIN users d ON d.id = v.decided_by`

// exportLimit caps unpaginated reads used for file exports.
const exportLimit = 10000

// VacationRepository persists vacation requests.
type VacationRepository struct {
	db *sqlx.DB
}

// NewVacationRepository constructs the repository.
func NewVacationRepository(db *sqlx.DB) *VacationRepository {
	return &VacationRepository{db: db}
}

// Create inserts a new request.
func (r *VacationRepository) Create(ctx context.Context, v *models.VacationRequest) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Status == "" {
		v.Status = models.VacationPending
	}
	now := time.Now().UTC()
	if v.RequestedAt.IsZero() {
		v.RequestedAt = now
	}
	v.UpdatedAt = now

	const query = `INSERT INTO vacation_requests
	(id, employee_id, start_date, end_date, days_count, status, reason, manager_comment, requested_at, decision_at, decided_by, updated_at)
	VALUES (:id, :employee_id, :start_date, :end_date, :days_count, :status, :reason, :manager_comment, :requested_at, :decision_at, :decided_by, :updated_at)`
	if _, err := conn(ctx, r.db).NamedExecContext(ctx, query, v); err != nil {
		return fmt.Errorf("create vacation request: %w", err)
	}
	return nil
}

// FindByID fetches a request with its employee and decider details.
func (r *VacationRepository) FindByID(ctx context.Context, id string) (*models.VacationRequest, error) {
	var v models.VacationRequest
	if err := conn(ctx, r.db).GetContext(ctx, &v, vacationSelect+` WHERE v.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find vacation request: %w", err)
	}
	return &v, nil
}

// FindByIDForUpdate fetches and row-locks a request. Must run inside a transaction.
func (r *VacationRepository) FindByIDForUpdate(ctx context.Context, id string) (*models.VacationRequest, error) {
	var v models.VacationRequest
	if err := conn(ctx, r.db).GetContext(ctx, &v, vacationSelect+` WHERE v.id = $1 FOR UPDATE OF v`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock vacation request: %w", err)
	}
	return &v, nil
}

func vacationConditions(filter models.VacationFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("v.status = $%d", len(args)))
	}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		conditions = append(conditions, fmt.Sprintf("v.employee_id = $%d", len(args)))
	}
	if filter.ManagerID != "" {
		args = append(args, filter.ManagerID)
		team := fmt.Sprintf("e.manager_id = $%d", len(args))
		if filter.IncludeEmployeeID != "" {
			args = append(args, filter.IncludeEmployeeID)
			team = fmt.Sprintf("(%s OR v.employee_id = $%d)", team, len(args))
		}
		conditions = append(conditions, team)
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("v.end_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("v.start_date <= $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List returns a page of requests ordered newest first and the total count.
func (r *VacationRepository) List(ctx context.Context, filter models.VacationFilter) ([]models.VacationRequest, int, error) {
	where, args := vacationConditions(filter)
	page := filter.PageRequest.Normalize()

	db := conn(ctx, r.db)
	listQuery := fmt.Sprintf("%s%s ORDER BY v.requested_at DESC LIMIT %d OFFSET %d", vacationSelect, where, page.Size, page.Offset())
	var items []models.VacationRequest
	if err := db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list vacation requests: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM vacation_requests v JOIN employees e ON e.id = v.employee_id" + where
	var total int
	if err := db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count vacation requests: %w", err)
	}
	return items, total, nil
}

// ListForExport returns every request matching the filter, ignoring pagination.
func (r *VacationRepository) ListForExport(ctx context.Context, filter models.VacationFilter) ([]models.VacationRequest, error) {
	where, args := vacationConditions(filter)
	query := fmt.Sprintf("%s%s ORDER BY v.start_date ASC LIMIT %d", vacationSelect, where, exportLimit)
	var items []models.VacationRequest
	if err := conn(ctx, r.db).SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("export vacation requests: %w", err)
	}
	return items, nil
}

// FindOverlapping returns the employee's PENDING or APPROVED requests intersecting [start, end].
func (r *VacationRepository) FindOverlapping(ctx context.Context, employeeID string, start, end models.Date, excludeID string) ([]models.VacationRequest, error) {
	query := vacationSelect + ` WHERE v.employee_id = $1
  AND v.status IN ('PENDING', 'APPROVED')
  AND v.start_date <= $3 AND v.end_date >= $2
  AND v.id::text <> $4
ORDER BY v.start_date ASC`
	var items []models.VacationRequest
	if err := conn(ctx, r.db).SelectContext(ctx, &items, query, employeeID, start, end, excludeID); err != nil {
		return nil, fmt.Errorf("find overlapping vacation requests: %w", err)
	}
	return items, nil
}

// Calendar returns requests with the given statuses intersecting [start, end].
func (r *VacationRepository) Calendar(ctx context.Context, start, end models.Date, statuses []models.VacationStatus) ([]models.VacationRequest, error) {
	args := []interface{}{start, end}
	placeholders := make([]string, len(statuses))
	for i, status := range statuses {
		args = append(args, status)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := vacationSelect + ` WHERE v.start_date <= $2 AND v.end_date >= $1`
	if len(statuses) > 0 {
		query += fmt.Sprintf(" AND v.status IN (%s)", strings.Join(placeholders, ","))
	}
	query += ` ORDER BY v.start_date ASC, e.full_name ASC`

	var items []models.VacationRequest
	if err := conn(ctx, r.db).SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("load vacation calendar: %w", err)
	}
	return items, nil
}

// UpdatePending rewrites dates and reason of a request that is still PENDING.
// Returns sql.ErrNoRows when the request is no longer pending.
func (r *VacationRepository) UpdatePending(ctx context.Context, v *models.VacationRequest) error {
	v.UpdatedAt = time.Now().UTC()
	const query = `UPDATE vacation_requests
SET start_date = :start_date, end_date = :end_date, days_count = :days_count, reason = :reason, updated_at = :updated_at
WHERE id = :id AND status = 'PENDING'`
	result, err := conn(ctx, r.db).NamedExecContext(ctx, query, v)
	if err != nil {
		return fmt.Errorf("update vacation request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check vacation update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// StatusTransition describes a guarded status change.
type StatusTransition struct {
	ID         string
	From       models.VacationStatus
	To         models.VacationStatus
	DecidedBy  *string
	DecisionAt *time.Time
	Comment    *string
}

// UpdateStatus applies the transition only if the row is still in From.
// Returns sql.ErrNoRows when another writer changed the status first.
func (r *VacationRepository) UpdateStatus(ctx context.Context, t StatusTransition) error {
	setParts := []string{"status = :to", "updated_at = :updated_at"}
	if t.DecidedBy != nil {
		setParts = append(setParts, "decided_by = :decided_by", "decision_at = :decision_at")
	}
	if t.Comment != nil {
		setParts = append(setParts, "manager_comment = :comment")
	}
	query := fmt.Sprintf("UPDATE vacation_requests SET %s WHERE id = :id AND status = :from", strings.Join(setParts, ", "))

	result, err := conn(ctx, r.db).NamedExecContext(ctx, query, map[string]interface{}{
		"id":          t.ID,
		"from":        t.From,
		"to":          t.To,
		"decided_by":  t.DecidedBy,
		"decision_at": t.DecisionAt,
		"comment":     t.Comment,
		"updated_at":  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("update vacation status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check vacation status rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
