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

const userSelect = `SELECT id, email, password_hash, full_name, role, active, last_login, created_at, updated_at FROM users`

// userSortColumns maps accepted sort keys to their column. Anything else
// falls back to newest first.
var userSortColumns = map[string]string{
	"email":      "email",
	"full_name":  "full_name",
	"fullName":   "full_name",
	"role":       "role",
	"created_at": "created_at",
	"createdAt":  "created_at",
}

// UserRepository stores login accounts and their refresh sessions.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// getUser runs a single-row lookup. sql.ErrNoRows is returned unwrapped so
// services can map it to NOT_FOUND.
func (r *UserRepository) getUser(ctx context.Context, op, where string, args ...interface{}) (*models.User, error) {
	var user models.User
	err := conn(ctx, r.db).GetContext(ctx, &user, userSelect+" WHERE "+where+" LIMIT 1", args...)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}

// FindByEmail looks an account up case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, "find user by email", "LOWER(email) = LOWER($1)", strings.TrimSpace(email))
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.getUser(ctx, "find user by id", "id = $1", id)
}

// FindManagers lists active accounts that can be assigned as an employee's manager.
func (r *UserRepository) FindManagers(ctx context.Context) ([]models.User, error) {
	query := userSelect + ` WHERE active = TRUE AND role IN ($1, $2) ORDER BY full_name ASC`
	var users []models.User
	if err := conn(ctx, r.db).SelectContext(ctx, &users, query, models.RoleManager, models.RoleAdmin); err != nil {
		return nil, fmt.Errorf("find managers: %w", err)
	}
	return users, nil
}

func userConditions(filter models.UserFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(full_name) LIKE $%d)", len(args), len(args)))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func userOrder(filter models.UserFilter) string {
	column, ok := userSortColumns[filter.SortBy]
	if !ok {
		return "created_at DESC, id ASC"
	}
	direction := "ASC"
	if strings.EqualFold(filter.SortOrder, "desc") {
		direction = "DESC"
	}
	return column + " " + direction + ", id ASC"
}

// List returns one page of accounts plus the unpaged total.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	where, args := userConditions(filter)
	page := filter.PageRequest.Normalize()

	db := conn(ctx, r.db)
	var total int
	if err := db.GetContext(ctx, &total, "SELECT COUNT(*) FROM users"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	if total == 0 {
		return []models.User{}, 0, nil
	}

	query := fmt.Sprintf("%s%s ORDER BY %s LIMIT %d OFFSET %d", userSelect, where, userOrder(filter), page.Size, page.Offset())
	users := make([]models.User, 0, page.Size)
	if err := db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// Create inserts a new account. The email is stored lower-cased.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	const query = `INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
VALUES (:id, :email, :password_hash, :full_name, :role, :active, :created_at, :updated_at)`
	if _, err := conn(ctx, r.db).NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update writes the profile columns. Password and last login have their own setters.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	const query = `UPDATE users SET email = :email, full_name = :full_name, role = :role, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := conn(ctx, r.db).NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (r *UserRepository) touch(ctx context.Context, op, set string, id string, args ...interface{}) error {
	query := "UPDATE users SET " + set + " WHERE id = $1"
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, append([]interface{}{id}, args...)...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateLastLogin records a successful sign-in.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return r.touch(ctx, "update last login", "last_login = $2, updated_at = $2", id, ts)
}

// UpdatePassword replaces the stored bcrypt hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	return r.touch(ctx, "update password", "password_hash = $2, updated_at = $3", id, passwordHash, updatedAt)
}

// Deactivate disables an account. Rows are never removed.
func (r *UserRepository) Deactivate(ctx context.Context, id string) error {
	return r.touch(ctx, "deactivate user", "active = FALSE, updated_at = $2", id, time.Now().UTC())
}
