package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin        UserRole = "ADMIN"
	RoleManager      UserRole = "MANAGER"
	RoleCollaborator UserRole = "COLLABORATOR"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleCollaborator:
		return true
	}
	return false
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"fullName"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	SortBy    string
	SortOrder string
	PageRequest
}

// CreateUserRequest is the administrator payload for provisioning an account.
type CreateUserRequest struct {
	Email     string   `json:"email" validate:"required,email"`
	Password  string   `json:"password" validate:"required,min=8"`
	FullName  string   `json:"fullName" validate:"required,max=255"`
	Role      UserRole `json:"role" validate:"required,oneof=ADMIN MANAGER COLLABORATOR"`
	ManagerID *string  `json:"managerId" validate:"omitempty,uuid"`
}

// UpdateUserRequest edits an account. An empty password keeps the current one.
type UpdateUserRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	FullName string   `json:"fullName" validate:"omitempty,max=255"`
	Role     UserRole `json:"role" validate:"required,oneof=ADMIN MANAGER COLLABORATOR"`
	Password string   `json:"password" validate:"omitempty,min=8"`
	Active   *bool    `json:"active"`
}

// HasManagerRole reports whether the user may be assigned as a manager.
func (u *User) HasManagerRole() bool {
	return u.Role == RoleManager || u.Role == RoleAdmin
}
