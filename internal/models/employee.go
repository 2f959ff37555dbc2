package models

import "time"

// Employee is an HR record, optionally linked to a login-capable user.
type Employee struct {
	ID          string    `db:"id" json:"id"`
	FullName    string    `db:"full_name" json:"fullName"`
	Email       string    `db:"email" json:"email"`
	ManagerID   *string   `db:"manager_id" json:"managerId,omitempty"`
	ManagerName *string   `db:"manager_name" json:"managerName,omitempty"`
	UserID      *string   `db:"user_id" json:"userId,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// EmployeeFilter narrows employee listings.
type EmployeeFilter struct {
	Search    string
	ManagerID string
	Active    *bool
	PageRequest
}

// EmployeeRequest creates or updates an employee.
type EmployeeRequest struct {
	FullName  string  `json:"fullName" validate:"required,max=255"`
	Email     string  `json:"email" validate:"required,email"`
	ManagerID *string `json:"managerId" validate:"omitempty,uuid"`
	UserID    *string `json:"userId" validate:"omitempty,uuid"`
}
