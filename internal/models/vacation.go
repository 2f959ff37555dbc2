package models

import "time"

// VacationStatus is the lifecycle state of a vacation request.
type VacationStatus string

const (
	VacationPending   VacationStatus = "PENDING"
	VacationApproved  VacationStatus = "APPROVED"
	VacationRejected  VacationStatus = "REJECTED"
	VacationCancelled VacationStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s VacationStatus) Valid() bool {
	switch s {
	case VacationPending, VacationApproved, VacationRejected, VacationCancelled:
		return true
	}
	return false
}

// VacationRequest is a leave request for one employee over an inclusive date range.
type VacationRequest struct {
	ID             string         `db:"id" json:"id"`
	EmployeeID     string         `db:"employee_id" json:"employeeId"`
	EmployeeName   string         `db:"employee_name" json:"employeeName"`
	EmployeeEmail  string         `db:"employee_email" json:"employeeEmail"`
	ManagerID      *string        `db:"employee_manager_id" json:"managerId,omitempty"`
	StartDate      Date           `db:"start_date" json:"startDate"`
	EndDate        Date           `db:"end_date" json:"endDate"`
	DaysCount      int            `db:"days_count" json:"daysCount"`
	Status         VacationStatus `db:"status" json:"status"`
	Reason         *string        `db:"reason" json:"reason,omitempty"`
	ManagerComment *string        `db:"manager_comment" json:"managerComment,omitempty"`
	RequestedAt    time.Time      `db:"requested_at" json:"requestedAt"`
	DecisionAt     *time.Time     `db:"decision_at" json:"decisionAt,omitempty"`
	DecidedBy      *string        `db:"decided_by" json:"decidedByUserId,omitempty"`
	DecidedByEmail *string        `db:"decided_by_email" json:"decidedByEmail,omitempty"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`
}

// BalanceYear is the ledger year a request is charged against.
func (v VacationRequest) BalanceYear() int {
	return v.StartDate.Year()
}

// Overlaps reports whether the inclusive range [start, end] intersects the request.
func (v VacationRequest) Overlaps(start, end Date) bool {
	return !v.StartDate.After(end.Time) && !v.EndDate.Before(start.Time)
}

// VacationFilter narrows vacation listings.
type VacationFilter struct {
	Status     *VacationStatus
	EmployeeID string
	ManagerID  string
	// IncludeEmployeeID widens a ManagerID filter to one extra employee.
	IncludeEmployeeID string
	From              *Date
	To                *Date
	PageRequest
}

// CreateVacationRequest is the payload for submitting a request. EmployeeID
// defaults to the caller's own employee record.
type CreateVacationRequest struct {
	EmployeeID string  `json:"employeeId" validate:"omitempty,uuid"`
	StartDate  Date    `json:"startDate"`
	EndDate    Date    `json:"endDate"`
	Reason     *string `json:"reason" validate:"omitempty,max=1000"`
}

// UpdateVacationRequest rewrites a PENDING request.
type UpdateVacationRequest struct {
	StartDate Date    `json:"startDate"`
	EndDate   Date    `json:"endDate"`
	Reason    *string `json:"reason" validate:"omitempty,max=1000"`
}

// VacationDecisionRequest carries the optional reviewer comment.
type VacationDecisionRequest struct {
	Comment *string `json:"comment" validate:"omitempty,max=1000"`
}

// CalendarQuery bounds a calendar window.
type CalendarQuery struct {
	StartDate Date
	EndDate   Date
}
