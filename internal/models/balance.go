package models

import (
	"fmt"
	"time"

	appErrors "github.com/noah-isme/vacation-api/pkg/errors"
)

// VacationBalance is the per-employee, per-year leave ledger.
// RemainingDays always equals EntitledDays - UsedDays.
type VacationBalance struct {
	ID            string    `db:"id" json:"id"`
	EmployeeID    string    `db:"employee_id" json:"employeeId"`
	EmployeeName  string    `db:"employee_name" json:"employeeName,omitempty"`
	Year          int       `db:"year" json:"year"`
	EntitledDays  int       `db:"entitled_days" json:"entitledDays"`
	UsedDays      int       `db:"used_days" json:"usedDays"`
	RemainingDays int       `db:"remaining_days" json:"remainingDays"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// NewBalance opens an unused ledger for the year.
func NewBalance(employeeID string, year, entitled int) *VacationBalance {
	return &VacationBalance{
		EmployeeID:    employeeID,
		Year:          year,
		EntitledDays:  entitled,
		RemainingDays: entitled,
	}
}

// Covers reports whether days fit in what is left.
func (b *VacationBalance) Covers(days int) bool {
	return b.UsedDays+days <= b.EntitledDays
}

// Reserve charges days against the ledger. The balance is unchanged on error.
func (b *VacationBalance) Reserve(days int) error {
	if days <= 0 {
		return appErrors.WithField("daysCount", "days must be positive")
	}
	if !b.Covers(days) {
		return appErrors.Clone(appErrors.ErrInsufficientBalance,
			fmt.Sprintf("insufficient balance: requested %d days, %d remaining", days, b.EntitledDays-b.UsedDays))
	}
	b.UsedDays += days
	b.RemainingDays = b.EntitledDays - b.UsedDays
	return nil
}

// Release returns days to the ledger. Going below zero used days means the
// ledger and the request history disagree, so it fails instead of clamping.
func (b *VacationBalance) Release(days int) error {
	if days <= 0 {
		return appErrors.WithField("daysCount", "days must be positive")
	}
	if b.UsedDays-days < 0 {
		return appErrors.Clone(appErrors.ErrBalanceCorruption,
			fmt.Sprintf("cannot release %d days: only %d used in %d", days, b.UsedDays, b.Year))
	}
	b.UsedDays -= days
	b.RemainingDays = b.EntitledDays - b.UsedDays
	return nil
}

// BalanceFilter narrows balance listings.
type BalanceFilter struct {
	Year       int
	EmployeeID string
	ManagerID  string
	PageRequest
}
