// Package policy holds the role based authorization table.
package policy

import (
	"fmt"

	"github.com/noah-isme/vacation-api/internal/models"
	appErrors "github.com/noah-isme/vacation-api/pkg/errors"
)

// Action names an operation subject to authorization.
type Action string

const (
	ActionEmployeeView    Action = "employee.view"
	ActionEmployeeManage  Action = "employee.manage"
	ActionUserManage      Action = "user.manage"
	ActionAuditView       Action = "audit.view"
	ActionVacationCreate  Action = "vacation.create"
	ActionVacationView    Action = "vacation.view"
	ActionVacationListAll Action = "vacation.list_all"
	ActionVacationUpdate  Action = "vacation.update"
	ActionVacationCancel  Action = "vacation.cancel"
	ActionVacationApprove Action = "vacation.approve"
	ActionVacationReject  Action = "vacation.reject"
	ActionVacationExport  Action = "vacation.export"
	ActionBalanceView     Action = "balance.view"
	ActionBalanceListAll  Action = "balance.list_all"
	ActionCalendarView    Action = "calendar.view"
	ActionProfileView     Action = "profile.view"
	ActionProfileUpdate   Action = "profile.update"
)

// Actions lists every known action.
var Actions = []Action{
	ActionEmployeeView, ActionEmployeeManage, ActionUserManage, ActionAuditView,
	ActionVacationCreate, ActionVacationView, ActionVacationListAll, ActionVacationUpdate,
	ActionVacationCancel, ActionVacationApprove, ActionVacationReject, ActionVacationExport,
	ActionBalanceView, ActionBalanceListAll, ActionCalendarView, ActionProfileView, ActionProfileUpdate,
}

// Scope is how far a grant reaches.
type Scope int

const (
	// ScopeNone denies the action.
	ScopeNone Scope = iota
	// ScopeOwn allows the action on resources owned by the principal's employee record.
	ScopeOwn
	// ScopeAny allows the action on every resource.
	ScopeAny
)

var table = map[models.UserRole]map[Action]Scope{
	models.RoleManager: {
		ActionEmployeeView:    ScopeAny,
		ActionVacationCreate:  ScopeOwn,
		ActionVacationView:    ScopeAny,
		ActionVacationListAll: ScopeAny,
		ActionVacationUpdate:  ScopeOwn,
		ActionVacationCancel:  ScopeOwn,
		ActionVacationApprove: ScopeAny,
		ActionVacationReject:  ScopeAny,
		ActionVacationExport:  ScopeAny,
		ActionBalanceView:     ScopeAny,
		ActionBalanceListAll:  ScopeAny,
		ActionCalendarView:    ScopeAny,
		ActionProfileView:     ScopeAny,
		ActionProfileUpdate:   ScopeAny,
	},
	models.RoleCollaborator: {
		ActionVacationCreate: ScopeOwn,
		ActionVacationView:   ScopeOwn,
		ActionVacationUpdate: ScopeOwn,
		ActionVacationCancel: ScopeOwn,
		ActionBalanceView:    ScopeOwn,
		ActionCalendarView:   ScopeAny,
		ActionProfileView:    ScopeAny,
		ActionProfileUpdate:  ScopeAny,
	},
}

// team scoping narrows these manager grants to their direct reports.
var teamScoped = map[Action]bool{
	ActionEmployeeView:    true,
	ActionVacationView:    true,
	ActionVacationApprove: true,
	ActionVacationReject:  true,
	ActionBalanceView:     true,
}

// Resource describes the target of an action.
type Resource struct {
	// OwnerEmployeeID is the employee the resource belongs to.
	OwnerEmployeeID string
	// ManagerUserID is the user managing that employee, if any.
	ManagerUserID string
}

// ScopeOf returns the grant for role on action.
func ScopeOf(role models.UserRole, action Action) Scope {
	if role == models.RoleAdmin {
		return ScopeAny
	}
	return table[role][action]
}

// Policy evaluates the table, optionally restricting managers to their team.
type Policy struct {
	TeamScope bool
}

// Can reports whether p may perform action on res.
func (pol Policy) Can(p models.Principal, action Action, res Resource) bool {
	if !p.Authenticated() {
		return false
	}
	owns := p.EmployeeID != "" && res.OwnerEmployeeID == p.EmployeeID
	switch ScopeOf(p.Role, action) {
	case ScopeAny:
		if pol.TeamScope && p.Role == models.RoleManager && teamScoped[action] && res.OwnerEmployeeID != "" {
			return owns || (res.ManagerUserID != "" && res.ManagerUserID == p.UserID)
		}
		return true
	case ScopeOwn:
		return owns
	default:
		return false
	}
}

// Authorize is Can returning a FORBIDDEN error on denial.
func (pol Policy) Authorize(p models.Principal, action Action, res Resource) error {
	if !p.Authenticated() {
		return appErrors.ErrUnauthorized
	}
	if pol.Can(p, action, res) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s may not perform %s", p.Role, action))
}

// Can evaluates the table without team scoping.
func Can(p models.Principal, action Action, res Resource) bool {
	return Policy{}.Can(p, action, res)
}

// Authorize evaluates the table without team scoping.
func Authorize(p models.Principal, action Action, res Resource) error {
	return Policy{}.Authorize(p, action, res)
}
