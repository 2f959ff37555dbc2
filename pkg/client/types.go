package client

import (
	"github.com/noah-isme/vacation-api/internal/models"
	"github.com/noah-isme/vacation-api/internal/policy"
)

// Wire and policy types shared with the server live under internal/. These
// aliases let importers outside this module name every type in the Client
// signatures.
type (
	Date                  = models.Date
	UserRole              = models.UserRole
	UserInfo              = models.UserInfo
	User                  = models.User
	Profile               = models.Profile
	Principal             = models.Principal
	SignUpRequest         = models.SignUpRequest
	Employee              = models.Employee
	VacationStatus        = models.VacationStatus
	VacationRequest       = models.VacationRequest
	CreateVacationRequest = models.CreateVacationRequest
	UpdateVacationRequest = models.UpdateVacationRequest
	VacationBalance       = models.VacationBalance
	AuditLog              = models.AuditLog

	EmployeePage = models.Page[models.Employee]
	VacationPage = models.Page[models.VacationRequest]
	BalancePage  = models.Page[models.VacationBalance]
	AuditLogPage = models.Page[models.AuditLog]

	Action   = policy.Action
	Resource = policy.Resource
)

const (
	RoleAdmin        = models.RoleAdmin
	RoleManager      = models.RoleManager
	RoleCollaborator = models.RoleCollaborator

	VacationPending   = models.VacationPending
	VacationApproved  = models.VacationApproved
	VacationRejected  = models.VacationRejected
	VacationCancelled = models.VacationCancelled

	ActionEmployeeView    = policy.ActionEmployeeView
	ActionUserManage      = policy.ActionUserManage
	ActionAuditView       = policy.ActionAuditView
	ActionVacationCreate  = policy.ActionVacationCreate
	ActionVacationUpdate  = policy.ActionVacationUpdate
	ActionVacationCancel  = policy.ActionVacationCancel
	ActionVacationApprove = policy.ActionVacationApprove
	ActionVacationReject  = policy.ActionVacationReject
	ActionCalendarView    = policy.ActionCalendarView
)

// DateLayout is the YYYY-MM-DD wire format.
const DateLayout = models.DateLayout

// NewDate builds a calendar date.
var NewDate = models.NewDate

// ParseDate parses YYYY-MM-DD.
var ParseDate = models.ParseDate

// DaysBetween returns the inclusive day span the server charges for a request.
var DaysBetween = models.DaysBetween
