package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Audit action codes.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionSignUp         = "SIGNUP"
	AuditActionPasswordChange = "CHANGE_PASSWORD"
	AuditActionProfileUpdate  = "UPDATE_PROFILE"

	AuditActionUserCreate = "CREATE_USER"
	AuditActionUserUpdate = "UPDATE_USER"
	AuditActionUserDelete = "DELETE_USER"

	AuditActionEmployeeCreate = "CREATE_EMPLOYEE"
	AuditActionEmployeeUpdate = "UPDATE_EMPLOYEE"
	AuditActionEmployeeDelete = "DELETE_EMPLOYEE"

	AuditActionVacationCreate  = "CREATE_VACATION"
	AuditActionVacationUpdate  = "UPDATE_VACATION"
	AuditActionVacationApprove = "APPROVE_VACATION"
	AuditActionVacationReject  = "REJECT_VACATION"
	AuditActionVacationCancel  = "CANCEL_VACATION"
)

// Audited entity types.
const (
	EntityAuth            = "AUTH"
	EntityUser            = "USER"
	EntityEmployee        = "EMPLOYEE"
	EntityVacationRequest = "VACATION_REQUEST"
)

// AuditLog represents an append-only audit trail record.
type AuditLog struct {
	ID         string         `db:"id" json:"id"`
	ActorID    *string        `db:"actor_id" json:"actorId,omitempty"`
	ActorEmail *string        `db:"actor_email" json:"actorEmail,omitempty"`
	Action     string         `db:"action" json:"action"`
	EntityType string         `db:"entity_type" json:"entityType"`
	EntityID   *string        `db:"entity_id" json:"entityId,omitempty"`
	Metadata   types.JSONText `db:"metadata" json:"metadata"`
	IPAddress  string         `db:"ip_address" json:"ipAddress"`
	UserAgent  string         `db:"user_agent" json:"userAgent"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
}

// AuditFilter narrows audit log listings.
type AuditFilter struct {
	EntityType string
	EntityID   string
	ActorID    string
	Action     string
	PageRequest
}

// RequestMeta carries caller network details into audit records.
type RequestMeta struct {
	IP        string
	UserAgent string
	RequestID string
}
