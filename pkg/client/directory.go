package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/noah-isme/vacation-api/internal/models"
	"github.com/noah-isme/vacation-api/internal/policy"
)

// EmployeeQuery filters ListEmployees.
type EmployeeQuery struct {
	Search    string
	ManagerID string
	Page      int
	Size      int
}

// ListEmployees is available to ADMIN and MANAGER.
func (c *Client) ListEmployees(ctx context.Context, q EmployeeQuery) (*models.Page[models.Employee], error) {
	if err := c.authorize(policy.ActionEmployeeView, policy.Resource{}); err != nil {
		return nil, err
	}
	query := pageQuery(q.Page, q.Size)
	if q.Search != "" {
		query.Set("search", q.Search)
	}
	if q.ManagerID != "" {
		query.Set("managerId", q.ManagerID)
	}
	var page models.Page[models.Employee]
	if err := c.do(ctx, call{method: http.MethodGet, path: "/employees", query: query}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetEmployee fetches one employee record.
func (c *Client) GetEmployee(ctx context.Context, id string) (*models.Employee, error) {
	if err := c.authorize(policy.ActionEmployeeView, policy.Resource{}); err != nil {
		return nil, err
	}
	var e models.Employee
	if err := c.do(ctx, call{method: http.MethodGet, path: "/employees/" + url.PathEscape(id)}, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Managers lists users eligible as managers. ADMIN only.
func (c *Client) Managers(ctx context.Context) ([]models.User, error) {
	if err := c.authorize(policy.ActionUserManage, policy.Resource{}); err != nil {
		return nil, err
	}
	var users []models.User
	if err := c.do(ctx, call{method: http.MethodGet, path: "/users/managers"}, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// AuditQuery filters ListAuditLogs. EntityType uses the per-entity route.
type AuditQuery struct {
	EntityType string
	EntityID   string
	ActorID    string
	Action     string
	Page       int
	Size       int
}

// ListAuditLogs is ADMIN only.
func (c *Client) ListAuditLogs(ctx context.Context, q AuditQuery) (*models.Page[models.AuditLog], error) {
	if err := c.authorize(policy.ActionAuditView, policy.Resource{}); err != nil {
		return nil, err
	}
	path := "/audit-logs"
	query := pageQuery(q.Page, q.Size)
	if q.EntityType != "" {
		path += "/entity/" + url.PathEscape(strings.ToUpper(q.EntityType))
	}
	if q.EntityID != "" {
		query.Set("entityId", q.EntityID)
	}
	if q.ActorID != "" {
		query.Set("actorId", q.ActorID)
	}
	if q.Action != "" {
		query.Set("action", q.Action)
	}
	var page models.Page[models.AuditLog]
	if err := c.do(ctx, call{method: http.MethodGet, path: path, query: query}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
