package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vacation-api/internal/models"
	appErrors "github.com/noah-isme/vacation-api/pkg/errors"
)

func (h *accountHarness) userService() *UserService {
	return NewUserService(h.users, h.employees, h.ledger, h.tx, h.audit, nil, nil)
}

func TestUserServiceRequiresAdmin(t *testing.T) {
	h := newAccountHarness(t)
	svc := h.userService()
	ctx := context.Background()

	_, err := svc.List(ctx, managerPrincipal, models.UserFilter{})
	requireCode(t, err, appErrors.ErrForbidden.Code)
	_, err = svc.Get(ctx, collabPrincipal, adminUserID)
	requireCode(t, err, appErrors.ErrForbidden.Code)
	_, err = svc.Managers(ctx, models.Principal{})
	requireCode(t, err, appErrors.ErrUnauthorized.Code)
	err = svc.Delete(ctx, managerPrincipal, collabUserID, models.RequestMeta{})
	requireCode(t, err, appErrors.ErrForbidden.Code)
}

func TestUserServiceListAndManagers(t *testing.T) {
	h := newAccountHarness(t)
	svc := h.userService()
	ctx := context.Background()

	page, err := svc.List(ctx, adminPrincipal, models.UserFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalElements)
	assert.Equal(t, models.DefaultPageSize, page.Size)

	managers, err := svc.Managers(ctx, adminPrincipal)
	require.NoError(t, err)
	require.Len(t, managers, 2)
	for _, m := range managers {
		assert.NotEqual(t, models.RoleCollaborator, m.Role)
	}

	_, err = svc.Get(ctx, adminPrincipal, "00000000-0000-0000-0000-00000000ffff")
	requireCode(t, err, appErrors.ErrNotFound.Code)
}

func TestUserServiceCreateCollaborator(t *testing.T) {
	h := newAccountHarness(t)
	svc := h.userService()
	ctx := context.Background()
	mgr := managerUserID

	_, err := svc.Create(ctx, adminPrincipal, models.CreateUserRequest{
		Email: "lin@example.com", Password: "supersecret", FullName: "Lin", Role: models.RoleCollaborator,
	}, models.RequestMeta{})
	requireCode(t, err, appErrors.ErrValidation.Code)
	assert.Contains(t, appErrors.FromError(err).Fields, "managerId")

	user, err := svc.Create(ctx, adminPrincipal, models.CreateUserRequest{
		Email: "Lin@Example.com", Password: "supersecret", FullName: "Lin", Role: models.RoleCollaborator, ManagerID: &mgr,
	}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "lin@example.com", user.Email)
	assert.True(t, user.Active)

	employee, err := h.employees.FindByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "lin@example.com", employee.Email)
	_, ok := h.balances.get(employee.ID, time.Now().UTC().Year())
	assert.True(t, ok)
	assert.Equal(t, []string{models.AuditActionUserCreate}, h.audit.actions())

	_, err = svc.Create(ctx, adminPrincipal, models.CreateUserRequest{
		Email: "lin@example.com", Password: "supersecret", FullName: "Lin Again", Role: models.RoleManager,
	}, models.RequestMeta{})
	requireCode(t, err, appErrors.ErrConflict.Code)
}

func TestUserServiceCreateAdminHasNoEmployee(t *testing.T) {
	h := newAccountHarness(t)
	svc := h.userService()
	ctx := context.Background()

	user, err := svc.Create(ctx, adminPrincipal, models.CreateUserRequest{
		Email: "ops@example.com", Password: "supersecret", FullName: "Ops", Role: models.RoleAdmin,
	}, models.RequestMeta{})
	require.NoError(t, err)
	_, err = h.employees.FindByUserID(ctx, user.ID)
	assert.Error(t, err)
	assert.Empty(t, h.balances.balances)
}

func TestUserServiceUpdateSyncsEmployee(t *testing.T) {
	h := newAccountHarness(t)
	svc := h.userService()
	ctx := context.Background()

	updated, err := svc.Update(ctx, adminPrincipal, collabUserID, models.UpdateUserRequest{
		Email:    "ada.king@example.com",
		FullName: "Ada King",
		Role:     models.RoleCollaborator,
		Password: "brandnewpass",
	}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "ada.king@example.com", updated.Email)

	employee, err := h.employees.get(collabEmpID)
	require.NoError(t, err)
	assert.Equal(t, "ada.king@example.com", employee.Email)
	assert.Equal(t, "Ada King", employee.FullName)
	assert.Contains(t, h.users.revokedAll, collabUserID)
	assert.NotEqual(t, "", h.users.user(collabUserID).PasswordHash)

	_, err = svc.Update(ctx, adminPrincipal, collabUserID, models.UpdateUserRequest{
		Email: "manager@example.com", Role: models.RoleCollaborator,
	}, models.RequestMeta{})
	requireCode(t, err, appErrors.ErrConflict.Code)

	inactive := false
	_, err = svc.Update(ctx, adminPrincipal, adminUserID, models.UpdateUserRequest{
		Email: "admin@example.com", Role: models.RoleAdmin, Active: &inactive,
	}, models.RequestMeta{})
	requireCode(t, err, appErrors.ErrValidation.Code)
}

func TestUserServiceDelete(t *testing.T) {
	h := newAccountHarness(t)
	svc := h.userService()
	ctx := context.Background()

	err := svc.Delete(ctx, adminPrincipal, adminUserID, models.RequestMeta{})
	requireCode(t, err, appErrors.ErrValidation.Code)

	require.NoError(t, svc.Delete(ctx, adminPrincipal, collabUserID, models.RequestMeta{}))
	assert.False(t, h.users.user(collabUserID).Active)
	assert.Contains(t, h.users.revokedAll, collabUserID)

	employee, err := h.employees.get(collabEmpID)
	require.NoError(t, err)
	assert.Nil(t, employee.UserID)
	assert.True(t, employee.Active)

	entries := h.audit.entries
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditActionUserDelete, entries[0].Action)
	assert.Equal(t, collabEmpID, entries[0].Metadata["unlinkedEmployeeId"])
}
