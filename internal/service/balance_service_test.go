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

func newBalanceHarness(teamScope bool) (*BalanceService, *fakeBalanceStore) {
	mgr := managerUserID
	employees := newFakeEmployeeStore(
		models.Employee{ID: managerEmpID, FullName: "Grace Manager", Active: true},
		models.Employee{ID: collabEmpID, FullName: "Ada Lovelace", ManagerID: &mgr, Active: true},
		models.Employee{ID: otherEmpID, FullName: "Bob Other", Active: true},
	)
	store := newFakeBalanceStore(
		*models.NewBalance(collabEmpID, 2026, 22),
		*models.NewBalance(otherEmpID, 2026, 25),
	)
	svc := NewBalanceService(store, employees, nil, BalanceConfig{TeamScope: teamScope})
	svc.now = func() time.Time { return time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC) }
	return svc, store
}

func TestBalanceServiceGet(t *testing.T) {
	svc, _ := newBalanceHarness(false)
	ctx := context.Background()

	b, err := svc.Get(ctx, collabPrincipal, collabEmpID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2026, b.Year)
	assert.Equal(t, 22, b.RemainingDays)

	_, err = svc.Get(ctx, collabPrincipal, otherEmpID, 2026)
	requireCode(t, err, appErrors.ErrForbidden.Code)

	b, err = svc.Get(ctx, managerPrincipal, otherEmpID, 2026)
	require.NoError(t, err)
	assert.Equal(t, 25, b.EntitledDays)

	_, err = svc.Get(ctx, adminPrincipal, collabEmpID, 2030)
	requireCode(t, err, appErrors.ErrNotFound.Code)

	_, err = svc.Get(ctx, adminPrincipal, "00000000-0000-0000-0000-00000000ffff", 2026)
	requireCode(t, err, appErrors.ErrNotFound.Code)
}

func TestBalanceServiceGetTeamScope(t *testing.T) {
	svc, _ := newBalanceHarness(true)
	ctx := context.Background()

	_, err := svc.Get(ctx, managerPrincipal, collabEmpID, 2026)
	require.NoError(t, err)

	_, err = svc.Get(ctx, managerPrincipal, otherEmpID, 2026)
	requireCode(t, err, appErrors.ErrForbidden.Code)
}

func TestBalanceServiceList(t *testing.T) {
	svc, _ := newBalanceHarness(false)
	ctx := context.Background()

	page, err := svc.List(ctx, adminPrincipal, 0, models.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalElements)

	page, err = svc.List(ctx, collabPrincipal, 2026, models.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, collabEmpID, page.Content[0].EmployeeID)

	page, err = svc.List(ctx, models.Principal{UserID: "00000000-0000-0000-0000-0000000000c9", Role: models.RoleCollaborator}, 2026, models.PageRequest{})
	require.NoError(t, err)
	assert.Zero(t, page.TotalElements)

	_, err = svc.List(ctx, models.Principal{}, 2026, models.PageRequest{})
	requireCode(t, err, appErrors.ErrUnauthorized.Code)
}

func TestBalanceServiceReserveAndRelease(t *testing.T) {
	svc, store := newBalanceHarness(false)
	ctx := context.Background()

	before, after, err := svc.Reserve(ctx, collabEmpID, 2026, 5)
	require.NoError(t, err)
	assert.Equal(t, 22, before.RemainingDays)
	assert.Equal(t, 17, after.RemainingDays)

	_, _, err = svc.Reserve(ctx, collabEmpID, 2026, 18)
	requireCode(t, err, appErrors.ErrInsufficientBalance.Code)
	stored, _ := store.get(collabEmpID, 2026)
	assert.Equal(t, 5, stored.UsedDays)

	_, after, err = svc.Release(ctx, collabEmpID, 2026, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, after.UsedDays)
	assert.Equal(t, 22, after.RemainingDays)

	_, _, err = svc.Release(ctx, collabEmpID, 2026, 1)
	requireCode(t, err, appErrors.ErrBalanceCorruption.Code)
	stored, _ = store.get(collabEmpID, 2026)
	assert.Equal(t, 0, stored.UsedDays)
}

func TestBalanceServiceLookupAndEnsure(t *testing.T) {
	svc, store := newBalanceHarness(false)
	ctx := context.Background()

	b, err := svc.Lookup(ctx, managerEmpID, 2026)
	require.NoError(t, err)
	assert.Nil(t, b)

	require.NoError(t, svc.EnsureForYear(ctx, managerEmpID, 0))
	created, ok := store.get(managerEmpID, 2026)
	require.True(t, ok)
	assert.Equal(t, DefaultEntitledDays, created.EntitledDays)
	assert.Equal(t, DefaultEntitledDays, created.RemainingDays)

	// existing rows are left alone
	require.NoError(t, svc.EnsureForYear(ctx, otherEmpID, 2026))
	existing, _ := store.get(otherEmpID, 2026)
	assert.Equal(t, 25, existing.EntitledDays)
}
