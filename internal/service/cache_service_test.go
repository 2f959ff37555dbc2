package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vacation-api/internal/models"
)

func TestCalendarCacheStoreAfterInvalidateIsDiscarded(t *testing.T) {
	ctx := context.Background()
	store := newFakeCalendarStore()
	cache := NewCalendarCache(store, nil, time.Minute, nil, true)
	start, end := models.NewDate(2026, time.March, 1), models.NewDate(2026, time.March, 31)

	_, key, hit := cache.Lookup(ctx, start, end)
	require.False(t, hit)
	require.NotEmpty(t, key)

	// a transition commits between the read and the write-back
	cache.Invalidate(ctx)
	cache.Store(ctx, key, []models.VacationRequest{{ID: "old", Status: models.VacationPending}})

	items, _, hit := cache.Lookup(ctx, start, end)
	assert.False(t, hit)
	assert.Empty(t, items)
}

func TestCalendarCacheHitUnderCurrentGeneration(t *testing.T) {
	ctx := context.Background()
	store := newFakeCalendarStore()
	cache := NewCalendarCache(store, nil, time.Minute, nil, true)
	start, end := models.NewDate(2026, time.March, 1), models.NewDate(2026, time.March, 31)

	_, key, _ := cache.Lookup(ctx, start, end)
	cache.Store(ctx, key, []models.VacationRequest{{ID: "v1", Status: models.VacationApproved}})

	items, _, hit := cache.Lookup(ctx, start, end)
	require.True(t, hit)
	require.Len(t, items, 1)
	assert.Equal(t, "v1", items[0].ID)
}

func TestCalendarCacheDisabledNeverStores(t *testing.T) {
	ctx := context.Background()
	store := newFakeCalendarStore()
	cache := NewCalendarCache(store, nil, time.Minute, nil, false)

	_, key, hit := cache.Lookup(ctx, models.NewDate(2026, time.March, 1), models.NewDate(2026, time.March, 2))
	assert.False(t, hit)
	assert.Empty(t, key)
	cache.Store(ctx, key, []models.VacationRequest{{ID: "v1"}})
	assert.Empty(t, store.values)
}
