package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facility-import/backend/internal/adapters/memory"
	"github.com/zatekoja/facility-import/backend/internal/domain/entities"
	"github.com/zatekoja/facility-import/backend/internal/domain/providers"
	"github.com/zatekoja/facility-import/backend/internal/domain/repositories"
)

// undeletableStore refuses to delete the listed ids
type undeletableStore struct {
	*memory.FacilityStore
	locked map[string]bool
}

func (s *undeletableStore) Delete(ctx context.Context, id string) error {
	if s.locked[id] {
		return errors.New("row is locked")
	}
	return s.FacilityStore.Delete(ctx, id)
}

func seedFacility(t *testing.T, store repositories.FacilityRepository, name, city string, created time.Time, autoImported bool) *entities.Facility {
	t.Helper()
	f, err := store.Create(context.Background(), &entities.Facility{
		Name:         name,
		City:         city,
		Province:     entities.ProvinceWesternCape,
		AutoImported: autoImported,
		CreatedAt:    created,
	})
	require.NoError(t, err)
	return f
}

func TestSweep_KeepsEarliestOfEachGroup(t *testing.T) {
	ctx := context.Background()
	store := memory.NewFacilityStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	later := seedFacility(t, store, "Groote Schuur Hospital", "Cape Town", base.Add(time.Hour), true)
	earliest := seedFacility(t, store, "groote schuur hospital", "CAPE TOWN", base, true)
	distinct := seedFacility(t, store, "Tygerberg Hospital", "Cape Town", base.Add(2*time.Hour), true)

	publisher := &mockPublisher{}
	publisher.On("Publish", mock.Anything, providers.EventChannelImports, mock.MatchedBy(func(e *entities.ImportEvent) bool {
		return e.EventType == entities.ImportEventTypeDedupCompleted && e.Dedup != nil && e.Dedup.RecordsRemoved == 1
	})).Return(nil).Once()
	search := &fakeSearch{indexed: map[string]bool{later.ID: true, earliest.ID: true, distinct.ID: true}}

	svc := NewDeduplicationService(store, search, nil, publisher, nil)
	result, err := svc.Sweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, result.DuplicateGroupsFound)
	assert.Equal(t, 1, result.RecordsRemoved)
	assert.Equal(t, 0, result.RecordsFailed)

	remaining, err := store.ListAll(ctx, repositories.FacilityFilter{OrderBy: repositories.SortCreatedAsc})
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, earliest.ID, remaining[0].ID)
	assert.Equal(t, distinct, remaining[1])
	assert.False(t, search.indexed[later.ID])
	publisher.AssertExpectations(t)
}

func TestSweep_DoesNotMergeFuzzyMatches(t *testing.T) {
	store := memory.NewFacilityStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedFacility(t, store, "Groote Schuur Hospital", "Cape Town", base, true)
	seedFacility(t, store, "Groote Schuur Hospitals", "Cape Town", base.Add(time.Minute), true)

	result, err := NewDeduplicationService(store, nil, nil, nil, nil).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.DuplicateGroupsFound)
	assert.Equal(t, 0, result.RecordsRemoved)
}

func TestSweep_IgnoresManualRecords(t *testing.T) {
	ctx := context.Background()
	store := memory.NewFacilityStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	manual := seedFacility(t, store, "Groote Schuur Hospital", "Cape Town", base, false)
	imported := seedFacility(t, store, "Groote Schuur Hospital", "Cape Town", base.Add(time.Minute), true)

	result, err := NewDeduplicationService(store, nil, nil, nil, nil).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.DuplicateGroupsFound)

	count, err := store.Count(ctx, repositories.FacilityFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NotEqual(t, manual.ID, imported.ID)
}

func TestSweep_CountsFailedDeletions(t *testing.T) {
	ctx := context.Background()
	store := &undeletableStore{FacilityStore: memory.NewFacilityStore(), locked: map[string]bool{}}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seedFacility(t, store, "Karl Bremer Hospital", "Bellville", base, true)
	stuck := seedFacility(t, store, "Karl Bremer Hospital", "Bellville", base.Add(time.Minute), true)
	seedFacility(t, store, "Karl Bremer Hospital", "Bellville", base.Add(2*time.Minute), true)
	store.locked[stuck.ID] = true

	cache := newFakeCache()
	result, err := NewDeduplicationService(store, nil, cache, nil, nil).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DuplicateGroupsFound)
	assert.Equal(t, 1, result.RecordsRemoved)
	assert.Equal(t, 1, result.RecordsFailed)
	assert.Equal(t, 1, cache.deletes)
}

func TestSweep_GroupsAgreeWithExactMatch(t *testing.T) {
	ctx := context.Background()
	store := memory.NewFacilityStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// Final sigma lower-cases differently from capital sigma but folds equal
	kept := seedFacility(t, store, "Κλινικς", "Cape Town", base, true)
	dup := seedFacility(t, store, "ΚΛΙΝΙΚΣ", "Cape Town", base.Add(time.Minute), true)
	require.True(t, ExactMatch(kept, dup))

	result, err := NewDeduplicationService(store, nil, nil, nil, nil).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DuplicateGroupsFound)
	assert.Equal(t, 1, result.RecordsRemoved)

	remaining, err := store.ListAll(ctx, repositories.FacilityFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, kept.ID, remaining[0].ID)
}
