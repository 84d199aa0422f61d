package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zatekoja/facility-import/backend/internal/domain/entities"
	"github.com/zatekoja/facility-import/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/facility-import/backend/pkg/errors"
)

// FacilityStore is an in-process facility repository used when no database is
// configured and in tests.
type FacilityStore struct {
	mu         sync.RWMutex
	facilities map[string]*storedFacility
	seq        int64
	now        func() time.Time
}

type storedFacility struct {
	facility entities.Facility
	seq      int64
}

var _ repositories.FacilityRepository = (*FacilityStore)(nil)

// NewFacilityStore creates an empty store
func NewFacilityStore() *FacilityStore {
	return &FacilityStore{
		facilities: map[string]*storedFacility{},
		now:        time.Now,
	}
}

// Create stores a copy of facility and returns it with its ID set
func (s *FacilityStore) Create(_ context.Context, facility *entities.Facility) (*entities.Facility, error) {
	if strings.TrimSpace(facility.Name) == "" {
		return nil, apperrors.NewValidationError("facility name is required")
	}
	if (facility.ExternalID == nil) != (facility.ExternalSource == nil) {
		return nil, apperrors.NewValidationError("external id and external source must be set together")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if facility.AutoImported && facility.ExternalID != nil {
		if existing := s.findByExternalIDLocked(*facility.ExternalSource, *facility.ExternalID); existing != nil {
			return nil, apperrors.NewConflictError(fmt.Sprintf("facility %s:%s already exists", *facility.ExternalSource, *facility.ExternalID))
		}
	}

	stored := *facility
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if _, exists := s.facilities[stored.ID]; exists {
		return nil, apperrors.NewConflictError(fmt.Sprintf("facility %s already exists", stored.ID))
	}
	now := s.now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.LastUpdated.IsZero() {
		stored.LastUpdated = now
	}

	s.seq++
	s.facilities[stored.ID] = &storedFacility{facility: stored, seq: s.seq}
	out := stored
	return &out, nil
}

// Update applies the mutable fields to an existing record
func (s *FacilityStore) Update(_ context.Context, id string, update *entities.FacilityUpdate) (*entities.Facility, error) {
	if strings.TrimSpace(update.Name) == "" {
		return nil, apperrors.NewValidationError("facility name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.facilities[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("facility %s not found", id))
	}
	update.Apply(&stored.facility)
	out := stored.facility
	return &out, nil
}

// Delete removes a facility
func (s *FacilityStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.facilities[id]; !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("facility %s not found", id))
	}
	delete(s.facilities, id)
	return nil
}

// FindByExternalID returns the auto-imported record with the given upstream identity, or nil
func (s *FacilityStore) FindByExternalID(_ context.Context, source, externalID string) (*entities.Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if found := s.findByExternalIDLocked(source, externalID); found != nil {
		out := *found
		return &out, nil
	}
	return nil, nil
}

// FindCandidates returns auto-imported records in the same city (ignoring case) and province
func (s *FacilityStore) FindCandidates(_ context.Context, namePrefix, city, province string) ([]*entities.Facility, error) {
	prefix := strings.ToLower(namePrefix)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*storedFacility
	for _, stored := range s.facilities {
		f := &stored.facility
		if !f.AutoImported || f.Province != province || !strings.EqualFold(f.City, city) {
			continue
		}
		if prefix != "" && !strings.HasPrefix(strings.ToLower(f.Name), prefix) {
			continue
		}
		matches = append(matches, stored)
	}
	return copyOrdered(matches, repositories.SortCreatedAsc), nil
}

// CountGroupedBy counts every facility grouped by field, largest group first
func (s *FacilityStore) CountGroupedBy(_ context.Context, field repositories.GroupField) ([]entities.GroupCount, error) {
	if !field.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("cannot group by %q", field))
	}

	s.mu.RLock()
	counts := map[string]int{}
	for _, stored := range s.facilities {
		counts[groupValue(&stored.facility, field)]++
	}
	s.mu.RUnlock()

	groups := make([]entities.GroupCount, 0, len(counts))
	for value, count := range counts {
		groups = append(groups, entities.GroupCount{Value: value, Count: count})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Value < groups[j].Value
	})
	return groups, nil
}

// ListAll returns the facilities matching filter
func (s *FacilityStore) ListAll(_ context.Context, filter repositories.FacilityFilter) ([]*entities.Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*storedFacility
	for _, stored := range s.facilities {
		if matchesFilter(&stored.facility, filter) {
			matches = append(matches, stored)
		}
	}

	out := copyOrdered(matches, filter.OrderBy)
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*entities.Facility{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Count counts the facilities matching filter, ignoring Limit and Offset
func (s *FacilityStore) Count(_ context.Context, filter repositories.FacilityFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, stored := range s.facilities {
		if matchesFilter(&stored.facility, filter) {
			count++
		}
	}
	return count, nil
}

// DeleteAutoImported removes every auto-imported facility
func (s *FacilityStore) DeleteAutoImported(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, stored := range s.facilities {
		if stored.facility.AutoImported {
			delete(s.facilities, id)
			removed++
		}
	}
	return removed, nil
}

func (s *FacilityStore) findByExternalIDLocked(source, externalID string) *entities.Facility {
	for _, stored := range s.facilities {
		f := &stored.facility
		if !f.AutoImported || f.ExternalID == nil || f.ExternalSource == nil {
			continue
		}
		if *f.ExternalSource == source && *f.ExternalID == externalID {
			return f
		}
	}
	return nil
}

func matchesFilter(f *entities.Facility, filter repositories.FacilityFilter) bool {
	if filter.AutoImported != nil && f.AutoImported != *filter.AutoImported {
		return false
	}
	if filter.HasCoordinates != nil && f.HasCoordinates() != *filter.HasCoordinates {
		return false
	}
	if filter.Kind != "" && f.Kind != filter.Kind {
		return false
	}
	if filter.Province != "" && f.Province != filter.Province {
		return false
	}
	return true
}

func groupValue(f *entities.Facility, field repositories.GroupField) string {
	switch field {
	case repositories.GroupFieldKind:
		return string(f.Kind)
	case repositories.GroupFieldProvince:
		return f.Province
	default:
		return f.DataSource
	}
}

// copyOrdered sorts by creation time with insertion order breaking ties, and copies
// each record so callers cannot mutate the store.
func copyOrdered(stored []*storedFacility, order repositories.SortOrder) []*entities.Facility {
	sort.Slice(stored, func(i, j int) bool {
		a, b := stored[i], stored[j]
		if !a.facility.CreatedAt.Equal(b.facility.CreatedAt) {
			if order == repositories.SortCreatedDesc {
				return a.facility.CreatedAt.After(b.facility.CreatedAt)
			}
			return a.facility.CreatedAt.Before(b.facility.CreatedAt)
		}
		if order == repositories.SortCreatedDesc {
			return a.seq > b.seq
		}
		return a.seq < b.seq
	})

	out := make([]*entities.Facility, len(stored))
	for i, sf := range stored {
		f := sf.facility
		out[i] = &f
	}
	return out
}
