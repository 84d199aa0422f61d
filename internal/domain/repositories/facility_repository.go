package repositories

import (
	"context"

	"github.com/zatekoja/facility-import/backend/internal/domain/entities"
)

// FacilityRepository defines the interface for facility data operations
type FacilityRepository interface {
	// Create stores a new facility and assigns its ID
	Create(ctx context.Context, facility *entities.Facility) (*entities.Facility, error)

	// Update overwrites the mutable fields of an existing facility
	Update(ctx context.Context, id string, update *entities.FacilityUpdate) (*entities.Facility, error)

	// Delete removes a facility
	Delete(ctx context.Context, id string) error

	// FindByExternalID returns the auto-imported facility with the given upstream identity, or nil
	FindByExternalID(ctx context.Context, source, externalID string) (*entities.Facility, error)

	// FindCandidates returns auto-imported facilities in the same city and province,
	// optionally restricted to names starting with namePrefix (case-insensitive)
	FindCandidates(ctx context.Context, namePrefix, city, province string) ([]*entities.Facility, error)

	// CountGroupedBy counts all facilities grouped by one column
	CountGroupedBy(ctx context.Context, field GroupField) ([]entities.GroupCount, error)

	// ListAll retrieves facilities matching the filter
	ListAll(ctx context.Context, filter FacilityFilter) ([]*entities.Facility, error)

	// Count counts facilities matching the filter
	Count(ctx context.Context, filter FacilityFilter) (int, error)

	// DeleteAutoImported removes every auto-imported facility and returns how many were removed
	DeleteAutoImported(ctx context.Context) (int, error)
}

// FacilitySearchRepository keeps a search index of facilities (e.g. Typesense)
type FacilitySearchRepository interface {
	// Index indexes a facility
	Index(ctx context.Context, facility *entities.Facility) error

	// Delete removes a facility from index
	Delete(ctx context.Context, id string) error
}

// GroupField names a column facilities can be grouped by
type GroupField string

const (
	GroupFieldKind       GroupField = "facility_kind"
	GroupFieldProvince   GroupField = "province"
	GroupFieldDataSource GroupField = "data_source"
)

// Valid reports whether the field is groupable
func (f GroupField) Valid() bool {
	switch f {
	case GroupFieldKind, GroupFieldProvince, GroupFieldDataSource:
		return true
	}
	return false
}

// SortOrder controls ListAll ordering
type SortOrder string

const (
	SortCreatedAsc  SortOrder = "created_at_asc"
	SortCreatedDesc SortOrder = "created_at_desc"
)

// FacilityFilter defines filters for listing facilities
type FacilityFilter struct {
	AutoImported   *bool
	HasCoordinates *bool
	Kind           entities.FacilityKind
	Province       string
	OrderBy        SortOrder
	Limit          int
	Offset         int
}
