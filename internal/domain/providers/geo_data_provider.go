package providers

import (
	"context"

	"github.com/zatekoja/facility-import/backend/internal/domain/entities"
)

// GeoDataProvider fetches raw tagged elements from the upstream map database
type GeoDataProvider interface {
	// FetchRegion returns every healthcare element inside box. kind, when non-nil,
	// restricts the query to one amenity value.
	FetchRegion(ctx context.Context, box entities.BoundingBox, kind *string) ([]entities.RawElement, error)
}
