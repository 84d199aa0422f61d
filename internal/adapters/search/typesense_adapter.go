package search

import (
	"context"
	"fmt"

	"github.com/zatekoja/facility-import/backend/internal/domain/entities"
	"github.com/zatekoja/facility-import/backend/internal/domain/repositories"
	tsclient "github.com/zatekoja/facility-import/backend/internal/infrastructure/clients/typesense"
)

// TypesenseAdapter keeps the facilities collection in sync with the store
type TypesenseAdapter struct {
	client *tsclient.Client
}

// Ensure TypesenseAdapter implements FacilitySearchRepository
var _ repositories.FacilitySearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// Index upserts a facility document
func (a *TypesenseAdapter) Index(ctx context.Context, facility *entities.Facility) error {
	_, err := a.client.Client().Collection(tsclient.FacilitiesCollection).Documents().Upsert(ctx, facilityDocument(facility))
	if err != nil {
		return fmt.Errorf("failed to index facility: %w", err)
	}
	return nil
}

// Delete removes a facility from index. Documents that were never indexed are ignored.
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(tsclient.FacilitiesCollection).Document(id).Delete(ctx)
	if err != nil && !tsclient.IsNotFound(err) {
		return fmt.Errorf("failed to delete facility from index: %w", err)
	}
	return nil
}

func facilityDocument(f *entities.Facility) map[string]interface{} {
	document := map[string]interface{}{
		"id":             f.ID,
		"name":           f.Name,
		"facility_kind":  string(f.Kind),
		"classification": f.Classification,
		"city":           f.City,
		"province":       f.Province,
		"data_source":    f.DataSource,
		"auto_imported":  f.AutoImported,
		"last_updated":   f.LastUpdated.Unix(),
	}
	if f.HasCoordinates() {
		document["location"] = []float64{*f.Latitude, *f.Longitude}
	}
	return document
}
