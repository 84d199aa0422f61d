package services

import (
	"context"
	"strings"

	"github.com/zatekoja/facility-import/backend/internal/domain/entities"
	"github.com/zatekoja/facility-import/backend/internal/domain/providers"
	"github.com/zatekoja/facility-import/backend/internal/domain/repositories"
	"github.com/zatekoja/facility-import/backend/internal/infrastructure/observability"
)

// DeduplicationService collapses groups of exactly matching auto-imported facilities
type DeduplicationService struct {
	repo       repositories.FacilityRepository
	searchRepo repositories.FacilitySearchRepository
	cache      providers.CacheProvider
	publisher  providers.EventPublisher
	metrics    *observability.Metrics
}

// NewDeduplicationService creates a new sweeper. Everything but repo is optional.
func NewDeduplicationService(
	repo repositories.FacilityRepository,
	searchRepo repositories.FacilitySearchRepository,
	cache providers.CacheProvider,
	publisher providers.EventPublisher,
	metrics *observability.Metrics,
) *DeduplicationService {
	return &DeduplicationService{
		repo:       repo,
		searchRepo: searchRepo,
		cache:      cache,
		publisher:  publisher,
		metrics:    metrics,
	}
}

// Sweep keeps the earliest-created record of every exact-match group and deletes the rest.
// Only exact matches are grouped; fuzzy matching is never applied here.
func (s *DeduplicationService) Sweep(ctx context.Context) (*entities.DedupResult, error) {
	ctx, span := observability.StartSpan(ctx, "DeduplicationService.Sweep")
	defer span.End()
	logger := observability.LoggerFromContext(ctx)

	autoImported := true
	facilities, err := s.repo.ListAll(ctx, repositories.FacilityFilter{
		AutoImported: &autoImported,
		OrderBy:      repositories.SortCreatedAsc,
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	groups := make(map[string][]*entities.Facility)
	var order []string
	for _, f := range facilities {
		key := dedupKey(f)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], f)
	}

	result := &entities.DedupResult{}
	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		result.DuplicateGroupsFound++

		for _, duplicate := range group[1:] {
			if err := s.repo.Delete(ctx, duplicate.ID); err != nil {
				result.RecordsFailed++
				logger.Warn().
					Err(err).
					Str("facility_id", duplicate.ID).
					Str("kept_id", group[0].ID).
					Msg("Failed to delete duplicate facility")
				continue
			}
			result.RecordsRemoved++

			if s.searchRepo != nil {
				if err := s.searchRepo.Delete(ctx, duplicate.ID); err != nil {
					logger.Warn().Err(err).Str("facility_id", duplicate.ID).Msg("Failed to remove duplicate from search index")
				}
			}
		}
	}

	observability.RecordDedupRemoved(ctx, s.metrics, result.RecordsRemoved)
	if result.RecordsRemoved > 0 {
		invalidateSummary(ctx, s.cache)
	}

	event := entities.NewImportEvent(entities.ImportEventTypeDedupCompleted, "all")
	event.Dedup = result
	publishEvent(ctx, s.publisher, event)

	logger.Info().
		Int("scanned", len(facilities)).
		Int("groups", result.DuplicateGroupsFound).
		Int("removed", result.RecordsRemoved).
		Int("failed", result.RecordsFailed).
		Msg("Deduplication sweep finished")
	return result, nil
}

// dedupKey is the exact-match equivalence key: name and city ignore case, province does not.
// Folding goes through upper then lower case so variants such as final sigma land on the
// same key, agreeing with the strings.EqualFold used by ExactMatch.
func dedupKey(f *entities.Facility) string {
	return foldCase(f.Name) + "\x00" + foldCase(f.City) + "\x00" + f.Province
}

func foldCase(s string) string {
	return strings.ToLower(strings.ToUpper(s))
}
