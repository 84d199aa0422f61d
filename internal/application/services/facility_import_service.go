package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/facility-import/backend/internal/domain/entities"
	"github.com/zatekoja/facility-import/backend/internal/domain/providers"
	"github.com/zatekoja/facility-import/backend/internal/domain/repositories"
	"github.com/zatekoja/facility-import/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/facility-import/backend/pkg/errors"
)

const (
	defaultBatchSize   = 100
	defaultRegionPause = 5 * time.Second
	defaultSummaryTTL  = 5 * time.Minute

	summaryCacheKey = "facility-import:summary"
)

// ImportOptions tunes the import loop
type ImportOptions struct {
	BatchSize   int
	RegionPause time.Duration
	SummaryTTL  time.Duration
}

// FacilityImportService drives fetch, normalize, match and upsert for one import call.
// Calls must not overlap; records are processed strictly in order.
type FacilityImportService struct {
	geo        providers.GeoDataProvider
	repo       repositories.FacilityRepository
	searchRepo repositories.FacilitySearchRepository
	normalizer *FacilityNormalizer
	matcher    *SimilarityMatcher
	cache      providers.CacheProvider
	publisher  providers.EventPublisher
	metrics    *observability.Metrics

	batchSize   int
	regionPause time.Duration
	summaryTTL  time.Duration
	pause       func(ctx context.Context, d time.Duration) error
}

// NewFacilityImportService creates a new import service. searchRepo, cache,
// publisher and metrics are optional.
func NewFacilityImportService(
	geo providers.GeoDataProvider,
	repo repositories.FacilityRepository,
	searchRepo repositories.FacilitySearchRepository,
	normalizer *FacilityNormalizer,
	cache providers.CacheProvider,
	publisher providers.EventPublisher,
	metrics *observability.Metrics,
	opts ImportOptions,
) *FacilityImportService {
	if normalizer == nil {
		normalizer = NewFacilityNormalizer("", "")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.RegionPause < 0 {
		opts.RegionPause = 0
	} else if opts.RegionPause == 0 {
		opts.RegionPause = defaultRegionPause
	}
	if opts.SummaryTTL <= 0 {
		opts.SummaryTTL = defaultSummaryTTL
	}
	return &FacilityImportService{
		geo:         geo,
		repo:        repo,
		searchRepo:  searchRepo,
		normalizer:  normalizer,
		matcher:     NewSimilarityMatcher(repo),
		cache:       cache,
		publisher:   publisher,
		metrics:     metrics,
		batchSize:   opts.BatchSize,
		regionPause: opts.RegionPause,
		summaryTTL:  opts.SummaryTTL,
		pause:       waitFor,
	}
}

// ImportRegion imports every facility inside box, optionally restricted to one amenity kind
func (s *FacilityImportService) ImportRegion(ctx context.Context, box entities.BoundingBox, kind *string) (*entities.ImportResult, error) {
	scope := regionScope(box, kind)
	result, err := s.importBox(ctx, scope, box, kind)
	if err != nil {
		s.publish(ctx, failedEvent(scope, err))
		return nil, err
	}
	return s.finish(ctx, scope, result)
}

// ImportByKind imports one amenity kind nationwide
func (s *FacilityImportService) ImportByKind(ctx context.Context, kind string) (*entities.ImportResult, error) {
	return s.ImportRegion(ctx, entities.NationalBounds, &kind)
}

// ImportByRegion imports one caller-chosen partition of the country
func (s *FacilityImportService) ImportByRegion(ctx context.Context, box entities.BoundingBox, kind *string) (*entities.ImportResult, error) {
	return s.ImportRegion(ctx, box, kind)
}

// ImportAll imports the whole country one province rectangle at a time, pausing
// between calls. A province whose query fails is recorded in FailedRegions and
// the loop moves on; the call only fails when no province could be imported.
// A done context aborts the run instead of being counted against a province.
func (s *FacilityImportService) ImportAll(ctx context.Context) (*entities.ImportResult, error) {
	const scope = "all"
	logger := observability.LoggerFromContext(ctx)
	total := &entities.ImportResult{}
	var lastErr error

	for i, region := range entities.ProvinceRegions {
		if i > 0 {
			if err := s.pause(ctx, s.regionPause); err != nil {
				s.publish(context.WithoutCancel(ctx), failedEvent(scope, err))
				return nil, err
			}
		}

		result, err := s.importBox(ctx, "province:"+region.Name, region.Bounds, nil)
		if ctxErr := ctx.Err(); ctxErr != nil {
			logger.Error().Err(ctxErr).Str("province", region.Name).Msg("Full import aborted")
			s.publish(context.WithoutCancel(ctx), failedEvent(scope, ctxErr))
			return nil, ctxErr
		}
		if err != nil {
			lastErr = err
			total.FailedRegions = append(total.FailedRegions, region.Name)
			logger.Error().
				Err(err).
				Str("province", region.Name).
				Msg("Province import failed, continuing with next province")
			continue
		}
		total.Add(result)
	}

	if len(total.FailedRegions) == len(entities.ProvinceRegions) {
		s.publish(ctx, failedEvent(scope, lastErr))
		return nil, lastErr
	}
	return s.finish(ctx, scope, total)
}

// GetSummary returns the aggregate store summary, read through the cache when configured
func (s *FacilityImportService) GetSummary(ctx context.Context) (*entities.ImportSummary, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, summaryCacheKey); err == nil {
			var summary entities.ImportSummary
			if err := json.Unmarshal(data, &summary); err == nil {
				return &summary, nil
			}
		}
	}

	summary, err := BuildSummary(ctx, s.repo)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(summary); err == nil {
			if err := s.cache.Set(ctx, summaryCacheKey, data, int(s.summaryTTL.Seconds())); err != nil {
				observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Failed to cache import summary")
			}
		}
	}
	return summary, nil
}

// ClearAutoImported deletes every auto-imported facility ahead of a full reseed.
// Hand-entered records are kept.
func (s *FacilityImportService) ClearAutoImported(ctx context.Context) (int, error) {
	logger := observability.LoggerFromContext(ctx)

	var indexed []*entities.Facility
	if s.searchRepo != nil {
		autoImported := true
		var err error
		indexed, err = s.repo.ListAll(ctx, repositories.FacilityFilter{AutoImported: &autoImported})
		if err != nil {
			return 0, err
		}
	}

	removed, err := s.repo.DeleteAutoImported(ctx)
	if err != nil {
		return 0, err
	}

	for _, f := range indexed {
		if err := s.searchRepo.Delete(ctx, f.ID); err != nil {
			logger.Warn().Err(err).Str("facility_id", f.ID).Msg("Failed to remove facility from search index")
		}
	}

	invalidateSummary(ctx, s.cache)
	s.publish(ctx, entities.NewImportEvent(entities.ImportEventTypeStoreCleared, "all"))
	logger.Info().Int("removed", removed).Msg("Cleared auto-imported facilities")
	return removed, nil
}

// importBox fetches and processes one box without touching the summary or events
func (s *FacilityImportService) importBox(ctx context.Context, scope string, box entities.BoundingBox, kind *string) (*entities.ImportResult, error) {
	ctx, span := observability.StartSpan(ctx, "FacilityImportService.importBox", attribute.String("import.scope", scope))
	defer span.End()

	start := time.Now()
	logger := observability.LoggerFromContext(ctx)

	elements, err := s.geo.FetchRegion(ctx, box, kind)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	facilities := s.normalizer.NormalizeAll(elements)
	result := &entities.ImportResult{TotalFetched: len(elements)}

	for offset := 0; offset < len(facilities); offset += s.batchSize {
		end := offset + s.batchSize
		if end > len(facilities) {
			end = len(facilities)
		}
		s.processBatch(ctx, facilities[offset:end], result)
	}

	observability.RecordImportDuration(ctx, s.metrics, scope, time.Since(start))
	logger.Info().
		Str("scope", scope).
		Int("fetched", result.TotalFetched).
		Int("processed", result.TotalProcessed).
		Int("inserted", result.TotalInserted).
		Int("updated", result.TotalUpdated).
		Int("skipped", result.TotalSkipped).
		Dur("duration", time.Since(start)).
		Msg("Import finished")
	return result, nil
}

func (s *FacilityImportService) processBatch(ctx context.Context, batch []*entities.Facility, result *entities.ImportResult) {
	logger := observability.LoggerFromContext(ctx)

	for _, facility := range batch {
		result.TotalProcessed++

		saved, inserted, err := s.upsert(ctx, facility)
		if err != nil {
			result.TotalSkipped++
			observability.RecordImportOutcome(ctx, s.metrics, observability.OutcomeSkipped)
			logger.Warn().
				Err(err).
				Str("name", facility.Name).
				Str("external_id", derefString(facility.ExternalID)).
				Msg("Skipping facility")
			continue
		}

		if inserted {
			result.TotalInserted++
			observability.RecordImportOutcome(ctx, s.metrics, observability.OutcomeInserted)
		} else {
			result.TotalUpdated++
			observability.RecordImportOutcome(ctx, s.metrics, observability.OutcomeUpdated)
		}

		if s.searchRepo != nil {
			if err := s.searchRepo.Index(ctx, saved); err != nil {
				// The store is the source of truth; the index catches up on the next run.
				logger.Warn().Err(err).Str("facility_id", saved.ID).Msg("Failed to index facility")
			}
		}
	}
}

// upsert inserts f or updates the record it matches. The bool reports an insert.
func (s *FacilityImportService) upsert(ctx context.Context, f *entities.Facility) (*entities.Facility, bool, error) {
	existing, err := s.matcher.FindExisting(ctx, f)
	if err != nil {
		return nil, false, apperrors.NewRecordProcessingError("failed to look up existing facility", err)
	}

	if existing != nil {
		updated, err := s.repo.Update(ctx, existing.ID, entities.UpdateFrom(f))
		if err != nil {
			return nil, false, apperrors.NewRecordProcessingError(fmt.Sprintf("failed to update facility %s", existing.ID), err)
		}
		return updated, false, nil
	}

	created, err := s.repo.Create(ctx, f)
	if err != nil {
		return nil, false, apperrors.NewRecordProcessingError("failed to create facility", err)
	}
	return created, true, nil
}

func (s *FacilityImportService) finish(ctx context.Context, scope string, result *entities.ImportResult) (*entities.ImportResult, error) {
	invalidateSummary(ctx, s.cache)

	summary, err := BuildSummary(ctx, s.repo)
	if err != nil {
		// Writes are already persisted; report the counters without a summary.
		observability.LoggerFromContext(ctx).Error().Err(err).Msg("Failed to build import summary")
	} else {
		result.Summary = summary
	}

	event := entities.NewImportEvent(entities.ImportEventTypeImportCompleted, scope)
	event.Result = result
	s.publish(ctx, event)
	return result, nil
}

func (s *FacilityImportService) publish(ctx context.Context, event *entities.ImportEvent) {
	publishEvent(ctx, s.publisher, event)
}

// BuildSummary aggregates the current store contents
func BuildSummary(ctx context.Context, repo repositories.FacilityRepository) (*entities.ImportSummary, error) {
	byKind, err := repo.CountGroupedBy(ctx, repositories.GroupFieldKind)
	if err != nil {
		return nil, err
	}
	byProvince, err := repo.CountGroupedBy(ctx, repositories.GroupFieldProvince)
	if err != nil {
		return nil, err
	}
	byDataSource, err := repo.CountGroupedBy(ctx, repositories.GroupFieldDataSource)
	if err != nil {
		return nil, err
	}

	autoImported, hasCoordinates := true, true
	withCoordinates, err := repo.Count(ctx, repositories.FacilityFilter{AutoImported: &autoImported, HasCoordinates: &hasCoordinates})
	if err != nil {
		return nil, err
	}
	totalAutoImported, err := repo.Count(ctx, repositories.FacilityFilter{AutoImported: &autoImported})
	if err != nil {
		return nil, err
	}

	return &entities.ImportSummary{
		ByKind:            byKind,
		ByProvince:        byProvince,
		ByDataSource:      byDataSource,
		WithCoordinates:   withCoordinates,
		TotalAutoImported: totalAutoImported,
		GeneratedAt:       time.Now(),
	}, nil
}

func invalidateSummary(ctx context.Context, cache providers.CacheProvider) {
	if cache == nil {
		return
	}
	if err := cache.Delete(ctx, summaryCacheKey); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Failed to invalidate import summary cache")
	}
}

func publishEvent(ctx context.Context, publisher providers.EventPublisher, event *entities.ImportEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, providers.EventChannelImports, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Str("event_type", string(event.EventType)).
			Msg("Failed to publish import event")
	}
}

func failedEvent(scope string, err error) *entities.ImportEvent {
	event := entities.NewImportEvent(entities.ImportEventTypeImportFailed, scope)
	if err != nil {
		event.Error = err.Error()
	}
	return event
}

func regionScope(box entities.BoundingBox, kind *string) string {
	scope := fmt.Sprintf("region:%g,%g,%g,%g", box.North, box.South, box.East, box.West)
	if kind != nil {
		scope += ":" + *kind
	}
	return scope
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func waitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
