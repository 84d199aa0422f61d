package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facility-import/backend/internal/adapters/cache"
	"github.com/zatekoja/facility-import/backend/internal/adapters/database"
	"github.com/zatekoja/facility-import/backend/internal/adapters/events"
	"github.com/zatekoja/facility-import/backend/internal/adapters/memory"
	"github.com/zatekoja/facility-import/backend/internal/adapters/search"
	"github.com/zatekoja/facility-import/backend/internal/application/services"
	"github.com/zatekoja/facility-import/backend/internal/domain/providers"
	"github.com/zatekoja/facility-import/backend/internal/domain/repositories"
	"github.com/zatekoja/facility-import/backend/internal/infrastructure/clients/overpass"
	"github.com/zatekoja/facility-import/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/facility-import/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/facility-import/backend/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/facility-import/backend/internal/infrastructure/observability"
	"github.com/zatekoja/facility-import/backend/pkg/config"
)

// Pipeline holds the wired import pipeline shared by the server and the CLI
type Pipeline struct {
	Store   repositories.FacilityRepository
	Cache   providers.CacheProvider
	Imports *services.FacilityImportService
	Dedup   *services.DeduplicationService

	closers []func() error
}

// New connects the configured backing services and wires the pipeline.
// Redis and Typesense are optional; failing to reach them only disables the cache, lock, events and index.
func New(ctx context.Context, cfg *config.Config, metrics *observability.Metrics) (*Pipeline, error) {
	p := &Pipeline{}

	store, err := p.openStore(ctx, &cfg.Database)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.Store = store

	var publisher providers.EventPublisher
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, running without summary cache, run lock and events")
		} else {
			p.closers = append(p.closers, redisClient.Close)
			p.Cache = cache.NewRedisAdapter(redisClient)
			publisher = events.NewRedisEventBus(redisClient)
		}
	}

	var searchRepo repositories.FacilitySearchRepository
	if cfg.Typesense.Enabled {
		tsClient, err := typesense.NewClient(ctx, &cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable, running without search indexing")
		} else if err := tsClient.InitSchema(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to init Typesense schema, running without search indexing")
		} else {
			searchRepo = search.NewTypesenseAdapter(tsClient)
		}
	}

	geo, err := overpass.NewClient(overpass.Options{
		Endpoints:      cfg.Overpass.Endpoints,
		RequestTimeout: cfg.Overpass.RequestTimeout,
		Cooldown:       cfg.Overpass.Cooldown,
		QueryTimeout:   cfg.Overpass.QueryTimeout,
		Metrics:        metrics,
	})
	if err != nil {
		p.Close()
		return nil, err
	}

	normalizer := services.NewFacilityNormalizer(cfg.Import.DataSource, cfg.Import.SourceSystem)
	p.Imports = services.NewFacilityImportService(geo, store, searchRepo, normalizer, p.Cache, publisher, metrics,
		services.ImportOptions{
			BatchSize:   cfg.Import.BatchSize,
			RegionPause: cfg.Import.RegionPause,
			SummaryTTL:  cfg.Import.SummaryTTL,
		})
	p.Dedup = services.NewDeduplicationService(store, searchRepo, p.Cache, publisher, metrics)
	return p, nil
}

func (p *Pipeline) openStore(ctx context.Context, cfg *config.DatabaseConfig) (repositories.FacilityRepository, error) {
	switch cfg.Driver {
	case "memory":
		log.Warn().Msg("Using in-memory facility store, data is lost on exit")
		return memory.NewFacilityStore(), nil
	case "postgres":
		pgClient, err := postgres.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, pgClient.Close)

		adapter := database.NewFacilityAdapter(pgClient)
		if err := adapter.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return adapter, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

// Close releases every backing connection
func (p *Pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Failed to close connection")
		}
	}
	p.closers = nil
}
