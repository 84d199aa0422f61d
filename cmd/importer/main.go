package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facility-import/backend/internal/bootstrap"
	"github.com/zatekoja/facility-import/backend/internal/domain/entities"
	"github.com/zatekoja/facility-import/backend/internal/infrastructure/observability"
	"github.com/zatekoja/facility-import/backend/pkg/config"
)

type options struct {
	mode  string
	kind  string
	north float64
	south float64
	east  float64
	west  float64
}

func main() {
	var opts options
	flag.StringVar(&opts.mode, "mode", "all", "all | kind | region | dedup | summary | clear")
	flag.StringVar(&opts.kind, "kind", "", "amenity value for -mode kind, optional filter for -mode region")
	flag.Float64Var(&opts.north, "north", math.NaN(), "north bound for -mode region")
	flag.Float64Var(&opts.south, "south", math.NaN(), "south bound for -mode region")
	flag.Float64Var(&opts.east, "east", math.NaN(), "east bound for -mode region")
	flag.Float64Var(&opts.west, "west", math.NaN(), "west bound for -mode region")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-importer", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	pipeline, err := bootstrap.New(ctx, cfg, metrics)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize import pipeline")
	}

	output, err := run(ctx, pipeline, opts)
	pipeline.Close()
	if err != nil {
		log.Fatal().Err(err).Str("mode", opts.mode).Msg("Run failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output); err != nil {
		log.Fatal().Err(err).Msg("Failed to write result")
	}
}

func run(ctx context.Context, p *bootstrap.Pipeline, opts options) (interface{}, error) {
	switch opts.mode {
	case "all":
		return p.Imports.ImportAll(ctx)
	case "kind":
		if opts.kind == "" {
			return nil, fmt.Errorf("-kind is required for -mode kind")
		}
		return p.Imports.ImportByKind(ctx, opts.kind)
	case "region":
		box := entities.BoundingBox{North: opts.north, South: opts.south, East: opts.east, West: opts.west}
		var kind *string
		if opts.kind != "" {
			kind = &opts.kind
		}
		return p.Imports.ImportByRegion(ctx, box, kind)
	case "dedup":
		return p.Dedup.Sweep(ctx)
	case "summary":
		return p.Imports.GetSummary(ctx)
	case "clear":
		removed, err := p.Imports.ClearAutoImported(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]int{"records_removed": removed}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", opts.mode)
	}
}
