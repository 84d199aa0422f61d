package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/facility-import/backend/internal/adapters/memory"
	"github.com/zatekoja/facility-import/backend/pkg/config"
	apperrors "github.com/zatekoja/facility-import/backend/pkg/errors"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Driver: "memory"},
		Overpass: config.OverpassConfig{Endpoints: config.DefaultOverpassEndpoints},
		Import:   config.ImportConfig{BatchSize: 50},
	}
}

func TestNew_MemoryStore(t *testing.T) {
	p, err := New(context.Background(), memoryConfig(), nil)
	require.NoError(t, err)
	defer p.Close()

	assert.IsType(t, &memory.FacilityStore{}, p.Store)
	assert.Nil(t, p.Cache)
	assert.NotNil(t, p.Imports)
	assert.NotNil(t, p.Dedup)
}

func TestNew_RejectsUnknownDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.Database.Driver = "sqlite"

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNew_RequiresTwoEndpoints(t *testing.T) {
	cfg := memoryConfig()
	cfg.Overpass.Endpoints = []string{"https://overpass-api.de/api/interpreter"}

	_, err := New(context.Background(), cfg, nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
}
