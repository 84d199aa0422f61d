package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OVERPASS_ENDPOINTS", "")
	t.Setenv("STORE_DRIVER", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, DefaultOverpassEndpoints, cfg.Overpass.Endpoints)
	assert.Equal(t, 60*time.Second, cfg.Overpass.RequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.Overpass.Cooldown)
	assert.Equal(t, 100, cfg.Import.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Import.RegionPause)
	assert.Equal(t, "OpenStreetMap", cfg.Import.DataSource)
}

func TestLoad_OverpassEndpoints(t *testing.T) {
	t.Setenv("OVERPASS_ENDPOINTS", " http://a/api/interpreter , http://b/api/interpreter ,")
	t.Setenv("OVERPASS_COOLDOWN", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"http://a/api/interpreter", "http://b/api/interpreter"}, cfg.Overpass.Endpoints)
	assert.Equal(t, 250*time.Millisecond, cfg.Overpass.Cooldown)
}

func TestLoad_RejectsSingleEndpoint(t *testing.T) {
	t.Setenv("OVERPASS_ENDPOINTS", "http://only/api/interpreter")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownStoreDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("IMPORT_BATCH_SIZE", "lots")
	t.Setenv("IMPORT_REGION_PAUSE", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Import.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Import.RegionPause)
}
