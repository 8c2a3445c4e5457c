package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "pfas.db", cfg.Store.SQLitePath)
	assert.Equal(t, "data", cfg.Data.Dir)
	assert.Equal(t, "HUC12", cfg.Watershed.HUCField)
	assert.Equal(t, "ned10m", cfg.Elevation.Dataset)
	assert.Equal(t, 100, cfg.Elevation.BatchSize)
	assert.InDelta(t, 1.0, cfg.Elevation.RateLimit, 0.001)
	assert.Equal(t, 3, cfg.Elevation.MaxRetries)
	assert.Equal(t, 6135, cfg.Link.TotalFacilities)
	assert.Equal(t, 1, cfg.Link.Threshold)
	assert.Equal(t, 4, cfg.Pipeline.MaxConcurrent)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/pfas
watershed:
  shapefile_path: /data/wbd/WBDHU12.shp
  huc_field: huc12
elevation:
  batch_size: 250
link:
  total_facilities: 100
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/pfas", cfg.Store.DatabaseURL)
	assert.Equal(t, "/data/wbd/WBDHU12.shp", cfg.Watershed.ShapefilePath)
	assert.Equal(t, "huc12", cfg.Watershed.HUCField)
	assert.Equal(t, 250, cfg.Elevation.BatchSize)
	assert.Equal(t, 100, cfg.Link.TotalFacilities)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))

	err := InitLogger(LogConfig{Level: "not-a-level", Format: "json"})
	assert.Error(t, err)
}
