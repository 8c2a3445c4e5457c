package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carceral-ecologies/pfas-cli/internal/config"
)

func TestInitStore_SQLite(t *testing.T) {
	old := cfg
	t.Cleanup(func() { cfg = old })

	cfg = &config.Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "test.db")

	st, err := initStore(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.Close())
}

func TestInitStore_UnknownDriver(t *testing.T) {
	old := cfg
	t.Cleanup(func() { cfg = old })

	cfg = &config.Config{}
	cfg.Store.Driver = "oracle"

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestLoadSources_Defaults(t *testing.T) {
	old := cfg
	t.Cleanup(func() { cfg = old })

	cfg = &config.Config{}
	cfg.Data.SourcesYML = filepath.Join(t.TempDir(), "missing.yml")

	sources, err := loadSources()
	require.NoError(t, err)
	assert.NotEmpty(t, sources)
}
