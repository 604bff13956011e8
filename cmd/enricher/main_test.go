package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/config"
)

func TestRunFlagsOverrideOnlyChangedValues(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--input", "catalogo.csv", "--workers", "4", "--no-generation", "--cache", "memory"}))

	var f runFlags
	f.input, _ = cmd.Flags().GetString("input")
	f.workers, _ = cmd.Flags().GetInt("workers")
	f.noGeneration, _ = cmd.Flags().GetBool("no-generation")
	f.cacheBackend, _ = cmd.Flags().GetString("cache")

	cfg := config.Default()
	f.apply(cmd, &cfg)

	assert.Equal(t, "catalogo.csv", cfg.Input)
	assert.Equal(t, 4, cfg.Workers)
	assert.False(t, cfg.Generation.Enabled)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, config.Default().Output.Path, cfg.Output.Path)
	assert.Equal(t, config.Default().Generation.Model, cfg.Generation.Model)
	require.NoError(t, cfg.Validate())
}
