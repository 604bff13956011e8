package app_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/app"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/config"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/ledger"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/mockollama"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/normalize"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/render"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/seed"
	localio "github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/io/local"
)

func testConfig(t *testing.T, baseURL string) config.Config {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "productos.xml")
	_, err := seed.WriteFile(input)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Input = input
	cfg.Output.Path = filepath.Join(dir, "out", "enriched.json")
	cfg.Output.ErrorsPath = filepath.Join(dir, "out", "errors.json")
	cfg.Output.CSVPath = filepath.Join(dir, "out", "enriched.csv")
	cfg.Output.PagesDir = filepath.Join(dir, "pages")
	cfg.Cache.Path = filepath.Join(dir, "cache.json")
	cfg.Workers = 2
	cfg.Generation.BaseURL = baseURL
	cfg.Generation.MaxRetries = 0
	cfg.Generation.RetryBackoff = 0
	cfg.Generation.ReadTimeout = 5 * time.Second
	require.NoError(t, cfg.Validate())
	return cfg
}

func readEnvelope(t *testing.T, path string) catalog.Envelope {
	t.Helper()
	env, err := localio.ReadEnvelopeFile(path)
	require.NoError(t, err)
	return env
}

func readLedger(t *testing.T, path string) []ledger.Entry {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var entries []ledger.Entry
	require.NoError(t, json.Unmarshal(b, &entries))
	return entries
}

func TestRunLocalWithMockOllama(t *testing.T) {
	mock := mockollama.New("llama3.1:8b")
	ts := httptest.NewServer(mock.Handler())
	defer ts.Close()

	cfg := testConfig(t, ts.URL)
	ctx := context.Background()

	report, err := app.RunLocal(ctx, app.Options{Config: cfg, Logger: zaptest.NewLogger(t), RunID: "run-1"})
	require.NoError(t, err)
	assert.Equal(t, 6, report.Summary.Total)
	assert.Equal(t, 6, report.Summary.Method[catalog.ResultFromGeneration])
	assert.Zero(t, report.Errors)
	assert.Len(t, mock.Calls(), 6)
	for _, call := range mock.Calls() {
		assert.Equal(t, "json", call.Format)
		assert.Equal(t, 700, call.Options.NumPredict)
	}

	env := readEnvelope(t, cfg.Output.Path)
	assert.Equal(t, "run-1", env.RunID)
	assert.Equal(t, 6, env.Count)
	require.Len(t, env.Records, 6)
	for _, r := range env.Records {
		require.NoError(t, normalize.Validate(r.Result, cfg.Contract), r.Record.Name())
		assert.Equal(t, catalog.Domain3DPrinting, r.DomainInfo.Domain)
		assert.Len(t, r.Meta.Fingerprint, 40)
	}
	assert.Equal(t, "Soporte elevador para monitor", env.Records[0].Record.Name())
	assert.Empty(t, readLedger(t, cfg.Output.ErrorsPath))

	_, err = os.Stat(filepath.Join(cfg.Output.PagesDir, "index.html"))
	require.NoError(t, err)
	_, err = os.Stat(cfg.Output.CSVPath)
	require.NoError(t, err)

	// The second run is served entirely from the persisted cache.
	again, err := app.RunLocal(ctx, app.Options{Config: cfg, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	assert.Equal(t, 6, again.Summary.Method[catalog.ResultFromCache])
	assert.Len(t, mock.Calls(), 6)

	env2 := readEnvelope(t, cfg.Output.Path)
	for i := range env.Records {
		assert.Equal(t, env.Records[i].Result, env2.Records[i].Result)
		assert.Equal(t, env.Records[i].Meta.Fingerprint, env2.Records[i].Meta.Fingerprint)
	}
}

func TestRunLocalFallsBackWhenServiceIsDown(t *testing.T) {
	ts := httptest.NewServer(mockollama.New().Handler())
	url := ts.URL
	ts.Close()

	cfg := testConfig(t, url)
	report, err := app.RunLocal(context.Background(), app.Options{Config: cfg, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	assert.Equal(t, 6, report.Summary.Method[catalog.ResultFromFallback])
	assert.Equal(t, 6, report.Errors)

	entries := readLedger(t, cfg.Output.ErrorsPath)
	require.Len(t, entries, 6)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Index)
		assert.Equal(t, ledger.StageEnrich, e.Stage)
		assert.Contains(t, e.Error, "generation unavailable")
	}

	env := readEnvelope(t, cfg.Output.Path)
	for _, r := range env.Records {
		require.NoError(t, normalize.Validate(r.Result, cfg.Contract))
	}
}

func TestRunLocalWithoutGeneration(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Generation.Enabled = false
	cfg.Output.PagesDir = ""
	cfg.Cache.Backend = "sqlite"
	cfg.Cache.Path = filepath.Join(t.TempDir(), "cache.db")

	report, err := app.RunLocal(context.Background(), app.Options{Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, 6, report.Summary.Method[catalog.ResultFromFallback])
	assert.Zero(t, report.Errors)
	assert.Equal(t, []string{cfg.Output.Path, cfg.Output.CSVPath, cfg.Output.ErrorsPath}, report.Files)
}

func TestRunLocalMissingInput(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Input = filepath.Join(t.TempDir(), "missing.xml")

	_, err := app.RunLocal(context.Background(), app.Options{Config: cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load input")
}

func TestRenderEnvelope(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Generation.Enabled = false
	cfg.Output.PagesDir = ""
	_, err := app.RunLocal(context.Background(), app.Options{Config: cfg})
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "pages")
	names, err := app.RenderEnvelope(cfg.Output.Path, dir, render.Options{})
	require.NoError(t, err)
	assert.Len(t, names, 7)
}
