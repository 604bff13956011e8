package pipeline_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/cache"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/generate"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/normalize"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/pipeline"
)

func catalogRecords() []catalog.Record {
	return []catalog.Record{
		monitorRecord(),
		catalog.NewRecord(
			catalog.Field{Key: "nombre", Value: "Zapatilla Runner"},
			catalog.Field{Key: "talla", Value: "42"},
			catalog.Field{Key: "marca", Value: "Trail"},
		),
		catalog.NewRecord(
			catalog.Field{Key: "nombre", Value: "Mesa auxiliar"},
			catalog.Field{Key: "descripcion", Value: "Mesa baja de madera"},
		),
	}
}

func TestRunAllIsIdempotent(t *testing.T) {
	opts := baseOptions()
	opts.Workers = 2
	path := filepath.Join(t.TempDir(), "cache.json")
	validate := cache.Options{Validate: func(r catalog.Result) error { return normalize.Validate(r, opts.Contract) }}
	respond := func(context.Context, generate.Request) (string, error) { return validResponse, nil }

	store, err := cache.OpenFile(path, validate)
	require.NoError(t, err)
	first := newHarness(t, opts, store, respond)
	out1, err := first.engine.RunAll(context.Background(), catalogRecords())
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.Equal(t, int32(3), first.calls.Load())

	store, err = cache.OpenFile(path, validate)
	require.NoError(t, err)
	defer store.Close()
	second := newHarness(t, opts, store, respond)
	out2, err := second.engine.RunAll(context.Background(), catalogRecords())
	require.NoError(t, err)

	assert.Zero(t, second.calls.Load())
	require.Len(t, out2, len(out1))
	for i := range out1 {
		assert.Equal(t, catalog.ResultFromCache, out2[i].Meta.Method)
		assert.Equal(t, out1[i].Meta.Fingerprint, out2[i].Meta.Fingerprint)
		if diff := cmp.Diff(out1[i].Result, out2[i].Result); diff != "" {
			t.Fatalf("record %d changed between runs (-first +second):\n%s", i, diff)
		}
		assert.Equal(t, out1[i].Record.Name(), out2[i].Record.Name())
	}

	summary := pipeline.Summarize(out2)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Method[catalog.ResultFromCache])
}

func TestRunAllCollapsesSameFingerprint(t *testing.T) {
	opts := baseOptions()
	opts.Workers = 4
	h := newHarness(t, opts, nil, func(context.Context, generate.Request) (string, error) {
		time.Sleep(5 * time.Millisecond)
		return validResponse, nil
	})

	records := make([]catalog.Record, 8)
	for i := range records {
		records[i] = monitorRecord()
	}
	out, err := h.engine.RunAll(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, int32(1), h.calls.Load())
	summary := pipeline.Summarize(out)
	assert.Equal(t, 1, summary.Method[catalog.ResultFromGeneration])
	assert.Equal(t, 7, summary.Method[catalog.ResultFromCache])
	for _, r := range out {
		assert.Equal(t, out[0].Result, r.Result)
	}
}

func TestRunAllPreservesInputOrder(t *testing.T) {
	opts := baseOptions()
	opts.GenerationEnabled = false
	opts.Workers = 3
	h := newHarness(t, opts, nil, nil)

	records := catalogRecords()
	out, err := h.engine.RunAll(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, out, len(records))
	for i := range records {
		assert.Equal(t, records[i].Name(), out[i].Record.Name())
	}
	assert.Equal(t, catalog.DomainFootwear, out[1].DomainInfo.Domain)
}

func TestRunAllStopsOnCancel(t *testing.T) {
	opts := baseOptions()
	ctx, cancel := context.WithCancel(context.Background())
	h := newHarness(t, opts, nil, func(ctx context.Context, _ generate.Request) (string, error) {
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	})

	_, err := h.engine.RunAll(ctx, catalogRecords())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, h.ledger.Len())
}
