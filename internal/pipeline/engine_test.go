package pipeline_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/cache"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/classify"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/fallback"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/fingerprint"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/generate"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/ledger"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/normalize"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/pipeline"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/prompt"
	"github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/schema"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const validResponse = "Aquí tienes:\n```json\n" + `{
  "slug": "soporte-monitor-pla",
  "short_desc": "Soporte para elevar el monitor a la altura de los ojos.",
  "bullets": [
    "Mejora la postura frente a la pantalla",
    "Libera espacio en el escritorio",
    "Superficie estable para monitores ligeros"
  ],
  "tags": ["soporte_monitor", "escritorio", "ergonomia"],
  "seo_title": "Soporte monitor impreso en 3D",
  "seo_description": "Eleva tu monitor con este soporte impreso en PLA, ideal para escritorios ordenados."
}` + "\n```"

func monitorRecord() catalog.Record {
	return catalog.NewRecord(
		catalog.Field{Key: "nombre", Value: "Soporte monitor"},
		catalog.Field{Key: "descripcion", Value: "Soporte impreso en PLA para elevar el monitor"},
		catalog.Field{Key: "material", Value: "PLA"},
		catalog.Field{Key: "precio", Value: "19.90"},
	)
}

func baseOptions() pipeline.Options {
	return pipeline.Options{
		Contract:          schema.DefaultContract(),
		RulesVersion:      "test",
		Language:          "es",
		GenerationEnabled: true,
		Backend:           "ollama",
		Model:             "qwen2.5:7b-instruct",
		Temperature:       0.4,
		ReadTimeout:       time.Second,
		Repair:            true,
	}
}

type harness struct {
	engine *pipeline.Engine
	store  cache.Store
	ledger *ledger.Ledger
	calls  *atomic.Int32
}

func newHarness(t *testing.T, opts pipeline.Options, store cache.Store, fn generate.Func) harness {
	t.Helper()
	if store == nil {
		store = cache.NewMemory(cache.Options{Validate: func(r catalog.Result) error {
			return normalize.Validate(r, opts.Contract)
		}})
	}
	var calls atomic.Int32
	var gen generate.Generator
	if fn != nil {
		gen = generate.Func(func(ctx context.Context, req generate.Request) (string, error) {
			calls.Add(1)
			return fn(ctx, req)
		})
	}
	l := ledger.New()
	classifier := classify.New(classify.Options{}, nil, prompt.New(opts.Contract, opts.Language), l, nil)
	return harness{
		engine: pipeline.New(opts, classifier, gen, store, l, nil),
		store:  store,
		ledger: l,
		calls:  &calls,
	}
}

func TestGeneratedResultIsNormalizedAndCached(t *testing.T) {
	h := newHarness(t, baseOptions(), nil, func(context.Context, generate.Request) (string, error) {
		return validResponse, nil
	})

	got, err := h.engine.Enrich(context.Background(), 0, monitorRecord())
	require.NoError(t, err)

	assert.Equal(t, catalog.ResultFromGeneration, got.Meta.Method)
	assert.Len(t, got.Meta.Fingerprint, 40)
	assert.Equal(t, catalog.Domain3DPrinting, got.DomainInfo.Domain)
	assert.Equal(t, "soporte-monitor-pla", got.Result.Slug)
	assert.Equal(t, []string{
		"Mejora la postura frente a la pantalla",
		"Libera espacio en el escritorio",
		"Superficie estable para monitores ligeros",
	}, got.Result.Bullets)
	assert.Equal(t, []string{"pla", "soporte_monitor", "escritorio", "ergonomia", "3d_printing", "soporte"}, got.Result.Tags)
	require.NoError(t, normalize.Validate(got.Result, baseOptions().Contract))
	assert.Equal(t, 1, h.store.Len())
	assert.Zero(t, h.ledger.Len())
}

func TestTimeoutFallsBackWithOneLedgerEntry(t *testing.T) {
	h := newHarness(t, baseOptions(), nil, func(context.Context, generate.Request) (string, error) {
		return "", &generate.TimeoutError{Op: "ollama generate", Err: context.DeadlineExceeded}
	})
	rec := monitorRecord()

	got, err := h.engine.Enrich(context.Background(), 3, rec)
	require.NoError(t, err)

	want := fallback.Generate(rec, catalog.Domain3DPrinting, baseOptions().Contract)
	if diff := cmp.Diff(want, got.Result); diff != "" {
		t.Fatalf("fallback mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, catalog.ResultFromFallback, got.Meta.Method)

	entries := h.ledger.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].Index)
	assert.Equal(t, ledger.StageEnrich, entries[0].Stage)
	assert.Equal(t, "Soporte monitor", entries[0].RecordName)
	assert.Contains(t, entries[0].Error, "generation unavailable")
	assert.Contains(t, entries[0].Error, "enrich record 3")
	assert.Equal(t, 1, h.store.Len())
}

func TestCacheHitSkipsGeneration(t *testing.T) {
	opts := baseOptions()
	rec := monitorRecord()
	store := cache.NewMemory(cache.Options{})

	fp, err := fingerprint.Compute(rec, catalog.Domain3DPrinting, opts.FingerprintParams())
	require.NoError(t, err)
	cached := cache.Entry{
		Fingerprint: fp,
		DomainInfo:  catalog.DomainInfo{Domain: catalog.Domain3DPrinting, Confidence: 0.95, Signals: []string{"cached"}, Method: catalog.MethodHeuristic},
		Result: catalog.Result{
			Slug:           "cached-slug",
			ShortDesc:      "Texto guardado",
			Bullets:        []string{"Uno", "Dos", "Tres"},
			Tags:           []string{"a", "b", "c", "d", "e", "f"},
			SEOTitle:       "Guardado",
			SEODescription: "Descripción guardada",
		},
	}
	require.NoError(t, store.Put(context.Background(), cached))

	h := newHarness(t, opts, store, func(context.Context, generate.Request) (string, error) {
		return "", errors.New("must not be called")
	})
	got, err := h.engine.Enrich(context.Background(), 0, rec)
	require.NoError(t, err)

	assert.Zero(t, h.calls.Load())
	assert.Equal(t, catalog.ResultFromCache, got.Meta.Method)
	assert.Equal(t, fp, got.Meta.Fingerprint)
	if diff := cmp.Diff(cached.Result, got.Result); diff != "" {
		t.Fatalf("cached result changed (-want +got):\n%s", diff)
	}
	assert.Equal(t, cached.DomainInfo, got.DomainInfo)
	assert.Zero(t, h.ledger.Len())
}

func TestRepairReprompt(t *testing.T) {
	var n atomic.Int32
	h := newHarness(t, baseOptions(), nil, func(_ context.Context, req generate.Request) (string, error) {
		if n.Add(1) == 1 {
			return `{"slug": "soporte", "bullets": ["a",`, nil
		}
		assert.Contains(t, req.Prompt, `{"slug": "soporte", "bullets": ["a",`)
		assert.Zero(t, req.Temperature)
		return validResponse, nil
	})

	got, err := h.engine.Enrich(context.Background(), 0, monitorRecord())
	require.NoError(t, err)
	assert.Equal(t, catalog.ResultFromRepair, got.Meta.Method)
	assert.Equal(t, int32(2), h.calls.Load())
	assert.Zero(t, h.ledger.Len())
}

func TestMalformedWithoutRepairFallsBack(t *testing.T) {
	opts := baseOptions()
	opts.Repair = false
	h := newHarness(t, opts, nil, func(context.Context, generate.Request) (string, error) {
		return `{"domain": "food"}`, nil
	})

	got, err := h.engine.Enrich(context.Background(), 1, monitorRecord())
	require.NoError(t, err)
	assert.Equal(t, catalog.ResultFromFallback, got.Meta.Method)
	assert.Equal(t, int32(1), h.calls.Load())

	entries := h.ledger.Entries()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Error, "malformed output")
}

func TestGenerationDisabledUsesFallbackSilently(t *testing.T) {
	opts := baseOptions()
	opts.GenerationEnabled = false
	h := newHarness(t, opts, nil, nil)

	rec := monitorRecord()
	got, err := h.engine.Enrich(context.Background(), 0, rec)
	require.NoError(t, err)
	assert.Equal(t, catalog.ResultFromFallback, got.Meta.Method)
	assert.Equal(t, fallback.Generate(rec, catalog.Domain3DPrinting, opts.Contract), got.Result)
	assert.Zero(t, h.ledger.Len())
}

func TestEnrichKeepsPresentationFields(t *testing.T) {
	h := newHarness(t, baseOptions(), nil, func(context.Context, generate.Request) (string, error) {
		return validResponse, nil
	})
	got, err := h.engine.Enrich(context.Background(), 0, monitorRecord())
	require.NoError(t, err)
	price, ok := got.Record.Get("precio")
	assert.True(t, ok)
	assert.Equal(t, "19.90", price)
}
