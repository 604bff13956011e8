// Package app wires configuration, record sources, the enrichment engine and output sinks
// into one run.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/cache"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/classify"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/config"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/generate"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/ledger"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/normalize"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/pipeline"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/prompt"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/render"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/version"
	"github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/core"
	localio "github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/io/local"
)

// classifyTemperature keeps classification answers close to deterministic.
const classifyTemperature = 0.1

// Options configures one run.
type Options struct {
	Config config.Config
	Logger *zap.Logger

	// Generator replaces the backend built from Config.Generation. Retries and tracing are
	// still added around it.
	Generator generate.Generator

	RunID string
	Now   func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.RunID == "" {
		o.RunID = uuid.NewString()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Report summarizes a finished run.
type Report struct {
	RunID    string
	Summary  pipeline.Summary
	Skipped  int
	Errors   int
	Files    []string
	Duration time.Duration
}

// RunLocal enriches the records of cfg.Input and writes the envelope, the error ledger and
// any optional outputs. Per-record failures never fail the run; unreadable input, unwritable
// output and cancellation do.
func RunLocal(ctx context.Context, opts Options) (Report, error) {
	opts = opts.withDefaults()
	cfg := opts.Config
	log := opts.Logger.With(zap.String("run_id", opts.RunID))
	runStart := opts.Now()

	log.Info("run start",
		zap.String("input", cfg.Input),
		zap.String("output", cfg.Output.Path),
		zap.Bool("generation", cfg.Generation.Enabled),
		zap.String("backend", cfg.Generation.Backend),
		zap.String("model", cfg.Generation.Model),
		zap.String("domain_mode", cfg.Classifier.Domain),
		zap.String("cache", cfg.Cache.Backend+":"+cfg.Cache.Path),
		zap.Int("workers", cfg.Workers),
		zap.String("rules_version", cfg.RulesVersion),
	)

	src := &localio.Source{Path: cfg.Input}
	records, err := loadRecords(ctx, src)
	if err != nil {
		return Report{}, err
	}
	log.Info("loaded records", zap.Int("count", len(records)), zap.Int("skipped", src.Skipped))

	var gen generate.Generator
	if cfg.Generation.Enabled {
		backend := opts.Generator
		if backend == nil {
			if backend, err = NewBackend(ctx, cfg.Generation); err != nil {
				return Report{}, fmt.Errorf("generation backend: %w", err)
			}
		}
		gen = wrapGenerator(backend, cfg.Generation, log)
	}

	l := ledger.NewWithClock(opts.Now)
	store, err := cache.Open(cfg.Cache.Backend, cfg.Cache.Path, cache.Options{
		Validate: func(r catalog.Result) error { return normalize.Validate(r, cfg.Contract) },
		Logger:   log,
	})
	if err != nil {
		return Report{}, fmt.Errorf("open cache: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("cache close failed", zap.Error(err))
		}
	}()
	log.Info("cache opened", zap.Int("entries", store.Len()))

	prompts := prompt.New(cfg.Contract, cfg.Language)
	classifier := classify.New(classify.Options{
		DomainMode:      cfg.Classifier.Domain,
		Threshold:       cfg.Classifier.Threshold,
		UseGeneration:   cfg.Classifier.UseGeneration,
		Temperature:     classifyTemperature,
		MaxOutputTokens: cfg.Classifier.MaxOutputTokens,
		ReadTimeout:     cfg.Classifier.ReadTimeout,
		JSONMode:        cfg.Generation.JSONMode,
	}, gen, prompts, l, log)

	engine := pipeline.New(EngineOptions(cfg), classifier, gen, store, l, log)
	out, err := engine.RunAll(ctx, records)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		RunID:   opts.RunID,
		Summary: pipeline.Summarize(out),
		Skipped: src.Skipped,
		Errors:  l.Len(),
	}

	sinks := []outputSink{{
		path: cfg.Output.Path,
		sink: &localio.EnvelopeSink{Path: cfg.Output.Path, Envelope: catalog.Envelope{
			GeneratedAt: runStart.UTC().Truncate(time.Second),
			Source:      cfg.Input,
			Version:     version.Current,
			RunID:       opts.RunID,
			Config:      cfg,
		}},
	}}
	if cfg.Output.CSVPath != "" {
		sinks = append(sinks, outputSink{path: cfg.Output.CSVPath, sink: &localio.CSVSink{Path: cfg.Output.CSVPath}})
	}
	for _, s := range sinks {
		if err := s.sink.Store(ctx, out); err != nil {
			return Report{}, fmt.Errorf("write %s: %w", s.path, err)
		}
		report.Files = append(report.Files, s.path)
	}

	if cfg.Output.ErrorsPath != "" {
		if err := localio.WriteFileAtomic(cfg.Output.ErrorsPath, func(w io.Writer) error {
			return l.WriteJSON(w)
		}); err != nil {
			return Report{}, fmt.Errorf("write %s: %w", cfg.Output.ErrorsPath, err)
		}
		report.Files = append(report.Files, cfg.Output.ErrorsPath)
	}

	if cfg.Output.PagesDir != "" {
		names, err := render.WriteDir(cfg.Output.PagesDir, out, render.Options{Language: cfg.Language, Now: opts.Now})
		if err != nil {
			return Report{}, fmt.Errorf("render pages: %w", err)
		}
		log.Info("pages rendered", zap.String("dir", cfg.Output.PagesDir), zap.Int("files", len(names)))
	}

	report.Duration = opts.Now().Sub(runStart).Round(time.Millisecond)
	log.Info("run complete",
		zap.Int("records", report.Summary.Total),
		zap.Int("generated", report.Summary.Method[catalog.ResultFromGeneration]),
		zap.Int("repaired", report.Summary.Method[catalog.ResultFromRepair]),
		zap.Int("cached", report.Summary.Method[catalog.ResultFromCache]),
		zap.Int("fallback", report.Summary.Method[catalog.ResultFromFallback]),
		zap.Int("errors", report.Errors),
		zap.Int("cache_entries", store.Len()),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

type outputSink struct {
	path string
	sink core.OutputAdapter[catalog.Enriched]
}

// EngineOptions maps the run configuration onto the engine's options.
func EngineOptions(cfg config.Config) pipeline.Options {
	g := cfg.Generation
	return pipeline.Options{
		Contract:          cfg.Contract,
		RulesVersion:      cfg.RulesVersion,
		Language:          cfg.Language,
		GenerationEnabled: g.Enabled,
		Backend:           g.Backend,
		Model:             g.Model,
		Temperature:       g.Temperature,
		MaxOutputTokens:   g.MaxOutputTokens,
		ReadTimeout:       g.ReadTimeout,
		JSONMode:          g.JSONMode,
		Repair:            g.Repair,
		Workers:           cfg.Workers,
	}
}

// RenderEnvelope renders the pages of a previously written envelope into dir.
func RenderEnvelope(envelopePath, dir string, opts render.Options) ([]string, error) {
	env, err := localio.ReadEnvelopeFile(envelopePath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", envelopePath, err)
	}
	return render.WriteDir(dir, env.Records, opts)
}

func loadRecords(ctx context.Context, in core.InputAdapter[catalog.Record]) ([]catalog.Record, error) {
	records, err := in.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load input: %w", err)
	}
	return records, nil
}
