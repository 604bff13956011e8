// Package pipeline wires classification, generation, normalization, fallback and caching into
// the per-record enrichment flow.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/cache"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/classify"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/extract"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/fallback"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/fingerprint"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/generate"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/ledger"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/normalize"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/prompt"
	"github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/schema"
)

// Options is the immutable run configuration seen by the engine.
type Options struct {
	Contract     schema.Contract
	RulesVersion string
	Language     string

	// GenerationEnabled routes cache misses to the generator; when false every miss uses the
	// fallback templates.
	GenerationEnabled bool
	Backend           string
	Model             string
	Temperature       float64
	MaxOutputTokens   int
	ReadTimeout       time.Duration
	JSONMode          bool
	// Repair allows one re-prompt asking the model to fix malformed output.
	Repair bool

	Workers int
}

func (o Options) withDefaults() Options {
	if o.Language == "" {
		o.Language = "es"
	}
	if o.MaxOutputTokens <= 0 {
		o.MaxOutputTokens = 700
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	return o
}

// FingerprintParams is the configuration tuple hashed into every fingerprint.
func (o Options) FingerprintParams() fingerprint.Params {
	return fingerprint.Params{
		RulesVersion:      o.RulesVersion,
		GenerationEnabled: o.GenerationEnabled,
		Backend:           o.Backend,
		Model:             o.Model,
		Temperature:       o.Temperature,
		Language:          o.Language,
		Contract:          o.Contract,
	}
}

// Engine enriches records. It is safe for concurrent use; concurrent records that share a
// fingerprint are collapsed into one classification and generation.
type Engine struct {
	opts       Options
	classifier *classify.Classifier
	gen        generate.Generator
	prompts    prompt.Builder
	store      cache.Store
	ledger     *ledger.Ledger
	log        *zap.Logger
	now        func() time.Time

	flight singleflight.Group
}

// New returns an Engine. gen may be nil when generation is disabled. store and l are required.
func New(opts Options, classifier *classify.Classifier, gen generate.Generator, store cache.Store, l *ledger.Ledger, log *zap.Logger) *Engine {
	opts = opts.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	if gen == nil {
		opts.GenerationEnabled = false
	}
	return &Engine{
		opts:       opts,
		classifier: classifier,
		gen:        gen,
		prompts:    prompt.New(opts.Contract, opts.Language),
		store:      store,
		ledger:     l,
		log:        log,
		now:        time.Now,
	}
}

type outcome struct {
	info   catalog.DomainInfo
	result catalog.Result
	method catalog.ResultMethod
}

// Enrich returns the enriched form of rec. index is rec's 1-based position in the input and is
// only used for ledger entries and logs. It returns an error only when ctx is done or the options
// cannot be fingerprinted; every other failure degrades to fallback content plus a ledger entry.
func (e *Engine) Enrich(ctx context.Context, index int, rec catalog.Record) (catalog.Enriched, error) {
	if err := ctx.Err(); err != nil {
		return catalog.Enriched{}, err
	}

	initial := e.classifier.Initial(rec)
	fp, err := fingerprint.Compute(rec, initial.Domain, e.opts.FingerprintParams())
	if err != nil {
		return catalog.Enriched{}, err
	}

	leader := false
	v, err, _ := e.flight.Do(fp, func() (any, error) {
		leader = true
		return e.resolve(ctx, index, rec, initial, fp)
	})
	if err != nil {
		return catalog.Enriched{}, err
	}
	out := v.(outcome)
	if !leader {
		// Another record with the same fingerprint did the work.
		out.method = catalog.ResultFromCache
	}

	return catalog.Enriched{
		Record:     rec,
		DomainInfo: out.info,
		Result:     out.result,
		Meta:       catalog.Meta{Method: out.method, Fingerprint: fp},
	}, nil
}

func (e *Engine) resolve(ctx context.Context, index int, rec catalog.Record, initial catalog.DomainInfo, fp string) (outcome, error) {
	hit, ok, err := e.store.Get(ctx, fp)
	if err != nil {
		if ctx.Err() != nil {
			return outcome{}, ctx.Err()
		}
		e.log.Warn("cache lookup failed, treating as miss", zap.String("fingerprint", fp), zap.Error(err))
	}
	if ok {
		return outcome{info: hit.DomainInfo, result: hit.Result, method: catalog.ResultFromCache}, nil
	}

	info := e.classifier.Refine(ctx, index, rec, initial)
	if err := ctx.Err(); err != nil {
		return outcome{}, err
	}

	out := outcome{info: info, method: catalog.ResultFromFallback}
	if e.opts.GenerationEnabled {
		res, method, err := e.generate(ctx, rec, info)
		switch {
		case err == nil:
			out.result, out.method = res, method
		case ctx.Err() != nil:
			return outcome{}, ctx.Err()
		default:
			e.recordFailure(index, rec, err)
			out.result = fallback.Generate(rec, info.Domain, e.opts.Contract)
		}
	} else {
		out.result = fallback.Generate(rec, info.Domain, e.opts.Contract)
	}

	if err := normalize.Validate(out.result, e.opts.Contract); err != nil {
		e.log.Error("result not cached", zap.Int("index", index), zap.String("fingerprint", fp), zap.Error(err))
		return out, nil
	}
	if err := e.store.Put(ctx, cache.Entry{
		Fingerprint: fp,
		DomainInfo:  out.info,
		Result:      out.result,
		CreatedAt:   e.now().UTC(),
	}); err != nil {
		if ctx.Err() != nil {
			return outcome{}, ctx.Err()
		}
		e.log.Warn("cache write failed", zap.String("fingerprint", fp), zap.Error(err))
	}
	return out, nil
}

func (e *Engine) recordFailure(index int, rec catalog.Record, err error) {
	err = eris.Wrapf(err, "enrich record %d", index)
	if e.ledger != nil {
		e.ledger.Append(index, ledger.StageEnrich, rec.Name(), err)
	}
	e.log.Warn("enrichment fell back to templates",
		zap.Int("index", index),
		zap.String("name", rec.Name()),
		zap.Error(err),
	)
}

// generate runs prompt, generation, extraction, optional repair and normalization. The result
// is contract-valid whenever err is nil.
func (e *Engine) generate(ctx context.Context, rec catalog.Record, info catalog.DomainInfo) (catalog.Result, catalog.ResultMethod, error) {
	system, user := e.prompts.Enrichment(rec, info)
	raw, err := e.call(ctx, system, user, e.opts.Temperature)
	if err != nil {
		return catalog.Result{}, "", err
	}

	method := catalog.ResultFromGeneration
	obj, err := decodeEnrichment(raw)
	if err != nil {
		if !e.opts.Repair {
			return catalog.Result{}, "", err
		}
		e.log.Debug("malformed output, asking for repair", zap.String("name", rec.Name()), zap.Error(err))
		system, user := e.prompts.Repair(raw)
		fixed, callErr := e.call(ctx, system, user, 0)
		if callErr != nil {
			return catalog.Result{}, "", fmt.Errorf("repair: %w", callErr)
		}
		if obj, err = decodeEnrichment(fixed); err != nil {
			return catalog.Result{}, "", fmt.Errorf("repair: %w", err)
		}
		method = catalog.ResultFromRepair
	}

	res, violations := normalize.Normalize(obj, rec, info.Domain, e.opts.Contract)
	if len(violations) > 0 {
		e.log.Debug("normalized generated result",
			zap.String("name", rec.Name()),
			zap.Stringers("repairs", violations),
		)
	}
	if err := normalize.Validate(res, e.opts.Contract); err != nil {
		return catalog.Result{}, "", err
	}
	return res, method, nil
}

func (e *Engine) call(ctx context.Context, system, user string, temperature float64) (string, error) {
	raw, err := e.gen.Generate(ctx, generate.Request{
		System:          system,
		Prompt:          user,
		Temperature:     temperature,
		MaxOutputTokens: e.opts.MaxOutputTokens,
		JSONMode:        e.opts.JSONMode,
		ReadTimeout:     e.opts.ReadTimeout,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
	}
	return raw, nil
}

func decodeEnrichment(raw string) (map[string]any, error) {
	obj, err := extract.Decode(raw)
	if err != nil {
		return nil, err
	}
	if !normalize.HasContractKeys(obj) {
		return nil, fmt.Errorf("%w: object has none of the contract keys", ErrMalformedOutput)
	}
	return obj, nil
}
