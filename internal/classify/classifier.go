// Package classify assigns a coarse domain to each record: rule-based first, escalating to
// the generation service only when the rules are not confident enough.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/extract"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/generate"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/ledger"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/prompt"
	"github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/schema"
)

// ErrClassify marks a failed generation-assisted classification.
var ErrClassify = errors.New("classification failed")

const forcedSignal = "forced by config"

// Options configures a Classifier.
type Options struct {
	// DomainMode is schema.DomainModeAuto or the name of a domain to force.
	DomainMode string
	// Threshold is the confidence below which generation is consulted.
	Threshold float64
	// UseGeneration enables generation-assisted classification.
	UseGeneration bool

	Temperature     float64
	MaxOutputTokens int
	ReadTimeout     time.Duration
	JSONMode        bool

	// Rules overrides DefaultRules.
	Rules []Rule
}

func (o Options) withDefaults() Options {
	o.DomainMode = schema.NormalizeDomainMode(o.DomainMode)
	if o.Threshold <= 0 {
		o.Threshold = 0.70
	}
	if o.MaxOutputTokens <= 0 {
		o.MaxOutputTokens = 160
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 60 * time.Second
	}
	if len(o.Rules) == 0 {
		o.Rules = DefaultRules
	}
	return o
}

// Classifier is stateless per call and safe for concurrent use.
type Classifier struct {
	opts    Options
	gen     generate.Generator
	prompts prompt.Builder
	ledger  *ledger.Ledger
	log     *zap.Logger
}

// New returns a Classifier. gen may be nil when generation is disabled; l may be nil to skip
// ledger entries.
func New(opts Options, gen generate.Generator, prompts prompt.Builder, l *ledger.Ledger, log *zap.Logger) *Classifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{opts: opts.withDefaults(), gen: gen, prompts: prompts, ledger: l, log: log}
}

// Initial returns the forced or rule-based verdict. It never calls the generation service and
// is what the fingerprint is computed from.
func (c *Classifier) Initial(rec catalog.Record) catalog.DomainInfo {
	if c.opts.DomainMode != schema.DomainModeAuto {
		return catalog.DomainInfo{
			Domain:     catalog.Domain(c.opts.DomainMode),
			Confidence: 1.0,
			Signals:    []string{forcedSignal},
			Method:     catalog.MethodForced,
		}
	}
	return Heuristic(rec, c.opts.Rules)
}

// NeedsEscalation reports whether Refine would consult the generation service for initial.
func (c *Classifier) NeedsEscalation(initial catalog.DomainInfo) bool {
	return initial.Method == catalog.MethodHeuristic &&
		initial.Confidence < c.opts.Threshold &&
		c.opts.UseGeneration &&
		c.gen != nil
}

// Classify returns the final verdict for rec. It never fails: generation problems degrade to
// the rule-based verdict with method "fallback" and one ledger entry.
func (c *Classifier) Classify(ctx context.Context, index int, rec catalog.Record) catalog.DomainInfo {
	return c.Refine(ctx, index, rec, c.Initial(rec))
}

// Refine escalates a low-confidence initial verdict to the generation service.
func (c *Classifier) Refine(ctx context.Context, index int, rec catalog.Record, initial catalog.DomainInfo) catalog.DomainInfo {
	if !c.NeedsEscalation(initial) {
		return initial
	}

	info, err := c.generated(ctx, rec, initial)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrClassify, err)
		if c.ledger != nil {
			c.ledger.Append(index, ledger.StageClassify, rec.Name(), err)
		}
		c.log.Warn("classification fell back to heuristic",
			zap.Int("index", index),
			zap.String("name", rec.Name()),
			zap.String("domain", string(initial.Domain)),
			zap.Error(err),
		)
		fallback := initial
		fallback.Signals = append([]string(nil), initial.Signals...)
		fallback.Method = catalog.MethodFallback
		return fallback
	}
	return info
}

func (c *Classifier) generated(ctx context.Context, rec catalog.Record, initial catalog.DomainInfo) (catalog.DomainInfo, error) {
	system, user := c.prompts.Classification(rec)
	raw, err := c.gen.Generate(ctx, generate.Request{
		System:          system,
		Prompt:          user,
		Temperature:     c.opts.Temperature,
		MaxOutputTokens: c.opts.MaxOutputTokens,
		JSONMode:        c.opts.JSONMode,
		ReadTimeout:     c.opts.ReadTimeout,
	})
	if err != nil {
		return catalog.DomainInfo{}, err
	}
	obj, err := extract.Decode(raw)
	if err != nil {
		return catalog.DomainInfo{}, err
	}
	return validate(obj, initial)
}

// validate turns a decoded classification object into a DomainInfo. Out-of-set domains and
// unusable confidences fall back to the initial verdict's values.
func validate(obj map[string]any, initial catalog.DomainInfo) (catalog.DomainInfo, error) {
	rawDomain, ok := obj["domain"]
	if !ok {
		return catalog.DomainInfo{}, fmt.Errorf("%w: missing domain", extract.ErrMalformedOutput)
	}

	domain := initial.Domain
	if s, ok := rawDomain.(string); ok {
		if d, ok := catalog.ParseDomain(strings.ToLower(strings.TrimSpace(s))); ok {
			domain = d
		}
	}

	confidence := initial.Confidence
	if v, ok := toFloat(obj["confidence"]); ok {
		confidence = v
	}

	signals := cleanSignals(obj["signals"])
	if len(signals) == 0 {
		signals = append([]string(nil), initial.Signals...)
	}
	if len(signals) > catalog.MaxSignals {
		signals = signals[:catalog.MaxSignals]
	}

	return catalog.DomainInfo{
		Domain:     domain,
		Confidence: clamp(confidence),
		Signals:    signals,
		Method:     catalog.MethodGeneration,
	}, nil
}

// toFloat reads a finite number from a decoded JSON value. NaN and infinities are rejected.
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case json.Number:
		var err error
		if f, err = n.Float64(); err != nil {
			return 0, false
		}
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(n), 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func cleanSignals(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
