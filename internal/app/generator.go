package app

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/config"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/generate"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/generate/gemini"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/generate/ollama"
)

// NewBackend builds the configured generation backend without retries.
func NewBackend(ctx context.Context, g config.Generation) (generate.Generator, error) {
	switch g.Backend {
	case config.BackendOllama:
		return ollama.New(ollama.Config{
			BaseURL:        g.BaseURL,
			Model:          g.Model,
			ConnectTimeout: g.ConnectTimeout,
			ReadTimeout:    g.ReadTimeout,
		})
	case config.BackendGemini:
		return gemini.New(ctx, gemini.Config{
			APIKey:      g.APIKey,
			Model:       g.Model,
			BaseURL:     g.BaseURL,
			ReadTimeout: g.ReadTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown generation backend %q", g.Backend)
	}
}

// wrapGenerator adds call tracing and bounded retries around a backend.
func wrapGenerator(next generate.Generator, g config.Generation, log *zap.Logger) generate.Generator {
	traced := newTracedGenerator(next, log, g.MaxRetries)
	return generate.NewRetrying(traced, generate.RetryOptions{
		MaxRetries:   g.MaxRetries,
		Backoff:      g.RetryBackoff,
		RateLimitRPS: g.RateLimitRPS,
		Logger:       log,
	})
}

// tracedGenerator logs every attempt with its duration and outcome.
type tracedGenerator struct {
	next       generate.Generator
	log        *zap.Logger
	maxRetries int

	mu       sync.Mutex
	attempts map[uint64]int
}

func newTracedGenerator(next generate.Generator, log *zap.Logger, maxRetries int) *tracedGenerator {
	return &tracedGenerator{
		next:       next,
		log:        log,
		maxRetries: maxRetries,
		attempts:   make(map[uint64]int),
	}
}

func (t *tracedGenerator) Generate(ctx context.Context, req generate.Request) (string, error) {
	key := promptKey(req)
	attempt := t.nextAttempt(key)
	call := strconv.FormatUint(key, 16)

	deadlineIn := "none"
	if d, ok := ctx.Deadline(); ok {
		deadlineIn = time.Until(d).Round(time.Millisecond).String()
	}
	t.log.Debug("generation request",
		zap.String("call", call),
		zap.Int("attempt", attempt),
		zap.Float64("temperature", req.Temperature),
		zap.Int("max_output_tokens", req.MaxOutputTokens),
		zap.Bool("json_mode", req.JSONMode),
		zap.Duration("read_timeout", req.ReadTimeout),
		zap.String("deadline_in", deadlineIn),
		zap.Int("prompt_chars", len(req.Prompt)),
	)

	start := time.Now()
	out, err := t.next.Generate(ctx, req)
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		retryable := generate.IsRetryable(err)
		t.log.Debug("generation response",
			zap.String("call", call),
			zap.Int("attempt", attempt),
			zap.Duration("duration", elapsed),
			zap.String("status", "error"),
			zap.Bool("retryable", retryable),
			zap.Bool("will_retry", retryable && attempt <= t.maxRetries),
			zap.Error(err),
		)
		return out, err
	}
	t.log.Debug("generation response",
		zap.String("call", call),
		zap.Int("attempt", attempt),
		zap.Duration("duration", elapsed),
		zap.String("status", "ok"),
		zap.Int("response_chars", len(out)),
	)
	return out, nil
}

func (t *tracedGenerator) nextAttempt(key uint64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts[key]++
	return t.attempts[key]
}

func promptKey(req generate.Request) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(req.System))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(req.Prompt))
	return h.Sum64()
}
