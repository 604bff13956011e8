package generate

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RetryOptions configures a Retrying generator.
type RetryOptions struct {
	// MaxRetries is the number of extra attempts after the first failure.
	MaxRetries int
	// Backoff is the fixed sleep between attempts.
	Backoff time.Duration
	// RateLimitRPS is a global limit across all callers. Set to <=0 to disable.
	RateLimitRPS float64

	Logger *zap.Logger
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.Backoff < 0 {
		o.Backoff = 0
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Retrying wraps a Generator with bounded retries of retryable failures. It is safe for
// concurrent use when the wrapped Generator is.
type Retrying struct {
	next    Generator
	opts    RetryOptions
	limiter *rate.Limiter
}

// NewRetrying returns a Retrying generator around next.
func NewRetrying(next Generator, opts RetryOptions) *Retrying {
	opts = opts.withDefaults()
	r := &Retrying{next: next, opts: opts}
	if opts.RateLimitRPS > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}
	return r
}

// Generate calls the wrapped generator, retrying up to MaxRetries times. The last error is
// returned unchanged so callers can still match the transport error types.
func (r *Retrying) Generate(ctx context.Context, req Request) (string, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		out, err := r.next.Generate(ctx, req)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !IsRetryable(err) || attempt >= maxExtraRetries(r.opts.MaxRetries, err) {
			return "", err
		}

		r.opts.Logger.Debug("retrying generation call",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", r.opts.MaxRetries),
			zap.Error(err),
		)
		if r.opts.Backoff <= 0 {
			continue
		}
		t := time.NewTimer(r.opts.Backoff)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		}
	}
}

type retryCap interface {
	MaxExtraRetries() int
}

func maxExtraRetries(defaultRetries int, err error) int {
	var capErr retryCap
	if errors.As(err, &capErr) {
		limited := capErr.MaxExtraRetries()
		if limited < 0 {
			limited = 0
		}
		if limited < defaultRetries {
			return limited
		}
	}
	return defaultRetries
}
