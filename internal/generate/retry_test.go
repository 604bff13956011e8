package generate_test

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/generate"
	"github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/core"
)

func TestRetryingRetriesUnavailable(t *testing.T) {
	var calls atomic.Int32
	next := generate.Func(func(context.Context, generate.Request) (string, error) {
		if calls.Add(1) <= 1 {
			return "", &generate.TimeoutError{Op: "test", Err: context.DeadlineExceeded}
		}
		return "ok", nil
	})

	out, err := generate.NewRetrying(next, generate.RetryOptions{MaxRetries: 1, Backoff: time.Millisecond}).
		Generate(context.Background(), generate.Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetryingStopsAtMaxRetries(t *testing.T) {
	var calls atomic.Int32
	next := generate.Func(func(context.Context, generate.Request) (string, error) {
		calls.Add(1)
		return "", &generate.ConnectError{Op: "test", Err: errors.New("connection refused")}
	})

	_, err := generate.NewRetrying(next, generate.RetryOptions{MaxRetries: 2}).
		Generate(context.Background(), generate.Request{})
	var ce *generate.ConnectError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryingDoesNotRetryPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "plain", err: errors.New("boom")},
		{name: "bad request", err: generate.NewHTTPError("test", http.StatusBadRequest, "", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			next := generate.Func(func(context.Context, generate.Request) (string, error) {
				calls.Add(1)
				return "", tt.err
			})
			_, err := generate.NewRetrying(next, generate.RetryOptions{MaxRetries: 5}).
				Generate(context.Background(), generate.Request{})
			assert.Equal(t, tt.err, err)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestRetryingRespectsPerErrorCap(t *testing.T) {
	var calls atomic.Int32
	next := generate.Func(func(context.Context, generate.Request) (string, error) {
		calls.Add(1)
		return "", &core.LimitedTransientError{Err: errors.New("busy"), ExtraRetries: 1}
	})
	_, err := generate.NewRetrying(next, generate.RetryOptions{MaxRetries: 10}).
		Generate(context.Background(), generate.Request{})
	assert.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetryingHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	next := generate.Func(func(context.Context, generate.Request) (string, error) {
		cancel()
		return "", &generate.TimeoutError{Op: "test"}
	})
	_, err := generate.NewRetrying(next, generate.RetryOptions{MaxRetries: 3, Backoff: time.Hour}).
		Generate(ctx, generate.Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPErrorRedactsSnippet(t *testing.T) {
	he := generate.NewHTTPError("op", http.StatusBadGateway, "", []byte("upstream said api_key=SECRET123 nope"))
	assert.True(t, he.Temporary())
	assert.NotContains(t, he.Error(), "SECRET123")
	assert.Contains(t, he.Error(), "502 Bad Gateway")
}

func TestIsUnavailable(t *testing.T) {
	assert.False(t, generate.IsUnavailable(nil))
	assert.False(t, generate.IsUnavailable(errors.New("x")))
	assert.True(t, generate.IsUnavailable(&generate.ConnectError{Op: "x"}))
	assert.True(t, generate.IsUnavailable(&generate.TimeoutError{Op: "x"}))
	assert.True(t, generate.IsUnavailable(generate.NewHTTPError("x", 500, "", nil)))
}
