// Package generate is the adapter between the enrichment pipeline and a text-generation
// service. Backends live in subpackages (ollama, gemini); this package holds the shared
// request shape, the transport error taxonomy and the retrying wrapper.
package generate

import (
	"context"
	"time"
)

// Request is one generation call.
type Request struct {
	System          string
	Prompt          string
	Temperature     float64
	MaxOutputTokens int
	// JSONMode asks the backend for its native JSON output mode when it has one.
	JSONMode bool
	// ReadTimeout overrides the backend's read timeout for this call when > 0.
	ReadTimeout time.Duration
}

// Generator returns the raw text produced for req.
//
// Transport failures surface as *ConnectError, *TimeoutError or *HTTPError.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Func adapts a function to the Generator interface.
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
