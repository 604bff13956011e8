package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/core"
	"github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/redact"
)

// ConnectError means the service could not be reached.
type ConnectError struct {
	Op  string
	Err error
}

func (e *ConnectError) Error() string {
	if e == nil || e.Err == nil {
		return "generation connect error"
	}
	return fmt.Sprintf("generation connect error: op=%s: %v", e.Op, e.Err)
}

func (e *ConnectError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// TimeoutError means the service accepted the call but did not answer in time.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	if e == nil || e.Err == nil {
		return "generation timeout"
	}
	return fmt.Sprintf("generation timeout: op=%s: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// HTTPError is a sanitized summary of a non-2xx response.
//
// Raw bodies are never kept: they can echo prompts or credentials.
type HTTPError struct {
	Op         string
	StatusCode int
	Status     string
	// Message is the service's own error message when it sent one.
	Message string
	// Snippet is a redacted, truncated hint for responses without a message.
	Snippet string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "generation http error"
	}
	parts := []string{
		fmt.Sprintf("generation api error: op=%s status=%s", strings.TrimSpace(e.Op), strings.TrimSpace(e.Status)),
	}
	if strings.TrimSpace(e.Message) != "" {
		parts = append(parts, "message="+redact.Secrets(strings.TrimSpace(e.Message)))
	}
	if strings.TrimSpace(e.Snippet) != "" {
		parts = append(parts, "body="+strings.TrimSpace(e.Snippet))
	}
	return strings.Join(parts, " ")
}

// Temporary reports whether retrying the same call may succeed (rate limits, server errors).
func (e *HTTPError) Temporary() bool {
	if e == nil {
		return false
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode/100 == 5
}

type errorEnvelope struct {
	Error string `json:"error"`
}

// NewHTTPError builds an HTTPError from a response status and body.
func NewHTTPError(op string, statusCode int, status string, body []byte) *HTTPError {
	if status == "" {
		status = fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode))
	}
	h := &HTTPError{Op: op, StatusCode: statusCode, Status: status}

	var env errorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil && strings.TrimSpace(env.Error) != "" {
		h.Message = truncate(strings.TrimSpace(env.Error))
		return h
	}
	h.Snippet = redactAndTruncate(body)
	return h
}

// IsUnavailable reports whether err is a transport failure: the service could not be
// reached, timed out, or answered with a non-2xx status.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var ce *ConnectError
	var te *TimeoutError
	var he *HTTPError
	return errors.As(err, &ce) || errors.As(err, &te) || errors.As(err, &he)
}

// IsRetryable reports whether another attempt of the same call may succeed.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Temporary()
	}
	var ce *ConnectError
	var te *TimeoutError
	var tr *core.TransientError
	var lt *core.LimitedTransientError
	return errors.As(err, &ce) || errors.As(err, &te) || errors.As(err, &tr) || errors.As(err, &lt)
}

const maxSnippet = 256

func truncate(s string) string {
	if len(s) <= maxSnippet {
		return s
	}
	return s[:maxSnippet] + "..."
}

func redactAndTruncate(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	b := body
	if len(b) > maxSnippet {
		b = b[:maxSnippet]
	}
	s := redact.Secrets(string(b))
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(body) > maxSnippet {
		return s + "..."
	}
	return s
}
