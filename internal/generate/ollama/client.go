// Package ollama is the generation backend for a local or remote Ollama server
// (POST /api/generate, non-streaming).
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/generate"
)

const (
	DefaultBaseURL        = "http://127.0.0.1:11434"
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 240 * time.Second

	op = "ollama.generate"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Model   string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// HTTPClient overrides the transport. Its own timeouts then apply instead of
	// ConnectTimeout; ReadTimeout is still enforced per call.
	HTTPClient *http.Client
}

// Client calls Ollama's generate endpoint.
type Client struct {
	http        *http.Client
	endpoint    string
	model       string
	readTimeout time.Duration
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("ollama model is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	endpoint := base
	if !strings.HasSuffix(endpoint, "/api/generate") {
		endpoint += "/api/generate"
	}

	connect := cfg.ConnectTimeout
	if connect <= 0 {
		connect = DefaultConnectTimeout
	}
	read := cfg.ReadTimeout
	if read <= 0 {
		read = DefaultReadTimeout
	}

	hc := cfg.HTTPClient
	if hc == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.DialContext = (&net.Dialer{Timeout: connect, KeepAlive: 30 * time.Second}).DialContext
		hc = &http.Client{Transport: tr}
	}
	return &Client{http: hc, endpoint: endpoint, model: model, readTimeout: read}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

type generateRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options requestOptions `json:"options"`
}

type requestOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// Generate implements generate.Generator.
func (c *Client) Generate(ctx context.Context, req generate.Request) (string, error) {
	payload := generateRequest{
		Model:  c.model,
		System: req.System,
		Prompt: req.Prompt,
		Stream: false,
		Options: requestOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxOutputTokens,
		},
	}
	if req.JSONMode {
		payload.Format = "json"
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	read := c.readTimeout
	if req.ReadTimeout > 0 {
		read = req.ReadTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, read)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", classifyErr(ctx, callCtx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyErr(ctx, callCtx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", generate.NewHTTPError(op, resp.StatusCode, resp.Status, raw)
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", generate.NewHTTPError(op, resp.StatusCode, resp.Status, raw)
	}
	if strings.TrimSpace(out.Error) != "" {
		return "", &generate.HTTPError{Op: op, StatusCode: resp.StatusCode, Status: resp.Status, Message: out.Error}
	}
	return strings.TrimSpace(out.Response), nil
}

// classifyErr maps transport failures onto the generate error taxonomy. Cancellation of the
// caller's context is returned as is.
func classifyErr(parent, call context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(call.Err(), context.DeadlineExceeded) {
		return &generate.TimeoutError{Op: op, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return &generate.ConnectError{Op: op, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &generate.TimeoutError{Op: op, Err: err}
	}
	return &generate.ConnectError{Op: op, Err: err}
}
