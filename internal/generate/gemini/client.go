// Package gemini is the generation backend for the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/generate"
	"github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/core"
)

const op = "gemini.generate"

// Config configures a Client.
type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string

	ReadTimeout time.Duration
}

// Client calls Models.GenerateContent.
type Client struct {
	client      *genai.Client
	model       string
	readTimeout time.Duration
}

// New validates cfg and returns a Client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("gemini model is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &Client{
		client:      client,
		model:       strings.TrimSpace(cfg.Model),
		readTimeout: cfg.ReadTimeout,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Generate implements generate.Generator.
func (c *Client) Generate(ctx context.Context, req generate.Request) (string, error) {
	read := c.readTimeout
	if req.ReadTimeout > 0 {
		read = req.ReadTimeout
	}
	callCtx := ctx
	if read > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, read)
		defer cancel()
	}

	resp, err := c.client.Models.GenerateContent(callCtx, c.model, genai.Text(req.Prompt), buildConfig(req))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", &generate.TimeoutError{Op: op, Err: err}
		}
		return "", classifyErr(err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func buildConfig(req generate.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:    genai.Ptr(float32(req.Temperature)),
		CandidateCount: 1,
	}
	if strings.TrimSpace(req.System) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	if req.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

// quotaExtraRetries caps retries when the API reports an exhausted quota; waiting a backoff
// rarely refills it.
const quotaExtraRetries = 0

// classifyErr maps SDK errors onto the generate error taxonomy. Retryable API statuses are
// wrapped so the retry loop can see them: quota exhaustion as a capped transient error, other
// rate limits and server errors as plain transient errors.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		he := &generate.HTTPError{
			Op:         op,
			StatusCode: apiErr.Code,
			Status:     fmt.Sprintf("%d %s", apiErr.Code, apiErr.Status),
			Message:    apiErr.Message,
		}
		switch {
		case isQuotaExhausted(apiErr):
			return &core.LimitedTransientError{Err: he, ExtraRetries: quotaExtraRetries}
		case he.Temporary():
			return &core.TransientError{Err: he}
		default:
			return he
		}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &generate.TimeoutError{Op: op, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &generate.ConnectError{Op: op, Err: err}
	}
	return err
}

func isQuotaExhausted(apiErr genai.APIError) bool {
	if apiErr.Code != http.StatusTooManyRequests {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "quota") || strings.Contains(msg, "exhausted")
}
