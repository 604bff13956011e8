// Package mockollama serves the subset of the Ollama HTTP API the enricher uses, with
// deterministic answers derived from the prompt and an optional script of canned replies.
package mockollama

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/fallback"
)

// Request is the decoded body of one /api/generate call.
type Request struct {
	Model   string  `json:"model"`
	System  string  `json:"system"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Format  string  `json:"format"`
	Options Options `json:"options"`
}

// Options mirrors the generation options the client sends.
type Options struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

// Reply is one scripted answer. A zero Status means 200; Text is wrapped in the Ollama
// response envelope unless Raw is set, in which case Text is written as the body verbatim.
type Reply struct {
	Status int
	Text   string
	Raw    bool
	Delay  time.Duration
}

// Server is a mock Ollama server. Scripted replies are consumed first, in order; once the
// script is exhausted every call is answered by Respond.
type Server struct {
	mu      sync.Mutex
	calls   []Request
	script  []Reply
	models  []string
	latency time.Duration
}

// New returns a server advertising models through /api/tags.
func New(models ...string) *Server {
	if len(models) == 0 {
		models = []string{"llama3.1:8b"}
	}
	return &Server{models: models}
}

// Script appends canned replies.
func (s *Server) Script(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, replies...)
}

// SetLatency delays every unscripted reply by d.
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// Calls returns a snapshot of the generate requests received.
func (s *Server) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.calls))
	copy(out, s.calls)
	return out
}

// Handler returns an http.Handler that serves the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/api/tags", s.handleTags)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "Ollama is running")
	})
	return mux
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	type model struct {
		Name string `json:"name"`
	}
	s.mu.Lock()
	out := struct {
		Models []model `json:"models"`
	}{}
	for _, m := range s.models {
		out.Models = append(out.Models, model{Name: m})
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Model) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "model is required"})
		return
	}
	if req.Stream {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "streaming is not supported by the mock"})
		return
	}

	s.mu.Lock()
	s.calls = append(s.calls, req)
	if !s.knownModel(req.Model) {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("model %q not found, try pulling it first", req.Model)})
		return
	}
	var reply Reply
	if len(s.script) > 0 {
		reply = s.script[0]
		s.script = s.script[1:]
	} else {
		reply = Reply{Text: Respond(req), Delay: s.latency}
	}
	s.mu.Unlock()

	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-r.Context().Done():
			return
		}
	}
	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	if reply.Raw {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply.Text)
		return
	}
	if status != http.StatusOK {
		writeJSON(w, status, map[string]string{"error": reply.Text})
		return
	}
	writeJSON(w, status, map[string]any{
		"model":      req.Model,
		"created_at": time.Now().UTC().Format(time.RFC3339Nano),
		"response":   reply.Text,
		"done":       true,
	})
}

func (s *Server) knownModel(name string) bool {
	for _, m := range s.models {
		if m == name {
			return true
		}
	}
	return false
}

var domainLineRe = regexp.MustCompile(`(?m)^Dominio detectado: (\S+)$`)

// Respond answers req deterministically. Classification prompts get a low-confidence generic
// verdict; enrichment and repair prompts get template content built from the product brief.
func Respond(req Request) string {
	if strings.Contains(req.System, "Clasifica el producto") {
		return `{"domain":"generic","confidence":0.55,"signals":["respuesta simulada"]}`
	}

	rec := briefRecord(req.Prompt)
	domain := catalog.DomainGeneric
	if m := domainLineRe.FindStringSubmatch(req.Prompt); m != nil {
		if d, ok := catalog.ParseDomain(m[1]); ok {
			domain = d
		}
	}
	b, err := json.Marshal(fallback.Raw(rec, domain))
	if err != nil {
		return "{}"
	}
	return string(b)
}

// briefRecord recovers the record summary that follows the "Producto:" line. Its keys are
// field aliases, so the result reads like an input record.
func briefRecord(prompt string) catalog.Record {
	_, rest, ok := strings.Cut(prompt, "Producto:\n")
	if !ok {
		return catalog.NewRecord(catalog.Field{Key: "nombre", Value: "Producto"})
	}
	line, _, _ := strings.Cut(rest, "\n")
	var brief map[string]any
	if err := json.Unmarshal([]byte(line), &brief); err != nil {
		return catalog.NewRecord(catalog.Field{Key: "nombre", Value: "Producto"})
	}
	fields := make(map[string]string, len(brief))
	for k, v := range brief {
		switch t := v.(type) {
		case string:
			fields[k] = t
		case map[string]any:
			for ek, ev := range t {
				if s, ok := ev.(string); ok {
					fields[ek] = s
				}
			}
		}
	}
	return catalog.FromMap(fields, "nombre", "descripcion")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
