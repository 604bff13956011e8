package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/mockollama"
)

func main() {
	addr := defaultString("MOCK_OLLAMA_ADDR", ":11434")
	models := defaultString("MOCK_OLLAMA_MODELS", "llama3.1:8b")
	latency := defaultString("MOCK_OLLAMA_LATENCY", "0s")

	fs := flag.NewFlagSet("mock-ollama", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&models, "models", models, "Comma-separated model names to accept (also supports env: MOCK_OLLAMA_MODELS)")
	fs.StringVar(&latency, "latency", latency, "Delay added to every reply (also supports env: MOCK_OLLAMA_LATENCY)")
	_ = fs.Parse(os.Args[1:])

	delay, err := time.ParseDuration(latency)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid latency %q: %v\n", latency, err)
		os.Exit(2)
	}

	srv := mockollama.New(splitCSV(models)...)
	srv.SetLatency(delay)

	_, _ = fmt.Fprintf(os.Stdout, "mock-ollama listening on %s (models=%s latency=%s)\n", addr, models, delay)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.TrimSpace(p)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
