// Package fingerprint derives the content-addressed cache key of a (record, configuration)
// pair.
package fingerprint

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
	"github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/schema"
)

// Params is the configuration tuple that participates in every fingerprint.
type Params struct {
	RulesVersion      string
	GenerationEnabled bool
	Backend           string
	Model             string
	Temperature       float64
	Language          string
	Contract          schema.Contract
}

// ModelIdentity is the model name hashed into the fingerprint. Runs without generation share
// one identity so their fallback results are reused regardless of the configured model.
func (p Params) ModelIdentity() string {
	if !p.GenerationEnabled || p.Model == "" {
		return "none"
	}
	return p.Model
}

type canonical struct {
	Backend     string            `json:"backend"`
	Contract    schema.Contract   `json:"contract"`
	Core        map[string]string `json:"core"`
	Domain      catalog.Domain    `json:"domain"`
	Extras      map[string]string `json:"extras"`
	Language    string            `json:"language"`
	Model       string            `json:"model"`
	Temperature float64           `json:"temperature"`
	Version     string            `json:"v"`
}

// Compute returns the 40-character hex SHA-1 of the canonical form of rec, domain and p.
//
// Core roles are resolved through their aliases so "name" and "nombre" hash alike; every other
// non-empty field except price, image and link is hashed under its own key. Map keys are
// serialized in sorted order, so field insertion order never matters.
// It fails only when p cannot be encoded, such as a non-finite temperature or threshold.
func Compute(rec catalog.Record, domain catalog.Domain, p Params) (string, error) {
	core := make(map[string]string, len(catalog.CoreRoles))
	for _, role := range catalog.CoreRoles {
		core[string(role)] = rec.Lookup(role)
	}
	backend := p.Backend
	if !p.GenerationEnabled {
		backend = "none"
	}
	c := canonical{
		Backend:     backend,
		Contract:    p.Contract,
		Core:        core,
		Domain:      domain,
		Extras:      rec.Extras(),
		Language:    p.Language,
		Model:       p.ModelIdentity(),
		Temperature: p.Temperature,
		Version:     p.RulesVersion,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}

	sum := sha1.Sum(bytes.TrimRight(buf.Bytes(), "\n"))
	return hex.EncodeToString(sum[:]), nil
}
