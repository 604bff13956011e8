package local

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
)

// WriteEnvelope writes env as indented JSON without HTML escaping.
func WriteEnvelope(w io.Writer, env catalog.Envelope) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// ReadEnvelope decodes an envelope written by WriteEnvelope.
func ReadEnvelope(r io.Reader) (catalog.Envelope, error) {
	var env catalog.Envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return catalog.Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// ReadEnvelopeFile opens path and decodes the envelope it holds.
func ReadEnvelopeFile(path string) (catalog.Envelope, error) {
	f, err := os.Open(path)
	if err != nil {
		return catalog.Envelope{}, err
	}
	defer f.Close()
	return ReadEnvelope(f)
}

// WriteFileAtomic writes the output of fn to path through a temporary file in the same
// directory, creating parent directories as needed.
func WriteFileAtomic(path string, fn func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := fn(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
