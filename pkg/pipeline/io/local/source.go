package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
	"github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/core"
)

// Source loads records from a local XML or CSV file, picked by extension.
type Source struct {
	Path string

	// Skipped is set by Load to the number of items without name and description.
	Skipped int
}

var _ core.InputAdapter[catalog.Record] = (*Source)(nil)

// Load reads every usable record of the file in document order.
func (s *Source) Load(ctx context.Context) ([]catalog.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	read, err := readerFor(s.Path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	records, skipped, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	s.Skipped = skipped
	return records, nil
}

func readerFor(path string) (func(io.Reader) ([]catalog.Record, int, error), error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		return ReadRecordsXML, nil
	case ".csv":
		return ReadRecordsCSV, nil
	default:
		return nil, fmt.Errorf("unsupported input format %q (want .xml or .csv)", filepath.Ext(path))
	}
}

// EnvelopeSink writes a run's envelope to Path. Envelope supplies everything except the
// records.
type EnvelopeSink struct {
	Path     string
	Envelope catalog.Envelope
}

var _ core.OutputAdapter[catalog.Enriched] = (*EnvelopeSink)(nil)

// Store writes the envelope atomically.
func (s *EnvelopeSink) Store(ctx context.Context, rows []catalog.Enriched) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := s.Envelope
	env.Records = rows
	env.Count = len(rows)
	return WriteFileAtomic(s.Path, func(w io.Writer) error {
		return WriteEnvelope(w, env)
	})
}

// CSVSink writes the enriched records as a flat CSV file.
type CSVSink struct {
	Path string
}

var _ core.OutputAdapter[catalog.Enriched] = (*CSVSink)(nil)

// Store writes rows atomically.
func (s *CSVSink) Store(ctx context.Context, rows []catalog.Enriched) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return WriteFileAtomic(s.Path, func(w io.Writer) error {
		return WriteEnrichedCSV(w, rows)
	})
}
