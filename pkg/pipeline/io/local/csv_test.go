package local_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
	"github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/io/local"
)

func TestReadRecordsCSV(t *testing.T) {
	t.Run("reads header columns as fields", func(t *testing.T) {
		in := "nombre,material,precio\nSoporte monitor, PLA ,12.50\nLlavero,PETG,3\n"
		got, skipped, err := local.ReadRecordsCSV(strings.NewReader(in))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if skipped != 0 || len(got) != 2 {
			t.Fatalf("unexpected result: %d records, %d skipped", len(got), skipped)
		}
		if got[0].Name() != "Soporte monitor" || got[0].Value("material") != "PLA" {
			t.Fatalf("unexpected first record: %#v", got[0].Fields())
		}
		if keys := got[1].Keys(); len(keys) != 3 || keys[2] != "precio" {
			t.Fatalf("unexpected keys: %#v", keys)
		}
	})

	t.Run("strips byte order mark from header", func(t *testing.T) {
		in := "\ufeffnombre,color\nTaza,Azul\n"
		got, _, err := local.ReadRecordsCSV(strings.NewReader(in))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0].Name() != "Taza" || got[0].Keys()[0] != "nombre" {
			t.Fatalf("unexpected records: %#v", got)
		}
	})

	t.Run("english aliases and short rows", func(t *testing.T) {
		in := "name,description,color\nMug,Ceramic mug\n"
		got, _, err := local.ReadRecordsCSV(strings.NewReader(in))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0].Description() != "Ceramic mug" || got[0].Len() != 2 {
			t.Fatalf("unexpected records: %#v", got)
		}
	})

	t.Run("rows without name and description are skipped", func(t *testing.T) {
		in := "nombre,descripcion,material\n,,PLA\nTaza,,\n"
		got, skipped, err := local.ReadRecordsCSV(strings.NewReader(in))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || skipped != 1 {
			t.Fatalf("unexpected result: %d records, %d skipped", len(got), skipped)
		}
	})

	t.Run("row wider than header errors", func(t *testing.T) {
		in := "nombre\nTaza,extra\n"
		if _, _, err := local.ReadRecordsCSV(strings.NewReader(in)); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("empty input errors", func(t *testing.T) {
		if _, _, err := local.ReadRecordsCSV(strings.NewReader("")); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestWriteEnrichedCSV(t *testing.T) {
	records := []catalog.Enriched{{
		Record: catalog.NewRecord(
			catalog.Field{Key: "nombre", Value: "Taza"},
			catalog.Field{Key: "slug", Value: "stale"},
		),
		DomainInfo: catalog.DomainInfo{Domain: catalog.DomainGeneric, Confidence: 0.4},
		Result: catalog.Result{
			Slug:           "taza",
			ShortDesc:      "Taza de cerámica",
			Bullets:        []string{"Uno", "Dos", "Tres"},
			Tags:           []string{"taza", "ceramica"},
			SEOTitle:       "Taza",
			SEODescription: "Taza de cerámica, lista para regalar.",
		},
		Meta: catalog.Meta{Method: catalog.ResultFromFallback, Fingerprint: "abc"},
	}}

	var buf bytes.Buffer
	if err := local.WriteEnrichedCSV(&buf, records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("want header + 1 row, got %d rows", len(rows))
	}
	header := strings.Join(rows[0], ",")
	if header != "nombre,domain,domain_confidence,slug,short_desc,bullets,tags,seo_title,seo_description,method,fingerprint" {
		t.Fatalf("unexpected header: %s", header)
	}
	row := rows[1]
	if row[0] != "Taza" || row[2] != "0.40" || row[3] != "taza" || row[5] != "Uno | Dos | Tres" || row[6] != "taza,ceramica" || row[9] != "fallback" {
		t.Fatalf("unexpected row: %#v", row)
	}
}

func TestSource(t *testing.T) {
	dir := t.TempDir()
	xmlPath := filepath.Join(dir, "productos.xml")
	if err := os.WriteFile(xmlPath, []byte(sampleXML), 0o644); err != nil {
		t.Fatal(err)
	}

	src := &local.Source{Path: xmlPath}
	got, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || src.Skipped != 1 {
		t.Fatalf("unexpected result: %d records, %d skipped", len(got), src.Skipped)
	}

	bad := &local.Source{Path: filepath.Join(dir, "productos.txt")}
	if _, err := bad.Load(context.Background()); err == nil || !strings.Contains(err.Error(), "unsupported input format") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}

	missing := &local.Source{Path: filepath.Join(dir, "missing.csv")}
	if _, err := missing.Load(context.Background()); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestEnvelopeSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "enriched.json")
	sink := &local.EnvelopeSink{
		Path: path,
		Envelope: catalog.Envelope{
			GeneratedAt: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC),
			Source:      "productos.xml",
			Version:     "0.3.0",
			RunID:       "run-1",
			Config:      map[string]any{"workers": 1},
		},
	}
	rows := []catalog.Enriched{{
		Record: catalog.NewRecord(catalog.Field{Key: "nombre", Value: "Taza <grande>"}),
		Result: catalog.Result{Slug: "taza-grande", Bullets: []string{"a", "b", "c"}, Tags: []string{"taza"}},
		Meta:   catalog.Meta{Method: catalog.ResultFromGeneration, Fingerprint: "fp"},
	}}
	if err := sink.Store(context.Background(), rows); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(raw, []byte(`"nombre": "Taza <grande>"`)) {
		t.Fatalf("expected unescaped, indented output, got:\n%s", raw)
	}

	env, err := local.ReadEnvelopeFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Count != 1 || env.RunID != "run-1" || env.Records[0].Result.Slug != "taza-grande" {
		t.Fatalf("unexpected envelope: %#v", env)
	}
	if env.Records[0].Meta.Method != catalog.ResultFromGeneration {
		t.Fatalf("unexpected meta: %#v", env.Records[0].Meta)
	}
}
