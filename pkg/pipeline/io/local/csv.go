package local

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
)

// ReadRecordsCSV reads a CSV file whose header names the record fields. Rows with neither a
// name nor a description are skipped; the second return value counts them.
func ReadRecordsCSV(r io.Reader) ([]catalog.Record, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	cols := make([]string, len(header))
	for i, col := range header {
		cols[i] = strings.TrimSpace(strings.TrimPrefix(col, "\uFEFF"))
	}

	var out []catalog.Record
	skipped := 0
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read row: %w", err)
		}
		if len(row) > len(cols) {
			return nil, 0, fmt.Errorf("row %d has %d columns, header has %d", line, len(row), len(cols))
		}
		fields := make([]catalog.Field, 0, len(row))
		for i, v := range row {
			fields = append(fields, catalog.Field{Key: cols[i], Value: strings.TrimSpace(v)})
		}
		rec := catalog.NewRecord(fields...)
		if !usable(rec) {
			skipped++
			continue
		}
		out = append(out, rec)
	}
	return out, skipped, nil
}

var enrichedColumns = []string{
	"domain", "domain_confidence", "slug", "short_desc", "bullets", "tags",
	"seo_title", "seo_description", "method", "fingerprint",
}

// WriteEnrichedCSV writes one row per record: the union of input columns in first-seen order,
// followed by the enrichment columns. Bullets are joined with " | " and tags with ",".
func WriteEnrichedCSV(w io.Writer, records []catalog.Enriched) error {
	var inputCols []string
	seen := map[string]struct{}{}
	for _, c := range enrichedColumns {
		seen[c] = struct{}{}
	}
	for _, r := range records {
		for _, k := range r.Record.Keys() {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			inputCols = append(inputCols, k)
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string{}, inputCols...), enrichedColumns...)); err != nil {
		return err
	}
	for _, r := range records {
		row := make([]string, 0, len(inputCols)+len(enrichedColumns))
		for _, k := range inputCols {
			v, _ := r.Record.Get(k)
			row = append(row, v)
		}
		row = append(row,
			string(r.DomainInfo.Domain),
			fmt.Sprintf("%.2f", r.DomainInfo.Confidence),
			r.Result.Slug,
			r.Result.ShortDesc,
			strings.Join(r.Result.Bullets, " | "),
			strings.Join(r.Result.Tags, ","),
			r.Result.SEOTitle,
			r.Result.SEODescription,
			string(r.Meta.Method),
			r.Meta.Fingerprint,
		)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func usable(rec catalog.Record) bool {
	return rec.Name() != "" || rec.Description() != ""
}
