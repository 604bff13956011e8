package catalog_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
)

func TestRecordPreservesOrder(t *testing.T) {
	rec := catalog.NewRecord(
		catalog.Field{Key: "nombre", Value: "Soporte monitor"},
		catalog.Field{Key: "material", Value: "PLA"},
		catalog.Field{Key: " ", Value: "ignored"},
		catalog.Field{Key: "color", Value: "negro"},
		catalog.Field{Key: "material", Value: "PETG"},
	)

	assert.Equal(t, []string{"nombre", "material", "color"}, rec.Keys())
	assert.Equal(t, "PETG", rec.Value("material"))

	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"nombre":"Soporte monitor","material":"PETG","color":"negro"}`, string(b))
}

func TestRecordLookupUsesAliases(t *testing.T) {
	rec := catalog.NewRecord(
		catalog.Field{Key: "name", Value: "Trail runner"},
		catalog.Field{Key: "nombre", Value: "  "},
		catalog.Field{Key: "talla", Value: "42"},
	)

	assert.Equal(t, "Trail runner", rec.Name())
	assert.Equal(t, "42", rec.Lookup(catalog.RoleSize))
	assert.Equal(t, "", rec.Lookup(catalog.RoleBrand))
}

func TestRecordExtrasSkipCoreAndPresentation(t *testing.T) {
	rec := catalog.NewRecord(
		catalog.Field{Key: "nombre", Value: "Ovillo"},
		catalog.Field{Key: "precio", Value: "4.50"},
		catalog.Field{Key: "metros", Value: "120"},
		catalog.Field{Key: "grosor", Value: "5"},
		catalog.Field{Key: "lavado", Value: ""},
	)

	assert.Equal(t, map[string]string{"metros": "120", "grosor": "5"}, rec.Extras())
	assert.True(t, catalog.IsPresentationField("precio"))
	assert.False(t, catalog.IsPresentationField("metros"))
}

func TestRecordUnmarshalKeepsDocumentOrder(t *testing.T) {
	var rec catalog.Record
	require.NoError(t, json.Unmarshal([]byte(`{"b":"2","a":"1","n":3}`), &rec))

	assert.Equal(t, []string{"b", "a", "n"}, rec.Keys())
	assert.Equal(t, "3", rec.Value("n"))
}

func TestEnrichedMarshalAppendsEnrichment(t *testing.T) {
	e := catalog.Enriched{
		Record: catalog.NewRecord(
			catalog.Field{Key: "nombre", Value: "Taza"},
			catalog.Field{Key: "slug", Value: "stale"},
		),
		DomainInfo: catalog.DomainInfo{Domain: catalog.DomainGeneric, Confidence: 0.4, Signals: []string{"no strong signals"}, Method: catalog.MethodHeuristic},
		Result: catalog.Result{
			Slug:           "taza",
			ShortDesc:      "Taza de cerámica",
			Bullets:        []string{"a", "b", "c"},
			Tags:           []string{"taza"},
			SEOTitle:       "Taza",
			SEODescription: "Taza de cerámica & más",
		},
		Meta: catalog.Meta{Method: catalog.ResultFromFallback, Fingerprint: "abc"},
	}

	b, err := json.Marshal(e)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(b, &generic))
	assert.Equal(t, "taza", generic["slug"])
	assert.Contains(t, string(b), `{"nombre":"Taza","domain_info":`)
	assert.NotContains(t, string(b), "faq")

	var back catalog.Enriched
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, []string{"nombre"}, back.Record.Keys())
	assert.Equal(t, e.Result, back.Result)
	assert.Equal(t, e.DomainInfo, back.DomainInfo)
	assert.Equal(t, e.Meta, back.Meta)
}

func TestParseDomain(t *testing.T) {
	d, ok := catalog.ParseDomain("footwear")
	assert.True(t, ok)
	assert.Equal(t, catalog.DomainFootwear, d)

	_, ok = catalog.ParseDomain("furniture")
	assert.False(t, ok)
}
