package schema_test

import (
	"math"
	"testing"

	"github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/schema"
)

func TestNormalizeDomainMode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "auto default", in: "", want: schema.DomainModeAuto},
		{name: "auto explicit", in: "auto", want: schema.DomainModeAuto},
		{name: "detect alias", in: "Detect", want: schema.DomainModeAuto},
		{name: "forced", in: " Footwear ", want: "footwear"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := schema.NormalizeDomainMode(tt.in); got != tt.want {
				t.Fatalf("NormalizeDomainMode(%q)=%q want=%q", tt.in, got, tt.want)
			}
		})
	}
}

func TestContractValidate(t *testing.T) {
	if err := schema.DefaultContract().Validate(); err != nil {
		t.Fatalf("default contract invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*schema.Contract)
	}{
		{name: "no bullets", mutate: func(c *schema.Contract) { c.BulletCount = 0 }},
		{name: "too many bullets", mutate: func(c *schema.Contract) { c.BulletCount = schema.MaxBulletCount + 1 }},
		{name: "tags inverted", mutate: func(c *schema.Contract) { c.TagsMin, c.TagsMax = 8, 4 }},
		{name: "seo too short", mutate: func(c *schema.Contract) { c.SEODescMax = c.ShortDescMax }},
		{name: "threshold out of range", mutate: func(c *schema.Contract) { c.DuplicateThreshold = 1.5 }},
		{name: "threshold too low", mutate: func(c *schema.Contract) { c.RedundancyThreshold = 0.3 }},
		{name: "threshold NaN", mutate: func(c *schema.Contract) { c.DuplicateThreshold = math.NaN() }},
		{name: "faq inverted", mutate: func(c *schema.Contract) { c.FAQEnabled, c.FAQMin, c.FAQMax = true, 3, 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := schema.DefaultContract()
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
