package schema

import (
	"fmt"
	"strings"
)

// DomainModeAuto lets the classifier pick the domain per record.
const DomainModeAuto = "auto"

// Upper bounds for counts that generic filler must be able to satisfy.
const (
	MaxBulletCount = 6
	MaxFAQCount    = 6
	MaxTags        = 30
)

// MinSimilarityThreshold is the lowest duplicate or redundancy threshold the filler bullets
// can always stay under.
const MinSimilarityThreshold = 0.7

// Contract is the fixed output contract every enrichment result must satisfy.
//
// All counts, character caps and similarity thresholds live here so callers can vary them per
// run (or per test) without touching package state.
type Contract struct {
	// BulletCount is the exact number of bullets in a valid result.
	BulletCount int `yaml:"bullet_count" json:"bullet_count"`
	// BulletMaxChars caps each bullet; longer bullets are cut at a word boundary.
	BulletMaxChars int `yaml:"bullet_max_chars" json:"bullet_max_chars"`

	TagsMin      int  `yaml:"tags_min" json:"tags_min"`
	TagsMax      int  `yaml:"tags_max" json:"tags_max"`
	TagMaxChars  int  `yaml:"tag_max_chars" json:"tag_max_chars"`
	SlugMaxChars int  `yaml:"slug_max_chars" json:"slug_max_chars"`
	ShortDescMax int  `yaml:"short_desc_max" json:"short_desc_max"`
	SEOTitleMax  int  `yaml:"seo_title_max" json:"seo_title_max"`
	SEODescMax   int  `yaml:"seo_description_max" json:"seo_description_max"`
	FAQEnabled   bool `yaml:"faq_enabled" json:"faq_enabled"`
	FAQMin       int  `yaml:"faq_min" json:"faq_min"`
	FAQMax       int  `yaml:"faq_max" json:"faq_max"`

	// DuplicateThreshold drops a bullet whose similarity ratio to an earlier bullet reaches it.
	DuplicateThreshold float64 `yaml:"duplicate_threshold" json:"duplicate_threshold"`
	// RedundancyThreshold drops a bullet whose similarity ratio to the short description or
	// the source description reaches it.
	RedundancyThreshold float64 `yaml:"redundancy_threshold" json:"redundancy_threshold"`
}

// DefaultContract returns the contract used when no configuration overrides it.
func DefaultContract() Contract {
	return Contract{
		BulletCount:         3,
		BulletMaxChars:      80,
		TagsMin:             6,
		TagsMax:             10,
		TagMaxChars:         40,
		SlugMaxChars:        80,
		ShortDescMax:        140,
		SEOTitleMax:         60,
		SEODescMax:          160,
		FAQEnabled:          false,
		FAQMin:              2,
		FAQMax:              3,
		DuplicateThreshold:  0.88,
		RedundancyThreshold: 0.82,
	}
}

// Validate reports contracts that no normalizer could satisfy.
func (c Contract) Validate() error {
	var problems []string
	if c.BulletCount <= 0 || c.BulletCount > MaxBulletCount {
		problems = append(problems, fmt.Sprintf("bullet_count must be in [1,%d]", MaxBulletCount))
	}
	if c.BulletMaxChars < 10 {
		problems = append(problems, "bullet_max_chars must be >= 10")
	}
	if c.TagsMin <= 0 || c.TagsMax < c.TagsMin || c.TagsMax > MaxTags {
		problems = append(problems, fmt.Sprintf("tags_min must be > 0 and <= tags_max <= %d", MaxTags))
	}
	if c.TagMaxChars < 8 {
		problems = append(problems, "tag_max_chars must be >= 8")
	}
	if c.SlugMaxChars < 8 {
		problems = append(problems, "slug_max_chars must be >= 8")
	}
	if c.ShortDescMax < 20 {
		problems = append(problems, "short_desc_max must be >= 20")
	}
	if c.SEOTitleMax < 10 {
		problems = append(problems, "seo_title_max must be >= 10")
	}
	// seo_description must be able to extend short_desc when the two would collide.
	if c.SEODescMax < c.ShortDescMax+12 {
		problems = append(problems, "seo_description_max must exceed short_desc_max by at least 12")
	}
	if c.FAQEnabled && (c.FAQMin < 0 || c.FAQMax < c.FAQMin || c.FAQMax == 0 || c.FAQMax > MaxFAQCount) {
		problems = append(problems, fmt.Sprintf("faq_min/faq_max must satisfy 0 <= min <= max, 0 < max <= %d", MaxFAQCount))
	}
	// Written as negated ranges so NaN fails them.
	if !(c.DuplicateThreshold >= MinSimilarityThreshold && c.DuplicateThreshold <= 1) {
		problems = append(problems, fmt.Sprintf("duplicate_threshold must be in [%.1f,1]", MinSimilarityThreshold))
	}
	if !(c.RedundancyThreshold >= MinSimilarityThreshold && c.RedundancyThreshold <= 1) {
		problems = append(problems, fmt.Sprintf("redundancy_threshold must be in [%.1f,1]", MinSimilarityThreshold))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid contract: %s", strings.Join(problems, "; "))
	}
	return nil
}

// NormalizeDomainMode maps the configured classifier mode to either DomainModeAuto or a
// lower-cased forced domain.
func NormalizeDomainMode(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	switch s {
	case "", "auto", "detect":
		return DomainModeAuto
	default:
		return s
	}
}
