package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/textutil"
	"github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/schema"
)

// ErrContractViolation marks a result that does not satisfy the output contract.
var ErrContractViolation = errors.New("contract violation")

var (
	slugRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	tagRe  = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)
)

// Validate re-checks every contract rule on r. The error wraps ErrContractViolation and lists
// all problems found.
func Validate(r catalog.Result, c schema.Contract) error {
	var problems []string
	bad := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if !slugRe.MatchString(r.Slug) {
		bad("slug %q is not a lower-case hyphenated token", r.Slug)
	}
	if textutil.RuneLen(r.Slug) > c.SlugMaxChars {
		bad("slug longer than %d", c.SlugMaxChars)
	}

	if strings.TrimSpace(r.ShortDesc) == "" {
		bad("short_desc is empty")
	}
	if textutil.RuneLen(r.ShortDesc) > c.ShortDescMax {
		bad("short_desc longer than %d", c.ShortDescMax)
	}

	if len(r.Bullets) != c.BulletCount {
		bad("want %d bullets, got %d", c.BulletCount, len(r.Bullets))
	}
	for i, b := range r.Bullets {
		switch {
		case strings.TrimSpace(b) == "":
			bad("bullet %d is empty", i)
		case textutil.RuneLen(b) > c.BulletMaxChars:
			bad("bullet %d longer than %d", i, c.BulletMaxChars)
		case HasLabelPrefix(b):
			bad("bullet %d starts with a field label", i)
		case Redundant(b, r.ShortDesc, c.RedundancyThreshold):
			bad("bullet %d repeats short_desc", i)
		}
		for j := 0; j < i; j++ {
			if Redundant(b, r.Bullets[j], c.DuplicateThreshold) {
				bad("bullets %d and %d are near-duplicates", j, i)
			}
		}
	}

	if len(r.Tags) < c.TagsMin || len(r.Tags) > c.TagsMax {
		bad("want %d to %d tags, got %d", c.TagsMin, c.TagsMax, len(r.Tags))
	}
	seen := make(map[string]struct{}, len(r.Tags))
	for _, t := range r.Tags {
		if !tagRe.MatchString(t) || len(t) > c.TagMaxChars {
			bad("tag %q is not a snake_case token of at most %d chars", t, c.TagMaxChars)
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			bad("duplicate tag %q", t)
		}
		seen[key] = struct{}{}
	}

	if strings.TrimSpace(r.SEOTitle) == "" {
		bad("seo_title is empty")
	}
	if textutil.RuneLen(r.SEOTitle) > c.SEOTitleMax {
		bad("seo_title longer than %d", c.SEOTitleMax)
	}
	if strings.TrimSpace(r.SEODescription) == "" {
		bad("seo_description is empty")
	}
	if textutil.RuneLen(r.SEODescription) > c.SEODescMax {
		bad("seo_description longer than %d", c.SEODescMax)
	}
	if sameText(r.SEODescription, r.ShortDesc) {
		bad("seo_description equals short_desc")
	}

	if c.FAQEnabled {
		if len(r.FAQ) < c.FAQMin || len(r.FAQ) > c.FAQMax {
			bad("want %d to %d faq entries, got %d", c.FAQMin, c.FAQMax, len(r.FAQ))
		}
		for i, f := range r.FAQ {
			if strings.TrimSpace(f.Q) == "" || strings.TrimSpace(f.A) == "" {
				bad("faq %d is incomplete", i)
			}
		}
	} else if len(r.FAQ) > 0 {
		bad("faq present but disabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrContractViolation, strings.Join(problems, "; "))
	}
	return nil
}
