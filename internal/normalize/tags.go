package normalize

import (
	"strconv"
	"strings"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/textutil"
)

// stopTags are generic marketing tokens that carry no catalog meaning.
var stopTags = map[string]struct{}{
	"producto":     {},
	"productos":    {},
	"catalogo":     {},
	"tienda":       {},
	"oferta":       {},
	"recomendado":  {},
	"recomendable": {},
	"comprar":      {},
	"venta":        {},
	"nuevo":        {},
}

var genericTags = []string{
	"novedad",
	"regalo",
	"uso_diario",
	"calidad",
	"practico",
	"diseno",
	"funcional",
	"versatil",
}

// nameStopWords are frequent words of product names that make poor tags.
var nameStopWords = map[string]struct{}{
	"para": {}, "como": {}, "desde": {}, "sobre": {}, "entre": {}, "hasta": {},
	"este": {}, "esta": {}, "with": {}, "from": {}, "tipo": {}, "pack": {},
}

type tagSet struct {
	items   []string
	seen    map[string]struct{}
	maxLen  int
	maxTags int
}

func (t *tagSet) add(raw string) bool {
	if len(t.items) >= t.maxTags {
		return false
	}
	tag := textutil.SnakeCase(raw, t.maxLen)
	if tag == "" {
		return false
	}
	if _, dup := t.seen[tag]; dup {
		return false
	}
	t.seen[tag] = struct{}{}
	t.items = append(t.items, tag)
	return true
}

// IsStopTag reports whether tag (already snake_case) is a filtered marketing token.
func IsStopTag(tag string) bool {
	_, ok := stopTags[tag]
	return ok
}

func (n *normalizer) tags() []string {
	set := &tagSet{seen: map[string]struct{}{}, maxLen: n.c.TagMaxChars, maxTags: n.c.TagsMax}

	for _, role := range catalog.TagRoles {
		set.add(n.rec.Lookup(role))
	}

	generated := asList(n.raw["tags"], ",;\n")
	for _, raw := range generated {
		tag := textutil.SnakeCase(raw, n.c.TagMaxChars)
		if IsStopTag(tag) {
			n.repair("tags", "dropped stop tag %q", tag)
			continue
		}
		if !set.add(tag) && len(set.items) >= n.c.TagsMax {
			n.repair("tags", "capped at %d", n.c.TagsMax)
			break
		}
	}
	if len(generated) == 0 {
		n.repair("tags", "missing, seeded from record fields")
	}

	if len(set.items) < n.c.TagsMin {
		n.repair("tags", "padded to %d", n.c.TagsMin)
		pads := make([]string, 0, 16)
		if n.domain != "" && n.domain != catalog.DomainGeneric {
			pads = append(pads, string(n.domain))
		}
		pads = append(pads, nameTokens(n.rec.Name())...)
		pads = append(pads, genericTags...)
		for _, p := range pads {
			if len(set.items) >= n.c.TagsMin {
				break
			}
			if IsStopTag(p) {
				continue
			}
			set.add(p)
		}
		for i := 1; len(set.items) < n.c.TagsMin; i++ {
			set.add(padTag(i, n.c.TagMaxChars))
		}
	}
	return set.items
}

// padTag returns the i-th numbered filler tag, shortening its prefix so the index always fits
// within maxLen.
func padTag(i, maxLen int) string {
	suffix := "_" + strconv.Itoa(i)
	prefix := "etiqueta"
	if room := maxLen - len(suffix); room < len(prefix) {
		prefix = prefix[:max(room, 1)]
	}
	return prefix + suffix
}

func nameTokens(name string) []string {
	var out []string
	for _, w := range strings.Fields(textutil.NormForCompare(name)) {
		if len(w) < 4 || isDigits(w) {
			continue
		}
		if _, stop := nameStopWords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
