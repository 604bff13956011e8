// Package normalize turns a raw, possibly partial generation object into a contract-valid
// enrichment result, repairing whatever is missing from the record's own fields.
//
// Nothing here invents facts: synthesized text only restates values present in the record,
// and generic filler never names a property.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/textutil"
	"github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/schema"
)

// Violation is one contract repair applied during normalization.
type Violation struct {
	Field  string
	Reason string
}

func (v Violation) String() string {
	return v.Field + ": " + v.Reason
}

// ContractKeys are the keys a generation object is expected to carry.
var ContractKeys = []string{"slug", "short_desc", "bullets", "tags", "seo_title", "seo_description"}

// HasContractKeys reports whether raw carries at least one contract key. An object with none
// of them is not an enrichment at all.
func HasContractKeys(raw map[string]any) bool {
	for _, k := range ContractKeys {
		if _, ok := raw[k]; ok {
			return true
		}
	}
	return false
}

const (
	defaultSlug      = "producto"
	defaultShortDesc = "Producto de catálogo"
	seoSuffix        = "Descubre más detalles en la ficha."
)

type normalizer struct {
	raw        map[string]any
	rec        catalog.Record
	domain     catalog.Domain
	c          schema.Contract
	violations []Violation
}

func (n *normalizer) repair(field, format string, args ...any) {
	n.violations = append(n.violations, Violation{Field: field, Reason: fmt.Sprintf(format, args...)})
}

// Normalize builds a contract-valid result from raw (nil is allowed) and rec. The returned
// violations list every repair that was needed; none of them is fatal.
func Normalize(raw map[string]any, rec catalog.Record, domain catalog.Domain, c schema.Contract) (catalog.Result, []Violation) {
	if raw == nil {
		raw = map[string]any{}
	}
	n := &normalizer{raw: raw, rec: rec, domain: domain, c: c}

	var res catalog.Result
	res.Slug = n.slug()
	res.ShortDesc = n.shortDesc()
	res.Bullets = n.bullets(res.ShortDesc)
	res.Tags = n.tags()
	res.SEOTitle = n.seoTitle(res.ShortDesc)
	res.SEODescription = n.seoDescription(res.ShortDesc)
	res.FAQ = n.faq()
	return res, n.violations
}

func (n *normalizer) slug() string {
	if s := textutil.Slugify(asString(n.raw["slug"]), n.c.SlugMaxChars); s != "" {
		return s
	}
	name := n.rec.Name()
	brand := n.rec.Lookup(catalog.RoleBrand)
	base := name
	if brand != "" && !strings.Contains(textutil.NormForCompare(name), textutil.NormForCompare(brand)) {
		base = name + " " + brand
	}
	if s := textutil.Slugify(base, n.c.SlugMaxChars); s != "" {
		n.repair("slug", "derived from name")
		return s
	}
	n.repair("slug", "no usable source, using generic token")
	return defaultSlug
}

func (n *normalizer) shortDesc() string {
	candidates := []struct {
		text, reason string
	}{
		{asString(n.raw["short_desc"]), ""},
		{n.rec.Description(), "taken from description"},
		{n.rec.Name(), "taken from name"},
		{defaultShortDesc, "no usable source, using generic text"},
	}
	for _, cand := range candidates {
		text := textutil.CompactWhitespace(cand.text)
		if textutil.NormForCompare(text) == "" {
			continue
		}
		if cand.reason != "" {
			n.repair("short_desc", "%s", cand.reason)
		}
		if textutil.RuneLen(text) > n.c.ShortDescMax {
			n.repair("short_desc", "cut to %d chars", n.c.ShortDescMax)
			text = textutil.CutAtWord(text, n.c.ShortDescMax)
		}
		return text
	}
	return defaultShortDesc
}

func (n *normalizer) seoTitle(shortDesc string) string {
	title := textutil.CompactWhitespace(asString(n.raw["seo_title"]))
	if textutil.NormForCompare(title) == "" {
		title = textutil.CompactWhitespace(n.rec.Name())
		if textutil.NormForCompare(title) == "" {
			title = shortDesc
		}
		n.repair("seo_title", "missing, derived from name")
	}
	if textutil.RuneLen(title) > n.c.SEOTitleMax {
		n.repair("seo_title", "cut to %d chars", n.c.SEOTitleMax)
		title = textutil.CutAtWord(title, n.c.SEOTitleMax)
	}
	return title
}

func (n *normalizer) seoDescription(shortDesc string) string {
	desc := textutil.CompactWhitespace(asString(n.raw["seo_description"]))
	if textutil.NormForCompare(desc) == "" {
		desc = shortDesc
		n.repair("seo_description", "missing, derived from short_desc")
	}
	desc = textutil.CutAtWord(desc, n.c.SEODescMax)
	if !sameText(desc, shortDesc) {
		return desc
	}

	if source := textutil.CutAtWord(n.rec.Description(), n.c.SEODescMax); textutil.NormForCompare(source) != "" && !sameText(source, shortDesc) {
		n.repair("seo_description", "identical to short_desc, using description")
		return source
	}
	n.repair("seo_description", "identical to short_desc, extended")
	return ExtendSEO(shortDesc, n.c.SEODescMax)
}

// ExtendSEO appends the generic call to action to text, cut to max. With max at least 12 runes
// above len(text) the result always differs from text.
func ExtendSEO(text string, max int) string {
	base := strings.TrimRight(text, " .")
	return textutil.CutAtWord(base+". "+seoSuffix, max)
}

func sameText(a, b string) bool {
	return textutil.NormForCompare(a) == textutil.NormForCompare(b)
}

var faqPool = []catalog.FAQItem{
	{Q: "¿Cómo se usa?", A: "Se utiliza según el propósito descrito en la ficha del producto."},
	{Q: "¿Se puede personalizar?", A: "Depende del producto. Si aplica, se puede ajustar bajo pedido."},
	{Q: "¿Cómo se cuida?", A: "Sigue las indicaciones generales de uso y limpieza de la ficha."},
	{Q: "¿Qué incluye?", A: "Incluye el producto tal y como se describe en la ficha."},
	{Q: "¿Dónde puedo consultar más detalles?", A: "Toda la información disponible está en esta ficha."},
	{Q: "¿Es apto para regalo?", A: "Sí, es una opción práctica para regalar."},
}

func (n *normalizer) faq() []catalog.FAQItem {
	if !n.c.FAQEnabled {
		return nil
	}
	items, _ := n.raw["faq"].([]any)
	out := make([]catalog.FAQItem, 0, n.c.FAQMax)
	seen := map[string]struct{}{}
	add := func(q, a string) bool {
		q, a = textutil.CompactWhitespace(q), textutil.CompactWhitespace(a)
		key := textutil.NormForCompare(q)
		if key == "" || textutil.NormForCompare(a) == "" {
			return false
		}
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
		out = append(out, catalog.FAQItem{Q: q, A: a})
		return true
	}

	for _, it := range items {
		if len(out) >= n.c.FAQMax {
			n.repair("faq", "capped at %d", n.c.FAQMax)
			break
		}
		m, ok := it.(map[string]any)
		if !ok {
			n.repair("faq", "dropped non-object entry")
			continue
		}
		q := firstString(m, "q", "question", "pregunta")
		a := firstString(m, "a", "answer", "respuesta")
		if !add(q, a) {
			n.repair("faq", "dropped incomplete or duplicate entry")
		}
	}
	for _, p := range faqPool {
		if len(out) >= n.c.FAQMin {
			break
		}
		if add(p.Q, p.A) {
			n.repair("faq", "padded with generic entry")
		}
	}
	return out
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := asString(m[k]); strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// asString renders scalar JSON values as text. Objects and arrays yield "".
func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

// asList accepts a JSON array of scalars or a single string split on any rune in seps.
func asList(v any, seps string) []string {
	switch x := v.(type) {
	case []any:
		out := make([]string, 0, len(x))
		for _, it := range x {
			if s := asString(it); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.FieldsFunc(x, func(r rune) bool { return strings.ContainsRune(seps, r) })
	default:
		return nil
	}
}

var bulletMarkerRe = regexp.MustCompile(`^\s*([-*•·–—]+|\d+[.)])\s*`)

// labelPrefixRe matches field labels such as "Material:" at the start of a bullet.
var labelPrefixRe = regexp.MustCompile(`(?i)^\s*(material(es)?|tama(ñ|n)o|talla|medidas|dimensiones|peso|color(es)?|categor(í|i)a|precio|marca|modelo|size|brand|category|price|model|weight)\s*[:：]\s*`)

// HasLabelPrefix reports whether s starts with a field label.
func HasLabelPrefix(s string) bool {
	return labelPrefixRe.MatchString(s)
}

func cleanBullet(s string, max int) string {
	s = textutil.CompactWhitespace(s)
	s = bulletMarkerRe.ReplaceAllString(s, "")
	for labelPrefixRe.MatchString(s) {
		s = labelPrefixRe.ReplaceAllString(s, "")
	}
	s = strings.TrimRight(strings.TrimSpace(s), " .;,")
	s = textutil.CutAtWord(s, max)
	return capitalize(s)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
