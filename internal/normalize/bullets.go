package normalize

import (
	"sort"
	"strings"
	"unicode"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/textutil"
)

// genericBullets is the last-resort filler. The phrases share no content words so that no two
// of them reach the duplicate threshold.
var genericBullets = []string{
	"Listo para usar desde el primer día",
	"Diseño funcional",
	"Fácil de combinar",
	"Práctico en el día a día",
	"Acabado cuidado",
	"Buena opción para regalar",
	"Cómodo de guardar",
	"Versátil en distintos espacios",
	"Pensado para durar",
	"Presentación sencilla",
	"Detalle con personalidad",
	"Elección segura",
}

// lastResortBullets are single words of at most 10 runes that fit any valid bullet cap and
// stay below every allowed similarity threshold against each other.
var lastResortBullets = []string{
	"Resistente",
	"Ligero",
	"Compacto",
	"Elegante",
	"Cómodo",
	"Útil",
	"Moderno",
	"Práctico",
	"Duradero",
	"Original",
}

// minContainRunes is the shortest normalized text that counts as contained in another.
const minContainRunes = 4

// Redundant reports whether text repeats ref: the shorter one appears as a whole-word run
// inside the other once both are reduced to comparable words, or their similarity ratio
// reaches threshold. Texts shorter than minContainRunes only match by ratio.
func Redundant(text, ref string, threshold float64) bool {
	a, b := textutil.NormForCompare(text), textutil.NormForCompare(ref)
	if a == "" || b == "" {
		return false
	}
	if containsWords(a, b) || containsWords(b, a) {
		return true
	}
	return textutil.Ratio(a, b) >= threshold
}

// containsWords reports whether the normalized text inner appears in outer on word boundaries.
func containsWords(outer, inner string) bool {
	if textutil.RuneLen(inner) < minContainRunes {
		return false
	}
	return strings.Contains(" "+outer+" ", " "+inner+" ")
}

type bulletSet struct {
	items      []string
	want       int
	dupTh      float64
	redundTh   float64
	shortDesc  string
	sourceDesc string
}

func (b *bulletSet) full() bool {
	return len(b.items) >= b.want
}

// add appends text unless it is empty or repeats an accepted bullet or a reference text. The
// source description is only checked when strict is set. It returns the rejection reason.
func (b *bulletSet) add(text string, strict bool) string {
	if textutil.NormForCompare(text) == "" {
		return "empty"
	}
	if Redundant(text, b.shortDesc, b.redundTh) {
		return "repeats short_desc"
	}
	if strict && Redundant(text, b.sourceDesc, b.redundTh) {
		return "repeats description"
	}
	for _, prev := range b.items {
		if Redundant(text, prev, b.dupTh) {
			return "near-duplicate"
		}
	}
	b.items = append(b.items, text)
	return ""
}

func (n *normalizer) bullets(shortDesc string) []string {
	max := n.c.BulletMaxChars
	set := &bulletSet{
		want:       n.c.BulletCount,
		dupTh:      n.c.DuplicateThreshold,
		redundTh:   n.c.RedundancyThreshold,
		shortDesc:  shortDesc,
		sourceDesc: n.rec.Description(),
	}

	for _, raw := range asList(n.raw["bullets"], "\n") {
		if set.full() {
			n.repair("bullets", "dropped extra bullets beyond %d", set.want)
			break
		}
		if HasLabelPrefix(bulletMarkerRe.ReplaceAllString(strings.TrimSpace(raw), "")) {
			n.repair("bullets", "stripped field label")
		}
		text := cleanBullet(raw, max)
		if reason := set.add(text, true); reason != "" {
			n.repair("bullets", "dropped %q: %s", text, reason)
		}
	}

	if !set.full() {
		for _, s := range Synthesize(n.rec) {
			if set.full() {
				break
			}
			if set.add(cleanBullet(s, max), true) == "" {
				n.repair("bullets", "synthesized from record fields")
			}
		}
	}
	for _, strict := range []bool{true, false} {
		for _, s := range genericBullets {
			if set.full() {
				break
			}
			if set.add(cleanBullet(s, max), strict) == "" {
				n.repair("bullets", "padded with generic filler")
			}
		}
	}
	for _, s := range lastResortBullets {
		if set.full() {
			break
		}
		if set.add(s, false) == "" {
			n.repair("bullets", "padded with single-word filler")
		}
	}
	return set.items
}

// Synthesize restates present record fields as bullets, in a fixed order. Field values are
// copied verbatim and no label prefix is used.
func Synthesize(rec catalog.Record) []string {
	var out []string
	if v := rec.Lookup(catalog.RoleMaterial); v != "" {
		out = append(out, "Fabricado en "+v)
	}
	if v := rec.Lookup(catalog.RoleSize); v != "" {
		if rec.Value("talla") != "" || rec.Value("numero") != "" {
			out = append(out, "Disponible en talla "+v)
		} else {
			out = append(out, "Con unas medidas de "+v)
		}
	}
	if v := rec.Lookup(catalog.RoleColor); v != "" {
		out = append(out, "Acabado en color "+strings.ToLower(v))
	}
	if v := rec.Lookup(catalog.RoleCategory); v != "" {
		out = append(out, "Pertenece a la categoría "+strings.ToLower(v))
	}
	if v := rec.Lookup(catalog.RoleBrand); v != "" {
		out = append(out, "De la marca "+v)
	}
	if v := rec.Lookup(catalog.RoleModel); v != "" {
		out = append(out, "Referencia del modelo "+v)
	}

	extras := rec.Extras()
	keys := make([]string, 0, len(extras))
	for k, v := range extras {
		if strings.IndexFunc(v, unicode.IsDigit) >= 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		label := strings.ReplaceAll(strings.ReplaceAll(k, "_", " "), "-", " ")
		out = append(out, label+" "+extras[k])
	}
	return out
}
