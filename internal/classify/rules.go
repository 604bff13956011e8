package classify

import (
	"math"
	"regexp"
	"strings"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/textutil"
)

// Rule ties one predicate over a record to a domain verdict. Rules are evaluated in order and
// the first match wins.
type Rule struct {
	Domain     catalog.Domain
	Confidence float64
	Signal     string
	// Match reports whether the rule applies and, optionally, the token that triggered it.
	Match func(blob string, rec catalog.Record) (string, bool)
}

// GenericConfidence is the confidence of the catch-all verdict.
const GenericConfidence = 0.40

const noSignals = "no strong signals"

var blobRoles = []catalog.Role{
	catalog.RoleName,
	catalog.RoleDescription,
	catalog.RoleCategory,
	catalog.RoleMaterial,
	catalog.RoleSize,
	catalog.RoleColor,
	catalog.RoleBrand,
}

// Blob is the lower-cased, accent-free concatenation of the descriptive fields the rules see.
func Blob(rec catalog.Record) string {
	parts := make([]string, 0, len(blobRoles))
	for _, role := range blobRoles {
		if v := rec.Lookup(role); v != "" {
			parts = append(parts, v)
		}
	}
	return textutil.StripAccents(strings.ToLower(strings.Join(parts, " ")))
}

var (
	printingRe     = regexp.MustCompile(`\b(pla|petg|abs|asa|tpu|resina|resin|filamento|stl)\b`)
	printedPhrase  = regexp.MustCompile(`\b(impres[oa]s?|impresion)( en)? 3d\b|\b3d printed\b`)
	yarnRe         = regexp.MustCompile(`\b(lana|ovillos?|merino|alpaca|mohair|ganchillo|crochet|amigurumi|tricotar|madeja)\b`)
	footwearRe     = regexp.MustCompile(`\b(zapatill\w*|sneakers?|botas?|botines?|sandalias?|calzado|suelas?|cordones|plantillas?|amortigu\w*|pisada)\b`)
	shoeSizeRe     = regexp.MustCompile(`\b(talla|numero|eu)\s*\d{2}\b`)
	apparelRe      = regexp.MustCompile(`\b(camisetas?|sudaderas?|pantalon(es)?|chaquetas?|abrigos?|vestidos?|faldas?|camisas?|jerseys?|calcetines|gorras?|bufandas?|algodon|poliester|lino)\b`)
	apparelSizeRe  = regexp.MustCompile(`\btalla\s*(xxs|xs|s|m|l|xl|xxl|unica)\b`)
	electronicsRe  = regexp.MustCompile(`\b(usb|bluetooth|wifi|cargador(es)?|bateria|mah|voltios?|vatios?|watts?|hz|hdmi|smartphone|auriculares?|altavoz|compatible con)\b`)
	foodRe         = regexp.MustCompile(`\b(ingredientes?|alergenos?|sabor(es)?|kcal|calorias|gluten|vegano|sin azucar|ecologico)\b`)
	serviceRe      = regexp.MustCompile(`\b(servicio|suscripcion|mantenimiento|instalacion|consultoria|clases?|reserva|sesion(es)?)\b`)
	yarnFieldNames = []string{"grosor", "metros", "lavado"}
)

func matchRe(re *regexp.Regexp) func(string, catalog.Record) (string, bool) {
	return func(blob string, _ catalog.Record) (string, bool) {
		if m := re.FindString(blob); m != "" {
			return m, true
		}
		return "", false
	}
}

func matchAny(fns ...func(string, catalog.Record) (string, bool)) func(string, catalog.Record) (string, bool) {
	return func(blob string, rec catalog.Record) (string, bool) {
		for _, fn := range fns {
			if hit, ok := fn(blob, rec); ok {
				return hit, true
			}
		}
		return "", false
	}
}

func yarnFields(_ string, rec catalog.Record) (string, bool) {
	for _, k := range yarnFieldNames {
		if rec.Value(k) != "" {
			return k, true
		}
	}
	return "", false
}

var numericSizeRe = regexp.MustCompile(`^\d{2}([.,]5)?$`)

// shoeSizeField matches a numeric size in a dedicated size field ("talla": "42").
func shoeSizeField(_ string, rec catalog.Record) (string, bool) {
	for _, k := range []string{"talla", "numero"} {
		if v := rec.Value(k); numericSizeRe.MatchString(v) {
			return k + " " + v, true
		}
	}
	return "", false
}

// apparelSizeField matches a letter size in a dedicated size field ("talla": "M").
func apparelSizeField(_ string, rec catalog.Record) (string, bool) {
	v := strings.ToLower(rec.Value("talla"))
	if v == "" {
		return "", false
	}
	if apparelSizeRe.MatchString("talla " + v) {
		return "talla " + v, true
	}
	return "", false
}

// DefaultRules is the priority list used when no rules are configured. Order matters: the
// fabrication material check outranks every other signal.
var DefaultRules = []Rule{
	{Domain: catalog.Domain3DPrinting, Confidence: 0.95, Signal: "material/keywords 3d", Match: matchAny(matchRe(printingRe), matchRe(printedPhrase))},
	{Domain: catalog.DomainYarnCrafts, Confidence: 0.95, Signal: "yarn fields", Match: yarnFields},
	{Domain: catalog.DomainYarnCrafts, Confidence: 0.90, Signal: "keywords yarn", Match: matchRe(yarnRe)},
	{Domain: catalog.DomainFootwear, Confidence: 0.85, Signal: "keywords/size footwear", Match: matchAny(matchRe(footwearRe), matchRe(shoeSizeRe), shoeSizeField)},
	{Domain: catalog.DomainApparel, Confidence: 0.75, Signal: "keywords/size apparel", Match: matchAny(matchRe(apparelRe), matchRe(apparelSizeRe), apparelSizeField)},
	{Domain: catalog.DomainElectronic, Confidence: 0.70, Signal: "keywords electronics", Match: matchRe(electronicsRe)},
	{Domain: catalog.DomainFood, Confidence: 0.70, Signal: "keywords food", Match: matchRe(foodRe)},
	{Domain: catalog.DomainService, Confidence: 0.70, Signal: "keywords service", Match: matchRe(serviceRe)},
}

// Heuristic applies rules in order and returns the first match, or the generic verdict.
func Heuristic(rec catalog.Record, rules []Rule) catalog.DomainInfo {
	blob := Blob(rec)
	for _, r := range rules {
		hit, ok := r.Match(blob, rec)
		if !ok {
			continue
		}
		signals := []string{r.Signal}
		if hit != "" {
			signals = append(signals, hit)
		}
		return catalog.DomainInfo{
			Domain:     r.Domain,
			Confidence: clamp(r.Confidence),
			Signals:    signals,
			Method:     catalog.MethodHeuristic,
		}
	}
	return catalog.DomainInfo{
		Domain:     catalog.DomainGeneric,
		Confidence: GenericConfidence,
		Signals:    []string{noSignals},
		Method:     catalog.MethodHeuristic,
	}
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
