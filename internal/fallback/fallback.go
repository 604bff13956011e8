// Package fallback produces template-only enrichment results. It needs no network and is
// deterministic for identical input.
package fallback

import (
	"strings"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/normalize"
	"github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/schema"
)

type template struct {
	bullets []string
	tags    []string
	suffix  string
}

var templates = map[catalog.Domain]template{
	catalog.Domain3DPrinting: {
		bullets: []string{"Fabricado mediante impresión 3D", "Acabado por capas característico"},
		tags:    []string{"impresion_3d"},
		suffix:  "fabricado con impresión 3D",
	},
	catalog.DomainYarnCrafts: {
		bullets: []string{"Pensado para proyectos de punto y ganchillo"},
		tags:    []string{"manualidades", "tejer"},
		suffix:  "para tus proyectos de punto",
	},
	catalog.DomainFootwear: {
		bullets: []string{"Pensado para comodidad y uso diario"},
		tags:    []string{"calzado"},
		suffix:  "para el día a día",
	},
	catalog.DomainApparel: {
		bullets: []string{"Prenda pensada para el uso diario"},
		tags:    []string{"moda"},
		suffix:  "para vestir a diario",
	},
	catalog.DomainElectronic: {
		bullets: []string{"Consulta la compatibilidad con tus dispositivos"},
		tags:    []string{"electronica"},
		suffix:  "para tus dispositivos",
	},
	catalog.DomainFood: {
		bullets: []string{"Revisa ingredientes y alérgenos en el envase"},
		tags:    []string{"alimentacion"},
		suffix:  "para disfrutar en casa",
	},
	catalog.DomainService: {
		bullets: []string{"Servicio adaptado a cada necesidad"},
		tags:    []string{"servicios"},
		suffix:  "adaptado a lo que necesitas",
	},
}

// Raw builds the generation-shaped object the templates produce for rec. It only restates
// record fields.
func Raw(rec catalog.Record, domain catalog.Domain) map[string]any {
	tpl := templates[domain]
	name := rec.Name()

	short := rec.Description()
	if short == "" && name != "" && tpl.suffix != "" {
		short = name + " " + tpl.suffix
	}

	title := name
	if brand := rec.Lookup(catalog.RoleBrand); brand != "" && name != "" &&
		!strings.Contains(strings.ToLower(name), strings.ToLower(brand)) {
		title = name + " - " + brand
	}

	bullets := make([]any, 0, len(tpl.bullets))
	for _, b := range tpl.bullets {
		bullets = append(bullets, b)
	}
	tags := make([]any, 0, len(tpl.tags)+1)
	for _, t := range tpl.tags {
		tags = append(tags, t)
	}
	if domain != "" && domain != catalog.DomainGeneric {
		tags = append(tags, string(domain))
	}

	return map[string]any{
		"short_desc": short,
		"bullets":    bullets,
		"tags":       tags,
		"seo_title":  title,
	}
}

// Generate returns a contract-valid result for rec built from fixed templates.
func Generate(rec catalog.Record, domain catalog.Domain, c schema.Contract) catalog.Result {
	res, _ := normalize.Normalize(Raw(rec, domain), rec, domain, c)
	return res
}
