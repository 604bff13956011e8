// Package prompt renders the system and user instructions sent to the generation service.
//
// Every function here is pure: identical inputs always produce identical prompts, which keeps
// the fingerprint a faithful proxy for what the model was asked.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
	"github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/schema"
)

// Builder renders prompts for one contract and output language.
type Builder struct {
	Contract schema.Contract
	Language string
}

// New returns a Builder. An empty language defaults to Spanish.
func New(contract schema.Contract, language string) Builder {
	if strings.TrimSpace(language) == "" {
		language = "es"
	}
	return Builder{Contract: contract, Language: language}
}

var languageNames = map[string]string{
	"es": "español",
	"en": "inglés",
	"pt": "portugués",
	"fr": "francés",
	"it": "italiano",
	"de": "alemán",
}

// LanguageName returns the Spanish name of the configured language code.
func (b Builder) LanguageName() string {
	if name, ok := languageNames[strings.ToLower(b.Language)]; ok {
		return name
	}
	return b.Language
}

var domainHints = map[catalog.Domain]string{
	catalog.Domain3DPrinting: "Enfócate en uso práctico, material de impresión, tamaño, personalización y cuidados básicos. No inventes tiempos exactos ni specs técnicas no dadas.",
	catalog.DomainYarnCrafts: "Enfócate en el tipo de proyecto (punto, ganchillo, amigurumi), tacto, grosor recomendado y cuidados de lavado si existen. No inventes composición ni metraje.",
	catalog.DomainFootwear:   "Enfócate en comodidad, uso (running/casual), tallas/ajuste, materiales si existen y cuidados. No inventes tecnologías específicas.",
	catalog.DomainApparel:    "Enfócate en tallas, tejido/material si existe, comodidad, estilo y cuidados. No inventes composición si no está.",
	catalog.DomainElectronic: "Enfócate en compatibilidad, uso, beneficios y precauciones. No inventes especificaciones técnicas (voltios, etc.).",
	catalog.DomainFood:       "Enfócate en sabor/uso y advertencias generales. No inventes ingredientes ni alérgenos si no están.",
	catalog.DomainService:    "Enfócate en beneficios, proceso y qué incluye o no incluye. No inventes precios ni condiciones legales.",
	catalog.DomainGeneric:    "Enfócate en beneficios, uso típico y claridad. No inventes características no presentes.",
}

// DomainHint returns the emphasis hint for domain, defaulting to the generic one.
func DomainHint(domain catalog.Domain) string {
	if h, ok := domainHints[domain]; ok {
		return h
	}
	return domainHints[catalog.DomainGeneric]
}

// Enrichment returns the system and user instructions for one record.
func (b Builder) Enrichment(rec catalog.Record, info catalog.DomainInfo) (string, string) {
	c := b.Contract

	var sys strings.Builder
	sys.WriteString("Devuelve SOLO JSON válido. Sin markdown. Sin texto extra.\n")
	sys.WriteString("Eres un generador de metadatos para fichas de producto.\n")
	fmt.Fprintf(&sys, "Idioma: %s.\n", b.LanguageName())
	sys.WriteString("NO inventes datos técnicos: si no está en el input, no lo afirmes.\n")
	fmt.Fprintf(&sys, "Campos a devolver: %s.\n", strings.Join(b.keys(), ", "))

	var u strings.Builder
	fmt.Fprintf(&u, "Producto:\n%s\n", Brief(rec))
	fmt.Fprintf(&u, "Dominio detectado: %s\n", info.Domain)
	fmt.Fprintf(&u, "Enfoque: %s\n\n", DomainHint(info.Domain))
	u.WriteString("Devuelve JSON EXACTO con estas claves:\n")
	u.WriteString(b.skeleton())
	u.WriteString("\nReglas:\n")
	fmt.Fprintf(&u, "- slug: kebab-case ASCII (a-z, 0-9 y guiones), máximo %d caracteres, idealmente incluye la marca si existe.\n", c.SlugMaxChars)
	fmt.Fprintf(&u, "- short_desc: 1 frase, máximo %d caracteres. Parafrasea la descripción, no la copies literal.\n", c.ShortDescMax)
	fmt.Fprintf(&u, "- bullets: EXACTAMENTE %d items, máximo %d caracteres cada uno, redactados como beneficio para el usuario.\n", c.BulletCount, c.BulletMaxChars)
	u.WriteString("  * Ningún bullet puede repetir la idea de short_desc ni de otro bullet.\n")
	u.WriteString("  * No copies frases de la descripción.\n")
	u.WriteString("  * Sin prefijos de campo (nada de 'Material:', 'Tamaño:', 'Categoría:').\n")
	fmt.Fprintf(&u, "- tags: %d a %d tags en snake_case (minúsculas, sin tildes, sin espacios), máximo %d caracteres cada uno. Incluye categoría/material/marca si existen.\n", c.TagsMin, c.TagsMax, c.TagMaxChars)
	fmt.Fprintf(&u, "- seo_title: máximo %d caracteres.\n", c.SEOTitleMax)
	fmt.Fprintf(&u, "- seo_description: máximo %d caracteres y distinta de short_desc.\n", c.SEODescMax)
	if c.FAQEnabled {
		fmt.Fprintf(&u, "- faq: %d a %d preguntas con su respuesta, sin inventar datos.\n", c.FAQMin, c.FAQMax)
	}
	u.WriteString("- No incluyas precio. Sin emojis.\n")
	u.WriteString("- SOLO JSON.\n")

	return sys.String(), u.String()
}

// Classification returns the instructions for generation-assisted domain classification.
func (b Builder) Classification(rec catalog.Record) (string, string) {
	allowed := make([]string, 0, len(catalog.Domains))
	for _, d := range catalog.Domains {
		allowed = append(allowed, string(d))
	}

	var sys strings.Builder
	sys.WriteString("DEVUELVE SOLO JSON válido. Sin markdown. Sin texto extra.\n")
	sys.WriteString("Clasifica el producto en un dominio.\n")
	fmt.Fprintf(&sys, "Dominios permitidos: %s.\n", strings.Join(allowed, ", "))

	var u strings.Builder
	fmt.Fprintf(&u, "Producto:\n%s\n\n", Brief(rec))
	u.WriteString("Devuelve JSON EXACTO:\n")
	u.WriteString(`{"domain":"generic","confidence":0.0,"signals":["..."]}` + "\n")
	u.WriteString("Reglas:\n")
	u.WriteString("- domain debe ser UNO de los permitidos.\n")
	u.WriteString("- confidence entre 0.0 y 1.0.\n")
	fmt.Fprintf(&u, "- signals: 1 a %d frases cortas.\n", catalog.MaxSignals)
	u.WriteString("- SOLO JSON.\n")
	return sys.String(), u.String()
}

// Repair returns the instructions asking the model to fix its own malformed output.
func (b Builder) Repair(broken string) (string, string) {
	sys := "Devuelve SOLO JSON válido. Sin texto extra."
	user := "El siguiente JSON está roto o incompleto.\n" +
		"Devuélvelo corregido como JSON válido con la MISMA estructura y las claves: " +
		strings.Join(b.keys(), ", ") + ".\n" +
		"JSON roto:\n" + broken
	return sys, user
}

func (b Builder) keys() []string {
	keys := []string{"slug", "short_desc", "bullets", "tags", "seo_title", "seo_description"}
	if b.Contract.FAQEnabled {
		keys = append(keys, "faq")
	}
	return keys
}

func (b Builder) skeleton() string {
	bullets := make([]string, b.Contract.BulletCount)
	for i := range bullets {
		bullets[i] = `""`
	}
	var s strings.Builder
	s.WriteString(`{"slug":"","short_desc":"","bullets":[`)
	s.WriteString(strings.Join(bullets, ","))
	s.WriteString(`],"tags":[""],"seo_title":"","seo_description":""`)
	if b.Contract.FAQEnabled {
		s.WriteString(`,"faq":[{"q":"","a":""}]`)
	}
	s.WriteString("}\n")
	return s.String()
}

type brief struct {
	Nombre      string            `json:"nombre,omitempty"`
	Descripcion string            `json:"descripcion,omitempty"`
	Categoria   string            `json:"categoria,omitempty"`
	Material    string            `json:"material,omitempty"`
	Tamano      string            `json:"tamano,omitempty"`
	Color       string            `json:"color,omitempty"`
	Marca       string            `json:"marca,omitempty"`
	Modelo      string            `json:"modelo,omitempty"`
	Extras      map[string]string `json:"extras,omitempty"`
}

// Brief renders the compact JSON summary of the record's salient fields. Price, image and
// link never reach the model.
func Brief(rec catalog.Record) string {
	v := brief{
		Nombre:      rec.Lookup(catalog.RoleName),
		Descripcion: rec.Lookup(catalog.RoleDescription),
		Categoria:   rec.Lookup(catalog.RoleCategory),
		Material:    rec.Lookup(catalog.RoleMaterial),
		Tamano:      rec.Lookup(catalog.RoleSize),
		Color:       rec.Lookup(catalog.RoleColor),
		Marca:       rec.Lookup(catalog.RoleBrand),
		Modelo:      rec.Lookup(catalog.RoleModel),
		Extras:      rec.Extras(),
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
	return strings.TrimRight(buf.String(), "\n")
}
