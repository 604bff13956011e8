package catalog

import (
	"bytes"
	"encoding/json"
	"time"
)

// Domain is the coarse product category used to steer generation emphasis.
type Domain string

const (
	Domain3DPrinting Domain = "3d_printing"
	DomainYarnCrafts Domain = "yarn_crafts"
	DomainFootwear   Domain = "footwear"
	DomainApparel    Domain = "apparel"
	DomainElectronic Domain = "electronics"
	DomainFood       Domain = "food"
	DomainService    Domain = "service"
	DomainGeneric    Domain = "generic"
)

// Domains lists every allowed domain in a stable order.
var Domains = []Domain{
	Domain3DPrinting,
	DomainYarnCrafts,
	DomainFootwear,
	DomainApparel,
	DomainElectronic,
	DomainFood,
	DomainService,
	DomainGeneric,
}

// ParseDomain reports whether s names an allowed domain.
func ParseDomain(s string) (Domain, bool) {
	for _, d := range Domains {
		if string(d) == s {
			return d, true
		}
	}
	return "", false
}

// ClassifyMethod records how a DomainInfo was obtained.
type ClassifyMethod string

const (
	MethodHeuristic  ClassifyMethod = "heuristic"
	MethodGeneration ClassifyMethod = "generation"
	MethodForced     ClassifyMethod = "forced"
	MethodFallback   ClassifyMethod = "fallback"
)

// MaxSignals caps DomainInfo.Signals.
const MaxSignals = 4

// DomainInfo is the classifier verdict for one record. It is never mutated after creation.
type DomainInfo struct {
	Domain     Domain         `json:"domain" msgpack:"domain"`
	Confidence float64        `json:"confidence" msgpack:"confidence"`
	Signals    []string       `json:"signals" msgpack:"signals"`
	Method     ClassifyMethod `json:"method" msgpack:"method"`
}

// FAQItem is one question/answer pair.
type FAQItem struct {
	Q string `json:"q" msgpack:"q"`
	A string `json:"a" msgpack:"a"`
}

// Result is the enrichment output for one record.
type Result struct {
	Slug           string    `json:"slug" msgpack:"slug"`
	ShortDesc      string    `json:"short_desc" msgpack:"short_desc"`
	Bullets        []string  `json:"bullets" msgpack:"bullets"`
	Tags           []string  `json:"tags" msgpack:"tags"`
	SEOTitle       string    `json:"seo_title" msgpack:"seo_title"`
	SEODescription string    `json:"seo_description" msgpack:"seo_description"`
	FAQ            []FAQItem `json:"faq,omitempty" msgpack:"faq,omitempty"`
}

// ResultMethod records where an emitted Result came from.
type ResultMethod string

const (
	ResultFromCache      ResultMethod = "cache"
	ResultFromGeneration ResultMethod = "generation"
	ResultFromRepair     ResultMethod = "repair"
	ResultFromFallback   ResultMethod = "fallback"
)

// Meta carries per-record bookkeeping for downstream inspection.
type Meta struct {
	Method      ResultMethod `json:"method"`
	Fingerprint string       `json:"fingerprint"`
}

// Enriched is one output record: the original fields plus the enrichment.
type Enriched struct {
	Record     Record
	DomainInfo DomainInfo
	Result     Result
	Meta       Meta
}

type enrichedTail struct {
	DomainInfo     DomainInfo `json:"domain_info"`
	Slug           string     `json:"slug"`
	ShortDesc      string     `json:"short_desc"`
	Bullets        []string   `json:"bullets"`
	Tags           []string   `json:"tags"`
	SEOTitle       string     `json:"seo_title"`
	SEODescription string     `json:"seo_description"`
	FAQ            []FAQItem  `json:"faq,omitempty"`
	Meta           Meta       `json:"_meta"`
}

var enrichedKeys = map[string]struct{}{
	"domain_info": {}, "slug": {}, "short_desc": {}, "bullets": {}, "tags": {},
	"seo_title": {}, "seo_description": {}, "faq": {}, "_meta": {},
}

// MarshalJSON writes the original fields in input order followed by the enrichment keys.
// Enrichment keys win over same-named input fields.
func (e Enriched) MarshalJSON() ([]byte, error) {
	fields := make([]Field, 0, e.Record.Len())
	for _, f := range e.Record.Fields() {
		if _, reserved := enrichedKeys[f.Key]; reserved {
			continue
		}
		fields = append(fields, f)
	}

	tail, err := marshalNoEscape(enrichedTail{
		DomainInfo:     e.DomainInfo,
		Slug:           e.Result.Slug,
		ShortDesc:      e.Result.ShortDesc,
		Bullets:        e.Result.Bullets,
		Tags:           e.Result.Tags,
		SEOTitle:       e.Result.SEOTitle,
		SEODescription: e.Result.SEODescription,
		FAQ:            e.Result.FAQ,
		Meta:           e.Meta,
	})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeFields(&buf, fields, false); err != nil {
		return nil, err
	}
	inner := bytes.TrimSuffix(bytes.TrimPrefix(tail, []byte("{")), []byte("}"))
	if len(inner) > 0 {
		if len(fields) > 0 {
			buf.WriteByte(',')
		}
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON splits an output record back into input fields and enrichment.
func (e *Enriched) UnmarshalJSON(b []byte) error {
	var tail enrichedTail
	if err := json.Unmarshal(b, &tail); err != nil {
		return err
	}
	var all Record
	if err := all.UnmarshalJSON(b); err != nil {
		return err
	}
	fields := make([]Field, 0, all.Len())
	for _, f := range all.Fields() {
		if _, reserved := enrichedKeys[f.Key]; reserved {
			continue
		}
		fields = append(fields, f)
	}
	*e = Enriched{
		Record:     NewRecord(fields...),
		DomainInfo: tail.DomainInfo,
		Result: Result{
			Slug:           tail.Slug,
			ShortDesc:      tail.ShortDesc,
			Bullets:        tail.Bullets,
			Tags:           tail.Tags,
			SEOTitle:       tail.SEOTitle,
			SEODescription: tail.SEODescription,
			FAQ:            tail.FAQ,
		},
		Meta: tail.Meta,
	}
	return nil
}

// Envelope wraps a full run's output for downstream collaborators.
type Envelope struct {
	GeneratedAt time.Time  `json:"generated_at"`
	Source      string     `json:"source"`
	Version     string     `json:"version"`
	RunID       string     `json:"run_id,omitempty"`
	Config      any        `json:"config"`
	Count       int        `json:"count"`
	Records     []Enriched `json:"records"`
}
