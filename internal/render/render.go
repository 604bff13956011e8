// Package render turns enriched records into static HTML product pages plus an index.
package render

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
	"github.com/shpitdev/catalog-enrichment-pipeline/internal/textutil"
	localio "github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/io/local"
)

// IndexFile is the name of the generated index page.
const IndexFile = "index.html"

// Options customizes the generated pages.
type Options struct {
	SiteTitle string
	Currency  string
	Language  string
	Now       func() time.Time
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.SiteTitle) == "" {
		o.SiteTitle = "Catálogo"
	}
	if o.Currency == "" {
		o.Currency = "€"
	}
	if o.Language == "" {
		o.Language = "es"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// File is one rendered page.
type File struct {
	Name    string
	Content []byte
}

type pill struct {
	Label string
	Value string
}

type productPage struct {
	Site        string
	Lang        string
	Title       string
	Description string
	Name        string
	Summary     string
	Image       string
	Price       string
	Meta        []pill
	Bullets     []string
	Tags        []string
	Tech        []pill
	FAQ         []catalog.FAQItem
	Footer      string
}

type indexEntry struct {
	File    string
	Name    string
	Summary string
	Domain  string
}

type indexPage struct {
	Site    string
	Lang    string
	Entries []indexEntry
	Footer  string
}

// metaKeys are shown as pills under the summary, in this order.
var metaKeys = []string{"categoria", "category", "material", "tamano", "tamaño", "talla", "marca", "brand", "modelo", "model", "color"}

// hiddenKeys never appear in the technical sheet.
var hiddenKeys = map[string]struct{}{
	"nombre": {}, "name": {}, "titulo": {}, "title": {},
	"descripcion": {}, "description": {},
	"imagen": {}, "image": {}, "enlace": {}, "link": {}, "url": {},
	"precio": {}, "price": {},
}

// Pages renders one page per record and the index. Page names come from the record's link
// field, then its slug, then its name; collisions get a numeric suffix.
func Pages(records []catalog.Enriched, opts Options) ([]File, error) {
	opts = opts.withDefaults()
	footer := fmt.Sprintf("© %d %s", opts.Now().Year(), opts.SiteTitle)

	used := map[string]int{IndexFile: 1}
	files := make([]File, 0, len(records)+1)
	index := indexPage{Site: opts.SiteTitle, Lang: opts.Language, Footer: footer}

	for _, r := range records {
		name := uniqueName(Filename(r), used)
		page := buildPage(r, opts, footer)

		var buf bytes.Buffer
		if err := productTmpl.Execute(&buf, page); err != nil {
			return nil, fmt.Errorf("render %s: %w", name, err)
		}
		files = append(files, File{Name: name, Content: buf.Bytes()})
		index.Entries = append(index.Entries, indexEntry{
			File:    name,
			Name:    page.Name,
			Summary: page.Summary,
			Domain:  string(r.DomainInfo.Domain),
		})
	}

	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, index); err != nil {
		return nil, fmt.Errorf("render index: %w", err)
	}
	files = append(files, File{Name: IndexFile, Content: buf.Bytes()})
	return files, nil
}

// WriteDir renders records into dir and returns the written file names.
func WriteDir(dir string, records []catalog.Enriched, opts Options) ([]string, error) {
	files, err := Pages(records, opts)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		content := f.Content
		if err := localio.WriteFileAtomic(filepath.Join(dir, f.Name), func(w io.Writer) error {
			_, err := w.Write(content)
			return err
		}); err != nil {
			return nil, err
		}
		names = append(names, f.Name)
	}
	return names, nil
}

func buildPage(r catalog.Enriched, opts Options, footer string) productPage {
	rec := r.Record
	name := rec.Name()
	if name == "" {
		name = "Producto"
	}
	summary := r.Result.ShortDesc
	if summary == "" {
		summary = rec.Description()
	}
	title := r.Result.SEOTitle
	if title == "" {
		title = name + " | " + opts.SiteTitle
	}
	desc := r.Result.SEODescription
	if desc == "" {
		desc = summary
	}

	price := "Consultar"
	if p := rec.Lookup(catalog.RolePrice); p != "" {
		price = p + " " + opts.Currency
	}

	page := productPage{
		Site:        opts.SiteTitle,
		Lang:        opts.Language,
		Title:       title,
		Description: textutil.CutAtWord(desc, 160),
		Name:        name,
		Summary:     summary,
		Image:       rec.Lookup(catalog.RoleImage),
		Price:       price,
		Bullets:     DedupeBullets(r.Result.Bullets, summary),
		FAQ:         r.Result.FAQ,
		Footer:      footer,
	}
	for _, t := range r.Result.Tags {
		if p := PrettyTag(t); p != "" {
			page.Tags = append(page.Tags, p)
		}
	}

	shown := map[string]struct{}{}
	for _, k := range metaKeys {
		if v := rec.Value(k); v != "" {
			page.Meta = append(page.Meta, pill{Label: label(k), Value: v})
			shown[k] = struct{}{}
		}
	}
	for _, f := range rec.Fields() {
		if _, ok := hiddenKeys[f.Key]; ok {
			continue
		}
		if _, ok := shown[f.Key]; ok {
			continue
		}
		if v := strings.TrimSpace(f.Value); v != "" {
			page.Tech = append(page.Tech, pill{Label: label(f.Key), Value: v})
		}
	}
	return page
}

// Filename picks the page file name for r.
func Filename(r catalog.Enriched) string {
	for _, candidate := range []string{r.Record.Lookup(catalog.RoleLink), r.Result.Slug} {
		base := filepath.Base(strings.TrimSpace(candidate))
		if base == "" || base == "." || base == "/" {
			continue
		}
		if !strings.Contains(base, ".") {
			base += ".html"
		}
		return base
	}
	slug := textutil.Slugify(r.Record.Name(), 80)
	if slug == "" {
		slug = "producto"
	}
	return slug + ".html"
}

func uniqueName(name string, used map[string]int) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for {
		n++
		candidate := fmt.Sprintf("%s-%d%s", stem, n, ext)
		if used[candidate] == 0 {
			used[candidate] = 1
			return candidate
		}
	}
}

// PrettyTag turns "espacio_de_trabajo" into "Espacio de trabajo".
func PrettyTag(tag string) string {
	s := strings.NewReplacer("_", " ", "-", " ").Replace(tag)
	s = strings.ToLower(textutil.CompactWhitespace(s))
	return upperFirst(s)
}

// DedupeBullets drops empty and repeated bullets and those already contained in the summary.
func DedupeBullets(bullets []string, summary string) []string {
	ref := textutil.NormForCompare(summary)
	seen := map[string]struct{}{}
	var out []string
	for _, b := range bullets {
		b = strings.TrimSpace(b)
		n := textutil.NormForCompare(b)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		if ref != "" && strings.Contains(ref, n) {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, b)
	}
	return out
}

func label(key string) string {
	return upperFirst(strings.NewReplacer("_", " ", "-", " ").Replace(key))
}

func upperFirst(s string) string {
	for i, r := range s {
		if i == 0 {
			return strings.ToUpper(string(r)) + s[len(string(r)):]
		}
	}
	return s
}
