package local

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
)

// ItemElement is the element that wraps one record in an XML catalog.
const ItemElement = "producto"

// ReadRecordsXML reads every <producto> element, at any depth, as one record whose fields are
// the element's direct children. Items with neither a name nor a description are skipped; the
// second return value counts them.
func ReadRecordsXML(r io.Reader) ([]catalog.Record, int, error) {
	dec := xml.NewDecoder(r)
	var out []catalog.Record
	skipped := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read xml: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != ItemElement {
			continue
		}
		rec, err := readItem(dec)
		if err != nil {
			return nil, 0, err
		}
		if !usable(rec) {
			skipped++
			continue
		}
		out = append(out, rec)
	}
	return out, skipped, nil
}

// readItem consumes tokens up to the end of the current item. Nested elements below a field
// contribute their text to that field.
func readItem(dec *xml.Decoder) (catalog.Record, error) {
	var fields []catalog.Field
	var key string
	var text strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return catalog.Record{}, fmt.Errorf("read %s: %w", ItemElement, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				key = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if depth >= 1 {
				text.Write(t)
			}
		case xml.EndElement:
			if depth == 0 {
				return catalog.NewRecord(fields...), nil
			}
			if depth == 1 {
				fields = append(fields, catalog.Field{Key: key, Value: strings.TrimSpace(text.String())})
			}
			depth--
		}
	}
}

type xmlField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type xmlItem struct {
	XMLName xml.Name `xml:"producto"`
	Fields  []xmlField
}

type xmlCatalog struct {
	XMLName xml.Name  `xml:"productos"`
	Items   []xmlItem `xml:"producto"`
}

// WriteRecordsXML writes records as <productos><producto>… with one child per field, in field
// order.
func WriteRecordsXML(w io.Writer, records []catalog.Record) error {
	doc := xmlCatalog{Items: make([]xmlItem, 0, len(records))}
	for _, r := range records {
		item := xmlItem{}
		for _, f := range r.Fields() {
			item.Fields = append(item.Fields, xmlField{XMLName: xml.Name{Local: f.Key}, Value: f.Value})
		}
		doc.Items = append(doc.Items, item)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
