package catalog

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Field is one name/value pair of a Record.
type Field struct {
	Key   string
	Value string
}

// Record is one input item: an ordered, flat mapping of field name to string.
//
// Records are immutable once built; accessors never hand out the backing storage.
type Record struct {
	keys   []string
	values map[string]string
}

// NewRecord builds a Record preserving field order. Blank keys are skipped and a repeated key
// keeps its first position but takes the last value.
func NewRecord(fields ...Field) Record {
	r := Record{
		keys:   make([]string, 0, len(fields)),
		values: make(map[string]string, len(fields)),
	}
	for _, f := range fields {
		k := strings.TrimSpace(f.Key)
		if k == "" {
			continue
		}
		if _, ok := r.values[k]; !ok {
			r.keys = append(r.keys, k)
		}
		r.values[k] = f.Value
	}
	return r
}

// FromMap builds a Record from a map, ordering keys as given in order and appending any
// remaining keys in sorted order.
func FromMap(m map[string]string, order ...string) Record {
	fields := make([]Field, 0, len(m))
	seen := make(map[string]struct{}, len(m))
	for _, k := range order {
		if v, ok := m[k]; ok {
			fields = append(fields, Field{Key: k, Value: v})
			seen[k] = struct{}{}
		}
	}
	for _, k := range sortedKeys(m) {
		if _, ok := seen[k]; ok {
			continue
		}
		fields = append(fields, Field{Key: k, Value: m[k]})
	}
	return NewRecord(fields...)
}

// Get returns the raw value stored under key.
func (r Record) Get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Value returns the trimmed value under key, or "".
func (r Record) Value(key string) string {
	return strings.TrimSpace(r.values[key])
}

// Keys returns the field names in input order.
func (r Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Fields returns a copy of the fields in input order.
func (r Record) Fields() []Field {
	out := make([]Field, 0, len(r.keys))
	for _, k := range r.keys {
		out = append(out, Field{Key: k, Value: r.values[k]})
	}
	return out
}

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r.keys)
}

// Lookup returns the first non-empty trimmed value among the aliases of role.
func (r Record) Lookup(role Role) string {
	for _, alias := range role.Aliases() {
		if v := r.Value(alias); v != "" {
			return v
		}
	}
	return ""
}

// Name is the display name of the record, used for slugs, titles and ledger entries.
func (r Record) Name() string {
	return r.Lookup(RoleName)
}

// Description is the source description of the record.
func (r Record) Description() string {
	return r.Lookup(RoleDescription)
}

// MarshalJSON encodes the record as a JSON object in field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeFields(&buf, r.Fields(), false); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat JSON object of strings, keeping the document order.
func (r *Record) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return &json.UnmarshalTypeError{Value: "non-object", Type: recordType}
	}
	var fields []Field
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			// Non-string values keep their JSON text so nothing is silently lost.
			s = string(raw)
		}
		fields = append(fields, Field{Key: key, Value: s})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = NewRecord(fields...)
	return nil
}

// writeFields appends "key":value pairs to buf. When leadingComma is set a comma is written
// before the first pair.
func writeFields(buf *bytes.Buffer, fields []Field, leadingComma bool) error {
	for i, f := range fields {
		if i > 0 || leadingComma {
			buf.WriteByte(',')
		}
		k, err := marshalNoEscape(f.Key)
		if err != nil {
			return err
		}
		v, err := marshalNoEscape(f.Value)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	return nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
