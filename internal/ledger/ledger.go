// Package ledger records per-record failures of a run for post-run inspection.
package ledger

import (
	"encoding/json"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/shpitdev/catalog-enrichment-pipeline/pkg/pipeline/redact"
)

// Stage names the pipeline step that failed.
type Stage string

const (
	StageClassify Stage = "classify"
	StageEnrich   Stage = "enrich"
)

// Entry is one failed classify or enrich attempt.
type Entry struct {
	Index      int       `json:"index"`
	Stage      Stage     `json:"stage"`
	RecordName string    `json:"record_name"`
	Error      string    `json:"error"`
	Timestamp  time.Time `json:"timestamp"`
}

// Ledger is an append-only, concurrency-safe list of entries.
type Ledger struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

// New returns an empty Ledger.
func New() *Ledger {
	return &Ledger{now: time.Now}
}

// NewWithClock returns an empty Ledger stamping entries with now.
func NewWithClock(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{now: now}
}

// Append records err for the record at index (1-based). Secrets are redacted from the message.
func (l *Ledger) Append(index int, stage Stage, recordName string, err error) Entry {
	msg := ""
	if err != nil {
		msg = redact.Secrets(err.Error())
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e := Entry{
		Index:      index,
		Stage:      stage,
		RecordName: recordName,
		Error:      msg,
		Timestamp:  l.now().UTC().Truncate(time.Second),
	}
	l.entries = append(l.entries, e)
	return e
}

// Entries returns a copy of the entries ordered by index, then by append order.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	// Workers may append out of index order.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// WriteJSON writes the entries as an indented JSON array ("[]" when empty).
func (l *Ledger) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(l.Entries())
}
