// Package cache persists enrichment results keyed by record fingerprint so that a record whose
// inputs have not changed is never sent to the generation service twice.
package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/catalog"
)

// Entry is one cached enrichment.
type Entry struct {
	Fingerprint string             `json:"fingerprint" msgpack:"fingerprint"`
	DomainInfo  catalog.DomainInfo `json:"domain_info" msgpack:"domain_info"`
	Result      catalog.Result     `json:"result" msgpack:"result"`
	CreatedAt   time.Time          `json:"created_at" msgpack:"created_at"`
}

// Store maps fingerprints to entries. Put never overwrites: the first entry stored for a
// fingerprint wins. Implementations are safe for concurrent use.
type Store interface {
	Get(ctx context.Context, fingerprint string) (Entry, bool, error)
	Put(ctx context.Context, e Entry) error
	Len() int
	// Close persists pending entries and releases resources.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Options configures every store.
type Options struct {
	// Validate rejects cached results that no longer satisfy the output contract. Rejected
	// entries behave as misses. Nil accepts everything.
	Validate func(catalog.Result) error
	Logger   *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// valid reports whether e can be served as a hit.
func (o Options) valid(e Entry) bool {
	if e.Fingerprint == "" {
		return false
	}
	if o.Validate == nil {
		return true
	}
	if err := o.Validate(e.Result); err != nil {
		o.Logger.Debug("cached entry rejected", zap.String("fingerprint", e.Fingerprint), zap.Error(err))
		return false
	}
	return true
}

// Open returns the store for backend. An empty backend or "file" picks the file store, whose
// encoding follows the extension of path (.msgpack/.mpk for msgpack, JSON otherwise).
func Open(backend, path string, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFile, "json", "msgpack":
		if path == "" {
			return NewMemory(opts), nil
		}
		return OpenFile(path, opts)
	case BackendSQLite:
		return OpenSQLite(path, opts)
	case BackendMemory:
		return NewMemory(opts), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}

// IsMsgpackPath reports whether path selects the msgpack encoding.
func IsMsgpackPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mpk":
		return true
	default:
		return false
	}
}
