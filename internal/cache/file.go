package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// FileStore keeps every entry in memory and writes the whole map on Close. With an empty path
// it is a purely in-memory store.
type FileStore struct {
	mu      sync.RWMutex
	path    string
	msgpack bool
	opts    Options
	entries map[string]Entry
	dirty   bool
}

// NewMemory returns a store that is never persisted.
func NewMemory(opts Options) *FileStore {
	return &FileStore{opts: opts.withDefaults(), entries: map[string]Entry{}}
}

// OpenFile loads path if it exists. Entries that fail validation are dropped on load.
func OpenFile(path string, opts Options) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		msgpack: IsMsgpackPath(path),
		opts:    opts.withDefaults(),
		entries: map[string]Entry{},
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache %s: %w", path, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return s, nil
	}

	var loaded map[string]Entry
	if s.msgpack {
		err = msgpack.Unmarshal(b, &loaded)
	} else {
		err = json.Unmarshal(b, &loaded)
	}
	if err != nil {
		return nil, fmt.Errorf("decode cache %s: %w", path, err)
	}

	dropped := 0
	for fp, e := range loaded {
		if e.Fingerprint == "" {
			e.Fingerprint = fp
		}
		if e.Fingerprint != fp || !s.opts.valid(e) {
			dropped++
			continue
		}
		s.entries[fp] = e
	}
	if dropped > 0 {
		s.dirty = true
		s.opts.Logger.Info("dropped invalid cache entries", zap.String("path", path), zap.Int("count", dropped))
	}
	return s, nil
}

func (s *FileStore) Get(ctx context.Context, fingerprint string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[fingerprint]
	return e, ok, nil
}

func (s *FileStore) Put(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.Fingerprint == "" {
		return errors.New("cache entry without fingerprint")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[e.Fingerprint]; exists {
		return nil
	}
	s.entries[e.Fingerprint] = e
	s.dirty = true
	return nil
}

func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Flush writes the entries to disk when anything changed since the last write.
func (s *FileStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" || !s.dirty {
		return nil
	}
	b, err := s.encode()
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := writeFileAtomic(s.path, b); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

func (s *FileStore) Close() error {
	return s.Flush()
}

func (s *FileStore) encode() ([]byte, error) {
	if s.msgpack {
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetSortMapKeys(true)
		if err := enc.Encode(s.entries); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	// Sorted keys keep the file diff-friendly between runs.
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, k := range keys {
		kb, _ := json.Marshal(k)
		var vb bytes.Buffer
		enc := json.NewEncoder(&vb)
		enc.SetEscapeHTML(false)
		enc.SetIndent("  ", "  ")
		if err := enc.Encode(s.entries[k]); err != nil {
			return nil, err
		}
		buf.WriteString("  ")
		buf.Write(kb)
		buf.WriteString(": ")
		buf.Write(bytes.TrimRight(vb.Bytes(), "\n"))
		if i < len(keys)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

func writeFileAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".cache-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write cache: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace cache %s: %w", path, err)
	}
	return nil
}
