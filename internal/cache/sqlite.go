package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS enrichment_cache (
	fingerprint TEXT PRIMARY KEY,
	domain_info TEXT NOT NULL,
	result TEXT NOT NULL,
	created_at TEXT NOT NULL
);`

// SQLiteStore keeps entries in a SQLite table. Writes go straight to the database.
type SQLiteStore struct {
	db   *sql.DB
	opts Options
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string, opts Options) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite cache needs a path")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY under the worker pool.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite cache: %w", err)
	}
	return &SQLiteStore{db: db, opts: opts.withDefaults()}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, fingerprint string) (Entry, bool, error) {
	var domainJSON, resultJSON, created string
	err := s.db.QueryRowContext(ctx,
		`SELECT domain_info, result, created_at FROM enrichment_cache WHERE fingerprint = ?`,
		fingerprint,
	).Scan(&domainJSON, &resultJSON, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("query cache: %w", err)
	}

	e := Entry{Fingerprint: fingerprint}
	if err := json.Unmarshal([]byte(domainJSON), &e.DomainInfo); err != nil {
		s.opts.Logger.Debug("undecodable cached domain", zap.String("fingerprint", fingerprint), zap.Error(err))
		return Entry{}, false, nil
	}
	if err := json.Unmarshal([]byte(resultJSON), &e.Result); err != nil {
		s.opts.Logger.Debug("undecodable cached result", zap.String("fingerprint", fingerprint), zap.Error(err))
		return Entry{}, false, nil
	}
	if t, err := time.Parse(time.RFC3339, created); err == nil {
		e.CreatedAt = t
	}
	if !s.opts.valid(e) {
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, e Entry) error {
	if e.Fingerprint == "" {
		return errors.New("cache entry without fingerprint")
	}
	domainJSON, err := json.Marshal(e.DomainInfo)
	if err != nil {
		return fmt.Errorf("encode cached domain: %w", err)
	}
	resultJSON, err := json.Marshal(e.Result)
	if err != nil {
		return fmt.Errorf("encode cached result: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO enrichment_cache (fingerprint, domain_info, result, created_at) VALUES (?, ?, ?, ?)`,
		e.Fingerprint, string(domainJSON), string(resultJSON), e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert cache entry: %w", err)
	}
	return nil
}

// Len returns the number of stored rows, or 0 when the count cannot be read.
func (s *SQLiteStore) Len() int {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM enrichment_cache`).Scan(&n); err != nil {
		s.opts.Logger.Warn("count cache entries", zap.Error(err))
		return 0
	}
	return n
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
