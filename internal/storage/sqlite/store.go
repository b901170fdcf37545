// Package sqlite opens and inspects the WorkBot SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	// Import SQLite driver
	sqlite3 "github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/tetratelabs/wazero"
)

// Store wraps the single connection to the WorkBot database.
type Store struct {
	db     *sql.DB
	path   string
	closed atomic.Bool // Tracks whether Close() has been called
}

// openMaxElapsed bounds how long Open retries when another process holds
// the write lock on the database file.
const openMaxElapsed = 10 * time.Second

// setupWASMCache configures WASM compilation caching to reduce SQLite startup time.
// Returns the cache directory path (empty string if using in-memory cache).
//
// Cache behavior:
//   - Location: ~/.cache/wbm/wasm/ (platform-specific via os.UserCacheDir)
//   - Version management: wazero automatically keys cache by its version
//   - Fallback: Uses in-memory cache if filesystem cache creation fails
func setupWASMCache() string {
	cacheDir := ""
	if userCache, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(userCache, "wbm", "wasm")
	}

	var cache wazero.CompilationCache
	if cacheDir != "" {
		// Try file-system cache first (persistent across runs)
		if c, err := wazero.NewCompilationCacheWithDir(cacheDir); err == nil {
			cache = c
		}
	}

	// Fallback to in-memory cache if dir creation failed
	if cache == nil {
		cache = wazero.NewCompilationCache()
		cacheDir = "" // Indicate in-memory fallback
	}

	// Configure go-sqlite3's wazero runtime to use the cache
	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithCompilationCache(cache)

	return cacheDir
}

func init() {
	// Setup WASM compilation cache to avoid JIT compilation overhead on every process start
	_ = setupWASMCache()
}

// connString builds the driver connection string for path. Foreign keys are
// enforced and a busy timeout covers short lock contention; longer contention
// is handled by the backoff in Open.
func connString(path string) string {
	if path == ":memory:" {
		// Named shared in-memory database so a second connection (tests) sees
		// the same data. WAL does not apply to in-memory databases.
		return "file:memdb?mode=memory&cache=shared&_pragma=journal_mode(DELETE)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	}
	if strings.HasPrefix(path, "file:") {
		if !strings.Contains(path, "_pragma=foreign_keys") {
			return path + "&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
		}
		return path
	}
	return "file:" + path + "?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
}

func newOpenBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = openMaxElapsed
	return bo
}

// Open opens the database at path. The file must already exist: a migration
// tool that silently creates an empty database would then "migrate" nothing
// and report success, so a missing file is an error instead.
//
// The connection pool is capped at one connection. The migration run is
// strictly sequential and SQLite only ever has one writer anyway.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("database file %q not found: %w", path, ErrNotFound)
			}
			return nil, fmt.Errorf("stat %q: %w", path, err)
		}
	}

	db, err := sql.Open("sqlite3", connString(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Ping with retry: another process (the bot itself) may hold the write
	// lock briefly. Locked is transient, everything else is permanent.
	bo := newOpenBackoff()
	err = backoff.Retry(func() error {
		pingErr := db.PingContext(ctx)
		if pingErr != nil && !IsLocked(pingErr) {
			return backoff.Permanent(pingErr)
		}
		return pingErr
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// DB exposes the underlying handle for migration statements.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection. Safe to call more than once.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
