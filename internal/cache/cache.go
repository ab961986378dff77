// Package cache is the durable, TTL-aware, LRU-bounded store mapping
// normalized-code SHA-256 ids to CacheEntry rows. It is backed by a
// single SQLite file via database/sql + mattn/go-sqlite3; every public
// operation executes inside one transaction so writes serialize through
// the database's own transactional semantics.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/blackcoderx/mfp/internal/hashutil"
	"github.com/blackcoderx/mfp/internal/mfperrors"
	"github.com/blackcoderx/mfp/internal/model"
)

// Store is a single-writer/single-reader cache backed by SQLite.
type Store struct {
	db          *sql.DB
	mu          sync.Mutex
	maxEntries  int
	defaultTTL  int
}

// Open creates (if needed) the schema at dbPath and returns a ready Store.
func Open(dbPath string, maxEntries, defaultTTLSeconds int) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, mfperrors.NewCacheError(fmt.Errorf("creating cache directory: %w", err))
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, mfperrors.NewCacheError(fmt.Errorf("opening cache database: %w", err))
	}
	db.SetMaxOpenConns(1) // single-writer discipline over one sqlite file

	s := &Store{db: db, maxEntries: maxEntries, defaultTTL: defaultTTLSeconds}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		id TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		code TEXT NOT NULL,
		servers_used TEXT NOT NULL,
		swagger_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		last_used_at DATETIME NOT NULL,
		use_count INTEGER NOT NULL DEFAULT 1,
		ttl_seconds INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cache_entries_last_used ON cache_entries(last_used_at);
	CREATE INDEX IF NOT EXISTS idx_cache_entries_description ON cache_entries(description);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return mfperrors.NewCacheError(fmt.Errorf("initializing schema: %w", err))
	}
	return nil
}

// Store upserts one entry keyed by hashutil.HashCode(code). On conflict,
// last_used_at and use_count bump while ttl_seconds/created_at/code/
// description of the first insertion are preserved (the description is
// intentionally kept on conflict; re-running the same code under a new
// label does not relabel the entry). Runs LRU eviction in the same
// transaction.
func (s *Store) Store(code, description string, serversUsed []string, swaggerHash string, ttlSeconds int) (*model.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := hashutil.HashCode(code)
	now := time.Now().UTC()
	serversJSON, err := json.Marshal(serversUsed)
	if err != nil {
		return nil, mfperrors.NewCacheError(err)
	}
	if ttlSeconds <= 0 {
		ttlSeconds = s.defaultTTL
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return nil, mfperrors.NewCacheError(err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO cache_entries (id, description, code, servers_used, swagger_hash, created_at, last_used_at, use_count, ttl_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_used_at = excluded.last_used_at,
			use_count = use_count + 1
	`, id, description, code, string(serversJSON), swaggerHash, now, now, ttlSeconds)
	if err != nil {
		return nil, mfperrors.NewCacheError(err)
	}

	entry, err := queryByID(tx, id)
	if err != nil {
		return nil, mfperrors.NewCacheError(err)
	}

	evictIfNeeded(tx, s.maxEntries)

	if err := tx.Commit(); err != nil {
		return nil, mfperrors.NewCacheError(err)
	}
	return entry, nil
}

// Get fetches an entry by id. If its TTL has elapsed it is deleted and
// (nil, false) is returned; otherwise last_used_at/use_count bump and the
// (now-updated) entry is returned.
func (s *Store) Get(id string) (*model.CacheEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return nil, false, mfperrors.NewCacheError(err)
	}
	defer tx.Rollback()

	entry, err := queryByID(tx, id)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, mfperrors.NewCacheError(err)
	}

	if time.Since(entry.CreatedAt) >= time.Duration(entry.TTLSeconds)*time.Second {
		if _, err := tx.Exec(`DELETE FROM cache_entries WHERE id = ?`, id); err != nil {
			return nil, false, mfperrors.NewCacheError(err)
		}
		if err := tx.Commit(); err != nil {
			return nil, false, mfperrors.NewCacheError(err)
		}
		return nil, false, nil
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(`UPDATE cache_entries SET last_used_at = ?, use_count = use_count + 1 WHERE id = ?`, now, id); err != nil {
		return nil, false, mfperrors.NewCacheError(err)
	}
	entry.LastUsedAt = now
	entry.UseCount++

	if err := tx.Commit(); err != nil {
		return nil, false, mfperrors.NewCacheError(err)
	}
	return entry, true, nil
}

// SearchResult is one row of a search response; it excludes the full
// source.
type SearchResult struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	ServersUsed []string `json:"servers_used"`
	UseCount    int      `json:"use_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Search returns non-expired entries matching query (case-insensitive
// substring on description), or all non-expired entries when query is
// empty, ordered by use_count DESC, last_used_at DESC, truncated to limit.
func (s *Store) Search(query string, limit int) ([]SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT id, description, servers_used, use_count, created_at, ttl_seconds
		FROM cache_entries
		ORDER BY use_count DESC, last_used_at DESC
	`)
	if err != nil {
		return nil, mfperrors.NewCacheError(err)
	}
	defer rows.Close()

	var out []SearchResult
	lowerQuery := strings.ToLower(query)
	for rows.Next() {
		var id, description, serversJSON string
		var useCount, ttlSeconds int
		var createdAt time.Time
		if err := rows.Scan(&id, &description, &serversJSON, &useCount, &createdAt, &ttlSeconds); err != nil {
			return nil, mfperrors.NewCacheError(err)
		}
		if time.Since(createdAt) >= time.Duration(ttlSeconds)*time.Second {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(description), lowerQuery) {
			continue
		}
		var servers []string
		_ = json.Unmarshal([]byte(serversJSON), &servers)
		out = append(out, SearchResult{ID: id, Description: description, ServersUsed: servers, UseCount: useCount, CreatedAt: createdAt})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Count returns the current number of rows, expired or not.
func (s *Store) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
		return 0, mfperrors.NewCacheError(err)
	}
	return count, nil
}

// InvalidateBySwaggerHash deletes every row with the given dependency hash
// and returns the number of rows removed.
func (s *Store) InvalidateBySwaggerHash(hash string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM cache_entries WHERE swagger_hash = ?`, hash)
	if err != nil {
		return 0, mfperrors.NewCacheError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mfperrors.NewCacheError(err)
	}
	return int(n), nil
}

// CleanupExpired deletes every row whose TTL has elapsed.
func (s *Store) CleanupExpired() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanupExpiredLocked()
}

func (s *Store) cleanupExpiredLocked() (int, error) {
	res, err := s.db.Exec(`
		DELETE FROM cache_entries
		WHERE (strftime('%s','now') - strftime('%s', created_at)) >= ttl_seconds
	`)
	if err != nil {
		return 0, mfperrors.NewCacheError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mfperrors.NewCacheError(err)
	}
	return int(n), nil
}

// evictIfNeeded removes the oldest-by-last_used_at rows once the table
// exceeds maxEntries, pure LRU by use time, inside the caller's
// transaction. Caller must hold s.mu.
func evictIfNeeded(tx *sql.Tx, maxEntries int) {
	if maxEntries <= 0 {
		return
	}
	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
		return
	}
	if count <= maxEntries {
		return
	}
	excess := count - maxEntries
	_, _ = tx.Exec(`
		DELETE FROM cache_entries WHERE id IN (
			SELECT id FROM cache_entries ORDER BY last_used_at ASC LIMIT ?
		)
	`, excess)
}

func queryByID(tx *sql.Tx, id string) (*model.CacheEntry, error) {
	row := tx.QueryRow(`
		SELECT id, description, code, servers_used, swagger_hash, created_at, last_used_at, use_count, ttl_seconds
		FROM cache_entries WHERE id = ?
	`, id)

	var entry model.CacheEntry
	var serversJSON string
	if err := row.Scan(&entry.ID, &entry.Description, &entry.Code, &serversJSON, &entry.SwaggerHash,
		&entry.CreatedAt, &entry.LastUsedAt, &entry.UseCount, &entry.TTLSeconds); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(serversJSON), &entry.ServersUsed)
	return &entry, nil
}
