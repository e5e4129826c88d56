// Package tags persists per-room key/value namespaces. Tags outlive any
// single conversation and hold the model/backend overrides for a room.
package tags

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/mattn/go-sqlite3"
)

// Namespaces and keys used by the bot.
const (
	NamespaceModel   = "is.chaz.model"
	NamespaceBackend = "is.chaz.backend"

	KeyDefaultModel   = "default"
	KeyDefaultBackend = "chazdefault"
)

// Store is the SQLite-backed tag store shared by all rooms.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the tag database at the given path, ensuring that
// the parent directory exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create tag db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open tag db at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping tag db at %s: %w", path, err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init tag schema: %w", err)
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tags (
			room TEXT NOT NULL,
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT (unixepoch()),
			PRIMARY KEY (room, namespace, key)
		);
	`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Open loads one room's namespace into a TagSet. Replacements are staged on
// the set and committed by Sync; concurrent writers to the same room get
// last-write-wins, not isolation.
func (s *Store) Open(room, namespace string) (*TagSet, error) {
	rows, err := s.db.Query(
		`SELECT key, value FROM tags WHERE room = ? AND namespace = ?`,
		room, namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags %s for %s: %w", namespace, room, err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			continue
		}
		values[key] = value
	}
	return &TagSet{
		store:     s,
		room:      room,
		namespace: namespace,
		values:    values,
		pending:   make(map[string]string),
	}, rows.Err()
}

// TagSet is one room's view of a single namespace.
type TagSet struct {
	store     *Store
	room      string
	namespace string
	values    map[string]string
	pending   map[string]string
}

// Get returns the value for a key, staged replacements included.
func (t *TagSet) Get(key string) (string, bool) {
	if v, ok := t.pending[key]; ok {
		return v, true
	}
	v, ok := t.values[key]
	return v, ok
}

// Replace stages a replacement for the key. Nothing is written until Sync.
func (t *TagSet) Replace(key, value string) {
	t.pending[key] = value
}

// Sync commits all staged replacements.
func (t *TagSet) Sync() error {
	if len(t.pending) == 0 {
		return nil
	}
	tx, err := t.store.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin tag sync: %w", err)
	}
	for key, value := range t.pending {
		if _, err := tx.Exec(
			`INSERT INTO tags (room, namespace, key, value) VALUES (?, ?, ?, ?)
			 ON CONFLICT (room, namespace, key)
			 DO UPDATE SET value = excluded.value, updated_at = unixepoch()`,
			t.room, t.namespace, key, value,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to sync tag %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tag sync: %w", err)
	}
	for key, value := range t.pending {
		t.values[key] = value
	}
	t.pending = make(map[string]string)
	return nil
}

// AllKeys returns every key in the namespace, staged replacements included,
// in sorted order.
func (t *TagSet) AllKeys() []string {
	seen := make(map[string]bool, len(t.values)+len(t.pending))
	for key := range t.values {
		seen[key] = true
	}
	for key := range t.pending {
		seen[key] = true
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
