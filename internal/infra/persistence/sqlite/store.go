// Package sqlite persists deck snapshots to an embedded SQLite database, one
// JSON payload row per deck.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	sqldocs "deckcore/docs/schema/sql"
	"deckcore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.SnapshotStore = (*Store)(nil)

// DefaultPath is used when NewStore receives an empty path.
const DefaultPath = "deckcore.db"

// Store is a SQLite-backed snapshot store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating when needed) the database at path and ensures the
// decks table exists.
func NewStore(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps ":memory:" databases stable across calls
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqldocs.SQLite); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create decks table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Save upserts the snapshot row for snapshot.DeckID.
func (s *Store) Save(ctx context.Context, snapshot domain.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return fmt.Errorf("save deck: %w", err)
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode deck %s: %w", snapshot.DeckID, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO decks(deck_id, payload, saved_at) VALUES(?, ?, ?)
		ON CONFLICT(deck_id) DO UPDATE SET payload=excluded.payload, saved_at=excluded.saved_at`,
		snapshot.DeckID, payload, snapshot.SavedAt.UnixNano()); err != nil {
		return fmt.Errorf("upsert deck %s: %w", snapshot.DeckID, err)
	}
	return nil
}

// Load reads the snapshot for deckID.
func (s *Store) Load(ctx context.Context, deckID string) (domain.Snapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM decks WHERE deck_id = ?`, deckID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, fmt.Errorf("deck %s: %w", deckID, domain.ErrSnapshotNotFound)
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("select deck %s: %w", deckID, err)
	}
	var snapshot domain.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode deck %s: %w", deckID, err)
	}
	return snapshot, nil
}

// Delete removes the row for deckID.
func (s *Store) Delete(ctx context.Context, deckID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM decks WHERE deck_id = ?`, deckID)
	if err != nil {
		return false, fmt.Errorf("delete deck %s: %w", deckID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete deck %s: %w", deckID, err)
	}
	return n > 0, nil
}

// List returns every stored deck ID in ascending order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT deck_id FROM decks ORDER BY deck_id`)
	if err != nil {
		return nil, fmt.Errorf("select decks: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Driver reports the backend name.
func (s *Store) Driver() string { return "sqlite" }

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
