// Package postgres provides a Postgres-backed snapshot store keeping one JSONB
// payload row per deck.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	sqldocs "deckcore/docs/schema/sql"
	"deckcore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.SnapshotStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// DefaultDSN is used when NewStore receives an empty DSN.
	DefaultDSN = "postgres://localhost/deckcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists deck snapshots to Postgres.
type Store struct {
	db *sql.DB
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to
// DefaultDSN), pings the server and ensures the decks table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureDecksTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureDecksTable(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, sqldocs.Postgres); err != nil {
		return fmt.Errorf("ensure decks table: %w", err)
	}
	return nil
}

// Save upserts the snapshot for snapshot.DeckID inside a transaction.
func (s *Store) Save(ctx context.Context, snapshot domain.Snapshot) (retErr error) {
	if err := snapshot.Validate(); err != nil {
		return fmt.Errorf("save deck: %w", err)
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode deck %s: %w", snapshot.DeckID, err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO decks (deck_id, payload, saved_at) VALUES ($1, $2, $3)
		ON CONFLICT (deck_id) DO UPDATE SET payload = EXCLUDED.payload, saved_at = EXCLUDED.saved_at`,
		snapshot.DeckID, payload, snapshot.SavedAt); err != nil {
		return fmt.Errorf("upsert deck %s: %w", snapshot.DeckID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit deck %s: %w", snapshot.DeckID, err)
	}
	return nil
}

// Load reads the snapshot for deckID.
func (s *Store) Load(ctx context.Context, deckID string) (domain.Snapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM decks WHERE deck_id = $1`, deckID).Scan(&payload)
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM decks WHERE deck_id = $1`, deckID)
	if err != nil {
		return false, fmt.Errorf("delete deck %s: %w", deckID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete deck %s: %w", deckID, err)
	}
	return n > 0, nil
}

// List returns the stored deck IDs in ascending order.
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
			return nil, fmt.Errorf("scan deck id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Driver reports the backend name.
func (s *Store) Driver() string { return "postgres" }

// Close closes the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
