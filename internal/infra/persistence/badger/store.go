// Package badger persists deck snapshots in an embedded BadgerDB key space,
// one key per deck under the "deck/" prefix.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"deckcore/pkg/domain"

	"github.com/dgraph-io/badger/v4"
)

var _ domain.SnapshotStore = (*Store)(nil)

const keyPrefix = "deck/"

// Config holds configuration for the BadgerDB instance.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string
	// InMemory keeps everything in RAM; used by tests.
	InMemory bool
	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool
	// Logger receives BadgerDB's internal logs. Nil disables them.
	Logger *slog.Logger
}

// InMemoryConfig returns configuration suited to tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a BadgerDB-backed snapshot store.
type Store struct {
	db *badger.DB
}

// NewStore opens the database described by cfg.
func NewStore(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger: path is required for persistent database")
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

func deckKey(deckID string) []byte { return []byte(keyPrefix + deckID) }

// Save replaces the snapshot for snapshot.DeckID.
func (s *Store) Save(ctx context.Context, snapshot domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if err := snapshot.Validate(); err != nil {
		return fmt.Errorf("save deck: %w", err)
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode deck %s: %w", snapshot.DeckID, err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(deckKey(snapshot.DeckID), payload)
	}); err != nil {
		return fmt.Errorf("write deck %s: %w", snapshot.DeckID, err)
	}
	return nil
}

// Load reads the snapshot for deckID.
func (s *Store) Load(ctx context.Context, deckID string) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("context cancelled: %w", err)
	}
	var payload []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(deckKey(deckID))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Snapshot{}, fmt.Errorf("deck %s: %w", deckID, domain.ErrSnapshotNotFound)
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("read deck %s: %w", deckID, err)
	}
	var snapshot domain.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode deck %s: %w", deckID, err)
	}
	return snapshot, nil
}

// Delete removes the key for deckID.
func (s *Store) Delete(ctx context.Context, deckID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("context cancelled: %w", err)
	}
	existed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(deckKey(deckID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		existed = true
		return txn.Delete(deckKey(deckID))
	})
	if err != nil {
		return false, fmt.Errorf("delete deck %s: %w", deckID, err)
	}
	return existed, nil
}

// List returns the stored deck IDs in ascending order. Badger iterates keys in
// byte order so no sort is needed.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(keyPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	return ids, nil
}

// Driver reports the backend name.
func (s *Store) Driver() string { return "badger" }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }
