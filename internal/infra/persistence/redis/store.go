// Package redis persists deck snapshots as JSON strings in Redis, with a set
// indexing the stored deck IDs.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"deckcore/pkg/domain"

	goredis "github.com/redis/go-redis/v9"
)

var _ domain.SnapshotStore = (*Store)(nil)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "deckcore:"

// Store is a Redis-backed snapshot store.
type Store struct {
	rdb    *goredis.Client
	prefix string
}

// NewStore connects to addr and verifies the connection with PING.
func NewStore(ctx context.Context, addr string) (*Store, error) {
	if addr == "" {
		return nil, errors.New("redis: address is required")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewStoreWithClient(rdb, DefaultPrefix), nil
}

// NewStoreWithClient wraps an existing client. The store takes ownership and
// closes it on Close.
func NewStoreWithClient(rdb *goredis.Client, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) deckKey(deckID string) string { return s.prefix + "deck:" + deckID }

func (s *Store) indexKey() string { return s.prefix + "decks" }

// Save writes the snapshot and indexes its deck ID atomically.
func (s *Store) Save(ctx context.Context, snapshot domain.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return fmt.Errorf("save deck: %w", err)
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode deck %s: %w", snapshot.DeckID, err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.deckKey(snapshot.DeckID), payload, 0)
		pipe.SAdd(ctx, s.indexKey(), snapshot.DeckID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write deck %s: %w", snapshot.DeckID, err)
	}
	return nil
}

// Load reads the snapshot for deckID.
func (s *Store) Load(ctx context.Context, deckID string) (domain.Snapshot, error) {
	payload, err := s.rdb.Get(ctx, s.deckKey(deckID)).Bytes()
	if errors.Is(err, goredis.Nil) {
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

// Delete removes the snapshot and its index entry.
func (s *Store) Delete(ctx context.Context, deckID string) (bool, error) {
	var del *goredis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		del = pipe.Del(ctx, s.deckKey(deckID))
		pipe.SRem(ctx, s.indexKey(), deckID)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete deck %s: %w", deckID, err)
	}
	return del.Val() > 0, nil
}

// List returns the indexed deck IDs in ascending order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	slices.Sort(ids)
	return ids, nil
}

// Driver reports the backend name.
func (s *Store) Driver() string { return "redis" }

// Close closes the client.
func (s *Store) Close() error { return s.rdb.Close() }
