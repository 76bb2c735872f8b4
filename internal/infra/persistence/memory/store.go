// Package memory provides an in-memory snapshot store used for tests and
// ephemeral environments.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"deckcore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.SnapshotStore = (*Store)(nil)

// Store keeps encoded snapshots keyed by deck ID. Snapshots are stored in their
// JSON form so callers never share nested slices with the store.
type Store struct {
	mu    sync.RWMutex
	decks map[string][]byte
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{decks: make(map[string][]byte)}
}

// Save replaces the snapshot for snapshot.DeckID.
func (s *Store) Save(ctx context.Context, snapshot domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := snapshot.Validate(); err != nil {
		return fmt.Errorf("save deck: %w", err)
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode deck %s: %w", snapshot.DeckID, err)
	}
	s.mu.Lock()
	s.decks[snapshot.DeckID] = payload
	s.mu.Unlock()
	return nil
}

// Load returns the stored snapshot for deckID.
func (s *Store) Load(ctx context.Context, deckID string) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	s.mu.RLock()
	payload, ok := s.decks[deckID]
	s.mu.RUnlock()
	if !ok {
		return domain.Snapshot{}, fmt.Errorf("deck %s: %w", deckID, domain.ErrSnapshotNotFound)
	}
	var snapshot domain.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode deck %s: %w", deckID, err)
	}
	return snapshot, nil
}

// Delete removes the snapshot for deckID.
func (s *Store) Delete(ctx context.Context, deckID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.decks[deckID]
	delete(s.decks, deckID)
	return ok, nil
}

// List returns the stored deck IDs in ascending order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.decks))
	for id := range s.decks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Driver reports the backend name.
func (s *Store) Driver() string { return "memory" }

// Close is a no-op.
func (s *Store) Close() error { return nil }
