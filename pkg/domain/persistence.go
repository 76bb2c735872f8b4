package domain

import "context"

// CardSource resolves card keys to cards. The deck engine never loads cards
// itself; restoring a snapshot goes through a CardSource.
type CardSource interface {
	Lookup(key string) (Card, bool)
}

// SnapshotStore is a minimal abstraction over durable backends holding deck
// snapshots keyed by deck ID.
type SnapshotStore interface {
	// Save replaces the stored snapshot for snapshot.DeckID.
	Save(ctx context.Context, snapshot Snapshot) error
	// Load returns ErrSnapshotNotFound when the deck has never been saved.
	Load(ctx context.Context, deckID string) (Snapshot, error)
	// Delete reports whether a snapshot existed.
	Delete(ctx context.Context, deckID string) (bool, error)
	// List returns stored deck IDs in ascending order.
	List(ctx context.Context) ([]string, error)
	Driver() string
	Close() error
}
