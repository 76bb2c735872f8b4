package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"deckcore/pkg/domain"
)

const exportPrefix = "decks/"

// ExportKey names the archive object for a snapshot of deckID taken at at.
// Nanoseconds are zero padded so key order is chronological order.
func ExportKey(deckID string, at time.Time) string {
	return fmt.Sprintf("%s%s/%020d.json", exportPrefix, deckID, at.UnixNano())
}

// Archive stores deck snapshots as JSON objects in a Store.
type Archive struct {
	store Store
}

// NewArchive wraps store.
func NewArchive(store Store) *Archive { return &Archive{store: store} }

// Driver reports the backing store driver.
func (a *Archive) Driver() Driver { return a.store.Driver() }

// Put writes snap under ExportKey(snap.DeckID, at).
func (a *Archive) Put(ctx context.Context, snap domain.Snapshot, at time.Time) (Info, error) {
	if err := snap.Validate(); err != nil {
		return Info{}, fmt.Errorf("archive deck: %w", err)
	}
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return Info{}, fmt.Errorf("encode deck %s: %w", snap.DeckID, err)
	}
	info, err := a.store.Put(ctx, ExportKey(snap.DeckID, at), bytes.NewReader(payload), PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"deck-id": snap.DeckID,
			"total":   strconv.Itoa(snap.Total()),
			"entries": strconv.Itoa(len(snap.Entries)),
		},
	})
	if err != nil {
		return Info{}, fmt.Errorf("archive deck %s: %w", snap.DeckID, err)
	}
	return info, nil
}

// Get decodes the snapshot stored at key.
func (a *Archive) Get(ctx context.Context, key string) (domain.Snapshot, error) {
	_, rc, err := a.store.Get(ctx, key)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("read export %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	var snap domain.Snapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode export %s: %w", key, err)
	}
	if err := snap.Validate(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("export %s: %w", key, err)
	}
	return snap, nil
}

// List returns the exports of deckID, oldest first. An empty deckID lists
// every deck's exports.
func (a *Archive) List(ctx context.Context, deckID string) ([]Info, error) {
	prefix := exportPrefix
	if deckID != "" {
		prefix += deckID + "/"
	}
	infos, err := a.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	out := infos[:0]
	for _, info := range infos {
		if strings.HasSuffix(info.Key, ".json") {
			out = append(out, info)
		}
	}
	return out, nil
}

// Latest returns the newest export of deckID or ErrNotFound.
func (a *Archive) Latest(ctx context.Context, deckID string) (Info, error) {
	infos, err := a.List(ctx, deckID)
	if err != nil {
		return Info{}, err
	}
	if len(infos) == 0 {
		return Info{}, fmt.Errorf("exports of deck %s: %w", deckID, ErrNotFound)
	}
	return infos[len(infos)-1], nil
}

// Share returns a time-limited GET URL for key. Drivers that cannot sign
// return ErrUnsupported.
func (a *Archive) Share(ctx context.Context, key string, ttl time.Duration) (string, error) {
	url, err := a.store.PresignURL(ctx, key, SignedURLOptions{Method: "GET", Expiry: ttl})
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			return "", fmt.Errorf("share %s on %s driver: %w", key, a.store.Driver(), err)
		}
		return "", fmt.Errorf("share %s: %w", key, err)
	}
	return url, nil
}

// Delete removes one export.
func (a *Archive) Delete(ctx context.Context, key string) (bool, error) {
	return a.store.Delete(ctx, key)
}
