// Package persistencetest holds the behavioural contract every
// domain.SnapshotStore driver must satisfy.
package persistencetest

import (
	"context"
	"testing"
	"time"

	"deckcore/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Snapshot returns a valid snapshot for deckID with a fixed timestamp.
func Snapshot(deckID string) domain.Snapshot {
	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	return domain.Snapshot{
		DeckID: deckID,
		Entries: []domain.EntryRecord{
			{CardKey: "forest", Count: 17, DateAdded: at},
			{CardKey: "llanowar-elves", Count: 4, DateAdded: at.Add(time.Minute)},
		},
		Categories: []domain.CategoryRecord{
			{Name: "Creatures", Filter: domain.Leaf("type", domain.OpEquals, "creature"), Rank: 0, Color: "#228b22"},
			{Name: "Lands", Filter: domain.Leaf("type", domain.OpEquals, "land"), Rank: 1, Blacklist: []string{"forest"}},
		},
		SavedAt: at.Add(time.Hour),
	}
}

// Run exercises save, load, overwrite, list and delete against the store
// returned by open. open is called once per subtest.
func Run(t *testing.T, open func(t *testing.T) domain.SnapshotStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("load missing", func(t *testing.T) {
		store := open(t)
		_, err := store.Load(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("save and load", func(t *testing.T) {
		store := open(t)
		want := Snapshot("alpha")
		require.NoError(t, store.Save(ctx, want))
		got, err := store.Load(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, want.DeckID, got.DeckID)
		assert.Equal(t, want.Entries[0].CardKey, got.Entries[0].CardKey)
		assert.True(t, want.Entries[1].DateAdded.Equal(got.Entries[1].DateAdded))
		require.Len(t, got.Categories, 2)
		assert.True(t, want.Categories[1].Filter.Equal(got.Categories[1].Filter))
		assert.Equal(t, []string{"forest"}, got.Categories[1].Blacklist)
		assert.Equal(t, want.Total(), got.Total())
	})

	t.Run("overwrite", func(t *testing.T) {
		store := open(t)
		first := Snapshot("alpha")
		require.NoError(t, store.Save(ctx, first))
		second := Snapshot("alpha")
		second.Entries = second.Entries[:1]
		require.NoError(t, store.Save(ctx, second))
		got, err := store.Load(ctx, "alpha")
		require.NoError(t, err)
		assert.Len(t, got.Entries, 1)
	})

	t.Run("list and delete", func(t *testing.T) {
		store := open(t)
		for _, id := range []string{"gamma", "alpha", "beta"} {
			require.NoError(t, store.Save(ctx, Snapshot(id)))
		}
		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "beta", "gamma"}, ids)

		deleted, err := store.Delete(ctx, "beta")
		require.NoError(t, err)
		assert.True(t, deleted)
		deleted, err = store.Delete(ctx, "beta")
		require.NoError(t, err)
		assert.False(t, deleted)

		ids, err = store.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "gamma"}, ids)
	})

	t.Run("rejects invalid snapshot", func(t *testing.T) {
		store := open(t)
		assert.Error(t, store.Save(ctx, domain.Snapshot{}))
	})

	t.Run("driver name", func(t *testing.T) {
		assert.NotEmpty(t, open(t).Driver())
	})
}
