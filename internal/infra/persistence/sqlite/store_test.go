package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"deckcore/internal/persistence/persistencetest"
	"deckcore/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), filepath.Join(t.TempDir(), "nested", "decks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreContract(t *testing.T) {
	persistencetest.Run(t, func(t *testing.T) domain.SnapshotStore { return openTemp(t) })
}

func TestSnapshotsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "decks.db")
	store, err := NewStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, persistencetest.Snapshot("alpha")))
	require.NoError(t, store.Close())

	reopened, err := NewStore(ctx, path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	got, err := reopened.Load(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 21, got.Total())
	assert.Equal(t, path, reopened.Path())
	assert.NotNil(t, reopened.DB())
}

func TestInMemoryDatabase(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(ctx, ":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	require.NoError(t, store.Save(ctx, persistencetest.Snapshot("alpha")))
	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, ids)
}

func TestCorruptPayload(t *testing.T) {
	ctx := context.Background()
	store := openTemp(t)
	_, err := store.DB().ExecContext(ctx, `INSERT INTO decks(deck_id, payload, saved_at) VALUES(?, ?, 0)`, "broken", []byte("{"))
	require.NoError(t, err)
	_, err = store.Load(ctx, "broken")
	assert.ErrorContains(t, err, "decode deck broken")
}
