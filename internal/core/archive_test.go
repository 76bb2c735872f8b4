package core

import (
	"context"
	"testing"
	"time"

	"deckcore/internal/blob"
	"deckcore/internal/infra/persistence/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	archive := blob.NewMemory()
	svc := newService(t, WithArchive(archive))
	_, err := svc.AddCards(ctx, []Quantity{{Key: "bears", Count: 4}, {Key: "forest", Count: 2}})
	require.NoError(t, err)
	_, err = svc.AddCategory(ctx, creatures, nil)
	require.NoError(t, err)

	info, err := svc.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, blob.ExportKey("alpha", fixed), info.Key)
	assert.Equal(t, "application/json", info.ContentType)

	exports, err := svc.Exports(ctx)
	require.NoError(t, err)
	require.Len(t, exports, 1)

	store := memory.NewStore()
	other := newService(t, WithArchive(archive), WithStore(store), WithDeckID("beta"))
	require.NoError(t, other.Import(ctx, info.Key))
	assert.Equal(t, 4, other.Deck().Count("bears"))
	assert.Equal(t, 1, other.Deck().NumCategories())

	snap, err := store.Load(ctx, "beta")
	require.NoError(t, err, "imports are persisted under the importing deck id")
	assert.Equal(t, "beta", snap.DeckID)
	assert.Equal(t, 6, snap.Total())

	_, err = svc.ShareExport(ctx, info.Key, time.Minute)
	assert.ErrorIs(t, err, blob.ErrUnsupported)
}

func TestShareExportSigned(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, WithArchive(blob.NewFakeS3()))
	_, err := svc.AddCard(ctx, "bolt", 4)
	require.NoError(t, err)
	info, err := svc.Export(ctx)
	require.NoError(t, err)

	url, err := svc.ShareExport(ctx, info.Key, 10*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, info.Key)
	assert.Contains(t, url, "X-Amz-Expires=600")
}

func TestArchiveDisabled(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)
	_, err := svc.Export(ctx)
	assert.ErrorIs(t, err, ErrArchiveDisabled)
	assert.ErrorIs(t, svc.Import(ctx, "decks/alpha/1.json"), ErrArchiveDisabled)
	_, err = svc.Exports(ctx)
	assert.ErrorIs(t, err, ErrArchiveDisabled)
	_, err = svc.ShareExport(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrArchiveDisabled)
}

func TestImportMissingKey(t *testing.T) {
	svc := newService(t, WithArchive(blob.NewMemory()))
	err := svc.Import(context.Background(), "decks/alpha/404.json")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}
