// Package blobtest holds the behaviour every blob store driver must share.
package blobtest

import (
	"context"
	"io"
	"strings"
	"testing"

	"deckcore/internal/blob/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises open() against the core.Store contract. Each subtest gets a
// fresh store.
func Run(t *testing.T, open func(t *testing.T) core.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("put get head", func(t *testing.T) {
		store := open(t)
		info, err := store.Put(ctx, "decks/alpha/1.json", strings.NewReader(`{"deck_id":"alpha"}`), core.PutOptions{
			ContentType: "application/json",
			Metadata:    map[string]string{"deck": "alpha"},
		})
		require.NoError(t, err)
		assert.Equal(t, "decks/alpha/1.json", info.Key)
		assert.Equal(t, int64(19), info.Size)
		assert.NotEmpty(t, info.ETag)

		got, rc, err := store.Get(ctx, "decks/alpha/1.json")
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, rc.Close())
		require.NoError(t, err)
		assert.Equal(t, `{"deck_id":"alpha"}`, string(body))
		assert.Equal(t, "application/json", got.ContentType)
		assert.Equal(t, "alpha", got.Metadata["deck"])

		head, err := store.Head(ctx, "decks/alpha/1.json")
		require.NoError(t, err)
		assert.Equal(t, info.Size, head.Size)
		assert.Equal(t, info.ETag, head.ETag)
	})

	t.Run("create only", func(t *testing.T) {
		store := open(t)
		_, err := store.Put(ctx, "k", strings.NewReader("one"), core.PutOptions{})
		require.NoError(t, err)
		_, err = store.Put(ctx, "k", strings.NewReader("two"), core.PutOptions{})
		assert.ErrorIs(t, err, core.ErrExists)

		_, rc, err := store.Get(ctx, "k")
		require.NoError(t, err)
		defer func() { _ = rc.Close() }()
		body, _ := io.ReadAll(rc)
		assert.Equal(t, "one", string(body))
	})

	t.Run("missing", func(t *testing.T) {
		store := open(t)
		_, _, err := store.Get(ctx, "nope")
		assert.ErrorIs(t, err, core.ErrNotFound)
		_, err = store.Head(ctx, "nope")
		assert.ErrorIs(t, err, core.ErrNotFound)
		existed, err := store.Delete(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, existed)
	})

	t.Run("list and delete", func(t *testing.T) {
		store := open(t)
		for _, key := range []string{"decks/b/2.json", "decks/a/1.json", "decks/b/1.json", "other/x"} {
			_, err := store.Put(ctx, key, strings.NewReader(key), core.PutOptions{})
			require.NoError(t, err)
		}
		infos, err := store.List(ctx, "decks/")
		require.NoError(t, err)
		assert.Equal(t, []string{"decks/a/1.json", "decks/b/1.json", "decks/b/2.json"}, keys(infos))

		infos, err = store.List(ctx, "decks/b/")
		require.NoError(t, err)
		assert.Len(t, infos, 2)

		existed, err := store.Delete(ctx, "decks/b/1.json")
		require.NoError(t, err)
		assert.True(t, existed)
		infos, err = store.List(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"decks/a/1.json", "decks/b/2.json", "other/x"}, keys(infos))
	})

	t.Run("presign rejects writes", func(t *testing.T) {
		store := open(t)
		_, err := store.PresignURL(ctx, "k", core.SignedURLOptions{Method: "PUT"})
		assert.ErrorIs(t, err, core.ErrUnsupported)
	})
}

func keys(infos []core.Info) []string {
	out := make([]string, 0, len(infos))
	for _, info := range infos {
		out = append(out, info.Key)
	}
	return out
}
