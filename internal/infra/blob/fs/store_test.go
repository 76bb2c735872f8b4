package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"deckcore/internal/blob/blobtest"
	"deckcore/internal/blob/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestStoreContract(t *testing.T) {
	blobtest.Run(t, func(t *testing.T) core.Store { return newStore(t) })
}

func TestRejectsUnsafeKeys(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for _, key := range []string{"", "  ", "/abs", "../escape", "a/../../b", "x.meta"} {
		_, err := s.Put(ctx, key, strings.NewReader("x"), core.PutOptions{})
		assert.ErrorIs(t, err, core.ErrInvalidKey, key)
	}
	_, err := s.Put(ctx, "dots..are/fine", strings.NewReader("x"), core.PutOptions{})
	assert.NoError(t, err)
}

func TestLayoutAndPresign(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_, err := s.Put(ctx, "decks/alpha/1.json", strings.NewReader("{}"), core.PutOptions{ContentType: "application/json"})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(s.Root(), "decks", "alpha", "1.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(s.Root(), "decks", "alpha", "1.json.meta"))
	require.NoError(t, err)

	url, err := s.PresignURL(ctx, "decks/alpha/1.json", core.SignedURLOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"))
	assert.True(t, strings.HasSuffix(url, "/decks/alpha/1.json"))

	_, err = s.PresignURL(ctx, "missing", core.SignedURLOptions{})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCorruptSidecar(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_, err := s.Put(ctx, "k", strings.NewReader("x"), core.PutOptions{})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "k.meta"), []byte("{"), 0o600))

	_, err = s.Head(ctx, "k")
	assert.ErrorContains(t, err, "decode")
	_, err = s.List(ctx, "")
	assert.ErrorContains(t, err, "read metadata for k")
}

func TestDefaultRoot(t *testing.T) {
	t.Chdir(t.TempDir())
	s, err := New("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRoot, s.Root())
	assert.Equal(t, core.DriverFilesystem, s.Driver())
}
