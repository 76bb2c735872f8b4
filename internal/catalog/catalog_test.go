package catalog

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"deckcore/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
cards:
  - key: bolt
    name: Lightning Bolt
    attributes:
      Type: [Instant]
      cmc: ["1"]
  - key: forest
    attributes:
      type: [Land]
`

func writeCatalog(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "cards.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeCatalog(t, t.TempDir(), sample)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, c.Path())
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"bolt", "forest"}, c.Keys())

	bolt, ok := c.Lookup("bolt")
	require.True(t, ok)
	assert.Equal(t, "Lightning Bolt", bolt.Name)
	assert.Equal(t, []string{"Instant"}, bolt.Values("type"), "attribute names are normalised")

	forest, ok := c.Lookup("forest")
	require.True(t, ok)
	assert.Equal(t, "forest", forest.Name, "name defaults to key")

	_, ok = c.Lookup("island")
	assert.False(t, ok)
}

func TestLookupReturnsCopies(t *testing.T) {
	c := New(domain.NewCard("bolt", "Bolt", map[string][]string{"type": {"Instant"}}))
	card, _ := c.Lookup("bolt")
	card.Attributes["type"][0] = "Sorcery"
	again, _ := c.Lookup("bolt")
	assert.Equal(t, []string{"Instant"}, again.Values("type"))
}

func TestParseErrors(t *testing.T) {
	cases := map[string]struct {
		body string
		want string
	}{
		"malformed":   {"cards: [", "decode catalog"},
		"missing key": {"cards:\n  - name: Nameless\n", "key is required"},
		"duplicate":   {"cards:\n  - key: a\n  - key: a\n", `"a": duplicate key`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.body))
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalog(t, dir, sample)
	c, err := Load(path)
	require.NoError(t, err)

	writeCatalog(t, dir, "cards:\n  - key: island\n")
	require.NoError(t, c.Reload())
	assert.Equal(t, []string{"island"}, c.Keys())

	writeCatalog(t, dir, "cards: [")
	require.Error(t, c.Reload())
	assert.Equal(t, []string{"island"}, c.Keys(), "failed reloads keep the previous cards")

	require.NoError(t, os.Remove(path))
	assert.ErrorContains(t, c.Reload(), "read catalog")

	_, err = Load(path)
	assert.Error(t, err)
}

func TestInMemoryCatalogHasNoPath(t *testing.T) {
	c := New()
	assert.ErrorIs(t, c.Reload(), ErrNoPath)
	assert.ErrorIs(t, c.Watch(context.Background(), nil), ErrNoPath)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeCatalog(t, dir, sample)
	c, err := Load(path)
	require.NoError(t, err)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx, logger) }()

	// the watcher may not be registered yet, so keep rewriting until seen
	attempt := 0
	require.Eventually(t, func() bool {
		attempt++
		body := fmt.Sprintf("cards:\n  - key: island\n    name: Island %d\n", attempt)
		_ = os.WriteFile(path, []byte(body), 0o600)
		_, ok := c.Lookup("island")
		return ok
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
