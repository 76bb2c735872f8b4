package persistence

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"deckcore/internal/config"
	"deckcore/internal/persistence/persistencetest"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDrivers(t *testing.T) {
	mr := miniredis.RunT(t)
	cases := []struct {
		name string
		cfg  config.Persistence
	}{
		{"memory", config.Persistence{}},
		{"sqlite", config.Persistence{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "decks.db")}},
		{"badger", config.Persistence{Driver: config.DriverBadger, Badger: config.Badger{InMemory: true}}},
		{"redis", config.Persistence{Driver: config.DriverRedis, RedisAddr: mr.Addr()}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store, err := Open(ctx, tc.cfg, slog.New(slog.DiscardHandler))
			require.NoError(t, err)
			defer func() { _ = store.Close() }()
			assert.Equal(t, tc.name, store.Driver())

			require.NoError(t, store.Save(ctx, persistencetest.Snapshot("alpha")))
			got, err := store.Load(ctx, "alpha")
			require.NoError(t, err)
			assert.Equal(t, 21, got.Total())
		})
	}
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()
	_, err := Open(ctx, config.Persistence{Driver: "mongo"}, nil)
	assert.ErrorContains(t, err, `unknown persistence driver "mongo"`)

	_, err = Open(ctx, config.Persistence{Driver: config.DriverRedis}, nil)
	assert.ErrorContains(t, err, "open redis store")

	_, err = Open(ctx, config.Persistence{Driver: config.DriverBadger}, nil)
	assert.ErrorContains(t, err, "path is required")
}
