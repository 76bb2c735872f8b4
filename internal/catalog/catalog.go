// Package catalog loads the card definitions a deck resolves keys against.
//
// A catalog file is YAML:
//
//	cards:
//	  - key: bolt
//	    name: Lightning Bolt
//	    attributes:
//	      type: [Instant]
//	      cmc: ["1"]
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"deckcore/pkg/domain"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

var _ domain.CardSource = (*Catalog)(nil)

// ErrNoPath is returned by Reload and Watch on catalogs not backed by a file.
var ErrNoPath = errors.New("catalog has no backing file")

type document struct {
	Cards []domain.Card `yaml:"cards"`
}

// Catalog is a concurrency-safe card lookup table.
type Catalog struct {
	mu    sync.RWMutex
	path  string
	cards map[string]domain.Card
	keys  []string
}

// New builds an in-memory catalog. Later cards replace earlier ones with the
// same key.
func New(cards ...domain.Card) *Catalog {
	c := &Catalog{}
	c.set(cards)
	return c
}

// Load reads the catalog file at path.
func Load(path string) (*Catalog, error) {
	c := &Catalog{path: path}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Parse decodes catalog YAML. Keys must be present and unique.
func Parse(data []byte) ([]domain.Card, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	seen := make(map[string]struct{}, len(doc.Cards))
	cards := make([]domain.Card, 0, len(doc.Cards))
	for i, card := range doc.Cards {
		if card.Key == "" {
			return nil, fmt.Errorf("catalog card %d: key is required", i)
		}
		if _, dup := seen[card.Key]; dup {
			return nil, fmt.Errorf("catalog card %q: duplicate key", card.Key)
		}
		seen[card.Key] = struct{}{}
		if card.Name == "" {
			card.Name = card.Key
		}
		cards = append(cards, domain.NewCard(card.Key, card.Name, card.Attributes))
	}
	return cards, nil
}

// Reload re-reads the backing file. On error the previous contents stay.
func (c *Catalog) Reload() error {
	if c.path == "" {
		return ErrNoPath
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read catalog %s: %w", c.path, err)
	}
	cards, err := Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", c.path, err)
	}
	c.set(cards)
	return nil
}

func (c *Catalog) set(cards []domain.Card) {
	next := make(map[string]domain.Card, len(cards))
	for _, card := range cards {
		next[card.Key] = card
	}
	keys := make([]string, 0, len(next))
	for k := range next {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cards = next
	c.keys = keys
}

// Lookup implements domain.CardSource.
func (c *Catalog) Lookup(key string) (domain.Card, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	card, ok := c.cards[key]
	if !ok {
		return domain.Card{}, false
	}
	return card.Clone(), true
}

// Keys returns the card keys in ascending order.
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.keys)
}

// Len returns the number of cards.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cards)
}

// Path returns the backing file, or "".
func (c *Catalog) Path() string { return c.path }

// Watch reloads the catalog whenever its file is written or replaced, until
// ctx is done. The parent directory is watched so editors that save through
// rename are picked up. Reload failures are logged and the old contents kept.
func (c *Catalog) Watch(ctx context.Context, logger *slog.Logger) error {
	if c.path == "" {
		return ErrNoPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create catalog watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	target := filepath.Clean(c.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := c.Reload(); err != nil {
				logger.Warn("catalog reload failed", "path", c.path, "error", err)
				continue
			}
			logger.Info("catalog reloaded", "path", c.path, "cards", c.Len())
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("catalog watcher error", "error", err)
		}
	}
}
