// Package hand samples opening hands from a deck: a shuffled pool with one
// slot per copy, split into the visible hand and the remainder.
package hand

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"deckcore/pkg/domain"

	mapset "github.com/deckarep/golang-set/v2"
)

// Source is the one deck capability the hand reads. Expand must return a
// consistent copy taken under the deck's own lock.
type Source interface {
	Expand() []domain.Card
}

// Hand is safe for concurrent use. It never mutates its Source.
type Hand struct {
	mu        sync.Mutex
	source    Source
	rng       *rand.Rand
	pool      []domain.Card
	drawn     int
	exclusion mapset.Set[string]
}

// Option configures a Hand.
type Option func(*Hand)

// WithSeed makes shuffles reproducible.
func WithSeed(seed uint64) Option {
	return func(h *Hand) {
		h.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// New constructs an empty hand over source.
func New(source Source, opts ...Option) *Hand {
	h := &Hand{
		source:    source,
		exclusion: mapset.NewThreadUnsafeSet[string](),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.rng == nil {
		var seed [16]byte
		if _, err := crand.Read(seed[:]); err != nil {
			panic(err)
		}
		h.rng = rand.New(rand.NewPCG(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:])))
	}
	return h
}

// Refresh rebuilds the pool from the source minus excluded cards and empties
// the hand.
func (h *Hand) Refresh() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refresh()
}

func (h *Hand) refresh() {
	h.pool = h.pool[:0]
	for _, card := range h.source.Expand() {
		if !h.exclusion.Contains(card.Key) {
			h.pool = append(h.pool, card)
		}
	}
	h.drawn = 0
}

func (h *Hand) shuffle() {
	h.rng.Shuffle(len(h.pool), func(i, j int) {
		h.pool[i], h.pool[j] = h.pool[j], h.pool[i]
	})
}

// NewHand refreshes, shuffles and shows the first n cards of the pool, or the
// whole pool when it holds fewer than n.
func (h *Hand) NewHand(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refresh()
	h.shuffle()
	h.drawn = min(max(n, 0), len(h.pool))
}

// Mulligan reshuffles the entire pool and shows one card fewer. It does
// nothing on an empty hand.
func (h *Hand) Mulligan() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.drawn == 0 {
		return
	}
	h.shuffle()
	h.drawn--
}

// Draw shows one more card. It returns domain.ErrPoolExhausted and leaves the
// hand unchanged when every pool card is already visible.
func (h *Hand) Draw() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.drawn >= len(h.pool) {
		return domain.ErrPoolExhausted
	}
	h.drawn++
	return nil
}

// Exclude keeps key out of the pool from the next Refresh or NewHand on.
func (h *Hand) Exclude(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exclusion.Add(key)
}

// Include reverses Exclude.
func (h *Hand) Include(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.exclusion.Contains(key) {
		return false
	}
	h.exclusion.Remove(key)
	return true
}

// Excluded returns the excluded keys in no particular order.
func (h *Hand) Excluded() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exclusion.ToSlice()
}

// Size returns the number of visible cards.
func (h *Hand) Size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return min(h.drawn, len(h.pool))
}

// Drawn is an alias of Size kept for callers that think in draw counts.
func (h *Hand) Drawn() int { return h.Size() }

// PoolSize returns the number of cards in the pool.
func (h *Hand) PoolSize() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pool)
}

// Cards returns the visible hand in draw order.
func (h *Hand) Cards() []domain.Card {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Card(nil), h.pool[:h.drawn]...)
}

// Remaining returns the undrawn part of the pool in draw order.
func (h *Hand) Remaining() []domain.Card {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Card(nil), h.pool[h.drawn:]...)
}

// Simulate deals trials independent hands of n cards and returns the fraction
// for which keep reports true. The visible hand is left as dealt by the last
// trial.
func (h *Hand) Simulate(n, trials int, keep func([]domain.Card) bool) float64 {
	if trials < 1 || keep == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refresh()
	hits := 0
	for range trials {
		h.shuffle()
		h.drawn = min(max(n, 0), len(h.pool))
		if keep(h.pool[:h.drawn]) {
			hits++
		}
	}
	return float64(hits) / float64(trials)
}
