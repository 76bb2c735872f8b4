// Package core binds a deck, its hand sampler, a card source and optional
// persistence and archive backends behind one observable API.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"deckcore/internal/blob"
	"deckcore/internal/deck"
	"deckcore/internal/hand"
	"deckcore/pkg/domain"

	"github.com/google/uuid"
)

// ErrArchiveDisabled is returned by archive operations when no archive store
// was configured.
var ErrArchiveDisabled = errors.New("archive is not configured")

// Service is safe for concurrent use. Mutations are serialised so persisted
// snapshots are written in mutation order.
type Service struct {
	mu      sync.Mutex
	opts    serviceOptions
	source  domain.CardSource
	deck    *deck.Deck
	hand    *hand.Hand
	archive *blob.Archive
	changes atomic.Int64
}

// NewService constructs a service over an empty deck. Cards are resolved
// through source.
func NewService(source domain.CardSource, opts ...Option) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &Service{opts: o, source: source}
	s.deck = deck.New(s.deckOptions()...)
	s.deck.OnChange(func(changes []domain.Change) { s.changes.Add(int64(len(changes))) })

	var handOpts []hand.Option
	if o.seed != nil {
		handOpts = append(handOpts, hand.WithSeed(*o.seed))
	}
	s.hand = hand.New(s.deck, handOpts...)
	if o.archive != nil {
		s.archive = blob.NewArchive(o.archive)
	}
	return s
}

func (s *Service) deckOptions() []deck.Option {
	opts := []deck.Option{deck.WithClock(s.opts.clock.Now)}
	if s.opts.invariants {
		opts = append(opts, deck.WithInvariantChecks(deck.NewInvariantEngine()))
	}
	return opts
}

// DeckID returns the identifier snapshots are saved under.
func (s *Service) DeckID() string { return s.opts.deckID }

// Deck exposes the deck for reads. Mutating it directly bypasses persistence
// and the audit trail.
func (s *Service) Deck() *deck.Deck { return s.deck }

// Hand exposes the sampler for reads.
func (s *Service) Hand() *hand.Hand { return s.hand }

// Store returns the configured snapshot store, or nil.
func (s *Service) Store() domain.SnapshotStore { return s.opts.store }

// run executes fn as one observed operation: a span, a metrics observation,
// an audit entry and a log line. Mutating operations that changed the deck
// are persisted before run returns.
func (s *Service) run(ctx context.Context, op, key string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	ctx, span := s.opts.tracer.Start(ctx, op)
	started := time.Now()
	s.changes.Store(0)

	err := fn(ctx)
	changes := int(s.changes.Load())
	meta := operations[op]
	if err == nil && meta.mutates && changes > 0 {
		err = s.persist(ctx)
	}

	duration := time.Since(started)
	span.End(err)
	s.opts.metrics.Observe(ctx, op, err == nil, duration)

	entry := AuditEntry{
		ID:        id,
		Operation: op,
		Kind:      meta.kind,
		Action:    meta.action,
		DeckID:    s.opts.deckID,
		Key:       key,
		Changes:   changes,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.opts.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		s.opts.logger.Warn("deck operation failed", "op", op, "key", key, "id", id, "error", err)
	} else {
		s.opts.logger.Debug("deck operation", "op", op, "key", key, "id", id, "changes", changes, "duration", duration)
	}
	s.opts.audit.Record(ctx, entry)
	return err
}

func (s *Service) persist(ctx context.Context) error {
	if s.opts.store == nil {
		return nil
	}
	if err := s.opts.store.Save(ctx, s.snapshot()); err != nil {
		return fmt.Errorf("persist deck %s: %w", s.opts.deckID, err)
	}
	return nil
}

func (s *Service) snapshot() domain.Snapshot {
	snap := s.deck.Export(s.opts.deckID)
	snap.SavedAt = s.opts.clock.Now()
	return snap
}

// resolve finds key in the deck first, then in the card source.
func (s *Service) resolve(op, key string) (domain.Card, error) {
	if e, ok := s.deck.Entry(key); ok {
		return e.Card, nil
	}
	if s.source != nil {
		if card, ok := s.source.Lookup(key); ok {
			return card, nil
		}
	}
	return domain.Card{}, &domain.CardError{Op: op, Key: key, Err: domain.ErrCardNotFound}
}

// AddCard adds n copies of the card with key. n < 1 is a no-op that reports
// false.
func (s *Service) AddCard(ctx context.Context, key string, n int) (bool, error) {
	var added bool
	err := s.run(ctx, OpAddCard, key, func(context.Context) error {
		card, err := s.resolve(OpAddCard, key)
		if err != nil {
			return err
		}
		added = s.deck.Add(card, n)
		return nil
	})
	return added, err
}

// RemoveCard removes up to n copies and returns how many were removed.
func (s *Service) RemoveCard(ctx context.Context, key string, n int) (int, error) {
	var removed int
	err := s.run(ctx, OpRemoveCard, key, func(context.Context) error {
		removed = s.deck.Remove(key, n)
		return nil
	})
	return removed, err
}

// SetCard drives the count of key to n (clamped at 0).
func (s *Service) SetCard(ctx context.Context, key string, n int) (bool, error) {
	var changed bool
	err := s.run(ctx, OpSetCard, key, func(context.Context) error {
		if n <= 0 && !s.deck.Contains(key) {
			return nil
		}
		card, err := s.resolve(OpSetCard, key)
		if err != nil {
			return err
		}
		changed = s.deck.Set(card, n)
		return nil
	})
	return changed, err
}

// Quantity names a card and a number of copies.
type Quantity struct {
	Key   string `json:"key" validate:"required"`
	Count int    `json:"count" validate:"gte=1"`
}

// AddCards resolves every key before adding anything, so an unknown key
// leaves the deck untouched. It returns the keys whose count changed.
func (s *Service) AddCards(ctx context.Context, items []Quantity) ([]string, error) {
	var changed []string
	err := s.run(ctx, OpAddCards, "", func(context.Context) error {
		stacks := make([]deck.Stack, 0, len(items))
		for _, q := range items {
			card, err := s.resolve(OpAddCards, q.Key)
			if err != nil {
				return err
			}
			stacks = append(stacks, deck.Stack{Card: card, Count: q.Count})
		}
		changed = s.deck.AddAll(stacks)
		return nil
	})
	return changed, err
}

// RemoveCards removes each quantity in order and reports copies removed per
// key.
func (s *Service) RemoveCards(ctx context.Context, items []Quantity) (map[string]int, error) {
	var removed map[string]int
	err := s.run(ctx, OpRemoveCards, "", func(context.Context) error {
		stacks := make([]deck.Stack, 0, len(items))
		for _, q := range items {
			stacks = append(stacks, deck.Stack{Card: domain.Card{Key: q.Key}, Count: q.Count})
		}
		removed = s.deck.RemoveAll(stacks)
		return nil
	})
	return removed, err
}

// Clear empties the deck, keeping categories.
func (s *Service) Clear(ctx context.Context) error {
	return s.run(ctx, OpClear, "", func(context.Context) error {
		s.deck.Clear()
		return nil
	})
}

// SortOrder selects a master ordering for Sort.
type SortOrder string

const (
	SortByName      SortOrder = "name"
	SortByDate      SortOrder = "date"
	SortByAttribute SortOrder = "attribute"
)

// Sort stably reorders the master list. attr is required for
// SortByAttribute and ignored otherwise.
func (s *Service) Sort(ctx context.Context, by SortOrder, attr string) error {
	return s.run(ctx, OpSort, string(by), func(context.Context) error {
		var less func(a, b deck.Entry) bool
		switch by {
		case SortByName:
			less = deck.ByName
		case SortByDate:
			less = deck.ByDateAdded
		case SortByAttribute:
			if attr == "" {
				return errors.New("sort by attribute needs an attribute name")
			}
			less = deck.ByAttribute(attr)
		default:
			return fmt.Errorf("unknown sort order %q", by)
		}
		s.deck.Sort(less)
		return nil
	})
}

// AddCategory registers spec at the next free rank, or at *rank when rank is
// not nil.
func (s *Service) AddCategory(ctx context.Context, spec domain.CategorySpec, rank *int) (deck.CategoryView, error) {
	var view deck.CategoryView
	err := s.run(ctx, OpAddCategory, spec.Name, func(context.Context) error {
		var err error
		if rank != nil {
			view, err = s.deck.AddCategoryAt(spec, *rank)
		} else {
			view, err = s.deck.AddCategory(spec)
		}
		return err
	})
	return view, err
}

// UpdateCategory replaces the definition of name and returns the prior spec.
func (s *Service) UpdateCategory(ctx context.Context, name string, spec domain.CategorySpec) (domain.CategorySpec, error) {
	var prior domain.CategorySpec
	err := s.run(ctx, OpUpdateCategory, name, func(context.Context) error {
		var err error
		prior, err = s.deck.UpdateCategory(name, spec)
		return err
	})
	return prior, err
}

// RemoveCategory unregisters name.
func (s *Service) RemoveCategory(ctx context.Context, name string) (bool, error) {
	var removed bool
	err := s.run(ctx, OpRemoveCategory, name, func(context.Context) error {
		removed = s.deck.RemoveCategory(name)
		return nil
	})
	return removed, err
}

// SwapCategoryRanks moves name to target, swapping with the occupant.
func (s *Service) SwapCategoryRanks(ctx context.Context, name string, target int) error {
	return s.run(ctx, OpSwapCategoryRanks, name, func(context.Context) error {
		return s.deck.SwapCategoryRanks(name, target)
	})
}

// Include forces key into category name.
func (s *Service) Include(ctx context.Context, name, key string) (bool, error) {
	var changed bool
	err := s.run(ctx, OpInclude, name+"/"+key, func(context.Context) error {
		var err error
		changed, err = s.deck.Include(name, key)
		return err
	})
	return changed, err
}

// Exclude forces key out of category name.
func (s *Service) Exclude(ctx context.Context, name, key string) (bool, error) {
	var changed bool
	err := s.run(ctx, OpExclude, name+"/"+key, func(context.Context) error {
		var err error
		changed, err = s.deck.Exclude(name, key)
		return err
	})
	return changed, err
}

// NewHand deals a fresh hand of n cards and returns it.
func (s *Service) NewHand(ctx context.Context, n int) ([]domain.Card, error) {
	var cards []domain.Card
	err := s.run(ctx, OpNewHand, "", func(context.Context) error {
		s.hand.NewHand(n)
		cards = s.hand.Cards()
		return nil
	})
	return cards, err
}

// Mulligan reshuffles and shows one card fewer.
func (s *Service) Mulligan(ctx context.Context) ([]domain.Card, error) {
	var cards []domain.Card
	err := s.run(ctx, OpMulligan, "", func(context.Context) error {
		s.hand.Mulligan()
		cards = s.hand.Cards()
		return nil
	})
	return cards, err
}

// Draw shows one more card. It fails with domain.ErrPoolExhausted when the
// pool is spent.
func (s *Service) Draw(ctx context.Context) ([]domain.Card, error) {
	var cards []domain.Card
	err := s.run(ctx, OpDraw, "", func(context.Context) error {
		if err := s.hand.Draw(); err != nil {
			return err
		}
		cards = s.hand.Cards()
		return nil
	})
	return cards, err
}

// HandExclude keeps key out of future hands.
func (s *Service) HandExclude(key string) bool { return s.hand.Exclude(key) }

// HandInclude lifts a HandExclude.
func (s *Service) HandInclude(key string) bool { return s.hand.Include(key) }

// Save writes the current snapshot to the store.
func (s *Service) Save(ctx context.Context) error {
	return s.run(ctx, OpSave, s.opts.deckID, func(ctx context.Context) error {
		if s.opts.store == nil {
			return errors.New("no snapshot store configured")
		}
		return s.persist(ctx)
	})
}

// Load replaces the deck with the stored snapshot. A deck that was never
// saved yields domain.ErrSnapshotNotFound.
func (s *Service) Load(ctx context.Context) error {
	return s.run(ctx, OpLoad, s.opts.deckID, func(ctx context.Context) error {
		if s.opts.store == nil {
			return errors.New("no snapshot store configured")
		}
		snap, err := s.opts.store.Load(ctx, s.opts.deckID)
		if err != nil {
			return err
		}
		return s.restore(snap)
	})
}

// Forget deletes the stored snapshot.
func (s *Service) Forget(ctx context.Context) (bool, error) {
	var existed bool
	err := s.run(ctx, OpDelete, s.opts.deckID, func(ctx context.Context) error {
		if s.opts.store == nil {
			return errors.New("no snapshot store configured")
		}
		var err error
		existed, err = s.opts.store.Delete(ctx, s.opts.deckID)
		return err
	})
	return existed, err
}

func (s *Service) restore(snap domain.Snapshot) error {
	restored, err := deck.Restore(snap, s.source, s.deckOptions()...)
	if err != nil {
		return err
	}
	s.deck.Replace(restored)
	s.hand.Refresh()
	return nil
}

// Export archives the current snapshot and returns its blob info.
func (s *Service) Export(ctx context.Context) (blob.Info, error) {
	var info blob.Info
	err := s.run(ctx, OpExport, s.opts.deckID, func(ctx context.Context) error {
		if s.archive == nil {
			return ErrArchiveDisabled
		}
		snap := s.snapshot()
		var err error
		info, err = s.archive.Put(ctx, snap, snap.SavedAt)
		return err
	})
	return info, err
}

// Import replaces the deck with the archived snapshot at key. The snapshot
// may belong to another deck; it is persisted under this service's deck ID.
func (s *Service) Import(ctx context.Context, key string) error {
	return s.run(ctx, OpImport, key, func(ctx context.Context) error {
		if s.archive == nil {
			return ErrArchiveDisabled
		}
		snap, err := s.archive.Get(ctx, key)
		if err != nil {
			return err
		}
		return s.restore(snap)
	})
}

// Exports lists archived snapshots of this deck, oldest first.
func (s *Service) Exports(ctx context.Context) ([]blob.Info, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	return s.archive.List(ctx, s.opts.deckID)
}

// ShareExport returns a time-limited URL for an archived snapshot.
func (s *Service) ShareExport(ctx context.Context, key string, ttl time.Duration) (string, error) {
	var url string
	err := s.run(ctx, OpShareExport, key, func(ctx context.Context) error {
		if s.archive == nil {
			return ErrArchiveDisabled
		}
		var err error
		url, err = s.archive.Share(ctx, key, ttl)
		return err
	})
	return url, err
}

// Audit evaluates the invariant rules over the current deck.
func (s *Service) Audit(ctx context.Context) (domain.Result, error) {
	var res domain.Result
	err := s.run(ctx, OpAudit, s.opts.deckID, func(ctx context.Context) error {
		var err error
		res, err = s.deck.Audit(ctx)
		if err == nil && res.HasBlocking() {
			s.opts.logger.Error("deck invariants violated", "violations", len(res.Violations))
		}
		return err
	})
	return res, err
}
