// Package deck implements the categorized multiset: an ordered master list of
// card entries plus ranked category views whose filtrates and per-entry
// membership sets are kept in lock-step with every mutation.
package deck

import (
	"context"
	"sync"
	"time"

	"deckcore/pkg/domain"

	mapset "github.com/deckarep/golang-set/v2"
)

// Entry and CategoryView are the read models handed out by a Deck.
type (
	Entry        = domain.Entry
	CategoryView = domain.CategoryView
)

// Listener receives the changes produced by one mutating call, after the deck
// lock has been released.
type Listener func(changes []domain.Change)

type entry struct {
	card       domain.Card
	count      int
	dateAdded  time.Time
	categories mapset.Set[string]
}

// Deck is safe for concurrent use. Every public call holds the deck lock for
// its full duration so no caller observes a count without its filtrates.
type Deck struct {
	mu sync.RWMutex

	entries    []*entry
	index      map[string]int
	categories map[string]*category
	ranks      []string
	total      int

	now       func() time.Time
	engine    *domain.RulesEngine
	listeners []Listener
	pending   []domain.Change
}

// Option configures a Deck.
type Option func(*Deck)

// WithClock overrides the clock used for entry dates when Add is called
// without an explicit date.
func WithClock(now func() time.Time) Option {
	return func(d *Deck) {
		if now != nil {
			d.now = now
		}
	}
}

// WithInvariantChecks evaluates engine after every mutation and panics when it
// reports a blocking violation.
func WithInvariantChecks(engine *domain.RulesEngine) Option {
	return func(d *Deck) { d.engine = engine }
}

// WithListener registers a change listener.
func WithListener(l Listener) Option {
	return func(d *Deck) {
		if l != nil {
			d.listeners = append(d.listeners, l)
		}
	}
}

// New constructs an empty deck.
func New(opts ...Option) *Deck {
	d := &Deck{
		index:      make(map[string]int),
		categories: make(map[string]*category),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnChange registers an additional listener.
func (d *Deck) OnChange(l Listener) {
	if l == nil {
		return
	}
	d.mu.Lock()
	d.listeners = append(d.listeners, l)
	d.mu.Unlock()
}

// mutate runs fn under the write lock, checks invariants over the changes it
// recorded and notifies listeners once the lock is released. A panic in fn or
// in the invariant check releases the lock before it propagates.
func (d *Deck) mutate(fn func()) {
	changes, listeners := d.apply(fn)
	if len(changes) == 0 {
		return
	}
	for _, l := range listeners {
		l(changes)
	}
}

func (d *Deck) apply(fn func()) ([]domain.Change, []Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = nil
	fn()
	changes := d.pending
	d.pending = nil
	if len(changes) > 0 && d.engine != nil {
		d.mustHold(changes)
	}
	return changes, append([]Listener(nil), d.listeners...)
}

func (d *Deck) mustHold(changes []domain.Change) {
	res, err := d.engine.Evaluate(context.Background(), stateView{d}, changes)
	if err != nil {
		panic(err)
	}
	if res.HasBlocking() {
		panic(domain.RuleViolationError{Result: res})
	}
}

func (d *Deck) record(change domain.Change) {
	d.pending = append(d.pending, change)
}

// Add inserts n copies of card. A new entry is dated with date[0] when given
// and with the deck clock otherwise; existing entries keep their date.
// It reports false and does nothing when n < 1.
func (d *Deck) Add(card domain.Card, n int, date ...time.Time) bool {
	if n < 1 {
		return false
	}
	d.mutate(func() {
		at := d.now()
		if len(date) > 0 {
			at = date[0]
		}
		d.add(card, n, at)
	})
	return true
}

func (d *Deck) add(card domain.Card, n int, at time.Time) {
	e, ok := d.lookup(card.Key)
	before := 0
	if !ok {
		e = d.insert(card, at)
	} else {
		before = e.count
	}
	e.count += n
	d.total += n
	d.recordCount(card.Key, before, e.count)
}

// insert appends a zero-count entry and registers it with every category that
// includes it. New entries are always last in master order, so each filtrate
// gains the key at its tail.
func (d *Deck) insert(card domain.Card, at time.Time) *entry {
	e := &entry{
		card:       card.Clone(),
		dateAdded:  at,
		categories: mapset.NewThreadUnsafeSet[string](),
	}
	d.index[card.Key] = len(d.entries)
	d.entries = append(d.entries, e)
	for _, name := range d.ranks {
		c := d.categories[name]
		if c.includes(e.card) {
			c.filtrate = append(c.filtrate, card.Key)
			e.categories.Add(name)
		}
	}
	return e
}

// Remove takes up to n copies of key out of the deck and returns how many were
// removed. Removing the last copy deletes the entry and every override that
// names it.
func (d *Deck) Remove(key string, n int) int {
	if n < 1 {
		return 0
	}
	removed := 0
	d.mutate(func() {
		removed = d.remove(key, n)
	})
	return removed
}

func (d *Deck) remove(key string, n int) int {
	e, ok := d.lookup(key)
	if !ok {
		return 0
	}
	before := e.count
	removed := min(n, e.count)
	e.count -= removed
	d.total -= removed
	if e.count == 0 {
		d.delete(key)
	}
	d.recordCount(key, before, e.count)
	return removed
}

// delete drops the entry for key from the master list, every filtrate and
// every override set.
func (d *Deck) delete(key string) {
	pos := d.index[key]
	e := d.entries[pos]
	d.entries = append(d.entries[:pos], d.entries[pos+1:]...)
	delete(d.index, key)
	for i := pos; i < len(d.entries); i++ {
		d.index[d.entries[i].card.Key] = i
	}
	for _, name := range e.categories.ToSlice() {
		d.categories[name].dropFromFiltrate(key)
	}
	for _, c := range d.categories {
		c.whitelist.Remove(key)
		c.blacklist.Remove(key)
	}
}

// Set moves card to exactly n copies (negative n is treated as 0) in a single
// transition. It reports whether the count changed.
func (d *Deck) Set(card domain.Card, n int) bool {
	n = max(n, 0)
	changed := false
	d.mutate(func() {
		current := 0
		if e, ok := d.lookup(card.Key); ok {
			current = e.count
		}
		switch {
		case n > current:
			d.add(card, n-current, d.now())
		case n < current:
			d.remove(card.Key, current-n)
		default:
			return
		}
		changed = true
	})
	return changed
}

// Clear removes every entry, keeping the registered categories.
func (d *Deck) Clear() {
	d.mutate(func() {
		for len(d.entries) > 0 {
			last := d.entries[len(d.entries)-1]
			d.remove(last.card.Key, last.count)
		}
	})
}

func (d *Deck) recordCount(key string, before, after int) {
	action := domain.ActionUpdate
	switch {
	case before == after:
		return
	case before == 0:
		action = domain.ActionCreate
	case after == 0:
		action = domain.ActionDelete
	}
	d.record(domain.Change{Kind: domain.ChangeEntry, Action: action, Key: key, Before: before, After: after})
}

func (d *Deck) lookup(key string) (*entry, bool) {
	pos, ok := d.index[key]
	if !ok {
		return nil, false
	}
	return d.entries[pos], true
}

// Contains reports whether at least one copy of key is in the deck.
func (d *Deck) Contains(key string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.index[key]
	return ok
}

// Count returns the number of copies of key, zero when absent.
func (d *Deck) Count(key string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if e, ok := d.lookup(key); ok {
		return e.count
	}
	return 0
}

// DateAdded returns the date the entry for key was first created.
func (d *Deck) DateAdded(key string) (time.Time, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if e, ok := d.lookup(key); ok {
		return e.dateAdded, true
	}
	return time.Time{}, false
}

// Total returns the number of copies across all entries.
func (d *Deck) Total() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.total
}

// Size returns the number of distinct entries.
func (d *Deck) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// Entries returns the entries in master order.
func (d *Deck) Entries() []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.entryViews()
}

// Entry returns the entry for key.
func (d *Deck) Entry(key string) (Entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.lookup(key)
	if !ok {
		return Entry{}, false
	}
	return d.entryView(e), true
}

// Expand returns one card per copy, in master order. Every card is a copy
// the caller may modify.
func (d *Deck) Expand() []domain.Card {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.Card, 0, d.total)
	for _, e := range d.entries {
		for range e.count {
			out = append(out, e.card.Clone())
		}
	}
	return out
}

// CategoriesOf returns the names of the categories that include key, in rank
// order. It returns nil when key is not in the deck.
func (d *Deck) CategoriesOf(key string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.lookup(key)
	if !ok {
		return nil
	}
	return d.memberships(e)
}

// Histogram counts copies per value of attr. Cards without the attribute are
// not counted.
func (d *Deck) Histogram(attr string) map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]int)
	for _, e := range d.entries {
		for _, v := range e.card.Values(attr) {
			out[v] += e.count
		}
	}
	return out
}

func (d *Deck) entryViews() []Entry {
	out := make([]Entry, len(d.entries))
	for i, e := range d.entries {
		out[i] = d.entryView(e)
	}
	return out
}

func (d *Deck) entryView(e *entry) Entry {
	return Entry{
		Card:       e.card.Clone(),
		Count:      e.count,
		DateAdded:  e.dateAdded,
		Categories: d.memberships(e),
	}
}

func (d *Deck) memberships(e *entry) []string {
	out := make([]string, 0, e.categories.Cardinality())
	for _, name := range d.ranks {
		if e.categories.Contains(name) {
			out = append(out, name)
		}
	}
	return out
}
