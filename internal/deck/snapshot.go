package deck

import (
	"fmt"

	"deckcore/pkg/domain"
)

// Export captures the deck in its persisted shape.
func (d *Deck) Export(deckID string) domain.Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	snap := domain.Snapshot{
		DeckID:     deckID,
		Entries:    make([]domain.EntryRecord, len(d.entries)),
		Categories: make([]domain.CategoryRecord, len(d.ranks)),
		SavedAt:    d.now(),
	}
	for i, e := range d.entries {
		snap.Entries[i] = domain.EntryRecord{CardKey: e.card.Key, Count: e.count, DateAdded: e.dateAdded}
	}
	for i, name := range d.ranks {
		spec := d.categories[name].spec()
		snap.Categories[i] = domain.CategoryRecord{
			Name:      spec.Name,
			Filter:    spec.Filter,
			Whitelist: spec.Whitelist,
			Blacklist: spec.Blacklist,
			Rank:      i,
			Color:     spec.Color,
		}
	}
	return snap
}

// Restore rebuilds a deck from snap by replaying Add for every entry with its
// original date, then AddCategory for every view in rank order. Cards are
// resolved through source.
func Restore(snap domain.Snapshot, source domain.CardSource, opts ...Option) (*Deck, error) {
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("restore deck: %w", err)
	}
	if source == nil {
		return nil, fmt.Errorf("restore deck %s: card source is required", snap.DeckID)
	}
	stacks := make([]Stack, 0, len(snap.Entries))
	for _, rec := range snap.Entries {
		card, ok := source.Lookup(rec.CardKey)
		if !ok {
			return nil, &domain.CardError{Op: "restore", Key: rec.CardKey, Err: domain.ErrCardNotFound}
		}
		stacks = append(stacks, Stack{Card: card, Count: rec.Count, Date: rec.DateAdded})
	}
	records := make([]domain.CategoryRecord, len(snap.Categories))
	for _, rec := range snap.Categories {
		records[rec.Rank] = rec
	}

	d := New(opts...)
	d.AddAll(stacks)
	for _, rec := range records {
		if _, err := d.AddCategory(rec.Spec()); err != nil {
			return nil, fmt.Errorf("restore deck %s: %w", snap.DeckID, err)
		}
	}
	return d, nil
}

// Replace swaps the whole state of d for that of other. Listeners and options
// of d are kept; other must not be used afterwards.
func (d *Deck) Replace(other *Deck) {
	other.mu.Lock()
	entries, index, categories, ranks, total := other.entries, other.index, other.categories, other.ranks, other.total
	other.mu.Unlock()
	d.mutate(func() {
		d.entries, d.index, d.categories, d.ranks, d.total = entries, index, categories, ranks, total
		d.record(domain.Change{Kind: domain.ChangeEntry, Action: domain.ActionReorder})
	})
}
