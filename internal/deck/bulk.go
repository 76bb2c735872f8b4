package deck

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"deckcore/pkg/domain"
)

// Stack is one element of a bulk operation. A zero Date means "now" for
// AddAll and is ignored by RemoveAll.
type Stack struct {
	Card  domain.Card
	Count int
	Date  time.Time
}

// AddAll applies Add for every stack in order and returns the keys whose
// count changed, in first-seen order.
func (d *Deck) AddAll(stacks []Stack) []string {
	var changed []string
	d.mutate(func() {
		for _, s := range stacks {
			if s.Count < 1 {
				continue
			}
			at := s.Date
			if at.IsZero() {
				at = d.now()
			}
			d.add(s.Card, s.Count, at)
			if !slices.Contains(changed, s.Card.Key) {
				changed = append(changed, s.Card.Key)
			}
		}
	})
	return changed
}

// RemoveAll applies Remove for every stack in order and returns the number of
// copies actually removed per key. Keys with nothing removed are omitted.
func (d *Deck) RemoveAll(stacks []Stack) map[string]int {
	removed := make(map[string]int)
	d.mutate(func() {
		for _, s := range stacks {
			if s.Count < 1 {
				continue
			}
			if n := d.remove(s.Card.Key, s.Count); n > 0 {
				removed[s.Card.Key] += n
			}
		}
	})
	return removed
}

// Sort reorders the master list with a stable sort and re-derives every
// filtrate in the new order before returning.
func (d *Deck) Sort(less func(a, b Entry) bool) {
	if less == nil {
		return
	}
	d.mutate(func() {
		views := make(map[*entry]Entry, len(d.entries))
		for _, e := range d.entries {
			views[e] = d.entryView(e)
		}
		before := slices.Clone(d.entries)
		slices.SortStableFunc(d.entries, func(a, b *entry) int {
			switch {
			case less(views[a], views[b]):
				return -1
			case less(views[b], views[a]):
				return 1
			default:
				return 0
			}
		})
		if slices.Equal(before, d.entries) {
			return
		}
		for i, e := range d.entries {
			d.index[e.card.Key] = i
		}
		for _, name := range d.ranks {
			c := d.categories[name]
			c.filtrate = c.filtrate[:0]
			for _, e := range d.entries {
				if e.categories.Contains(name) {
					c.filtrate = append(c.filtrate, e.card.Key)
				}
			}
		}
		d.record(domain.Change{Kind: domain.ChangeEntry, Action: domain.ActionReorder})
	})
}

// ByName orders entries by card name, then key.
func ByName(a, b Entry) bool {
	if a.Card.Name != b.Card.Name {
		return a.Card.Name < b.Card.Name
	}
	return a.Card.Key < b.Card.Key
}

// ByDateAdded orders entries from oldest to newest.
func ByDateAdded(a, b Entry) bool {
	return a.DateAdded.Before(b.DateAdded)
}

// ByAttribute orders entries by the first value of attr. Two numeric values
// compare as numbers, anything else compares as text. Cards without the
// attribute sort last.
func ByAttribute(attr string) func(a, b Entry) bool {
	return func(a, b Entry) bool {
		av, bv := a.Card.Values(attr), b.Card.Values(attr)
		switch {
		case len(av) == 0:
			return false
		case len(bv) == 0:
			return true
		}
		an, aerr := strconv.ParseFloat(strings.TrimSpace(av[0]), 64)
		bn, berr := strconv.ParseFloat(strings.TrimSpace(bv[0]), 64)
		if aerr == nil && berr == nil {
			return an < bn
		}
		return av[0] < bv[0]
	}
}
