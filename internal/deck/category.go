package deck

import (
	"slices"

	"deckcore/pkg/domain"

	mapset "github.com/deckarep/golang-set/v2"
)

// category is the deck-owned state of one view. It holds no pointer back to
// the deck; the filtrate stores card keys in master order.
type category struct {
	name      string
	filter    domain.Filter
	whitelist mapset.Set[string]
	blacklist mapset.Set[string]
	color     domain.Color
	rank      int
	filtrate  []string
}

func newCategory(spec domain.CategorySpec, rank int) *category {
	return &category{
		name:      spec.Name,
		filter:    spec.Filter.Copy(),
		whitelist: mapset.NewThreadUnsafeSet(spec.Whitelist...),
		blacklist: mapset.NewThreadUnsafeSet(spec.Blacklist...),
		color:     spec.Color,
		rank:      rank,
	}
}

func (c *category) includes(card domain.Card) bool {
	if c.blacklist.Contains(card.Key) {
		return false
	}
	return c.filter.Test(card) || c.whitelist.Contains(card.Key)
}

// include forces card into the view. When the filter already admits it only a
// blacklist entry needs clearing.
func (c *category) include(card domain.Card) bool {
	changed := c.blacklist.Contains(card.Key)
	c.blacklist.Remove(card.Key)
	if c.filter.Test(card) {
		return changed
	}
	if !c.whitelist.Contains(card.Key) {
		c.whitelist.Add(card.Key)
		changed = true
	}
	return changed
}

// exclude forces card out of the view.
func (c *category) exclude(card domain.Card) bool {
	changed := c.whitelist.Contains(card.Key)
	c.whitelist.Remove(card.Key)
	if !c.filter.Test(card) {
		return changed
	}
	if !c.blacklist.Contains(card.Key) {
		c.blacklist.Add(card.Key)
		changed = true
	}
	return changed
}

func (c *category) setFilter(f domain.Filter) { c.filter = f.Copy() }

func (c *category) setName(name string) { c.name = name }

func (c *category) setColor(color domain.Color) { c.color = color }

// setOverrides replaces both override sets.
func (c *category) setOverrides(whitelist, blacklist []string) {
	c.whitelist = mapset.NewThreadUnsafeSet(whitelist...)
	c.blacklist = mapset.NewThreadUnsafeSet(blacklist...)
}

func (c *category) spec() domain.CategorySpec {
	return domain.CategorySpec{
		Name:      c.name,
		Filter:    c.filter.Copy(),
		Whitelist: sortedKeys(c.whitelist),
		Blacklist: sortedKeys(c.blacklist),
		Color:     c.color,
	}
}

func (c *category) equal(other *category) bool {
	return c.name == other.name &&
		c.color == other.color &&
		c.filter.Equal(other.filter) &&
		c.whitelist.Equal(other.whitelist) &&
		c.blacklist.Equal(other.blacklist)
}

func (c *category) dropFromFiltrate(key string) {
	if i := slices.Index(c.filtrate, key); i >= 0 {
		c.filtrate = slices.Delete(c.filtrate, i, i+1)
	}
}

func sortedKeys(s mapset.Set[string]) []string {
	if s.Cardinality() == 0 {
		return nil
	}
	keys := s.ToSlice()
	slices.Sort(keys)
	return keys
}
