package deck

import (
	"fmt"

	"deckcore/pkg/domain"
)

// AddCategory registers spec at the next free rank and computes its filtrate
// with one scan of the entries. Registering a name that already exists
// returns the existing view unchanged, whatever the rest of spec holds.
func (d *Deck) AddCategory(spec domain.CategorySpec) (CategoryView, error) {
	var (
		view CategoryView
		err  error
	)
	d.mutate(func() {
		if c, ok := d.categories[spec.Name]; ok {
			view = d.categoryView(c)
			return
		}
		if verr := spec.Validate(); verr != nil {
			err = &domain.CategoryError{Op: "add category", Name: spec.Name, Err: verr}
			return
		}
		view = d.categoryView(d.register(spec))
	})
	return view, err
}

// AddCategoryAt registers spec and moves it to rank, swapping with the view
// that held it. rank may equal NumCategories for a new name, which is the same
// as AddCategory. An existing name is swapped into rank instead of duplicated.
func (d *Deck) AddCategoryAt(spec domain.CategorySpec, rank int) (CategoryView, error) {
	var (
		view CategoryView
		err  error
	)
	d.mutate(func() {
		if rank < 0 || rank > len(d.ranks) {
			err = &domain.CategoryError{Op: "add category", Name: spec.Name, Err: domain.ErrRankOutOfRange}
			return
		}
		c, exists := d.categories[spec.Name]
		if exists {
			if c.rank != rank {
				if err = d.swap(c, rank); err != nil {
					return
				}
			}
			view = d.categoryView(c)
			return
		}
		if verr := spec.Validate(); verr != nil {
			err = &domain.CategoryError{Op: "add category", Name: spec.Name, Err: verr}
			return
		}
		c = d.register(spec)
		if rank < c.rank {
			err = d.swap(c, rank)
		}
		view = d.categoryView(c)
	})
	return view, err
}

func (d *Deck) register(spec domain.CategorySpec) *category {
	c := newCategory(spec, len(d.ranks))
	d.categories[c.name] = c
	d.ranks = append(d.ranks, c.name)
	for _, e := range d.entries {
		if c.includes(e.card) {
			c.filtrate = append(c.filtrate, e.card.Key)
			e.categories.Add(c.name)
		}
	}
	d.record(domain.Change{Kind: domain.ChangeCategory, Action: domain.ActionCreate, Key: c.name, Before: -1, After: c.rank})
	return c
}

// RemoveCategory drops the named view, strips it from every entry and closes
// the rank gap. It reports false when the name is unknown.
func (d *Deck) RemoveCategory(name string) bool {
	removed := false
	d.mutate(func() {
		c, ok := d.categories[name]
		if !ok {
			return
		}
		for _, key := range c.filtrate {
			if e, ok := d.lookup(key); ok {
				e.categories.Remove(name)
			}
		}
		delete(d.categories, name)
		d.ranks = append(d.ranks[:c.rank], d.ranks[c.rank+1:]...)
		for i := c.rank; i < len(d.ranks); i++ {
			d.categories[d.ranks[i]].rank = i
		}
		d.record(domain.Change{Kind: domain.ChangeCategory, Action: domain.ActionDelete, Key: name, Before: c.rank, After: -1})
		removed = true
	})
	return removed
}

// UpdateCategory replaces the definition of name, keeping its rank. A new name
// in spec moves the registry key. The view's filtrate and every entry's
// membership in it are recomputed. It returns the previous definition.
func (d *Deck) UpdateCategory(name string, spec domain.CategorySpec) (domain.CategorySpec, error) {
	if err := spec.Validate(); err != nil {
		return domain.CategorySpec{}, &domain.CategoryError{Op: "update category", Name: name, Err: err}
	}
	var (
		prior domain.CategorySpec
		err   error
	)
	d.mutate(func() {
		c, ok := d.categories[name]
		if !ok {
			err = &domain.CategoryError{Op: "update category", Name: name, Err: domain.ErrCategoryNotFound}
			return
		}
		if spec.Name != name {
			if _, taken := d.categories[spec.Name]; taken {
				err = &domain.CategoryError{Op: "rename category", Name: spec.Name, Err: domain.ErrCategoryExists}
				return
			}
		}
		prior = c.spec()
		if c.equal(newCategory(spec, c.rank)) {
			return
		}
		if spec.Name != name {
			d.rename(c, spec.Name)
		}
		c.setFilter(spec.Filter)
		c.setOverrides(spec.Whitelist, spec.Blacklist)
		c.setColor(spec.Color)
		d.rescan(c)
		d.record(domain.Change{Kind: domain.ChangeCategory, Action: domain.ActionUpdate, Key: c.name, Before: c.rank, After: c.rank})
	})
	return prior, err
}

func (d *Deck) rename(c *category, to string) {
	from := c.name
	for _, key := range c.filtrate {
		if e, ok := d.lookup(key); ok {
			e.categories.Remove(from)
			e.categories.Add(to)
		}
	}
	delete(d.categories, from)
	c.setName(to)
	d.categories[to] = c
	d.ranks[c.rank] = to
}

// rescan recomputes one view against every entry.
func (d *Deck) rescan(c *category) {
	c.filtrate = c.filtrate[:0]
	for _, e := range d.entries {
		if c.includes(e.card) {
			c.filtrate = append(c.filtrate, e.card.Key)
			e.categories.Add(c.name)
		} else {
			e.categories.Remove(c.name)
		}
	}
}

// SwapCategoryRanks exchanges the rank of name with whichever view holds
// target.
func (d *Deck) SwapCategoryRanks(name string, target int) error {
	var err error
	d.mutate(func() {
		c, ok := d.categories[name]
		if !ok {
			err = &domain.CategoryError{Op: "swap ranks", Name: name, Err: domain.ErrCategoryNotFound}
			return
		}
		err = d.swap(c, target)
	})
	return err
}

func (d *Deck) swap(c *category, target int) error {
	if target < 0 || target >= len(d.ranks) {
		return &domain.CategoryError{Op: "swap ranks", Name: c.name, Err: fmt.Errorf("%w: %d", domain.ErrRankOutOfRange, target)}
	}
	if target == c.rank {
		return &domain.CategoryError{Op: "swap ranks", Name: c.name, Err: fmt.Errorf("%w: %d", domain.ErrSameRank, target)}
	}
	other := d.categories[d.ranks[target]]
	from := c.rank
	c.rank, other.rank = target, from
	d.ranks[target], d.ranks[from] = c.name, other.name
	d.record(domain.Change{Kind: domain.ChangeCategory, Action: domain.ActionReorder, Key: c.name, Before: from, After: target})
	d.record(domain.Change{Kind: domain.ChangeCategory, Action: domain.ActionReorder, Key: other.name, Before: target, After: from})
	return nil
}

// Include forces the card key into the named view. The card must be in the
// deck. It reports whether the overrides changed.
func (d *Deck) Include(name, key string) (bool, error) {
	return d.override("include", name, key, (*category).include)
}

// Exclude forces the card key out of the named view. The card must be in the
// deck. It reports whether the overrides changed.
func (d *Deck) Exclude(name, key string) (bool, error) {
	return d.override("exclude", name, key, (*category).exclude)
}

func (d *Deck) override(op, name, key string, apply func(*category, domain.Card) bool) (bool, error) {
	var (
		changed bool
		err     error
	)
	d.mutate(func() {
		c, ok := d.categories[name]
		if !ok {
			err = &domain.CategoryError{Op: op, Name: name, Err: domain.ErrCategoryNotFound}
			return
		}
		e, ok := d.lookup(key)
		if !ok {
			err = &domain.CardError{Op: op, Key: key, Err: domain.ErrCardNotFound}
			return
		}
		if changed = apply(c, e.card); changed {
			d.resync(c, e)
			d.record(domain.Change{Kind: domain.ChangeCategory, Action: domain.ActionUpdate, Key: c.name, Before: c.rank, After: c.rank})
		}
	})
	return changed, err
}

// resync re-evaluates one entry against one view, inserting the key at its
// master position when it joins the filtrate.
func (d *Deck) resync(c *category, e *entry) {
	member := e.categories.Contains(c.name)
	switch want := c.includes(e.card); {
	case want && !member:
		e.categories.Add(c.name)
		pos := d.index[e.card.Key]
		at := len(c.filtrate)
		for i, key := range c.filtrate {
			if d.index[key] > pos {
				at = i
				break
			}
		}
		c.filtrate = append(c.filtrate[:at], append([]string{e.card.Key}, c.filtrate[at:]...)...)
	case !want && member:
		e.categories.Remove(c.name)
		c.dropFromFiltrate(e.card.Key)
	}
}

// NumCategories returns the number of registered views.
func (d *Deck) NumCategories() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.ranks)
}

// Categories returns every view in rank order.
func (d *Deck) Categories() []CategoryView {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.categoryViews()
}

// Category returns the named view.
func (d *Deck) Category(name string) (CategoryView, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, err := d.category("category", name)
	if err != nil {
		return CategoryView{}, err
	}
	return d.categoryView(c), nil
}

// CategorySpec returns the definition of the named view.
func (d *Deck) CategorySpec(name string) (domain.CategorySpec, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, err := d.category("category spec", name)
	if err != nil {
		return domain.CategorySpec{}, err
	}
	return c.spec(), nil
}

// CategoryCards returns the filtrate of the named view in master order.
func (d *Deck) CategoryCards(name string) ([]domain.Card, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, err := d.category("category cards", name)
	if err != nil {
		return nil, err
	}
	return d.cards(c), nil
}

// CategoryCard returns the i-th card of the named view's filtrate.
func (d *Deck) CategoryCard(name string, i int) (domain.Card, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, err := d.category("category card", name)
	if err != nil {
		return domain.Card{}, err
	}
	if i < 0 || i >= len(c.filtrate) {
		return domain.Card{}, &domain.CategoryError{Op: "category card", Name: name, Err: fmt.Errorf("%w: %d of %d", domain.ErrIndexOutOfRange, i, len(c.filtrate))}
	}
	e, _ := d.lookup(c.filtrate[i])
	return e.card.Clone(), nil
}

// CategoryTotal returns the number of copies in the named view.
func (d *Deck) CategoryTotal(name string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, err := d.category("category total", name)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, key := range c.filtrate {
		e, _ := d.lookup(key)
		n += e.count
	}
	return n, nil
}

// CategoryRank returns the rank of the named view.
func (d *Deck) CategoryRank(name string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, err := d.category("category rank", name)
	if err != nil {
		return 0, err
	}
	return c.rank, nil
}

func (d *Deck) category(op, name string) (*category, error) {
	c, ok := d.categories[name]
	if !ok {
		return nil, &domain.CategoryError{Op: op, Name: name, Err: domain.ErrCategoryNotFound}
	}
	return c, nil
}

func (d *Deck) categoryViews() []CategoryView {
	out := make([]CategoryView, len(d.ranks))
	for i, name := range d.ranks {
		out[i] = d.categoryView(d.categories[name])
	}
	return out
}

func (d *Deck) categoryView(c *category) CategoryView {
	return CategoryView{Spec: c.spec(), Rank: c.rank, Cards: d.cards(c)}
}

func (d *Deck) cards(c *category) []domain.Card {
	out := make([]domain.Card, 0, len(c.filtrate))
	for _, key := range c.filtrate {
		if e, ok := d.lookup(key); ok {
			out = append(out, e.card.Clone())
		}
	}
	return out
}
