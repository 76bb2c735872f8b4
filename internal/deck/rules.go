package deck

import (
	"context"
	"fmt"
	"slices"

	"deckcore/pkg/domain"
)

// stateView exposes deck state to rules without taking the lock; callers must
// already hold it.
type stateView struct{ d *Deck }

func (v stateView) Entries() []Entry           { return v.d.entryViews() }
func (v stateView) Categories() []CategoryView { return v.d.categoryViews() }
func (v stateView) Total() int                 { return v.d.total }

// Audit evaluates the deck invariants on demand. The engine configured with
// WithInvariantChecks is used when present, DefaultRules otherwise.
func (d *Deck) Audit(ctx context.Context) (domain.Result, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	engine := d.engine
	if engine == nil {
		engine = NewInvariantEngine()
	}
	return engine.Evaluate(ctx, stateView{d}, nil)
}

// NewInvariantEngine returns a rules engine holding DefaultRules.
func NewInvariantEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	for _, r := range DefaultRules() {
		engine.Register(r)
	}
	return engine
}

// DefaultRules returns the structural invariants every deck maintains.
func DefaultRules() []domain.Rule {
	return []domain.Rule{
		totalBookkeepingRule{},
		zeroCountRule{},
		membershipRule{},
		filtrateOrderRule{},
		rankDensityRule{},
		overrideDisjointRule{},
	}
}

func blocking(rule string, kind domain.ChangeKind, key, format string, args ...any) domain.Violation {
	return domain.Violation{
		Rule:     rule,
		Severity: domain.SeverityBlock,
		Message:  fmt.Sprintf(format, args...),
		Kind:     kind,
		Key:      key,
	}
}

type totalBookkeepingRule struct{}

func (totalBookkeepingRule) Name() string { return "total_bookkeeping" }

func (r totalBookkeepingRule) Evaluate(_ context.Context, view domain.DeckView, _ []domain.Change) (domain.Result, error) {
	sum := 0
	for _, e := range view.Entries() {
		sum += e.Count
	}
	var res domain.Result
	if sum != view.Total() {
		res.Violations = append(res.Violations, blocking(r.Name(), domain.ChangeEntry, "", "total %d does not match entry sum %d", view.Total(), sum))
	}
	return res, nil
}

type zeroCountRule struct{}

func (zeroCountRule) Name() string { return "zero_count_entries" }

func (r zeroCountRule) Evaluate(_ context.Context, view domain.DeckView, _ []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, e := range view.Entries() {
		if e.Count < 1 {
			res.Violations = append(res.Violations, blocking(r.Name(), domain.ChangeEntry, e.Card.Key, "entry %s has count %d", e.Card.Key, e.Count))
		}
	}
	return res, nil
}

type membershipRule struct{}

func (membershipRule) Name() string { return "category_membership" }

func (r membershipRule) Evaluate(_ context.Context, view domain.DeckView, _ []domain.Change) (domain.Result, error) {
	var res domain.Result
	categories := view.Categories()
	for _, e := range view.Entries() {
		for _, c := range categories {
			want := c.Spec.Includes(e.Card)
			if want != slices.Contains(e.Categories, c.Spec.Name) {
				res.Violations = append(res.Violations, blocking(r.Name(), domain.ChangeEntry, e.Card.Key,
					"entry %s membership in %q is %t, includes reports %t", e.Card.Key, c.Spec.Name, !want, want))
			}
		}
	}
	return res, nil
}

type filtrateOrderRule struct{}

func (filtrateOrderRule) Name() string { return "filtrate_order" }

func (r filtrateOrderRule) Evaluate(_ context.Context, view domain.DeckView, _ []domain.Change) (domain.Result, error) {
	var res domain.Result
	entries := view.Entries()
	for _, c := range view.Categories() {
		var want []string
		for _, e := range entries {
			if c.Spec.Includes(e.Card) {
				want = append(want, e.Card.Key)
			}
		}
		got := make([]string, len(c.Cards))
		for i, card := range c.Cards {
			got[i] = card.Key
		}
		if !slices.Equal(want, got) {
			res.Violations = append(res.Violations, blocking(r.Name(), domain.ChangeCategory, c.Spec.Name,
				"category %q filtrate %v, expected %v", c.Spec.Name, got, want))
		}
	}
	return res, nil
}

type rankDensityRule struct{}

func (rankDensityRule) Name() string { return "rank_density" }

func (r rankDensityRule) Evaluate(_ context.Context, view domain.DeckView, _ []domain.Change) (domain.Result, error) {
	var res domain.Result
	for i, c := range view.Categories() {
		if c.Rank != i {
			res.Violations = append(res.Violations, blocking(r.Name(), domain.ChangeCategory, c.Spec.Name,
				"category %q at position %d has rank %d", c.Spec.Name, i, c.Rank))
		}
	}
	return res, nil
}

type overrideDisjointRule struct{}

func (overrideDisjointRule) Name() string { return "override_disjoint" }

func (r overrideDisjointRule) Evaluate(_ context.Context, view domain.DeckView, _ []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, c := range view.Categories() {
		for _, key := range c.Spec.Whitelist {
			if slices.Contains(c.Spec.Blacklist, key) {
				res.Violations = append(res.Violations, blocking(r.Name(), domain.ChangeCategory, c.Spec.Name,
					"category %q lists %s in both whitelist and blacklist", c.Spec.Name, key))
			}
		}
	}
	return res, nil
}
