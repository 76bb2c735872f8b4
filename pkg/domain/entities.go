// Package domain defines the card, filter and category value types, the
// persisted deck snapshot, and the rule evaluation primitives used by deckcore.
package domain

import (
	"slices"
	"time"
)

// ChangeKind identifies what a Change record refers to.
type ChangeKind string

// Change kinds emitted by the deck engine.
const (
	// ChangeEntry refers to a deck entry keyed by card key.
	ChangeEntry ChangeKind = "entry"
	// ChangeCategory refers to a category keyed by name.
	ChangeCategory ChangeKind = "category"
)

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate the transitions a deck can make.
const (
	// ActionCreate indicates an entry or category was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates a count or a category definition changed.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	// ActionReorder indicates category ranks or master order changed.
	ActionReorder Action = "reorder"
)

// Change records one transition performed by a deck mutation. Before/After
// carry counts for entries and ranks for categories.
type Change struct {
	Kind   ChangeKind `json:"kind"`
	Action Action     `json:"action"`
	Key    string     `json:"key"`
	Before int        `json:"before"`
	After  int        `json:"after"`
}

// Entry is the read model of one deck line.
type Entry struct {
	Card       Card      `json:"card"`
	Count      int       `json:"count"`
	DateAdded  time.Time `json:"date_added"`
	Categories []string  `json:"categories"`
}

// CategoryView is the read model of a category: its definition, rank and the
// cards currently in it, in deck order.
type CategoryView struct {
	Spec  CategorySpec `json:"spec"`
	Rank  int          `json:"rank"`
	Cards []Card       `json:"cards"`
}

// Includes evaluates category membership for card: the filter or the
// whitelist admits it and the blacklist does not reject it.
func (s CategorySpec) Includes(card Card) bool {
	if slices.Contains(s.Blacklist, card.Key) {
		return false
	}
	return s.Filter.Test(card) || slices.Contains(s.Whitelist, card.Key)
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock marks a broken engine invariant.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string     `json:"rule"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Kind     ChangeKind `json:"kind,omitempty"`
	Key      string     `json:"key,omitempty"`
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation `json:"violations"`
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	if len(e.Result.Violations) == 0 {
		return "deck invariants violated"
	}
	first := e.Result.Violations[0]
	return "deck invariants violated: " + first.Rule + ": " + first.Message
}
