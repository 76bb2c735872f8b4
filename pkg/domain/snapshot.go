package domain

import (
	"errors"
	"fmt"
	"time"
)

// EntryRecord is the persisted form of one deck entry.
type EntryRecord struct {
	CardKey   string    `json:"card_key"`
	Count     int       `json:"count"`
	DateAdded time.Time `json:"date_added"`
}

// CategoryRecord is the persisted form of one category.
type CategoryRecord struct {
	Name      string   `json:"name"`
	Filter    Filter   `json:"filter"`
	Whitelist []string `json:"whitelist,omitempty"`
	Blacklist []string `json:"blacklist,omitempty"`
	Rank      int      `json:"rank"`
	Color     Color    `json:"color,omitempty"`
}

// Spec converts the record into an editable spec.
func (r CategoryRecord) Spec() CategorySpec {
	return CategorySpec{
		Name:      r.Name,
		Filter:    r.Filter.Copy(),
		Whitelist: append([]string(nil), r.Whitelist...),
		Blacklist: append([]string(nil), r.Blacklist...),
		Color:     r.Color,
	}
}

// Snapshot is the complete persisted state of a deck: entries in master
// order followed by categories.
type Snapshot struct {
	DeckID     string           `json:"deck_id"`
	Entries    []EntryRecord    `json:"entries"`
	Categories []CategoryRecord `json:"categories"`
	SavedAt    time.Time        `json:"saved_at"`
}

// Validate checks counts, key uniqueness and that ranks form a permutation.
func (s Snapshot) Validate() error {
	if s.DeckID == "" {
		return errors.New("snapshot deck id is required")
	}
	seen := make(map[string]struct{}, len(s.Entries))
	for _, e := range s.Entries {
		if e.Count < 1 {
			return fmt.Errorf("entry %q: %w", e.CardKey, ErrInvalidQuantity)
		}
		if _, dup := seen[e.CardKey]; dup {
			return fmt.Errorf("duplicate entry %q", e.CardKey)
		}
		seen[e.CardKey] = struct{}{}
	}
	names := make(map[string]struct{}, len(s.Categories))
	ranks := make([]bool, len(s.Categories))
	for _, c := range s.Categories {
		if _, dup := names[c.Name]; dup {
			return fmt.Errorf("duplicate category %q", c.Name)
		}
		names[c.Name] = struct{}{}
		if c.Rank < 0 || c.Rank >= len(s.Categories) || ranks[c.Rank] {
			return fmt.Errorf("category %q rank %d: %w", c.Name, c.Rank, ErrRankOutOfRange)
		}
		ranks[c.Rank] = true
	}
	return nil
}

// Total sums the entry counts.
func (s Snapshot) Total() int {
	n := 0
	for _, e := range s.Entries {
		n += e.Count
	}
	return n
}
