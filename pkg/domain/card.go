package domain

import (
	"slices"
	"strings"
)

// Card is the countable item tracked by a deck. Identity is the Key; the
// remaining fields are read by filters and never mutated by the engine.
type Card struct {
	Key        string              `json:"key" yaml:"key"`
	Name       string              `json:"name" yaml:"name"`
	Attributes map[string][]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// NewCard builds a card with normalised attribute names.
func NewCard(key, name string, attributes map[string][]string) Card {
	c := Card{Key: key, Name: name}
	if len(attributes) > 0 {
		c.Attributes = make(map[string][]string, len(attributes))
		for k, v := range attributes {
			c.Attributes[normalizeAttribute(k)] = append([]string(nil), v...)
		}
	}
	return c
}

// Values returns the attribute values stored under attr. The synthetic
// attributes "key" and "name" resolve to the card identity fields.
func (c Card) Values(attr string) []string {
	attr = normalizeAttribute(attr)
	switch attr {
	case "key":
		return []string{c.Key}
	case "name":
		if _, ok := c.Attributes[attr]; !ok {
			return []string{c.Name}
		}
	}
	if c.Attributes == nil {
		return nil
	}
	if v, ok := c.Attributes[attr]; ok {
		return v
	}
	// tolerate attribute maps that were not built through NewCard
	for k, v := range c.Attributes {
		if normalizeAttribute(k) == attr {
			return v
		}
	}
	return nil
}

// Has reports whether the card carries at least one value for attr.
func (c Card) Has(attr string) bool {
	return len(c.Values(attr)) > 0
}

// Clone returns a deep copy of the card.
func (c Card) Clone() Card {
	cp := c
	if c.Attributes != nil {
		cp.Attributes = make(map[string][]string, len(c.Attributes))
		for k, v := range c.Attributes {
			cp.Attributes[k] = slices.Clone(v)
		}
	}
	return cp
}

// Same reports identity equality.
func (c Card) Same(other Card) bool { return c.Key == other.Key }

func normalizeAttribute(attr string) string {
	return strings.ToLower(strings.TrimSpace(attr))
}
