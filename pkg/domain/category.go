package domain

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Color is a category display color in #rrggbb form. The empty string means
// "no color assigned".
type Color string

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ParseColor validates and normalises a color string.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	if !colorPattern.MatchString(s) {
		return "", fmt.Errorf("invalid color %q", s)
	}
	return Color(strings.ToLower(s)), nil
}

// CategorySpec is the user-editable definition of a category: everything
// except its rank and its derived card list.
type CategorySpec struct {
	Name      string   `json:"name" yaml:"name" validate:"required"`
	Filter    Filter   `json:"filter" yaml:"filter"`
	Whitelist []string `json:"whitelist,omitempty" yaml:"whitelist,omitempty"`
	Blacklist []string `json:"blacklist,omitempty" yaml:"blacklist,omitempty"`
	Color     Color    `json:"color,omitempty" yaml:"color,omitempty"`
}

// Copy returns a deep copy of the spec.
func (s CategorySpec) Copy() CategorySpec {
	cp := s
	cp.Filter = s.Filter.Copy()
	cp.Whitelist = slices.Clone(s.Whitelist)
	cp.Blacklist = slices.Clone(s.Blacklist)
	return cp
}

// Equal compares name, color, filter by value and both override lists as sets.
func (s CategorySpec) Equal(other CategorySpec) bool {
	return s.Name == other.Name &&
		s.Color == other.Color &&
		s.Filter.Equal(other.Filter) &&
		sameKeys(s.Whitelist, other.Whitelist) &&
		sameKeys(s.Blacklist, other.Blacklist)
}

// Validate checks the name, filter, color and override disjointness.
func (s CategorySpec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("category name is required")
	}
	if err := s.Filter.Validate(); err != nil {
		return fmt.Errorf("category %q filter: %w", s.Name, err)
	}
	if s.Color != "" {
		if _, err := ParseColor(string(s.Color)); err != nil {
			return fmt.Errorf("category %q: %w", s.Name, err)
		}
	}
	black := make(map[string]struct{}, len(s.Blacklist))
	for _, k := range s.Blacklist {
		black[k] = struct{}{}
	}
	for _, k := range s.Whitelist {
		if _, ok := black[k]; ok {
			return fmt.Errorf("category %q: card %q is both whitelisted and blacklisted", s.Name, k)
		}
	}
	return nil
}

func sameKeys(a, b []string) bool {
	as := make(map[string]struct{}, len(a))
	for _, k := range a {
		as[k] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, k := range b {
		bs[k] = struct{}{}
	}
	if len(as) != len(bs) {
		return false
	}
	for k := range as {
		if _, ok := bs[k]; !ok {
			return false
		}
	}
	return true
}
