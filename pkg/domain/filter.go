package domain

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// FilterKind tags the variant held by a Filter.
type FilterKind string

// Filter variants. A zero Kind is treated as KindAll.
const (
	KindAll  FilterKind = "all"
	KindLeaf FilterKind = "leaf"
	KindAnd  FilterKind = "and"
	KindOr   FilterKind = "or"
	KindNot  FilterKind = "not"
)

// Operator is the comparison applied by a leaf filter.
type Operator string

// Leaf operators. Text comparisons ignore case; numeric operators parse both
// sides as float64.
const (
	OpEquals         Operator = "eq"
	OpNotEquals      Operator = "ne"
	OpContains       Operator = "contains"
	OpMatches        Operator = "matches"
	OpLessThan       Operator = "lt"
	OpLessOrEqual    Operator = "le"
	OpGreaterThan    Operator = "gt"
	OpGreaterOrEqual Operator = "ge"
	OpHas            Operator = "has"
)

// Filter is a boolean predicate over cards, stored as a tree so it can be
// copied, compared and persisted by value.
type Filter struct {
	Kind      FilterKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Attribute string     `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Op        Operator   `json:"op,omitempty" yaml:"op,omitempty"`
	Value     string     `json:"value,omitempty" yaml:"value,omitempty"`
	Children  []Filter   `json:"children,omitempty" yaml:"children,omitempty"`
}

// All matches every card.
func All() Filter { return Filter{Kind: KindAll} }

// None matches no card.
func None() Filter { return Filter{Kind: KindOr} }

// Leaf compares a single attribute against value.
func Leaf(attribute string, op Operator, value string) Filter {
	return Filter{Kind: KindLeaf, Attribute: attribute, Op: op, Value: value}
}

// And matches when every child matches.
func And(children ...Filter) Filter {
	return Filter{Kind: KindAnd, Children: children}
}

// Or matches when at least one child matches.
func Or(children ...Filter) Filter {
	return Filter{Kind: KindOr, Children: children}
}

// Not negates f.
func Not(f Filter) Filter {
	return Filter{Kind: KindNot, Children: []Filter{f}}
}

// Test evaluates the filter against card.
func (f Filter) Test(card Card) bool {
	switch f.kind() {
	case KindAll:
		return true
	case KindLeaf:
		return f.testLeaf(card)
	case KindAnd:
		for _, child := range f.Children {
			if !child.Test(card) {
				return false
			}
		}
		return true
	case KindOr:
		for _, child := range f.Children {
			if child.Test(card) {
				return true
			}
		}
		return false
	case KindNot:
		if len(f.Children) == 0 {
			return true
		}
		return !f.Children[0].Test(card)
	default:
		return false
	}
}

func (f Filter) kind() FilterKind {
	if f.Kind == "" {
		return KindAll
	}
	return f.Kind
}

func (f Filter) testLeaf(card Card) bool {
	values := card.Values(f.Attribute)
	switch f.Op {
	case OpHas:
		return len(values) > 0
	case OpNotEquals:
		for _, v := range values {
			if strings.EqualFold(v, f.Value) {
				return false
			}
		}
		return true
	}
	for _, v := range values {
		if f.matchValue(v) {
			return true
		}
	}
	return false
}

func (f Filter) matchValue(v string) bool {
	switch f.Op {
	case OpEquals:
		return strings.EqualFold(v, f.Value)
	case OpContains:
		return strings.Contains(strings.ToLower(v), strings.ToLower(f.Value))
	case OpMatches:
		re, err := compilePattern(f.Value)
		if err != nil {
			return false
		}
		return re.MatchString(v)
	case OpLessThan, OpLessOrEqual, OpGreaterThan, OpGreaterOrEqual:
		lhs, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return false
		}
		rhs, err := strconv.ParseFloat(strings.TrimSpace(f.Value), 64)
		if err != nil {
			return false
		}
		switch f.Op {
		case OpLessThan:
			return lhs < rhs
		case OpLessOrEqual:
			return lhs <= rhs
		case OpGreaterThan:
			return lhs > rhs
		default:
			return lhs >= rhs
		}
	}
	return false
}

// maxCachedPatterns bounds the compiled pattern cache. Filters arrive from
// HTTP requests, so the set of patterns is unbounded.
const maxCachedPatterns = 256

var (
	patternMu    sync.RWMutex
	patternCache = make(map[string]*regexp.Regexp, maxCachedPatterns)
)

// compilePattern caches case-insensitive regular expressions; category
// rescans evaluate the same pattern once per card. A full cache evicts an
// arbitrary entry.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	patternMu.RLock()
	re, ok := patternCache[pattern]
	patternMu.RUnlock()
	if ok {
		return re, nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, err
	}
	patternMu.Lock()
	defer patternMu.Unlock()
	if _, ok := patternCache[pattern]; !ok && len(patternCache) >= maxCachedPatterns {
		for k := range patternCache {
			delete(patternCache, k)
			break
		}
	}
	patternCache[pattern] = re
	return re, nil
}

// Copy returns a deep copy of the filter tree.
func (f Filter) Copy() Filter {
	cp := f
	if f.Children != nil {
		cp.Children = make([]Filter, len(f.Children))
		for i, child := range f.Children {
			cp.Children[i] = child.Copy()
		}
	}
	return cp
}

// Equal reports value equality of two filter trees.
func (f Filter) Equal(other Filter) bool {
	if f.kind() != other.kind() {
		return false
	}
	if f.kind() == KindLeaf {
		return normalizeAttribute(f.Attribute) == normalizeAttribute(other.Attribute) &&
			f.Op == other.Op && f.Value == other.Value
	}
	return slices.EqualFunc(f.Children, other.Children, Filter.Equal)
}

// Validate checks operators, operands and arity across the whole tree.
func (f Filter) Validate() error {
	switch f.kind() {
	case KindAll:
		return nil
	case KindLeaf:
		return f.validateLeaf()
	case KindAnd, KindOr:
		for i, child := range f.Children {
			if err := child.Validate(); err != nil {
				return fmt.Errorf("%s[%d]: %w", f.kind(), i, err)
			}
		}
		return nil
	case KindNot:
		if len(f.Children) != 1 {
			return fmt.Errorf("not filter requires exactly one child, got %d", len(f.Children))
		}
		if err := f.Children[0].Validate(); err != nil {
			return fmt.Errorf("not: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown filter kind %q", f.Kind)
	}
}

func (f Filter) validateLeaf() error {
	if strings.TrimSpace(f.Attribute) == "" {
		return errors.New("leaf filter requires an attribute")
	}
	switch f.Op {
	case OpEquals, OpNotEquals, OpContains, OpHas:
		return nil
	case OpMatches:
		if _, err := compilePattern(f.Value); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", f.Value, err)
		}
		return nil
	case OpLessThan, OpLessOrEqual, OpGreaterThan, OpGreaterOrEqual:
		if _, err := strconv.ParseFloat(strings.TrimSpace(f.Value), 64); err != nil {
			return fmt.Errorf("operator %s requires a numeric value, got %q", f.Op, f.Value)
		}
		return nil
	default:
		return fmt.Errorf("unknown operator %q", f.Op)
	}
}

// String renders the filter in a compact prefix form for logs.
func (f Filter) String() string {
	switch f.kind() {
	case KindAll:
		return "all"
	case KindLeaf:
		return fmt.Sprintf("%s %s %q", f.Attribute, f.Op, f.Value)
	default:
		parts := make([]string, len(f.Children))
		for i, child := range f.Children {
			parts[i] = child.String()
		}
		return fmt.Sprintf("%s(%s)", f.kind(), strings.Join(parts, ", "))
	}
}
