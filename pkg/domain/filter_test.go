package domain

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	grizzly = NewCard("grizzly-bears", "Grizzly Bears", map[string][]string{
		"Type":    {"Creature"},
		"Subtype": {"Bear"},
		"CMC":     {"2"},
		"Colors":  {"G"},
	})
	bolt = NewCard("lightning-bolt", "Lightning Bolt", map[string][]string{
		"type":   {"Instant"},
		"cmc":    {"1"},
		"colors": {"R"},
	})
	forest = NewCard("forest", "Forest", map[string][]string{
		"type":    {"Basic", "Land"},
		"subtype": {"Forest"},
	})
)

func TestFilterLeafOperators(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		card   Card
		want   bool
	}{
		{"equals ignores case", Leaf("type", OpEquals, "creature"), grizzly, true},
		{"equals any value", Leaf("type", OpEquals, "land"), forest, true},
		{"equals miss", Leaf("type", OpEquals, "land"), bolt, false},
		{"not equals", Leaf("type", OpNotEquals, "land"), bolt, true},
		{"not equals with matching value", Leaf("type", OpNotEquals, "land"), forest, false},
		{"contains", Leaf("name", OpContains, "BOLT"), bolt, true},
		{"matches", Leaf("name", OpMatches, "^griz+ly"), grizzly, true},
		{"bad pattern never matches", Leaf("name", OpMatches, "("), grizzly, false},
		{"less than", Leaf("cmc", OpLessThan, "2"), bolt, true},
		{"less or equal", Leaf("cmc", OpLessOrEqual, "2"), grizzly, true},
		{"greater than", Leaf("cmc", OpGreaterThan, "1"), grizzly, true},
		{"greater or equal", Leaf("cmc", OpGreaterOrEqual, "3"), grizzly, false},
		{"numeric on missing attribute", Leaf("cmc", OpLessThan, "5"), forest, false},
		{"has", Leaf("subtype", OpHas, ""), forest, true},
		{"has missing", Leaf("subtype", OpHas, ""), bolt, false},
		{"key attribute", Leaf("key", OpEquals, "forest"), forest, true},
		{"unknown operator", Leaf("type", Operator("??"), "x"), forest, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.filter.Test(tc.card))
		})
	}
}

func TestFilterGroups(t *testing.T) {
	creature := Leaf("type", OpEquals, "creature")
	cheap := Leaf("cmc", OpLessOrEqual, "1")

	assert.True(t, All().Test(forest))
	assert.True(t, Filter{}.Test(forest), "zero filter matches everything")
	assert.False(t, None().Test(forest))
	assert.True(t, And().Test(forest))
	assert.True(t, Or(creature, cheap).Test(bolt))
	assert.False(t, And(creature, cheap).Test(grizzly))
	assert.True(t, Not(creature).Test(bolt))
	assert.False(t, Not(creature).Test(grizzly))
	assert.True(t, Filter{Kind: KindNot}.Test(grizzly))
	assert.False(t, Filter{Kind: "bogus"}.Test(grizzly))
}

func TestFilterCopyIsDeep(t *testing.T) {
	original := And(Leaf("type", OpEquals, "creature"), Or(Leaf("cmc", OpLessThan, "3")))
	cp := original.Copy()
	require.True(t, original.Equal(cp))

	cp.Children[1].Children[0].Value = "7"
	assert.Equal(t, "3", original.Children[1].Children[0].Value)
	assert.False(t, original.Equal(cp))
}

func TestFilterEqual(t *testing.T) {
	assert.True(t, Filter{}.Equal(All()))
	assert.True(t, Leaf("Type", OpEquals, "x").Equal(Leaf("type", OpEquals, "x")))
	assert.False(t, Leaf("type", OpEquals, "x").Equal(Leaf("type", OpContains, "x")))
	assert.False(t, And().Equal(Or()))
	assert.False(t, And(All()).Equal(And(All(), All())))
}

func TestFilterValidate(t *testing.T) {
	valid := And(Leaf("type", OpEquals, "creature"), Not(Leaf("cmc", OpGreaterThan, "4")))
	require.NoError(t, valid.Validate())

	invalid := []Filter{
		Leaf("", OpEquals, "x"),
		Leaf("type", Operator("nope"), "x"),
		Leaf("name", OpMatches, "("),
		Leaf("cmc", OpLessThan, "three"),
		{Kind: KindNot},
		{Kind: "bogus"},
		Or(Leaf("type", OpEquals, "x"), Leaf("", OpHas, "")),
	}
	for _, f := range invalid {
		assert.Error(t, f.Validate(), "expected %s to be invalid", f)
	}
}

func TestFilterJSONRoundTripPreservesStructure(t *testing.T) {
	f := Or(Leaf("type", OpEquals, "land"), And(Leaf("cmc", OpLessThan, "2"), Not(Leaf("colors", OpHas, ""))))
	raw, err := json.Marshal(f)
	require.NoError(t, err)
	var decoded Filter
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, f.Equal(decoded))
	assert.Equal(t, f.Test(forest), decoded.Test(forest))
}

func TestFilterString(t *testing.T) {
	assert.Equal(t, "all", All().String())
	assert.Equal(t, `and(type eq "land", not(cmc gt "3"))`, And(Leaf("type", OpEquals, "land"), Not(Leaf("cmc", OpGreaterThan, "3"))).String())
}

func TestPatternCacheIsBounded(t *testing.T) {
	for i := range maxCachedPatterns * 3 {
		f := Leaf("name", OpMatches, fmt.Sprintf("^grizzly-%d$", i))
		assert.False(t, f.Test(grizzly))
	}
	patternMu.RLock()
	size := len(patternCache)
	patternMu.RUnlock()
	assert.LessOrEqual(t, size, maxCachedPatterns)

	assert.True(t, Leaf("name", OpMatches, "^griz+ly").Test(grizzly), "evicted patterns recompile")
}
