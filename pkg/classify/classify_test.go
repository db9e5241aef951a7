package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/asoforge/metascore/pkg/combo"
	"github.com/asoforge/metascore/pkg/rules"
	"github.com/asoforge/metascore/pkg/tokenize"
)

func TestRelevanceTableHit(t *testing.T) {
	c := NewRelevanceClassifier(map[string]int{"free": 3, "app": 0})
	assert.Equal(t, 3, c.Resolve("free"))
	assert.Equal(t, 0, c.Resolve("app"))
}

func TestRelevanceHeuristicFallback(t *testing.T) {
	c := NewRelevanceClassifier(nil)
	assert.Equal(t, 1, c.Resolve("tracker"), "unknown words default to tier 1")
	assert.Equal(t, 0, c.Resolve("2024"), "digit strings are tier 0")
}

func testPatterns() []rules.CategoryPatterns {
	return []rules.CategoryPatterns{
		{Category: IntentInformational, Patterns: []rules.PatternRule{
			{Pattern: "learn", Weight: 1.0},
			{Pattern: "lessons", Weight: 0.8},
		}},
		{Category: IntentTransactional, Patterns: []rules.PatternRule{
			{Pattern: "buy", Weight: 1.0},
			{Pattern: "free", Weight: 0.7},
		}},
	}
}

func TestMatcherBasic(t *testing.T) {
	m := NewMatcher(testPatterns())

	match := m.Classify("learn spanish lessons")
	assert.Equal(t, IntentInformational, match.Category)
	assert.InDelta(t, 1.0, match.Confidence, 1e-9, "1.0+0.8 over total 1.8")

	match = m.Classify("buy now")
	assert.Equal(t, IntentTransactional, match.Category)
	assert.InDelta(t, 1.0/1.7, match.Confidence, 1e-9)
}

func TestMatcherNoMatch(t *testing.T) {
	m := NewMatcher(testPatterns())
	match := m.Classify("weather radar")
	assert.Equal(t, CategoryNone, match.Category)
	assert.Zero(t, match.Confidence)
}

func TestMatcherWholeWords(t *testing.T) {
	m := NewMatcher(testPatterns())
	match := m.Classify("freedom trail")
	assert.Equal(t, CategoryNone, match.Category, "'free' must not match inside 'freedom'")
}

func TestMatcherTieBreakDeclarationOrder(t *testing.T) {
	cats := []rules.CategoryPatterns{
		{Category: "alpha", Patterns: []rules.PatternRule{{Pattern: "spark", Weight: 1.0}}},
		{Category: "beta", Patterns: []rules.PatternRule{{Pattern: "spark", Weight: 1.0}}},
	}
	m := NewMatcher(cats)
	match := m.Classify("spark")
	assert.Equal(t, "alpha", match.Category, "earlier declared category wins exact ties")
}

func TestMatcherEmpty(t *testing.T) {
	m := NewMatcher(nil)
	assert.Equal(t, CategoryNone, m.Classify("anything").Category)
}

func comboOf(text string) combo.Combo {
	return combo.Combo{Text: text, Field: tokenize.FieldTitle}
}

func TestIntentClassifierLabels(t *testing.T) {
	rs := &rules.RuleSet{IntentPatterns: testPatterns()}
	combos := []combo.Combo{comboOf("learn spanish"), comboOf("weather radar")}

	NewIntentClassifier(rs).Label(combos)

	assert.Equal(t, IntentInformational, combos[0].Intent)
	assert.Greater(t, combos[0].IntentConfidence, 0.0)
	assert.Equal(t, CategoryNone, combos[1].Intent)
}

func TestHookClassifierLabels(t *testing.T) {
	rs := &rules.RuleSet{HookPatterns: []rules.CategoryPatterns{
		{Category: HookEaseOfUse, Patterns: []rules.PatternRule{{Pattern: "easy", Weight: 1.0}}},
	}}
	combos := []combo.Combo{comboOf("easy budgeting")}

	NewHookClassifier(rs).Label(combos)
	assert.Equal(t, HookEaseOfUse, combos[0].Hook)
	assert.InDelta(t, 1.0, combos[0].HookConfidence, 1e-9)
}
