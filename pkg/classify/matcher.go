package classify

import (
	ahocorasick "github.com/petar-dambovaliev/aho-corasick"

	"github.com/asoforge/metascore/pkg/rules"
)

// CategoryNone is returned when no pattern matches. It contributes zero
// downstream instead of erroring.
const CategoryNone = "none"

// Match is one classification outcome.
type Match struct {
	Category   string
	Confidence float64 // 0-1
}

type patternMeta struct {
	category string
	weight   float64
}

// Matcher classifies short phrases against weighted category pattern
// lists. All patterns of all categories compile into a single Aho-Corasick
// automaton, so one scan covers every category.
//
// Tie-break on equal weighted score: the category declared earlier in the
// rule data wins. Deterministic and order-significant on purpose.
type Matcher struct {
	ac       ahocorasick.AhoCorasick
	meta     []patternMeta      // indexed by automaton pattern id
	order    []string           // categories in declaration order
	catTotal map[string]float64 // sum of declared weights per category
}

// NewMatcher compiles the pattern lists. An empty list yields a matcher
// that classifies everything as CategoryNone.
func NewMatcher(cats []rules.CategoryPatterns) *Matcher {
	m := &Matcher{catTotal: make(map[string]float64)}

	var patterns []string
	for _, cat := range cats {
		m.order = append(m.order, cat.Category)
		for _, p := range cat.Patterns {
			patterns = append(patterns, p.Pattern)
			m.meta = append(m.meta, patternMeta{category: cat.Category, weight: p.Weight})
			m.catTotal[cat.Category] += p.Weight
		}
	}

	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  true,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
	})
	m.ac = builder.Build(patterns)
	return m
}

// Classify scores a normalized phrase against every category and returns
// the best match. Score per category is the sum of matched pattern
// weights; confidence normalizes by the category's total declared weight.
func (m *Matcher) Classify(text string) Match {
	if len(m.meta) == 0 || text == "" {
		return Match{Category: CategoryNone}
	}

	scores := make(map[string]float64)
	for _, hit := range m.ac.FindAll(text) {
		pm := m.meta[hit.Pattern()]
		scores[pm.category] += pm.weight
	}
	if len(scores) == 0 {
		return Match{Category: CategoryNone}
	}

	best := ""
	bestScore := 0.0
	for _, cat := range m.order {
		s, ok := scores[cat]
		if !ok {
			continue
		}
		// Strictly-greater keeps the earlier-declared category on ties.
		if best == "" || s > bestScore {
			best = cat
			bestScore = s
		}
	}

	conf := 0.0
	if total := m.catTotal[best]; total > 0 {
		conf = bestScore / total
		if conf > 1 {
			conf = 1
		}
	}
	return Match{Category: best, Confidence: conf}
}
