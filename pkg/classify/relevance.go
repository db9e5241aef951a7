// Package classify labels tokens and combos: relevance tiers for tokens,
// intent and psychological-hook categories for combos. All classifiers are
// data-driven from the merged rule set; new verticals mean new rule data,
// not new code.
package classify

import "strings"

// RelevanceClassifier resolves a token's relevance tier from the merged
// relevance table. Layer precedence (client > market > vertical > global)
// is already baked into the table by the rules merge; anything the table
// misses gets the heuristic fallback.
type RelevanceClassifier struct {
	table map[string]int
}

// NewRelevanceClassifier wraps a merged relevance table.
func NewRelevanceClassifier(table map[string]int) *RelevanceClassifier {
	return &RelevanceClassifier{table: table}
}

// Resolve returns the tier for a normalized token. Fallback heuristic:
// plain words default to tier 1, pure digit strings to tier 0.
func (c *RelevanceClassifier) Resolve(token string) int {
	if tier, ok := c.table[token]; ok {
		return tier
	}
	if isDigits(token) {
		return 0
	}
	return 1
}

func isDigits(s string) bool {
	if s == "" {
		return true
	}
	return strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) == -1
}
