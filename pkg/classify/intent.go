package classify

import (
	"github.com/asoforge/metascore/pkg/combo"
	"github.com/asoforge/metascore/pkg/rules"
)

// Intent categories.
const (
	IntentInformational = "informational"
	IntentCommercial    = "commercial"
	IntentTransactional = "transactional"
	IntentNavigational  = "navigational"
)

// Hook categories.
const (
	HookOutcomeBenefit  = "outcome_benefit"
	HookTrustSafety     = "trust_safety"
	HookEaseOfUse       = "ease_of_use"
	HookSocialProof     = "social_proof"
	HookUrgencyScarcity = "urgency_scarcity"
	HookNovelty         = "novelty"
)

// IntentClassifier labels combos with a search-intent category.
type IntentClassifier struct {
	m *Matcher
}

// NewIntentClassifier compiles the merged intent pattern lists.
func NewIntentClassifier(rs *rules.RuleSet) *IntentClassifier {
	return &IntentClassifier{m: NewMatcher(rs.IntentPatterns)}
}

// Label fills Intent and IntentConfidence on every combo in place.
func (c *IntentClassifier) Label(combos []combo.Combo) {
	for i := range combos {
		match := c.m.Classify(combos[i].Text)
		combos[i].Intent = match.Category
		combos[i].IntentConfidence = match.Confidence
	}
}

// HookClassifier labels combos with a psychological-hook category.
type HookClassifier struct {
	m *Matcher
}

// NewHookClassifier compiles the merged hook pattern lists.
func NewHookClassifier(rs *rules.RuleSet) *HookClassifier {
	return &HookClassifier{m: NewMatcher(rs.HookPatterns)}
}

// Label fills Hook and HookConfidence on every combo in place.
func (c *HookClassifier) Label(combos []combo.Combo) {
	for i := range combos {
		match := c.m.Classify(combos[i].Text)
		combos[i].Hook = match.Category
		combos[i].HookConfidence = match.Confidence
	}
}
