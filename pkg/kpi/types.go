// Package kpi computes the individual metadata quality indicators. Every
// KPI is a pure function over tokens, combos and classifications,
// normalized to [0,1]; missing inputs evaluate to 0, never to an error.
package kpi

import (
	"github.com/asoforge/metascore/pkg/combo"
	"github.com/asoforge/metascore/pkg/rules"
	"github.com/asoforge/metascore/pkg/tokenize"
)

// MetricType describes how a KPI value is derived. Admin metadata only;
// computation never branches on it.
type MetricType string

const (
	MetricRatio     MetricType = "ratio"
	MetricCount     MetricType = "count"
	MetricThreshold MetricType = "threshold"
)

// Direction tells consumers which way is good.
type Direction string

const (
	HigherIsBetter Direction = "higher_is_better"
	LowerIsBetter  Direction = "lower_is_better"
)

// Family ids.
const (
	FamilyClarity = "clarity_structure"
	FamilyKeyword = "keyword_architecture"
	FamilyHook    = "hook_strength"
	FamilyBrand   = "brand_generic_balance"
	FamilyPsych   = "psychology_alignment"
	FamilyIntent  = "intent_alignment"
)

// Inputs is the read-only snapshot one evaluation computes over.
type Inputs struct {
	Title    string
	Subtitle string

	TitleTokens    []tokenize.Token
	SubtitleTokens []tokenize.Token
	Combos         []combo.Combo

	Rules *rules.RuleSet
}

type metricFunc func(*Inputs) float64

// Definition declares one KPI. Weight is the in-family default, overridden
// and re-normalized through the rule set. Label and bounds exist for admin
// UI description only.
type Definition struct {
	ID        string     `json:"id"`
	Family    string     `json:"family"`
	Weight    float64    `json:"weight"`
	Metric    MetricType `json:"metric"`
	Direction Direction  `json:"direction"`
	Label     string     `json:"label"`

	fn metricFunc
}

// FamilyDefinition declares a KPI family and its default weight in the
// overall distribution. Family weights sum to 1.0 and the rules layer
// keeps that invariant through every override.
type FamilyDefinition struct {
	ID     string  `json:"id"`
	Weight float64 `json:"weight"`
	Label  string  `json:"label"`
}

// Families returns the built-in family set in stable order.
func Families() []FamilyDefinition {
	return []FamilyDefinition{
		{ID: FamilyClarity, Weight: 0.20, Label: "Clarity & Structure"},
		{ID: FamilyKeyword, Weight: 0.25, Label: "Keyword Architecture"},
		{ID: FamilyHook, Weight: 0.15, Label: "Hook Strength"},
		{ID: FamilyBrand, Weight: 0.10, Label: "Brand / Generic Balance"},
		{ID: FamilyPsych, Weight: 0.15, Label: "Psychology Alignment"},
		{ID: FamilyIntent, Weight: 0.15, Label: "Intent Alignment"},
	}
}

// Catalogue returns every built-in KPI in stable declaration order. Ids
// are namespaced "family.kpi" so weight tables can be validated per
// family.
func Catalogue() []Definition {
	return []Definition{
		// clarity_structure
		{ID: "clarity_structure.title_char_usage", Family: FamilyClarity, Weight: 0.20, Metric: MetricRatio, Direction: HigherIsBetter, Label: "Title character usage", fn: titleCharUsage},
		{ID: "clarity_structure.subtitle_char_usage", Family: FamilyClarity, Weight: 0.15, Metric: MetricRatio, Direction: HigherIsBetter, Label: "Subtitle character usage", fn: subtitleCharUsage},
		{ID: "clarity_structure.title_word_count_fit", Family: FamilyClarity, Weight: 0.15, Metric: MetricThreshold, Direction: HigherIsBetter, Label: "Title word count fit", fn: titleWordCountFit},
		{ID: "clarity_structure.subtitle_word_count_fit", Family: FamilyClarity, Weight: 0.10, Metric: MetricThreshold, Direction: HigherIsBetter, Label: "Subtitle word count fit", fn: subtitleWordCountFit},
		{ID: "clarity_structure.stopword_ratio", Family: FamilyClarity, Weight: 0.15, Metric: MetricRatio, Direction: LowerIsBetter, Label: "Stopword share", fn: stopwordRatio},
		{ID: "clarity_structure.avg_token_length_fit", Family: FamilyClarity, Weight: 0.15, Metric: MetricThreshold, Direction: HigherIsBetter, Label: "Average token length fit", fn: avgTokenLengthFit},
		{ID: "clarity_structure.punctuation_noise", Family: FamilyClarity, Weight: 0.10, Metric: MetricRatio, Direction: LowerIsBetter, Label: "Punctuation noise", fn: punctuationNoise},

		// keyword_architecture
		{ID: "keyword_architecture.unique_keywords", Family: FamilyKeyword, Weight: 0.20, Metric: MetricCount, Direction: HigherIsBetter, Label: "Unique high-value keywords", fn: uniqueKeywords},
		{ID: "keyword_architecture.high_tier_token_share", Family: FamilyKeyword, Weight: 0.15, Metric: MetricRatio, Direction: HigherIsBetter, Label: "High-tier token share", fn: highTierTokenShare},
		{ID: "keyword_architecture.tier3_presence", Family: FamilyKeyword, Weight: 0.10, Metric: MetricThreshold, Direction: HigherIsBetter, Label: "Top-tier keyword present", fn: tier3Presence},
		{ID: "keyword_architecture.combo_coverage", Family: FamilyKeyword, Weight: 0.10, Metric: MetricRatio, Direction: HigherIsBetter, Label: "Valuable combo coverage", fn: comboCoverage},
		{ID: "keyword_architecture.duplicate_token_waste", Family: FamilyKeyword, Weight: 0.10, Metric: MetricRatio, Direction: LowerIsBetter, Label: "Duplicate token waste", fn: duplicateTokenWaste},
		{ID: "keyword_architecture.subtitle_incremental_value", Family: FamilyKeyword, Weight: 0.20, Metric: MetricRatio, Direction: HigherIsBetter, Label: "Subtitle incremental value", fn: subtitleIncrementalValue},
		{ID: "keyword_architecture.title_leading_value", Family: FamilyKeyword, Weight: 0.15, Metric: MetricRatio, Direction: HigherIsBetter, Label: "Title leading keyword value", fn: titleLeadingValue},

		// hook_strength
		{ID: "hook_strength.hook_coverage", Family: FamilyHook, Weight: 0.25, Metric: MetricRatio, Direction: HigherIsBetter, Label: "Hooked combo share", fn: hookCoverage},
		{ID: "hook_strength.hook_diversity", Family: FamilyHook, Weight: 0.20, Metric: MetricRatio, Direction: HigherIsBetter, Label: "Hook category diversity", fn: hookDiversity},
		{ID: "hook_strength.outcome_hook_presence", Family: FamilyHook, Weight: 0.20, Metric: MetricThreshold, Direction: HigherIsBetter, Label: "Outcome hook present", fn: outcomeHookPresence},
		{ID: "hook_strength.trust_hook_presence", Family: FamilyHook, Weight: 0.10, Metric: MetricThreshold, Direction: HigherIsBetter, Label: "Trust hook present", fn: trustHookPresence},
		{ID: "hook_strength.subtitle_hook_coverage", Family: FamilyHook, Weight: 0.10, Metric: MetricRatio, Direction: HigherIsBetter, Label: "Subtitle hook coverage", fn: subtitleHookCoverage},
		{ID: "hook_strength.hook_confidence_avg", Family: FamilyHook, Weight: 0.15, Metric: MetricRatio, Direction: HigherIsBetter, Label: "Average hook confidence", fn: hookConfidenceAvg},

		// brand_generic_balance
		{ID: "brand_generic_balance.brand_token_share", Family: FamilyBrand, Weight: 0.25, Metric: MetricRatio, Direction: HigherIsBetter, Label: "Brand token balance", fn: brandTokenShare},
		{ID: "brand_generic_balance.generic_combo_share", Family: FamilyBrand, Weight: 0.35, Metric: MetricRatio, Direction: HigherIsBetter, Label: "Generic combo share", fn: genericComboShare},
		{ID: "brand_generic_balance.branded_combo_share", Family: FamilyBrand, Weight: 0.15, Metric: MetricRatio, Direction: LowerIsBetter, Label: "Branded combo share", fn: brandedComboShare},
		{ID: "brand_generic_balance.brand_position", Family: FamilyBrand, Weight: 0.25, Metric: MetricRatio, Direction: HigherIsBetter, Label: "Brand position", fn: brandPosition},

		// psychology_alignment
		{ID: "psychology_alignment.psych_category_spread", Family: FamilyPsych, Weight: 0.30, Metric: MetricRatio, Direction: HigherIsBetter, Label: "Psychology category spread", fn: psychCategorySpread},
		{ID: "psychology_alignment.urgency_balance", Family: FamilyPsych, Weight: 0.20, Metric: MetricThreshold, Direction: HigherIsBetter, Label: "Urgency balance", fn: urgencyBalance},
		{ID: "psychology_alignment.social_proof_presence", Family: FamilyPsych, Weight: 0.25, Metric: MetricThreshold, Direction: HigherIsBetter, Label: "Social proof present", fn: socialProofPresence},
		{ID: "psychology_alignment.ease_signal_presence", Family: FamilyPsych, Weight: 0.25, Metric: MetricThreshold, Direction: HigherIsBetter, Label: "Ease-of-use signal present", fn: easeSignalPresence},

		// intent_alignment
		{ID: "intent_alignment.commercial_intent_share", Family: FamilyIntent, Weight: 0.25, Metric: MetricRatio, Direction: HigherIsBetter, Label: "Commercial intent share", fn: commercialIntentShare},
		{ID: "intent_alignment.transactional_presence", Family: FamilyIntent, Weight: 0.20, Metric: MetricThreshold, Direction: HigherIsBetter, Label: "Transactional phrase present", fn: transactionalPresence},
		{ID: "intent_alignment.informational_balance", Family: FamilyIntent, Weight: 0.20, Metric: MetricThreshold, Direction: HigherIsBetter, Label: "Informational balance", fn: informationalBalance},
		{ID: "intent_alignment.intent_confidence_avg", Family: FamilyIntent, Weight: 0.20, Metric: MetricRatio, Direction: HigherIsBetter, Label: "Average intent confidence", fn: intentConfidenceAvg},
		{ID: "intent_alignment.navigational_penalty", Family: FamilyIntent, Weight: 0.15, Metric: MetricRatio, Direction: LowerIsBetter, Label: "Navigational share", fn: navigationalPenalty},
	}
}
