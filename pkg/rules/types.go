// Package rules resolves the effective scoring configuration for one
// evaluation by deep-merging four ordered layers: global defaults, vertical
// (app category), market (locale) and per-client overrides. The merged
// RuleSet is an immutable snapshot passed by reference into every pipeline
// stage.
package rules

// Layer names, in precedence order (lowest to highest).
const (
	LayerGlobal   = "global"
	LayerVertical = "vertical"
	LayerMarket   = "market"
	LayerClient   = "client"
)

// PatternRule is one weighted match pattern inside a category.
type PatternRule struct {
	Pattern string  `yaml:"pattern" json:"pattern"`
	Weight  float64 `yaml:"weight" json:"weight"`
}

// CategoryPatterns is an ordered pattern list for one intent or hook
// category. Declaration order is significant: it is the classifier
// tie-break.
type CategoryPatterns struct {
	Category string        `yaml:"category" json:"category"`
	Patterns []PatternRule `yaml:"patterns" json:"patterns"`
}

// FormulaComponent is one (component, weight) pair of a formula.
type FormulaComponent struct {
	ID     string  `yaml:"id" json:"id"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// FormulaSpec declares a derived score. Components reference KPI ids,
// family ids or earlier formula ids.
type FormulaSpec struct {
	ID         string             `yaml:"id" json:"id"`
	Type       string             `yaml:"type" json:"type"` // weighted_sum / ratio / threshold_based / custom
	Components []FormulaComponent `yaml:"components" json:"components"`
	Params     map[string]float64 `yaml:"params,omitempty" json:"params,omitempty"`
}

// Formula types.
const (
	FormulaWeightedSum    = "weighted_sum"
	FormulaRatio          = "ratio"
	FormulaThresholdBased = "threshold_based"
	FormulaCustom         = "custom"
)

// Template declares one recommendation: a trigger predicate over the
// KPI/formula value map plus a message with {var} interpolation slots.
type Template struct {
	ID       string   `yaml:"id" json:"id"`
	Severity string   `yaml:"severity" json:"severity"` // critical / warning / info
	Metric   string   `yaml:"metric" json:"metric"`
	Below    *float64 `yaml:"below,omitempty" json:"below,omitempty"`
	Above    *float64 `yaml:"above,omitempty" json:"above,omitempty"`
	// Requires gates the trigger: when set, that metric must be positive
	// for the template to fire at all (e.g. subtitle-scoped templates
	// require subtitle_present).
	Requires string  `yaml:"requires,omitempty" json:"requires,omitempty"`
	Weight   float64 `yaml:"weight" json:"weight"` // impact scale 0-1
	Message  string  `yaml:"message" json:"message"`
}

// CharLimits holds per-field character budgets for the active market.
type CharLimits struct {
	Title    int `yaml:"title" json:"title"`
	Subtitle int `yaml:"subtitle" json:"subtitle"`
}

// Fragment is one layer's partial contribution. Every field is optional;
// unknown document keys are ignored on decode, per the defensive contract
// with the admin-configuration collaborator.
type Fragment struct {
	Relevance   map[string]int `yaml:"relevance,omitempty" json:"relevance,omitempty"`
	BrandTokens []string       `yaml:"brand_tokens,omitempty" json:"brand_tokens,omitempty"`
	Stopwords   []string       `yaml:"stopwords,omitempty" json:"stopwords,omitempty"`

	IntentPatterns []CategoryPatterns `yaml:"intent_patterns,omitempty" json:"intent_patterns,omitempty"`
	HookPatterns   []CategoryPatterns `yaml:"hook_patterns,omitempty" json:"hook_patterns,omitempty"`

	// Baselines; normally global-only. A later layer supplying one of
	// these overwrites key-by-key, subject to the weight-sum invariant.
	FamilyWeights map[string]float64 `yaml:"family_weights,omitempty" json:"family_weights,omitempty"`
	KpiWeights    map[string]float64 `yaml:"kpi_weights,omitempty" json:"kpi_weights,omitempty"`
	Formulas      []FormulaSpec      `yaml:"formulas,omitempty" json:"formulas,omitempty"`

	// Multipliers compound across layers (x1.3 then x0.9 = x1.17) so each
	// layer's intent stays legible.
	KpiMultipliers     map[string]float64            `yaml:"kpi_multipliers,omitempty" json:"kpi_multipliers,omitempty"`
	FamilyMultipliers  map[string]float64            `yaml:"family_multipliers,omitempty" json:"family_multipliers,omitempty"`
	FormulaMultipliers map[string]map[string]float64 `yaml:"formula_multipliers,omitempty" json:"formula_multipliers,omitempty"`

	Templates []Template `yaml:"templates,omitempty" json:"templates,omitempty"`

	CharLimits *CharLimits `yaml:"char_limits,omitempty" json:"char_limits,omitempty"`
	ComboMin   int         `yaml:"combo_min,omitempty" json:"combo_min,omitempty"`
	ComboMax   int         `yaml:"combo_max,omitempty" json:"combo_max,omitempty"`

	// Intentional lists drift subjects this layer is expected to move by
	// more than the leak threshold; they are exempt from leak warnings.
	Intentional []string `yaml:"intentional,omitempty" json:"intentional,omitempty"`
}

// Warning is a recoverable condition recorded during resolution. Warnings
// never block an evaluation.
type Warning struct {
	Code    string `json:"code"`
	Layer   string `json:"layer"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Warning codes.
const (
	WarnWeightLeak      = "weight_leak"
	WarnInvalidOverride = "invalid_override"
	WarnUnknownLayer    = "unknown_layer"
	WarnBadFragment     = "bad_fragment"
	WarnFormulaFallback = "formula_fallback"
)

// Provenance records which layers produced the merged RuleSet and every
// warning raised on the way.
type Provenance struct {
	Vertical      string    `json:"vertical,omitempty"`
	Market        string    `json:"market,omitempty"`
	Client        bool      `json:"client"`
	LayersApplied []string  `json:"layersApplied"`
	Warnings      []Warning `json:"warnings,omitempty"`
}

// RuleSet is the fully merged, effective configuration for one evaluation.
// Read-only after construction; the engine never mutates it and tolerates
// being handed a fresh one per call or a cached one interchangeably.
type RuleSet struct {
	Key string `json:"key"` // vertical|market|client resolution key

	Relevance   map[string]int  `json:"relevance"`
	BrandTokens map[string]bool `json:"brandTokens"`
	Stopwords   map[string]bool `json:"stopwords"`

	IntentPatterns []CategoryPatterns `json:"intentPatterns"`
	HookPatterns   []CategoryPatterns `json:"hookPatterns"`

	FamilyWeights map[string]float64 `json:"familyWeights"`
	KpiWeights    map[string]float64 `json:"kpiWeights"`
	Formulas      []FormulaSpec      `json:"formulas"`

	KpiMultipliers     map[string]float64            `json:"kpiMultipliers"`
	FamilyMultipliers  map[string]float64            `json:"familyMultipliers"`
	FormulaMultipliers map[string]map[string]float64 `json:"formulaMultipliers"`

	Templates []Template `json:"templates"`

	CharLimits CharLimits `json:"charLimits"`
	ComboMin   int        `json:"comboMin"`
	ComboMax   int        `json:"comboMax"`

	Provenance Provenance `json:"provenance"`
}

// EffectiveFamilyWeight returns the family weight after multipliers,
// before re-normalization.
func (rs *RuleSet) EffectiveFamilyWeight(family string) float64 {
	w := rs.FamilyWeights[family]
	if m, ok := rs.FamilyMultipliers[family]; ok {
		w *= m
	}
	return w
}

// EffectiveKpiWeight returns the KPI weight after multipliers, before
// re-normalization within its family.
func (rs *RuleSet) EffectiveKpiWeight(kpiID string) float64 {
	w := rs.KpiWeights[kpiID]
	if m, ok := rs.KpiMultipliers[kpiID]; ok {
		w *= m
	}
	return w
}
