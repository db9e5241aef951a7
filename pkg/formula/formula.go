// Package formula combines KPI and family values into derived scores. The
// registry validates declared formulas at load time and falls back to the
// built-in base definition on violation; evaluation itself can never fail.
package formula

import (
	"fmt"
	"math"

	"github.com/asoforge/metascore/pkg/rules"
)

// Well-known formula ids.
const (
	TitleElementScore    = "title_element_score"
	SubtitleElementScore = "subtitle_element_score"
	OverallScore         = "overall_score"
)

// CustomFunc computes a custom-typed formula from the value map.
type CustomFunc func(values map[string]float64) float64

// Registry holds the validated, effective formula list for one rule set.
type Registry struct {
	specs    []rules.FormulaSpec
	custom   map[string]CustomFunc
	warnings []rules.Warning
}

// baseFormulas mirrors the shipped global defaults; it is the fallback
// target when a declared formula fails validation.
func baseFormulas() []rules.FormulaSpec {
	return []rules.FormulaSpec{
		{
			ID:   TitleElementScore,
			Type: rules.FormulaWeightedSum,
			Components: []rules.FormulaComponent{
				{ID: "clarity_structure.title_char_usage", Weight: 0.25},
				{ID: "clarity_structure.title_word_count_fit", Weight: 0.10},
				{ID: "keyword_architecture.high_tier_token_share", Weight: 0.20},
				{ID: "keyword_architecture.title_leading_value", Weight: 0.15},
				{ID: "hook_strength.hook_coverage", Weight: 0.15},
				{ID: "brand_generic_balance.brand_position", Weight: 0.15},
			},
		},
		{
			ID:   SubtitleElementScore,
			Type: rules.FormulaWeightedSum,
			Components: []rules.FormulaComponent{
				{ID: "keyword_architecture.subtitle_incremental_value", Weight: 0.40},
				{ID: "clarity_structure.subtitle_char_usage", Weight: 0.20},
				{ID: "clarity_structure.subtitle_word_count_fit", Weight: 0.15},
				{ID: "hook_strength.subtitle_hook_coverage", Weight: 0.25},
			},
		},
		{
			ID:   OverallScore,
			Type: rules.FormulaWeightedSum,
			Components: []rules.FormulaComponent{
				{ID: TitleElementScore, Weight: 0.65},
				{ID: SubtitleElementScore, Weight: 0.35},
			},
		},
	}
}

// NewRegistry validates the rule set's declared formulas. A weighted_sum
// whose component weights do not sum to 1.0 +-0.001 is rejected: if a
// built-in base formula with the same id exists the base is used instead,
// otherwise the declaration is dropped. Either way a warning is recorded
// and construction succeeds.
func NewRegistry(rs *rules.RuleSet) *Registry {
	r := &Registry{custom: make(map[string]CustomFunc)}

	declared := rs.Formulas
	if len(declared) == 0 {
		declared = baseFormulas()
	}

	base := make(map[string]rules.FormulaSpec)
	for _, spec := range baseFormulas() {
		base[spec.ID] = spec
	}

	for _, spec := range declared {
		if valid(spec) {
			r.specs = append(r.specs, applyMultipliers(spec, rs))
			continue
		}
		if fallback, ok := base[spec.ID]; ok {
			r.specs = append(r.specs, fallback)
			r.warn(spec.ID, fmt.Sprintf("formula %s failed validation, using unmodified base formula", spec.ID))
		} else {
			r.warn(spec.ID, fmt.Sprintf("formula %s failed validation and has no base fallback, dropped", spec.ID))
		}
	}
	return r
}

// RegisterCustom installs the evaluator for a custom-typed formula id.
func (r *Registry) RegisterCustom(id string, fn CustomFunc) {
	r.custom[id] = fn
}

// Warnings returns validation warnings for provenance.
func (r *Registry) Warnings() []rules.Warning {
	return r.warnings
}

// Specs returns the effective formula list in declaration order.
func (r *Registry) Specs() []rules.FormulaSpec {
	return r.specs
}

// Evaluate resolves every formula against the value map, in declaration
// order so later formulas may reference earlier results. The returned map
// contains only the formula values; missing components read as 0.
func (r *Registry) Evaluate(values map[string]float64) map[string]float64 {
	// Work on a copy so the caller's map stays untouched.
	scope := make(map[string]float64, len(values)+len(r.specs))
	for k, v := range values {
		scope[k] = v
	}

	out := make(map[string]float64, len(r.specs))
	for _, spec := range r.specs {
		v := r.evaluate(spec, scope)
		scope[spec.ID] = v
		out[spec.ID] = v
	}
	return out
}

func (r *Registry) evaluate(spec rules.FormulaSpec, scope map[string]float64) float64 {
	switch spec.Type {
	case rules.FormulaWeightedSum:
		total, sum := 0.0, 0.0
		for _, c := range spec.Components {
			total += c.Weight
			sum += c.Weight * scope[c.ID]
		}
		if total <= 0 {
			return 0
		}
		return clamp01(sum / total)

	case rules.FormulaRatio:
		if len(spec.Components) < 2 {
			return 0
		}
		den := scope[spec.Components[1].ID]
		if den <= 0 {
			return 0
		}
		return clamp01(scope[spec.Components[0].ID] / den)

	case rules.FormulaThresholdBased:
		if len(spec.Components) == 0 {
			return 0
		}
		v := scope[spec.Components[0].ID]
		min := spec.Params["min"]
		if min <= 0 {
			return clamp01(v)
		}
		if v >= min {
			return 1
		}
		return clamp01(v / min)

	case rules.FormulaCustom:
		if fn, ok := r.custom[spec.ID]; ok {
			return clamp01(fn(scope))
		}
		return 0

	default:
		return 0
	}
}

// applyMultipliers compounds the rule-set component multipliers into the
// declared weights, then re-normalizes weighted sums so the invariant
// survives the override.
func applyMultipliers(spec rules.FormulaSpec, rs *rules.RuleSet) rules.FormulaSpec {
	mults := rs.FormulaMultipliers[spec.ID]
	if len(mults) == 0 {
		return spec
	}

	out := spec
	out.Components = make([]rules.FormulaComponent, len(spec.Components))
	total := 0.0
	for i, c := range spec.Components {
		w := c.Weight
		if m, ok := mults[c.ID]; ok && m > 0 && !math.IsNaN(m) {
			w *= m
		}
		out.Components[i] = rules.FormulaComponent{ID: c.ID, Weight: w}
		total += w
	}
	if spec.Type == rules.FormulaWeightedSum && total > 0 {
		for i := range out.Components {
			out.Components[i].Weight /= total
		}
	}
	return out
}

func valid(spec rules.FormulaSpec) bool {
	if spec.Type != rules.FormulaWeightedSum {
		return true
	}
	total := 0.0
	for _, c := range spec.Components {
		if c.Weight < 0 {
			return false
		}
		total += c.Weight
	}
	return math.Abs(total-1.0) <= rules.WeightEpsilon
}

func (r *Registry) warn(subject, msg string) {
	r.warnings = append(r.warnings, rules.Warning{
		Code:    rules.WarnFormulaFallback,
		Layer:   rules.LayerGlobal,
		Subject: subject,
		Message: msg,
	})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
