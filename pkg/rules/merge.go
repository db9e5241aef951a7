package rules

import (
	"fmt"
	"math"
	"strings"
)

// WeightEpsilon is the tolerance for every weight-sum invariant.
const WeightEpsilon = 1e-3

// DefaultDriftThreshold is the relative weight drift above which the leak
// detector warns (40%).
const DefaultDriftThreshold = 0.40

// Layer pairs a fragment with the precedence level it came from.
type Layer struct {
	Name     string // LayerGlobal / LayerVertical / LayerMarket / LayerClient
	Fragment *Fragment
}

// Merge folds the ordered layer list into one effective RuleSet. The fold
// is deterministic: same layers in, byte-identical RuleSet out.
//
// Rules of the fold:
//   - scalar values: later non-zero layers overwrite
//   - maps: deep-merged key-by-key
//   - weight multipliers: compounded (multiplied), never replaced
//   - pattern lists: categories appended, same-pattern weight overwritten
//   - weight tables supplied by a later layer are validated against the
//     sum-to-one invariant first; an invalid table is discarded with a
//     warning and the last-valid state survives (InvalidOverride recovery)
func Merge(key string, layers []Layer, driftThreshold float64) *RuleSet {
	if driftThreshold <= 0 {
		driftThreshold = DefaultDriftThreshold
	}
	rs := &RuleSet{
		Key:                key,
		Relevance:          make(map[string]int),
		BrandTokens:        make(map[string]bool),
		Stopwords:          make(map[string]bool),
		FamilyWeights:      make(map[string]float64),
		KpiWeights:         make(map[string]float64),
		KpiMultipliers:     make(map[string]float64),
		FamilyMultipliers:  make(map[string]float64),
		FormulaMultipliers: make(map[string]map[string]float64),
		ComboMin:           2,
		ComboMax:           4,
	}

	for _, layer := range layers {
		if layer.Fragment == nil {
			continue
		}
		applyLayer(rs, layer.Name, layer.Fragment)
		rs.Provenance.LayersApplied = append(rs.Provenance.LayersApplied, layer.Name)
	}

	detectLeaks(rs, layers, driftThreshold)
	return rs
}

func applyLayer(rs *RuleSet, name string, f *Fragment) {
	for token, tier := range f.Relevance {
		rs.Relevance[strings.ToLower(token)] = clampTier(tier)
	}
	for _, b := range f.BrandTokens {
		rs.BrandTokens[strings.ToLower(b)] = true
	}
	for _, s := range f.Stopwords {
		rs.Stopwords[strings.ToLower(s)] = true
	}

	rs.IntentPatterns = mergePatterns(rs.IntentPatterns, f.IntentPatterns)
	rs.HookPatterns = mergePatterns(rs.HookPatterns, f.HookPatterns)

	applyFamilyWeights(rs, name, f)
	applyKpiWeights(rs, name, f)
	applyFormulas(rs, name, f)

	for id, m := range f.KpiMultipliers {
		rs.KpiMultipliers[id] = compound(rs.KpiMultipliers[id], m)
	}
	for id, m := range f.FamilyMultipliers {
		rs.FamilyMultipliers[id] = compound(rs.FamilyMultipliers[id], m)
	}
	for formula, comps := range f.FormulaMultipliers {
		if rs.FormulaMultipliers[formula] == nil {
			rs.FormulaMultipliers[formula] = make(map[string]float64)
		}
		for comp, m := range comps {
			rs.FormulaMultipliers[formula][comp] = compound(rs.FormulaMultipliers[formula][comp], m)
		}
	}

	rs.Templates = mergeTemplates(rs.Templates, f.Templates)

	if f.CharLimits != nil {
		if f.CharLimits.Title > 0 {
			rs.CharLimits.Title = f.CharLimits.Title
		}
		if f.CharLimits.Subtitle > 0 {
			rs.CharLimits.Subtitle = f.CharLimits.Subtitle
		}
	}
	if f.ComboMin > 0 {
		rs.ComboMin = f.ComboMin
	}
	if f.ComboMax > 0 {
		rs.ComboMax = f.ComboMax
	}
}

// applyFamilyWeights overlays a family weight table, rejecting overlays
// that would break the sum-to-one invariant.
func applyFamilyWeights(rs *RuleSet, layer string, f *Fragment) {
	if len(f.FamilyWeights) == 0 {
		return
	}
	candidate := make(map[string]float64, len(rs.FamilyWeights))
	for k, v := range rs.FamilyWeights {
		candidate[k] = v
	}
	for k, v := range f.FamilyWeights {
		candidate[k] = v
	}
	if !sumsToOne(candidate) {
		rs.warn(WarnInvalidOverride, layer, "family_weights",
			fmt.Sprintf("family weights from %s layer sum to %.4f, overlay discarded", layer, sum(candidate)))
		return
	}
	rs.FamilyWeights = candidate
}

// applyKpiWeights overlays KPI weights. The invariant holds per family
// (ids are namespaced "family.kpi"), so validation and discard happen per
// family group, not wholesale.
func applyKpiWeights(rs *RuleSet, layer string, f *Fragment) {
	if len(f.KpiWeights) == 0 {
		return
	}

	touched := make(map[string]bool)
	for id := range f.KpiWeights {
		touched[familyOf(id)] = true
	}

	for family := range touched {
		candidate := make(map[string]float64)
		for id, w := range rs.KpiWeights {
			if familyOf(id) == family {
				candidate[id] = w
			}
		}
		for id, w := range f.KpiWeights {
			if familyOf(id) == family {
				candidate[id] = w
			}
		}
		if !sumsToOne(candidate) {
			rs.warn(WarnInvalidOverride, layer, family,
				fmt.Sprintf("kpi weights for family %s from %s layer sum to %.4f, overlay discarded", family, layer, sum(candidate)))
			continue
		}
		for id, w := range candidate {
			rs.KpiWeights[id] = w
		}
	}
}

// applyFormulas overlays formula declarations by id. A weighted_sum whose
// components break the invariant is rejected, keeping the last-valid
// declaration.
func applyFormulas(rs *RuleSet, layer string, f *Fragment) {
	for _, spec := range f.Formulas {
		if spec.Type == FormulaWeightedSum && !componentsSumToOne(spec.Components) {
			rs.warn(WarnInvalidOverride, layer, spec.ID,
				fmt.Sprintf("formula %s component weights sum to %.4f, declaration discarded", spec.ID, componentSum(spec.Components)))
			continue
		}
		replaced := false
		for i := range rs.Formulas {
			if rs.Formulas[i].ID == spec.ID {
				rs.Formulas[i] = spec
				replaced = true
				break
			}
		}
		if !replaced {
			rs.Formulas = append(rs.Formulas, spec)
		}
	}
}

func mergePatterns(base, overlay []CategoryPatterns) []CategoryPatterns {
	for _, cat := range overlay {
		idx := -1
		for i := range base {
			if base[i].Category == cat.Category {
				idx = i
				break
			}
		}
		if idx == -1 {
			// Copy so a later merge never aliases the fragment's slice.
			cp := CategoryPatterns{Category: cat.Category, Patterns: append([]PatternRule(nil), cat.Patterns...)}
			base = append(base, cp)
			continue
		}
		for _, p := range cat.Patterns {
			replaced := false
			for i := range base[idx].Patterns {
				if base[idx].Patterns[i].Pattern == p.Pattern {
					base[idx].Patterns[i].Weight = p.Weight
					replaced = true
					break
				}
			}
			if !replaced {
				base[idx].Patterns = append(base[idx].Patterns, p)
			}
		}
	}
	return base
}

func mergeTemplates(base, overlay []Template) []Template {
	for _, t := range overlay {
		replaced := false
		for i := range base {
			if base[i].ID == t.ID {
				base[i] = t // keeps declaration position
				replaced = true
				break
			}
		}
		if !replaced {
			base = append(base, t)
		}
	}
	return base
}

func (rs *RuleSet) warn(code, layer, subject, msg string) {
	rs.Provenance.Warnings = append(rs.Provenance.Warnings, Warning{
		Code:    code,
		Layer:   layer,
		Subject: subject,
		Message: msg,
	})
}

func compound(existing, m float64) float64 {
	if existing == 0 {
		existing = 1.0
	}
	if m <= 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		return existing
	}
	return existing * m
}

func clampTier(tier int) int {
	if tier < 0 {
		return 0
	}
	if tier > 3 {
		return 3
	}
	return tier
}

// familyOf extracts the family prefix of a namespaced KPI id
// ("keyword_architecture.unique_keywords" -> "keyword_architecture").
func familyOf(kpiID string) string {
	if i := strings.IndexByte(kpiID, '.'); i > 0 {
		return kpiID[:i]
	}
	return kpiID
}

func sum(m map[string]float64) float64 {
	total := 0.0
	for _, v := range m {
		total += v
	}
	return total
}

// sumsToOne rejects negative weights outright: negatives can cancel to a
// valid-looking total while breaking the convex-combination property.
func sumsToOne(m map[string]float64) bool {
	for _, v := range m {
		if v < 0 {
			return false
		}
	}
	return math.Abs(sum(m)-1.0) <= WeightEpsilon
}

func componentSum(comps []FormulaComponent) float64 {
	total := 0.0
	for _, c := range comps {
		total += c.Weight
	}
	return total
}

func componentsSumToOne(comps []FormulaComponent) bool {
	for _, c := range comps {
		if c.Weight < 0 {
			return false
		}
	}
	return math.Abs(componentSum(comps)-1.0) <= WeightEpsilon
}
