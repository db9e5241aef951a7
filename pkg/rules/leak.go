package rules

import (
	"fmt"
	"math"
	"sort"
)

// detectLeaks compares the post-merge effective weight distributions
// against the global-layer baseline and warns when an override layer moved
// a weight past the drift threshold without marking it intentional. Purely
// observational: warnings land in provenance and nothing is blocked.
func detectLeaks(rs *RuleSet, layers []Layer, threshold float64) {
	baseFam, baseKpi := baselineWeights(layers)
	detectFamilyLeaks(rs, layers, baseFam, threshold)
	detectKpiLeaks(rs, layers, baseKpi, threshold)
	detectFormulaLeaks(rs, layers, threshold)
}

// baselineWeights folds only the global layers, so direct weight-table
// overrides from higher layers drift against the pre-override state
// instead of against themselves.
func baselineWeights(layers []Layer) (map[string]float64, map[string]float64) {
	fam := make(map[string]float64)
	kpis := make(map[string]float64)
	for _, l := range layers {
		if l.Name != LayerGlobal || l.Fragment == nil {
			continue
		}
		for k, v := range l.Fragment.FamilyWeights {
			fam[k] = v
		}
		for k, v := range l.Fragment.KpiWeights {
			kpis[k] = v
		}
	}
	return fam, kpis
}

func detectFamilyLeaks(rs *RuleSet, layers []Layer, baseFam map[string]float64, threshold float64) {
	if len(baseFam) == 0 {
		return
	}

	baseline := normalize(baseFam)

	effective := make(map[string]float64, len(rs.FamilyWeights))
	for family := range rs.FamilyWeights {
		effective[family] = rs.EffectiveFamilyWeight(family)
	}
	effective = normalize(effective)

	for _, family := range sortedKeys(baseline) {
		base := baseline[family]
		if base <= 0 {
			continue
		}
		drift := math.Abs(effective[family]-base) / base
		if drift <= threshold {
			continue
		}
		layer := attributeFamily(layers, family)
		if layer == "" || layerMarksIntentional(layers, layer, family) {
			continue
		}
		rs.warn(WarnWeightLeak, layer, family,
			fmt.Sprintf("family %s weight drifted %.0f%% from baseline (%.3f -> %.3f) via %s layer",
				family, drift*100, base, effective[family], layer))
	}
}

// detectKpiLeaks checks the weight distribution within each KPI family,
// one family group at a time.
func detectKpiLeaks(rs *RuleSet, layers []Layer, baseKpi map[string]float64, threshold float64) {
	if len(baseKpi) == 0 {
		return
	}

	families := make(map[string]bool)
	for id := range baseKpi {
		families[familyOf(id)] = true
	}
	famKeys := make([]string, 0, len(families))
	for f := range families {
		famKeys = append(famKeys, f)
	}
	sort.Strings(famKeys)

	for _, family := range famKeys {
		base := make(map[string]float64)
		for id, w := range baseKpi {
			if familyOf(id) == family {
				base[id] = w
			}
		}
		eff := make(map[string]float64)
		for id := range rs.KpiWeights {
			if familyOf(id) == family {
				eff[id] = rs.EffectiveKpiWeight(id)
			}
		}
		base = normalize(base)
		eff = normalize(eff)

		for _, id := range sortedKeys(base) {
			b := base[id]
			if b <= 0 {
				continue
			}
			drift := math.Abs(eff[id]-b) / b
			if drift <= threshold {
				continue
			}
			layer := attributeKpi(layers, id)
			if layer == "" || layerMarksIntentional(layers, layer, id) {
				continue
			}
			rs.warn(WarnWeightLeak, layer, id,
				fmt.Sprintf("kpi %s weight drifted %.0f%% within family %s via %s layer",
					id, drift*100, family, layer))
		}
	}
}

func detectFormulaLeaks(rs *RuleSet, layers []Layer, threshold float64) {
	for _, spec := range rs.Formulas {
		mults := rs.FormulaMultipliers[spec.ID]
		if len(mults) == 0 || len(spec.Components) == 0 {
			continue
		}

		base := make(map[string]float64, len(spec.Components))
		eff := make(map[string]float64, len(spec.Components))
		for _, c := range spec.Components {
			base[c.ID] = c.Weight
			w := c.Weight
			if m, ok := mults[c.ID]; ok {
				w *= m
			}
			eff[c.ID] = w
		}
		base = normalize(base)
		eff = normalize(eff)

		for _, compID := range sortedKeys(base) {
			b := base[compID]
			if b <= 0 {
				continue
			}
			drift := math.Abs(eff[compID]-b) / b
			if drift <= threshold {
				continue
			}
			subject := spec.ID + "." + compID
			layer := attributeFormula(layers, spec.ID, compID)
			if layer == "" || layerMarksIntentional(layers, layer, subject) {
				continue
			}
			rs.warn(WarnWeightLeak, layer, subject,
				fmt.Sprintf("formula %s component %s weight drifted %.0f%% from baseline via %s layer",
					spec.ID, compID, drift*100, layer))
		}
	}
}

// attributeFamily names the highest-precedence override layer that touched
// the family's weight or multiplier. Global is the baseline, never blamed.
func attributeFamily(layers []Layer, family string) string {
	blamed := ""
	for _, l := range layers {
		if l.Name == LayerGlobal || l.Fragment == nil {
			continue
		}
		if _, ok := l.Fragment.FamilyMultipliers[family]; ok {
			blamed = l.Name
		}
		if _, ok := l.Fragment.FamilyWeights[family]; ok {
			blamed = l.Name
		}
	}
	return blamed
}

func attributeKpi(layers []Layer, id string) string {
	blamed := ""
	for _, l := range layers {
		if l.Name == LayerGlobal || l.Fragment == nil {
			continue
		}
		if _, ok := l.Fragment.KpiMultipliers[id]; ok {
			blamed = l.Name
		}
		if _, ok := l.Fragment.KpiWeights[id]; ok {
			blamed = l.Name
		}
	}
	return blamed
}

func attributeFormula(layers []Layer, formulaID, compID string) string {
	blamed := ""
	for _, l := range layers {
		if l.Name == LayerGlobal || l.Fragment == nil {
			continue
		}
		if comps, ok := l.Fragment.FormulaMultipliers[formulaID]; ok {
			if _, ok := comps[compID]; ok {
				blamed = l.Name
			}
		}
	}
	return blamed
}

func layerMarksIntentional(layers []Layer, layerName, subject string) bool {
	for _, l := range layers {
		if l.Name != layerName || l.Fragment == nil {
			continue
		}
		for _, s := range l.Fragment.Intentional {
			if s == subject {
				return true
			}
		}
	}
	return false
}

func normalize(m map[string]float64) map[string]float64 {
	total := sum(m)
	out := make(map[string]float64, len(m))
	if total <= 0 {
		return out
	}
	for k, v := range m {
		out[k] = v / total
	}
	return out
}

// sortedKeys keeps warning order deterministic across runs.
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
