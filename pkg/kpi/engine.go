package kpi

import (
	"math"

	"github.com/asoforge/metascore/pkg/rules"
)

// Result holds every computed KPI and the family sub-scores. Values are
// normalized [0,1]; Display is the 0-100 presentation score.
type Result struct {
	Values   map[string]float64 `json:"values"`
	Display  map[string]int     `json:"display"`
	Families map[string]float64 `json:"families"`
}

// Engine evaluates the KPI catalogue. Stateless: one Engine may serve any
// number of concurrent evaluations.
type Engine struct {
	defs     []Definition
	families []FamilyDefinition
}

// NewEngine builds an engine over the built-in catalogue.
func NewEngine() *Engine {
	return &Engine{defs: Catalogue(), families: Families()}
}

// Definitions exposes the catalogue for admin/description surfaces.
func (e *Engine) Definitions() []Definition {
	return e.defs
}

// Compute runs every KPI and aggregates family sub-scores. KPI weights
// come from the rule set when present (already invariant-checked there),
// multiplied by the layer multipliers, then re-normalized per family so
// each family still sums to 1.0 after overrides.
func (e *Engine) Compute(in *Inputs) *Result {
	res := &Result{
		Values:   make(map[string]float64, len(e.defs)),
		Display:  make(map[string]int, len(e.defs)),
		Families: make(map[string]float64, len(e.families)),
	}

	for _, def := range e.defs {
		v := clamp01(def.fn(in))
		res.Values[def.ID] = v
		res.Display[def.ID] = int(math.Round(v * 100))
	}

	for _, fam := range e.families {
		res.Families[fam.ID] = e.familyScore(fam.ID, in.Rules, res.Values)
	}
	return res
}

// familyScore is the weighted sum of the family's oriented KPI values.
// Lower-is-better KPIs contribute (1 - value) so a low stopword ratio
// scores high.
func (e *Engine) familyScore(family string, rs *rules.RuleSet, values map[string]float64) float64 {
	total := 0.0
	weights := make(map[string]float64)
	for _, def := range e.defs {
		if def.Family != family {
			continue
		}
		w := e.effectiveWeight(def, rs)
		weights[def.ID] = w
		total += w
	}
	if total <= 0 {
		return 0
	}

	score := 0.0
	for _, def := range e.defs {
		if def.Family != family {
			continue
		}
		v := values[def.ID]
		if def.Direction == LowerIsBetter {
			v = 1 - v
		}
		score += (weights[def.ID] / total) * v
	}
	return clamp01(score)
}

func (e *Engine) effectiveWeight(def Definition, rs *rules.RuleSet) float64 {
	w := def.Weight
	if rs != nil {
		if rw, ok := rs.KpiWeights[def.ID]; ok {
			w = rw
		}
		if m, ok := rs.KpiMultipliers[def.ID]; ok && m > 0 {
			w *= m
		}
	}
	if w < 0 {
		return 0
	}
	return w
}

// FamilyWeight resolves the effective, re-normalized weight of one family
// for overall aggregation: rule-set weights and multipliers applied, then
// normalized across all families.
func (e *Engine) FamilyWeight(family string, rs *rules.RuleSet) float64 {
	total := 0.0
	var mine float64
	for _, fam := range e.families {
		w := fam.Weight
		if rs != nil {
			if rw, ok := rs.FamilyWeights[fam.ID]; ok {
				w = rw
			}
			if m, ok := rs.FamilyMultipliers[fam.ID]; ok && m > 0 {
				w *= m
			}
		}
		if w < 0 {
			w = 0
		}
		total += w
		if fam.ID == family {
			mine = w
		}
	}
	if total <= 0 {
		return 0
	}
	return mine / total
}
