package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asoforge/metascore/pkg/rules"
)

func TestOverallWeighting(t *testing.T) {
	r := NewRegistry(&rules.RuleSet{})

	values := map[string]float64{
		"clarity_structure.title_char_usage":              1.0,
		"clarity_structure.title_word_count_fit":          1.0,
		"keyword_architecture.high_tier_token_share":      1.0,
		"keyword_architecture.title_leading_value":        1.0,
		"hook_strength.hook_coverage":                     1.0,
		"brand_generic_balance.brand_position":            1.0,
		"keyword_architecture.subtitle_incremental_value": 0.0,
		"clarity_structure.subtitle_char_usage":           0.0,
		"clarity_structure.subtitle_word_count_fit":       0.0,
		"hook_strength.subtitle_hook_coverage":            0.0,
	}
	out := r.Evaluate(values)

	assert.InDelta(t, 1.0, out[TitleElementScore], 1e-9)
	assert.InDelta(t, 0.0, out[SubtitleElementScore], 1e-9)
	assert.InDelta(t, 0.65, out[OverallScore], 1e-9, "overall = 0.65*title + 0.35*subtitle")
}

func TestInvalidWeightedSumFallsBackToBase(t *testing.T) {
	rs := &rules.RuleSet{
		Formulas: []rules.FormulaSpec{{
			ID:   OverallScore,
			Type: rules.FormulaWeightedSum,
			Components: []rules.FormulaComponent{
				{ID: TitleElementScore, Weight: 0.9},
				{ID: SubtitleElementScore, Weight: 0.9},
			},
		}},
	}
	r := NewRegistry(rs)

	require.Len(t, r.Warnings(), 1)
	assert.Equal(t, rules.WarnFormulaFallback, r.Warnings()[0].Code)
	assert.Equal(t, OverallScore, r.Warnings()[0].Subject)

	out := r.Evaluate(map[string]float64{
		TitleElementScore:    1.0,
		SubtitleElementScore: 0.0,
	})
	assert.InDelta(t, 0.65, out[OverallScore], 1e-9, "base 0.65/0.35 split survives the bad override")
}

func TestInvalidUnknownFormulaDropped(t *testing.T) {
	rs := &rules.RuleSet{
		Formulas: []rules.FormulaSpec{{
			ID:   "bogus_score",
			Type: rules.FormulaWeightedSum,
			Components: []rules.FormulaComponent{
				{ID: "whatever", Weight: 0.5},
			},
		}},
	}
	r := NewRegistry(rs)

	require.Len(t, r.Warnings(), 1)
	_, ok := r.Evaluate(map[string]float64{})["bogus_score"]
	assert.False(t, ok)
}

func TestMultipliersRenormalize(t *testing.T) {
	rs := &rules.RuleSet{
		Formulas: []rules.FormulaSpec{{
			ID:   "blend",
			Type: rules.FormulaWeightedSum,
			Components: []rules.FormulaComponent{
				{ID: "a", Weight: 0.5},
				{ID: "b", Weight: 0.5},
			},
		}},
		FormulaMultipliers: map[string]map[string]float64{
			"blend": {"a": 3.0},
		},
	}
	r := NewRegistry(rs)

	spec := r.Specs()[0]
	total := 0.0
	for _, c := range spec.Components {
		total += c.Weight
	}
	assert.InDelta(t, 1.0, total, 1e-9, "multiplied components re-normalize to 1.0")
	assert.InDelta(t, 0.75, spec.Components[0].Weight, 1e-9)
}

func TestRatioFormula(t *testing.T) {
	rs := &rules.RuleSet{
		Formulas: []rules.FormulaSpec{{
			ID:   "idx",
			Type: rules.FormulaRatio,
			Components: []rules.FormulaComponent{
				{ID: "num", Weight: 1}, {ID: "den", Weight: 1},
			},
		}},
	}
	r := NewRegistry(rs)

	out := r.Evaluate(map[string]float64{"num": 0.3, "den": 0.6})
	assert.InDelta(t, 0.5, out["idx"], 1e-9)

	out = r.Evaluate(map[string]float64{"num": 0.9, "den": 0.3})
	assert.Equal(t, 1.0, out["idx"], "ratio caps at 1")

	out = r.Evaluate(map[string]float64{"num": 0.9, "den": 0.0})
	assert.Zero(t, out["idx"], "zero denominator degrades to 0, not an error")
}

func TestThresholdFormula(t *testing.T) {
	rs := &rules.RuleSet{
		Formulas: []rules.FormulaSpec{{
			ID:         "disc",
			Type:       rules.FormulaThresholdBased,
			Components: []rules.FormulaComponent{{ID: "x", Weight: 1}},
			Params:     map[string]float64{"min": 0.85},
		}},
	}
	r := NewRegistry(rs)

	assert.Equal(t, 1.0, r.Evaluate(map[string]float64{"x": 0.9})["disc"])
	assert.InDelta(t, 0.5/0.85, r.Evaluate(map[string]float64{"x": 0.5})["disc"], 1e-9)
}

func TestCustomFormula(t *testing.T) {
	rs := &rules.RuleSet{
		Formulas: []rules.FormulaSpec{{ID: "harmonic", Type: rules.FormulaCustom}},
	}
	r := NewRegistry(rs)

	assert.Zero(t, r.Evaluate(map[string]float64{})["harmonic"], "unregistered custom evaluates to 0")

	r.RegisterCustom("harmonic", func(values map[string]float64) float64 {
		a, b := values["a"], values["b"]
		if a+b == 0 {
			return 0
		}
		return 2 * a * b / (a + b)
	})
	out := r.Evaluate(map[string]float64{"a": 0.5, "b": 1.0})
	assert.InDelta(t, 2.0/3.0, out["harmonic"], 1e-9)
}

func TestFormulaChaining(t *testing.T) {
	r := NewRegistry(&rules.RuleSet{})
	out := r.Evaluate(map[string]float64{
		"clarity_structure.title_char_usage": 0.8,
	})
	// overall_score references the two element scores computed before it.
	assert.Greater(t, out[OverallScore], 0.0)
	assert.InDelta(t, out[TitleElementScore]*0.65, out[OverallScore], 1e-9)
}
