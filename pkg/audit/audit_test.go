package audit

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asoforge/metascore/pkg/rules"
)

func newOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	o, err := New()
	require.NoError(t, err)
	return o
}

func kpiValue(res *Result, id string) (float64, bool) {
	for _, k := range res.Kpis {
		if k.ID == id {
			return k.Value, true
		}
	}
	return 0, false
}

func recIDs(res *Result) []string {
	ids := make([]string, len(res.Recommendations))
	for i, r := range res.Recommendations {
		ids[i] = r.ID
	}
	return ids
}

func TestEvaluateEndToEnd(t *testing.T) {
	o := newOrchestrator(t)

	res, err := o.Evaluate(Metadata{
		Title:    "Duolingo: Language Lessons",
		Subtitle: "Learn Spanish, French & more",
		Category: "education",
		Locale:   "en-US",
	}, "", "", nil)
	require.NoError(t, err)

	assert.Greater(t, res.OverallScore, 0.0)
	assert.LessOrEqual(t, res.OverallScore, 100.0)
	assert.Greater(t, res.TitleScore, 0.0)
	assert.Greater(t, res.SubtitleScore, 0.0, "subtitle adds incremental keywords")

	assert.Len(t, res.Kpis, 33)
	assert.Len(t, res.Families, 6)
	assert.NotContains(t, recIDs(res), "missing_subtitle")

	// Vertical promotes learn/language/lessons to tier 3, so the
	// top-tier presence KPI must be satisfied.
	v, ok := kpiValue(res, "keyword_architecture.tier3_presence")
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	assert.Equal(t, "education", res.Provenance.Vertical)
	assert.Equal(t, "en-us", res.Provenance.Market)
	assert.Equal(t, []string{rules.LayerGlobal, rules.LayerVertical, rules.LayerMarket}, res.Provenance.LayersApplied)
}

func TestEvaluateTitleOnly(t *testing.T) {
	o := newOrchestrator(t)

	res, err := o.Evaluate(Metadata{Title: "Budget Tracker"}, "", "", nil)
	require.NoError(t, err)

	assert.Equal(t, 0.0, res.SubtitleScore, "no subtitle scores zero, not an error")
	assert.Greater(t, res.TitleScore, 0.0)
	assert.Len(t, res.Kpis, 33, "every KPI still reports a value")

	ids := recIDs(res)
	assert.Contains(t, ids, "missing_subtitle")
	assert.NotContains(t, ids, "duplicate_subtitle_phrasing",
		"subtitle-scoped templates stay silent without a subtitle")
}

func TestEvaluateMalformedInput(t *testing.T) {
	o := newOrchestrator(t)

	cases := []struct {
		name string
		meta Metadata
	}{
		{"empty title", Metadata{}},
		{"whitespace title", Metadata{Title: "   "}},
		{"invalid utf8 title", Metadata{Title: "abc\xff"}},
		{"invalid utf8 subtitle", Metadata{Title: "ok", Subtitle: "\xc3("}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := o.Evaluate(tc.meta, "", "", nil)
			var malformed *MalformedInputError
			require.ErrorAs(t, err, &malformed)
		})
	}
}

func TestEvaluateUnknownLayersDegrade(t *testing.T) {
	o := newOrchestrator(t)

	res, err := o.Evaluate(Metadata{Title: "Star Map"}, "gardening", "xx-xx", nil)
	require.NoError(t, err)

	codes := make(map[string]int)
	for _, w := range res.Provenance.Warnings {
		codes[w.Code]++
	}
	assert.Equal(t, 2, codes[rules.WarnUnknownLayer])
	assert.Equal(t, []string{rules.LayerGlobal}, res.Provenance.LayersApplied)
	assert.Greater(t, res.OverallScore, 0.0, "fallback still produces a full result")
}

func TestEvaluateClientOverride(t *testing.T) {
	o := newOrchestrator(t)
	meta := Metadata{Title: "Budget Tracker", Subtitle: "Save money every month"}

	base, err := o.Evaluate(meta, "", "", nil)
	require.NoError(t, err)
	v, _ := kpiValue(base, "keyword_architecture.tier3_presence")
	require.Equal(t, 0.0, v, "no tier-3 keyword without the override")

	client := &rules.Fragment{Relevance: map[string]int{"budget": 3}}
	over, err := o.Evaluate(meta, "", "", client)
	require.NoError(t, err)
	v, _ = kpiValue(over, "keyword_architecture.tier3_presence")
	assert.Equal(t, 1.0, v, "client layer outranks the global relevance table")
	assert.True(t, over.Provenance.Client)
}

func TestEvaluateWithSharedRuleSet(t *testing.T) {
	o := newOrchestrator(t)
	loader, err := rules.NewLoader()
	require.NoError(t, err)

	rs := loader.Resolve("education", "en-us", nil)
	meta := Metadata{Title: "Duolingo: Language Lessons", Subtitle: "Learn Spanish, French & more"}

	direct, err := o.Evaluate(meta, "education", "en-us", nil)
	require.NoError(t, err)
	shared, err := o.EvaluateWith(meta, rs)
	require.NoError(t, err)

	assert.Equal(t, direct, shared, "pre-resolved rule sets are interchangeable")
}

func TestEvaluateWithLeavesRuleSetUntouched(t *testing.T) {
	o := newOrchestrator(t)
	loader, err := rules.NewLoader()
	require.NoError(t, err)

	rs := loader.Resolve("gardening", "xx-xx", nil) // two resolution warnings
	// Cached rule sets can carry spare slice capacity; make it explicit so
	// an in-place append would land in the shared backing array.
	warnings := make([]rules.Warning, len(rs.Provenance.Warnings), len(rs.Provenance.Warnings)+4)
	copy(warnings, rs.Provenance.Warnings)
	rs.Provenance.Warnings = warnings
	// An invalid declared formula makes the registry add its own warning.
	rs.Formulas = append(rs.Formulas, rules.FormulaSpec{
		ID:         "bogus_blend",
		Type:       rules.FormulaWeightedSum,
		Components: []rules.FormulaComponent{{ID: "x", Weight: 0.5}},
	})

	res, err := o.EvaluateWith(Metadata{Title: "Star Map"}, rs)
	require.NoError(t, err)
	require.Greater(t, len(res.Provenance.Warnings), len(rs.Provenance.Warnings))

	res.Provenance.Warnings[0].Message = "mutated"
	assert.NotEqual(t, "mutated", rs.Provenance.Warnings[0].Message,
		"the result must not alias the rule set's warning array")
}

func TestEvaluateDeterministic(t *testing.T) {
	o := newOrchestrator(t)

	words := []string{
		"learn", "spanish", "budget", "tracker", "easy", "fast", "photo",
		"editor", "free", "puzzle", "games", "master", "secure", "now",
		"best", "workout", "fitness", "money", "the", "and", "smart",
	}
	verticals := []string{"", "education", "finance", "games", "rewards"}
	markets := []string{"", "en-us", "de-de", "ja-jp"}

	rnd := rand.New(rand.NewSource(42))
	phrase := func(n int) string {
		var b bytes.Buffer
		for i := 0; i < n; i++ {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(words[rnd.Intn(len(words))])
		}
		return b.String()
	}

	for i := 0; i < 50; i++ {
		req := Request{
			Metadata: Metadata{
				Title:    phrase(2 + rnd.Intn(3)),
				Subtitle: phrase(rnd.Intn(5)),
			},
			Vertical: verticals[rnd.Intn(len(verticals))],
			Market:   markets[rnd.Intn(len(markets))],
		}
		data, err := json.Marshal(req)
		require.NoError(t, err)

		first, err := o.EvaluateJSON(data)
		require.NoError(t, err, "case %d: %s", i, data)
		second, err := o.EvaluateJSON(data)
		require.NoError(t, err)
		require.True(t, bytes.Equal(first, second),
			fmt.Sprintf("case %d not byte-identical for %s", i, data))
	}
}

func TestEvaluateJSON(t *testing.T) {
	o := newOrchestrator(t)

	out, err := o.EvaluateJSON([]byte(`{
		"metadata": {"title": "Budget Tracker", "subtitle": "Save money fast"},
		"vertical": "finance",
		"market": "en-US"
	}`))
	require.NoError(t, err)

	var res Result
	require.NoError(t, json.Unmarshal(out, &res))
	assert.Greater(t, res.OverallScore, 0.0)
	assert.Equal(t, "finance", res.Provenance.Vertical)

	_, err = o.EvaluateJSON([]byte(`{bad json`))
	require.Error(t, err)

	_, err = o.EvaluateJSON([]byte(`{"metadata": {"title": ""}}`))
	var malformed *MalformedInputError
	require.True(t, errors.As(err, &malformed))
}

func TestEvaluateInterpolation(t *testing.T) {
	o := newOrchestrator(t)

	res, err := o.Evaluate(Metadata{Title: "Duolingo: Lessons"}, "education", "en-us", nil)
	require.NoError(t, err)

	var shortTitle string
	for _, r := range res.Recommendations {
		if r.ID == "short_title" || r.ID == "unused_title_chars" {
			shortTitle = r.Message
			break
		}
	}
	require.NotEmpty(t, shortTitle, "a 17-char title leaves budget unused")
	assert.Contains(t, shortTitle, "13 characters", "chars_left reflects the 30-char limit")
	assert.NotContains(t, shortTitle, "{", "no unfilled slots remain")
}
