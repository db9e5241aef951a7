// Package recommend turns KPI and formula results into ranked, actionable
// guidance. Templates are pure data from the merged rule set; message
// generation is plain string substitution, never code execution.
package recommend

import (
	"sort"
	"strings"

	"github.com/asoforge/metascore/pkg/rules"
)

// Severity ranks. Unknown severities sort last.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

var severityRank = map[string]int{
	SeverityCritical: 0,
	SeverityWarning:  1,
	SeverityInfo:     2,
}

// Recommendation is one emitted guidance entry.
type Recommendation struct {
	ID       string  `json:"id"`
	Severity string  `json:"severity"`
	Message  string  `json:"message"`
	Impact   float64 `json:"impact"` // estimated score impact, 0-1
}

// Engine walks the merged templates against a value map.
type Engine struct {
	templates []rules.Template
}

// NewEngine wraps the rule set's merged template list.
func NewEngine(rs *rules.RuleSet) *Engine {
	return &Engine{templates: rs.Templates}
}

// Generate evaluates every template trigger and returns the ranked list:
// severity first (critical > warning > info), then estimated impact
// descending, then template declaration order. vars feeds the {var}
// interpolation slots.
func (e *Engine) Generate(values map[string]float64, vars map[string]string) []Recommendation {
	type ranked struct {
		rec  Recommendation
		decl int
	}
	var hits []ranked

	for i, tpl := range e.templates {
		value, fired := trigger(tpl, values)
		if !fired {
			continue
		}
		hits = append(hits, ranked{
			rec: Recommendation{
				ID:       tpl.ID,
				Severity: tpl.Severity,
				Message:  interpolate(tpl.Message, vars),
				Impact:   impact(tpl, value),
			},
			decl: i,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		ri, rj := rank(hits[i].rec.Severity), rank(hits[j].rec.Severity)
		if ri != rj {
			return ri < rj
		}
		if hits[i].rec.Impact != hits[j].rec.Impact {
			return hits[i].rec.Impact > hits[j].rec.Impact
		}
		return hits[i].decl < hits[j].decl
	})

	out := make([]Recommendation, len(hits))
	for i, h := range hits {
		out[i] = h.rec
	}
	return out
}

// trigger reports whether the template fires and returns the metric value
// it fired on. A missing metric reads as 0, which matters for "below"
// triggers on absent fields.
func trigger(tpl rules.Template, values map[string]float64) (float64, bool) {
	if tpl.Requires != "" && values[tpl.Requires] <= 0 {
		return 0, false
	}
	v := values[tpl.Metric]
	if tpl.Below != nil && v < *tpl.Below {
		return v, true
	}
	if tpl.Above != nil && v > *tpl.Above {
		return v, true
	}
	return v, false
}

// impact estimates how much score the fix could recover: the template's
// declared weight scaled by how far the metric sits from healthy.
func impact(tpl rules.Template, value float64) float64 {
	distance := 1.0
	if tpl.Below != nil && *tpl.Below > 0 {
		distance = (*tpl.Below - value) / *tpl.Below
	} else if tpl.Above != nil {
		distance = value - *tpl.Above
		if distance > 1 {
			distance = 1
		}
	}
	if distance < 0 {
		distance = 0
	}
	return tpl.Weight * distance
}

func rank(severity string) int {
	if r, ok := severityRank[severity]; ok {
		return r
	}
	return len(severityRank)
}

// interpolate substitutes {var} slots. Unknown slots stay verbatim so a
// template typo is visible instead of silently blank.
func interpolate(msg string, vars map[string]string) string {
	if len(vars) == 0 {
		return msg
	}
	oldnew := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		oldnew = append(oldnew, "{"+k+"}", v)
	}
	// Deterministic replacement order.
	sort.Sort(pairSorter(oldnew))
	return strings.NewReplacer(oldnew...).Replace(msg)
}

type pairSorter []string

func (p pairSorter) Len() int           { return len(p) / 2 }
func (p pairSorter) Less(i, j int) bool { return p[i*2] < p[j*2] }
func (p pairSorter) Swap(i, j int) {
	p[i*2], p[j*2] = p[j*2], p[i*2]
	p[i*2+1], p[j*2+1] = p[j*2+1], p[i*2+1]
}
