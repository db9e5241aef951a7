// Package audit is the engine entry point. It wires tokenization, combo
// extraction, classification, KPIs, formulas and recommendations into one
// pure Evaluate call: same inputs, byte-identical AuditResult.
package audit

import (
	"fmt"

	"github.com/asoforge/metascore/pkg/recommend"
	"github.com/asoforge/metascore/pkg/rules"
)

// Metadata is the normalized listing record supplied by the scraping
// collaborator. The engine performs no fetching or HTML parsing.
type Metadata struct {
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle,omitempty"`
	Description string `json:"description,omitempty"`
	Locale      string `json:"locale,omitempty"`
	Category    string `json:"category,omitempty"`
}

// KpiValue is one KPI result entry, sorted by id in the Result.
type KpiValue struct {
	ID      string  `json:"id"`
	Value   float64 `json:"value"`   // normalized 0-1
	Display int     `json:"display"` // 0-100
}

// FamilyScore is one family sub-score with its effective weight.
type FamilyScore struct {
	ID     string  `json:"id"`
	Score  float64 `json:"score"`  // 0-1
	Weight float64 `json:"weight"` // re-normalized effective weight
}

// FormulaValue is one derived formula result.
type FormulaValue struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"` // 0-1
}

// Result is the complete audit outcome. Immutable; owned by the caller.
// Slices are sorted (or declaration-ordered) so repeated evaluations of
// identical inputs marshal to identical bytes.
type Result struct {
	TitleScore    float64 `json:"titleScore"`    // 0-100
	SubtitleScore float64 `json:"subtitleScore"` // 0-100
	OverallScore  float64 `json:"overallScore"`  // 0-100

	Kpis            []KpiValue                 `json:"kpis"`
	Families        []FamilyScore              `json:"families"`
	Formulas        []FormulaValue             `json:"formulas"`
	Recommendations []recommend.Recommendation `json:"recommendations"`

	Provenance rules.Provenance `json:"provenance"`
}

// MalformedInputError is the single fatal error class. Everything else
// the engine recovers from degrades into provenance warnings.
type MalformedInputError struct {
	Field  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("audit: malformed input: %s %s", e.Field, e.Reason)
}
