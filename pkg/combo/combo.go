// Package combo extracts contiguous multi-token phrases ("combos") from
// title and subtitle token sequences. Combos are the unit the intent and
// hook classifiers and most keyword KPIs operate on.
package combo

import (
	"strings"

	"github.com/asoforge/metascore/pkg/tokenize"
)

// Type tags the commercial nature of a combo.
type Type string

const (
	TypeBranded  Type = "branded"
	TypeGeneric  Type = "generic"
	TypeLowValue Type = "low_value"
)

// Combo is a deduplicated phrase with provenance. Value object: built once
// per evaluation, never mutated after classification.
type Combo struct {
	Text   string            `json:"text"`
	Tokens []tokenize.Token  `json:"-"`
	Field  tokenize.Field    `json:"field"` // provenance winner; title beats subtitle
	Span   tokenize.TextSpan `json:"span"`

	InTitle    bool `json:"inTitle"`
	InSubtitle bool `json:"inSubtitle"`

	// Incremental marks subtitle phrases that add value beyond the title.
	// True only for combos seen in the subtitle and not in the title.
	Incremental bool `json:"incremental"`

	Type Type `json:"type"`

	// Filled in by the classifiers; empty until classified.
	Intent           string  `json:"intent,omitempty"`
	IntentConfidence float64 `json:"intentConfidence,omitempty"`
	Hook             string  `json:"hook,omitempty"`
	HookConfidence   float64 `json:"hookConfidence,omitempty"`
}

// Extractor builds combos with a sliding window of MinLen..MaxLen tokens.
type Extractor struct {
	MinLen int
	MaxLen int

	brandTokens map[string]bool
}

// NewExtractor creates an extractor. Out-of-range bounds fall back to the
// 2..4 defaults.
func NewExtractor(minLen, maxLen int, brandTokens map[string]bool) *Extractor {
	if minLen < 2 {
		minLen = 2
	}
	if maxLen < minLen {
		maxLen = minLen + 2
	}
	return &Extractor{MinLen: minLen, MaxLen: maxLen, brandTokens: brandTokens}
}

// Extract returns the deduplicated combo set for one evaluation. Title
// windows run first so that on duplicate text the title provenance wins.
func (e *Extractor) Extract(title, subtitle []tokenize.Token) []Combo {
	var out []Combo
	index := make(map[string]int) // normalized text -> position in out

	e.slide(title, tokenize.FieldTitle, &out, index)
	e.slide(subtitle, tokenize.FieldSubtitle, &out, index)

	// Incrementality: a subtitle phrase already present in the title adds
	// no new keyword value.
	for i := range out {
		out[i].Incremental = out[i].InSubtitle && !out[i].InTitle
	}
	return out
}

func (e *Extractor) slide(tokens []tokenize.Token, field tokenize.Field, out *[]Combo, index map[string]int) {
	for n := e.MinLen; n <= e.MaxLen; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			window := tokens[i : i+n]
			if allStopwords(window) {
				continue
			}

			text := joinText(window)
			if at, seen := index[text]; seen {
				c := &(*out)[at]
				if field == tokenize.FieldTitle {
					c.InTitle = true
				} else {
					c.InSubtitle = true
				}
				continue
			}

			c := Combo{
				Text:   text,
				Tokens: window,
				Field:  field,
				Span:   tokenize.TextSpan{Start: window[0].Span.Start, End: window[n-1].Span.End},
				Type:   e.classifyType(window),
			}
			if field == tokenize.FieldTitle {
				c.InTitle = true
			} else {
				c.InSubtitle = true
			}
			index[text] = len(*out)
			*out = append(*out, c)
		}
	}
}

// classifyType tags the combo: any brand-listed token makes it branded,
// all tokens tier<=1 makes it low value, everything else is generic.
func (e *Extractor) classifyType(window []tokenize.Token) Type {
	lowValue := true
	for _, tok := range window {
		if e.brandTokens[tok.Text] {
			return TypeBranded
		}
		if tok.Tier > 1 {
			lowValue = false
		}
	}
	if lowValue {
		return TypeLowValue
	}
	return TypeGeneric
}

func allStopwords(window []tokenize.Token) bool {
	for _, tok := range window {
		if !tok.Stopword {
			return false
		}
	}
	return true
}

func joinText(window []tokenize.Token) string {
	parts := make([]string, len(window))
	for i, tok := range window {
		parts[i] = tok.Text
	}
	return strings.Join(parts, " ")
}
