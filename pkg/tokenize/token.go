// Package tokenize turns raw listing text into normalized, span-tracked
// tokens. It is the leaf dependency of the scoring pipeline: combos,
// classifiers and KPIs all consume its output.
package tokenize

// Field identifies the metadata field a token came from.
type Field string

const (
	FieldTitle       Field = "title"
	FieldSubtitle    Field = "subtitle"
	FieldDescription Field = "description"
)

// TextSpan represents a byte offset span in normalized text.
type TextSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the length of the span.
func (s TextSpan) Len() int {
	return s.End - s.Start
}

// IsEmpty returns true if the span is empty.
func (s TextSpan) IsEmpty() bool {
	return s.Start >= s.End
}

// Slice extracts the text covered by this span.
func (s TextSpan) Slice(text string) string {
	if s.Start < 0 || s.End > len(text) || s.Start > s.End {
		return ""
	}
	return text[s.Start:s.End]
}

// Token is a normalized word from one metadata field. Immutable once
// produced; downstream stages read it but never write it.
type Token struct {
	Text     string   `json:"text"`
	Field    Field    `json:"field"`
	Position int      `json:"position"`
	Span     TextSpan `json:"span"`
	Tier     int      `json:"tier"` // relevance tier 0-3, higher = more valuable
	Stopword bool     `json:"stopword"`
}
