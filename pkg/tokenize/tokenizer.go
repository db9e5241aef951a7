package tokenize

import (
	"strings"
	"unicode"
)

// TierResolver assigns a relevance tier (0-3) to a normalized token.
// Implemented by classify.RelevanceClassifier; declared here so the
// tokenizer stays a leaf package.
type TierResolver interface {
	Resolve(token string) int
}

// Normalize cleans and lowercases text for tokenization. Letters, digits,
// apostrophes and internal hyphens survive; everything else becomes a
// space and runs of whitespace collapse to one.
func Normalize(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	runes := []rune(s)
	for i, ch := range runes {
		c := unicode.ToLower(ch)

		// Curly apostrophe -> straight
		if c == '’' {
			out.WriteRune('\'')
			continue
		}

		if c == '-' {
			// Internal hyphen only: must sit between letters/digits
			if i > 0 && i < len(runes)-1 &&
				isWordRune(runes[i-1]) && isWordRune(runes[i+1]) {
				out.WriteRune('-')
			} else {
				out.WriteRune(' ')
			}
			continue
		}

		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '\'' {
			out.WriteRune(c)
		} else {
			out.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(out.String()), " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Tokenizer splits normalized field text into tokens, marks stopwords and
// assigns relevance tiers. Deterministic and pure: same inputs, same output.
type Tokenizer struct {
	stopwords map[string]bool
	tiers     TierResolver
}

// New creates a Tokenizer. A nil stopword set or resolver is allowed; with
// no resolver every non-stopword token gets tier 1.
func New(stopwords map[string]bool, tiers TierResolver) *Tokenizer {
	return &Tokenizer{stopwords: stopwords, tiers: tiers}
}

// Tokenize produces the ordered token sequence for one field. An empty
// string yields an empty sequence, never an error.
func (t *Tokenizer) Tokenize(field Field, text string) []Token {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}

	var tokens []Token
	pos := 0
	offset := 0
	for _, word := range strings.Split(normalized, " ") {
		span := TextSpan{Start: offset, End: offset + len(word)}
		offset = span.End + 1 // single space separators after Normalize

		tok := Token{
			Text:     word,
			Field:    field,
			Position: pos,
			Span:     span,
			Stopword: t.stopwords[word],
		}
		tok.Tier = t.tier(tok)
		tokens = append(tokens, tok)
		pos++
	}
	return tokens
}

// tier applies the fixed low-value rules before consulting the resolver:
// stopwords and tokens shorter than 2 characters are always tier 0.
func (t *Tokenizer) tier(tok Token) int {
	if tok.Stopword || len(tok.Text) < 2 {
		return 0
	}
	if t.tiers == nil {
		return 1
	}
	tier := t.tiers.Resolve(tok.Text)
	if tier < 0 {
		return 0
	}
	if tier > 3 {
		return 3
	}
	return tier
}
