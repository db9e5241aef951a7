package kpi

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/asoforge/metascore/pkg/classify"
	"github.com/asoforge/metascore/pkg/combo"
	"github.com/asoforge/metascore/pkg/tokenize"
)

// ----------------------------------------------------------------------
// clarity_structure
// ----------------------------------------------------------------------

func titleCharUsage(in *Inputs) float64 {
	return charUsage(in.Title, in.Rules.CharLimits.Title)
}

func subtitleCharUsage(in *Inputs) float64 {
	return charUsage(in.Subtitle, in.Rules.CharLimits.Subtitle)
}

func charUsage(text string, limit int) float64 {
	text = strings.TrimSpace(text)
	if text == "" || limit <= 0 {
		return 0
	}
	return clamp01(float64(utf8.RuneCountInString(text)) / float64(limit))
}

func titleWordCountFit(in *Inputs) float64 {
	if len(in.TitleTokens) == 0 {
		return 0
	}
	return bandFit(float64(len(in.TitleTokens)), 2, 5, 3)
}

func subtitleWordCountFit(in *Inputs) float64 {
	if len(in.SubtitleTokens) == 0 {
		return 0
	}
	return bandFit(float64(len(in.SubtitleTokens)), 3, 6, 3)
}

func stopwordRatio(in *Inputs) float64 {
	all := len(in.TitleTokens) + len(in.SubtitleTokens)
	if all == 0 {
		return 0
	}
	stops := 0
	for _, t := range in.TitleTokens {
		if t.Stopword {
			stops++
		}
	}
	for _, t := range in.SubtitleTokens {
		if t.Stopword {
			stops++
		}
	}
	return float64(stops) / float64(all)
}

func avgTokenLengthFit(in *Inputs) float64 {
	total, n := 0, 0
	for _, t := range append(append([]tokenize.Token(nil), in.TitleTokens...), in.SubtitleTokens...) {
		if t.Stopword {
			continue
		}
		total += utf8.RuneCountInString(t.Text)
		n++
	}
	if n == 0 {
		return 0
	}
	return bandFit(float64(total)/float64(n), 4, 8, 4)
}

func punctuationNoise(in *Inputs) float64 {
	raw := in.Title + in.Subtitle
	if raw == "" {
		return 0
	}
	noisy, total := 0, 0
	for _, r := range raw {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) ||
			r == '-' || r == '\'' || r == '’' {
			continue
		}
		noisy++
	}
	return clamp01(float64(noisy) / float64(total) * 4) // 25% punctuation saturates
}

// ----------------------------------------------------------------------
// keyword_architecture
// ----------------------------------------------------------------------

// uniqueKeywordCeiling is the expected ceiling of distinct tier>=2 tokens
// a 30+30 character budget can realistically carry.
const uniqueKeywordCeiling = 8

func uniqueKeywords(in *Inputs) float64 {
	seen := make(map[string]bool)
	for _, t := range allTokens(in) {
		if t.Tier >= 2 {
			seen[t.Text] = true
		}
	}
	return clamp01(float64(len(seen)) / uniqueKeywordCeiling)
}

func highTierTokenShare(in *Inputs) float64 {
	n, high := 0, 0
	for _, t := range allTokens(in) {
		if t.Stopword {
			continue
		}
		n++
		if t.Tier >= 2 {
			high++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(high) / float64(n)
}

func tier3Presence(in *Inputs) float64 {
	for _, t := range allTokens(in) {
		if t.Tier == 3 {
			return 1
		}
	}
	return 0
}

func comboCoverage(in *Inputs) float64 {
	if len(in.Combos) == 0 {
		return 0
	}
	valuable := 0
	for _, c := range in.Combos {
		if c.Type != combo.TypeLowValue {
			valuable++
		}
	}
	return float64(valuable) / float64(len(in.Combos))
}

func duplicateTokenWaste(in *Inputs) float64 {
	counts := make(map[string]int)
	total := 0
	for _, t := range allTokens(in) {
		if t.Stopword {
			continue
		}
		counts[t.Text]++
		total++
	}
	if total == 0 {
		return 0
	}
	return float64(total-len(counts)) / float64(total)
}

func subtitleIncrementalValue(in *Inputs) float64 {
	subCount, incremental := 0, 0
	for _, c := range in.Combos {
		if !c.InSubtitle {
			continue
		}
		subCount++
		if c.Incremental {
			incremental++
		}
	}
	if subCount == 0 {
		return 0
	}
	return float64(incremental) / float64(subCount)
}

func titleLeadingValue(in *Inputs) float64 {
	for _, t := range in.TitleTokens {
		if t.Stopword {
			continue
		}
		return float64(t.Tier) / 3.0
	}
	return 0
}

// ----------------------------------------------------------------------
// hook_strength
// ----------------------------------------------------------------------

func hookCoverage(in *Inputs) float64 {
	if len(in.Combos) == 0 {
		return 0
	}
	hooked := 0
	for _, c := range in.Combos {
		if isHooked(c) {
			hooked++
		}
	}
	return float64(hooked) / float64(len(in.Combos))
}

func hookDiversity(in *Inputs) float64 {
	cats := hookCategoryCount(in)
	if cats == 0 {
		return 0
	}
	seen := make(map[string]bool)
	for _, c := range in.Combos {
		if isHooked(c) {
			seen[c.Hook] = true
		}
	}
	return clamp01(float64(len(seen)) / float64(cats))
}

func outcomeHookPresence(in *Inputs) float64 {
	return hookPresent(in, classify.HookOutcomeBenefit)
}

func trustHookPresence(in *Inputs) float64 {
	return hookPresent(in, classify.HookTrustSafety)
}

func subtitleHookCoverage(in *Inputs) float64 {
	subCount, hooked := 0, 0
	for _, c := range in.Combos {
		if !c.InSubtitle {
			continue
		}
		subCount++
		if isHooked(c) {
			hooked++
		}
	}
	if subCount == 0 {
		return 0
	}
	return float64(hooked) / float64(subCount)
}

func hookConfidenceAvg(in *Inputs) float64 {
	total, n := 0.0, 0
	for _, c := range in.Combos {
		if isHooked(c) {
			total += c.HookConfidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return clamp01(total / float64(n))
}

// ----------------------------------------------------------------------
// brand_generic_balance
// ----------------------------------------------------------------------

// idealBrandShare: one brand token in a ~7 token budget.
const idealBrandShare = 0.15

func brandTokenShare(in *Inputs) float64 {
	tokens := allTokens(in)
	if len(tokens) == 0 {
		return 0
	}
	brand := 0
	for _, t := range tokens {
		if in.Rules.BrandTokens[t.Text] {
			brand++
		}
	}
	share := float64(brand) / float64(len(tokens))
	return clamp01(1 - math.Abs(share-idealBrandShare)/0.5)
}

func genericComboShare(in *Inputs) float64 {
	return comboShare(in, combo.TypeGeneric)
}

func brandedComboShare(in *Inputs) float64 {
	return comboShare(in, combo.TypeBranded)
}

func brandPosition(in *Inputs) float64 {
	if len(in.TitleTokens) == 0 {
		return 0
	}
	for _, t := range in.TitleTokens {
		if in.Rules.BrandTokens[t.Text] {
			return 1 - float64(t.Position)/float64(len(in.TitleTokens))
		}
	}
	// No brand in the title: neutral, not penalized.
	return 0.5
}

// ----------------------------------------------------------------------
// psychology_alignment
// ----------------------------------------------------------------------

func psychCategorySpread(in *Inputs) float64 {
	cats := hookCategoryCount(in)
	if cats == 0 {
		return 0
	}
	title := make(map[string]bool)
	sub := make(map[string]bool)
	for _, c := range in.Combos {
		if !isHooked(c) {
			continue
		}
		if c.InTitle {
			title[c.Hook] = true
		}
		if c.InSubtitle {
			sub[c.Hook] = true
		}
	}
	return clamp01((float64(len(title)) + float64(len(sub))) / float64(2*cats))
}

func urgencyBalance(in *Inputs) float64 {
	if len(in.Combos) == 0 {
		return 0
	}
	urgent := 0
	for _, c := range in.Combos {
		if c.Hook == classify.HookUrgencyScarcity {
			urgent++
		}
	}
	share := float64(urgent) / float64(len(in.Combos))
	// A touch of urgency is fine, heavy urgency reads as spam.
	if share <= 0.2 {
		return 1
	}
	return clamp01(1 - (share-0.2)/0.8)
}

func socialProofPresence(in *Inputs) float64 {
	return hookPresent(in, classify.HookSocialProof)
}

func easeSignalPresence(in *Inputs) float64 {
	return hookPresent(in, classify.HookEaseOfUse)
}

// ----------------------------------------------------------------------
// intent_alignment
// ----------------------------------------------------------------------

func commercialIntentShare(in *Inputs) float64 {
	classified, commercial := 0, 0
	for _, c := range in.Combos {
		if !isIntentful(c) {
			continue
		}
		classified++
		if c.Intent == classify.IntentCommercial || c.Intent == classify.IntentTransactional {
			commercial++
		}
	}
	if classified == 0 {
		return 0
	}
	return float64(commercial) / float64(classified)
}

func transactionalPresence(in *Inputs) float64 {
	for _, c := range in.Combos {
		if c.Intent == classify.IntentTransactional {
			return 1
		}
	}
	return 0
}

func informationalBalance(in *Inputs) float64 {
	classified, info := 0, 0
	for _, c := range in.Combos {
		if !isIntentful(c) {
			continue
		}
		classified++
		if c.Intent == classify.IntentInformational {
			info++
		}
	}
	if classified == 0 {
		return 0
	}
	return bandFit(float64(info)/float64(classified), 0.2, 0.6, 0.4)
}

func intentConfidenceAvg(in *Inputs) float64 {
	total, n := 0.0, 0
	for _, c := range in.Combos {
		if isIntentful(c) {
			total += c.IntentConfidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return clamp01(total / float64(n))
}

func navigationalPenalty(in *Inputs) float64 {
	if len(in.Combos) == 0 {
		return 0
	}
	nav := 0
	for _, c := range in.Combos {
		if c.Intent == classify.IntentNavigational {
			nav++
		}
	}
	return float64(nav) / float64(len(in.Combos))
}

// ----------------------------------------------------------------------
// helpers
// ----------------------------------------------------------------------

func allTokens(in *Inputs) []tokenize.Token {
	out := make([]tokenize.Token, 0, len(in.TitleTokens)+len(in.SubtitleTokens))
	out = append(out, in.TitleTokens...)
	out = append(out, in.SubtitleTokens...)
	return out
}

func isHooked(c combo.Combo) bool {
	return c.Hook != "" && c.Hook != classify.CategoryNone
}

func isIntentful(c combo.Combo) bool {
	return c.Intent != "" && c.Intent != classify.CategoryNone
}

func hookPresent(in *Inputs, category string) float64 {
	for _, c := range in.Combos {
		if c.Hook == category {
			return 1
		}
	}
	return 0
}

func comboShare(in *Inputs, typ combo.Type) float64 {
	if len(in.Combos) == 0 {
		return 0
	}
	n := 0
	for _, c := range in.Combos {
		if c.Type == typ {
			n++
		}
	}
	return float64(n) / float64(len(in.Combos))
}

func hookCategoryCount(in *Inputs) int {
	if in.Rules == nil {
		return 0
	}
	return len(in.Rules.HookPatterns)
}

// bandFit scores 1.0 inside [lo,hi] and decays linearly to 0 over falloff
// on either side.
func bandFit(x, lo, hi, falloff float64) float64 {
	if x >= lo && x <= hi {
		return 1
	}
	var dist float64
	if x < lo {
		dist = lo - x
	} else {
		dist = x - hi
	}
	if falloff <= 0 {
		return 0
	}
	return clamp01(1 - dist/falloff)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
