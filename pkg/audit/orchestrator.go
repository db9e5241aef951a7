package audit

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/asoforge/metascore/pkg/classify"
	"github.com/asoforge/metascore/pkg/combo"
	"github.com/asoforge/metascore/pkg/formula"
	"github.com/asoforge/metascore/pkg/kpi"
	"github.com/asoforge/metascore/pkg/recommend"
	"github.com/asoforge/metascore/pkg/rules"
	"github.com/asoforge/metascore/pkg/tokenize"
)

// Pseudo-metrics injected into the formula/template scope alongside KPI
// values. Templates gate on these to avoid recommending fixes for fields
// that were never supplied.
const (
	MetricSubtitlePresent    = "subtitle_present"
	MetricDescriptionPresent = "description_present"
)

// Orchestrator runs the full audit pipeline. Stateless after construction;
// safe for concurrent Evaluate calls.
type Orchestrator struct {
	loader *rules.Loader
	engine *kpi.Engine
	log    zerolog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLoader substitutes a pre-configured rule loader, e.g. one carrying
// an overlay filesystem for external rule fragments.
func WithLoader(l *rules.Loader) Option {
	return func(o *Orchestrator) { o.loader = l }
}

// WithLogger sets the diagnostic logger. Default is a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// New builds an orchestrator over the embedded default rules unless a
// loader is supplied.
func New(opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		engine: kpi.NewEngine(),
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.loader == nil {
		l, err := rules.NewLoader(rules.WithLogger(o.log))
		if err != nil {
			return nil, err
		}
		o.loader = l
	}
	return o, nil
}

// Evaluate audits one metadata record under the resolved rule layers.
// Empty vertical/market fall back to the record's own category/locale.
// The only error class is MalformedInputError; every other anomaly
// degrades into a provenance warning.
func (o *Orchestrator) Evaluate(meta Metadata, vertical, market string, client *rules.Fragment) (*Result, error) {
	if err := validate(&meta); err != nil {
		return nil, err
	}
	if vertical == "" {
		vertical = meta.Category
	}
	if market == "" {
		market = meta.Locale
	}
	rs := o.loader.Resolve(vertical, market, client)
	return o.evaluate(meta, rs), nil
}

// EvaluateWith audits against an already merged rule set, bypassing layer
// resolution. Callers batching many records under one configuration use
// this to resolve once and score many times.
func (o *Orchestrator) EvaluateWith(meta Metadata, rs *rules.RuleSet) (*Result, error) {
	if err := validate(&meta); err != nil {
		return nil, err
	}
	return o.evaluate(meta, rs), nil
}

func validate(meta *Metadata) error {
	if strings.TrimSpace(meta.Title) == "" {
		return &MalformedInputError{Field: "title", Reason: "is empty"}
	}
	if !utf8.ValidString(meta.Title) {
		return &MalformedInputError{Field: "title", Reason: "is not valid UTF-8"}
	}
	if !utf8.ValidString(meta.Subtitle) {
		return &MalformedInputError{Field: "subtitle", Reason: "is not valid UTF-8"}
	}
	if !utf8.ValidString(meta.Description) {
		return &MalformedInputError{Field: "description", Reason: "is not valid UTF-8"}
	}
	return nil
}

func (o *Orchestrator) evaluate(meta Metadata, rs *rules.RuleSet) *Result {
	tok := tokenize.New(rs.Stopwords, classify.NewRelevanceClassifier(rs.Relevance))
	titleTokens := tok.Tokenize(tokenize.FieldTitle, meta.Title)
	subTokens := tok.Tokenize(tokenize.FieldSubtitle, meta.Subtitle)

	combos := combo.NewExtractor(rs.ComboMin, rs.ComboMax, rs.BrandTokens).
		Extract(titleTokens, subTokens)
	classify.NewIntentClassifier(rs).Label(combos)
	classify.NewHookClassifier(rs).Label(combos)

	kres := o.engine.Compute(&kpi.Inputs{
		Title:          meta.Title,
		Subtitle:       meta.Subtitle,
		TitleTokens:    titleTokens,
		SubtitleTokens: subTokens,
		Combos:         combos,
		Rules:          rs,
	})

	scope := make(map[string]float64, len(kres.Values)+len(kres.Families)+8)
	for id, v := range kres.Values {
		scope[id] = v
	}
	for id, v := range kres.Families {
		scope[id] = v
	}
	scope[MetricSubtitlePresent] = boolMetric(strings.TrimSpace(meta.Subtitle) != "")
	scope[MetricDescriptionPresent] = boolMetric(strings.TrimSpace(meta.Description) != "")

	reg := formula.NewRegistry(rs)
	fvals := reg.Evaluate(scope)
	for id, v := range fvals {
		scope[id] = v
	}

	recs := recommend.NewEngine(rs).Generate(scope, interpolationVars(meta, rs, titleTokens, subTokens))

	res := &Result{
		TitleScore:      display(fvals[formula.TitleElementScore]),
		SubtitleScore:   display(fvals[formula.SubtitleElementScore]),
		OverallScore:    display(fvals[formula.OverallScore]),
		Recommendations: recs,
		Provenance:      rs.Provenance,
	}
	// The result owns its warning list. Appending in place could write into
	// a cached RuleSet's backing array and race concurrent evaluations.
	res.Provenance.Warnings = append(
		append([]rules.Warning(nil), rs.Provenance.Warnings...), reg.Warnings()...)

	for _, id := range sortedKeys(kres.Values) {
		res.Kpis = append(res.Kpis, KpiValue{
			ID:      id,
			Value:   kres.Values[id],
			Display: kres.Display[id],
		})
	}
	for _, id := range sortedKeys(kres.Families) {
		res.Families = append(res.Families, FamilyScore{
			ID:     id,
			Score:  kres.Families[id],
			Weight: o.engine.FamilyWeight(id, rs),
		})
	}
	for _, id := range sortedKeys(fvals) {
		res.Formulas = append(res.Formulas, FormulaValue{ID: id, Score: fvals[id]})
	}

	o.log.Debug().
		Str("rules", rs.Key).
		Float64("overall", res.OverallScore).
		Int("combos", len(combos)).
		Int("recommendations", len(recs)).
		Msg("audit evaluated")
	return res
}

// interpolationVars builds the {var} substitutions for recommendation
// messages. Values depend only on the inputs, so messages stay stable
// across repeated evaluations.
func interpolationVars(meta Metadata, rs *rules.RuleSet, title, subtitle []tokenize.Token) map[string]string {
	charsLeft := rs.CharLimits.Title - utf8.RuneCountInString(meta.Title)
	if charsLeft < 0 {
		charsLeft = 0
	}
	return map[string]string{
		"app_name":       appName(meta.Title),
		"vertical":       orUnset(rs.Provenance.Vertical),
		"market":         orUnset(rs.Provenance.Market),
		"chars_left":     strconv.Itoa(charsLeft),
		"title_limit":    strconv.Itoa(rs.CharLimits.Title),
		"subtitle_limit": strconv.Itoa(rs.CharLimits.Subtitle),
		"missing_token":  missingToken(rs, title, subtitle),
	}
}

// appName is the brand segment of the title: everything before the first
// separator, or the whole title when none is present.
func appName(title string) string {
	for _, sep := range []string{":", " - ", " – ", "|"} {
		if i := strings.Index(title, sep); i > 0 {
			return strings.TrimSpace(title[:i])
		}
	}
	return strings.TrimSpace(title)
}

// missingToken picks the strongest relevance-table keyword absent from
// the metadata: highest tier first, then lexicographic so the choice is
// stable regardless of map order.
func missingToken(rs *rules.RuleSet, title, subtitle []tokenize.Token) string {
	present := make(map[string]bool, len(title)+len(subtitle))
	for _, t := range title {
		present[t.Text] = true
	}
	for _, t := range subtitle {
		present[t.Text] = true
	}

	best := ""
	bestTier := 1 // only tier 2+ keywords are worth suggesting
	for word, tier := range rs.Relevance {
		if tier <= 1 || present[word] {
			continue
		}
		if tier > bestTier || (tier == bestTier && (best == "" || word < best)) {
			best = word
			bestTier = tier
		}
	}
	if best == "" {
		return "a high-value keyword"
	}
	return best
}

func orUnset(s string) string {
	if s == "" {
		return "default"
	}
	return s
}

func boolMetric(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func display(v float64) float64 {
	return math.Round(v*10000) / 100
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
