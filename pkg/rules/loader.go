package rules

import (
	"embed"
	"fmt"
	"strings"

	"github.com/hack-pad/hackpadfs"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

//go:embed defaults/global.yaml defaults/verticals/*.yaml defaults/markets/*.yaml
var defaultsFS embed.FS

// ParseFragment decodes one YAML layer document. Unknown keys are ignored
// rather than rejected: override documents come from an external admin
// collaborator and must be accepted defensively.
func ParseFragment(data []byte) (*Fragment, error) {
	var f Fragment
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("rules: invalid fragment document: %w", err)
	}
	return &f, nil
}

// Loader resolves effective RuleSets. Compiled-in defaults cover the
// global layer plus the built-in verticals and markets; an optional
// overlay filesystem contributes or replaces layer documents
// (global.yaml, verticals/<id>.yaml, markets/<id>.yaml).
//
// The Loader itself holds no per-evaluation state; Resolve is safe to
// call concurrently.
type Loader struct {
	overlay    hackpadfs.FS
	overlayDir string
	log        zerolog.Logger
	drift      float64

	global    *Fragment
	verticals map[string]*Fragment
	markets   map[string]*Fragment
}

// Option configures a Loader.
type Option func(*Loader)

// WithOverlayFS points the loader at an external fragment tree. Paths are
// resolved relative to dir.
func WithOverlayFS(fs hackpadfs.FS, dir string) Option {
	return func(l *Loader) {
		l.overlay = fs
		l.overlayDir = strings.TrimSuffix(dir, "/")
	}
}

// WithLogger injects a diagnostic logger. The default is a no-op logger so
// library users get a silent, pure engine unless they opt in.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// WithDriftThreshold overrides the leak-detection drift threshold.
func WithDriftThreshold(t float64) Option {
	return func(l *Loader) { l.drift = t }
}

// NewLoader builds a Loader from the embedded defaults.
func NewLoader(opts ...Option) (*Loader, error) {
	l := &Loader{
		log:       zerolog.Nop(),
		drift:     DefaultDriftThreshold,
		verticals: make(map[string]*Fragment),
		markets:   make(map[string]*Fragment),
	}
	for _, opt := range opts {
		opt(l)
	}

	data, err := defaultsFS.ReadFile("defaults/global.yaml")
	if err != nil {
		return nil, fmt.Errorf("rules: embedded global defaults missing: %w", err)
	}
	if l.global, err = ParseFragment(data); err != nil {
		return nil, err
	}

	if err := l.loadEmbeddedDir("defaults/verticals", l.verticals); err != nil {
		return nil, err
	}
	if err := l.loadEmbeddedDir("defaults/markets", l.markets); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Loader) loadEmbeddedDir(dir string, into map[string]*Fragment) error {
	entries, err := defaultsFS.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("rules: embedded defaults dir %s: %w", dir, err)
	}
	for _, e := range entries {
		id := strings.TrimSuffix(e.Name(), ".yaml")
		data, err := defaultsFS.ReadFile(dir + "/" + e.Name())
		if err != nil {
			return fmt.Errorf("rules: embedded fragment %s: %w", e.Name(), err)
		}
		frag, err := ParseFragment(data)
		if err != nil {
			return fmt.Errorf("rules: embedded fragment %s: %w", e.Name(), err)
		}
		into[id] = frag
	}
	return nil
}

// Resolve merges the four layers for (vertical, market, client) and runs
// leak detection. Unknown vertical or market ids degrade to the lower
// layers with a provenance warning; they never fail the resolution.
func (l *Loader) Resolve(vertical, market string, client *Fragment) *RuleSet {
	vertical = strings.ToLower(strings.TrimSpace(vertical))
	market = strings.ToLower(strings.TrimSpace(market))

	var layers []Layer
	var missing []Warning

	layers = append(layers, Layer{Name: LayerGlobal, Fragment: l.global})
	if f := l.overlayFragment("global.yaml"); f != nil {
		layers = append(layers, Layer{Name: LayerGlobal, Fragment: f})
	}

	if vertical != "" {
		frag := l.layerFragment(l.verticals, "verticals/"+vertical+".yaml", vertical)
		if frag == nil {
			missing = append(missing, Warning{
				Code: WarnUnknownLayer, Layer: LayerVertical, Subject: vertical,
				Message: fmt.Sprintf("no rules for vertical %q, falling back to global", vertical),
			})
		} else {
			layers = append(layers, Layer{Name: LayerVertical, Fragment: frag})
		}
	}

	if market != "" {
		frag := l.layerFragment(l.markets, "markets/"+market+".yaml", market)
		if frag == nil {
			missing = append(missing, Warning{
				Code: WarnUnknownLayer, Layer: LayerMarket, Subject: market,
				Message: fmt.Sprintf("no rules for market %q, falling back", market),
			})
		} else {
			layers = append(layers, Layer{Name: LayerMarket, Fragment: frag})
		}
	}

	if client != nil {
		layers = append(layers, Layer{Name: LayerClient, Fragment: client})
	}

	key := resolutionKey(vertical, market, client != nil)
	rs := Merge(key, layers, l.drift)
	rs.Provenance.Vertical = vertical
	rs.Provenance.Market = market
	rs.Provenance.Client = client != nil
	rs.Provenance.Warnings = append(missing, rs.Provenance.Warnings...)

	for _, w := range rs.Provenance.Warnings {
		l.log.Warn().
			Str("code", w.Code).
			Str("layer", w.Layer).
			Str("subject", w.Subject).
			Msg(w.Message)
	}
	l.log.Debug().
		Str("key", key).
		Strs("layers", rs.Provenance.LayersApplied).
		Int("warnings", len(rs.Provenance.Warnings)).
		Msg("rule set resolved")

	return rs
}

// layerFragment prefers an overlay file over the embedded default for the
// same id. Missing overlay files are normal, not errors.
func (l *Loader) layerFragment(embedded map[string]*Fragment, overlayPath, id string) *Fragment {
	if f := l.overlayFragment(overlayPath); f != nil {
		return f
	}
	return embedded[id]
}

func (l *Loader) overlayFragment(path string) *Fragment {
	if l.overlay == nil {
		return nil
	}
	if l.overlayDir != "" {
		path = l.overlayDir + "/" + path
	}
	data, err := hackpadfs.ReadFile(l.overlay, path)
	if err != nil {
		return nil
	}
	frag, err := ParseFragment(data)
	if err != nil {
		l.log.Warn().Str("path", path).Err(err).Msg("overlay fragment unparseable, skipped")
		return nil
	}
	return frag
}

func resolutionKey(vertical, market string, client bool) string {
	v := vertical
	if v == "" {
		v = "-"
	}
	m := market
	if m == "" {
		m = "-"
	}
	c := "-"
	if client {
		c = "client"
	}
	return v + "|" + m + "|" + c
}
