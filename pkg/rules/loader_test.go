package rules

import (
	"testing"

	"github.com/hack-pad/hackpadfs"
	"github.com/hack-pad/hackpadfs/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, fs hackpadfs.FS, path, content string) {
	t.Helper()
	require.NoError(t, hackpadfs.MkdirAll(fs, "rules/verticals", 0o755))
	require.NoError(t, hackpadfs.MkdirAll(fs, "rules/markets", 0o755))
	require.NoError(t, hackpadfs.WriteFullFile(fs, path, []byte(content), 0o644))
}

func TestLoaderEmbeddedDefaults(t *testing.T) {
	l, err := NewLoader()
	require.NoError(t, err)

	rs := l.Resolve("", "", nil)
	assert.Equal(t, []string{LayerGlobal}, rs.Provenance.LayersApplied)
	assert.True(t, rs.Stopwords["the"])
	assert.False(t, rs.Stopwords["&"], "normalization strips ampersands; the list carries words only")
	assert.Equal(t, 30, rs.CharLimits.Title)
	assert.NotEmpty(t, rs.IntentPatterns)
	assert.NotEmpty(t, rs.Formulas)
	assert.NotEmpty(t, rs.Templates)
}

func TestLoaderVerticalAndMarketLayers(t *testing.T) {
	l, err := NewLoader()
	require.NoError(t, err)

	rs := l.Resolve("rewards", "de-DE", nil)
	assert.Equal(t, []string{LayerGlobal, LayerVertical, LayerMarket}, rs.Provenance.LayersApplied)
	assert.Equal(t, 3, rs.Relevance["free"], "rewards vertical promotes 'free' to tier 3")
	assert.True(t, rs.Stopwords["und"], "market stopwords merged in")
	assert.Equal(t, "rewards|de-de|-", rs.Key)
}

func TestLoaderUnknownVerticalFallsBack(t *testing.T) {
	l, err := NewLoader()
	require.NoError(t, err)

	rs := l.Resolve("astrology", "en-US", nil)
	assert.Equal(t, []string{LayerGlobal, LayerMarket}, rs.Provenance.LayersApplied)
	assert.Equal(t, 1, rs.Relevance["free"], "global tier survives")

	require.NotEmpty(t, rs.Provenance.Warnings)
	w := rs.Provenance.Warnings[0]
	assert.Equal(t, WarnUnknownLayer, w.Code)
	assert.Equal(t, "astrology", w.Subject)
}

func TestLoaderOverlayFS(t *testing.T) {
	fs, err := mem.NewFS()
	require.NoError(t, err)
	writeFile(t, fs, "rules/verticals/travel.yaml", `
relevance:
  flights: 3
  hotels: 3
`)

	l, err := NewLoader(WithOverlayFS(fs, "rules"))
	require.NoError(t, err)

	rs := l.Resolve("travel", "", nil)
	assert.Equal(t, 3, rs.Relevance["flights"])
	assert.Contains(t, rs.Provenance.LayersApplied, LayerVertical)
}

func TestLoaderOverlayBeatsEmbedded(t *testing.T) {
	fs, err := mem.NewFS()
	require.NoError(t, err)
	writeFile(t, fs, "rules/verticals/rewards.yaml", `
relevance:
  free: 2
`)

	l, err := NewLoader(WithOverlayFS(fs, "rules"))
	require.NoError(t, err)

	rs := l.Resolve("rewards", "", nil)
	assert.Equal(t, 2, rs.Relevance["free"], "overlay file replaces the embedded vertical")
}

func TestClientLayerApplied(t *testing.T) {
	l, err := NewLoader()
	require.NoError(t, err)

	client := &Fragment{Relevance: map[string]int{"free": 2}}
	rs := l.Resolve("rewards", "", client)
	assert.Equal(t, 2, rs.Relevance["free"], "client beats vertical")
	assert.True(t, rs.Provenance.Client)
	assert.Equal(t, "rewards|-|client", rs.Key)
}

func TestParseFragmentIgnoresUnknownKeys(t *testing.T) {
	frag, err := ParseFragment([]byte(`
relevance:
  learn: 3
some_future_field:
  nested: true
`))
	require.NoError(t, err)
	assert.Equal(t, 3, frag.Relevance["learn"])
}

func TestParseFragmentBadYAML(t *testing.T) {
	_, err := ParseFragment([]byte("relevance: [not: a: map"))
	assert.Error(t, err)
}
