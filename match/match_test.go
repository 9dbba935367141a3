package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/facegate/distance"
	"github.com/hupe1980/facegate/embedding"
	"github.com/hupe1980/facegate/template"
)

func tmpl(identity string, emb ...float32) template.Template {
	return template.Template{
		Identity:  identity,
		Embedding: embedding.Embedding(emb),
		CreatedAt: time.Now(),
	}
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(distance.MetricL2)
	require.NoError(t, err)
	return e
}

func TestMatchEmptyTemplates(t *testing.T) {
	e := newEngine(t)

	res := e.Match(embedding.Embedding{1, 2}, nil, DefaultThreshold)
	assert.False(t, res.Matched)
	assert.Nil(t, res.BestDistance)
	assert.Nil(t, res.SecondDistance)
}

func TestMatchWithinThreshold(t *testing.T) {
	e := newEngine(t)

	templates := []template.Template{
		tmpl("A123", 0, 0),
		tmpl("B456", 10, 10),
	}

	res := e.Match(embedding.Embedding{0.1, 0}, templates, 0.5)
	assert.True(t, res.Matched)
	assert.Equal(t, "A123", res.Identity)
	assert.InDelta(t, 0.1, res.Distance, 1e-6)
	require.NotNil(t, res.BestDistance)
	assert.InDelta(t, 0.1, *res.BestDistance, 1e-6)
	require.NotNil(t, res.SecondDistance)
	assert.Greater(t, *res.SecondDistance, 1.0)
}

func TestMatchBeyondThreshold(t *testing.T) {
	e := newEngine(t)

	templates := []template.Template{tmpl("A123", 10, 10)}

	res := e.Match(embedding.Embedding{0, 0}, templates, 0.5)
	assert.False(t, res.Matched)
	assert.Empty(t, res.Identity)
	require.NotNil(t, res.BestDistance)
	assert.InDelta(t, 14.1421356, *res.BestDistance, 1e-6)
}

func TestMatchExactDistanceAtThreshold(t *testing.T) {
	e := newEngine(t)

	// Distance exactly equal to the threshold is accepted.
	templates := []template.Template{tmpl("A123", 1, 0)}
	res := e.Match(embedding.Embedding{0, 0}, templates, 1.0)
	assert.True(t, res.Matched)
}

func TestMatchTieBreaksLexicographically(t *testing.T) {
	e := newEngine(t)

	// Both templates are equidistant from the probe; the smaller
	// identity must win regardless of slice order.
	a := tmpl("A123", 1, 0)
	b := tmpl("B456", -1, 0)
	probe := embedding.Embedding{0, 0}

	for _, templates := range [][]template.Template{{a, b}, {b, a}} {
		res := e.Match(probe, templates, 2)
		assert.True(t, res.Matched)
		assert.Equal(t, "A123", res.Identity)
		require.NotNil(t, res.SecondDistance)
		assert.Equal(t, res.Distance, *res.SecondDistance)
	}
}

func TestMatchPicksMinimumNotFirst(t *testing.T) {
	e := newEngine(t)

	// The first template is within threshold but a later one is
	// closer; the closest must win, not the first acceptable.
	templates := []template.Template{
		tmpl("far-but-ok", 0.5, 0),
		tmpl("closest", 0.1, 0),
	}

	res := e.Match(embedding.Embedding{0, 0}, templates, 1.0)
	assert.True(t, res.Matched)
	assert.Equal(t, "closest", res.Identity)
}

func TestMatchSecondDistanceTracksRunnerUp(t *testing.T) {
	e := newEngine(t)

	templates := []template.Template{
		tmpl("near", 0.1, 0),
		tmpl("mid", 0.5, 0),
		tmpl("far", 5, 0),
	}

	res := e.Match(embedding.Embedding{0, 0}, templates, 1.0)
	assert.Equal(t, "near", res.Identity)
	require.NotNil(t, res.SecondDistance)
	assert.InDelta(t, 0.5, *res.SecondDistance, 1e-6)
}

func TestNewEngineUnknownMetric(t *testing.T) {
	_, err := NewEngine(distance.Metric(99))
	assert.Error(t, err)
}
