// Package match implements the deterministic matching engine that
// compares a probe embedding against enrolled templates.
//
// The decision rule is minimum distance with a lexicographic identity
// tie-break, so the outcome depends only on the template set and the
// probe — never on enumeration order.
package match

import (
	"github.com/hupe1980/facegate/distance"
	"github.com/hupe1980/facegate/embedding"
	"github.com/hupe1980/facegate/template"
)

// DefaultThreshold is the accept threshold for dlib-style face
// embeddings under Euclidean distance.
//
// Distance thresholds are calibration-sensitive: they depend on the
// embedding provider and metric, and must be overridable per
// deployment rather than baked in.
const DefaultThreshold = 0.6

// Result is the outcome of matching a probe against a template set.
type Result struct {
	// Matched reports whether the best template was within threshold.
	Matched bool

	// Identity is the matched identity. Only set when Matched.
	Identity string

	// Distance is the distance to the matched template. Only
	// meaningful when Matched.
	Distance float64

	// BestDistance is the minimum distance observed over all
	// templates, nil when the template set was empty.
	BestDistance *float64

	// SecondDistance is the distance to the best template of a
	// different identity than the winner, nil when fewer than two
	// identities were compared. Callers can use it to detect
	// ambiguous near-ties.
	SecondDistance *float64
}

// Engine compares probe embeddings against template sets using a
// configured distance metric.
type Engine struct {
	metric distance.Metric
	fn     distance.Func
}

// NewEngine creates a match engine for the given metric.
func NewEngine(metric distance.Metric) (*Engine, error) {
	fn, err := distance.Provider(metric)
	if err != nil {
		return nil, err
	}
	return &Engine{metric: metric, fn: fn}, nil
}

// Metric returns the engine's configured distance metric.
func (e *Engine) Metric() distance.Metric { return e.metric }

// Match compares probe against every template and returns the best
// accepted match, or a no-match carrying the minimum observed
// distance.
//
// Ties on minimum distance are broken by the lexicographically
// smallest identity. An empty template set yields a no-match with a
// nil BestDistance; it is a defined outcome, not an error.
//
// Probe and template embeddings must share the same dimensionality;
// the store guarantees this for its snapshots.
func (e *Engine) Match(probe embedding.Embedding, templates []template.Template, threshold float64) Result {
	if len(templates) == 0 {
		return Result{}
	}

	var (
		bestIdentity string
		bestDist     float64
		secondDist   float64
		haveBest     bool
		haveSecond   bool
	)

	for _, tmpl := range templates {
		d := e.fn(probe, tmpl.Embedding)

		switch {
		case !haveBest:
			bestIdentity, bestDist, haveBest = tmpl.Identity, d, true
		case d < bestDist || (d == bestDist && tmpl.Identity < bestIdentity):
			if !haveSecond || bestDist < secondDist {
				secondDist, haveSecond = bestDist, true
			}
			bestIdentity, bestDist = tmpl.Identity, d
		default:
			if !haveSecond || d < secondDist {
				secondDist, haveSecond = d, true
			}
		}
	}

	res := Result{BestDistance: &bestDist}
	if haveSecond {
		res.SecondDistance = &secondDist
	}

	if bestDist <= threshold {
		res.Matched = true
		res.Identity = bestIdentity
		res.Distance = bestDist
	}

	return res
}
