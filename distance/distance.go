// Package distance provides the vector distance calculations used to
// compare face embeddings.
//
// The metric must match whatever the external embedding provider's
// vectors are calibrated for. dlib-style 128-dimensional face
// embeddings are calibrated for Euclidean (L2) distance, which is the
// default throughout facegate.
package distance

import (
	"fmt"
	"math"
)

// SquaredL2 calculates the squared L2 (Euclidean) distance between two
// vectors. Assumes vectors are the same length (caller's
// responsibility).
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// Euclidean calculates the L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Euclidean(a, b []float32) float64 {
	return math.Sqrt(SquaredL2(a, b))
}

// Cosine calculates the cosine distance (1 - cosine similarity)
// between two vectors. Returns a value in [0, 2]; zero or
// length-mismatched vectors yield the maximum distance 2.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2.0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors.
	sim = math.Max(-1, math.Min(1, sim))
	return 1 - sim
}

// Metric represents the distance metric used for embedding comparison.
type Metric int

const (
	MetricL2 Metric = iota
	MetricSquaredL2
	MetricCosine
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "L2"
	case MetricSquaredL2:
		return "SquaredL2"
	case MetricCosine:
		return "Cosine"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// Func is a function type for distance calculation.
// Smaller results mean more similar vectors.
type Func func(a, b []float32) float64

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricL2:
		return Euclidean, nil
	case MetricSquaredL2:
		return SquaredL2, nil
	case MetricCosine:
		return Cosine, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}
