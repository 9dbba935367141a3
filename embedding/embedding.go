// Package embedding defines the output types of the external face
// embedding provider and the validation applied before an embedding
// enters the template store or match engine.
//
// The provider itself (camera capture, image decoding, the numeric
// extraction model) is an external collaborator. Facegate only ever
// sees fixed-length float vectors; it never touches raw pixels.
package embedding

import (
	"fmt"
	"image"
	"math"
	"slices"
)

// DefaultDimension is the dimensionality of dlib-style face
// embeddings, the most common provider output.
const DefaultDimension = 128

// Embedding is a fixed-length face embedding vector.
type Embedding []float32

// Clone returns an independent copy of the embedding.
func (e Embedding) Clone() Embedding {
	return slices.Clone(e)
}

// Detection is one detected face in a captured frame: the bounding
// region reported by the provider plus the embedding extracted from
// it. A frame may yield zero, one, or multiple detections; which
// detection is "primary" when there are several is the caller's
// policy, not facegate's.
type Detection struct {
	Region    image.Rectangle
	Embedding Embedding
}

// ErrDimensionMismatch indicates an embedding whose length does not
// match the configured dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrNotFinite indicates an embedding containing NaN or Inf values.
type ErrNotFinite struct {
	Index int
}

func (e *ErrNotFinite) Error() string {
	return fmt.Sprintf("embedding contains non-finite value at index %d", e.Index)
}

// Validate checks that v has the expected dimension and contains only
// finite values.
func Validate(v Embedding, dim int) error {
	if len(v) != dim {
		return &ErrDimensionMismatch{Expected: dim, Actual: len(v)}
	}
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return &ErrNotFinite{Index: i}
		}
	}
	return nil
}
