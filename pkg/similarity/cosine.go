package similarity

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrDimensionMismatch signals a programming-contract violation: two vectors
// of unequal length were compared. It is never swallowed.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Cosine computes the cosine similarity between two vectors.
// A zero-magnitude operand yields 0, never NaN, so downstream ranking stays total.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}

	if magA == 0 || magB == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}

// Scored pairs a candidate index with its similarity to the query.
type Scored struct {
	Index int
	Score float64
}

// TopK ranks every candidate against the query and returns the k best,
// descending by score. Ties keep the candidates' pre-existing relative order
// (stable sort); no secondary key is defined.
func TopK(query []float32, candidates [][]float32, k int) ([]Scored, error) {
	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		score, err := Cosine(query, c)
		if err != nil {
			return nil, err
		}
		scored[i] = Scored{Index: i, Score: score}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k < 0 {
		k = 0
	}
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}
