// Package similarity scores how close two texts are. Two interchangeable
// strategies share one contract: a score in [-1,1] or nil when either side is
// empty or unavailable.
package similarity

import "math"

// Cosine returns the cosine similarity of two equal-length vectors.
// ok is false for empty input, mismatched lengths, or a zero-magnitude vector;
// callers treat that as "no score".
func Cosine[T float32 | float64](a, b []T) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, magA, magB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		magA += x * x
		magB += y * y
	}
	if magA == 0 || magB == 0 {
		return 0, false
	}

	sim := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	// Clamp float error so sim(a,a) == 1 and the result stays in range.
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim, true
}
