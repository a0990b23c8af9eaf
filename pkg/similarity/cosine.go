// Package similarity provides vector and text similarity utilities.
package similarity

import "math"

// CosineSimilarity computes the cosine similarity between two float32 vectors.
// Returns a value in [-1, 1], where 1 means identical direction.
// Mismatched lengths, empty slices and zero-magnitude vectors return 0.
func CosineSimilarity(a, b []float32) float64 {
	dot, normA, normB, ok := accumulate(a, b)
	if !ok || normA == 0 || normB == 0 {
		return 0
	}
	return cosine(dot, normA, normB)
}

// ScaledCosine maps cosine similarity from [-1, 1] onto [0, 1]:
// 0.5 is orthogonal, 1 is the same direction, 0 is the opposite direction.
//
// Vectors that cannot be compared (mismatched length, empty, zero magnitude)
// yield NaN, so any threshold comparison against them is false.
func ScaledCosine(a, b []float32) float64 {
	dot, normA, normB, ok := accumulate(a, b)
	if !ok || normA == 0 || normB == 0 {
		return math.NaN()
	}
	return (cosine(dot, normA, normB) + 1) / 2
}

// Magnitude returns the Euclidean norm of v.
func Magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		f := float64(x)
		sum += f * f
	}
	return math.Sqrt(sum)
}

// cosine takes one square root of the product so identical vectors give
// exactly 1, and clamps rounding overshoot to [-1, 1].
func cosine(dot, normA, normB float64) float64 {
	c := dot / math.Sqrt(normA*normB)
	return math.Max(-1, math.Min(1, c))
}

func accumulate(a, b []float32) (dot, normA, normB float64, ok bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, 0, 0, false
	}
	for i := range a {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	return dot, normA, normB, true
}
