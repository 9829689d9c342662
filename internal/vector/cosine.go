// Package vector holds the embedding arithmetic shared by the matcher,
// the bootstrap clusterer and the enrollment subsystem.
//
// Similarity is the single convention used across the module: cosine
// similarity, higher is closer. Distances are only derived from it where
// an algorithm needs a metric (HDBSCAN, medoid selection).
package vector

import "math"

// CosineSimilarity returns the cosine similarity of a and b in [-1, 1].
// Mismatched lengths, empty input and zero vectors yield -1 so that an
// invalid pair can never win a best-match comparison.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return -1
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return similarity
}

// CosineDistance returns 1 - CosineSimilarity, a value between 0 (identical)
// and 2 (opposite).
func CosineDistance(a, b []float32) float64 {
	return 1 - CosineSimilarity(a, b)
}

// EuclideanDistance returns the L2 distance between a and b.
// Mismatched lengths yield +Inf.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// CosineDistanceMatrix returns the symmetric pairwise cosine distance matrix
// of vectors. The diagonal is zero.
func CosineDistanceMatrix(vectors [][]float32) [][]float64 {
	n := len(vectors)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for i := range n {
		for j := i + 1; j < n; j++ {
			d := CosineDistance(vectors[i], vectors[j])
			if d < 0 {
				d = 0
			}
			m[i][j] = d
			m[j][i] = d
		}
	}
	return m
}
