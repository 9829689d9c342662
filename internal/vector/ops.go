package vector

import "math"

// Valid reports whether v has exactly dim components and none of them is
// NaN or Inf. A dim of zero accepts any non-empty length.
func Valid(v []float32, dim int) bool {
	if len(v) == 0 {
		return false
	}
	if dim > 0 && len(v) != dim {
		return false
	}
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Clone returns a copy of v.
func Clone(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

// Mean returns the component-wise mean of vectors, accumulated in float64.
// Vectors whose length differs from the first one are ignored.
// Returns nil for empty input.
func Mean(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	sum := make([]float64, dim)
	count := 0
	for _, v := range vectors {
		if len(v) != dim {
			continue
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
		count++
	}
	out := make([]float32, dim)
	for i := range sum {
		out[i] = float32(sum[i] / float64(count))
	}
	return out
}

// Average returns the component-wise mean of exactly two vectors.
func Average(a, b []float32) []float32 {
	return Mean([][]float32{a, b})
}

// MedoidIndex returns the index of the vector minimizing the sum of
// Euclidean distances to all other vectors. Ties resolve to the
// lexicographically smallest vector so the chosen value does not depend on
// input order. Returns -1 for empty input.
func MedoidIndex(vectors [][]float32) int {
	if len(vectors) == 0 {
		return -1
	}
	n := len(vectors)
	sums := make([]float64, n)
	for i := range n {
		for j := i + 1; j < n; j++ {
			d := EuclideanDistance(vectors[i], vectors[j])
			sums[i] += d
			sums[j] += d
		}
	}
	best := 0
	for i := 1; i < n; i++ {
		if sums[i] < sums[best] || (sums[i] == sums[best] && less(vectors[i], vectors[best])) {
			best = i
		}
	}
	return best
}

// Medoid returns a copy of the medoid of vectors, or nil for empty input.
func Medoid(vectors [][]float32) []float32 {
	idx := MedoidIndex(vectors)
	if idx < 0 {
		return nil
	}
	return Clone(vectors[idx])
}

func less(a, b []float32) bool {
	for i := range min(len(a), len(b)) {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
