package enrollment

import (
	"math"
	"math/rand/v2"

	"github.com/kozaktomas/face-clusterer/internal/vector"
)

const kmeansMaxIterations = 100

// KMeans partitions vectors into k clusters with k-means++ seeding and
// Lloyd iterations under Euclidean distance. The same seed always yields
// the same partition. k is capped at len(vectors).
func KMeans(vectors [][]float32, k int, seed uint64) *Clusters {
	n := len(vectors)
	if n == 0 || k <= 0 {
		return nil
	}
	k = min(k, n)
	rng := rand.New(rand.NewPCG(seed, seed))

	centroids := seedCentroids(vectors, k, rng)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}

	for range kmeansMaxIterations {
		changed := false
		for i, v := range vectors {
			best := nearestCentroid(v, centroids)
			if best != labels[i] {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		for c := range centroids {
			var members [][]float32
			for i, l := range labels {
				if l == c {
					members = append(members, vectors[i])
				}
			}
			// An emptied cluster keeps its previous centroid.
			if len(members) > 0 {
				centroids[c] = vector.Mean(members)
			}
		}
	}
	return &Clusters{Centroids: centroids, Labels: labels}
}

func seedCentroids(vectors [][]float32, k int, rng *rand.Rand) [][]float32 {
	n := len(vectors)
	centroids := make([][]float32, 0, k)
	chosen := make([]bool, n)

	first := rng.IntN(n)
	centroids = append(centroids, vector.Clone(vectors[first]))
	chosen[first] = true

	dist := make([]float64, n)
	for len(centroids) < k {
		total := 0.0
		for i, v := range vectors {
			d := math.Inf(1)
			for _, c := range centroids {
				e := vector.EuclideanDistance(v, c)
				d = min(d, e*e)
			}
			dist[i] = d
			total += d
		}

		next := -1
		if total > 0 {
			r := rng.Float64() * total
			for i, d := range dist {
				r -= d
				if r <= 0 && !chosen[i] {
					next = i
					break
				}
			}
		}
		// Degenerate input (duplicates): take the first unused vector.
		if next < 0 {
			for i := range vectors {
				if !chosen[i] {
					next = i
					break
				}
			}
		}
		chosen[next] = true
		centroids = append(centroids, vector.Clone(vectors[next]))
	}
	return centroids
}

func nearestCentroid(v []float32, centroids [][]float32) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := vector.EuclideanDistance(v, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
