package cluster

import "sort"

// Pair is one (unknown face, identity) similarity.
type Pair struct {
	Face       int
	Identity   string
	Similarity float64
}

// Assignment is an accepted pair.
type Assignment = Pair

// GreedyAssign performs the global greedy bipartite matching used for
// group photos: pairs are taken by descending similarity, a face or
// identity already consumed is skipped, and the scan stops below threshold.
// Equal similarities keep input order.
func GreedyAssign(pairs []Pair, threshold float64) []Assignment {
	sorted := make([]Pair, len(pairs))
	copy(sorted, pairs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Similarity > sorted[j].Similarity
	})

	usedFaces := make(map[int]bool)
	usedIdentities := make(map[string]bool)
	var out []Assignment
	for _, p := range sorted {
		if p.Similarity < threshold {
			break
		}
		if usedFaces[p.Face] || usedIdentities[p.Identity] {
			continue
		}
		usedFaces[p.Face] = true
		usedIdentities[p.Identity] = true
		out = append(out, p)
	}
	return out
}
