package cluster

import (
	"log/slog"

	"github.com/kozaktomas/face-clusterer/internal/database"
	"github.com/kozaktomas/face-clusterer/internal/vector"
)

// MatchResult is the outcome of comparing one embedding against every
// known representative.
type MatchResult struct {
	PersonID   string  // best identity, empty when none was valid
	Similarity float64 // similarity to PersonID
	Matched    bool    // Similarity >= threshold
	Skipped    []string
}

// Matcher finds the closest representative by cosine similarity.
type Matcher struct {
	Threshold float64
	Dim       int // expected dimension, 0 takes the embedding's own
	Log       *slog.Logger
}

// Match compares embedding against reps. Representatives with a wrong
// dimension or non-finite components are skipped and reported.
// Ties keep the first representative in reps order.
func (m Matcher) Match(embedding []float32, reps []database.Representative) MatchResult {
	dim := m.Dim
	if dim == 0 {
		dim = len(embedding)
	}

	var res MatchResult
	best := -2.0
	for i := range reps {
		rep := &reps[i]
		if !vector.Valid(rep.Vector, dim) {
			res.Skipped = append(res.Skipped, rep.PersonID)
			if m.Log != nil {
				m.Log.Warn("skipping corrupted representative", "person_id", rep.PersonID, "dim", len(rep.Vector))
			}
			continue
		}
		sim := vector.CosineSimilarity(embedding, rep.Vector)
		if m.Log != nil {
			m.Log.Debug("candidate similarity", "person_id", rep.PersonID, "similarity", sim)
		}
		if sim > best {
			best = sim
			res.PersonID = rep.PersonID
			res.Similarity = sim
		}
	}
	res.Matched = res.PersonID != "" && res.Similarity >= m.Threshold
	return res
}
