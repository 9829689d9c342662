package cluster

import (
	"github.com/kozaktomas/face-clusterer/internal/database"
	"github.com/kozaktomas/face-clusterer/internal/vector"
)

// Strategy derives a representative vector from a history window.
type Strategy func(history [][]float32) []float32

// Medoid is the steady-state strategy: the history member minimizing the
// sum of Euclidean distances to the others.
func Medoid(history [][]float32) []float32 {
	return vector.Medoid(history)
}

// Mean is the bootstrap strategy: the component-wise mean of the window.
func Mean(history [][]float32) []float32 {
	return vector.Mean(history)
}

// PushHistory appends v and evicts the oldest entries so at most n remain.
// The returned slice never aliases history.
func PushHistory(history [][]float32, v []float32, n int) [][]float32 {
	if n <= 0 {
		n = 1
	}
	out := make([][]float32, 0, min(len(history)+1, n))
	start := len(history) + 1 - n
	if start < 0 {
		start = 0
	}
	for i := start; i < len(history); i++ {
		out = append(out, history[i])
	}
	return append(out, vector.Clone(v))
}

// LastN returns a copy of the n most recent vectors.
func LastN(vectors [][]float32, n int) [][]float32 {
	if n > 0 && len(vectors) > n {
		vectors = vectors[len(vectors)-n:]
	}
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		out[i] = vector.Clone(v)
	}
	return out
}

// UpdateRepresentative appends embedding to the history of rep (creating rep
// when nil) and recomputes the vector with strategy.
func UpdateRepresentative(rep *database.Representative, personID string, embedding []float32, n int, strategy Strategy) database.Representative {
	var history [][]float32
	if rep != nil {
		history = rep.History
	}
	history = PushHistory(history, embedding, n)
	return database.Representative{
		PersonID: personID,
		Vector:   strategy(history),
		History:  history,
	}
}

// NewRepresentative builds a representative from the last n members with strategy.
func NewRepresentative(personID string, members [][]float32, n int, strategy Strategy) database.Representative {
	history := LastN(members, n)
	return database.Representative{
		PersonID: personID,
		Vector:   strategy(history),
		History:  history,
	}
}
