package cluster

import (
	"github.com/kozaktomas/face-clusterer/internal/database"
	"github.com/kozaktomas/face-clusterer/internal/vector"
)

// DuplicateIndex answers "was this exact face already recorded": same
// bounding box and embedding similarity above the threshold.
type DuplicateIndex struct {
	threshold  float64
	byLocation map[database.Location][]dupEntry
}

type dupEntry struct {
	faceID    string
	embedding []float32
}

// NewDuplicateIndex indexes records by location.
func NewDuplicateIndex(records []database.FaceRecord, threshold float64) *DuplicateIndex {
	d := &DuplicateIndex{
		threshold:  threshold,
		byLocation: make(map[database.Location][]dupEntry),
	}
	for i := range records {
		d.Add(records[i].FaceID, records[i].Location, records[i].Embedding)
	}
	return d
}

// Add registers a face.
func (d *DuplicateIndex) Add(faceID string, loc database.Location, embedding []float32) {
	d.byLocation[loc] = append(d.byLocation[loc], dupEntry{faceID: faceID, embedding: embedding})
}

// Find returns the ID of a recorded face duplicating (loc, embedding).
func (d *DuplicateIndex) Find(loc database.Location, embedding []float32) (string, bool) {
	for _, e := range d.byLocation[loc] {
		if vector.CosineSimilarity(e.embedding, embedding) > d.threshold {
			return e.faceID, true
		}
	}
	return "", false
}
