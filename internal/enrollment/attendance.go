package enrollment

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-clusterer/internal/cluster"
	"github.com/kozaktomas/face-clusterer/internal/vector"
)

// Attendee is one enrolled user recognized in a group photo.
type Attendee struct {
	UserID     string  `json:"user_id"`
	Name       string  `json:"name,omitempty"`
	Similarity float64 `json:"similarity"`
}

// AttendanceResult is the roll call of one group photo.
type AttendanceResult struct {
	FacesDetected int        `json:"faces_detected"`
	Attendees     []Attendee `json:"attendees"`
	Count         int        `json:"count"`
	Duration      float64    `json:"duration_seconds"`
}

// CheckAttendance detects every face in a group photo and assigns faces to
// enrolled users by global greedy matching. Each face and each user is
// used at most once.
func (s *Service) CheckAttendance(ctx context.Context, img cluster.Image) (*AttendanceResult, error) {
	start := time.Now()

	faces, err := s.detector.Detect(ctx, img.Data, img.Name)
	if err != nil {
		return nil, fmt.Errorf("detecting faces: %w", err)
	}

	result := &AttendanceResult{FacesDetected: len(faces), Attendees: []Attendee{}}
	if len(faces) == 0 {
		result.Duration = time.Since(start).Seconds()
		return result, nil
	}

	s.mu.RLock()
	var pairs []cluster.Pair
	for _, id := range s.sortedIDs() {
		ud := s.users[id]
		for fi, face := range faces {
			if !vector.Valid(face.Embedding, 0) {
				continue
			}
			for _, known := range candidateVectors(ud, face.Embedding) {
				if len(known) != len(face.Embedding) {
					continue
				}
				pairs = append(pairs, cluster.Pair{
					Face:       fi,
					Identity:   id,
					Similarity: vector.CosineSimilarity(known, face.Embedding),
				})
			}
		}
	}
	names := make(map[string]string, len(s.names))
	for id, n := range s.names {
		names[id] = n
	}
	s.mu.RUnlock()

	for _, a := range cluster.GreedyAssign(pairs, s.threshold) {
		result.Attendees = append(result.Attendees, Attendee{
			UserID:     a.Identity,
			Name:       names[a.Identity],
			Similarity: a.Similarity,
		})
	}
	result.Count = len(result.Attendees)
	result.Duration = time.Since(start).Seconds()

	s.log.Info("attendance checked", "file", img.Name, "faces", len(faces),
		"present", result.Count, "duration", result.Duration)
	return result, nil
}

// candidateVectors narrows a user's raw vectors to the cluster whose
// centroid is closest to emb. Unclustered users compare against all.
func candidateVectors(ud *UserData, emb []float32) [][]float32 {
	if ud.Clusters == nil || len(ud.Clusters.Centroids) == 0 {
		return ud.Raw
	}
	best, bestSim := -1, 0.0
	for c, centroid := range ud.Clusters.Centroids {
		if len(centroid) != len(emb) {
			continue
		}
		if sim := vector.CosineSimilarity(centroid, emb); best < 0 || sim > bestSim {
			best, bestSim = c, sim
		}
	}
	if best < 0 {
		return ud.Raw
	}
	var out [][]float32
	for i, label := range ud.Clusters.Labels {
		if label == best && i < len(ud.Raw) {
			out = append(out, ud.Raw[i])
		}
	}
	return out
}
