package faceengine

import (
	"context"
	"fmt"
	"math"

	"github.com/kozaktomas/face-clusterer/internal/database"
)

// Detector finds faces in an encoded image and returns one embedding per face.
type Detector interface {
	Detect(ctx context.Context, imageData []byte, filename string) ([]Face, error)
}

// FaceDetection represents a single detected face as returned by the engine
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Face is a detected face converted to ledger coordinates.
type Face struct {
	Index     int
	Location  database.Location
	Embedding []float32
	DetScore  float64
}

// LocationFromBBox converts an [x1, y1, x2, y2] box to [top, right, bottom, left].
// Coordinates are rounded to whole pixels.
func LocationFromBBox(bbox []float64) (database.Location, error) {
	if len(bbox) != 4 {
		return database.Location{}, fmt.Errorf("bbox must have 4 values, got %d", len(bbox))
	}
	for _, v := range bbox {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return database.Location{}, fmt.Errorf("bbox has non-finite value %v", v)
		}
	}
	return database.Location{
		Top:    int(math.Round(bbox[1])),
		Right:  int(math.Round(bbox[2])),
		Bottom: int(math.Round(bbox[3])),
		Left:   int(math.Round(bbox[0])),
	}, nil
}

// TooSmall reports whether a face box is under minSize pixels in either direction.
func TooSmall(loc database.Location, minSize int) bool {
	return loc.Width() < minSize || loc.Height() < minSize
}
