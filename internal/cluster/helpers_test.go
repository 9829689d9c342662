package cluster

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kozaktomas/face-clusterer/internal/config"
	"github.com/kozaktomas/face-clusterer/internal/database"
	"github.com/kozaktomas/face-clusterer/internal/database/memory"
	"github.com/kozaktomas/face-clusterer/internal/faceengine"
)

const testDim = 4

// fakeDetector returns canned faces keyed by image content.
type fakeDetector struct {
	mu    sync.Mutex
	faces map[string][]faceengine.Face
	calls int
	boxes int
}

func newFakeDetector() *fakeDetector {
	return &fakeDetector{faces: make(map[string][]faceengine.Face)}
}

func (d *fakeDetector) Detect(_ context.Context, data []byte, _ string) ([]faceengine.Face, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if string(data) == "corrupt" {
		return nil, errors.New("API error (status 422): cannot decode image")
	}
	return d.faces[string(data)], nil
}

// image registers an image whose faces have the given embeddings. Every
// registered face gets its own 100x100 box, so only re-detecting the same
// image yields duplicates.
func (d *fakeDetector) image(key string, embeddings ...[]float32) Image {
	d.mu.Lock()
	defer d.mu.Unlock()
	faces := make([]faceengine.Face, len(embeddings))
	for i, emb := range embeddings {
		d.boxes++
		top := 1000 * d.boxes
		faces[i] = faceengine.Face{
			Index:     i,
			Location:  database.Location{Top: top, Right: 100, Bottom: top + 100, Left: 0},
			Embedding: emb,
		}
	}
	d.faces[key] = faces
	return Image{Name: key + ".jpg", Data: []byte(key)}
}

func basis(i int) []float32 {
	v := make([]float32, testDim)
	v[i] = 1
	return v
}

// near returns basis(i) tilted slightly towards basis(j).
func near(i, j int, eps float32) []float32 {
	v := basis(i)
	v[j] += eps
	return v
}

func testConfig() config.ClusteringConfig {
	return config.ClusteringConfig{
		AlbumThreshold:      0.45,
		AttendanceThreshold: 0.43,
		HistorySize:         3,
		DuplicateSimilarity: 0.95,
		MinFaceSize:         60,
		MinClusterSize:      2,
	}
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *memory.Store, *fakeDetector) {
	t.Helper()
	store := memory.New()
	det := newFakeDetector()
	opts = append([]Option{WithDimension(testDim), WithConcurrency(2)}, opts...)
	return NewEngine(store, det, testConfig(), opts...), store, det
}

func classifyOne(t *testing.T, e *Engine, img Image) FileResult {
	t.Helper()
	results, err := e.Classify(context.Background(), []Image{img})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	return results[0]
}

func mustRep(t *testing.T, s database.Store, personID string) *database.Representative {
	t.Helper()
	rep, err := s.GetRepresentative(context.Background(), personID)
	if err != nil {
		t.Fatalf("GetRepresentative failed: %v", err)
	}
	return rep
}

type fakeNames map[string]string

func (n fakeNames) DisplayName(personID string) (string, bool) {
	name, ok := n[personID]
	return name, ok
}
