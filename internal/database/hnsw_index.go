package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// HNSWIndexMetadata stores metadata for validating cached HNSW indexes.
type HNSWIndexMetadata struct {
	FaceCount  int       `json:"face_count"`
	LastFaceID string    `json:"last_face_id"`
	Dim        int       `json:"dim"`
	BuildTime  time.Time `json:"build_time"`
	Version    int       `json:"version"`
}

const hnswMetadataVersion = 1

// FaceIndex is an approximate nearest-neighbor graph over ledger embeddings,
// keyed by face ID. It only answers "similar faces" queries; identity
// matching never goes through it.
type FaceIndex struct {
	graph *hnsw.Graph[string]
	ids   map[string]struct{}
	dim   int
	mu    sync.RWMutex
}

// NewFaceIndex creates an empty index accepting vectors of dimension dim
// (zero accepts the dimension of the first vector added).
func NewFaceIndex(dim int) *FaceIndex {
	return &FaceIndex{
		ids: make(map[string]struct{}),
		dim: dim,
	}
}

func newFaceGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.CosineDistance
	return g
}

// BuildFromRecords replaces the index content with the embeddings of records.
func (x *FaceIndex) BuildFromRecords(records []FaceRecord) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.graph = nil
	x.ids = make(map[string]struct{}, len(records))
	for i := range records {
		x.addLocked(records[i].FaceID, records[i].Embedding)
	}
}

// Add inserts a single face. Faces already indexed and embeddings of the
// wrong dimension are ignored; hnsw panics on mixed dimensions.
func (x *FaceIndex) Add(faceID string, embedding []float32) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.addLocked(faceID, embedding)
}

func (x *FaceIndex) addLocked(faceID string, embedding []float32) {
	if _, ok := x.ids[faceID]; ok || len(embedding) == 0 {
		return
	}
	if x.dim == 0 {
		x.dim = len(embedding)
	}
	if len(embedding) != x.dim {
		return
	}
	if x.graph == nil {
		x.graph = newFaceGraph()
	}
	// hnsw keeps the slice, so hand it a private copy.
	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	x.graph.Add(hnsw.MakeNode(faceID, vec))
	x.ids[faceID] = struct{}{}
}

// Search finds the k nearest faces to query and returns their IDs with
// cosine similarities, best first.
func (x *FaceIndex) Search(query []float32, k int) ([]string, []float64, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil {
		return nil, nil, errors.New("index not initialized")
	}
	if len(query) != x.dim {
		return nil, nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), x.dim)
	}

	neighbors := x.graph.Search(query, k)
	ids := make([]string, len(neighbors))
	sims := make([]float64, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.Key
		sims[i] = 1 - float64(hnsw.CosineDistance(query, n.Value))
	}
	return ids, sims, nil
}

// Count returns the number of indexed faces.
func (x *FaceIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// Contains reports whether faceID is indexed.
func (x *FaceIndex) Contains(faceID string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.ids[faceID]
	return ok
}

// Save persists the graph to path and metadata to path+".meta".
func (x *FaceIndex) Save(path string, lastFaceID string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	if err := x.graph.Export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing HNSW index file: %w", err)
	}

	metaData, err := json.Marshal(HNSWIndexMetadata{
		FaceCount:  len(x.ids),
		LastFaceID: lastFaceID,
		Dim:        x.dim,
		BuildTime:  time.Now(),
		Version:    hnswMetadataVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// LoadHNSWMetadata loads metadata from a separate .meta file.
func LoadHNSWMetadata(path string) (HNSWIndexMetadata, error) {
	var metadata HNSWIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}

// LoadOrBuild loads a persisted graph from path when its metadata matches
// the ledger (same face count and last face ID), otherwise rebuilds from
// records. It reports whether the graph came from disk.
func (x *FaceIndex) LoadOrBuild(path string, records []FaceRecord) (bool, error) {
	lastFaceID := ""
	if len(records) > 0 {
		lastFaceID = records[len(records)-1].FaceID
	}

	if path != "" {
		meta, err := LoadHNSWMetadata(path)
		if err == nil && meta.Version == hnswMetadataVersion &&
			meta.FaceCount == len(records) && meta.LastFaceID == lastFaceID {
			saved, err := hnsw.LoadSavedGraph[string](path)
			if err != nil {
				return false, fmt.Errorf("failed to load HNSW index: %w", err)
			}
			x.mu.Lock()
			defer x.mu.Unlock()
			x.graph = saved.Graph
			x.dim = meta.Dim
			x.ids = make(map[string]struct{}, len(records))
			for i := range records {
				x.ids[records[i].FaceID] = struct{}{}
			}
			return true, nil
		}
	}

	x.BuildFromRecords(records)
	return false, nil
}
