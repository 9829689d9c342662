package database

import (
	"fmt"
	"path/filepath"
	"testing"
)

func indexRecords(n int) []FaceRecord {
	records := make([]FaceRecord, n)
	for i := range records {
		emb := make([]float32, 8)
		emb[i%8] = 1
		emb[(i+1)%8] = float32(i) / float32(n)
		records[i] = FaceRecord{FaceID: fmt.Sprintf("face_%04d", i), Embedding: emb}
	}
	return records
}

func TestFaceIndex_Search(t *testing.T) {
	x := NewFaceIndex(8)
	records := indexRecords(16)
	x.BuildFromRecords(records)

	if x.Count() != 16 {
		t.Fatalf("expected 16 faces, got %d", x.Count())
	}

	ids, sims, err := x.Search(records[3].Embedding, 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(ids) == 0 || ids[0] != "face_0003" {
		t.Errorf("expected face_0003 first, got %v", ids)
	}
	if sims[0] < 0.999 {
		t.Errorf("expected self similarity ~1, got %f", sims[0])
	}

	if _, _, err := x.Search([]float32{1, 2}, 3); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestFaceIndex_AddSkipsDuplicatesAndWrongDim(t *testing.T) {
	x := NewFaceIndex(0)
	x.Add("face_0000", []float32{1, 0, 0})
	x.Add("face_0000", []float32{0, 1, 0})
	x.Add("face_0001", []float32{1, 0})
	if x.Count() != 1 {
		t.Errorf("expected 1 face, got %d", x.Count())
	}
	if !x.Contains("face_0000") || x.Contains("face_0001") {
		t.Error("unexpected index content")
	}
}

func TestFaceIndex_SearchEmpty(t *testing.T) {
	if _, _, err := NewFaceIndex(8).Search(make([]float32, 8), 1); err == nil {
		t.Error("expected error searching an empty index")
	}
}

func TestFaceIndex_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces.hnsw")
	records := indexRecords(10)

	x := NewFaceIndex(8)
	x.BuildFromRecords(records)
	if err := x.Save(path, records[len(records)-1].FaceID); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := NewFaceIndex(8)
	fromDisk, err := loaded.LoadOrBuild(path, records)
	if err != nil {
		t.Fatalf("LoadOrBuild failed: %v", err)
	}
	if !fromDisk {
		t.Error("expected index to load from disk")
	}
	if loaded.Count() != 10 {
		t.Errorf("expected 10 faces, got %d", loaded.Count())
	}

	// A ledger that grew since the save forces a rebuild.
	grown := indexRecords(11)
	rebuilt := NewFaceIndex(8)
	fromDisk, err = rebuilt.LoadOrBuild(path, grown)
	if err != nil {
		t.Fatalf("LoadOrBuild failed: %v", err)
	}
	if fromDisk {
		t.Error("expected rebuild for stale metadata")
	}
	if rebuilt.Count() != 11 {
		t.Errorf("expected 11 faces, got %d", rebuilt.Count())
	}
}
