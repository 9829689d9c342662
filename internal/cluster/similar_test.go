package cluster

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestSimilarFaces(t *testing.T) {
	e, _, det := newTestEngine(t)
	ctx := context.Background()

	classifyOne(t, e, det.image("a", basis(0)))
	classifyOne(t, e, det.image("b", near(0, 1, 0.1)))
	classifyOne(t, e, det.image("c", basis(2)))

	matches, err := e.SimilarFaces(ctx, "face_0000", 1)
	if err != nil {
		t.Fatalf("SimilarFaces failed: %v", err)
	}
	if len(matches) != 1 || matches[0].FaceID != "face_0001" {
		t.Fatalf("expected face_0001, got %+v", matches)
	}
	if matches[0].PersonID != "person_0" {
		t.Errorf("expected effective person person_0, got %s", matches[0].PersonID)
	}

	// Faces classified after the index was built are searchable too.
	classifyOne(t, e, det.image("d", near(2, 3, 0.1)))
	matches, err = e.SimilarFaces(ctx, "face_0002", 5)
	if err != nil {
		t.Fatalf("SimilarFaces failed: %v", err)
	}
	if len(matches) == 0 || matches[0].FaceID != "face_0003" {
		t.Errorf("expected face_0003 first, got %+v", matches)
	}
	for _, m := range matches {
		if m.FaceID == "face_0002" {
			t.Error("query face must be excluded")
		}
	}
}

func TestSimilarFaces_NotFound(t *testing.T) {
	e, _, _ := newTestEngine(t)
	if _, err := e.SimilarFaces(context.Background(), "face_0042", 3); !errors.Is(err, ErrFaceNotFound) {
		t.Errorf("expected ErrFaceNotFound, got %v", err)
	}
}

func TestEngineClose_PersistsIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces.hnsw")
	e, store, det := newTestEngine(t, WithIndexPath(path))
	ctx := context.Background()
	classifyOne(t, e, det.image("a", basis(0)))
	classifyOne(t, e, det.image("b", basis(1)))
	if _, err := e.SimilarFaces(ctx, "face_0000", 1); err != nil {
		t.Fatalf("SimilarFaces failed: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := NewEngine(store, det, testConfig(), WithDimension(testDim), WithIndexPath(path))
	matches, err := reopened.SimilarFaces(ctx, "face_0001", 1)
	if err != nil {
		t.Fatalf("SimilarFaces after reopen failed: %v", err)
	}
	if len(matches) != 1 || matches[0].FaceID != "face_0000" {
		t.Errorf("unexpected matches %+v", matches)
	}
}
