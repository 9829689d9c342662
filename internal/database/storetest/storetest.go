// Package storetest holds the behavioral checks every database.Store
// backend must pass. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"testing"

	"github.com/kozaktomas/face-clusterer/internal/database"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) database.Store

func face(id, person string, emb ...float32) database.FaceRecord {
	return database.FaceRecord{
		FaceID:    id,
		FileName:  "20250101_abcd1234.jpg",
		Location:  database.Location{Top: 10, Right: 110, Bottom: 120, Left: 20},
		Embedding: emb,
		PersonID:  person,
	}
}

// Run executes the shared store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("RepresentativeRoundTrip", func(t *testing.T) {
		s := newStore(t)
		rep := database.Representative{
			PersonID: "person_0",
			Vector:   []float32{1, 0, 0},
			History:  [][]float32{{1, 0, 0}, {0.9, 0.1, 0}},
		}
		if err := s.SaveRepresentative(ctx, rep); err != nil {
			t.Fatalf("SaveRepresentative failed: %v", err)
		}

		got, err := s.GetRepresentative(ctx, "person_0")
		if err != nil {
			t.Fatalf("GetRepresentative failed: %v", err)
		}
		if got == nil {
			t.Fatal("expected representative, got nil")
		}
		if len(got.Vector) != 3 || got.Vector[0] != 1 {
			t.Errorf("unexpected vector %v", got.Vector)
		}
		if len(got.History) != 2 || got.History[1][0] != 0.9 {
			t.Errorf("unexpected history %v", got.History)
		}

		missing, err := s.GetRepresentative(ctx, "person_9")
		if err != nil {
			t.Fatalf("GetRepresentative(missing) failed: %v", err)
		}
		if missing != nil {
			t.Errorf("expected nil for missing representative, got %+v", missing)
		}
	})

	t.Run("SaveReplacesHistory", func(t *testing.T) {
		s := newStore(t)
		_ = s.SaveRepresentative(ctx, database.Representative{
			PersonID: "person_1", Vector: []float32{1, 0}, History: [][]float32{{1, 0}, {1, 0}, {1, 0}},
		})
		if err := s.SaveRepresentative(ctx, database.Representative{
			PersonID: "person_1", Vector: []float32{0, 1}, History: [][]float32{{0, 1}},
		}); err != nil {
			t.Fatalf("SaveRepresentative failed: %v", err)
		}
		got, _ := s.GetRepresentative(ctx, "person_1")
		if got == nil || len(got.History) != 1 || got.Vector[1] != 1 {
			t.Errorf("expected replaced representative, got %+v", got)
		}
	})

	t.Run("ListAndDelete", func(t *testing.T) {
		s := newStore(t)
		for _, id := range []string{"person_2", "person_0", "person_1"} {
			if err := s.SaveRepresentative(ctx, database.Representative{
				PersonID: id, Vector: []float32{1, 1}, History: [][]float32{{1, 1}},
			}); err != nil {
				t.Fatalf("SaveRepresentative failed: %v", err)
			}
		}
		if err := s.DeleteRepresentative(ctx, "person_1"); err != nil {
			t.Fatalf("DeleteRepresentative failed: %v", err)
		}
		if err := s.DeleteRepresentative(ctx, "person_404"); err != nil {
			t.Errorf("deleting a missing identity should not fail: %v", err)
		}

		reps, err := s.ListRepresentatives(ctx)
		if err != nil {
			t.Fatalf("ListRepresentatives failed: %v", err)
		}
		if len(reps) != 2 || reps[0].PersonID != "person_0" || reps[1].PersonID != "person_2" {
			t.Errorf("unexpected representatives %+v", reps)
		}
		n, _ := s.CountRepresentatives(ctx)
		if n != 2 {
			t.Errorf("expected 2 representatives, got %d", n)
		}
	})

	t.Run("ReplaceRepresentatives", func(t *testing.T) {
		s := newStore(t)
		_ = s.SaveRepresentative(ctx, database.Representative{PersonID: "person_5", Vector: []float32{1}, History: [][]float32{{1}}})
		if err := s.ReplaceRepresentatives(ctx, []database.Representative{
			{PersonID: "person_0", Vector: []float32{2}, History: [][]float32{{2}}},
		}); err != nil {
			t.Fatalf("ReplaceRepresentatives failed: %v", err)
		}
		reps, _ := s.ListRepresentatives(ctx)
		if len(reps) != 1 || reps[0].PersonID != "person_0" {
			t.Errorf("expected only person_0, got %+v", reps)
		}
	})

	t.Run("PersonSequenceIsHighWaterMark", func(t *testing.T) {
		s := newStore(t)
		seq, err := s.PersonSequence(ctx)
		if err != nil {
			t.Fatalf("PersonSequence failed: %v", err)
		}
		if seq != -1 {
			t.Errorf("expected -1 for empty store, got %d", seq)
		}
		_ = s.SetPersonSequence(ctx, 4)
		_ = s.SetPersonSequence(ctx, 2)
		seq, _ = s.PersonSequence(ctx)
		if seq != 4 {
			t.Errorf("expected sequence to stay at 4, got %d", seq)
		}
	})

	t.Run("LedgerAppendAndList", func(t *testing.T) {
		s := newStore(t)
		for _, rec := range []database.FaceRecord{
			face("face_0010", "person_1", 0, 1),
			face("face_0002", "person_0", 1, 0),
			face("face_0001", "person_0", 1, 0),
		} {
			if err := s.AppendFace(ctx, rec); err != nil {
				t.Fatalf("AppendFace failed: %v", err)
			}
		}
		if err := s.AppendFace(ctx, face("face_0001", "person_3", 1, 1)); err == nil {
			t.Error("expected error when appending an existing face ID")
		}

		faces, err := s.ListFaces(ctx)
		if err != nil {
			t.Fatalf("ListFaces failed: %v", err)
		}
		if len(faces) != 3 {
			t.Fatalf("expected 3 faces, got %d", len(faces))
		}
		if faces[0].FaceID != "face_0001" || faces[2].FaceID != "face_0010" {
			t.Errorf("faces not in creation order: %s, %s, %s", faces[0].FaceID, faces[1].FaceID, faces[2].FaceID)
		}
		if faces[0].Location.Left != 20 || faces[0].Location.Bottom != 120 {
			t.Errorf("location not preserved: %+v", faces[0].Location)
		}

		got, _ := s.GetFace(ctx, "face_0010")
		if got == nil || got.PersonID != "person_1" || len(got.Embedding) != 2 {
			t.Errorf("unexpected face %+v", got)
		}
		missing, _ := s.GetFace(ctx, "face_9999")
		if missing != nil {
			t.Errorf("expected nil for missing face, got %+v", missing)
		}
		n, _ := s.CountFaces(ctx)
		if n != 3 {
			t.Errorf("expected 3 faces, got %d", n)
		}
	})

	t.Run("TooSmallFlag", func(t *testing.T) {
		s := newStore(t)
		rec := face("face_0000", "person_0", 1, 0)
		rec.TooSmall = true
		_ = s.AppendFace(ctx, rec)
		got, _ := s.GetFace(ctx, "face_0000")
		if got == nil || !got.TooSmall {
			t.Errorf("expected too_small to be kept, got %+v", got)
		}
	})

	t.Run("SetOverride", func(t *testing.T) {
		s := newStore(t)
		_ = s.AppendFace(ctx, face("face_0000", "person_3", 1, 0))

		ok, err := s.SetOverride(ctx, "face_0000", "person_7")
		if err != nil || !ok {
			t.Fatalf("SetOverride = %v, %v", ok, err)
		}
		ok, _ = s.SetOverride(ctx, "face_0000", "person_8")
		if !ok {
			t.Fatal("second override failed")
		}
		got, _ := s.GetFace(ctx, "face_0000")
		if got.Override != "person_8" || got.PersonID != "person_3" {
			t.Errorf("expected last override to win without touching person_id, got %+v", got)
		}

		ok, err = s.SetOverride(ctx, "face_0404", "person_1")
		if err != nil {
			t.Fatalf("SetOverride(missing) error: %v", err)
		}
		if ok {
			t.Error("expected false for missing face")
		}
	})

	t.Run("RelabelPersonKeepsForeignOverrides", func(t *testing.T) {
		s := newStore(t)
		_ = s.AppendFace(ctx, face("face_0000", "person_1", 1, 0))
		_ = s.AppendFace(ctx, face("face_0001", "person_1", 1, 0))
		_ = s.AppendFace(ctx, face("face_0002", "person_1", 1, 0))
		_, _ = s.SetOverride(ctx, "face_0001", "person_3")
		_, _ = s.SetOverride(ctx, "face_0002", "person_2")

		n, err := s.RelabelPerson(ctx, "person_1", "person_2")
		if err != nil {
			t.Fatalf("RelabelPerson failed: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 relabeled records, got %d", n)
		}
		want := map[string]string{"face_0000": "person_2", "face_0001": "person_1", "face_0002": "person_2"}
		faces, _ := s.ListFaces(ctx)
		for _, f := range faces {
			if f.PersonID != want[f.FaceID] {
				t.Errorf("face %s labeled %s, want %s", f.FaceID, f.PersonID, want[f.FaceID])
			}
		}
	})

	t.Run("RelabelPerson", func(t *testing.T) {
		s := newStore(t)
		_ = s.AppendFace(ctx, face("face_0000", "person_1", 1, 0))
		_ = s.AppendFace(ctx, face("face_0001", "person_2", 0, 1))
		_ = s.AppendFace(ctx, face("face_0002", "person_1", 1, 0))

		n, err := s.RelabelPerson(ctx, "person_1", "person_2")
		if err != nil {
			t.Fatalf("RelabelPerson failed: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 relabeled records, got %d", n)
		}
		faces, _ := s.ListFaces(ctx)
		for _, f := range faces {
			if f.PersonID != "person_2" {
				t.Errorf("face %s still labeled %s", f.FaceID, f.PersonID)
			}
		}
	})
}
