package cluster

import (
	"context"
	"testing"

	"github.com/kozaktomas/face-clusterer/internal/database"
)

func TestRebuild(t *testing.T) {
	e, store, det := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		classifyOne(t, e, det.image(string(rune('a'+i)), near(0, 1, 0.05*float32(i))))
	}
	classifyOne(t, e, det.image("other", basis(2)))
	if err := e.Override(ctx, "face_0004", "carol"); err != nil {
		t.Fatalf("Override failed: %v", err)
	}
	_ = store.SaveRepresentative(ctx, database.Representative{
		PersonID: "person_99", Vector: basis(3), History: [][]float32{basis(3)},
	})
	// Simulate a crash between the ledger and representative writes.
	_ = store.DeleteRepresentative(ctx, "person_0")

	res, err := e.Rebuild(ctx)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if res.Rebuilt != 2 || res.Kept != 1 || res.Dropped != 1 {
		t.Errorf("unexpected result %+v", res)
	}

	rep := mustRep(t, store, "person_0")
	if rep == nil || len(rep.History) != 3 {
		t.Fatalf("expected person_0 rebuilt from last 3 faces, got %+v", rep)
	}
	if rep.History[0][1] != 0.05 {
		t.Errorf("expected history to start at the second face, got %v", rep.History[0])
	}
	if mustRep(t, store, "carol") == nil {
		t.Error("override target should get a representative")
	}
	if mustRep(t, store, "person_1") != nil {
		t.Error("fully overridden identity should be dropped")
	}
	if mustRep(t, store, "person_99") == nil {
		t.Error("identity unknown to the ledger should be kept")
	}
}
