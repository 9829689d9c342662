package cluster

import (
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/face-clusterer/internal/database"
)

func bootstrapBatch(det *fakeDetector) []Image {
	return []Image{
		det.image("a1", near(0, 2, 0.01)),
		det.image("b1", near(1, 2, 0.01)),
		det.image("a2", near(0, 2, 0.02)),
		det.image("lonely", []float32{-1, -1, 0, 0}),
		det.image("b2", near(1, 3, 0.02)),
		det.image("a3", near(0, 3, 0.015)),
		det.image("b3", near(1, 2, 0.03)),
	}
}

func TestBootstrap_ClustersAndNoise(t *testing.T) {
	e, store, det := newTestEngine(t)
	ctx := context.Background()

	res, err := e.Bootstrap(ctx, bootstrapBatch(det), false)
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	if len(res.Identities) != 2 || res.Identities[0] != "person_0" || res.Identities[1] != "person_1" {
		t.Fatalf("expected person_0 and person_1, got %v", res.Identities)
	}
	if res.Noise != 1 {
		t.Errorf("expected 1 noise face, got %d", res.Noise)
	}

	lonely := res.Files[3].Faces[0]
	if lonely.PersonID != database.NoisePersonID {
		t.Errorf("singleton should be noise, got %+v", lonely)
	}
	if res.Files[0].Faces[0].PersonID != "person_0" || res.Files[1].Faces[0].PersonID != "person_1" {
		t.Errorf("unexpected assignment: %+v / %+v", res.Files[0].Faces, res.Files[1].Faces)
	}

	faces, _ := store.ListFaces(ctx)
	if len(faces) != 7 {
		t.Fatalf("noise faces stay on the ledger, expected 7 got %d", len(faces))
	}
	if rep := mustRep(t, store, database.NoisePersonID); rep != nil {
		t.Error("noise must not get a representative")
	}

	rep := mustRep(t, store, "person_0")
	if rep == nil || len(rep.History) != 3 {
		t.Fatalf("expected person_0 with 3 members, got %+v", rep)
	}
	// Bootstrap representatives are the mean of their members.
	if rep.Vector[0] != 1 || rep.Vector[2] != 0.01 {
		t.Errorf("expected mean vector, got %v", rep.Vector)
	}
	for _, h := range rep.History {
		if h[0] != 1 {
			t.Errorf("noise embedding leaked into person_0 history: %v", h)
		}
	}
}

func TestBootstrap_RefusesWhenRepresentativesExist(t *testing.T) {
	e, store, det := newTestEngine(t)
	ctx := context.Background()
	_ = store.SaveRepresentative(ctx, database.Representative{PersonID: "person_0", Vector: basis(0), History: [][]float32{basis(0)}})

	_, err := e.Bootstrap(ctx, bootstrapBatch(det), false)
	if !errors.Is(err, ErrAlreadyBootstrapped) {
		t.Fatalf("expected ErrAlreadyBootstrapped, got %v", err)
	}
	if det.calls != 0 {
		t.Errorf("detection should not run when bootstrap is refused, got %d calls", det.calls)
	}

	res, err := e.Bootstrap(ctx, bootstrapBatch(det), true)
	if err != nil {
		t.Fatalf("forced Bootstrap failed: %v", err)
	}
	// The high-water mark includes the replaced person_0.
	if res.Identities[0] != "person_1" {
		t.Errorf("expected minting after person_0, got %v", res.Identities)
	}
	if rep := mustRep(t, store, "person_0"); rep != nil {
		t.Error("forced bootstrap replaces the representative document")
	}
}

func TestBootstrap_SkipsDuplicates(t *testing.T) {
	e, store, det := newTestEngine(t)
	ctx := context.Background()

	images := bootstrapBatch(det)
	images = append(images, images[0])
	res, err := e.Bootstrap(ctx, images, false)
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	if !res.Files[7].Faces[0].Duplicate {
		t.Errorf("repeated upload should be a duplicate, got %+v", res.Files[7].Faces)
	}
	if n, _ := store.CountFaces(ctx); n != 7 {
		t.Errorf("expected 7 faces, got %d", n)
	}
}

func TestBootstrap_ThenClassify(t *testing.T) {
	e, _, det := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.Bootstrap(ctx, bootstrapBatch(det), false); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}

	res := classifyOne(t, e, det.image("b4", near(1, 3, 0.05)))
	if got := res.Faces[0]; got.PersonID != "person_1" || got.FaceID != "face_0007" {
		t.Errorf("expected face_0007 matched to person_1, got %+v", got)
	}
}
