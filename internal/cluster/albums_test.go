package cluster

import (
	"context"
	"testing"

	"github.com/kozaktomas/face-clusterer/internal/constants"
	"github.com/kozaktomas/face-clusterer/internal/database"
)

type fakePhotos []string

func (p fakePhotos) List() ([]string, error) { return p, nil }

func TestAlbums(t *testing.T) {
	e, store, det := newTestEngine(t,
		WithNames(fakeNames{"alice": "Alice"}),
		WithPhotos(fakePhotos{"a.jpg", "b.jpg"}),
	)
	ctx := context.Background()

	classifyOne(t, e, det.image("a", basis(0)))
	classifyOne(t, e, det.image("b", near(0, 1, 0.3)))
	small := det.image("c", near(0, 2, 0.1))
	det.faces["c"][0].Location = database.Location{Top: 0, Right: 30, Bottom: 30, Left: 0}
	classifyOne(t, e, small)
	classifyOne(t, e, det.image("d", basis(1)))
	_ = store.AppendFace(ctx, database.FaceRecord{
		FaceID: "face_0100", FileName: "x.jpg", Embedding: basis(3), PersonID: database.NoisePersonID,
		Location: database.Location{Top: 0, Right: 100, Bottom: 100, Left: 0},
	})
	if err := e.Override(ctx, "face_0003", "alice"); err != nil {
		t.Fatalf("Override failed: %v", err)
	}

	albums, err := e.Albums(ctx)
	if err != nil {
		t.Fatalf("Albums failed: %v", err)
	}
	ids := make([]string, len(albums))
	for i, a := range albums {
		ids[i] = a.ID
	}
	want := []string{constants.AllPhotosAlbumID, "alice", "person_0", database.NoisePersonID}
	if len(ids) != len(want) {
		t.Fatalf("expected albums %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("album %d: expected %s, got %s", i, want[i], ids[i])
		}
	}

	if albums[0].Count != 2 || albums[0].Type != AlbumTypeAll {
		t.Errorf("unexpected all photos album %+v", albums[0])
	}
	if albums[1].Title != "Alice" {
		t.Errorf("expected registered name as title, got %q", albums[1].Title)
	}
	person := albums[2]
	if person.Count != 2 {
		t.Errorf("too small faces are not counted, expected 2 got %d", person.Count)
	}
	if person.Thumbnail != "face_0000" {
		t.Errorf("expected thumbnail closest to representative, got %s", person.Thumbnail)
	}
	if albums[3].Type != AlbumTypeUnknown {
		t.Errorf("noise album should be unknown, got %s", albums[3].Type)
	}
}

func TestAlbumFaces(t *testing.T) {
	e, _, det := newTestEngine(t, WithPhotos(fakePhotos{"a.jpg"}))
	ctx := context.Background()
	classifyOne(t, e, det.image("a", basis(0), basis(1)))

	detail, err := e.AlbumFaces(ctx, "person_1")
	if err != nil {
		t.Fatalf("AlbumFaces failed: %v", err)
	}
	if len(detail.Faces) != 1 || detail.Faces[0].FaceID != "face_0001" || detail.Count != 1 {
		t.Errorf("unexpected album detail %+v", detail)
	}

	all, err := e.AlbumFaces(ctx, constants.AllPhotosAlbumID)
	if err != nil {
		t.Fatalf("AlbumFaces(all) failed: %v", err)
	}
	if len(all.Photos) != 1 || len(all.Faces) != 2 {
		t.Errorf("unexpected all photos detail %+v", all)
	}
}

func TestRecordsForIdentity(t *testing.T) {
	records := []database.FaceRecord{
		{FaceID: "face_0000", PersonID: "person_1"},
		{FaceID: "face_0001", PersonID: "person_1", Override: "person_2"},
		{FaceID: "face_0002", PersonID: "person_3", Override: "person_1"},
	}
	got := RecordsForIdentity(records, "person_1")
	if len(got) != 2 || got[0].FaceID != "face_0000" || got[1].FaceID != "face_0002" {
		t.Errorf("override must take precedence, got %+v", got)
	}
}
