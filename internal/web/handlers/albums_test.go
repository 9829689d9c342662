package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-clusterer/internal/cluster"
)

func TestAlbumsHandler_List(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t,
		namedFile{"a.png", env.detector.photo(t, 1, basis(0))},
		namedFile{"b.png", env.detector.photo(t, 2, basis(1))},
	)
	handler := NewAlbumsHandler(env.engine)

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/albums", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")

	var albums []cluster.Album
	parseJSONResponse(t, recorder, &albums)
	if len(albums) != 3 {
		t.Fatalf("expected all_photos plus 2 person albums, got %+v", albums)
	}
	if albums[0].ID != "all_photos" || albums[0].Count != 2 {
		t.Errorf("unexpected all-photos album: %+v", albums[0])
	}
	if albums[1].ID != "person_0" || albums[2].ID != "person_1" {
		t.Errorf("unexpected album order: %s, %s", albums[1].ID, albums[2].ID)
	}
	if albums[1].Thumbnail != "face_0000" {
		t.Errorf("expected face_0000 as thumbnail, got %q", albums[1].Thumbnail)
	}
}

func TestAlbumsHandler_Get(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, namedFile{"a.png", env.detector.photo(t, 1, basis(0))})
	handler := NewAlbumsHandler(env.engine)

	recorder := httptest.NewRecorder()
	handler.Get(recorder, requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/albums/person_0", nil),
		map[string]string{"albumID": "person_0"}))
	assertStatusCode(t, recorder, http.StatusOK)

	var detail cluster.AlbumDetail
	parseJSONResponse(t, recorder, &detail)
	if len(detail.Faces) != 1 || detail.Faces[0].FaceID != "face_0000" {
		t.Errorf("unexpected album faces: %+v", detail.Faces)
	}

	recorder = httptest.NewRecorder()
	handler.Get(recorder, requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/albums/person_9", nil),
		map[string]string{"albumID": "person_9"}))
	assertStatusCode(t, recorder, http.StatusNotFound)
}
