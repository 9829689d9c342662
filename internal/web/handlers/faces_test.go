package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-clusterer/internal/logger"
)

func TestFacesHandler_Upload(t *testing.T) {
	env := newTestEnv(t)
	photo := env.detector.photo(t, 1, basis(0))

	resp := env.upload(t,
		namedFile{"alice.png", photo},
		namedFile{"notes.txt", []byte("not an image")},
	)

	if len(resp.Files) != 2 {
		t.Fatalf("expected 2 file results, got %d", len(resp.Files))
	}
	first := resp.Files[0]
	if first.FacesDetected != 1 || len(first.Faces) != 1 {
		t.Fatalf("unexpected first result: %+v", first)
	}
	if first.Faces[0].PersonID != "person_0" || !first.Faces[0].NewIdentity {
		t.Errorf("expected new identity person_0, got %+v", first.Faces[0])
	}
	if resp.Files[1].FileName != "notes.txt" || resp.Files[1].Error == "" {
		t.Errorf("expected per-file error for invalid upload, got %+v", resp.Files[1])
	}

	stored, _ := env.uploads.List()
	if len(stored) != 1 || stored[0] != first.FileName {
		t.Errorf("expected only the valid photo stored as %s, got %v", first.FileName, stored)
	}
}

func TestFacesHandler_Upload_NoFiles(t *testing.T) {
	env := newTestEnv(t)
	handler := NewFacesHandler(env.engine, env.uploads, logger.Nop())

	recorder := httptest.NewRecorder()
	handler.Upload(recorder, multipartRequest(t, "/api/v1/faces/upload", "files"))

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "no files provided")
}

func TestFacesHandler_Override(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, namedFile{"a.png", env.detector.photo(t, 1, basis(0))})
	handler := NewFacesHandler(env.engine, env.uploads, logger.Nop())

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"ok", "?face_id=face_0000&new_person_id=person_7", http.StatusOK},
		{"unknown face", "?face_id=face_0099&new_person_id=person_7", http.StatusNotFound},
		{"missing person", "?face_id=face_0000", http.StatusBadRequest},
		{"missing face", "?new_person_id=person_7", http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handler.Override(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/faces/override"+tc.query, nil))
			assertStatusCode(t, recorder, tc.status)
		})
	}

	rec, err := env.engine.Face(t.Context(), "face_0000")
	if err != nil {
		t.Fatalf("Face failed: %v", err)
	}
	if rec.Override != "person_7" {
		t.Errorf("expected override person_7, got %q", rec.Override)
	}
}

func TestFacesHandler_GetAndSimilar(t *testing.T) {
	env := newTestEnv(t)
	near := []float32{0.9, 0.1, 0, 0}
	env.upload(t,
		namedFile{"a.png", env.detector.photo(t, 1, basis(0))},
		namedFile{"b.png", env.detector.photo(t, 2, near)},
		namedFile{"c.png", env.detector.photo(t, 3, basis(2))},
	)
	handler := NewFacesHandler(env.engine, env.uploads, logger.Nop())

	recorder := httptest.NewRecorder()
	handler.Get(recorder, requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/faces/face_0001", nil),
		map[string]string{"faceID": "face_0001"}))
	assertStatusCode(t, recorder, http.StatusOK)
	var view map[string]any
	parseJSONResponse(t, recorder, &view)
	if view["face_id"] != "face_0001" {
		t.Errorf("unexpected face view: %v", view)
	}
	if _, ok := view["embedding"]; ok {
		t.Error("face view must not expose the embedding")
	}

	recorder = httptest.NewRecorder()
	handler.Similar(recorder, requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/faces/face_0000/similar?limit=1", nil),
		map[string]string{"faceID": "face_0000"}))
	assertStatusCode(t, recorder, http.StatusOK)
	var resp struct {
		Similar []struct {
			FaceID string `json:"face_id"`
		} `json:"similar"`
	}
	parseJSONResponse(t, recorder, &resp)
	if len(resp.Similar) != 1 || resp.Similar[0].FaceID != "face_0001" {
		t.Errorf("expected face_0001 as nearest, got %+v", resp.Similar)
	}

	recorder = httptest.NewRecorder()
	handler.Similar(recorder, requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/faces/face_0000/similar?limit=zero", nil),
		map[string]string{"faceID": "face_0000"}))
	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestFacesHandler_Thumbnail(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, namedFile{"a.png", env.detector.photo(t, 1, basis(0))})
	handler := NewFacesHandler(env.engine, env.uploads, logger.Nop())

	recorder := httptest.NewRecorder()
	handler.Thumbnail(recorder, requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/faces/face_0000/thumbnail", nil),
		map[string]string{"faceID": "face_0000"}))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "image/jpeg")
	if recorder.Body.Len() == 0 {
		t.Error("expected thumbnail bytes")
	}

	recorder = httptest.NewRecorder()
	handler.Thumbnail(recorder, requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/faces/face_0042/thumbnail", nil),
		map[string]string{"faceID": "face_0042"}))
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestFacesHandler_Bootstrap(t *testing.T) {
	env := newTestEnv(t)
	handler := NewFacesHandler(env.engine, env.uploads, logger.Nop())
	files := []namedFile{
		{"a.png", env.detector.photo(t, 1, basis(0))},
		{"b.png", env.detector.photo(t, 2, []float32{0.99, 0.01, 0, 0})},
		{"c.png", env.detector.photo(t, 3, basis(1))},
		{"d.png", env.detector.photo(t, 4, []float32{0.01, 0.99, 0, 0})},
	}

	recorder := httptest.NewRecorder()
	handler.Bootstrap(recorder, multipartRequest(t, "/api/v1/faces/bootstrap", "files", files...))
	assertStatusCode(t, recorder, http.StatusOK)
	var resp ClassifyResponse
	parseJSONResponse(t, recorder, &resp)
	if len(resp.Files) != 4 {
		t.Fatalf("expected 4 file results, got %d", len(resp.Files))
	}
	if len(resp.Identities) != 2 {
		t.Errorf("expected 2 identities, got %v", resp.Identities)
	}

	before, _ := env.uploads.List()
	recorder = httptest.NewRecorder()
	handler.Bootstrap(recorder, multipartRequest(t, "/api/v1/faces/bootstrap", "files", files[0]))
	assertStatusCode(t, recorder, http.StatusConflict)
	after, _ := env.uploads.List()
	if len(after) != len(before) {
		t.Errorf("rejected bootstrap must not keep uploads: %d before, %d after", len(before), len(after))
	}
}
