package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-clusterer/internal/cluster"
	"github.com/kozaktomas/face-clusterer/internal/config"
	"github.com/kozaktomas/face-clusterer/internal/database"
	"github.com/kozaktomas/face-clusterer/internal/database/memory"
	"github.com/kozaktomas/face-clusterer/internal/enrollment"
	"github.com/kozaktomas/face-clusterer/internal/faceengine"
	"github.com/kozaktomas/face-clusterer/internal/logger"
	"github.com/kozaktomas/face-clusterer/internal/storage"
)

const testDim = 4

// fakeDetector returns canned faces keyed by image content.
type fakeDetector struct {
	mu    sync.Mutex
	faces map[string][]faceengine.Face
	boxes int
}

func (d *fakeDetector) Detect(_ context.Context, data []byte, _ string) ([]faceengine.Face, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.faces[string(data)], nil
}

// photo returns a distinct 200x200 PNG whose faces have the given
// embeddings. Each face gets its own box inside the image.
func (d *fakeDetector) photo(t *testing.T, shade uint8, embeddings ...[]float32) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	for y := range 200 {
		for x := range 200 {
			img.Set(x, y, color.RGBA{R: shade, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test photo: %v", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	faces := make([]faceengine.Face, len(embeddings))
	for i, emb := range embeddings {
		d.boxes++
		off := d.boxes % 20
		faces[i] = faceengine.Face{
			Index:     i,
			Location:  database.Location{Top: 20 + off, Right: 120 + off, Bottom: 120 + off, Left: 20 + off},
			Embedding: emb,
		}
	}
	d.faces[buf.String()] = faces
	return buf.Bytes()
}

func basis(i int) []float32 {
	v := make([]float32, testDim)
	v[i] = 1
	return v
}

type testEnv struct {
	engine     *cluster.Engine
	store      *memory.Store
	uploads    *storage.LocalStorage
	enrollment *enrollment.Service
	detector   *fakeDetector
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	det := &fakeDetector{faces: make(map[string][]faceengine.Face)}
	uploads, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}
	svc, err := enrollment.Open(config.EnrollmentConfig{
		Dir: t.TempDir(), SeedVectors: 20, ClusterMinVectors: 5, ClusterCount: 4, KMeansSeed: 42,
	}, det, 0.43)
	if err != nil {
		t.Fatalf("enrollment.Open failed: %v", err)
	}

	store := memory.New()
	engine := cluster.NewEngine(store, det, config.ClusteringConfig{
		AlbumThreshold:      0.45,
		AttendanceThreshold: 0.43,
		HistorySize:         20,
		DuplicateSimilarity: 0.95,
		MinFaceSize:         60,
		MinClusterSize:      2,
	}, cluster.WithDimension(testDim), cluster.WithPhotos(uploads), cluster.WithNames(svc), cluster.WithSeeder(svc))

	return &testEnv{engine: engine, store: store, uploads: uploads, enrollment: svc, detector: det}
}

type namedFile struct {
	name string
	data []byte
}

// multipartRequest builds a POST request carrying files under field.
func multipartRequest(t *testing.T, path, field string, files ...namedFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := writer.CreateFormFile(field, f.name)
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		part.Write(f.data)
	}
	if len(files) == 0 {
		writer.WriteField("note", "empty")
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// upload classifies files through the faces handler and returns the response.
func (env *testEnv) upload(t *testing.T, files ...namedFile) ClassifyResponse {
	t.Helper()
	handler := NewFacesHandler(env.engine, env.uploads, logger.Nop())
	recorder := httptest.NewRecorder()
	handler.Upload(recorder, multipartRequest(t, "/api/v1/faces/upload", "files", files...))
	assertStatusCode(t, recorder, http.StatusOK)

	var resp ClassifyResponse
	parseJSONResponse(t, recorder, &resp)
	return resp
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
