package handlers

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-clusterer/internal/cluster"
	"github.com/kozaktomas/face-clusterer/internal/enrollment"
	"github.com/kozaktomas/face-clusterer/internal/storage"
)

func TestRespondJSON_SetsContentType(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondJSON(recorder, http.StatusOK, map[string]string{"status": "ok"})
	assertContentType(t, recorder, "application/json")
}

func TestRespondJSON_NilData(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusCreated, nil)

	assertStatusCode(t, recorder, http.StatusCreated)
	if recorder.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got '%s'", recorder.Body.String())
	}
}

func TestRespondError_ContainsErrorKey(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondError(recorder, http.StatusBadRequest, "something went wrong")

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "something went wrong")
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"face not found", fmt.Errorf("%w: face_0001", cluster.ErrFaceNotFound), http.StatusNotFound},
		{"album not found", cluster.ErrAlbumNotFound, http.StatusNotFound},
		{"user not found", enrollment.ErrUserNotFound, http.StatusNotFound},
		{"missing file", fmt.Errorf("failed to open file: %w", fs.ErrNotExist), http.StatusNotFound},
		{"already bootstrapped", cluster.ErrAlreadyBootstrapped, http.StatusConflict},
		{"same identity", cluster.ErrSameIdentity, http.StatusBadRequest},
		{"empty person", cluster.ErrEmptyPersonID, http.StatusBadRequest},
		{"noise target", cluster.ErrNoiseTarget, http.StatusBadRequest},
		{"no usable faces", enrollment.ErrNoUsableFaces, http.StatusBadRequest},
		{"invalid name", storage.ErrInvalidName, http.StatusBadRequest},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := errorStatus(tc.err); got != tc.want {
				t.Errorf("errorStatus(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("a\nb\rc"); got != "abc" {
		t.Errorf("expected 'abc', got %q", got)
	}
}

func TestHealthCheck_ReturnsOK(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	recorder := httptest.NewRecorder()

	HealthCheck(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var result map[string]string
	parseJSONResponse(t, recorder, &result)
	if result["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%s'", result["status"])
	}
}
