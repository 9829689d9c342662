package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/kozaktomas/face-clusterer/internal/cluster"
	"github.com/kozaktomas/face-clusterer/internal/constants"
	"github.com/kozaktomas/face-clusterer/internal/enrollment"
	"github.com/kozaktomas/face-clusterer/internal/imageutil"
	"github.com/kozaktomas/face-clusterer/internal/storage"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, cluster.ErrFaceNotFound),
		errors.Is(err, cluster.ErrAlbumNotFound),
		errors.Is(err, enrollment.ErrUserNotFound),
		errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, cluster.ErrAlreadyBootstrapped):
		return http.StatusConflict
	case errors.Is(err, cluster.ErrSameIdentity),
		errors.Is(err, cluster.ErrEmptyPersonID),
		errors.Is(err, cluster.ErrNoiseTarget),
		errors.Is(err, enrollment.ErrNoUsableFaces),
		errors.Is(err, enrollment.ErrInvalidUserID),
		errors.Is(err, storage.ErrInvalidName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondErr sends err with the status errorStatus picks for it.
func respondErr(w http.ResponseWriter, err error) {
	respondError(w, errorStatus(err), err.Error())
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// upload is one multipart file read into memory.
type upload struct {
	name string
	data []byte
	err  error
}

// readUploads parses the multipart form and reads every file under field.
// Files that are not decodable images carry err and no data.
func readUploads(r *http.Request, field string) ([]upload, error) {
	if err := r.ParseMultipartForm(constants.MaxMultipartMemory); err != nil {
		return nil, errors.New("failed to parse multipart form")
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, errors.New("no files provided")
	}

	uploads := make([]upload, 0, len(headers))
	for _, fh := range headers {
		u := upload{name: filepath.Base(fh.Filename)}
		data, err := readMultipartFile(fh)
		if err != nil {
			u.err = err
		} else if _, err := imageutil.Validate(data); err != nil {
			u.err = err
		} else {
			u.data = data
		}
		uploads = append(uploads, u)
	}
	return uploads, nil
}

func readMultipartFile(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > constants.MaxUploadSize {
		return nil, fmt.Errorf("file %s exceeds the upload limit", fh.Filename)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %s", fh.Filename)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, constants.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %s", fh.Filename)
	}
	return data, nil
}
