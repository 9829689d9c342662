package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-clusterer/internal/cluster"
	"github.com/kozaktomas/face-clusterer/internal/enrollment"
)

// UsersHandler handles enrollment and attendance endpoints.
type UsersHandler struct {
	enrollment *enrollment.Service
	log        *slog.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(svc *enrollment.Service, log *slog.Logger) *UsersHandler {
	return &UsersHandler{enrollment: svc, log: log}
}

// List returns enrolled users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.enrollment.Users())
}

// Register adds reference photos to a user.
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	uploads, err := readUploads(r, "files")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var images []cluster.Image
	var invalid []enrollment.SkippedImage
	for _, u := range uploads {
		if u.err != nil {
			invalid = append(invalid, enrollment.SkippedImage{FileName: u.name, Reason: u.err.Error()})
			continue
		}
		images = append(images, cluster.Image{Name: u.name, Data: u.data})
	}

	res, err := h.enrollment.Register(r.Context(), userID, images)
	if res != nil {
		res.Submitted = len(uploads)
		if len(invalid) > 0 {
			res.Skipped = append(invalid, res.Skipped...)
		}
	}
	if errors.Is(err, enrollment.ErrNoUsableFaces) {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":         err.Error(),
			"skipped_files": res.Skipped,
		})
		return
	}
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// SetName binds a name to a user: ?user_id=&name=
func (h *UsersHandler) SetName(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	name := r.URL.Query().Get("name")
	if userID == "" || name == "" {
		respondError(w, http.StatusBadRequest, "user_id and name are required")
		return
	}
	if err := h.enrollment.SetName(userID, name); err != nil {
		respondErr(w, err)
		return
	}
	h.log.Info("user named", "user_id", sanitizeForLog(userID))
	respondJSON(w, http.StatusOK, map[string]string{"user_id": userID, "name": name})
}

// CheckAttendance matches the faces of one group photo against enrolled users.
func (h *UsersHandler) CheckAttendance(w http.ResponseWriter, r *http.Request) {
	uploads, err := readUploads(r, "file")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	u := uploads[0]
	if u.err != nil {
		respondError(w, http.StatusBadRequest, u.err.Error())
		return
	}

	res, err := h.enrollment.CheckAttendance(r.Context(), cluster.Image{Name: u.name, Data: u.data})
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}
