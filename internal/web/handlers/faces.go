package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-clusterer/internal/cluster"
	"github.com/kozaktomas/face-clusterer/internal/constants"
	"github.com/kozaktomas/face-clusterer/internal/imageutil"
	"github.com/kozaktomas/face-clusterer/internal/storage"
)

// FacesHandler handles classification, correction and face lookup endpoints.
type FacesHandler struct {
	engine  *cluster.Engine
	storage *storage.LocalStorage
	log     *slog.Logger
}

// NewFacesHandler creates a new faces handler.
func NewFacesHandler(engine *cluster.Engine, store *storage.LocalStorage, log *slog.Logger) *FacesHandler {
	return &FacesHandler{engine: engine, storage: store, log: log}
}

// ClassifyResponse is the body of upload and bootstrap responses.
type ClassifyResponse struct {
	Files      []cluster.FileResult `json:"files"`
	Identities []string             `json:"identities,omitempty"`
	Noise      int                  `json:"noise,omitempty"`
}

// storeUploads saves every valid upload as an original and returns the
// engine images under their stored names. Invalid uploads become file
// results carrying the error, at the same position.
func (h *FacesHandler) storeUploads(uploads []upload) ([]cluster.Image, []*cluster.FileResult, error) {
	images := make([]cluster.Image, 0, len(uploads))
	slots := make([]*cluster.FileResult, len(uploads))
	for i, u := range uploads {
		if u.err != nil {
			slots[i] = &cluster.FileResult{FileName: u.name, Faces: []cluster.FaceResult{}, Error: u.err.Error()}
			continue
		}
		name, err := h.storage.Save(u.data, u.name)
		if err != nil {
			h.removeImages(images)
			return nil, nil, err
		}
		images = append(images, cluster.Image{Name: name, Data: u.data})
	}
	return images, slots, nil
}

func (h *FacesHandler) removeImages(images []cluster.Image) {
	for _, img := range images {
		if err := h.storage.Delete(img.Name); err != nil {
			h.log.Warn("failed to remove upload", "file", img.Name, "error", err)
		}
	}
}

// mergeResults fills the open slots with engine results in order.
func mergeResults(slots []*cluster.FileResult, results []cluster.FileResult) []cluster.FileResult {
	out := make([]cluster.FileResult, 0, len(slots))
	next := 0
	for _, s := range slots {
		if s != nil {
			out = append(out, *s)
			continue
		}
		if next < len(results) {
			out = append(out, results[next])
			next++
		}
	}
	return out
}

// Upload stores the uploaded photos and classifies their faces.
func (h *FacesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	uploads, err := readUploads(r, "files")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	images, slots, err := h.storeUploads(uploads)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results, err := h.engine.Classify(r.Context(), images)
	if err != nil {
		h.log.Error("classification failed", "error", err)
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ClassifyResponse{Files: mergeResults(slots, results)})
}

// Bootstrap seeds identities from an unlabeled batch. ?force=true
// replaces existing representatives.
func (h *FacesHandler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	uploads, err := readUploads(r, "files")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	images, slots, err := h.storeUploads(uploads)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	res, err := h.engine.Bootstrap(r.Context(), images, force)
	if err != nil {
		if errors.Is(err, cluster.ErrAlreadyBootstrapped) {
			h.removeImages(images)
		}
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ClassifyResponse{
		Files:      mergeResults(slots, res.Files),
		Identities: res.Identities,
		Noise:      res.Noise,
	})
}

// Override reassigns one face: ?face_id=&new_person_id=
func (h *FacesHandler) Override(w http.ResponseWriter, r *http.Request) {
	faceID := r.URL.Query().Get("face_id")
	personID := r.URL.Query().Get("new_person_id")
	if faceID == "" {
		respondError(w, http.StatusBadRequest, "face_id is required")
		return
	}

	if err := h.engine.Override(r.Context(), faceID, personID); err != nil {
		respondErr(w, err)
		return
	}
	h.log.Info("override applied", "face_id", sanitizeForLog(faceID), "person_id", sanitizeForLog(personID))
	respondJSON(w, http.StatusOK, map[string]string{
		"face_id":   faceID,
		"person_id": personID,
	})
}

// Get returns one face without its embedding.
func (h *FacesHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.engine.Face(r.Context(), chi.URLParam(r, "faceID"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cluster.NewFaceView(rec))
}

// Similar lists the faces closest to one face: ?limit=
func (h *FacesHandler) Similar(w http.ResponseWriter, r *http.Request) {
	limit := constants.DefaultSimilarLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, constants.MaxSimilarLimit)
	}

	matches, err := h.engine.SimilarFaces(r.Context(), chi.URLParam(r, "faceID"), limit)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"face_id": chi.URLParam(r, "faceID"),
		"similar": matches,
	})
}

// Thumbnail renders the face region of the stored original as JPEG.
func (h *FacesHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	rec, err := h.engine.Face(r.Context(), chi.URLParam(r, "faceID"))
	if err != nil {
		respondErr(w, err)
		return
	}
	data, err := h.storage.Read(rec.FileName)
	if err != nil {
		respondErr(w, err)
		return
	}
	thumb, err := imageutil.CropFace(data, rec.Location, constants.ThumbnailPadding,
		constants.ThumbnailSize, constants.ThumbnailQuality)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(thumb)
}
