package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-clusterer/internal/constants"
	"github.com/kozaktomas/face-clusterer/internal/imageutil"
	"github.com/kozaktomas/face-clusterer/internal/storage"
)

// maxPreviewSize bounds the size query parameter.
const maxPreviewSize = 2048

// ImagesHandler serves stored originals.
type ImagesHandler struct {
	storage *storage.LocalStorage
}

// NewImagesHandler creates a new images handler.
func NewImagesHandler(store *storage.LocalStorage) *ImagesHandler {
	return &ImagesHandler{storage: store}
}

// Get streams one stored original. With ?size=N it returns a JPEG preview
// whose longer side is at most N pixels.
func (h *ImagesHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if sizeParam := r.URL.Query().Get("size"); sizeParam != "" {
		size, err := strconv.Atoi(sizeParam)
		if err != nil || size <= 0 || size > maxPreviewSize {
			respondError(w, http.StatusBadRequest, "invalid size")
			return
		}
		h.preview(w, name, size)
		return
	}

	f, err := h.storage.Open(name)
	if err != nil {
		respondErr(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, name, time.Time{}, f)
}

// List returns stored original names.
func (h *ImagesHandler) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.storage.List()
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, names)
}

func (h *ImagesHandler) preview(w http.ResponseWriter, name string, size int) {
	data, err := h.storage.Read(name)
	if err != nil {
		respondErr(w, err)
		return
	}
	resized, err := imageutil.ResizeImage(data, size, constants.ThumbnailQuality)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, "failed to resize image")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(resized)
}
