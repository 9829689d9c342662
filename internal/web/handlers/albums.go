package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-clusterer/internal/cluster"
)

// AlbumsHandler serves the person albums derived from the face ledger.
type AlbumsHandler struct {
	engine *cluster.Engine
}

// NewAlbumsHandler creates a new albums handler.
func NewAlbumsHandler(engine *cluster.Engine) *AlbumsHandler {
	return &AlbumsHandler{engine: engine}
}

// List returns every album.
func (h *AlbumsHandler) List(w http.ResponseWriter, r *http.Request) {
	albums, err := h.engine.Albums(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, albums)
}

// Get returns one album with its faces.
func (h *AlbumsHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.engine.AlbumFaces(r.Context(), chi.URLParam(r, "albumID"))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}
