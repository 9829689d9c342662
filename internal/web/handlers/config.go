package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-clusterer/internal/config"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse is the client-visible part of the configuration.
type ConfigResponse struct {
	Backend             string  `json:"backend"`
	EmbeddingDim        int     `json:"embedding_dim"`
	AlbumThreshold      float64 `json:"album_threshold"`
	AttendanceThreshold float64 `json:"attendance_threshold"`
	HistorySize         int     `json:"history_size"`
	MinFaceSize         int     `json:"min_face_size"`
	SimilarIndexCached  bool    `json:"similar_index_cached"`
}

// Get returns the active clustering configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	c := h.config.Clustering
	respondJSON(w, http.StatusOK, ConfigResponse{
		Backend:             h.config.Database.Backend,
		EmbeddingDim:        h.config.Embedding.Dim,
		AlbumThreshold:      c.AlbumThreshold,
		AttendanceThreshold: c.AttendanceThreshold,
		HistorySize:         c.HistorySize,
		MinFaceSize:         c.MinFaceSize,
		SimilarIndexCached:  h.config.Database.HNSWIndexPath != "",
	})
}
