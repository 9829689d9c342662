package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kozaktomas/face-clusterer/internal/cluster"
)

// IdentitiesHandler handles identity-level maintenance.
type IdentitiesHandler struct {
	engine *cluster.Engine
	log    *slog.Logger
}

// NewIdentitiesHandler creates a new identities handler.
func NewIdentitiesHandler(engine *cluster.Engine, log *slog.Logger) *IdentitiesHandler {
	return &IdentitiesHandler{engine: engine, log: log}
}

// MergeRequest names the two identities to merge.
type MergeRequest struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
}

// Merge folds source into target; a named identity always survives.
func (h *IdentitiesHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.SourceID == "" || req.TargetID == "" {
		respondError(w, http.StatusBadRequest, "source_id and target_id are required")
		return
	}

	res, err := h.engine.Merge(r.Context(), req.SourceID, req.TargetID)
	if err != nil {
		respondErr(w, err)
		return
	}
	h.log.Info("identities merged", "source", res.SourceID, "target", res.TargetID, "relabeled", res.Relabeled)
	respondJSON(w, http.StatusOK, res)
}

// Rebuild recomputes every representative from the ledger.
func (h *IdentitiesHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Rebuild(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Stats returns face and identity counts.
func (h *IdentitiesHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
