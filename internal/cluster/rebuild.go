package cluster

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-clusterer/internal/database"
	"github.com/kozaktomas/face-clusterer/internal/vector"
)

// RebuildResult summarizes a reconciliation run.
type RebuildResult struct {
	Rebuilt int `json:"rebuilt"`
	Kept    int `json:"kept"`
	Dropped int `json:"dropped"`
}

// Rebuild re-derives every representative from the ledger: the history is
// the last N faces of each effective identity in ledger order and the
// vector is their medoid. Representatives of identities the ledger never
// mentions (seeded from enrollment) are kept; stale ones whose faces were
// all overridden or merged away are dropped.
func (e *Engine) Rebuild(ctx context.Context) (*RebuildResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	records, err := e.store.ListFaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing faces: %w", err)
	}
	existing, err := e.store.ListRepresentatives(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing representatives: %w", err)
	}

	mentioned := make(map[string]bool)
	members := make(map[string][][]float32)
	var order []string
	for i := range records {
		r := &records[i]
		mentioned[r.PersonID] = true
		if r.Override != "" {
			mentioned[r.Override] = true
		}
		id := r.EffectivePersonID()
		if id == database.NoisePersonID || !vector.Valid(r.Embedding, e.dim) {
			continue
		}
		if _, ok := members[id]; !ok {
			order = append(order, id)
		}
		members[id] = append(members[id], r.Embedding)
	}

	result := &RebuildResult{}
	reps := make([]database.Representative, 0, len(order))
	for _, id := range order {
		reps = append(reps, NewRepresentative(id, members[id], e.cfg.HistorySize, Medoid))
		result.Rebuilt++
	}
	for _, r := range existing {
		switch {
		case members[r.PersonID] != nil:
		case mentioned[r.PersonID]:
			result.Dropped++
		default:
			reps = append(reps, r)
			result.Kept++
		}
	}

	if err := e.store.ReplaceRepresentatives(ctx, reps); err != nil {
		return nil, fmt.Errorf("storing representatives: %w", err)
	}
	if err := database.Commit(ctx, e.store); err != nil {
		return nil, err
	}
	e.log.Info("representatives rebuilt", "rebuilt", result.Rebuilt, "kept", result.Kept, "dropped", result.Dropped)
	return result, nil
}
