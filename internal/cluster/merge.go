package cluster

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-clusterer/internal/database"
	"github.com/kozaktomas/face-clusterer/internal/vector"
)

// MergeResult describes a completed merge.
type MergeResult struct {
	SourceID  string `json:"source_id"`
	TargetID  string `json:"target_id"`
	Relabeled int    `json:"relabeled"`
}

func (e *Engine) isNamed(personID string) bool {
	if e.names == nil {
		return false
	}
	_, ok := e.names.DisplayName(personID)
	return ok
}

// mergeDirection picks the surviving identity. A named identity always
// survives over an unnamed one; otherwise the caller order (a into b) holds.
func (e *Engine) mergeDirection(a, b string) (source, target string) {
	if e.isNamed(a) && !e.isNamed(b) {
		return b, a
	}
	return a, b
}

// Merge folds identity a into identity b (or b into a when only a is named).
// Ledger faces assigned or overridden to the source are relabeled, the two
// representative vectors are averaged into the target, and the source
// representative is deleted. Source faces overridden to a third identity
// keep their person ID, so their correction does not start redirecting the
// target. Noise can be a source but never a target.
func (e *Engine) Merge(ctx context.Context, a, b string) (*MergeResult, error) {
	if a == "" || b == "" {
		return nil, ErrEmptyPersonID
	}
	if a == b {
		return nil, ErrSameIdentity
	}
	source, target := e.mergeDirection(a, b)
	if target == database.NoisePersonID {
		return nil, ErrNoiseTarget
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	relabeled, err := e.store.RelabelPerson(ctx, source, target)
	if err != nil {
		return nil, fmt.Errorf("relabeling faces: %w", err)
	}

	records, err := e.store.ListFaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing faces: %w", err)
	}
	for i := range records {
		if records[i].Override != source {
			continue
		}
		if _, err := e.store.SetOverride(ctx, records[i].FaceID, target); err != nil {
			return nil, fmt.Errorf("relabeling override of %s: %w", records[i].FaceID, err)
		}
		relabeled++
	}

	srcRep, err := e.store.GetRepresentative(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("loading representative %s: %w", source, err)
	}
	if srcRep != nil {
		dstRep, err := e.store.GetRepresentative(ctx, target)
		if err != nil {
			return nil, fmt.Errorf("loading representative %s: %w", target, err)
		}
		merged := mergeRepresentatives(srcRep, dstRep, target)
		if err := e.store.SaveRepresentative(ctx, merged); err != nil {
			return nil, fmt.Errorf("saving representative %s: %w", target, err)
		}
		if err := e.store.DeleteRepresentative(ctx, source); err != nil {
			return nil, fmt.Errorf("deleting representative %s: %w", source, err)
		}
	}

	if err := database.Commit(ctx, e.store); err != nil {
		return nil, err
	}
	e.log.Info("identities merged", "source", source, "target", target, "relabeled", relabeled)
	return &MergeResult{SourceID: source, TargetID: target, Relabeled: relabeled}, nil
}

// mergeRepresentatives averages the two vectors. The target keeps its own
// history; a target without a representative inherits the source's.
func mergeRepresentatives(src, dst *database.Representative, target string) database.Representative {
	if dst == nil || !vector.Valid(dst.Vector, len(src.Vector)) {
		return database.Representative{PersonID: target, Vector: vector.Clone(src.Vector), History: src.History}
	}
	return database.Representative{
		PersonID: target,
		Vector:   vector.Average(dst.Vector, src.Vector),
		History:  dst.History,
	}
}
