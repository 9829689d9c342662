package cluster

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-clusterer/internal/database"
)

// indexAdd inserts a new ledger face into the similar-faces index once it
// has been built. Callers hold e.mu.
func (e *Engine) indexAdd(rec database.FaceRecord) {
	if e.indexReady {
		e.index.Add(rec.FaceID, rec.Embedding)
	}
}

// ensureIndex builds the similar-faces index from the ledger on first use,
// loading a persisted graph when it is still current. Callers hold e.mu.
func (e *Engine) ensureIndex(ctx context.Context) error {
	if e.indexReady {
		return nil
	}
	records, err := e.store.ListFaces(ctx)
	if err != nil {
		return fmt.Errorf("listing faces: %w", err)
	}
	fromDisk, err := e.index.LoadOrBuild(e.indexPath, records)
	if err != nil {
		e.log.Warn("persisted face index unusable, rebuilding", "error", err)
		e.index.BuildFromRecords(records)
	}
	e.indexReady = true
	e.log.Debug("face index ready", "faces", e.index.Count(), "from_disk", fromDisk)
	return nil
}

// SimilarFaces returns up to limit ledger faces most similar to faceID,
// excluding the face itself. The result is advisory: identity decisions
// never consult it.
func (e *Engine) SimilarFaces(ctx context.Context, faceID string, limit int) ([]database.FaceMatch, error) {
	if limit <= 0 {
		return []database.FaceMatch{}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.store.GetFace(ctx, faceID)
	if err != nil {
		return nil, fmt.Errorf("loading face: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrFaceNotFound, faceID)
	}

	if searcher, ok := e.store.(database.FaceSearcher); ok {
		matches, err := searcher.NearestFaces(ctx, rec.Embedding, limit+1)
		if err != nil {
			return nil, fmt.Errorf("searching similar faces: %w", err)
		}
		return dropFace(matches, faceID, limit), nil
	}

	if err := e.ensureIndex(ctx); err != nil {
		return nil, err
	}
	if e.index.Count() == 0 {
		return []database.FaceMatch{}, nil
	}
	ids, sims, err := e.index.Search(rec.Embedding, limit*database.HNSWSearchMultiplier+1)
	if err != nil {
		return nil, fmt.Errorf("searching similar faces: %w", err)
	}

	matches := make([]database.FaceMatch, 0, len(ids))
	for i, id := range ids {
		if id == faceID {
			continue
		}
		other, err := e.store.GetFace(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading face %s: %w", id, err)
		}
		if other == nil {
			continue
		}
		matches = append(matches, database.FaceMatch{
			FaceID:     other.FaceID,
			FileName:   other.FileName,
			PersonID:   other.EffectivePersonID(),
			Similarity: sims[i],
		})
	}
	return dropFace(matches, faceID, limit), nil
}

func dropFace(matches []database.FaceMatch, faceID string, limit int) []database.FaceMatch {
	out := make([]database.FaceMatch, 0, min(len(matches), limit))
	for _, m := range matches {
		if m.FaceID == faceID {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, m)
	}
	return out
}
