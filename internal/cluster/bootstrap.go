package cluster

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-clusterer/internal/database"
	"github.com/kozaktomas/face-clusterer/internal/faceengine"
	"github.com/kozaktomas/face-clusterer/internal/vector"
)

// BootstrapResult summarizes a bootstrap run.
type BootstrapResult struct {
	Files      []FileResult `json:"files"`
	Identities []string     `json:"identities"`
	Noise      int          `json:"noise"`
}

type bootstrapFace struct {
	file  int
	face  faceengine.Face
	label int
}

// Bootstrap seeds identities from an unlabeled batch using density-based
// clustering. It refuses to run over existing representatives unless force
// is set, in which case the representative document is replaced wholesale.
// Faces left unclustered are recorded as noise and get no representative.
func (e *Engine) Bootstrap(ctx context.Context, images []Image, force bool) (*BootstrapResult, error) {
	if !force {
		if err := e.ensureNotBootstrapped(ctx); err != nil {
			return nil, err
		}
	}
	detections := e.detectAll(ctx, images)

	e.mu.Lock()
	defer e.mu.Unlock()

	if !force {
		if err := e.ensureNotBootstrapped(ctx); err != nil {
			return nil, err
		}
	}
	st, err := e.loadState(ctx)
	if err != nil {
		return nil, err
	}

	result := &BootstrapResult{Files: make([]FileResult, len(images)), Identities: []string{}}
	var batch []bootstrapFace
	for i, img := range images {
		fr := FileResult{FileName: img.Name, Faces: []FaceResult{}}
		d := detections[i]
		if d.err != nil {
			e.log.Warn("face detection failed", "file", img.Name, "error", d.err)
			fr.Error = d.err.Error()
			result.Files[i] = fr
			continue
		}
		fr.FacesDetected = len(d.faces)
		for _, f := range d.faces {
			if !vector.Valid(f.Embedding, e.dim) {
				fr.Faces = append(fr.Faces, FaceResult{Location: f.Location, Skipped: "invalid embedding"})
				continue
			}
			if faceID, ok := st.dups.Find(f.Location, f.Embedding); ok {
				fr.Faces = append(fr.Faces, FaceResult{FaceID: faceID, Location: f.Location, Duplicate: true})
				continue
			}
			// Batch members have no face ID yet; repeats within the batch
			// are reported without one.
			st.dups.Add("", f.Location, f.Embedding)
			batch = append(batch, bootstrapFace{file: i, face: f})
		}
		result.Files[i] = fr
	}

	embeddings := make([][]float32, len(batch))
	for i := range batch {
		embeddings[i] = batch[i].face.Embedding
	}
	minSize := max(e.cfg.MinClusterSize, 2)
	labels := HDBSCAN(vector.CosineDistanceMatrix(embeddings), minSize, minSize)

	// Identities are minted in label order, which follows first appearance.
	personOf := make(map[int]string)
	members := make(map[int][][]float32)
	for i := range batch {
		batch[i].label = labels[i]
		if labels[i] == Noise {
			continue
		}
		if _, ok := personOf[labels[i]]; !ok {
			personOf[labels[i]] = st.nextPersonID()
		}
		members[labels[i]] = append(members[labels[i]], batch[i].face.Embedding)
	}

	for _, bf := range batch {
		personID := database.NoisePersonID
		if bf.label != Noise {
			personID = personOf[bf.label]
		} else {
			result.Noise++
		}
		rec := database.FaceRecord{
			FaceID:    st.nextFaceID(),
			FileName:  images[bf.file].Name,
			Location:  bf.face.Location,
			Embedding: vector.Clone(bf.face.Embedding),
			PersonID:  personID,
			TooSmall:  faceengine.TooSmall(bf.face.Location, e.cfg.MinFaceSize),
		}
		if err := e.store.AppendFace(ctx, rec); err != nil {
			return nil, fmt.Errorf("recording face: %w", err)
		}
		st.appendRecord(rec)
		e.indexAdd(rec)

		fr := &result.Files[bf.file]
		fr.Faces = append(fr.Faces, FaceResult{
			FaceID:      rec.FaceID,
			PersonID:    personID,
			NewIdentity: personID != database.NoisePersonID,
			TooSmall:    rec.TooSmall,
			Location:    rec.Location,
		})
	}

	reps := make([]database.Representative, 0, len(personOf))
	for label := 0; label < len(personOf); label++ {
		personID := personOf[label]
		reps = append(reps, NewRepresentative(personID, members[label], e.cfg.HistorySize, Mean))
		result.Identities = append(result.Identities, personID)
	}
	if err := e.store.ReplaceRepresentatives(ctx, reps); err != nil {
		return nil, fmt.Errorf("storing representatives: %w", err)
	}
	if len(reps) > 0 {
		if err := e.store.SetPersonSequence(ctx, st.personSeq); err != nil {
			return nil, fmt.Errorf("recording person sequence: %w", err)
		}
	}
	if err := database.Commit(ctx, e.store); err != nil {
		return nil, err
	}

	e.log.Info("bootstrap complete", "faces", len(batch), "identities", len(reps), "noise", result.Noise)
	return result, nil
}

func (e *Engine) ensureNotBootstrapped(ctx context.Context) error {
	n, err := e.store.CountRepresentatives(ctx)
	if err != nil {
		return fmt.Errorf("counting representatives: %w", err)
	}
	if n > 0 {
		return ErrAlreadyBootstrapped
	}
	return nil
}
