// Package cluster is the incremental identity-clustering engine: it
// matches detected faces against per-identity representatives, mints new
// identities, applies manual overrides and merges, and seeds identities
// from a first unlabeled batch.
package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kozaktomas/face-clusterer/internal/config"
	"github.com/kozaktomas/face-clusterer/internal/database"
	"github.com/kozaktomas/face-clusterer/internal/faceengine"
	"github.com/kozaktomas/face-clusterer/internal/logger"
	"github.com/kozaktomas/face-clusterer/internal/vector"
)

// NameResolver reports human names bound to identities.
type NameResolver interface {
	DisplayName(personID string) (string, bool)
}

// Seeder provides initial representatives for an empty store.
type Seeder interface {
	SeedRepresentatives(ctx context.Context, historySize int) ([]database.Representative, error)
}

// PhotoLister lists stored uploads for the all-photos album.
type PhotoLister interface {
	List() ([]string, error)
}

// Engine serializes every mutation of the representative store and the
// face ledger behind one mutex.
type Engine struct {
	mu sync.Mutex

	store    database.Store
	detector faceengine.Detector
	cfg      config.ClusteringConfig
	matcher  Matcher
	log      *slog.Logger

	dim         int
	concurrency int
	names       NameResolver
	seeder      Seeder
	photos      PhotoLister

	index      *database.FaceIndex
	indexPath  string
	indexReady bool
	seedTried  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithDimension sets the required embedding dimension.
func WithDimension(dim int) Option {
	return func(e *Engine) { e.dim = dim }
}

// WithConcurrency bounds parallel detection requests.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithNames binds registered user names to identities.
func WithNames(r NameResolver) Option {
	return func(e *Engine) { e.names = r }
}

// WithSeeder enables seeding an empty store from enrollment data.
func WithSeeder(s Seeder) Option {
	return func(e *Engine) { e.seeder = s }
}

// WithPhotos enables the all-photos album.
func WithPhotos(p PhotoLister) Option {
	return func(e *Engine) { e.photos = p }
}

// WithIndexPath persists the similar-faces index at path.
func WithIndexPath(path string) Option {
	return func(e *Engine) { e.indexPath = path }
}

// NewEngine creates an engine over store using detector for face detection.
func NewEngine(store database.Store, detector faceengine.Detector, cfg config.ClusteringConfig, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		detector:    detector,
		cfg:         cfg,
		log:         logger.Nop(),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.HistorySize <= 0 {
		e.cfg.HistorySize = 20
	}
	e.matcher = Matcher{Threshold: e.cfg.AlbumThreshold, Dim: e.dim, Log: e.log}
	e.index = database.NewFaceIndex(e.dim)
	return e
}

// FaceResult is the outcome for one detected face.
type FaceResult struct {
	FaceID         string            `json:"face_id,omitempty"`
	PersonID       string            `json:"person_id,omitempty"`
	Similarity     float64           `json:"similarity"`
	NewIdentity    bool              `json:"new_identity,omitempty"`
	RedirectedFrom string            `json:"redirected_from,omitempty"`
	Duplicate      bool              `json:"duplicate,omitempty"`
	TooSmall       bool              `json:"too_small,omitempty"`
	Skipped        string            `json:"skipped,omitempty"`
	Location       database.Location `json:"location"`
}

// FileResult is the outcome for one image of a batch.
type FileResult struct {
	FileName      string       `json:"file_name"`
	FacesDetected int          `json:"faces_detected"`
	Faces         []FaceResult `json:"faces"`
	Error         string       `json:"error,omitempty"`
}

// seedIfEmpty fills an empty representative store from the seeder. It is
// attempted at most once per engine.
func (e *Engine) seedIfEmpty(ctx context.Context) error {
	if e.seeder == nil || e.seedTried {
		return nil
	}
	e.seedTried = true

	n, err := e.store.CountRepresentatives(ctx)
	if err != nil {
		return fmt.Errorf("counting representatives: %w", err)
	}
	if n > 0 {
		return nil
	}

	reps, err := e.seeder.SeedRepresentatives(ctx, e.cfg.HistorySize)
	if err != nil {
		return fmt.Errorf("seeding representatives: %w", err)
	}
	for _, r := range reps {
		if err := e.store.SaveRepresentative(ctx, r); err != nil {
			return fmt.Errorf("saving seeded representative %s: %w", r.PersonID, err)
		}
	}
	if len(reps) > 0 {
		e.log.Info("seeded representatives from enrollment", "count", len(reps))
	}
	return nil
}

// Classify detects faces in images and assigns each to an identity.
// Per-image failures are reported in the results; only store failures
// abort the batch.
func (e *Engine) Classify(ctx context.Context, images []Image) ([]FileResult, error) {
	detections := e.detectAll(ctx, images)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.seedIfEmpty(ctx); err != nil {
		return nil, err
	}
	st, err := e.loadState(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]FileResult, len(images))
	for i, img := range images {
		res := FileResult{FileName: img.Name, Faces: []FaceResult{}}
		if d := detections[i]; d.err != nil {
			e.log.Warn("face detection failed", "file", img.Name, "error", d.err)
			res.Error = d.err.Error()
		} else {
			res.FacesDetected = len(d.faces)
			for _, f := range d.faces {
				fr, err := e.classifyFace(ctx, st, img.Name, f)
				if err != nil {
					return results, err
				}
				res.Faces = append(res.Faces, fr)
			}
		}
		results[i] = res
	}

	if err := database.Commit(ctx, e.store); err != nil {
		return results, err
	}
	return results, nil
}

func (e *Engine) classifyFace(ctx context.Context, st *state, fileName string, f faceengine.Face) (FaceResult, error) {
	res := FaceResult{Location: f.Location}
	if !vector.Valid(f.Embedding, e.dim) {
		e.log.Warn("skipping face with invalid embedding", "file", fileName, "dim", len(f.Embedding))
		res.Skipped = "invalid embedding"
		return res, nil
	}
	if faceID, ok := st.dups.Find(f.Location, f.Embedding); ok {
		e.log.Info("skipping duplicate face", "file", fileName, "face_id", faceID)
		res.FaceID = faceID
		res.PersonID = st.effectiveOf(faceID)
		res.Duplicate = true
		return res, nil
	}

	m := e.matcher.Match(f.Embedding, st.list())
	personID := m.PersonID
	res.Similarity = m.Similarity
	if !m.Matched {
		personID = st.nextPersonID()
		res.NewIdentity = true
		if err := e.store.SetPersonSequence(ctx, st.personSeq); err != nil {
			return res, fmt.Errorf("recording person sequence: %w", err)
		}
	}

	if target, ok := st.overrides.Resolve(personID); ok {
		e.log.Info("redirecting overridden identity", "from", personID, "to", target)
		if _, has := st.reps[personID]; has {
			if err := e.store.DeleteRepresentative(ctx, personID); err != nil {
				return res, fmt.Errorf("evicting representative %s: %w", personID, err)
			}
			st.deleteRep(personID)
			e.log.Info("evicted stale representative", "person_id", personID)
		}
		res.RedirectedFrom = personID
		personID = target
	}

	rec := database.FaceRecord{
		FaceID:    st.nextFaceID(),
		FileName:  fileName,
		Location:  f.Location,
		Embedding: vector.Clone(f.Embedding),
		PersonID:  personID,
		TooSmall:  faceengine.TooSmall(f.Location, e.cfg.MinFaceSize),
	}
	if err := e.store.AppendFace(ctx, rec); err != nil {
		return res, fmt.Errorf("recording face: %w", err)
	}
	st.appendRecord(rec)

	if personID != database.NoisePersonID {
		rep := UpdateRepresentative(st.reps[personID], personID, rec.Embedding, e.cfg.HistorySize, Medoid)
		if err := e.store.SaveRepresentative(ctx, rep); err != nil {
			return res, fmt.Errorf("updating representative %s: %w", personID, err)
		}
		st.setRep(rep)
	}
	e.indexAdd(rec)

	res.FaceID = rec.FaceID
	res.PersonID = personID
	res.TooSmall = rec.TooSmall
	return res, nil
}

// Override records a manual identity correction for one face. It does not
// touch representatives; the next classification applies the redirect.
func (e *Engine) Override(ctx context.Context, faceID, newPersonID string) error {
	if newPersonID == "" {
		return ErrEmptyPersonID
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	found, err := e.store.SetOverride(ctx, faceID, newPersonID)
	if err != nil {
		return fmt.Errorf("setting override: %w", err)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrFaceNotFound, faceID)
	}
	e.log.Info("face overridden", "face_id", faceID, "person_id", newPersonID)
	return database.Commit(ctx, e.store)
}

// Stats summarizes the stores.
type Stats struct {
	Faces      int `json:"faces"`
	Identities int `json:"identities"`
}

// Stats returns store counts.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	faces, err := e.store.CountFaces(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("counting faces: %w", err)
	}
	reps, err := e.store.CountRepresentatives(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("counting representatives: %w", err)
	}
	return Stats{Faces: faces, Identities: reps}, nil
}

// Face returns one ledger record.
func (e *Engine) Face(ctx context.Context, faceID string) (*database.FaceRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.store.GetFace(ctx, faceID)
	if err != nil {
		return nil, fmt.Errorf("loading face: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrFaceNotFound, faceID)
	}
	return rec, nil
}

// Close persists the similar-faces index when a path is configured.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.indexPath == "" || !e.indexReady {
		return nil
	}
	records, err := e.store.ListFaces(context.Background())
	if err != nil {
		return fmt.Errorf("listing faces: %w", err)
	}
	last := ""
	if len(records) > 0 {
		last = records[len(records)-1].FaceID
	}
	if err := e.index.Save(e.indexPath, last); err != nil {
		return fmt.Errorf("saving face index: %w", err)
	}
	return nil
}
