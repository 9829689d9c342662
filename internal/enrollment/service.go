// Package enrollment keeps per-user reference embeddings for attendance
// checks and for seeding the album representatives of a fresh store.
package enrollment

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/kozaktomas/face-clusterer/internal/cluster"
	"github.com/kozaktomas/face-clusterer/internal/config"
	"github.com/kozaktomas/face-clusterer/internal/database"
	"github.com/kozaktomas/face-clusterer/internal/faceengine"
	"github.com/kozaktomas/face-clusterer/internal/logger"
	"github.com/kozaktomas/face-clusterer/internal/vector"
)

// Service owns the enrollment directory. All methods are safe for
// concurrent use.
type Service struct {
	mu sync.RWMutex

	dir       string
	detector  faceengine.Detector
	cfg       config.EnrollmentConfig
	threshold float64
	log       *slog.Logger

	users map[string]*UserData
	names map[string]string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// Open loads every enrolled user from cfg.Dir. attendanceThreshold is the
// similarity a face needs to count as present.
func Open(cfg config.EnrollmentConfig, detector faceengine.Detector, attendanceThreshold float64, opts ...Option) (*Service, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("enrollment directory is required")
	}
	s := &Service{
		dir:       cfg.Dir,
		detector:  detector,
		cfg:       cfg,
		threshold: attendanceThreshold,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.ClusterMinVectors <= 0 {
		s.cfg.ClusterMinVectors = 5
	}
	if s.cfg.ClusterCount <= 0 {
		s.cfg.ClusterCount = 4
	}
	if s.cfg.SeedVectors <= 0 {
		s.cfg.SeedVectors = 20
	}

	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return nil, fmt.Errorf("creating enrollment directory: %w", err)
	}
	users, err := loadUsers(cfg.Dir, s.log)
	if err != nil {
		return nil, err
	}
	names, err := loadNames(cfg.Dir)
	if err != nil {
		return nil, err
	}
	s.users = users
	s.names = names
	s.log.Info("loaded enrollment data", "users", len(users), "names", len(names))
	return s, nil
}

// User is the public view of one enrolled user.
type User struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	Vectors   int    `json:"vectors"`
	Clustered bool   `json:"clustered"`
}

// Users lists enrolled users ordered by ID.
func (s *Service) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]User, 0, len(s.users))
	for _, id := range s.sortedIDs() {
		ud := s.users[id]
		out = append(out, User{
			UserID:    id,
			Name:      s.names[id],
			Vectors:   len(ud.Raw),
			Clustered: ud.Clusters != nil,
		})
	}
	return out
}

func (s *Service) sortedIDs() []string {
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, aok := database.ParseSeq("", ids[i])
		b, bok := database.ParseSeq("", ids[j])
		if aok && bok && a != b {
			return a < b
		}
		if aok != bok {
			return aok
		}
		return ids[i] < ids[j]
	})
	return ids
}

// SkippedImage explains why an image contributed nothing.
type SkippedImage struct {
	FileName      string `json:"filename"`
	DetectedFaces int    `json:"detected_faces"`
	Reason        string `json:"reason"`
}

// UserSimilarity is the best similarity of a new embedding to one user.
type UserSimilarity struct {
	UserID     string  `json:"user_id"`
	Similarity float64 `json:"similarity"`
}

// RegisterResult summarizes one registration call.
type RegisterResult struct {
	UserID       string           `json:"user_id"`
	Submitted    int              `json:"submitted"`
	Added        int              `json:"added"`
	Total        int              `json:"total"`
	Clustered    bool             `json:"clustered"`
	Skipped      []SkippedImage   `json:"skipped_files"`
	Similarities []UserSimilarity `json:"similarity_results"`
}

// Register detects faces in images and appends the embedding of every
// single-face image to the user's raw vectors. Other images are reported
// as skipped. Clusters are recomputed once enough vectors exist. When no
// image is usable the result is returned with ErrNoUsableFaces.
func (s *Service) Register(ctx context.Context, userID string, images []cluster.Image) (*RegisterResult, error) {
	if !ValidUserID(userID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUserID, userID)
	}

	result := &RegisterResult{UserID: userID, Submitted: len(images), Skipped: []SkippedImage{}}
	var embeddings [][]float32
	for _, img := range images {
		faces, err := s.detector.Detect(ctx, img.Data, img.Name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			result.Skipped = append(result.Skipped, SkippedImage{FileName: img.Name, Reason: err.Error()})
			continue
		}
		switch len(faces) {
		case 1:
			if !vector.Valid(faces[0].Embedding, 0) {
				result.Skipped = append(result.Skipped, SkippedImage{FileName: img.Name, DetectedFaces: 1, Reason: "invalid embedding"})
				continue
			}
			embeddings = append(embeddings, vector.Clone(faces[0].Embedding))
		case 0:
			result.Skipped = append(result.Skipped, SkippedImage{FileName: img.Name, Reason: "no face found in image"})
		default:
			result.Skipped = append(result.Skipped, SkippedImage{
				FileName:      img.Name,
				DetectedFaces: len(faces),
				Reason:        fmt.Sprintf("%d faces detected in image", len(faces)),
			})
		}
	}
	if len(embeddings) == 0 {
		return result, ErrNoUsableFaces
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.users[userID]
	ud := &UserData{}
	if prev != nil {
		ud.Raw = append(ud.Raw, prev.Raw...)
		ud.Clusters = prev.Clusters
	}
	ud.Raw = append(ud.Raw, embeddings...)
	if len(ud.Raw) >= s.cfg.ClusterMinVectors {
		ud.Clusters = KMeans(ud.Raw, s.cfg.ClusterCount, s.cfg.KMeansSeed)
	} else {
		ud.Clusters = nil
	}

	if err := saveUser(s.dir, userID, ud); err != nil {
		return nil, err
	}
	s.users[userID] = ud

	result.Added = len(embeddings)
	result.Total = len(ud.Raw)
	result.Clustered = ud.Clusters != nil
	first := embeddings[0]
	for _, id := range s.sortedIDs() {
		best, ok := bestSimilarity(first, s.users[id].Raw)
		if ok {
			result.Similarities = append(result.Similarities, UserSimilarity{UserID: id, Similarity: best})
		}
	}

	s.log.Info("registered faces", "user_id", userID, "added", result.Added,
		"total", result.Total, "skipped", len(result.Skipped), "clustered", result.Clustered)
	return result, nil
}

func bestSimilarity(v []float32, candidates [][]float32) (float64, bool) {
	best, ok := 0.0, false
	for _, c := range candidates {
		if len(c) != len(v) {
			continue
		}
		if sim := vector.CosineSimilarity(v, c); !ok || sim > best {
			best, ok = sim, true
		}
	}
	return best, ok
}

// SetName binds a display name to an enrolled user.
func (s *Service) SetName(userID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	next := make(map[string]string, len(s.names)+1)
	for id, n := range s.names {
		next[id] = n
	}
	next[userID] = name
	if err := saveNames(s.dir, next); err != nil {
		return err
	}
	s.names = next
	return nil
}

// Name returns the name bound to userID.
func (s *Service) Name(userID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.names[userID]
}

// DisplayName resolves an album identity to a registered name. It accepts
// user_{user_id} keys and identities that were overridden to a
// registered name directly.
func (s *Service) DisplayName(personID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := userIDFromPerson(personID); ok {
		if name := s.names[id]; name != "" {
			return name, true
		}
	}
	want := NormalizeName(personID)
	if want == "" {
		return "", false
	}
	for _, name := range s.names {
		if NormalizeName(name) == want {
			return name, true
		}
	}
	return "", false
}

func userIDFromPerson(personID string) (string, bool) {
	id, ok := strings.CutPrefix(personID, IdentityPrefix)
	return id, ok && id != ""
}

// IdentityPrefix starts the album identity of every enrolled user. It is
// disjoint from the auto-assigned person_{n} namespace, so a user ID never
// names or outranks an unrelated cluster.
const IdentityPrefix = "user_"

// PersonID returns the album identity of an enrolled user.
func PersonID(userID string) string {
	return IdentityPrefix + userID
}

// SeedRepresentatives builds one representative per enrolled user from the
// mean of their most recent raw vectors. It satisfies cluster.Seeder.
func (s *Service) SeedRepresentatives(_ context.Context, historySize int) ([]database.Representative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := min(historySize, s.cfg.SeedVectors)
	if n <= 0 {
		n = s.cfg.SeedVectors
	}
	var reps []database.Representative
	for _, id := range s.sortedIDs() {
		raw := s.users[id].Raw
		if len(raw) == 0 {
			continue
		}
		reps = append(reps, cluster.NewRepresentative(PersonID(id), raw, n, cluster.Mean))
	}
	return reps, nil
}
