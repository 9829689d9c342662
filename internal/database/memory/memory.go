// Package memory provides an in-process Store backed by maps.
// It is the working set of the JSON document backend and the store used by
// engine tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/face-clusterer/internal/database"
	"github.com/kozaktomas/face-clusterer/internal/vector"
)

// Store keeps representatives and face records in memory.
type Store struct {
	mu        sync.RWMutex
	reps      map[string]database.Representative
	faces     map[string]database.FaceRecord
	personSeq int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		reps:      make(map[string]database.Representative),
		faces:     make(map[string]database.FaceRecord),
		personSeq: -1,
	}
}

func cloneRep(r database.Representative) database.Representative {
	out := database.Representative{
		PersonID: r.PersonID,
		Vector:   vector.Clone(r.Vector),
		History:  make([][]float32, len(r.History)),
	}
	for i, h := range r.History {
		out.History[i] = vector.Clone(h)
	}
	return out
}

func cloneFace(f database.FaceRecord) database.FaceRecord {
	f.Embedding = vector.Clone(f.Embedding)
	return f
}

func (s *Store) GetRepresentative(_ context.Context, personID string) (*database.Representative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reps[personID]
	if !ok {
		return nil, nil
	}
	out := cloneRep(r)
	return &out, nil
}

func (s *Store) ListRepresentatives(_ context.Context) ([]database.Representative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]database.Representative, 0, len(s.reps))
	for _, r := range s.reps {
		out = append(out, cloneRep(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PersonID < out[j].PersonID })
	return out, nil
}

func (s *Store) CountRepresentatives(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reps), nil
}

func (s *Store) SaveRepresentative(_ context.Context, rep database.Representative) error {
	if rep.PersonID == "" {
		return fmt.Errorf("representative without person ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reps[rep.PersonID] = cloneRep(rep)
	return nil
}

func (s *Store) DeleteRepresentative(_ context.Context, personID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reps, personID)
	return nil
}

func (s *Store) ReplaceRepresentatives(_ context.Context, reps []database.Representative) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reps = make(map[string]database.Representative, len(reps))
	for _, r := range reps {
		s.reps[r.PersonID] = cloneRep(r)
	}
	return nil
}

func (s *Store) PersonSequence(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.personSeq, nil
}

func (s *Store) SetPersonSequence(_ context.Context, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > s.personSeq {
		s.personSeq = n
	}
	return nil
}

func (s *Store) AppendFace(_ context.Context, rec database.FaceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.faces[rec.FaceID]; exists {
		return fmt.Errorf("face %s already exists", rec.FaceID)
	}
	s.faces[rec.FaceID] = cloneFace(rec)
	return nil
}

func (s *Store) GetFace(_ context.Context, faceID string) (*database.FaceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.faces[faceID]
	if !ok {
		return nil, nil
	}
	out := cloneFace(f)
	return &out, nil
}

func (s *Store) ListFaces(_ context.Context) ([]database.FaceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]database.FaceRecord, 0, len(s.faces))
	for _, f := range s.faces {
		out = append(out, cloneFace(f))
	}
	database.SortFaceRecords(out)
	return out, nil
}

func (s *Store) CountFaces(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.faces), nil
}

func (s *Store) SetOverride(_ context.Context, faceID, personID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.faces[faceID]
	if !ok {
		return false, nil
	}
	f.Override = personID
	s.faces[faceID] = f
	return true, nil
}

func (s *Store) RelabelPerson(_ context.Context, from, to string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, f := range s.faces {
		if f.PersonID == from && (f.Override == "" || f.Override == from || f.Override == to) {
			f.PersonID = to
			s.faces[id] = f
			n++
		}
	}
	return n, nil
}

func (s *Store) Close() error {
	return nil
}

var _ database.Store = (*Store)(nil)
