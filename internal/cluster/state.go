package cluster

import (
	"context"
	"fmt"
	"sort"

	"github.com/kozaktomas/face-clusterer/internal/database"
)

// state is the in-memory view of both stores for one unit of work.
// Every mutation is written through to the store.
type state struct {
	reps      map[string]*database.Representative
	sorted    []database.Representative
	dirty     bool
	records   []database.FaceRecord
	overrides OverrideMap
	dups      *DuplicateIndex
	faceSeq   int
	personSeq int
}

func (e *Engine) loadState(ctx context.Context) (*state, error) {
	reps, err := e.store.ListRepresentatives(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading representatives: %w", err)
	}
	records, err := e.store.ListFaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading face ledger: %w", err)
	}
	highWater, err := e.store.PersonSequence(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading person sequence: %w", err)
	}

	st := &state{
		reps:      make(map[string]*database.Representative, len(reps)),
		dirty:     true,
		records:   records,
		overrides: BuildOverrideMap(records),
		dups:      NewDuplicateIndex(records, e.cfg.DuplicateSimilarity),
		faceSeq:   MaxFaceSeq(records),
		personSeq: MaxPersonSeq(highWater, reps, records),
	}
	for i := range reps {
		st.reps[reps[i].PersonID] = &reps[i]
	}
	return st, nil
}

// list returns representatives ordered by person ID.
func (st *state) list() []database.Representative {
	if st.dirty {
		st.sorted = st.sorted[:0]
		for _, r := range st.reps {
			st.sorted = append(st.sorted, *r)
		}
		sort.Slice(st.sorted, func(i, j int) bool {
			return st.sorted[i].PersonID < st.sorted[j].PersonID
		})
		st.dirty = false
	}
	return st.sorted
}

func (st *state) setRep(rep database.Representative) {
	st.reps[rep.PersonID] = &rep
	st.dirty = true
}

func (st *state) deleteRep(personID string) {
	delete(st.reps, personID)
	st.dirty = true
}

func (st *state) nextFaceID() string {
	st.faceSeq++
	return FormatFaceID(st.faceSeq)
}

func (st *state) nextPersonID() string {
	st.personSeq++
	return FormatPersonID(st.personSeq)
}

func (st *state) appendRecord(rec database.FaceRecord) {
	st.records = append(st.records, rec)
	st.dups.Add(rec.FaceID, rec.Location, rec.Embedding)
}

// effectiveOf returns the effective identity of a ledger face.
func (st *state) effectiveOf(faceID string) string {
	for i := len(st.records) - 1; i >= 0; i-- {
		if st.records[i].FaceID == faceID {
			return st.records[i].EffectivePersonID()
		}
	}
	return ""
}
