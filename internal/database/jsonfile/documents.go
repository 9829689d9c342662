package jsonfile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/kozaktomas/face-clusterer/internal/database"
	"github.com/kozaktomas/face-clusterer/internal/vector"
)

// faceEntry is the ledger entry as written: keyed by face ID, so the ID
// itself is not repeated inside.
type faceEntry struct {
	FileName  string            `json:"file_name"`
	Location  database.Location `json:"location"`
	Embedding floatArray        `json:"embedding"`
	PersonID  string            `json:"person_id"`
	Override  string            `json:"override,omitempty"`
	TooSmall  bool              `json:"too_small,omitempty"`
}

// legacyFaceEntry accepts every historical shape of a ledger entry.
type legacyFaceEntry struct {
	FaceID          string            `json:"face_id"`
	FileName        string            `json:"file_name"`
	Location        database.Location `json:"location"`
	Embedding       floatArray        `json:"embedding"`
	Encoding        floatArray        `json:"encoding"`
	PersonID        string            `json:"person_id"`
	PredictedPerson string            `json:"predicted_person"`
	Override        string            `json:"override"`
	TooSmall        bool              `json:"too_small"`
}

func (e legacyFaceEntry) record(faceID string) database.FaceRecord {
	emb := e.Embedding
	if len(emb) == 0 {
		emb = e.Encoding
	}
	person := e.PersonID
	if person == "" {
		person = e.PredictedPerson
	}
	return database.FaceRecord{
		FaceID:    faceID,
		FileName:  e.FileName,
		Location:  e.Location,
		Embedding: []float32(emb),
		PersonID:  person,
		Override:  e.Override,
		TooSmall:  e.TooSmall,
	}
}

// decodeFaces normalizes a ledger document. The keyed form is current; a
// list of entries carrying face_id is the legacy form. List entries without
// an ID get the next free sequential one.
func decodeFaces(data []byte) ([]database.FaceRecord, error) {
	data = sanitizeNonFinite(data)

	var keyed map[string]legacyFaceEntry
	if err := json.Unmarshal(data, &keyed); err == nil {
		records := make([]database.FaceRecord, 0, len(keyed))
		for id, e := range keyed {
			records = append(records, e.record(id))
		}
		database.SortFaceRecords(records)
		return records, nil
	}

	var list []legacyFaceEntry
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("face ledger is neither an object nor a list: %w", err)
	}

	next := 0
	for _, e := range list {
		if n, ok := database.ParseSeq(database.FacePrefix, e.FaceID); ok && n >= next {
			next = n + 1
		}
	}
	seen := make(map[string]bool, len(list))
	records := make([]database.FaceRecord, 0, len(list))
	for _, e := range list {
		id := e.FaceID
		if id == "" || seen[id] {
			id = fmt.Sprintf("%s%04d", database.FacePrefix, next)
			next++
		}
		seen[id] = true
		records = append(records, e.record(id))
	}
	database.SortFaceRecords(records)
	return records, nil
}

func encodeFaces(records []database.FaceRecord) ([]byte, error) {
	doc := make(map[string]faceEntry, len(records))
	for _, r := range records {
		doc[r.FaceID] = faceEntry{
			FileName:  r.FileName,
			Location:  r.Location,
			Embedding: floatArray(r.Embedding),
			PersonID:  r.PersonID,
			Override:  r.Override,
			TooSmall:  r.TooSmall,
		}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding face ledger: %w", err)
	}
	return data, nil
}

// decodeRepresentatives reads the shared namespace
// {person_id: vector, "{person_id}_history": [vector, ...]}.
// An identity with a history but no vector gets the history medoid.
// Orphan vectors without history get a single-entry history.
func decodeRepresentatives(data []byte, log *slog.Logger) ([]database.Representative, error) {
	data = sanitizeNonFinite(data)

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding representatives: %w", err)
	}

	vectors := make(map[string][]float32)
	histories := make(map[string][][]float32)
	for key, raw := range doc {
		if database.IsHistoryKey(key) {
			var h []floatArray
			if err := json.Unmarshal(raw, &h); err != nil {
				log.Warn("skipping malformed representative history", "key", key, "error", err)
				continue
			}
			person := key[:len(key)-len(database.HistorySuffix)]
			hist := make([][]float32, len(h))
			for i := range h {
				hist[i] = []float32(h[i])
			}
			histories[person] = hist
			continue
		}
		var v floatArray
		if err := json.Unmarshal(raw, &v); err != nil {
			// Some writers nest the vector one level deeper.
			var nested []floatArray
			if nerr := json.Unmarshal(raw, &nested); nerr != nil || len(nested) != 1 {
				log.Warn("skipping malformed representative", "person_id", key, "error", err)
				continue
			}
			v = nested[0]
		}
		vectors[key] = []float32(v)
	}

	ids := make(map[string]struct{}, len(vectors))
	for id := range vectors {
		ids[id] = struct{}{}
	}
	for id := range histories {
		ids[id] = struct{}{}
	}

	reps := make([]database.Representative, 0, len(ids))
	for id := range ids {
		rep := database.Representative{PersonID: id, Vector: vectors[id], History: histories[id]}
		if rep.Vector == nil {
			rep.Vector = vector.Medoid(rep.History)
		}
		if rep.History == nil && rep.Vector != nil {
			rep.History = [][]float32{vector.Clone(rep.Vector)}
		}
		if rep.Vector == nil {
			continue
		}
		reps = append(reps, rep)
	}
	sort.Slice(reps, func(i, j int) bool { return reps[i].PersonID < reps[j].PersonID })
	return reps, nil
}

func encodeRepresentatives(reps []database.Representative) ([]byte, error) {
	doc := make(map[string]any, 2*len(reps))
	for _, r := range reps {
		doc[r.PersonID] = floatArray(r.Vector)
		hist := make([]floatArray, len(r.History))
		for i := range r.History {
			hist[i] = floatArray(r.History[i])
		}
		doc[database.HistoryKey(r.PersonID)] = hist
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding representatives: %w", err)
	}
	return data, nil
}

// meta holds state that has no place in the two documents.
type meta struct {
	PersonSequence int `json:"person_sequence"`
	Version        int `json:"version"`
}

const metaVersion = 1
