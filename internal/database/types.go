package database

import (
	"encoding/json"
	"fmt"
	"strings"
)

// HistorySuffix marks the history key of an identity in the representative
// document namespace (`{person_id}_history`).
const HistorySuffix = "_history"

// NoisePersonID labels faces the bootstrap clusterer could not group.
// Such faces stay visible as unassigned and never get a representative.
const NoisePersonID = "noise"

// Location is a face bounding box in pixels. It serializes as the array
// [top, right, bottom, left].
type Location struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

// Width returns the horizontal extent of the box.
func (l Location) Width() int { return l.Right - l.Left }

// Height returns the vertical extent of the box.
func (l Location) Height() int { return l.Bottom - l.Top }

// Array returns the box as [top, right, bottom, left].
func (l Location) Array() [4]int {
	return [4]int{l.Top, l.Right, l.Bottom, l.Left}
}

// LocationFromArray builds a Location from [top, right, bottom, left].
func LocationFromArray(a []int) (Location, error) {
	if len(a) != 4 {
		return Location{}, fmt.Errorf("location must have 4 values, got %d", len(a))
	}
	return Location{Top: a[0], Right: a[1], Bottom: a[2], Left: a[3]}, nil
}

func (l Location) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Array())
}

func (l *Location) UnmarshalJSON(data []byte) error {
	var a []int
	if err := json.Unmarshal(data, &a); err != nil {
		// Some legacy documents store float coordinates.
		var f []float64
		if ferr := json.Unmarshal(data, &f); ferr != nil {
			return fmt.Errorf("decoding location: %w", err)
		}
		a = make([]int, len(f))
		for i, v := range f {
			a[i] = int(v)
		}
	}
	loc, err := LocationFromArray(a)
	if err != nil {
		return err
	}
	*l = loc
	return nil
}

// FaceRecord is one detected face instance in the ledger.
// Embedding and Location are immutable once appended; PersonID is only
// rewritten by a merge; Override may be set any number of times.
type FaceRecord struct {
	FaceID    string    `json:"face_id"`
	FileName  string    `json:"file_name"`
	Location  Location  `json:"location"`
	Embedding []float32 `json:"embedding"`
	PersonID  string    `json:"person_id"`
	Override  string    `json:"override,omitempty"`
	TooSmall  bool      `json:"too_small,omitempty"`
}

// EffectivePersonID returns the override when set, otherwise the assigned
// person ID. All display and grouping goes through this.
func (r *FaceRecord) EffectivePersonID() string {
	if r.Override != "" {
		return r.Override
	}
	return r.PersonID
}

// Representative is the per-identity rolling embedding state.
// Vector is derived from History and never edited directly, except by a
// merge which averages two vectors.
type Representative struct {
	PersonID string
	Vector   []float32
	History  [][]float32
}

// IsHistoryKey reports whether key is a `{person_id}_history` key.
func IsHistoryKey(key string) bool {
	return strings.HasSuffix(key, HistorySuffix)
}

// HistoryKey returns the history key for personID.
func HistoryKey(personID string) string {
	return personID + HistorySuffix
}
