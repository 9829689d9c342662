package database

import (
	"sort"
	"strconv"
	"strings"
)

// ID prefixes of the two auto-assigned namespaces.
const (
	FacePrefix   = "face_"
	PersonPrefix = "person_"
)

// ParseSeq extracts the numeric suffix of id after prefix.
// Returns false when id has another prefix or a non-numeric suffix.
func ParseSeq(prefix, id string) (int, bool) {
	if !strings.HasPrefix(id, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, prefix))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// SortFaceRecords orders records by numeric face suffix, which is creation
// order. IDs without a numeric suffix sort last, lexically.
func SortFaceRecords(records []FaceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return lessFaceID(records[i].FaceID, records[j].FaceID)
	})
}

func lessFaceID(a, b string) bool {
	na, oka := ParseSeq(FacePrefix, a)
	nb, okb := ParseSeq(FacePrefix, b)
	switch {
	case oka && okb:
		if na != nb {
			return na < nb
		}
		return a < b
	case oka:
		return true
	case okb:
		return false
	default:
		return a < b
	}
}
