package cluster

import (
	"fmt"

	"github.com/kozaktomas/face-clusterer/internal/database"
)

// FaceIDFormat is the zero-padded face ID layout.
const FaceIDFormat = database.FacePrefix + "%04d"

// FormatFaceID returns the face ID for sequence n.
func FormatFaceID(n int) string {
	return fmt.Sprintf(FaceIDFormat, n)
}

// FormatPersonID returns the person ID for sequence n.
func FormatPersonID(n int) string {
	return fmt.Sprintf("%s%d", database.PersonPrefix, n)
}

// MaxFaceSeq returns the highest numeric face suffix in records, or -1.
func MaxFaceSeq(records []database.FaceRecord) int {
	maxSeq := -1
	for i := range records {
		if n, ok := database.ParseSeq(database.FacePrefix, records[i].FaceID); ok && n > maxSeq {
			maxSeq = n
		}
	}
	return maxSeq
}

// NextFaceID returns an ID greater than every existing face suffix.
func NextFaceID(records []database.FaceRecord) string {
	return FormatFaceID(MaxFaceSeq(records) + 1)
}

// MaxPersonSeq returns the highest person_{n} suffix seen in the high-water
// mark, the representative keys, and the ledger labels (assigned or
// overridden). Returns -1 when nothing was ever issued.
func MaxPersonSeq(highWater int, reps []database.Representative, records []database.FaceRecord) int {
	maxSeq := highWater
	consider := func(id string) {
		if n, ok := database.ParseSeq(database.PersonPrefix, id); ok && n > maxSeq {
			maxSeq = n
		}
	}
	for i := range reps {
		consider(reps[i].PersonID)
	}
	for i := range records {
		consider(records[i].PersonID)
		consider(records[i].Override)
	}
	return maxSeq
}
