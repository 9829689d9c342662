package database

import (
	"context"
	"fmt"
)

// RepresentativeStore owns the mapping person_id -> (representative vector, history).
// Implementations guarantee read-your-writes for a single writer.
type RepresentativeStore interface {
	// GetRepresentative returns the representative for personID, or nil if absent
	GetRepresentative(ctx context.Context, personID string) (*Representative, error)
	// ListRepresentatives returns all identities ordered by person ID
	ListRepresentatives(ctx context.Context) ([]Representative, error)
	// CountRepresentatives returns the number of identities with a representative
	CountRepresentatives(ctx context.Context) (int, error)
	// SaveRepresentative inserts or replaces the vector and history of an identity
	SaveRepresentative(ctx context.Context, rep Representative) error
	// DeleteRepresentative removes the representative and its history.
	// Deleting an absent identity is not an error.
	DeleteRepresentative(ctx context.Context, personID string) error
	// ReplaceRepresentatives drops every identity and stores reps instead.
	// Used by bootstrap, which recomputes the document wholesale.
	ReplaceRepresentatives(ctx context.Context, reps []Representative) error

	// PersonSequence returns the highest person_{n} suffix ever issued (-1 if none)
	PersonSequence(ctx context.Context) (int, error)
	// SetPersonSequence records n as the highest issued suffix. Lower values are ignored.
	SetPersonSequence(ctx context.Context, n int) error
}

// FaceLedger is the append-only record of every processed face.
type FaceLedger interface {
	// AppendFace stores a new record. Appending an existing face ID is an error.
	AppendFace(ctx context.Context, rec FaceRecord) error
	// GetFace returns the record for faceID, or nil if absent
	GetFace(ctx context.Context, faceID string) (*FaceRecord, error)
	// ListFaces returns all records ordered by face ID
	ListFaces(ctx context.Context) ([]FaceRecord, error)
	// CountFaces returns the number of records
	CountFaces(ctx context.Context) (int, error)
	// SetOverride sets the override of faceID. Returns false if the face does not exist.
	SetOverride(ctx context.Context, faceID, personID string) (bool, error)
	// RelabelPerson rewrites person_id from -> to on every matching record
	// that is not overridden to a third identity, and returns how many
	// records changed.
	RelabelPerson(ctx context.Context, from, to string) (int, error)
}

// Store bundles both documents behind one backend.
type Store interface {
	RepresentativeStore
	FaceLedger

	// Close releases backend resources
	Close() error
}

// Committer is implemented by backends that buffer writes and persist them
// at the end of a unit of work (the JSON document backend).
type Committer interface {
	Commit(ctx context.Context) error
}

// Commit flushes s when it buffers writes. It is a no-op otherwise.
func Commit(ctx context.Context, s Store) error {
	if c, ok := s.(Committer); ok {
		if err := c.Commit(ctx); err != nil {
			return fmt.Errorf("committing store: %w", err)
		}
	}
	return nil
}

// FaceSearcher is implemented by backends that can run nearest-neighbour
// queries natively (pgvector). Results are ordered by descending similarity.
type FaceSearcher interface {
	NearestFaces(ctx context.Context, query []float32, k int) ([]FaceMatch, error)
}

// FaceMatch is a ledger record with its cosine similarity to a query.
type FaceMatch struct {
	FaceID     string  `json:"face_id"`
	FileName   string  `json:"file_name"`
	PersonID   string  `json:"person_id"`
	Similarity float64 `json:"similarity"`
}
