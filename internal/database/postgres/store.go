package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-clusterer/internal/config"
	"github.com/kozaktomas/face-clusterer/internal/database"
)

const personSequenceName = "person"

// Store implements database.Store and database.FaceSearcher on PostgreSQL
// with pgvector columns.
type Store struct {
	pool *Pool
}

// NewStore wraps an initialized pool.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Opener returns a database.Opener that initializes a pool and runs migrations.
func Opener(log *slog.Logger) database.Opener {
	return func(ctx context.Context, cfg *config.DatabaseConfig) (database.Store, error) {
		pool, err := Initialize(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return NewStore(pool), nil
	}
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) GetRepresentative(ctx context.Context, personID string) (*database.Representative, error) {
	var vec pgvector.Vector
	err := s.pool.QueryRow(ctx, "SELECT vector FROM representatives WHERE person_id = $1", personID).Scan(&vec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get representative: %w", err)
	}

	histories, err := s.loadHistories(ctx, []string{personID})
	if err != nil {
		return nil, err
	}
	return &database.Representative{PersonID: personID, Vector: vec.Slice(), History: histories[personID]}, nil
}

// loadHistories returns histories of the given identities keyed by person ID.
func (s *Store) loadHistories(ctx context.Context, personIDs []string) (map[string][][]float32, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT person_id, embedding FROM representative_history
		WHERE person_id = ANY($1)
		ORDER BY person_id, position
	`, pq.Array(personIDs))
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make(map[string][][]float32, len(personIDs))
	for rows.Next() {
		var personID string
		var vec pgvector.Vector
		if err := rows.Scan(&personID, &vec); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out[personID] = append(out[personID], vec.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

func (s *Store) ListRepresentatives(ctx context.Context) ([]database.Representative, error) {
	rows, err := s.pool.Query(ctx, "SELECT person_id, vector FROM representatives ORDER BY person_id")
	if err != nil {
		return nil, fmt.Errorf("list representatives: %w", err)
	}
	defer rows.Close()

	var reps []database.Representative
	var ids []string
	for rows.Next() {
		var personID string
		var vec pgvector.Vector
		if err := rows.Scan(&personID, &vec); err != nil {
			return nil, fmt.Errorf("scan representative: %w", err)
		}
		reps = append(reps, database.Representative{PersonID: personID, Vector: vec.Slice()})
		ids = append(ids, personID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate representatives: %w", err)
	}
	if len(reps) == 0 {
		return reps, nil
	}

	histories, err := s.loadHistories(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range reps {
		reps[i].History = histories[reps[i].PersonID]
	}
	return reps, nil
}

func (s *Store) CountRepresentatives(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM representatives").Scan(&n); err != nil {
		return 0, fmt.Errorf("count representatives: %w", err)
	}
	return n, nil
}

func saveRepresentativeTx(ctx context.Context, tx *sql.Tx, rep database.Representative) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO representatives (person_id, vector, updated_at)
		VALUES ($1, $2::vector, NOW())
		ON CONFLICT (person_id) DO UPDATE SET vector = EXCLUDED.vector, updated_at = NOW()
	`, rep.PersonID, pgvector.NewVector(rep.Vector)); err != nil {
		return fmt.Errorf("upsert representative: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM representative_history WHERE person_id = $1", rep.PersonID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	for i, h := range rep.History {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO representative_history (person_id, position, embedding) VALUES ($1, $2, $3::vector)",
			rep.PersonID, i, pgvector.NewVector(h),
		); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
	}
	return nil
}

func (s *Store) SaveRepresentative(ctx context.Context, rep database.Representative) error {
	if rep.PersonID == "" {
		return errors.New("representative without person ID")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return saveRepresentativeTx(ctx, tx, rep)
	})
}

func (s *Store) DeleteRepresentative(ctx context.Context, personID string) error {
	// History rows go with the cascade.
	if _, err := s.pool.Exec(ctx, "DELETE FROM representatives WHERE person_id = $1", personID); err != nil {
		return fmt.Errorf("delete representative: %w", err)
	}
	return nil
}

func (s *Store) ReplaceRepresentatives(ctx context.Context, reps []database.Representative) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM representatives"); err != nil {
			return fmt.Errorf("clear representatives: %w", err)
		}
		for _, r := range reps {
			if err := saveRepresentativeTx(ctx, tx, r); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) PersonSequence(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, "SELECT value FROM identity_sequence WHERE name = $1", personSequenceName).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return -1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get person sequence: %w", err)
	}
	return n, nil
}

func (s *Store) SetPersonSequence(ctx context.Context, n int) error {
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO identity_sequence (name, value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = GREATEST(identity_sequence.value, EXCLUDED.value)
	`, personSequenceName, n); err != nil {
		return fmt.Errorf("set person sequence: %w", err)
	}
	return nil
}

func (s *Store) AppendFace(ctx context.Context, rec database.FaceRecord) error {
	var seq sql.NullInt64
	if n, ok := database.ParseSeq(database.FacePrefix, rec.FaceID); ok {
		seq = sql.NullInt64{Int64: int64(n), Valid: true}
	}
	var override sql.NullString
	if rec.Override != "" {
		override = sql.NullString{String: rec.Override, Valid: true}
	}
	loc := rec.Location.Array()
	location := pq.Int64Array{int64(loc[0]), int64(loc[1]), int64(loc[2]), int64(loc[3])}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO faces (face_id, seq, file_name, location, embedding, person_id, override, too_small)
		VALUES ($1, $2, $3, $4, $5::vector, $6, $7, $8)
	`,
		rec.FaceID,
		seq,
		rec.FileName,
		location,
		pgvector.NewVector(rec.Embedding),
		rec.PersonID,
		override,
		rec.TooSmall,
	)
	if err != nil {
		return fmt.Errorf("insert face %s: %w", rec.FaceID, err)
	}
	return nil
}

const faceColumns = "face_id, file_name, location, embedding, person_id, override, too_small"

func scanFaceRow(scanner interface{ Scan(...any) error }, extraDest ...any) (database.FaceRecord, error) {
	var rec database.FaceRecord
	var loc pq.Int64Array
	var vec pgvector.Vector
	var override sql.NullString

	dest := append([]any{&rec.FaceID, &rec.FileName, &loc, &vec, &rec.PersonID, &override, &rec.TooSmall}, extraDest...)
	if err := scanner.Scan(dest...); err != nil {
		return rec, err
	}

	ints := make([]int, len(loc))
	for i, v := range loc {
		ints[i] = int(v)
	}
	l, err := database.LocationFromArray(ints)
	if err != nil {
		return rec, fmt.Errorf("face %s: %w", rec.FaceID, err)
	}
	rec.Location = l
	rec.Embedding = vec.Slice()
	rec.Override = override.String
	return rec, nil
}

func (s *Store) GetFace(ctx context.Context, faceID string) (*database.FaceRecord, error) {
	rec, err := scanFaceRow(s.pool.QueryRow(ctx, "SELECT "+faceColumns+" FROM faces WHERE face_id = $1", faceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get face: %w", err)
	}
	return &rec, nil
}

func (s *Store) ListFaces(ctx context.Context) ([]database.FaceRecord, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+faceColumns+" FROM faces ORDER BY seq NULLS LAST, face_id")
	if err != nil {
		return nil, fmt.Errorf("list faces: %w", err)
	}
	defer rows.Close()

	var records []database.FaceRecord
	for rows.Next() {
		rec, err := scanFaceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return records, nil
}

func (s *Store) CountFaces(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM faces").Scan(&n); err != nil {
		return 0, fmt.Errorf("count faces: %w", err)
	}
	return n, nil
}

func (s *Store) SetOverride(ctx context.Context, faceID, personID string) (bool, error) {
	res, err := s.pool.Exec(ctx, "UPDATE faces SET override = $1 WHERE face_id = $2", personID, faceID)
	if err != nil {
		return false, fmt.Errorf("set override: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set override: %w", err)
	}
	return n > 0, nil
}

func (s *Store) RelabelPerson(ctx context.Context, from, to string) (int, error) {
	res, err := s.pool.Exec(ctx, `UPDATE faces SET person_id = $1
		WHERE person_id = $2 AND (override IS NULL OR override = '' OR override IN ($1, $2))`, to, from)
	if err != nil {
		return 0, fmt.Errorf("relabel person: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("relabel person: %w", err)
	}
	return int(n), nil
}

// NearestFaces returns the k ledger faces closest to query by cosine distance.
// Faces whose embedding dimension differs from the query are skipped.
func (s *Store) NearestFaces(ctx context.Context, query []float32, k int) ([]database.FaceMatch, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT face_id, file_name, COALESCE(override, person_id), embedding <=> $1::vector AS distance
		FROM faces
		WHERE vector_dims(embedding) = $2
		ORDER BY distance
		LIMIT $3
	`, pgvector.NewVector(query), len(query), k)
	if err != nil {
		return nil, fmt.Errorf("nearest faces: %w", err)
	}
	defer rows.Close()

	var matches []database.FaceMatch
	for rows.Next() {
		var m database.FaceMatch
		var distance float64
		if err := rows.Scan(&m.FaceID, &m.FileName, &m.PersonID, &distance); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.Similarity = 1 - distance
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return matches, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

var (
	_ database.Store        = (*Store)(nil)
	_ database.FaceSearcher = (*Store)(nil)
)
