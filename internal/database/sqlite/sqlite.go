// Package sqlite is an embedded transactional backend: one database file,
// every mutation in its own transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kozaktomas/face-clusterer/internal/config"
	"github.com/kozaktomas/face-clusterer/internal/database"
)

const schema = `
CREATE TABLE IF NOT EXISTS faces (
	face_id    TEXT PRIMARY KEY,
	file_name  TEXT NOT NULL,
	loc_top    INTEGER NOT NULL,
	loc_right  INTEGER NOT NULL,
	loc_bottom INTEGER NOT NULL,
	loc_left   INTEGER NOT NULL,
	embedding  BLOB NOT NULL,
	person_id  TEXT NOT NULL,
	override   TEXT,
	too_small  INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_faces_person_id ON faces(person_id);

CREATE TABLE IF NOT EXISTS representatives (
	person_id  TEXT PRIMARY KEY,
	vector     BLOB NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS representative_history (
	person_id TEXT NOT NULL REFERENCES representatives(person_id) ON DELETE CASCADE,
	position  INTEGER NOT NULL,
	embedding BLOB NOT NULL,
	PRIMARY KEY (person_id, position)
);

CREATE TABLE IF NOT EXISTS identity_sequence (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
`

const personSequenceName = "person"

// Store is a database.Store on top of a SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; one connection keeps writes serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Opener adapts Open to database.Opener.
func Opener(ctx context.Context, cfg *config.DatabaseConfig) (database.Store, error) {
	return Open(ctx, cfg.SQLitePath())
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *Store) loadHistory(ctx context.Context, personID string) ([][]float32, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT embedding FROM representative_history WHERE person_id = ? ORDER BY position`, personID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var history [][]float32
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		v, err := decodeVector(blob)
		if err != nil {
			return nil, err
		}
		history = append(history, v)
	}
	return history, rows.Err()
}

func (s *Store) GetRepresentative(ctx context.Context, personID string) (*database.Representative, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT vector FROM representatives WHERE person_id = ?`, personID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get representative: %w", err)
	}
	vec, err := decodeVector(blob)
	if err != nil {
		return nil, err
	}
	history, err := s.loadHistory(ctx, personID)
	if err != nil {
		return nil, err
	}
	return &database.Representative{PersonID: personID, Vector: vec, History: history}, nil
}

func (s *Store) ListRepresentatives(ctx context.Context) ([]database.Representative, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT person_id, vector FROM representatives ORDER BY person_id`)
	if err != nil {
		return nil, fmt.Errorf("list representatives: %w", err)
	}
	var reps []database.Representative
	for rows.Next() {
		var r database.Representative
		var blob []byte
		if err := rows.Scan(&r.PersonID, &blob); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan representative: %w", err)
		}
		if r.Vector, err = decodeVector(blob); err != nil {
			rows.Close()
			return nil, err
		}
		reps = append(reps, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate representatives: %w", err)
	}
	rows.Close()

	// Histories are loaded after the cursor is closed: the pool has one connection.
	for i := range reps {
		if reps[i].History, err = s.loadHistory(ctx, reps[i].PersonID); err != nil {
			return nil, err
		}
	}
	return reps, nil
}

func (s *Store) CountRepresentatives(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM representatives`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count representatives: %w", err)
	}
	return n, nil
}

func saveRepresentativeTx(ctx context.Context, tx *sql.Tx, rep database.Representative) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO representatives (person_id, vector, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(person_id) DO UPDATE SET vector = excluded.vector, updated_at = CURRENT_TIMESTAMP`,
		rep.PersonID, encodeVector(rep.Vector)); err != nil {
		return fmt.Errorf("upsert representative: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM representative_history WHERE person_id = ?`, rep.PersonID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	for i, h := range rep.History {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO representative_history (person_id, position, embedding) VALUES (?, ?, ?)`,
			rep.PersonID, i, encodeVector(h)); err != nil {
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
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM representative_history WHERE person_id = ?`, personID); err != nil {
			return fmt.Errorf("delete history: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM representatives WHERE person_id = ?`, personID); err != nil {
			return fmt.Errorf("delete representative: %w", err)
		}
		return nil
	})
}

func (s *Store) ReplaceRepresentatives(ctx context.Context, reps []database.Representative) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM representative_history`); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM representatives`); err != nil {
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
	err := s.db.QueryRowContext(ctx, `SELECT value FROM identity_sequence WHERE name = ?`, personSequenceName).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return -1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get person sequence: %w", err)
	}
	return n, nil
}

func (s *Store) SetPersonSequence(ctx context.Context, n int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO identity_sequence (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = MAX(value, excluded.value)`, personSequenceName, n)
	if err != nil {
		return fmt.Errorf("set person sequence: %w", err)
	}
	return nil
}

func (s *Store) AppendFace(ctx context.Context, rec database.FaceRecord) error {
	var override sql.NullString
	if rec.Override != "" {
		override = sql.NullString{String: rec.Override, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO faces (face_id, file_name, loc_top, loc_right, loc_bottom, loc_left, embedding, person_id, override, too_small)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.FaceID, rec.FileName,
		rec.Location.Top, rec.Location.Right, rec.Location.Bottom, rec.Location.Left,
		encodeVector(rec.Embedding), rec.PersonID, override, rec.TooSmall)
	if err != nil {
		return fmt.Errorf("insert face %s: %w", rec.FaceID, err)
	}
	return nil
}

const faceColumns = `face_id, file_name, loc_top, loc_right, loc_bottom, loc_left, embedding, person_id, override, too_small`

type scanner interface {
	Scan(dest ...any) error
}

func scanFace(row scanner) (database.FaceRecord, error) {
	var r database.FaceRecord
	var blob []byte
	var override sql.NullString
	if err := row.Scan(&r.FaceID, &r.FileName,
		&r.Location.Top, &r.Location.Right, &r.Location.Bottom, &r.Location.Left,
		&blob, &r.PersonID, &override, &r.TooSmall); err != nil {
		return r, err
	}
	emb, err := decodeVector(blob)
	if err != nil {
		return r, err
	}
	r.Embedding = emb
	r.Override = override.String
	return r, nil
}

func (s *Store) GetFace(ctx context.Context, faceID string) (*database.FaceRecord, error) {
	r, err := scanFace(s.db.QueryRowContext(ctx, `SELECT `+faceColumns+` FROM faces WHERE face_id = ?`, faceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get face: %w", err)
	}
	return &r, nil
}

func (s *Store) ListFaces(ctx context.Context) ([]database.FaceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+faceColumns+` FROM faces`)
	if err != nil {
		return nil, fmt.Errorf("list faces: %w", err)
	}
	defer rows.Close()

	var records []database.FaceRecord
	for rows.Next() {
		r, err := scanFace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	database.SortFaceRecords(records)
	return records, nil
}

func (s *Store) CountFaces(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM faces`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count faces: %w", err)
	}
	return n, nil
}

func (s *Store) SetOverride(ctx context.Context, faceID, personID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE faces SET override = ? WHERE face_id = ?`, personID, faceID)
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
	res, err := s.db.ExecContext(ctx, `UPDATE faces SET person_id = ?
		WHERE person_id = ? AND (override IS NULL OR override = '' OR override IN (?, ?))`, to, from, from, to)
	if err != nil {
		return 0, fmt.Errorf("relabel person: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("relabel person: %w", err)
	}
	return int(n), nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

var _ database.Store = (*Store)(nil)
