// Package mariadb stores both documents in a MariaDB/MySQL database.
// Vectors are kept as JSON arrays in MEDIUMBLOB columns.
package mariadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/face-clusterer/internal/config"
	"github.com/kozaktomas/face-clusterer/internal/database"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS faces (
		face_id    VARCHAR(64) PRIMARY KEY,
		file_name  VARCHAR(255) NOT NULL,
		loc_top    INT NOT NULL,
		loc_right  INT NOT NULL,
		loc_bottom INT NOT NULL,
		loc_left   INT NOT NULL,
		embedding  MEDIUMBLOB NOT NULL,
		person_id  VARCHAR(128) NOT NULL,
		override   VARCHAR(128) NULL,
		too_small  BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_faces_person_id (person_id)
	)`,
	`CREATE TABLE IF NOT EXISTS representatives (
		person_id  VARCHAR(128) PRIMARY KEY,
		vector     MEDIUMBLOB NOT NULL,
		history    MEDIUMBLOB NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS identity_sequence (
		name  VARCHAR(32) PRIMARY KEY,
		value INT NOT NULL
	)`,
}

const personSequenceName = "person"

// Store is a database.Store backed by a MariaDB connection pool.
type Store struct {
	db *sql.DB
}

// Open connects to dsn, verifies the connection and creates the schema.
func Open(ctx context.Context, dsn string, maxOpen, maxIdle int) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Opener adapts Open to database.Opener.
func Opener(ctx context.Context, cfg *config.DatabaseConfig) (database.Store, error) {
	return Open(ctx, cfg.URL, cfg.MaxOpenConns, cfg.MaxIdleConns)
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

func scanRepresentative(row interface{ Scan(...any) error }) (database.Representative, error) {
	var r database.Representative
	var vec, hist []byte
	if err := row.Scan(&r.PersonID, &vec, &hist); err != nil {
		return r, err
	}
	if err := json.Unmarshal(vec, &r.Vector); err != nil {
		return r, fmt.Errorf("decode vector of %s: %w", r.PersonID, err)
	}
	if err := json.Unmarshal(hist, &r.History); err != nil {
		return r, fmt.Errorf("decode history of %s: %w", r.PersonID, err)
	}
	return r, nil
}

func (s *Store) GetRepresentative(ctx context.Context, personID string) (*database.Representative, error) {
	r, err := scanRepresentative(s.db.QueryRowContext(ctx,
		`SELECT person_id, vector, history FROM representatives WHERE person_id = ?`, personID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get representative: %w", err)
	}
	return &r, nil
}

func (s *Store) ListRepresentatives(ctx context.Context) ([]database.Representative, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT person_id, vector, history FROM representatives ORDER BY person_id`)
	if err != nil {
		return nil, fmt.Errorf("list representatives: %w", err)
	}
	defer rows.Close()

	var reps []database.Representative
	for rows.Next() {
		r, err := scanRepresentative(rows)
		if err != nil {
			return nil, fmt.Errorf("scan representative: %w", err)
		}
		reps = append(reps, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate representatives: %w", err)
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

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveRepresentative(ctx context.Context, ex execer, rep database.Representative) error {
	vec, err := json.Marshal(rep.Vector)
	if err != nil {
		return fmt.Errorf("marshal vector: %w", err)
	}
	history := rep.History
	if history == nil {
		history = [][]float32{}
	}
	hist, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if _, err := ex.ExecContext(ctx, `
		INSERT INTO representatives (person_id, vector, history) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE vector = VALUES(vector), history = VALUES(history)`,
		rep.PersonID, vec, hist); err != nil {
		return fmt.Errorf("upsert representative: %w", err)
	}
	return nil
}

func (s *Store) SaveRepresentative(ctx context.Context, rep database.Representative) error {
	if rep.PersonID == "" {
		return errors.New("representative without person ID")
	}
	return saveRepresentative(ctx, s.db, rep)
}

func (s *Store) DeleteRepresentative(ctx context.Context, personID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM representatives WHERE person_id = ?`, personID); err != nil {
		return fmt.Errorf("delete representative: %w", err)
	}
	return nil
}

func (s *Store) ReplaceRepresentatives(ctx context.Context, reps []database.Representative) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM representatives`); err != nil {
			return fmt.Errorf("clear representatives: %w", err)
		}
		for _, r := range reps {
			if err := saveRepresentative(ctx, tx, r); err != nil {
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
		ON DUPLICATE KEY UPDATE value = GREATEST(value, VALUES(value))`, personSequenceName, n)
	if err != nil {
		return fmt.Errorf("set person sequence: %w", err)
	}
	return nil
}

func (s *Store) AppendFace(ctx context.Context, rec database.FaceRecord) error {
	emb, err := json.Marshal(rec.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	var override sql.NullString
	if rec.Override != "" {
		override = sql.NullString{String: rec.Override, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO faces (face_id, file_name, loc_top, loc_right, loc_bottom, loc_left, embedding, person_id, override, too_small)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.FaceID, rec.FileName,
		rec.Location.Top, rec.Location.Right, rec.Location.Bottom, rec.Location.Left,
		emb, rec.PersonID, override, rec.TooSmall)
	if err != nil {
		return fmt.Errorf("insert face %s: %w", rec.FaceID, err)
	}
	return nil
}

const faceColumns = `face_id, file_name, loc_top, loc_right, loc_bottom, loc_left, embedding, person_id, override, too_small`

func scanFace(row interface{ Scan(...any) error }) (database.FaceRecord, error) {
	var r database.FaceRecord
	var emb []byte
	var override sql.NullString
	if err := row.Scan(&r.FaceID, &r.FileName,
		&r.Location.Top, &r.Location.Right, &r.Location.Bottom, &r.Location.Left,
		&emb, &r.PersonID, &override, &r.TooSmall); err != nil {
		return r, err
	}
	if err := json.Unmarshal(emb, &r.Embedding); err != nil {
		return r, fmt.Errorf("decode embedding of %s: %w", r.FaceID, err)
	}
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
	// RowsAffected is 0 when the value is unchanged, so existence is checked first.
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM faces WHERE face_id = ?`, faceID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup face: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE faces SET override = ? WHERE face_id = ?`, personID, faceID); err != nil {
		return false, fmt.Errorf("set override: %w", err)
	}
	return true, nil
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

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

var _ database.Store = (*Store)(nil)
