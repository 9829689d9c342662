// Package jsonfile persists the representative and face-ledger documents as
// plain JSON files in a data directory. The working set lives in memory;
// Commit writes both documents atomically at the end of a unit of work.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kozaktomas/face-clusterer/internal/config"
	"github.com/kozaktomas/face-clusterer/internal/database"
	"github.com/kozaktomas/face-clusterer/internal/database/memory"
	"github.com/kozaktomas/face-clusterer/internal/storage"
)

// Document file names inside the data directory.
const (
	RepresentativesFile = "representatives.json"
	FacesFile           = "face_data.json"
	MetaFile            = "store_meta.json"
)

// Store is a memory.Store that loads from and commits to JSON documents.
type Store struct {
	*memory.Store
	dir string
	log *slog.Logger
}

// Open loads the documents from dir, creating the directory if needed.
// Missing documents start empty.
func Open(ctx context.Context, dir string, log *slog.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("data directory is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	s := &Store{Store: memory.New(), dir: dir, log: log}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Opener adapts Open to database.Opener.
func Opener(ctx context.Context, cfg *config.DatabaseConfig) (database.Store, error) {
	return Open(ctx, cfg.DataDir, slog.Default())
}

func (s *Store) readFile(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name)) //nolint:gosec // path is from trusted config
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

func (s *Store) load(ctx context.Context) error {
	data, err := s.readFile(RepresentativesFile)
	if err != nil {
		return err
	}
	if len(data) > 0 {
		reps, err := decodeRepresentatives(data, s.log)
		if err != nil {
			return fmt.Errorf("loading %s: %w", RepresentativesFile, err)
		}
		if err := s.ReplaceRepresentatives(ctx, reps); err != nil {
			return err
		}
	}

	data, err = s.readFile(FacesFile)
	if err != nil {
		return err
	}
	if len(data) > 0 {
		records, err := decodeFaces(data)
		if err != nil {
			return fmt.Errorf("loading %s: %w", FacesFile, err)
		}
		for _, r := range records {
			if err := s.AppendFace(ctx, r); err != nil {
				return fmt.Errorf("loading %s: %w", FacesFile, err)
			}
		}
	}

	data, err = s.readFile(MetaFile)
	if err != nil {
		return err
	}
	if len(data) > 0 {
		var m meta
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("loading %s: %w", MetaFile, err)
		}
		if err := s.SetPersonSequence(ctx, m.PersonSequence); err != nil {
			return err
		}
	}
	return nil
}

// Commit writes the face ledger first, then the representatives, then the
// metadata. Each file is replaced atomically; the set is not.
func (s *Store) Commit(ctx context.Context) error {
	records, err := s.ListFaces(ctx)
	if err != nil {
		return err
	}
	data, err := encodeFaces(records)
	if err != nil {
		return err
	}
	if err := s.writeAtomic(FacesFile, data); err != nil {
		return err
	}

	reps, err := s.ListRepresentatives(ctx)
	if err != nil {
		return err
	}
	data, err = encodeRepresentatives(reps)
	if err != nil {
		return err
	}
	if err := s.writeAtomic(RepresentativesFile, data); err != nil {
		return err
	}

	seq, err := s.PersonSequence(ctx)
	if err != nil {
		return err
	}
	data, err = json.Marshal(meta{PersonSequence: seq, Version: metaVersion})
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	return s.writeAtomic(MetaFile, data)
}

func (s *Store) writeAtomic(name string, data []byte) error {
	return storage.WriteFileAtomic(s.dir, name, data)
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

var (
	_ database.Store     = (*Store)(nil)
	_ database.Committer = (*Store)(nil)
)
