package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kozaktomas/face-clusterer/internal/cluster"
	"github.com/kozaktomas/face-clusterer/internal/config"
	"github.com/kozaktomas/face-clusterer/internal/database"
	"github.com/kozaktomas/face-clusterer/internal/database/jsonfile"
	"github.com/kozaktomas/face-clusterer/internal/database/mariadb"
	"github.com/kozaktomas/face-clusterer/internal/database/memory"
	"github.com/kozaktomas/face-clusterer/internal/database/postgres"
	"github.com/kozaktomas/face-clusterer/internal/database/sqlite"
	"github.com/kozaktomas/face-clusterer/internal/enrollment"
	"github.com/kozaktomas/face-clusterer/internal/faceengine"
	"github.com/kozaktomas/face-clusterer/internal/imageutil"
	"github.com/kozaktomas/face-clusterer/internal/logger"
	"github.com/kozaktomas/face-clusterer/internal/storage"
)

// app bundles everything a command needs.
type app struct {
	cfg        *config.Config
	log        *slog.Logger
	store      database.Store
	engine     *cluster.Engine
	enrollment *enrollment.Service
	uploads    *storage.LocalStorage
}

// registerBackends registers every storage backend under its config name.
func registerBackends(log *slog.Logger) {
	database.RegisterBackend("memory", func(context.Context, *config.DatabaseConfig) (database.Store, error) {
		return memory.New(), nil
	})
	database.RegisterBackend("json", jsonfile.Opener)
	database.RegisterBackend("sqlite", sqlite.Opener)
	database.RegisterBackend("postgres", postgres.Opener(log))
	database.RegisterBackend("mariadb", mariadb.Opener)
}

// openApp loads the configuration and opens the stores. Callers must call
// close when done so the ledger and the similar-faces index are flushed.
func openApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	if debugLog {
		cfg.Log.Debug = true
	}
	if jsonLog {
		cfg.Log.JSON = true
	}

	log := logger.New(logger.WithDebug(cfg.Log.Debug), logger.WithJSON(cfg.Log.JSON))
	slog.SetDefault(log)

	if cfg.Database.Backend == "json" || cfg.Database.Backend == "sqlite" {
		if err := os.MkdirAll(filepath.Clean(cfg.Database.DataDir), 0750); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	registerBackends(log)
	store, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	log.Debug("storage backend opened", "backend", cfg.Database.Backend)

	uploads, err := storage.NewLocalStorage(cfg.Storage.UploadDir)
	if err != nil {
		store.Close()
		return nil, err
	}

	client := faceengine.NewClient(cfg.Embedding.URL)

	svc, err := enrollment.Open(cfg.Enrollment, client, cfg.Clustering.AttendanceThreshold, enrollment.WithLogger(log))
	if err != nil {
		store.Close()
		return nil, err
	}

	engine := cluster.NewEngine(store, client, cfg.Clustering,
		cluster.WithLogger(log),
		cluster.WithDimension(cfg.Embedding.Dim),
		cluster.WithConcurrency(cfg.Embedding.Concurrency),
		cluster.WithNames(svc),
		cluster.WithSeeder(svc),
		cluster.WithPhotos(uploads),
		cluster.WithIndexPath(cfg.Database.HNSWIndexPath),
	)

	return &app{
		cfg:        cfg,
		log:        log,
		store:      store,
		engine:     engine,
		enrollment: svc,
		uploads:    uploads,
	}, nil
}

func (a *app) close() error {
	return errors.Join(a.engine.Close(), a.store.Close())
}

// loadImages reads files from disk, stores a copy under the upload
// directory and returns them as engine images. Unreadable files are
// reported and skipped.
func (a *app) loadImages(paths []string) []cluster.Image {
	images := make([]cluster.Image, 0, len(paths))
	for _, p := range paths {
		img, err := a.loadImage(p)
		if err != nil {
			a.log.Warn("skipping file", "path", p, "error", err)
			continue
		}
		images = append(images, img)
	}
	return images
}

func (a *app) loadImage(path string) (cluster.Image, error) {
	img, err := readImage(path)
	if err != nil {
		return img, err
	}
	name, err := a.uploads.Save(img.Data, img.Name)
	if err != nil {
		return cluster.Image{}, err
	}
	img.Name = name
	return img, nil
}

// readImage reads and validates a photo without storing it.
func readImage(path string) (cluster.Image, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is a CLI argument
	if err != nil {
		return cluster.Image{}, fmt.Errorf("reading file: %w", err)
	}
	if _, err := imageutil.Validate(data); err != nil {
		return cluster.Image{}, err
	}
	return cluster.Image{Name: filepath.Base(path), Data: data}, nil
}
