package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-clusterer/internal/cluster"
	"github.com/kozaktomas/face-clusterer/internal/constants"
	"github.com/kozaktomas/face-clusterer/internal/imageutil"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [FILES...]",
	Short: "Classify photos into person albums",
	Long: `Detect faces in photos and assign each one to a known identity or a new one.
Each photo is its own unit of work, so an interrupted run keeps everything
classified so far.

With --watch DIR, new image files created in DIR are classified as they land.`,
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().String("watch", "", "Watch a directory and classify new photos")
	classifyCmd.Flags().Bool("json", false, "Output as JSON")
}

func runClassify(cmd *cobra.Command, args []string) error {
	watchDir := mustGetString(cmd, "watch")
	jsonOutput := mustGetBool(cmd, "json")

	if watchDir == "" && len(args) == 0 {
		return errors.New("provide photos to classify or --watch DIR")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if len(args) > 0 {
		if err := classifyFiles(ctx, a, args, jsonOutput); err != nil {
			return err
		}
	}
	if watchDir != "" {
		return watchAndClassify(ctx, a, watchDir, jsonOutput)
	}
	return nil
}

func classifyFiles(ctx context.Context, a *app, paths []string, jsonOutput bool) error {
	var results []cluster.FileResult
	bar := newProgressBar(len(paths), "Classifying")
	for _, p := range paths {
		if ctx.Err() != nil {
			break
		}
		img, err := a.loadImage(p)
		if err != nil {
			results = append(results, cluster.FileResult{FileName: filepath.Base(p), Faces: []cluster.FaceResult{}, Error: err.Error()})
			_ = bar.Add(1)
			continue
		}
		res, err := a.engine.Classify(ctx, []cluster.Image{img})
		if err != nil {
			return fmt.Errorf("classifying %s: %w", p, err)
		}
		results = append(results, res...)
		_ = bar.Add(1)
	}
	fmt.Println()

	if jsonOutput {
		return printJSON(results)
	}
	printFileResults(results)
	return nil
}

// watchAndClassify classifies image files created in dir until ctx is done.
// A file is picked up once no write event arrived for the debounce period,
// so partially copied photos are not read.
func watchAndClassify(ctx context.Context, a *app, dir string, jsonOutput bool) error {
	if abs, err := filepath.Abs(dir); err == nil {
		if up, err := filepath.Abs(a.uploads.Dir()); err == nil && abs == up {
			return errors.New("cannot watch the upload directory itself")
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	a.log.Info("watching for new photos", "dir", dir)

	debounce := time.Duration(constants.WatchDebounceMillis) * time.Millisecond
	pending := newPendingFiles(debounce)
	ticker := time.NewTicker(debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !imageutil.IsImageFile(event.Name) {
				continue
			}
			pending.touch(event.Name, time.Now())
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		case now := <-ticker.C:
			for _, path := range pending.ready(now) {
				classifyWatched(ctx, a, path, jsonOutput)
			}
		}
	}
}

func classifyWatched(ctx context.Context, a *app, path string, jsonOutput bool) {
	img, err := a.loadImage(path)
	if err != nil {
		a.log.Warn("skipping file", "path", path, "error", err)
		return
	}
	res, err := a.engine.Classify(ctx, []cluster.Image{img})
	if err != nil {
		a.log.Error("classification failed", "path", path, "error", err)
		return
	}
	if jsonOutput {
		_ = printJSON(res)
		return
	}
	printFileResults(res)
}
