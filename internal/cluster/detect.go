package cluster

import (
	"context"
	"sync"

	"github.com/kozaktomas/face-clusterer/internal/faceengine"
)

// Image is one uploaded photo. Name is the stored file name recorded on
// the ledger.
type Image struct {
	Name string
	Data []byte
}

type detection struct {
	faces []faceengine.Face
	err   error
}

// detectAll runs face detection for every image with bounded concurrency.
// Detection touches no store, so it runs outside the engine lock.
func (e *Engine) detectAll(ctx context.Context, images []Image) []detection {
	results := make([]detection, len(images))
	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup

	for i := range images {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				results[idx] = detection{err: ctx.Err()}
				return
			}
			faces, err := e.detector.Detect(ctx, images[idx].Data, images[idx].Name)
			results[idx] = detection{faces: faces, err: err}
		}(i)
	}
	wg.Wait()
	return results
}
