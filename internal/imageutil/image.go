// Package imageutil validates uploads and renders face thumbnails.
package imageutil

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/face-clusterer/internal/database"
)

// ErrEmptyRegion is returned when a face box does not intersect the image.
var ErrEmptyRegion = errors.New("face region outside image")

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// IsImageFile reports whether name has an extension of a decodable format.
func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// Validate decodes only the image header and returns the format name.
func Validate(data []byte) (string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return "", fmt.Errorf("image has no pixels")
	}
	return format, nil
}

// FaceRect grows loc by padding (fraction of the box size on each side)
// and clips it to bounds.
func FaceRect(loc database.Location, padding float64, bounds image.Rectangle) image.Rectangle {
	padX := int(float64(loc.Width()) * padding)
	padY := int(float64(loc.Height()) * padding)
	r := image.Rect(loc.Left-padX, loc.Top-padY, loc.Right+padX, loc.Bottom+padY)
	return r.Intersect(bounds)
}

// CropFace cuts the padded face box out of data, fits it into a
// size x size square and encodes it as JPEG.
func CropFace(data []byte, loc database.Location, padding float64, size, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	rect := FaceRect(loc, padding, img.Bounds())
	if rect.Empty() {
		return nil, ErrEmptyRegion
	}
	face := imaging.Crop(img, rect)
	if face.Bounds().Dx() > size || face.Bounds().Dy() > size {
		face = imaging.Fit(face, size, size, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, face, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// ResizeImage fits an image within maxSize on its longer side, keeping the
// aspect ratio, and re-encodes it as JPEG.
func ResizeImage(data []byte, maxSize, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() > maxSize || b.Dy() > maxSize {
		img = imaging.Fit(img, maxSize, maxSize, imaging.CatmullRom)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}
