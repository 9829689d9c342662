// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Thumbnail constants
const (
	// ThumbnailSize is the edge length of album thumbnails in pixels
	ThumbnailSize = 160

	// ThumbnailQuality is the JPEG quality of generated thumbnails
	ThumbnailQuality = 85

	// ThumbnailPadding widens face crops by this fraction of the box size
	ThumbnailPadding = 0.25
)

// AllPhotosAlbumID is the synthetic album listing every uploaded image.
const AllPhotosAlbumID = "all_photos"

// Watch constants
const (
	// WatchDebounceMillis delays classification after the last write event of a file
	WatchDebounceMillis = 500
)
