package constants

// Handler constants
const (
	// DefaultSimilarLimit is the default number of similar faces returned
	DefaultSimilarLimit = 10

	// MaxSimilarLimit caps the limit query parameter
	MaxSimilarLimit = 100
)

// File upload constants
const (
	// MaxUploadSize is the maximum accepted multipart request body (100 MB)
	MaxUploadSize = 100 << 20

	// MaxMultipartMemory is the part of a multipart body kept in memory
	MaxMultipartMemory = 32 << 20
)
