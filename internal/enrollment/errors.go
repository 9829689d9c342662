package enrollment

import "errors"

var (
	// ErrNoUsableFaces is returned when no submitted image had exactly one face.
	ErrNoUsableFaces = errors.New("no usable faces to register")
	// ErrUserNotFound is returned for operations on a user with no enrollment data.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidUserID is returned for empty IDs or IDs unsafe as file names.
	ErrInvalidUserID = errors.New("invalid user id")
)
