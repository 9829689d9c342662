package cluster

import "errors"

var (
	// ErrSameIdentity is returned when a merge names the same identity twice
	ErrSameIdentity = errors.New("cannot merge an identity into itself")
	// ErrFaceNotFound is returned when a face ID is not in the ledger
	ErrFaceNotFound = errors.New("face not found")
	// ErrAlbumNotFound is returned when no face resolves to the requested identity
	ErrAlbumNotFound = errors.New("album not found")
	// ErrAlreadyBootstrapped is returned by Bootstrap when representatives exist
	ErrAlreadyBootstrapped = errors.New("representatives already exist, bootstrap requires force")
	// ErrEmptyPersonID is returned when a person ID argument is blank
	ErrEmptyPersonID = errors.New("person ID must not be empty")
	// ErrNoiseTarget is returned when a merge would fold an identity into noise
	ErrNoiseTarget = errors.New("cannot merge an identity into noise")
)
