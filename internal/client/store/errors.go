package store

import "errors"

var (
	// ErrStorageUnavailable means the local database could not be opened.
	// It is sticky: a Store that failed to open keeps returning it.
	ErrStorageUnavailable = errors.New("local storage unavailable")

	ErrStorageRead  = errors.New("local storage read failed")
	ErrStorageWrite = errors.New("local storage write failed")
)
