package search

import "errors"

var (
	// ErrReconstructionNotFound means every candidate was tried and none passed all records.
	ErrReconstructionNotFound = errors.New("search: no transformation sequence satisfies every verification record")
	ErrInvalidInput           = errors.New("search: invalid input")
)
