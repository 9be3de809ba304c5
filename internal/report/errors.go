package report

import "errors"

var (
	// ErrNotFound indicates the test directory or the requested file does not exist.
	ErrNotFound = errors.New("report: not found")

	// ErrMalformed indicates the screenshot manifest does not reference exactly
	// two distinct variants.
	ErrMalformed = errors.New("report: malformed manifest")
)
