package domain

import "errors"

// Sentinel errors shared by the loader and engine collaborators.
var (
	// ErrEmptySeries is returned by collaborators that require a non-empty
	// price series (e.g. the loader when a data source has nothing for a
	// symbol). The engine itself tolerates empty input and returns a zeroed
	// result instead.
	ErrEmptySeries = errors.New("price series is empty")

	// ErrInsufficientData is returned where fewer than two bars make a
	// computation undefined (e.g. annualization over a zero-day range).
	ErrInsufficientData = errors.New("insufficient data: need at least two bars")
)
