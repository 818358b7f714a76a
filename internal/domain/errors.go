package domain

import "errors"

// Per-source errors. A source failing with one of these is skipped.
var (
	ErrTimeout = errors.New("feed fetch timed out")
	ErrFetch   = errors.New("feed fetch failed")
	ErrParse   = errors.New("feed parse failed")
)

// Per-entry errors. The entry is kept with a fallback value.
var (
	ErrInvalidURL     = errors.New("invalid url")
	ErrHTMLProcessing = errors.New("html processing failed")
)

// Request-level errors, surfaced to the caller.
var (
	ErrUnknownGroup    = errors.New("unknown group")
	ErrUnknownCategory = errors.New("unknown category")
)
