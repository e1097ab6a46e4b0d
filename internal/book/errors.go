package book

import "errors"

// Core errors. InvalidOrder and UnknownOrder are user-facing; the remaining
// three indicate a programmer error in the book or its caller and should be
// treated as fatal assertions in test/debug builds.
var (
	ErrInvalidOrder      = errors.New("invalid order")
	ErrUnknownOrder      = errors.New("unknown order")
	ErrInsufficientDepth = errors.New("insufficient depth")
	ErrBaseMismatch      = errors.New("execution report base id mismatch")
	ErrDoublePartial     = errors.New("execution report already has a partial fill")
)
