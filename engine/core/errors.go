package core

import (
	"errors"
)

var (
	// ErrShutdown is returned by the run loop when a shutdown was requested.
	ErrShutdown = errors.New("engine is shutting down")
	// ErrUnknown covers failures with no better classification.
	ErrUnknown = errors.New("unknown")
)
