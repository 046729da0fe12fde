package reports

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotReady           = errors.New("analysis not completed")
	ErrMissingResult      = errors.New("analysis result missing")
	ErrTransitionRejected = errors.New("status transition rejected")
)
