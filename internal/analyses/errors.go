package analyses

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTransitionRejected = errors.New("status transition rejected")
	ErrNotReady           = errors.New("analysis not completed")
)
