package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrNoMatchFound          = errors.New("no team match found")
	ErrAmbiguousMatch        = errors.New("ambiguous team match")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrAlreadyRunning        = errors.New("job is already running")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
