package errors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalid           = errors.New("invalid")
	ErrConflict          = errors.New("conflict")
	ErrAlreadyProcessing = errors.New("document already processing")
	ErrTooMany           = errors.New("too many requests")
	ErrInternal          = errors.New("internal")
	ErrQueueFull         = errors.New("ingestion queue full")
	ErrNoProvider        = errors.New("no ai provider available")
	ErrCancelled         = errors.New("task cancelled")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsAlreadyProcessing(err error) bool {
	return errors.Is(err, ErrAlreadyProcessing)
}

func IsNoProvider(err error) bool {
	return errors.Is(err, ErrNoProvider)
}
