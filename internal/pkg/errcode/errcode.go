package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrNotFound
	ErrInvalid
	ErrConflict
	ErrAlreadyProcessing
	ErrTooMany
	ErrInternal
	ErrQueueFull
	ErrNoProvider
)
