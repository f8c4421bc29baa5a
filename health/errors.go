package health

import "errors"

var (
	// ErrCheckFailed indicates a health check failed.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout indicates a health check timed out.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckPanic indicates a health check panicked.
	ErrCheckPanic = errors.New("health: check panicked")

	// ErrCheckerNotFound indicates a checker was not found.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrNilAggregator indicates CheckAll was called on a nil aggregator.
	ErrNilAggregator = errors.New("health: nil aggregator")

	// ErrInvalidStatus indicates an unknown status name.
	ErrInvalidStatus = errors.New("health: invalid status")

	// ErrNoCheck indicates a dependency was registered without a check.
	ErrNoCheck = errors.New("health: no check configured")
)
