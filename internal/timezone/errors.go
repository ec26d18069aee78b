package timezone

import "errors"

// Client-input errors. None of them is fatal to the process.
var (
	ErrUnknownZone      = errors.New("unknown timezone")
	ErrInvalidDatetime  = errors.New("invalid datetime")
	ErrInvalidTimestamp = errors.New("timestamp out of range")
	ErrInvalidRequest   = errors.New("invalid conversion request")

	ErrInvalidCoordinates = errors.New("invalid coordinates")
)
