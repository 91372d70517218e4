package oracle

import "errors"

var (
	// ErrPairDoesNotExist is returned when a non-base symbol has no stored datum.
	ErrPairDoesNotExist = errors.New("pair does not exist")
	// ErrInvalidValue is returned when a cross rate overflows or divides by zero.
	ErrInvalidValue = errors.New("invalid value")
	// ErrUnauthorized is returned when the caller lacks the admin or relayer role.
	ErrUnauthorized = errors.New("unauthorized")
)
