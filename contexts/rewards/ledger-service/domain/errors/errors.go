package errors

import "errors"

var (
	ErrProfileNotFound = errors.New("validator profile not found")
	ErrInvalidAmount   = errors.New("reward amount must be positive")
)
