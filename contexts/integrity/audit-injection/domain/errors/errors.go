package errors

import "errors"

var (
	ErrAssignmentNotFound = errors.New("audit assignment not found")
	ErrInvalidDecision    = errors.New("invalid audit decision")
)
