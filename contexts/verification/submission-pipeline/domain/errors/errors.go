package errors

import "errors"

var (
	ErrInvalidSubmissionInput = errors.New("invalid submission input")
	ErrMissingGPS             = errors.New("required photo has no gps coordinates")
	ErrSubmissionNotFound     = errors.New("submission not found")
	ErrCampaignNotFound       = errors.New("campaign not found")
	ErrCampaignNotActive      = errors.New("campaign is not active")
	ErrCheckpointNotFound     = errors.New("campaign has no checkpoints")
	ErrAlreadyFinalized       = errors.New("submission already reached a terminal status")
	ErrVerificationConflict   = errors.New("submission verification conflict")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrIdempotencyConflict    = errors.New("idempotency key conflict")
)
