package errors

import "errors"

var (
	ErrInvalidVoteInput        = errors.New("invalid vote input")
	ErrSelfReviewForbidden     = errors.New("validators cannot review their own submission")
	ErrDuplicateVote           = errors.New("validator already voted on this submission")
	ErrSubmissionNotFound      = errors.New("submission not found")
	ErrSubmissionNotReviewable = errors.New("submission is not awaiting review")
)
