package queries

import (
	"context"

	"taskproof/contexts/verification/submission-pipeline/domain/entities"
	"taskproof/contexts/verification/submission-pipeline/ports"
)

type SubmissionQueries struct {
	Submissions ports.SubmissionRepository
}

func (q SubmissionQueries) GetSubmission(ctx context.Context, submissionID string) (entities.Submission, error) {
	return q.Submissions.GetSubmission(ctx, submissionID)
}

// GetTrace returns the verification trace alone, in append order.
func (q SubmissionQueries) GetTrace(ctx context.Context, submissionID string) ([]entities.TraceStep, error) {
	submission, err := q.Submissions.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	return submission.Trace, nil
}
