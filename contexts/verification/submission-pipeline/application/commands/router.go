package commands

import "taskproof/contexts/verification/submission-pipeline/domain/entities"

// routeByConfidence maps a confidence score to a verdict. Scores at or
// above the threshold approve, scores below half the threshold reject, and
// the band in between goes to the jury.
func routeByConfidence(confidence int, threshold int) entities.SubmissionStatus {
	if confidence >= threshold {
		return entities.SubmissionStatusApproved
	}
	if confidence < threshold/2 {
		return entities.SubmissionStatusRejected
	}
	return entities.SubmissionStatusNeedsReview
}
