package commands

import (
	"testing"

	"taskproof/contexts/verification/submission-pipeline/domain/entities"
)

func TestRouteByConfidenceBoundaries(t *testing.T) {
	cases := []struct {
		confidence int
		want       entities.SubmissionStatus
	}{
		{confidence: 100, want: entities.SubmissionStatusApproved},
		{confidence: 80, want: entities.SubmissionStatusApproved},
		{confidence: 79, want: entities.SubmissionStatusNeedsReview},
		{confidence: 40, want: entities.SubmissionStatusNeedsReview},
		{confidence: 39, want: entities.SubmissionStatusRejected},
		{confidence: 0, want: entities.SubmissionStatusRejected},
	}
	for _, tc := range cases {
		if got := routeByConfidence(tc.confidence, 80); got != tc.want {
			t.Fatalf("confidence %d: expected %s, got %s", tc.confidence, tc.want, got)
		}
	}
}
