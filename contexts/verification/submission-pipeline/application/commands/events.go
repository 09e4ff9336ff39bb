package commands

import (
	"context"
	"fmt"

	"taskproof/contexts/verification/submission-pipeline/domain/entities"
	"taskproof/internal/shared/events"
)

const (
	TopicSubmissionCreated        = "submission.created"
	TopicSubmissionApproved       = "submission.approved"
	TopicSubmissionRejected       = "submission.rejected"
	TopicSubmissionReviewRequired = "submission.review_required"
)

func (uc SubmissionUseCase) appendSubmissionCreated(ctx context.Context, submission entities.Submission) error {
	event, err := events.New(
		uc.IDGenerator.NewID(),
		TopicSubmissionCreated,
		"submission-pipeline",
		"data.submission_id",
		submission.SubmissionID,
		uc.Clock.Now().UTC(),
		map[string]any{
			"submission_id": submission.SubmissionID,
			"campaign_id":   submission.CampaignID,
			"owner_id":      submission.OwnerID,
			"quest_type":    string(submission.QuestType),
		},
	)
	if err != nil {
		return fmt.Errorf("build submission.created event: %w", err)
	}
	if err := uc.Outbox.AppendOutbox(ctx, event); err != nil {
		return fmt.Errorf("append submission.created to outbox: %w", err)
	}
	return nil
}

func (uc SubmissionUseCase) appendVerdictEvent(ctx context.Context, submission entities.Submission) error {
	var topic string
	switch submission.Status {
	case entities.SubmissionStatusApproved:
		topic = TopicSubmissionApproved
	case entities.SubmissionStatusRejected:
		topic = TopicSubmissionRejected
	case entities.SubmissionStatusNeedsReview:
		topic = TopicSubmissionReviewRequired
	default:
		return nil
	}

	data := map[string]any{
		"submission_id": submission.SubmissionID,
		"campaign_id":   submission.CampaignID,
		"owner_id":      submission.OwnerID,
		"status":        string(submission.Status),
	}
	if submission.Confidence != nil {
		data["confidence"] = *submission.Confidence
	}

	event, err := events.New(
		uc.IDGenerator.NewID(),
		topic,
		"submission-pipeline",
		"data.submission_id",
		submission.SubmissionID,
		uc.Clock.Now().UTC(),
		data,
	)
	if err != nil {
		return fmt.Errorf("build %s event: %w", topic, err)
	}
	if err := uc.Outbox.AppendOutbox(ctx, event); err != nil {
		return fmt.Errorf("append %s to outbox: %w", topic, err)
	}
	return nil
}
