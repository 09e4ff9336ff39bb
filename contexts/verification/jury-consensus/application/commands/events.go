package commands

import (
	"context"
	"fmt"

	"taskproof/internal/shared/events"
)

const (
	TopicVoteRecorded        = "vote.recorded"
	TopicConsensusResolved   = "consensus.resolved"
	TopicConsensusTied       = "consensus.tied"
	TopicSubmissionApproved  = "submission.approved"
	TopicSubmissionRejected  = "submission.rejected"
	sourceService            = "jury-consensus"
	partitionBySubmissionKey = "data.submission_id"
)

func (uc VoteUseCase) appendEvent(ctx context.Context, topic string, submissionID string, data map[string]any) error {
	event, err := events.New(
		uc.IDGen.NewID(),
		topic,
		sourceService,
		partitionBySubmissionKey,
		submissionID,
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
