package queries

import (
	"context"
	"fmt"
	"strings"

	"taskproof/contexts/verification/jury-consensus/domain/entities"
	dErrors "taskproof/contexts/verification/jury-consensus/domain/errors"
	"taskproof/contexts/verification/jury-consensus/ports"
)

// QueueUseCase assembles a validator's review queue: submissions awaiting
// review, minus the validator's own and those already voted on, with audit
// items spliced in by the integrity context.
type QueueUseCase struct {
	Reviews ports.ReviewRepository
	Votes   ports.VoteRepository
	Audits  ports.AuditInjector
	Limit   int
}

func (uc QueueUseCase) BuildQueue(ctx context.Context, validatorID string) ([]entities.QueueItem, error) {
	validatorID = strings.TrimSpace(validatorID)
	if validatorID == "" {
		return nil, dErrors.ErrInvalidVoteInput
	}

	limit := uc.Limit
	if limit <= 0 {
		limit = 20
	}

	voted, err := uc.Votes.ListVotedSubmissions(ctx, validatorID)
	if err != nil {
		return nil, fmt.Errorf("list voted submissions: %w", err)
	}
	alreadyVoted := make(map[string]bool, len(voted))
	for _, submissionID := range voted {
		alreadyVoted[submissionID] = true
	}

	awaiting, err := uc.Reviews.ListAwaitingReview(ctx, limit*2)
	if err != nil {
		return nil, fmt.Errorf("list submissions awaiting review: %w", err)
	}

	queue := make([]entities.QueueItem, 0, limit)
	for _, submission := range awaiting {
		if submission.OwnerID == validatorID || alreadyVoted[submission.SubmissionID] {
			continue
		}
		queue = append(queue, entities.QueueItem{
			ItemID:      submission.SubmissionID,
			CampaignID:  submission.CampaignID,
			QuestType:   submission.QuestType,
			PhotoURLs:   submission.PhotoURLs,
			SubmittedAt: submission.CreatedAt,
		})
		if len(queue) == limit {
			break
		}
	}

	return uc.Audits.MaybeInject(ctx, validatorID, queue)
}
