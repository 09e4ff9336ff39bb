package workers

import (
	"context"
	"fmt"
	"log/slog"

	"taskproof/contexts/verification/jury-consensus/application"
	"taskproof/contexts/verification/jury-consensus/ports"
	"taskproof/internal/shared/events"
)

const topicReviewRequired = "submission.review_required"

// ReviewReannouncer periodically re-publishes review_required for
// submissions still awaiting votes, so queues drained by validator churn
// fill up again.
type ReviewReannouncer struct {
	Reviews   ports.ReviewRepository
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	BatchSize int
	Logger    *slog.Logger
}

func (r ReviewReannouncer) RunOnce(ctx context.Context) (int, error) {
	logger := application.Logger(r.Logger)

	limit := r.BatchSize
	if limit <= 0 {
		limit = 50
	}
	awaiting, err := r.Reviews.ListAwaitingReview(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list submissions awaiting review: %w", err)
	}

	announced := 0
	for _, submission := range awaiting {
		event, err := events.New(
			r.IDGen.NewID(),
			topicReviewRequired,
			"jury-consensus",
			"data.submission_id",
			submission.SubmissionID,
			r.Clock.Now().UTC(),
			map[string]any{
				"submission_id": submission.SubmissionID,
				"campaign_id":   submission.CampaignID,
				"reannounced":   true,
			},
		)
		if err != nil {
			return announced, fmt.Errorf("build reannounce event: %w", err)
		}
		if err := r.Outbox.AppendOutbox(ctx, event); err != nil {
			return announced, fmt.Errorf("append reannounce event: %w", err)
		}
		announced++
	}

	if announced > 0 {
		logger.Info("pending reviews reannounced",
			"event", "review_reannounced",
			"module", "verification/jury-consensus",
			"layer", "worker",
			"count", announced,
		)
	}
	return announced, nil
}
