package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"taskproof/contexts/rewards/ledger-service/application"
	"taskproof/contexts/rewards/ledger-service/application/commands"
	"taskproof/contexts/rewards/ledger-service/ports"
	"taskproof/internal/shared/events"
)

const (
	topicSubmissionApproved = "submission.approved"
	dedupTTL                = 7 * 24 * time.Hour
)

// ApprovalConsumer credits the submission owner when a submission is
// approved, whether by the pipeline or by the jury. The reward event id is
// derived from the submission so both paths converge on one credit.
type ApprovalConsumer struct {
	Ledger     commands.LedgerUseCase
	Campaigns  ports.CampaignRewardReader
	Subscriber ports.EventSubscriber
	Dedup      ports.EventDedupStore
	Clock      ports.Clock
	Group      string
	Logger     *slog.Logger
}

func (c ApprovalConsumer) Start(ctx context.Context) error {
	group := c.Group
	if group == "" {
		group = "ledger-service.approvals"
	}
	return c.Subscriber.Subscribe(ctx, topicSubmissionApproved, group, c.handle)
}

func (c ApprovalConsumer) handle(ctx context.Context, event events.Envelope) error {
	logger := application.Logger(c.Logger)

	sum := sha256.Sum256(event.Data)
	fresh, err := c.Dedup.ReserveEvent(ctx, event.EventID, hex.EncodeToString(sum[:]), c.Clock.Now().UTC().Add(dedupTTL))
	if err != nil {
		return fmt.Errorf("reserve event %s: %w", event.EventID, err)
	}
	if !fresh {
		return nil
	}

	var payload struct {
		SubmissionID string `json:"submission_id"`
		CampaignID   string `json:"campaign_id"`
		OwnerID      string `json:"owner_id"`
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return fmt.Errorf("decode submission.approved payload: %w", err)
	}

	tickets, err := c.Campaigns.GetRewardTickets(ctx, payload.CampaignID)
	if err != nil {
		return fmt.Errorf("load campaign reward: %w", err)
	}

	rewardEventID := "submission-approved-" + payload.SubmissionID
	if err := c.Ledger.CreditOwnerReward(ctx, rewardEventID, payload.OwnerID, payload.SubmissionID, tickets); err != nil {
		return err
	}

	logger.Info("approval reward processed",
		"event", "approval_consumed",
		"module", "rewards/ledger-service",
		"layer", "worker",
		"submission_id", payload.SubmissionID,
	)
	return nil
}
