package workers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"taskproof/contexts/verification/submission-pipeline/application"
	"taskproof/contexts/verification/submission-pipeline/application/commands"
	"taskproof/contexts/verification/submission-pipeline/ports"
	"taskproof/internal/shared/events"
)

const dedupTTL = 7 * 24 * time.Hour

// VerificationConsumer reacts to submission.created events and runs the
// verification pass out of the request path.
type VerificationConsumer struct {
	UseCase    commands.SubmissionUseCase
	Subscriber ports.EventSubscriber
	Dedup      ports.EventDedupStore
	Clock      ports.Clock
	Group      string
	Logger     *slog.Logger
}

func (c VerificationConsumer) Start(ctx context.Context) error {
	group := c.Group
	if group == "" {
		group = "submission-pipeline.verification"
	}
	return c.Subscriber.Subscribe(ctx, commands.TopicSubmissionCreated, group, c.handle)
}

func (c VerificationConsumer) handle(ctx context.Context, event events.Envelope) error {
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
	}
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return fmt.Errorf("decode submission.created payload: %w", err)
	}

	if _, err := c.UseCase.VerifySubmission(ctx, commands.VerifySubmissionCommand{SubmissionID: payload.SubmissionID}); err != nil {
		return fmt.Errorf("verify submission %s: %w", payload.SubmissionID, err)
	}

	logger.Info("verification pass completed",
		"event", "verification_consumed",
		"module", "verification/submission-pipeline",
		"layer", "worker",
		"submission_id", payload.SubmissionID,
	)
	return nil
}
