package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"taskproof/contexts/rewards/ledger-service/application"
	"taskproof/contexts/rewards/ledger-service/ports"
	"taskproof/internal/shared/events"
)

// OutboxRelay publishes the reward outbox to the bus.
type OutboxRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	BatchSize int
	Logger    *slog.Logger
}

func (r OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	logger := application.Logger(r.Logger)

	limit := r.BatchSize
	if limit <= 0 {
		limit = 50
	}
	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list pending outbox: %w", err)
	}

	published := 0
	for _, message := range pending {
		var event events.Envelope
		if err := json.Unmarshal(message.Payload, &event); err != nil {
			return published, fmt.Errorf("decode outbox payload %s: %w", message.OutboxID, err)
		}
		if err := r.Publisher.Publish(ctx, message.EventType, event); err != nil {
			return published, fmt.Errorf("publish outbox message %s: %w", message.OutboxID, err)
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, message.OutboxID, r.Clock.Now().UTC()); err != nil {
			return published, fmt.Errorf("mark outbox published %s: %w", message.OutboxID, err)
		}
		published++
	}

	if published > 0 {
		logger.Info("outbox batch published",
			"event", "outbox_relay_published",
			"module", "rewards/ledger-service",
			"layer", "worker",
			"count", published,
		)
	}
	return published, nil
}
