package ports

import (
	"context"
	"time"

	"taskproof/contexts/rewards/ledger-service/domain/entities"
	"taskproof/internal/shared/events"
)

type ProfileRepository interface {
	GetProfile(ctx context.Context, validatorID string) (entities.ValidatorProfile, error)
	// ApplyEntry records the entry and applies its deltas atomically.
	// Returns false when the entry's event id was already applied.
	// Diamond and ticket balances are floored at zero.
	ApplyEntry(ctx context.Context, entry entities.LedgerEntry) (bool, error)
	// ApplyNetworkDebit debits tickets from every member in one
	// transaction, floored at zero per member. Idempotent on eventID.
	ApplyNetworkDebit(ctx context.Context, eventID string, memberIDs []string, tickets int, at time.Time) (bool, error)
	GetTrustedNetwork(ctx context.Context, validatorID string) ([]string, error)
}

// CampaignRewardReader projects the ticket reward configured on a
// campaign.
type CampaignRewardReader interface {
	GetRewardTickets(ctx context.Context, campaignID string) (int, error)
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, event events.Envelope) error
}

type OutboxRepository interface {
	OutboxWriter
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventDedupStore interface {
	ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event events.Envelope) error
}

type EventSubscriber interface {
	Subscribe(ctx context.Context, topic string, consumerGroup string, handler func(context.Context, events.Envelope) error) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID() string
}
