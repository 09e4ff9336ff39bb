package ports

import (
	"context"
	"time"

	"taskproof/contexts/integrity/audit-injection/domain/entities"
	"taskproof/internal/shared/events"
)

type AssignmentRepository interface {
	SaveAssignment(ctx context.Context, assignment entities.AuditAssignment) error
	// GetAssignmentForValidator returns the active assignment with the
	// given item id, scoped to the validator it was handed to.
	GetAssignmentForValidator(ctx context.Context, validatorID string, assignmentID string) (entities.AuditAssignment, bool, error)
	// GetAssignmentBySource returns the active assignment forged from the
	// given genuine submission, so queue rebuilds reuse it.
	GetAssignmentBySource(ctx context.Context, validatorID string, submissionID string) (entities.AuditAssignment, bool, error)
	DeleteAssignment(ctx context.Context, assignmentID string) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]entities.AuditAssignment, error)
}

type FailureRepository interface {
	GetFailureState(ctx context.Context, validatorID string) (entities.FailureState, error)
	SaveFailureState(ctx context.Context, state entities.FailureState) error
}

// ValidatorLedger is the integrity context's view of the rewards ledger.
// All calls are idempotent on eventID; the trusted-network debit is
// all-or-nothing across the network.
type ValidatorLedger interface {
	CreditVoteParticipation(ctx context.Context, eventID string, validatorID string) error
	DebitDiamonds(ctx context.Context, eventID string, validatorID string, amount int) error
	DebitTrustedNetworkTickets(ctx context.Context, eventID string, validatorID string, amount int) error
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

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event events.Envelope) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID() string
}
