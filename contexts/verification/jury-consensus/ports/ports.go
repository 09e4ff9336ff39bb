package ports

import (
	"context"
	"time"

	"taskproof/contexts/verification/jury-consensus/domain/entities"
	"taskproof/internal/shared/events"
)

// ReviewRepository projects the submissions table for the jury. Writes go
// through FinalizeSubmission only; intake and verification stay with the
// pipeline.
type ReviewRepository interface {
	GetReviewSubmission(ctx context.Context, submissionID string) (entities.ReviewSubmission, error)
	ListAwaitingReview(ctx context.Context, limit int) ([]entities.ReviewSubmission, error)
	// FinalizeSubmission moves a submission out of review, appending the
	// jury trace steps. Returns false when the row was no longer awaiting
	// review, so concurrent quorums finalize exactly once.
	FinalizeSubmission(ctx context.Context, submissionID string, status string, steps []JuryTraceStep, updatedAt time.Time) (bool, error)
	// AppendReviewTrace records jury activity without a status change,
	// used for tie escalation notes.
	AppendReviewTrace(ctx context.Context, submissionID string, steps []JuryTraceStep, updatedAt time.Time) error
}

// JuryTraceStep mirrors the pipeline trace shape so jury steps land in the
// same JSONB column.
type JuryTraceStep struct {
	Kind       string    `json:"kind"`
	Name       string    `json:"name"`
	Passed     bool      `json:"passed"`
	Detail     string    `json:"detail"`
	RecordedAt time.Time `json:"recorded_at"`
}

type VoteRepository interface {
	// RecordVote inserts a vote. A second vote by the same validator on
	// the same submission fails with ErrDuplicateVote.
	RecordVote(ctx context.Context, vote entities.Vote) error
	CountVotes(ctx context.Context, submissionID string) (entities.Tally, error)
	ListVoters(ctx context.Context, submissionID string) ([]string, error)
	ListVotedSubmissions(ctx context.Context, validatorID string) ([]string, error)
}

// AuditInjector hides the integrity context behind a jury-local contract.
// MaybeInject splices audit items into a queue; TryResolveVote intercepts
// votes whose target is an audit assignment rather than a submission.
type AuditInjector interface {
	MaybeInject(ctx context.Context, validatorID string, queue []entities.QueueItem) ([]entities.QueueItem, error)
	TryResolveVote(ctx context.Context, validatorID string, itemID string, decision entities.VoteDecision) (bool, error)
}

// RewardLedger is the jury's view of the rewards context. Both calls are
// idempotent on eventID.
type RewardLedger interface {
	CreditVoteParticipation(ctx context.Context, eventID string, validatorID string) error
	CompleteValidation(ctx context.Context, eventID string, validatorID string) error
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
