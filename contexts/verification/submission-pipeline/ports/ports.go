package ports

import (
	"context"
	"time"

	"taskproof/contexts/verification/submission-pipeline/domain/entities"
	"taskproof/internal/shared/events"
)

// CampaignProjection is the read-only slice of campaign state the pipeline
// needs. Campaign lifecycle is owned elsewhere; this module only consumes it.
type CampaignProjection struct {
	CampaignID    string
	QuestType     entities.QuestType
	Rules         string
	Status        string
	RewardTickets int
}

type SubmissionRepository interface {
	CreateSubmission(ctx context.Context, submission entities.Submission) error
	GetSubmission(ctx context.Context, submissionID string) (entities.Submission, error)
	// ApplyVerification persists the verification outcome guarded on the
	// current status. Returns false when the row was not in expectStatus,
	// meaning another pass already moved the submission on.
	ApplyVerification(ctx context.Context, submission entities.Submission, expectStatus entities.SubmissionStatus) (bool, error)
	ListByStatus(ctx context.Context, status entities.SubmissionStatus, limit int) ([]entities.Submission, error)
}

type CampaignReader interface {
	GetCampaign(ctx context.Context, campaignID string) (CampaignProjection, error)
	ListCheckpoints(ctx context.Context, campaignID string) ([]entities.Checkpoint, error)
}

// EnrollmentStore keeps the reference selfie for check-in identity quests.
type EnrollmentStore interface {
	GetEnrolledSelfie(ctx context.Context, ownerID string) (string, bool, error)
	SaveEnrolledSelfie(ctx context.Context, ownerID string, photoURL string, enrolledAt time.Time) error
}

// VisionAnswer is the normalized verdict of a vision model call.
type VisionAnswer string

const (
	VisionAnswerYes     VisionAnswer = "yes"
	VisionAnswerNo      VisionAnswer = "no"
	VisionAnswerUnclear VisionAnswer = "unclear"
)

type SceneLabels struct {
	Subject    string
	Background string
}

// VisionService wraps the external AI provider. Every method must surface
// upstream failures as errors; callers degrade to human review, never to an
// approval.
type VisionService interface {
	CheckCompliance(ctx context.Context, photoURL string, rules string) (VisionAnswer, error)
	DescribeScene(ctx context.Context, photoURL string) (SceneLabels, error)
	ScoreLabels(ctx context.Context, photoURL string, labels []string) (map[string]float64, error)
	SamePerson(ctx context.Context, photoURL string, enrolledURL string) (VisionAnswer, error)
}

type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	SubmissionID string
	ExpiresAt    time.Time
}

type IdempotencyStore interface {
	GetIdempotency(ctx context.Context, key string) (IdempotencyRecord, bool, error)
	PutIdempotency(ctx context.Context, record IdempotencyRecord) error
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

// EventDedupStore reserves consumed event ids so redelivered events are
// processed at most once.
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
