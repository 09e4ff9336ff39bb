package v1

import (
	"encoding/json"
	"time"
)

// Envelope is the canonical, versioned event envelope for cross-runtime use.
// This package is generated-contract-only and must stay backward compatible.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

// Canonical event types carried in Envelope.EventType.
const (
	EventSubmissionCreated        = "submission.created"
	EventSubmissionApproved       = "submission.approved"
	EventSubmissionRejected       = "submission.rejected"
	EventSubmissionReviewRequired = "submission.review_required"
	EventVoteRecorded             = "vote.recorded"
	EventConsensusResolved        = "consensus.resolved"
	EventConsensusTied            = "consensus.tied"
	EventRewardCredited           = "reward.credited"
	EventRewardSettlementIntent   = "reward.settlement_intent"
	EventAuditVotePassed          = "audit.vote_passed"
	EventAuditVoteFailed          = "audit.vote_failed"
)
