package entities

import "time"

// AuditAssignment is an ephemeral spot-check handed to one validator. The
// AssignmentID is what the validator sees as the queue item id, so the
// assignment is indistinguishable from a genuine submission. Rows are
// removed once answered or expired and never become submissions.
type AuditAssignment struct {
	AssignmentID string
	ValidatorID  string
	SubmissionID string
	// GroundTruth is always "reject": the task carries the source photo
	// twice, and an unchanged pair cannot show genuine change.
	GroundTruth string
	CampaignID  string
	QuestType   string
	PhotoURLs   []string
	SubmittedAt time.Time
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// FailureState tracks a validator's consecutive failed audits. The tier
// resets only once the top penalty has been applied.
type FailureState struct {
	ValidatorID      string
	ConsecutiveFails int
	UpdatedAt        time.Time
}
