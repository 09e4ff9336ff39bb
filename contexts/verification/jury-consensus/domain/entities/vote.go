package entities

import "time"

type VoteDecision string

const (
	VoteApprove VoteDecision = "approve"
	VoteReject  VoteDecision = "reject"
)

func IsValidDecision(decision VoteDecision) bool {
	return decision == VoteApprove || decision == VoteReject
}

type Vote struct {
	VoteID       string
	SubmissionID string
	ValidatorID  string
	Decision     VoteDecision
	Note         string
	CreatedAt    time.Time
}

// Tally is the running vote count for a submission under review.
type Tally struct {
	Approvals  int
	Rejections int
}

func (t Tally) Total() int { return t.Approvals + t.Rejections }

// Verdict resolves the tally against the quorum. Decided is false until
// the quorum is reached; Tied is true when the quorum is reached without a
// majority.
func (t Tally) Verdict(quorum int) (approved bool, decided bool, tied bool) {
	if t.Total() < quorum {
		return false, false, false
	}
	if t.Approvals == t.Rejections {
		return false, false, true
	}
	return t.Approvals > t.Rejections, true, false
}

// ReviewSubmission is the jury's read model of a submission row. The
// pipeline owns the full record; the jury only sees what a vote needs.
type ReviewSubmission struct {
	SubmissionID string
	CampaignID   string
	OwnerID      string
	QuestType    string
	PhotoURLs    []string
	Status       string
	CreatedAt    time.Time
}

// QueueItem is one entry of a validator's review queue. ItemID doubles as
// the vote target: genuine items carry the submission id, audit items an
// opaque assignment id, so the two are indistinguishable on the wire.
type QueueItem struct {
	ItemID      string
	CampaignID  string
	QuestType   string
	PhotoURLs   []string
	SubmittedAt time.Time
}
