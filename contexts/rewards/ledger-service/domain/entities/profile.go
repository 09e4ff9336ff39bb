package entities

import "time"

type ValidatorProfile struct {
	ValidatorID          string
	Diamonds             int
	Tickets              int
	ValidationsCompleted int
	TrustedNetwork       []string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type EntryKind string

const (
	EntryVoteParticipation   EntryKind = "vote_participation"
	EntryValidationCompleted EntryKind = "validation_completed"
	EntryOwnerReward         EntryKind = "owner_reward"
	EntryAuditPenalty        EntryKind = "audit_penalty"
	EntryNetworkPenalty      EntryKind = "network_penalty"
)

// LedgerEntry is the immutable record of one applied mutation. EventID is
// unique; a replayed event leaves no second entry.
type LedgerEntry struct {
	EventID        string
	ValidatorID    string
	Kind           EntryKind
	DiamondsDelta  int
	TicketsDelta   int
	ValidationsInc int
	CreatedAt      time.Time
}
