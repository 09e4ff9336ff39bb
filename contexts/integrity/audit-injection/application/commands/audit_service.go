package commands

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"taskproof/contexts/integrity/audit-injection/application"
	"taskproof/contexts/integrity/audit-injection/domain/entities"
	"taskproof/contexts/integrity/audit-injection/ports"
	"taskproof/internal/shared/events"
)

const (
	TopicAuditVoteFailed = "audit.vote_failed"
	TopicAuditVotePassed = "audit.vote_passed"

	decisionApprove = "approve"
	decisionReject  = "reject"

	tierOnePenalty = 1
	tierTwoPenalty = 5
	networkPenalty = 1
)

// AuditSource is the genuine queue item an audit task is forged from.
type AuditSource struct {
	SubmissionID string
	CampaignID   string
	QuestType    string
	PhotoURL     string
	SubmittedAt  time.Time
}

// AuditService decides when to hand a validator a spot check and scores
// the answer. Injection is deterministic in (seed, validator, source), so
// retried queue builds produce the same outcome.
type AuditService struct {
	Assignments   ports.AssignmentRepository
	Failures      ports.FailureRepository
	Ledger        ports.ValidatorLedger
	Outbox        ports.OutboxWriter
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	Probability   float64
	Seed          string
	AssignmentTTL time.Duration
	Logger        *slog.Logger
}

// MaybeAssign rolls the audit probability for one genuine queue item. On a
// hit the synthesized assignment carries the item's photo as an identical
// before/after pair; an unchanged pair can never show genuine change, so
// the ground truth is reject. A rebuild of the same queue reuses the
// assignment already handed out for the source.
func (s AuditService) MaybeAssign(ctx context.Context, validatorID string, source AuditSource) (entities.AuditAssignment, bool, error) {
	validatorID = strings.TrimSpace(validatorID)
	if validatorID == "" || source.SubmissionID == "" || source.PhotoURL == "" {
		return entities.AuditAssignment{}, false, nil
	}

	if s.roll(validatorID, source.SubmissionID) >= s.Probability {
		return entities.AuditAssignment{}, false, nil
	}

	existing, found, err := s.Assignments.GetAssignmentBySource(ctx, validatorID, source.SubmissionID)
	if err != nil {
		return entities.AuditAssignment{}, false, fmt.Errorf("check assignment for source: %w", err)
	}
	if found {
		return existing, true, nil
	}

	now := s.Clock.Now().UTC()
	ttl := s.AssignmentTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	assignment := entities.AuditAssignment{
		AssignmentID: s.IDGen.NewID(),
		ValidatorID:  validatorID,
		SubmissionID: source.SubmissionID,
		GroundTruth:  decisionReject,
		CampaignID:   source.CampaignID,
		QuestType:    source.QuestType,
		PhotoURLs:    []string{source.PhotoURL, source.PhotoURL},
		SubmittedAt:  source.SubmittedAt,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
	if err := s.Assignments.SaveAssignment(ctx, assignment); err != nil {
		return entities.AuditAssignment{}, false, fmt.Errorf("save assignment: %w", err)
	}

	application.Logger(s.Logger).Info("audit assignment injected",
		"event", "audit_assigned",
		"module", "integrity/audit-injection",
		"layer", "application",
		"validator_id", validatorID,
	)
	return assignment, true, nil
}

// ResolveVote intercepts a vote aimed at an audit assignment. It returns
// false when the item is not an assignment for this validator, so the
// caller falls through to the genuine submission path.
func (s AuditService) ResolveVote(ctx context.Context, validatorID string, itemID string, decision string) (bool, error) {
	if decision != decisionApprove && decision != decisionReject {
		return false, nil
	}
	assignment, found, err := s.Assignments.GetAssignmentForValidator(ctx, validatorID, itemID)
	if err != nil {
		return false, fmt.Errorf("load assignment: %w", err)
	}
	if !found {
		return false, nil
	}

	// The assignment is consumed either way; it never lingers once
	// answered.
	if err := s.Assignments.DeleteAssignment(ctx, assignment.AssignmentID); err != nil {
		return false, fmt.Errorf("delete assignment: %w", err)
	}

	if decision == assignment.GroundTruth {
		if err := s.recordPass(ctx, assignment); err != nil {
			return false, err
		}
		return true, nil
	}
	if err := s.recordFailure(ctx, assignment); err != nil {
		return false, err
	}
	return true, nil
}

// recordPass rewards the correct answer. The failure tier is left alone;
// it resets only once the top penalty has been applied.
func (s AuditService) recordPass(ctx context.Context, assignment entities.AuditAssignment) error {
	eventID := "audit-pass-" + assignment.AssignmentID
	if err := s.Ledger.CreditVoteParticipation(ctx, eventID, assignment.ValidatorID); err != nil {
		return fmt.Errorf("credit audit pass: %w", err)
	}
	if err := s.appendAuditEvent(ctx, TopicAuditVotePassed, assignment, 0); err != nil {
		return err
	}
	application.Logger(s.Logger).Info("audit passed",
		"event", "audit_passed",
		"module", "integrity/audit-injection",
		"layer", "application",
		"validator_id", assignment.ValidatorID,
	)
	return nil
}

func (s AuditService) recordFailure(ctx context.Context, assignment entities.AuditAssignment) error {
	now := s.Clock.Now().UTC()

	state, err := s.Failures.GetFailureState(ctx, assignment.ValidatorID)
	if err != nil {
		return fmt.Errorf("load failure state: %w", err)
	}
	tier := state.ConsecutiveFails + 1
	eventID := "audit-fail-" + assignment.AssignmentID

	switch {
	case tier == 1:
		err = s.Ledger.DebitDiamonds(ctx, eventID, assignment.ValidatorID, tierOnePenalty)
	case tier == 2:
		err = s.Ledger.DebitDiamonds(ctx, eventID, assignment.ValidatorID, tierTwoPenalty)
	default:
		err = s.Ledger.DebitTrustedNetworkTickets(ctx, eventID, assignment.ValidatorID, networkPenalty)
	}
	if err != nil {
		return fmt.Errorf("apply tier %d penalty: %w", tier, err)
	}

	// The top tier drains the trusted network and restarts the ladder.
	nextFails := tier
	if tier >= 3 {
		nextFails = 0
	}
	if err := s.Failures.SaveFailureState(ctx, entities.FailureState{
		ValidatorID:      assignment.ValidatorID,
		ConsecutiveFails: nextFails,
		UpdatedAt:        now,
	}); err != nil {
		return fmt.Errorf("save failure state: %w", err)
	}

	if err := s.appendAuditEvent(ctx, TopicAuditVoteFailed, assignment, tier); err != nil {
		return err
	}
	application.Logger(s.Logger).Warn("audit failed",
		"event", "audit_failed",
		"module", "integrity/audit-injection",
		"layer", "application",
		"validator_id", assignment.ValidatorID,
		"tier", tier,
	)
	return nil
}

func (s AuditService) appendAuditEvent(ctx context.Context, topic string, assignment entities.AuditAssignment, tier int) error {
	data := map[string]any{
		"assignment_id": assignment.AssignmentID,
		"validator_id":  assignment.ValidatorID,
		"submission_id": assignment.SubmissionID,
	}
	if tier > 0 {
		data["tier"] = tier
	}
	event, err := events.New(
		s.IDGen.NewID(),
		topic,
		"audit-injection",
		"data.validator_id",
		assignment.ValidatorID,
		s.Clock.Now().UTC(),
		data,
	)
	if err != nil {
		return fmt.Errorf("build %s event: %w", topic, err)
	}
	if err := s.Outbox.AppendOutbox(ctx, event); err != nil {
		return fmt.Errorf("append %s to outbox: %w", topic, err)
	}
	return nil
}

// roll maps (seed, validator, submission) to [0, 1).
func (s AuditService) roll(validatorID string, submissionID string) float64 {
	sum := sha256.Sum256([]byte(s.Seed + "|" + validatorID + "|" + submissionID))
	return float64(binary.BigEndian.Uint64(sum[:8])) / float64(math.MaxUint64)
}
