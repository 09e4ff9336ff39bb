package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"taskproof/contexts/verification/jury-consensus/application"
	"taskproof/contexts/verification/jury-consensus/domain/entities"
	dErrors "taskproof/contexts/verification/jury-consensus/domain/errors"
	"taskproof/contexts/verification/jury-consensus/ports"
)

const (
	statusAwaitingReview = "needs_human_review"
	statusApproved       = "approved"
	statusRejected       = "rejected"
)

type CastVoteCommand struct {
	ValidatorID string
	ItemID      string
	Decision    entities.VoteDecision
	Note        string
}

type CastVoteResult struct {
	Vote        entities.Vote
	Finalized   bool
	FinalStatus string
	Audit       bool
}

// VoteUseCase records jury votes and resolves consensus. Quorum is the
// number of votes that closes a submission; the strict majority among them
// decides.
type VoteUseCase struct {
	Reviews ports.ReviewRepository
	Votes   ports.VoteRepository
	Audits  ports.AuditInjector
	Ledger  ports.RewardLedger
	Outbox  ports.OutboxWriter
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Quorum  int
	Logger  *slog.Logger
}

// CastVote handles a vote on a queue item. Audit assignments are resolved
// first so the caller cannot distinguish them from genuine submissions.
func (uc VoteUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.Logger(uc.Logger)

	validatorID := strings.TrimSpace(cmd.ValidatorID)
	itemID := strings.TrimSpace(cmd.ItemID)
	if validatorID == "" || itemID == "" || !entities.IsValidDecision(cmd.Decision) {
		return CastVoteResult{}, dErrors.ErrInvalidVoteInput
	}

	handled, err := uc.Audits.TryResolveVote(ctx, validatorID, itemID, cmd.Decision)
	if err != nil {
		return CastVoteResult{}, fmt.Errorf("resolve audit vote: %w", err)
	}
	if handled {
		return CastVoteResult{
			Vote: entities.Vote{
				SubmissionID: itemID,
				ValidatorID:  validatorID,
				Decision:     cmd.Decision,
				CreatedAt:    uc.Clock.Now().UTC(),
			},
			Audit: true,
		}, nil
	}

	submission, err := uc.Reviews.GetReviewSubmission(ctx, itemID)
	if err != nil {
		return CastVoteResult{}, err
	}
	if submission.Status != statusAwaitingReview {
		return CastVoteResult{}, dErrors.ErrSubmissionNotReviewable
	}
	if submission.OwnerID == validatorID {
		return CastVoteResult{}, dErrors.ErrSelfReviewForbidden
	}

	vote := entities.Vote{
		VoteID:       uc.IDGen.NewID(),
		SubmissionID: submission.SubmissionID,
		ValidatorID:  validatorID,
		Decision:     cmd.Decision,
		Note:         strings.TrimSpace(cmd.Note),
		CreatedAt:    uc.Clock.Now().UTC(),
	}
	if err := uc.Votes.RecordVote(ctx, vote); err != nil {
		return CastVoteResult{}, err
	}

	// Participation reward keyed on (submission, validator) so replays and
	// duplicate deliveries cannot double-credit.
	participationID := fmt.Sprintf("vote-%s-%s", submission.SubmissionID, validatorID)
	if err := uc.Ledger.CreditVoteParticipation(ctx, participationID, validatorID); err != nil {
		return CastVoteResult{}, fmt.Errorf("credit vote participation: %w", err)
	}

	if err := uc.appendEvent(ctx, TopicVoteRecorded, submission.SubmissionID, map[string]any{
		"submission_id": submission.SubmissionID,
		"validator_id":  validatorID,
		"decision":      string(cmd.Decision),
	}); err != nil {
		return CastVoteResult{}, err
	}

	logger.Info("jury vote recorded",
		"event", "vote_recorded",
		"module", "verification/jury-consensus",
		"layer", "application",
		"submission_id", submission.SubmissionID,
		"decision", string(cmd.Decision),
	)

	return uc.resolveConsensus(ctx, submission, vote, logger)
}

func (uc VoteUseCase) resolveConsensus(ctx context.Context, submission entities.ReviewSubmission, vote entities.Vote, logger *slog.Logger) (CastVoteResult, error) {
	tally, err := uc.Votes.CountVotes(ctx, submission.SubmissionID)
	if err != nil {
		return CastVoteResult{}, fmt.Errorf("count votes: %w", err)
	}

	approved, decided, tied := tally.Verdict(uc.Quorum)
	if tied {
		return uc.handleTie(ctx, submission, vote, tally)
	}
	if !decided {
		return CastVoteResult{Vote: vote}, nil
	}

	status := statusRejected
	if approved {
		status = statusApproved
	}
	now := uc.Clock.Now().UTC()
	steps := []ports.JuryTraceStep{{
		Kind:       "jury",
		Name:       "jury_consensus",
		Passed:     approved,
		Detail:     fmt.Sprintf("approvals=%d rejections=%d quorum=%d", tally.Approvals, tally.Rejections, uc.Quorum),
		RecordedAt: now,
	}}

	won, err := uc.Reviews.FinalizeSubmission(ctx, submission.SubmissionID, status, steps, now)
	if err != nil {
		return CastVoteResult{}, fmt.Errorf("finalize submission: %w", err)
	}
	if !won {
		// A concurrent vote already closed it. The vote itself stands.
		return CastVoteResult{Vote: vote}, nil
	}

	voters, err := uc.Votes.ListVoters(ctx, submission.SubmissionID)
	if err != nil {
		return CastVoteResult{}, fmt.Errorf("list voters: %w", err)
	}
	for _, voterID := range voters {
		completionID := fmt.Sprintf("consensus-%s-%s", submission.SubmissionID, voterID)
		if err := uc.Ledger.CompleteValidation(ctx, completionID, voterID); err != nil {
			return CastVoteResult{}, fmt.Errorf("complete validation for %s: %w", voterID, err)
		}
	}

	if err := uc.appendEvent(ctx, TopicConsensusResolved, submission.SubmissionID, map[string]any{
		"submission_id": submission.SubmissionID,
		"status":        status,
		"approvals":     tally.Approvals,
		"rejections":    tally.Rejections,
	}); err != nil {
		return CastVoteResult{}, err
	}

	verdictTopic := TopicSubmissionRejected
	if approved {
		verdictTopic = TopicSubmissionApproved
	}
	if err := uc.appendEvent(ctx, verdictTopic, submission.SubmissionID, map[string]any{
		"submission_id": submission.SubmissionID,
		"campaign_id":   submission.CampaignID,
		"owner_id":      submission.OwnerID,
		"status":        status,
	}); err != nil {
		return CastVoteResult{}, err
	}

	logger.Info("jury consensus resolved",
		"event", "consensus_resolved",
		"module", "verification/jury-consensus",
		"layer", "application",
		"submission_id", submission.SubmissionID,
		"status", status,
	)
	return CastVoteResult{Vote: vote, Finalized: true, FinalStatus: status}, nil
}

func (uc VoteUseCase) handleTie(ctx context.Context, submission entities.ReviewSubmission, vote entities.Vote, tally entities.Tally) (CastVoteResult, error) {
	now := uc.Clock.Now().UTC()

	// Record the tie only when the quorum is first reached; later votes
	// will resolve or re-tie on their own count.
	if tally.Total() == uc.Quorum {
		if err := uc.Reviews.AppendReviewTrace(ctx, submission.SubmissionID, []ports.JuryTraceStep{{
			Kind:       "jury",
			Name:       "tie_pending_escalation",
			Detail:     fmt.Sprintf("approvals=%d rejections=%d quorum=%d", tally.Approvals, tally.Rejections, uc.Quorum),
			RecordedAt: now,
		}}, now); err != nil {
			return CastVoteResult{}, fmt.Errorf("append tie trace: %w", err)
		}
		if err := uc.appendEvent(ctx, TopicConsensusTied, submission.SubmissionID, map[string]any{
			"submission_id": submission.SubmissionID,
			"approvals":     tally.Approvals,
			"rejections":    tally.Rejections,
		}); err != nil {
			return CastVoteResult{}, err
		}
	}
	return CastVoteResult{Vote: vote}, nil
}
