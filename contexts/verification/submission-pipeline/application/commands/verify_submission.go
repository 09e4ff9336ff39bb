package commands

import (
	"context"
	"fmt"
	"log/slog"

	"taskproof/contexts/verification/submission-pipeline/application"
	"taskproof/contexts/verification/submission-pipeline/domain/entities"
	dErrors "taskproof/contexts/verification/submission-pipeline/domain/errors"
)

type VerifySubmissionCommand struct {
	SubmissionID string
}

type VerifySubmissionResult struct {
	Submission entities.Submission
}

// VerifySubmission runs the full verification pass for a pending
// submission: deterministic pre-check first, AI content scoring second,
// decision routing last. Re-running against an already-processed submission
// is a no-op, so redelivered submission.created events are safe.
func (uc SubmissionUseCase) VerifySubmission(ctx context.Context, cmd VerifySubmissionCommand) (VerifySubmissionResult, error) {
	logger := application.Logger(uc.Logger)

	submission, err := uc.Submissions.GetSubmission(ctx, cmd.SubmissionID)
	if err != nil {
		return VerifySubmissionResult{}, err
	}
	if submission.Status != entities.SubmissionStatusPending {
		return VerifySubmissionResult{Submission: submission}, nil
	}

	campaign, err := uc.Campaigns.GetCampaign(ctx, submission.CampaignID)
	if err != nil {
		return VerifySubmissionResult{}, err
	}
	checkpoints, err := uc.Campaigns.ListCheckpoints(ctx, submission.CampaignID)
	if err != nil {
		return VerifySubmissionResult{}, err
	}
	if len(checkpoints) == 0 {
		return VerifySubmissionResult{}, dErrors.ErrCheckpointNotFound
	}

	now := uc.Clock.Now().UTC()

	precheckSteps, precheckPassed := runPrecheck(submission, checkpoints, now)
	submission.AppendTrace(precheckSteps...)

	if !precheckPassed {
		// Hard fail before any model call is spent.
		submission.Status = entities.SubmissionStatusRejected
		submission.AppendTrace(entities.TraceStep{
			Kind:       entities.TraceKindDecision,
			Name:       "decision_router",
			Passed:     false,
			Detail:     "pre-check failed, rejected without scoring",
			RecordedAt: now,
		})
		return uc.finalizeVerification(ctx, submission, logger)
	}

	score := uc.scoreContent(ctx, submission, campaign, now)
	submission.AppendTrace(score.Steps...)

	if score.Degraded {
		submission.Status = entities.SubmissionStatusNeedsReview
		submission.AppendTrace(entities.TraceStep{
			Kind:       entities.TraceKindDecision,
			Name:       "decision_router",
			Passed:     false,
			Detail:     "scorer unavailable or ambiguous, escalated to human review",
			RecordedAt: now,
		})
		return uc.finalizeVerification(ctx, submission, logger)
	}

	submission.Confidence = score.Confidence
	submission.Status = routeByConfidence(*score.Confidence, uc.ConfidenceThreshold)
	submission.AppendTrace(entities.TraceStep{
		Kind:   entities.TraceKindDecision,
		Name:   "decision_router",
		Passed: submission.Status == entities.SubmissionStatusApproved,
		Detail: fmt.Sprintf("confidence=%d threshold=%d status=%s",
			*score.Confidence, uc.ConfidenceThreshold, submission.Status),
		RecordedAt: now,
	})
	return uc.finalizeVerification(ctx, submission, logger)
}

func (uc SubmissionUseCase) finalizeVerification(ctx context.Context, submission entities.Submission, logger *slog.Logger) (VerifySubmissionResult, error) {
	submission.UpdatedAt = uc.Clock.Now().UTC()

	applied, err := uc.Submissions.ApplyVerification(ctx, submission, entities.SubmissionStatusPending)
	if err != nil {
		return VerifySubmissionResult{}, fmt.Errorf("apply verification result: %w", err)
	}
	if !applied {
		// Another pass won the race. Surface whatever is persisted now.
		current, err := uc.Submissions.GetSubmission(ctx, submission.SubmissionID)
		if err != nil {
			return VerifySubmissionResult{}, err
		}
		return VerifySubmissionResult{Submission: current}, nil
	}

	if err := uc.appendVerdictEvent(ctx, submission); err != nil {
		return VerifySubmissionResult{}, err
	}

	confidence := -1
	if submission.Confidence != nil {
		confidence = *submission.Confidence
	}
	logger.Info("submission verified",
		"event", "submission_verified",
		"module", "verification/submission-pipeline",
		"layer", "application",
		"submission_id", submission.SubmissionID,
		"status", string(submission.Status),
		"confidence", confidence,
	)
	return VerifySubmissionResult{Submission: submission}, nil
}
