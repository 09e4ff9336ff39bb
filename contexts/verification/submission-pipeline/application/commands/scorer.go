package commands

import (
	"context"
	"fmt"
	"math"
	"time"

	"taskproof/contexts/verification/submission-pipeline/domain/entities"
	"taskproof/contexts/verification/submission-pipeline/ports"
)

const (
	confidenceCompliant    = 95
	confidenceNonCompliant = 5
	confidenceCleanChange  = 90
	confidenceMixedSignal  = 50
	confidenceNoChange     = 10

	minSubjectImprovement = 0.15
	minBackgroundAfter    = 0.6
	maxBackgroundDrift    = 0.2
)

// scoreResult carries the scorer outcome. Degraded means the model call
// failed or answered ambiguously; the submission must go to human review
// rather than inherit a guessed confidence.
type scoreResult struct {
	Confidence *int
	Steps      []entities.TraceStep
	Degraded   bool
}

func (uc SubmissionUseCase) scoreContent(ctx context.Context, submission entities.Submission, campaign ports.CampaignProjection, at time.Time) scoreResult {
	switch submission.QuestType {
	case entities.QuestTwoPhotoChange:
		return uc.scoreTwoPhotoChange(ctx, submission, at)
	case entities.QuestCheckInIdentity:
		return uc.scoreCheckInIdentity(ctx, submission, at)
	default:
		return uc.scoreSinglePhoto(ctx, submission, campaign, at)
	}
}

func (uc SubmissionUseCase) scoreSinglePhoto(ctx context.Context, submission entities.Submission, campaign ports.CampaignProjection, at time.Time) scoreResult {
	answer, err := uc.Vision.CheckCompliance(ctx, submission.Photos[0].URL, campaign.Rules)
	if err != nil {
		return degradedResult("compliance_check", fmt.Sprintf("vision call failed: %v", err), at)
	}

	var confidence int
	switch answer {
	case ports.VisionAnswerYes:
		confidence = confidenceCompliant
	case ports.VisionAnswerNo:
		confidence = confidenceNonCompliant
	default:
		return degradedResult("compliance_check", "model answer was not a clear yes or no", at)
	}

	return scoredResult(confidence, entities.TraceStep{
		Kind:       entities.TraceKindContentScore,
		Name:       "compliance_check",
		Passed:     answer == ports.VisionAnswerYes,
		Detail:     fmt.Sprintf("answer=%s confidence=%d", answer, confidence),
		RecordedAt: at,
	})
}

func (uc SubmissionUseCase) scoreTwoPhotoChange(ctx context.Context, submission entities.Submission, at time.Time) scoreResult {
	before, after := submission.Photos[0], submission.Photos[1]

	labels, err := uc.Vision.DescribeScene(ctx, before.URL)
	if err != nil {
		return degradedResult("scene_describe", fmt.Sprintf("vision call failed: %v", err), at)
	}
	query := []string{labels.Subject, labels.Background}

	beforeScores, err := uc.Vision.ScoreLabels(ctx, before.URL, query)
	if err != nil {
		return degradedResult("label_score_before", fmt.Sprintf("vision call failed: %v", err), at)
	}
	afterScores, err := uc.Vision.ScoreLabels(ctx, after.URL, query)
	if err != nil {
		return degradedResult("label_score_after", fmt.Sprintf("vision call failed: %v", err), at)
	}

	improvement := beforeScores[labels.Subject] - afterScores[labels.Subject]
	backgroundAfter := afterScores[labels.Background]
	drift := math.Abs(beforeScores[labels.Background] - afterScores[labels.Background])

	sameScene := backgroundAfter > minBackgroundAfter && drift < maxBackgroundDrift

	var confidence int
	switch {
	case improvement > minSubjectImprovement && sameScene:
		confidence = confidenceCleanChange
	case improvement > minSubjectImprovement:
		// Subject changed but scene continuity is in doubt. A human
		// decides whether the pair shows the same place.
		confidence = confidenceMixedSignal
	default:
		confidence = confidenceNoChange
	}

	return scoredResult(confidence, entities.TraceStep{
		Kind:   entities.TraceKindContentScore,
		Name:   "change_score",
		Passed: confidence == confidenceCleanChange,
		Detail: fmt.Sprintf("subject=%q improvement=%.2f background_after=%.2f drift=%.2f confidence=%d",
			labels.Subject, improvement, backgroundAfter, drift, confidence),
		RecordedAt: at,
	})
}

func (uc SubmissionUseCase) scoreCheckInIdentity(ctx context.Context, submission entities.Submission, at time.Time) scoreResult {
	selfie := submission.Photos[0]

	enrolledURL, found, err := uc.Enrollment.GetEnrolledSelfie(ctx, submission.OwnerID)
	if err != nil {
		return degradedResult("identity_match", fmt.Sprintf("enrollment lookup failed: %v", err), at)
	}
	if !found {
		// First check-in enrolls the selfie as the reference image.
		if err := uc.Enrollment.SaveEnrolledSelfie(ctx, submission.OwnerID, selfie.URL, at); err != nil {
			return degradedResult("identity_enroll", fmt.Sprintf("enrollment save failed: %v", err), at)
		}
		return scoredResult(confidenceCompliant, entities.TraceStep{
			Kind:       entities.TraceKindContentScore,
			Name:       "identity_enroll",
			Passed:     true,
			Detail:     fmt.Sprintf("first check-in, selfie enrolled, confidence=%d", confidenceCompliant),
			RecordedAt: at,
		})
	}

	answer, err := uc.Vision.SamePerson(ctx, selfie.URL, enrolledURL)
	if err != nil {
		return degradedResult("identity_match", fmt.Sprintf("vision call failed: %v", err), at)
	}

	var confidence int
	switch answer {
	case ports.VisionAnswerYes:
		confidence = confidenceCompliant
	case ports.VisionAnswerNo:
		confidence = confidenceNonCompliant
	default:
		return degradedResult("identity_match", "model answer was not a clear yes or no", at)
	}

	return scoredResult(confidence, entities.TraceStep{
		Kind:       entities.TraceKindContentScore,
		Name:       "identity_match",
		Passed:     answer == ports.VisionAnswerYes,
		Detail:     fmt.Sprintf("answer=%s confidence=%d", answer, confidence),
		RecordedAt: at,
	})
}

func scoredResult(confidence int, step entities.TraceStep) scoreResult {
	return scoreResult{Confidence: &confidence, Steps: []entities.TraceStep{step}}
}

func degradedResult(name string, detail string, at time.Time) scoreResult {
	return scoreResult{
		Degraded: true,
		Steps: []entities.TraceStep{{
			Kind:       entities.TraceKindContentScore,
			Name:       name,
			Passed:     false,
			Detail:     detail,
			RecordedAt: at,
		}},
	}
}
