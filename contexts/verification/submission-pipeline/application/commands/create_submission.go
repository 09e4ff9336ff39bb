package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taskproof/contexts/verification/submission-pipeline/application"
	"taskproof/contexts/verification/submission-pipeline/domain/entities"
	dErrors "taskproof/contexts/verification/submission-pipeline/domain/errors"
	"taskproof/contexts/verification/submission-pipeline/ports"
)

const idempotencyTTL = 24 * time.Hour

type PhotoInput struct {
	URL     string
	Lat     *float64
	Lng     *float64
	TakenAt time.Time
}

type CreateSubmissionCommand struct {
	OwnerID        string
	IdempotencyKey string
	CampaignID     string
	CheckpointID   string
	Photos         []PhotoInput
}

type CreateSubmissionResult struct {
	Submission entities.Submission
	Replayed   bool
}

// SubmissionUseCase drives submission intake and the asynchronous
// verification pass. ConfidenceThreshold is the approval cutoff the router
// applies; confidence below half of it rejects outright.
type SubmissionUseCase struct {
	Submissions         ports.SubmissionRepository
	Campaigns           ports.CampaignReader
	Enrollment          ports.EnrollmentStore
	Vision              ports.VisionService
	Idempotency         ports.IdempotencyStore
	Outbox              ports.OutboxWriter
	Clock               ports.Clock
	IDGenerator         ports.IDGenerator
	ConfidenceThreshold int
	Logger              *slog.Logger
}

func (uc SubmissionUseCase) CreateSubmission(ctx context.Context, cmd CreateSubmissionCommand) (CreateSubmissionResult, error) {
	logger := application.Logger(uc.Logger)

	key := strings.TrimSpace(cmd.IdempotencyKey)
	if key == "" {
		return CreateSubmissionResult{}, dErrors.ErrIdempotencyKeyRequired
	}

	requestHash, err := hashCreateRequest(cmd)
	if err != nil {
		return CreateSubmissionResult{}, fmt.Errorf("hash submission request: %w", err)
	}

	if record, found, err := uc.Idempotency.GetIdempotency(ctx, key); err != nil {
		return CreateSubmissionResult{}, fmt.Errorf("load idempotency record: %w", err)
	} else if found {
		if record.RequestHash != requestHash {
			return CreateSubmissionResult{}, dErrors.ErrIdempotencyConflict
		}
		existing, err := uc.Submissions.GetSubmission(ctx, record.SubmissionID)
		if err != nil {
			return CreateSubmissionResult{}, fmt.Errorf("load replayed submission: %w", err)
		}
		logger.Info("submission create replayed",
			"event", "submission_create_replayed",
			"module", "verification/submission-pipeline",
			"layer", "application",
			"submission_id", existing.SubmissionID,
		)
		return CreateSubmissionResult{Submission: existing, Replayed: true}, nil
	}

	campaign, err := uc.Campaigns.GetCampaign(ctx, strings.TrimSpace(cmd.CampaignID))
	if err != nil {
		return CreateSubmissionResult{}, err
	}
	if campaign.Status != "active" {
		return CreateSubmissionResult{}, dErrors.ErrCampaignNotActive
	}

	now := uc.Clock.Now().UTC()
	submission := entities.Submission{
		SubmissionID: uc.IDGenerator.NewID(),
		CampaignID:   campaign.CampaignID,
		CheckpointID: strings.TrimSpace(cmd.CheckpointID),
		OwnerID:      strings.TrimSpace(cmd.OwnerID),
		QuestType:    campaign.QuestType,
		Photos:       make([]entities.Photo, 0, len(cmd.Photos)),
		Status:       entities.SubmissionStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, input := range cmd.Photos {
		photo := entities.Photo{
			URL:     strings.TrimSpace(input.URL),
			TakenAt: input.TakenAt.UTC(),
		}
		if input.Lat != nil && input.Lng != nil {
			photo.GPS = &entities.GeoPoint{Lat: *input.Lat, Lng: *input.Lng}
		}
		submission.Photos = append(submission.Photos, photo)
	}
	if !submission.ValidateCreate() {
		return CreateSubmissionResult{}, dErrors.ErrInvalidSubmissionInput
	}
	for _, photo := range submission.Photos {
		if photo.GPS == nil {
			return CreateSubmissionResult{}, dErrors.ErrMissingGPS
		}
	}
	// Before/after window comes from capture timestamps. For single-photo
	// quests the two are the same instant.
	submission.BeforeAt = submission.Photos[0].TakenAt
	submission.AfterAt = submission.Photos[len(submission.Photos)-1].TakenAt

	if err := uc.Submissions.CreateSubmission(ctx, submission); err != nil {
		return CreateSubmissionResult{}, fmt.Errorf("persist submission: %w", err)
	}
	if err := uc.Idempotency.PutIdempotency(ctx, ports.IdempotencyRecord{
		Key:          key,
		RequestHash:  requestHash,
		SubmissionID: submission.SubmissionID,
		ExpiresAt:    now.Add(idempotencyTTL),
	}); err != nil {
		return CreateSubmissionResult{}, fmt.Errorf("persist idempotency record: %w", err)
	}

	if err := uc.appendSubmissionCreated(ctx, submission); err != nil {
		return CreateSubmissionResult{}, err
	}

	logger.Info("submission created",
		"event", "submission_created",
		"module", "verification/submission-pipeline",
		"layer", "application",
		"submission_id", submission.SubmissionID,
		"campaign_id", submission.CampaignID,
		"quest_type", string(submission.QuestType),
	)
	return CreateSubmissionResult{Submission: submission}, nil
}

func hashCreateRequest(cmd CreateSubmissionCommand) (string, error) {
	type photoShape struct {
		URL     string   `json:"url"`
		Lat     *float64 `json:"lat"`
		Lng     *float64 `json:"lng"`
		TakenAt string   `json:"taken_at"`
	}
	shape := struct {
		OwnerID      string       `json:"owner_id"`
		CampaignID   string       `json:"campaign_id"`
		CheckpointID string       `json:"checkpoint_id"`
		Photos       []photoShape `json:"photos"`
	}{
		OwnerID:      strings.TrimSpace(cmd.OwnerID),
		CampaignID:   strings.TrimSpace(cmd.CampaignID),
		CheckpointID: strings.TrimSpace(cmd.CheckpointID),
	}
	for _, photo := range cmd.Photos {
		shape.Photos = append(shape.Photos, photoShape{
			URL:     strings.TrimSpace(photo.URL),
			Lat:     photo.Lat,
			Lng:     photo.Lng,
			TakenAt: photo.TakenAt.UTC().Format(time.RFC3339Nano),
		})
	}
	payload, err := json.Marshal(shape)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
