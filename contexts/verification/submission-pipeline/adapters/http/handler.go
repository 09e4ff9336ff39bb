package httpadapter

import (
	"context"
	"log/slog"

	"taskproof/contexts/verification/submission-pipeline/application/commands"
	"taskproof/contexts/verification/submission-pipeline/application/queries"
	"taskproof/contexts/verification/submission-pipeline/domain/entities"
	httptransport "taskproof/contexts/verification/submission-pipeline/transport/http"
)

type Handler struct {
	Submissions commands.SubmissionUseCase
	Queries     queries.SubmissionQueries
	Logger      *slog.Logger
}

func (h Handler) CreateSubmissionHandler(
	ctx context.Context,
	userID string,
	idempotencyKey string,
	req httptransport.CreateSubmissionRequest,
) (httptransport.SubmissionResponse, error) {
	photos := make([]commands.PhotoInput, 0, len(req.Photos))
	for _, photo := range req.Photos {
		photos = append(photos, commands.PhotoInput{
			URL:     photo.URL,
			Lat:     photo.Lat,
			Lng:     photo.Lng,
			TakenAt: photo.TakenAt,
		})
	}
	result, err := h.Submissions.CreateSubmission(ctx, commands.CreateSubmissionCommand{
		OwnerID:        userID,
		IdempotencyKey: idempotencyKey,
		CampaignID:     req.CampaignID,
		CheckpointID:   req.CheckpointID,
		Photos:         photos,
	})
	if err != nil {
		return httptransport.SubmissionResponse{}, err
	}
	response := mapSubmission(result.Submission)
	response.Replayed = result.Replayed
	return response, nil
}

func (h Handler) GetSubmissionHandler(ctx context.Context, submissionID string) (httptransport.SubmissionResponse, error) {
	submission, err := h.Queries.GetSubmission(ctx, submissionID)
	if err != nil {
		return httptransport.SubmissionResponse{}, err
	}
	return mapSubmission(submission), nil
}

func (h Handler) GetTraceHandler(ctx context.Context, submissionID string) (httptransport.TraceResponse, error) {
	steps, err := h.Queries.GetTrace(ctx, submissionID)
	if err != nil {
		return httptransport.TraceResponse{}, err
	}
	return httptransport.TraceResponse{
		SubmissionID: submissionID,
		Steps:        mapTrace(steps),
	}, nil
}

func mapSubmission(submission entities.Submission) httptransport.SubmissionResponse {
	return httptransport.SubmissionResponse{
		SubmissionID: submission.SubmissionID,
		CampaignID:   submission.CampaignID,
		CheckpointID: submission.CheckpointID,
		OwnerID:      submission.OwnerID,
		QuestType:    string(submission.QuestType),
		Status:       string(submission.Status),
		Confidence:   submission.Confidence,
		Trace:        mapTrace(submission.Trace),
		CreatedAt:    submission.CreatedAt,
		UpdatedAt:    submission.UpdatedAt,
	}
}

func mapTrace(steps []entities.TraceStep) []httptransport.TraceStepResponse {
	items := make([]httptransport.TraceStepResponse, 0, len(steps))
	for _, step := range steps {
		items = append(items, httptransport.TraceStepResponse{
			Kind:       string(step.Kind),
			Name:       step.Name,
			Passed:     step.Passed,
			Detail:     step.Detail,
			RecordedAt: step.RecordedAt,
		})
	}
	return items
}
