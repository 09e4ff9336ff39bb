package http

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PhotoRequest struct {
	URL     string    `json:"url"`
	Lat     *float64  `json:"lat,omitempty"`
	Lng     *float64  `json:"lng,omitempty"`
	TakenAt time.Time `json:"taken_at"`
}

type CreateSubmissionRequest struct {
	CampaignID   string         `json:"campaign_id"`
	CheckpointID string         `json:"checkpoint_id,omitempty"`
	Photos       []PhotoRequest `json:"photos"`
}

type TraceStepResponse struct {
	Kind       string    `json:"kind"`
	Name       string    `json:"name"`
	Passed     bool      `json:"passed"`
	Detail     string    `json:"detail"`
	RecordedAt time.Time `json:"recorded_at"`
}

type SubmissionResponse struct {
	SubmissionID string              `json:"submission_id"`
	CampaignID   string              `json:"campaign_id"`
	CheckpointID string              `json:"checkpoint_id,omitempty"`
	OwnerID      string              `json:"owner_id"`
	QuestType    string              `json:"quest_type"`
	Status       string              `json:"status"`
	Confidence   *int                `json:"confidence,omitempty"`
	Trace        []TraceStepResponse `json:"trace"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	Replayed     bool                `json:"replayed,omitempty"`
}

type TraceResponse struct {
	SubmissionID string              `json:"submission_id"`
	Steps        []TraceStepResponse `json:"steps"`
}
