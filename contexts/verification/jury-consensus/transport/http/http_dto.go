package http

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CastVoteRequest struct {
	Decision string `json:"decision"`
	Note     string `json:"note,omitempty"`
}

type VoteResponse struct {
	ItemID   string    `json:"item_id"`
	Decision string    `json:"decision"`
	VotedAt  time.Time `json:"voted_at"`
}

type QueueItemResponse struct {
	ItemID      string    `json:"item_id"`
	CampaignID  string    `json:"campaign_id"`
	QuestType   string    `json:"quest_type"`
	PhotoURLs   []string  `json:"photo_urls"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type QueueResponse struct {
	Items []QueueItemResponse `json:"items"`
}
