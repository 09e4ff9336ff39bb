package httpadapter

import (
	"context"
	"log/slog"

	"taskproof/contexts/verification/jury-consensus/application/commands"
	"taskproof/contexts/verification/jury-consensus/application/queries"
	"taskproof/contexts/verification/jury-consensus/domain/entities"
	httptransport "taskproof/contexts/verification/jury-consensus/transport/http"
)

type Handler struct {
	Votes  commands.VoteUseCase
	Queues queries.QueueUseCase
	Logger *slog.Logger
}

// CastVoteHandler accepts a vote on a queue item. The response carries no
// hint of whether the item was a genuine submission or an audit task.
func (h Handler) CastVoteHandler(
	ctx context.Context,
	validatorID string,
	itemID string,
	req httptransport.CastVoteRequest,
) (httptransport.VoteResponse, error) {
	result, err := h.Votes.CastVote(ctx, commands.CastVoteCommand{
		ValidatorID: validatorID,
		ItemID:      itemID,
		Decision:    entities.VoteDecision(req.Decision),
		Note:        req.Note,
	})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return httptransport.VoteResponse{
		ItemID:   itemID,
		Decision: string(result.Vote.Decision),
		VotedAt:  result.Vote.CreatedAt,
	}, nil
}

func (h Handler) ReviewQueueHandler(ctx context.Context, validatorID string) (httptransport.QueueResponse, error) {
	items, err := h.Queues.BuildQueue(ctx, validatorID)
	if err != nil {
		return httptransport.QueueResponse{}, err
	}
	response := httptransport.QueueResponse{
		Items: make([]httptransport.QueueItemResponse, 0, len(items)),
	}
	for _, item := range items {
		response.Items = append(response.Items, httptransport.QueueItemResponse{
			ItemID:      item.ItemID,
			CampaignID:  item.CampaignID,
			QuestType:   item.QuestType,
			PhotoURLs:   item.PhotoURLs,
			SubmittedAt: item.SubmittedAt,
		})
	}
	return response, nil
}
