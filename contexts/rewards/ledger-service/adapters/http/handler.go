package httpadapter

import (
	"context"
	"log/slog"

	"taskproof/contexts/rewards/ledger-service/application/queries"
	httptransport "taskproof/contexts/rewards/ledger-service/transport/http"
)

type Handler struct {
	Profiles queries.ProfileQueries
	Logger   *slog.Logger
}

func (h Handler) GetProfileHandler(ctx context.Context, validatorID string) (httptransport.ProfileResponse, error) {
	profile, err := h.Profiles.GetProfile(ctx, validatorID)
	if err != nil {
		return httptransport.ProfileResponse{}, err
	}
	return httptransport.ProfileResponse{
		ValidatorID:          profile.ValidatorID,
		Diamonds:             profile.Diamonds,
		Tickets:              profile.Tickets,
		ValidationsCompleted: profile.ValidationsCompleted,
		TrustedNetwork:       profile.TrustedNetwork,
	}, nil
}
