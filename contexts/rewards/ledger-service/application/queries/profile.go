package queries

import (
	"context"

	"taskproof/contexts/rewards/ledger-service/domain/entities"
	"taskproof/contexts/rewards/ledger-service/ports"
)

type ProfileQueries struct {
	Profiles ports.ProfileRepository
}

func (q ProfileQueries) GetProfile(ctx context.Context, validatorID string) (entities.ValidatorProfile, error) {
	return q.Profiles.GetProfile(ctx, validatorID)
}
