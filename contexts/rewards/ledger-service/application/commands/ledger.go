package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"taskproof/contexts/rewards/ledger-service/application"
	"taskproof/contexts/rewards/ledger-service/domain/entities"
	dErrors "taskproof/contexts/rewards/ledger-service/domain/errors"
	"taskproof/contexts/rewards/ledger-service/ports"
	"taskproof/internal/shared/events"
)

const (
	TopicRewardCredited   = "reward.credited"
	TopicSettlementIntent = "reward.settlement_intent"
)

// LedgerUseCase applies reward mutations. The method set doubles as the
// reward and penalty contracts the verification and integrity contexts
// consume through their own ports.
type LedgerUseCase struct {
	Profiles ports.ProfileRepository
	Outbox   ports.OutboxWriter
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Logger   *slog.Logger
}

// CreditVoteParticipation grants the flat participation diamond for one
// genuine jury vote.
func (uc LedgerUseCase) CreditVoteParticipation(ctx context.Context, eventID string, validatorID string) error {
	applied, err := uc.Profiles.ApplyEntry(ctx, entities.LedgerEntry{
		EventID:       eventID,
		ValidatorID:   validatorID,
		Kind:          entities.EntryVoteParticipation,
		DiamondsDelta: 1,
		CreatedAt:     uc.Clock.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("credit vote participation: %w", err)
	}
	uc.logApplied(applied, "vote_participation", validatorID)
	return nil
}

// CompleteValidation bumps the validator's completed count when a jury
// they sat on reaches consensus.
func (uc LedgerUseCase) CompleteValidation(ctx context.Context, eventID string, validatorID string) error {
	applied, err := uc.Profiles.ApplyEntry(ctx, entities.LedgerEntry{
		EventID:        eventID,
		ValidatorID:    validatorID,
		Kind:           entities.EntryValidationCompleted,
		ValidationsInc: 1,
		CreatedAt:      uc.Clock.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("complete validation: %w", err)
	}
	uc.logApplied(applied, "validation_completed", validatorID)
	return nil
}

// DebitDiamonds applies an audit penalty. The stored balance floors at
// zero.
func (uc LedgerUseCase) DebitDiamonds(ctx context.Context, eventID string, validatorID string, amount int) error {
	if amount <= 0 {
		return dErrors.ErrInvalidAmount
	}
	applied, err := uc.Profiles.ApplyEntry(ctx, entities.LedgerEntry{
		EventID:       eventID,
		ValidatorID:   validatorID,
		Kind:          entities.EntryAuditPenalty,
		DiamondsDelta: -amount,
		CreatedAt:     uc.Clock.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("debit diamonds: %w", err)
	}
	uc.logApplied(applied, "audit_penalty", validatorID)
	return nil
}

// DebitTrustedNetworkTickets takes tickets from the validator and every
// member of their trusted network in a single transaction.
func (uc LedgerUseCase) DebitTrustedNetworkTickets(ctx context.Context, eventID string, validatorID string, amount int) error {
	if amount <= 0 {
		return dErrors.ErrInvalidAmount
	}
	network, err := uc.Profiles.GetTrustedNetwork(ctx, validatorID)
	if err != nil {
		return fmt.Errorf("load trusted network: %w", err)
	}
	members := append([]string{validatorID}, network...)

	applied, err := uc.Profiles.ApplyNetworkDebit(ctx, eventID, members, amount, uc.Clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("debit trusted network: %w", err)
	}
	uc.logApplied(applied, "network_penalty", validatorID)
	return nil
}

// CreditOwnerReward grants the campaign ticket reward after an approval
// and stages the settlement intent for the payout pipeline.
func (uc LedgerUseCase) CreditOwnerReward(ctx context.Context, eventID string, ownerID string, submissionID string, tickets int) error {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return dErrors.ErrProfileNotFound
	}
	if tickets <= 0 {
		tickets = 1
	}

	applied, err := uc.Profiles.ApplyEntry(ctx, entities.LedgerEntry{
		EventID:      eventID,
		ValidatorID:  ownerID,
		Kind:         entities.EntryOwnerReward,
		TicketsDelta: tickets,
		CreatedAt:    uc.Clock.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("credit owner reward: %w", err)
	}
	if !applied {
		return nil
	}

	now := uc.Clock.Now().UTC()
	for _, topic := range []string{TopicRewardCredited, TopicSettlementIntent} {
		event, err := events.New(
			uc.IDGen.NewID(),
			topic,
			"ledger-service",
			"data.owner_id",
			ownerID,
			now,
			map[string]any{
				"owner_id":      ownerID,
				"submission_id": submissionID,
				"tickets":       tickets,
			},
		)
		if err != nil {
			return fmt.Errorf("build %s event: %w", topic, err)
		}
		if err := uc.Outbox.AppendOutbox(ctx, event); err != nil {
			return fmt.Errorf("append %s to outbox: %w", topic, err)
		}
	}

	application.Logger(uc.Logger).Info("owner reward credited",
		"event", "owner_reward_credited",
		"module", "rewards/ledger-service",
		"layer", "application",
		"owner_id", ownerID,
		"tickets", tickets,
	)
	return nil
}

func (uc LedgerUseCase) logApplied(applied bool, kind string, validatorID string) {
	logger := application.Logger(uc.Logger)
	if applied {
		logger.Info("ledger entry applied",
			"event", "ledger_applied",
			"module", "rewards/ledger-service",
			"layer", "application",
			"kind", kind,
			"validator_id", validatorID,
		)
		return
	}
	logger.Info("ledger entry replayed",
		"event", "ledger_replayed",
		"module", "rewards/ledger-service",
		"layer", "application",
		"kind", kind,
		"validator_id", validatorID,
	)
}
