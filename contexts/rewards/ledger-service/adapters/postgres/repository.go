package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskproof/contexts/rewards/ledger-service/domain/entities"
	dErrors "taskproof/contexts/rewards/ledger-service/domain/errors"
	"taskproof/contexts/rewards/ledger-service/ports"
	"taskproof/internal/shared/events"
)

type profileModel struct {
	ValidatorID          string    `gorm:"column:validator_id;primaryKey"`
	Diamonds             int       `gorm:"column:diamonds"`
	Tickets              int       `gorm:"column:tickets"`
	ValidationsCompleted int       `gorm:"column:validations_completed"`
	CreatedAt            time.Time `gorm:"column:created_at"`
	UpdatedAt            time.Time `gorm:"column:updated_at"`
}

func (profileModel) TableName() string { return "validator_profiles" }

type ledgerEntryModel struct {
	EventID        string    `gorm:"column:event_id;primaryKey"`
	ValidatorID    string    `gorm:"column:validator_id;index"`
	Kind           string    `gorm:"column:kind"`
	DiamondsDelta  int       `gorm:"column:diamonds_delta"`
	TicketsDelta   int       `gorm:"column:tickets_delta"`
	ValidationsInc int       `gorm:"column:validations_inc"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (ledgerEntryModel) TableName() string { return "reward_ledger_entries" }

type networkMemberModel struct {
	ValidatorID string `gorm:"column:validator_id;primaryKey"`
	MemberID    string `gorm:"column:member_id;primaryKey"`
}

func (networkMemberModel) TableName() string { return "trusted_network_members" }

// campaignRewardModel projects the campaigns table for ticket amounts.
type campaignRewardModel struct {
	CampaignID    string `gorm:"column:campaign_id;primaryKey"`
	RewardTickets int    `gorm:"column:reward_tickets"`
}

func (campaignRewardModel) TableName() string { return "campaigns" }

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload;type:jsonb"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at;index"`
}

func (outboxModel) TableName() string { return "reward_outbox" }

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (eventDedupModel) TableName() string { return "reward_event_dedup" }

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetProfile(ctx context.Context, validatorID string) (entities.ValidatorProfile, error) {
	var model profileModel
	err := r.db.WithContext(ctx).
		Where("validator_id = ?", validatorID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.ValidatorProfile{}, dErrors.ErrProfileNotFound
	}
	if err != nil {
		return entities.ValidatorProfile{}, fmt.Errorf("load profile: %w", err)
	}

	network, err := r.GetTrustedNetwork(ctx, validatorID)
	if err != nil {
		return entities.ValidatorProfile{}, err
	}
	return entities.ValidatorProfile{
		ValidatorID:          model.ValidatorID,
		Diamonds:             model.Diamonds,
		Tickets:              model.Tickets,
		ValidationsCompleted: model.ValidationsCompleted,
		TrustedNetwork:       network,
		CreatedAt:            model.CreatedAt,
		UpdatedAt:            model.UpdatedAt,
	}, nil
}

func (r *Repository) ApplyEntry(ctx context.Context, entry entities.LedgerEntry) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := insertEntry(tx, entry)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		if err := applyDeltas(tx, entry.ValidatorID, entry.DiamondsDelta, entry.TicketsDelta, entry.ValidationsInc, entry.CreatedAt); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

func (r *Repository) ApplyNetworkDebit(ctx context.Context, eventID string, memberIDs []string, tickets int, at time.Time) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// One marker entry reserves the event for the whole debit; the
		// per-member entries reference it by suffix.
		inserted, err := insertEntry(tx, entities.LedgerEntry{
			EventID:     eventID,
			ValidatorID: memberIDs[0],
			Kind:        entities.EntryNetworkPenalty,
			CreatedAt:   at,
		})
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		for _, memberID := range memberIDs {
			if err := applyDeltas(tx, memberID, 0, -tickets, 0, at); err != nil {
				return err
			}
		}
		applied = true
		return nil
	})
	return applied, err
}

func (r *Repository) GetTrustedNetwork(ctx context.Context, validatorID string) ([]string, error) {
	var members []string
	err := r.db.WithContext(ctx).
		Model(&networkMemberModel{}).
		Where("validator_id = ?", validatorID).
		Order("member_id ASC").
		Pluck("member_id", &members).Error
	if err != nil {
		return nil, fmt.Errorf("list trusted network: %w", err)
	}
	return members, nil
}

func (r *Repository) GetRewardTickets(ctx context.Context, campaignID string) (int, error) {
	var model campaignRewardModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load campaign reward: %w", err)
	}
	return model.RewardTickets, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, event events.Envelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode outbox payload: %w", err)
	}
	model := outboxModel{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      payload,
		CreatedAt:    event.OccurredAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("insert outbox row: %w", err)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	var models []outboxModel
	err := r.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list pending outbox: %w", err)
	}
	items := make([]ports.OutboxMessage, 0, len(models))
	for _, model := range models {
		items = append(items, ports.OutboxMessage{
			OutboxID:     model.OutboxID,
			EventType:    model.EventType,
			PartitionKey: model.PartitionKey,
			Payload:      model.Payload,
			CreatedAt:    model.CreatedAt,
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Update("published_at", publishedAt).Error
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

func (r *Repository) ReserveEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) (bool, error) {
	model := eventDedupModel{EventID: eventID, PayloadHash: payloadHash, ExpiresAt: expiresAt}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(&model)
	if result.Error != nil {
		return false, fmt.Errorf("reserve event: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func insertEntry(tx *gorm.DB, entry entities.LedgerEntry) (bool, error) {
	model := ledgerEntryModel{
		EventID:        entry.EventID,
		ValidatorID:    entry.ValidatorID,
		Kind:           string(entry.Kind),
		DiamondsDelta:  entry.DiamondsDelta,
		TicketsDelta:   entry.TicketsDelta,
		ValidationsInc: entry.ValidationsInc,
		CreatedAt:      entry.CreatedAt,
	}
	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&model)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return false, nil
		}
		return false, fmt.Errorf("insert ledger entry: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func applyDeltas(tx *gorm.DB, validatorID string, diamonds int, tickets int, validations int, at time.Time) error {
	profile := profileModel{
		ValidatorID:          validatorID,
		Diamonds:             maxInt(diamonds, 0),
		Tickets:              maxInt(tickets, 0),
		ValidationsCompleted: validations,
		CreatedAt:            at,
		UpdatedAt:            at,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "validator_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"diamonds":              gorm.Expr("GREATEST(validator_profiles.diamonds + ?, 0)", diamonds),
			"tickets":               gorm.Expr("GREATEST(validator_profiles.tickets + ?, 0)", tickets),
			"validations_completed": gorm.Expr("validator_profiles.validations_completed + ?", validations),
			"updated_at":            at,
		}),
	}).Create(&profile).Error
	if err != nil {
		return fmt.Errorf("apply profile deltas: %w", err)
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
