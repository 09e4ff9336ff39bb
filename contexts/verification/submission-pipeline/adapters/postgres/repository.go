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

	"taskproof/contexts/verification/submission-pipeline/domain/entities"
	dErrors "taskproof/contexts/verification/submission-pipeline/domain/errors"
	"taskproof/contexts/verification/submission-pipeline/ports"
	"taskproof/internal/shared/events"
)

type submissionModel struct {
	SubmissionID string    `gorm:"column:submission_id;primaryKey"`
	CampaignID   string    `gorm:"column:campaign_id;index"`
	CheckpointID string    `gorm:"column:checkpoint_id"`
	OwnerID      string    `gorm:"column:owner_id;index"`
	QuestType    string    `gorm:"column:quest_type"`
	Photos       []byte    `gorm:"column:photos;type:jsonb"`
	BeforeAt     time.Time `gorm:"column:before_at"`
	AfterAt      time.Time `gorm:"column:after_at"`
	Status       string    `gorm:"column:status;index"`
	Confidence   *int      `gorm:"column:confidence"`
	Trace        []byte    `gorm:"column:trace;type:jsonb"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (submissionModel) TableName() string { return "submissions" }

type campaignModel struct {
	CampaignID    string `gorm:"column:campaign_id;primaryKey"`
	QuestType     string `gorm:"column:quest_type"`
	Rules         string `gorm:"column:rules"`
	Status        string `gorm:"column:status"`
	RewardTickets int    `gorm:"column:reward_tickets"`
}

func (campaignModel) TableName() string { return "campaigns" }

type checkpointModel struct {
	CheckpointID string  `gorm:"column:checkpoint_id;primaryKey"`
	CampaignID   string  `gorm:"column:campaign_id;index"`
	Name         string  `gorm:"column:name"`
	Lat          float64 `gorm:"column:lat"`
	Lng          float64 `gorm:"column:lng"`
	RadiusMeters float64 `gorm:"column:radius_meters"`
}

func (checkpointModel) TableName() string { return "checkpoints" }

type enrollmentModel struct {
	OwnerID    string    `gorm:"column:owner_id;primaryKey"`
	PhotoURL   string    `gorm:"column:photo_url"`
	EnrolledAt time.Time `gorm:"column:enrolled_at"`
}

func (enrollmentModel) TableName() string { return "identity_enrollments" }

type idempotencyModel struct {
	Key          string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash  string    `gorm:"column:request_hash"`
	SubmissionID string    `gorm:"column:submission_id"`
	ExpiresAt    time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string { return "submission_idempotency" }

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload;type:jsonb"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at;index"`
}

func (outboxModel) TableName() string { return "submission_outbox" }

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	PayloadHash string    `gorm:"column:payload_hash"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (eventDedupModel) TableName() string { return "submission_event_dedup" }

// Repository is the gorm-backed adapter for every pipeline port that
// touches Postgres.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateSubmission(ctx context.Context, submission entities.Submission) error {
	model, err := toSubmissionModel(submission)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (r *Repository) GetSubmission(ctx context.Context, submissionID string) (entities.Submission, error) {
	var model submissionModel
	err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.Submission{}, dErrors.ErrSubmissionNotFound
	}
	if err != nil {
		return entities.Submission{}, fmt.Errorf("load submission: %w", err)
	}
	return fromSubmissionModel(model)
}

func (r *Repository) ApplyVerification(ctx context.Context, submission entities.Submission, expectStatus entities.SubmissionStatus) (bool, error) {
	trace, err := json.Marshal(submission.Trace)
	if err != nil {
		return false, fmt.Errorf("encode trace: %w", err)
	}
	result := r.db.WithContext(ctx).
		Model(&submissionModel{}).
		Where("submission_id = ? AND status = ?", submission.SubmissionID, string(expectStatus)).
		Updates(map[string]any{
			"status":     string(submission.Status),
			"confidence": submission.Confidence,
			"trace":      trace,
			"updated_at": submission.UpdatedAt,
		})
	if result.Error != nil {
		return false, fmt.Errorf("apply verification: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *Repository) ListByStatus(ctx context.Context, status entities.SubmissionStatus, limit int) ([]entities.Submission, error) {
	var models []submissionModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list submissions by status: %w", err)
	}
	items := make([]entities.Submission, 0, len(models))
	for _, model := range models {
		item, err := fromSubmissionModel(model)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *Repository) GetCampaign(ctx context.Context, campaignID string) (ports.CampaignProjection, error) {
	var model campaignModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ports.CampaignProjection{}, dErrors.ErrCampaignNotFound
	}
	if err != nil {
		return ports.CampaignProjection{}, fmt.Errorf("load campaign: %w", err)
	}
	return ports.CampaignProjection{
		CampaignID:    model.CampaignID,
		QuestType:     entities.QuestType(model.QuestType),
		Rules:         model.Rules,
		Status:        model.Status,
		RewardTickets: model.RewardTickets,
	}, nil
}

func (r *Repository) ListCheckpoints(ctx context.Context, campaignID string) ([]entities.Checkpoint, error) {
	var models []checkpointModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	items := make([]entities.Checkpoint, 0, len(models))
	for _, model := range models {
		items = append(items, entities.Checkpoint{
			CheckpointID: model.CheckpointID,
			CampaignID:   model.CampaignID,
			Name:         model.Name,
			Lat:          model.Lat,
			Lng:          model.Lng,
			RadiusMeters: model.RadiusMeters,
		})
	}
	return items, nil
}

func (r *Repository) GetEnrolledSelfie(ctx context.Context, ownerID string) (string, bool, error) {
	var model enrollmentModel
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load enrollment: %w", err)
	}
	return model.PhotoURL, true, nil
}

func (r *Repository) SaveEnrolledSelfie(ctx context.Context, ownerID string, photoURL string, enrolledAt time.Time) error {
	model := enrollmentModel{OwnerID: ownerID, PhotoURL: photoURL, EnrolledAt: enrolledAt}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}},
			DoNothing: true,
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("save enrollment: %w", err)
	}
	return nil
}

func (r *Repository) GetIdempotency(ctx context.Context, key string) (ports.IdempotencyRecord, bool, error) {
	var model idempotencyModel
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ports.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return ports.IdempotencyRecord{}, false, fmt.Errorf("load idempotency record: %w", err)
	}
	return ports.IdempotencyRecord{
		Key:          model.Key,
		RequestHash:  model.RequestHash,
		SubmissionID: model.SubmissionID,
		ExpiresAt:    model.ExpiresAt,
	}, true, nil
}

func (r *Repository) PutIdempotency(ctx context.Context, record ports.IdempotencyRecord) error {
	model := idempotencyModel{
		Key:          record.Key,
		RequestHash:  record.RequestHash,
		SubmissionID: record.SubmissionID,
		ExpiresAt:    record.ExpiresAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return dErrors.ErrIdempotencyConflict
		}
		return fmt.Errorf("insert idempotency record: %w", err)
	}
	return nil
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

func toSubmissionModel(submission entities.Submission) (submissionModel, error) {
	photos, err := json.Marshal(submission.Photos)
	if err != nil {
		return submissionModel{}, fmt.Errorf("encode photos: %w", err)
	}
	trace, err := json.Marshal(submission.Trace)
	if err != nil {
		return submissionModel{}, fmt.Errorf("encode trace: %w", err)
	}
	return submissionModel{
		SubmissionID: submission.SubmissionID,
		CampaignID:   submission.CampaignID,
		CheckpointID: submission.CheckpointID,
		OwnerID:      submission.OwnerID,
		QuestType:    string(submission.QuestType),
		Photos:       photos,
		BeforeAt:     submission.BeforeAt,
		AfterAt:      submission.AfterAt,
		Status:       string(submission.Status),
		Confidence:   submission.Confidence,
		Trace:        trace,
		CreatedAt:    submission.CreatedAt,
		UpdatedAt:    submission.UpdatedAt,
	}, nil
}

func fromSubmissionModel(model submissionModel) (entities.Submission, error) {
	submission := entities.Submission{
		SubmissionID: model.SubmissionID,
		CampaignID:   model.CampaignID,
		CheckpointID: model.CheckpointID,
		OwnerID:      model.OwnerID,
		QuestType:    entities.QuestType(model.QuestType),
		BeforeAt:     model.BeforeAt,
		AfterAt:      model.AfterAt,
		Status:       entities.SubmissionStatus(model.Status),
		Confidence:   model.Confidence,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
	if len(model.Photos) > 0 {
		if err := json.Unmarshal(model.Photos, &submission.Photos); err != nil {
			return entities.Submission{}, fmt.Errorf("decode photos: %w", err)
		}
	}
	if len(model.Trace) > 0 {
		if err := json.Unmarshal(model.Trace, &submission.Trace); err != nil {
			return entities.Submission{}, fmt.Errorf("decode trace: %w", err)
		}
	}
	return submission, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
