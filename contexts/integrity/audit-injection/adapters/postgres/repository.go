package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskproof/contexts/integrity/audit-injection/domain/entities"
	"taskproof/contexts/integrity/audit-injection/ports"
	"taskproof/internal/shared/events"
)

type assignmentModel struct {
	AssignmentID string    `gorm:"column:assignment_id;primaryKey"`
	ValidatorID  string    `gorm:"column:validator_id;index"`
	SubmissionID string    `gorm:"column:submission_id"`
	GroundTruth  string    `gorm:"column:ground_truth"`
	CampaignID   string    `gorm:"column:campaign_id"`
	QuestType    string    `gorm:"column:quest_type"`
	PhotoURLs    []byte    `gorm:"column:photo_urls;type:jsonb"`
	SubmittedAt  time.Time `gorm:"column:submitted_at"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	ExpiresAt    time.Time `gorm:"column:expires_at;index"`
}

func (assignmentModel) TableName() string { return "audit_assignments" }

type failureModel struct {
	ValidatorID      string    `gorm:"column:validator_id;primaryKey"`
	ConsecutiveFails int       `gorm:"column:consecutive_fails"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (failureModel) TableName() string { return "audit_failure_states" }

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload;type:jsonb"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at;index"`
}

func (outboxModel) TableName() string { return "audit_outbox" }

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) SaveAssignment(ctx context.Context, assignment entities.AuditAssignment) error {
	photos, err := json.Marshal(assignment.PhotoURLs)
	if err != nil {
		return fmt.Errorf("encode photo urls: %w", err)
	}
	model := assignmentModel{
		AssignmentID: assignment.AssignmentID,
		ValidatorID:  assignment.ValidatorID,
		SubmissionID: assignment.SubmissionID,
		GroundTruth:  assignment.GroundTruth,
		CampaignID:   assignment.CampaignID,
		QuestType:    assignment.QuestType,
		PhotoURLs:    photos,
		SubmittedAt:  assignment.SubmittedAt,
		CreatedAt:    assignment.CreatedAt,
		ExpiresAt:    assignment.ExpiresAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

func (r *Repository) GetAssignmentForValidator(ctx context.Context, validatorID string, assignmentID string) (entities.AuditAssignment, bool, error) {
	var model assignmentModel
	err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND validator_id = ?", assignmentID, validatorID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.AuditAssignment{}, false, nil
	}
	if err != nil {
		return entities.AuditAssignment{}, false, fmt.Errorf("load assignment: %w", err)
	}
	assignment, err := fromAssignmentModel(model)
	if err != nil {
		return entities.AuditAssignment{}, false, err
	}
	return assignment, true, nil
}

func (r *Repository) GetAssignmentBySource(ctx context.Context, validatorID string, submissionID string) (entities.AuditAssignment, bool, error) {
	var model assignmentModel
	err := r.db.WithContext(ctx).
		Where("validator_id = ? AND submission_id = ?", validatorID, submissionID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.AuditAssignment{}, false, nil
	}
	if err != nil {
		return entities.AuditAssignment{}, false, fmt.Errorf("load assignment by source: %w", err)
	}
	assignment, err := fromAssignmentModel(model)
	if err != nil {
		return entities.AuditAssignment{}, false, err
	}
	return assignment, true, nil
}

func (r *Repository) DeleteAssignment(ctx context.Context, assignmentID string) error {
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Delete(&assignmentModel{}).Error
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

func (r *Repository) ListExpired(ctx context.Context, now time.Time, limit int) ([]entities.AuditAssignment, error) {
	var models []assignmentModel
	err := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list expired assignments: %w", err)
	}
	items := make([]entities.AuditAssignment, 0, len(models))
	for _, model := range models {
		item, err := fromAssignmentModel(model)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *Repository) GetFailureState(ctx context.Context, validatorID string) (entities.FailureState, error) {
	var model failureModel
	err := r.db.WithContext(ctx).
		Where("validator_id = ?", validatorID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.FailureState{ValidatorID: validatorID}, nil
	}
	if err != nil {
		return entities.FailureState{}, fmt.Errorf("load failure state: %w", err)
	}
	return entities.FailureState{
		ValidatorID:      model.ValidatorID,
		ConsecutiveFails: model.ConsecutiveFails,
		UpdatedAt:        model.UpdatedAt,
	}, nil
}

func (r *Repository) SaveFailureState(ctx context.Context, state entities.FailureState) error {
	model := failureModel{
		ValidatorID:      state.ValidatorID,
		ConsecutiveFails: state.ConsecutiveFails,
		UpdatedAt:        state.UpdatedAt,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "validator_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"consecutive_fails", "updated_at"}),
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("save failure state: %w", err)
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

func fromAssignmentModel(model assignmentModel) (entities.AuditAssignment, error) {
	assignment := entities.AuditAssignment{
		AssignmentID: model.AssignmentID,
		ValidatorID:  model.ValidatorID,
		SubmissionID: model.SubmissionID,
		GroundTruth:  model.GroundTruth,
		CampaignID:   model.CampaignID,
		QuestType:    model.QuestType,
		SubmittedAt:  model.SubmittedAt,
		CreatedAt:    model.CreatedAt,
		ExpiresAt:    model.ExpiresAt,
	}
	if len(model.PhotoURLs) > 0 {
		if err := json.Unmarshal(model.PhotoURLs, &assignment.PhotoURLs); err != nil {
			return entities.AuditAssignment{}, fmt.Errorf("decode photo urls: %w", err)
		}
	}
	return assignment, nil
}
