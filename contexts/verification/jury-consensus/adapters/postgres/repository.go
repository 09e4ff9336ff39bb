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

	"taskproof/contexts/verification/jury-consensus/domain/entities"
	dErrors "taskproof/contexts/verification/jury-consensus/domain/errors"
	"taskproof/contexts/verification/jury-consensus/ports"
	"taskproof/internal/shared/events"
)

// reviewSubmissionModel is the jury's projection of the submissions table
// owned by the pipeline. Only status and trace are ever written from here.
type reviewSubmissionModel struct {
	SubmissionID string    `gorm:"column:submission_id;primaryKey"`
	CampaignID   string    `gorm:"column:campaign_id"`
	OwnerID      string    `gorm:"column:owner_id"`
	QuestType    string    `gorm:"column:quest_type"`
	Photos       []byte    `gorm:"column:photos;type:jsonb"`
	Status       string    `gorm:"column:status"`
	Trace        []byte    `gorm:"column:trace;type:jsonb"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (reviewSubmissionModel) TableName() string { return "submissions" }

type voteModel struct {
	VoteID       string    `gorm:"column:vote_id;primaryKey"`
	SubmissionID string    `gorm:"column:submission_id;uniqueIndex:ux_votes_submission_validator"`
	ValidatorID  string    `gorm:"column:validator_id;uniqueIndex:ux_votes_submission_validator"`
	Decision     string    `gorm:"column:decision"`
	Note         string    `gorm:"column:note"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (voteModel) TableName() string { return "jury_votes" }

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload;type:jsonb"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at;index"`
}

func (outboxModel) TableName() string { return "jury_outbox" }

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetReviewSubmission(ctx context.Context, submissionID string) (entities.ReviewSubmission, error) {
	var model reviewSubmissionModel
	err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.ReviewSubmission{}, dErrors.ErrSubmissionNotFound
	}
	if err != nil {
		return entities.ReviewSubmission{}, fmt.Errorf("load submission for review: %w", err)
	}
	return fromReviewModel(model)
}

func (r *Repository) ListAwaitingReview(ctx context.Context, limit int) ([]entities.ReviewSubmission, error) {
	var models []reviewSubmissionModel
	err := r.db.WithContext(ctx).
		Where("status = ?", "needs_human_review").
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list submissions awaiting review: %w", err)
	}
	items := make([]entities.ReviewSubmission, 0, len(models))
	for _, model := range models {
		item, err := fromReviewModel(model)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *Repository) FinalizeSubmission(ctx context.Context, submissionID string, status string, steps []ports.JuryTraceStep, updatedAt time.Time) (bool, error) {
	won := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model reviewSubmissionModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("submission_id = ? AND status = ?", submissionID, "needs_human_review").
			First(&model).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lock submission: %w", err)
		}

		trace, err := appendTrace(model.Trace, steps)
		if err != nil {
			return err
		}
		result := tx.Model(&reviewSubmissionModel{}).
			Where("submission_id = ? AND status = ?", submissionID, "needs_human_review").
			Updates(map[string]any{
				"status":     status,
				"trace":      trace,
				"updated_at": updatedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("finalize submission: %w", result.Error)
		}
		won = result.RowsAffected > 0
		return nil
	})
	return won, err
}

func (r *Repository) AppendReviewTrace(ctx context.Context, submissionID string, steps []ports.JuryTraceStep, updatedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model reviewSubmissionModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("submission_id = ?", submissionID).
			First(&model).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dErrors.ErrSubmissionNotFound
		}
		if err != nil {
			return fmt.Errorf("lock submission: %w", err)
		}

		trace, err := appendTrace(model.Trace, steps)
		if err != nil {
			return err
		}
		err = tx.Model(&reviewSubmissionModel{}).
			Where("submission_id = ?", submissionID).
			Updates(map[string]any{
				"trace":      trace,
				"updated_at": updatedAt,
			}).Error
		if err != nil {
			return fmt.Errorf("append review trace: %w", err)
		}
		return nil
	})
}

func (r *Repository) RecordVote(ctx context.Context, vote entities.Vote) error {
	model := voteModel{
		VoteID:       vote.VoteID,
		SubmissionID: vote.SubmissionID,
		ValidatorID:  vote.ValidatorID,
		Decision:     string(vote.Decision),
		Note:         vote.Note,
		CreatedAt:    vote.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return dErrors.ErrDuplicateVote
		}
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

func (r *Repository) CountVotes(ctx context.Context, submissionID string) (entities.Tally, error) {
	type row struct {
		Decision string
		Total    int
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Select("decision, COUNT(*) AS total").
		Where("submission_id = ?", submissionID).
		Group("decision").
		Scan(&rows).Error
	if err != nil {
		return entities.Tally{}, fmt.Errorf("count votes: %w", err)
	}
	var tally entities.Tally
	for _, item := range rows {
		switch entities.VoteDecision(item.Decision) {
		case entities.VoteApprove:
			tally.Approvals = item.Total
		case entities.VoteReject:
			tally.Rejections = item.Total
		}
	}
	return tally, nil
}

func (r *Repository) ListVoters(ctx context.Context, submissionID string) ([]string, error) {
	var voters []string
	err := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Where("submission_id = ?", submissionID).
		Order("created_at ASC").
		Pluck("validator_id", &voters).Error
	if err != nil {
		return nil, fmt.Errorf("list voters: %w", err)
	}
	return voters, nil
}

func (r *Repository) ListVotedSubmissions(ctx context.Context, validatorID string) ([]string, error) {
	var submissionIDs []string
	err := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Where("validator_id = ?", validatorID).
		Pluck("submission_id", &submissionIDs).Error
	if err != nil {
		return nil, fmt.Errorf("list voted submissions: %w", err)
	}
	return submissionIDs, nil
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

func fromReviewModel(model reviewSubmissionModel) (entities.ReviewSubmission, error) {
	submission := entities.ReviewSubmission{
		SubmissionID: model.SubmissionID,
		CampaignID:   model.CampaignID,
		OwnerID:      model.OwnerID,
		QuestType:    model.QuestType,
		Status:       model.Status,
		CreatedAt:    model.CreatedAt,
	}
	if len(model.Photos) > 0 {
		var photos []struct {
			URL string `json:"URL"`
		}
		if err := json.Unmarshal(model.Photos, &photos); err != nil {
			return entities.ReviewSubmission{}, fmt.Errorf("decode photos: %w", err)
		}
		for _, photo := range photos {
			submission.PhotoURLs = append(submission.PhotoURLs, photo.URL)
		}
	}
	return submission, nil
}

func appendTrace(existing []byte, steps []ports.JuryTraceStep) ([]byte, error) {
	var trace []json.RawMessage
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &trace); err != nil {
			return nil, fmt.Errorf("decode trace: %w", err)
		}
	}
	for _, step := range steps {
		encoded, err := json.Marshal(step)
		if err != nil {
			return nil, fmt.Errorf("encode trace step: %w", err)
		}
		trace = append(trace, encoded)
	}
	return json.Marshal(trace)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
