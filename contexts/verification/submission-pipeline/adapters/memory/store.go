package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"taskproof/contexts/verification/submission-pipeline/domain/entities"
	dErrors "taskproof/contexts/verification/submission-pipeline/domain/errors"
	"taskproof/contexts/verification/submission-pipeline/ports"
	"taskproof/internal/shared/events"
)

// Store is the in-memory adapter used by tests and local bootstrap. It
// implements the same ports as the Postgres repository.
type Store struct {
	mu          sync.RWMutex
	submissions map[string]entities.Submission
	campaigns   map[string]ports.CampaignProjection
	checkpoints map[string][]entities.Checkpoint
	enrollments map[string]string
	idempotency map[string]ports.IdempotencyRecord
	outbox      []ports.OutboxMessage
	published   map[string]time.Time
	dedup       map[string]string
}

func NewStore() *Store {
	return &Store{
		submissions: make(map[string]entities.Submission),
		campaigns:   make(map[string]ports.CampaignProjection),
		checkpoints: make(map[string][]entities.Checkpoint),
		enrollments: make(map[string]string),
		idempotency: make(map[string]ports.IdempotencyRecord),
		published:   make(map[string]time.Time),
		dedup:       make(map[string]string),
	}
}

func (s *Store) SeedCampaign(campaign ports.CampaignProjection, checkpoints ...entities.Checkpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[campaign.CampaignID] = campaign
	s.checkpoints[campaign.CampaignID] = append([]entities.Checkpoint(nil), checkpoints...)
}

func (s *Store) CreateSubmission(_ context.Context, submission entities.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions[submission.SubmissionID] = cloneSubmission(submission)
	return nil
}

func (s *Store) GetSubmission(_ context.Context, submissionID string) (entities.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	submission, ok := s.submissions[submissionID]
	if !ok {
		return entities.Submission{}, dErrors.ErrSubmissionNotFound
	}
	return cloneSubmission(submission), nil
}

func (s *Store) ApplyVerification(_ context.Context, submission entities.Submission, expectStatus entities.SubmissionStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.submissions[submission.SubmissionID]
	if !ok {
		return false, dErrors.ErrSubmissionNotFound
	}
	if current.Status != expectStatus {
		return false, nil
	}
	s.submissions[submission.SubmissionID] = cloneSubmission(submission)
	return true, nil
}

func (s *Store) ListByStatus(_ context.Context, status entities.SubmissionStatus, limit int) ([]entities.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Submission, 0)
	for _, submission := range s.submissions {
		if submission.Status == status {
			items = append(items, cloneSubmission(submission))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) GetCampaign(_ context.Context, campaignID string) (ports.CampaignProjection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	campaign, ok := s.campaigns[campaignID]
	if !ok {
		return ports.CampaignProjection{}, dErrors.ErrCampaignNotFound
	}
	return campaign, nil
}

func (s *Store) ListCheckpoints(_ context.Context, campaignID string) ([]entities.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entities.Checkpoint(nil), s.checkpoints[campaignID]...), nil
}

func (s *Store) GetEnrolledSelfie(_ context.Context, ownerID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	url, ok := s.enrollments[ownerID]
	return url, ok, nil
}

func (s *Store) SaveEnrolledSelfie(_ context.Context, ownerID string, photoURL string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.enrollments[ownerID]; !ok {
		s.enrollments[ownerID] = photoURL
	}
	return nil
}

func (s *Store) GetIdempotency(_ context.Context, key string) (ports.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.idempotency[key]
	return record, ok, nil
}

func (s *Store) PutIdempotency(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.idempotency[record.Key]; ok {
		return dErrors.ErrIdempotencyConflict
	}
	s.idempotency[record.Key] = record
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, event events.Envelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = append(s.outbox, ports.OutboxMessage{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      payload,
		CreatedAt:    event.OccurredAt,
	})
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pending := make([]ports.OutboxMessage, 0)
	for _, message := range s.outbox {
		if _, done := s.published[message.OutboxID]; done {
			continue
		}
		pending = append(pending, message)
		if limit > 0 && len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published[outboxID] = publishedAt
	return nil
}

func (s *Store) ReserveEvent(_ context.Context, eventID string, payloadHash string, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dedup[eventID]; ok {
		return false, nil
	}
	s.dedup[eventID] = payloadHash
	return true, nil
}

func cloneSubmission(submission entities.Submission) entities.Submission {
	clone := submission
	clone.Photos = append([]entities.Photo(nil), submission.Photos...)
	clone.Trace = append([]entities.TraceStep(nil), submission.Trace...)
	if submission.Confidence != nil {
		confidence := *submission.Confidence
		clone.Confidence = &confidence
	}
	return clone
}
