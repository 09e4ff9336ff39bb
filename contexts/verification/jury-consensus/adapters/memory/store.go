package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"taskproof/contexts/verification/jury-consensus/domain/entities"
	dErrors "taskproof/contexts/verification/jury-consensus/domain/errors"
	"taskproof/contexts/verification/jury-consensus/ports"
	"taskproof/internal/shared/events"
)

type storedSubmission struct {
	entities.ReviewSubmission
	Trace []ports.JuryTraceStep
}

// Store is the in-memory adapter for jury tests and local bootstrap.
type Store struct {
	mu          sync.RWMutex
	submissions map[string]storedSubmission
	votes       map[string]entities.Vote
	voteKeys    map[string]bool
	outbox      []ports.OutboxMessage
	published   map[string]time.Time
}

func NewStore() *Store {
	return &Store{
		submissions: make(map[string]storedSubmission),
		votes:       make(map[string]entities.Vote),
		voteKeys:    make(map[string]bool),
		published:   make(map[string]time.Time),
	}
}

func (s *Store) SeedSubmission(submission entities.ReviewSubmission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions[submission.SubmissionID] = storedSubmission{ReviewSubmission: submission}
}

// SubmissionStatus exposes the stored status for assertions.
func (s *Store) SubmissionStatus(submissionID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.submissions[submissionID].Status
}

// SubmissionTrace exposes the appended jury steps for assertions.
func (s *Store) SubmissionTrace(submissionID string) []ports.JuryTraceStep {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ports.JuryTraceStep(nil), s.submissions[submissionID].Trace...)
}

func (s *Store) GetReviewSubmission(_ context.Context, submissionID string) (entities.ReviewSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.submissions[submissionID]
	if !ok {
		return entities.ReviewSubmission{}, dErrors.ErrSubmissionNotFound
	}
	return stored.ReviewSubmission, nil
}

func (s *Store) ListAwaitingReview(_ context.Context, limit int) ([]entities.ReviewSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.ReviewSubmission, 0)
	for _, stored := range s.submissions {
		if stored.Status == "needs_human_review" {
			items = append(items, stored.ReviewSubmission)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) FinalizeSubmission(_ context.Context, submissionID string, status string, steps []ports.JuryTraceStep, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.submissions[submissionID]
	if !ok || stored.Status != "needs_human_review" {
		return false, nil
	}
	stored.Status = status
	stored.Trace = append(stored.Trace, steps...)
	s.submissions[submissionID] = stored
	return true, nil
}

func (s *Store) AppendReviewTrace(_ context.Context, submissionID string, steps []ports.JuryTraceStep, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.submissions[submissionID]
	if !ok {
		return dErrors.ErrSubmissionNotFound
	}
	stored.Trace = append(stored.Trace, steps...)
	s.submissions[submissionID] = stored
	return nil
}

func (s *Store) RecordVote(_ context.Context, vote entities.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := vote.SubmissionID + "|" + vote.ValidatorID
	if s.voteKeys[key] {
		return dErrors.ErrDuplicateVote
	}
	s.voteKeys[key] = true
	s.votes[vote.VoteID] = vote
	return nil
}

func (s *Store) CountVotes(_ context.Context, submissionID string) (entities.Tally, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var tally entities.Tally
	for _, vote := range s.votes {
		if vote.SubmissionID != submissionID {
			continue
		}
		if vote.Decision == entities.VoteApprove {
			tally.Approvals++
		} else {
			tally.Rejections++
		}
	}
	return tally, nil
}

func (s *Store) ListVoters(_ context.Context, submissionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	votes := make([]entities.Vote, 0)
	for _, vote := range s.votes {
		if vote.SubmissionID == submissionID {
			votes = append(votes, vote)
		}
	}
	sort.Slice(votes, func(i, j int) bool { return votes[i].CreatedAt.Before(votes[j].CreatedAt) })
	voters := make([]string, 0, len(votes))
	for _, vote := range votes {
		voters = append(voters, vote.ValidatorID)
	}
	return voters, nil
}

func (s *Store) ListVotedSubmissions(_ context.Context, validatorID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	submissionIDs := make([]string, 0)
	for _, vote := range s.votes {
		if vote.ValidatorID == validatorID {
			submissionIDs = append(submissionIDs, vote.SubmissionID)
		}
	}
	return submissionIDs, nil
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
