package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"taskproof/contexts/integrity/audit-injection/domain/entities"
	"taskproof/contexts/integrity/audit-injection/ports"
	"taskproof/internal/shared/events"
)

// Store is the in-memory adapter for audit tests and local bootstrap.
type Store struct {
	mu          sync.RWMutex
	assignments map[string]entities.AuditAssignment
	failures    map[string]entities.FailureState
	outbox      []ports.OutboxMessage
	published   map[string]time.Time
}

func NewStore() *Store {
	return &Store{
		assignments: make(map[string]entities.AuditAssignment),
		failures:    make(map[string]entities.FailureState),
		published:   make(map[string]time.Time),
	}
}

// ActiveAssignments exposes the live assignment count for assertions.
func (s *Store) ActiveAssignments() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.assignments)
}

func (s *Store) SaveAssignment(_ context.Context, assignment entities.AuditAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[assignment.AssignmentID] = assignment
	return nil
}

func (s *Store) GetAssignmentForValidator(_ context.Context, validatorID string, assignmentID string) (entities.AuditAssignment, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assignment, ok := s.assignments[assignmentID]
	if !ok || assignment.ValidatorID != validatorID {
		return entities.AuditAssignment{}, false, nil
	}
	return assignment, true, nil
}

func (s *Store) GetAssignmentBySource(_ context.Context, validatorID string, submissionID string) (entities.AuditAssignment, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, assignment := range s.assignments {
		if assignment.ValidatorID == validatorID && assignment.SubmissionID == submissionID {
			return assignment, true, nil
		}
	}
	return entities.AuditAssignment{}, false, nil
}

func (s *Store) DeleteAssignment(_ context.Context, assignmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assignments, assignmentID)
	return nil
}

func (s *Store) ListExpired(_ context.Context, now time.Time, limit int) ([]entities.AuditAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	expired := make([]entities.AuditAssignment, 0)
	for _, assignment := range s.assignments {
		if assignment.ExpiresAt.Before(now) {
			expired = append(expired, assignment)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ExpiresAt.Before(expired[j].ExpiresAt) })
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

func (s *Store) GetFailureState(_ context.Context, validatorID string) (entities.FailureState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.failures[validatorID]
	if !ok {
		return entities.FailureState{ValidatorID: validatorID}, nil
	}
	return state, nil
}

func (s *Store) SaveFailureState(_ context.Context, state entities.FailureState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[state.ValidatorID] = state
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
