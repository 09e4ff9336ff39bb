package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"taskproof/contexts/rewards/ledger-service/domain/entities"
	dErrors "taskproof/contexts/rewards/ledger-service/domain/errors"
	"taskproof/contexts/rewards/ledger-service/ports"
	"taskproof/internal/shared/events"
)

// Store is the in-memory adapter for ledger tests and local bootstrap.
type Store struct {
	mu        sync.RWMutex
	profiles  map[string]entities.ValidatorProfile
	entries   map[string]entities.LedgerEntry
	networks  map[string][]string
	campaigns map[string]int
	outbox    []ports.OutboxMessage
	published map[string]time.Time
	dedup     map[string]string
}

func NewStore() *Store {
	return &Store{
		profiles:  make(map[string]entities.ValidatorProfile),
		entries:   make(map[string]entities.LedgerEntry),
		networks:  make(map[string][]string),
		campaigns: make(map[string]int),
		published: make(map[string]time.Time),
		dedup:     make(map[string]string),
	}
}

func (s *Store) SeedProfile(profile entities.ValidatorProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.ValidatorID] = profile
	if len(profile.TrustedNetwork) > 0 {
		s.networks[profile.ValidatorID] = append([]string(nil), profile.TrustedNetwork...)
	}
}

func (s *Store) SeedCampaignReward(campaignID string, tickets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[campaignID] = tickets
}

func (s *Store) GetProfile(_ context.Context, validatorID string) (entities.ValidatorProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[validatorID]
	if !ok {
		return entities.ValidatorProfile{}, dErrors.ErrProfileNotFound
	}
	profile.TrustedNetwork = append([]string(nil), s.networks[validatorID]...)
	return profile, nil
}

func (s *Store) ApplyEntry(_ context.Context, entry entities.LedgerEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.EventID]; ok {
		return false, nil
	}
	s.entries[entry.EventID] = entry
	s.applyDeltas(entry.ValidatorID, entry.DiamondsDelta, entry.TicketsDelta, entry.ValidationsInc, entry.CreatedAt)
	return true, nil
}

func (s *Store) ApplyNetworkDebit(_ context.Context, eventID string, memberIDs []string, tickets int, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[eventID]; ok {
		return false, nil
	}
	s.entries[eventID] = entities.LedgerEntry{
		EventID:     eventID,
		ValidatorID: memberIDs[0],
		Kind:        entities.EntryNetworkPenalty,
		CreatedAt:   at,
	}
	for _, memberID := range memberIDs {
		s.applyDeltas(memberID, 0, -tickets, 0, at)
	}
	return true, nil
}

func (s *Store) applyDeltas(validatorID string, diamonds int, tickets int, validations int, at time.Time) {
	profile, ok := s.profiles[validatorID]
	if !ok {
		profile = entities.ValidatorProfile{ValidatorID: validatorID, CreatedAt: at}
	}
	profile.Diamonds += diamonds
	if profile.Diamonds < 0 {
		profile.Diamonds = 0
	}
	profile.Tickets += tickets
	if profile.Tickets < 0 {
		profile.Tickets = 0
	}
	profile.ValidationsCompleted += validations
	profile.UpdatedAt = at
	s.profiles[validatorID] = profile
}

func (s *Store) GetTrustedNetwork(_ context.Context, validatorID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.networks[validatorID]...), nil
}

func (s *Store) GetRewardTickets(_ context.Context, campaignID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.campaigns[campaignID], nil
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
