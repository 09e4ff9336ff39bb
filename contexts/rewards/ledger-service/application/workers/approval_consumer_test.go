package workers_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"taskproof/contexts/rewards/ledger-service/adapters/memory"
	"taskproof/contexts/rewards/ledger-service/application/commands"
	"taskproof/contexts/rewards/ledger-service/application/workers"
	"taskproof/internal/shared/events"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type seqIDGen struct{ counter atomic.Int64 }

func (g *seqIDGen) NewID() string {
	return fmt.Sprintf("id-%d", g.counter.Add(1))
}

// capturingSubscriber hands the registered handler back to the test so
// events can be delivered synchronously.
type capturingSubscriber struct {
	handler func(context.Context, events.Envelope) error
}

func (s *capturingSubscriber) Subscribe(_ context.Context, _ string, _ string, handler func(context.Context, events.Envelope) error) error {
	s.handler = handler
	return nil
}

func TestApprovalCreditsOwnerOnceAcrossPaths(t *testing.T) {
	store := memory.NewStore()
	store.SeedCampaignReward("camp-1", 3)

	clock := fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	ledger := commands.LedgerUseCase{
		Profiles: store,
		Outbox:   store,
		Clock:    clock,
		IDGen:    &seqIDGen{},
	}

	subscriber := &capturingSubscriber{}
	consumer := workers.ApprovalConsumer{
		Ledger:     ledger,
		Campaigns:  store,
		Subscriber: subscriber,
		Dedup:      store,
		Clock:      clock,
	}
	ctx := context.Background()
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("start consumer: %v", err)
	}

	payload := map[string]any{
		"submission_id": "sub-1",
		"campaign_id":   "camp-1",
		"owner_id":      "owner-1",
	}

	// The pipeline and the jury both announce the approval with distinct
	// event ids; the owner credit must still apply once.
	pipelineEvent, err := events.New("evt-pipeline", "submission.approved", "submission-pipeline", "data.submission_id", "sub-1", clock.Now(), payload)
	if err != nil {
		t.Fatalf("build pipeline event: %v", err)
	}
	juryEvent, err := events.New("evt-jury", "submission.approved", "jury-consensus", "data.submission_id", "sub-1", clock.Now(), payload)
	if err != nil {
		t.Fatalf("build jury event: %v", err)
	}

	for _, event := range []events.Envelope{pipelineEvent, juryEvent, pipelineEvent} {
		if err := subscriber.handler(ctx, event); err != nil {
			t.Fatalf("handle %s: %v", event.EventID, err)
		}
	}

	profile, err := store.GetProfile(ctx, "owner-1")
	if err != nil {
		t.Fatalf("get owner profile: %v", err)
	}
	if profile.Tickets != 3 {
		t.Fatalf("expected a single 3-ticket credit, got %d tickets", profile.Tickets)
	}
}
