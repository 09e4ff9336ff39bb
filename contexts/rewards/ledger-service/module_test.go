package ledgerservice_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	ledgerservice "taskproof/contexts/rewards/ledger-service"
	"taskproof/contexts/rewards/ledger-service/application/commands"
	"taskproof/contexts/rewards/ledger-service/domain/entities"
	"taskproof/internal/shared/events"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type seqIDGen struct{ counter atomic.Int64 }

func (g *seqIDGen) NewID() string {
	return fmt.Sprintf("id-%d", g.counter.Add(1))
}

func newTestModule() ledgerservice.Module {
	clock := fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return ledgerservice.NewInMemoryModule(clock, &seqIDGen{}, nil)
}

func TestParticipationCreditIdempotent(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := module.Ledger.CreditVoteParticipation(ctx, "vote-sub1-val1", "val-1"); err != nil {
			t.Fatalf("credit attempt %d: %v", i, err)
		}
	}

	profile, err := module.Queries.GetProfile(ctx, "val-1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.Diamonds != 1 {
		t.Fatalf("replayed credit must apply once, got %d diamonds", profile.Diamonds)
	}
}

func TestDebitClampsAtZero(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()

	if err := module.Ledger.CreditVoteParticipation(ctx, "vote-1", "val-1"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := module.Ledger.DebitDiamonds(ctx, "penalty-1", "val-1", 5); err != nil {
		t.Fatalf("debit: %v", err)
	}

	profile, _ := module.Queries.GetProfile(ctx, "val-1")
	if profile.Diamonds != 0 {
		t.Fatalf("balance must floor at zero, got %d", profile.Diamonds)
	}
}

func TestTrustedNetworkDebitHitsAllMembers(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()

	module.Store.SeedProfile(entities.ValidatorProfile{
		ValidatorID:    "val-1",
		Tickets:        3,
		TrustedNetwork: []string{"val-2", "val-3"},
	})
	module.Store.SeedProfile(entities.ValidatorProfile{ValidatorID: "val-2", Tickets: 2})
	module.Store.SeedProfile(entities.ValidatorProfile{ValidatorID: "val-3"})

	if err := module.Ledger.DebitTrustedNetworkTickets(ctx, "audit-fail-1", "val-1", 1); err != nil {
		t.Fatalf("network debit: %v", err)
	}
	// Replay must be a no-op.
	if err := module.Ledger.DebitTrustedNetworkTickets(ctx, "audit-fail-1", "val-1", 1); err != nil {
		t.Fatalf("replayed network debit: %v", err)
	}

	expect := map[string]int{"val-1": 2, "val-2": 1, "val-3": 0}
	for validatorID, tickets := range expect {
		profile, err := module.Queries.GetProfile(ctx, validatorID)
		if err != nil {
			t.Fatalf("get profile %s: %v", validatorID, err)
		}
		if profile.Tickets != tickets {
			t.Fatalf("%s: expected %d tickets, got %d", validatorID, tickets, profile.Tickets)
		}
	}
}

func TestCompleteValidationCounts(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()

	if err := module.Ledger.CompleteValidation(ctx, "consensus-sub1-val1", "val-1"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := module.Ledger.CompleteValidation(ctx, "consensus-sub2-val1", "val-1"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	profile, _ := module.Queries.GetProfile(ctx, "val-1")
	if profile.ValidationsCompleted != 2 {
		t.Fatalf("expected 2 completed validations, got %d", profile.ValidationsCompleted)
	}
}

func TestOwnerRewardEmitsSettlementIntentOnce(t *testing.T) {
	module := newTestModule()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := module.Ledger.CreditOwnerReward(ctx, "submission-approved-sub-1", "owner-1", "sub-1", 3); err != nil {
			t.Fatalf("credit owner attempt %d: %v", i, err)
		}
	}

	profile, _ := module.Queries.GetProfile(ctx, "owner-1")
	if profile.Tickets != 3 {
		t.Fatalf("expected 3 tickets, got %d", profile.Tickets)
	}

	pending, _ := module.Store.ListPendingOutbox(ctx, 10)
	topics := map[string]int{}
	for _, message := range pending {
		topics[message.EventType]++

		var event events.Envelope
		if err := json.Unmarshal(message.Payload, &event); err != nil {
			t.Fatalf("decode outbox payload: %v", err)
		}
		if event.PartitionKey != "owner-1" {
			t.Fatalf("expected partition by owner, got %s", event.PartitionKey)
		}
	}
	if topics[commands.TopicRewardCredited] != 1 || topics[commands.TopicSettlementIntent] != 1 {
		t.Fatalf("expected one credited and one settlement event, got %v", topics)
	}
}
