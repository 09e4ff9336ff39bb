package bootstrap

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	auditinjection "taskproof/contexts/integrity/audit-injection"
	juryentities "taskproof/contexts/verification/jury-consensus/domain/entities"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type seqIDGen struct{ counter atomic.Int64 }

func (g *seqIDGen) NewID() string {
	return fmt.Sprintf("id-%d", g.counter.Add(1))
}

type noopLedger struct{}

func (noopLedger) CreditVoteParticipation(context.Context, string, string) error   { return nil }
func (noopLedger) DebitDiamonds(context.Context, string, string, int) error        { return nil }
func (noopLedger) DebitTrustedNetworkTickets(context.Context, string, string, int) error {
	return nil
}

func genuineItem(id string) juryentities.QueueItem {
	return juryentities.QueueItem{
		ItemID:      id,
		CampaignID:  "camp-1",
		QuestType:   "single_photo",
		PhotoURLs:   []string{"https://cdn.example.com/" + id + ".jpg"},
		SubmittedAt: time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
	}
}

func TestQueueInjectorSplicesBehindEachSource(t *testing.T) {
	clock := fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	module := auditinjection.NewInMemoryModule(noopLedger{}, clock, &seqIDGen{}, 1.0, "seed-1", nil)
	injector := auditQueueInjector{audits: module.Audits}

	queue := []juryentities.QueueItem{genuineItem("sub-1"), genuineItem("sub-2")}
	out, err := injector.MaybeInject(context.Background(), "val-1", queue)
	if err != nil {
		t.Fatalf("inject: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("probability 1 doubles the queue, got %d items", len(out))
	}
	for i, sourceID := range []string{"sub-1", "sub-2"} {
		genuine, audit := out[2*i], out[2*i+1]
		if genuine.ItemID != sourceID {
			t.Fatalf("genuine item %s displaced, got %s", sourceID, genuine.ItemID)
		}
		if audit.ItemID == sourceID {
			t.Fatal("audit item must carry its own id")
		}
		want := "https://cdn.example.com/" + sourceID + ".jpg"
		if len(audit.PhotoURLs) != 2 || audit.PhotoURLs[0] != want || audit.PhotoURLs[1] != want {
			t.Fatalf("audit item behind %s must repeat that item's photo, got %v", sourceID, audit.PhotoURLs)
		}
	}

	// A rebuild reuses the active assignments instead of minting new ids.
	again, err := injector.MaybeInject(context.Background(), "val-1", queue)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if len(again) != 4 || again[1].ItemID != out[1].ItemID || again[3].ItemID != out[3].ItemID {
		t.Fatalf("rebuild must produce the same queue, got %+v", again)
	}
}

func TestQueueInjectorSkipsItemsWithoutPhotos(t *testing.T) {
	clock := fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	module := auditinjection.NewInMemoryModule(noopLedger{}, clock, &seqIDGen{}, 1.0, "seed-1", nil)
	injector := auditQueueInjector{audits: module.Audits}

	bare := juryentities.QueueItem{ItemID: "sub-bare", CampaignID: "camp-1"}
	out, err := injector.MaybeInject(context.Background(), "val-1", []juryentities.QueueItem{bare})
	if err != nil {
		t.Fatalf("inject: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("an item without photos cannot seed an audit task, got %d items", len(out))
	}
}

func TestNormalizeAddr(t *testing.T) {
	cases := map[string]string{
		"":      ":8080",
		"9000":  ":9000",
		":7070": ":7070",
	}
	for in, want := range cases {
		if got := normalizeAddr(in); got != want {
			t.Fatalf("normalizeAddr(%q) = %q, want %q", in, got, want)
		}
	}
}
