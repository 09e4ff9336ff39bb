package auditinjection_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	auditinjection "taskproof/contexts/integrity/audit-injection"
	"taskproof/contexts/integrity/audit-injection/application/commands"
	"taskproof/contexts/integrity/audit-injection/application/workers"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type seqIDGen struct{ counter atomic.Int64 }

func (g *seqIDGen) NewID() string {
	return fmt.Sprintf("id-%d", g.counter.Add(1))
}

type penaltyCall struct {
	EventID     string
	ValidatorID string
	Amount      int
	Network     bool
}

type recordingLedger struct {
	mu      sync.Mutex
	debits  []penaltyCall
	credits []string
	seen    map[string]bool
}

func newRecordingLedger() *recordingLedger {
	return &recordingLedger{seen: make(map[string]bool)}
}

func (l *recordingLedger) CreditVoteParticipation(_ context.Context, eventID string, validatorID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen[eventID] {
		return nil
	}
	l.seen[eventID] = true
	l.credits = append(l.credits, validatorID)
	return nil
}

func (l *recordingLedger) DebitDiamonds(_ context.Context, eventID string, validatorID string, amount int) error {
	return l.record(eventID, validatorID, amount, false)
}

func (l *recordingLedger) DebitTrustedNetworkTickets(_ context.Context, eventID string, validatorID string, amount int) error {
	return l.record(eventID, validatorID, amount, true)
}

func (l *recordingLedger) record(eventID string, validatorID string, amount int, network bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen[eventID] {
		return nil
	}
	l.seen[eventID] = true
	l.debits = append(l.debits, penaltyCall{EventID: eventID, ValidatorID: validatorID, Amount: amount, Network: network})
	return nil
}

func queuedSource(id string) commands.AuditSource {
	return commands.AuditSource{
		SubmissionID: id,
		CampaignID:   "camp-1",
		QuestType:    "single_photo",
		PhotoURL:     "https://cdn.example.com/" + id + ".jpg",
		SubmittedAt:  time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC),
	}
}

func newTestModule(ledger *recordingLedger, probability float64) (auditinjection.Module, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	module := auditinjection.NewInMemoryModule(ledger, clock, &seqIDGen{}, probability, "seed-1", nil)
	return module, clock
}

func TestMaybeAssignRespectsProbability(t *testing.T) {
	ctx := context.Background()

	never, _ := newTestModule(newRecordingLedger(), 0)
	if _, ok, err := never.Audits.MaybeAssign(ctx, "val-1", queuedSource("sub-1")); err != nil || ok {
		t.Fatalf("probability 0 must never assign, ok=%v err=%v", ok, err)
	}

	always, _ := newTestModule(newRecordingLedger(), 1.0)
	assignment, ok, err := always.Audits.MaybeAssign(ctx, "val-1", queuedSource("sub-1"))
	if err != nil || !ok {
		t.Fatalf("probability 1 must assign, ok=%v err=%v", ok, err)
	}
	if assignment.GroundTruth != "reject" {
		t.Fatalf("an unchanged photo pair must expect reject, got %s", assignment.GroundTruth)
	}
	if len(assignment.PhotoURLs) != 2 || assignment.PhotoURLs[0] != assignment.PhotoURLs[1] {
		t.Fatalf("assignment must carry the source photo twice, got %v", assignment.PhotoURLs)
	}
	if assignment.PhotoURLs[0] != "https://cdn.example.com/sub-1.jpg" {
		t.Fatalf("assignment must be forged from the source item's own photo, got %s", assignment.PhotoURLs[0])
	}

	// Rebuilding the same queue hands back the same assignment.
	again, ok, err := always.Audits.MaybeAssign(ctx, "val-1", queuedSource("sub-1"))
	if err != nil || !ok {
		t.Fatalf("rebuild must assign, ok=%v err=%v", ok, err)
	}
	if again.AssignmentID != assignment.AssignmentID {
		t.Fatalf("rebuild must reuse the active assignment: %s vs %s", again.AssignmentID, assignment.AssignmentID)
	}
	if always.Store.ActiveAssignments() != 1 {
		t.Fatalf("expected a single active assignment, got %d", always.Store.ActiveAssignments())
	}
}

func TestAssignmentsRollPerQueueItem(t *testing.T) {
	ctx := context.Background()
	module, _ := newTestModule(newRecordingLedger(), 1.0)

	first, ok, err := module.Audits.MaybeAssign(ctx, "val-1", queuedSource("sub-1"))
	if err != nil || !ok {
		t.Fatalf("assign sub-1: ok=%v err=%v", ok, err)
	}
	second, ok, err := module.Audits.MaybeAssign(ctx, "val-1", queuedSource("sub-2"))
	if err != nil || !ok {
		t.Fatalf("assign sub-2: ok=%v err=%v", ok, err)
	}
	if first.AssignmentID == second.AssignmentID {
		t.Fatal("each queue item rolls on its own")
	}
	if second.PhotoURLs[0] != "https://cdn.example.com/sub-2.jpg" {
		t.Fatalf("second assignment must carry its own source photo, got %s", second.PhotoURLs[0])
	}
	if module.Store.ActiveAssignments() != 2 {
		t.Fatalf("expected two active assignments, got %d", module.Store.ActiveAssignments())
	}
}

func TestResolveVoteFallsThroughForUnknownItem(t *testing.T) {
	module, _ := newTestModule(newRecordingLedger(), 1.0)
	handled, err := module.Audits.ResolveVote(context.Background(), "val-1", "sub-genuine", "approve")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if handled {
		t.Fatal("unknown items must fall through to the genuine path")
	}
}

func failOnce(t *testing.T, module auditinjection.Module, validatorID string, sourceID string) {
	t.Helper()
	ctx := context.Background()
	assignment, ok, err := module.Audits.MaybeAssign(ctx, validatorID, queuedSource(sourceID))
	if err != nil || !ok {
		t.Fatalf("assign: ok=%v err=%v", ok, err)
	}
	// Approving an unchanged pair is always the wrong answer.
	handled, err := module.Audits.ResolveVote(ctx, validatorID, assignment.AssignmentID, "approve")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !handled {
		t.Fatal("audit vote must be intercepted")
	}
}

func TestPenaltyEscalationLadder(t *testing.T) {
	ledger := newRecordingLedger()
	module, _ := newTestModule(ledger, 1.0)

	failOnce(t, module, "val-1", "sub-1")
	failOnce(t, module, "val-1", "sub-2")
	failOnce(t, module, "val-1", "sub-3")
	// The ladder reset after the network penalty; this starts over.
	failOnce(t, module, "val-1", "sub-4")

	if len(ledger.debits) != 4 {
		t.Fatalf("expected 4 penalty calls, got %d", len(ledger.debits))
	}
	expected := []penaltyCall{
		{ValidatorID: "val-1", Amount: 1, Network: false},
		{ValidatorID: "val-1", Amount: 5, Network: false},
		{ValidatorID: "val-1", Amount: 1, Network: true},
		{ValidatorID: "val-1", Amount: 1, Network: false},
	}
	for i, want := range expected {
		got := ledger.debits[i]
		if got.ValidatorID != want.ValidatorID || got.Amount != want.Amount || got.Network != want.Network {
			t.Fatalf("call %d: expected %+v, got %+v", i, want, got)
		}
	}
	if module.Store.ActiveAssignments() != 0 {
		t.Fatal("resolved assignments must be removed")
	}
}

func TestCorrectAnswerEarnsDiamondAndKeepsLadder(t *testing.T) {
	ledger := newRecordingLedger()
	module, _ := newTestModule(ledger, 1.0)
	ctx := context.Background()

	failOnce(t, module, "val-1", "sub-1")

	assignment, ok, err := module.Audits.MaybeAssign(ctx, "val-1", queuedSource("sub-2"))
	if err != nil || !ok {
		t.Fatalf("assign: ok=%v err=%v", ok, err)
	}
	if _, err := module.Audits.ResolveVote(ctx, "val-1", assignment.AssignmentID, "reject"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(ledger.credits) != 1 || ledger.credits[0] != "val-1" {
		t.Fatalf("a correct answer earns one diamond, got credits %v", ledger.credits)
	}

	// The correct answer does not clear the ladder; the next failure is
	// tier two.
	failOnce(t, module, "val-1", "sub-3")
	last := ledger.debits[len(ledger.debits)-1]
	if last.Amount != 5 || last.Network {
		t.Fatalf("expected tier two after an intervening pass, got %+v", last)
	}
}

func TestDeterministicAssignment(t *testing.T) {
	ctx := context.Background()
	first, _ := newTestModule(newRecordingLedger(), 0.5)
	second, _ := newTestModule(newRecordingLedger(), 0.5)

	for i := 0; i < 20; i++ {
		sourceID := fmt.Sprintf("sub-%d", i)
		_, ok1, err1 := first.Audits.MaybeAssign(ctx, "val-1", queuedSource(sourceID))
		_, ok2, err2 := second.Audits.MaybeAssign(ctx, "val-1", queuedSource(sourceID))
		if err1 != nil || err2 != nil {
			t.Fatalf("assign %s: %v %v", sourceID, err1, err2)
		}
		if ok1 != ok2 {
			t.Fatalf("roll for %s must be deterministic: %v vs %v", sourceID, ok1, ok2)
		}
	}
}

func TestExpirySweepRemovesStaleAssignments(t *testing.T) {
	ledger := newRecordingLedger()
	module, clock := newTestModule(ledger, 1.0)
	ctx := context.Background()

	if _, ok, _ := module.Audits.MaybeAssign(ctx, "val-1", queuedSource("sub-1")); !ok {
		t.Fatal("expected assignment")
	}
	clock.now = clock.now.Add(25 * time.Hour)

	sweeper := workers.ExpirySweeper{
		Assignments: module.Store,
		Clock:       clock,
	}
	removed, err := sweeper.RunOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one removal, got %d", removed)
	}
	if module.Store.ActiveAssignments() != 0 {
		t.Fatal("expired assignment must be gone")
	}
	if len(ledger.debits) != 0 || len(ledger.credits) != 0 {
		t.Fatal("expiry must not touch the ledger")
	}
}
