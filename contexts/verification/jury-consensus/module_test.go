package juryconsensus_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	juryconsensus "taskproof/contexts/verification/jury-consensus"
	"taskproof/contexts/verification/jury-consensus/application/commands"
	"taskproof/contexts/verification/jury-consensus/domain/entities"
	dErrors "taskproof/contexts/verification/jury-consensus/domain/errors"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type seqIDGen struct{ counter atomic.Int64 }

func (g *seqIDGen) NewID() string {
	return fmt.Sprintf("id-%d", g.counter.Add(1))
}

// recordingLedger counts idempotent reward calls by event id.
type recordingLedger struct {
	mu            sync.Mutex
	participation map[string]string
	completions   map[string]string
}

func newRecordingLedger() *recordingLedger {
	return &recordingLedger{
		participation: make(map[string]string),
		completions:   make(map[string]string),
	}
}

func (l *recordingLedger) CreditVoteParticipation(_ context.Context, eventID string, validatorID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.participation[eventID] = validatorID
	return nil
}

func (l *recordingLedger) CompleteValidation(_ context.Context, eventID string, validatorID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completions[eventID] = validatorID
	return nil
}

func newTestModule(ledger *recordingLedger) juryconsensus.Module {
	clock := fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	module := juryconsensus.NewInMemoryModule(nil, ledger, clock, &seqIDGen{}, nil)
	module.Store.SeedSubmission(entities.ReviewSubmission{
		SubmissionID: "sub-1",
		CampaignID:   "camp-1",
		OwnerID:      "owner-1",
		QuestType:    "single_photo",
		PhotoURLs:    []string{"https://cdn.example.com/p.jpg"},
		Status:       "needs_human_review",
		CreatedAt:    clock.now.Add(-time.Hour),
	})
	return module
}

func castVote(t *testing.T, module juryconsensus.Module, validatorID string, decision entities.VoteDecision) commands.CastVoteResult {
	t.Helper()
	result, err := module.Votes.CastVote(context.Background(), commands.CastVoteCommand{
		ValidatorID: validatorID,
		ItemID:      "sub-1",
		Decision:    decision,
	})
	if err != nil {
		t.Fatalf("vote by %s: %v", validatorID, err)
	}
	return result
}

func TestMajorityApprovesAtQuorum(t *testing.T) {
	ledger := newRecordingLedger()
	module := newTestModule(ledger)

	castVote(t, module, "val-1", entities.VoteApprove)
	castVote(t, module, "val-2", entities.VoteReject)
	final := castVote(t, module, "val-3", entities.VoteApprove)

	if !final.Finalized || final.FinalStatus != "approved" {
		t.Fatalf("expected approval at quorum, got %+v", final)
	}
	if got := module.Store.SubmissionStatus("sub-1"); got != "approved" {
		t.Fatalf("expected stored status approved, got %s", got)
	}
	if len(ledger.participation) != 3 {
		t.Fatalf("expected 3 participation credits, got %d", len(ledger.participation))
	}
	if len(ledger.completions) != 3 {
		t.Fatalf("expected 3 validation completions, got %d", len(ledger.completions))
	}

	trace := module.Store.SubmissionTrace("sub-1")
	if len(trace) != 1 || trace[0].Name != "jury_consensus" || !trace[0].Passed {
		t.Fatalf("expected a passing jury_consensus trace step, got %+v", trace)
	}
}

func TestMajorityRejectsAtQuorum(t *testing.T) {
	ledger := newRecordingLedger()
	module := newTestModule(ledger)

	castVote(t, module, "val-1", entities.VoteReject)
	castVote(t, module, "val-2", entities.VoteApprove)
	final := castVote(t, module, "val-3", entities.VoteReject)

	if !final.Finalized || final.FinalStatus != "rejected" {
		t.Fatalf("expected rejection at quorum, got %+v", final)
	}

	pending, _ := module.Store.ListPendingOutbox(context.Background(), 20)
	topics := map[string]int{}
	for _, message := range pending {
		topics[message.EventType]++
	}
	if topics[commands.TopicConsensusResolved] != 1 {
		t.Fatalf("expected one consensus.resolved event, got %v", topics)
	}
	if topics[commands.TopicSubmissionRejected] != 1 {
		t.Fatalf("expected one submission.rejected event, got %v", topics)
	}
	if topics[commands.TopicSubmissionApproved] != 0 {
		t.Fatalf("rejected submission must not emit approval, got %v", topics)
	}
}

func TestVoteAfterFinalizationRejected(t *testing.T) {
	ledger := newRecordingLedger()
	module := newTestModule(ledger)

	castVote(t, module, "val-1", entities.VoteApprove)
	castVote(t, module, "val-2", entities.VoteApprove)
	castVote(t, module, "val-3", entities.VoteApprove)

	_, err := module.Votes.CastVote(context.Background(), commands.CastVoteCommand{
		ValidatorID: "val-4",
		ItemID:      "sub-1",
		Decision:    entities.VoteApprove,
	})
	if !errors.Is(err, dErrors.ErrSubmissionNotReviewable) {
		t.Fatalf("expected not-reviewable error after quorum, got %v", err)
	}
	if len(ledger.completions) != 3 {
		t.Fatalf("late vote must not earn a completion, got %d", len(ledger.completions))
	}
}

func TestSelfReviewForbidden(t *testing.T) {
	module := newTestModule(newRecordingLedger())

	_, err := module.Votes.CastVote(context.Background(), commands.CastVoteCommand{
		ValidatorID: "owner-1",
		ItemID:      "sub-1",
		Decision:    entities.VoteApprove,
	})
	if !errors.Is(err, dErrors.ErrSelfReviewForbidden) {
		t.Fatalf("expected self-review error, got %v", err)
	}
}

func TestDuplicateVoteRejected(t *testing.T) {
	ledger := newRecordingLedger()
	module := newTestModule(ledger)

	castVote(t, module, "val-1", entities.VoteApprove)
	_, err := module.Votes.CastVote(context.Background(), commands.CastVoteCommand{
		ValidatorID: "val-1",
		ItemID:      "sub-1",
		Decision:    entities.VoteReject,
	})
	if !errors.Is(err, dErrors.ErrDuplicateVote) {
		t.Fatalf("expected duplicate vote error, got %v", err)
	}
	if len(ledger.participation) != 1 {
		t.Fatalf("duplicate vote must not earn a second credit, got %d", len(ledger.participation))
	}
}

func TestQueueExcludesOwnerAndPriorVoters(t *testing.T) {
	module := newTestModule(newRecordingLedger())
	module.Store.SeedSubmission(entities.ReviewSubmission{
		SubmissionID: "sub-2",
		CampaignID:   "camp-1",
		OwnerID:      "owner-2",
		QuestType:    "single_photo",
		Status:       "needs_human_review",
		CreatedAt:    time.Date(2026, 3, 1, 11, 30, 0, 0, time.UTC),
	})

	// owner-1 owns sub-1, so only sub-2 may appear.
	queue, err := module.Queues.BuildQueue(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("build queue: %v", err)
	}
	if len(queue) != 1 || queue[0].ItemID != "sub-2" {
		t.Fatalf("expected only sub-2 for owner-1, got %+v", queue)
	}

	castVote(t, module, "val-1", entities.VoteApprove)
	queue, err = module.Queues.BuildQueue(context.Background(), "val-1")
	if err != nil {
		t.Fatalf("build queue: %v", err)
	}
	for _, item := range queue {
		if item.ItemID == "sub-1" {
			t.Fatal("queue must exclude submissions the validator already voted on")
		}
	}
}

func TestAuditVoteIntercepted(t *testing.T) {
	ledger := newRecordingLedger()
	clock := fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	audits := &interceptingInjector{itemID: "audit-item-1"}
	module := juryconsensus.NewInMemoryModule(audits, ledger, clock, &seqIDGen{}, nil)

	result, err := module.Votes.CastVote(context.Background(), commands.CastVoteCommand{
		ValidatorID: "val-1",
		ItemID:      "audit-item-1",
		Decision:    entities.VoteApprove,
	})
	if err != nil {
		t.Fatalf("audit vote: %v", err)
	}
	if !result.Audit {
		t.Fatal("expected audit interception")
	}
	// Audit rewards and penalties flow through the integrity context's own
	// ledger port, never through the jury's.
	if len(ledger.participation) != 0 {
		t.Fatal("intercepted votes must not touch the jury ledger")
	}
}

type interceptingInjector struct {
	itemID string
}

func (i *interceptingInjector) MaybeInject(_ context.Context, _ string, queue []entities.QueueItem) ([]entities.QueueItem, error) {
	return queue, nil
}

func (i *interceptingInjector) TryResolveVote(_ context.Context, _ string, itemID string, _ entities.VoteDecision) (bool, error) {
	return itemID == i.itemID, nil
}
