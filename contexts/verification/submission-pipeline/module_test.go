package submissionpipeline_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	submissionpipeline "taskproof/contexts/verification/submission-pipeline"
	"taskproof/contexts/verification/submission-pipeline/application/commands"
	"taskproof/contexts/verification/submission-pipeline/domain/entities"
	dErrors "taskproof/contexts/verification/submission-pipeline/domain/errors"
	"taskproof/contexts/verification/submission-pipeline/ports"
)

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type seqIDGen struct{ counter atomic.Int64 }

func (g *seqIDGen) NewID() string {
	return fmt.Sprintf("id-%d", g.counter.Add(1))
}

type fakeVision struct {
	complianceAnswer ports.VisionAnswer
	samePersonAnswer ports.VisionAnswer
	err              error
}

func (v fakeVision) CheckCompliance(context.Context, string, string) (ports.VisionAnswer, error) {
	return v.complianceAnswer, v.err
}

func (v fakeVision) DescribeScene(context.Context, string) (ports.SceneLabels, error) {
	return ports.SceneLabels{Subject: "trash pile", Background: "park path"}, v.err
}

func (v fakeVision) ScoreLabels(_ context.Context, photoURL string, _ []string) (map[string]float64, error) {
	if v.err != nil {
		return nil, v.err
	}
	// Before photo shows the subject strongly, after photo barely.
	if photoURL == "https://cdn.example.com/before.jpg" {
		return map[string]float64{"trash pile": 0.8, "park path": 0.7}, nil
	}
	return map[string]float64{"trash pile": 0.2, "park path": 0.75}, nil
}

func (v fakeVision) SamePerson(context.Context, string, string) (ports.VisionAnswer, error) {
	return v.samePersonAnswer, v.err
}

func newTestModule(t *testing.T, vision ports.VisionService) submissionpipeline.Module {
	t.Helper()
	clock := fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	module := submissionpipeline.NewInMemoryModule(vision, clock, &seqIDGen{}, nil)
	module.Store.SeedCampaign(ports.CampaignProjection{
		CampaignID:    "camp-1",
		QuestType:     entities.QuestSinglePhoto,
		Rules:         "photo must show a full trash bag at the checkpoint",
		Status:        "active",
		RewardTickets: 3,
	}, entities.Checkpoint{
		CheckpointID: "cp-1",
		CampaignID:   "camp-1",
		Lat:          40.0,
		Lng:          -74.0,
		RadiusMeters: 50,
	})
	return module
}

func createCommand() commands.CreateSubmissionCommand {
	lat, lng := 40.0001, -74.0
	return commands.CreateSubmissionCommand{
		OwnerID:        "user-1",
		IdempotencyKey: "key-1",
		CampaignID:     "camp-1",
		CheckpointID:   "cp-1",
		Photos: []commands.PhotoInput{{
			URL:     "https://cdn.example.com/photo.jpg",
			Lat:     &lat,
			Lng:     &lng,
			TakenAt: time.Date(2026, 3, 1, 11, 55, 0, 0, time.UTC),
		}},
	}
}

func TestCreateAndVerifyApproves(t *testing.T) {
	module := newTestModule(t, fakeVision{complianceAnswer: ports.VisionAnswerYes})
	ctx := context.Background()

	created, err := module.UseCase.CreateSubmission(ctx, createCommand())
	if err != nil {
		t.Fatalf("create submission: %v", err)
	}
	if created.Submission.Status != entities.SubmissionStatusPending {
		t.Fatalf("expected pending after intake, got %s", created.Submission.Status)
	}

	verified, err := module.UseCase.VerifySubmission(ctx, commands.VerifySubmissionCommand{
		SubmissionID: created.Submission.SubmissionID,
	})
	if err != nil {
		t.Fatalf("verify submission: %v", err)
	}
	if verified.Submission.Status != entities.SubmissionStatusApproved {
		t.Fatalf("expected approved, got %s", verified.Submission.Status)
	}
	if verified.Submission.Confidence == nil || *verified.Submission.Confidence != 95 {
		t.Fatalf("expected confidence 95, got %v", verified.Submission.Confidence)
	}

	kinds := map[entities.TraceKind]bool{}
	for _, step := range verified.Submission.Trace {
		kinds[step.Kind] = true
	}
	for _, want := range []entities.TraceKind{entities.TraceKindGeofence, entities.TraceKindContentScore, entities.TraceKindDecision} {
		if !kinds[want] {
			t.Fatalf("trace missing %s step: %+v", want, verified.Submission.Trace)
		}
	}

	pending, err := module.Store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list outbox: %v", err)
	}
	types := map[string]int{}
	for _, message := range pending {
		types[message.EventType]++
	}
	if types[commands.TopicSubmissionCreated] != 1 || types[commands.TopicSubmissionApproved] != 1 {
		t.Fatalf("expected one created and one approved event, got %v", types)
	}
}

func TestVerifyIsIdempotent(t *testing.T) {
	module := newTestModule(t, fakeVision{complianceAnswer: ports.VisionAnswerYes})
	ctx := context.Background()

	created, err := module.UseCase.CreateSubmission(ctx, createCommand())
	if err != nil {
		t.Fatalf("create submission: %v", err)
	}
	cmd := commands.VerifySubmissionCommand{SubmissionID: created.Submission.SubmissionID}

	if _, err := module.UseCase.VerifySubmission(ctx, cmd); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	second, err := module.UseCase.VerifySubmission(ctx, cmd)
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if second.Submission.Status != entities.SubmissionStatusApproved {
		t.Fatalf("expected approved after replay, got %s", second.Submission.Status)
	}

	pending, _ := module.Store.ListPendingOutbox(ctx, 10)
	approvals := 0
	for _, message := range pending {
		if message.EventType == commands.TopicSubmissionApproved {
			approvals++
		}
	}
	if approvals != 1 {
		t.Fatalf("replayed verify must not emit a second approval, got %d", approvals)
	}
}

func TestVisionOutageDegradesToReview(t *testing.T) {
	module := newTestModule(t, fakeVision{err: errors.New("upstream timeout")})
	ctx := context.Background()

	created, err := module.UseCase.CreateSubmission(ctx, createCommand())
	if err != nil {
		t.Fatalf("create submission: %v", err)
	}
	verified, err := module.UseCase.VerifySubmission(ctx, commands.VerifySubmissionCommand{
		SubmissionID: created.Submission.SubmissionID,
	})
	if err != nil {
		t.Fatalf("verify submission: %v", err)
	}
	if verified.Submission.Status != entities.SubmissionStatusNeedsReview {
		t.Fatalf("scorer outage must escalate to review, got %s", verified.Submission.Status)
	}
	if verified.Submission.Confidence != nil {
		t.Fatalf("degraded pass must not invent a confidence, got %v", verified.Submission.Confidence)
	}
}

func TestNonCompliantPhotoRejected(t *testing.T) {
	module := newTestModule(t, fakeVision{complianceAnswer: ports.VisionAnswerNo})
	ctx := context.Background()

	created, err := module.UseCase.CreateSubmission(ctx, createCommand())
	if err != nil {
		t.Fatalf("create submission: %v", err)
	}
	verified, err := module.UseCase.VerifySubmission(ctx, commands.VerifySubmissionCommand{
		SubmissionID: created.Submission.SubmissionID,
	})
	if err != nil {
		t.Fatalf("verify submission: %v", err)
	}
	if verified.Submission.Status != entities.SubmissionStatusRejected {
		t.Fatalf("expected rejected, got %s", verified.Submission.Status)
	}
}

func TestCreateSubmissionReplay(t *testing.T) {
	module := newTestModule(t, fakeVision{complianceAnswer: ports.VisionAnswerYes})
	ctx := context.Background()

	first, err := module.UseCase.CreateSubmission(ctx, createCommand())
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := module.UseCase.CreateSubmission(ctx, createCommand())
	if err != nil {
		t.Fatalf("replayed create: %v", err)
	}
	if !second.Replayed {
		t.Fatal("expected replay flag on second create")
	}
	if first.Submission.SubmissionID != second.Submission.SubmissionID {
		t.Fatal("replay must return the original submission")
	}
}

func TestCreateSubmissionKeyConflict(t *testing.T) {
	module := newTestModule(t, fakeVision{complianceAnswer: ports.VisionAnswerYes})
	ctx := context.Background()

	if _, err := module.UseCase.CreateSubmission(ctx, createCommand()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	conflicting := createCommand()
	conflicting.Photos[0].URL = "https://cdn.example.com/other.jpg"

	_, err := module.UseCase.CreateSubmission(ctx, conflicting)
	if !errors.Is(err, dErrors.ErrIdempotencyConflict) {
		t.Fatalf("expected idempotency conflict, got %v", err)
	}
}

func TestCreateSubmissionMissingGPS(t *testing.T) {
	module := newTestModule(t, fakeVision{complianceAnswer: ports.VisionAnswerYes})
	cmd := createCommand()
	cmd.Photos[0].Lat = nil
	cmd.Photos[0].Lng = nil

	_, err := module.UseCase.CreateSubmission(context.Background(), cmd)
	if !errors.Is(err, dErrors.ErrMissingGPS) {
		t.Fatalf("expected missing gps error, got %v", err)
	}
}

func TestTwoPhotoChangeScoring(t *testing.T) {
	clock := fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	module := submissionpipeline.NewInMemoryModule(fakeVision{}, clock, &seqIDGen{}, nil)
	module.Store.SeedCampaign(ports.CampaignProjection{
		CampaignID: "camp-2",
		QuestType:  entities.QuestTwoPhotoChange,
		Status:     "active",
	}, entities.Checkpoint{
		CheckpointID: "cp-1",
		CampaignID:   "camp-2",
		Lat:          40.0,
		Lng:          -74.0,
		RadiusMeters: 50,
	})

	lat, lng := 40.0001, -74.0
	cmd := commands.CreateSubmissionCommand{
		OwnerID:        "user-2",
		IdempotencyKey: "key-2",
		CampaignID:     "camp-2",
		Photos: []commands.PhotoInput{
			{
				URL: "https://cdn.example.com/before.jpg", Lat: &lat, Lng: &lng,
				TakenAt: time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
			},
			{
				URL: "https://cdn.example.com/after.jpg", Lat: &lat, Lng: &lng,
				TakenAt: time.Date(2026, 3, 1, 11, 20, 0, 0, time.UTC),
			},
		},
	}
	ctx := context.Background()
	created, err := module.UseCase.CreateSubmission(ctx, cmd)
	if err != nil {
		t.Fatalf("create submission: %v", err)
	}
	verified, err := module.UseCase.VerifySubmission(ctx, commands.VerifySubmissionCommand{
		SubmissionID: created.Submission.SubmissionID,
	})
	if err != nil {
		t.Fatalf("verify submission: %v", err)
	}
	if verified.Submission.Status != entities.SubmissionStatusApproved {
		t.Fatalf("clean before/after change should approve, got %s", verified.Submission.Status)
	}
	if verified.Submission.Confidence == nil || *verified.Submission.Confidence != 90 {
		t.Fatalf("expected confidence 90, got %v", verified.Submission.Confidence)
	}
}
