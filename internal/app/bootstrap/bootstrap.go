package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	auditinjection "taskproof/contexts/integrity/audit-injection"
	auditpostgres "taskproof/contexts/integrity/audit-injection/adapters/postgres"
	auditcommands "taskproof/contexts/integrity/audit-injection/application/commands"
	auditworkers "taskproof/contexts/integrity/audit-injection/application/workers"
	ledgerservice "taskproof/contexts/rewards/ledger-service"
	ledgerpostgres "taskproof/contexts/rewards/ledger-service/adapters/postgres"
	ledgerworkers "taskproof/contexts/rewards/ledger-service/application/workers"
	juryconsensus "taskproof/contexts/verification/jury-consensus"
	jurypostgres "taskproof/contexts/verification/jury-consensus/adapters/postgres"
	juryworkers "taskproof/contexts/verification/jury-consensus/application/workers"
	juryentities "taskproof/contexts/verification/jury-consensus/domain/entities"
	submissionpipeline "taskproof/contexts/verification/submission-pipeline"
	pipelinepostgres "taskproof/contexts/verification/submission-pipeline/adapters/postgres"
	"taskproof/contexts/verification/submission-pipeline/adapters/vision"
	pipelineworkers "taskproof/contexts/verification/submission-pipeline/application/workers"
	"taskproof/internal/platform/config"
	"taskproof/internal/platform/db"
	"taskproof/internal/platform/httpserver"
	"taskproof/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres  *db.Postgres
	consumers []func(context.Context) error
	scheduler *cron.Cron
	logger    *slog.Logger
}

// auditQueueInjector adapts the integrity audit service to the jury's
// injector port. Audit items carry the assignment id as the queue item id,
// so to the validator they are indistinguishable from real submissions.
type auditQueueInjector struct {
	audits auditcommands.AuditService
}

func (a auditQueueInjector) MaybeInject(ctx context.Context, validatorID string, queue []juryentities.QueueItem) ([]juryentities.QueueItem, error) {
	out := make([]juryentities.QueueItem, 0, len(queue))
	for _, item := range queue {
		out = append(out, item)
		if len(item.PhotoURLs) == 0 {
			continue
		}
		assignment, ok, err := a.audits.MaybeAssign(ctx, validatorID, auditcommands.AuditSource{
			SubmissionID: item.ItemID,
			CampaignID:   item.CampaignID,
			QuestType:    item.QuestType,
			PhotoURL:     item.PhotoURLs[0],
			SubmittedAt:  item.SubmittedAt,
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		// Right behind the item it was forged from.
		out = append(out, juryentities.QueueItem{
			ItemID:      assignment.AssignmentID,
			CampaignID:  assignment.CampaignID,
			QuestType:   assignment.QuestType,
			PhotoURLs:   assignment.PhotoURLs,
			SubmittedAt: assignment.SubmittedAt,
		})
	}
	return out, nil
}

func (a auditQueueInjector) TryResolveVote(ctx context.Context, validatorID string, itemID string, decision juryentities.VoteDecision) (bool, error) {
	return a.audits.ResolveVote(ctx, validatorID, itemID, string(decision))
}

type modules struct {
	pipeline submissionpipeline.Module
	jury     juryconsensus.Module
	audits   auditinjection.Module
	ledger   ledgerservice.Module
}

func buildModules(cfg config.Config, pg *db.Postgres, logger *slog.Logger) modules {
	visionClient := vision.NewClient(cfg.VisionBaseURL, cfg.ReasoningBaseURL, cfg.VisionTimeout, logger)

	pipelineRepo := pipelinepostgres.NewRepository(pg.DB)
	pipelineModule := submissionpipeline.NewModule(submissionpipeline.Dependencies{
		Submissions:         pipelineRepo,
		Campaigns:           pipelineRepo,
		Enrollment:          pipelineRepo,
		Vision:              visionClient,
		Idempotency:         pipelineRepo,
		Outbox:              pipelineRepo,
		Clock:               pipelinepostgres.SystemClock{},
		IDGen:               pipelinepostgres.UUIDGenerator{},
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		Logger:              logger,
	})

	ledgerRepo := ledgerpostgres.NewRepository(pg.DB)
	ledgerModule := ledgerservice.NewModule(ledgerservice.Dependencies{
		Profiles: ledgerRepo,
		Outbox:   ledgerRepo,
		Clock:    ledgerpostgres.SystemClock{},
		IDGen:    ledgerpostgres.UUIDGenerator{},
		Logger:   logger,
	})

	auditRepo := auditpostgres.NewRepository(pg.DB)
	auditModule := auditinjection.NewModule(auditinjection.Dependencies{
		Assignments:   auditRepo,
		Failures:      auditRepo,
		Ledger:        ledgerModule.Ledger,
		Outbox:        auditRepo,
		Clock:         auditpostgres.SystemClock{},
		IDGen:         auditpostgres.UUIDGenerator{},
		Probability:   cfg.AuditProbability,
		Seed:          cfg.AuditSeed,
		AssignmentTTL: 24 * time.Hour,
		Logger:        logger,
	})

	juryRepo := jurypostgres.NewRepository(pg.DB)
	juryModule := juryconsensus.NewModule(juryconsensus.Dependencies{
		Reviews:    juryRepo,
		VoteRepo:   juryRepo,
		Audits:     auditQueueInjector{audits: auditModule.Audits},
		Ledger:     ledgerModule.Ledger,
		Outbox:     juryRepo,
		Clock:      jurypostgres.SystemClock{},
		IDGen:      jurypostgres.UUIDGenerator{},
		Quorum:     cfg.JuryQuorum,
		QueueLimit: cfg.QueueLimit,
		Logger:     logger,
	})

	return modules{
		pipeline: pipelineModule,
		jury:     juryModule,
		audits:   auditModule,
		ledger:   ledgerModule,
	}
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	mods := buildModules(cfg, pg, logger)
	server := httpserver.New(mods.pipeline, mods.jury, mods.ledger, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	bus := messaging.NewBus(logger)
	mods := buildModules(cfg, pg, logger)

	pipelineRepo := pipelinepostgres.NewRepository(pg.DB)
	juryRepo := jurypostgres.NewRepository(pg.DB)
	auditRepo := auditpostgres.NewRepository(pg.DB)
	ledgerRepo := ledgerpostgres.NewRepository(pg.DB)

	app := &WorkerApp{
		postgres:  pg,
		scheduler: cron.New(),
		logger:    logger,
	}

	if cfg.EnableVerificationConsumer {
		consumer := pipelineworkers.VerificationConsumer{
			UseCase:    mods.pipeline.UseCase,
			Subscriber: bus,
			Dedup:      pipelineRepo,
			Clock:      pipelinepostgres.SystemClock{},
			Logger:     logger,
		}
		app.consumers = append(app.consumers, consumer.Start)
	}

	approvals := ledgerworkers.ApprovalConsumer{
		Ledger:     mods.ledger.Ledger,
		Campaigns:  ledgerRepo,
		Subscriber: bus,
		Dedup:      ledgerRepo,
		Clock:      ledgerpostgres.SystemClock{},
		Logger:     logger,
	}
	app.consumers = append(app.consumers, approvals.Start)

	if cfg.EnableOutboxRelay {
		app.schedule("@every 2s", "outbox_relay", []runner{
			pipelineworkers.OutboxRelay{
				Outbox:    pipelineRepo,
				Publisher: bus,
				Clock:     pipelinepostgres.SystemClock{},
				BatchSize: 100,
				Logger:    logger,
			},
			juryworkers.OutboxRelay{
				Outbox:    juryRepo,
				Publisher: bus,
				Clock:     jurypostgres.SystemClock{},
				BatchSize: 100,
				Logger:    logger,
			},
			auditworkers.OutboxRelay{
				Outbox:    auditRepo,
				Publisher: bus,
				Clock:     auditpostgres.SystemClock{},
				BatchSize: 100,
				Logger:    logger,
			},
			ledgerworkers.OutboxRelay{
				Outbox:    ledgerRepo,
				Publisher: bus,
				Clock:     ledgerpostgres.SystemClock{},
				BatchSize: 100,
				Logger:    logger,
			},
		})
	}

	if cfg.EnableAuditSweep {
		app.schedule("@every 1m", "audit_expiry_sweep", []runner{
			auditworkers.ExpirySweeper{
				Assignments: auditRepo,
				Clock:       auditpostgres.SystemClock{},
				BatchSize:   100,
				Logger:      logger,
			},
		})
	}

	if cfg.EnableReviewReannounce {
		app.schedule("@every 5m", "review_reannounce", []runner{
			juryworkers.ReviewReannouncer{
				Reviews:   juryRepo,
				Outbox:    juryRepo,
				Clock:     jurypostgres.SystemClock{},
				IDGen:     jurypostgres.UUIDGenerator{},
				BatchSize: 50,
				Logger:    logger,
			},
		})
	}

	return app, nil
}

// runner is any periodic job the worker drives on a schedule.
type runner interface {
	RunOnce(ctx context.Context) (int, error)
}

func (w *WorkerApp) schedule(spec string, name string, jobs []runner) {
	_, err := w.scheduler.AddFunc(spec, func() {
		ctx := context.Background()
		for _, job := range jobs {
			if _, err := job.RunOnce(ctx); err != nil {
				w.logger.Error("scheduled job failed",
					"event", "worker_job_failed",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"job", name,
					"error", err.Error(),
				)
			}
		}
	})
	if err != nil {
		w.logger.Error("schedule registration failed",
			"event", "worker_schedule_failed",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"job", name,
			"error", err.Error(),
		)
	}
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	for _, start := range w.consumers {
		if err := start(ctx); err != nil {
			return err
		}
	}

	w.scheduler.Start()
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)

	<-ctx.Done()
	stopped := w.scheduler.Stop()
	<-stopped.Done()
	return nil
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
