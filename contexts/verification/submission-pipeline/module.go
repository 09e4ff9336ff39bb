package submissionpipeline

import (
	"log/slog"

	httpadapter "taskproof/contexts/verification/submission-pipeline/adapters/http"
	"taskproof/contexts/verification/submission-pipeline/adapters/memory"
	"taskproof/contexts/verification/submission-pipeline/application/commands"
	"taskproof/contexts/verification/submission-pipeline/application/queries"
	"taskproof/contexts/verification/submission-pipeline/ports"
)

type Module struct {
	Handler httpadapter.Handler
	UseCase commands.SubmissionUseCase
	Store   *memory.Store
}

type Dependencies struct {
	Submissions         ports.SubmissionRepository
	Campaigns           ports.CampaignReader
	Enrollment          ports.EnrollmentStore
	Vision              ports.VisionService
	Idempotency         ports.IdempotencyStore
	Outbox              ports.OutboxWriter
	Clock               ports.Clock
	IDGen               ports.IDGenerator
	ConfidenceThreshold int
	Logger              *slog.Logger
}

func NewModule(deps Dependencies) Module {
	useCase := commands.SubmissionUseCase{
		Submissions:         deps.Submissions,
		Campaigns:           deps.Campaigns,
		Enrollment:          deps.Enrollment,
		Vision:              deps.Vision,
		Idempotency:         deps.Idempotency,
		Outbox:              deps.Outbox,
		Clock:               deps.Clock,
		IDGenerator:         deps.IDGen,
		ConfidenceThreshold: deps.ConfidenceThreshold,
		Logger:              deps.Logger,
	}
	submissionQueries := queries.SubmissionQueries{
		Submissions: deps.Submissions,
	}
	return Module{
		Handler: httpadapter.Handler{
			Submissions: useCase,
			Queries:     submissionQueries,
			Logger:      deps.Logger,
		},
		UseCase: useCase,
	}
}

func NewInMemoryModule(vision ports.VisionService, clock ports.Clock, idGen ports.IDGenerator, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Submissions:         store,
		Campaigns:           store,
		Enrollment:          store,
		Vision:              vision,
		Idempotency:         store,
		Outbox:              store,
		Clock:               clock,
		IDGen:               idGen,
		ConfidenceThreshold: 80,
		Logger:              logger,
	})
	module.Store = store
	return module
}
