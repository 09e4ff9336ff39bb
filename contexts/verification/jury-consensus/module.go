package juryconsensus

import (
	"context"
	"log/slog"

	httpadapter "taskproof/contexts/verification/jury-consensus/adapters/http"
	"taskproof/contexts/verification/jury-consensus/adapters/memory"
	"taskproof/contexts/verification/jury-consensus/application/commands"
	"taskproof/contexts/verification/jury-consensus/application/queries"
	"taskproof/contexts/verification/jury-consensus/domain/entities"
	"taskproof/contexts/verification/jury-consensus/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Votes   commands.VoteUseCase
	Queues  queries.QueueUseCase
	Store   *memory.Store
}

type Dependencies struct {
	Reviews    ports.ReviewRepository
	VoteRepo   ports.VoteRepository
	Audits     ports.AuditInjector
	Ledger     ports.RewardLedger
	Outbox     ports.OutboxWriter
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Quorum     int
	QueueLimit int
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	voteUseCase := commands.VoteUseCase{
		Reviews: deps.Reviews,
		Votes:   deps.VoteRepo,
		Audits:  deps.Audits,
		Ledger:  deps.Ledger,
		Outbox:  deps.Outbox,
		Clock:   deps.Clock,
		IDGen:   deps.IDGen,
		Quorum:  deps.Quorum,
		Logger:  deps.Logger,
	}
	queueUseCase := queries.QueueUseCase{
		Reviews: deps.Reviews,
		Votes:   deps.VoteRepo,
		Audits:  deps.Audits,
		Limit:   deps.QueueLimit,
	}
	return Module{
		Handler: httpadapter.Handler{
			Votes:  voteUseCase,
			Queues: queueUseCase,
			Logger: deps.Logger,
		},
		Votes:  voteUseCase,
		Queues: queueUseCase,
	}
}

// NoopAuditInjector satisfies the audit port when the integrity context is
// not wired, e.g. in isolated tests.
type NoopAuditInjector struct{}

func (NoopAuditInjector) MaybeInject(_ context.Context, _ string, queue []entities.QueueItem) ([]entities.QueueItem, error) {
	return queue, nil
}

func (NoopAuditInjector) TryResolveVote(context.Context, string, string, entities.VoteDecision) (bool, error) {
	return false, nil
}

func NewInMemoryModule(audits ports.AuditInjector, ledger ports.RewardLedger, clock ports.Clock, idGen ports.IDGenerator, logger *slog.Logger) Module {
	store := memory.NewStore()
	if audits == nil {
		audits = NoopAuditInjector{}
	}
	module := NewModule(Dependencies{
		Reviews:    store,
		VoteRepo:   store,
		Audits:     audits,
		Ledger:     ledger,
		Outbox:     store,
		Clock:      clock,
		IDGen:      idGen,
		Quorum:     3,
		QueueLimit: 20,
		Logger:     logger,
	})
	module.Store = store
	return module
}
