package ledgerservice

import (
	"log/slog"

	httpadapter "taskproof/contexts/rewards/ledger-service/adapters/http"
	"taskproof/contexts/rewards/ledger-service/adapters/memory"
	"taskproof/contexts/rewards/ledger-service/application/commands"
	"taskproof/contexts/rewards/ledger-service/application/queries"
	"taskproof/contexts/rewards/ledger-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Ledger  commands.LedgerUseCase
	Queries queries.ProfileQueries
	Store   *memory.Store
}

type Dependencies struct {
	Profiles ports.ProfileRepository
	Outbox   ports.OutboxWriter
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Logger   *slog.Logger
}

func NewModule(deps Dependencies) Module {
	ledger := commands.LedgerUseCase{
		Profiles: deps.Profiles,
		Outbox:   deps.Outbox,
		Clock:    deps.Clock,
		IDGen:    deps.IDGen,
		Logger:   deps.Logger,
	}
	profileQueries := queries.ProfileQueries{
		Profiles: deps.Profiles,
	}
	return Module{
		Handler: httpadapter.Handler{
			Profiles: profileQueries,
			Logger:   deps.Logger,
		},
		Ledger:  ledger,
		Queries: profileQueries,
	}
}

func NewInMemoryModule(clock ports.Clock, idGen ports.IDGenerator, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Profiles: store,
		Outbox:   store,
		Clock:    clock,
		IDGen:    idGen,
		Logger:   logger,
	})
	module.Store = store
	return module
}
