package auditinjection

import (
	"log/slog"
	"time"

	"taskproof/contexts/integrity/audit-injection/adapters/memory"
	"taskproof/contexts/integrity/audit-injection/application/commands"
	"taskproof/contexts/integrity/audit-injection/ports"
)

type Module struct {
	Audits commands.AuditService
	Store  *memory.Store
}

type Dependencies struct {
	Assignments   ports.AssignmentRepository
	Failures      ports.FailureRepository
	Ledger        ports.ValidatorLedger
	Outbox        ports.OutboxWriter
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	Probability   float64
	Seed          string
	AssignmentTTL time.Duration
	Logger        *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Audits: commands.AuditService{
			Assignments:   deps.Assignments,
			Failures:      deps.Failures,
			Ledger:        deps.Ledger,
			Outbox:        deps.Outbox,
			Clock:         deps.Clock,
			IDGen:         deps.IDGen,
			Probability:   deps.Probability,
			Seed:          deps.Seed,
			AssignmentTTL: deps.AssignmentTTL,
			Logger:        deps.Logger,
		},
	}
}

func NewInMemoryModule(ledger ports.ValidatorLedger, clock ports.Clock, idGen ports.IDGenerator, probability float64, seed string, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Assignments:   store,
		Failures:      store,
		Ledger:        ledger,
		Outbox:        store,
		Clock:         clock,
		IDGen:         idGen,
		Probability:   probability,
		Seed:          seed,
		AssignmentTTL: 24 * time.Hour,
		Logger:        logger,
	})
	module.Store = store
	return module
}
