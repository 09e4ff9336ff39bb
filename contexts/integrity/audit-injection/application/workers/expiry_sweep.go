package workers

import (
	"context"
	"fmt"
	"log/slog"

	"taskproof/contexts/integrity/audit-injection/application"
	"taskproof/contexts/integrity/audit-injection/ports"
)

// ExpirySweeper removes audit assignments that were never answered. No
// penalty applies; the validator simply never saw or skipped the item.
type ExpirySweeper struct {
	Assignments ports.AssignmentRepository
	Clock       ports.Clock
	BatchSize   int
	Logger      *slog.Logger
}

func (s ExpirySweeper) RunOnce(ctx context.Context) (int, error) {
	logger := application.Logger(s.Logger)

	limit := s.BatchSize
	if limit <= 0 {
		limit = 100
	}
	expired, err := s.Assignments.ListExpired(ctx, s.Clock.Now().UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("list expired assignments: %w", err)
	}

	removed := 0
	for _, assignment := range expired {
		if err := s.Assignments.DeleteAssignment(ctx, assignment.AssignmentID); err != nil {
			return removed, fmt.Errorf("delete expired assignment %s: %w", assignment.AssignmentID, err)
		}
		removed++
	}

	if removed > 0 {
		logger.Info("expired audit assignments removed",
			"event", "audit_expiry_sweep",
			"module", "integrity/audit-injection",
			"layer", "worker",
			"count", removed,
		)
	}
	return removed, nil
}
