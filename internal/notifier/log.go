package notifier

import (
	"context"
	"log/slog"

	"github.com/amishk599/personiojobs/internal/model"
)

// Ensure LogPublisher implements model.EventPublisher.
var _ model.EventPublisher = (*LogPublisher)(nil)

// LogPublisher writes import events to the given logger as structured messages.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the run with per-operation counts. It never fails.
func (p *LogPublisher) Publish(ctx context.Context, ev model.ImportedEvent) error {
	args := []any{"run_id", ev.RunID, "storage_pid", ev.StoragePID, "language", ev.Language}
	if ev.Result != nil {
		for _, op := range model.Operations {
			args = append(args, op.String(), ev.Result.Count(op))
		}
	}
	p.logger.InfoContext(ctx, "jobs imported", args...)
	return nil
}
