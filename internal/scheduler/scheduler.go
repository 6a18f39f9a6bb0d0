// Package scheduler repeats imports for configured targets on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/amishk599/personiojobs/internal/importer"
	"github.com/amishk599/personiojobs/internal/model"
)

// Importer runs one import.
type Importer interface {
	Import(ctx context.Context, opts importer.Options) (*model.ImportResult, error)
}

// Scheduler owns the main loop: runs every target once at start, then on
// each cron tick. Targets run sequentially; a tick is skipped while the
// previous one is still running.
type Scheduler struct {
	importer Importer
	targets  []importer.Options
	spec     string
	logger   *slog.Logger
}

// NewScheduler creates a scheduler for targets. spec is a standard cron
// expression or a descriptor such as "@every 1h".
func NewScheduler(imp Importer, targets []importer.Options, spec string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		importer: imp,
		targets:  targets,
		spec:     spec,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled and returns nil then (graceful shutdown).
// An invalid cron spec is returned before anything runs.
func (s *Scheduler) Run(ctx context.Context) error {
	schedule, err := cron.ParseStandard(s.spec)
	if err != nil {
		return fmt.Errorf("parsing schedule %q: %w", s.spec, err)
	}

	logger := cronLogger{s.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(schedule, cron.FuncJob(func() { s.runAll(ctx) }))

	s.logger.Info("starting scheduler", "schedule", s.spec, "targets", len(s.targets))

	// Run one immediate cycle.
	s.runAll(ctx)

	c.Start()
	<-ctx.Done()
	s.logger.Info("shutting down scheduler")
	<-c.Stop().Done()
	return nil
}

// runAll imports each target sequentially. A failing target is logged and
// does not stop the others.
func (s *Scheduler) runAll(ctx context.Context) {
	for _, t := range s.targets {
		if ctx.Err() != nil {
			return
		}

		result, err := s.importer.Import(ctx, t)
		if err != nil {
			s.logger.Error("import failed",
				"storage_pid", t.StoragePID,
				"language", t.Language,
				"error", err,
			)
			continue
		}
		s.logger.Debug("import done",
			"storage_pid", t.StoragePID,
			"language", t.Language,
			"modified", len(result.Modified()),
		)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
