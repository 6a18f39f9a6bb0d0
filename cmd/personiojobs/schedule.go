package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/personiojobs/internal/config"
	"github.com/amishk599/personiojobs/internal/importer"
	"github.com/amishk599/personiojobs/internal/scheduler"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run configured imports on a cron schedule",
	Long:  "Run every configured import target immediately and then on schedule.cron; blocks until SIGINT/SIGTERM.",
	RunE:  runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

// scheduleTargets turns the configured targets into import options.
func scheduleTargets(cfg *config.Config) []importer.Options {
	targets := make([]importer.Options, 0, len(cfg.Schedule.Targets))
	for _, t := range cfg.Schedule.Targets {
		targets = append(targets, importer.Options{
			StoragePID:     t.StoragePID,
			Language:       t.Language,
			NoDelete:       t.NoDelete,
			NoUpdate:       t.NoUpdate,
			AllowEmptyFeed: cfg.Import.AllowEmptyFeed,
		})
	}
	return targets
}

func runSchedule(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	targets := scheduleTargets(cfg)
	if len(targets) == 0 {
		return errors.New("no import targets configured under schedule.targets")
	}

	logger.Info("config loaded",
		"cron", cfg.Schedule.Cron,
		"targets", len(targets),
		"languages", len(cfg.Site.Languages),
		"events", len(cfg.Events),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := buildServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.close()

	sched := scheduler.NewScheduler(svc.importer, targets, cfg.Schedule.Cron, logger)
	if err := sched.Run(ctx); err != nil {
		return err
	}

	logger.Info("goodbye")
	return nil
}
