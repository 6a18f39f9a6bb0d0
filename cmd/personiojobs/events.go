package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/amishk599/personiojobs/internal/model"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Import event subcommands",
}

var eventsTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Publish a test import event",
	Long:  "Publishes a sample import event to every configured event publisher.",
	RunE:  runEventsTest,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTestCmd)
}

// testEvent is a sample event with one added job.
func testEvent(now time.Time) model.ImportedEvent {
	result := model.NewImportResult(false)
	result.Add(model.Job{
		PersonioID: 1,
		Name:       "Test Job (personiojobs)",
		Subcompany: "personiojobs",
		Office:     "Remote",
	}, model.OperationAdded)
	return model.ImportedEvent{
		RunID:      uuid.NewString(),
		FinishedAt: now,
		Result:     result,
	}
}

func runEventsTest(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	publisher, closePublisher, err := setupPublisher(ctx, cfg, newHTTPClient(cfg), logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	if err := publisher.Publish(ctx, testEvent(time.Now())); err != nil {
		return err
	}
	logger.Info("test event published successfully")
	return nil
}
