package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/personiojobs/internal/browse"
	"github.com/amishk599/personiojobs/internal/config"
	"github.com/amishk599/personiojobs/internal/feed"
	"github.com/amishk599/personiojobs/internal/filter"
	"github.com/amishk599/personiojobs/internal/model"
	"github.com/amishk599/personiojobs/internal/store"
)

var browseFlags struct {
	include string
	exclude string
}

var browseCmd = &cobra.Command{
	Use:   "browse <storage-pid>",
	Short: "Browse imported jobs interactively (TUI)",
	Long:  "Shows the language picker TUI, then launches the split-pane job browser.",
	Args:  cobra.ExactArgs(1),
	RunE:  runBrowseCmd,
}

func init() {
	browseCmd.Flags().StringVar(&browseFlags.include, "include", "", "comma-separated subcompanies for the matched pane")
	browseCmd.Flags().StringVar(&browseFlags.exclude, "exclude", "", "comma-separated subcompanies hidden from the matched pane")
	rootCmd.AddCommand(browseCmd)
}

func runBrowseCmd(cmd *cobra.Command, args []string) error {
	storagePID, err := parseStoragePID(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	// Any log output before the alt-screen starts corrupts the display.
	silentLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := feed.NewClient(cfg.Feed.APIURL, newHTTPClient(cfg), silentLogger)
	if err != nil {
		return err
	}

	jobStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer jobStore.Close()

	return runBrowse(cfg, storagePID, jobStore, client)
}

func runBrowse(cfg *config.Config, storagePID int, jobStore *store.SQLStore, urls browse.URLBuilder) error {
	languages := make([]browse.LanguageChoice, 0, len(cfg.Site.Languages))
	for _, l := range cfg.Site.Languages {
		languages = append(languages, browse.LanguageChoice{Code: l.Code, ID: l.ID})
	}

	var matched model.JobFilter
	label := "All jobs"
	if browseFlags.include != "" || browseFlags.exclude != "" {
		matched = filter.ParseSubcompanyFilter(browseFlags.include, browseFlags.exclude)
		label = matchedLabel(browseFlags.include, browseFlags.exclude)
	}

	for {
		choice, ok, err := browse.RunLanguagePicker(languages)
		if err != nil {
			return fmt.Errorf("picker: %w", err)
		}
		if !ok {
			return nil
		}

		demand := filter.Demand{StoragePID: storagePID}
		if choice.Code != "" {
			id := choice.ID
			demand.LanguageID = &id
		}

		jobs, err := browse.RunLoader(storagePID, choice, func(ctx context.Context) ([]model.Job, error) {
			return jobStore.FindByDemand(ctx, demand)
		})
		// The loader already printed the outcome; go back to the picker.
		if err != nil || len(jobs) == 0 {
			continue
		}

		wantQuit, err := browse.Run(jobs, matched, label, urls, choice.Code)
		if err != nil {
			fmt.Printf("TUI error: %v\n", err)
		}
		if wantQuit {
			return nil
		}
		// else: back to picker
	}
}

func matchedLabel(include, exclude string) string {
	var parts []string
	if include != "" {
		parts = append(parts, "only "+include)
	}
	if exclude != "" {
		parts = append(parts, "without "+exclude)
	}
	return strings.Join(parts, ", ")
}
