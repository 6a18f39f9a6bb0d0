package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amishk599/personiojobs/internal/report"
)

var checkLanguage string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Fetch the feed once, print its jobs, exit",
	Long:  "One-shot fetch: downloads and maps the feed and prints the jobs it contains. Does not touch the store.",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkLanguage, "language", "l", "", "feed language to fetch")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if _, err := resolveLanguageID(cfg, checkLanguage); err != nil {
		return err
	}

	_, fetcher, err := setupFeed(cfg, newHTTPClient(cfg), logger)
	if err != nil {
		return err
	}

	logger.Info("check mode: the store is not touched")

	jobs, err := fetcher.FetchJobs(cmd.Context(), checkLanguage)
	if err != nil {
		return fmt.Errorf("fetching jobs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(jobs) > 0 {
		fmt.Fprintln(out, report.Listing(jobs))
	}
	fmt.Fprintf(out, "\nFeed contains %d jobs.\n", len(jobs))
	return nil
}
