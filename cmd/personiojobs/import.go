package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/amishk599/personiojobs/internal/importer"
	"github.com/amishk599/personiojobs/internal/model"
	"github.com/amishk599/personiojobs/internal/report"
)

var importFlags struct {
	force      bool
	noDelete   bool
	noUpdate   bool
	dryRun     bool
	language   string
	allowEmpty bool
	verbose    bool
}

var importCmd = &cobra.Command{
	Use:   "import <storage-pid>",
	Short: "Import jobs from the Personio feed",
	Long: `Import jobs from the Personio XML feed into the given storage scope.

New jobs are added, changed jobs are updated, unchanged jobs are skipped and
jobs no longer present in the feed are removed.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	f := importCmd.Flags()
	f.BoolVarP(&importFlags.force, "force", "f", false, "update jobs even if their content hash is unchanged")
	f.BoolVar(&importFlags.noDelete, "no-delete", false, "keep jobs that are no longer in the feed")
	f.BoolVar(&importFlags.noUpdate, "no-update", false, "only add new jobs, never update existing ones")
	f.BoolVar(&importFlags.dryRun, "dry-run", false, "classify jobs without touching the store")
	f.StringVarP(&importFlags.language, "language", "l", "", "site language code to import (default: all languages)")
	f.BoolVar(&importFlags.allowEmpty, "allow-empty", false, "remove all jobs when the feed is empty")
	f.BoolVarP(&importFlags.verbose, "verbose", "v", false, "also list skipped jobs")
	rootCmd.AddCommand(importCmd)
}

// parseStoragePID reads the storage pid argument. Negative values are
// clamped to 0.
func parseStoragePID(arg string) (int, error) {
	pid, err := strconv.Atoi(arg)
	if err != nil {
		return 0, &usageError{err: fmt.Errorf("invalid storage pid %q", arg)}
	}
	return max(pid, 0), nil
}

func runImport(cmd *cobra.Command, args []string) error {
	storagePID, err := parseStoragePID(args[0])
	if err != nil {
		return err
	}

	opts := importer.Options{
		StoragePID: storagePID,
		Language:   importFlags.language,
		Force:      importFlags.force,
		NoUpdate:   importFlags.noUpdate,
		NoDelete:   importFlags.noDelete,
		DryRun:     importFlags.dryRun,
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	logger := setupLogger(debug)
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	opts.AllowEmptyFeed = importFlags.allowEmpty || cfg.Import.AllowEmptyFeed

	svc, err := buildServices(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer svc.close()

	result, err := svc.importer.Import(cmd.Context(), opts)
	var ppe *model.PostPersistError
	if err != nil && !errors.As(err, &ppe) {
		return err
	}

	out := cmd.OutOrStdout()
	if rerr := report.Render(out, result, importFlags.verbose); rerr != nil {
		return rerr
	}
	fmt.Fprintln(out, statusLine(result, ppe))

	// The import is persisted; surface the follow-up failures with a
	// non-zero exit.
	return err
}

// statusLine closes the import output. ppe is nil when every follow-up step
// succeeded.
func statusLine(result *model.ImportResult, ppe *model.PostPersistError) string {
	if ppe != nil {
		return report.PartialStatusLine(ppe.Errs)
	}
	return report.StatusLine(result)
}
