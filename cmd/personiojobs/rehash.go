package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var rehashCmd = &cobra.Command{
	Use:   "rehash <job-id>",
	Short: "Recalculate the content hash of a stored job",
	Args:  cobra.ExactArgs(1),
	RunE:  runRehash,
}

func init() {
	rootCmd.AddCommand(rehashCmd)
}

func runRehash(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return &usageError{err: fmt.Errorf("invalid job id %q", args[0])}
	}

	logger := setupLogger(debug)
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	jobStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer jobStore.Close()

	job, changed, err := jobStore.Rehash(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %d not found", id)
	}

	out := cmd.OutOrStdout()
	if !changed {
		fmt.Fprintf(out, "Job %d is up to date (%s).\n", id, job.ContentHash)
		return nil
	}

	cacheManager, closeCache, err := setupCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()
	if err := cacheManager.InvalidateJobs(ctx, []int64{id}); err != nil {
		logger.Warn("cache invalidation failed", "job_id", id, "error", err)
	}

	fmt.Fprintf(out, "Job %d rehashed (%s).\n", id, job.ContentHash)
	return nil
}
