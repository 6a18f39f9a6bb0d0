package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/personiojobs/internal/filter"
	"github.com/amishk599/personiojobs/internal/report"
)

var listFlags struct {
	language   string
	include    string
	exclude    string
	sorting    string
	descending bool
	limit      int
	offset     int
}

var listCmd = &cobra.Command{
	Use:   "list <storage-pid>",
	Short: "List imported jobs",
	Long:  "Prints the jobs stored for a storage scope. Renderings are cached until one of the listed jobs changes.",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

func init() {
	f := listCmd.Flags()
	f.StringVarP(&listFlags.language, "language", "l", "", "only list jobs of this site language")
	f.StringVar(&listFlags.include, "include", "", "comma-separated subcompanies to list")
	f.StringVar(&listFlags.exclude, "exclude", "", "comma-separated subcompanies to hide")
	f.StringVar(&listFlags.sorting, "sort", "", "sort by name, personioId, subcompany, office, department, recruitingCategory or createDate")
	f.BoolVar(&listFlags.descending, "desc", false, "sort descending")
	f.IntVar(&listFlags.limit, "limit", 0, "maximum number of jobs (0 = all)")
	f.IntVar(&listFlags.offset, "offset", 0, "number of jobs to skip")
	rootCmd.AddCommand(listCmd)
}

// listingKey identifies a rendering by every input that shapes it.
func listingKey(storagePID int) string {
	return fmt.Sprintf("list:%d:%s:%s:%t:%d:%d:%s:%s",
		storagePID,
		listFlags.language,
		listFlags.sorting,
		listFlags.descending,
		listFlags.limit,
		listFlags.offset,
		strings.ToLower(listFlags.include),
		strings.ToLower(listFlags.exclude),
	)
}

func runList(cmd *cobra.Command, args []string) error {
	storagePID, err := parseStoragePID(args[0])
	if err != nil {
		return err
	}
	if listFlags.limit < 0 || listFlags.offset < 0 {
		return &usageError{err: fmt.Errorf("--limit and --offset must not be negative")}
	}

	logger := setupLogger(debug)
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	languageID, err := resolveLanguageID(cfg, listFlags.language)
	if err != nil {
		return err
	}

	demand := filter.Demand{
		StoragePID: storagePID,
		LanguageID: languageID,
		Sorting:    listFlags.sorting,
		Descending: listFlags.descending,
		Limit:      listFlags.limit,
		Offset:     listFlags.offset,
	}
	if listFlags.include != "" || listFlags.exclude != "" {
		demand.Filter = filter.ParseSubcompanyFilter(listFlags.include, listFlags.exclude)
	}
	if _, err := demand.SortColumn(); err != nil {
		return &usageError{err: err}
	}

	ctx := cmd.Context()
	cacheManager, closeCache, err := setupCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	key := listingKey(storagePID)
	out := cmd.OutOrStdout()

	if cached, ok, err := cacheManager.Listing(ctx, key); err != nil {
		logger.Warn("reading cached listing failed", "key", key, "error", err)
	} else if ok {
		logger.Debug("serving cached listing", "key", key)
		_, err := out.Write(cached)
		return err
	}

	jobStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer jobStore.Close()

	jobs, err := jobStore.FindByDemand(ctx, demand)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found.")
		return nil
	}

	rendering := []byte(report.Listing(jobs) + "\n")
	if err := cacheManager.StoreListing(ctx, key, rendering, jobs); err != nil {
		logger.Warn("caching listing failed", "key", key, "error", err)
	}
	_, err = out.Write(rendering)
	return err
}
