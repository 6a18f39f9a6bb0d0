package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/personiojobs/internal/cache"
	"github.com/amishk599/personiojobs/internal/config"
	"github.com/amishk599/personiojobs/internal/feed"
	"github.com/amishk599/personiojobs/internal/importer"
	"github.com/amishk599/personiojobs/internal/model"
	"github.com/amishk599/personiojobs/internal/notifier"
	"github.com/amishk599/personiojobs/internal/ratelimit"
	"github.com/amishk599/personiojobs/internal/retry"
	"github.com/amishk599/personiojobs/internal/slug"
	"github.com/amishk599/personiojobs/internal/store"
)

// redisKeyPrefix namespaces cache entries in a shared Redis.
const redisKeyPrefix = "personiojobs:"

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "personiojobs",
	Short: "Personio job feed importer",
	Long:  "personiojobs imports the Personio XML job feed into a local store and keeps it in sync.",
	// Default to `schedule` so that `personiojobs` with no args runs the daemon.
	RunE:          runSchedule,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: PERSONIOJOBS_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > PERSONIOJOBS_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("PERSONIOJOBS_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func newHTTPClient(cfg *config.Config) *http.Client {
	return &http.Client{Timeout: cfg.Feed.Timeout}
}

// setupFeed returns the feed client and the fetcher chain around it:
// client → rate limit (feed.min_delay) → retry (feed.retries).
func setupFeed(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (*feed.Client, model.FeedFetcher, error) {
	client, err := feed.NewClient(cfg.Feed.APIURL, httpClient, logger)
	if err != nil {
		return nil, nil, err
	}

	var fetcher model.FeedFetcher = client
	if cfg.Feed.MinDelay > 0 {
		u, err := url.Parse(cfg.Feed.APIURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing api url: %w", err)
		}
		fetcher = ratelimit.NewRateLimitedFetcher(fetcher, ratelimit.NewHostRateLimiter(cfg.Feed.MinDelay), u.Host)
	}
	if cfg.Feed.Retries > 0 {
		fetcher = retry.NewFetcher(fetcher, cfg.Feed.Retries, cfg.Feed.RetryDelay, logger)
	}
	return client, fetcher, nil
}

func openStore(cfg *config.Config) (*store.SQLStore, error) {
	s, err := store.Open(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return s, nil
}

// setupCache builds the cache manager for cache.type. The returned func
// releases its connections.
func setupCache(ctx context.Context, cfg *config.Config) (*cache.Manager, func(), error) {
	switch cfg.Cache.Type {
	case "redis":
		rdb, err := cache.NewRedisClient(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		frontend := cache.NewRedisFrontend(rdb, redisKeyPrefix)
		return cache.NewManager(frontend, cfg.Cache.TTL), func() { rdb.Close() }, nil
	case "none":
		return cache.NewManager(cache.NullFrontend{}, 0), func() {}, nil
	default:
		return cache.NewManager(cache.NewMemoryFrontend(), cfg.Cache.TTL), func() {}, nil
	}
}

// setupPublisher fans out to every configured event publisher, or logs the
// events when none is configured.
func setupPublisher(ctx context.Context, cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (model.EventPublisher, func(), error) {
	if len(cfg.Events) == 0 {
		return notifier.NewLogPublisher(logger), func() {}, nil
	}

	var (
		multi   notifier.Multi
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	for _, e := range cfg.Events {
		switch e.Type {
		case "log":
			multi = append(multi, notifier.NewLogPublisher(logger))
		case "redis":
			rdb, err := cache.NewRedisClient(ctx, e.RedisURL)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			closers = append(closers, func() { rdb.Close() })
			multi = append(multi, notifier.NewRedisPublisher(rdb, e.Channel))
		case "nats":
			nc, err := notifier.ConnectNATS(e.URL, logger)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			closers = append(closers, func() { nc.Drain() })
			multi = append(multi, notifier.NewNATSPublisher(nc, e.Subject))
		case "slack":
			logger.Debug("using slack publisher")
			multi = append(multi, notifier.NewSlackPublisher(e.WebhookURL, httpClient, logger))
		}
	}
	return multi, closeAll, nil
}

// services bundles everything an import needs.
type services struct {
	feed     *feed.Client
	store    *store.SQLStore
	cache    *cache.Manager
	importer *importer.Service
	close    func()
}

func buildServices(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*services, error) {
	httpClient := newHTTPClient(cfg)

	client, fetcher, err := setupFeed(cfg, httpClient, logger)
	if err != nil {
		return nil, err
	}

	jobStore, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	cacheManager, closeCache, err := setupCache(ctx, cfg)
	if err != nil {
		jobStore.Close()
		return nil, err
	}

	publisher, closePublisher, err := setupPublisher(ctx, cfg, httpClient, logger)
	if err != nil {
		closeCache()
		jobStore.Close()
		return nil, err
	}

	svc := importer.NewService(
		fetcher,
		jobStore,
		slug.NewGenerator(jobStore),
		cacheManager,
		publisher,
		cfg.Site.LanguageIDs(),
		logger,
	)

	return &services{
		feed:     client,
		store:    jobStore,
		cache:    cacheManager,
		importer: svc,
		close: func() {
			closePublisher()
			closeCache()
			jobStore.Close()
		},
	}, nil
}

// resolveLanguageID maps a language code to its configured id. An empty code
// yields nil.
func resolveLanguageID(cfg *config.Config, code string) (*int, error) {
	if code == "" {
		return nil, nil
	}
	id, ok := cfg.Site.LanguageIDs()[code]
	if !ok {
		return nil, &model.UnavailableLanguageError{Code: code}
	}
	return &id, nil
}
