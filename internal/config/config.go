package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for personiojobs.
type Config struct {
	Feed     FeedConfig
	Storage  StorageConfig
	Site     SiteConfig
	Cache    CacheConfig
	Events   []EventConfig
	Schedule ScheduleConfig
	Import   ImportConfig
}

// FeedConfig controls access to the Personio XML feed.
type FeedConfig struct {
	APIURL     string        // e.g. https://acme.jobs.personio.de
	Timeout    time.Duration // per-request timeout
	Retries    int           // 0 disables retries
	RetryDelay time.Duration // base delay, doubled per attempt
	MinDelay   time.Duration // minimum gap between feed requests
}

// StorageConfig selects the job store.
type StorageConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`
}

// Language maps a site language code to its language id.
type Language struct {
	Code string `yaml:"code"`
	ID   int    `yaml:"id"`
}

// SiteConfig lists the languages jobs can be imported for.
type SiteConfig struct {
	Languages []Language `yaml:"languages"`
}

// LanguageIDs returns the configured languages keyed by code.
func (s SiteConfig) LanguageIDs() map[string]int {
	ids := make(map[string]int, len(s.Languages))
	for _, l := range s.Languages {
		ids[l.Code] = l.ID
	}
	return ids
}

// CacheConfig selects the cache frontend.
type CacheConfig struct {
	Type     string        // "memory", "redis" or "none"
	RedisURL string        // required if type is "redis"
	TTL      time.Duration // zero keeps entries until flushed
}

// EventConfig configures one import event publisher.
type EventConfig struct {
	Type       string `yaml:"type"`        // "log", "redis", "nats" or "slack"
	RedisURL   string `yaml:"redis_url"`   // redis
	Channel    string `yaml:"channel"`     // redis
	URL        string `yaml:"url"`         // nats
	Subject    string `yaml:"subject"`     // nats
	WebhookURL string `yaml:"webhook_url"` // slack
}

// Target is one scheduled import.
type Target struct {
	StoragePID int    `yaml:"storage_pid"`
	Language   string `yaml:"language"`
	NoDelete   bool   `yaml:"no_delete"`
	NoUpdate   bool   `yaml:"no_update"`
}

// ScheduleConfig drives the schedule command.
type ScheduleConfig struct {
	Cron    string   `yaml:"cron"`
	Targets []Target `yaml:"targets"`
}

// ImportConfig holds defaults for every import run.
type ImportConfig struct {
	AllowEmptyFeed bool `yaml:"allow_empty_feed"`
}

const (
	defaultTimeout    = 30 * time.Second
	defaultRetryDelay = 5 * time.Second
	defaultDSN        = "personiojobs.db"
	defaultCron       = "@every 1h"
	slackHookPrefix   = "https://hooks.slack.com/"
)

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	Feed     rawFeedConfig  `yaml:"feed"`
	Storage  StorageConfig  `yaml:"storage"`
	Site     SiteConfig     `yaml:"site"`
	Cache    rawCacheConfig `yaml:"cache"`
	Events   []EventConfig  `yaml:"events"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Import   ImportConfig   `yaml:"import"`
}

type rawFeedConfig struct {
	APIURL     string `yaml:"api_url"`
	Timeout    string `yaml:"timeout"`
	Retries    int    `yaml:"retries"`
	RetryDelay string `yaml:"retry_delay"`
	MinDelay   string `yaml:"min_delay"`
}

type rawCacheConfig struct {
	Type     string `yaml:"type"`
	RedisURL string `yaml:"redis_url"`
	TTL      string `yaml:"ttl"`
}

// parseDuration returns def for an empty value.
func parseDuration(field, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, value, err)
	}
	return d, nil
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
// A .env file next to the config is loaded first; variables already set win.
func Load(path string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envPath, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	timeout, err := parseDuration("feed.timeout", raw.Feed.Timeout, defaultTimeout)
	if err != nil {
		return nil, err
	}
	retryDelay, err := parseDuration("feed.retry_delay", raw.Feed.RetryDelay, defaultRetryDelay)
	if err != nil {
		return nil, err
	}
	minDelay, err := parseDuration("feed.min_delay", raw.Feed.MinDelay, 0)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("cache.ttl", raw.Cache.TTL, 0)
	if err != nil {
		return nil, err
	}

	storage := raw.Storage
	if storage.Driver == "" {
		storage.Driver = "sqlite"
	}
	if storage.DSN == "" && storage.Driver == "sqlite" {
		storage.DSN = defaultDSN
	}

	cacheType := raw.Cache.Type
	if cacheType == "" {
		cacheType = "memory"
	}

	schedule := raw.Schedule
	if schedule.Cron == "" {
		schedule.Cron = defaultCron
	}

	cfg := &Config{
		Feed: FeedConfig{
			APIURL:     strings.TrimRight(raw.Feed.APIURL, "/"),
			Timeout:    timeout,
			Retries:    raw.Feed.Retries,
			RetryDelay: retryDelay,
			MinDelay:   minDelay,
		},
		Storage: storage,
		Site:    raw.Site,
		Cache: CacheConfig{
			Type:     cacheType,
			RedisURL: raw.Cache.RedisURL,
			TTL:      cacheTTL,
		},
		Events:   raw.Events,
		Schedule: schedule,
		Import:   raw.Import,
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Feed.APIURL == "" {
		return fmt.Errorf("feed.api_url is required")
	}
	if u, err := url.Parse(cfg.Feed.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("feed.api_url must be an absolute URL, got %q", cfg.Feed.APIURL)
	}
	if cfg.Feed.Timeout <= 0 {
		return fmt.Errorf("feed.timeout must be positive, got %v", cfg.Feed.Timeout)
	}
	if cfg.Feed.Retries < 0 {
		return fmt.Errorf("feed.retries must not be negative, got %d", cfg.Feed.Retries)
	}
	if cfg.Feed.MinDelay < 0 {
		return fmt.Errorf("feed.min_delay must not be negative, got %v", cfg.Feed.MinDelay)
	}

	switch cfg.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("storage.driver must be \"sqlite\" or \"postgres\", got %q", cfg.Storage.Driver)
	}
	if cfg.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for driver %q", cfg.Storage.Driver)
	}

	seen := make(map[string]bool, len(cfg.Site.Languages))
	for _, l := range cfg.Site.Languages {
		if l.Code == "" {
			return fmt.Errorf("site.languages: code is required")
		}
		if l.ID < 0 {
			return fmt.Errorf("site.languages[%q]: id must not be negative, got %d", l.Code, l.ID)
		}
		if seen[l.Code] {
			return fmt.Errorf("site.languages: duplicate code %q", l.Code)
		}
		seen[l.Code] = true
	}

	switch cfg.Cache.Type {
	case "memory", "none":
	case "redis":
		if cfg.Cache.RedisURL == "" {
			return fmt.Errorf("cache.redis_url is required when type is \"redis\"")
		}
	default:
		return fmt.Errorf("cache.type must be \"memory\", \"redis\" or \"none\", got %q", cfg.Cache.Type)
	}

	for i, e := range cfg.Events {
		switch e.Type {
		case "log":
		case "redis":
			if e.RedisURL == "" {
				return fmt.Errorf("events[%d].redis_url is required when type is \"redis\"", i)
			}
		case "nats":
			if e.URL == "" {
				return fmt.Errorf("events[%d].url is required when type is \"nats\"", i)
			}
		case "slack":
			if !strings.HasPrefix(e.WebhookURL, slackHookPrefix) {
				return fmt.Errorf("events[%d].webhook_url must start with %s", i, slackHookPrefix)
			}
		default:
			return fmt.Errorf("events[%d].type %q is not supported", i, e.Type)
		}
	}

	for i, t := range cfg.Schedule.Targets {
		if t.StoragePID < 0 {
			return fmt.Errorf("schedule.targets[%d].storage_pid must not be negative, got %d", i, t.StoragePID)
		}
		if t.Language != "" && !seen[t.Language] {
			return fmt.Errorf("schedule.targets[%d].language %q is not in site.languages", i, t.Language)
		}
	}

	return nil
}
