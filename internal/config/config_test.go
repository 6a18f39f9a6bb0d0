package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
feed:
  api_url: https://acme.jobs.personio.de/
  timeout: 10s
  retries: 2
site:
  languages:
    - {code: en, id: 0}
    - {code: de, id: 1}
cache:
  type: none
events:
  - type: log
  - type: nats
    url: nats://localhost:4222
schedule:
  cron: "*/15 * * * *"
  targets:
    - storage_pid: 3
      language: de
      no_delete: true
import:
  allow_empty_feed: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Feed.APIURL != "https://acme.jobs.personio.de" {
		t.Errorf("APIURL = %q, want trailing slash trimmed", cfg.Feed.APIURL)
	}
	if cfg.Feed.Timeout != 10*time.Second || cfg.Feed.Retries != 2 {
		t.Errorf("Feed = %+v", cfg.Feed)
	}
	if cfg.Feed.RetryDelay != defaultRetryDelay {
		t.Errorf("RetryDelay = %v, want default", cfg.Feed.RetryDelay)
	}
	if ids := cfg.Site.LanguageIDs(); ids["de"] != 1 || len(ids) != 2 {
		t.Errorf("LanguageIDs = %v", ids)
	}
	if len(cfg.Events) != 2 || cfg.Events[1].URL != "nats://localhost:4222" {
		t.Errorf("Events = %+v", cfg.Events)
	}
	if len(cfg.Schedule.Targets) != 1 || !cfg.Schedule.Targets[0].NoDelete {
		t.Errorf("Targets = %+v", cfg.Schedule.Targets)
	}
	if !cfg.Import.AllowEmptyFeed {
		t.Error("AllowEmptyFeed = false")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "feed:\n  api_url: https://acme.jobs.personio.de\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.DSN != defaultDSN {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Cache.Type != "memory" {
		t.Errorf("Cache.Type = %q", cfg.Cache.Type)
	}
	if cfg.Feed.Timeout != defaultTimeout || cfg.Feed.Retries != 0 {
		t.Errorf("Feed = %+v", cfg.Feed)
	}
	if cfg.Schedule.Cron != defaultCron {
		t.Errorf("Cron = %q", cfg.Schedule.Cron)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	path := writeConfig(t, "feed:\n  api_url: ${PERSONIOJOBS_TEST_API_URL}\n")
	env := filepath.Join(filepath.Dir(path), ".env")
	if err := os.WriteFile(env, []byte("PERSONIOJOBS_TEST_API_URL=https://dotenv.jobs.personio.de\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("PERSONIOJOBS_TEST_API_URL") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Feed.APIURL != "https://dotenv.jobs.personio.de" {
		t.Errorf("APIURL = %q", cfg.Feed.APIURL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "feed: [broken"))
	if err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	const base = "feed:\n  api_url: https://acme.jobs.personio.de\n"
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing api url", "feed:\n  timeout: 5s\n", "feed.api_url is required"},
		{"relative api url", "feed:\n  api_url: acme\n", "absolute URL"},
		{"bad duration", base + "  timeout: soon\n", "feed.timeout"},
		{"negative retries", base + "  retries: -1\n", "feed.retries"},
		{"unknown driver", base + "storage:\n  driver: mysql\n", "storage.driver"},
		{"postgres without dsn", base + "storage:\n  driver: postgres\n", "storage.dsn"},
		{"duplicate language", base + "site:\n  languages:\n    - {code: en, id: 0}\n    - {code: en, id: 1}\n", "duplicate code"},
		{"redis cache without url", base + "cache:\n  type: redis\n", "cache.redis_url"},
		{"unknown event", base + "events:\n  - type: kafka\n", "not supported"},
		{"slack webhook", base + "events:\n  - type: slack\n    webhook_url: https://example.com\n", "hooks.slack.com"},
		{"unknown target language", base + "schedule:\n  targets:\n    - {storage_pid: 1, language: fr}\n", "not in site.languages"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
