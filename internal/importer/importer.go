// Package importer reconciles the persisted jobs of one storage scope with
// the current Personio feed.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/personiojobs/internal/model"
)

// Options select the scope and behaviour of one import run.
type Options struct {
	StoragePID int
	// Language is a site language code. Empty imports the default feed for
	// all languages.
	Language       string
	Force          bool // replace unchanged jobs too
	NoUpdate       bool // never replace existing jobs
	NoDelete       bool // keep jobs that disappeared from the feed
	DryRun         bool // classify only
	AllowEmptyFeed bool // remove every job in scope when the feed is empty
}

// Validate rejects contradictory options.
func (o Options) Validate() error {
	if o.Force && o.NoUpdate {
		return &model.InvalidParametersError{Reason: "force and no-update cannot be used together"}
	}
	if o.StoragePID < 0 {
		return &model.InvalidParametersError{Reason: fmt.Sprintf("storage pid must not be negative, got %d", o.StoragePID)}
	}
	return nil
}

// Service owns the import pipeline:
// fetch → classify → persist → slugs → notify → invalidate caches.
type Service struct {
	fetcher   model.FeedFetcher
	repo      model.JobRepository
	slugs     model.SlugRegenerator
	cache     model.CacheInvalidator
	publisher model.EventPublisher
	languages map[string]int
	logger    *slog.Logger

	now      func() time.Time
	newRunID func() string
}

// NewService creates a service wired with all its dependencies. slugs, cache
// and publisher may be nil, in which case the step is skipped. languages maps
// site language codes to language ids.
func NewService(
	fetcher model.FeedFetcher,
	repo model.JobRepository,
	slugs model.SlugRegenerator,
	cache model.CacheInvalidator,
	publisher model.EventPublisher,
	languages map[string]int,
	logger *slog.Logger,
) *Service {
	return &Service{
		fetcher:   fetcher,
		repo:      repo,
		slugs:     slugs,
		cache:     cache,
		publisher: publisher,
		languages: languages,
		logger:    logger,
		now:       time.Now,
		newRunID:  uuid.NewString,
	}
}

// resolveLanguage returns nil for an empty code.
func (s *Service) resolveLanguage(code string) (*int, error) {
	if code == "" {
		return nil, nil
	}
	id, ok := s.languages[code]
	if !ok {
		return nil, &model.UnavailableLanguageError{Code: code}
	}
	return &id, nil
}

// Import runs one reconciliation. The returned result is complete even when
// the error is a *model.PostPersistError; any other error means nothing was
// persisted.
func (s *Service) Import(ctx context.Context, opts Options) (*model.ImportResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	languageID, err := s.resolveLanguage(opts.Language)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With("storage_pid", opts.StoragePID, "language", opts.Language)

	jobs, err := s.fetcher.FetchJobs(ctx, opts.Language)
	if err != nil {
		return nil, fmt.Errorf("fetching jobs: %w", err)
	}
	logger.Debug("fetched jobs", "count", len(jobs))
	jobs = dedupe(jobs, logger)

	orphans, err := s.orphans(ctx, jobs, opts, languageID, logger)
	if err != nil {
		return nil, err
	}

	cs := &model.ChangeSet{}
	var classified []classification

	for i := range jobs {
		job := &jobs[i]
		job.StoragePID = opts.StoragePID
		job.LanguageID = model.AllLanguages
		if languageID != nil {
			job.LanguageID = *languageID
		}
		op, err := s.classify(ctx, job, opts, languageID, cs)
		if err != nil {
			return nil, err
		}
		classified = append(classified, classification{job: job, op: op})
	}

	for i := range orphans {
		orphan := &orphans[i]
		for _, d := range orphan.Descriptions {
			cs.RemoveDescription(d.ID)
		}
		cs.Remove(orphan)
		classified = append(classified, classification{job: orphan, op: model.OperationRemoved})
	}

	if opts.DryRun {
		result := buildResult(classified, true)
		logger.Info("dry run finished", countArgs(result)...)
		return result, nil
	}

	if err := s.repo.Persist(ctx, cs); err != nil {
		return nil, fmt.Errorf("persisting changes: %w", err)
	}

	// Built after Persist so the result carries store identities.
	final := buildResult(classified, false)
	errs := s.afterPersist(ctx, final, opts, logger)
	logger.Info("import finished", countArgs(final)...)
	if len(errs) > 0 {
		return final, &model.PostPersistError{Errs: errs}
	}
	return final, nil
}

func (s *Service) orphans(ctx context.Context, jobs []model.Job, opts Options, languageID *int, logger *slog.Logger) ([]model.Job, error) {
	if opts.NoDelete {
		return nil, nil
	}
	if len(jobs) == 0 && !opts.AllowEmptyFeed {
		logger.Warn("feed returned no jobs, skipping orphan removal")
		return nil, nil
	}

	ids := make([]int64, len(jobs))
	for i, j := range jobs {
		ids[i] = j.PersonioID
	}
	orphans, err := s.repo.FindOrphans(ctx, ids, opts.StoragePID, languageID)
	if err != nil {
		return nil, fmt.Errorf("finding orphaned jobs: %w", err)
	}
	return orphans, nil
}

type classification struct {
	job *model.Job
	op  model.ImportOperation
}

func buildResult(classified []classification, dryRun bool) *model.ImportResult {
	result := model.NewImportResult(dryRun)
	for _, c := range classified {
		result.Add(*c.job, c.op)
	}
	return result
}

// classify decides between add, replace and skip for one fetched job and
// schedules the matching change.
func (s *Service) classify(ctx context.Context, job *model.Job, opts Options, languageID *int, cs *model.ChangeSet) (model.ImportOperation, error) {
	existing, err := s.repo.FindByPersonioID(ctx, job.PersonioID, opts.StoragePID, languageID)
	if err != nil {
		return 0, fmt.Errorf("looking up job %d: %w", job.PersonioID, err)
	}

	switch {
	case existing == nil:
		cs.Add(job)
		return model.OperationAdded, nil
	case (!opts.NoUpdate && existing.ContentHash != job.ContentHash) || opts.Force:
		replace(existing, job, cs)
		return model.OperationUpdated, nil
	default:
		job.ID = existing.ID
		job.Slug = existing.Slug
		job.StoragePID = existing.StoragePID
		job.LanguageID = existing.LanguageID
		return model.OperationSkipped, nil
	}
}

// dedupe keeps the first position of every personio id.
func dedupe(jobs []model.Job, logger *slog.Logger) []model.Job {
	seen := make(map[int64]bool, len(jobs))
	out := jobs[:0]
	for _, j := range jobs {
		if seen[j.PersonioID] {
			logger.Warn("feed lists job twice, keeping the first", "personio_id", j.PersonioID)
			continue
		}
		seen[j.PersonioID] = true
		out = append(out, j)
	}
	return out
}

// replace schedules the imported job to take the place of the existing one.
// The stored row keeps its storage and language. Existing descriptions are
// always dropped.
func replace(existing, imported *model.Job, cs *model.ChangeSet) {
	for _, d := range existing.Descriptions {
		cs.RemoveDescription(d.ID)
	}
	imported.StoragePID = existing.StoragePID
	imported.LanguageID = existing.LanguageID
	if existing.ID == 0 {
		cs.Remove(existing)
		cs.Add(imported)
		return
	}
	imported.ID = existing.ID
	imported.Slug = existing.Slug
	cs.Update(imported)
}

// afterPersist runs the best-effort follow-up steps. Every step runs; the
// failures are returned.
func (s *Service) afterPersist(ctx context.Context, result *model.ImportResult, opts Options, logger *slog.Logger) []error {
	var errs []error
	modified := result.Modified()

	if s.slugs != nil {
		for _, j := range modified {
			if j.ID == 0 {
				continue
			}
			if err := s.slugs.Regenerate(ctx, j.ID); err != nil {
				logger.Error("slug regeneration failed", "job_id", j.ID, "personio_id", j.PersonioID, "error", err)
				errs = append(errs, fmt.Errorf("regenerating slug of job %d: %w", j.PersonioID, err))
			}
		}
	}

	if s.publisher != nil {
		ev := model.ImportedEvent{
			RunID:      s.newRunID(),
			StoragePID: opts.StoragePID,
			Language:   opts.Language,
			FinishedAt: s.now(),
			Result:     result,
		}
		if err := s.publisher.Publish(ctx, ev); err != nil {
			logger.Error("publishing import event failed", "run_id", ev.RunID, "error", err)
			errs = append(errs, fmt.Errorf("publishing import event: %w", err))
		}
	}

	if s.cache != nil && len(modified) > 0 {
		ids := make([]int64, 0, len(modified))
		for _, j := range modified {
			ids = append(ids, j.ID)
		}
		if err := s.cache.InvalidateJobs(ctx, ids); err != nil {
			logger.Error("cache invalidation failed", "error", err)
			errs = append(errs, fmt.Errorf("invalidating caches: %w", err))
		}
	}

	return errs
}

func countArgs(r *model.ImportResult) []any {
	args := make([]any, 0, 2*len(model.Operations))
	for _, op := range model.Operations {
		args = append(args, op.String(), r.Count(op))
	}
	return args
}
