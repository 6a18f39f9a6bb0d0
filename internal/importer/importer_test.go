package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/amishk599/personiojobs/internal/model"
)

// --- Fakes ---

// fakeFetcher returns canned jobs and counts calls.
type fakeFetcher struct {
	jobs     []model.Job
	err      error
	calls    int
	language string
}

func (f *fakeFetcher) FetchJobs(_ context.Context, language string) ([]model.Job, error) {
	f.calls++
	f.language = language
	if f.err != nil {
		return nil, f.err
	}
	// Hand out copies so runs do not share state.
	out := make([]model.Job, len(f.jobs))
	for i, j := range f.jobs {
		j.Descriptions = append([]model.JobDescription(nil), j.Descriptions...)
		out[i] = j
	}
	return out, nil
}

// memoryRepo is a map-based JobRepository.
type memoryRepo struct {
	jobs     map[int64]model.Job // by store id
	nextID   int64
	nextDesc int64
	persists int
	err      error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{jobs: make(map[int64]model.Job)}
}

func inScope(j model.Job, storagePID int, languageID *int) bool {
	if j.StoragePID != storagePID {
		return false
	}
	return languageID == nil || j.LanguageID == *languageID || j.LanguageID == model.AllLanguages
}

// FindByPersonioID prefers the requested language, then the all-languages
// row, then the lowest id, like the SQL store.
func (r *memoryRepo) FindByPersonioID(_ context.Context, personioID int64, storagePID int, languageID *int) (*model.Job, error) {
	preferred := model.AllLanguages
	if languageID != nil {
		preferred = *languageID
	}
	rank := func(j model.Job) int {
		switch j.LanguageID {
		case preferred:
			return 0
		case model.AllLanguages:
			return 1
		default:
			return 2
		}
	}

	var best *model.Job
	for _, j := range r.jobs {
		if j.PersonioID != personioID || !inScope(j, storagePID, languageID) {
			continue
		}
		if best == nil || rank(j) < rank(*best) || (rank(j) == rank(*best) && j.ID < best.ID) {
			found := j
			best = &found
		}
	}
	return best, nil
}

func (r *memoryRepo) FindOrphans(_ context.Context, currentIDs []int64, storagePID int, languageID *int) ([]model.Job, error) {
	current := make(map[int64]bool, len(currentIDs))
	for _, id := range currentIDs {
		current[id] = true
	}
	var out []model.Job
	for _, j := range r.jobs {
		if inScope(j, storagePID, languageID) && !current[j.PersonioID] {
			out = append(out, j)
		}
	}
	return out, nil
}

func (r *memoryRepo) Persist(_ context.Context, cs *model.ChangeSet) error {
	r.persists++
	if r.err != nil {
		return r.err
	}
	for _, j := range cs.Removed {
		delete(r.jobs, j.ID)
	}
	for _, j := range cs.Updated {
		r.assignDescriptions(j)
		r.jobs[j.ID] = *j
	}
	for _, j := range cs.Added {
		r.nextID++
		j.ID = r.nextID
		r.assignDescriptions(j)
		r.jobs[j.ID] = *j
	}
	return nil
}

func (r *memoryRepo) assignDescriptions(j *model.Job) {
	for i := range j.Descriptions {
		r.nextDesc++
		j.Descriptions[i].ID = r.nextDesc
		j.Descriptions[i].JobID = j.ID
	}
}

type recordingSlugs struct {
	ids []int64
	err error
}

func (s *recordingSlugs) Regenerate(_ context.Context, id int64) error {
	s.ids = append(s.ids, id)
	return s.err
}

type recordingCache struct {
	calls [][]int64
	err   error
}

func (c *recordingCache) InvalidateJobs(_ context.Context, ids []int64) error {
	c.calls = append(c.calls, ids)
	return c.err
}

type recordingPublisher struct {
	events []model.ImportedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev model.ImportedEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

// --- Helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func feedJob(personioID int64, name string) model.Job {
	created := time.Date(2023, 8, 11, 14, 15, 17, 0, time.UTC)
	return model.NewJob(model.Job{
		PersonioID: personioID,
		Name:       name,
		Descriptions: []model.JobDescription{
			{Sorting: 0, Header: "Hello World!", Bodytext: "<p>Lorem ipsum</p>"},
			{Sorting: 1, Header: "See you soon!", Bodytext: "<p>dolor sit amet</p>"},
		},
		EmploymentType: "permanent",
		Seniority:      "experienced",
		Schedule:       "full-time",
		CreatedAt:      &created,
	})
}

type fixture struct {
	fetcher   *fakeFetcher
	repo      *memoryRepo
	slugs     *recordingSlugs
	cache     *recordingCache
	publisher *recordingPublisher
	svc       *Service
}

func newFixture(jobs ...model.Job) *fixture {
	f := &fixture{
		fetcher:   &fakeFetcher{jobs: jobs},
		repo:      newMemoryRepo(),
		slugs:     &recordingSlugs{},
		cache:     &recordingCache{},
		publisher: &recordingPublisher{},
	}
	f.svc = NewService(f.fetcher, f.repo, f.slugs, f.cache, f.publisher,
		map[string]int{"en": 0, "de": 1}, discardLogger())
	f.svc.newRunID = func() string { return "run-1" }
	f.svc.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return f
}

func mustImport(t *testing.T, svc *Service, opts Options) *model.ImportResult {
	t.Helper()
	r, err := svc.Import(context.Background(), opts)
	if err != nil {
		t.Fatalf("Import() = %v", err)
	}
	return r
}

func assertCounts(t *testing.T, r *model.ImportResult, added, updated, removed, skipped int) {
	t.Helper()
	got := [4]int{
		r.Count(model.OperationAdded),
		r.Count(model.OperationUpdated),
		r.Count(model.OperationRemoved),
		r.Count(model.OperationSkipped),
	}
	want := [4]int{added, updated, removed, skipped}
	if got != want {
		t.Errorf("counts (added, updated, removed, skipped) = %v, want %v", got, want)
	}
}

// --- Tests ---

func TestImport_EmptyStoreAddsAll(t *testing.T) {
	f := newFixture(feedJob(1, "Dev"), feedJob(2, "Ops"))

	r := mustImport(t, f.svc, Options{StoragePID: 3})

	assertCounts(t, r, 2, 0, 0, 0)
	if len(f.repo.jobs) != 2 {
		t.Fatalf("stored %d jobs, want 2", len(f.repo.jobs))
	}
	for _, j := range r.Added() {
		if j.ID == 0 {
			t.Errorf("job %d has no store id in result", j.PersonioID)
		}
		if j.StoragePID != 3 || j.LanguageID != model.AllLanguages {
			t.Errorf("job %d scope = (%d, %d)", j.PersonioID, j.StoragePID, j.LanguageID)
		}
		if len(j.Descriptions) != 2 {
			t.Errorf("job %d has %d descriptions", j.PersonioID, len(j.Descriptions))
		}
	}
	if len(f.slugs.ids) != 2 {
		t.Errorf("regenerated %d slugs, want 2", len(f.slugs.ids))
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].RunID != "run-1" {
		t.Errorf("events = %+v", f.publisher.events)
	}
	if len(f.cache.calls) != 1 || len(f.cache.calls[0]) != 2 {
		t.Errorf("cache calls = %v", f.cache.calls)
	}
}

func TestImport_SecondRunSkipsAll(t *testing.T) {
	f := newFixture(feedJob(1, "Dev"), feedJob(2, "Ops"))
	mustImport(t, f.svc, Options{StoragePID: 3})

	r := mustImport(t, f.svc, Options{StoragePID: 3})

	assertCounts(t, r, 0, 0, 0, 2)
	if len(f.cache.calls) != 1 {
		t.Errorf("second run should not invalidate caches, got %v", f.cache.calls)
	}
	if len(f.publisher.events) != 2 {
		t.Errorf("expected an event per run, got %d", len(f.publisher.events))
	}
}

func TestImport_ChangedJobIsUpdatedInPlace(t *testing.T) {
	f := newFixture(feedJob(1, "Dev"))
	mustImport(t, f.svc, Options{StoragePID: 3})
	var oldDescIDs []int64
	for _, j := range f.repo.jobs {
		for _, d := range j.Descriptions {
			oldDescIDs = append(oldDescIDs, d.ID)
		}
	}

	f.fetcher.jobs = []model.Job{feedJob(1, "Senior Dev")}
	r := mustImport(t, f.svc, Options{StoragePID: 3})

	assertCounts(t, r, 0, 1, 0, 0)
	if len(f.repo.jobs) != 1 {
		t.Fatalf("stored %d jobs, want 1", len(f.repo.jobs))
	}
	stored := f.repo.jobs[1]
	if stored.Name != "Senior Dev" {
		t.Errorf("stored name = %q", stored.Name)
	}
	for _, d := range stored.Descriptions {
		for _, old := range oldDescIDs {
			if d.ID == old {
				t.Errorf("description %d survived the replacement", old)
			}
		}
	}
}

func TestImport_ReplaceRemovesExistingDescriptions(t *testing.T) {
	existing := feedJob(1, "Dev")
	existing.ID = 7
	existing.Descriptions[0].ID = 70
	existing.Descriptions[1].ID = 71
	imported := feedJob(1, "Dev 2")

	cs := &model.ChangeSet{}
	replace(&existing, &imported, cs)

	if len(cs.RemoveDescriptions) != 2 || cs.RemoveDescriptions[0] != 70 {
		t.Errorf("RemoveDescriptions = %v", cs.RemoveDescriptions)
	}
	if len(cs.Updated) != 1 || cs.Updated[0].ID != 7 {
		t.Errorf("Updated = %v", cs.Updated)
	}
}

func TestImport_ReplaceWithoutIdentityReinserts(t *testing.T) {
	existing := feedJob(1, "Dev")
	imported := feedJob(1, "Dev 2")

	cs := &model.ChangeSet{}
	replace(&existing, &imported, cs)

	if len(cs.Removed) != 1 || len(cs.Added) != 1 || len(cs.Updated) != 0 {
		t.Errorf("change set = %+v", cs)
	}
}

func TestImport_ForceUpdatesUnchanged(t *testing.T) {
	f := newFixture(feedJob(1, "Dev"), feedJob(2, "Ops"))
	mustImport(t, f.svc, Options{StoragePID: 3})

	r := mustImport(t, f.svc, Options{StoragePID: 3, Force: true})

	assertCounts(t, r, 0, 2, 0, 0)
}

func TestImport_NoUpdateSkipsChanged(t *testing.T) {
	f := newFixture(feedJob(1, "Dev"))
	mustImport(t, f.svc, Options{StoragePID: 3})

	f.fetcher.jobs = []model.Job{feedJob(1, "Senior Dev")}
	r := mustImport(t, f.svc, Options{StoragePID: 3, NoUpdate: true})

	assertCounts(t, r, 0, 0, 0, 1)
	if f.repo.jobs[1].Name != "Dev" {
		t.Errorf("job was updated despite no-update")
	}
}

func TestImport_ForceAndNoUpdateRejectedBeforeIO(t *testing.T) {
	f := newFixture(feedJob(1, "Dev"))

	_, err := f.svc.Import(context.Background(), Options{Force: true, NoUpdate: true})

	var ipe *model.InvalidParametersError
	if !errors.As(err, &ipe) {
		t.Fatalf("expected InvalidParametersError, got %v", err)
	}
	if f.fetcher.calls != 0 || f.repo.persists != 0 {
		t.Errorf("I/O happened: fetches=%d persists=%d", f.fetcher.calls, f.repo.persists)
	}
}

func TestImport_UnknownLanguage(t *testing.T) {
	f := newFixture(feedJob(1, "Dev"))

	_, err := f.svc.Import(context.Background(), Options{Language: "fr"})

	var ule *model.UnavailableLanguageError
	if !errors.As(err, &ule) || ule.Code != "fr" {
		t.Fatalf("expected UnavailableLanguageError for fr, got %v", err)
	}
	if f.fetcher.calls != 0 {
		t.Error("feed was fetched for an unknown language")
	}
}

func TestImport_LanguageScope(t *testing.T) {
	f := newFixture(feedJob(1, "Dev"))

	r := mustImport(t, f.svc, Options{StoragePID: 3, Language: "de"})

	if f.fetcher.language != "de" {
		t.Errorf("fetched language = %q", f.fetcher.language)
	}
	if got := r.Added()[0].LanguageID; got != 1 {
		t.Errorf("LanguageID = %d, want 1", got)
	}
	if f.publisher.events[0].Language != "de" {
		t.Errorf("event language = %q", f.publisher.events[0].Language)
	}
}

func TestImport_UpdateKeepsStoredLanguage(t *testing.T) {
	f := newFixture(feedJob(1, "Dev"))
	mustImport(t, f.svc, Options{StoragePID: 3, Language: "de"})

	f.fetcher.jobs = []model.Job{feedJob(1, "Senior Dev")}
	r := mustImport(t, f.svc, Options{StoragePID: 3})

	assertCounts(t, r, 0, 1, 0, 0)
	if got := f.repo.jobs[1].LanguageID; got != 1 {
		t.Errorf("stored LanguageID = %d, want 1", got)
	}
	if got := r.Updated()[0].LanguageID; got != 1 {
		t.Errorf("result LanguageID = %d, want 1", got)
	}
}

func TestImport_DuplicatePositionsKeepFirst(t *testing.T) {
	f := newFixture(feedJob(7, "First"), feedJob(7, "Second"), feedJob(8, "Other"))

	r := mustImport(t, f.svc, Options{StoragePID: 3})

	assertCounts(t, r, 2, 0, 0, 0)
	if r.Total() != 2 {
		t.Errorf("Total = %d, want 2", r.Total())
	}
	for _, j := range f.repo.jobs {
		if j.PersonioID == 7 && j.Name != "First" {
			t.Errorf("kept %q, want the first position", j.Name)
		}
	}
}

func TestImport_OrphansRemoved(t *testing.T) {
	f := newFixture(feedJob(1, "Dev"), feedJob(2, "Ops"))
	mustImport(t, f.svc, Options{StoragePID: 3})

	f.fetcher.jobs = []model.Job{feedJob(1, "Dev")}
	r := mustImport(t, f.svc, Options{StoragePID: 3})

	assertCounts(t, r, 0, 0, 1, 1)
	if r.Removed()[0].PersonioID != 2 {
		t.Errorf("removed %d, want 2", r.Removed()[0].PersonioID)
	}
	if len(f.repo.jobs) != 1 {
		t.Errorf("stored %d jobs, want 1", len(f.repo.jobs))
	}
}

func TestImport_NoDeleteKeepsOrphans(t *testing.T) {
	f := newFixture(feedJob(1, "Dev"), feedJob(2, "Ops"))
	mustImport(t, f.svc, Options{StoragePID: 3})

	f.fetcher.jobs = []model.Job{feedJob(1, "Dev")}
	r := mustImport(t, f.svc, Options{StoragePID: 3, NoDelete: true})

	assertCounts(t, r, 0, 0, 0, 1)
	if len(f.repo.jobs) != 2 {
		t.Errorf("stored %d jobs, want 2", len(f.repo.jobs))
	}
}

func TestImport_OrphansOfOtherScopeUntouched(t *testing.T) {
	f := newFixture(feedJob(1, "Dev"))
	mustImport(t, f.svc, Options{StoragePID: 3})

	f.fetcher.jobs = []model.Job{feedJob(2, "Ops")}
	r := mustImport(t, f.svc, Options{StoragePID: 4})

	assertCounts(t, r, 1, 0, 0, 0)
}

func TestImport_EmptyFeedGuard(t *testing.T) {
	f := newFixture(feedJob(1, "Dev"), feedJob(2, "Ops"))
	mustImport(t, f.svc, Options{StoragePID: 3})

	f.fetcher.jobs = nil
	r := mustImport(t, f.svc, Options{StoragePID: 3})
	assertCounts(t, r, 0, 0, 0, 0)
	if len(f.repo.jobs) != 2 {
		t.Fatalf("empty feed removed jobs: %d left", len(f.repo.jobs))
	}

	r = mustImport(t, f.svc, Options{StoragePID: 3, AllowEmptyFeed: true})
	assertCounts(t, r, 0, 0, 2, 0)
	if len(f.repo.jobs) != 0 {
		t.Errorf("stored %d jobs, want 0", len(f.repo.jobs))
	}
}

func TestImport_DryRunTouchesNothing(t *testing.T) {
	f := newFixture(feedJob(1, "Dev"), feedJob(2, "Ops"))

	r := mustImport(t, f.svc, Options{StoragePID: 3, DryRun: true})

	if !r.DryRun {
		t.Error("result not marked as dry run")
	}
	assertCounts(t, r, 2, 0, 0, 0)
	if f.repo.persists != 0 || len(f.repo.jobs) != 0 {
		t.Errorf("store touched: persists=%d jobs=%d", f.repo.persists, len(f.repo.jobs))
	}
	if len(f.slugs.ids) != 0 || len(f.cache.calls) != 0 || len(f.publisher.events) != 0 {
		t.Error("post-persist steps ran in dry run")
	}
}

func TestImport_DryRunMatchesRealClassification(t *testing.T) {
	f := newFixture(feedJob(1, "Dev"), feedJob(2, "Ops"))
	mustImport(t, f.svc, Options{StoragePID: 3})
	f.fetcher.jobs = []model.Job{feedJob(1, "Senior Dev"), feedJob(3, "QA")}

	dry := mustImport(t, f.svc, Options{StoragePID: 3, DryRun: true})
	live := mustImport(t, f.svc, Options{StoragePID: 3})

	for _, op := range model.Operations {
		if dry.Count(op) != live.Count(op) {
			t.Errorf("%s: dry=%d live=%d", op, dry.Count(op), live.Count(op))
		}
	}
	assertCounts(t, live, 1, 1, 1, 0)
}

func TestImport_FetchFailureLeavesStore(t *testing.T) {
	f := newFixture()
	f.fetcher.err = &model.HTTPError{StatusCode: 503}

	_, err := f.svc.Import(context.Background(), Options{StoragePID: 3})

	var he *model.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if f.repo.persists != 0 {
		t.Error("store touched after fetch failure")
	}
}

func TestImport_PersistFailure(t *testing.T) {
	f := newFixture(feedJob(1, "Dev"))
	f.repo.err = errors.New("disk full")

	r, err := f.svc.Import(context.Background(), Options{StoragePID: 3})

	if err == nil || r != nil {
		t.Fatalf("expected error and no result, got %v, %v", r, err)
	}
	if len(f.publisher.events) != 0 {
		t.Error("event published after failed persist")
	}
}

func TestImport_PostPersistFailuresAreCollected(t *testing.T) {
	f := newFixture(feedJob(1, "Dev"))
	slugErr := errors.New("slug failed")
	pubErr := errors.New("broker down")
	f.slugs.err = slugErr
	f.publisher.err = pubErr

	r, err := f.svc.Import(context.Background(), Options{StoragePID: 3})

	var ppe *model.PostPersistError
	if !errors.As(err, &ppe) {
		t.Fatalf("expected PostPersistError, got %v", err)
	}
	if !errors.Is(err, slugErr) || !errors.Is(err, pubErr) {
		t.Errorf("missing wrapped failures: %v", err)
	}
	if r == nil || r.Count(model.OperationAdded) != 1 {
		t.Errorf("result should still be returned, got %v", r)
	}
	if len(f.cache.calls) != 1 {
		t.Error("cache invalidation should run after earlier failures")
	}
}

func TestImport_NilCollaboratorsAreSkipped(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(&fakeFetcher{jobs: []model.Job{feedJob(1, "Dev")}}, repo, nil, nil, nil, nil, discardLogger())

	r := mustImport(t, svc, Options{StoragePID: 3})

	assertCounts(t, r, 1, 0, 0, 0)
}
