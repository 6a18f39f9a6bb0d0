package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/amishk599/personiojobs/internal/cache"
	"github.com/amishk599/personiojobs/internal/mapper"
	"github.com/amishk599/personiojobs/internal/model"
	"github.com/amishk599/personiojobs/internal/slug"
	"github.com/amishk599/personiojobs/internal/store"
)

// fileFetcher maps a feed fixture from disk.
type fileFetcher struct {
	path string
}

func (f fileFetcher) FetchJobs(context.Context, string) ([]model.Job, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	return mapper.New().MapXML(data)
}

func TestImport_SampleFeedIntoSQLite(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	frontend := cache.NewMemoryFrontend()
	svc := NewService(
		fileFetcher{path: filepath.Join("..", "mapper", "testdata", "feed.xml")},
		s,
		slug.NewGenerator(s),
		cache.NewManager(frontend, 0),
		nil,
		map[string]int{"en": 0},
		discardLogger(),
	)
	ctx := context.Background()

	// A listing cached before the import must not survive it.
	if err := frontend.Set(ctx, "list", []byte("stale"), 0, cache.ListTag); err != nil {
		t.Fatalf("Set: %v", err)
	}

	r := mustImport(t, svc, Options{StoragePID: 1})
	assertCounts(t, r, 2, 0, 0, 0)

	for _, j := range r.Added() {
		stored, err := s.FindByID(ctx, j.ID)
		if err != nil || stored == nil {
			t.Fatalf("FindByID(%d) = %v, %v", j.ID, stored, err)
		}
		if len(stored.Descriptions) != 2 {
			t.Errorf("job %d has %d descriptions, want 2", j.PersonioID, len(stored.Descriptions))
		}
		if stored.Slug != slug.Base(*stored) {
			t.Errorf("job %d slug = %q", j.PersonioID, stored.Slug)
		}
	}
	if _, ok, _ := frontend.Get(ctx, "list"); ok {
		t.Error("cached listing survived the import")
	}

	r = mustImport(t, svc, Options{StoragePID: 1})
	assertCounts(t, r, 0, 0, 0, 2)
}

func newSQLiteService(t *testing.T, fetcher model.FeedFetcher) (*Service, *store.SQLStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	svc := NewService(fetcher, s, slug.NewGenerator(s), nil, nil,
		map[string]int{"de": 1, "fr": 2}, discardLogger())
	return svc, s
}

func TestImport_LanguageRowsSurviveDefaultImports(t *testing.T) {
	fetcher := &fakeFetcher{jobs: []model.Job{feedJob(7, "Dev")}}
	svc, s := newSQLiteService(t, fetcher)
	ctx := context.Background()

	assertCounts(t, mustImport(t, svc, Options{StoragePID: 1, Language: "de", NoDelete: true}), 1, 0, 0, 0)
	assertCounts(t, mustImport(t, svc, Options{StoragePID: 1, Language: "fr", NoDelete: true}), 1, 0, 0, 0)

	for _, name := range []string{"Senior Dev", "Lead Dev"} {
		fetcher.jobs = []model.Job{feedJob(7, name)}
		assertCounts(t, mustImport(t, svc, Options{StoragePID: 1, NoDelete: true}), 0, 1, 0, 0)
	}

	de, err := s.FindByPersonioID(ctx, 7, 1, intPtr(1))
	if err != nil || de == nil {
		t.Fatalf("FindByPersonioID(de) = %v, %v", de, err)
	}
	if de.LanguageID != 1 || de.Name != "Lead Dev" {
		t.Errorf("de row = language %d, name %q", de.LanguageID, de.Name)
	}
	fr, err := s.FindByPersonioID(ctx, 7, 1, intPtr(2))
	if err != nil || fr == nil {
		t.Fatalf("FindByPersonioID(fr) = %v, %v", fr, err)
	}
	if fr.LanguageID != 2 || fr.Name != "Dev" {
		t.Errorf("fr row = language %d, name %q", fr.LanguageID, fr.Name)
	}
}

func TestImport_LanguageRunUpdatesAllLanguagesRowInPlace(t *testing.T) {
	fetcher := &fakeFetcher{jobs: []model.Job{feedJob(7, "Dev")}}
	svc, s := newSQLiteService(t, fetcher)
	ctx := context.Background()

	mustImport(t, svc, Options{StoragePID: 1})

	fetcher.jobs = []model.Job{feedJob(7, "Senior Dev")}
	assertCounts(t, mustImport(t, svc, Options{StoragePID: 1, Language: "de"}), 0, 1, 0, 0)

	fetcher.jobs = []model.Job{feedJob(7, "Lead Dev")}
	assertCounts(t, mustImport(t, svc, Options{StoragePID: 1}), 0, 1, 0, 0)

	got, err := s.FindByPersonioID(ctx, 7, 1, nil)
	if err != nil || got == nil {
		t.Fatalf("FindByPersonioID = %v, %v", got, err)
	}
	if got.LanguageID != model.AllLanguages || got.Name != "Lead Dev" {
		t.Errorf("row = language %d, name %q", got.LanguageID, got.Name)
	}
}

func TestImport_DuplicatePositionsIntoSQLite(t *testing.T) {
	fetcher := &fakeFetcher{jobs: []model.Job{feedJob(7, "Dev"), feedJob(7, "Dev")}}
	svc, _ := newSQLiteService(t, fetcher)

	r := mustImport(t, svc, Options{StoragePID: 1})

	assertCounts(t, r, 1, 0, 0, 0)
}

func intPtr(v int) *int { return &v }
