// Package slug builds unique URL slugs for persisted jobs.
package slug

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	gslug "github.com/gosimple/slug"

	"github.com/amishk599/personiojobs/internal/model"
)

// Ensure Generator implements model.SlugRegenerator.
var _ model.SlugRegenerator = (*Generator)(nil)

// Store is the slice of the job store the generator needs.
type Store interface {
	FindByID(ctx context.Context, id int64) (*model.Job, error)
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	UpdateSlug(ctx context.Context, id int64, slug string) error
}

// maxAttempts bounds the numeric suffix search.
const maxAttempts = 100

// Generator derives slugs from a job's name and external id, e.g.
// "software-tester-f-m-x-1", and keeps them unique across all jobs.
type Generator struct {
	store Store
}

func NewGenerator(store Store) *Generator {
	return &Generator{store: store}
}

// Base returns the slug for job before uniqueness is applied.
func Base(job model.Job) string {
	// "/" in titles such as "(f/m/x)" separates words rather than path segments.
	name := strings.ReplaceAll(job.Name, "/", "-")
	return gslug.Make(name + "-" + strconv.FormatInt(job.PersonioID, 10))
}

// Regenerate recomputes and stores the slug of job id. A job that no longer
// exists is skipped.
func (g *Generator) Regenerate(ctx context.Context, id int64) error {
	job, err := g.store.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("loading job #%d for slug: %w", id, err)
	}
	if job == nil {
		return nil
	}

	slug, err := g.unique(ctx, Base(*job), id)
	if err != nil {
		return err
	}
	if slug == job.Slug {
		return nil
	}
	return g.store.UpdateSlug(ctx, id, slug)
}

func (g *Generator) unique(ctx context.Context, base string, id int64) (string, error) {
	candidate := base
	for i := 1; i <= maxAttempts; i++ {
		taken, err := g.store.SlugExists(ctx, candidate, id)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(i)
	}
	return "", fmt.Errorf("no free slug for %q after %d attempts", base, maxAttempts)
}
