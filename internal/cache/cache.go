// Package cache stores rendered job listings under tags and flushes them
// when the underlying jobs change.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/amishk599/personiojobs/internal/model"
)

// ListTag is attached to every cached rendering that lists jobs.
const ListTag = "personio_jobs"

// JobTag is attached to every cached rendering that shows job id.
func JobTag(id int64) string {
	return ListTag + "_" + strconv.FormatInt(id, 10)
}

// Frontend is a tag-aware key/value cache.
type Frontend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error
	FlushByTags(ctx context.Context, tags ...string) error
}

// Ensure Manager implements model.CacheInvalidator.
var _ model.CacheInvalidator = (*Manager)(nil)

// Manager knows which tags belong to which jobs.
type Manager struct {
	frontend Frontend
	ttl      time.Duration
}

// NewManager returns a manager over frontend. A zero ttl keeps entries until
// they are flushed.
func NewManager(frontend Frontend, ttl time.Duration) *Manager {
	return &Manager{frontend: frontend, ttl: ttl}
}

// InvalidateJobs flushes the tag of every job, then the listing tag once.
// Every tag is attempted; failures are joined.
func (m *Manager) InvalidateJobs(ctx context.Context, jobIDs []int64) error {
	if len(jobIDs) == 0 {
		return nil
	}

	var errs []error
	for _, id := range jobIDs {
		if err := m.frontend.FlushByTags(ctx, JobTag(id)); err != nil {
			errs = append(errs, fmt.Errorf("flushing %s: %w", JobTag(id), err))
		}
	}
	if err := m.frontend.FlushByTags(ctx, ListTag); err != nil {
		errs = append(errs, fmt.Errorf("flushing %s: %w", ListTag, err))
	}
	return errors.Join(errs...)
}

// StoreListing caches a rendering of jobs under key, tagged with the
// listing tag and each job's tag.
func (m *Manager) StoreListing(ctx context.Context, key string, rendering []byte, jobs []model.Job) error {
	tags := make([]string, 0, len(jobs)+1)
	tags = append(tags, ListTag)
	for _, j := range jobs {
		tags = append(tags, JobTag(j.ID))
	}
	return m.frontend.Set(ctx, key, rendering, m.ttl, tags...)
}

// Listing returns a cached rendering.
func (m *Manager) Listing(ctx context.Context, key string) ([]byte, bool, error) {
	return m.frontend.Get(ctx, key)
}
