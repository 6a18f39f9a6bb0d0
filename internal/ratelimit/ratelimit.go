package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amishk599/personiojobs/internal/model"
)

// HostRateLimiter enforces a minimum delay between feed requests to the same
// Personio host. Scheduled runs may import several languages or storage
// scopes from one company feed back to back.
type HostRateLimiter struct {
	mu       sync.Mutex
	lastCall map[string]time.Time // key: feed host
	minDelay time.Duration
}

// NewHostRateLimiter creates a limiter that keeps minDelay between
// consecutive requests to the same host.
func NewHostRateLimiter(minDelay time.Duration) *HostRateLimiter {
	return &HostRateLimiter{
		lastCall: make(map[string]time.Time),
		minDelay: minDelay,
	}
}

// Wait blocks until host may be requested again, or ctx is done.
func (r *HostRateLimiter) Wait(ctx context.Context, host string) error {
	r.mu.Lock()
	now := time.Now()
	last, ok := r.lastCall[host]
	if !ok || now.Sub(last) >= r.minDelay {
		r.lastCall[host] = now
		r.mu.Unlock()
		return nil
	}

	remaining := r.minDelay - now.Sub(last)
	// Reserve the slot so a concurrent caller queues behind this one.
	r.lastCall[host] = last.Add(r.minDelay)
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", host, ctx.Err())
	case <-time.After(remaining):
	}
	return nil
}

// Ensure RateLimitedFetcher implements model.FeedFetcher.
var _ model.FeedFetcher = (*RateLimitedFetcher)(nil)

// RateLimitedFetcher waits for its host slot before delegating.
type RateLimitedFetcher struct {
	inner   model.FeedFetcher
	limiter *HostRateLimiter
	host    string
}

// NewRateLimitedFetcher wraps inner. Fetchers for the same host should share
// one limiter.
func NewRateLimitedFetcher(inner model.FeedFetcher, limiter *HostRateLimiter, host string) *RateLimitedFetcher {
	return &RateLimitedFetcher{
		inner:   inner,
		limiter: limiter,
		host:    host,
	}
}

// FetchJobs waits for the limiter, then fetches.
func (f *RateLimitedFetcher) FetchJobs(ctx context.Context, language string) ([]model.Job, error) {
	if err := f.limiter.Wait(ctx, f.host); err != nil {
		return nil, err
	}
	return f.inner.FetchJobs(ctx, language)
}
