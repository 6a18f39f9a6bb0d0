package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/amishk599/personiojobs/internal/model"
)

// Ensure Fetcher implements model.FeedFetcher.
var _ model.FeedFetcher = (*Fetcher)(nil)

// Fetcher retries transient feed failures with exponential backoff and
// jitter. With zero retries it is a plain pass-through.
type Fetcher struct {
	inner      model.FeedFetcher
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// NewFetcher wraps inner. maxRetries counts the attempts after the first
// failure; baseDelay doubles on every further attempt.
func NewFetcher(inner model.FeedFetcher, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

// FetchJobs fetches the feed, retrying transient errors.
func (f *Fetcher) FetchJobs(ctx context.Context, language string) ([]model.Job, error) {
	var (
		jobs []model.Job
		err  error
	)
	for attempt := 0; ; attempt++ {
		jobs, err = f.inner.FetchJobs(ctx, language)
		if err == nil {
			return jobs, nil
		}
		if attempt >= f.maxRetries || !isRetryable(err) {
			return nil, err
		}

		delay := f.backoffDelay(attempt+1, err)
		f.logger.Warn("retrying feed fetch after transient error",
			"attempt", attempt+1,
			"max_retries", f.maxRetries,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
}

// backoffDelay is baseDelay * 2^(attempt-1) with ±30% jitter, unless the
// server sent a Retry-After.
func (f *Fetcher) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	delay := f.baseDelay << (attempt - 1)
	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// isRetryable reports whether err is worth another attempt. Malformed feeds
// and mapping failures are permanent.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var (
		malformed  *model.MalformedInputError
		mappingErr *model.MappingError
		pathErr    *model.InvalidPathError
	)
	if errors.As(err, &malformed) || errors.As(err, &mappingErr) || errors.As(err, &pathErr) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}

	// network, DNS
	return true
}
