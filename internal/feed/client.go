// Package feed fetches the Personio XML job feed and builds Personio job URLs.
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/amishk599/personiojobs/internal/mapper"
	"github.com/amishk599/personiojobs/internal/model"
)

// maxFeedSize caps the feed body read into memory.
const maxFeedSize = 32 << 20

// Ensure Client implements model.FeedFetcher.
var _ model.FeedFetcher = (*Client)(nil)

// Client fetches jobs from the public Personio XML feed of one company.
type Client struct {
	apiURL *url.URL
	client *http.Client
	mapper *mapper.Mapper
	logger *slog.Logger
}

// NewClient creates a feed client for the Personio API at apiURL,
// e.g. https://acme.jobs.personio.de.
func NewClient(apiURL string, client *http.Client, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(apiURL) == "" {
		return nil, model.ErrMissingAPIURL
	}
	u, err := url.Parse(strings.TrimRight(apiURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing api url %q: %w", apiURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api url %q must be absolute", apiURL)
	}
	return &Client{
		apiURL: u,
		client: client,
		mapper: mapper.New(),
		logger: logger,
	}, nil
}

// FeedURL returns the feed endpoint, with a language query when language is set.
func (c *Client) FeedURL(language string) string {
	return c.endpoint("/xml", language, "")
}

// JobURL returns the public posting page of a job.
func (c *Client) JobURL(personioID int64, language string) string {
	return c.endpoint(fmt.Sprintf("/job/%d", personioID), language, "")
}

// ApplyURL returns the application form anchor of a job.
func (c *Client) ApplyURL(personioID int64, language string) string {
	return c.endpoint(fmt.Sprintf("/job/%d", personioID), language, "apply")
}

func (c *Client) endpoint(path, language, fragment string) string {
	u := *c.apiURL
	u.Path = path
	u.RawQuery = ""
	if language != "" {
		u.RawQuery = url.Values{"language": {language}}.Encode()
	}
	u.Fragment = fragment
	return u.String()
}

// FetchJobs downloads the feed and maps every position into a job.
func (c *Client) FetchJobs(ctx context.Context, language string) ([]model.Job, error) {
	feedURL := c.FeedURL(language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("personio fetch %s: %w", feedURL, err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("personio fetch %s: %w", feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("personio fetch %s: unexpected status %d", feedURL, resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("personio fetch %s: reading body: %w", feedURL, err)
	}

	jobs, err := c.mapper.MapXML(body)
	if err != nil {
		return nil, fmt.Errorf("personio fetch %s: %w", feedURL, err)
	}

	c.logger.Debug("personio feed mapped", "url", feedURL, "bytes", len(body), "jobs", len(jobs))
	return jobs, nil
}
