package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/personiojobs/internal/model"
)

// maxListedJobs caps the job names listed per operation in one message.
const maxListedJobs = 10

// Ensure SlackPublisher implements model.EventPublisher.
var _ model.EventPublisher = (*SlackPublisher)(nil)

// SlackPublisher posts an import summary to a Slack channel via Incoming Webhooks.
type SlackPublisher struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewSlackPublisher(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackPublisher {
	return &SlackPublisher{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Publish sends one Block Kit message per run. Runs that changed nothing are
// not posted.
func (s *SlackPublisher) Publish(ctx context.Context, ev model.ImportedEvent) error {
	if ev.Result == nil || len(ev.Result.Modified()) == 0 {
		return nil
	}

	body, err := json.Marshal(buildPayload(ev))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	resp, err := s.post(ctx, body)
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		if secs <= 0 {
			secs = 1
		}
		s.logger.Warn("slack rate limited, retrying", "retry_after_secs", secs)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(secs) * time.Second):
		}

		resp, err = s.post(ctx, body)
		if err != nil {
			return fmt.Errorf("post to slack (retry): %w", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", resp.StatusCode)
		}
		s.logger.Info("slack message sent", "run_id", ev.RunID, "retried", true)
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned %d", resp.StatusCode)
	}
	s.logger.Info("slack message sent", "run_id", ev.RunID)
	return nil
}

func (s *SlackPublisher) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.httpClient.Do(req)
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func buildPayload(ev model.ImportedEvent) slackPayload {
	r := ev.Result
	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: fmt.Sprintf("📋 Personio import: storage %d (%s)", ev.StoragePID, ev.Language)},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Added:*\n" + strconv.Itoa(r.Count(model.OperationAdded))},
				{Type: "mrkdwn", Text: "*Updated:*\n" + strconv.Itoa(r.Count(model.OperationUpdated))},
				{Type: "mrkdwn", Text: "*Removed:*\n" + strconv.Itoa(r.Count(model.OperationRemoved))},
				{Type: "mrkdwn", Text: "*Skipped:*\n" + strconv.Itoa(r.Count(model.OperationSkipped))},
			},
		},
	}

	for _, op := range []model.ImportOperation{model.OperationAdded, model.OperationUpdated, model.OperationRemoved} {
		jobs := r.Jobs(op)
		if len(jobs) == 0 {
			continue
		}
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "*" + op.Label() + "*\n" + listJobs(jobs)},
		})
	}

	blocks = append(blocks, slackBlock{Type: "divider"})
	return slackPayload{Blocks: blocks}
}

func listJobs(jobs []model.Job) string {
	var b strings.Builder
	for i, j := range jobs {
		if i == maxListedJobs {
			fmt.Fprintf(&b, "…and %d more", len(jobs)-maxListedJobs)
			break
		}
		fmt.Fprintf(&b, "• %s (#%d)\n", j.Name, j.PersonioID)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
