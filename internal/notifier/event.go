// Package notifier publishes import events to logs, Slack, Redis and NATS.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amishk599/personiojobs/internal/model"
)

// Payload is the wire form of model.ImportedEvent shared by the broker
// publishers.
type Payload struct {
	RunID      string    `json:"runId"`
	StoragePID int       `json:"storagePid"`
	Language   string    `json:"language"`
	FinishedAt time.Time `json:"finishedAt"`
	Added      []int64   `json:"added"`
	Updated    []int64   `json:"updated"`
	Removed    []int64   `json:"removed"`
	Skipped    int       `json:"skipped"`
}

// NewPayload flattens ev into personio ids per operation.
func NewPayload(ev model.ImportedEvent) Payload {
	p := Payload{
		RunID:      ev.RunID,
		StoragePID: ev.StoragePID,
		Language:   ev.Language,
		FinishedAt: ev.FinishedAt.UTC(),
		Added:      []int64{},
		Updated:    []int64{},
		Removed:    []int64{},
	}
	if ev.Result == nil {
		return p
	}
	p.Added = personioIDs(ev.Result.Added())
	p.Updated = personioIDs(ev.Result.Updated())
	p.Removed = personioIDs(ev.Result.Removed())
	p.Skipped = ev.Result.Count(model.OperationSkipped)
	return p
}

func personioIDs(jobs []model.Job) []int64 {
	ids := make([]int64, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.PersonioID)
	}
	return ids
}

func encode(ev model.ImportedEvent) ([]byte, error) {
	data, err := json.Marshal(NewPayload(ev))
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// Ensure Multi implements model.EventPublisher.
var _ model.EventPublisher = Multi(nil)

// Multi publishes to every publisher in order. Every publisher is attempted;
// failures are joined.
type Multi []model.EventPublisher

func (m Multi) Publish(ctx context.Context, ev model.ImportedEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
