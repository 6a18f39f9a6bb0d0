package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/amishk599/personiojobs/internal/model"
)

// Conn is the subset of *nats.Conn used for publishing.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
}

// Ensure NATSPublisher implements model.EventPublisher.
var _ model.EventPublisher = (*NATSPublisher)(nil)

// NATSPublisher sends the event payload on a subject and waits for the
// server to acknowledge the flush.
type NATSPublisher struct {
	conn    Conn
	subject string
	timeout time.Duration
}

// ConnectNATS dials url with reconnect logging.
func ConnectNATS(url string, logger *slog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("personiojobs"),
		nats.MaxReconnects(5),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return nc, nil
}

func NewNATSPublisher(conn Conn, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultChannel
	}
	return &NATSPublisher{conn: conn, subject: subject, timeout: 5 * time.Second}
}

func (p *NATSPublisher) Publish(ctx context.Context, ev model.ImportedEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("nats publish %s: %w", p.subject, err)
	}
	data, err := encode(ev)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", p.subject, err)
	}

	// The flush waits no longer than the publisher timeout or ctx allows.
	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if timeout <= 0 {
		return fmt.Errorf("nats flush: %w", context.DeadlineExceeded)
	}
	if err := p.conn.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	return nil
}
