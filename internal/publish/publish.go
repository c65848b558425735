// Package publish hands finished extraction results to the task-creation
// layer over NATS.
//
// Results are published to:
//
//	<prefix>.<document_id>.completed
//
// where document_id is sanitized into a single subject token ("anonymous"
// when the caller supplied none). The run ID is set as the Nats-Msg-Id header
// and the trace context is injected into the message headers.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/syllabusd/internal/config"
	"github.com/fyrsmithlabs/syllabusd/internal/extraction"
	"github.com/fyrsmithlabs/syllabusd/internal/logging"
)

// DefaultTimeout bounds the flush after each publish.
const DefaultTimeout = 5 * time.Second

// ErrNotConnected is returned when publishing on a closed publisher.
var ErrNotConnected = errors.New("publisher not connected")

// Event is the message body of one published result.
type Event struct {
	RunID        string            `json:"run_id"`
	DocumentID   string            `json:"document_id,omitempty"`
	Items        []extraction.Item `json:"items"`
	UsedFallback bool              `json:"used_fallback"`
	PublishedAt  time.Time         `json:"published_at"`
}

// Publisher publishes extraction results. It is safe for concurrent use.
type Publisher struct {
	nc      *nats.Conn
	owned   bool
	prefix  string
	timeout time.Duration
	logger  *logging.Logger
}

// New wraps an existing connection. The caller keeps ownership of nc.
func New(nc *nats.Conn, prefix string, timeout time.Duration, logger *logging.Logger) *Publisher {
	if prefix == "" {
		prefix = "syllabus.items"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Publisher{
		nc:      nc,
		prefix:  strings.TrimSuffix(prefix, "."),
		timeout: timeout,
		logger:  logger,
	}
}

// Connect dials cfg.NATSURL and returns a Publisher owning the connection.
func Connect(cfg config.PublishConfig, logger *logging.Logger) (*Publisher, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("publish: nats_url not configured")
	}
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("syllabusd"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
	}
	p := New(nc, cfg.SubjectPrefix, cfg.Timeout.Duration(), logger)
	p.owned = true
	return p, nil
}

// Subject returns the subject a result for documentID is published on.
func (p *Publisher) Subject(documentID string) string {
	return p.prefix + "." + subjectToken(documentID) + ".completed"
}

// Publish sends res and waits for the server to acknowledge the flush.
func (p *Publisher) Publish(ctx context.Context, res *extraction.Result) error {
	if p == nil || p.nc == nil || p.nc.IsClosed() {
		return ErrNotConnected
	}
	if res == nil {
		return fmt.Errorf("publish: nil result")
	}

	items := res.Items
	if items == nil {
		items = []extraction.Item{}
	}
	data, err := json.Marshal(Event{
		RunID:        res.RunID,
		DocumentID:   res.DocumentID,
		Items:        items,
		UsedFallback: res.UsedFallback,
		PublishedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	msg := nats.NewMsg(p.Subject(res.DocumentID))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, res.RunID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish result: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush result: %w", err)
	}

	p.logger.Debug(ctx, "published extraction result",
		zap.String("subject", msg.Subject),
		zap.Int("items", len(items)),
		zap.Int("bytes", len(data)))
	return nil
}

// Close drains and closes the connection if the publisher owns it.
func (p *Publisher) Close() error {
	if p == nil || p.nc == nil || !p.owned {
		return nil
	}
	return p.nc.Drain()
}

// subjectToken maps an arbitrary ID onto one NATS subject token.
func subjectToken(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "anonymous"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, id)
}
