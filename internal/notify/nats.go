package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/pipelib/internal/ci"
	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
	"git.home.luguber.info/inful/pipelib/internal/observability"
)

// Envelope is the JSON document published for each notification.
type Envelope struct {
	RunID     string     `json:"run_id,omitempty"`
	Branch    string     `json:"branch,omitempty"`
	Message   ci.Message `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
}

type publisher interface {
	publish(ctx context.Context, subject string, data []byte) error
}

type corePublisher struct{ conn *nats.Conn }

func (p corePublisher) publish(_ context.Context, subject string, data []byte) error {
	return p.conn.Publish(subject, data)
}

type streamPublisher struct{ js jetstream.JetStream }

func (p streamPublisher) publish(ctx context.Context, subject string, data []byte) error {
	_, err := p.js.Publish(ctx, subject, data)
	return err
}

// NATS publishes notifications to a subject, through JetStream when a stream is configured.
type NATS struct {
	pub     publisher
	subject string
}

// NATSConfig configures the NATS notifier.
type NATSConfig struct {
	URL     string
	Subject string
	// Stream, when set, is created or updated to capture Subject and messages are
	// published through JetStream.
	Stream string
}

// NewNATS connects to the server. Close the returned connection when done.
func NewNATS(ctx context.Context, cfg NATSConfig) (*NATS, *nats.Conn, error) {
	conn, err := nats.Connect(cfg.URL, nats.Name("pipelib-notify"))
	if err != nil {
		return nil, nil, errors.WrapError(err, errors.CategoryNotify, "failed to connect to NATS").
			WithContext("url", cfg.URL).Build()
	}
	if cfg.Stream == "" {
		return &NATS{pub: corePublisher{conn}, subject: cfg.Subject}, conn, nil
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, nil, errors.WrapError(err, errors.CategoryNotify, "failed to create JetStream context").Build()
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        cfg.Stream,
		Description: "pipelib pipeline notifications",
		Subjects:    []string{cfg.Subject},
		MaxAge:      7 * 24 * time.Hour,
	})
	if err != nil {
		conn.Close()
		return nil, nil, errors.WrapError(err, errors.CategoryNotify, "failed to create notification stream").
			WithContext("stream", cfg.Stream).Build()
	}
	slog.Info("NATS notifier initialized", "url", cfg.URL, "subject", cfg.Subject, "stream", cfg.Stream)
	return &NATS{pub: streamPublisher{js}, subject: cfg.Subject}, conn, nil
}

// Notify implements ci.Notifier.
func (n *NATS) Notify(ctx context.Context, msg ci.Message) error {
	if msg.HTML == "" {
		if html, err := RenderHTML(msg.Body); err == nil {
			msg.HTML = html
		}
	}
	lc := observability.GetContext(ctx)
	data, err := json.Marshal(Envelope{RunID: lc.RunID, Branch: lc.Branch, Message: msg, Timestamp: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := n.pub.publish(ctx, n.subject, data); err != nil {
		return errors.WrapError(err, errors.CategoryNotify, "failed to publish notification").
			WithContext("subject", n.subject).Build()
	}
	return nil
}
