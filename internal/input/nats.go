// Package input implements human input channels used for release approval.
package input

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/pipelib/internal/ci"
	"git.home.luguber.info/inful/pipelib/internal/foundation/errors"
	"git.home.luguber.info/inful/pipelib/internal/logfields"
)

// Request is published to approvers. Replies go to the message's reply subject.
type Request struct {
	ci.InputRequest
	Deadline time.Time `json:"deadline"`
}

// Reply is what an approver sends back. Abort ends the wait without a choice.
type Reply struct {
	ci.Choice
	Abort bool `json:"abort,omitempty"`
}

type transport interface {
	subscribe(subject string, ch chan *nats.Msg) (unsubscribe func(), err error)
	publishRequest(subject, reply string, data []byte) error
	newInbox() string
}

type natsTransport struct{ conn *nats.Conn }

func (t natsTransport) subscribe(subject string, ch chan *nats.Msg) (func(), error) {
	sub, err := t.conn.ChanSubscribe(subject, ch)
	if err != nil {
		return nil, err
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

func (t natsTransport) publishRequest(subject, reply string, data []byte) error {
	return t.conn.PublishRequest(subject, reply, data)
}

func (t natsTransport) newInbox() string { return t.conn.NewRespInbox() }

// NATS asks approvers on a subject and waits on a private inbox for the answer.
type NATS struct {
	t       transport
	subject string
}

// NewNATS returns a channel publishing requests to subject over conn.
func NewNATS(conn *nats.Conn, subject string) *NATS {
	return &NATS{t: natsTransport{conn}, subject: subject}
}

// RequestChoice implements ci.HumanInputChannel. Replies naming an unknown
// option or an approver outside the request's list are ignored.
func (n *NATS) RequestChoice(ctx context.Context, req ci.InputRequest, timeout time.Duration) (ci.Choice, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	inbox := n.t.newInbox()
	replies := make(chan *nats.Msg, 16)
	unsubscribe, err := n.t.subscribe(inbox, replies)
	if err != nil {
		return ci.Choice{}, errors.WrapError(err, errors.CategoryApproval, "subscribe to approval inbox").Build()
	}
	defer unsubscribe()

	deadline, _ := ctx.Deadline()
	data, err := json.Marshal(Request{InputRequest: req, Deadline: deadline.UTC()})
	if err != nil {
		return ci.Choice{}, fmt.Errorf("marshal input request: %w", err)
	}
	if err := n.t.publishRequest(n.subject, inbox, data); err != nil {
		return ci.Choice{}, errors.WrapError(err, errors.CategoryApproval, "publish approval request").
			WithContext("subject", n.subject).Build()
	}
	slog.Info("Waiting for approval", slog.String("request_id", req.ID), slog.String("subject", n.subject), slog.Duration("timeout", timeout))

	for {
		select {
		case <-ctx.Done():
			return ci.Choice{}, fmt.Errorf("%w: %w", ci.ErrInputInterrupted, ctx.Err())
		case msg := <-replies:
			var r Reply
			if err := json.Unmarshal(msg.Data, &r); err != nil {
				slog.Warn("Ignoring malformed approval reply", logfields.Error(err))
				continue
			}
			if !authorized(req.Approvers, r.Approver) {
				slog.Warn("Ignoring reply from unlisted approver", logfields.Approver(r.Approver))
				continue
			}
			if r.Abort {
				return ci.Choice{}, fmt.Errorf("%w: aborted by %s", ci.ErrInputInterrupted, r.Approver)
			}
			if !slices.Contains(req.Options, r.Option) {
				slog.Warn("Ignoring reply with unknown option", slog.String("option", r.Option))
				continue
			}
			return r.Choice, nil
		}
	}
}

func authorized(approvers []string, who string) bool {
	return len(approvers) == 0 || slices.Contains(approvers, who)
}
