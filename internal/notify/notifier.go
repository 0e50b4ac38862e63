package notify

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/pipelib/internal/ci"
	"git.home.luguber.info/inful/pipelib/internal/observability"
)

// Log writes notifications to the structured log.
type Log struct {
	Logger *slog.Logger
}

// Notify implements ci.Notifier.
func (l Log) Notify(ctx context.Context, msg ci.Message) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lc := observability.GetContext(ctx)
	logger.InfoContext(ctx, "Notification",
		slog.String("subject", msg.Subject),
		slog.String("recipients", strings.Join(msg.Recipients, ",")),
		slog.String("run_id", lc.RunID),
		slog.String("body", msg.Body))
	return nil
}

// Multi fans a message out to every notifier and joins their errors.
type Multi []ci.Notifier

// Notify implements ci.Notifier.
func (m Multi) Notify(ctx context.Context, msg ci.Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// WithRecipients adds default recipients to messages that name none.
type WithRecipients struct {
	Next       ci.Notifier
	Recipients []string
}

// Notify implements ci.Notifier.
func (w WithRecipients) Notify(ctx context.Context, msg ci.Message) error {
	if len(msg.Recipients) == 0 {
		msg.Recipients = w.Recipients
	}
	return w.Next.Notify(ctx, msg)
}
