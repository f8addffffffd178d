// internal/message/message.go
//
// Formforge – outbound messaging.
//
// Context
//   The forms engine enqueues outbound e-mail (submission notifications).
//   Callers depend on the Queue interface only.  LogQueue is the default
//   implementation: it records the job in the structured log and returns nil
//   so callers proceed without blocking.  A host with a real mail relay or
//   broker plugs in its own Queue.
//
//------------------------------------------------------------------------------

package message

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Email represents a basic outbound email job.
type Email struct {
	From    string // empty lets the relay choose
	To      []string
	Subject string
	Text    string
	HTML    string // optional
}

// Queue accepts outbound jobs.
type Queue interface {
	EnqueueEmail(ctx context.Context, msg Email) error
}

// LogQueue writes jobs to the log.  A nil Logger uses zap.L().
type LogQueue struct {
	Logger *zap.Logger
}

// EnqueueEmail logs the email envelope.  The body is not logged.
func (q *LogQueue) EnqueueEmail(_ context.Context, msg Email) error {
	if len(msg.To) == 0 {
		return errors.New("email has no recipients")
	}
	l := q.Logger
	if l == nil {
		l = zap.L()
	}
	l.Info("queue email",
		zap.String("from", msg.From),
		zap.Int("recipients", len(msg.To)),
		zap.String("subject", msg.Subject),
		zap.Int("text_len", len(msg.Text)),
		zap.Int("html_len", len(msg.HTML)),
	)
	return nil
}
