// internal/form/notify.go
//
// Forms engine – submission notification.
//
// Context
//   A form whose settings enable notifyOnSubmission e-mails the recipient
//   after each accepted submission.  The e-mail is queued through the
//   messaging package so the submitter’s request returns promptly.  Failures
//   are logged by the processor and never affect the submission result.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/yanizio/formforge/internal/message"
)

// EmailNotifier queues one plain-text e-mail per submission.
type EmailNotifier struct {
	Queue  message.Queue
	From   string
	Locale string // for the form name in the subject
}

// NotifySubmission implements Notifier.
func (n *EmailNotifier) NotifySubmission(ctx context.Context, f *Form, s *Submission) error {
	to := strings.TrimSpace(f.Schema.Settings.RecipientEmail)
	if to == "" {
		return fmt.Errorf("'recipientEmail' setting empty")
	}

	title := f.Name.Get(n.Locale, "en")
	if title == "" {
		title = f.ID
	}

	return n.Queue.EnqueueEmail(ctx, message.Email{
		From:    n.From,
		To:      []string{to},
		Subject: fmt.Sprintf("New submission: %s", title),
		Text:    submissionText(f, s),
	})
}

// submissionText lists fields in schema order, then any leftovers sorted.
func submissionText(f *Form, s *Submission) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Submission %s received %s\n\n", s.ID, s.CreatedAt.Format("2006-01-02 15:04:05 MST"))

	done := make(map[string]bool, len(s.Data))
	for _, e := range f.Schema.Fields() {
		name := FieldName(e)
		v, ok := s.Data[name]
		if !ok {
			continue
		}
		done[name] = true
		if e.Type == TypePassword {
			v = "[redacted]"
		}
		fmt.Fprintf(&b, "%s: %s\n", e.Properties.Label, renderValue(v))
	}

	var rest []string
	for k := range s.Data {
		if !done[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		fmt.Fprintf(&b, "%s: %s\n", k, renderValue(s.Data[k]))
	}
	return b.String()
}

func renderValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case StoredFile:
		return fmt.Sprintf("%s (%d bytes, %s)", t.OriginalName, t.Size, t.MIMEType)
	}
	j, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(j)
}
