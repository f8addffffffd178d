package form

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// contactForm has name, email, and password fields plus a submit button.
func contactForm(t *testing.T) *Form {
	t.Helper()
	b := newTestBuilder()
	f := NewForm("contact", Translations{"en": "Contact"}, t0)
	s := &f.Schema

	name, _ := b.AddElement(s, TypeText)
	b.UpdateProperties(s, name.ID, Properties{Label: "Name"})
	b.UpdateValidationRules(s, name.ID, []string{"required", "max"})
	b.UpdateValidationRuleValue(s, name.ID, "max", "40")

	mail, _ := b.AddElement(s, TypeEmail)
	b.UpdateProperties(s, mail.ID, Properties{Label: "Email"})
	b.UpdateValidationRules(s, mail.ID, []string{"required", "email"})

	pw, _ := b.AddElement(s, TypePassword)
	b.UpdateProperties(s, pw.ID, Properties{Label: "Secret word"})

	b.AddElement(s, TypeSubmitButton)
	return f
}

func newTestProcessor(repo Repository) (*Processor, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	p := NewProcessor(repo, newMemFiles(), DefaultCatalog())
	p.Logger = zap.New(core)
	p.Now = func() time.Time { return t0 }
	n := 0
	p.NewID = func() string { n++; return fmt.Sprintf("sub-%d", n) }
	return p, logs
}

func TestHandleSuccessPersistsSanitizedSchemaFields(t *testing.T) {
	f := contactForm(t)
	repo := newMemRepo()
	p, _ := newTestProcessor(repo)

	res := p.Handle(context.Background(), f, Input{
		Data: map[string]any{
			"name":        "  <b>Ada</b> Lovelace ",
			"email":       "ada@example.com",
			"secret_word": "hunter2",
			"extra":       "not in schema",
		},
		IP:        "1.2.3.4",
		UserAgent: "test-agent",
	})
	if !res.Success || res.Code != CodeOK || res.SubmissionID != "sub-1" {
		t.Fatalf("result = %+v", res)
	}
	if res.Message != f.Schema.Settings.SuccessMessage {
		t.Fatalf("message = %q", res.Message)
	}

	subs := repo.submissions()
	if len(subs) != 1 {
		t.Fatalf("stored %d submissions", len(subs))
	}
	s := subs[0]
	if s.Data["name"] != "Ada Lovelace" {
		t.Fatalf("name = %q", s.Data["name"])
	}
	if _, ok := s.Data["extra"]; ok {
		t.Fatal("unknown key persisted")
	}
	if s.IPAddress != "1.2.3.4" || s.UserAgent != "test-agent" || s.FormID != "contact" || !s.CreatedAt.Equal(t0) {
		t.Fatalf("submission meta = %+v", s)
	}
}

func TestHandleUnavailable(t *testing.T) {
	p, _ := newTestProcessor(newMemRepo())
	ctx := context.Background()

	cases := map[string]*Form{
		"nil":      nil,
		"empty":    NewForm("empty", nil, t0),
		"inactive": func() *Form { f := contactForm(t); f.Active = false; return f }(),
	}
	for name, f := range cases {
		res := p.Handle(ctx, f, Input{IP: "1.1.1.1"})
		if res.Success || res.Code != CodeUnavailable || res.Message != MsgUnavailable {
			t.Fatalf("%s: result = %+v", name, res)
		}
	}

	res := p.HandleByID(ctx, "missing", Input{})
	if res.Code != CodeUnavailable {
		t.Fatalf("missing form: %+v", res)
	}
}

func TestHandleRateLimitPerIP(t *testing.T) {
	f := contactForm(t)
	repo := newMemRepo()
	for i := 0; i < 10; i++ {
		repo.subs = append(repo.subs, &Submission{
			ID: fmt.Sprintf("old-%d", i), FormID: f.ID, IPAddress: "1.2.3.4",
			CreatedAt: t0.Add(-time.Duration(i+1) * time.Minute),
		})
	}
	// outside the window, must not count
	repo.subs = append(repo.subs, &Submission{ID: "ancient", FormID: f.ID, IPAddress: "5.6.7.8", CreatedAt: t0.Add(-2 * time.Hour)})

	p, logs := newTestProcessor(repo)
	p.MaxPerWindow = 10
	valid := map[string]any{"name": "Ada", "email": "ada@example.com"}

	res := p.Handle(context.Background(), f, Input{Data: valid, IP: "1.2.3.4"})
	if res.Success || res.Code != CodeRateLimited {
		t.Fatalf("11th submission: %+v", res)
	}
	if logs.FilterMessage("submission rejected").Len() != 1 {
		t.Fatal("rate limit not logged")
	}

	res = p.Handle(context.Background(), f, Input{Data: valid, IP: "5.6.7.8"})
	if !res.Success {
		t.Fatalf("other IP: %+v", res)
	}
}

func TestHandleValidationIsAllOrNothing(t *testing.T) {
	b := newTestBuilder()
	f := NewForm("survey", Translations{"en": "Survey"}, t0)
	data := map[string]any{}
	for i := 0; i < 10; i++ {
		e, _ := b.AddElement(&f.Schema, TypeText)
		b.UpdateProperties(&f.Schema, e.ID, Properties{Label: fmt.Sprintf("Q%d", i)})
		b.UpdateValidationRules(&f.Schema, e.ID, []string{"required", "max"})
		b.UpdateValidationRuleValue(&f.Schema, e.ID, "max", "5")
		data[fmt.Sprintf("q%d", i)] = "ok"
	}
	data["q7"] = "far too long"

	repo := newMemRepo()
	p, _ := newTestProcessor(repo)
	res := p.Handle(context.Background(), f, Input{Data: data, IP: "9.9.9.9"})

	if res.Success || res.Code != CodeValidation || res.Message != MsgValidation {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Errors) != 1 || len(res.Errors["q7"]) != 1 {
		t.Fatalf("errors = %v", res.Errors)
	}
	if len(repo.submissions()) != 0 {
		t.Fatal("submission persisted despite validation failure")
	}
}

func TestHandleUploadRejectionFailsWholeSubmission(t *testing.T) {
	f := contactForm(t)
	b := newTestBuilder()
	b.NewID = func() string { return "file-el" }
	fe, _ := b.AddElement(&f.Schema, TypeFile)
	b.UpdateProperties(&f.Schema, fe.ID, Properties{Label: "Avatar", Accept: "image/*", MaxSize: "1MB"})

	repo := newMemRepo()
	p, logs := newTestProcessor(repo)
	files := newMemFiles()
	p.Files = files

	res := p.Handle(context.Background(), f, Input{
		Data: map[string]any{
			"name": "Ada", "email": "ada@example.com",
			"avatar": fakeUpload("big.jpg", "image/jpeg", jpegMagic, 2<<20),
		},
		IP: "1.2.3.4",
	})
	if res.Success || res.Code != CodeUploadRejected || res.Message != MsgUploadFailed {
		t.Fatalf("result = %+v", res)
	}
	if got := res.Errors["avatar"]; len(got) != 1 || got[0] != MsgUploadRejected {
		t.Fatalf("errors = %v", res.Errors)
	}
	if len(repo.submissions()) != 0 || len(files.files) != 0 {
		t.Fatal("partial persistence after upload rejection")
	}
	entry := logs.FilterMessage("upload rejected").All()
	if len(entry) != 1 || !strings.Contains(entry[0].ContextMap()["error"].(string), "exceeds limit") {
		t.Fatalf("rejection log = %+v", entry)
	}

	res = p.Handle(context.Background(), f, Input{
		Data: map[string]any{
			"name": "Ada", "email": "ada@example.com",
			"avatar": fakeUpload("me.png", "image/png", pngMagic, 500<<10),
		},
		IP: "1.2.3.4",
	})
	if !res.Success {
		t.Fatalf("valid upload: %+v", res)
	}
	rec, ok := repo.submissions()[0].Data["avatar"].(StoredFile)
	if !ok || rec.MIMEType != "image/png" || rec.OriginalName != "me.png" {
		t.Fatalf("stored record = %#v", repo.submissions()[0].Data["avatar"])
	}
}

func TestHandleUnexpectedErrorIsGenericAndRedacted(t *testing.T) {
	f := contactForm(t)
	repo := newMemRepo()
	repo.createErr = errors.New("pq: connection refused to 10.0.0.5")
	p, logs := newTestProcessor(repo)

	res := p.Handle(context.Background(), f, Input{
		Data: map[string]any{"name": "Ada", "email": "ada@example.com", "secret_word": "hunter2"},
		IP:   "1.2.3.4",
	})
	if res.Success || res.Code != CodeUnexpected || res.Message != MsgUnexpected {
		t.Fatalf("result = %+v", res)
	}
	if strings.Contains(res.Message, "10.0.0.5") {
		t.Fatal("internal detail leaked to submitter")
	}

	entries := logs.FilterMessage("submission failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one failure log, got %d", len(entries))
	}
	data, ok := entries[0].ContextMap()["data"].(map[string]any)
	if !ok {
		t.Fatalf("data field = %#v", entries[0].ContextMap()["data"])
	}
	if data["secret_word"] != "[REDACTED]" || data["email"] != "[REDACTED]" {
		t.Fatalf("data not redacted: %v", data)
	}
	if data["name"] != "Ada" {
		t.Fatalf("name = %v", data["name"])
	}
}

func TestHandleRecoversPanics(t *testing.T) {
	f := contactForm(t)
	p, logs := newTestProcessor(newMemRepo())
	p.NewID = func() string { panic("id generator exploded") }

	res := p.Handle(context.Background(), f, Input{Data: map[string]any{"name": "Ada", "email": "ada@example.com"}})
	if res.Code != CodeUnexpected {
		t.Fatalf("result = %+v", res)
	}
	if logs.FilterMessage("submission panic").Len() != 1 {
		t.Fatal("panic not logged")
	}
}

func TestHandleNotification(t *testing.T) {
	f := contactForm(t)
	f.Schema.Settings.NotifyOnSubmission = true
	f.Schema.Settings.RecipientEmail = "owner@example.com"

	p, logs := newTestProcessor(newMemRepo())
	n := &recordingNotifier{err: errors.New("smtp down")}
	p.Notifier = n

	res := p.Handle(context.Background(), f, Input{Data: map[string]any{"name": "Ada", "email": "ada@example.com"}})
	if !res.Success {
		t.Fatalf("notification failure broke submission: %+v", res)
	}
	if n.calls != 1 {
		t.Fatalf("notifier calls = %d", n.calls)
	}
	if logs.FilterMessage("submission notification failed").Len() != 1 {
		t.Fatal("notification failure not logged")
	}

	f.Schema.Settings.RecipientEmail = "not-an-address"
	p.Handle(context.Background(), f, Input{Data: map[string]any{"name": "Ada", "email": "ada@example.com"}})
	if n.calls != 1 {
		t.Fatal("notifier called with invalid recipient")
	}
}
