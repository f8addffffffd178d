// internal/form/submission.go
//
// Forms engine – submission processor.
//
// Context
//   Public form posts land here.  Processing is a linear pipeline and any
//   stage may end the attempt:
//
//     Received → Available → RateChecked → Validated → Sanitized
//              → FilesStored → Persisted → (Notified)
//
//   Nothing is retried and nothing is partially persisted.  The submitter
//   only ever sees the fixed messages below; internal error text goes to the
//   log with credential and PII fields scrubbed.
//
// Workflow
//   •  HandleByID loads the published form through the Repository.
//   •  Handle runs the pipeline against an already-loaded form.
//   •  Rate limiting is a trailing-window COUNT over stored submissions keyed
//      on (form, ip).  There is no counter state, so two concurrent requests
//      may both pass; that is accepted for abuse mitigation.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yanizio/formforge/internal/logger"
	"github.com/yanizio/formforge/internal/metrics"
)

// Submitter-facing messages.
const (
	MsgUnavailable    = "Form is not available or has been disabled."
	MsgRateLimited    = "Too many submissions from your address.  Please try again later."
	MsgValidation     = "Validation failed"
	MsgUploadFailed   = "File upload failed"
	MsgUploadRejected = "File type or size not allowed"
	MsgUnexpected     = "An unexpected error occurred.  Please try again later."
	MsgSuccess        = "Thank you for your submission."
)

// Defaults applied by NewProcessor.
const (
	DefaultMaxPerWindow = 10
	DefaultWindow       = time.Hour
	DefaultUploadPrefix = "form-uploads"
)

// -----------------------------------------------------------------------------
// Collaborators
// -----------------------------------------------------------------------------

// Submission is one accepted payload.  It is immutable once created.
type Submission struct {
	ID        string         `json:"id" db:"id"`
	FormID    string         `json:"formId" db:"form_id"`
	Data      map[string]any `json:"data" db:"-"`
	IPAddress string         `json:"ipAddress" db:"ip_address"`
	UserAgent string         `json:"userAgent" db:"user_agent"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
}

// Repository is the persistence collaborator supplied by the host.
type Repository interface {
	LoadForm(ctx context.Context, id string) (*Form, error)
	SaveForm(ctx context.Context, f *Form) error
	CountSubmissions(ctx context.Context, formID, ip string, since time.Time) (int, error)
	CreateSubmission(ctx context.Context, s *Submission) error
}

// Notifier is told about accepted submissions.  Failures are logged only.
type Notifier interface {
	NotifySubmission(ctx context.Context, f *Form, s *Submission) error
}

// -----------------------------------------------------------------------------
// Input and result
// -----------------------------------------------------------------------------

// Input is one raw submission attempt.  File values are *UploadedFile.
type Input struct {
	Data      map[string]any
	IP        string
	UserAgent string
}

// ResultCode classifies an outcome for callers and metrics.
type ResultCode string

const (
	CodeOK             ResultCode = "ok"
	CodeUnavailable    ResultCode = "unavailable"
	CodeRateLimited    ResultCode = "rate_limited"
	CodeValidation     ResultCode = "validation_failed"
	CodeUploadRejected ResultCode = "upload_rejected"
	CodeUnexpected     ResultCode = "unexpected"
)

// Result is what the submitter is told.
type Result struct {
	Success      bool             `json:"success"`
	Code         ResultCode       `json:"code"`
	Message      string           `json:"message"`
	SubmissionID string           `json:"submissionId,omitempty"`
	Errors       ValidationErrors `json:"errors,omitempty"`
}

func fail(code ResultCode, msg string) Result {
	return Result{Code: code, Message: msg}
}

// -----------------------------------------------------------------------------
// Processor
// -----------------------------------------------------------------------------

// Processor runs the submission pipeline.  Fields may be adjusted after
// NewProcessor and before first use.
type Processor struct {
	Repo       Repository
	Files      FileStore
	Catalog    *Catalog
	Checker    *Checker
	Translator Translator // optional
	Notifier   Notifier   // optional
	Logger     *zap.Logger

	MaxPerWindow int // ≤ 0 disables rate limiting
	Window       time.Duration
	UploadPrefix string

	Now   func() time.Time
	NewID func() string
}

// NewProcessor wires a processor with default limits.
func NewProcessor(repo Repository, files FileStore, c *Catalog) *Processor {
	return &Processor{
		Repo:         repo,
		Files:        files,
		Catalog:      c,
		Checker:      NewChecker(),
		Logger:       zap.L(),
		MaxPerWindow: DefaultMaxPerWindow,
		Window:       DefaultWindow,
		UploadPrefix: DefaultUploadPrefix,
		Now:          time.Now,
		NewID:        uuid.NewString,
	}
}

// HandleByID loads form id and runs Handle.  A missing form is reported as
// unavailable, not as an error.
func (p *Processor) HandleByID(ctx context.Context, id string, in Input) Result {
	f, err := p.Repo.LoadForm(ctx, id)
	if err != nil {
		if errors.Is(err, ErrFormNotFound) {
			return p.finish(fail(CodeUnavailable, MsgUnavailable), time.Now())
		}
		p.log(ctx).Error("submission form load failed", zap.String("form", id), zap.Error(err))
		return p.finish(fail(CodeUnexpected, MsgUnexpected), time.Now())
	}
	return p.Handle(ctx, f, in)
}

// Handle validates, sanitizes, stores, and persists one submission against
// the published schema of f.
func (p *Processor) Handle(ctx context.Context, f *Form, in Input) (res Result) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.log(ctx).Error("submission panic",
				zap.String("form", formID(f)),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
				zap.Any("data", p.scrub(f, in.Data)),
			)
			res = fail(CodeUnexpected, MsgUnexpected)
		}
		res = p.finish(res, started)
	}()

	// 1. Availability
	if !f.Available() {
		return fail(CodeUnavailable, MsgUnavailable)
	}
	now := p.Now()

	// 2. Rate limit
	if p.MaxPerWindow > 0 {
		n, err := p.Repo.CountSubmissions(ctx, f.ID, in.IP, now.Add(-p.Window))
		if err != nil {
			return p.unexpected(ctx, f, in, "count submissions", err)
		}
		if n >= p.MaxPerWindow {
			rej := &SecurityRejection{Kind: RejectRateLimit, Reason: fmt.Sprintf("%d submissions in %s", n, p.Window)}
			p.log(ctx).Warn("submission rejected", zap.String("form", f.ID), zap.String("ip", in.IP), zap.Error(rej))
			return fail(CodeRateLimited, MsgRateLimited)
		}
	}

	// 3. Rules
	fields := f.Schema.Fields()
	rules := make([]FieldRules, 0, len(fields))
	for _, e := range fields {
		rules = append(rules, p.Catalog.CompileElement(e, p.Translator))
	}

	// 4. Validation
	data := in.Data
	if data == nil {
		data = map[string]any{}
	}
	verrs, err := p.Checker.Check(data, rules)
	if err != nil {
		return p.unexpected(ctx, f, in, "check rules", err)
	}
	if len(verrs) > 0 {
		return Result{Code: CodeValidation, Message: MsgValidation, Errors: verrs}
	}

	// 5. Sanitization (schema fields only; unknown keys are dropped)
	clean := make(map[string]any, len(fields))
	for _, e := range fields {
		name := FieldName(e)
		v, ok := data[name]
		if !ok {
			continue
		}
		if e.Type == TypeFile {
			if u, isFile := v.(*UploadedFile); isFile && u != nil {
				clean[name] = u
			}
			continue
		}
		clean[name] = Sanitize(v)
	}

	// 6. Files
	for _, e := range fields {
		if e.Type != TypeFile {
			continue
		}
		name := FieldName(e)
		u, ok := clean[name].(*UploadedFile)
		if !ok {
			continue
		}
		if p.Files == nil {
			return p.unexpected(ctx, f, in, "store upload", errors.New("no file store configured"))
		}
		stored, err := StoreUpload(ctx, p.Files, p.UploadPrefix, f.ID, name, e, u, now)
		if err != nil {
			if rej, isRej := IsSecurityRejection(err); isRej {
				p.log(ctx).Warn("upload rejected", zap.String("form", f.ID), zap.String("ip", in.IP), zap.Error(rej))
				res := fail(CodeUploadRejected, MsgUploadFailed)
				res.Errors = ValidationErrors{name: {MsgUploadRejected}}
				return res
			}
			return p.unexpected(ctx, f, in, "store upload", err)
		}
		metrics.UploadBytesTotal.Add(float64(stored.Size))
		clean[name] = stored
	}

	// 7. Persistence
	sub := &Submission{
		ID:        p.NewID(),
		FormID:    f.ID,
		Data:      clean,
		IPAddress: in.IP,
		UserAgent: in.UserAgent,
		CreatedAt: now.UTC(),
	}
	if err := p.Repo.CreateSubmission(ctx, sub); err != nil {
		return p.unexpected(ctx, f, in, "create submission", err)
	}

	// 8. Notification
	p.notify(ctx, f, sub)

	msg := f.Schema.Settings.SuccessMessage
	if msg == "" {
		msg = MsgSuccess
	}
	return Result{Success: true, Code: CodeOK, Message: msg, SubmissionID: sub.ID}
}

func (p *Processor) notify(ctx context.Context, f *Form, sub *Submission) {
	st := f.Schema.Settings
	if p.Notifier == nil || !st.NotifyOnSubmission {
		return
	}
	if _, err := mail.ParseAddress(st.RecipientEmail); err != nil {
		p.log(ctx).Warn("submission notification skipped", zap.String("form", f.ID), zap.String("reason", "invalid recipient"))
		return
	}
	if err := p.Notifier.NotifySubmission(ctx, f, sub); err != nil {
		p.log(ctx).Warn("submission notification failed", zap.String("form", f.ID), zap.Error(err))
	}
}

func (p *Processor) unexpected(ctx context.Context, f *Form, in Input, stage string, err error) Result {
	p.log(ctx).Error("submission failed",
		zap.String("form", formID(f)),
		zap.String("stage", stage),
		zap.String("ip", in.IP),
		zap.Error(err),
		zap.Any("data", p.scrub(f, in.Data)),
	)
	return fail(CodeUnexpected, MsgUnexpected)
}

func (p *Processor) finish(res Result, started time.Time) Result {
	metrics.SubmissionsTotal.WithLabelValues(string(res.Code)).Inc()
	metrics.SubmissionDuration.Observe(time.Since(started).Seconds())
	return res
}

func (p *Processor) log(ctx context.Context) *zap.Logger {
	if l, ok := logger.Lookup(ctx); ok {
		return l
	}
	if p.Logger != nil {
		return p.Logger
	}
	return zap.L()
}

// scrub prepares submission data for logging: password fields and
// credential-looking keys are redacted, uploads are summarised.
func (p *Processor) scrub(f *Form, data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if u, ok := v.(*UploadedFile); ok && u != nil {
			out[k] = map[string]any{"filename": u.Filename, "size": u.Size, "content_type": u.ContentType}
			continue
		}
		out[k] = v
	}
	if f != nil {
		for _, e := range f.Schema.Elements {
			if e.Type == TypePassword {
				if _, ok := out[FieldName(e)]; ok {
					out[FieldName(e)] = logger.Redacted
				}
			}
		}
	}
	return logger.Redact(out)
}

func formID(f *Form) string {
	if f == nil {
		return ""
	}
	return f.ID
}
