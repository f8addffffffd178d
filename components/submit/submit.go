// components/submit/submit.go
//
// Formforge submit component – public form surface.
//
// Context
//   End users only ever see the published schema.  GET /forms/{id} returns
//   renderer-independent descriptors, GET /forms/{id}/schema.json the JSON
//   Schema export, and POST /forms/{id}/submit runs the submission pipeline.
//   Submissions arrive as JSON or multipart; multipart file parts become
//   *form.UploadedFile values under their field name.
//
// Workflow (submit)
//   1. Decode the body into a flat map (JSON numbers stay json.Number).
//   2. Pick the locale: ?locale=, then Accept-Language, then the default.
//   3. Run a per-request copy of the Processor with that locale’s translator,
//      keyed on the client IP resolved by requestinfo.
//   4. Map the result code onto an HTTP status.  The body is always the
//      form.Result; internal error text never reaches the client.
//
//------------------------------------------------------------------------------

package submit

import (
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/formforge/internal/component"
	"github.com/yanizio/formforge/internal/form"
	"github.com/yanizio/formforge/internal/logger"
	"github.com/yanizio/formforge/internal/requestinfo"
)

// Fallback limits when no config is supplied.
const (
	defaultMaxUploadMB = 32
	maxJSONBody        = 1 << 20
)

// Compile-time assertions.
var (
	_ component.Component   = (*Component)(nil)
	_ component.Initializer = (*Component)(nil)
)

// Component serves the public form endpoints.
type Component struct {
	deps          component.Deps
	locale        string
	trustProxy    bool
	maxUploadByte int64
}

/*────────────────── component.Component methods ───────────────────────────*/

// Name returns the canonical component key.
func (c *Component) Name() string { return "submit" }

// Init captures the shared engine and limits.
func (c *Component) Init(d component.Deps) error {
	if d.Repo == nil || d.Processor == nil || d.Previewer == nil {
		return errors.New("submit: repository, processor, and previewer are required")
	}
	c.deps = d
	c.locale = "en"
	c.maxUploadByte = defaultMaxUploadMB << 20
	if d.Config != nil {
		c.trustProxy = d.Config.HTTP.TrustProxy
		if d.Config.Forms.DefaultLocale != "" {
			c.locale = d.Config.Forms.DefaultLocale
		}
		if d.Config.Forms.MaxUploadMB > 0 {
			c.maxUploadByte = d.Config.Forms.MaxUploadMB << 20
		}
	}
	return nil
}

// Routes registers the public endpoints on r.
func (c *Component) Routes(r chi.Router) {
	r.Get("/forms/{id}", c.getForm)
	r.Get("/forms/{id}/schema.json", c.getSchema)
	r.Post("/forms/{id}/submit", c.submit)
}

// Register component at program start.
func init() { component.Register(&Component{}) }

/*──────────────────────────── Helpers ──────────────────────────────────────*/

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a result code onto an HTTP status.
func statusFor(code form.ResultCode) int {
	switch code {
	case form.CodeOK:
		return http.StatusCreated
	case form.CodeUnavailable:
		return http.StatusNotFound
	case form.CodeRateLimited:
		return http.StatusTooManyRequests
	case form.CodeValidation, form.CodeUploadRejected:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// localeFor picks the request locale.
func (c *Component) localeFor(r *http.Request) string {
	if l := r.URL.Query().Get("locale"); l != "" {
		return l
	}
	if info := requestinfo.FromContext(r.Context()); info != nil && info.PrimaryLang != "" {
		if c.deps.Lang == nil || c.deps.Lang.Has(info.PrimaryLang) {
			return info.PrimaryLang
		}
	}
	return c.locale
}

// published loads id and reports unavailable forms as a Result.
func (c *Component) published(w http.ResponseWriter, r *http.Request) (*form.Form, bool) {
	f, err := c.deps.Repo.LoadForm(r.Context(), chi.URLParam(r, "id"))
	if err != nil && !errors.Is(err, form.ErrFormNotFound) {
		logger.FromContext(r.Context()).Error("form load failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, form.Result{Code: form.CodeUnexpected, Message: form.MsgUnexpected})
		return nil, false
	}
	if !f.Available() {
		writeJSON(w, http.StatusNotFound, form.Result{Code: form.CodeUnavailable, Message: form.MsgUnavailable})
		return nil, false
	}
	return f, true
}

/*──────────────────────────── Handlers ─────────────────────────────────────*/

func (c *Component) getForm(w http.ResponseWriter, r *http.Request) {
	f, ok := c.published(w, r)
	if !ok {
		return
	}
	locale := c.localeFor(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       f.ID,
		"name":     f.Name.Get(locale, c.locale),
		"locale":   locale,
		"elements": c.deps.Previewer.Preview(f.Schema, nil),
		"settings": f.Schema.Settings,
	})
}

func (c *Component) getSchema(w http.ResponseWriter, r *http.Request) {
	f, ok := c.published(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(form.JSONSchema(f, c.localeFor(r)))
}

func (c *Component) submit(w http.ResponseWriter, r *http.Request) {
	data, cleanup, err := c.readData(w, r)
	defer cleanup()
	if err != nil {
		logger.FromContext(r.Context()).Info("submission body rejected", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, form.Result{Code: form.CodeValidation, Message: form.MsgValidation})
		return
	}

	p := *c.deps.Processor
	if c.deps.Lang != nil {
		p.Translator = c.deps.Lang.For(c.localeFor(r))
	}

	in := form.Input{Data: data, UserAgent: r.UserAgent()}
	if info := requestinfo.FromContext(r.Context()); info != nil {
		in.IP = info.IP
	} else {
		in.IP = requestinfo.ClientIP(r, c.trustProxy)
	}

	res := p.HandleByID(r.Context(), chi.URLParam(r, "id"), in)
	writeJSON(w, statusFor(res.Code), res)
}

// readData decodes a JSON or multipart body.  cleanup releases multipart
// temp files and is always safe to call.
func (c *Component) readData(w http.ResponseWriter, r *http.Request) (map[string]any, func(), error) {
	noop := func() {}
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mt {
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, c.maxUploadByte)
		if err := r.ParseMultipartForm(c.maxUploadByte); err != nil {
			return nil, noop, err
		}
		mf := r.MultipartForm
		data, files := multipartData(mf)
		return data, func() {
			for _, f := range files {
				_ = f.Close()
			}
			_ = mf.RemoveAll()
		}, nil

	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := r.ParseForm(); err != nil {
			return nil, noop, err
		}
		data := make(map[string]any, len(r.PostForm))
		for k, v := range r.PostForm {
			data[k] = flatten(v)
		}
		return data, noop, nil

	default:
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
		dec.UseNumber()
		data := map[string]any{}
		if err := dec.Decode(&data); err != nil {
			return nil, noop, err
		}
		return data, noop, nil
	}
}

// multipartData turns values into strings (or []string for repeats) and
// files into *form.UploadedFile.  Only the first file per field is kept.  The
// opened files are returned for the caller to close.
func multipartData(mf *multipart.Form) (map[string]any, []multipart.File) {
	data := make(map[string]any, len(mf.Value)+len(mf.File))
	var open []multipart.File
	for k, v := range mf.Value {
		data[k] = flatten(v)
	}
	for k, fhs := range mf.File {
		if len(fhs) == 0 {
			continue
		}
		fh := fhs[0]
		file, err := fh.Open()
		if err != nil {
			continue
		}
		open = append(open, file)
		data[k] = &form.UploadedFile{
			Filename:    fh.Filename,
			Size:        fh.Size,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     file,
		}
	}
	return data, open
}

func flatten(v []string) any {
	if len(v) == 1 {
		return v[0]
	}
	return v
}
