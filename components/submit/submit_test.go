package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/formforge/internal/component"
	"github.com/yanizio/formforge/internal/config"
	"github.com/yanizio/formforge/internal/database"
	"github.com/yanizio/formforge/internal/form"
	"github.com/yanizio/formforge/internal/lang"
	"github.com/yanizio/formforge/internal/requestinfo"
	"github.com/yanizio/formforge/internal/storage"
	"github.com/yanizio/formforge/internal/store"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fixture struct {
	h       http.Handler
	store   *store.SQLStore
	uploads string
}

// newFixture publishes a contact form with name (required), email
// (required, email), and an attachment.
func newFixture(t *testing.T, maxPerWindow int) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open("sqlite", "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	st := store.New(db)
	require.NoError(t, st.Migrate(ctx))

	cat := form.DefaultCatalog()
	b := form.NewBuilder(cat)
	f := form.NewForm("contact", form.Translations{"en": "Contact", "fr": "Contact FR"}, time.Now().UTC())
	s := &f.Schema

	name, _ := b.AddElement(s, form.TypeText)
	b.UpdateProperties(s, name.ID, form.Properties{Label: "Name"})
	b.UpdateValidationRules(s, name.ID, []string{"required"})

	mail, _ := b.AddElement(s, form.TypeEmail)
	b.UpdateProperties(s, mail.ID, form.Properties{Label: "Email"})
	b.UpdateValidationRules(s, mail.ID, []string{"required", "email"})

	file, _ := b.AddElement(s, form.TypeFile)
	b.UpdateProperties(s, file.ID, form.Properties{Label: "Attachment", Accept: "image/*", MaxSize: "1MB"})

	b.AddElement(s, form.TypeSubmitButton)
	require.NoError(t, st.SaveForm(ctx, f))

	draftOnly := form.NewForm("draft-only", nil, time.Now().UTC())
	require.NoError(t, st.SaveForm(ctx, draftOnly))

	uploads := t.TempDir()
	disk, err := storage.NewDisk(uploads, "/uploads")
	require.NoError(t, err)

	langDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(langDir, "fr.yaml"),
		[]byte("validation:\n  required: \"Le champ :field est obligatoire.\"\n"), 0o644))
	bundle, err := lang.Load(langDir, "en")
	require.NoError(t, err)

	p := form.NewProcessor(st, disk, cat)
	p.MaxPerWindow = maxPerWindow

	c := &Component{}
	require.NoError(t, c.Init(component.Deps{
		Config:    &config.Config{Forms: config.Forms{DefaultLocale: "en", MaxUploadMB: 2}},
		Repo:      st,
		Catalog:   cat,
		Processor: p,
		Previewer: form.NewPreviewer(),
		Lang:      bundle,
	}))
	r := chi.NewRouter()
	c.Routes(r)
	return &fixture{h: r, store: st, uploads: uploads}
}

func (f *fixture) postJSON(t *testing.T, path string, body any, ip string) (*httptest.ResponseRecorder, form.Result) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	r.Header.Set("Content-Type", "application/json")
	r.RemoteAddr = ip + ":4000"
	w := httptest.NewRecorder()
	f.h.ServeHTTP(w, r)

	var res form.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	return w, res
}

func TestGetPublishedForm(t *testing.T) {
	f := newFixture(t, 10)

	w := httptest.NewRecorder()
	f.h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/forms/contact?locale=fr", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Name     string            `json:"name"`
		Elements []form.Descriptor `json:"elements"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Contact FR", body.Name)
	require.Len(t, body.Elements, 4)
	assert.Equal(t, "name", body.Elements[0].Name)
	assert.True(t, body.Elements[0].Required)

	for _, path := range []string{"/forms/missing", "/forms/draft-only", "/forms/missing/schema.json"} {
		w = httptest.NewRecorder()
		f.h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestSchemaJSON(t *testing.T) {
	f := newFixture(t, 10)

	w := httptest.NewRecorder()
	f.h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/forms/contact/schema.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/schema+json", w.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "object", body["type"])
	assert.ElementsMatch(t, []any{"name", "email"}, body["required"])
}

func TestSubmitJSON(t *testing.T) {
	f := newFixture(t, 10)

	w, res := f.postJSON(t, "/forms/contact/submit", map[string]any{
		"name":  "<i>Ada</i>",
		"email": "ada@example.com",
		"extra": "dropped",
	}, "1.2.3.4")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.SubmissionID)

	subs, err := f.store.ListSubmissions(context.Background(), "contact", 10, 0)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "Ada", subs[0].Data["name"])
	assert.Equal(t, "1.2.3.4", subs[0].IPAddress)
	assert.NotContains(t, subs[0].Data, "extra")
}

func TestSubmitValidationLocalized(t *testing.T) {
	f := newFixture(t, 10)

	w, res := f.postJSON(t, "/forms/contact/submit?locale=fr", map[string]any{"email": "nope"}, "1.2.3.4")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, form.CodeValidation, res.Code)
	assert.Equal(t, []string{"Le champ Name est obligatoire."}, res.Errors["name"])
	assert.Contains(t, res.Errors["email"][0], "valid email")
}

func TestSubmitRateLimited(t *testing.T) {
	f := newFixture(t, 2)
	body := map[string]any{"name": "Ada", "email": "ada@example.com"}

	for i := 0; i < 2; i++ {
		w, _ := f.postJSON(t, "/forms/contact/submit", body, "9.9.9.9")
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w, res := f.postJSON(t, "/forms/contact/submit", body, "9.9.9.9")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, form.MsgRateLimited, res.Message)

	w, _ = f.postJSON(t, "/forms/contact/submit", body, "8.8.8.8")
	assert.Equal(t, http.StatusCreated, w.Code, "other addresses are unaffected")
}

func TestSubmitUsesEnricherIP(t *testing.T) {
	f := newFixture(t, 10)

	raw := `{"name":"Ada","email":"ada@example.com"}`
	r := httptest.NewRequest(http.MethodPost, "/forms/contact/submit", strings.NewReader(raw))
	r.Header.Set("Content-Type", "application/json")
	r = r.WithContext(requestinfo.WithInfo(r.Context(), &requestinfo.Info{IP: "7.7.7.7"}))
	w := httptest.NewRecorder()
	f.h.ServeHTTP(w, r)
	require.Equal(t, http.StatusCreated, w.Code)

	subs, err := f.store.ListSubmissions(context.Background(), "contact", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, "7.7.7.7", subs[0].IPAddress)
}

func TestSubmitUnavailableAndMalformed(t *testing.T) {
	f := newFixture(t, 10)

	w, res := f.postJSON(t, "/forms/draft-only/submit", map[string]any{}, "1.1.1.1")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, form.CodeUnavailable, res.Code)

	r := httptest.NewRequest(http.MethodPost, "/forms/contact/submit", strings.NewReader("{"))
	r.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func multipartBody(t *testing.T, fields map[string]string, fileField, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestSubmitMultipartStoresUpload(t *testing.T) {
	f := newFixture(t, 10)

	content := append(append([]byte{}, pngMagic...), bytes.Repeat([]byte{0}, 2048)...)
	body, ctype := multipartBody(t, map[string]string{"name": "Ada", "email": "ada@example.com"}, "attachment", "logo.png", content)
	r := httptest.NewRequest(http.MethodPost, "/forms/contact/submit", body)
	r.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	f.h.ServeHTTP(w, r)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	subs, err := f.store.ListSubmissions(context.Background(), "contact", 10, 0)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	att, ok := subs[0].Data["attachment"].(map[string]any)
	require.True(t, ok, "stored file metadata expected, got %T", subs[0].Data["attachment"])
	assert.Equal(t, "logo.png", att["original_name"])
	assert.Equal(t, "image/png", att["mime_type"])

	var files int
	require.NoError(t, filepath.Walk(f.uploads, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files++
		}
		return err
	}))
	assert.Equal(t, 1, files)
}

func TestSubmitMultipartRejectsWrongType(t *testing.T) {
	f := newFixture(t, 10)

	body, ctype := multipartBody(t, map[string]string{"name": "Ada", "email": "ada@example.com"},
		"attachment", "notes.txt", []byte("plain text, not an image"))
	r := httptest.NewRequest(http.MethodPost, "/forms/contact/submit", body)
	r.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	f.h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var res form.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, form.CodeUploadRejected, res.Code)

	subs, err := f.store.ListSubmissions(context.Background(), "contact", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestStatusFor(t *testing.T) {
	cases := map[form.ResultCode]int{
		form.CodeOK:             http.StatusCreated,
		form.CodeUnavailable:    http.StatusNotFound,
		form.CodeRateLimited:    http.StatusTooManyRequests,
		form.CodeValidation:     http.StatusUnprocessableEntity,
		form.CodeUploadRejected: http.StatusUnprocessableEntity,
		form.CodeUnexpected:     http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, statusFor(code), fmt.Sprint(code))
	}
}
