// components/builder/builder.go
//
// Formforge builder component – admin JSON API over the form editor.
//
// Context
//   Every mutating route loads the form, applies one builder operation to its
//   working copy, stores that copy as the draft, and saves the form (see
//   form.Editor).  Publish and discard promote or drop the draft.  Missing
//   elements and unknown rule keys are silent no-ops reported as
//   {"changed": false}, never as errors, so a UI racing with itself never
//   sees a failure.
//
// Routes (all behind the bearer admin token)
//   POST   /admin/forms
//   GET    /admin/forms/{id}
//   POST   /admin/forms/{id}/elements
//   DELETE /admin/forms/{id}/elements/{eid}
//   PUT    /admin/forms/{id}/elements/{eid}/properties
//   PUT    /admin/forms/{id}/elements/{eid}/width
//   POST   /admin/forms/{id}/elements/{eid}/rules/{rule}/toggle
//   PUT    /admin/forms/{id}/elements/{eid}/rules/{rule}/value
//   PUT    /admin/forms/{id}/elements/{eid}/rules/{rule}/message
//   PUT    /admin/forms/{id}/elements/{eid}/rules
//   PUT    /admin/forms/{id}/order
//   PUT    /admin/forms/{id}/draft
//   POST   /admin/forms/{id}/publish
//   POST   /admin/forms/{id}/discard
//   GET    /admin/forms/{id}/preview
//   GET    /admin/forms/{id}/submissions
//   GET    /admin/element-types/{type}/rules
//
//------------------------------------------------------------------------------

package builder

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/formforge/internal/component"
	"github.com/yanizio/formforge/internal/form"
	"github.com/yanizio/formforge/internal/logger"
	"github.com/yanizio/formforge/internal/middleware"
)

// maxBody caps admin request bodies.
const maxBody = 1 << 20

// Compile-time assertions.
var (
	_ component.Component   = (*Component)(nil)
	_ component.Initializer = (*Component)(nil)
)

// Component serves the admin builder API.
type Component struct {
	deps  component.Deps
	token string
}

/*────────────────── component.Component methods ───────────────────────────*/

// Name returns the canonical component key.
func (c *Component) Name() string { return "builder" }

// Init captures the shared engine.
func (c *Component) Init(d component.Deps) error {
	if d.Editor == nil || d.Catalog == nil || d.Previewer == nil {
		return errors.New("builder: editor, catalog, and previewer are required")
	}
	c.deps = d
	if d.Config != nil {
		c.token = d.Config.HTTP.AdminToken
	}
	if c.token == "" {
		zap.L().Warn("admin token empty; builder API disabled")
	}
	return nil
}

// Routes registers the admin API on r.
func (c *Component) Routes(r chi.Router) {
	r.Route("/admin", func(a chi.Router) {
		a.Use(middleware.RequireToken(c.token))

		a.Post("/forms", c.createForm)
		a.Get("/element-types/{type}/rules", c.rulesForType)

		a.Route("/forms/{id}", func(f chi.Router) {
			f.Get("/", c.getForm)
			f.Post("/elements", c.addElement)
			f.Delete("/elements/{eid}", c.deleteElement)
			f.Put("/elements/{eid}/properties", c.updateProperties)
			f.Put("/elements/{eid}/width", c.updateWidth)
			f.Post("/elements/{eid}/rules/{rule}/toggle", c.toggleRule)
			f.Put("/elements/{eid}/rules/{rule}/value", c.updateRuleValue)
			f.Put("/elements/{eid}/rules/{rule}/message", c.updateRuleMessage)
			f.Put("/elements/{eid}/rules", c.replaceRules)
			f.Put("/order", c.reorder)
			f.Put("/draft", c.saveDraft)
			f.Post("/publish", c.publish)
			f.Post("/discard", c.discard)
			f.Get("/preview", c.preview)
			f.Get("/submissions", c.listSubmissions)
		})
	})
}

// Register component at program start.
func init() { component.Register(&Component{}) }

/*──────────────────────────── Responses ────────────────────────────────────*/

// formView is the admin representation of a form.
type formView struct {
	Form    *form.Form        `json:"form"`
	Working form.Schema       `json:"working"`
	Name    form.Translations `json:"workingName"`
	Dirty   bool              `json:"dirty"`
	Changed *bool             `json:"changed,omitempty"`
	Element *form.Element     `json:"element,omitempty"`
}

func viewOf(f *form.Form) formView {
	ws, names := f.WorkingCopy()
	return formView{Form: f, Working: ws, Name: names, Dirty: f.Dirty()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps engine errors onto HTTP statuses.  Internal text is logged, not
// returned.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var se *form.SchemaError
	switch {
	case errors.Is(err, form.ErrFormNotFound):
		writeError(w, http.StatusNotFound, "form not found")
	case errors.As(err, &se):
		writeError(w, http.StatusUnprocessableEntity, se.Error())
	case form.IsValidationError(err):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": err})
	default:
		logger.FromContext(r.Context()).Error("builder request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body: "+err.Error())
		return false
	}
	return true
}

/*──────────────────────────── Handlers ─────────────────────────────────────*/

func (c *Component) createForm(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID   string            `json:"id"`
		Name form.Translations `json:"name"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.ID != "" {
		if _, err := c.deps.Repo.LoadForm(r.Context(), body.ID); err == nil {
			writeError(w, http.StatusConflict, "form already exists")
			return
		}
	}
	f, err := c.deps.Editor.Create(r.Context(), body.ID, body.Name)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(f))
}

func (c *Component) getForm(w http.ResponseWriter, r *http.Request) {
	f, err := c.deps.Repo.LoadForm(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(f))
}

// edit runs m through the editor and writes the updated view.
func (c *Component) edit(w http.ResponseWriter, r *http.Request, m form.Mutation) {
	f, changed, err := c.deps.Editor.Edit(r.Context(), chi.URLParam(r, "id"), m)
	if err != nil {
		fail(w, r, err)
		return
	}
	v := viewOf(f)
	v.Changed = &changed
	writeJSON(w, http.StatusOK, v)
}

func (c *Component) addElement(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type string `json:"type"`
	}
	if !decode(w, r, &body) {
		return
	}
	t, err := form.ParseElementType(body.Type)
	if err != nil {
		fail(w, r, err)
		return
	}

	var added form.Element
	f, _, err := c.deps.Editor.Edit(r.Context(), chi.URLParam(r, "id"), func(s *form.Schema) (bool, error) {
		e, err := c.deps.Editor.Builder.AddElement(s, t)
		added = e
		return err == nil, err
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	v := viewOf(f)
	v.Element = &added
	writeJSON(w, http.StatusCreated, v)
}

func (c *Component) deleteElement(w http.ResponseWriter, r *http.Request) {
	eid := chi.URLParam(r, "eid")
	c.edit(w, r, func(s *form.Schema) (bool, error) {
		return c.deps.Editor.Builder.DeleteElement(s, eid), nil
	})
}

func (c *Component) updateProperties(w http.ResponseWriter, r *http.Request) {
	var p form.Properties
	if !decode(w, r, &p) {
		return
	}
	eid := chi.URLParam(r, "eid")
	c.edit(w, r, func(s *form.Schema) (bool, error) {
		return c.deps.Editor.Builder.UpdateProperties(s, eid, p)
	})
}

func (c *Component) updateWidth(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Breakpoint form.Breakpoint `json:"breakpoint"`
		Width      string          `json:"width"`
	}
	if !decode(w, r, &body) {
		return
	}
	eid := chi.URLParam(r, "eid")
	c.edit(w, r, func(s *form.Schema) (bool, error) {
		return c.deps.Editor.Builder.UpdateElementWidth(s, eid, body.Breakpoint, body.Width), nil
	})
}

func (c *Component) toggleRule(w http.ResponseWriter, r *http.Request) {
	eid, rule := chi.URLParam(r, "eid"), chi.URLParam(r, "rule")
	c.edit(w, r, func(s *form.Schema) (bool, error) {
		return c.deps.Editor.Builder.ToggleValidationRule(s, eid, rule), nil
	})
}

func (c *Component) updateRuleValue(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value string `json:"value"`
	}
	if !decode(w, r, &body) {
		return
	}
	eid, rule := chi.URLParam(r, "eid"), chi.URLParam(r, "rule")
	c.edit(w, r, func(s *form.Schema) (bool, error) {
		return c.deps.Editor.Builder.UpdateValidationRuleValue(s, eid, rule, body.Value), nil
	})
}

func (c *Component) updateRuleMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if !decode(w, r, &body) {
		return
	}
	eid, rule := chi.URLParam(r, "eid"), chi.URLParam(r, "rule")
	c.edit(w, r, func(s *form.Schema) (bool, error) {
		return c.deps.Editor.Builder.UpdateValidationMessage(s, eid, rule, body.Message), nil
	})
}

func (c *Component) replaceRules(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rules []string `json:"rules"`
	}
	if !decode(w, r, &body) {
		return
	}
	eid := chi.URLParam(r, "eid")
	c.edit(w, r, func(s *form.Schema) (bool, error) {
		return c.deps.Editor.Builder.UpdateValidationRules(s, eid, body.Rules), nil
	})
}

// reorder accepts either the order-value permutation or an id list.
func (c *Component) reorder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Orders []int    `json:"orders"`
		IDs    []string `json:"ids"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Orders == nil && body.IDs == nil {
		writeError(w, http.StatusBadRequest, "orders or ids required")
		return
	}
	b := c.deps.Editor.Builder
	c.edit(w, r, func(s *form.Schema) (bool, error) {
		if body.IDs != nil {
			b.ReorderByID(s, body.IDs)
		} else {
			b.ReorderElements(s, body.Orders)
		}
		return true, nil
	})
}

func (c *Component) saveDraft(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Schema form.Schema `json:"schema"`
		Name   string      `json:"name"`
		Locale string      `json:"locale"`
	}
	if !decode(w, r, &body) {
		return
	}
	f, err := c.deps.Editor.SaveDraft(r.Context(), chi.URLParam(r, "id"), body.Schema, body.Name, body.Locale)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(f))
}

func (c *Component) publish(w http.ResponseWriter, r *http.Request) {
	f, changed, err := c.deps.Editor.Publish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if changed {
		logger.FromContext(r.Context()).Info("form published", zap.String("form", f.ID))
	}
	v := viewOf(f)
	v.Changed = &changed
	writeJSON(w, http.StatusOK, v)
}

func (c *Component) discard(w http.ResponseWriter, r *http.Request) {
	f, err := c.deps.Editor.Discard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(f))
}

// preview renders the working copy, so editors see the draft.
func (c *Component) preview(w http.ResponseWriter, r *http.Request) {
	f, err := c.deps.Repo.LoadForm(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	ws, _ := f.WorkingCopy()
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       f.ID,
		"elements": c.deps.Previewer.Preview(ws, nil),
		"settings": ws.Settings,
	})
}

func (c *Component) listSubmissions(w http.ResponseWriter, r *http.Request) {
	if c.deps.Lister == nil {
		writeError(w, http.StatusNotImplemented, "submission listing not available")
		return
	}
	limit, err1 := intParam(r, "limit")
	offset, err2 := intParam(r, "offset")
	if err1 != nil || err2 != nil || limit < 0 || offset < 0 {
		writeError(w, http.StatusBadRequest, "limit and offset must be non-negative integers")
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := c.deps.Repo.LoadForm(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	subs, err := c.deps.Lister.ListSubmissions(r.Context(), id, limit, offset)
	if err != nil {
		fail(w, r, err)
		return
	}
	if subs == nil {
		subs = []form.Submission{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": subs, "limit": limit, "offset": offset})
}

func (c *Component) rulesForType(w http.ResponseWriter, r *http.Request) {
	t, err := form.ParseElementType(chi.URLParam(r, "type"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"type":       t,
		"categories": c.deps.Catalog.CategoriesFor(t),
	})
}

func intParam(r *http.Request, key string) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
