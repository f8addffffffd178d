// internal/form/editor.go
//
// Forms engine – persistent editing session.
//
// Context
//   The admin surface never holds a schema between requests.  Every builder
//   call loads the form fresh, mutates its working copy (draft if one exists,
//   otherwise the published schema), stores the result as the new draft, and
//   saves the form.  Editor packages that load → mutate → SaveDraft → save
//   sequence so handlers stay one-liners.
//
// Notes
//   •  A mutation that reports no change does not touch the draft or the
//      store.  Missing elements therefore never create an empty draft.
//   •  Concurrent edits of one form are last-writer-wins.  Row locking is the
//      host’s concern.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yanizio/formforge/internal/metrics"
)

// Editor applies builder mutations to stored forms.
type Editor struct {
	Repo    Repository
	Builder *Builder
	Locale  string // default locale for draft names
	Now     func() time.Time
}

// NewEditor returns an editor using the wall clock.
func NewEditor(repo Repository, b *Builder, locale string) *Editor {
	if locale == "" {
		locale = "en"
	}
	return &Editor{Repo: repo, Builder: b, Locale: locale, Now: time.Now}
}

// Mutation edits a working schema and reports whether anything changed.
type Mutation func(s *Schema) (bool, error)

// Create stores a new, empty, active form.  An empty id mints a UUID.
func (ed *Editor) Create(ctx context.Context, id string, name Translations) (*Form, error) {
	if id == "" {
		id = uuid.NewString()
	}
	f := NewForm(id, name, ed.Now().UTC())
	if err := ed.Repo.SaveForm(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Edit runs m against the working copy of form id.  The bool reports whether
// a draft was saved.
func (ed *Editor) Edit(ctx context.Context, id string, m Mutation) (*Form, bool, error) {
	f, err := ed.Repo.LoadForm(ctx, id)
	if err != nil {
		return nil, false, err
	}
	ws, names := f.WorkingCopy()
	changed, err := m(&ws)
	if err != nil || !changed {
		return f, false, err
	}
	f.SaveDraft(ws.Elements, ws.Settings, names[ed.Locale], ed.Locale, ed.Now().UTC())
	if err := ed.Repo.SaveForm(ctx, f); err != nil {
		return nil, false, err
	}
	return f, true, nil
}

// SaveDraft overwrites the draft wholesale, as the builder’s explicit save
// button does.
func (ed *Editor) SaveDraft(ctx context.Context, id string, s Schema, name, locale string) (*Form, error) {
	f, err := ed.Repo.LoadForm(ctx, id)
	if err != nil {
		return nil, err
	}
	s = s.Clone()
	for i := range s.Elements {
		normalizeElement(&s.Elements[i])
	}
	var cat *Catalog
	if ed.Builder != nil {
		cat = ed.Builder.Catalog
	}
	if err := s.Validate(cat); err != nil {
		return nil, err
	}
	if locale == "" {
		locale = ed.Locale
	}
	f.SaveDraft(s.Elements, s.Settings, name, locale, ed.Now().UTC())
	if err := ed.Repo.SaveForm(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Publish promotes the draft of form id.  The bool is false when there was
// nothing to publish; the store is not written in that case.
func (ed *Editor) Publish(ctx context.Context, id string) (*Form, bool, error) {
	f, err := ed.Repo.LoadForm(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !f.Publish(ed.Now().UTC()) {
		return f, false, nil
	}
	if err := ed.Repo.SaveForm(ctx, f); err != nil {
		return nil, false, err
	}
	metrics.DraftPublishTotal.Inc()
	return f, true, nil
}

// Discard drops the draft of form id.
func (ed *Editor) Discard(ctx context.Context, id string) (*Form, error) {
	f, err := ed.Repo.LoadForm(ctx, id)
	if err != nil {
		return nil, err
	}
	if !f.Dirty() {
		return f, nil
	}
	f.Discard()
	if err := ed.Repo.SaveForm(ctx, f); err != nil {
		return nil, err
	}
	metrics.DraftDiscardTotal.Inc()
	return f, nil
}
