// internal/form/schema.go
//
// Forms engine – form aggregate and draft/publish state machine.
//
// Context
//   A Form owns two copies of its shape.  The published Schema is what end
//   users submit against.  The DraftOverlay is the builder’s working copy and
//   holds up to three independently optional fields (name, elements,
//   settings).  An unset field means “no pending change”, so an editor can
//   stage a rename without touching settings and vice versa.
//
// Workflow
//   Clean ──SaveDraft──▶ Dirty ──Publish──▶ Clean
//                         │
//                         └────Discard───▶ Clean
//
//   •  SaveDraft always marks the form dirty, even when nothing changed.
//   •  Publish copies every set draft field over the published one, then
//      clears the overlay.  With no draft field set it is a strict no-op.
//   •  Discard clears the overlay and is idempotent.
//
//------------------------------------------------------------------------------

package form

import (
	"encoding/json"
	"time"
)

// -----------------------------------------------------------------------------
// Optional
// -----------------------------------------------------------------------------

// Optional holds a value that may be absent.  The zero value is absent.
type Optional[T any] struct {
	value T
	set   bool
}

// Some wraps v as a present value.
func Some[T any](v T) Optional[T] { return Optional[T]{value: v, set: true} }

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) { return o.value, o.set }

// IsSet reports presence.
func (o Optional[T]) IsSet() bool { return o.set }

// MarshalJSON writes null for an absent value.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON treats null as absent.
func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*o = Optional[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// -----------------------------------------------------------------------------
// Schema and settings
// -----------------------------------------------------------------------------

// Translations maps locale → text.
type Translations map[string]string

// Get returns the text for locale, then fallback, then any entry.
func (t Translations) Get(locale, fallback string) string {
	if s := t[locale]; s != "" {
		return s
	}
	if s := t[fallback]; s != "" {
		return s
	}
	for _, s := range t {
		if s != "" {
			return s
		}
	}
	return ""
}

func (t Translations) clone() Translations {
	if t == nil {
		return nil
	}
	out := make(Translations, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Settings is form-level configuration.
type Settings struct {
	BackgroundColor    string                `json:"backgroundColor,omitempty" yaml:"backgroundColor,omitempty"`
	SubmitAlignment    map[Breakpoint]string `json:"submitAlignment,omitempty" yaml:"submitAlignment,omitempty"`
	NotifyOnSubmission bool                  `json:"notifyOnSubmission" yaml:"notifyOnSubmission"`
	RecipientEmail     string                `json:"recipientEmail,omitempty" yaml:"recipientEmail,omitempty" validate:"omitempty,email"`
	SuccessMessage     string                `json:"successMessage,omitempty" yaml:"successMessage,omitempty"`
}

// DefaultSettings is what a new form starts with.
func DefaultSettings() Settings {
	return Settings{
		BackgroundColor: "#ffffff",
		SubmitAlignment: map[Breakpoint]string{Desktop: "left", Tablet: "left", Mobile: "center"},
		SuccessMessage:  "Thank you for your submission.",
	}
}

func (s Settings) clone() Settings {
	out := s
	if s.SubmitAlignment != nil {
		out.SubmitAlignment = make(map[Breakpoint]string, len(s.SubmitAlignment))
		for k, v := range s.SubmitAlignment {
			out.SubmitAlignment[k] = v
		}
	}
	return out
}

// Schema is the ordered element list plus settings.
type Schema struct {
	Elements []Element `json:"elements"`
	Settings Settings  `json:"settings"`
}

// Clone deep-copies s.
func (s Schema) Clone() Schema {
	return Schema{Elements: cloneElements(s.Elements), Settings: s.Settings.clone()}
}

// Fields returns the elements that carry submission data, in order.
func (s Schema) Fields() []Element {
	out := make([]Element, 0, len(s.Elements))
	for _, e := range s.Elements {
		if e.Type != TypeSubmitButton {
			out = append(out, e)
		}
	}
	return out
}

// Validate checks every element, that ids are unique across the schema,
// and, when c is non-nil, that rules, values, and messages fit the catalog.
func (s Schema) Validate(c *Catalog) error {
	ids := make(map[string]struct{}, len(s.Elements))
	for i := range s.Elements {
		e := &s.Elements[i]
		if err := e.Validate(); err != nil {
			return err
		}
		if _, dup := ids[e.ID]; dup {
			return &SchemaError{ElementID: e.ID, Type: string(e.Type), Reason: "duplicate element id"}
		}
		ids[e.ID] = struct{}{}
		if c == nil {
			continue
		}
		if err := checkRules(c, e); err != nil {
			return err
		}
	}
	return nil
}

func cloneElements(in []Element) []Element {
	if in == nil {
		return nil
	}
	out := make([]Element, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}

// -----------------------------------------------------------------------------
// Form aggregate
// -----------------------------------------------------------------------------

// DraftOverlay is the unpublished working copy.
type DraftOverlay struct {
	Name     Optional[Translations] `json:"name"`
	Elements Optional[[]Element]    `json:"elements"`
	Settings Optional[Settings]     `json:"settings"`
}

// Empty reports whether no draft field is set.
func (d DraftOverlay) Empty() bool {
	return !d.Name.IsSet() && !d.Elements.IsSet() && !d.Settings.IsSet()
}

// Form is the aggregate persisted by a Repository.
type Form struct {
	ID          string       `json:"id"`
	Name        Translations `json:"name"`
	Schema      Schema       `json:"schema"`
	Draft       DraftOverlay `json:"draft"`
	LastDraftAt *time.Time   `json:"lastDraftAt,omitempty"`
	Active      bool         `json:"active"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// NewForm returns an active, empty, clean form.
func NewForm(id string, name Translations, now time.Time) *Form {
	return &Form{
		ID:        id,
		Name:      name.clone(),
		Schema:    Schema{Elements: []Element{}, Settings: DefaultSettings()},
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Dirty reports whether a draft is pending.
func (f *Form) Dirty() bool { return !f.Draft.Empty() }

// SaveDraft overwrites all three draft fields.  The draft name starts from the
// current draft (or published) translations with locale set to name.
func (f *Form) SaveDraft(elements []Element, settings Settings, name, locale string, now time.Time) {
	base, ok := f.Draft.Name.Get()
	if !ok {
		base = f.Name
	}
	names := base.clone()
	if names == nil {
		names = Translations{}
	}
	names[locale] = name

	f.Draft = DraftOverlay{
		Name:     Some(names),
		Elements: Some(cloneElements(elements)),
		Settings: Some(settings.clone()),
	}
	t := now
	f.LastDraftAt = &t
}

// Publish promotes every set draft field and clears the overlay.  It returns
// false, leaving the form untouched, when no draft field is set.
func (f *Form) Publish(now time.Time) bool {
	if f.Draft.Empty() {
		return false
	}
	promote(&f.Name, f.Draft.Name, Translations.clone)
	promote(&f.Schema.Elements, f.Draft.Elements, cloneElements)
	promote(&f.Schema.Settings, f.Draft.Settings, Settings.clone)
	f.Discard()
	f.UpdatedAt = now
	return true
}

func promote[T any](dst *T, o Optional[T], clone func(T) T) {
	if v, ok := o.Get(); ok {
		*dst = clone(v)
	}
}

// Discard clears the overlay.  Published data is never touched.
func (f *Form) Discard() {
	f.Draft = DraftOverlay{}
	f.LastDraftAt = nil
}

// WorkingCopy returns what the builder edits: each draft field when set,
// otherwise the published one.  The result never aliases the form.
func (f *Form) WorkingCopy() (Schema, Translations) {
	s := f.Schema.Clone()
	if v, ok := f.Draft.Elements.Get(); ok {
		s.Elements = cloneElements(v)
	}
	if v, ok := f.Draft.Settings.Get(); ok {
		s.Settings = v.clone()
	}
	name := f.Name.clone()
	if v, ok := f.Draft.Name.Get(); ok {
		name = v.clone()
	}
	return s, name
}

// Available reports whether end users may submit against the published schema.
func (f *Form) Available() bool {
	return f != nil && f.Active && len(f.Schema.Elements) > 0
}

// Clone deep-copies f.  Caches hand out clones so callers may mutate freely.
func (f *Form) Clone() *Form {
	if f == nil {
		return nil
	}
	out := *f
	out.Name = f.Name.clone()
	out.Schema = f.Schema.Clone()
	out.Draft = DraftOverlay{}
	if v, ok := f.Draft.Name.Get(); ok {
		out.Draft.Name = Some(v.clone())
	}
	if v, ok := f.Draft.Elements.Get(); ok {
		out.Draft.Elements = Some(cloneElements(v))
	}
	if v, ok := f.Draft.Settings.Get(); ok {
		out.Draft.Settings = Some(v.clone())
	}
	if f.LastDraftAt != nil {
		t := *f.LastDraftAt
		out.LastDraftAt = &t
	}
	return &out
}
