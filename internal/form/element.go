// internal/form/element.go
//
// Forms engine – element model and registry.
//
// Context
//   An Element is one field of a form schema.  The builder never creates an
//   Element by hand; it asks NewElement for a type-appropriate skeleton with
//   default properties, responsive styles, and an empty validation block.  The
//   set of element types is closed, so an unknown type is rejected here and
//   never silently coerced.
//
// Workflow
//   •  ParseElementType turns a string from the UI or a YAML seed into an
//      ElementType, failing with a SchemaError for unknown values.
//   •  NewElement(type, id) returns a populated Element.  Order is left to the
//      caller (the builder appends).
//   •  Element.Validate enforces the per-type property contract.  It runs on
//      construction and on import, not on every read.
//
//------------------------------------------------------------------------------

package form

import (
	"encoding/json"
	"fmt"
)

// ElementType is the closed set of widgets a form may contain.
type ElementType string

const (
	TypeText         ElementType = "text"
	TypeTextarea     ElementType = "textarea"
	TypeEmail        ElementType = "email"
	TypeSelect       ElementType = "select"
	TypeCheckbox     ElementType = "checkbox"
	TypeRadio        ElementType = "radio"
	TypeDate         ElementType = "date"
	TypeNumber       ElementType = "number"
	TypePassword     ElementType = "password"
	TypeFile         ElementType = "file"
	TypeSubmitButton ElementType = "submit_button"
)

// ElementTypes lists every supported type in palette order.
var ElementTypes = []ElementType{
	TypeText, TypeTextarea, TypeEmail, TypeSelect, TypeCheckbox, TypeRadio,
	TypeDate, TypeNumber, TypePassword, TypeFile, TypeSubmitButton,
}

// ParseElementType validates s against the closed set.
func ParseElementType(s string) (ElementType, error) {
	t := ElementType(s)
	if !t.Valid() {
		return "", &SchemaError{Type: s, Reason: "unknown element type", Err: ErrUnknownElementType}
	}
	return t, nil
}

// Valid reports whether t is a member of the closed set.
func (t ElementType) Valid() bool {
	for _, k := range ElementTypes {
		if k == t {
			return true
		}
	}
	return false
}

// HasOptions reports whether the type renders a fixed choice list.
func (t ElementType) HasOptions() bool {
	return t == TypeSelect || t == TypeRadio || t == TypeCheckbox
}

// UnmarshalJSON rejects unknown types so stored schemas cannot smuggle one in.
func (t *ElementType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseElementType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for definition files.
func (t *ElementType) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseElementType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// -----------------------------------------------------------------------------
// Element
// -----------------------------------------------------------------------------

// Breakpoint names a responsive layout slot.
type Breakpoint string

const (
	Desktop Breakpoint = "desktop"
	Tablet  Breakpoint = "tablet"
	Mobile  Breakpoint = "mobile"
)

// Breakpoints in layout order.
var Breakpoints = []Breakpoint{Desktop, Tablet, Mobile}

// Style is the per-breakpoint presentation of one element.
type Style struct {
	Width    string `json:"width" yaml:"width"`
	FontSize string `json:"fontSize" yaml:"fontSize"`
}

// DefaultStyle is what every breakpoint starts with.
func DefaultStyle() Style { return Style{Width: "full", FontSize: ""} }

// Option is one entry of a select, radio, or checkbox group.
type Option struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// Properties holds the semantic configuration of an element.  Type-specific
// fields are only legal on the types noted beside them; Validate enforces
// that.  Extra carries UI-only styling hints and is never interpreted here.
type Properties struct {
	Label       string `json:"label" yaml:"label"`
	Placeholder string `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	HelpText    string `json:"helpText,omitempty" yaml:"helpText,omitempty"`

	Options []Option `json:"options,omitempty" yaml:"options,omitempty"` // select, radio, checkbox
	Rows    int      `json:"rows,omitempty" yaml:"rows,omitempty"`       // textarea

	Min  *float64 `json:"min,omitempty" yaml:"min,omitempty"`   // number
	Max  *float64 `json:"max,omitempty" yaml:"max,omitempty"`   // number
	Step *float64 `json:"step,omitempty" yaml:"step,omitempty"` // number

	Accept  string `json:"accept,omitempty" yaml:"accept,omitempty"`   // file
	MaxSize string `json:"maxSize,omitempty" yaml:"maxSize,omitempty"` // file, e.g. "2MB"

	ButtonText string `json:"buttonText,omitempty" yaml:"buttonText,omitempty"` // submit_button

	Extra map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Validation is the per-element rule attachment.  Rules is ordered and free
// of duplicates.  Values and Messages are keyed by rule key and never hold
// entries for rules that are not in Rules.
type Validation struct {
	Rules    []string          `json:"rules" yaml:"rules"`
	Values   map[string]string `json:"values" yaml:"values"`
	Messages map[string]string `json:"messages" yaml:"messages"`
}

// Has reports whether key is an active rule.
func (v *Validation) Has(key string) bool {
	for _, r := range v.Rules {
		if r == key {
			return true
		}
	}
	return false
}

// ensure initialises nil maps so setters never panic.
func (v *Validation) ensure() {
	if v.Rules == nil {
		v.Rules = []string{}
	}
	if v.Values == nil {
		v.Values = map[string]string{}
	}
	if v.Messages == nil {
		v.Messages = map[string]string{}
	}
}

// Element is one field or widget in a schema.
type Element struct {
	ID         string               `json:"id" yaml:"id"`
	Type       ElementType          `json:"type" yaml:"type"`
	Order      int                  `json:"order" yaml:"order"`
	Properties Properties           `json:"properties" yaml:"properties"`
	Styles     map[Breakpoint]Style `json:"styles" yaml:"styles"`
	Validation Validation           `json:"validation" yaml:"validation"`
}

// Clone returns a deep copy so draft edits never alias published data.
func (e Element) Clone() Element {
	out := e
	out.Properties.Options = cloneSlice(e.Properties.Options)
	out.Properties.Min = cloneFloat(e.Properties.Min)
	out.Properties.Max = cloneFloat(e.Properties.Max)
	out.Properties.Step = cloneFloat(e.Properties.Step)
	out.Properties.Extra = cloneStrings(e.Properties.Extra)
	if e.Styles != nil {
		out.Styles = make(map[Breakpoint]Style, len(e.Styles))
		for k, v := range e.Styles {
			out.Styles[k] = v
		}
	}
	out.Validation.Rules = cloneSlice(e.Validation.Rules)
	out.Validation.Values = cloneStrings(e.Validation.Values)
	out.Validation.Messages = cloneStrings(e.Validation.Messages)
	return out
}

// Validate enforces the per-type property contract.
func (e *Element) Validate() error {
	if e.ID == "" {
		return &SchemaError{ElementID: e.ID, Type: string(e.Type), Reason: "missing id"}
	}
	if !e.Type.Valid() {
		return &SchemaError{ElementID: e.ID, Type: string(e.Type), Reason: "unknown element type", Err: ErrUnknownElementType}
	}
	bad := func(reason string) error {
		return &SchemaError{ElementID: e.ID, Type: string(e.Type), Reason: reason}
	}

	p := &e.Properties
	if len(p.Options) > 0 && !e.Type.HasOptions() {
		return bad("options are only valid on select, radio, and checkbox")
	}
	if (e.Type == TypeSelect || e.Type == TypeRadio) && len(p.Options) == 0 {
		return bad("at least one option is required")
	}
	if p.Rows != 0 && e.Type != TypeTextarea {
		return bad("rows is only valid on textarea")
	}
	if (p.Min != nil || p.Max != nil || p.Step != nil) && e.Type != TypeNumber {
		return bad("min, max, and step are only valid on number")
	}
	if p.Min != nil && p.Max != nil && *p.Min > *p.Max {
		return bad("min is greater than max")
	}
	if (p.Accept != "" || p.MaxSize != "") && e.Type != TypeFile {
		return bad("accept and maxSize are only valid on file")
	}
	if p.MaxSize != "" {
		if _, err := ParseSize(p.MaxSize); err != nil {
			return bad(err.Error())
		}
	}
	if p.ButtonText != "" && e.Type != TypeSubmitButton {
		return bad("buttonText is only valid on submit_button")
	}
	for bp := range e.Styles {
		if bp != Desktop && bp != Tablet && bp != Mobile {
			return bad(fmt.Sprintf("unknown breakpoint %q", bp))
		}
	}
	seen := make(map[string]struct{}, len(e.Validation.Rules))
	for _, r := range e.Validation.Rules {
		if _, dup := seen[r]; dup {
			return bad(fmt.Sprintf("duplicate rule %q", r))
		}
		seen[r] = struct{}{}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

// NewElement builds a type-appropriate element skeleton.  Order is left at
// zero for the caller to assign.
func NewElement(t ElementType, id string) (Element, error) {
	if !t.Valid() {
		return Element{}, &SchemaError{ElementID: id, Type: string(t), Reason: "unknown element type", Err: ErrUnknownElementType}
	}

	e := Element{
		ID:         id,
		Type:       t,
		Properties: defaultProperties(t),
		Styles:     make(map[Breakpoint]Style, len(Breakpoints)),
		Validation: Validation{Rules: []string{}, Values: map[string]string{}, Messages: map[string]string{}},
	}
	for _, bp := range Breakpoints {
		e.Styles[bp] = DefaultStyle()
	}
	if err := e.Validate(); err != nil {
		return Element{}, err
	}
	return e, nil
}

func defaultProperties(t ElementType) Properties {
	switch t {
	case TypeText:
		return Properties{Label: "Text Field", Placeholder: "Enter text"}
	case TypeTextarea:
		return Properties{Label: "Text Area", Placeholder: "Enter your message", Rows: 4}
	case TypeEmail:
		return Properties{Label: "Email Address", Placeholder: "you@example.com"}
	case TypeSelect:
		return Properties{Label: "Select Option", Placeholder: "Choose an option", Options: defaultOptions()}
	case TypeCheckbox:
		return Properties{Label: "Checkbox", Options: defaultOptions()}
	case TypeRadio:
		return Properties{Label: "Radio Group", Options: defaultOptions()}
	case TypeDate:
		return Properties{Label: "Date"}
	case TypeNumber:
		step := 1.0
		return Properties{Label: "Number", Placeholder: "0", Step: &step}
	case TypePassword:
		return Properties{Label: "Password"}
	case TypeFile:
		return Properties{Label: "File Upload", Accept: "image/*,.pdf", MaxSize: "2MB"}
	case TypeSubmitButton:
		return Properties{Label: "Submit", ButtonText: "Submit"}
	}
	return Properties{}
}

func defaultOptions() []Option {
	return []Option{
		{Label: "Option 1", Value: "option_1"},
		{Label: "Option 2", Value: "option_2"},
	}
}

// -----------------------------------------------------------------------------
// Small copy helpers
// -----------------------------------------------------------------------------

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
