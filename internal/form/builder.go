// internal/form/builder.go
//
// Forms engine – builder operations.
//
// Context
//   The builder owns every mutation of a working schema.  The admin UI may
//   race with itself (a rule toggle arriving after the element was deleted),
//   so nothing here panics or errors on a missing element.  Each mutation
//   instead returns false, letting callers that care detect the no-op.
//
// Notes
//   •  DeleteElement does not renumber.  Call a reorder to close the gap.
//   •  ReorderElements keeps the order-value permutation contract used by the
//      drag-and-drop surface.  ReorderByID is the id-keyed alternative.
//   •  Rule keys outside the catalog subset for the element type are refused,
//      so stored rules always come from the catalog.
//
//------------------------------------------------------------------------------

package form

import (
	"sort"

	"github.com/google/uuid"
)

// Builder mutates schemas.  The zero value is not usable; see NewBuilder.
type Builder struct {
	Catalog *Catalog
	NewID   func() string
}

// NewBuilder returns a builder over c that mints UUID element ids.
func NewBuilder(c *Catalog) *Builder {
	return &Builder{Catalog: c, NewID: uuid.NewString}
}

// -----------------------------------------------------------------------------
// Element lifecycle
// -----------------------------------------------------------------------------

// AddElement appends a new element of type t with order = len(elements).
func (b *Builder) AddElement(s *Schema, t ElementType) (Element, error) {
	e, err := NewElement(t, b.NewID())
	if err != nil {
		return Element{}, err
	}
	e.Order = len(s.Elements)
	s.Elements = append(s.Elements, e)
	return e, nil
}

// DeleteElement removes the element with id.  Remaining orders are untouched.
func (b *Builder) DeleteElement(s *Schema, id string) bool {
	i := b.FindElementIndex(s, id)
	if i < 0 {
		return false
	}
	s.Elements = append(s.Elements[:i], s.Elements[i+1:]...)
	return true
}

// ReorderElements sorts elements by where their current order value appears
// in orders, then renumbers 0..n-1.  Elements whose order is absent from the
// list keep their relative position after the listed ones.
func (b *Builder) ReorderElements(s *Schema, orders []int) {
	pos := make(map[int]int, len(orders))
	for i, o := range orders {
		if _, dup := pos[o]; !dup {
			pos[o] = i
		}
	}
	rank := func(e Element) int {
		if p, ok := pos[e.Order]; ok {
			return p
		}
		return len(orders)
	}
	sort.SliceStable(s.Elements, func(i, j int) bool {
		return rank(s.Elements[i]) < rank(s.Elements[j])
	})
	renumber(s)
}

// ReorderByID places the listed ids first, in list order, followed by every
// other element in its current order.  It returns false if any id is unknown;
// known ids are still applied.
func (b *Builder) ReorderByID(s *Schema, ids []string) bool {
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, dup := pos[id]; !dup {
			pos[id] = i
		}
	}
	matched := 0
	for _, e := range s.Elements {
		if _, ok := pos[e.ID]; ok {
			matched++
		}
	}
	sort.SliceStable(s.Elements, func(i, j int) bool {
		pi, iok := pos[s.Elements[i].ID]
		pj, jok := pos[s.Elements[j].ID]
		switch {
		case iok && jok:
			return pi < pj
		case iok != jok:
			return iok
		default:
			return s.Elements[i].Order < s.Elements[j].Order
		}
	})
	renumber(s)
	return matched == len(pos)
}

func renumber(s *Schema) {
	for i := range s.Elements {
		s.Elements[i].Order = i
	}
}

// UpdateElementWidth sets styles[bp].width, creating the breakpoint with
// defaults first when missing.
func (b *Builder) UpdateElementWidth(s *Schema, id string, bp Breakpoint, width string) bool {
	e := b.FindElement(s, id)
	if e == nil || (bp != Desktop && bp != Tablet && bp != Mobile) {
		return false
	}
	if e.Styles == nil {
		e.Styles = map[Breakpoint]Style{}
	}
	st, ok := e.Styles[bp]
	if !ok {
		st = DefaultStyle()
	}
	st.Width = width
	e.Styles[bp] = st
	return true
}

// UpdateProperties replaces an element's properties after checking the
// per-type contract.  A missing element is reported as false with no error.
func (b *Builder) UpdateProperties(s *Schema, id string, p Properties) (bool, error) {
	e := b.FindElement(s, id)
	if e == nil {
		return false, nil
	}
	candidate := e.Clone()
	candidate.Properties = p
	if err := candidate.Validate(); err != nil {
		return false, err
	}
	e.Properties = candidate.Properties
	return true, nil
}

// -----------------------------------------------------------------------------
// Validation rules
// -----------------------------------------------------------------------------

// ToggleValidationRule removes key (with its value and message) when active,
// otherwise appends it.  Keys outside the catalog for the type are refused.
func (b *Builder) ToggleValidationRule(s *Schema, id, key string) bool {
	e := b.FindElement(s, id)
	if e == nil {
		return false
	}
	if _, ok := b.Catalog.Lookup(e.Type, key); !ok {
		return false
	}
	v := &e.Validation
	v.ensure()
	for i, r := range v.Rules {
		if r == key {
			v.Rules = append(v.Rules[:i], v.Rules[i+1:]...)
			delete(v.Values, key)
			delete(v.Messages, key)
			return true
		}
	}
	v.Rules = append(v.Rules, key)
	return true
}

// UpdateValidationRuleValue sets the parameter of an active, value-taking
// rule.  An empty value clears it.
func (b *Builder) UpdateValidationRuleValue(s *Schema, id, key, value string) bool {
	e := b.FindElement(s, id)
	if e == nil {
		return false
	}
	d, ok := b.Catalog.Lookup(e.Type, key)
	if !ok || !d.HasValue {
		return false
	}
	v := &e.Validation
	v.ensure()
	if !v.Has(key) {
		return false
	}
	if value == "" {
		delete(v.Values, key)
	} else {
		v.Values[key] = value
	}
	return true
}

// UpdateValidationMessage sets the custom message of an active rule.  An
// empty message restores the default.
func (b *Builder) UpdateValidationMessage(s *Schema, id, key, msg string) bool {
	e := b.FindElement(s, id)
	if e == nil {
		return false
	}
	v := &e.Validation
	v.ensure()
	if !v.Has(key) {
		return false
	}
	if msg == "" {
		delete(v.Messages, key)
	} else {
		v.Messages[key] = msg
	}
	return true
}

// UpdateValidationRules replaces the active rule list.  Unknown and duplicate
// keys are dropped, and values or messages of removed rules are pruned.
func (b *Builder) UpdateValidationRules(s *Schema, id string, rules []string) bool {
	e := b.FindElement(s, id)
	if e == nil {
		return false
	}
	v := &e.Validation
	v.ensure()

	kept := make([]string, 0, len(rules))
	seen := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		if _, dup := seen[r]; dup {
			continue
		}
		d, ok := b.Catalog.Lookup(e.Type, r)
		if !ok {
			continue
		}
		seen[r] = struct{}{}
		kept = append(kept, r)
		if !d.HasValue {
			delete(v.Values, r)
		}
	}
	for k := range v.Values {
		if _, ok := seen[k]; !ok {
			delete(v.Values, k)
		}
	}
	for k := range v.Messages {
		if _, ok := seen[k]; !ok {
			delete(v.Messages, k)
		}
	}
	v.Rules = kept
	return true
}

// -----------------------------------------------------------------------------
// Lookup
// -----------------------------------------------------------------------------

// FindElement returns a pointer into s.Elements, or nil.
func (b *Builder) FindElement(s *Schema, id string) *Element {
	if i := b.FindElementIndex(s, id); i >= 0 {
		return &s.Elements[i]
	}
	return nil
}

// FindElementIndex returns the slice index of id, or -1.
func (b *Builder) FindElementIndex(s *Schema, id string) int {
	for i := range s.Elements {
		if s.Elements[i].ID == id {
			return i
		}
	}
	return -1
}
