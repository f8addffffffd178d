// internal/form/preview.go
//
// Forms engine – preview descriptors.
//
// Context
//   The host renders forms itself; this file only turns a schema plus
//   optional fill data into display-ready descriptors, one per element, in
//   order.  Each descriptor carries the field name, label, options, a value,
//   and the HTML5 hint attributes implied by the element’s rules.
//
// Notes
//   •  Renderers are looked up by element type.  A type without a renderer,
//      or a renderer that panics, yields a placeholder descriptor with
//      Supported=false.  One bad element never breaks the whole preview.
//   •  Password fields are never prefilled.
//
//------------------------------------------------------------------------------

package form

import (
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Descriptor is one renderable element.
type Descriptor struct {
	ID          string               `json:"id"`
	Type        ElementType          `json:"type"`
	Name        string               `json:"name"`
	Label       string               `json:"label"`
	Placeholder string               `json:"placeholder,omitempty"`
	HelpText    string               `json:"helpText,omitempty"`
	Required    bool                 `json:"required"`
	Options     []Option             `json:"options,omitempty"`
	Attributes  map[string]string    `json:"attributes,omitempty"`
	Value       any                  `json:"value,omitempty"`
	Styles      map[Breakpoint]Style `json:"styles,omitempty"`
	Supported   bool                 `json:"supported"`
	Notice      string               `json:"notice,omitempty"`
}

// Renderer fills d for element e.  d arrives with the common fields set.
type Renderer func(e Element, d *Descriptor)

// Previewer maps element types to renderers.
type Previewer struct {
	renderers map[ElementType]Renderer
}

// NewPreviewer returns a previewer covering every built-in type.
func NewPreviewer() *Previewer {
	return &Previewer{renderers: map[ElementType]Renderer{
		TypeText:         renderInput,
		TypeEmail:        renderInput,
		TypePassword:     renderPassword,
		TypeNumber:       renderNumber,
		TypeDate:         renderInput,
		TypeTextarea:     renderTextarea,
		TypeSelect:       renderChoice,
		TypeRadio:        renderChoice,
		TypeCheckbox:     renderChoice,
		TypeFile:         renderFile,
		TypeSubmitButton: renderSubmit,
	}}
}

// Register installs or replaces the renderer for t.  A nil r removes it.
func (p *Previewer) Register(t ElementType, r Renderer) {
	if r == nil {
		delete(p.renderers, t)
		return
	}
	p.renderers[t] = r
}

// Preview returns one descriptor per element, sorted by order.
func (p *Previewer) Preview(s Schema, fill map[string]any) []Descriptor {
	elems := cloneElements(s.Elements)
	sort.SliceStable(elems, func(i, j int) bool { return elems[i].Order < elems[j].Order })

	out := make([]Descriptor, 0, len(elems))
	for _, e := range elems {
		out = append(out, p.describe(e, fill))
	}
	return out
}

func (p *Previewer) describe(e Element, fill map[string]any) (d Descriptor) {
	name := FieldName(e)
	d = Descriptor{
		ID:          e.ID,
		Type:        e.Type,
		Name:        name,
		Label:       e.Properties.Label,
		Placeholder: e.Properties.Placeholder,
		HelpText:    e.Properties.HelpText,
		Required:    e.Validation.Has("required"),
		Attributes:  map[string]string{},
		Styles:      e.Styles,
		Supported:   true,
	}
	if v, ok := fill[name]; ok {
		d.Value = v
	}

	r, ok := p.renderers[e.Type]
	if !ok {
		return unsupported(e, "No preview available for this element type.")
	}
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Warn("preview renderer panic", zap.String("element", e.ID), zap.String("type", string(e.Type)), zap.Any("panic", rec))
			d = unsupported(e, "This element could not be displayed.")
		}
	}()
	r(e, &d)
	return d
}

func unsupported(e Element, notice string) Descriptor {
	return Descriptor{
		ID:        e.ID,
		Type:      e.Type,
		Name:      FieldName(e),
		Label:     e.Properties.Label,
		Supported: false,
		Notice:    notice,
	}
}

// -----------------------------------------------------------------------------
// Built-in renderers
// -----------------------------------------------------------------------------

func renderInput(e Element, d *Descriptor) {
	d.Attributes["type"] = string(e.Type)
	lengthAttrs(e, d)
	if p, ok := e.Validation.Values["regex"]; ok && e.Validation.Has("regex") {
		d.Attributes["pattern"] = stripDelimiters(p)
	}
}

func renderPassword(e Element, d *Descriptor) {
	renderInput(e, d)
	d.Value = nil
}

func renderTextarea(e Element, d *Descriptor) {
	lengthAttrs(e, d)
	if e.Properties.Rows > 0 {
		d.Attributes["rows"] = strconv.Itoa(e.Properties.Rows)
	}
}

func renderNumber(e Element, d *Descriptor) {
	d.Attributes["type"] = "number"
	set := func(attr string, f *float64, ruleKey string) {
		if f != nil {
			d.Attributes[attr] = strconv.FormatFloat(*f, 'f', -1, 64)
		}
		if v, ok := e.Validation.Values[ruleKey]; ok && e.Validation.Has(ruleKey) {
			d.Attributes[attr] = v
		}
	}
	set("min", e.Properties.Min, "min_value")
	set("max", e.Properties.Max, "max_value")
	if e.Properties.Step != nil {
		d.Attributes["step"] = strconv.FormatFloat(*e.Properties.Step, 'f', -1, 64)
	}
}

func renderChoice(e Element, d *Descriptor) {
	d.Options = append([]Option(nil), e.Properties.Options...)
	if e.Type == TypeCheckbox && len(d.Options) > 1 {
		d.Attributes["multiple"] = "true"
	}
}

func renderFile(e Element, d *Descriptor) {
	d.Attributes["type"] = "file"
	if e.Properties.Accept != "" {
		d.Attributes["accept"] = e.Properties.Accept
	}
	if e.Properties.MaxSize != "" {
		d.Attributes["data-max-size"] = e.Properties.MaxSize
	}
	d.Value = nil
}

func renderSubmit(e Element, d *Descriptor) {
	d.Name = ""
	d.Required = false
	d.Label = e.Properties.ButtonText
	if d.Label == "" {
		d.Label = e.Properties.Label
	}
	d.Value = nil
}

func lengthAttrs(e Element, d *Descriptor) {
	for _, k := range []string{"min", "max"} {
		if v, ok := e.Validation.Values[k]; ok && e.Validation.Has(k) {
			d.Attributes[k+"length"] = v
		}
	}
}

func stripDelimiters(p string) string {
	if len(p) >= 2 && p[0] == '/' {
		if end := strings.LastIndexByte(p, '/'); end > 0 {
			return p[1:end]
		}
	}
	return p
}
