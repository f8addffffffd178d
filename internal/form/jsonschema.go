// internal/form/jsonschema.go
//
// JSON Schema export of a published form, for API clients that post JSON.
// Only rules with a direct JSON Schema counterpart are mapped; the rule
// interpreter stays the source of truth at submission time.

package form

import (
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// JSONSchema describes the published fields of f as an object schema.
func JSONSchema(f *Form, locale string) *jsonschema.Schema {
	root := &jsonschema.Schema{
		Type:       "object",
		Title:      f.Name.Get(locale, "en"),
		Properties: map[string]*jsonschema.Schema{},
	}
	for _, e := range f.Schema.Fields() {
		name := FieldName(e)
		root.Properties[name] = elementSchema(e)
		if e.Validation.Has("required") || e.Validation.Has("accepted") {
			root.Required = append(root.Required, name)
		}
	}
	return root
}

func elementSchema(e Element) *jsonschema.Schema {
	s := &jsonschema.Schema{Title: e.Properties.Label, Description: e.Properties.HelpText}
	val := func(key string) (string, bool) {
		v, ok := e.Validation.Values[key]
		return v, ok && e.Validation.Has(key) && v != ""
	}

	switch e.Type {
	case TypeNumber:
		s.Type = "number"
		s.Minimum = cloneFloat(e.Properties.Min)
		s.Maximum = cloneFloat(e.Properties.Max)
		if v, ok := val("min_value"); ok {
			s.Minimum = parseFloatPtr(v)
		}
		if v, ok := val("max_value"); ok {
			s.Maximum = parseFloatPtr(v)
		}

	case TypeSelect, TypeRadio:
		s.Type = "string"
		s.Enum = optionEnum(e.Properties.Options)

	case TypeCheckbox:
		s.Type = "array"
		s.Items = &jsonschema.Schema{Type: "string", Enum: optionEnum(e.Properties.Options)}
		if e.Validation.Has("required") || e.Validation.Has("accepted") {
			one := 1
			s.MinItems = &one
		}

	case TypeFile:
		s.Type = "string"
		if a := strings.TrimSpace(e.Properties.Accept); a != "" && !strings.Contains(a, ",") && strings.Contains(a, "/") && !strings.HasSuffix(a, "*") {
			s.ContentMediaType = a
		}

	default:
		s.Type = "string"
		if v, ok := val("min"); ok {
			s.MinLength = parseIntPtr(v)
		}
		if v, ok := val("max"); ok {
			s.MaxLength = parseIntPtr(v)
		}
		if v, ok := val("regex"); ok {
			s.Pattern = stripDelimiters(v)
		}
		switch {
		case e.Type == TypeEmail || e.Validation.Has("email"):
			s.Format = "email"
		case e.Type == TypeDate:
			s.Format = "date"
		case e.Validation.Has("url"):
			s.Format = "uri"
		}
	}
	return s
}

func optionEnum(opts []Option) []any {
	if len(opts) == 0 {
		return nil
	}
	out := make([]any, len(opts))
	for i, o := range opts {
		out[i] = o.Value
	}
	return out
}

func parseFloatPtr(s string) *float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func parseIntPtr(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
