// internal/form/catalog.go
//
// Forms engine – validation rule catalog.
//
// Context
//   The catalog is the static table of rules an admin may attach to an
//   element.  Each entry maps a UI-facing key (“min_value”) to the expression
//   the rule interpreter understands (“min”), records whether the rule takes a
//   parameter, and carries a category used to group checkboxes in the
//   builder.  Which keys are legal depends on the element type.
//
// Workflow
//   •  DefaultCatalog returns the compiled-in table.  Tests and hosts may build
//      their own with NewCatalog; nothing here is global mutable state.
//   •  BuildRuleExpressions turns an element’s stored rule keys into
//      interpreter expressions (“max:255”), skipping keys that are stale for
//      the element’s current type.
//   •  BuildMessages resolves one message per active rule: custom text first,
//      then the Translator, then the built-in English template.
//
//------------------------------------------------------------------------------

package form

import (
	"fmt"
	"sort"
	"strings"
)

// RuleDefinition is one catalog entry.  It is not user-editable.
type RuleDefinition struct {
	Key        string `json:"key"`
	Expression string `json:"expression"`
	HasValue   bool   `json:"hasValue"`
	Category   string `json:"category"`
	Label      string `json:"label"`
	Hint       string `json:"hint,omitempty"` // placeholder for the value input
}

// RuleCategory groups rules for display.
type RuleCategory struct {
	Name  string           `json:"name"`
	Rules []RuleDefinition `json:"rules"`
}

// Translator resolves localized message templates.  An empty return means
// “no translation”.
type Translator interface {
	Translate(key string, params map[string]string) string
}

// Catalog is an immutable rule table keyed by element type.
type Catalog struct {
	defs   map[string]RuleDefinition
	byType map[ElementType][]string
}

// NewCatalog builds a catalog from definitions and a per-type key list.  Every
// key listed for a type must have a definition.
func NewCatalog(defs []RuleDefinition, byType map[ElementType][]string) (*Catalog, error) {
	c := &Catalog{
		defs:   make(map[string]RuleDefinition, len(defs)),
		byType: make(map[ElementType][]string, len(byType)),
	}
	for _, d := range defs {
		if d.Key == "" || d.Expression == "" {
			return nil, fmt.Errorf("catalog: rule definition missing key or expression")
		}
		if _, dup := c.defs[d.Key]; dup {
			return nil, fmt.Errorf("catalog: duplicate rule %q", d.Key)
		}
		c.defs[d.Key] = d
	}
	for t, keys := range byType {
		if !t.Valid() {
			return nil, &SchemaError{Type: string(t), Reason: "catalog lists unknown element type", Err: ErrUnknownElementType}
		}
		for _, k := range keys {
			if _, ok := c.defs[k]; !ok {
				return nil, fmt.Errorf("catalog: type %s lists undefined rule %q", t, k)
			}
		}
		c.byType[t] = append([]string(nil), keys...)
	}
	return c, nil
}

// DefaultCatalog returns the compiled-in rule table.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultRuleDefs, defaultRulesByType)
	if err != nil {
		panic(err) // compiled-in table is broken
	}
	return c
}

var defaultRuleDefs = []RuleDefinition{
	{Key: "required", Expression: "required", Category: "Basic", Label: "Required"},
	{Key: "accepted", Expression: "accepted", Category: "Basic", Label: "Must be accepted"},

	{Key: "min", Expression: "min", HasValue: true, Category: "Length", Label: "Minimum length", Hint: "e.g. 3"},
	{Key: "max", Expression: "max", HasValue: true, Category: "Length", Label: "Maximum length", Hint: "e.g. 255"},

	{Key: "alpha", Expression: "alpha", Category: "Format", Label: "Letters only"},
	{Key: "alpha_num", Expression: "alpha_num", Category: "Format", Label: "Letters and numbers"},
	{Key: "alpha_dash", Expression: "alpha_dash", Category: "Format", Label: "Letters, numbers, dashes, and underscores"},
	{Key: "regex", Expression: "regex", HasValue: true, Category: "Format", Label: "Pattern", Hint: "e.g. /^[A-Z]+$/"},
	{Key: "url", Expression: "url", Category: "Format", Label: "Valid URL"},
	{Key: "email", Expression: "email", Category: "Format", Label: "Valid e-mail address"},
	{Key: "numeric", Expression: "numeric", Category: "Format", Label: "Numeric"},
	{Key: "date", Expression: "date", Category: "Format", Label: "Valid date"},

	{Key: "min_value", Expression: "min", HasValue: true, Category: "Range", Label: "Minimum value", Hint: "e.g. 0"},
	{Key: "max_value", Expression: "max", HasValue: true, Category: "Range", Label: "Maximum value", Hint: "e.g. 100"},
	{Key: "after", Expression: "after", HasValue: true, Category: "Range", Label: "After date", Hint: "YYYY-MM-DD or today"},
	{Key: "before", Expression: "before", HasValue: true, Category: "Range", Label: "Before date", Hint: "YYYY-MM-DD or today"},

	{Key: "file", Expression: "file", Category: "File", Label: "Must be a file"},
	{Key: "image", Expression: "image", Category: "File", Label: "Must be an image"},
	{Key: "mimes", Expression: "mimes", HasValue: true, Category: "File", Label: "Allowed extensions", Hint: "e.g. jpg,png,pdf"},
	{Key: "max_file_size", Expression: "max", HasValue: true, Category: "File", Label: "Maximum size (KB)", Hint: "e.g. 2048"},
}

var defaultRulesByType = map[ElementType][]string{
	TypeText:         {"required", "min", "max", "alpha", "alpha_num", "alpha_dash", "regex", "url"},
	TypeTextarea:     {"required", "min", "max"},
	TypeEmail:        {"required", "email", "max"},
	TypeNumber:       {"required", "numeric", "min_value", "max_value"},
	TypeFile:         {"required", "file", "image", "mimes", "max_file_size"},
	TypeSelect:       {"required"},
	TypeRadio:        {"required"},
	TypeCheckbox:     {"required", "accepted"},
	TypeDate:         {"required", "date", "after", "before"},
	TypePassword:     {"required", "min", "max", "regex"},
	TypeSubmitButton: {},
}

// RulesFor returns the ordered rule definitions legal for t.
func (c *Catalog) RulesFor(t ElementType) []RuleDefinition {
	keys := c.byType[t]
	out := make([]RuleDefinition, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.defs[k])
	}
	return out
}

// Lookup finds key in the subset legal for t.
func (c *Catalog) Lookup(t ElementType, key string) (RuleDefinition, bool) {
	for _, k := range c.byType[t] {
		if k == key {
			return c.defs[k], true
		}
	}
	return RuleDefinition{}, false
}

// CategoriesFor groups RulesFor(t) by category, preserving first-seen order.
func (c *Catalog) CategoriesFor(t ElementType) []RuleCategory {
	var out []RuleCategory
	idx := map[string]int{}
	for _, d := range c.RulesFor(t) {
		i, ok := idx[d.Category]
		if !ok {
			i = len(out)
			idx[d.Category] = i
			out = append(out, RuleCategory{Name: d.Category})
		}
		out[i].Rules = append(out[i].Rules, d)
	}
	return out
}

// BuildRuleExpressions returns interpreter expressions for e's rules in
// stored order.  Keys not legal for e.Type are skipped.
func (c *Catalog) BuildRuleExpressions(e Element) []string {
	out := make([]string, 0, len(e.Validation.Rules))
	for _, key := range e.Validation.Rules {
		d, ok := c.Lookup(e.Type, key)
		if !ok {
			continue
		}
		out = append(out, expressionFor(d, e.Validation.Values[key]))
	}
	return out
}

func expressionFor(d RuleDefinition, value string) string {
	if d.HasValue && value != "" {
		return d.Expression + ":" + value
	}
	return d.Expression
}

// BuildMessages resolves a message for every active rule of e, keyed by rule
// key.  tr may be nil.
func (c *Catalog) BuildMessages(e Element, tr Translator) map[string]string {
	out := make(map[string]string, len(e.Validation.Rules))
	label := e.Properties.Label
	if strings.TrimSpace(label) == "" {
		label = FieldName(e)
	}
	for _, key := range e.Validation.Rules {
		d, ok := c.Lookup(e.Type, key)
		if !ok {
			continue
		}
		if m := strings.TrimSpace(e.Validation.Messages[key]); m != "" {
			out[key] = m
			continue
		}
		params := map[string]string{"field": label}
		if d.HasValue {
			params["value"] = e.Validation.Values[key]
		}
		out[key] = defaultMessage(key, params, tr)
	}
	return out
}

// FieldRules bundles everything the interpreter needs for one field.
// Messages is keyed by expression name (“max”), not by catalog key.
type FieldRules struct {
	Field    string
	Type     ElementType
	Label    string
	Rules    []string
	Messages map[string]string
}

// CompileElement combines BuildRuleExpressions and BuildMessages for e.
func (c *Catalog) CompileElement(e Element, tr Translator) FieldRules {
	fr := FieldRules{
		Field:    FieldName(e),
		Type:     e.Type,
		Label:    e.Properties.Label,
		Rules:    c.BuildRuleExpressions(e),
		Messages: map[string]string{},
	}
	for key, msg := range c.BuildMessages(e, tr) {
		d, _ := c.Lookup(e.Type, key)
		fr.Messages[d.Expression] = msg
	}
	return fr
}

// -----------------------------------------------------------------------------
// Message templates
// -----------------------------------------------------------------------------

var englishMessages = map[string]string{
	"required":      "The :field field is required.",
	"accepted":      "The :field field must be accepted.",
	"min":           "The :field field must be at least :value characters.",
	"max":           "The :field field must not be greater than :value characters.",
	"alpha":         "The :field field must only contain letters.",
	"alpha_num":     "The :field field must only contain letters and numbers.",
	"alpha_dash":    "The :field field must only contain letters, numbers, dashes, and underscores.",
	"regex":         "The :field field format is invalid.",
	"url":           "The :field field must be a valid URL.",
	"email":         "The :field field must be a valid email address.",
	"numeric":       "The :field field must be a number.",
	"date":          "The :field field must be a valid date.",
	"min_value":     "The :field field must be at least :value.",
	"max_value":     "The :field field must not be greater than :value.",
	"after":         "The :field field must be a date after :value.",
	"before":        "The :field field must be a date before :value.",
	"file":          "The :field field must be a file.",
	"image":         "The :field field must be an image.",
	"mimes":         "The :field field must be a file of type: :value.",
	"max_file_size": "The :field field must not be greater than :value kilobytes.",
}

const genericMessage = "The :field field is invalid."

func defaultMessage(key string, params map[string]string, tr Translator) string {
	if tr != nil {
		if s := tr.Translate("validation."+key, params); s != "" && s != "validation."+key {
			return s
		}
	}
	tpl, ok := englishMessages[key]
	if !ok {
		tpl = genericMessage
	}
	return Interpolate(tpl, params)
}

// Interpolate replaces “:name” placeholders with params.  Longer names are
// replaced first so “:value” never clobbers “:values”.
func Interpolate(tpl string, params map[string]string) string {
	if len(params) == 0 {
		return tpl
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, ":"+k, params[k])
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}
