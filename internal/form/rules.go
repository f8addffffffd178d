// internal/form/rules.go
//
// Forms engine – rule interpreter.
//
// Context
//   The catalog produces expressions such as “required”, “max:255”, or
//   “mimes:jpg,png”.  Checker evaluates them against submitted values.  Format
//   primitives (e-mail, URL, alphabetic, numeric, date) are delegated to
//   go-playground/validator; everything that needs schema context (sizes,
//   uploads, relative dates) is implemented here.
//
// Semantics
//   •  Implicit rules (required, accepted) always run.  Every other rule is
//      skipped when the value is empty, so optional fields stay optional.
//   •  min/max measure kilobytes for uploads, the number itself when the field
//      is numeric, element count for lists, and runes for strings.
//   •  All failing rules of a field are reported, in rule order.
//
//------------------------------------------------------------------------------

package form

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
)

const dateLayout = "2006-01-02"

// Checker evaluates compiled field rules.  It is safe for concurrent use.
type Checker struct {
	validate *validator.Validate
	Now      func() time.Time
}

// NewChecker returns a checker with the alpha_dash primitive registered.
func NewChecker() *Checker {
	v := validator.New()
	_ = v.RegisterValidation("alpha_dash", func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
				return false
			}
		}
		return true
	})
	return &Checker{validate: v, Now: time.Now}
}

// Check validates data against every field.  It returns nil when all pass.
// An error is returned only for expressions the interpreter does not know.
func (c *Checker) Check(data map[string]any, fields []FieldRules) (ValidationErrors, error) {
	errs := ValidationErrors{}
	for _, fr := range fields {
		value := data[fr.Field]
		numeric := fr.Type == TypeNumber || hasRule(fr.Rules, "numeric") || hasRule(fr.Rules, "integer")
		empty := isEmpty(value)

		for _, expr := range fr.Rules {
			name, param, _ := strings.Cut(expr, ":")
			if empty && name != "required" && name != "accepted" {
				continue
			}
			ok, err := c.eval(name, param, value, numeric)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", fr.Field, err)
			}
			if !ok {
				errs.Add(fr.Field, messageFor(fr, name, param))
			}
		}
	}
	if len(errs) == 0 {
		return nil, nil
	}
	return errs, nil
}

func messageFor(fr FieldRules, name, param string) string {
	if m := fr.Messages[name]; m != "" {
		return m
	}
	label := fr.Label
	if label == "" {
		label = fr.Field
	}
	return Interpolate(genericMessage, map[string]string{"field": label, "value": param})
}

func (c *Checker) eval(name, param string, value any, numeric bool) (bool, error) {
	switch name {
	case "required":
		return !isEmpty(value), nil
	case "accepted":
		return isAccepted(value), nil

	case "min", "max":
		if param == "" {
			return true, nil
		}
		limit, err := strconv.ParseFloat(param, 64)
		if err != nil {
			return false, nil
		}
		n, ok := sizeOf(value, numeric)
		if !ok {
			return false, nil
		}
		if name == "min" {
			return n >= limit, nil
		}
		return n <= limit, nil

	case "alpha":
		return c.is(value, "alphaunicode"), nil
	case "alpha_num":
		return c.is(value, "alphanumunicode"), nil
	case "alpha_dash":
		return c.is(value, "alpha_dash"), nil
	case "email":
		return c.is(value, "email"), nil
	case "url":
		return c.is(value, "url"), nil
	case "numeric":
		if _, ok := number(value); ok {
			return true, nil
		}
		return c.is(value, "numeric"), nil
	case "integer":
		f, ok := number(value)
		return ok && f == float64(int64(f)), nil
	case "date":
		return c.is(value, "datetime="+dateLayout), nil
	case "regex":
		return matchRegex(param, value), nil
	case "after", "before":
		return c.compareDate(name, param, value), nil
	case "in":
		s, ok := asString(value)
		if !ok {
			return false, nil
		}
		for _, opt := range strings.Split(param, ",") {
			if s == opt {
				return true, nil
			}
		}
		return false, nil

	case "file":
		_, ok := value.(*UploadedFile)
		return ok, nil
	case "image":
		u, ok := value.(*UploadedFile)
		if !ok {
			return false, nil
		}
		mt, err := u.MIME()
		return err == nil && imageTypes[mt], nil
	case "mimes":
		u, ok := value.(*UploadedFile)
		if !ok {
			return false, nil
		}
		return matchMimes(param, u), nil
	}
	return false, fmt.Errorf("unknown rule %q", name)
}

// is runs a validator tag against the string form of value.
func (c *Checker) is(value any, tag string) bool {
	s, ok := asString(value)
	if !ok {
		return false
	}
	return c.validate.Var(s, tag) == nil
}

func (c *Checker) compareDate(name, param string, value any) bool {
	s, ok := asString(value)
	if !ok {
		return false
	}
	v, err := parseDate(s)
	if err != nil {
		return false
	}
	today := c.Now().UTC().Truncate(24 * time.Hour)
	var ref time.Time
	switch strings.ToLower(strings.TrimSpace(param)) {
	case "today", "now":
		ref = today
	case "tomorrow":
		ref = today.AddDate(0, 0, 1)
	case "yesterday":
		ref = today.AddDate(0, 0, -1)
	default:
		if ref, err = parseDate(param); err != nil {
			return false
		}
	}
	if name == "after" {
		return v.After(ref)
	}
	return v.Before(ref)
}

// -----------------------------------------------------------------------------
// Value helpers
// -----------------------------------------------------------------------------

var imageTypes = map[string]bool{
	"image/jpeg":    true,
	"image/png":     true,
	"image/gif":     true,
	"image/bmp":     true,
	"image/svg+xml": true,
	"image/webp":    true,
}

func hasRule(rules []string, name string) bool {
	for _, r := range rules {
		if n, _, _ := strings.Cut(r, ":"); n == name {
			return true
		}
	}
	return false
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case *UploadedFile:
		return t == nil
	}
	return false
}

func isAccepted(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "yes", "on", "1", "true":
			return true
		}
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	default:
		if f, ok := number(v); ok {
			return f == 1
		}
	}
	return false
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool, *UploadedFile, []any, []string, map[string]any, nil:
		return "", false
	}
	return fmt.Sprint(v), true
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}

func sizeOf(v any, numeric bool) (float64, bool) {
	if u, ok := v.(*UploadedFile); ok {
		n, err := u.measuredSize()
		if err != nil {
			return 0, false
		}
		return float64(n) / 1024, true
	}
	if f, ok := number(v); ok {
		return f, true
	}
	switch t := v.(type) {
	case []any:
		return float64(len(t)), true
	case []string:
		return float64(len(t)), true
	case string:
		if numeric {
			f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			return f, err == nil
		}
		return float64(utf8.RuneCountInString(t)), true
	}
	return 0, false
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// compilePattern accepts bare patterns and “/pattern/flags”.  Only the i flag
// is honoured.
func compilePattern(p string) (*regexp.Regexp, error) {
	if len(p) >= 2 && p[0] == '/' {
		if end := strings.LastIndexByte(p, '/'); end > 0 {
			flags := p[end+1:]
			p = p[1:end]
			if strings.Contains(flags, "i") {
				p = "(?i)" + p
			}
		}
	}
	return regexp.Compile(p)
}

func matchRegex(pattern string, value any) bool {
	s, ok := asString(value)
	if !ok || pattern == "" {
		return false
	}
	re, err := compilePattern(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

func matchMimes(param string, u *UploadedFile) bool {
	exts := map[string]bool{}
	for _, e := range strings.Split(param, ",") {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e == "" {
			continue
		}
		exts[e] = true
		if e == "jpg" {
			exts["jpeg"] = true
		}
		if e == "jpeg" {
			exts["jpg"] = true
		}
	}
	mt, err := u.MIME()
	if err != nil {
		return false
	}
	if m := mimetype.Lookup(mt); m != nil && exts[strings.TrimPrefix(m.Extension(), ".")] {
		return true
	}
	return exts[strings.TrimPrefix(u.Ext(), ".")] && mt != "" && mt != "application/octet-stream"
}
