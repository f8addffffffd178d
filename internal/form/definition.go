// internal/form/definition.go
//
// Forms engine – YAML definition loader.
//
// Context
//   Forms are normally assembled in the builder, but a host can ship seed
//   forms as YAML files (one form per file) and import them at start-up with
//   `cmd/web -seed`.  The loader turns each file into a published Form and
//   validates every element on construction, so a bad seed fails loudly
//   instead of producing a half-working form.
//
// Workflow
//   •  Definition mirrors the YAML layout: id, active, name, settings, and an
//      elements list using the same shape as the stored JSON.
//   •  LoadDefinition parses one file and checks structural rules.
//   •  LoadDefinitions walks one or more directories, ordered by precedence.
//      The first file that declares an id wins; later duplicates are skipped.
//
//------------------------------------------------------------------------------

package form

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------
// Data structures
// -----------------------------------------------------------------------------

// Definition is one seed form as written in YAML.
type Definition struct {
	ID       string       `yaml:"id"`       // Form identifier.  Required.
	Active   *bool        `yaml:"active"`   // Defaults to true.
	Name     Translations `yaml:"name"`     // Locale → display name.  Required.
	Settings *Settings    `yaml:"settings"` // Defaults to DefaultSettings().
	Elements []Element    `yaml:"elements"` // At least one.
}

// -----------------------------------------------------------------------------
// Loader API
// -----------------------------------------------------------------------------

// LoadDefinition parses one YAML file into a published Form.
func LoadDefinition(path string, c *Catalog) (*Form, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read form file %s: %w", path, err)
	}

	var def Definition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("parse YAML %s: %w", path, err)
	}

	return def.Build(c, time.Now().UTC(), path)
}

// LoadDefinitions walks dirs for “*.yaml” and “*.yml” files.  Missing
// directories are skipped; parse errors fail fast.
func LoadDefinitions(dirs []string, c *Catalog) ([]*Form, error) {
	if len(dirs) == 0 {
		return nil, errors.New("LoadDefinitions: no directories provided")
	}

	var forms []*Form
	seen := make(map[string]string)

	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || !(strings.HasSuffix(d.Name(), ".yaml") || strings.HasSuffix(d.Name(), ".yml")) {
				return nil
			}

			f, err := LoadDefinition(path, c)
			if err != nil {
				return err
			}
			if prev, dup := seen[f.ID]; dup {
				zap.L().Warn("form definition shadowed", zap.String("form", f.ID), zap.String("file", path), zap.String("kept", prev))
				return nil
			}
			seen[f.ID] = path
			forms = append(forms, f)
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return forms, nil
}

// Build validates d and returns the published Form it describes.  src names
// the origin in error messages.
func (d *Definition) Build(c *Catalog, now time.Time, src string) (*Form, error) {
	if d.ID == "" {
		return nil, fmt.Errorf("form definition %s: missing required 'id'", src)
	}
	if len(d.Name) == 0 {
		return nil, fmt.Errorf("form definition %s: missing required 'name'", src)
	}
	if len(d.Elements) == 0 {
		return nil, fmt.Errorf("form definition %s: must have at least one element", src)
	}

	elems := make([]Element, len(d.Elements))
	for i, e := range d.Elements {
		normalizeElement(&e)
		e.Order = i
		elems[i] = e
	}
	if err := (Schema{Elements: elems}).Validate(c); err != nil {
		return nil, fmt.Errorf("form definition %s: %w", src, err)
	}

	names := make(map[string]string, len(elems))
	for _, e := range elems {
		if e.Type != TypeSubmitButton {
			n := FieldName(e)
			if other, clash := names[n]; clash {
				zap.L().Warn("form definition field name collision",
					zap.String("form", d.ID), zap.String("field", n),
					zap.String("element", e.ID), zap.String("other", other))
			}
			names[n] = e.ID
		}
	}

	f := NewForm(d.ID, d.Name, now)
	f.Schema.Elements = elems
	if d.Settings != nil {
		f.Schema.Settings = d.Settings.clone()
	}
	if d.Active != nil {
		f.Active = *d.Active
	}
	return f, nil
}

// -----------------------------------------------------------------------------
// Validation helpers
// -----------------------------------------------------------------------------

// normalizeElement fills the maps YAML leaves nil.
func normalizeElement(e *Element) {
	e.Validation.ensure()
	if e.Styles == nil {
		e.Styles = make(map[Breakpoint]Style, len(Breakpoints))
	}
	for _, bp := range Breakpoints {
		if _, ok := e.Styles[bp]; !ok {
			e.Styles[bp] = DefaultStyle()
		}
	}
}

// checkRules confirms every rule is legal for the type and that values and
// messages only reference active rules.
func checkRules(c *Catalog, e *Element) error {
	for _, key := range e.Validation.Rules {
		if _, ok := c.Lookup(e.Type, key); !ok {
			return &SchemaError{ElementID: e.ID, Type: string(e.Type), Reason: fmt.Sprintf("rule %q not allowed", key)}
		}
	}
	for key := range e.Validation.Values {
		d, ok := c.Lookup(e.Type, key)
		if !ok || !d.HasValue || !e.Validation.Has(key) {
			return &SchemaError{ElementID: e.ID, Type: string(e.Type), Reason: fmt.Sprintf("value for inactive or value-less rule %q", key)}
		}
	}
	for key := range e.Validation.Messages {
		if !e.Validation.Has(key) {
			return &SchemaError{ElementID: e.ID, Type: string(e.Type), Reason: fmt.Sprintf("message for inactive rule %q", key)}
		}
	}
	if v, ok := e.Validation.Values["regex"]; ok {
		if _, err := compilePattern(v); err != nil {
			return &SchemaError{ElementID: e.ID, Type: string(e.Type), Reason: "invalid regex: " + err.Error()}
		}
	}
	return nil
}
