// internal/lang/lang.go
//
// YAML language files.
//
// Context
// -------
// One file per locale (lang/en.yaml, lang/fr.yaml, …).  Nested maps are
// flattened with dots, so
//
//	validation:
//	  required: "The :field field is required."
//
// is looked up as "validation.required".  Placeholders use the same
// ":name" syntax as the forms engine and are filled by form.Interpolate.
//
// A Bundle is read-only after Load and safe for concurrent use.
package lang

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/yanizio/formforge/internal/form"
)

// Bundle holds every loaded locale.
type Bundle struct {
	Fallback string
	locales  map[string]map[string]string
}

// Load reads every *.yaml / *.yml file in dir.  A missing dir yields an
// empty bundle.
func Load(dir, fallback string) (*Bundle, error) {
	b := &Bundle{Fallback: fallback, locales: map[string]map[string]string{}}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			zap.L().Warn("language directory missing", zap.String("dir", dir))
			return b, nil
		}
		return nil, err
	}
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		locale := strings.TrimSuffix(e.Name(), ext)
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if err := b.Add(locale, raw); err != nil {
			return nil, fmt.Errorf("language file %s: %w", e.Name(), err)
		}
	}
	zap.L().Info("languages loaded", zap.Int("locales", len(b.locales)), zap.String("fallback", fallback))
	return b, nil
}

// Add parses YAML for locale and merges it over any existing entries.
func (b *Bundle) Add(locale string, raw []byte) error {
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return err
	}
	m := b.locales[locale]
	if m == nil {
		m = map[string]string{}
		b.locales[locale] = m
	}
	flatten("", tree, m)
	return nil
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch t := v.(type) {
		case map[string]any:
			flatten(key, t, out)
		case nil:
		default:
			out[key] = fmt.Sprint(t)
		}
	}
}

// Has reports whether locale was loaded.
func (b *Bundle) Has(locale string) bool {
	_, ok := b.locales[locale]
	return ok
}

// Lookup returns the raw template for key in locale, then the fallback.
func (b *Bundle) Lookup(locale, key string) (string, bool) {
	if s, ok := b.locales[locale][key]; ok {
		return s, true
	}
	s, ok := b.locales[b.Fallback][key]
	return s, ok
}

// For returns a form.Translator bound to locale.
func (b *Bundle) For(locale string) form.Translator {
	return translator{b: b, locale: locale}
}

type translator struct {
	b      *Bundle
	locale string
}

// Translate returns key unchanged when no template exists.
func (t translator) Translate(key string, params map[string]string) string {
	s, ok := t.b.Lookup(t.locale, key)
	if !ok {
		return key
	}
	return form.Interpolate(s, params)
}
