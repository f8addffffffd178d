// internal/component/registry.go
//
// Component registry (cycle-free).
//
// Each concrete component lives under components/<name> and calls
// component.Register() in an init() function.  cmd/web builds one Deps value
// at boot, hands it to every component’s Init(), then lets each component add
// its routes to the root router.

package component

import (
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/yanizio/formforge/internal/config"
	"github.com/yanizio/formforge/internal/form"
	"github.com/yanizio/formforge/internal/lang"
	"github.com/yanizio/formforge/internal/store"
)

// Deps exposes the shared engine to Components during Init.
type Deps struct {
	Config    *config.Config
	Repo      form.Repository
	Lister    store.Lister
	Catalog   *form.Catalog
	Editor    *form.Editor
	Processor *form.Processor
	Previewer *form.Previewer
	Lang      *lang.Bundle
}

// Initializer is optional.  If a Component implements it, cmd/web calls
// Init(deps) once before Routes().
type Initializer interface {
	Init(Deps) error
}

// Component contract.
//
// Routes() registers the component’s endpoints on the shared root router,
// using absolute paths, e.g:
//
//	func (c *Comp) Routes(r chi.Router) {
//		r.Get("/forms/{id}", c.getForm)
//		r.Route("/admin", func(api chi.Router) { ... })
//	}
//
// Two components must not claim the same pattern.
type Component interface {
	Name() string
	Routes(r chi.Router)
}

var (
	mu       sync.RWMutex
	registry = map[string]Component{}
)

// Register is invoked from component init() functions.  A later registration
// with the same name replaces the earlier one.
func Register(c Component) {
	mu.Lock()
	registry[c.Name()] = c
	mu.Unlock()
}

// All returns every registered component sorted by name, so mount order is
// stable across runs.
func All() []Component {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Component, 0, len(registry))
	for _, c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// InitAll runs Init on every registered Initializer and returns the first
// failure.
func InitAll(d Deps) error {
	for _, c := range All() {
		if in, ok := c.(Initializer); ok {
			if err := in.Init(d); err != nil {
				return err
			}
		}
	}
	return nil
}
