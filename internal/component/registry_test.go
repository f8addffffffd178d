package component

import (
	"errors"
	"testing"

	"github.com/go-chi/chi/v5"
)

type stubComp struct {
	name string
	err  error
	got  *Deps
}

func (s *stubComp) Name() string       { return s.name }
func (s *stubComp) Routes(chi.Router) {}
func (s *stubComp) Init(d Deps) error {
	s.got = &d
	return s.err
}

type plainComp struct{}

func (plainComp) Name() string       { return "aaa-plain" }
func (plainComp) Routes(chi.Router) {}

func resetRegistry(t *testing.T) {
	t.Helper()
	mu.Lock()
	saved := registry
	registry = map[string]Component{}
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		registry = saved
		mu.Unlock()
	})
}

func TestAllSortedByName(t *testing.T) {
	resetRegistry(t)
	Register(&stubComp{name: "zeta"})
	Register(plainComp{})
	Register(&stubComp{name: "beta"})

	var names []string
	for _, c := range All() {
		names = append(names, c.Name())
	}
	if len(names) != 3 || names[0] != "aaa-plain" || names[1] != "beta" || names[2] != "zeta" {
		t.Fatalf("All() order = %v", names)
	}
}

func TestInitAll(t *testing.T) {
	resetRegistry(t)
	ok := &stubComp{name: "ok"}
	Register(ok)
	Register(plainComp{})

	if err := InitAll(Deps{}); err != nil {
		t.Fatalf("InitAll: %v", err)
	}
	if ok.got == nil {
		t.Fatal("Init not called")
	}

	boom := errors.New("boom")
	Register(&stubComp{name: "bad", err: boom})
	if err := InitAll(Deps{}); !errors.Is(err, boom) {
		t.Fatalf("InitAll err = %v, want boom", err)
	}
}
