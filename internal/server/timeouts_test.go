package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/yanizio/formforge/internal/config"
)

func TestNewAppliesDefaults(t *testing.T) {
	srv := New(config.HTTP{ListenAddr: "127.0.0.1:0", WriteTimeout: 5 * time.Second}, http.NotFoundHandler())
	if srv.ReadTimeout != DefaultReadTimeout || srv.IdleTimeout != DefaultIdleTimeout {
		t.Fatalf("defaults not applied: read=%v idle=%v", srv.ReadTimeout, srv.IdleTimeout)
	}
	if srv.WriteTimeout != 5*time.Second {
		t.Fatalf("WriteTimeout = %v, want 5s", srv.WriteTimeout)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := New(config.HTTP{ListenAddr: "127.0.0.1:0"}, http.NotFoundHandler())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Run(ctx, srv, time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
