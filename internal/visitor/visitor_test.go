package visitor

import (
	"context"
	"testing"
	"time"
)

func TestWithIDAndIDFromContext(t *testing.T) {
	ctx := WithID(context.Background(), "v-123")
	got, ok := IDFromContext(ctx)
	if !ok || got != "v-123" {
		t.Fatalf("expected v-123, got %q (%v)", got, ok)
	}
}

func TestIDFromContext_EmptyOrMissing(t *testing.T) {
	if _, ok := IDFromContext(context.Background()); ok {
		t.Fatalf("expected missing id to return false")
	}
	if _, ok := IDFromContext(context.WithValue(context.Background(), idKey, 42)); ok {
		t.Fatalf("expected non-string id to return false")
	}
	if _, ok := IDFromContext(WithID(context.Background(), "")); ok {
		t.Fatalf("expected empty id to return false")
	}
}

func TestRegistryCreatesOncePerVisitor(t *testing.T) {
	created := 0
	r := NewRegistry(time.Minute, func(id string) *string {
		created++
		v := id
		return &v
	}, nil)

	a := r.Get("a")
	if r.Get("a") != a {
		t.Fatalf("expected the same value for the same visitor")
	}
	if r.Get("b") == a {
		t.Fatalf("expected visitors to be isolated")
	}
	if created != 2 || r.Len() != 2 {
		t.Fatalf("expected 2 entries, created=%d len=%d", created, r.Len())
	}
}

func TestRegistrySweepEvictsIdle(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	var released []string
	r := NewRegistry(30*time.Minute, func(id string) string { return id }, func(v string) {
		released = append(released, v)
	})
	r.now = func() time.Time { return now }

	r.Get("idle")
	now = now.Add(20 * time.Minute)
	r.Get("active")
	now = now.Add(15 * time.Minute)

	if n := r.Sweep(); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
	if len(released) != 1 || released[0] != "idle" {
		t.Fatalf("unexpected released: %v", released)
	}
	if r.Len() != 1 {
		t.Fatalf("expected active visitor kept")
	}

	r.Close()
	if r.Len() != 0 || len(released) != 2 {
		t.Fatalf("expected close to release everything, released=%v", released)
	}
}

func TestRegistryRunClosesOnCancel(t *testing.T) {
	done := make(chan struct{})
	r := NewRegistry(time.Hour, func(id string) string { return id }, func(string) { close(done) })
	r.Get("x")

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx, time.Hour)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected release after cancel")
	}
}
