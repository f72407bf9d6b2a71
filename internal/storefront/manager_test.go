package storefront

import (
	"context"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/viylo-storefront/pkg/errors"
)

func TestManagerReusesSessions(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	a := f.session(t)
	b := f.session(t)
	if a != b {
		t.Fatal("expected the same session for the same id")
	}
	if _, err := f.manager.Session(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank id")
	}
	if got, ok := f.manager.Get("sess-1"); !ok || got != a {
		t.Fatal("Get must return the existing session")
	}
	if f.manager.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", f.manager.Len())
	}
}

func TestManagerSweepEvictsIdleSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, true)
	idle := f.session(t)
	if err := idle.AddItem(ctx, "logo", 1); err != nil {
		t.Fatalf("add: %v", err)
	}

	f.clock.Advance(45 * time.Minute)
	active, err := f.manager.Session(ctx, "sess-2")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	f.clock.Advance(30 * time.Minute)
	active.Cart()

	if n := f.manager.Sweep(ctx); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, ok := f.manager.Get("sess-1"); ok {
		t.Fatal("idle session must be evicted")
	}
	if _, ok := f.manager.Get("sess-2"); !ok {
		t.Fatal("active session must survive")
	}
	if f.collab.live() != 0 {
		t.Fatal("evicted session widget must be destroyed")
	}
}

func TestManagerCloseDestroysWidgets(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, true)
	if err := f.session(t).AddItem(ctx, "seo", 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	f.manager.Close(ctx)
	if f.collab.live() != 0 || f.manager.Len() != 0 {
		t.Fatal("close must destroy every widget")
	}
}

func TestManagerSweepSkipsBusySessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, true)
	busy := f.session(t)
	f.clock.Advance(2 * time.Hour)

	busy.mu.Lock()
	if n := f.manager.Sweep(ctx); n != 0 {
		busy.mu.Unlock()
		t.Fatalf("a session holding its lock must not be evicted, got %d", n)
	}
	if _, err := f.manager.Session(ctx, "sess-2"); err != nil {
		busy.mu.Unlock()
		t.Fatalf("lookups must not wait on a busy session: %v", err)
	}
	busy.mu.Unlock()

	if n := f.manager.Sweep(ctx); n != 1 {
		t.Fatalf("expected the idle session evicted once released, got %d", n)
	}
}

func TestEvictedSessionRejectsChanges(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, true)
	stale := f.session(t)
	if err := stale.AddItem(ctx, "logo", 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	f.clock.Advance(2 * time.Hour)
	if n := f.manager.Sweep(ctx); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	created := f.collab.created()

	err := stale.AddItem(ctx, "seo", 1)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict for a closed session, got %v", err)
	}
	stale.ClearCart(ctx)
	stale.View(ctx)
	if f.collab.created() != created || f.collab.live() != 0 {
		t.Fatal("a closed session must not render a widget")
	}
	if !stale.Closed() {
		t.Fatal("expected the evicted session to report closed")
	}

	fresh := f.session(t)
	if fresh == stale {
		t.Fatal("expected a new session after eviction")
	}
	if err := fresh.AddItem(ctx, "seo", 1); err != nil {
		t.Fatalf("fresh session add: %v", err)
	}
}
