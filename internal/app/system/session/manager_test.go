package session_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/store/remote/memstore"
	"github.com/dalemusser/admitdesk/internal/app/system/session"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"go.uber.org/zap"
)

func TestManager_GetIsStablePerClient(t *testing.T) {
	mgr := session.NewManager(memstore.New(), session.Options{Log: zap.NewNop()})
	defer mgr.Close()

	a, err := mgr.Get("c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	again, _ := mgr.Get("c1")
	other, _ := mgr.Get("c2")

	if a != again {
		t.Fatalf("Get returned a different client for the same id")
	}
	if a == other {
		t.Fatalf("two ids share a client")
	}
	if mgr.Len() != 2 {
		t.Fatalf("Len = %d, want 2", mgr.Len())
	}
}

func TestManager_ClientsAreIsolated(t *testing.T) {
	st := memstore.New()
	seedRole(t, st, alice, models.RoleSuperadmin)
	mgr := session.NewManager(st, session.Options{Log: zap.NewNop()})
	defer mgr.Close()

	a, _ := mgr.Get("tab-a")
	b, _ := mgr.Get("tab-b")
	_ = a.Identity.SignIn(alice)

	waitState(t, a.Machine, "a ready", func(s session.State) bool { return s.IsSuperadmin() })
	waitState(t, b.Machine, "b signed out", func(s session.State) bool { return s.Phase() == session.SignedOut })
}

func TestManager_ReapClosesIdle(t *testing.T) {
	st := memstore.New()
	seedRole(t, st, alice, models.RoleStandard)
	mgr := session.NewManager(st, session.Options{Log: zap.NewNop()})
	defer mgr.Close()

	c, _ := mgr.Get("idle")
	_ = c.Identity.SignIn(alice)
	waitState(t, c.Machine, "ready", func(s session.State) bool { return s.SignedIn() })

	if n := mgr.Reap(time.Hour); n != 0 {
		t.Fatalf("reaped %d active clients", n)
	}
	time.Sleep(10 * time.Millisecond)
	if n := mgr.Reap(time.Millisecond); n != 1 {
		t.Fatalf("Reap = %d, want 1", n)
	}
	if _, ok := mgr.Lookup("idle"); ok {
		t.Fatalf("reaped client still registered")
	}
	select {
	case <-c.Machine.Done():
	default:
		t.Fatalf("reaped machine still running")
	}
	deadline := time.Now().Add(2 * time.Second)
	for st.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers = %d after reap", st.Subscribers())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestManager_ReapSkipsAttached(t *testing.T) {
	st := memstore.New()
	seedRole(t, st, alice, models.RoleStandard)
	mgr := session.NewManager(st, session.Options{Log: zap.NewNop()})
	defer mgr.Close()

	c, _ := mgr.Get("watching")
	_ = c.Identity.SignIn(alice)
	waitState(t, c.Machine, "ready", func(s session.State) bool { return s.SignedIn() })

	detach := c.Attach()
	time.Sleep(10 * time.Millisecond)
	if n := mgr.Reap(time.Millisecond); n != 0 {
		t.Fatalf("reaped %d clients with an open socket", n)
	}
	if _, ok := mgr.Lookup("watching"); !ok {
		t.Fatalf("attached client was dropped")
	}

	detach()
	detach()
	time.Sleep(10 * time.Millisecond)
	if n := mgr.Reap(time.Millisecond); n != 1 {
		t.Fatalf("Reap after detach = %d, want 1", n)
	}
}

func TestManager_Closed(t *testing.T) {
	mgr := session.NewManager(memstore.New(), session.Options{})
	mgr.Close()
	mgr.Close()
	if _, err := mgr.Get("x"); !errors.Is(err, session.ErrManagerClosed) {
		t.Fatalf("Get after Close: %v", err)
	}
}
