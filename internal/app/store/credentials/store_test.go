package credentialstore_test

import (
	"errors"
	"strings"
	"sync"
	"testing"

	credentialstore "github.com/dalemusser/admitdesk/internal/app/store/credentials"
	"github.com/dalemusser/admitdesk/internal/testutil"
	"golang.org/x/crypto/bcrypt"
)

func newStore(t *testing.T) *credentialstore.Store {
	return credentialstore.New(testutil.NewMemStore(t)).WithCost(bcrypt.MinCost)
}

func TestStore_RegisterAndVerify(t *testing.T) {
	store := newStore(t)
	ctx := testutil.Ctx(t)

	id, err := store.Register(ctx, " Ann@Example.com", "correct horse")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !strings.HasPrefix(id, "pw:") {
		t.Errorf("principal id = %q, want pw: prefix", id)
	}

	got, err := store.Verify(ctx, "ann@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if got != id {
		t.Errorf("Verify returned %q, want %q", got, id)
	}
}

func TestStore_Verify_Rejects(t *testing.T) {
	store := newStore(t)
	ctx := testutil.Ctx(t)

	if _, err := store.Register(ctx, "a@example.com", "password-1"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := store.Verify(ctx, "a@example.com", "password-2"); !errors.Is(err, credentialstore.ErrInvalidLogin) {
		t.Errorf("wrong password: got %v", err)
	}
	if _, err := store.Verify(ctx, "b@example.com", "password-1"); !errors.Is(err, credentialstore.ErrInvalidLogin) {
		t.Errorf("unknown email: got %v", err)
	}
}

func TestStore_Register_Errors(t *testing.T) {
	store := newStore(t)
	ctx := testutil.Ctx(t)

	if _, err := store.Register(ctx, "a@example.com", "short"); !errors.Is(err, credentialstore.ErrWeakPassword) {
		t.Errorf("expected ErrWeakPassword, got %v", err)
	}
	if _, err := store.Register(ctx, "a@example.com", "long-enough"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := store.Register(ctx, "A@EXAMPLE.COM", "other-password"); !errors.Is(err, credentialstore.ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestStore_Register_ConcurrentOneWinner(t *testing.T) {
	store := newStore(t)
	ctx := testutil.Ctx(t)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
		taken int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Register(ctx, "race@example.com", "password-123")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, credentialstore.ErrEmailTaken):
				taken++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 || taken != 7 {
		t.Errorf("wins=%d taken=%d, want 1 and 7", wins, taken)
	}
}
