package userstore_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"github.com/dalemusser/admitdesk/internal/app/store/remote/memstore"
	userstore "github.com/dalemusser/admitdesk/internal/app/store/users"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"github.com/dalemusser/admitdesk/internal/testutil"
)

func TestStore_Provision_DefaultsToStandard(t *testing.T) {
	store := userstore.New(memstore.New())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	res, err := store.Provision(ctx, "p1", "  Ann@Example.com ")
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	if res != remote.Created {
		t.Fatalf("expected Created, got %s", res)
	}

	u, err := store.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if u.Role != models.RoleStandard {
		t.Errorf("expected role standard, got %q", u.Role)
	}
	if u.Email != "ann@example.com" {
		t.Errorf("expected normalized email, got %q", u.Email)
	}
	if u.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestStore_Provision_SuperadminEmail(t *testing.T) {
	store := userstore.New(memstore.New()).WithSuperadminEmail("Boss@Example.com")
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Provision(ctx, "boss", "boss@example.com"); err != nil {
		t.Fatalf("Provision boss: %v", err)
	}
	if _, err := store.Provision(ctx, "ann", "ann@example.com"); err != nil {
		t.Fatalf("Provision ann: %v", err)
	}

	boss, _ := store.Get(ctx, "boss")
	ann, _ := store.Get(ctx, "ann")
	if boss.Role != models.RoleSuperadmin {
		t.Errorf("boss role = %q, want superadmin", boss.Role)
	}
	if ann.Role != models.RoleStandard {
		t.Errorf("ann role = %q, want standard", ann.Role)
	}
}

func TestStore_Provision_KeepsExistingRole(t *testing.T) {
	store := userstore.New(memstore.New())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Provision(ctx, "p1", "a@example.com"); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	if err := store.SetRole(ctx, "p1", models.RoleSuperadmin); err != nil {
		t.Fatalf("SetRole failed: %v", err)
	}

	res, err := store.Provision(ctx, "p1", "a@example.com")
	if err != nil {
		t.Fatalf("second Provision failed: %v", err)
	}
	if res != remote.AlreadyExists {
		t.Fatalf("expected AlreadyExists, got %s", res)
	}
	u, _ := store.Get(ctx, "p1")
	if u.Role != models.RoleSuperadmin {
		t.Errorf("provisioning overwrote role: %q", u.Role)
	}
}

func TestStore_Provision_ConcurrentCreatesOneRecord(t *testing.T) {
	store := userstore.New(memstore.New())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	var wg sync.WaitGroup
	results := make([]remote.CreateResult, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := store.Provision(ctx, "tabs", "t@example.com")
			if err != nil {
				t.Errorf("Provision failed: %v", err)
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	created := 0
	for _, r := range results {
		if r == remote.Created {
			created++
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one Created, got %v", results)
	}
}

func TestStore_SetRole(t *testing.T) {
	store := userstore.New(memstore.New())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.SetRole(ctx, "ghost", models.RoleSuperadmin); !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown principal, got %v", err)
	}

	_, _ = store.Provision(ctx, "p1", "a@example.com")
	if err := store.SetRole(ctx, "p1", "owner"); !errors.Is(err, userstore.ErrBadRole) {
		t.Errorf("expected ErrBadRole, got %v", err)
	}
	if err := store.SetRole(ctx, "p1", " SuperAdmin "); err != nil {
		t.Fatalf("SetRole failed: %v", err)
	}
	u, _ := store.Get(ctx, "p1")
	if u.Role != models.RoleSuperadmin {
		t.Errorf("expected superadmin, got %q", u.Role)
	}
}

func TestStore_Provision_Mongo(t *testing.T) {
	rs := testutil.SetupTestStore(t)
	store := userstore.New(rs)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	res, err := store.Provision(ctx, "mongo-p1", "m@example.com")
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	if res != remote.Created {
		t.Fatalf("expected Created, got %s", res)
	}
	res, err = store.Provision(ctx, "mongo-p1", "m@example.com")
	if err != nil || res != remote.AlreadyExists {
		t.Fatalf("second Provision = %s, %v", res, err)
	}
}
