package mongostore_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"github.com/dalemusser/admitdesk/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

type note struct {
	ID        string    `bson:"_id"`
	Owner     string    `bson:"owner"`
	Text      string    `bson:"text"`
	CreatedAt time.Time `bson:"created_at,omitempty"`
}

func next(t *testing.T, ch <-chan remote.CollectionEvent) remote.Batch {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed")
		}
		if ev.Err != nil {
			t.Fatalf("subscription error: %v", ev.Err)
		}
		return ev.Batch
	case <-time.After(5 * time.Second):
		t.Fatal("no batch delivered")
	}
	return remote.Batch{}
}

func TestCreateIfAbsent_ConcurrentOneWins(t *testing.T) {
	st := testutil.SetupTestStore(t)
	ctx := testutil.Ctx(t)
	ref := remote.DocRef{Collection: "users", ID: "p1"}

	const n = 8
	results := make([]remote.CreateResult, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = st.CreateIfAbsent(ctx, ref, bson.M{"role": "standard"})
		}(i)
	}
	wg.Wait()

	created := 0
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("CreateIfAbsent %d: %v", i, errs[i])
		}
		if results[i] == remote.Created {
			created++
		}
	}
	if created != 1 {
		t.Errorf("expected exactly one Created, got %d", created)
	}
}

func TestAdd_ServerTimeAndLiteralValues(t *testing.T) {
	st := testutil.SetupTestStore(t)
	ctx := testutil.Ctx(t)

	id, err := st.Add(ctx, "notes", note{Owner: "u1", Text: "$set is not an operator here"}, "created_at")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	raw, err := st.Get(ctx, remote.DocRef{Collection: "notes", ID: id})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var n note
	if err := bson.Unmarshal(raw, &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n.Text != "$set is not an operator here" {
		t.Errorf("text = %q", n.Text)
	}
	if n.CreatedAt.IsZero() {
		t.Error("expected created_at from the server clock")
	}
}

func TestUpdateAndDelete(t *testing.T) {
	st := testutil.SetupTestStore(t)
	ctx := testutil.Ctx(t)

	missing := remote.DocRef{Collection: "notes", ID: "missing"}
	if err := st.Update(ctx, missing, bson.M{"text": "x"}); !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("Update missing: expected ErrNotFound, got %v", err)
	}
	if err := st.Delete(ctx, missing); err != nil {
		t.Errorf("Delete missing: %v", err)
	}
	if _, err := st.Get(ctx, missing); !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("Get missing: expected ErrNotFound, got %v", err)
	}
}

func TestSubscribeCollection_ResetThenChanges(t *testing.T) {
	st := testutil.SetupTestStore(t)
	ctx := testutil.Ctx(t)

	keep, err := st.Add(ctx, "notes", note{Owner: "u1", Text: "first"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := st.Add(ctx, "notes", note{Owner: "u2", Text: "other owner"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ch, err := st.SubscribeCollection(ctx, remote.Query{Collection: "notes", Filter: bson.M{"owner": "u1"}})
	if err != nil {
		t.Fatalf("SubscribeCollection: %v", err)
	}
	b := next(t, ch)
	if !b.Reset || len(b.Changes) != 1 || b.Changes[0].ID != keep {
		t.Fatalf("initial batch = %+v", b)
	}

	added, err := st.Add(ctx, "notes", note{Owner: "u1", Text: "second"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	b = next(t, ch)
	if b.Reset || len(b.Changes) != 1 || b.Changes[0].Kind != remote.Added || b.Changes[0].ID != added {
		t.Fatalf("add batch = %+v", b)
	}

	// Moving out of the filter is a removal.
	if err := st.Update(ctx, remote.DocRef{Collection: "notes", ID: keep}, bson.M{"owner": "u3"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	b = next(t, ch)
	if len(b.Changes) != 1 || b.Changes[0].Kind != remote.Removed || b.Changes[0].ID != keep {
		t.Fatalf("filter-exit batch = %+v", b)
	}
}

func TestSubscribeDocument_DeleteThenReadd(t *testing.T) {
	st := testutil.SetupTestStore(t)
	ctx := testutil.Ctx(t)
	ref := remote.DocRef{Collection: "users", ID: "p1"}

	ch, err := st.SubscribeDocument(ctx, ref)
	if err != nil {
		t.Fatalf("SubscribeDocument: %v", err)
	}
	want := func(exists bool) {
		t.Helper()
		select {
		case ev := <-ch:
			if ev.Err != nil {
				t.Fatalf("subscription error: %v", ev.Err)
			}
			if ev.Exists != exists {
				t.Fatalf("exists = %v, want %v", ev.Exists, exists)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("no document event")
		}
	}

	want(false)
	if _, err := st.CreateIfAbsent(ctx, ref, bson.M{"role": "standard"}); err != nil {
		t.Fatalf("CreateIfAbsent: %v", err)
	}
	want(true)
	if err := st.Delete(ctx, ref); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	want(false)
	if _, err := st.CreateIfAbsent(ctx, ref, bson.M{"role": "standard"}); err != nil {
		t.Fatalf("CreateIfAbsent: %v", err)
	}
	want(true)
}
