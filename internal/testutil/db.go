package testutil

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"github.com/dalemusser/admitdesk/internal/app/store/remote/memstore"
	"github.com/dalemusser/admitdesk/internal/app/store/remote/mongostore"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoURIEnv names the variable that points tests at a MongoDB replica set.
// Tests that need MongoDB are skipped when it is unset.
const MongoURIEnv = "ADMITDESK_TEST_MONGO_URI"

// TestContext returns a context with a timeout suitable for tests.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// Ctx returns a test-scoped context cancelled at cleanup.
func Ctx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := TestContext()
	t.Cleanup(cancel)
	return ctx
}

// SetupTestDB connects to the test MongoDB and returns a fresh database that
// is dropped when the test ends.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv(MongoURIEnv)
	if uri == "" {
		t.Skipf("%s not set; skipping MongoDB test", MongoURIEnv)
	}

	ctx, cancel := TestContext()
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect to test MongoDB: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("ping test MongoDB: %v", err)
	}

	name := "admitdesk_test_" + strings.ToLower(remote.NewID())
	db := client.Database(name)

	t.Cleanup(func() {
		ctx, cancel := TestContext()
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}

// SetupTestStore returns a MongoDB-backed remote.Store over a fresh test
// database.
func SetupTestStore(t *testing.T) remote.Store {
	t.Helper()
	return mongostore.New(SetupTestDB(t), zap.NewNop())
}

// NewMemStore returns an in-memory store closed at cleanup.
func NewMemStore(t *testing.T) *memstore.Store {
	t.Helper()
	st := memstore.New()
	t.Cleanup(st.Close)
	return st
}
