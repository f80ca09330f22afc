package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	userstore "github.com/dalemusser/admitdesk/internal/app/store/users"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"github.com/dalemusser/admitdesk/internal/testutil"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func memoryConfig() AppConfig {
	return AppConfig{
		StoreBackend:       BackendMemory,
		SessionKey:         "test-session-key-must-be-32-chars-long",
		SessionName:        "test-session",
		SessionMaxAge:      time.Hour,
		ClientIdleTTL:      time.Minute,
		ClientReapInterval: time.Minute,
		BaseURL:            "http://localhost:3000",
		ChatRateLimit:      5,
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr bool
	}{
		{"memory ok", func(c *AppConfig) {}, false},
		{"mongo ok", func(c *AppConfig) {
			c.StoreBackend = BackendMongo
			c.MongoURI = "mongodb://localhost:27017"
			c.MongoDatabase = "admitdesk"
		}, false},
		{"mongo without database", func(c *AppConfig) {
			c.StoreBackend = BackendMongo
			c.MongoURI = "mongodb://localhost:27017"
		}, true},
		{"unknown backend", func(c *AppConfig) { c.StoreBackend = "redis" }, true},
		{"half google config", func(c *AppConfig) { c.GoogleClientID = "id" }, true},
		{"zero chat limit", func(c *AppConfig) { c.ChatRateLimit = 0 }, true},
		{"zero idle ttl", func(c *AppConfig) { c.ClientIdleTTL = 0 }, true},
		{"audit off", func(c *AppConfig) { c.AuditAuth = "off"; c.AuditAdmin = "db" }, false},
		{"unknown audit destination", func(c *AppConfig) { c.AuditAdmin = "email" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(&config.CoreConfig{Env: "dev"}, cfg, testLogger())
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnsureSuperAdmin_PromotesExisting(t *testing.T) {
	rs := testutil.NewMemStore(t)
	fx := testutil.NewFixtures(t, rs)
	ctx := testutil.Ctx(t)
	fx.CreateUser(ctx, "p1", "boss@example.com", models.RoleStandard)
	fx.CreateUser(ctx, "p2", "ann@example.com", models.RoleStandard)

	if err := ensureSuperAdmin(ctx, rs, "  Boss@Example.com ", testLogger()); err != nil {
		t.Fatalf("ensureSuperAdmin failed: %v", err)
	}

	users := userstore.New(rs)
	boss, _ := users.Get(ctx, "p1")
	ann, _ := users.Get(ctx, "p2")
	if boss.Role != models.RoleSuperadmin {
		t.Errorf("expected boss promoted, got %q", boss.Role)
	}
	if ann.Role != models.RoleStandard {
		t.Errorf("expected ann untouched, got %q", ann.Role)
	}
}

func TestEnsureSuperAdmin_NoRecordYet(t *testing.T) {
	rs := testutil.NewMemStore(t)
	if err := ensureSuperAdmin(testutil.Ctx(t), rs, "boss@example.com", testLogger()); err != nil {
		t.Fatalf("ensureSuperAdmin failed: %v", err)
	}
}

func TestBuildHandler_MemoryBackend(t *testing.T) {
	ctx := context.Background()
	core := &config.CoreConfig{Env: "dev"}
	cfg := memoryConfig()

	deps, err := ConnectDB(ctx, core, cfg, testLogger())
	if err != nil {
		t.Fatalf("ConnectDB failed: %v", err)
	}
	if err := EnsureSchema(ctx, core, cfg, deps, testLogger()); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	if err := Startup(ctx, core, cfg, deps, testLogger()); err != nil {
		t.Fatalf("Startup failed: %v", err)
	}
	t.Cleanup(func() {
		if err := Shutdown(context.Background(), core, cfg, deps, testLogger()); err != nil {
			t.Errorf("Shutdown failed: %v", err)
		}
	})

	h, err := BuildHandler(core, cfg, deps, testLogger())
	if err != nil {
		t.Fatalf("BuildHandler failed: %v", err)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/api/user", http.StatusOK},
		{"/events", http.StatusOK},
		{"/login", http.StatusOK},
		{"/dashboard", http.StatusUnauthorized},
		{"/chat", http.StatusUnauthorized},
		{"/admin", http.StatusForbidden},
		{"/admin/conversations/someone", http.StatusForbidden},
		{"/no/such/page", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			req.Header.Set("Accept", "application/json")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("GET %s: expected %d, got %d: %s", tt.path, tt.want, rec.Code, rec.Body.String())
			}
		})
	}

	if deps.Clients.Len() == 0 {
		t.Error("expected session clients to be created for cookie-bound routes")
	}
}

func TestBuildHandler_SignUpReachesDashboard(t *testing.T) {
	ctx := context.Background()
	core := &config.CoreConfig{Env: "dev"}
	cfg := memoryConfig()

	deps, err := ConnectDB(ctx, core, cfg, testLogger())
	if err != nil {
		t.Fatalf("ConnectDB failed: %v", err)
	}
	t.Cleanup(func() { _ = Shutdown(context.Background(), core, cfg, deps, testLogger()) })

	h, err := BuildHandler(core, cfg, deps, testLogger())
	if err != nil {
		t.Fatalf("BuildHandler failed: %v", err)
	}

	req := httptest.NewRequest("POST", "/login/signup", strings.NewReader("email=ann%40example.com&password=correct-horse"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("signup: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a client cookie")
	}

	// The gate waits for the role to resolve, so the first request after
	// sign-up renders rather than redirecting.
	req = httptest.NewRequest("GET", "/dashboard", nil)
	req.Header.Set("Accept", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
