package heartbeat_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/admitdesk/internal/app/features/heartbeat"
	"github.com/dalemusser/admitdesk/internal/testutil"
)

func TestServeHeartbeat_ReportsPhase(t *testing.T) {
	req := testutil.WithState(httptest.NewRequest("POST", "/heartbeat", nil), testutil.Standard("u1"))
	rec := httptest.NewRecorder()
	heartbeat.NewHandler().ServeHeartbeat(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["phase"] != "ready" {
		t.Errorf("phase = %q, want ready", body["phase"])
	}
}

func TestServeHeartbeat_NoClient(t *testing.T) {
	rec := httptest.NewRecorder()
	heartbeat.NewHandler().ServeHeartbeat(rec, httptest.NewRequest("POST", "/heartbeat", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
