package ratelimit_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/system/ratelimit"
)

func TestLimiter_BurstThenRefuse(t *testing.T) {
	l := ratelimit.New(3, time.Hour)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		if !l.Allow("u1") {
			t.Fatalf("attempt %d refused within burst", i+1)
		}
	}
	if l.Allow("u1") {
		t.Error("expected fourth attempt to be refused")
	}
	if !l.Allow("u2") {
		t.Error("keys should not share a bucket")
	}

	l.Reset("u1")
	if !l.Allow("u1") {
		t.Error("expected Reset to restore the bucket")
	}
	if l.Len() != 2 {
		t.Errorf("Len = %d, want 2", l.Len())
	}
}

func TestLimiter_RetryAfter(t *testing.T) {
	l := ratelimit.New(10, time.Minute)
	defer l.Stop()
	if got := l.RetryAfter(); got != 6 {
		t.Errorf("RetryAfter = %d, want 6", got)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "10.0.0.2:80", "1.2.3.4"},
		{"real ip", map[string]string{"X-Real-IP": " 5.6.7.8 "}, "10.0.0.2:80", "5.6.7.8"},
		{"remote addr", nil, "9.9.9.9:1234", "9.9.9.9"},
		{"no port", nil, "9.9.9.9", "9.9.9.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ratelimit.ClientIP(r); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoginLimiter_PerEmail(t *testing.T) {
	ll := ratelimit.NewLoginLimiter()
	defer ll.Stop()

	for i := 0; i < 5; i++ {
		r := httptest.NewRequest("POST", "/login", nil)
		r.RemoteAddr = "10.0.0." + string(rune('1'+i)) + ":1"
		if ok, _ := ll.Check(r, "Ann@Example.com"); !ok {
			t.Fatalf("attempt %d refused", i+1)
		}
	}
	r := httptest.NewRequest("POST", "/login", nil)
	r.RemoteAddr = "10.0.1.1:1"
	if ok, msg := ll.Check(r, "ann@example.com"); ok || msg == "" {
		t.Errorf("expected per-email refusal, got ok=%v msg=%q", ok, msg)
	}

	ll.ResetEmail("ANN@example.com")
	if ok, _ := ll.Check(r, "ann@example.com"); !ok {
		t.Error("expected ResetEmail to clear the email bucket")
	}
}
