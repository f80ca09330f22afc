package timeouts_test

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/system/timeouts"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestConfigure_IgnoresZero(t *testing.T) {
	t.Cleanup(timeouts.Reset)

	timeouts.Configure(timeouts.Config{Short: 7 * time.Second})
	got := timeouts.Current()
	if got.Short != 7*time.Second {
		t.Errorf("Short = %v, want 7s", got.Short)
	}
	if got.Ping != timeouts.DefaultPing || got.Medium != timeouts.DefaultMedium || got.Long != timeouts.DefaultLong {
		t.Errorf("zero values should keep defaults, got %+v", got)
	}

	timeouts.Reset()
	if timeouts.Short() != timeouts.DefaultShort {
		t.Errorf("Reset did not restore Short: %v", timeouts.Short())
	}
}

func TestConfigure_ConfiguredTiers(t *testing.T) {
	t.Cleanup(timeouts.Reset)

	timeouts.Configure(timeouts.Config{Short: 3 * time.Second, Medium: 12 * time.Second})
	timeouts.Configure(timeouts.Config{Medium: 15 * time.Second})

	if timeouts.Short() != 3*time.Second || timeouts.Medium() != 15*time.Second {
		t.Errorf("Short=%v Medium=%v", timeouts.Short(), timeouts.Medium())
	}
	if timeouts.Ping() != timeouts.DefaultPing || timeouts.Long() != timeouts.DefaultLong {
		t.Errorf("unconfigured tiers moved: ping=%v long=%v", timeouts.Ping(), timeouts.Long())
	}
}

func TestWithTimeout_LogsDeadline(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	ctx, cancel := timeouts.WithTimeout(context.Background(), time.Millisecond, zap.New(core), "slow write")
	<-ctx.Done()
	cancel()

	if logs.Len() != 1 {
		t.Fatalf("expected 1 warning, got %d", logs.Len())
	}
	if op := logs.All()[0].ContextMap()["operation"]; op != "slow write" {
		t.Errorf("operation field = %v", op)
	}
}

func TestWithTimeout_QuietOnCancel(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	_, cancel := timeouts.WithTimeout(context.Background(), time.Hour, zap.New(core), "fast")
	cancel()
	if logs.Len() != 0 {
		t.Errorf("expected no warnings, got %d", logs.Len())
	}
}
