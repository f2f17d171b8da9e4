package api_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"learn.throttle/api"
	"learn.throttle/valve"
)

// writeConfig writes a temp config file and returns its path. Durations are
// yaml integers in nanoseconds.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestNewThrottlesFromConfigPath(t *testing.T) {
	path := writeConfig(t, `
throttles:
  - key: api_throttle
    window: 60000000000
    limit: 3
  - key: login_throttle
    window: 1000000000
    limit: 1
    sweep:
      interval: 1000000000
      max_age: 5000000000
`)

	throttles, closer, err := api.NewThrottlesFromConfigPath(path)
	if err != nil {
		t.Fatalf("NewThrottlesFromConfigPath failed: %v", err)
	}
	defer closer.Close()

	if len(throttles) != 2 {
		t.Fatalf("Got %d throttles, expected 2", len(throttles))
	}

	ctx := context.Background()
	apiThrottle, ok := throttles["api_throttle"]
	if !ok {
		t.Fatal("Throttle 'api_throttle' not found")
	}

	for i := 0; i < 3; i++ {
		allowed, err := apiThrottle.Allow(ctx, "client1")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !allowed {
			t.Fatalf("Call %d unexpectedly denied", i+1)
		}
	}
	if allowed, _ := apiThrottle.Allow(ctx, "client1"); allowed {
		t.Fatal("Call unexpectedly allowed after limit")
	}
	if allowed, _ := apiThrottle.Allow(ctx, "client2"); !allowed {
		t.Fatal("Different identifier unexpectedly denied")
	}

	// Policies are independent across throttles.
	if allowed, _ := throttles["login_throttle"].Allow(ctx, "client1"); !allowed {
		t.Fatal("login_throttle unexpectedly denied; api_throttle state must not leak")
	}
}

func TestNewThrottlesFromConfigPath_ContextCancelled(t *testing.T) {
	path := writeConfig(t, `
throttles:
  - key: t
    window: 1000000000
    limit: 1
`)
	throttles, closer, err := api.NewThrottlesFromConfigPath(path)
	if err != nil {
		t.Fatalf("NewThrottlesFromConfigPath failed: %v", err)
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = throttles["t"].Allow(ctx, "client1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestNewThrottlesFromConfigPath_Errors(t *testing.T) {
	cases := []struct {
		name          string
		content       string
		wantConfigErr bool
	}{
		{"MissingFile", "", false},
		{"NoThrottles", "throttles: []\n", false},
		{"MissingKey", "throttles:\n  - window: 1000000000\n    limit: 1\n", false},
		{"DuplicateKey", "throttles:\n  - key: t\n    window: 1000000000\n    limit: 1\n  - key: t\n    window: 1000000000\n    limit: 1\n", false},
		{"ZeroWindow", "throttles:\n  - key: t\n    window: 0\n    limit: 1\n", true},
		{"NegativeLimit", "throttles:\n  - key: t\n    window: 1000000000\n    limit: -1\n", true},
		{"BadSweep", "throttles:\n  - key: t\n    window: 1000000000\n    limit: 1\n    sweep:\n      interval: 0\n      max_age: 0\n", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "missing.yaml")
			if tc.content != "" {
				path = writeConfig(t, tc.content)
			}
			_, _, err := api.NewThrottlesFromConfigPath(path)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if tc.wantConfigErr && !errors.Is(err, valve.ErrInvalidConfig) {
				t.Fatalf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
