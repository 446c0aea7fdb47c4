package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLevelFromEnv(t *testing.T) {
	tests := []struct {
		env  string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run("level "+tt.env, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.env)
			if got := LevelFromEnv(); got != tt.want {
				t.Errorf("LevelFromEnv(%q) = %v, want %v", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoggerComponentTagging(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:     slog.LevelInfo,
		Component: ComponentWorker,
		Handler:   slog.NewTextHandler(&buf, nil),
	})

	logger.Info("Transfer completed", "amount_cents", 2500)

	out := buf.String()
	if !strings.Contains(out, "component=worker") {
		t.Errorf("missing component tag in %q", out)
	}
	if !strings.Contains(out, "amount_cents=2500") {
		t.Errorf("missing amount field in %q", out)
	}

	if got := logger.WithComponent(ComponentHTTP).Component(); got != ComponentHTTP {
		t.Errorf("WithComponent = %q, want http", got)
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	logger := FromContext(context.Background())
	if logger == nil || logger.Logger == nil {
		t.Fatal("FromContext should never return nil")
	}
	if logger.Component() != "unknown" {
		t.Errorf("fallback component = %q, want unknown", logger.Component())
	}
}

func TestMiddlewareInjectsLogger(t *testing.T) {
	logger := New(Config{Level: slog.LevelInfo, Component: ComponentHTTP})

	var seen *Logger
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
	})

	h := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req_test" })(inner))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if seen == nil {
		t.Fatal("handler never ran")
	}
	if seen.Component() != ComponentHTTP {
		t.Errorf("component = %q, want http", seen.Component())
	}
}
