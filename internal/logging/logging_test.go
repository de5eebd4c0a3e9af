package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// captureLog points the global logger at a buffer for the duration of f.
func captureLog(t *testing.T, level Level, format Format, f func()) string {
	t.Helper()
	var buf bytes.Buffer
	old := defaultLogger
	InitLoggerWriter(&buf, level, format)
	defer func() { defaultLogger = old }()
	f()
	return buf.String()
}

// lastRecord decodes the last JSON line of out.
func lastRecord(t *testing.T, out string) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", lines[len(lines)-1], err)
	}
	return rec
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"", LevelInfo, false},
		{"INFO", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if f, err := ParseFormat("text"); err != nil || f != FormatText {
		t.Errorf("ParseFormat(text) = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) error = nil")
	}
}

func TestLevelFiltering(t *testing.T) {
	out := captureLog(t, LevelWarn, FormatJSON, func() {
		Info("hidden")
		Warn("shown")
	})
	if strings.Contains(out, "hidden") {
		t.Error("info message logged at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn message missing")
	}
}

func TestTimestampFormat(t *testing.T) {
	out := captureLog(t, LevelInfo, FormatJSON, func() { Info("tick") })
	rec := lastRecord(t, out)
	ts, _ := rec["time"].(string)
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("time %q is not RFC3339: %v", ts, err)
	}
}

func TestTextFormat(t *testing.T) {
	out := captureLog(t, LevelInfo, FormatText, func() { Info("plain", "k", "v") })
	if !strings.Contains(out, "msg=plain") || !strings.Contains(out, "k=v") {
		t.Errorf("text output = %q", out)
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	if got := GetRequestID(ctx); got != "req-1" {
		t.Errorf("GetRequestID() = %q, want %q", got, "req-1")
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID(empty) = %q", got)
	}

	out := captureLog(t, LevelInfo, FormatJSON, func() {
		InfoContext(ctx, "with id")
	})
	if rec := lastRecord(t, out); rec["request_id"] != "req-1" {
		t.Errorf("request_id = %v", rec["request_id"])
	}
}

func TestDomainHelpers(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc")

	tests := []struct {
		name      string
		log       func()
		wantMsg   string
		wantLevel string
		wantKey   string
		wantValue any
	}{
		{
			name:      "scripture resolved",
			log:       func() { ScriptureResolved(ctx, "juan 3:16", "passage", 0) },
			wantMsg:   "scripture_resolved",
			wantLevel: "INFO",
			wantKey:   "outcome",
			wantValue: "passage",
		},
		{
			name:      "dataset loaded",
			log:       func() { DatasetLoaded("RVR1909", 120, time.Millisecond) },
			wantMsg:   "dataset_loaded",
			wantLevel: "INFO",
			wantKey:   "verses",
			wantValue: float64(120),
		},
		{
			name:      "dataset unavailable",
			log:       func() { DatasetUnavailable("RVR1909", errors.New("missing file")) },
			wantMsg:   "dataset_unavailable",
			wantLevel: "WARN",
			wantKey:   "error",
			wantValue: "missing file",
		},
		{
			name:      "completion ok",
			log:       func() { CompletionCall(ctx, "openai", "gpt-4o-mini", time.Second, nil) },
			wantMsg:   "completion_call",
			wantLevel: "INFO",
			wantKey:   "backend",
			wantValue: "openai",
		},
		{
			name:      "completion failed",
			log:       func() { CompletionCall(ctx, "gemini", "m", time.Second, errors.New("boom")) },
			wantMsg:   "completion_call",
			wantLevel: "ERROR",
			wantKey:   "error",
			wantValue: "boom",
		},
		{
			name:      "job event",
			log:       func() { JobEvent("j1", "running") },
			wantMsg:   "job_event",
			wantLevel: "INFO",
			wantKey:   "status",
			wantValue: "running",
		},
		{
			name:      "websocket event",
			log:       func() { WebSocketEvent("client_connected", 2) },
			wantMsg:   "websocket_event",
			wantLevel: "INFO",
			wantKey:   "client_count",
			wantValue: float64(2),
		},
		{
			name:      "server startup",
			log:       func() { ServerStartup("api", "http", 8080, "translation", "RVR1909") },
			wantMsg:   "server_startup",
			wantLevel: "INFO",
			wantKey:   "translation",
			wantValue: "RVR1909",
		},
		{
			name:      "security event",
			log:       func() { SecurityEvent("auth_failure", "api") },
			wantMsg:   "security_event",
			wantLevel: "WARN",
			wantKey:   "event",
			wantValue: "auth_failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := lastRecord(t, captureLog(t, LevelDebug, FormatJSON, tt.log))
			if rec["msg"] != tt.wantMsg {
				t.Errorf("msg = %v, want %v", rec["msg"], tt.wantMsg)
			}
			if rec["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %v", rec["level"], tt.wantLevel)
			}
			if rec[tt.wantKey] != tt.wantValue {
				t.Errorf("%s = %v, want %v", tt.wantKey, rec[tt.wantKey], tt.wantValue)
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-id")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "client-id" || rec.Header().Get("X-Request-ID") != "client-id" {
		t.Errorf("request id = %q, header %q", seen, rec.Header().Get("X-Request-ID"))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(seen) != 36 {
		t.Errorf("generated request id = %q, want a uuid", seen)
	}
}

func TestCombinedMiddleware(t *testing.T) {
	h := CombinedMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK) // ignored
		_, _ = w.Write([]byte("short and stout"))
	}))

	out := captureLog(t, LevelInfo, FormatJSON, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	})

	rec := lastRecord(t, out)
	if rec["msg"] != "http_request" {
		t.Fatalf("msg = %v", rec["msg"])
	}
	if rec["status_code"] != float64(http.StatusTeapot) {
		t.Errorf("status_code = %v, want %d", rec["status_code"], http.StatusTeapot)
	}
	if rec["path"] != "/health" {
		t.Errorf("path = %v", rec["path"])
	}
	if rec["request_id"] == nil {
		t.Error("request_id missing from access log")
	}
}

func TestWrapResponseWriterReuses(t *testing.T) {
	first := WrapResponseWriter(httptest.NewRecorder())
	if second := WrapResponseWriter(first); second != first {
		t.Error("WrapResponseWriter wrapped an existing recorder twice")
	}
	first.Write([]byte("x"))
	if first.Status() != http.StatusOK {
		t.Errorf("Status() = %d, want 200", first.Status())
	}
}
