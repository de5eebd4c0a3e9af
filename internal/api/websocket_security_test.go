package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestDefaultWebSocketSecurityConfig(t *testing.T) {
	cfg := DefaultWebSocketSecurityConfig()
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("AllowedOrigins = %v, want [*]", cfg.AllowedOrigins)
	}
	if cfg.MaxMessageRate != 10 || cfg.MaxMessageSize != 4096 || cfg.RequireAuth {
		t.Errorf("config = %+v", cfg)
	}
}

func TestIsOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		allowed []string
		want    bool
	}{
		{"wildcard", "https://any.example", []string{"*"}, true},
		{"exact", "https://voces.example", []string{"https://voces.example"}, true},
		{"exact mismatch", "https://evil.example", []string{"https://voces.example"}, false},
		{"subdomain", "https://app.voces.example", []string{"*.voces.example"}, true},
		{"nested subdomain", "https://a.b.voces.example", []string{"*.voces.example"}, true},
		{"lookalike", "https://evilvoces.example", []string{"*.voces.example"}, false},
		{"empty origin", "", []string{"*"}, false},
		{"empty list", "https://voces.example", nil, false},
		{"second entry", "http://localhost:3000", []string{"https://voces.example", "http://localhost:3000"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isOriginAllowed(tt.origin, tt.allowed); got != tt.want {
				t.Errorf("isOriginAllowed(%q, %v) = %v, want %v", tt.origin, tt.allowed, got, tt.want)
			}
		})
	}
}

func TestValidateAuthForWebSocket(t *testing.T) {
	auth := AuthConfig{Enabled: true, APIKeys: []string{testAPIKey}}

	tests := []struct {
		name   string
		cfg    WebSocketSecurityConfig
		header string
		query  string
		ok     bool
	}{
		{"auth not required", WebSocketSecurityConfig{}, "", "", true},
		{"required but unconfigured", WebSocketSecurityConfig{RequireAuth: true}, testAPIKey, "", false},
		{"header key", WebSocketSecurityConfig{RequireAuth: true, AuthConfig: auth}, testAPIKey, "", true},
		{"query key", WebSocketSecurityConfig{RequireAuth: true, AuthConfig: auth}, "", testAPIKey, true},
		{"wrong key", WebSocketSecurityConfig{RequireAuth: true, AuthConfig: auth}, "wrong-key-wrong-key", "", false},
		{"missing key", WebSocketSecurityConfig{RequireAuth: true, AuthConfig: auth}, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/ws"
			if tt.query != "" {
				target += "?api_key=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			reason := ValidateAuthForWebSocket(req, tt.cfg)
			if (reason == "") != tt.ok {
				t.Errorf("ValidateAuthForWebSocket() = %q, want ok=%v", reason, tt.ok)
			}
		})
	}
}

func TestWebSocketRateLimiter(t *testing.T) {
	rl := NewWebSocketRateLimiter()
	client := &Client{}

	if rl.Allow(client) {
		t.Error("unregistered client allowed")
	}

	rl.Register(client, 5)
	allowed := 0
	for i := 0; i < 15; i++ {
		if rl.Allow(client) {
			allowed++
		}
	}
	if allowed != 10 {
		t.Errorf("burst allowed %d messages, want 10 (twice the rate)", allowed)
	}

	rl.Unregister(client)
	if rl.Allow(client) {
		t.Error("client allowed after Unregister")
	}
}

func startSecureServer(t *testing.T, cfg WebSocketSecurityConfig) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	ts := httptest.NewServer(SecureWebSocketHandler(hub, cfg, NewWebSocketRateLimiter()))
	t.Cleanup(ts.Close)
	return hub, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dialWS(url, origin, key string) (*websocket.Conn, *http.Response, error) {
	h := http.Header{}
	if origin != "" {
		h.Set("Origin", origin)
	}
	if key != "" {
		h.Set("X-API-Key", key)
	}
	return websocket.DefaultDialer.Dial(url, h)
}

func TestSecureWebSocketHandlerOrigin(t *testing.T) {
	cfg := DefaultWebSocketSecurityConfig()
	cfg.AllowedOrigins = []string{"https://voces.example"}
	_, url := startSecureServer(t, cfg)

	conn, resp, err := dialWS(url, "https://voces.example", "")
	if err != nil {
		t.Fatalf("allowed origin: %v", err)
	}
	conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Errorf("status = %d, want 101", resp.StatusCode)
	}

	_, resp, err = dialWS(url, "https://evil.example", "")
	if err == nil {
		t.Fatal("disallowed origin connected")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("disallowed origin response = %v, want 403", resp)
	}
}

func TestSecureWebSocketHandlerAuth(t *testing.T) {
	cfg := DefaultWebSocketSecurityConfig()
	cfg.RequireAuth = true
	cfg.AuthConfig = AuthConfig{Enabled: true, APIKeys: []string{testAPIKey}}
	_, url := startSecureServer(t, cfg)

	conn, _, err := dialWS(url, "http://localhost", testAPIKey)
	if err != nil {
		t.Fatalf("header key: %v", err)
	}
	conn.Close()

	conn, _, err = dialWS(url+"?api_key="+testAPIKey, "http://localhost", "")
	if err != nil {
		t.Fatalf("query key: %v", err)
	}
	conn.Close()

	for _, key := range []string{"", "invalid-key-invalid"} {
		_, resp, err := dialWS(url, "http://localhost", key)
		if err == nil {
			t.Fatalf("key %q connected", key)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("key %q response = %v, want 401", key, resp)
		}
	}
}

func TestSecureWebSocketHandlerMessageSize(t *testing.T) {
	cfg := DefaultWebSocketSecurityConfig()
	cfg.MaxMessageSize = 1024
	_, url := startSecureServer(t, cfg)

	conn, _, err := dialWS(url, "http://localhost", "")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("A", 2048))); err != nil {
		return
	}
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("oversized message did not close the connection")
	}
}

func TestSecureWebSocketHandlerMessageRate(t *testing.T) {
	cfg := DefaultWebSocketSecurityConfig()
	cfg.MaxMessageRate = 1
	_, url := startSecureServer(t, cfg)

	conn, _, err := dialWS(url, "http://localhost", "")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	for i := 0; i < 5; i++ {
		if err := conn.WriteMessage(websocket.TextMessage, []byte("hola")); err != nil {
			break
		}
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Errorf("ReadMessage() error = %v, want policy violation close", err)
	}
}
