package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	enabled := AuthConfig{Enabled: true, APIKeys: []string{testAPIKey, "second-key-abcdefgh"}}

	tests := []struct {
		name       string
		cfg        AuthConfig
		path       string
		key        string
		wantStatus int
		wantCalled bool
	}{
		{"disabled", AuthConfig{}, "/api/songs", "", http.StatusOK, true},
		{"valid key", enabled, "/api/songs", testAPIKey, http.StatusOK, true},
		{"second key", enabled, "/api/generate", "second-key-abcdefgh", http.StatusOK, true},
		{"missing key", enabled, "/api/songs", "", http.StatusUnauthorized, false},
		{"invalid key", enabled, "/api/songs", "wrong-key-12345678", http.StatusUnauthorized, false},
		{"case sensitive", enabled, "/api/songs", strings.ToUpper(testAPIKey), http.StatusUnauthorized, false},
		{"prefix of key", enabled, "/api/songs", testAPIKey[:10], http.StatusUnauthorized, false},
		{"public root", enabled, "/", "", http.StatusOK, true},
		{"public health", enabled, "/health", "", http.StatusOK, true},
		{"public metrics", enabled, "/metrics", "", http.StatusOK, true},
		{"websocket handles its own auth", enabled, "/ws", "", http.StatusOK, true},
		{"health subpath is protected", enabled, "/health/x", "", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := AuthMiddleware(tt.cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if called != tt.wantCalled {
				t.Errorf("handler called = %v, want %v", called, tt.wantCalled)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				resp := decodeResponse(t, w)
				if resp.Error == nil || resp.Error.Code != "UNAUTHORIZED" {
					t.Errorf("error = %+v, want UNAUTHORIZED", resp.Error)
				}
			}
		})
	}
}

func TestValidateAuthConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AuthConfig
		wantErr bool
	}{
		{"disabled without keys", AuthConfig{}, false},
		{"disabled with short key", AuthConfig{APIKeys: []string{"short"}}, false},
		{"enabled with key", AuthConfig{Enabled: true, APIKeys: []string{testAPIKey}}, false},
		{"enabled exactly minimum", AuthConfig{Enabled: true, APIKeys: []string{strings.Repeat("k", minAPIKeyLength)}}, false},
		{"enabled without keys", AuthConfig{Enabled: true}, true},
		{"enabled with short key", AuthConfig{Enabled: true, APIKeys: []string{"short"}}, true},
		{"one short key among many", AuthConfig{Enabled: true, APIKeys: []string{testAPIKey, "tiny"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAuthConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAuthConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConstantTimeCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"abc", "abc", true},
		{"abc", "abd", false},
		{"abc", "abcd", false},
		{"", "", true},
		{"", "x", false},
	}
	for _, tt := range tests {
		if got := constantTimeCompare(tt.a, tt.b); got != tt.want {
			t.Errorf("constantTimeCompare(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestAuthConfigValidKeyEmpty(t *testing.T) {
	if (AuthConfig{Enabled: true}).validKey("") {
		t.Error("validKey(\"\") with no keys = true, want false")
	}
}
