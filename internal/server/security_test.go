package server

import (
	"net/http/httptest"
	"testing"
)

func TestAPICSPConfig(t *testing.T) {
	cfg := APICSPConfig()

	if len(cfg.DefaultSrc) != 1 || cfg.DefaultSrc[0] != "'none'" {
		t.Errorf("API DefaultSrc should be ['none'], got %v", cfg.DefaultSrc)
	}
	want := "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"
	if got := cfg.BuildCSPHeader(); got != want {
		t.Errorf("BuildCSPHeader() = %q, want %q", got, want)
	}
}

func TestBuildCSPHeader(t *testing.T) {
	tests := []struct {
		name     string
		cfg      CSPConfig
		expected string
	}{
		{
			name:     "empty",
			cfg:      CSPConfig{},
			expected: "",
		},
		{
			name: "with upgrade-insecure-requests",
			cfg: CSPConfig{
				DefaultSrc:              []string{"'self'"},
				UpgradeInsecureRequests: true,
			},
			expected: "default-src 'self'; upgrade-insecure-requests",
		},
		{
			name: "multiple sources",
			cfg: CSPConfig{
				DefaultSrc: []string{"'self'"},
				ConnectSrc: []string{"'self'", "wss://voces.example"},
			},
			expected: "default-src 'self'; connect-src 'self' wss://voces.example",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.BuildCSPHeader(); got != tt.expected {
				t.Errorf("BuildCSPHeader() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSecurityHeadersWithCSP(t *testing.T) {
	handler := SecurityHeadersWithCSP(APICSPConfig(), okHandler())

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	expected := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Content-Security-Policy": APICSPConfig().BuildCSPHeader(),
	}
	for header, want := range expected {
		if got := w.Header().Get(header); got != want {
			t.Errorf("header %s = %q, want %q", header, got, want)
		}
	}
}

func TestSanitizeUserInput(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  normal text  ", "normal text"},
		{"text\x00with\x00nulls", "textwithnulls"},
		{"text\nwith\nnewlines", "text\nwith\nnewlines"},
		{"text\twith\ttabs", "text\twith\ttabs"},
		{"text\x01with\x02control", "textwithcontrol"},
		{"gracia salvación", "gracia salvación"},
	}

	for _, tt := range tests {
		if got := SanitizeUserInput(tt.input); got != tt.expected {
			t.Errorf("SanitizeUserInput(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestLimitStringLength(t *testing.T) {
	tests := []struct {
		input     string
		maxLength int
		expected  string
	}{
		{"short", 10, "short"},
		{"exactly ten!", 12, "exactly ten!"},
		{"this is too long", 10, "this is to"},
		{"", 5, ""},
		{"canción", 5, "canci"},
		{"canción", 6, "canci"}, // never splits ó
	}

	for _, tt := range tests {
		if got := LimitStringLength(tt.input, tt.maxLength); got != tt.expected {
			t.Errorf("LimitStringLength(%q, %d) = %q, want %q", tt.input, tt.maxLength, got, tt.expected)
		}
	}
}

func TestSanitizeQueryParam(t *testing.T) {
	if got := SanitizeQueryParam("  Juan\x00 3:16  ", 100); got != "Juan 3:16" {
		t.Errorf("SanitizeQueryParam() = %q", got)
	}
	if got := SanitizeQueryParam("abcdef", 3); got != "abc" {
		t.Errorf("SanitizeQueryParam() = %q, want abc", got)
	}
}

func TestValidateContentType(t *testing.T) {
	allowed := []string{"application/json", "text/plain"}

	tests := []struct {
		contentType string
		expected    bool
	}{
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"Application/JSON", true},
		{"text/plain", true},
		{"text/html", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidateContentType(tt.contentType, allowed); got != tt.expected {
			t.Errorf("ValidateContentType(%q) = %v, want %v", tt.contentType, got, tt.expected)
		}
	}
}
