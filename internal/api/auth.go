package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/FocuswithJustin/VocesDelReino/internal/logging"
)

// minAPIKeyLength is the shortest API key accepted by ValidateAuthConfig.
const minAPIKeyLength = 16

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Enabled bool
	APIKeys []string
}

// AuthMiddleware requires a valid X-API-Key header when auth is enabled.
// Public endpoints (/, /health, /metrics) always pass.
func AuthMiddleware(authCfg AuthConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authCfg.Enabled || isPublicEndpoint(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			logging.SecurityEvent("unauthorized_request", "auth",
				"path", r.URL.Path,
				"reason", "missing API key")
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing X-API-Key header")
			return
		}

		if !authCfg.validKey(apiKey) {
			logging.SecurityEvent("unauthorized_request", "auth",
				"path", r.URL.Path,
				"reason", "invalid API key")
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// validKey checks key against every configured key without short-circuiting.
func (c AuthConfig) validKey(key string) bool {
	ok := false
	for _, k := range c.APIKeys {
		if constantTimeCompare(key, k) {
			ok = true
		}
	}
	return ok
}

// isPublicEndpoint reports whether path bypasses this middleware. /ws
// authenticates in SecureWebSocketHandler, which also accepts a query key.
func isPublicEndpoint(path string) bool {
	switch path {
	case "/", "/health", "/metrics", "/ws":
		return true
	}
	return false
}

// ValidateAuthConfig validates the authentication configuration.
func ValidateAuthConfig(cfg AuthConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if len(cfg.APIKeys) == 0 {
		return fmt.Errorf("API key is required when authentication is enabled")
	}
	for i, k := range cfg.APIKeys {
		if len(k) < minAPIKeyLength {
			return fmt.Errorf("API key %d must be at least %d characters (got %d)", i+1, minAPIKeyLength, len(k))
		}
	}
	return nil
}

// constantTimeCompare compares two strings in time independent of where
// they differ.
func constantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
