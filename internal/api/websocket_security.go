package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/VocesDelReino/internal/logging"
)

// WebSocketSecurityConfig holds WebSocket-specific security configuration.
type WebSocketSecurityConfig struct {
	// AllowedOrigins lists allowed origins. "*" allows all and
	// "*.example.com" allows subdomains.
	AllowedOrigins []string

	// MaxMessageRate is the maximum number of messages per second per client.
	MaxMessageRate int

	// MaxMessageSize is the maximum message size in bytes.
	MaxMessageSize int64

	// RequireAuth requires an API key before the upgrade.
	RequireAuth bool

	AuthConfig AuthConfig
}

// DefaultWebSocketSecurityConfig returns the default limits with every
// origin allowed.
func DefaultWebSocketSecurityConfig() WebSocketSecurityConfig {
	return WebSocketSecurityConfig{
		AllowedOrigins: []string{"*"},
		MaxMessageRate: 10,
		MaxMessageSize: 4096,
	}
}

// WebSocketRateLimiter tracks inbound message rates per client.
type WebSocketRateLimiter struct {
	clients map[*Client]*tokenBucket
	mu      sync.RWMutex
}

// NewWebSocketRateLimiter creates a new WebSocket rate limiter.
func NewWebSocketRateLimiter() *WebSocketRateLimiter {
	return &WebSocketRateLimiter{
		clients: make(map[*Client]*tokenBucket),
	}
}

// Register starts tracking client with a burst of twice its rate.
func (rl *WebSocketRateLimiter) Register(client *Client, messagesPerSecond int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rate := float64(messagesPerSecond)
	rl.clients[client] = newTokenBucket(rate*2, rate)
}

// Unregister removes a client from rate limiting.
func (rl *WebSocketRateLimiter) Unregister(client *Client) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	delete(rl.clients, client)
}

// Allow reports whether client may send another message. Unregistered
// clients are denied.
func (rl *WebSocketRateLimiter) Allow(client *Client) bool {
	rl.mu.RLock()
	bucket, exists := rl.clients[client]
	rl.mu.RUnlock()

	if !exists {
		return false
	}
	return bucket.allow()
}

// isOriginAllowed checks origin against the allowed patterns. A missing
// Origin header is denied.
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	if origin == "" {
		return false
	}

	for _, allowed := range allowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
		if strings.HasPrefix(allowed, "*.") && strings.HasSuffix(origin, allowed[1:]) {
			return true
		}
	}
	return false
}

// CheckOriginWithConfig creates a CheckOrigin function based on security config.
func CheckOriginWithConfig(config WebSocketSecurityConfig) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		allowed := isOriginAllowed(origin, config.AllowedOrigins)
		if !allowed {
			logging.SecurityEvent("websocket_origin_rejected", "websocket",
				"origin", origin)
		}
		return allowed
	}
}

// ValidateAuthForWebSocket checks authentication before the upgrade and
// returns the failure reason, or "" on success. Browsers cannot set
// headers on WebSocket requests, so an api_key query parameter is also
// accepted.
func ValidateAuthForWebSocket(r *http.Request, config WebSocketSecurityConfig) string {
	if !config.RequireAuth {
		return ""
	}
	if !config.AuthConfig.Enabled {
		return "Authentication required but not configured"
	}

	apiKey := r.Header.Get("X-API-Key")
	if apiKey == "" {
		apiKey = r.URL.Query().Get("api_key")
		if apiKey == "" {
			return "Missing API key (X-API-Key header or api_key query parameter)"
		}
	}

	if !config.AuthConfig.validKey(apiKey) {
		return "Invalid API key"
	}
	return ""
}

// SecureWebSocketHandler authenticates, checks the origin, upgrades and
// registers the client with hub.
func SecureWebSocketHandler(hub *Hub, config WebSocketSecurityConfig, rateLimiter *WebSocketRateLimiter) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     CheckOriginWithConfig(config),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if authError := ValidateAuthForWebSocket(r, config); authError != "" {
			logging.SecurityEvent("websocket_unauthorized", "websocket",
				"client_ip", getClientIP(r),
				"reason", authError)
			http.Error(w, "Unauthorized: "+authError, http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warn("websocket upgrade failed", "error", err.Error())
			return
		}
		conn.SetReadLimit(config.MaxMessageSize)

		client := &Client{
			hub:  hub,
			conn: conn,
			send: make(chan []byte, 256),
		}
		rateLimiter.Register(client, config.MaxMessageRate)

		select {
		case hub.register <- client:
		case <-hub.done:
			rateLimiter.Unregister(client)
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump(rateLimiter)
	}
}

// readPump consumes inbound messages, which carry no commands, and enforces
// the message rate.
func (c *Client) readPump(rateLimiter *WebSocketRateLimiter) {
	defer func() {
		rateLimiter.Unregister(c)
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn("websocket unexpected close", "error", err.Error())
			}
			return
		}

		if !rateLimiter.Allow(c) {
			logging.SecurityEvent("websocket_rate_limited", "websocket")
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Rate limit exceeded"),
				time.Now().Add(time.Second))
			return
		}
	}
}
