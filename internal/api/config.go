package api

import "time"

// Config holds server configuration.
type Config struct {
	Port              int
	RateLimitRequests int        // requests per minute, 0 disables
	RateLimitBurst    int        // burst size
	Auth              AuthConfig // API key authentication
	TLS               TLSConfig
	AllowedOrigins    []string      // CORS and WebSocket origins, empty allows all
	Workers           int           // generation job workers
	QueueSize         int           // pending generation jobs
	RequestTimeout    time.Duration // per generation, sync or job
	Version           string
}

// TLSConfig holds TLS/HTTPS configuration.
type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
}

// Defaults used when Config fields are zero.
const (
	defaultWorkers        = 2
	defaultQueueSize      = 16
	defaultRequestTimeout = 90 * time.Second
	defaultRateLimitBurst = 10
)

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = defaultRateLimitBurst
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	return c
}
