// Package config loads the voces service configuration from YAML with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/VocesDelReino/core/scripture"
	"github.com/FocuswithJustin/VocesDelReino/internal/logging"
)

// Config holds all service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Scripture  ScriptureConfig  `yaml:"scripture"`
	Completion CompletionConfig `yaml:"completion"`
	Library    LibraryConfig    `yaml:"library"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port              int       `yaml:"port"`
	RateLimitRequests int       `yaml:"rate_limit_requests"` // per minute, 0 disables
	RateLimitBurst    int       `yaml:"rate_limit_burst"`
	APIKeys           []string  `yaml:"api_keys"`        // empty disables auth
	AllowedOrigins    []string  `yaml:"allowed_origins"` // empty allows all
	Workers           int       `yaml:"workers"`
	QueueSize         int       `yaml:"queue_size"`
	RequestTimeout    string    `yaml:"request_timeout"`
	TLS               TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS/HTTPS configuration.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ScriptureConfig selects the verse source and the anchoring rules.
type ScriptureConfig struct {
	Backend     string `yaml:"backend"` // dataset | network
	Dataset     string `yaml:"dataset"` // empty = bundled RVR1909 sample
	Translation string `yaml:"translation"`

	// CandidateLimit bounds the keyword-search anchors put in a prompt.
	CandidateLimit int `yaml:"candidate_limit"`

	// AllowedReferences restricts the references a generated song may
	// cite. Empty means unrestricted.
	AllowedReferences []string `yaml:"allowed_references"`

	Network NetworkConfig `yaml:"network"`
}

// NetworkConfig configures the bible-api.com style verse backend.
type NetworkConfig struct {
	BaseURL     string `yaml:"base_url"`
	Translation string `yaml:"translation"`
	Timeout     string `yaml:"timeout"`
	CacheTTL    string `yaml:"cache_ttl"`
	CacheSize   int    `yaml:"cache_size"`
}

// CompletionConfig configures the text-completion backend.
type CompletionConfig struct {
	Backend     string  `yaml:"backend"` // openai | gemini | mock
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
}

// LibraryConfig configures the saved-song library.
type LibraryConfig struct {
	Path     string `yaml:"path"` // empty disables the library
	MaxSongs int    `yaml:"max_songs"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | text
}

// Backend names.
const (
	BackendDataset = "dataset"
	BackendNetwork = "network"

	CompletionOpenAI = "openai"
	CompletionGemini = "gemini"
	CompletionMock   = "mock"
)

// DefaultAllowedReferences is the reference list songs were historically
// restricted to.
var DefaultAllowedReferences = []string{
	"Psalm 23:1",
	"Psalm 27:1",
	"Psalm 46:1",
	"Psalm 91:1",
	"Psalm 103:1-5",
	"Isaiah 6:3",
	"Isaiah 40:31",
	"Isaiah 53:5",
	"Isaiah 54:10",
	"Matthew 11:28",
	"Matthew 28:20",
	"John 1:29",
	"John 3:16",
	"John 4:23-24",
	"John 14:6",
	"Romans 5:8",
	"Romans 8:1",
	"Romans 8:28",
	"2 Corinthians 5:17",
	"Galatians 2:20",
	"Ephesians 2:8-9",
	"Ephesians 3:20",
	"Philippians 4:6-7",
	"Philippians 4:13",
	"Colossians 1:13-14",
	"Hebrews 4:16",
	"Hebrews 12:2",
	"Revelation 5:12",
	"Revelation 19:6",
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8080,
			RateLimitRequests: 60,
			RateLimitBurst:    10,
			Workers:           2,
			QueueSize:         16,
			RequestTimeout:    "90s",
		},
		Scripture: ScriptureConfig{
			Backend:           BackendDataset,
			Translation:       "RVR1909",
			CandidateLimit:    5,
			AllowedReferences: slices.Clone(DefaultAllowedReferences),
			Network: NetworkConfig{
				BaseURL:     "https://bible-api.com",
				Translation: "web",
				Timeout:     "5s",
				CacheTTL:    "1h",
				CacheSize:   512,
			},
		},
		Completion: CompletionConfig{
			Backend:     CompletionOpenAI,
			Model:       "gpt-4o-mini",
			BaseURL:     "https://api.openai.com/v1",
			Temperature: 0.9,
			Timeout:     "60s",
		},
		Library: LibraryConfig{
			Path:     "voces.db",
			MaxSongs: 50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from a YAML file on top of the defaults, then
// applies environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// API keys may be present, so the file is private.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("VOCES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("VOCES_API_KEY"); v != "" {
		c.Server.APIKeys = []string{v}
	}
	if v := os.Getenv("VOCES_DATASET"); v != "" {
		c.Scripture.Dataset = v
	}
	if v := os.Getenv("VOCES_SCRIPTURE_BACKEND"); v != "" {
		c.Scripture.Backend = v
	}
	if v := os.Getenv("VOCES_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	// Completion keys apply to their own backend only.
	switch c.Completion.Backend {
	case CompletionOpenAI:
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			c.Completion.APIKey = key
		}
	case CompletionGemini:
		if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
			c.Completion.APIKey = key
		} else if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			c.Completion.APIKey = key
		}
	}
}

// Validate checks the configuration. A missing completion API key is not
// an error: the server starts and generation reports it per request.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Workers < 1 {
		return fmt.Errorf("server.workers must be at least 1")
	}
	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		return fmt.Errorf("TLS enabled but cert_file or key_file is empty")
	}

	switch c.Scripture.Backend {
	case BackendDataset, BackendNetwork:
	default:
		return fmt.Errorf("invalid scripture backend: %s (valid: %s, %s)", c.Scripture.Backend, BackendDataset, BackendNetwork)
	}
	for _, ref := range c.Scripture.AllowedReferences {
		if _, ok := scripture.Parse(ref); !ok {
			return fmt.Errorf("scripture.allowed_references: %q is not a reference", ref)
		}
	}

	switch c.Completion.Backend {
	case CompletionOpenAI, CompletionGemini, CompletionMock:
	default:
		return fmt.Errorf("invalid completion backend: %s (valid: %s, %s, %s)", c.Completion.Backend, CompletionOpenAI, CompletionGemini, CompletionMock)
	}
	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2 {
		return fmt.Errorf("completion.temperature must be within [0, 2]")
	}

	if c.Library.MaxSongs < 1 {
		return fmt.Errorf("library.max_songs must be at least 1")
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		return err
	}

	for name, d := range map[string]string{
		"server.request_timeout":     c.Server.RequestTimeout,
		"scripture.network.timeout":   c.Scripture.Network.Timeout,
		"scripture.network.cache_ttl": c.Scripture.Network.CacheTTL,
		"completion.timeout":          c.Completion.Timeout,
	} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// duration parses s, falling back to def when empty or malformed.
func duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetRequestTimeout returns the per-request generation timeout.
func (c *Config) GetRequestTimeout() time.Duration {
	return duration(c.Server.RequestTimeout, 90*time.Second)
}

// GetNetworkTimeout returns the verse API timeout.
func (c *Config) GetNetworkTimeout() time.Duration {
	return duration(c.Scripture.Network.Timeout, 5*time.Second)
}

// GetCacheTTL returns how long verse API responses are cached.
func (c *Config) GetCacheTTL() time.Duration {
	return duration(c.Scripture.Network.CacheTTL, time.Hour)
}

// GetCompletionTimeout returns the completion call timeout.
func (c *Config) GetCompletionTimeout() time.Duration {
	return duration(c.Completion.Timeout, 60*time.Second)
}

// LogLevel returns the parsed log level, defaulting to info.
func (c *Config) LogLevel() logging.Level {
	l, _ := logging.ParseLevel(c.Logging.Level)
	return l
}

// LogFormat returns the parsed log format, defaulting to JSON.
func (c *Config) LogFormat() logging.Format {
	f, _ := logging.ParseFormat(c.Logging.Format)
	return f
}
