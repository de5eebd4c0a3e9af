// Package api provides the Voces del Reino REST API server.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/FocuswithJustin/VocesDelReino/core/verses"
	"github.com/FocuswithJustin/VocesDelReino/internal/anchor"
	"github.com/FocuswithJustin/VocesDelReino/internal/library"
	"github.com/FocuswithJustin/VocesDelReino/internal/logging"
	"github.com/FocuswithJustin/VocesDelReino/internal/metrics"
	"github.com/FocuswithJustin/VocesDelReino/internal/server"
	"github.com/FocuswithJustin/VocesDelReino/internal/song"
)

// Deps are the services the API serves. Only Store is required; a nil
// Generator or Library makes those endpoints answer 503.
type Deps struct {
	Store            *verses.LazyStore
	Lookup           anchor.Lookup // defaults to the dataset
	ScriptureBackend string        // reported by /health
	Generator        *song.Generator
	Library          *library.Library
	Metrics          *metrics.Metrics
}

// Server is the HTTP API.
type Server struct {
	cfg              Config
	store            *verses.LazyStore
	lookup           anchor.Lookup
	scriptureBackend string
	generator        *song.Generator
	library          *library.Library
	metrics          *metrics.Metrics

	hub         *Hub
	wsLimiter   *WebSocketRateLimiter
	rateLimiter *RateLimiter
	jobs        *JobStore
	pool        *WorkerPool[string, jobOutcome]

	baseCtx    context.Context
	cancelJobs context.CancelFunc
	started    time.Time

	digestOnce sync.Once
	digest     string

	closeOnce sync.Once
}

// New validates cfg and starts the WebSocket hub and job workers. Call
// Close to stop them.
func New(cfg Config, deps Deps) (*Server, error) {
	cfg = cfg.withDefaults()

	if deps.Store == nil {
		return nil, errors.New("api: verse store is required")
	}
	if err := ValidateAuthConfig(cfg.Auth); err != nil {
		return nil, fmt.Errorf("invalid auth config: %w", err)
	}
	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			return nil, fmt.Errorf("TLS enabled but cert or key file not specified")
		}
		if _, err := os.Stat(cfg.TLS.CertFile); err != nil {
			return nil, fmt.Errorf("TLS cert file not found: %w", err)
		}
		if _, err := os.Stat(cfg.TLS.KeyFile); err != nil {
			return nil, fmt.Errorf("TLS key file not found: %w", err)
		}
	}

	s := &Server{
		cfg:              cfg,
		store:            deps.Store,
		lookup:           deps.Lookup,
		scriptureBackend: deps.ScriptureBackend,
		generator:        deps.Generator,
		library:          deps.Library,
		metrics:          deps.Metrics,
		hub:              NewHub(),
		wsLimiter:        NewWebSocketRateLimiter(),
		jobs:             NewJobStore(),
		started:          time.Now(),
	}
	if s.lookup == nil {
		s.lookup = anchor.DatasetLookup{Store: deps.Store}
	}
	if s.scriptureBackend == "" {
		s.scriptureBackend = "dataset"
	}
	if cfg.RateLimitRequests > 0 {
		s.rateLimiter = NewRateLimiter(RateLimiterConfig{
			RequestsPerMinute: cfg.RateLimitRequests,
			BurstSize:         cfg.RateLimitBurst,
		})
	}

	s.baseCtx, s.cancelJobs = context.WithCancel(context.Background())
	go s.hub.Run()

	s.pool = NewWorkerPool[string, jobOutcome](cfg.Workers, cfg.QueueSize)
	if s.generator != nil {
		s.pool.Start(s.runJob)
	} else {
		s.pool.Start(s.rejectJob)
	}
	go s.collectJobResults()

	return s, nil
}

// rejectJob fails jobs when no generator is configured.
func (s *Server) rejectJob(id string) jobOutcome {
	s.jobs.update(id, func(j *Job) {
		j.Status = JobStatusFailed
		j.Error = &APIError{Code: "GENERATION_UNAVAILABLE", Message: "Song generation is not configured"}
	})
	return jobOutcome{ID: id, Status: JobStatusFailed}
}

// routes configures all HTTP routes.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/api/scripture/lookup", s.handleScriptureLookup)
	mux.HandleFunc("/api/scripture/search", s.handleScriptureSearch)
	mux.HandleFunc("/api/scripture/parse", s.handleScriptureParse)
	mux.HandleFunc("/api/chords/pitches", s.handleChordPitches)
	mux.HandleFunc("/api/songs", s.handleSongs)
	mux.HandleFunc("/api/songs/", s.handleSongByID)
	mux.HandleFunc("/jobs", s.handleJobs)
	mux.HandleFunc("/jobs/", s.handleJobByID)
	mux.Handle("/metrics", s.metrics.Handler())

	wsConfig := DefaultWebSocketSecurityConfig()
	if len(s.cfg.AllowedOrigins) > 0 {
		wsConfig.AllowedOrigins = s.cfg.AllowedOrigins
	}
	wsConfig.RequireAuth = s.cfg.Auth.Enabled
	wsConfig.AuthConfig = s.cfg.Auth
	mux.HandleFunc("/ws", SecureWebSocketHandler(s.hub, wsConfig, s.wsLimiter))

	return mux
}

// Handler returns the routes wrapped in the middleware chain. From the
// outside in: request logging, metrics, CORS, rate limiting,
// authentication, security headers.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = server.SecurityHeadersWithCSP(server.APICSPConfig(), s.routes())

	if s.cfg.Auth.Enabled {
		handler = AuthMiddleware(s.cfg.Auth, handler)
		logging.SecurityEvent("authentication_configured", "api",
			"enabled", true,
			"keys", len(s.cfg.Auth.APIKeys))
	} else {
		logging.SecurityEvent("authentication_configured", "api",
			"enabled", false,
			"note", "all requests allowed")
	}

	if s.rateLimiter != nil {
		handler = s.rateLimiter.Middleware(handler)
		logging.Info("rate limiting enabled",
			"requests_per_minute", s.cfg.RateLimitRequests,
			"burst_size", s.cfg.RateLimitBurst)
	}

	handler = server.CORSMiddlewareWithConfig(server.CORSConfig{AllowedOrigins: s.cfg.AllowedOrigins}, handler)
	if len(s.cfg.AllowedOrigins) > 0 {
		logging.SecurityEvent("cors_configured", "api",
			"mode", "restricted",
			"allowed_origins_count", len(s.cfg.AllowedOrigins))
	} else {
		logging.SecurityEvent("cors_configured", "api",
			"mode", "permissive",
			"note", "allowing all origins (*)")
	}

	handler = s.metrics.Middleware(handler)
	return logging.CombinedMiddleware(handler)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	protocol, wsProtocol := "http", "ws"
	if s.cfg.TLS.Enabled {
		protocol, wsProtocol = "https", "wss"
		logging.Info("TLS enabled", "cert_file", s.cfg.TLS.CertFile)
	} else {
		logging.Warn("TLS disabled - using plain HTTP",
			"recommendation", "consider using TLS or reverse proxy for production")
	}
	logging.ServerStartup("rest_api", protocol, s.cfg.Port,
		"websocket_protocol", wsProtocol,
		"scripture_backend", s.scriptureBackend,
		"workers", s.cfg.Workers)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			err = srv.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close cancels running jobs and stops the hub, workers and rate limiter.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.jobs.CancelAll()
		s.cancelJobs()
		s.pool.Close()
		s.hub.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
	})
}
