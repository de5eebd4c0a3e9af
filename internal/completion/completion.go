// Package completion talks to hosted text-completion services: prompt in,
// free text out.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error classes shared by every backend.
var (
	ErrRateLimited     = errors.New("completion rate limited")
	ErrResponseInvalid = errors.New("completion response invalid")
	ErrMissingAPIKey   = errors.New("completion API key missing")
)

// UpstreamError is a non-success reply from the completion service.
type UpstreamError struct {
	Backend string
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s upstream %d", e.Backend, e.Status)
	}
	return fmt.Sprintf("%s upstream %d: %s", e.Backend, e.Status, e.Message)
}

// Temporary reports whether a retry could succeed.
func (e *UpstreamError) Temporary() bool {
	return e.Status == http.StatusRequestTimeout || e.Status/100 == 5
}

// Request is one completion call.
type Request struct {
	Prompt      string
	Model       string  // empty uses the backend default
	Temperature float64 // negative uses the backend default
	JSON        bool    // ask for a JSON object reply where supported
}

// Client is a completion backend.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// Options configures New.
type Options struct {
	Backend string // openai | gemini | mock
	Model   string
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// New builds the backend named by opts.Backend. A missing API key is not an
// error here; the client reports ErrMissingAPIKey when called.
func New(ctx context.Context, opts Options) (Client, error) {
	switch opts.Backend {
	case "openai", "":
		return NewOpenAI(opts), nil
	case "gemini":
		g, err := NewGemini(ctx, opts)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "mock":
		return NewMock(DefaultMockReply), nil
	}
	return nil, fmt.Errorf("unknown completion backend: %s", opts.Backend)
}

// Outcome classifies err for metrics and logs.
func Outcome(err error) string {
	var up *UpstreamError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrMissingAPIKey):
		return "missing_key"
	case errors.Is(err, ErrResponseInvalid):
		return "invalid_response"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &up):
		return "upstream"
	}
	return "error"
}
