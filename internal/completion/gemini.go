package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// Gemini calls Google's Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini client. Without an API key the client is
// created empty and every call returns ErrMissingAPIKey.
func NewGemini(ctx context.Context, opts Options) (*Gemini, error) {
	model := opts.Model
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = defaultGeminiModel
	}
	g := &Gemini{model: model}
	if opts.APIKey == "" {
		return g, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	g.client = client
	return g, nil
}

// Name returns "gemini".
func (g *Gemini) Name() string { return "gemini" }

// Complete sends req as a single user turn.
func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	if g.client == nil {
		return "", ErrMissingAPIKey
	}

	model := g.model
	if req.Model != "" && !strings.HasPrefix(req.Model, "gpt-") {
		model = req.Model
	}

	cfg := &genai.GenerateContentConfig{}
	if req.Temperature >= 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", g.classify(ctx, err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrResponseInvalid
	}
	return text, nil
}

// classify maps genai errors onto the shared error classes.
func (g *Gemini) classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return g.fromAPIError(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return g.fromAPIError(*apiErrPtr)
	}
	return &UpstreamError{Backend: g.Name(), Message: err.Error()}
}

func (g *Gemini) fromAPIError(e genai.APIError) error {
	if e.Code == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return &UpstreamError{Backend: g.Name(), Status: e.Code, Message: e.Message}
}
