package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
)

// OpenAI calls the chat completions endpoint of an OpenAI compatible API.
type OpenAI struct {
	url    string
	apiKey string
	model  string
	do     func(*http.Request) (*http.Response, error)
}

// NewOpenAI builds a chat completions client.
func NewOpenAI(opts Options) *OpenAI {
	base := opts.BaseURL
	if base == "" {
		base = defaultOpenAIBaseURL
	}
	model := opts.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	hc := &http.Client{Timeout: timeout}

	return &OpenAI{
		url:    strings.TrimRight(base, "/") + "/chat/completions",
		apiKey: opts.APIKey,
		model:  model,
		do:     hc.Do,
	}
}

// Name returns "openai".
func (c *OpenAI) Name() string { return "openai" }

type oaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaResponseFormat struct {
	Type string `json:"type"`
}

type oaReq struct {
	Model          string            `json:"model"`
	Messages       []oaMessage       `json:"messages"`
	Temperature    *float64          `json:"temperature,omitempty"`
	ResponseFormat *oaResponseFormat `json:"response_format,omitempty"`
}

type oaResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends req as a single user message.
func (c *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	body := oaReq{
		Model:    c.model,
		Messages: []oaMessage{{Role: "user", Content: req.Prompt}},
	}
	if req.Model != "" {
		body.Model = req.Model
	}
	if req.Temperature >= 0 {
		t := req.Temperature
		body.Temperature = &t
	}
	if req.JSON {
		body.ResponseFormat = &oaResponseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(&body)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
		}
		return "", &UpstreamError{Backend: c.Name(), Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", &UpstreamError{
			Backend: c.Name(),
			Status:  resp.StatusCode,
			Message: strings.TrimSpace(string(slurp)),
		}
	}

	var out oaResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode: %w", ErrResponseInvalid)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrResponseInvalid
	}
	return out.Choices[0].Message.Content, nil
}
