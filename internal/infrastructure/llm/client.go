// Package llm implements ticket.Generator against OpenAI-compatible chat
// completion APIs.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/orris-inc/triage/internal/domain/ticket"
	"github.com/orris-inc/triage/internal/shared/logger"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"

	// maxErrorBody bounds how much of a failed response body is kept.
	maxErrorBody = 4096
)

// ErrMissingAPIKey is returned when no credential is configured.
var ErrMissingAPIKey = errors.New("missing OPENAI_API_KEY")

// OpenAIClient streams chat completions from an OpenAI-compatible API.
type OpenAIClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	logger  logger.Interface
}

// Option configures an OpenAIClient.
type Option func(*OpenAIClient)

// WithBaseURL sets a custom API base URL.
func WithBaseURL(url string) Option {
	return func(c *OpenAIClient) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithModel sets the model used when a request names none.
func WithModel(model string) Option {
	return func(c *OpenAIClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient sets a custom HTTP client. Streaming responses are bounded
// by the request context, so the client should not set its own Timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *OpenAIClient) { c.client = hc }
}

// WithLogger sets the logger.
func WithLogger(log logger.Interface) Option {
	return func(c *OpenAIClient) { c.logger = log }
}

// NewOpenAIClient creates a new client. An empty apiKey is accepted; every
// Stream call then fails with a configuration error.
func NewOpenAIClient(apiKey string, opts ...Option) *OpenAIClient {
	c := &OpenAIClient{
		client:  &http.Client{},
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		model:   DefaultModel,
		logger:  logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether a credential is present.
func (c *OpenAIClient) Configured() bool {
	return c.apiKey != ""
}

// Model returns the default model.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Stream issues a streaming chat completion request. Errors are
// *ticket.GenerationError values.
func (c *OpenAIClient) Stream(ctx context.Context, req ticket.GenerationRequest) (ticket.FragmentStream, error) {
	if !c.Configured() {
		return nil, ticket.NewGenerationError(ticket.FailureConfiguration, ErrMissingAPIKey)
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	body := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Temperature: req.Temperature,
		Stream:      true,
	}
	if req.JSONOutput {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, ticket.NewGenerationError(ticket.FailureProvider, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, ticket.NewGenerationError(ticket.FailureNetwork, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, ticket.NewGenerationError(ticket.FailureNetwork, fmt.Errorf("http request: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warnw("chat completion request rejected",
			"model", model,
			"status", resp.StatusCode,
		)
		return nil, ticket.NewGenerationError(ticket.FailureProvider,
			fmt.Errorf("api error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}

	c.logger.Debugw("chat completion stream opened", "model", model)

	return &chatStream{
		body:    resp.Body,
		scanner: newSSEScanner(resp.Body),
	}, nil
}

// chatStream yields content deltas from a chat completion SSE stream.
type chatStream struct {
	body    io.ReadCloser
	scanner *sseScanner
	done    bool
}

func (s *chatStream) Next() (string, error) {
	for {
		if s.done {
			return "", io.EOF
		}

		if !s.scanner.Next() {
			s.done = true
			if err := s.scanner.Err(); err != nil {
				return "", ticket.NewGenerationError(ticket.FailureNetwork, fmt.Errorf("read stream: %w", err))
			}
			return "", io.EOF
		}

		data := s.scanner.Event().Data
		if data == "[DONE]" {
			s.done = true
			return "", io.EOF
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			s.done = true
			return "", ticket.NewGenerationError(ticket.FailureProvider, fmt.Errorf("decode stream chunk: %w", err))
		}
		if chunk.Error != nil && chunk.Error.Message != "" {
			s.done = true
			return "", ticket.NewGenerationError(ticket.FailureProvider,
				fmt.Errorf("stream error: %s: %s", chunk.Error.Type, chunk.Error.Message))
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				return choice.Delta.Content, nil
			}
		}
	}
}

func (s *chatStream) Close() error {
	s.done = true
	return s.body.Close()
}

// --- OpenAI wire format types ---

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	Stream         bool            `json:"stream"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}
