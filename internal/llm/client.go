// Package llm sends assembled evidence prompts to an OpenAI-compatible chat
// completions endpoint (LM Studio, Ollama's /v1, vLLM, OpenAI).
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
	"time"
)

// Default configuration values.
const (
	DefaultBaseURL     = "http://localhost:1234/v1"
	DefaultModel       = "mistral"
	DefaultTemperature = 0.5
	DefaultTimeout     = 120 * time.Second

	chatCompletionsPath = "/chat/completions"
	maxErrorBodyBytes   = 1024
)

// ErrAdapter marks any failure talking to the completion service.
var ErrAdapter = errors.New("llm adapter error")

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("llm returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("llm returned status %d: %s", e.StatusCode, e.Body)
}

// Unwrap lets errors.Is(err, ErrAdapter) match status errors.
func (e *StatusError) Unwrap() error {
	return ErrAdapter
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Config holds configuration for the client.
type Config struct {
	// BaseURL is the API base URL, without the /chat/completions suffix.
	BaseURL string

	// Model is the chat model to request.
	Model string

	// Temperature is sent with every request. Nil selects DefaultTemperature.
	Temperature *float64

	// APIKey is optional; local servers usually ignore it.
	APIKey string

	// Timeout bounds each request.
	Timeout time.Duration
}

// Client is a minimal chat completions client.
type Client struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
}

// chatRequest is the /chat/completions request format.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

// chatMessage is the chat message format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the /chat/completions response format.
type chatResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewClient creates a client, filling unset fields with defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	temp := DefaultTemperature
	if cfg.Temperature != nil {
		temp = *cfg.Temperature
	}

	return &Client{
		client:      &http.Client{Timeout: cfg.Timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: temp,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends prompt as a single user message and returns the content of
// the first choice. Every failure wraps ErrAdapter; a response without
// choices[0].message.content is a failure, never an empty answer.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshaling request: %v", ErrAdapter, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatCompletionsPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %v", ErrAdapter, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAdapter, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrAdapter, err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrAdapter, result.Error.Message)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message == nil || result.Choices[0].Message.Content == nil {
		return "", fmt.Errorf("%w: response has no choices[0].message.content", ErrAdapter)
	}

	return *result.Choices[0].Message.Content, nil
}
