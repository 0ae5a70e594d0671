// Package llm talks to the chat-completions endpoint and turns raw model
// output into typed replies for the orchestrator.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/avendano/forecourt/internal/config"
)

// Message is a single chat-completions message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Responder submits a message list to a completion backend and returns the
// raw assistant text. Implemented by Client; stubbed in tests.
type Responder interface {
	Respond(ctx context.Context, msgs []Message) (string, error)
}

// Client calls an OpenAI-compatible chat-completions endpoint over HTTP.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	log         *zap.Logger
}

// NewClient creates a Client from LLM configuration.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
		log: logger.Named("llm"),
	}
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Respond submits msgs synchronously and returns the first choice's content.
// Transport failures, non-2xx statuses, and empty responses are errors; the
// caller decides how to recover.
func (c *Client) Respond(ctx context.Context, msgs []Message) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Stream:      false,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("llm: completion endpoint returned %s", resp.Status)
	}

	var parsed completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm: empty response from completion endpoint")
	}

	c.log.Debug("completion",
		zap.String("model", c.model),
		zap.Int("messages", len(msgs)),
		zap.Duration("latency", time.Since(start)))

	return parsed.Choices[0].Message.Content, nil
}
