// Package llm provides HTTP clients for hosted embedding and chat models.
// Two providers are supported: OpenAI-compatible APIs (the default) and a
// local Ollama daemon. Transient upstream failures (429, 5xx) are retried
// with exponential backoff, and each client runs behind a circuit breaker
// that opens after repeated exhausted retries.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/OireachtasAI/oireachtas-mvp/pkg/resilience"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest asks the model to complete a conversation.
type ChatRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// ChatResponse is the model's reply.
type ChatResponse struct {
	Content    string
	TokensUsed int
}

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}

// Chatter completes conversations.
type Chatter interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	Name() string
}

// StreamChatter is implemented by providers that can stream tokens.
// Callers should type-assert and fall back to Chat when absent.
type StreamChatter interface {
	ChatStream(ctx context.Context, req ChatRequest, onToken func(string) error) error
}

// Config selects and configures a provider.
type Config struct {
	Provider   string // "openai" (default) or "ollama"
	BaseURL    string
	APIKey     string
	EmbedModel string
	ChatModel  string
	Dimensions int // embedding width; used for collection creation
}

// NewEmbedder builds an Embedder for the configured provider.
func NewEmbedder(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "", "openai":
		return newOpenAIEmbedder(cfg), nil
	case "ollama":
		return newOllamaEmbedder(cfg), nil
	}
	return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
}

// NewChatter builds a Chatter for the configured provider.
func NewChatter(cfg Config) (Chatter, error) {
	switch cfg.Provider {
	case "", "openai":
		return newOpenAIChatter(cfg), nil
	case "ollama":
		return newOllamaChatter(cfg), nil
	}
	return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
}

const maxRetries = 3

// retryBaseWait is the first backoff step; doubled per attempt.
var retryBaseWait = time.Second

// post sends a JSON payload, retrying 429 and 5xx responses with
// exponential backoff. A fresh request is built per attempt because the
// body reader is consumed.
func post(ctx context.Context, client *http.Client, url string, headers map[string]string, payload []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := retryBaseWait * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200))
			continue
		default:
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200))
		}
	}
	return nil, fmt.Errorf("llm: retries exhausted: %w", lastErr)
}

// guardedPost runs post behind b. The entire retry loop settles the breaker
// once, so only exhausted retries count as a failure.
func guardedPost(ctx context.Context, b *resilience.Breaker, client *http.Client, url string, headers map[string]string, payload []byte) ([]byte, error) {
	var body []byte
	err := b.Call(ctx, func(ctx context.Context) error {
		var perr error
		body, perr = post(ctx, client, url, headers, payload)
		return perr
	})
	return body, err
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
