package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/OireachtasAI/oireachtas-mvp/pkg/resilience"
)

// DefaultOllamaDims matches nomic-embed-text.
const DefaultOllamaDims = 768

type ollamaEmbedder struct {
	baseURL string
	model   string
	dims    int
	client  *http.Client
	breaker *resilience.Breaker
}

func newOllamaEmbedder(cfg Config) *ollamaEmbedder {
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultOllamaDims
	}
	model := cfg.EmbedModel
	if model == "" {
		model = "nomic-embed-text"
	}
	return &ollamaEmbedder{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: 60 * time.Second},
		breaker: resilience.NewBreaker(resilience.BreakerOpts{}),
	}
}

type ollamaEmbedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResp struct {
	Embedding []float64 `json:"embedding"`
}

func (e *ollamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, _ := json.Marshal(ollamaEmbedReq{Model: e.model, Prompt: text})
	body, err := guardedPost(ctx, e.breaker, e.client, e.baseURL+"/api/embeddings", nil, payload)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}

	var result ollamaEmbedResp
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("ollama embed decode: %w", err)
	}

	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

// EmbedBatch loops single requests; the daemon has no batch endpoint.
func (e *ollamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d]: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (e *ollamaEmbedder) Dimensions() int { return e.dims }
func (e *ollamaEmbedder) Name() string    { return "ollama/" + e.model }

type ollamaChatter struct {
	baseURL string
	model   string
	client  *http.Client
	breaker *resilience.Breaker
}

func newOllamaChatter(cfg Config) *ollamaChatter {
	model := cfg.ChatModel
	if model == "" {
		model = "llama3.2"
	}
	return &ollamaChatter{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
		breaker: resilience.NewBreaker(resilience.BreakerOpts{}),
	}
}

type ollamaChatReq struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResp struct {
	Message   Message `json:"message"`
	Done      bool    `json:"done"`
	EvalCount int     `json:"eval_count"`
}

func (c *ollamaChatter) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	payload, _ := json.Marshal(ollamaChatReq{
		Model:    c.model,
		Messages: req.Messages,
		Stream:   false,
		Options:  map[string]any{"temperature": req.Temperature},
	})
	body, err := guardedPost(ctx, c.breaker, c.client, c.baseURL+"/api/chat", nil, payload)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("ollama chat: %w", err)
	}

	var result ollamaChatResp
	if err := json.Unmarshal(body, &result); err != nil {
		return ChatResponse{}, fmt.Errorf("ollama chat decode: %w", err)
	}
	return ChatResponse{Content: result.Message.Content, TokensUsed: result.EvalCount}, nil
}

// ChatStream reads the daemon's NDJSON stream and forwards token deltas.
func (c *ollamaChatter) ChatStream(ctx context.Context, req ChatRequest, onToken func(string) error) error {
	payload, _ := json.Marshal(ollamaChatReq{
		Model:    c.model,
		Messages: req.Messages,
		Stream:   true,
		Options:  map[string]any{"temperature": req.Temperature},
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", strings.NewReader(string(payload)))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var resp *http.Response
	err = c.breaker.Call(ctx, func(context.Context) error {
		r, derr := c.client.Do(httpReq)
		if derr != nil {
			return fmt.Errorf("ollama chat stream: %w", derr)
		}
		if r.StatusCode != http.StatusOK {
			r.Body.Close()
			return fmt.Errorf("ollama chat stream: status %d", r.StatusCode)
		}
		resp = r
		return nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	for scanner.Scan() {
		var chunk ollamaChatResp
		if err := json.Unmarshal(scanner.Bytes(), &chunk); err != nil {
			continue
		}
		if chunk.Message.Content != "" {
			if err := onToken(chunk.Message.Content); err != nil {
				return err
			}
		}
		if chunk.Done {
			return nil
		}
	}
	return scanner.Err()
}

func (c *ollamaChatter) Name() string { return "ollama/" + c.model }
