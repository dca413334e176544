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

// DefaultOpenAIDims matches text-embedding-3-small.
const DefaultOpenAIDims = 1536

type openAIEmbedder struct {
	baseURL string
	apiKey  string
	model   string
	dims    int
	client  *http.Client
	breaker *resilience.Breaker
}

func newOpenAIEmbedder(cfg Config) *openAIEmbedder {
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultOpenAIDims
	}
	model := cfg.EmbedModel
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &openAIEmbedder{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: 60 * time.Second},
		breaker: resilience.NewBreaker(resilience.BreakerOpts{}),
	}
}

type openAIEmbedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (e *openAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *openAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	payload, _ := json.Marshal(openAIEmbedReq{Model: e.model, Input: texts})
	body, err := guardedPost(ctx, e.breaker, e.client, e.baseURL+"/v1/embeddings", e.headers(), payload)
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}

	var result openAIEmbedResp
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("openai embed decode: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: got %d embeddings for %d inputs", len(result.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai embed: index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (e *openAIEmbedder) Dimensions() int { return e.dims }
func (e *openAIEmbedder) Name() string    { return "openai/" + e.model }

func (e *openAIEmbedder) headers() map[string]string {
	if e.apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + e.apiKey}
}

type openAIChatter struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	breaker *resilience.Breaker
}

func newOpenAIChatter(cfg Config) *openAIChatter {
	model := cfg.ChatModel
	if model == "" {
		model = "gpt-4.1-nano"
	}
	return &openAIChatter{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
		breaker: resilience.NewBreaker(resilience.BreakerOpts{}),
	}
}

type openAIChatReq struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type openAIChatResp struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *openAIChatter) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	payload, _ := json.Marshal(openAIChatReq{
		Model:       c.model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	body, err := guardedPost(ctx, c.breaker, c.client, c.baseURL+"/v1/chat/completions", c.headers(), payload)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("openai chat: %w", err)
	}

	var result openAIChatResp
	if err := json.Unmarshal(body, &result); err != nil {
		return ChatResponse{}, fmt.Errorf("openai chat decode: %w", err)
	}
	if len(result.Choices) == 0 {
		return ChatResponse{}, fmt.Errorf("openai chat: no choices in response")
	}
	return ChatResponse{
		Content:    result.Choices[0].Message.Content,
		TokensUsed: result.Usage.TotalTokens,
	}, nil
}

// chatStreamChunk is one SSE data line of a streamed completion.
type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *openAIChatter) ChatStream(ctx context.Context, req ChatRequest, onToken func(string) error) error {
	payload, _ := json.Marshal(openAIChatReq{
		Model:       c.model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", strings.NewReader(string(payload)))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers() {
		httpReq.Header.Set(k, v)
	}

	// The dial settles the breaker; mid-stream failures do not.
	var resp *http.Response
	err = c.breaker.Call(ctx, func(context.Context) error {
		r, derr := c.client.Do(httpReq)
		if derr != nil {
			return fmt.Errorf("openai chat stream: %w", derr)
		}
		if r.StatusCode != http.StatusOK {
			r.Body.Close()
			return fmt.Errorf("openai chat stream: status %d", r.StatusCode)
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
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return nil
		}
		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			if err := onToken(chunk.Choices[0].Delta.Content); err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}

func (c *openAIChatter) Name() string { return "openai/" + c.model }

func (c *openAIChatter) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + c.apiKey}
}
