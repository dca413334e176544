// Package main implements the browser front-end for the speeches explorer.
// It serves an embedded single-page UI and streams answers over SSE: a
// sources event with the retrieved quotes, token events as the model
// answers, then a done event.
package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OireachtasAI/oireachtas-mvp/engine/domain"
	"github.com/OireachtasAI/oireachtas-mvp/engine/graph"
	"github.com/OireachtasAI/oireachtas-mvp/engine/members"
	"github.com/OireachtasAI/oireachtas-mvp/engine/rag"
	"github.com/OireachtasAI/oireachtas-mvp/engine/semantic"
	"github.com/OireachtasAI/oireachtas-mvp/pkg/llm"
	"github.com/OireachtasAI/oireachtas-mvp/pkg/mid"
	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

//go:embed index.html
var indexHTML []byte

// fallbackChunkRunes sizes the token events emitted when the provider
// cannot stream and the whole answer arrives at once.
const fallbackChunkRunes = 200

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	port := envOr("PORT", "8090")
	qdrantAddr := envOr("QDRANT_URL", "localhost:6334")
	collection := envOr("QDRANT_COLLECTION", semantic.DefaultCollection)

	reg := members.Default()
	if path := os.Getenv("MEMBERS_PATH"); path != "" {
		if err := reg.LoadFile(path); err != nil {
			return fmt.Errorf("load members %s: %w", path, err)
		}
	}

	llmCfg := llm.Config{
		Provider:   envOr("LLM_PROVIDER", "openai"),
		BaseURL:    os.Getenv("LLM_BASE_URL"),
		APIKey:     os.Getenv("OPENAI_API_KEY"),
		EmbedModel: os.Getenv("EMBED_MODEL"),
		ChatModel:  envOr("CHAT_MODEL", "gpt-4.1-nano"),
	}
	embedder, err := llm.NewEmbedder(llmCfg)
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	chatter, err := llm.NewChatter(llmCfg)
	if err != nil {
		return fmt.Errorf("chatter: %w", err)
	}

	store, err := semantic.New(qdrantAddr, collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer store.Close()

	var enricher rag.GraphEnricher
	if url := os.Getenv("NEO4J_URL"); url != "" {
		driver, err := neo4j.NewDriverWithContext(url, neo4j.BasicAuth(envOr("NEO4J_USER", "neo4j"), envOr("NEO4J_PASS", "password"), ""))
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		defer driver.Close(ctx)
		enricher = graph.NewEnricher(graph.New(driver))
	}

	svc := rag.New(embedder, chatter, store, reg, enricher, rag.DefaultOptions(), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(indexHTML)
	})
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /api/speakers", handleSpeakers(reg))
	mux.HandleFunc("POST /api/stream", handleStream(svc, chatter, logger))

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(envOr("CORS_ORIGIN", "*")),
	)

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("web UI starting", "port", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// streamService is the slice of rag.Service the stream handler uses.
type streamService interface {
	Resolve(speaker string) (domain.Member, error)
	Search(ctx context.Context, speaker, topic string) ([]semantic.SearchResult, error)
	Prompt(ctx context.Context, speaker, topic string, results []semantic.SearchResult) []llm.Message
	Options() rag.Options
}

type memberSuggester interface {
	All() []domain.Member
	Suggest(name string, n int) []string
}

func handleSpeakers(reg memberSuggester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		var names []string
		if q == "" {
			for _, m := range reg.All() {
				names = append(names, m.Name)
			}
		} else {
			names = reg.Suggest(q, 10)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"speakers": names})
	}
}

// streamRequest is the JSON body for POST /api/stream.
type streamRequest struct {
	Speaker string `json:"speaker"`
	Topic   string `json:"topic"`
}

// handleStream resolves and searches before committing to SSE, so
// validation and resolution failures still return plain JSON statuses.
// Once streaming starts, failures become error events.
func handleStream(svc streamService, chat llm.Chatter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req streamRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body", nil)
			return
		}
		if err := domain.ValidateSpeakerQuery(domain.SpeakerQuery{Speaker: req.Speaker, Topic: req.Topic}); err != nil {
			jsonError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}

		member, err := svc.Resolve(req.Speaker)
		if err != nil {
			var ue *rag.UnknownSpeakerError
			if errors.As(err, &ue) {
				jsonError(w, http.StatusNotFound, ue.Error(), ue.Suggestions)
				return
			}
			logger.Error("resolve failed", "err", err)
			jsonError(w, http.StatusBadGateway, "upstream failure", nil)
			return
		}

		ctx := r.Context()
		results, err := svc.Search(ctx, member.Name, req.Topic)
		if err != nil {
			logger.Error("search failed", "err", err)
			jsonError(w, http.StatusBadGateway, "upstream failure", nil)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		sources := make([]rag.Source, len(results))
		for i, res := range results {
			sources[i] = rag.Source{
				ID:      res.ID,
				Speaker: res.Speaker,
				URL:     res.URL,
				Title:   res.Title,
				Date:    res.Date,
				Score:   res.Score,
			}
		}
		emitJSON(w, flusher, "sources", sources)

		// Nothing indexed: fixed answer, never a model call.
		if len(results) == 0 {
			emitToken(w, flusher, rag.Sentinel(member.Name, req.Topic))
			emit(w, flusher, "done", "{}")
			return
		}

		emitToken(w, flusher, rag.Headline(member.Name, req.Topic)+"\n\n")

		opts := svc.Options()
		chatReq := llm.ChatRequest{
			Messages:    svc.Prompt(ctx, member.Name, req.Topic, results),
			Temperature: opts.Temperature,
			MaxTokens:   opts.MaxTokens,
		}

		if sc, ok := chat.(llm.StreamChatter); ok {
			err = sc.ChatStream(ctx, chatReq, func(token string) error {
				emitToken(w, flusher, token)
				return nil
			})
			if err != nil {
				logger.Error("chat stream failed", "err", err)
				emitJSON(w, flusher, "error", map[string]string{"error": "chat failed"})
				return
			}
			emit(w, flusher, "done", "{}")
			return
		}

		resp, err := chat.Chat(ctx, chatReq)
		if err != nil {
			logger.Error("chat failed", "err", err)
			emitJSON(w, flusher, "error", map[string]string{"error": "chat failed"})
			return
		}
		for _, part := range chunkRunes(resp.Content, fallbackChunkRunes) {
			emitToken(w, flusher, part)
		}
		emit(w, flusher, "done", "{}")
	}
}

func emit(w http.ResponseWriter, f http.Flusher, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	f.Flush()
}

func emitJSON(w http.ResponseWriter, f http.Flusher, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	emit(w, f, event, string(data))
}

func emitToken(w http.ResponseWriter, f http.Flusher, token string) {
	emitJSON(w, f, "token", map[string]string{"token": token})
}

// chunkRunes splits s into rune-safe pieces of at most n runes.
func chunkRunes(s string, n int) []string {
	runes := []rune(s)
	var parts []string
	for len(runes) > 0 {
		end := n
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[:end]))
		runes = runes[end:]
	}
	return parts
}

func jsonError(w http.ResponseWriter, status int, msg string, suggestions []string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"error": msg}
	if len(suggestions) > 0 {
		body["suggestions"] = suggestions
	}
	json.NewEncoder(w).Encode(body)
}
