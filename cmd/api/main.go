// Package main implements the Oireachtas query API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/OireachtasAI/oireachtas-mvp/engine/domain"
	"github.com/OireachtasAI/oireachtas-mvp/engine/graph"
	"github.com/OireachtasAI/oireachtas-mvp/engine/members"
	"github.com/OireachtasAI/oireachtas-mvp/engine/rag"
	"github.com/OireachtasAI/oireachtas-mvp/engine/semantic"
	"github.com/OireachtasAI/oireachtas-mvp/pkg/cache"
	"github.com/OireachtasAI/oireachtas-mvp/pkg/llm"
	"github.com/OireachtasAI/oireachtas-mvp/pkg/metrics"
	"github.com/OireachtasAI/oireachtas-mvp/pkg/mid"
	"github.com/OireachtasAI/oireachtas-mvp/pkg/resilience"
	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
)

// Config holds all environment-based configuration. Neo4j and Redis are
// optional: leaving their URLs empty runs the API without graph enrichment
// or answer caching.
type Config struct {
	Port        string
	Provider    string
	LLMBaseURL  string
	LLMAPIKey   string
	EmbedModel  string
	ChatModel   string
	QdrantURL   string
	Collection  string
	Neo4jURL    string
	Neo4jUser   string
	Neo4jPass   string
	RedisURL    string
	MembersPath string
	CORSOrigin  string
	RateRPS     float64
	RateBurst   int
}

func loadConfig() Config {
	return Config{
		Port:        envOr("PORT", "8080"),
		Provider:    envOr("LLM_PROVIDER", "openai"),
		LLMBaseURL:  os.Getenv("LLM_BASE_URL"),
		LLMAPIKey:   os.Getenv("OPENAI_API_KEY"),
		EmbedModel:  os.Getenv("EMBED_MODEL"),
		ChatModel:   envOr("CHAT_MODEL", "gpt-4.1-nano"),
		QdrantURL:   envOr("QDRANT_URL", "localhost:6334"),
		Collection:  envOr("QDRANT_COLLECTION", semantic.DefaultCollection),
		Neo4jURL:    os.Getenv("NEO4J_URL"),
		Neo4jUser:   envOr("NEO4J_USER", "neo4j"),
		Neo4jPass:   envOr("NEO4J_PASS", "password"),
		RedisURL:    os.Getenv("REDIS_URL"),
		MembersPath: os.Getenv("MEMBERS_PATH"),
		CORSOrigin:  envOr("CORS_ORIGIN", "*"),
		RateRPS:     envFloat("RATE_RPS", 10),
		RateBurst:   envInt("RATE_BURST", 20),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	met := metrics.New()

	// --- Member registry ---
	reg := members.Default()
	if cfg.MembersPath != "" {
		if err := reg.LoadFile(cfg.MembersPath); err != nil {
			return fmt.Errorf("load members %s: %w", cfg.MembersPath, err)
		}
	}
	logger.Info("member registry loaded", "members", reg.Len())

	// --- LLM clients ---
	llmCfg := llm.Config{
		Provider:   cfg.Provider,
		BaseURL:    cfg.LLMBaseURL,
		APIKey:     cfg.LLMAPIKey,
		EmbedModel: cfg.EmbedModel,
		ChatModel:  cfg.ChatModel,
	}
	embedder, err := llm.NewEmbedder(llmCfg)
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	chatter, err := llm.NewChatter(llmCfg)
	if err != nil {
		return fmt.Errorf("chatter: %w", err)
	}

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	// --- Optional Neo4j enricher ---
	var graphStore *graph.GraphStore
	var enricher rag.GraphEnricher
	if cfg.Neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURL, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		defer driver.Close(ctx)
		graphStore = graph.New(driver).WithMetrics(met)
		enricher = graph.NewEnricher(graphStore)
		logger.Info("graph enrichment enabled", "url", cfg.Neo4jURL)
	}

	// --- Optional Redis answer cache ---
	var answerCache *cache.AnswerCache
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis url: %w", err)
		}
		answerCache = cache.New(redis.NewClient(opt), cache.DefaultTTL, logger)
		logger.Info("answer cache enabled", "url", cfg.RedisURL)
	}

	// --- RAG service ---
	ragSvc := rag.New(embedder, chatter, vectorStore, reg, enricher, rag.DefaultOptions(), logger)

	// --- HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/query", handleQuery(ragSvc, answerCache, cfg.ChatModel, logger))
	mux.HandleFunc("GET /api/speakers", handleSpeakers(reg))
	mux.HandleFunc("GET /api/stats", handleStats(graphStore, logger))
	mux.Handle("GET /metrics", met.Handler())

	limiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: cfg.RateRPS, Burst: cfg.RateBurst})
	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.RateLimit(limiter),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("oireachtas-api"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
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

// --- Handlers ---

// querier is the slice of rag.Service the query handler uses.
type querier interface {
	Query(ctx context.Context, speaker, topic string) (*rag.Answer, error)
	Resolve(speaker string) (domain.Member, error)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// QueryRequest is the JSON body for POST /api/query.
type QueryRequest struct {
	Speaker string `json:"speaker"`
	Topic   string `json:"topic"`
}

func handleQuery(svc querier, ac *cache.AnswerCache, model string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", nil)
			return
		}

		// Cache is keyed by the canonical name so spellings share entries.
		key := ""
		if ac != nil {
			if m, err := svc.Resolve(req.Speaker); err == nil {
				key = cache.Key(m.Name, req.Topic, model)
				if raw, ok := ac.Get(r.Context(), key); ok {
					var ans rag.Answer
					if err := json.Unmarshal([]byte(raw), &ans); err == nil {
						ans.Cached = true
						writeJSON(w, http.StatusOK, ans)
						return
					}
				}
			}
		}

		ans, err := svc.Query(r.Context(), req.Speaker, req.Topic)
		if err != nil {
			var ve *domain.ValidationError
			var ue *rag.UnknownSpeakerError
			switch {
			case errors.As(err, &ve):
				writeError(w, http.StatusBadRequest, ve.Error(), nil)
			case errors.As(err, &ue):
				writeError(w, http.StatusNotFound, ue.Error(), ue.Suggestions)
			default:
				logger.Error("rag query failed", "err", err)
				writeError(w, http.StatusBadGateway, "upstream failure", nil)
			}
			return
		}

		if ac != nil && key != "" {
			if data, err := json.Marshal(ans); err == nil {
				ac.Put(r.Context(), key, string(data))
			}
		}

		writeJSON(w, http.StatusOK, ans)
	}
}

// speakerLister is the slice of members.Registry the speakers handler uses.
type speakerLister interface {
	All() []domain.Member
	Suggest(name string, n int) []string
}

func handleSpeakers(reg speakerLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "" {
			all := reg.All()
			names := make([]string, len(all))
			for i, m := range all {
				names[i] = m.Name
			}
			writeJSON(w, http.StatusOK, map[string]any{"speakers": names})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"speakers": reg.Suggest(q, 10)})
	}
}

func handleStats(gs *graph.GraphStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gs == nil {
			writeError(w, http.StatusServiceUnavailable, "graph not configured", nil)
			return
		}
		ctx := r.Context()

		nodes, err := gs.NodeCounts(ctx)
		if err != nil {
			logger.Error("stats: node counts", "err", err)
			writeError(w, http.StatusBadGateway, "graph unavailable", nil)
			return
		}
		rels, err := gs.RelationshipCounts(ctx)
		if err != nil {
			logger.Error("stats: relationship counts", "err", err)
			writeError(w, http.StatusBadGateway, "graph unavailable", nil)
			return
		}
		debates, err := gs.DebateStatistics(ctx)
		if err != nil {
			logger.Error("stats: debate statistics", "err", err)
			writeError(w, http.StatusBadGateway, "graph unavailable", nil)
			return
		}
		top, err := gs.TopSpeakers(ctx, 10)
		if err != nil {
			logger.Error("stats: top speakers", "err", err)
			writeError(w, http.StatusBadGateway, "graph unavailable", nil)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"nodes":         nodes,
			"relationships": rels,
			"debates":       debates,
			"top_speakers":  top,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, suggestions []string) {
	body := map[string]any{"error": msg}
	if len(suggestions) > 0 {
		body["suggestions"] = suggestions
	}
	writeJSON(w, status, body)
}
