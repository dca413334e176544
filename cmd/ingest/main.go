// Command ingest consumes speech records from the NATS bus and runs them
// through the ingestion pipeline into Qdrant and, when configured, Neo4j.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/OireachtasAI/oireachtas-mvp/engine/debates"
	"github.com/OireachtasAI/oireachtas-mvp/engine/graph"
	"github.com/OireachtasAI/oireachtas-mvp/engine/ingest"
	"github.com/OireachtasAI/oireachtas-mvp/engine/members"
	"github.com/OireachtasAI/oireachtas-mvp/engine/semantic"
	"github.com/OireachtasAI/oireachtas-mvp/pkg/llm"
	"github.com/OireachtasAI/oireachtas-mvp/pkg/metrics"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

var met = metrics.New()

var (
	mSpeechesTotal = func(house string) *metrics.Counter {
		return met.Counter(metrics.WithLabels("oireachtas_ingest_speeches_total", "house", house), "Speech records ingested")
	}
	mErrorsTotal  = met.Counter("oireachtas_ingest_errors_total", "Pipeline failures")
	mDedupHits    = met.Counter("oireachtas_ingest_dedup_hits_total", "Duplicate speech records skipped")
	mLastMessage  = met.Gauge("oireachtas_ingest_last_message_timestamp", "Epoch of the last consumed record")
	mPipelineDur  = met.Histogram("oireachtas_ingest_pipeline_duration_seconds", "Per-record pipeline time", nil)
	mMembersKnown = met.Gauge("oireachtas_ingest_members_known", "Members loaded in the registry")
)

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func main() {
	_ = godotenv.Load()

	var (
		natsURL     = flag.String("nats", envOr("NATS_URL", nats.DefaultURL), "NATS server URL")
		qdrantAddr  = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		collection  = flag.String("collection", envOr("QDRANT_COLLECTION", semantic.DefaultCollection), "Qdrant collection name")
		neo4jURL    = flag.String("neo4j", os.Getenv("NEO4J_URL"), "Neo4j bolt URL (empty disables graph writes)")
		neo4jUser   = flag.String("neo4j-user", envOr("NEO4J_USER", "neo4j"), "Neo4j username")
		neo4jPass   = flag.String("neo4j-pass", envOr("NEO4J_PASS", "password"), "Neo4j password")
		membersPath = flag.String("members", os.Getenv("MEMBERS_PATH"), "extra members JSON file")
		provider    = flag.String("provider", envOr("LLM_PROVIDER", "openai"), "embedding provider")
		embedModel  = flag.String("embed-model", os.Getenv("EMBED_MODEL"), "embedding model override")
		metricsPort = flag.Int("metrics-port", 9091, "port for /metrics")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(config{
		natsURL:     *natsURL,
		qdrantAddr:  *qdrantAddr,
		collection:  *collection,
		neo4jURL:    *neo4jURL,
		neo4jUser:   *neo4jUser,
		neo4jPass:   *neo4jPass,
		membersPath: *membersPath,
		provider:    *provider,
		embedModel:  *embedModel,
		metricsPort: *metricsPort,
	}, logger); err != nil {
		logger.Error("ingest exited with error", "err", err)
		os.Exit(1)
	}
}

type config struct {
	natsURL     string
	qdrantAddr  string
	collection  string
	neo4jURL    string
	neo4jUser   string
	neo4jPass   string
	membersPath string
	provider    string
	embedModel  string
	metricsPort int
}

func run(cfg config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	met.ServeAsync(cfg.metricsPort, logger)

	reg := members.Default()
	if cfg.membersPath != "" {
		if err := reg.LoadFile(cfg.membersPath); err != nil {
			return fmt.Errorf("load members %s: %w", cfg.membersPath, err)
		}
	}
	mMembersKnown.Set(int64(reg.Len()))
	logger.Info("member registry loaded", "members", reg.Len())

	embedder, err := llm.NewEmbedder(llm.Config{
		Provider:   cfg.provider,
		BaseURL:    os.Getenv("LLM_BASE_URL"),
		APIKey:     os.Getenv("OPENAI_API_KEY"),
		EmbedModel: cfg.embedModel,
	})
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	logger.Info("embedder ready", "name", embedder.Name(), "dims", embedder.Dimensions())

	vs, err := semantic.New(cfg.qdrantAddr, cfg.collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vs.Close()
	if err := vs.EnsureCollection(ctx, embedder.Dimensions()); err != nil {
		return fmt.Errorf("qdrant ensure collection: %w", err)
	}
	logger.Info("connected to Qdrant", "collection", cfg.collection)

	var gs *graph.GraphStore
	if cfg.neo4jURL != "" {
		driver, err := neo4j.NewDriverWithContext(cfg.neo4jURL, neo4j.BasicAuth(cfg.neo4jUser, cfg.neo4jPass, ""))
		if err != nil {
			return fmt.Errorf("neo4j driver: %w", err)
		}
		defer driver.Close(ctx)
		if err := driver.VerifyConnectivity(ctx); err != nil {
			return fmt.Errorf("neo4j verify: %w", err)
		}
		gs = graph.New(driver).WithMetrics(met)
		if err := gs.SeedParties(ctx); err != nil {
			logger.Warn("seed parties failed, continuing", "err", err)
		}
		logger.Info("graph writes enabled", "url", cfg.neo4jURL)
	}

	nc, err := nats.Connect(cfg.natsURL, nats.Name("oireachtas-ingest"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	// Dedup by speech ID for the lifetime of the process. Chunk IDs are
	// deterministic, so replays across restarts only rewrite the same points.
	var mu sync.Mutex
	seen := make(map[string]bool)

	deps := ingest.Deps{
		Embedder:    embedder,
		VectorStore: vs,
		GraphStore:  gs,
		Members:     reg,
		DeduplicateF: func(_ context.Context, docID string) (bool, error) {
			mu.Lock()
			defer mu.Unlock()
			if seen[docID] {
				mDedupHits.Inc()
				return true, nil
			}
			seen[docID] = true
			return false, nil
		},
		OnResult: func(rec debates.SpeechRecord, err error, dur time.Duration) {
			mLastMessage.Set(time.Now().Unix())
			mPipelineDur.Observe(dur.Seconds())
			if err != nil {
				mErrorsTotal.Inc()
				return
			}
			mSpeechesTotal(rec.House).Inc()
		},
		Logger: logger,
	}

	sub, err := ingest.StartConsumer(nc, deps)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", ingest.IngestSubject, err)
	}
	defer sub.Unsubscribe()

	logger.Info("consuming speech records",
		"subject", ingest.IngestSubject,
		"dlq", ingest.DLQSubject,
		"nats", cfg.natsURL,
	)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
