// Package main is the terminal explorer for Oireachtas speeches. With
// an API URL it asks the query server; without one it answers from a
// local corpus snapshot, pulling the snapshot from the object store on
// first run.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/OireachtasAI/oireachtas-mvp/engine/domain"
	"github.com/OireachtasAI/oireachtas-mvp/engine/localstore"
	"github.com/OireachtasAI/oireachtas-mvp/engine/members"
	"github.com/OireachtasAI/oireachtas-mvp/engine/rag"
	"github.com/OireachtasAI/oireachtas-mvp/engine/semantic"
	"github.com/OireachtasAI/oireachtas-mvp/pkg/llm"
)

// answerer runs one speaker+topic query. *rag.Service satisfies it
// directly; the remote and offline backends wrap their own transports.
type answerer interface {
	Query(ctx context.Context, speaker, topic string) (*rag.Answer, error)
}

type config struct {
	apiURL       string
	snapshotPath string
	natsURL      string
	bucket       string
	object       string
	membersPath  string
	offline      bool
	provider     string
	llmBaseURL   string
	llmAPIKey    string
	embedModel   string
	chatModel    string
}

func main() {
	_ = godotenv.Load()

	apiURL := flag.String("api", os.Getenv("API_URL"), "query API base URL; empty answers from the local snapshot")
	snapshotPath := flag.String("snapshot", envOr("SNAPSHOT_PATH", localstore.DefaultObject), "local snapshot file")
	natsURL := flag.String("nats", os.Getenv("NATS_URL"), "NATS URL for the snapshot download; empty skips downloading")
	bucket := flag.String("bucket", localstore.DefaultBucket, "snapshot bucket")
	object := flag.String("object", localstore.DefaultObject, "snapshot object name")
	membersPath := flag.String("members", os.Getenv("MEMBERS_PATH"), "extra members file for the registry")
	offline := flag.Bool("offline", false, "answer with keyword extracts instead of the chat model")
	flag.Parse()

	cfg := config{
		apiURL:       *apiURL,
		snapshotPath: *snapshotPath,
		natsURL:      *natsURL,
		bucket:       *bucket,
		object:       *object,
		membersPath:  *membersPath,
		offline:      *offline,
		provider:     envOr("LLM_PROVIDER", "openai"),
		llmBaseURL:   os.Getenv("LLM_BASE_URL"),
		llmAPIKey:    os.Getenv("OPENAI_API_KEY"),
		embedModel:   os.Getenv("EMBED_MODEL"),
		chatModel:    envOr("CHAT_MODEL", "gpt-4.1-nano"),
	}

	if err := run(cfg, newLogger()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger writes to the file named by TUI_LOG, or nowhere. The UI owns
// the terminal, so nothing may log to it.
func newLogger() *slog.Logger {
	if path := os.Getenv("TUI_LOG"); path != "" {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			return slog.New(slog.NewJSONHandler(f, nil))
		}
	}
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(cfg config, logger *slog.Logger) error {
	ctx := context.Background()

	reg := members.Default()
	if cfg.membersPath != "" {
		if err := reg.LoadFile(cfg.membersPath); err != nil {
			return fmt.Errorf("load members %s: %w", cfg.membersPath, err)
		}
	}
	all := reg.All()
	names := make([]string, len(all))
	for i, mb := range all {
		names[i] = mb.Name
	}

	backend, mode, cleanup, err := newBackend(ctx, cfg, reg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	p := tea.NewProgram(newModel(backend, names, mode), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// newBackend picks remote, local, or offline answering per the config.
func newBackend(ctx context.Context, cfg config, reg *members.Registry, logger *slog.Logger) (answerer, string, func(), error) {
	if cfg.apiURL != "" {
		client := &apiClient{
			base:   strings.TrimRight(cfg.apiURL, "/"),
			client: &http.Client{Timeout: askTimeout},
		}
		return client, "api", func() {}, nil
	}

	store, err := openSnapshot(ctx, cfg, logger)
	if err != nil {
		return nil, "", nil, err
	}
	cleanup := func() { store.Close() }

	if cfg.offline {
		return &snapshotAnswerer{store: store, reg: reg, topK: rag.DefaultOptions().TopK}, "offline", cleanup, nil
	}

	llmCfg := llm.Config{
		Provider:   cfg.provider,
		BaseURL:    cfg.llmBaseURL,
		APIKey:     cfg.llmAPIKey,
		EmbedModel: cfg.embedModel,
		ChatModel:  cfg.chatModel,
	}
	embedder, err := llm.NewEmbedder(llmCfg)
	if err != nil {
		cleanup()
		return nil, "", nil, fmt.Errorf("embedder: %w", err)
	}
	chatter, err := llm.NewChatter(llmCfg)
	if err != nil {
		cleanup()
		return nil, "", nil, fmt.Errorf("chatter: %w", err)
	}
	svc := rag.New(embedder, chatter, &snapshotSearcher{store: store}, reg, nil, rag.DefaultOptions(), logger)
	return svc, "local", cleanup, nil
}

// openSnapshot opens the snapshot file, first pulling it from the object
// store when it is missing and a NATS URL is configured.
func openSnapshot(ctx context.Context, cfg config, logger *slog.Logger) (*localstore.Store, error) {
	if _, err := os.Stat(cfg.snapshotPath); os.IsNotExist(err) {
		if cfg.natsURL == "" {
			return nil, fmt.Errorf("no snapshot at %s; run cmd/snapshot or set -nats to download one", cfg.snapshotPath)
		}
		nc, err := nats.Connect(cfg.natsURL, nats.Name("oireachtas-tui"))
		if err != nil {
			return nil, fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()
		bucket, err := localstore.OpenBucket(ctx, nc, cfg.bucket, logger)
		if err != nil {
			return nil, err
		}
		pullCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if _, err := bucket.Pull(pullCtx, cfg.object, cfg.snapshotPath); err != nil {
			return nil, err
		}
	}
	return localstore.Open(cfg.snapshotPath)
}

// apiClient answers by calling the query API server.
type apiClient struct {
	base   string
	client *http.Client
}

func (c *apiClient) Query(ctx context.Context, speaker, topic string) (*rag.Answer, error) {
	body, err := json.Marshal(map[string]string{"speaker": speaker, "topic": topic})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/query", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return nil, errors.New(apiErr.Error)
		}
		return nil, fmt.Errorf("query api: status %d", resp.StatusCode)
	}

	var ans rag.Answer
	if err := json.NewDecoder(resp.Body).Decode(&ans); err != nil {
		return nil, fmt.Errorf("query api: decode answer: %w", err)
	}
	return &ans, nil
}

// snapshotSearcher adapts the snapshot's vector search to the searcher
// the answering service expects.
type snapshotSearcher struct {
	store *localstore.Store
}

func (s *snapshotSearcher) SearchBySpeaker(ctx context.Context, embedding []float32, topK int, speaker string) ([]semantic.SearchResult, error) {
	scored, err := s.store.SearchVector(ctx, speaker, embedding, topK)
	if err != nil {
		return nil, err
	}
	results := make([]semantic.SearchResult, len(scored))
	for i, sc := range scored {
		results[i] = semantic.SearchResult{
			ID:      sc.ID,
			Score:   float32(sc.Score),
			Content: sc.Content,
			Speaker: sc.Speaker,
			URL:     sc.URL,
			Date:    sc.Date,
			DocID:   sc.Meta[semantic.FieldDocID],
			Party:   sc.Meta[semantic.FieldParty],
			House:   sc.Meta[semantic.FieldHouse],
			Title:   sc.Meta[semantic.FieldTitle],
		}
	}
	return results, nil
}

const (
	offlineModel = "snapshot"
	excerptRunes = 280
)

// snapshotAnswerer answers from keyword extracts alone, for running with
// no model endpoint at all.
type snapshotAnswerer struct {
	store *localstore.Store
	reg   *members.Registry
	topK  int
}

func (a *snapshotAnswerer) Query(ctx context.Context, speaker, topic string) (*rag.Answer, error) {
	if err := domain.ValidateSpeakerQuery(domain.SpeakerQuery{Speaker: speaker, Topic: topic}); err != nil {
		return nil, err
	}
	member, _, err := a.reg.Resolve(speaker)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownSpeaker) {
			return nil, &rag.UnknownSpeakerError{Speaker: speaker, Suggestions: a.reg.Suggest(speaker, 5)}
		}
		return nil, err
	}

	speeches, err := a.store.Search(ctx, member.Name, topic, a.topK)
	if err != nil {
		return nil, err
	}
	if len(speeches) == 0 {
		return &rag.Answer{
			Speaker:  member.Name,
			Topic:    topic,
			Markdown: rag.Sentinel(member.Name, topic),
			Model:    offlineModel,
		}, nil
	}

	var b strings.Builder
	b.WriteString(rag.Headline(member.Name, topic))
	b.WriteString("\n\nExtracts from the local snapshot:\n")
	sources := make([]rag.Source, len(speeches))
	for i, sp := range speeches {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, excerpt(sp.Content, excerptRunes))
		fmt.Fprintf(&b, "   (source: %s", sp.URL)
		if sp.Date != "" {
			fmt.Fprintf(&b, ", %s", sp.Date)
		}
		b.WriteString(")\n")
		sources[i] = rag.Source{
			ID:      sp.ID,
			Speaker: sp.Speaker,
			URL:     sp.URL,
			Title:   sp.Meta[semantic.FieldTitle],
			Date:    sp.Date,
		}
	}

	return &rag.Answer{
		Speaker:  member.Name,
		Topic:    topic,
		Markdown: b.String(),
		Sources:  sources,
		Model:    offlineModel,
	}, nil
}

// excerpt clips a speech for display without splitting a rune.
func excerpt(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}
