// Command backfill repairs speaker payloads in the vector store. Older
// ingests stored transcript spellings the registry could not place at the
// time; this scans every point, re-resolves the speaker against the current
// registry, and rewrites payloads whose canonical name changed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/OireachtasAI/oireachtas-mvp/engine/domain"
	"github.com/OireachtasAI/oireachtas-mvp/engine/members"
	"github.com/OireachtasAI/oireachtas-mvp/engine/semantic"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		qdrantAddr  = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		collection  = flag.String("collection", envOr("QDRANT_COLLECTION", semantic.DefaultCollection), "Qdrant collection name")
		membersPath = flag.String("members", os.Getenv("MEMBERS_PATH"), "extra members JSON file")
		batch       = flag.Int("batch", 256, "points per scroll page")
		dryRun      = flag.Bool("dry-run", false, "report changes without writing")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	reg := members.Default()
	if *membersPath != "" {
		if err := reg.LoadFile(*membersPath); err != nil {
			logger.Error("load members failed", "path", *membersPath, "err", err)
			os.Exit(1)
		}
	}
	logger.Info("member registry loaded", "members", reg.Len())

	store, err := semantic.New(*qdrantAddr, *collection)
	if err != nil {
		logger.Error("qdrant connect failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	stats, err := backfill(ctx, store, reg, *batch, *dryRun, logger)
	if err != nil {
		logger.Error("backfill failed", "err", err)
		os.Exit(1)
	}

	logger.Info("backfill done",
		"scanned", stats.Scanned,
		"updated", stats.Updated,
		"unresolved", stats.Unresolved,
		"dry_run", *dryRun,
	)
}

// vectorBackfill is the slice of semantic.VectorStore the backfill uses.
type vectorBackfill interface {
	Scroll(ctx context.Context, offset string, limit int, withVectors bool) ([]semantic.StoredPoint, string, error)
	UpdateSpeaker(ctx context.Context, ids []string, speaker string) error
}

type speakerResolver interface {
	Resolve(name string) (domain.Member, float64, error)
}

// Stats summarises one backfill run.
type Stats struct {
	Scanned    int
	Updated    int
	Unresolved int
}

// backfill pages through the collection and rewrites speaker payloads
// whose canonical resolution differs from the stored value. Updates are
// grouped per page and per canonical name to keep SetPayload calls few.
func backfill(ctx context.Context, store vectorBackfill, reg speakerResolver, batch int, dryRun bool, logger *slog.Logger) (Stats, error) {
	var stats Stats
	unresolvedSeen := make(map[string]bool)

	offset := ""
	for {
		points, next, err := store.Scroll(ctx, offset, batch, false)
		if err != nil {
			return stats, fmt.Errorf("scroll: %w", err)
		}
		if len(points) == 0 {
			break
		}

		changes := make(map[string][]string)
		for _, p := range points {
			stats.Scanned++
			current := p.Payload[semantic.FieldSpeaker]
			if current == "" {
				continue
			}

			member, _, err := reg.Resolve(current)
			if err != nil {
				stats.Unresolved++
				if !unresolvedSeen[current] {
					unresolvedSeen[current] = true
					logger.Warn("speaker still unresolved", "speaker", current)
				}
				continue
			}
			if member.Name == current {
				continue
			}
			changes[member.Name] = append(changes[member.Name], p.ID)
		}

		for name, ids := range changes {
			if dryRun {
				logger.Info("would update", "speaker", name, "points", len(ids))
			} else {
				if err := store.UpdateSpeaker(ctx, ids, name); err != nil {
					return stats, fmt.Errorf("update speaker %s: %w", name, err)
				}
				logger.Info("updated", "speaker", name, "points", len(ids))
			}
			stats.Updated += len(ids)
		}

		if next == "" {
			break
		}
		offset = next
	}

	return stats, nil
}
