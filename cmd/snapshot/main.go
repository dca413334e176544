// Command snapshot exports the vector collection into a single SQLite file
// and pushes it to the JetStream object store, where the TUI's offline mode
// picks it up.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/nats-io/nats.go"

	"github.com/OireachtasAI/oireachtas-mvp/engine/localstore"
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
		qdrantAddr = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		collection = flag.String("collection", envOr("QDRANT_COLLECTION", semantic.DefaultCollection), "Qdrant collection name")
		natsURL    = flag.String("nats", os.Getenv("NATS_URL"), "NATS URL (empty skips the push)")
		bucket     = flag.String("bucket", localstore.DefaultBucket, "object store bucket")
		object     = flag.String("object", localstore.DefaultObject, "object name")
		outPath    = flag.String("out", localstore.DefaultObject, "local snapshot file")
		batch      = flag.Int("batch", 256, "points per scroll page")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *qdrantAddr, *collection, *natsURL, *bucket, *object, *outPath, *batch, logger); err != nil {
		logger.Error("snapshot failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, qdrantAddr, collection, natsURL, bucket, object, outPath string, batch int, logger *slog.Logger) error {
	source, err := semantic.New(qdrantAddr, collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer source.Close()

	dst, err := localstore.Open(outPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	n, err := export(ctx, source, dst, batch)
	if err != nil {
		return err
	}
	total, err := dst.Count(ctx)
	if err != nil {
		return err
	}
	logger.Info("snapshot built", "path", outPath, "exported", n, "total", total)

	if natsURL == "" {
		logger.Info("no NATS URL, skipping push")
		return nil
	}

	nc, err := nats.Connect(natsURL, nats.Name("oireachtas-snapshot"))
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	b, err := localstore.OpenBucket(ctx, nc, bucket, logger)
	if err != nil {
		return err
	}
	if _, err := b.Push(ctx, object, outPath); err != nil {
		return err
	}
	return nil
}

// pointScroller is the slice of semantic.VectorStore the export uses.
type pointScroller interface {
	Scroll(ctx context.Context, offset string, limit int, withVectors bool) ([]semantic.StoredPoint, string, error)
}

// export pages through the collection with vectors and writes each page
// into the snapshot in one transaction.
func export(ctx context.Context, source pointScroller, dst *localstore.Store, batch int) (int, error) {
	total := 0
	offset := ""
	for {
		points, next, err := source.Scroll(ctx, offset, batch, true)
		if err != nil {
			return total, fmt.Errorf("scroll: %w", err)
		}
		if len(points) == 0 {
			break
		}

		speeches := make([]localstore.Speech, len(points))
		for i, p := range points {
			speeches[i] = speechFromPoint(p)
		}
		if err := dst.Insert(ctx, speeches); err != nil {
			return total, err
		}
		total += len(points)

		if next == "" {
			break
		}
		offset = next
	}
	return total, nil
}

// speechFromPoint lifts the indexed payload fields into columns and keeps
// the rest as meta.
func speechFromPoint(p semantic.StoredPoint) localstore.Speech {
	sp := localstore.Speech{
		ID:        p.ID,
		Embedding: p.Vector,
		Meta:      make(map[string]string),
	}
	for k, v := range p.Payload {
		switch k {
		case semantic.FieldContent:
			sp.Content = v
		case semantic.FieldSpeaker:
			sp.Speaker = v
		case semantic.FieldURL:
			sp.URL = v
		case semantic.FieldDate:
			sp.Date = v
		default:
			sp.Meta[k] = v
		}
	}
	if len(sp.Meta) == 0 {
		sp.Meta = nil
	}
	return sp
}
