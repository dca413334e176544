// Command scraper-oireachtas fetches debate transcripts and member lists
// from the Oireachtas API, publishing speech records to NATS or writing
// JSON to stdout. A cursor file remembers the last fetched sitting date per
// house so repeated runs only pull new sittings.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/OireachtasAI/oireachtas-mvp/engine/debates"
	"github.com/OireachtasAI/oireachtas-mvp/engine/domain"
	"github.com/OireachtasAI/oireachtas-mvp/engine/ingest"
	"github.com/OireachtasAI/oireachtas-mvp/pkg/natsutil"
)

func main() {
	var (
		natsURL     = flag.String("nats", "", "NATS URL (if empty, output JSON to stdout)")
		subject     = flag.String("subject", ingest.IngestSubject, "NATS subject to publish to")
		apiBase     = flag.String("api", debates.DefaultAPIBase, "Oireachtas API base URL")
		houses      = flag.String("houses", "dail,seanad", "comma-separated houses to fetch")
		from        = flag.String("from", "", "start date YYYY-MM-DD (overrides cursor)")
		to          = flag.String("to", "", "end date YYYY-MM-DD")
		maxDebates  = flag.Int("max", 50, "max sittings per house per run")
		interval    = flag.Duration("interval", 0, "polling interval (0 = one-shot)")
		cursorPath  = flag.String("cursor", ".oireachtas-cursor.json", "cursor state file")
		membersPath = flag.String("dump-members", "", "also fetch member lists and write them to this JSON file")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fetcher := debates.NewFetcher(*apiBase)

	var nc *nats.Conn
	if *natsURL != "" {
		var err error
		nc, err = nats.Connect(*natsURL, nats.Name("oireachtas-scraper"))
		if err != nil {
			logger.Error("nats connect failed", "err", err)
			os.Exit(1)
		}
		defer nc.Drain()
		logger.Info("publishing to NATS", "subject", *subject)
	}

	if *membersPath != "" {
		if err := dumpMembers(ctx, fetcher, splitHouses(*houses), *membersPath); err != nil {
			logger.Error("dump members failed", "err", err)
			os.Exit(1)
		}
		logger.Info("member list written", "path", *membersPath)
	}

	enc := json.NewEncoder(os.Stdout)

	runOnce := func() error {
		cursor := loadCursor(*cursorPath)
		today := time.Now().Format("2006-01-02")

		for _, house := range splitHouses(*houses) {
			start := *from
			if start == "" {
				start = cursor[house]
			}
			opts := debates.FetchOpts{
				House:      house,
				DateStart:  start,
				DateEnd:    *to,
				MaxDebates: *maxDebates,
			}

			count, errs := 0, 0
			for res := range fetcher.Fetch(ctx, opts) {
				rec, err := res.Unwrap()
				if err != nil {
					if errors.Is(err, debates.ErrThrottled) {
						return fmt.Errorf("house %s: %w", house, err)
					}
					logger.Warn("fetch error, continuing", "house", house, "err", err)
					errs++
					continue
				}
				if nc != nil {
					if err := natsutil.Publish(ctx, nc, *subject, rec); err != nil {
						logger.Error("publish failed", "speech_id", rec.SpeechID, "err", err)
						errs++
						continue
					}
				} else if err := enc.Encode(rec); err != nil {
					return fmt.Errorf("encode: %w", err)
				}
				count++
			}
			logger.Info("house fetched", "house", house, "speeches", count, "errors", errs)

			if errs == 0 {
				cursor[house] = today
			}
		}

		return saveCursor(*cursorPath, cursor)
	}

	if err := runOnce(); err != nil {
		logger.Error("scrape failed", "err", err)
		os.Exit(1)
	}

	if *interval <= 0 {
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-ticker.C:
			if err := runOnce(); err != nil {
				logger.Error("scrape failed", "err", err)
			}
		}
	}
}

func splitHouses(s string) []string {
	var out []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}

// dumpMembers writes the current member lists in the registry's JSON format.
func dumpMembers(ctx context.Context, f *debates.Fetcher, houses []string, path string) error {
	var all []domain.Member
	for _, house := range houses {
		records, err := f.ListMembers(ctx, house, 200)
		if err != nil {
			return err
		}
		for _, r := range records {
			all = append(all, domain.Member{
				Name:         r.Name,
				Party:        domain.CanonicalParty(r.Party),
				House:        r.House,
				Constituency: r.Constituency,
			})
		}
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// loadCursor reads the per-house last-fetched dates; a missing or corrupt
// file starts fresh.
func loadCursor(path string) map[string]string {
	m := make(map[string]string)
	data, err := os.ReadFile(path)
	if err != nil {
		return m
	}
	json.Unmarshal(data, &m)
	return m
}

func saveCursor(path string, m map[string]string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
