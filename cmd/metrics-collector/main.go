// Command metrics-collector polls the /metrics endpoints of the running
// services, parses the counter and gauge lines, and writes a JSON snapshot
// plus a bounded delta history for dashboards.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// maxHistory bounds the delta history; at a 5 minute interval this is one
// day of entries.
const maxHistory = 288

// Snapshot holds one scrape of every target, keyed by target name then
// metric line.
type Snapshot struct {
	Timestamp time.Time                     `json:"timestamp"`
	Services  map[string]map[string]float64 `json:"services"`
}

// Delta records per-metric changes between two consecutive snapshots.
// Metrics that did not move are dropped to keep history files small.
type Delta struct {
	Timestamp time.Time                     `json:"timestamp"`
	Period    string                        `json:"period"`
	Changes   map[string]map[string]float64 `json:"changes"`
}

func main() {
	var (
		targetsFlag = flag.String("targets",
			"api=http://localhost:8080/metrics,ingest=http://localhost:9091/metrics",
			"comma-separated name=url metric endpoints")
		outDir   = flag.String("out", "metrics-data", "output directory")
		interval = flag.Duration("interval", 0, "polling interval (0 = one-shot)")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	targets, err := parseTargets(*targetsFlag)
	if err != nil {
		logger.Error("bad targets", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := &http.Client{Timeout: 10 * time.Second}

	runOnce := func() {
		snap := collect(ctx, client, targets, logger)
		if err := store(*outDir, snap, *interval, logger); err != nil {
			logger.Error("store snapshot failed", "err", err)
		}
	}

	runOnce()
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
			runOnce()
		}
	}
}

// parseTargets splits "name=url,name=url" into a map.
func parseTargets(s string) (map[string]string, error) {
	targets := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, url, ok := strings.Cut(part, "=")
		if !ok || name == "" || url == "" {
			return nil, fmt.Errorf("bad target %q, want name=url", part)
		}
		targets[name] = url
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no targets given")
	}
	return targets, nil
}

// collect scrapes every target. Unreachable targets are logged and left
// out of the snapshot so one dead service does not block the rest.
func collect(ctx context.Context, client *http.Client, targets map[string]string, logger *slog.Logger) Snapshot {
	snap := Snapshot{Timestamp: time.Now().UTC(), Services: make(map[string]map[string]float64)}
	for name, url := range targets {
		metrics, err := scrape(ctx, client, url)
		if err != nil {
			logger.Warn("scrape failed", "target", name, "url", url, "err", err)
			continue
		}
		snap.Services[name] = metrics
	}
	return snap
}

func scrape(ctx context.Context, client *http.Client, url string) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics reads Prometheus text exposition lines into a flat map:
// "name{labels}" -> value. Comment lines and malformed values are skipped.
func parseMetrics(r io.Reader) (map[string]float64, error) {
	out := make(map[string]float64)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 256*1024), 256*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.LastIndexByte(line, ' ')
		if idx <= 0 {
			continue
		}
		val, err := strconv.ParseFloat(line[idx+1:], 64)
		if err != nil {
			continue
		}
		out[line[:idx]] = val
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// computeDelta subtracts the previous snapshot per metric. Metrics absent
// from the previous snapshot count from zero; unchanged metrics are
// omitted.
func computeDelta(prev, cur Snapshot, period string) Delta {
	d := Delta{Timestamp: cur.Timestamp, Period: period, Changes: make(map[string]map[string]float64)}
	for svc, metrics := range cur.Services {
		prevMetrics := prev.Services[svc]
		for key, val := range metrics {
			diff := val - prevMetrics[key]
			if diff == 0 {
				continue
			}
			if d.Changes[svc] == nil {
				d.Changes[svc] = make(map[string]float64)
			}
			d.Changes[svc][key] = diff
		}
	}
	return d
}

// store writes the latest snapshot, appends the delta to the bounded
// history, and saves the snapshot as the next run's baseline.
func store(dir string, snap Snapshot, interval time.Duration, logger *slog.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	latestPath := filepath.Join(dir, "metrics-latest.json")
	historyPath := filepath.Join(dir, "metrics-history.json")
	prevPath := filepath.Join(dir, ".metrics-prev.json")

	var prev Snapshot
	if data, err := os.ReadFile(prevPath); err == nil {
		json.Unmarshal(data, &prev)
	}

	period := "one-shot"
	if interval > 0 {
		period = interval.String()
	}
	delta := computeDelta(prev, snap, period)

	cur, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(latestPath, cur, 0o644); err != nil {
		return err
	}

	var history []Delta
	if data, err := os.ReadFile(historyPath); err == nil {
		json.Unmarshal(data, &history)
	}
	history = append(history, delta)
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	histData, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(historyPath, histData, 0o644); err != nil {
		return err
	}

	if err := os.WriteFile(prevPath, cur, 0o644); err != nil {
		return err
	}

	logger.Info("snapshot stored",
		"services", len(snap.Services),
		"changed", len(delta.Changes),
		"history", len(history),
	)
	return nil
}
