// Package localstore keeps a snapshot of the debate corpus in a single
// SQLite file. The TUI uses it for offline browsing when the API is
// unreachable, and cmd/snapshot builds the files it syncs through the
// object store bucket.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

// Speech is one stored chunk of a debate speech. Meta carries the
// remaining payload fields (party, house, title, doc_id).
type Speech struct {
	ID        string
	Content   string
	Speaker   string
	URL       string
	Date      string
	Meta      map[string]string
	Embedding []float32
}

// ScoredSpeech is a speech with its similarity to a query vector.
type ScoredSpeech struct {
	Speech
	Score float64
}

// Store is a SQLite-backed speech snapshot.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS speeches (
	id        TEXT PRIMARY KEY,
	content   TEXT NOT NULL,
	speaker   TEXT NOT NULL,
	url       TEXT,
	date      TEXT,
	meta      TEXT,
	embedding BLOB
);
CREATE INDEX IF NOT EXISTS idx_speeches_speaker ON speeches(speaker);
`

// Open opens or creates a snapshot file and ensures its schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("localstore: create dir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("localstore: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("localstore: init schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.path
}

// Insert upserts a batch of speeches in one transaction. Rows keyed by
// an existing ID are replaced, so re-running a snapshot is idempotent.
func (s *Store) Insert(ctx context.Context, speeches []Speech) error {
	if len(speeches) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("localstore: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO speeches (id, content, speaker, url, date, meta, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("localstore: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, sp := range speeches {
		meta := ""
		if len(sp.Meta) > 0 {
			b, err := json.Marshal(sp.Meta)
			if err != nil {
				return fmt.Errorf("localstore: marshal meta for %s: %w", sp.ID, err)
			}
			meta = string(b)
		}
		if _, err := stmt.ExecContext(ctx, sp.ID, sp.Content, sp.Speaker, sp.URL, sp.Date, meta, encodeVector(sp.Embedding)); err != nil {
			return fmt.Errorf("localstore: insert %s: %w", sp.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("localstore: commit: %w", err)
	}
	return nil
}

// Count returns the number of stored speeches.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM speeches").Scan(&n); err != nil {
		return 0, fmt.Errorf("localstore: count: %w", err)
	}
	return n, nil
}

// Speakers lists the distinct speaker names in the snapshot, sorted.
func (s *Store) Speakers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT speaker FROM speeches ORDER BY speaker")
	if err != nil {
		return nil, fmt.Errorf("localstore: speakers: %w", err)
	}
	defer rows.Close()

	var speakers []string
	for rows.Next() {
		var sp string
		if err := rows.Scan(&sp); err != nil {
			return nil, fmt.Errorf("localstore: scan speaker: %w", err)
		}
		speakers = append(speakers, sp)
	}
	return speakers, rows.Err()
}

// Search does keyword matching over one speaker's speeches, ranked by
// how many of the topic's words each speech contains. It needs no
// embedding service, which is the point of offline mode.
func (s *Store) Search(ctx context.Context, speaker, topic string, limit int) ([]Speech, error) {
	words := strings.Fields(strings.ToLower(topic))
	if len(words) == 0 || limit <= 0 {
		return nil, nil
	}

	conds := make([]string, len(words))
	args := []any{speaker}
	for i, w := range words {
		conds[i] = "instr(lower(content), ?) > 0"
		args = append(args, w)
	}
	query := fmt.Sprintf(
		"SELECT id, content, speaker, url, date, meta, embedding FROM speeches WHERE speaker = ? AND (%s)",
		strings.Join(conds, " OR "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("localstore: search: %w", err)
	}
	defer rows.Close()

	type ranked struct {
		speech Speech
		hits   int
	}
	var found []ranked
	for rows.Next() {
		sp, err := scanSpeech(rows)
		if err != nil {
			return nil, err
		}
		lc := strings.ToLower(sp.Content)
		hits := 0
		for _, w := range words {
			if strings.Contains(lc, w) {
				hits++
			}
		}
		found = append(found, ranked{speech: sp, hits: hits})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("localstore: search rows: %w", err)
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].hits > found[j].hits })
	if len(found) > limit {
		found = found[:limit]
	}
	out := make([]Speech, len(found))
	for i, r := range found {
		out[i] = r.speech
	}
	return out, nil
}

// SearchVector ranks one speaker's speeches by cosine similarity to the
// query embedding. Brute force over the speaker's rows; snapshots are
// small enough that this beats carrying a vector index.
func (s *Store) SearchVector(ctx context.Context, speaker string, query []float32, topK int) ([]ScoredSpeech, error) {
	if len(query) == 0 || topK <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, content, speaker, url, date, meta, embedding FROM speeches WHERE speaker = ?", speaker)
	if err != nil {
		return nil, fmt.Errorf("localstore: vector search: %w", err)
	}
	defer rows.Close()

	var scored []ScoredSpeech
	for rows.Next() {
		sp, err := scanSpeech(rows)
		if err != nil {
			return nil, err
		}
		if len(sp.Embedding) == 0 {
			continue
		}
		scored = append(scored, ScoredSpeech{Speech: sp, Score: cosine(query, sp.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("localstore: vector search rows: %w", err)
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func scanSpeech(rows *sql.Rows) (Speech, error) {
	var sp Speech
	var meta string
	var blob []byte
	if err := rows.Scan(&sp.ID, &sp.Content, &sp.Speaker, &sp.URL, &sp.Date, &meta, &blob); err != nil {
		return Speech{}, fmt.Errorf("localstore: scan speech: %w", err)
	}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &sp.Meta); err != nil {
			return Speech{}, fmt.Errorf("localstore: unmarshal meta for %s: %w", sp.ID, err)
		}
	}
	emb, err := decodeVector(blob)
	if err != nil {
		return Speech{}, err
	}
	sp.Embedding = emb
	return sp, nil
}
