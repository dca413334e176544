// Package ingest provides the pipeline that takes speech records off the bus
// and through validation, cleaning, chunking, embedding, and storage.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/OireachtasAI/oireachtas-mvp/engine/debates"
	"github.com/OireachtasAI/oireachtas-mvp/engine/domain"
	"github.com/OireachtasAI/oireachtas-mvp/engine/graph"
	"github.com/OireachtasAI/oireachtas-mvp/engine/members"
	"github.com/OireachtasAI/oireachtas-mvp/engine/semantic"
	"github.com/OireachtasAI/oireachtas-mvp/pkg/fn"
	"github.com/OireachtasAI/oireachtas-mvp/pkg/llm"
	"github.com/OireachtasAI/oireachtas-mvp/pkg/natsutil"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	// IngestSubject is the NATS subject for incoming speech records.
	IngestSubject = "debates.ingest"
	// DLQSubject is the dead letter queue subject for failed messages.
	DLQSubject = "debates.ingest.dlq"
	// MaxRetries before sending to DLQ.
	MaxRetries = 3
	// EmbedBatchSize is the max chunks per embedding request.
	EmbedBatchSize = 100
)

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	Embedder     llm.Embedder
	VectorStore  *semantic.VectorStore
	GraphStore   *graph.GraphStore
	Members      *members.Registry
	DeduplicateF func(ctx context.Context, docID string) (bool, error) // returns true if already ingested
	// OnResult observes every record after the pipeline ran; err is nil on
	// success. The consumer binary hangs its metrics off this.
	OnResult func(rec debates.SpeechRecord, err error, dur time.Duration)
	Logger   *slog.Logger
}

// --- Pipeline Stages ---

// Validate checks a SpeechRecord via domain validation.
var Validate fn.Stage[debates.SpeechRecord, debates.SpeechRecord] = func(_ context.Context, rec debates.SpeechRecord) fn.Result[debates.SpeechRecord] {
	if err := domain.ValidateSpeechRecord(rec); err != nil {
		return fn.Err[debates.SpeechRecord](err)
	}
	return fn.Ok(rec)
}

// NewParse creates a Parse stage that cleans the transcript text and
// resolves the speaker against the member registry.
func NewParse(reg *members.Registry) fn.Stage[debates.SpeechRecord, ParsedDoc] {
	return func(_ context.Context, rec debates.SpeechRecord) fn.Result[ParsedDoc] {
		doc := parsedDocFromRecord(rec, reg)
		if doc.Content == "" {
			return fn.Errf[ParsedDoc]("parse: speech %s empty after cleaning", rec.SpeechID)
		}
		return fn.Ok(doc)
	}
}

// ChunkDoc splits a ParsedDoc into a ChunkedDoc.
var ChunkDoc fn.Stage[ParsedDoc, ChunkedDoc] = func(_ context.Context, doc ParsedDoc) fn.Result[ChunkedDoc] {
	chunks := chunkSentences(doc.ID, doc.Sentences, DefaultChunkSize, DefaultOverlap)
	if len(chunks) == 0 {
		// Single chunk fallback for short speeches.
		chunks = []Chunk{{Text: doc.Content, Index: 0, DocID: doc.ID}}
	}
	return fn.Ok(ChunkedDoc{ParsedDoc: doc, Chunks: chunks})
}

// NewEmbed creates an Embed stage that batches chunks through the embedder.
func NewEmbed(client llm.Embedder) fn.Stage[ChunkedDoc, EmbeddedDoc] {
	return func(ctx context.Context, doc ChunkedDoc) fn.Result[EmbeddedDoc] {
		embeddings := make([][]float32, len(doc.Chunks))

		for i := 0; i < len(doc.Chunks); i += EmbedBatchSize {
			end := i + EmbedBatchSize
			if end > len(doc.Chunks) {
				end = len(doc.Chunks)
			}

			texts := make([]string, end-i)
			for j, c := range doc.Chunks[i:end] {
				texts[j] = c.Text
			}

			vecs, err := client.EmbedBatch(ctx, texts)
			if err != nil {
				return fn.Err[EmbeddedDoc](fmt.Errorf("embed batch: %w", err))
			}
			copy(embeddings[i:end], vecs)
		}

		return fn.Ok(EmbeddedDoc{ChunkedDoc: doc, Embeddings: embeddings})
	}
}

// PointID returns the deterministic vector point ID for one chunk of a
// speech. Re-ingesting the same speech overwrites its old points.
func PointID(docID string, chunkIndex int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s-%d", docID, chunkIndex))).String()
}

// NewStore creates a Store stage that writes vectors to Qdrant and records
// the speech in the graph. Graph failures are logged and do not fail the
// stage; a failed vector upsert does, so the consumer can retry it.
func NewStore(vs *semantic.VectorStore, gs *graph.GraphStore, log *slog.Logger) fn.Stage[EmbeddedDoc, string] {
	if log == nil {
		log = slog.Default()
	}
	return func(ctx context.Context, doc EmbeddedDoc) fn.Result[string] {
		records := make([]semantic.VectorRecord, len(doc.Chunks))
		for i, chunk := range doc.Chunks {
			records[i] = semantic.VectorRecord{
				ID:        PointID(doc.ID, chunk.Index),
				Embedding: doc.Embeddings[i],
				Payload: map[string]any{
					semantic.FieldContent: chunk.Text,
					semantic.FieldDocID:   doc.ID,
					semantic.FieldSpeaker: doc.Speaker,
					semantic.FieldParty:   doc.Party,
					semantic.FieldHouse:   doc.House,
					semantic.FieldDate:    doc.Date,
					semantic.FieldURL:     doc.URL,
					semantic.FieldTitle:   doc.Title,
					semantic.FieldChunk:   chunk.Index,
				},
			}
		}
		if err := vs.Upsert(ctx, records); err != nil {
			return fn.Err[string](fmt.Errorf("vector upsert: %w", err))
		}

		if gs != nil {
			debateID := doc.DebateID
			if debateID == "" {
				debateID = graph.DebateEntryID(doc.URL)
			}
			d := graph.Debate{
				ID:    debateID,
				Title: doc.Title,
				Date:  doc.Date,
				House: doc.House,
				URL:   doc.URL,
			}
			if err := gs.RecordSpeech(ctx, doc.Speaker, d); err != nil {
				log.Warn("ingest: graph record", "error", err, "doc_id", doc.ID)
			}
		}

		return fn.Ok(doc.ID)
	}
}

// LoggedTap returns a stage that logs entry/exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Info("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Info("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline composes Validate → Parse → Chunk → Embed → Store with a span
// and a log line per stage.
func NewPipeline(deps Deps) fn.Stage[debates.SpeechRecord, string] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	validated := fn.Then(
		LoggedTap[debates.SpeechRecord]("validate", log),
		fn.TracedStage("ingest.validate", Validate),
	)
	parsed := fn.Then(validated, fn.Then(
		LoggedTap[debates.SpeechRecord]("parse", log),
		fn.TracedStage("ingest.parse", NewParse(deps.Members)),
	))
	chunked := fn.Then(parsed, fn.Then(
		LoggedTap[ParsedDoc]("chunk", log),
		fn.TracedStage("ingest.chunk", ChunkDoc),
	))
	embedded := fn.Then(chunked, fn.Then(
		LoggedTap[ChunkedDoc]("embed", log),
		fn.TracedStage("ingest.embed", NewEmbed(deps.Embedder)),
	))
	stored := fn.Then(embedded, fn.Then(
		LoggedTap[EmbeddedDoc]("store", log),
		fn.TracedStage("ingest.store", NewStore(deps.VectorStore, deps.GraphStore, log)),
	))

	return stored
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Record  debates.SpeechRecord `json:"record"`
	Error   string               `json:"error"`
	Retries int                  `json:"retries"`
}

// StartConsumer subscribes to the ingest subject and runs each speech record
// through the pipeline with retry and DLQ support.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(IngestSubject, func(msg *nats.Msg) {
		var rec debates.SpeechRecord
		if err := json.Unmarshal(msg.Data, &rec); err != nil {
			log.Error("ingest: unmarshal failed", "error", err)
			return
		}

		ctx := natsutil.ExtractContext(msg)

		if deps.DeduplicateF != nil {
			exists, err := deps.DeduplicateF(ctx, rec.SpeechID)
			if err != nil {
				log.Warn("ingest: dedup check failed", "error", err)
			} else if exists {
				log.Info("ingest: skipping duplicate", "doc_id", rec.SpeechID)
				if msg.Reply != "" {
					_ = msg.Ack()
				}
				return
			}
		}

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get("X-Retry-Count"); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		start := time.Now()
		result := pipeline(ctx, rec)
		if deps.OnResult != nil {
			var pipeErr error
			if result.IsErr() {
				_, pipeErr = result.Unwrap()
			}
			deps.OnResult(rec, pipeErr, time.Since(start))
		}
		if result.IsErr() {
			_, pipeErr := result.Unwrap()
			retries++
			log.Error("ingest: pipeline failed",
				"error", pipeErr,
				"speech_id", rec.SpeechID,
				"retry", retries,
			)

			if retries >= MaxRetries {
				dlq := dlqMessage{
					Record:  rec,
					Error:   pipeErr.Error(),
					Retries: retries,
				}
				data, _ := json.Marshal(dlq)
				if err := nc.Publish(DLQSubject, data); err != nil {
					log.Error("ingest: DLQ publish failed", "error", err)
				}
			} else {
				retryMsg := nats.NewMsg(IngestSubject)
				retryMsg.Data = msg.Data
				retryMsg.Header = nats.Header{}
				// Keep trace headers alive across requeues.
				for k, vs := range msg.Header {
					for _, v := range vs {
						retryMsg.Header.Add(k, v)
					}
				}
				retryMsg.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retries))
				if err := nc.PublishMsg(retryMsg); err != nil {
					log.Error("ingest: retry publish failed", "error", err)
				}
			}
		} else {
			docID, _ := result.Unwrap()
			log.Info("ingest: success", "doc_id", docID)
		}

		if msg.Reply != "" {
			_ = msg.Ack()
		}
	})
}
