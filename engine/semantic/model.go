package semantic

// DefaultCollection is the Qdrant collection holding debate speech chunks.
const DefaultCollection = "oireachtas_debates"

// Payload field names shared by ingestion, search and backfill. FieldSpeaker
// is the join key between the member registry and the vector store, so it
// must always hold the canonical member name.
const (
	FieldContent = "content"
	FieldDocID   = "doc_id"
	FieldSpeaker = "speaker"
	FieldParty   = "party"
	FieldHouse   = "house"
	FieldDate    = "date"
	FieldURL     = "url"
	FieldTitle   = "title"
	FieldChunk   = "chunk_index"
)

// SearchResult is a single similarity hit with its payload lifted into
// named fields. Date is the ISO sitting date (YYYY-MM-DD).
type SearchResult struct {
	ID      string            `json:"id"`
	Score   float32           `json:"score"`
	Content string            `json:"content"`
	DocID   string            `json:"doc_id"`
	Speaker string            `json:"speaker"`
	Party   string            `json:"party,omitempty"`
	House   string            `json:"house,omitempty"`
	Date    string            `json:"date,omitempty"`
	URL     string            `json:"url,omitempty"`
	Title   string            `json:"title,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// Year returns the four-digit year of the sitting date, or "" when the
// date payload is missing or malformed. Citations quote by URL and year.
func (r SearchResult) Year() string {
	if len(r.Date) < 4 {
		return ""
	}
	return r.Date[:4]
}

// VectorRecord is a single embedded chunk to be stored.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   map[string]any
}

// StoredPoint is one point streamed out of the collection by Scroll,
// with the payload flattened to strings. Vector is nil unless the
// caller asked for vectors.
type StoredPoint struct {
	ID      string
	Payload map[string]string
	Vector  []float32
}
