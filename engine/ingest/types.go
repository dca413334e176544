package ingest

import (
	"github.com/OireachtasAI/oireachtas-mvp/engine/debates"
	"github.com/OireachtasAI/oireachtas-mvp/engine/domain"
	"github.com/OireachtasAI/oireachtas-mvp/engine/members"
)

// ParsedDoc is one speech after cleaning and speaker canonicalisation.
type ParsedDoc struct {
	ID        string // speech_id, the document identity in the vector store
	DebateID  string
	Title     string
	Speaker   string // canonical member name
	Party     string
	House     string
	Date      string
	URL       string
	Content   string
	Sentences []string
}

// ChunkedDoc is a parsed speech split into embeddable chunks.
type ChunkedDoc struct {
	ParsedDoc
	Chunks []Chunk
}

// Chunk is a text segment ready for embedding.
type Chunk struct {
	Text  string
	Index int
	DocID string
}

// EmbeddedDoc is a chunked speech with embeddings, index-aligned to Chunks.
type EmbeddedDoc struct {
	ChunkedDoc
	Embeddings [][]float32
}

// parsedDocFromRecord cleans the speech text and resolves the speaker to the
// canonical registry name. Speakers the registry cannot place keep their
// transcript spelling so nothing is dropped; backfill re-resolves later.
func parsedDocFromRecord(rec debates.SpeechRecord, reg *members.Registry) ParsedDoc {
	text := debates.CleanSpeechText(rec.Text)

	speaker := rec.Speaker
	party := rec.Party
	if reg != nil {
		if m, _, err := reg.Resolve(rec.Speaker); err == nil {
			speaker = m.Name
			if party == "" {
				party = m.Party
			}
		}
	}

	return ParsedDoc{
		ID:        rec.SpeechID,
		DebateID:  rec.DebateID,
		Title:     rec.Title,
		Speaker:   speaker,
		Party:     domain.CanonicalParty(party),
		House:     rec.House,
		Date:      rec.Date,
		URL:       rec.URL,
		Content:   text,
		Sentences: splitSentences(text),
	}
}
