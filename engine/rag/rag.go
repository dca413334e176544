// Package rag answers "what does this politician think about X" questions.
// It resolves the speaker against the member registry, embeds the topic,
// searches the speaker's indexed speeches, and asks the chat model to
// summarise the retrieved quotes with URL and year citations.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/OireachtasAI/oireachtas-mvp/engine/domain"
	"github.com/OireachtasAI/oireachtas-mvp/engine/graph"
	"github.com/OireachtasAI/oireachtas-mvp/engine/semantic"
	"github.com/OireachtasAI/oireachtas-mvp/pkg/llm"
	"github.com/OireachtasAI/oireachtas-mvp/pkg/namematch"
)

// Service is the retrieval and answering service.
type Service struct {
	embed    llm.Embedder
	chat     llm.Chatter
	search   SemanticSearcher
	members  MemberResolver
	enrich   GraphEnricher
	examples []Example
	opts     Options
	logger   *slog.Logger
}

// SemanticSearcher abstracts the vector store's speaker-filtered search.
type SemanticSearcher interface {
	SearchBySpeaker(ctx context.Context, embedding []float32, topK int, speaker string) ([]semantic.SearchResult, error)
}

// MemberResolver abstracts the canonical member registry.
type MemberResolver interface {
	Resolve(name string) (domain.Member, float64, error)
	Suggest(name string, n int) []string
}

// GraphEnricher optionally supplies knowledge-graph context for a member.
type GraphEnricher interface {
	MemberContext(ctx context.Context, member string) (graph.MemberContext, error)
}

// Options configures the answering pipeline.
type Options struct {
	TopK          int
	Temperature   float64
	MaxTokens     int
	Model         string
	MinMatchScore float64
	SearchTimeout time.Duration
	Examples      []Example
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		TopK:          5,
		Temperature:   0.9,
		MaxTokens:     1024,
		MinMatchScore: namematch.DefaultThreshold,
		SearchTimeout: 5 * time.Second,
	}
}

// systemPrompt frames every conversation sent to the chat model.
const systemPrompt = `You are an Irish parliament chatbot. Users will ask about politicians' opinions on topics. You will summarise their positions using only provided quotes with URL/year citations.`

// maxQuoteRunes caps how much of a speech is quoted into the prompt.
const maxQuoteRunes = 500

// New creates an answering Service. enrich may be nil to skip graph context.
func New(embed llm.Embedder, chat llm.Chatter, search SemanticSearcher, members MemberResolver, enrich GraphEnricher, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	examples := opts.Examples
	if examples == nil {
		examples = DefaultExamples()
	}
	return &Service{
		embed:    embed,
		chat:     chat,
		search:   search,
		members:  members,
		enrich:   enrich,
		examples: examples,
		opts:     opts,
		logger:   logger,
	}
}

// Answer is the structured response for one speaker+topic query.
type Answer struct {
	Speaker  string   `json:"speaker"`
	Topic    string   `json:"topic"`
	Markdown string   `json:"markdown"`
	Quotes   []Quote  `json:"quotes,omitempty"`
	Sources  []Source `json:"sources,omitempty"`
	Model    string   `json:"model,omitempty"`
	Cached   bool     `json:"cached,omitempty"`
}

// Quote is one numbered quote block as it appears in the prompt.
type Quote struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	URL   string `json:"url"`
	Year  string `json:"year,omitempty"`
}

// Source is a citation backing the answer.
type Source struct {
	ID      string  `json:"id"`
	Speaker string  `json:"speaker"`
	URL     string  `json:"url"`
	Title   string  `json:"title,omitempty"`
	Date    string  `json:"date,omitempty"`
	Score   float32 `json:"score"`
}

// UnknownSpeakerError carries "did you mean" suggestions when no registry
// member matches the requested speaker.
type UnknownSpeakerError struct {
	Speaker     string
	Suggestions []string
}

func (e *UnknownSpeakerError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("unknown speaker %q", e.Speaker)
	}
	return fmt.Sprintf("unknown speaker %q (did you mean %s?)", e.Speaker, strings.Join(e.Suggestions, ", "))
}

func (e *UnknownSpeakerError) Unwrap() error { return domain.ErrUnknownSpeaker }

// Query runs the full pipeline for one speaker+topic request.
func (s *Service) Query(ctx context.Context, speaker, topic string) (*Answer, error) {
	if err := domain.ValidateSpeakerQuery(domain.SpeakerQuery{Speaker: speaker, Topic: topic}); err != nil {
		return nil, err
	}

	// 1. Resolve the speaker to a canonical member.
	member, score, err := s.members.Resolve(speaker)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownSpeaker) {
			return nil, &UnknownSpeakerError{Speaker: speaker, Suggestions: s.members.Suggest(speaker, 5)}
		}
		return nil, fmt.Errorf("rag: resolve speaker: %w", err)
	}
	if score < s.opts.MinMatchScore {
		return nil, &UnknownSpeakerError{Speaker: speaker, Suggestions: s.members.Suggest(speaker, 5)}
	}
	s.logger.Info("rag query start", "speaker", member.Name, "match_score", score, "topic_len", len(topic))

	// 2. Embed the topic.
	embedding, err := s.embed.Embed(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("rag: embed topic: %w", err)
	}

	// 3. Speaker-filtered semantic search.
	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()

	results, err := s.search.SearchBySpeaker(searchCtx, embedding, s.opts.TopK, member.Name)
	if err != nil {
		return nil, fmt.Errorf("rag: semantic search: %w", err)
	}
	s.logger.Info("rag semantic search done", "speaker", member.Name, "results", len(results))

	// 4. Nothing indexed for this speaker on this topic: fixed answer,
	// no model call.
	if len(results) == 0 {
		return &Answer{
			Speaker:  member.Name,
			Topic:    topic,
			Markdown: Sentinel(member.Name, topic),
			Model:    s.modelName(),
		}, nil
	}

	// 5. Optional graph context.
	var graphContext string
	if s.enrich != nil {
		graphContext = s.enrichWithGraph(ctx, member.Name)
	}

	// 6. Few-shot prompt and chat call.
	quotes := buildQuotes(results)
	resp, err := s.chat.Chat(ctx, llm.ChatRequest{
		Messages:    s.buildMessages(member.Name, topic, quotes, graphContext),
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("rag: chat: %w", err)
	}

	sources := make([]Source, len(results))
	for i, r := range results {
		sources[i] = Source{
			ID:      r.ID,
			Speaker: r.Speaker,
			URL:     r.URL,
			Title:   r.Title,
			Date:    r.Date,
			Score:   r.Score,
		}
	}

	return &Answer{
		Speaker:  member.Name,
		Topic:    topic,
		Markdown: Headline(member.Name, topic) + "\n\n" + resp.Content,
		Quotes:   quotes,
		Sources:  sources,
		Model:    s.modelName(),
	}, nil
}

// Prompt assembles the chat messages for a speaker+topic request without
// calling the model. The streaming front-end uses it with ChatStream.
func (s *Service) Prompt(ctx context.Context, speaker, topic string, results []semantic.SearchResult) []llm.Message {
	var graphContext string
	if s.enrich != nil {
		graphContext = s.enrichWithGraph(ctx, speaker)
	}
	return s.buildMessages(speaker, topic, buildQuotes(results), graphContext)
}

// Resolve exposes member resolution with the service's suggestion handling.
func (s *Service) Resolve(speaker string) (domain.Member, error) {
	member, score, err := s.members.Resolve(speaker)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownSpeaker) {
			return domain.Member{}, &UnknownSpeakerError{Speaker: speaker, Suggestions: s.members.Suggest(speaker, 5)}
		}
		return domain.Member{}, err
	}
	if score < s.opts.MinMatchScore {
		return domain.Member{}, &UnknownSpeakerError{Speaker: speaker, Suggestions: s.members.Suggest(speaker, 5)}
	}
	return member, nil
}

// Search embeds the topic and runs the speaker-filtered search. The caller
// must pass a canonical member name.
func (s *Service) Search(ctx context.Context, speaker, topic string) ([]semantic.SearchResult, error) {
	embedding, err := s.embed.Embed(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("rag: embed topic: %w", err)
	}
	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()
	results, err := s.search.SearchBySpeaker(searchCtx, embedding, s.opts.TopK, speaker)
	if err != nil {
		return nil, fmt.Errorf("rag: semantic search: %w", err)
	}
	return results, nil
}

// Options returns the service configuration.
func (s *Service) Options() Options { return s.opts }

func (s *Service) modelName() string {
	if s.opts.Model != "" {
		return s.opts.Model
	}
	return s.chat.Name()
}

// enrichWithGraph fetches graph context; failures are logged and skipped.
func (s *Service) enrichWithGraph(ctx context.Context, member string) string {
	mc, err := s.enrich.MemberContext(ctx, member)
	if err != nil {
		s.logger.Warn("rag: graph enrichment failed, continuing without", "err", err)
		return ""
	}
	return formatMemberContext(mc)
}

// Sentinel is the fixed answer for a speaker with nothing indexed on the
// topic.
func Sentinel(speaker, topic string) string {
	return fmt.Sprintf("No speeches found for %s on %s.", speaker, topic)
}

// Headline renders the markdown heading placed above an answer.
func Headline(speaker, topic string) string {
	return fmt.Sprintf("### %s's Position on '%s':", speaker, topic)
}

// buildQuotes numbers and truncates search hits for the prompt.
func buildQuotes(results []semantic.SearchResult) []Quote {
	quotes := make([]Quote, len(results))
	for i, r := range results {
		quotes[i] = Quote{
			Index: i + 1,
			Text:  truncateRunes(r.Content, maxQuoteRunes),
			URL:   r.URL,
			Year:  r.Year(),
		}
	}
	return quotes
}

// QuoteBlock renders quotes in the exact shape the examples show the model.
func QuoteBlock(quotes []Quote) string {
	var b strings.Builder
	for i, q := range quotes {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "**Quote %d (source: %s):** %s...", q.Index, q.URL, q.Text)
	}
	return b.String()
}

// Question renders the final user turn.
func Question(speaker, topic, quoteBlock string) string {
	return fmt.Sprintf("Summarise %s's position on %s using these quotes: %s", speaker, topic, quoteBlock)
}

// buildMessages assembles system prompt, few-shot examples, and the real
// question into one conversation.
func (s *Service) buildMessages(speaker, topic string, quotes []Quote, graphContext string) []llm.Message {
	msgs := make([]llm.Message, 0, 2*len(s.examples)+2)
	msgs = append(msgs, llm.Message{Role: "system", Content: systemPrompt})
	for _, ex := range s.examples {
		msgs = append(msgs,
			llm.Message{Role: "user", Content: ex.Question},
			llm.Message{Role: "assistant", Content: ex.Answer},
		)
	}
	question := Question(speaker, topic, QuoteBlock(quotes))
	if graphContext != "" {
		question += "\n\n" + graphContext
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: question})
	return msgs
}

// formatMemberContext flattens graph context into prompt text.
func formatMemberContext(mc graph.MemberContext) string {
	if mc.Party == "" && len(mc.Colleagues) == 0 && len(mc.Debates) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Background from the members graph:\n")
	if mc.Party != "" {
		fmt.Fprintf(&b, "- %s is a member of %s.\n", mc.Member, mc.Party)
	}
	if len(mc.Colleagues) > 0 {
		fmt.Fprintf(&b, "- Party colleagues: %s.\n", strings.Join(mc.Colleagues, ", "))
	}
	for _, d := range mc.Debates {
		fmt.Fprintf(&b, "- Spoke in %q (%s).\n", d.Title, d.Date)
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
