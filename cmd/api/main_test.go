package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/OireachtasAI/oireachtas-mvp/engine/domain"
	"github.com/OireachtasAI/oireachtas-mvp/engine/rag"
)

type stubQuerier struct {
	answer     *rag.Answer
	err        error
	member     domain.Member
	resolveErr error
}

func (s *stubQuerier) Query(_ context.Context, _, _ string) (*rag.Answer, error) {
	return s.answer, s.err
}

func (s *stubQuerier) Resolve(_ string) (domain.Member, error) {
	return s.member, s.resolveErr
}

func TestHealthEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/health", nil)
	handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "ok" {
		t.Fatalf("expected status ok, got %s", resp["status"])
	}
}

func TestQueryEndpoint_InvalidJSON(t *testing.T) {
	handler := handleQuery(&stubQuerier{}, nil, "gpt-4.1-nano", slog.Default())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/query", bytes.NewBufferString("not json"))
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestQueryEndpoint_ValidationError(t *testing.T) {
	svc := &stubQuerier{err: domain.NewValidationError("topic", "tax", domain.ErrTopicTooShort)}
	handler := handleQuery(svc, nil, "gpt-4.1-nano", slog.Default())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/query", bytes.NewBufferString(`{"speaker":"Leo Varadkar","topic":"tax"}`))
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestQueryEndpoint_UnknownSpeaker(t *testing.T) {
	svc := &stubQuerier{err: &rag.UnknownSpeakerError{
		Speaker:     "Zebulon Quirke",
		Suggestions: []string{"Leo Varadkar", "Micheál Martin"},
	}}
	handler := handleQuery(svc, nil, "gpt-4.1-nano", slog.Default())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/query", bytes.NewBufferString(`{"speaker":"Zebulon Quirke","topic":"housing policy"}`))
	handler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	suggestions, ok := resp["suggestions"].([]any)
	if !ok || len(suggestions) != 2 {
		t.Fatalf("expected 2 suggestions, got %v", resp["suggestions"])
	}
}

func TestQueryEndpoint_UpstreamFailure(t *testing.T) {
	svc := &stubQuerier{err: errors.New("rag: semantic search: qdrant down")}
	handler := handleQuery(svc, nil, "gpt-4.1-nano", slog.Default())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/query", bytes.NewBufferString(`{"speaker":"Leo Varadkar","topic":"housing policy"}`))
	handler(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestQueryEndpoint_Success(t *testing.T) {
	svc := &stubQuerier{answer: &rag.Answer{
		Speaker:  "Leo Varadkar",
		Topic:    "housing policy",
		Markdown: "### Leo Varadkar's Position on 'housing policy':\n\nSupportive.",
		Model:    "openai/gpt-4.1-nano",
	}}
	handler := handleQuery(svc, nil, "gpt-4.1-nano", slog.Default())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/query", bytes.NewBufferString(`{"speaker":"Leo Varadkar","topic":"housing policy"}`))
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var ans rag.Answer
	if err := json.NewDecoder(rec.Body).Decode(&ans); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ans.Speaker != "Leo Varadkar" || ans.Model != "openai/gpt-4.1-nano" {
		t.Fatalf("wrong answer: %+v", ans)
	}
}

type stubLister struct {
	members     []domain.Member
	suggestions []string
	lastQuery   string
}

func (s *stubLister) All() []domain.Member { return s.members }
func (s *stubLister) Suggest(name string, _ int) []string {
	s.lastQuery = name
	return s.suggestions
}

func TestSpeakersEndpoint_All(t *testing.T) {
	reg := &stubLister{members: []domain.Member{
		{Name: "Leo Varadkar", Party: "Fine Gael"},
		{Name: "Mary Lou McDonald", Party: "Sinn Féin"},
	}}
	handler := handleSpeakers(reg)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/speakers", nil)
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string][]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp["speakers"]) != 2 || resp["speakers"][0] != "Leo Varadkar" {
		t.Fatalf("wrong speakers: %v", resp["speakers"])
	}
}

func TestSpeakersEndpoint_Suggest(t *testing.T) {
	reg := &stubLister{suggestions: []string{"Micheál Martin"}}
	handler := handleSpeakers(reg)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/speakers?q=michael+martin", nil)
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if reg.lastQuery != "michael martin" {
		t.Fatalf("query not forwarded: %q", reg.lastQuery)
	}
	var resp map[string][]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp["speakers"]) != 1 || resp["speakers"][0] != "Micheál Martin" {
		t.Fatalf("wrong suggestions: %v", resp["speakers"])
	}
}

func TestStatsEndpoint_NotConfigured(t *testing.T) {
	handler := handleStats(nil, slog.Default())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/stats", nil)
	handler(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := loadConfig()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.CORSOrigin != "*" {
		t.Fatalf("expected default CORS *, got %s", cfg.CORSOrigin)
	}
	if cfg.Collection != "oireachtas_debates" {
		t.Fatalf("expected default collection oireachtas_debates, got %s", cfg.Collection)
	}
	if cfg.ChatModel != "gpt-4.1-nano" {
		t.Fatalf("expected default chat model gpt-4.1-nano, got %s", cfg.ChatModel)
	}
}

func TestEnvOr(t *testing.T) {
	t.Setenv("TEST_ENV_VAR_XYZ", "custom")
	if v := envOr("TEST_ENV_VAR_XYZ", "default"); v != "custom" {
		t.Fatalf("expected custom, got %s", v)
	}
	if v := envOr("NONEXISTENT_VAR_ABC", "fallback"); v != "fallback" {
		t.Fatalf("expected fallback, got %s", v)
	}
}
