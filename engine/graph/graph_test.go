package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/OireachtasAI/oireachtas-mvp/pkg/metrics"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// mockResult replays canned records.
type mockResult struct {
	records []*neo4j.Record
	idx     int
}

func newMockResult(records ...*neo4j.Record) *mockResult {
	return &mockResult{records: records}
}

func (m *mockResult) Next(_ context.Context) bool {
	if m.idx >= len(m.records) {
		return false
	}
	m.idx++
	return true
}

func (m *mockResult) Record() *neo4j.Record { return m.records[m.idx-1] }
func (m *mockResult) Err() error            { return nil }

// mockSession serves one canned result for every Run.
type mockSession struct {
	runResult CypherResult
	runErr    error
	writeErr  error
}

func (s *mockSession) Run(_ context.Context, _ string, _ map[string]any) (CypherResult, error) {
	if s.runErr != nil {
		return nil, s.runErr
	}
	if s.runResult == nil {
		return newMockResult(), nil
	}
	return s.runResult, nil
}

func (s *mockSession) ExecuteWrite(_ context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	if s.writeErr != nil {
		return nil, s.writeErr
	}
	return work(s)
}

func (s *mockSession) Close(_ context.Context) error { return nil }

type mockOpener struct {
	session CypherSession
}

func (o *mockOpener) OpenSession(_ context.Context) CypherSession { return o.session }

// seqSession serves a different result per Run call, in order.
type seqSession struct {
	results []CypherResult
	errs    []error
	calls   int
}

func (s *seqSession) Run(_ context.Context, _ string, _ map[string]any) (CypherResult, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.results) && s.results[i] != nil {
		return s.results[i], nil
	}
	return newMockResult(), nil
}

func (s *seqSession) ExecuteWrite(_ context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	return work(s)
}

func (s *seqSession) Close(_ context.Context) error { return nil }

// trackingTx records all cypher queries executed.
type trackingTx struct {
	queries []string
	params  []map[string]any
}

func (t *trackingTx) Run(_ context.Context, cypher string, params map[string]any) (CypherResult, error) {
	t.queries = append(t.queries, cypher)
	t.params = append(t.params, params)
	return newMockResult(), nil
}

type trackingSession struct {
	tx *trackingTx
}

func (s *trackingSession) Run(_ context.Context, cypher string, params map[string]any) (CypherResult, error) {
	return s.tx.Run(context.Background(), cypher, params)
}
func (s *trackingSession) Close(_ context.Context) error { return nil }
func (s *trackingSession) ExecuteWrite(_ context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	return work(s.tx)
}

type trackingOpener struct {
	session *trackingSession
}

func (o *trackingOpener) OpenSession(_ context.Context) CypherSession {
	return o.session
}

func newTrackingStore() (*GraphStore, *trackingTx) {
	tx := &trackingTx{}
	sess := &trackingSession{tx: tx}
	opener := &trackingOpener{session: sess}
	return NewWithOpener(opener), tx
}

func makeNodeRecord(props map[string]any) *neo4j.Record {
	return &neo4j.Record{
		Keys:   []string{"n"},
		Values: []any{dbtype.Node{Props: props}},
	}
}

func makeRow(keys []string, values []any) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

func TestSaveMember(t *testing.T) {
	gs, tx := newTrackingStore()

	err := gs.SaveMember(context.Background(), Member{
		Name:         "Mary Lou McDonald",
		Party:        "Sinn Féin",
		House:        "dail",
		Constituency: "Dublin Central",
	})
	if err != nil {
		t.Fatalf("SaveMember: %v", err)
	}

	if len(tx.queries) != 2 {
		t.Fatalf("expected 2 queries (node + party edge), got %d", len(tx.queries))
	}
	if !strings.Contains(tx.queries[0], "MERGE (n:Member {name: $name})") {
		t.Errorf("first query should merge the member node: %s", tx.queries[0])
	}
	if tx.params[0]["name"] != "Mary Lou McDonald" {
		t.Errorf("wrong name param: %v", tx.params[0]["name"])
	}
	if !strings.Contains(tx.queries[1], "MEMBER_OF") {
		t.Errorf("second query should merge the MEMBER_OF edge: %s", tx.queries[1])
	}
	if tx.params[1]["party"] != "Sinn Féin" {
		t.Errorf("wrong party param: %v", tx.params[1]["party"])
	}
}

func TestSaveMemberWithoutParty(t *testing.T) {
	gs, tx := newTrackingStore()

	err := gs.SaveMember(context.Background(), Member{Name: "Seán Ó Fearghaíl"})
	if err != nil {
		t.Fatalf("SaveMember: %v", err)
	}
	if len(tx.queries) != 1 {
		t.Fatalf("expected 1 query for partyless member, got %d", len(tx.queries))
	}
}

func TestSaveParty(t *testing.T) {
	gs, tx := newTrackingStore()

	if err := gs.SaveParty(context.Background(), Party{Name: "Labour Party"}); err != nil {
		t.Fatalf("SaveParty: %v", err)
	}
	if len(tx.queries) != 1 || !strings.Contains(tx.queries[0], "MERGE (n:Party") {
		t.Fatalf("unexpected queries: %v", tx.queries)
	}
}

func TestSaveBatch(t *testing.T) {
	gs, tx := newTrackingStore()

	members := []Member{
		{Name: "Micheál Martin", Party: "Fianna Fáil"},
		{Name: "Leo Varadkar", Party: "Fine Gael"},
	}
	if err := gs.SaveBatch(context.Background(), members); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}
	// Node merge plus party edge per member.
	if len(tx.queries) != 4 {
		t.Fatalf("expected 4 queries, got %d", len(tx.queries))
	}
}

func TestSaveBatch_WriteError(t *testing.T) {
	sess := &mockSession{writeErr: errors.New("write fail")}
	gs := NewWithOpener(&mockOpener{session: sess})

	err := gs.SaveBatch(context.Background(), []Member{{Name: "Ivana Bacik"}})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRecordSpeech(t *testing.T) {
	gs, tx := newTrackingStore()

	d := Debate{
		ID:    "debate-2023-10-04",
		Title: "Housing Crisis: Motion",
		Date:  "2023-10-04",
		House: "dail",
		URL:   "https://www.oireachtas.ie/en/debates/debate/dail/2023-10-04/12/",
	}
	if err := gs.RecordSpeech(context.Background(), "Eoin Ó Broin", d); err != nil {
		t.Fatalf("RecordSpeech: %v", err)
	}

	// Member, debate, SPOKE_IN, PART_OF house, ABOUT policy area.
	if len(tx.queries) != 5 {
		t.Fatalf("expected 5 queries, got %d: %v", len(tx.queries), tx.queries)
	}
	if !strings.Contains(tx.queries[2], "SPOKE_IN") {
		t.Errorf("third query should merge SPOKE_IN: %s", tx.queries[2])
	}
	if !strings.Contains(tx.queries[3], "PART_OF") {
		t.Errorf("fourth query should link the house: %s", tx.queries[3])
	}
	if !strings.Contains(tx.queries[4], "ABOUT") {
		t.Errorf("fifth query should link the policy area: %s", tx.queries[4])
	}
	if tx.params[4]["areaID"] != "housing" {
		t.Errorf("expected sanitized area id housing, got %v", tx.params[4]["areaID"])
	}
}

func TestRecordSpeechProcedural(t *testing.T) {
	gs, tx := newTrackingStore()

	d := Debate{ID: "d1", Title: "Order of Business", Date: "2024-01-17"}
	if err := gs.RecordSpeech(context.Background(), "Seán Ó Fearghaíl", d); err != nil {
		t.Fatalf("RecordSpeech: %v", err)
	}

	// No house, unclassifiable title: member, debate, SPOKE_IN only.
	if len(tx.queries) != 3 {
		t.Fatalf("expected 3 queries, got %d: %v", len(tx.queries), tx.queries)
	}
	for _, q := range tx.queries {
		if strings.Contains(q, "PolicyArea") || strings.Contains(q, "House") {
			t.Errorf("procedural debate should not touch House or PolicyArea: %s", q)
		}
	}
}

func TestRecordSpeech_TxError(t *testing.T) {
	callCount := 0
	sess := &txErrorSession{failAt: 1, count: &callCount}
	gs := NewWithOpener(&mockOpener{session: sess})

	d := Debate{ID: "d1", Title: "Order of Business"}
	if err := gs.RecordSpeech(context.Background(), "Someone", d); err == nil {
		t.Fatal("expected tx error")
	}
}

func TestPartyOf(t *testing.T) {
	rec := makeRow([]string{"party"}, []any{"Sinn Féin"})
	sess := &mockSession{runResult: newMockResult(rec)}
	gs := NewWithOpener(&mockOpener{session: sess})

	party, err := gs.PartyOf(context.Background(), "Mary Lou McDonald")
	if err != nil {
		t.Fatalf("PartyOf: %v", err)
	}
	if party != "Sinn Féin" {
		t.Errorf("party = %q, want Sinn Féin", party)
	}
}

func TestPartyOf_NoEdge(t *testing.T) {
	sess := &mockSession{runResult: newMockResult()}
	gs := NewWithOpener(&mockOpener{session: sess})

	party, err := gs.PartyOf(context.Background(), "Independent Somebody")
	if err != nil {
		t.Fatalf("PartyOf: %v", err)
	}
	if party != "" {
		t.Errorf("expected empty party for missing edge, got %q", party)
	}
}

func TestPartyOf_RunError(t *testing.T) {
	sess := &mockSession{runErr: errors.New("run fail")}
	gs := NewWithOpener(&mockOpener{session: sess})

	if _, err := gs.PartyOf(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestColleagues(t *testing.T) {
	sess := &mockSession{runResult: newMockResult(
		makeRow([]string{"name"}, []any{"Jack Chambers"}),
		makeRow([]string{"name"}, []any{"Norma Foley"}),
	)}
	gs := NewWithOpener(&mockOpener{session: sess})

	names, err := gs.Colleagues(context.Background(), "Micheál Martin", 5)
	if err != nil {
		t.Fatalf("Colleagues: %v", err)
	}
	if len(names) != 2 || names[0] != "Jack Chambers" || names[1] != "Norma Foley" {
		t.Fatalf("wrong colleagues: %v", names)
	}
}

func TestRecentDebates(t *testing.T) {
	sess := &mockSession{runResult: newMockResult(
		makeRow([]string{"id", "title", "date"}, []any{"d2", "Housing Crisis: Motion", "2023-10-04"}),
		makeRow([]string{"id", "title", "date"}, []any{"d1", "Health Service: Statements", "2023-09-20"}),
	)}
	gs := NewWithOpener(&mockOpener{session: sess})

	refs, err := gs.RecentDebates(context.Background(), "Eoin Ó Broin", 3)
	if err != nil {
		t.Fatalf("RecentDebates: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs, got %d", len(refs))
	}
	if refs[0].ID != "d2" || refs[0].Title != "Housing Crisis: Motion" || refs[0].Date != "2023-10-04" {
		t.Errorf("wrong first ref: %+v", refs[0])
	}
}

func TestFindMembersByParty(t *testing.T) {
	sess := &mockSession{runResult: newMockResult(
		makeNodeRecord(map[string]any{
			"name": "Pearse Doherty", "party": "Sinn Féin", "house": "dail", "constituency": "Donegal",
		}),
	)}
	gs := NewWithOpener(&mockOpener{session: sess})

	members, err := gs.FindMembersByParty(context.Background(), "Sinn Féin")
	if err != nil {
		t.Fatalf("FindMembersByParty: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(members))
	}
	m := members[0]
	if m.Name != "Pearse Doherty" || m.Party != "Sinn Féin" || m.Constituency != "Donegal" {
		t.Errorf("wrong member: %+v", m)
	}
}

func TestDebateEntryID(t *testing.T) {
	url := "https://www.oireachtas.ie/en/debates/debate/dail/2023-10-04/12/"
	a := DebateEntryID(url)
	b := DebateEntryID(url)
	if a != b {
		t.Errorf("ID not deterministic: %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(a))
	}
	if a == DebateEntryID(url+"x") {
		t.Error("different URLs should yield different IDs")
	}
}

func TestDebateStatistics(t *testing.T) {
	sess := &seqSession{results: []CypherResult{
		newMockResult(
			makeRow([]string{"key", "cnt"}, []any{"dail", int64(7)}),
			makeRow([]string{"key", "cnt"}, []any{"seanad", int64(2)}),
		),
		newMockResult(
			makeRow([]string{"key", "cnt"}, []any{"Housing", int64(4)}),
		),
	}}
	gs := NewWithOpener(&mockOpener{session: sess})

	stats, err := gs.DebateStatistics(context.Background())
	if err != nil {
		t.Fatalf("DebateStatistics: %v", err)
	}
	if stats.Total != 9 {
		t.Errorf("total = %d, want 9", stats.Total)
	}
	if stats.ByHouse["dail"] != 7 || stats.ByHouse["seanad"] != 2 {
		t.Errorf("wrong house counts: %v", stats.ByHouse)
	}
	if stats.ByArea["Housing"] != 4 {
		t.Errorf("wrong area counts: %v", stats.ByArea)
	}
}

func TestNodeCounts(t *testing.T) {
	sess := &mockSession{runResult: newMockResult(
		makeRow([]string{"type", "count"}, []any{"Member", int64(160)}),
		makeRow([]string{"type", "count"}, []any{"Debate", int64(45)}),
	)}
	gs := NewWithOpener(&mockOpener{session: sess})

	counts, err := gs.NodeCounts(context.Background())
	if err != nil {
		t.Fatalf("NodeCounts: %v", err)
	}
	if counts["Member"] != 160 || counts["Debate"] != 45 {
		t.Errorf("wrong counts: %v", counts)
	}
}

func TestTopSpeakers(t *testing.T) {
	sess := &mockSession{runResult: newMockResult(
		makeRow([]string{"name", "party", "debates"}, []any{"Eoin Ó Broin", "Sinn Féin", int64(31)}),
		makeRow([]string{"name", "party", "debates"}, []any{"Michael Healy-Rae", nil, int64(27)}),
	)}
	gs := NewWithOpener(&mockOpener{session: sess})

	stats, err := gs.TopSpeakers(context.Background(), 10)
	if err != nil {
		t.Fatalf("TopSpeakers: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 speakers, got %d", len(stats))
	}
	if stats[0].Name != "Eoin Ó Broin" || stats[0].Party != "Sinn Féin" || stats[0].Debates != 31 {
		t.Errorf("wrong first speaker: %+v", stats[0])
	}
	if stats[1].Party != "" {
		t.Errorf("independent should have empty party, got %q", stats[1].Party)
	}
}

func TestPartyCounts(t *testing.T) {
	sess := &mockSession{runResult: newMockResult(
		makeRow([]string{"party", "members"}, []any{"Fianna Fáil", int64(38)}),
	)}
	gs := NewWithOpener(&mockOpener{session: sess})

	counts, err := gs.PartyCounts(context.Background())
	if err != nil {
		t.Fatalf("PartyCounts: %v", err)
	}
	if counts["Fianna Fáil"] != 38 {
		t.Errorf("wrong counts: %v", counts)
	}
}

func TestWithMetrics(t *testing.T) {
	reg := metrics.New()
	gs, _ := newTrackingStore()
	gs = gs.WithMetrics(reg)

	if err := gs.SaveMember(context.Background(), Member{Name: "Holly Cairns", Party: "Social Democrats"}); err != nil {
		t.Fatalf("SaveMember: %v", err)
	}
	d := Debate{ID: "d1", Title: "Housing Crisis: Motion", House: "dail"}
	if err := gs.RecordSpeech(context.Background(), "Holly Cairns", d); err != nil {
		t.Fatalf("RecordSpeech: %v", err)
	}

	if got := reg.Counter("graph_members_saved_total", "").Value(); got != 1 {
		t.Errorf("members counter = %d, want 1", got)
	}
	if got := reg.Counter("graph_speeches_recorded_total", "").Value(); got != 1 {
		t.Errorf("speeches counter = %d, want 1", got)
	}
	if got := reg.Counter("graph_op_errors_total", "").Value(); got != 0 {
		t.Errorf("errors counter = %d, want 0", got)
	}
}

type txErrorSession struct {
	failAt int
	count  *int
}

func (s *txErrorSession) Run(_ context.Context, _ string, _ map[string]any) (CypherResult, error) {
	return newMockResult(), nil
}

func (s *txErrorSession) Close(_ context.Context) error { return nil }

func (s *txErrorSession) ExecuteWrite(_ context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	return work(&txErrorRunner{failAt: s.failAt, count: s.count})
}

type txErrorRunner struct {
	failAt int
	count  *int
}

func (r *txErrorRunner) Run(_ context.Context, _ string, _ map[string]any) (CypherResult, error) {
	current := *r.count
	*r.count++
	if current == r.failAt {
		return nil, errors.New("tx run error")
	}
	return newMockResult(), nil
}
