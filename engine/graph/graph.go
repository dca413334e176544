package graph

import (
	"context"

	"github.com/OireachtasAI/oireachtas-mvp/pkg/metrics"
	"github.com/OireachtasAI/oireachtas-mvp/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// CypherResult is the subset of a Neo4j result the store reads.
type CypherResult interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// CypherRunner executes one Cypher statement. Both sessions and managed
// transactions satisfy it.
type CypherRunner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error)
}

// CypherSession is one unit of graph work. Sessions are opened per call and
// closed before the call returns.
type CypherSession interface {
	CypherRunner
	ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error)
	Close(ctx context.Context) error
}

// SessionOpener opens Cypher sessions. The production opener wraps a Neo4j
// driver; tests substitute their own.
type SessionOpener interface {
	OpenSession(ctx context.Context) CypherSession
}

// GraphStore provides graph operations for members, parties, debates and
// houses.
type GraphStore struct {
	opener  SessionOpener
	members *repo.Neo4jRepo[Member, string]
	met     *opCounters
}

// New creates a GraphStore backed by a Neo4j driver.
func New(driver neo4j.DriverWithContext) *GraphStore {
	return &GraphStore{
		opener:  driverOpener{driver: driver},
		members: newMemberRepo(driver),
	}
}

// NewWithOpener creates a GraphStore with a custom session opener.
func NewWithOpener(opener SessionOpener) *GraphStore {
	return &GraphStore{opener: opener}
}

// opCounters tracks graph write volume once a metrics registry is attached.
type opCounters struct {
	members  *metrics.Counter
	speeches *metrics.Counter
	errors   *metrics.Counter
}

// WithMetrics registers op counters on reg and reports this store's writes
// through them. Returns the store for chaining at construction.
func (g *GraphStore) WithMetrics(reg *metrics.Registry) *GraphStore {
	g.met = &opCounters{
		members:  reg.Counter("graph_members_saved_total", "Member nodes merged into the graph."),
		speeches: reg.Counter("graph_speeches_recorded_total", "Speeches recorded into the graph."),
		errors:   reg.Counter("graph_op_errors_total", "Graph operations that returned an error."),
	}
	return g
}

func (g *GraphStore) countMember(err error) {
	if g.met == nil {
		return
	}
	if err != nil {
		g.met.errors.Inc()
		return
	}
	g.met.members.Inc()
}

func (g *GraphStore) countSpeech(err error) {
	if g.met == nil {
		return
	}
	if err != nil {
		g.met.errors.Inc()
		return
	}
	g.met.speeches.Inc()
}

func (g *GraphStore) countError() {
	if g.met != nil {
		g.met.errors.Inc()
	}
}

// driverOpener adapts a Neo4j driver to the SessionOpener seam.
type driverOpener struct {
	driver neo4j.DriverWithContext
}

func (o driverOpener) OpenSession(ctx context.Context) CypherSession {
	return driverSession{inner: o.driver.NewSession(ctx, neo4j.SessionConfig{})}
}

type driverSession struct {
	inner neo4j.SessionWithContext
}

func (s driverSession) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	return s.inner.Run(ctx, cypher, params)
}

func (s driverSession) ExecuteWrite(ctx context.Context, work func(tx CypherRunner) (any, error)) (any, error) {
	return s.inner.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return work(txRunner{tx: tx})
	})
}

func (s driverSession) Close(ctx context.Context) error { return s.inner.Close(ctx) }

type txRunner struct {
	tx neo4j.ManagedTransaction
}

func (r txRunner) Run(ctx context.Context, cypher string, params map[string]any) (CypherResult, error) {
	return r.tx.Run(ctx, cypher, params)
}

// GetMember returns a member by canonical name.
func (g *GraphStore) GetMember(ctx context.Context, name string) (Member, error) {
	return g.members.Get(ctx, name)
}

// ListMembers pages through member nodes ordered by name.
func (g *GraphStore) ListMembers(ctx context.Context, opts repo.ListOpts) ([]Member, error) {
	return g.members.List(ctx, opts)
}

// SaveMember creates or updates a Member node and its MEMBER_OF edge.
func (g *GraphStore) SaveMember(ctx context.Context, m Member) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	err := saveMemberWith(ctx, sess, m)
	g.countMember(err)
	return err
}

// saveMemberWith merges one member node plus party edge through any runner,
// so single saves and batch transactions share the statements.
func saveMemberWith(ctx context.Context, tx CypherRunner, m Member) error {
	cypher := `MERGE (n:Member {name: $name})
	           SET n.party = $party, n.house = $house, n.constituency = $constituency`
	if _, err := tx.Run(ctx, cypher, map[string]any{
		"name":         m.Name,
		"party":        m.Party,
		"house":        m.House,
		"constituency": m.Constituency,
	}); err != nil {
		return err
	}
	if m.Party == "" {
		return nil
	}
	cypher = `MERGE (p:Party {name: $party})
	          WITH p
	          MATCH (n:Member {name: $name})
	          MERGE (n)-[:MEMBER_OF]->(p)`
	_, err := tx.Run(ctx, cypher, map[string]any{"name": m.Name, "party": m.Party})
	return err
}

// SaveParty creates or updates a Party node.
func (g *GraphStore) SaveParty(ctx context.Context, p Party) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MERGE (n:Party {name: $name})`
	_, err := sess.Run(ctx, cypher, map[string]any{"name": p.Name})
	return err
}

// SaveBatch merges multiple members in a single transaction.
func (g *GraphStore) SaveBatch(ctx context.Context, members []Member) error {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		for _, m := range members {
			if err := saveMemberWith(ctx, tx, m); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	g.countMember(err)
	return err
}

// PartyOf returns the party a member belongs to, or "" when the member or
// edge is missing.
func (g *GraphStore) PartyOf(ctx context.Context, name string) (string, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (m:Member {name: $name})-[:MEMBER_OF]->(p:Party)
	           RETURN p.name AS party LIMIT 1`
	result, err := sess.Run(ctx, cypher, map[string]any{"name": name})
	if err != nil {
		return "", err
	}
	if !result.Next(ctx) {
		return "", nil
	}
	party, _ := result.Record().Get("party")
	if p, ok := party.(string); ok {
		return p, nil
	}
	return "", nil
}

// Colleagues returns other members of the same party, ordered by name.
func (g *GraphStore) Colleagues(ctx context.Context, name string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (m:Member {name: $name})-[:MEMBER_OF]->(:Party)<-[:MEMBER_OF]-(c:Member)
	           WHERE c.name <> $name
	           RETURN DISTINCT c.name AS name
	           ORDER BY name LIMIT $limit`
	result, err := sess.Run(ctx, cypher, map[string]any{"name": name, "limit": int64(limit)})
	if err != nil {
		return nil, err
	}
	var names []string
	for result.Next(ctx) {
		v, _ := result.Record().Get("name")
		if n, ok := v.(string); ok {
			names = append(names, n)
		}
	}
	return names, nil
}

// FindMembersByParty returns all members linked to a party.
func (g *GraphStore) FindMembersByParty(ctx context.Context, party string) ([]Member, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:Member)-[:MEMBER_OF]->(:Party {name: $party})
	           RETURN n ORDER BY n.name`
	result, err := sess.Run(ctx, cypher, map[string]any{"party": party})
	if err != nil {
		return nil, err
	}
	return collectMembers(ctx, result)
}

// collectMembers reads all Member nodes from a result set.
func collectMembers(ctx context.Context, result CypherResult) ([]Member, error) {
	var items []Member
	for result.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "n")
		if err != nil {
			return nil, err
		}
		items = append(items, memberFromProps(node.Props))
	}
	return items, nil
}

// memberFromProps constructs a Member from Neo4j node properties.
func memberFromProps(props map[string]any) Member {
	return Member{
		Name:         strProp(props, "name"),
		Party:        strProp(props, "party"),
		House:        strProp(props, "house"),
		Constituency: strProp(props, "constituency"),
	}
}
