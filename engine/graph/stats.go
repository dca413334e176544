package graph

import (
	"context"
)

// SpeakerStats holds per-member contribution counts.
type SpeakerStats struct {
	Name    string `json:"name"`
	Party   string `json:"party,omitempty"`
	Debates int64  `json:"debates"`
}

// NodeCounts returns node counts grouped by label.
func (g *GraphStore) NodeCounts(ctx context.Context) (map[string]int64, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n) RETURN labels(n)[0] AS type, count(*) AS count`
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		g.countError()
		return nil, err
	}
	counts := make(map[string]int64)
	for result.Next(ctx) {
		rec := result.Record()
		typ, _ := rec.Get("type")
		cnt, _ := rec.Get("count")
		if t, ok := typ.(string); ok {
			if c, ok := cnt.(int64); ok {
				counts[t] = c
			}
		}
	}
	return counts, nil
}

// RelationshipCounts returns relationship counts grouped by type.
func (g *GraphStore) RelationshipCounts(ctx context.Context) (map[string]int64, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH ()-[r]->() RETURN type(r) AS type, count(*) AS count`
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		g.countError()
		return nil, err
	}
	counts := make(map[string]int64)
	for result.Next(ctx) {
		rec := result.Record()
		typ, _ := rec.Get("type")
		cnt, _ := rec.Get("count")
		if t, ok := typ.(string); ok {
			if c, ok := cnt.(int64); ok {
				counts[t] = c
			}
		}
	}
	return counts, nil
}

// TopSpeakers returns the members who spoke in the most distinct debates.
func (g *GraphStore) TopSpeakers(ctx context.Context, limit int) ([]SpeakerStats, error) {
	if limit <= 0 {
		limit = 10
	}
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (m:Member)-[:SPOKE_IN]->(d:Debate)
		OPTIONAL MATCH (m)-[:MEMBER_OF]->(p:Party)
		RETURN m.name AS name, p.name AS party, count(DISTINCT d) AS debates
		ORDER BY debates DESC LIMIT $limit`
	result, err := sess.Run(ctx, cypher, map[string]any{"limit": int64(limit)})
	if err != nil {
		g.countError()
		return nil, err
	}
	var stats []SpeakerStats
	for result.Next(ctx) {
		rec := result.Record()
		name, _ := rec.Get("name")
		party, _ := rec.Get("party")
		debates, _ := rec.Get("debates")
		s := SpeakerStats{}
		if n, ok := name.(string); ok {
			s.Name = n
		}
		if p, ok := party.(string); ok {
			s.Party = p
		}
		if d, ok := debates.(int64); ok {
			s.Debates = d
		}
		stats = append(stats, s)
	}
	return stats, nil
}

// PartyCounts returns member counts grouped by party.
func (g *GraphStore) PartyCounts(ctx context.Context) (map[string]int64, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (m:Member)-[:MEMBER_OF]->(p:Party)
		RETURN p.name AS party, count(m) AS members`
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		g.countError()
		return nil, err
	}
	counts := make(map[string]int64)
	for result.Next(ctx) {
		rec := result.Record()
		party, _ := rec.Get("party")
		members, _ := rec.Get("members")
		if p, ok := party.(string); ok {
			if m, ok := members.(int64); ok {
				counts[p] = m
			}
		}
	}
	return counts, nil
}
