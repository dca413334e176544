package graph

import (
	"context"
	"crypto/sha256"
	"fmt"
)

// DebateEntryID produces a deterministic debate ID from a URL, for source
// records that carry no upstream debate identifier.
func DebateEntryID(url string) string {
	h := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%x", h[:16])
}

// RecordSpeech links a speaker to the debate they spoke in, creating the
// Member, Debate, House and PolicyArea nodes on first sight. Untitled or
// unclassifiable debates simply get no ABOUT edge.
func (g *GraphStore) RecordSpeech(ctx context.Context, speaker string, d Debate) error {
	if d.Area == "" {
		d.Area, _ = ClassifyDebate(d.Title, "")
	}

	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		cypher := `MERGE (m:Member {name: $name})`
		if _, err := tx.Run(ctx, cypher, map[string]any{"name": speaker}); err != nil {
			return nil, err
		}

		props := map[string]any{
			"title": d.Title,
			"date":  d.Date,
			"house": d.House,
		}
		if d.URL != "" {
			props["url"] = d.URL
		}
		if d.Area != "" {
			props["area"] = d.Area
		}
		cypher = `MERGE (d:Debate {id: $id}) SET d += $props`
		if _, err := tx.Run(ctx, cypher, map[string]any{"id": d.ID, "props": props}); err != nil {
			return nil, err
		}

		cypher = `MATCH (m:Member {name: $name}), (d:Debate {id: $id})
		          MERGE (m)-[:SPOKE_IN]->(d)`
		if _, err := tx.Run(ctx, cypher, map[string]any{"name": speaker, "id": d.ID}); err != nil {
			return nil, err
		}

		if d.House != "" {
			cypher = `MERGE (h:House {name: $house})
			          WITH h
			          MATCH (d:Debate {id: $id})
			          MERGE (d)-[:PART_OF]->(h)`
			if _, err := tx.Run(ctx, cypher, map[string]any{"house": d.House, "id": d.ID}); err != nil {
				return nil, err
			}
		}

		if d.Area != "" {
			cypher = `MERGE (a:PolicyArea {id: $areaID}) SET a.name = $area
			          WITH a
			          MATCH (d:Debate {id: $id})
			          MERGE (d)-[:ABOUT]->(a)`
			if _, err := tx.Run(ctx, cypher, map[string]any{
				"areaID": sanitizeID(d.Area), "area": d.Area, "id": d.ID,
			}); err != nil {
				return nil, err
			}
		}

		return nil, nil
	})
	g.countSpeech(err)
	return err
}

// RecentDebates returns the debates a member spoke in, newest sitting first.
func (g *GraphStore) RecentDebates(ctx context.Context, name string, limit int) ([]DebateRef, error) {
	if limit <= 0 {
		limit = 3
	}
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (m:Member {name: $name})-[:SPOKE_IN]->(d:Debate)
	           RETURN d.id AS id, d.title AS title, d.date AS date
	           ORDER BY date DESC LIMIT $limit`
	result, err := sess.Run(ctx, cypher, map[string]any{"name": name, "limit": int64(limit)})
	if err != nil {
		return nil, err
	}

	var refs []DebateRef
	for result.Next(ctx) {
		rec := result.Record()
		ref := DebateRef{}
		if v, _ := rec.Get("id"); v != nil {
			if s, ok := v.(string); ok {
				ref.ID = s
			}
		}
		if v, _ := rec.Get("title"); v != nil {
			if s, ok := v.(string); ok {
				ref.Title = s
			}
		}
		if v, _ := rec.Get("date"); v != nil {
			if s, ok := v.(string); ok {
				ref.Date = s
			}
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// DebateStats holds aggregate debate counts.
type DebateStats struct {
	Total   int            `json:"total"`
	ByHouse map[string]int `json:"by_house"`
	ByArea  map[string]int `json:"by_area"`
}

// DebateStatistics returns debate counts grouped by house and policy area.
func (g *GraphStore) DebateStatistics(ctx context.Context) (DebateStats, error) {
	sess := g.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	stats := DebateStats{
		ByHouse: make(map[string]int),
		ByArea:  make(map[string]int),
	}

	cypher := `MATCH (d:Debate) RETURN d.house AS key, count(d) AS cnt`
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return stats, err
	}
	for result.Next(ctx) {
		rec := result.Record()
		k, _ := rec.Get("key")
		c, _ := rec.Get("cnt")
		if house, ok := k.(string); ok {
			if cnt, ok := c.(int64); ok {
				stats.ByHouse[house] = int(cnt)
				stats.Total += int(cnt)
			}
		}
	}

	cypher = `MATCH (d:Debate) WHERE d.area IS NOT NULL RETURN d.area AS key, count(d) AS cnt`
	result, err = sess.Run(ctx, cypher, nil)
	if err != nil {
		return stats, err
	}
	for result.Next(ctx) {
		rec := result.Record()
		k, _ := rec.Get("key")
		c, _ := rec.Get("cnt")
		if area, ok := k.(string); ok {
			if cnt, ok := c.(int64); ok {
				stats.ByArea[area] = int(cnt)
			}
		}
	}

	return stats, nil
}
