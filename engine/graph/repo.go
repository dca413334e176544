package graph

import (
	"github.com/OireachtasAI/oireachtas-mvp/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// newMemberRepo creates a Neo4j-backed repository for Member nodes keyed by
// canonical name.
func newMemberRepo(driver neo4j.DriverWithContext) *repo.Neo4jRepo[Member, string] {
	return repo.NewNeo4jRepo[Member, string](
		driver,
		"Member",
		memberToMap,
		memberFromRecord,
		repo.WithIDKey[Member, string]("name"),
	)
}

func memberToMap(m Member) map[string]any {
	return map[string]any{
		"name":         m.Name,
		"party":        m.Party,
		"house":        m.House,
		"constituency": m.Constituency,
	}
}

func memberFromRecord(rec *neo4j.Record) (Member, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return Member{}, err
	}
	return memberFromProps(node.Props), nil
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
