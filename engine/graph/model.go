// Package graph provides Neo4j knowledge graph operations for Oireachtas
// membership and debate data.
package graph

// Member represents a parliamentarian node.
type Member struct {
	Name         string `json:"name"`
	Party        string `json:"party"`
	House        string `json:"house"`
	Constituency string `json:"constituency,omitempty"`
}

// Party represents a political party node.
type Party struct {
	Name string `json:"name"`
}

// House represents a chamber node ("dail", "seanad", "committee:...").
type House struct {
	Name string `json:"name"`
}

// Debate represents one debate sitting. ID is the upstream debate
// identifier, or a URL-derived hash when the source record lacks one.
type Debate struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"` // ISO sitting date
	House string `json:"house"`
	URL   string `json:"url,omitempty"`
	Area  string `json:"area,omitempty"` // classified policy area
}

// DebateRef is a compact reference to a debate a member spoke in.
type DebateRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
}

// MemberContext aggregates graph context around one member for prompt
// enrichment.
type MemberContext struct {
	Member     string      `json:"member"`
	Party      string      `json:"party"`
	Colleagues []string    `json:"colleagues,omitempty"`
	Debates    []DebateRef `json:"debates,omitempty"`
}
