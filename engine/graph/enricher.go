package graph

import (
	"context"
	"fmt"
)

// Enricher summarises the graph neighbourhood of a member so the answering
// pipeline can hand the model party context alongside the quotes.
type Enricher struct {
	graph          *GraphStore
	colleagueLimit int
	debateLimit    int
}

// NewEnricher creates an Enricher with default context sizes.
func NewEnricher(gs *GraphStore) *Enricher {
	return &Enricher{graph: gs, colleagueLimit: 5, debateLimit: 3}
}

// MemberContext gathers the member's party, a few party colleagues, and the
// debates they spoke in most recently.
func (e *Enricher) MemberContext(ctx context.Context, member string) (MemberContext, error) {
	mc := MemberContext{Member: member}

	party, err := e.graph.PartyOf(ctx, member)
	if err != nil {
		return mc, fmt.Errorf("enricher: party of %s: %w", member, err)
	}
	mc.Party = party

	colleagues, err := e.graph.Colleagues(ctx, member, e.colleagueLimit)
	if err != nil {
		return mc, fmt.Errorf("enricher: colleagues of %s: %w", member, err)
	}
	mc.Colleagues = colleagues

	debates, err := e.graph.RecentDebates(ctx, member, e.debateLimit)
	if err != nil {
		return mc, fmt.Errorf("enricher: recent debates of %s: %w", member, err)
	}
	mc.Debates = debates

	return mc, nil
}
