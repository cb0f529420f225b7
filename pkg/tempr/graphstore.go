package tempr

import (
	"context"

	"github.com/google/uuid"
	"github.com/tempr-dev/tempr/internal/store"
)

// graphStore adapts internal/store's edge rows to Edge and implements the
// operations from spec §4.5.
type graphStore struct {
	db *store.Store
}

type neighborEdge struct {
	Dst        string
	LinkType   LinkType
	Weight     float64
	CausalKind CausalKind
}

func (g *graphStore) addEdge(ctx context.Context, e Edge) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	row := store.EdgeRow{
		ID: e.ID, BankID: e.BankID, Src: e.Src, Dst: e.Dst,
		LinkType: string(e.LinkType), Weight: e.Weight, CausalKind: string(e.CausalKind),
	}
	if err := g.db.AddEdge(ctx, row); err != nil {
		return CoreUnavailablef("add edge %s", e.ID)
	}
	return nil
}

// addBidirectionalEdge inserts e and its reverse, for entity and semantic
// link types which spec §3 requires to be symmetric/bidirectional
// regardless of which direction the caller built. This is the open-
// question resolution recorded in DESIGN.md: AddEdge itself stores exactly
// the directed row given, so ingest.go calls this helper for those two
// link types instead of relying on callers to remember to do it twice.
func (g *graphStore) addBidirectionalEdge(ctx context.Context, e Edge) error {
	if err := g.addEdge(ctx, e); err != nil {
		return err
	}
	reverse := e
	reverse.ID = uuid.NewString()
	reverse.Src, reverse.Dst = e.Dst, e.Src
	return g.addEdge(ctx, reverse)
}

func (g *graphStore) neighbors(ctx context.Context, unitID string, linkTypes []LinkType) ([]neighborEdge, error) {
	types := make([]string, len(linkTypes))
	for i, t := range linkTypes {
		types[i] = string(t)
	}
	rows, err := g.db.Neighbors(ctx, unitID, types)
	if err != nil {
		return nil, CoreUnavailablef("neighbors of %s", unitID)
	}
	out := make([]neighborEdge, len(rows))
	for i, r := range rows {
		out[i] = neighborEdge{Dst: r.Dst, LinkType: LinkType(r.LinkType), Weight: r.Weight, CausalKind: CausalKind(r.CausalKind)}
	}
	return out, nil
}

func (g *graphStore) removeEdgesFor(ctx context.Context, unitID string) error {
	if err := g.db.RemoveEdgesFor(ctx, unitID); err != nil {
		return CoreUnavailablef("remove edges for %s", unitID)
	}
	return nil
}

func (g *graphStore) unitsMentioning(ctx context.Context, entityID string) ([]string, error) {
	ids, err := g.db.UnitsMentioning(ctx, entityID)
	if err != nil {
		return nil, CoreUnavailablef("units_mentioning %s", entityID)
	}
	return ids, nil
}
