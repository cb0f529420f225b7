package store

import (
	"context"
	"fmt"
)

// EdgeRow is the storage-layer representation of a graph edge.
type EdgeRow struct {
	ID         string
	BankID     string
	Src        string
	Dst        string
	LinkType   string
	Weight     float64
	CausalKind string
}

// Neighbor is one result of a Neighbors query.
type Neighbor struct {
	Dst        string
	LinkType   string
	Weight     float64
	CausalKind string
}

// AddEdge inserts one edge row. Bidirectional link types (entity, semantic)
// are the caller's responsibility to insert symmetrically; this method
// stores exactly the directed row it is given, matching the donor's
// graph.UpsertEdge which does not itself fan out a reverse edge.
func (s *Store) AddEdge(ctx context.Context, e EdgeRow) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	var causalKind any
	if e.CausalKind != "" {
		causalKind = e.CausalKind
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO edges (id, bank_id, src, dst, link_type, weight, causal_kind)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.BankID, e.Src, e.Dst, e.LinkType, e.Weight, causalKind)
	if err != nil {
		return fmt.Errorf("store: add edge %s: %w", e.ID, err)
	}
	return nil
}

// Neighbors returns the outgoing edges of unitID, optionally filtered to
// linkTypes (empty means all types).
func (s *Store) Neighbors(ctx context.Context, unitID string, linkTypes []string) ([]Neighbor, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	query := `SELECT dst, link_type, weight, COALESCE(causal_kind, '') FROM edges WHERE src = ?`
	args := []any{unitID}
	if len(linkTypes) > 0 {
		placeholders, typeArgs := factTypePlaceholders(linkTypes)
		query += ` AND link_type IN (` + placeholders + `)`
		args = append(args, typeArgs...)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: neighbors of %s: %w", unitID, err)
	}
	defer rows.Close()

	var out []Neighbor
	for rows.Next() {
		var n Neighbor
		if err := rows.Scan(&n.Dst, &n.LinkType, &n.Weight, &n.CausalKind); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// RemoveEdgesFor deletes every edge touching unitID. Also invoked
// implicitly by ON DELETE CASCADE when the unit itself is deleted; exposed
// directly for the case where only the edges (not the unit) are stale.
func (s *Store) RemoveEdgesFor(ctx context.Context, unitID string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM edges WHERE src = ? OR dst = ?`, unitID, unitID)
	return err
}

// UnitsMentioning returns the ids of every memory unit linked to entityID.
func (s *Store) UnitsMentioning(ctx context.Context, entityID string) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT memory_id FROM entity_links WHERE entity_id = ?`, entityID)
	if err != nil {
		return nil, fmt.Errorf("store: units_mentioning %s: %w", entityID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
