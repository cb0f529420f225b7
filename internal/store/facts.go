package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// Unit is the storage-layer representation of a memory unit. pkg/tempr's
// factstore.go translates between this and tempr.MemoryUnit at the package
// boundary, keeping SQL/driver concerns out of the public types.
type Unit struct {
	ID              string
	BankID          string
	Text            string
	Embedding       []float32
	OccurredStart   *int64 // unix seconds, UTC
	OccurredEnd     *int64
	MentionedAt     int64
	Context         string
	FactType        string
	ConfidenceScore *float64
	AccessCount     int64
	DocumentID      string
}

// Scored pairs a Unit with a similarity or relevance score.
type Scored struct {
	Unit  Unit
	Score float64
}

// PutUnit inserts or replaces a memory unit.
func (s *Store) PutUnit(ctx context.Context, u Unit) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	var docID any
	if u.DocumentID != "" {
		docID = u.DocumentID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_units
			(id, bank_id, text, embedding, occurred_start, occurred_end, mentioned_at, context, fact_type, confidence_score, access_count, document_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text=excluded.text, embedding=excluded.embedding, occurred_start=excluded.occurred_start,
			occurred_end=excluded.occurred_end, mentioned_at=excluded.mentioned_at, context=excluded.context,
			fact_type=excluded.fact_type, confidence_score=excluded.confidence_score, document_id=excluded.document_id
	`, u.ID, u.BankID, u.Text, encodeVector(u.Embedding), u.OccurredStart, u.OccurredEnd, u.MentionedAt,
		u.Context, u.FactType, u.ConfidenceScore, u.AccessCount, docID)
	if err != nil {
		return fmt.Errorf("store: put unit %s: %w", u.ID, err)
	}
	return nil
}

// GetMany returns units by id, preserving input order (spec §4.4 get_many).
// Missing ids are simply omitted.
func (s *Store) GetMany(ctx context.Context, ids []string) ([]Unit, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bank_id, text, embedding, occurred_start, occurred_end, mentioned_at, context, fact_type, confidence_score, access_count, COALESCE(document_id, '')
		FROM memory_units WHERE id IN (`+strings.Join(placeholders, ",")+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: get_many: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]Unit, len(ids))
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		byID[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Unit, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(row rowScanner) (Unit, error) {
	var u Unit
	var emb []byte
	var confidence sql.NullFloat64
	var start, end sql.NullInt64
	if err := row.Scan(&u.ID, &u.BankID, &u.Text, &emb, &start, &end, &u.MentionedAt, &u.Context, &u.FactType, &confidence, &u.AccessCount, &u.DocumentID); err != nil {
		return Unit{}, fmt.Errorf("store: scan unit: %w", err)
	}
	vec, err := decodeVector(emb)
	if err != nil {
		return Unit{}, err
	}
	u.Embedding = vec
	if start.Valid {
		v := start.Int64
		u.OccurredStart = &v
	}
	if end.Valid {
		v := end.Int64
		u.OccurredEnd = &v
	}
	if confidence.Valid {
		v := confidence.Float64
		u.ConfidenceScore = &v
	}
	return u, nil
}

func factTypePlaceholders(types []string) (string, []any) {
	placeholders := make([]string, len(types))
	args := make([]any, len(types))
	for i, t := range types {
		placeholders[i] = "?"
		args[i] = t
	}
	return strings.Join(placeholders, ","), args
}

// VectorKNN returns the k nearest units by cosine similarity >= minSim,
// excluding fact_type='observation' unconditionally (spec §4.4). Brute
// force: a correctness-grade choice documented in DESIGN.md in place of
// the donor's HNSW/IVF index, since spec.md never requires sub-linear
// search at this scale.
func (s *Store) VectorKNN(ctx context.Context, bankID string, factTypes []string, query []float32, k int, minSim float64) ([]Scored, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	placeholders, args := factTypePlaceholders(factTypes)
	args = append([]any{bankID}, args...)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bank_id, text, embedding, occurred_start, occurred_end, mentioned_at, context, fact_type, confidence_score, access_count, COALESCE(document_id, '')
		FROM memory_units WHERE bank_id = ? AND fact_type != 'observation' AND fact_type IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: vector_knn: %w", err)
	}
	defer rows.Close()

	var scored []Scored
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		sim := cosine(query, u.Embedding)
		if sim < minSim {
			continue
		}
		scored = append(scored, Scored{Unit: u, Score: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// KeywordSearch runs a BM25-ranked FTS5 query over memory_units.text,
// excluding observations (spec §4.4).
func (s *Store) KeywordSearch(ctx context.Context, bankID string, factTypes []string, query string, k int) ([]Scored, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	placeholders, args := factTypePlaceholders(factTypes)
	queryArgs := append([]any{query, bankID}, args...)
	queryArgs = append(queryArgs, k)
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.bank_id, m.text, m.embedding, m.occurred_start, m.occurred_end, m.mentioned_at, m.context, m.fact_type, m.confidence_score, m.access_count, COALESCE(m.document_id, ''), bm25(memory_units_fts) AS rank
		FROM memory_units_fts
		JOIN memory_units m ON m.rowid = memory_units_fts.rowid
		WHERE memory_units_fts MATCH ? AND m.bank_id = ? AND m.fact_type != 'observation' AND m.fact_type IN (`+placeholders+`)
		ORDER BY rank ASC
		LIMIT ?
	`, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("store: keyword_search: %w", err)
	}
	defer rows.Close()

	var scored []Scored
	for rows.Next() {
		var u Unit
		var emb []byte
		var confidence sql.NullFloat64
		var start, end sql.NullInt64
		var bm25rank float64
		if err := rows.Scan(&u.ID, &u.BankID, &u.Text, &emb, &start, &end, &u.MentionedAt, &u.Context, &u.FactType, &confidence, &u.AccessCount, &u.DocumentID, &bm25rank); err != nil {
			return nil, fmt.Errorf("store: scan keyword result: %w", err)
		}
		vec, err := decodeVector(emb)
		if err != nil {
			return nil, err
		}
		u.Embedding = vec
		if start.Valid {
			v := start.Int64
			u.OccurredStart = &v
		}
		if end.Valid {
			v := end.Int64
			u.OccurredEnd = &v
		}
		if confidence.Valid {
			v := confidence.Float64
			u.ConfidenceScore = &v
		}
		// bm25() is negative-is-better in SQLite's FTS5; invert to a
		// positive "higher is more relevant" score for fusion.go's ranking.
		scored = append(scored, Scored{Unit: u, Score: -bm25rank})
	}
	return scored, rows.Err()
}

// RangeLookup returns units whose [occurred_start, occurred_end] overlaps
// [start, end) using the half-open predicate from spec §4.4.
func (s *Store) RangeLookup(ctx context.Context, bankID string, factTypes []string, start, end int64) ([]Unit, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	placeholders, args := factTypePlaceholders(factTypes)
	args = append([]any{bankID, end, start}, args...)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bank_id, text, embedding, occurred_start, occurred_end, mentioned_at, context, fact_type, confidence_score, access_count, COALESCE(document_id, '')
		FROM memory_units
		WHERE bank_id = ?
		  AND occurred_start IS NOT NULL AND occurred_end IS NOT NULL
		  AND occurred_start < ? AND ? < occurred_end
		  AND fact_type IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: range_lookup: %w", err)
	}
	defer rows.Close()

	var units []Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// BumpAccessCount increments access_count for the given ids. Best-effort
// per spec §5: callers may batch and tolerate occasional loss.
func (s *Store) BumpAccessCount(ctx context.Context, ids []string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	placeholders, args := factTypePlaceholders(ids)
	_, err := s.db.ExecContext(ctx, `UPDATE memory_units SET access_count = access_count + 1 WHERE id IN (`+placeholders+`)`, args...)
	return err
}

// DeleteUnit removes a memory unit; cascades to its edges and entity links.
func (s *Store) DeleteUnit(ctx context.Context, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM memory_units WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete unit %s: %w", id, err)
	}
	return nil
}

// PutDocument upserts a document and, if it already existed, cascades the
// delete of its prior units first (spec §3's "replaces its memories").
func (s *Store) PutDocument(ctx context.Context, id, bankID string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: replace document %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO documents (id, bank_id) VALUES (?, ?)`, id, bankID); err != nil {
		return fmt.Errorf("store: insert document %s: %w", id, err)
	}
	return tx.Commit()
}
