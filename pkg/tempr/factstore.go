package tempr

import (
	"context"
	"time"

	"github.com/tempr-dev/tempr/internal/store"
)

// factStore adapts internal/store's Unit rows to MemoryUnit and implements
// the four retrieval operations from spec §4.4.
type factStore struct {
	db *store.Store
}

func factTypeStrings(types []FactType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func toUnit(u MemoryUnit) store.Unit {
	row := store.Unit{
		ID:              u.ID,
		BankID:          u.BankID,
		Text:            u.Text,
		Embedding:       u.Embedding,
		MentionedAt:     u.MentionedAt.UTC().Unix(),
		Context:         u.Context,
		FactType:        string(u.FactType),
		ConfidenceScore: u.ConfidenceScore,
		AccessCount:     u.AccessCount,
		DocumentID:      u.DocumentID,
	}
	if u.OccurredStart != nil {
		v := u.OccurredStart.UTC().Unix()
		row.OccurredStart = &v
	}
	if u.OccurredEnd != nil {
		v := u.OccurredEnd.UTC().Unix()
		row.OccurredEnd = &v
	}
	return row
}

func fromUnit(row store.Unit) MemoryUnit {
	u := MemoryUnit{
		ID:              row.ID,
		BankID:          row.BankID,
		Text:            row.Text,
		Embedding:       row.Embedding,
		MentionedAt:     time.Unix(row.MentionedAt, 0).UTC(),
		Context:         row.Context,
		FactType:        FactType(row.FactType),
		ConfidenceScore: row.ConfidenceScore,
		AccessCount:     row.AccessCount,
		DocumentID:      row.DocumentID,
	}
	if row.OccurredStart != nil {
		t := time.Unix(*row.OccurredStart, 0).UTC()
		u.OccurredStart = &t
	}
	if row.OccurredEnd != nil {
		t := time.Unix(*row.OccurredEnd, 0).UTC()
		u.OccurredEnd = &t
	}
	return u
}

func (f *factStore) put(ctx context.Context, u MemoryUnit) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if err := f.db.PutUnit(ctx, toUnit(u)); err != nil {
		return CoreUnavailablef("persist memory unit %s", u.ID)
	}
	return nil
}

func (f *factStore) getMany(ctx context.Context, ids []string) ([]MemoryUnit, error) {
	rows, err := f.db.GetMany(ctx, ids)
	if err != nil {
		return nil, CoreUnavailablef("get_many")
	}
	out := make([]MemoryUnit, len(rows))
	for i, r := range rows {
		out[i] = fromUnit(r)
	}
	return out, nil
}

// scoredUnit pairs a MemoryUnit with a strategy-local score (similarity,
// BM25 rank score, or activation), used uniformly by strategies.go.
type scoredUnit struct {
	Unit  MemoryUnit
	Score float64
}

func (f *factStore) vectorKNN(ctx context.Context, bankID string, types []FactType, q []float32, k int, minSim float64) ([]scoredUnit, error) {
	rows, err := f.db.VectorKNN(ctx, bankID, factTypeStrings(types), q, k, minSim)
	if err != nil {
		return nil, CoreUnavailablef("vector_knn")
	}
	out := make([]scoredUnit, len(rows))
	for i, r := range rows {
		out[i] = scoredUnit{Unit: fromUnit(r.Unit), Score: r.Score}
	}
	return out, nil
}

func (f *factStore) keywordSearch(ctx context.Context, bankID string, types []FactType, query string, k int) ([]scoredUnit, error) {
	rows, err := f.db.KeywordSearch(ctx, bankID, factTypeStrings(types), query, k)
	if err != nil {
		return nil, CoreUnavailablef("keyword_search")
	}
	out := make([]scoredUnit, len(rows))
	for i, r := range rows {
		out[i] = scoredUnit{Unit: fromUnit(r.Unit), Score: r.Score}
	}
	return out, nil
}

func (f *factStore) rangeLookup(ctx context.Context, bankID string, types []FactType, iv Interval) ([]MemoryUnit, error) {
	rows, err := f.db.RangeLookup(ctx, bankID, factTypeStrings(types), iv.Start.UTC().Unix(), iv.End.UTC().Unix())
	if err != nil {
		return nil, CoreUnavailablef("range_lookup")
	}
	out := make([]MemoryUnit, len(rows))
	for i, r := range rows {
		out[i] = fromUnit(r)
	}
	return out, nil
}

func (f *factStore) bumpAccessCount(ctx context.Context, ids []string) {
	_ = f.db.BumpAccessCount(ctx, ids) // best-effort, spec §5
}

func (f *factStore) deleteUnit(ctx context.Context, id string) error {
	if err := f.db.DeleteUnit(ctx, id); err != nil {
		return CoreUnavailablef("delete unit %s", id)
	}
	return nil
}

func (f *factStore) putDocument(ctx context.Context, id, bankID string) error {
	if err := f.db.PutDocument(ctx, id, bankID); err != nil {
		return CoreUnavailablef("put document %s", id)
	}
	return nil
}
