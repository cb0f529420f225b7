package tempr

import (
	"context"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/google/uuid"
	"github.com/tempr-dev/tempr/internal/store"
)

// entityStore resolves entity mentions to Entity rows and owns entity
// persistence. Fuzzy matching is grounded on MrWong99/glyphoxa's
// internal/transcript/phonetic use of antzucaro/matchr for candidate
// scoring, adapted here to spec §4.11 step 4's exact bar: Levenshtein
// ratio >= threshold AND same entity type.
type entityStore struct {
	db        *store.Store
	threshold float64
}

func levenshteinRatio(a, b string) float64 {
	dist := matchr.Levenshtein(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(dist)/float64(maxLen)
}

func toEntity(row store.EntityRow) Entity {
	return Entity{
		ID: row.ID, BankID: row.BankID, CanonicalName: row.CanonicalName,
		EntityType: EntityType(row.EntityType), Aliases: row.Aliases,
	}
}

// candidates returns every existing entity of the given type in bankID
// whose canonical name or any alias has Levenshtein ratio >= threshold
// against mention, ranked by ratio descending (best match first). Ties
// are further ordered by Jaro-Winkler similarity, a second fuzzy signal
// the donor's phonetic package also layers on top of edit distance.
func (es *entityStore) candidates(ctx context.Context, bankID string, mention string, entityType EntityType) ([]Entity, error) {
	rows, err := es.db.CandidatesByBank(ctx, bankID, string(entityType))
	if err != nil {
		return nil, CoreUnavailablef("entity candidates for bank %s", bankID)
	}

	type scored struct {
		entity Entity
		ratio  float64
		jw     float64
	}
	var matches []scored
	normMention := strings.ToLower(mention)
	for _, row := range rows {
		best := levenshteinRatio(normMention, strings.ToLower(row.CanonicalName))
		for _, alias := range row.Aliases {
			if r := levenshteinRatio(normMention, strings.ToLower(alias)); r > best {
				best = r
			}
		}
		if best >= es.threshold {
			// JaroWinkler's error return only ever fires on pathological
			// input (e.g. a negative prefix weight); treat a failure as
			// "no tie-break signal" rather than dropping the candidate,
			// since ratio already cleared the acceptance bar above.
			jw, err := matchr.JaroWinkler(normMention, strings.ToLower(row.CanonicalName), false)
			if err != nil {
				jw = 0
			}
			matches = append(matches, scored{entity: toEntity(row), ratio: best, jw: jw})
		}
	}

	for i := 0; i < len(matches); i++ {
		for j := i + 1; j < len(matches); j++ {
			if matches[j].ratio > matches[i].ratio || (matches[j].ratio == matches[i].ratio && matches[j].jw > matches[i].jw) {
				matches[i], matches[j] = matches[j], matches[i]
			}
		}
	}

	out := make([]Entity, len(matches))
	for i, m := range matches {
		out[i] = m.entity
	}
	return out, nil
}

func (es *entityStore) create(ctx context.Context, bankID, name string, entityType EntityType) (Entity, error) {
	e := Entity{ID: uuid.NewString(), BankID: bankID, CanonicalName: name, EntityType: entityType}
	row := store.EntityRow{ID: e.ID, BankID: e.BankID, CanonicalName: e.CanonicalName, EntityType: string(e.EntityType), Aliases: []string{}}
	if err := es.db.PutEntity(ctx, row); err != nil {
		return Entity{}, CoreUnavailablef("create entity %s", name)
	}
	return e, nil
}

func (es *entityStore) addAlias(ctx context.Context, entityID, alias string) error {
	if err := es.db.AddAlias(ctx, entityID, alias); err != nil {
		return CoreUnavailablef("add alias %q to entity %s", alias, entityID)
	}
	return nil
}

func (es *entityStore) link(ctx context.Context, memoryID, entityID string) error {
	if err := es.db.LinkEntity(ctx, memoryID, entityID); err != nil {
		return CoreUnavailablef("link memory %s to entity %s", memoryID, entityID)
	}
	return nil
}

func (es *entityStore) entitiesForUnits(ctx context.Context, unitIDs []string) ([]Entity, error) {
	rows, err := es.db.EntitiesForUnits(ctx, unitIDs)
	if err != nil {
		return nil, CoreUnavailablef("entities for units")
	}
	out := make([]Entity, len(rows))
	for i, r := range rows {
		out[i] = toEntity(r)
	}
	return out, nil
}
