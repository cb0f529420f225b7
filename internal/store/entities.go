package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// EntityRow is the storage-layer representation of an entity.
type EntityRow struct {
	ID            string
	BankID        string
	CanonicalName string
	EntityType    string
	Aliases       []string
}

// CandidatesByBank returns every entity in a bank, optionally restricted to
// a single entity_type, for in-process fuzzy matching by
// pkg/tempr/entitystore.go (the Levenshtein-ratio comparison itself lives
// there via antzucaro/matchr; the store just supplies candidates).
func (s *Store) CandidatesByBank(ctx context.Context, bankID string, entityType string) ([]EntityRow, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	query := `SELECT id, bank_id, canonical_name, entity_type, aliases FROM entities WHERE bank_id = ?`
	args := []any{bankID}
	if entityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, entityType)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: candidates by bank %s: %w", bankID, err)
	}
	defer rows.Close()

	var out []EntityRow
	for rows.Next() {
		var e EntityRow
		var aliasJSON string
		if err := rows.Scan(&e.ID, &e.BankID, &e.CanonicalName, &e.EntityType, &aliasJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(aliasJSON), &e.Aliases); err != nil {
			return nil, fmt.Errorf("store: decode aliases for entity %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetEntityByFoldedName looks up an entity by its case-folded canonical
// name, enforcing the "no two entities share a case-folded canonical name"
// invariant (spec §3) via the schema's UNIQUE(bank_id, canonical_name_fold).
func (s *Store) GetEntityByFoldedName(ctx context.Context, bankID, nameFold string) (EntityRow, bool, error) {
	if err := s.checkOpen(); err != nil {
		return EntityRow{}, false, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, bank_id, canonical_name, entity_type, aliases FROM entities
		WHERE bank_id = ? AND canonical_name_fold = ?
	`, bankID, nameFold)
	var e EntityRow
	var aliasJSON string
	if err := row.Scan(&e.ID, &e.BankID, &e.CanonicalName, &e.EntityType, &aliasJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return EntityRow{}, false, nil
		}
		return EntityRow{}, false, err
	}
	if err := json.Unmarshal([]byte(aliasJSON), &e.Aliases); err != nil {
		return EntityRow{}, false, err
	}
	return e, true, nil
}

// PutEntity inserts a new entity or, if one already exists with this id,
// replaces its alias list.
func (s *Store) PutEntity(ctx context.Context, e EntityRow) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	aliasJSON, err := json.Marshal(e.Aliases)
	if err != nil {
		return fmt.Errorf("store: encode aliases for entity %s: %w", e.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities (id, bank_id, canonical_name, canonical_name_fold, entity_type, aliases)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET aliases = excluded.aliases
	`, e.ID, e.BankID, e.CanonicalName, strings.ToLower(e.CanonicalName), e.EntityType, string(aliasJSON))
	if err != nil {
		return fmt.Errorf("store: put entity %s: %w", e.ID, err)
	}
	return nil
}

// AddAlias appends alias to an entity's alias list if not already present.
func (s *Store) AddAlias(ctx context.Context, entityID, alias string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	row := s.db.QueryRowContext(ctx, `SELECT aliases FROM entities WHERE id = ?`, entityID)
	var aliasJSON string
	if err := row.Scan(&aliasJSON); err != nil {
		return fmt.Errorf("store: add alias to %s: %w", entityID, err)
	}
	var aliases []string
	if err := json.Unmarshal([]byte(aliasJSON), &aliases); err != nil {
		return err
	}
	for _, a := range aliases {
		if strings.EqualFold(a, alias) {
			return nil
		}
	}
	aliases = append(aliases, alias)
	encoded, err := json.Marshal(aliases)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE entities SET aliases = ? WHERE id = ?`, string(encoded), entityID)
	return err
}

// LinkEntity records that memoryID mentions entityID (spec §3 EntityLink).
func (s *Store) LinkEntity(ctx context.Context, memoryID, entityID string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO entity_links (memory_id, entity_id) VALUES (?, ?)
	`, memoryID, entityID)
	return err
}

// EntitiesForUnits returns the distinct set of entities linked to any of
// the given memory unit ids, used by the pipeline's include_entities step.
func (s *Store) EntitiesForUnits(ctx context.Context, unitIDs []string) ([]EntityRow, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if len(unitIDs) == 0 {
		return nil, nil
	}
	placeholders, args := factTypePlaceholders(unitIDs)
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT e.id, e.bank_id, e.canonical_name, e.entity_type, e.aliases
		FROM entities e JOIN entity_links el ON el.entity_id = e.id
		WHERE el.memory_id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: entities for units: %w", err)
	}
	defer rows.Close()

	var out []EntityRow
	for rows.Next() {
		var e EntityRow
		var aliasJSON string
		if err := rows.Scan(&e.ID, &e.BankID, &e.CanonicalName, &e.EntityType, &aliasJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(aliasJSON), &e.Aliases); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
