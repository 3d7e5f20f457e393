package database

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"docstore/internal/files"
)

// IDMapper translates provider ids into fixed-width surrogate keys used by
// the security and tag tables, and back.
type IDMapper struct {
	q       *Queries
	markers []string
}

// IDMapper returns a mapper treating ids that start with "<marker>-" as
// provider ids whose surrogate key is derived by hashing.
func (q *Queries) IDMapper(markers ...string) *IDMapper {
	return &IDMapper{q: q, markers: markers}
}

// HashID returns the lower-case hex MD5 digest of id.
func HashID(id string) string {
	sum := md5.Sum([]byte(id))
	return hex.EncodeToString(sum[:])
}

func (m *IDMapper) isProviderID(id string) bool {
	for _, marker := range m.markers {
		if strings.HasPrefix(id, marker+"-") {
			return true
		}
	}
	return false
}

// MapID returns the canonical id for rawID:
//   - "" maps to "",
//   - native ids map to themselves,
//   - provider ids map to their hash, persisted when save is set,
//   - anything else is looked up as an existing hash or an existing source id.
//
// An unmapped id yields "" and no error when save is false.
func (m *IDMapper) MapID(ctx context.Context, tenantID int, rawID string, save bool) (string, error) {
	if rawID == "" {
		return "", nil
	}
	if files.IsNativeID(rawID) {
		return rawID, nil
	}

	if m.isProviderID(rawID) {
		hash := HashID(rawID)
		if save {
			if err := m.q.insertMapping(ctx, tenantID, rawID, hash); err != nil {
				return "", err
			}
		}
		return hash, nil
	}

	if _, err := m.q.mappingSource(ctx, tenantID, rawID); err == nil {
		return rawID, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("looking up mapping by hash: %w", err)
	}

	hash, err := m.q.mappingHash(ctx, tenantID, rawID)
	if err == nil {
		return hash, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("looking up mapping by id: %w", err)
	}
	if !save {
		return "", nil
	}

	hash = HashID(rawID)
	if err := m.q.insertMapping(ctx, tenantID, rawID, hash); err != nil {
		return "", err
	}
	return hash, nil
}

// ResolveHash returns the source id a hash was derived from, or "" if the
// hash was never persisted.
func (m *IDMapper) ResolveHash(ctx context.Context, tenantID int, hash string) (string, error) {
	if files.IsNativeID(hash) {
		return hash, nil
	}
	id, err := m.q.mappingSource(ctx, tenantID, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolving hash: %w", err)
	}
	return id, nil
}

func (q *Queries) insertMapping(ctx context.Context, tenantID int, id, hash string) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO thirdparty_id_mapping (hash_id, id, tenant_id) VALUES (?, ?, ?)`,
		hash, id, tenantID)
	if err != nil {
		return fmt.Errorf("inserting id mapping: %w", err)
	}
	return nil
}

func (q *Queries) mappingSource(ctx context.Context, tenantID int, hash string) (string, error) {
	var id string
	err := q.db.QueryRowContext(ctx,
		`SELECT id FROM thirdparty_id_mapping WHERE tenant_id = ? AND hash_id = ?`,
		tenantID, hash).Scan(&id)
	return id, err
}

func (q *Queries) mappingHash(ctx context.Context, tenantID int, id string) (string, error) {
	var hash string
	err := q.db.QueryRowContext(ctx,
		`SELECT hash_id FROM thirdparty_id_mapping WHERE tenant_id = ? AND id = ?`,
		tenantID, id).Scan(&hash)
	return hash, err
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// MoveMappedEntries rewrites the mappings of oldID and of every id below it
// ("<oldID>|...") to live under newID. Share records and tag links follow
// their new hashes.
func (u *UnitOfWork) MoveMappedEntries(ctx context.Context, tenantID int, oldID, newID string) error {
	rows, err := u.db.QueryContext(ctx,
		`SELECT hash_id, id FROM thirdparty_id_mapping
		 WHERE tenant_id = ? AND (id = ? OR id LIKE ? ESCAPE '\')`,
		tenantID, oldID, escapeLike(oldID+"|")+"%")
	if err != nil {
		return fmt.Errorf("querying id mappings: %w", err)
	}
	type mapping struct{ hash, id string }
	var moved []mapping
	for rows.Next() {
		var m mapping
		if err := rows.Scan(&m.hash, &m.id); err != nil {
			rows.Close()
			return fmt.Errorf("scanning id mapping: %w", err)
		}
		moved = append(moved, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("querying id mappings: %w", err)
	}

	for _, m := range moved {
		id := newID + strings.TrimPrefix(m.id, oldID)
		hash := HashID(id)
		if _, err := u.db.ExecContext(ctx,
			`UPDATE OR REPLACE security SET entry_id = ? WHERE tenant_id = ? AND entry_id = ?`,
			hash, tenantID, m.hash); err != nil {
			return fmt.Errorf("moving share records: %w", err)
		}
		if _, err := u.db.ExecContext(ctx,
			`UPDATE OR REPLACE tag_links SET entry_id = ? WHERE tenant_id = ? AND entry_id = ?`,
			hash, tenantID, m.hash); err != nil {
			return fmt.Errorf("moving tag links: %w", err)
		}
		if _, err := u.db.ExecContext(ctx,
			`UPDATE OR REPLACE thirdparty_id_mapping SET hash_id = ?, id = ? WHERE tenant_id = ? AND hash_id = ?`,
			hash, id, tenantID, m.hash); err != nil {
			return fmt.Errorf("moving id mapping: %w", err)
		}
	}
	return nil
}
