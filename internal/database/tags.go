package database

import (
	"context"
	"fmt"

	"docstore/internal/files"
)

// SaveTags creates missing tags and links them to their entries. Linking an
// already linked tag updates its count and timestamp.
func (u *UnitOfWork) SaveTags(ctx context.Context, tenantID int, tags []*files.Tag) error {
	for _, t := range tags {
		if _, err := u.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO tags (tenant_id, name, owner, flag) VALUES (?, ?, ?, ?)`,
			tenantID, t.Name, t.Owner, int(t.Type)); err != nil {
			return fmt.Errorf("inserting tag %q: %w", t.Name, err)
		}
		if err := u.db.QueryRowContext(ctx,
			`SELECT id FROM tags WHERE tenant_id = ? AND name = ? AND owner = ? AND flag = ?`,
			tenantID, t.Name, t.Owner, int(t.Type)).Scan(&t.ID); err != nil {
			return fmt.Errorf("reading tag %q: %w", t.Name, err)
		}
		if _, err := u.db.ExecContext(ctx,
			`INSERT INTO tag_links (tenant_id, tag_id, entry_id, entry_type, create_by, create_on, tag_count)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (tenant_id, tag_id, entry_id, entry_type)
			 DO UPDATE SET create_on = excluded.create_on, tag_count = excluded.tag_count`,
			tenantID, t.ID, t.EntryID, int(t.EntryType), t.Owner, t.CreateOn, t.Count); err != nil {
			return fmt.Errorf("linking tag %q: %w", t.Name, err)
		}
	}
	return nil
}

// RemoveTags unlinks tags from their entries and drops tags left without links.
func (u *UnitOfWork) RemoveTags(ctx context.Context, tenantID int, tags []*files.Tag) error {
	for _, t := range tags {
		if _, err := u.db.ExecContext(ctx,
			`DELETE FROM tag_links
			 WHERE tenant_id = ? AND entry_id = ? AND entry_type = ?
			   AND tag_id IN (SELECT id FROM tags WHERE tenant_id = ? AND name = ? AND owner = ? AND flag = ?)`,
			tenantID, t.EntryID, int(t.EntryType), tenantID, t.Name, t.Owner, int(t.Type)); err != nil {
			return fmt.Errorf("unlinking tag %q: %w", t.Name, err)
		}
	}
	if _, err := u.db.ExecContext(ctx,
		`DELETE FROM tags WHERE tenant_id = ? AND id NOT IN (SELECT tag_id FROM tag_links WHERE tenant_id = ?)`,
		tenantID, tenantID); err != nil {
		return fmt.Errorf("deleting orphan tags: %w", err)
	}
	return nil
}

// GetTags returns the tags linked to one entry. A zero tagType matches every type.
func (q *Queries) GetTags(ctx context.Context, tenantID int, entryID string, entryType files.EntryType, tagType files.TagType) ([]*files.Tag, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT t.id, t.name, t.owner, t.flag, l.entry_id, l.entry_type, l.tag_count, l.create_on
		 FROM tags t JOIN tag_links l ON l.tag_id = t.id AND l.tenant_id = t.tenant_id
		 WHERE t.tenant_id = ? AND l.entry_id = ? AND l.entry_type = ? AND (? = 0 OR (t.flag & ?) != 0)
		 ORDER BY t.name`,
		tenantID, entryID, int(entryType), int(tagType), int(tagType))
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	var result []*files.Tag
	for rows.Next() {
		var (
			t              files.Tag
			flag, linkType int
		)
		if err := rows.Scan(&t.ID, &t.Name, &t.Owner, &flag, &t.EntryID, &linkType, &t.Count, &t.CreateOn); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		t.Type = files.TagType(flag)
		t.EntryType = files.EntryType(linkType)
		result = append(result, &t)
	}
	return result, rows.Err()
}
