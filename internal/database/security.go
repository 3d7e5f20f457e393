package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"docstore/internal/files"
)

const securityColumns = `s.tenant_id, s.entry_id, s.entry_type, s.subject, s.owner, s.security, s.timestamp`

func scanShare(s scanner, extra ...any) (*files.ShareRecord, error) {
	var (
		r         files.ShareRecord
		entryType int
		share     int
	)
	dest := append([]any{&r.TenantID, &r.EntryID, &entryType, &r.Subject, &r.Owner, &share, &r.Timestamp}, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	r.EntryType = files.EntryType(entryType)
	r.Share = files.Share(share)
	return &r, nil
}

func collectShares(rows *sql.Rows, withLevel bool) ([]*files.ShareRecord, error) {
	defer rows.Close()
	var result []*files.ShareRecord
	for rows.Next() {
		var (
			r     *files.ShareRecord
			err   error
			level int
		)
		if withLevel {
			r, err = scanShare(rows, &level)
		} else {
			r, err = scanShare(rows)
		}
		if err != nil {
			return nil, fmt.Errorf("scanning share record: %w", err)
		}
		r.Level = level
		result = append(result, r)
	}
	return result, rows.Err()
}

// UpsertShare inserts the record or replaces the share, owner and timestamp
// of the existing row for the same tenant, entry, type and subject.
func (q *Queries) UpsertShare(ctx context.Context, r *files.ShareRecord) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO security (tenant_id, entry_id, entry_type, subject, owner, security, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, entry_id, entry_type, subject)
		 DO UPDATE SET owner = excluded.owner, security = excluded.security, timestamp = excluded.timestamp`,
		r.TenantID, r.EntryID, int(r.EntryType), r.Subject, r.Owner, int(r.Share), r.Timestamp)
	if err != nil {
		return fmt.Errorf("upserting share record: %w", err)
	}
	return nil
}

// DeleteShare removes the subject's record on one entry.
func (u *UnitOfWork) DeleteShare(ctx context.Context, tenantID int, entryID string, entryType files.EntryType, subject uuid.UUID) (int64, error) {
	res, err := u.db.ExecContext(ctx,
		`DELETE FROM security WHERE tenant_id = ? AND entry_id = ? AND entry_type = ? AND subject = ?`,
		tenantID, entryID, int(entryType), subject)
	if err != nil {
		return 0, fmt.Errorf("deleting share record: %w", err)
	}
	return rowsAffected(res), nil
}

// RevokeFolderTree removes the subject's records on the native folder, every
// folder below it, and every file directly inside any of those folders.
// Folder rows go first, then file rows. It returns both counts.
func (u *UnitOfWork) RevokeFolderTree(ctx context.Context, tenantID, folderID int, subject uuid.UUID) (foldersRevoked, filesRevoked int64, err error) {
	res, err := u.db.ExecContext(ctx,
		`DELETE FROM security
		 WHERE tenant_id = ? AND subject = ? AND entry_type = ?
		   AND entry_id IN (SELECT CAST(folder_id AS TEXT) FROM folder_tree WHERE parent_id = ?)`,
		tenantID, subject, int(files.EntryTypeFolder), folderID)
	if err != nil {
		return 0, 0, fmt.Errorf("revoking folder records: %w", err)
	}
	foldersRevoked = rowsAffected(res)

	res, err = u.db.ExecContext(ctx,
		`DELETE FROM security
		 WHERE tenant_id = ? AND subject = ? AND entry_type = ?
		   AND entry_id IN (SELECT CAST(fi.id AS TEXT) FROM files fi
		                    JOIN folder_tree t ON fi.folder_id = t.folder_id
		                    WHERE t.parent_id = ? AND fi.tenant_id = ?)`,
		tenantID, subject, int(files.EntryTypeFile), folderID, tenantID)
	if err != nil {
		return 0, 0, fmt.Errorf("revoking file records: %w", err)
	}
	filesRevoked = rowsAffected(res)
	return foldersRevoked, filesRevoked, nil
}

// RemoveSubject deletes every record where subject is the subject or the
// owner, across all tenants.
func (u *UnitOfWork) RemoveSubject(ctx context.Context, subject uuid.UUID) (int64, error) {
	res, err := u.db.ExecContext(ctx,
		`DELETE FROM security WHERE subject = ? OR owner = ?`, subject, subject)
	if err != nil {
		return 0, fmt.Errorf("removing subject: %w", err)
	}
	return rowsAffected(res), nil
}

// GetTreeShares returns the records on every ancestor-or-self of the native
// folders, with Level set to the closure distance, and the records placed
// directly on fileIDs with Level set to files.LevelDirect. Results are not
// sorted.
func (q *Queries) GetTreeShares(ctx context.Context, tenantID int, folderIDs []int, fileIDs []string) ([]*files.ShareRecord, error) {
	var result []*files.ShareRecord

	if len(folderIDs) > 0 {
		args := append([]any{tenantID, int(files.EntryTypeFolder)}, intArgs(folderIDs)...)
		rows, err := q.db.QueryContext(ctx,
			`SELECT `+securityColumns+`, MIN(t.level)
			 FROM security s JOIN folder_tree t ON s.entry_id = CAST(t.parent_id AS TEXT)
			 WHERE s.tenant_id = ? AND s.entry_type = ? AND t.folder_id IN `+inList(len(folderIDs))+`
			 GROUP BY s.entry_id, s.subject`,
			args...)
		if err != nil {
			return nil, fmt.Errorf("querying folder tree shares: %w", err)
		}
		records, err := collectShares(rows, true)
		if err != nil {
			return nil, err
		}
		result = append(result, records...)
	}

	if len(fileIDs) > 0 {
		args := append([]any{tenantID, int(files.EntryTypeFile)}, stringArgs(fileIDs)...)
		rows, err := q.db.QueryContext(ctx,
			`SELECT `+securityColumns+`, ? FROM security s
			 WHERE s.tenant_id = ? AND s.entry_type = ? AND s.entry_id IN `+inList(len(fileIDs)),
			append([]any{files.LevelDirect}, args...)...)
		if err != nil {
			return nil, fmt.Errorf("querying file shares: %w", err)
		}
		records, err := collectShares(rows, true)
		if err != nil {
			return nil, err
		}
		result = append(result, records...)
	}
	return result, nil
}

// EntryKey addresses one entry for exact-match share lookups. Level is
// copied into the returned records.
type EntryKey struct {
	ID    string
	Type  files.EntryType
	Level int
}

// GetEntryShares returns the records placed exactly on the given entries.
func (q *Queries) GetEntryShares(ctx context.Context, tenantID int, keys []EntryKey) ([]*files.ShareRecord, error) {
	var result []*files.ShareRecord
	for _, t := range []files.EntryType{files.EntryTypeFile, files.EntryTypeFolder} {
		levels := make(map[string]int)
		var ids []string
		for _, k := range keys {
			if k.Type != t {
				continue
			}
			prev, seen := levels[k.ID]
			if !seen {
				ids = append(ids, k.ID)
			}
			if !seen || k.Level < prev {
				levels[k.ID] = k.Level
			}
		}
		if len(ids) == 0 {
			continue
		}

		args := append([]any{tenantID, int(t)}, stringArgs(ids)...)
		rows, err := q.db.QueryContext(ctx,
			`SELECT `+securityColumns+` FROM security s
			 WHERE s.tenant_id = ? AND s.entry_type = ? AND s.entry_id IN `+inList(len(ids)),
			args...)
		if err != nil {
			return nil, fmt.Errorf("querying entry shares: %w", err)
		}
		records, err := collectShares(rows, false)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			r.Level = levels[r.EntryID]
		}
		result = append(result, records...)
	}
	return result, nil
}

// GetSharesForSubjects returns every record granted to one of subjects.
func (q *Queries) GetSharesForSubjects(ctx context.Context, tenantID int, subjects []uuid.UUID) ([]*files.ShareRecord, error) {
	if len(subjects) == 0 {
		return nil, nil
	}
	args := []any{tenantID}
	for _, s := range subjects {
		args = append(args, s)
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+securityColumns+` FROM security s
		 WHERE s.tenant_id = ? AND s.subject IN `+inList(len(subjects))+`
		 ORDER BY s.entry_type, s.entry_id`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("querying subject shares: %w", err)
	}
	return collectShares(rows, false)
}

// CountEntryShares returns how many records exist on one entry.
func (q *Queries) CountEntryShares(ctx context.Context, tenantID int, entryID string, entryType files.EntryType) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM security WHERE tenant_id = ? AND entry_id = ? AND entry_type = ?`,
		tenantID, entryID, int(entryType)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting share records: %w", err)
	}
	return n, nil
}
