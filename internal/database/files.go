package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jujuerrors "github.com/juju/errors"

	"docstore/internal/files"
)

const fileSelect = `
SELECT fi.id, fi.version, fi.tenant_id, fi.folder_id, fi.title, fi.content_length,
       fi.create_by, fi.create_on, fi.modified_by, fi.modified_on,
       r.id, r.folder_type
FROM files fi
JOIN folder_tree rt ON rt.folder_id = fi.folder_id
 AND rt.level = (SELECT MAX(level) FROM folder_tree WHERE folder_id = fi.folder_id)
JOIN folders r ON r.id = rt.parent_id`

func scanFile(s scanner) (*files.File, error) {
	var (
		f                       files.File
		id, folder, root, rootT int
	)
	err := s.Scan(&id, &f.Version, &f.TenantID, &folder, &f.Title, &f.ContentLength,
		&f.CreatedBy, &f.CreatedOn, &f.ModifiedBy, &f.ModifiedOn, &root, &rootT)
	if err != nil {
		return nil, err
	}
	f.ID = files.FormatNativeID(id)
	f.FolderID = files.FormatNativeID(folder)
	f.RootFolderID = files.FormatNativeID(root)
	f.RootFolderType = files.FolderType(rootT)
	return &f, nil
}

func collectFiles(rows *sql.Rows) ([]*files.File, error) {
	defer rows.Close()
	var result []*files.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

// GetFile returns the current version of a file.
func (q *Queries) GetFile(ctx context.Context, tenantID, id int) (*files.File, error) {
	row := q.db.QueryRowContext(ctx,
		fileSelect+` WHERE fi.tenant_id = ? AND fi.id = ? AND fi.current_version = 1`, tenantID, id)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, jujuerrors.NotFoundf("file %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting file: %w", err)
	}
	return f, nil
}

// GetFiles lists the current version of every file directly in folderID.
func (q *Queries) GetFiles(ctx context.Context, tenantID, folderID int) ([]*files.File, error) {
	rows, err := q.db.QueryContext(ctx,
		fileSelect+` WHERE fi.tenant_id = ? AND fi.folder_id = ? AND fi.current_version = 1 ORDER BY fi.title`,
		tenantID, folderID)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	return collectFiles(rows)
}

// GetFileVersions returns all versions of a file, oldest first.
func (q *Queries) GetFileVersions(ctx context.Context, tenantID, id int) ([]*files.File, error) {
	rows, err := q.db.QueryContext(ctx,
		fileSelect+` WHERE fi.tenant_id = ? AND fi.id = ? ORDER BY fi.version`, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("listing file versions: %w", err)
	}
	return collectFiles(rows)
}

// FileTitleExists reports whether folderID holds a current file named title.
func (q *Queries) FileTitleExists(ctx context.Context, tenantID, folderID int, title string) (bool, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM files WHERE tenant_id = ? AND folder_id = ? AND title = ? AND current_version = 1`,
		tenantID, folderID, title).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking file title: %w", err)
	}
	return n > 0, nil
}

func (q *Queries) filesInSubtree(ctx context.Context, tenantID, folderID int) ([]*files.File, error) {
	rows, err := q.db.QueryContext(ctx,
		fileSelect+` JOIN folder_tree t ON t.folder_id = fi.folder_id
		 WHERE t.parent_id = ? AND fi.tenant_id = ? ORDER BY fi.id, fi.version`, folderID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing subtree files: %w", err)
	}
	return collectFiles(rows)
}

// NewFileVersion describes a file version to store. A zero ID allocates a
// new file.
type NewFileVersion struct {
	TenantID      int
	ID            int
	FolderID      int
	Title         string
	ContentLength int64
	By            uuid.UUID
	At            time.Time
}

// SaveFileVersion inserts the next version of a file and makes it current.
// Versions start at 1 and grow by one per save.
func (u *UnitOfWork) SaveFileVersion(ctx context.Context, nv NewFileVersion) (*files.File, error) {
	if _, err := u.GetFolder(ctx, nv.TenantID, nv.FolderID); err != nil {
		return nil, err
	}

	id := nv.ID
	version := 1
	createdBy, createdOn := nv.By, nv.At
	if id == 0 {
		if err := u.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM files`).Scan(&id); err != nil {
			return nil, fmt.Errorf("allocating file id: %w", err)
		}
	} else {
		current, err := u.GetFile(ctx, nv.TenantID, id)
		if err != nil {
			return nil, err
		}
		version = current.Version + 1
		createdBy, createdOn = current.CreatedBy, current.CreatedOn
		if _, err := u.db.ExecContext(ctx,
			`UPDATE files SET current_version = 0 WHERE tenant_id = ? AND id = ?`, nv.TenantID, id); err != nil {
			return nil, fmt.Errorf("clearing current version: %w", err)
		}
	}

	if _, err := u.db.ExecContext(ctx,
		`INSERT INTO files (id, version, tenant_id, folder_id, title, content_length, current_version,
		                    create_by, create_on, modified_by, modified_on)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, ?, ?)`,
		id, version, nv.TenantID, nv.FolderID, nv.Title, nv.ContentLength,
		createdBy, createdOn, nv.By, nv.At); err != nil {
		return nil, fmt.Errorf("inserting file version: %w", err)
	}

	return u.GetFile(ctx, nv.TenantID, id)
}

// MoveFile re-parents every version of a file.
func (u *UnitOfWork) MoveFile(ctx context.Context, tenantID, id, toFolderID int, title string, by uuid.UUID, at time.Time) error {
	if _, err := u.GetFolder(ctx, tenantID, toFolderID); err != nil {
		return err
	}
	res, err := u.db.ExecContext(ctx,
		`UPDATE files SET folder_id = ? WHERE tenant_id = ? AND id = ?`, toFolderID, tenantID, id)
	if err != nil {
		return fmt.Errorf("moving file: %w", err)
	}
	if rowsAffected(res) == 0 {
		return jujuerrors.NotFoundf("file %d", id)
	}
	if _, err := u.db.ExecContext(ctx,
		`UPDATE files SET title = ?, modified_by = ?, modified_on = ?
		 WHERE tenant_id = ? AND id = ? AND current_version = 1`,
		title, by, at, tenantID, id); err != nil {
		return fmt.Errorf("retitling moved file: %w", err)
	}
	return nil
}

// DeleteFile removes all versions of a file with its share records and tag
// links, and returns the removed versions.
func (u *UnitOfWork) DeleteFile(ctx context.Context, tenantID, id int) ([]*files.File, error) {
	versions, err := u.GetFileVersions(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, jujuerrors.NotFoundf("file %d", id)
	}

	entryID := files.FormatNativeID(id)
	if _, err := u.db.ExecContext(ctx,
		`DELETE FROM security WHERE tenant_id = ? AND entry_type = ? AND entry_id = ?`,
		tenantID, int(files.EntryTypeFile), entryID); err != nil {
		return nil, fmt.Errorf("deleting file share records: %w", err)
	}
	if _, err := u.db.ExecContext(ctx,
		`DELETE FROM tag_links WHERE tenant_id = ? AND entry_type = ? AND entry_id = ?`,
		tenantID, int(files.EntryTypeFile), entryID); err != nil {
		return nil, fmt.Errorf("deleting file tags: %w", err)
	}
	if _, err := u.db.ExecContext(ctx,
		`DELETE FROM files WHERE tenant_id = ? AND id = ?`, tenantID, id); err != nil {
		return nil, fmt.Errorf("deleting file: %w", err)
	}
	return versions, nil
}

// SetContentLength records the stored size of one file version.
func (q *Queries) SetContentLength(ctx context.Context, tenantID, id, version int, n int64) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE files SET content_length = ? WHERE tenant_id = ? AND id = ? AND version = ?`,
		n, tenantID, id, version)
	if err != nil {
		return fmt.Errorf("setting content length: %w", err)
	}
	if rowsAffected(res) == 0 {
		return jujuerrors.NotFoundf("file %d version %d", id, version)
	}
	return nil
}

// DropFileVersion removes one version and makes the newest remaining
// version current. Dropping the only version removes the file.
func (u *UnitOfWork) DropFileVersion(ctx context.Context, tenantID, id, version int) error {
	res, err := u.db.ExecContext(ctx,
		`DELETE FROM files WHERE tenant_id = ? AND id = ? AND version = ?`, tenantID, id, version)
	if err != nil {
		return fmt.Errorf("dropping file version: %w", err)
	}
	if rowsAffected(res) == 0 {
		return jujuerrors.NotFoundf("file %d version %d", id, version)
	}
	if _, err := u.db.ExecContext(ctx,
		`UPDATE files SET current_version = 1
		 WHERE tenant_id = ? AND id = ? AND version = (SELECT MAX(version) FROM files WHERE tenant_id = ? AND id = ?)`,
		tenantID, id, tenantID, id); err != nil {
		return fmt.Errorf("restoring current version: %w", err)
	}
	return nil
}
