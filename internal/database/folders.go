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

// folderSelect reads a folder with its subtree counts and the id and type of
// the root of its tree.
const folderSelect = `
SELECT f.id, f.parent_id, f.tenant_id, f.title, f.folder_type,
       f.create_by, f.create_on, f.modified_by, f.modified_on,
       (SELECT COUNT(*) FROM folder_tree c WHERE c.parent_id = f.id AND c.level > 0),
       (SELECT COUNT(*) FROM files fi JOIN folder_tree c ON fi.folder_id = c.folder_id
         WHERE c.parent_id = f.id AND fi.tenant_id = f.tenant_id AND fi.current_version = 1),
       r.id, r.folder_type
FROM folders f
JOIN folder_tree rt ON rt.folder_id = f.id
 AND rt.level = (SELECT MAX(level) FROM folder_tree WHERE folder_id = f.id)
JOIN folders r ON r.id = rt.parent_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanFolder(s scanner) (*files.Folder, error) {
	var (
		f                 files.Folder
		id, parent, root  int
		folderType, rootT int
	)
	err := s.Scan(&id, &parent, &f.TenantID, &f.Title, &folderType,
		&f.CreatedBy, &f.CreatedOn, &f.ModifiedBy, &f.ModifiedOn,
		&f.TotalFolders, &f.TotalFiles, &root, &rootT)
	if err != nil {
		return nil, err
	}
	f.ID = files.FormatNativeID(id)
	if parent != 0 {
		f.ParentID = files.FormatNativeID(parent)
	}
	f.FolderType = files.FolderType(folderType)
	f.RootFolderID = files.FormatNativeID(root)
	f.RootFolderType = files.FolderType(rootT)
	return &f, nil
}

func collectFolders(rows *sql.Rows) ([]*files.Folder, error) {
	defer rows.Close()
	var result []*files.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning folder: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

// GetFolder returns a not-found error when the folder does not exist.
func (q *Queries) GetFolder(ctx context.Context, tenantID, id int) (*files.Folder, error) {
	row := q.db.QueryRowContext(ctx, folderSelect+` WHERE f.tenant_id = ? AND f.id = ?`, tenantID, id)
	f, err := scanFolder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, jujuerrors.NotFoundf("folder %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting folder: %w", err)
	}
	return f, nil
}

// GetFolders lists the direct children of parentID ordered by title.
func (q *Queries) GetFolders(ctx context.Context, tenantID, parentID int) ([]*files.Folder, error) {
	rows, err := q.db.QueryContext(ctx,
		folderSelect+` WHERE f.tenant_id = ? AND f.parent_id = ? ORDER BY f.title`, tenantID, parentID)
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	return collectFolders(rows)
}

// GetAncestorChain returns every ancestor of id and id itself, root first.
func (q *Queries) GetAncestorChain(ctx context.Context, tenantID, id int) ([]*files.Folder, error) {
	rows, err := q.db.QueryContext(ctx,
		folderSelect+` JOIN folder_tree a ON a.parent_id = f.id
		 WHERE f.tenant_id = ? AND a.folder_id = ? ORDER BY a.level DESC`, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("listing ancestors: %w", err)
	}
	return collectFolders(rows)
}

// GetDescendants returns every folder below or equal to any of parentIDs.
func (q *Queries) GetDescendants(ctx context.Context, parentIDs ...int) ([]int, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT DISTINCT folder_id FROM folder_tree WHERE parent_id IN `+inList(len(parentIDs))+` ORDER BY folder_id`,
		intArgs(parentIDs)...)
	if err != nil {
		return nil, fmt.Errorf("listing descendants: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning descendant: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IsDescendant reports whether folderID is parentID or lies below it.
func (q *Queries) IsDescendant(ctx context.Context, parentID, folderID int) (bool, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM folder_tree WHERE parent_id = ? AND folder_id = ?`, parentID, folderID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking folder tree: %w", err)
	}
	return n > 0, nil
}

// FolderTitleExists reports whether parentID already has a subfolder named title.
func (q *Queries) FolderTitleExists(ctx context.Context, tenantID, parentID int, title string) (bool, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM folders WHERE tenant_id = ? AND parent_id = ? AND title = ?`,
		tenantID, parentID, title).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking folder title: %w", err)
	}
	return n > 0, nil
}

// RenameFolder updates title and modification stamps.
func (q *Queries) RenameFolder(ctx context.Context, tenantID, id int, title string, by uuid.UUID, at time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE folders SET title = ?, modified_by = ?, modified_on = ? WHERE tenant_id = ? AND id = ?`,
		title, by, at, tenantID, id)
	if err != nil {
		return fmt.Errorf("renaming folder: %w", err)
	}
	if rowsAffected(res) == 0 {
		return jujuerrors.NotFoundf("folder %d", id)
	}
	return nil
}

// NewFolder describes a folder to create.
type NewFolder struct {
	TenantID   int
	ParentID   int
	Title      string
	FolderType files.FolderType
	By         uuid.UUID
	At         time.Time
}

// CreateFolder inserts the folder, its self edge and one edge per ancestor
// of the parent. A ParentID of 0 creates a root.
func (u *UnitOfWork) CreateFolder(ctx context.Context, nf NewFolder) (int, error) {
	if nf.ParentID != 0 {
		if _, err := u.GetFolder(ctx, nf.TenantID, nf.ParentID); err != nil {
			return 0, err
		}
	}

	res, err := u.db.ExecContext(ctx,
		`INSERT INTO folders (tenant_id, parent_id, title, folder_type, create_by, create_on, modified_by, modified_on)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nf.TenantID, nf.ParentID, nf.Title, int(nf.FolderType), nf.By, nf.At, nf.By, nf.At)
	if err != nil {
		return 0, fmt.Errorf("inserting folder: %w", err)
	}
	id64, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading folder id: %w", err)
	}
	id := int(id64)

	if _, err := u.db.ExecContext(ctx,
		`INSERT INTO folder_tree (parent_id, folder_id, level) VALUES (?, ?, 0)`, id, id); err != nil {
		return 0, fmt.Errorf("inserting self edge: %w", err)
	}
	if _, err := u.db.ExecContext(ctx,
		`INSERT INTO folder_tree (parent_id, folder_id, level)
		 SELECT parent_id, ?, level + 1 FROM folder_tree WHERE folder_id = ?`, id, nf.ParentID); err != nil {
		return 0, fmt.Errorf("inserting ancestor edges: %w", err)
	}
	return id, nil
}

// MoveFolder re-parents id under toID and rewrites the closure rows of the
// whole subtree. Moving a folder into its own subtree is rejected.
func (u *UnitOfWork) MoveFolder(ctx context.Context, tenantID, id, toID int, by uuid.UUID, at time.Time) error {
	if _, err := u.GetFolder(ctx, tenantID, id); err != nil {
		return err
	}
	if _, err := u.GetFolder(ctx, tenantID, toID); err != nil {
		return err
	}
	inside, err := u.IsDescendant(ctx, id, toID)
	if err != nil {
		return err
	}
	if inside {
		return jujuerrors.NotValidf("moving folder %d into its own subtree %d", id, toID)
	}

	if _, err := u.db.ExecContext(ctx,
		`UPDATE folders SET parent_id = ?, modified_by = ?, modified_on = ? WHERE id = ?`,
		toID, by, at, id); err != nil {
		return fmt.Errorf("updating parent: %w", err)
	}

	// Drop every edge from an outside ancestor into the subtree.
	if _, err := u.db.ExecContext(ctx,
		`DELETE FROM folder_tree
		 WHERE folder_id IN (SELECT folder_id FROM folder_tree WHERE parent_id = ?)
		   AND parent_id NOT IN (SELECT folder_id FROM folder_tree WHERE parent_id = ?)`,
		id, id); err != nil {
		return fmt.Errorf("deleting subtree edges: %w", err)
	}

	if _, err := u.db.ExecContext(ctx,
		`INSERT INTO folder_tree (parent_id, folder_id, level)
		 SELECT a.parent_id, s.folder_id, a.level + s.level + 1
		 FROM folder_tree a, folder_tree s
		 WHERE a.folder_id = ? AND s.parent_id = ?`,
		toID, id); err != nil {
		return fmt.Errorf("inserting subtree edges: %w", err)
	}
	return nil
}

// DeleteFolder removes the subtree rooted at id: folders, closure rows,
// files, share records and tag links. It returns every removed file version
// so the caller can release their content.
func (u *UnitOfWork) DeleteFolder(ctx context.Context, tenantID, id int) ([]*files.File, error) {
	if _, err := u.GetFolder(ctx, tenantID, id); err != nil {
		return nil, err
	}

	removed, err := u.filesInSubtree(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	subtree := `SELECT folder_id FROM folder_tree WHERE parent_id = ?`
	subtreeText := `SELECT CAST(folder_id AS TEXT) FROM folder_tree WHERE parent_id = ?`
	fileText := `SELECT CAST(fi.id AS TEXT) FROM files fi JOIN folder_tree t ON fi.folder_id = t.folder_id
	             WHERE t.parent_id = ? AND fi.tenant_id = ?`

	steps := []struct {
		what  string
		query string
		args  []any
	}{
		{"folder share records", `DELETE FROM security WHERE tenant_id = ? AND entry_type = ? AND entry_id IN (` + subtreeText + `)`,
			[]any{tenantID, int(files.EntryTypeFolder), id}},
		{"file share records", `DELETE FROM security WHERE tenant_id = ? AND entry_type = ? AND entry_id IN (` + fileText + `)`,
			[]any{tenantID, int(files.EntryTypeFile), id, tenantID}},
		{"folder tags", `DELETE FROM tag_links WHERE tenant_id = ? AND entry_type = ? AND entry_id IN (` + subtreeText + `)`,
			[]any{tenantID, int(files.EntryTypeFolder), id}},
		{"file tags", `DELETE FROM tag_links WHERE tenant_id = ? AND entry_type = ? AND entry_id IN (` + fileText + `)`,
			[]any{tenantID, int(files.EntryTypeFile), id, tenantID}},
		{"files", `DELETE FROM files WHERE tenant_id = ? AND folder_id IN (` + subtree + `)`,
			[]any{tenantID, id}},
		{"folders", `DELETE FROM folders WHERE tenant_id = ? AND id IN (` + subtree + `)`,
			[]any{tenantID, id}},
		{"closure rows", `DELETE FROM folder_tree WHERE folder_id IN (` + subtree + `)`,
			[]any{id}},
	}
	for _, step := range steps {
		if _, err := u.db.ExecContext(ctx, step.query, step.args...); err != nil {
			return nil, fmt.Errorf("deleting %s: %w", step.what, err)
		}
	}
	return removed, nil
}

// CopiedFile pairs a source file version with the file created from it.
type CopiedFile struct {
	From *files.File
	To   *files.File
}

// CopyFolder copies id with its subfolders and the current version of every
// file under toID, naming the copy title. Copying into the source subtree is
// rejected. Content is not copied; the returned pairs say what to copy.
func (u *UnitOfWork) CopyFolder(ctx context.Context, tenantID, id, toID int, title string, by uuid.UUID, at time.Time) (int, []CopiedFile, error) {
	inside, err := u.IsDescendant(ctx, id, toID)
	if err != nil {
		return 0, nil, err
	}
	if inside {
		return 0, nil, jujuerrors.NotValidf("copying folder %d into its own subtree %d", id, toID)
	}
	var copied []CopiedFile
	newID, err := u.copyFolder(ctx, tenantID, id, toID, title, by, at, &copied)
	if err != nil {
		return 0, nil, err
	}
	return newID, copied, nil
}

func (u *UnitOfWork) copyFolder(ctx context.Context, tenantID, id, toID int, title string, by uuid.UUID, at time.Time, copied *[]CopiedFile) (int, error) {
	src, err := u.GetFolder(ctx, tenantID, id)
	if err != nil {
		return 0, err
	}
	newID, err := u.CreateFolder(ctx, NewFolder{
		TenantID:   tenantID,
		ParentID:   toID,
		Title:      title,
		FolderType: src.FolderType,
		By:         by,
		At:         at,
	})
	if err != nil {
		return 0, fmt.Errorf("copying folder %d: %w", id, err)
	}

	srcFiles, err := u.GetFiles(ctx, tenantID, id)
	if err != nil {
		return 0, err
	}
	for _, f := range srcFiles {
		dst, err := u.SaveFileVersion(ctx, NewFileVersion{
			TenantID:      tenantID,
			FolderID:      newID,
			Title:         f.Title,
			ContentLength: f.ContentLength,
			By:            by,
			At:            at,
		})
		if err != nil {
			return 0, fmt.Errorf("copying file %s: %w", f.ID, err)
		}
		*copied = append(*copied, CopiedFile{From: f, To: dst})
	}

	children, err := u.GetFolders(ctx, tenantID, id)
	if err != nil {
		return 0, err
	}
	for _, child := range children {
		childID, err := files.NativeID(child.ID)
		if err != nil {
			return 0, err
		}
		if _, err := u.copyFolder(ctx, tenantID, childID, newID, child.Title, by, at, copied); err != nil {
			return 0, err
		}
	}
	return newID, nil
}
