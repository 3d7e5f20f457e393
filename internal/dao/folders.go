package dao

import (
	"context"
	"fmt"

	"github.com/juju/errors"

	"docstore/internal/database"
	"docstore/internal/files"
)

type folderDao struct {
	*NativeDao
}

var _ files.FolderDao = (*folderDao)(nil)

func (d *folderDao) GetFolder(ctx context.Context, id string) (*files.Folder, error) {
	n, err := files.NativeID(id)
	if err != nil {
		return nil, err
	}
	return d.store.GetFolder(ctx, d.actor.TenantID, n)
}

func (d *folderDao) GetFolders(ctx context.Context, parentID string) ([]*files.Folder, error) {
	n, err := files.NativeID(parentID)
	if err != nil {
		return nil, err
	}
	return d.store.GetFolders(ctx, d.actor.TenantID, n)
}

func (d *folderDao) GetParentFolders(ctx context.Context, id string) ([]*files.Folder, error) {
	n, err := files.NativeID(id)
	if err != nil {
		return nil, err
	}
	chain, err := d.store.GetAncestorChain(ctx, d.actor.TenantID, n)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, errors.NotFoundf("folder %d", n)
	}
	return chain, nil
}

// SaveFolder creates a root folder when ParentID is empty. A new folder
// whose title is taken gets the next free numbered title.
func (d *folderDao) SaveFolder(ctx context.Context, folder *files.Folder) (string, error) {
	if folder.Title == "" {
		return "", errors.NotValidf("empty folder title")
	}
	now := d.clock.Now()

	if folder.ID != "" {
		n, err := files.NativeID(folder.ID)
		if err != nil {
			return "", err
		}
		if err := d.store.RenameFolder(ctx, d.actor.TenantID, n, folder.Title, d.actor.UserID, now); err != nil {
			return "", err
		}
		return folder.ID, nil
	}

	parent := 0
	if folder.ParentID != "" {
		var err error
		if parent, err = files.NativeID(folder.ParentID); err != nil {
			return "", err
		}
	}

	var id int
	err := d.store.InUnit(ctx, func(uow *database.UnitOfWork) error {
		title, err := files.GetAvailableTitle(folder.Title, func(t string) (bool, error) {
			return uow.FolderTitleExists(ctx, d.actor.TenantID, parent, t)
		})
		if err != nil {
			return err
		}
		id, err = uow.CreateFolder(ctx, database.NewFolder{
			TenantID:   d.actor.TenantID,
			ParentID:   parent,
			Title:      title,
			FolderType: folder.FolderType,
			By:         d.actor.UserID,
			At:         now,
		})
		return err
	})
	if err != nil {
		return "", err
	}
	return files.FormatNativeID(id), nil
}

func (d *folderDao) MoveFolder(ctx context.Context, id, toFolderID string) (string, error) {
	n, err := files.NativeID(id)
	if err != nil {
		return "", err
	}
	to, err := files.NativeID(toFolderID)
	if err != nil {
		return "", err
	}
	err = d.store.InUnit(ctx, func(uow *database.UnitOfWork) error {
		current, err := uow.GetFolder(ctx, d.actor.TenantID, n)
		if err != nil {
			return err
		}
		if current.ParentID == toFolderID {
			return nil
		}
		title, err := files.GetAvailableTitle(current.Title, func(t string) (bool, error) {
			return uow.FolderTitleExists(ctx, d.actor.TenantID, to, t)
		})
		if err != nil {
			return err
		}
		now := d.clock.Now()
		if err := uow.MoveFolder(ctx, d.actor.TenantID, n, to, d.actor.UserID, now); err != nil {
			return err
		}
		if title == current.Title {
			return nil
		}
		return uow.RenameFolder(ctx, d.actor.TenantID, n, title, d.actor.UserID, now)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// CopyFolder copies the subtree rows in one unit and the content of every
// copied file after it. When a content copy fails the new subtree is
// deleted again.
func (d *folderDao) CopyFolder(ctx context.Context, id, toFolderID string) (*files.Folder, error) {
	n, err := files.NativeID(id)
	if err != nil {
		return nil, err
	}
	to, err := files.NativeID(toFolderID)
	if err != nil {
		return nil, err
	}
	src, err := d.store.GetFolder(ctx, d.actor.TenantID, n)
	if err != nil {
		return nil, err
	}
	s, err := d.content(ctx)
	if err != nil {
		return nil, err
	}

	var (
		newID  int
		copied []database.CopiedFile
	)
	err = d.store.InUnit(ctx, func(uow *database.UnitOfWork) error {
		title, err := files.GetAvailableTitle(src.Title, func(t string) (bool, error) {
			return uow.FolderTitleExists(ctx, d.actor.TenantID, to, t)
		})
		if err != nil {
			return err
		}
		newID, copied, err = uow.CopyFolder(ctx, d.actor.TenantID, n, to, title, d.actor.UserID, d.clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, c := range copied {
		err := copyContent(ctx, s, contentPath(c.From.ID, c.From.Version), contentPath(c.To.ID, c.To.Version), c.From.ContentLength)
		if err != nil {
			if derr := d.DeleteFolder(ctx, files.FormatNativeID(newID)); derr != nil {
				d.logger.Error("removing partial folder copy", "folder", newID, "error", derr)
			}
			return nil, fmt.Errorf("copying content of file %s: %w", c.From.ID, err)
		}
	}
	d.logger.Info("copied folder", "from", n, "to", newID, "files", len(copied))
	return d.store.GetFolder(ctx, d.actor.TenantID, newID)
}

func (d *folderDao) DeleteFolder(ctx context.Context, id string) error {
	n, err := files.NativeID(id)
	if err != nil {
		return err
	}
	var removed []*files.File
	err = d.store.InUnit(ctx, func(uow *database.UnitOfWork) error {
		var err error
		removed, err = uow.DeleteFolder(ctx, d.actor.TenantID, n)
		return err
	})
	if err != nil {
		return err
	}
	d.release(ctx, removed)
	return nil
}

func (d *folderDao) IsEmpty(ctx context.Context, id string) (bool, error) {
	n, err := files.NativeID(id)
	if err != nil {
		return false, err
	}
	if _, err := d.store.GetFolder(ctx, d.actor.TenantID, n); err != nil {
		return false, err
	}
	folders, err := d.store.GetFolders(ctx, d.actor.TenantID, n)
	if err != nil || len(folders) > 0 {
		return false, err
	}
	list, err := d.store.GetFiles(ctx, d.actor.TenantID, n)
	if err != nil {
		return false, err
	}
	return len(list) == 0, nil
}
