package dao

import (
	"context"
	"io"

	"github.com/juju/errors"

	"docstore/internal/database"
	"docstore/internal/datastore"
	"docstore/internal/files"
)

type fileDao struct {
	*NativeDao
}

var _ files.FileDao = (*fileDao)(nil)

func (d *fileDao) GetFile(ctx context.Context, id string) (*files.File, error) {
	n, err := files.NativeID(id)
	if err != nil {
		return nil, err
	}
	return d.store.GetFile(ctx, d.actor.TenantID, n)
}

func (d *fileDao) GetFiles(ctx context.Context, folderID string) ([]*files.File, error) {
	n, err := files.NativeID(folderID)
	if err != nil {
		return nil, err
	}
	return d.store.GetFiles(ctx, d.actor.TenantID, n)
}

func (d *fileDao) GetFileVersions(ctx context.Context, id string) ([]*files.File, error) {
	n, err := files.NativeID(id)
	if err != nil {
		return nil, err
	}
	versions, err := d.store.GetFileVersions(ctx, d.actor.TenantID, n)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, errors.NotFoundf("file %d", n)
	}
	return versions, nil
}

// SaveFile commits the version row, then writes the content outside the
// unit. A refused or failed write drops the version again. A positive
// ContentLength must match the content; otherwise the stored size is
// whatever was written.
func (d *fileDao) SaveFile(ctx context.Context, file *files.File, content io.Reader) (*files.File, error) {
	size := int64(-1)
	if file.ContentLength > 0 {
		size = file.ContentLength
	}
	s, err := d.content(ctx)
	if err != nil {
		return nil, err
	}

	var saved *files.File
	err = d.store.InUnit(ctx, func(uow *database.UnitOfWork) error {
		nv, err := d.nextVersion(ctx, uow, file)
		if err != nil {
			return err
		}
		nv.ContentLength = max(size, 0)
		saved, err = uow.SaveFileVersion(ctx, nv)
		return err
	})
	if err != nil {
		return nil, err
	}

	id, _ := files.NativeID(saved.ID)
	n, err := s.Save(ctx, "", contentPath(saved.ID, saved.Version), content, size)
	if err == nil && n != saved.ContentLength {
		if err = d.store.SetContentLength(ctx, d.actor.TenantID, id, saved.Version, n); err == nil {
			saved.ContentLength = n
		} else {
			_, _ = s.Delete(ctx, "", contentPath(saved.ID, saved.Version))
		}
	}
	if err != nil {
		if derr := d.store.InUnit(ctx, func(uow *database.UnitOfWork) error {
			return uow.DropFileVersion(ctx, d.actor.TenantID, id, saved.Version)
		}); derr != nil {
			d.logger.Error("dropping unwritten file version", "file", saved.ID, "version", saved.Version, "error", derr)
		}
		return nil, err
	}
	d.logger.Debug("saved file", "file", saved.ID, "version", saved.Version, "size", saved.ContentLength)
	return saved, nil
}

// nextVersion describes a new file in FolderID under a free title, or the
// next version of the file ID points at.
func (d *fileDao) nextVersion(ctx context.Context, uow *database.UnitOfWork, file *files.File) (database.NewFileVersion, error) {
	nv := database.NewFileVersion{
		TenantID: d.actor.TenantID,
		By:       d.actor.UserID,
		At:       d.clock.Now(),
	}
	if file.ID == "" {
		if file.Title == "" {
			return nv, errors.NotValidf("empty file title")
		}
		folder, err := files.NativeID(file.FolderID)
		if err != nil {
			return nv, err
		}
		title, err := files.GetAvailableTitle(file.Title, func(t string) (bool, error) {
			return uow.FileTitleExists(ctx, d.actor.TenantID, folder, t)
		})
		if err != nil {
			return nv, err
		}
		nv.FolderID, nv.Title = folder, title
		return nv, nil
	}

	id, err := files.NativeID(file.ID)
	if err != nil {
		return nv, err
	}
	current, err := uow.GetFile(ctx, d.actor.TenantID, id)
	if err != nil {
		return nv, err
	}
	if nv.FolderID, err = files.NativeID(current.FolderID); err != nil {
		return nv, err
	}
	nv.ID, nv.Title = id, current.Title
	if file.Title != "" {
		nv.Title = file.Title
	}
	return nv, nil
}

// GetFileStream opens file.Version, or the current version when zero.
func (d *fileDao) GetFileStream(ctx context.Context, file *files.File) (io.ReadCloser, error) {
	n, err := files.NativeID(file.ID)
	if err != nil {
		return nil, err
	}
	version := file.Version
	if version == 0 {
		current, err := d.store.GetFile(ctx, d.actor.TenantID, n)
		if err != nil {
			return nil, err
		}
		version = current.Version
	}
	s, err := d.content(ctx)
	if err != nil {
		return nil, err
	}
	return s.Open(ctx, "", contentPath(file.ID, version))
}

// MoveFile keeps the id. A title taken in the target folder is numbered.
func (d *fileDao) MoveFile(ctx context.Context, id, toFolderID string) (string, error) {
	n, err := files.NativeID(id)
	if err != nil {
		return "", err
	}
	to, err := files.NativeID(toFolderID)
	if err != nil {
		return "", err
	}
	err = d.store.InUnit(ctx, func(uow *database.UnitOfWork) error {
		current, err := uow.GetFile(ctx, d.actor.TenantID, n)
		if err != nil {
			return err
		}
		if current.FolderID == toFolderID {
			return nil
		}
		title, err := files.GetAvailableTitle(current.Title, func(t string) (bool, error) {
			return uow.FileTitleExists(ctx, d.actor.TenantID, to, t)
		})
		if err != nil {
			return err
		}
		return uow.MoveFile(ctx, d.actor.TenantID, n, to, title, d.actor.UserID, d.clock.Now())
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (d *fileDao) DeleteFile(ctx context.Context, id string) error {
	n, err := files.NativeID(id)
	if err != nil {
		return err
	}
	var removed []*files.File
	err = d.store.InUnit(ctx, func(uow *database.UnitOfWork) error {
		var err error
		removed, err = uow.DeleteFile(ctx, d.actor.TenantID, n)
		return err
	})
	if err != nil {
		return err
	}
	d.release(ctx, removed)
	return nil
}

func (d *fileDao) IsExist(ctx context.Context, title, folderID string) (bool, error) {
	n, err := files.NativeID(folderID)
	if err != nil {
		return false, err
	}
	return d.store.FileTitleExists(ctx, d.actor.TenantID, n, title)
}

func copyContent(ctx context.Context, s datastore.Store, from, to string, size int64) error {
	r, err := s.Open(ctx, "", from)
	if err != nil {
		return err
	}
	defer r.Close()
	_, err = s.Save(ctx, "", to, r, size)
	return err
}
