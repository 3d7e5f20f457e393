package app

import (
	"context"

	"github.com/juju/errors"

	"docstore/internal/dao"
	"docstore/internal/files"
)

// CreateFolder creates title under parentID, or a new root folder when
// parentID is empty. A taken title gets the next free number.
func (a *DocstoreApp) CreateFolder(ctx context.Context, parentID, title string) (*files.Folder, error) {
	var created *files.Folder
	err := a.withScope(func(s *dao.Scope) error {
		var fd files.FolderDao = s.Native().FolderDao()
		if parentID != "" {
			var err error
			if fd, err = s.FolderDao(ctx, parentID); err != nil {
				return err
			}
		}
		id, err := fd.SaveFolder(ctx, &files.Folder{ParentID: parentID, Title: title, FolderType: files.FolderTypeDefault})
		if err != nil {
			return err
		}
		created, err = fd.GetFolder(ctx, id)
		return err
	})
	return created, err
}

// ListFolder returns the folders and files directly inside id.
func (a *DocstoreApp) ListFolder(ctx context.Context, id string) ([]*files.Folder, []*files.File, error) {
	var (
		folders []*files.Folder
		list    []*files.File
	)
	err := a.withScope(func(s *dao.Scope) error {
		set, err := s.DaoSet(ctx, id)
		if err != nil {
			return err
		}
		if folders, err = set.FolderDao().GetFolders(ctx, id); err != nil {
			return err
		}
		list, err = set.FileDao().GetFiles(ctx, id)
		return err
	})
	return folders, list, err
}

// MoveFolder moves id under toID and returns the folder's id afterwards.
func (a *DocstoreApp) MoveFolder(ctx context.Context, id, toID string) (string, error) {
	var moved string
	err := a.withScope(func(s *dao.Scope) error {
		fd, err := sameStore(ctx, s, id, toID)
		if err != nil {
			return err
		}
		moved, err = fd.MoveFolder(ctx, id, toID)
		return err
	})
	return moved, err
}

// CopyFolder copies the subtree at id under toID.
func (a *DocstoreApp) CopyFolder(ctx context.Context, id, toID string) (*files.Folder, error) {
	var copied *files.Folder
	err := a.withScope(func(s *dao.Scope) error {
		fd, err := sameStore(ctx, s, id, toID)
		if err != nil {
			return err
		}
		copied, err = fd.CopyFolder(ctx, id, toID)
		return err
	})
	return copied, err
}

// DeleteFolder removes id with everything below it.
func (a *DocstoreApp) DeleteFolder(ctx context.Context, id string) error {
	return a.withScope(func(s *dao.Scope) error {
		fd, err := s.FolderDao(ctx, id)
		if err != nil {
			return err
		}
		return fd.DeleteFolder(ctx, id)
	})
}

// FolderPath returns the chain from the root down to id.
func (a *DocstoreApp) FolderPath(ctx context.Context, id string) ([]*files.Folder, error) {
	var chain []*files.Folder
	err := a.withScope(func(s *dao.Scope) error {
		fd, err := s.FolderDao(ctx, id)
		if err != nil {
			return err
		}
		chain, err = fd.GetParentFolders(ctx, id)
		return err
	})
	return chain, err
}

// sameStore returns the folder DAO serving both ids. Entries cannot be
// moved or copied between the local store and a link, or between links.
func sameStore(ctx context.Context, s *dao.Scope, id, toID string) (files.FolderDao, error) {
	from, err := s.DaoSet(ctx, id)
	if err != nil {
		return nil, err
	}
	to, err := s.DaoSet(ctx, toID)
	if err != nil {
		return nil, err
	}
	if from != to {
		return nil, errors.NotSupportedf("transfer from %q to %q across stores", id, toID)
	}
	return from.FolderDao(), nil
}
