package thirdparty

import (
	"context"

	"github.com/juju/errors"

	"docstore/internal/files"
)

type folderDao struct {
	*ProviderDao
}

var _ files.FolderDao = (*folderDao)(nil)

// GetFolder returns an error entry instead of an error when the store
// fails for any reason other than a missing folder.
func (d *folderDao) GetFolder(ctx context.Context, id string) (*files.Folder, error) {
	p, err := d.path(id)
	if err != nil {
		return nil, err
	}
	s, err := d.open(ctx)
	if err != nil {
		return nil, err
	}
	item, err := s.Stat(ctx, p)
	switch {
	case errors.Is(err, errors.NotFound):
		return nil, errors.NotFoundf("folder %q", id)
	case err != nil:
		return d.toErrorFolder(p, err), nil
	case !item.IsFolder:
		return nil, errors.NotFoundf("folder %q", id)
	}
	return d.toFolder(item), nil
}

func (d *folderDao) GetFolders(ctx context.Context, parentID string) ([]*files.Folder, error) {
	items, err := d.list(ctx, parentID, true)
	if err != nil {
		return nil, err
	}
	result := make([]*files.Folder, 0, len(items))
	for _, item := range items {
		if item.Err != nil {
			result = append(result, d.toErrorFolder(item.Path, item.Err))
			continue
		}
		result = append(result, d.toFolder(item))
	}
	return result, nil
}

// GetParentFolders derives the chain from the path without asking the store.
func (d *folderDao) GetParentFolders(ctx context.Context, id string) ([]*files.Folder, error) {
	p, err := d.path(id)
	if err != nil {
		return nil, err
	}
	var chain []*files.Folder
	for _, a := range ancestors(p) {
		chain = append(chain, d.toFolder(&Item{Path: a, Name: baseName(a), IsFolder: true}))
	}
	return chain, nil
}

// SaveFolder creates folder under ParentID when ID is empty and renames it
// otherwise. Renaming the root renames the link.
func (d *folderDao) SaveFolder(ctx context.Context, folder *files.Folder) (string, error) {
	if folder.Title == "" {
		return "", errors.NotValidf("empty folder title")
	}
	if folder.ID != "" {
		return d.rename(ctx, folder.ID, folder.Title)
	}

	parent, err := d.path(folder.ParentID)
	if err != nil {
		return "", err
	}
	s, err := d.open(ctx)
	if err != nil {
		return "", err
	}
	title, err := d.availableTitle(ctx, s, parent, folder.Title)
	if err != nil {
		return "", err
	}
	item, err := s.CreateFolder(ctx, parent, title)
	if err != nil {
		return "", err
	}
	return d.makeID(item.Path), nil
}

func (d *folderDao) rename(ctx context.Context, id, title string) (string, error) {
	p, err := d.path(id)
	if err != nil {
		return "", err
	}
	if p == "" {
		if err := d.selector.accounts.UpdateProviderInfo(ctx, d.actor, d.info.ID, title); err != nil {
			return "", err
		}
		d.info.CustomerTitle = title
		return id, nil
	}
	if baseName(p) == title {
		return id, nil
	}
	return d.relocate(ctx, id, p, parentPath(p), title)
}

func (d *folderDao) MoveFolder(ctx context.Context, id, toFolderID string) (string, error) {
	return d.move(ctx, id, toFolderID)
}

func (d *folderDao) CopyFolder(ctx context.Context, id, toFolderID string) (*files.Folder, error) {
	p, err := d.path(id)
	if err != nil {
		return nil, err
	}
	to, err := d.path(toFolderID)
	if err != nil {
		return nil, err
	}
	s, err := d.open(ctx)
	if err != nil {
		return nil, err
	}
	title := baseName(p)
	if p == "" {
		title = d.info.CustomerTitle
	}
	title, err = d.availableTitle(ctx, s, to, title)
	if err != nil {
		return nil, err
	}
	item, err := s.Copy(ctx, p, to, title)
	if err != nil {
		return nil, err
	}
	return d.toFolder(item), nil
}

func (d *folderDao) DeleteFolder(ctx context.Context, id string) error {
	return d.remove(ctx, id)
}

func (d *folderDao) IsEmpty(ctx context.Context, id string) (bool, error) {
	p, err := d.path(id)
	if err != nil {
		return false, err
	}
	s, err := d.open(ctx)
	if err != nil {
		return false, err
	}
	items, err := s.List(ctx, p)
	if err != nil {
		return false, err
	}
	return len(items) == 0, nil
}
