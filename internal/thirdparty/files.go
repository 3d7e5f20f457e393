package thirdparty

import (
	"context"
	"io"

	"github.com/juju/errors"

	"docstore/internal/files"
)

type fileDao struct {
	*ProviderDao
}

var _ files.FileDao = (*fileDao)(nil)

func (d *fileDao) GetFile(ctx context.Context, id string) (*files.File, error) {
	p, err := d.path(id)
	if err != nil {
		return nil, err
	}
	if p == "" {
		return nil, errors.NotFoundf("file %q", id)
	}
	s, err := d.open(ctx)
	if err != nil {
		return nil, err
	}
	item, err := s.Stat(ctx, p)
	switch {
	case errors.Is(err, errors.NotFound):
		return nil, errors.NotFoundf("file %q", id)
	case err != nil:
		return d.toErrorFile(p, err), nil
	case item.IsFolder:
		return nil, errors.NotFoundf("file %q", id)
	}
	return d.toFile(item), nil
}

func (d *fileDao) GetFiles(ctx context.Context, folderID string) ([]*files.File, error) {
	items, err := d.list(ctx, folderID, false)
	if err != nil {
		return nil, err
	}
	result := make([]*files.File, 0, len(items))
	for _, item := range items {
		if item.Err != nil {
			result = append(result, d.toErrorFile(item.Path, item.Err))
			continue
		}
		result = append(result, d.toFile(item))
	}
	return result, nil
}

// GetFileVersions returns the single version a provider exposes.
func (d *fileDao) GetFileVersions(ctx context.Context, id string) ([]*files.File, error) {
	f, err := d.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}
	return []*files.File{f}, nil
}

// SaveFile uploads a new file into FolderID under a free title, or
// overwrites the file ID points at. A positive ContentLength must match
// the content.
func (d *fileDao) SaveFile(ctx context.Context, file *files.File, content io.Reader) (*files.File, error) {
	size := int64(-1)
	if file.ContentLength > 0 {
		size = file.ContentLength
	}
	s, err := d.open(ctx)
	if err != nil {
		return nil, err
	}

	var parent, title string
	if file.ID != "" {
		p, err := d.path(file.ID)
		if err != nil {
			return nil, err
		}
		if p == "" {
			return nil, errors.NotValidf("writing to the root of %s link %d", d.info.Provider.Key, d.info.ID)
		}
		parent, title = parentPath(p), baseName(p)
	} else {
		if file.Title == "" {
			return nil, errors.NotValidf("empty file title")
		}
		if parent, err = d.path(file.FolderID); err != nil {
			return nil, err
		}
		if title, err = d.availableTitle(ctx, s, parent, file.Title); err != nil {
			return nil, err
		}
	}

	item, err := s.Upload(ctx, parent, title, content, size)
	if err != nil {
		return nil, err
	}
	return d.toFile(item), nil
}

func (d *fileDao) GetFileStream(ctx context.Context, file *files.File) (io.ReadCloser, error) {
	p, err := d.path(file.ID)
	if err != nil {
		return nil, err
	}
	s, err := d.open(ctx)
	if err != nil {
		return nil, err
	}
	r, err := s.Download(ctx, p)
	if errors.Is(err, errors.NotFound) {
		return nil, errors.NotFoundf("file %q", file.ID)
	}
	return r, err
}

func (d *fileDao) MoveFile(ctx context.Context, id, toFolderID string) (string, error) {
	return d.move(ctx, id, toFolderID)
}

func (d *fileDao) DeleteFile(ctx context.Context, id string) error {
	return d.remove(ctx, id)
}

func (d *fileDao) IsExist(ctx context.Context, title, folderID string) (bool, error) {
	items, err := d.list(ctx, folderID, false)
	if err != nil {
		return false, err
	}
	for _, item := range items {
		if item.Name == title {
			return true, nil
		}
	}
	return false, nil
}
