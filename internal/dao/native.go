// Package dao serves entries by id: native entries from the local store,
// provider entries through the matching thirdparty selector.
package dao

import (
	"context"
	"fmt"
	"strconv"

	"docstore/internal/database"
	"docstore/internal/datastore"
	"docstore/internal/files"
)

// FilesModule is the storage module file content is kept in.
const FilesModule = "files"

// ContentStorage resolves the byte store of a module for a tenant.
// storage.Factory implements it.
type ContentStorage interface {
	GetStorage(ctx context.Context, tenant, module string) (datastore.Store, error)
}

// NativeDao serves entries kept in the local database for one actor.
// Content goes to the tenant's files module.
type NativeDao struct {
	actor   files.Actor
	store   *database.Store
	storage ContentStorage
	clock   files.Clock
	logger  files.Logger
}

var _ files.DaoSet = (*NativeDao)(nil)

func NewNativeDao(actor files.Actor, store *database.Store, storage ContentStorage, clock files.Clock, logger files.Logger) *NativeDao {
	return &NativeDao{
		actor:   actor,
		store:   store,
		storage: storage,
		clock:   clock,
		logger:  logger,
	}
}

func (d *NativeDao) FolderDao() files.FolderDao     { return &folderDao{d} }
func (d *NativeDao) FileDao() files.FileDao         { return &fileDao{d} }
func (d *NativeDao) TagDao() files.TagDao           { return &tagDao{d} }
func (d *NativeDao) SecurityDao() files.SecurityDao { return &securityDao{d} }

func (d *NativeDao) content(ctx context.Context) (datastore.Store, error) {
	return d.storage.GetStorage(ctx, strconv.Itoa(d.actor.TenantID), FilesModule)
}

// contentPath is where one version of a file lives in the files module.
func contentPath(id string, version int) string {
	return fmt.Sprintf("file_%s/v%d/content", id, version)
}

// release deletes the content of removed file versions. Failures are
// logged; the rows are already gone.
func (d *NativeDao) release(ctx context.Context, removed []*files.File) {
	if len(removed) == 0 {
		return
	}
	s, err := d.content(ctx)
	if err != nil {
		d.logger.Error("opening files store to release content", "error", err)
		return
	}
	for _, f := range removed {
		if _, err := s.Delete(ctx, "", contentPath(f.ID, f.Version)); err != nil {
			d.logger.Warn("releasing file content", "file", f.ID, "version", f.Version, "error", err)
		}
	}
}
