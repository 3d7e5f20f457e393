package dao

import (
	"context"

	"github.com/google/uuid"
	"github.com/juju/errors"

	"docstore/internal/database"
	"docstore/internal/files"
)

type securityDao struct {
	*NativeDao
}

var _ files.SecurityDao = (*securityDao)(nil)

// SetShare with ShareNone on a folder revokes the subject on the whole
// subtree and on every file in it, all in one unit.
func (d *securityDao) SetShare(ctx context.Context, record *files.ShareRecord) error {
	n, err := files.NativeID(record.EntryID)
	if err != nil {
		return err
	}

	if record.Share == files.ShareNone {
		return d.store.InUnit(ctx, func(uow *database.UnitOfWork) error {
			if record.EntryType != files.EntryTypeFolder {
				_, err := uow.DeleteShare(ctx, d.actor.TenantID, record.EntryID, record.EntryType, record.Subject)
				return err
			}
			folders, fileRows, err := uow.RevokeFolderTree(ctx, d.actor.TenantID, n, record.Subject)
			if err != nil {
				return err
			}
			d.logger.Info("revoked folder tree", "folder", n, "subject", record.Subject,
				"folders", folders, "files", fileRows)
			return nil
		})
	}
	if !record.Share.Storable() {
		return errors.NotValidf("share %s", record.Share)
	}

	stored := *record
	stored.TenantID = d.actor.TenantID
	stored.Timestamp = d.clock.Now()
	return d.store.InUnit(ctx, func(uow *database.UnitOfWork) error {
		return uow.UpsertShare(ctx, &stored)
	})
}

// GetShares walks the closure table from each folder, and from the folder
// holding each file, up to the root.
func (d *securityDao) GetShares(ctx context.Context, entries ...files.Entry) ([]*files.ShareRecord, error) {
	var (
		folderIDs []int
		fileIDs   []string
	)
	for _, e := range entries {
		n, err := files.NativeID(e.EntryID())
		if err != nil {
			return nil, err
		}
		if e.EntryType() == files.EntryTypeFolder {
			folderIDs = append(folderIDs, n)
			continue
		}
		fileIDs = append(fileIDs, e.EntryID())
		folder, err := d.containingFolder(ctx, e, n)
		if err != nil {
			return nil, err
		}
		folderIDs = append(folderIDs, folder)
	}

	records, err := d.store.GetTreeShares(ctx, d.actor.TenantID, folderIDs, fileIDs)
	if err != nil {
		return nil, err
	}
	files.SortShareRecords(records)
	return records, nil
}

func (d *securityDao) containingFolder(ctx context.Context, e files.Entry, id int) (int, error) {
	if f, ok := e.(*files.File); ok && f.FolderID != "" {
		return files.NativeID(f.FolderID)
	}
	f, err := d.store.GetFile(ctx, d.actor.TenantID, id)
	if err != nil {
		return 0, err
	}
	return files.NativeID(f.FolderID)
}

func (d *securityDao) GetPureShareRecords(ctx context.Context, entries ...files.Entry) ([]*files.ShareRecord, error) {
	keys := make([]database.EntryKey, 0, len(entries))
	for _, e := range entries {
		if _, err := files.NativeID(e.EntryID()); err != nil {
			return nil, err
		}
		level := 0
		if e.EntryType() == files.EntryTypeFile {
			level = files.LevelDirect
		}
		keys = append(keys, database.EntryKey{ID: e.EntryID(), Type: e.EntryType(), Level: level})
	}
	records, err := d.store.GetEntryShares(ctx, d.actor.TenantID, keys)
	if err != nil {
		return nil, err
	}
	files.SortShareRecords(records)
	return records, nil
}

// GetSharesForSubjects returns the subjects' records on native entries.
func (d *securityDao) GetSharesForSubjects(ctx context.Context, subjects ...uuid.UUID) ([]*files.ShareRecord, error) {
	records, err := d.store.GetSharesForSubjects(ctx, d.actor.TenantID, subjects)
	if err != nil {
		return nil, err
	}
	native := records[:0]
	for _, r := range records {
		if files.IsNativeID(r.EntryID) {
			native = append(native, r)
		}
	}
	return native, nil
}

func (d *securityDao) DeleteShareRecords(ctx context.Context, records ...*files.ShareRecord) error {
	for _, r := range records {
		if _, err := files.NativeID(r.EntryID); err != nil {
			return err
		}
	}
	return d.store.InUnit(ctx, func(uow *database.UnitOfWork) error {
		for _, r := range records {
			if _, err := uow.DeleteShare(ctx, d.actor.TenantID, r.EntryID, r.EntryType, r.Subject); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *securityDao) RemoveSubject(ctx context.Context, subject uuid.UUID) error {
	return d.store.InUnit(ctx, func(uow *database.UnitOfWork) error {
		n, err := uow.RemoveSubject(ctx, subject)
		if err != nil {
			return err
		}
		d.logger.Info("removed subject", "subject", subject, "records", n)
		return nil
	})
}

func (d *securityDao) IsShared(ctx context.Context, entryID string, entryType files.EntryType) (bool, error) {
	if _, err := files.NativeID(entryID); err != nil {
		return false, err
	}
	n, err := d.store.CountEntryShares(ctx, d.actor.TenantID, entryID, entryType)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type tagDao struct {
	*NativeDao
}

var _ files.TagDao = (*tagDao)(nil)

func (d *tagDao) SaveTags(ctx context.Context, tags ...*files.Tag) error {
	for _, t := range tags {
		if _, err := files.NativeID(t.EntryID); err != nil {
			return err
		}
		if t.CreateOn.IsZero() {
			t.CreateOn = d.clock.Now()
		}
	}
	return d.store.InUnit(ctx, func(uow *database.UnitOfWork) error {
		return uow.SaveTags(ctx, d.actor.TenantID, tags)
	})
}

func (d *tagDao) GetTags(ctx context.Context, entryID string, entryType files.EntryType, tagType files.TagType) ([]*files.Tag, error) {
	if _, err := files.NativeID(entryID); err != nil {
		return nil, err
	}
	return d.store.GetTags(ctx, d.actor.TenantID, entryID, entryType, tagType)
}

func (d *tagDao) RemoveTags(ctx context.Context, tags ...*files.Tag) error {
	return d.store.InUnit(ctx, func(uow *database.UnitOfWork) error {
		return uow.RemoveTags(ctx, d.actor.TenantID, tags)
	})
}
