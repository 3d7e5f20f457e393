package thirdparty

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/juju/errors"

	"docstore/internal/database"
	"docstore/internal/files"
)

// Provider entries are keyed by their mapped hash in the share and tag
// tables. Records leave this package with the composite id restored.

type securityDao struct {
	*ProviderDao
}

var _ files.SecurityDao = (*securityDao)(nil)

// SetShare revokes only the record on the entry itself; the subtree below
// a provider folder is not walked.
func (d *securityDao) SetShare(ctx context.Context, record *files.ShareRecord) error {
	if _, err := d.path(record.EntryID); err != nil {
		return err
	}

	if record.Share == files.ShareNone {
		mapped, err := d.mapper(d.store.Queries).MapID(ctx, d.actor.TenantID, record.EntryID, false)
		if err != nil || mapped == "" {
			return err
		}
		return d.store.InUnit(ctx, func(uow *database.UnitOfWork) error {
			_, err := uow.DeleteShare(ctx, d.actor.TenantID, mapped, record.EntryType, record.Subject)
			return err
		})
	}
	if !record.Share.Storable() {
		return errors.NotValidf("share %s", record.Share)
	}

	return d.store.InUnit(ctx, func(uow *database.UnitOfWork) error {
		mapped, err := d.mapper(uow.Queries).MapID(ctx, d.actor.TenantID, record.EntryID, true)
		if err != nil {
			return err
		}
		stored := *record
		stored.TenantID = d.actor.TenantID
		stored.EntryID = mapped
		stored.Timestamp = d.selector.accounts.clock.Now()
		return uow.UpsertShare(ctx, &stored)
	})
}

// GetShares resolves records on the entries and on every folder of their
// path up to the link root.
func (d *securityDao) GetShares(ctx context.Context, entries ...files.Entry) ([]*files.ShareRecord, error) {
	var keys []database.EntryKey
	raw := make(map[string]string)
	for _, e := range entries {
		p, err := d.path(e.EntryID())
		if err != nil {
			return nil, err
		}
		folder := p
		if e.EntryType() == files.EntryTypeFile {
			keys = append(keys, d.key(raw, e.EntryID(), files.EntryTypeFile, files.LevelDirect))
			folder = parentPath(p)
		}
		chain := ancestors(folder)
		for level := 0; level < len(chain); level++ {
			id := d.makeID(chain[len(chain)-1-level])
			keys = append(keys, d.key(raw, id, files.EntryTypeFolder, level))
		}
	}
	return d.resolve(ctx, keys, raw)
}

func (d *securityDao) GetPureShareRecords(ctx context.Context, entries ...files.Entry) ([]*files.ShareRecord, error) {
	var keys []database.EntryKey
	raw := make(map[string]string)
	for _, e := range entries {
		if _, err := d.path(e.EntryID()); err != nil {
			return nil, err
		}
		level := 0
		if e.EntryType() == files.EntryTypeFile {
			level = files.LevelDirect
		}
		keys = append(keys, d.key(raw, e.EntryID(), e.EntryType(), level))
	}
	return d.resolve(ctx, keys, raw)
}

// GetSharesForSubjects returns the subjects' records on entries of this
// link only.
func (d *securityDao) GetSharesForSubjects(ctx context.Context, subjects ...uuid.UUID) ([]*files.ShareRecord, error) {
	records, err := d.store.GetSharesForSubjects(ctx, d.actor.TenantID, subjects)
	if err != nil {
		return nil, err
	}
	mapper := d.mapper(d.store.Queries)
	root := d.info.RootID()
	var result []*files.ShareRecord
	for _, r := range records {
		id, err := mapper.ResolveHash(ctx, d.actor.TenantID, r.EntryID)
		if err != nil {
			return nil, err
		}
		if id != root && !strings.HasPrefix(id, root+"-") {
			continue
		}
		r.EntryID = id
		result = append(result, r)
	}
	return result, nil
}

func (d *securityDao) DeleteShareRecords(ctx context.Context, records ...*files.ShareRecord) error {
	return d.store.InUnit(ctx, func(uow *database.UnitOfWork) error {
		mapper := d.mapper(uow.Queries)
		for _, r := range records {
			mapped, err := mapper.MapID(ctx, d.actor.TenantID, r.EntryID, false)
			if err != nil {
				return err
			}
			if mapped == "" {
				continue
			}
			if _, err := uow.DeleteShare(ctx, d.actor.TenantID, mapped, r.EntryType, r.Subject); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *securityDao) RemoveSubject(ctx context.Context, subject uuid.UUID) error {
	return d.store.InUnit(ctx, func(uow *database.UnitOfWork) error {
		_, err := uow.RemoveSubject(ctx, subject)
		return err
	})
}

func (d *securityDao) IsShared(ctx context.Context, entryID string, entryType files.EntryType) (bool, error) {
	mapped, err := d.mapper(d.store.Queries).MapID(ctx, d.actor.TenantID, entryID, false)
	if err != nil || mapped == "" {
		return false, err
	}
	n, err := d.store.CountEntryShares(ctx, d.actor.TenantID, mapped, entryType)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// key addresses id by its hash and remembers the way back in raw.
func (d *securityDao) key(raw map[string]string, id string, t files.EntryType, level int) database.EntryKey {
	hash := database.HashID(id)
	raw[hash] = id
	return database.EntryKey{ID: hash, Type: t, Level: level}
}

func (d *securityDao) resolve(ctx context.Context, keys []database.EntryKey, raw map[string]string) ([]*files.ShareRecord, error) {
	records, err := d.store.GetEntryShares(ctx, d.actor.TenantID, keys)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		r.EntryID = raw[r.EntryID]
	}
	files.SortShareRecords(records)
	return records, nil
}

type tagDao struct {
	*ProviderDao
}

var _ files.TagDao = (*tagDao)(nil)

func (d *tagDao) SaveTags(ctx context.Context, tags ...*files.Tag) error {
	return d.store.InUnit(ctx, func(uow *database.UnitOfWork) error {
		mapper := d.mapper(uow.Queries)
		stored := make([]*files.Tag, len(tags))
		for i, t := range tags {
			mapped, err := mapper.MapID(ctx, d.actor.TenantID, t.EntryID, true)
			if err != nil {
				return err
			}
			c := *t
			c.EntryID = mapped
			if c.CreateOn.IsZero() {
				c.CreateOn = d.selector.accounts.clock.Now()
			}
			stored[i] = &c
		}
		if err := uow.SaveTags(ctx, d.actor.TenantID, stored); err != nil {
			return err
		}
		for i, t := range tags {
			t.ID = stored[i].ID
		}
		return nil
	})
}

func (d *tagDao) GetTags(ctx context.Context, entryID string, entryType files.EntryType, tagType files.TagType) ([]*files.Tag, error) {
	mapped, err := d.mapper(d.store.Queries).MapID(ctx, d.actor.TenantID, entryID, false)
	if err != nil || mapped == "" {
		return nil, err
	}
	tags, err := d.store.GetTags(ctx, d.actor.TenantID, mapped, entryType, tagType)
	if err != nil {
		return nil, err
	}
	for _, t := range tags {
		t.EntryID = entryID
	}
	return tags, nil
}

func (d *tagDao) RemoveTags(ctx context.Context, tags ...*files.Tag) error {
	return d.store.InUnit(ctx, func(uow *database.UnitOfWork) error {
		mapper := d.mapper(uow.Queries)
		var stored []*files.Tag
		for _, t := range tags {
			mapped, err := mapper.MapID(ctx, d.actor.TenantID, t.EntryID, false)
			if err != nil {
				return err
			}
			if mapped == "" {
				continue
			}
			c := *t
			c.EntryID = mapped
			stored = append(stored, &c)
		}
		return uow.RemoveTags(ctx, d.actor.TenantID, stored)
	})
}
