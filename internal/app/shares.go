package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/juju/errors"

	"docstore/internal/dao"
	"docstore/internal/files"
)

// ShareRequest is a share change as typed on the command line.
type ShareRequest struct {
	EntryID   string
	EntryType string // "file" or "folder"
	Subject   string
	Share     string // a share name; "none" revokes
}

func entryOf(id, entryType string) (files.Entry, error) {
	t, err := files.ParseEntryType(entryType)
	if err != nil {
		return nil, err
	}
	if t == files.EntryTypeFolder {
		return &files.Folder{ID: id}, nil
	}
	return &files.File{ID: id}, nil
}

// SetShare grants, changes or revokes the subject's share on an entry.
// The actor is recorded as the owner of the record.
func (a *DocstoreApp) SetShare(ctx context.Context, req ShareRequest) error {
	entryType, err := files.ParseEntryType(req.EntryType)
	if err != nil {
		return a.op.Fail(err)
	}
	subject, err := uuid.Parse(req.Subject)
	if err != nil {
		return a.op.Fail(errors.NotValidf("subject %q", req.Subject))
	}
	share, err := files.ParseShare(req.Share)
	if err != nil {
		return a.op.Fail(err)
	}

	return a.withScope(func(s *dao.Scope) error {
		sd, err := s.SecurityDao(ctx, req.EntryID)
		if err != nil {
			return err
		}
		return sd.SetShare(ctx, &files.ShareRecord{
			EntryID:   req.EntryID,
			EntryType: entryType,
			Subject:   subject,
			Owner:     a.actor.UserID,
			Share:     share,
		})
	})
}

// Shares returns the records that apply to an entry, inherited ones
// included, in resolution order.
func (a *DocstoreApp) Shares(ctx context.Context, id, entryType string) ([]*files.ShareRecord, error) {
	return a.shares(ctx, id, entryType, files.SecurityDao.GetShares)
}

// PureShares returns only the records placed on the entry itself.
func (a *DocstoreApp) PureShares(ctx context.Context, id, entryType string) ([]*files.ShareRecord, error) {
	return a.shares(ctx, id, entryType, files.SecurityDao.GetPureShareRecords)
}

type shareQuery func(files.SecurityDao, context.Context, ...files.Entry) ([]*files.ShareRecord, error)

func (a *DocstoreApp) shares(ctx context.Context, id, entryType string, query shareQuery) ([]*files.ShareRecord, error) {
	entry, err := entryOf(id, entryType)
	if err != nil {
		return nil, a.op.Fail(err)
	}
	var records []*files.ShareRecord
	err = a.withScope(func(s *dao.Scope) error {
		sd, err := s.SecurityDao(ctx, id)
		if err != nil {
			return err
		}
		records, err = query(sd, ctx, entry)
		return err
	})
	return records, err
}

// EffectiveShare resolves what subject may do with an entry.
func (a *DocstoreApp) EffectiveShare(ctx context.Context, id, entryType, subject string) (files.Share, error) {
	sub, err := uuid.Parse(subject)
	if err != nil {
		return files.ShareNone, a.op.Fail(errors.NotValidf("subject %q", subject))
	}
	records, err := a.Shares(ctx, id, entryType)
	if err != nil {
		return files.ShareNone, err
	}
	share, _ := files.EffectiveShare(records, sub)
	return share, nil
}

// RevokeSubject deletes every record where subject is the subject or the
// owner.
func (a *DocstoreApp) RevokeSubject(ctx context.Context, subject string) error {
	sub, err := uuid.Parse(subject)
	if err != nil {
		return a.op.Fail(errors.NotValidf("subject %q", subject))
	}
	return a.withScope(func(s *dao.Scope) error {
		return s.Native().SecurityDao().RemoveSubject(ctx, sub)
	})
}
