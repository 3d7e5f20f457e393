package app

import (
	"context"

	"docstore/internal/dao"
	"docstore/internal/thirdparty"
)

// AddProvider links an external store for the actor and returns the id of
// its root folder.
func (a *DocstoreApp) AddProvider(ctx context.Context, link thirdparty.NewLink) (string, error) {
	linkID, err := a.accounts.SaveProviderInfo(ctx, a.actor, link)
	if err != nil {
		return "", a.op.Fail(err)
	}
	info, err := a.accounts.GetProviderInfo(ctx, a.actor, linkID)
	if err != nil {
		return "", a.op.Fail(err)
	}
	return info.RootID(), nil
}

// Providers lists the links the actor may use.
func (a *DocstoreApp) Providers(ctx context.Context) ([]*thirdparty.ProviderInfo, error) {
	infos, err := a.accounts.GetProvidersInfo(ctx, a.actor)
	return infos, a.op.Fail(err)
}

// RenameProvider changes the title shown for a link.
func (a *DocstoreApp) RenameProvider(ctx context.Context, linkID int, title string) error {
	return a.op.Fail(a.accounts.UpdateProviderInfo(ctx, a.actor, linkID, title))
}

// RemoveProvider unlinks a store and forgets every id mapped inside it.
func (a *DocstoreApp) RemoveProvider(ctx context.Context, linkID int) error {
	return a.op.Fail(a.accounts.RemoveProviderInfo(ctx, a.actor, linkID))
}

// ProbeProvider opens a session on the link's root and returns the number
// of items directly inside it.
func (a *DocstoreApp) ProbeProvider(ctx context.Context, rootID string) (int, error) {
	var n int
	err := a.withScope(func(s *dao.Scope) error {
		set, err := s.DaoSet(ctx, rootID)
		if err != nil {
			return err
		}
		folders, err := set.FolderDao().GetFolders(ctx, rootID)
		if err != nil {
			return err
		}
		list, err := set.FileDao().GetFiles(ctx, rootID)
		if err != nil {
			return err
		}
		n = len(folders) + len(list)
		return nil
	})
	return n, err
}
