package thirdparty

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docstore/internal/database"
	"docstore/internal/files"
	"docstore/internal/testutil"
)

const testTenant = 1

var (
	owner    = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	stranger = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	reader   = uuid.MustParse("33333333-3333-3333-3333-333333333333")
)

type fixture struct {
	db       *database.Store
	accounts *Accounts
	sessions *Registry
	remote   *MemorySession
	actor    files.Actor
}

func newFixture(t *testing.T, enabled ...string) *fixture {
	t.Helper()
	db := testutil.NewTestStore(t)
	clock := testutil.FixedClock()
	f := &fixture{
		db:       db,
		accounts: NewAccounts(db, testutil.NewTestCredentials(), clock, enabled, files.NewNopLogger()),
		sessions: NewRegistry(),
		remote:   NewMemorySession(clock),
		actor:    files.Actor{TenantID: testTenant, UserID: owner},
	}
	f.sessions.Register(Box, f.remote.Opener())
	return f
}

func (f *fixture) selector(p Provider) *Selector {
	return NewSelector(p, f.accounts, f.sessions, files.NewNopLogger())
}

// link connects a box link and returns a DAO bound to its root.
func (f *fixture) link(t *testing.T) (*ProviderDao, string) {
	t.Helper()
	ctx := context.Background()
	id, err := f.accounts.SaveProviderInfo(ctx, f.actor, NewLink{
		Provider:       "box",
		CustomerTitle:  "My Box",
		RootFolderType: files.FolderTypeUser,
		Password:       "secret",
	})
	require.NoError(t, err)

	sel := f.selector(Box)
	root := sel.MakeID(id, "")
	dao, err := sel.GetDaoSet(ctx, f.actor, root)
	require.NoError(t, err)
	t.Cleanup(func() { dao.Close() })
	return dao, root
}

func TestSelector_IDs(t *testing.T) {
	f := newFixture(t)
	dropbox := f.selector(Dropbox)

	id := dropbox.MakeID(42, "folderA/sub")
	assert.Equal(t, "dropbox-42-folderA|sub", id)

	p, err := dropbox.ConvertID(id)
	require.NoError(t, err)
	assert.Equal(t, "folderA/sub", p)
	assert.Equal(t, "42", dropbox.GetIDCode(id))

	root, err := dropbox.ConvertID("dropbox-42")
	require.NoError(t, err)
	assert.Equal(t, "", root)
	assert.Equal(t, "dropbox-42", dropbox.MakeID(42, "/"))

	tests := []struct {
		name string
		id   string
	}{
		{"native id", "17"},
		{"other provider", "box-42-a"},
		{"missing link id", "dropbox-"},
		{"non-numeric link id", "dropbox-x-a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, dropbox.IsMatch(tt.id))
			assert.Equal(t, "", dropbox.GetIDCode(tt.id))
			_, err := dropbox.ConvertID(tt.id)
			assert.True(t, files.IsMalformedID(err), "ConvertID(%q) error = %v", tt.id, err)
		})
	}
}

func TestSelector_PrefixesDoNotOverlap(t *testing.T) {
	f := newFixture(t)
	box := f.selector(Box)
	webdav := f.selector(WebDav)

	assert.False(t, box.IsMatch("sbox-1-a"))
	assert.True(t, webdav.IsMatch("sbox-1-a"))
	assert.False(t, webdav.IsMatch("box-1-a"))
}

func TestEnabledSelectors(t *testing.T) {
	f := newFixture(t, "box", "S3")
	sels := EnabledSelectors(f.accounts, f.sessions, files.NewNopLogger())
	require.Len(t, sels, 2)
	assert.Equal(t, Box, sels[0].Provider())
	assert.Equal(t, S3, sels[1].Provider())

	all := EnabledSelectors(newFixture(t).accounts, f.sessions, files.NewNopLogger())
	assert.Len(t, all, len(Providers))
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()

	t.Run("owner reads decrypted credentials", func(t *testing.T) {
		f := newFixture(t)
		id, err := f.accounts.SaveProviderInfo(ctx, f.actor, NewLink{
			Provider: "box", CustomerTitle: "Box", RootFolderType: files.FolderTypeUser,
			UserName: "me", Password: "pw", Token: "tok",
		})
		require.NoError(t, err)

		info, err := f.accounts.GetProviderInfo(ctx, f.actor, id)
		require.NoError(t, err)
		assert.Equal(t, "pw", info.Password)
		assert.Equal(t, "tok", info.Token)
		assert.Equal(t, "me", info.UserName)
		assert.Equal(t, "box-"+files.FormatNativeID(id), info.RootID())

		acc, err := f.db.GetProviderAccount(ctx, testTenant, id)
		require.NoError(t, err)
		assert.NotEqual(t, "pw", acc.Password, "password must be stored encrypted")
	})

	t.Run("private link is hidden from others", func(t *testing.T) {
		f := newFixture(t)
		id, err := f.accounts.SaveProviderInfo(ctx, f.actor, NewLink{
			Provider: "box", CustomerTitle: "Box", RootFolderType: files.FolderTypeUser,
		})
		require.NoError(t, err)

		other := files.Actor{TenantID: testTenant, UserID: stranger}
		_, err = f.accounts.GetProviderInfo(ctx, other, id)
		assert.True(t, files.IsProviderAccess(err), "error = %v", err)
		assert.False(t, files.IsMalformedID(err))

		infos, err := f.accounts.GetProvidersInfo(ctx, other)
		require.NoError(t, err)
		assert.Empty(t, infos)
	})

	t.Run("common link is shared", func(t *testing.T) {
		f := newFixture(t)
		id, err := f.accounts.SaveProviderInfo(ctx, f.actor, NewLink{
			Provider: "box", CustomerTitle: "Team", RootFolderType: files.FolderTypeCommon,
		})
		require.NoError(t, err)

		other := files.Actor{TenantID: testTenant, UserID: stranger}
		info, err := f.accounts.GetProviderInfo(ctx, other, id)
		require.NoError(t, err)
		assert.Equal(t, "Team", info.CustomerTitle)
	})

	t.Run("missing link is an access error", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.accounts.GetProviderInfo(ctx, f.actor, 99)
		assert.True(t, files.IsProviderAccess(err), "error = %v", err)
	})

	t.Run("invalid links are rejected", func(t *testing.T) {
		f := newFixture(t, "box")
		_, err := f.accounts.SaveProviderInfo(ctx, f.actor, NewLink{Provider: "ftp", CustomerTitle: "x", RootFolderType: files.FolderTypeUser})
		assert.True(t, errors.Is(err, errors.NotValid), "unknown provider: %v", err)

		_, err = f.accounts.SaveProviderInfo(ctx, f.actor, NewLink{Provider: "dropbox", CustomerTitle: "x", RootFolderType: files.FolderTypeUser})
		assert.True(t, errors.Is(err, errors.NotSupported), "disabled provider: %v", err)

		_, err = f.accounts.SaveProviderInfo(ctx, f.actor, NewLink{Provider: "box", CustomerTitle: " ", RootFolderType: files.FolderTypeUser})
		assert.True(t, errors.Is(err, errors.NotValid), "empty title: %v", err)

		_, err = f.accounts.SaveProviderInfo(ctx, f.actor, NewLink{Provider: "box", CustomerTitle: "x", RootFolderType: files.FolderTypeTrash})
		assert.True(t, errors.Is(err, errors.NotValid), "trash root: %v", err)
	})

	t.Run("rename and remove", func(t *testing.T) {
		f := newFixture(t)
		dao, root := f.link(t)
		id := dao.Info().ID

		require.NoError(t, f.accounts.UpdateProviderInfo(ctx, f.actor, id, "Renamed"))
		info, err := f.accounts.GetProviderInfo(ctx, f.actor, id)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", info.CustomerTitle)

		share := &files.ShareRecord{EntryID: root + "-doc", EntryType: files.EntryTypeFile, Subject: reader, Owner: owner, Share: files.ShareRead}
		require.NoError(t, dao.SecurityDao().SetShare(ctx, share))

		require.NoError(t, f.accounts.RemoveProviderInfo(ctx, f.actor, id))
		_, err = f.accounts.GetProviderInfo(ctx, f.actor, id)
		assert.True(t, files.IsProviderAccess(err))

		n, err := f.db.CountEntryShares(ctx, testTenant, database.HashID(root+"-doc"), files.EntryTypeFile)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestGetDaoSet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, root := f.link(t)

	_, err := f.selector(Box).GetDaoSet(ctx, f.actor, "box-x")
	assert.True(t, files.IsMalformedID(err))

	other := files.Actor{TenantID: testTenant, UserID: stranger}
	_, err = f.selector(Box).GetDaoSet(ctx, other, root)
	assert.True(t, files.IsProviderAccess(err))

	// A box link addressed with another provider's prefix is not reachable.
	code := f.selector(Box).GetIDCode(root)
	_, err = f.selector(Dropbox).GetDaoSet(ctx, f.actor, "dropbox-"+code)
	assert.True(t, files.IsProviderAccess(err))
}

func TestProviderDao_Folders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	dao, root := f.link(t)
	folders := dao.FolderDao()

	rootFolder, err := folders.GetFolder(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, "My Box", rootFolder.Title)
	assert.Equal(t, "", rootFolder.ParentID)
	assert.Equal(t, root, rootFolder.RootFolderID)
	assert.Equal(t, files.FolderTypeUser, rootFolder.RootFolderType)
	assert.Equal(t, "box", rootFolder.ProviderKey)
	assert.True(t, rootFolder.IsProviderEntry())

	docs, err := folders.SaveFolder(ctx, &files.Folder{ParentID: root, Title: "Docs"})
	require.NoError(t, err)
	assert.Equal(t, root+"-Docs", docs)

	dup, err := folders.SaveFolder(ctx, &files.Folder{ParentID: root, Title: "Docs"})
	require.NoError(t, err)
	assert.Equal(t, root+"-Docs (1)", dup)

	sub, err := folders.SaveFolder(ctx, &files.Folder{ParentID: docs, Title: "Sub"})
	require.NoError(t, err)
	assert.Equal(t, root+"-Docs|Sub", sub)

	chain, err := folders.GetParentFolders(ctx, sub)
	require.NoError(t, err)
	var titles []string
	for _, c := range chain {
		titles = append(titles, c.Title)
	}
	assert.Equal(t, []string{"My Box", "Docs", "Sub"}, titles)

	list, err := folders.GetFolders(ctx, root)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, docs, list[0].ID)
	assert.Equal(t, root, list[0].ParentID)

	empty, err := folders.IsEmpty(ctx, sub)
	require.NoError(t, err)
	assert.True(t, empty)

	renamed, err := folders.SaveFolder(ctx, &files.Folder{ID: dup, Title: "Archive"})
	require.NoError(t, err)
	assert.Equal(t, root+"-Archive", renamed)

	moved, err := folders.MoveFolder(ctx, sub, renamed)
	require.NoError(t, err)
	assert.Equal(t, root+"-Archive|Sub", moved)

	_, err = folders.MoveFolder(ctx, renamed, moved)
	assert.Error(t, err, "moving a folder into its own subtree must fail")

	copied, err := folders.CopyFolder(ctx, renamed, docs)
	require.NoError(t, err)
	assert.Equal(t, root+"-Docs|Archive", copied.ID)
	_, err = folders.GetFolder(ctx, root+"-Docs|Archive|Sub")
	require.NoError(t, err)

	require.NoError(t, folders.DeleteFolder(ctx, docs))
	_, err = folders.GetFolder(ctx, docs)
	assert.True(t, files.IsNotFound(err))

	assert.Error(t, folders.DeleteFolder(ctx, root))

	_, err = folders.SaveFolder(ctx, &files.Folder{ID: root, Title: "Renamed Box"})
	require.NoError(t, err)
	rootFolder, err = folders.GetFolder(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, "Renamed Box", rootFolder.Title)
}

func TestProviderDao_Files(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	dao, root := f.link(t)
	fd := dao.FileDao()

	saved, err := fd.SaveFile(ctx, &files.File{FolderID: root, Title: "report.docx"}, strings.NewReader("v1"))
	require.NoError(t, err)
	assert.Equal(t, root+"-report.docx", saved.ID)
	assert.Equal(t, root, saved.FolderID)
	assert.Equal(t, int64(2), saved.ContentLength)
	assert.Equal(t, 1, saved.Version)

	second, err := fd.SaveFile(ctx, &files.File{FolderID: root, Title: "report.docx"}, strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "report (1).docx", second.Title)

	third, err := fd.SaveFile(ctx, &files.File{FolderID: root, Title: "report.docx"}, strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "report (2).docx", third.Title)

	overwritten, err := fd.SaveFile(ctx, &files.File{ID: saved.ID, ContentLength: 7}, strings.NewReader("version"))
	require.NoError(t, err)
	assert.Equal(t, saved.ID, overwritten.ID)

	_, err = fd.SaveFile(ctx, &files.File{ID: saved.ID, ContentLength: 3}, strings.NewReader("toolong"))
	assert.Error(t, err)

	r, err := fd.GetFileStream(ctx, overwritten)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	r.Close()
	require.NoError(t, err)
	assert.Equal(t, "version", string(data))

	exists, err := fd.IsExist(ctx, "report (1).docx", root)
	require.NoError(t, err)
	assert.True(t, exists)

	list, err := fd.GetFiles(ctx, root)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	versions, err := fd.GetFileVersions(ctx, saved.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1)

	folder, err := dao.FolderDao().SaveFolder(ctx, &files.Folder{ParentID: root, Title: "Folder"})
	require.NoError(t, err)
	moved, err := fd.MoveFile(ctx, second.ID, folder)
	require.NoError(t, err)
	assert.Equal(t, root+"-Folder|report (1).docx", moved)

	_, err = fd.GetFile(ctx, folder)
	assert.True(t, files.IsNotFound(err), "a folder is not a file")

	require.NoError(t, fd.DeleteFile(ctx, moved))
	_, err = fd.GetFile(ctx, moved)
	assert.True(t, files.IsNotFound(err))
}

func TestProviderDao_ErrorEntries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	dao, root := f.link(t)

	_, err := dao.FolderDao().SaveFolder(ctx, &files.Folder{ParentID: root, Title: "Broken"})
	require.NoError(t, err)
	_, err = dao.FolderDao().SaveFolder(ctx, &files.Folder{ParentID: root, Title: "Fine"})
	require.NoError(t, err)
	_, err = dao.FileDao().SaveFile(ctx, &files.File{FolderID: root, Title: "bad.txt"}, strings.NewReader("x"))
	require.NoError(t, err)

	f.remote.FailOn("Broken", errors.New("remote timeout"))
	f.remote.FailOn("bad.txt", errors.New("remote 503"))

	folder, err := dao.FolderDao().GetFolder(ctx, root+"-Broken")
	require.NoError(t, err)
	assert.Equal(t, "remote timeout", folder.Error)
	assert.Equal(t, root+"-Broken", folder.ID)

	list, err := dao.FolderDao().GetFolders(ctx, root)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "remote timeout", list[0].Error)
	assert.Empty(t, list[1].Error)

	file, err := dao.FileDao().GetFile(ctx, root+"-bad.txt")
	require.NoError(t, err)
	assert.Equal(t, "remote 503", file.Error)

	fl, err := dao.FileDao().GetFiles(ctx, root)
	require.NoError(t, err)
	require.Len(t, fl, 1)
	assert.Equal(t, "remote 503", fl[0].Error)
}

func TestProviderDao_Close(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	dao, root := f.link(t)

	require.NoError(t, dao.Close())
	assert.Equal(t, 0, f.remote.Closes(), "an unused session is never opened")

	dao, err := f.selector(Box).GetDaoSet(ctx, f.actor, root)
	require.NoError(t, err)
	_, err = dao.FolderDao().GetFolder(ctx, root)
	require.NoError(t, err)
	require.NoError(t, dao.Close())
	require.NoError(t, dao.Close())
	assert.Equal(t, 1, f.remote.Closes())

	_, err = dao.FolderDao().GetFolder(ctx, root)
	assert.Error(t, err)
}

func TestProviderDao_Security(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	dao, root := f.link(t)
	sec := dao.SecurityDao()

	folderID, err := dao.FolderDao().SaveFolder(ctx, &files.Folder{ParentID: root, Title: "A"})
	require.NoError(t, err)
	file, err := dao.FileDao().SaveFile(ctx, &files.File{FolderID: folderID, Title: "f.txt"}, strings.NewReader("x"))
	require.NoError(t, err)

	set := func(entryID string, typ files.EntryType, s files.Share) {
		require.NoError(t, sec.SetShare(ctx, &files.ShareRecord{
			EntryID: entryID, EntryType: typ, Subject: reader, Owner: owner, Share: s,
		}))
	}
	set(root, files.EntryTypeFolder, files.ShareRead)
	set(folderID, files.EntryTypeFolder, files.ShareComment)
	set(file.ID, files.EntryTypeFile, files.ShareReadWrite)

	records, err := sec.GetShares(ctx, file)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, file.ID, records[0].EntryID)
	assert.Equal(t, files.LevelDirect, records[0].Level)
	assert.Equal(t, folderID, records[1].EntryID)
	assert.Equal(t, 0, records[1].Level)
	assert.Equal(t, root, records[2].EntryID)
	assert.Equal(t, 1, records[2].Level)

	share, _ := files.EffectiveShare(records, reader)
	assert.Equal(t, files.ShareReadWrite, share)

	pure, err := sec.GetPureShareRecords(ctx, file)
	require.NoError(t, err)
	require.Len(t, pure, 1)
	assert.Equal(t, file.ID, pure[0].EntryID)

	shared, err := sec.IsShared(ctx, folderID, files.EntryTypeFolder)
	require.NoError(t, err)
	assert.True(t, shared)

	forSubject, err := sec.GetSharesForSubjects(ctx, reader)
	require.NoError(t, err)
	assert.Len(t, forSubject, 3)

	// Revoking on a provider folder removes only its own record.
	set(folderID, files.EntryTypeFolder, files.ShareNone)
	shared, err = sec.IsShared(ctx, folderID, files.EntryTypeFolder)
	require.NoError(t, err)
	assert.False(t, shared)
	shared, err = sec.IsShared(ctx, file.ID, files.EntryTypeFile)
	require.NoError(t, err)
	assert.True(t, shared)

	assert.Error(t, sec.SetShare(ctx, &files.ShareRecord{
		EntryID: file.ID, EntryType: files.EntryTypeFile, Subject: reader, Share: files.ShareVaries,
	}))

	require.NoError(t, sec.DeleteShareRecords(ctx, &files.ShareRecord{
		EntryID: root, EntryType: files.EntryTypeFolder, Subject: reader,
	}))
	records, err = sec.GetShares(ctx, file)
	require.NoError(t, err)
	require.Len(t, records, 1)

	require.NoError(t, sec.RemoveSubject(ctx, reader))
	records, err = sec.GetShares(ctx, file)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestProviderDao_RenameCarriesShares(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	dao, root := f.link(t)
	sec := dao.SecurityDao()

	folderID, err := dao.FolderDao().SaveFolder(ctx, &files.Folder{ParentID: root, Title: "Old"})
	require.NoError(t, err)
	file, err := dao.FileDao().SaveFile(ctx, &files.File{FolderID: folderID, Title: "f.txt"}, strings.NewReader("x"))
	require.NoError(t, err)
	require.NoError(t, sec.SetShare(ctx, &files.ShareRecord{
		EntryID: file.ID, EntryType: files.EntryTypeFile, Subject: reader, Owner: owner, Share: files.ShareRead,
	}))

	newID, err := dao.FolderDao().SaveFolder(ctx, &files.Folder{ID: folderID, Title: "New"})
	require.NoError(t, err)

	moved, err := dao.FileDao().GetFile(ctx, newID+"|f.txt")
	require.NoError(t, err)
	shared, err := sec.IsShared(ctx, moved.ID, files.EntryTypeFile)
	require.NoError(t, err)
	assert.True(t, shared, "share must follow the renamed path")

	shared, err = sec.IsShared(ctx, file.ID, files.EntryTypeFile)
	require.NoError(t, err)
	assert.False(t, shared)

	require.NoError(t, dao.FolderDao().DeleteFolder(ctx, newID))
	shared, err = sec.IsShared(ctx, moved.ID, files.EntryTypeFile)
	require.NoError(t, err)
	assert.False(t, shared, "deleting a folder purges records below it")
}

func TestProviderDao_Tags(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	dao, root := f.link(t)
	tags := dao.TagDao()

	file, err := dao.FileDao().SaveFile(ctx, &files.File{FolderID: root, Title: "f.txt"}, strings.NewReader("x"))
	require.NoError(t, err)

	fav := &files.Tag{Name: "favorite", Owner: owner, Type: files.TagTypeFavorite, EntryID: file.ID, EntryType: files.EntryTypeFile}
	require.NoError(t, tags.SaveTags(ctx, fav))
	assert.NotZero(t, fav.ID)

	got, err := tags.GetTags(ctx, file.ID, files.EntryTypeFile, files.TagTypeFavorite)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, file.ID, got[0].EntryID)

	none, err := tags.GetTags(ctx, root+"-other", files.EntryTypeFile, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, tags.RemoveTags(ctx, fav))
	got, err = tags.GetTags(ctx, file.ID, files.EntryTypeFile, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRegistry_UnknownProvider(t *testing.T) {
	r := NewRegistry()
	_, err := r.Open(context.Background(), &ProviderInfo{ID: 1, Provider: Dropbox})
	assert.True(t, errors.Is(err, errors.NotSupported), "error = %v", err)
}
