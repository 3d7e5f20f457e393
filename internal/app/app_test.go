package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docstore/internal/config"
	"docstore/internal/dao"
	"docstore/internal/database"
	"docstore/internal/files"
	"docstore/internal/testutil"
	"docstore/internal/thirdparty"
)

const (
	testOwner = "11111111-1111-1111-1111-111111111111"
	testUserX = "33333333-3333-3333-3333-333333333333"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		TenantID:   1,
		UserID:     testOwner,
		BaseDir:    dir,
		LogDir:     filepath.Join(dir, "log"),
		Database:   config.DatabaseConfig{Type: "memory"},
		Encryption: config.EncryptionConfig{Type: "test"},
		Notify:     config.NotifyConfig{Type: "local"},
		Storage: &config.StorageConfig{
			Handlers: []config.HandlerConfig{{Name: "mem", Type: "memory"}},
			Modules: []config.ModuleConfig{
				{Name: "files", Type: "mem", Count: true, Visible: true},
				{Name: "logo", Type: "mem", Visible: true, Public: true},
			},
			Consumers: []config.ConsumerConfig{
				{Name: "vault", Handler: "memory", Props: []string{"bucket"}},
			},
		},
	}
}

func newTestApp(t *testing.T) (*DocstoreApp, *thirdparty.MemorySession) {
	t.Helper()
	clock := testutil.FixedClock()
	remote := thirdparty.NewMemorySession(clock)
	a, err := NewDocstoreApp(context.Background(), newTestConfig(t), "Test", "secret",
		WithClock(clock), WithOpener(thirdparty.Box, remote.Opener()))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, remote
}

func folderTitles(chain []*files.Folder) []string {
	var out []string
	for _, f := range chain {
		out = append(out, f.Title)
	}
	return out
}

func TestNewDocstoreApp(t *testing.T) {
	t.Run("rejects a malformed user id", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.UserID = "not-a-uuid"
		_, err := NewDocstoreApp(context.Background(), cfg, "Test", "")
		require.Error(t, err)
	})

	t.Run("rejects an unknown database type", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Database.Type = "postgres"
		_, err := NewDocstoreApp(context.Background(), cfg, "Test", "")
		require.Error(t, err)
	})

	t.Run("close writes the operation status to the log", func(t *testing.T) {
		cfg := newTestConfig(t)
		a, err := NewDocstoreApp(context.Background(), cfg, "CreateFolder", "", WithClock(testutil.FixedClock()))
		require.NoError(t, err)
		assert.Equal(t, 1, a.Actor().TenantID)
		assert.Equal(t, testOwner, a.Actor().UserID.String())

		_, err = a.FolderPath(context.Background(), "999")
		require.True(t, files.IsNotFound(err), "got %v", err)
		require.NoError(t, a.Close())

		data, err := os.ReadFile(filepath.Join(cfg.LogDir, "docstore.log"))
		require.NoError(t, err)
		log := string(data)
		assert.Contains(t, log, "\t20240115T103000Z\tfinished operation")
		assert.Contains(t, log, "op=CreateFolder")
		assert.Contains(t, log, "status=error")
	})
}

func TestDocstoreApp_Folders(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	root, err := a.CreateFolder(ctx, "", "Docs")
	require.NoError(t, err)
	assert.Equal(t, "Docs", root.Title)
	assert.Equal(t, "", root.ParentID)

	reports, err := a.CreateFolder(ctx, root.ID, "Reports")
	require.NoError(t, err)
	again, err := a.CreateFolder(ctx, root.ID, "Reports")
	require.NoError(t, err)
	assert.Equal(t, "Reports (1)", again.Title)

	chain, err := a.FolderPath(ctx, reports.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Docs", "Reports"}, folderTitles(chain))

	archive, err := a.CreateFolder(ctx, "", "Archive")
	require.NoError(t, err)
	copied, err := a.CopyFolder(ctx, reports.ID, archive.ID)
	require.NoError(t, err)
	assert.Equal(t, "Reports", copied.Title)
	assert.NotEqual(t, reports.ID, copied.ID)

	moved, err := a.MoveFolder(ctx, again.ID, archive.ID)
	require.NoError(t, err)
	assert.Equal(t, again.ID, moved)
	chain, err = a.FolderPath(ctx, moved)
	require.NoError(t, err)
	assert.Equal(t, []string{"Archive", "Reports (1)"}, folderTitles(chain))

	folders, list, err := a.ListFolder(ctx, archive.ID)
	require.NoError(t, err)
	assert.Len(t, folders, 2)
	assert.Empty(t, list)

	_, err = a.MoveFolder(ctx, root.ID, reports.ID)
	assert.True(t, errors.Is(err, errors.NotValid), "got %v", err)

	require.NoError(t, a.DeleteFolder(ctx, archive.ID))
	_, err = a.FolderPath(ctx, copied.ID)
	assert.True(t, files.IsNotFound(err), "got %v", err)

	_, err = a.CreateFolder(ctx, "nope-1", "X")
	assert.True(t, files.IsMalformedID(err), "got %v", err)
}

func TestDocstoreApp_Shares(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	root, err := a.CreateFolder(ctx, "", "Team")
	require.NoError(t, err)
	child, err := a.CreateFolder(ctx, root.ID, "Plans")
	require.NoError(t, err)

	require.NoError(t, a.SetShare(ctx, ShareRequest{
		EntryID: root.ID, EntryType: "folder", Subject: testUserX, Share: "read",
	}))

	records, err := a.Shares(ctx, child.ID, "folder")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, root.ID, records[0].EntryID)
	assert.Equal(t, testOwner, records[0].Owner.String())

	pure, err := a.PureShares(ctx, child.ID, "folder")
	require.NoError(t, err)
	assert.Empty(t, pure)

	share, err := a.EffectiveShare(ctx, child.ID, "folder", testUserX)
	require.NoError(t, err)
	assert.Equal(t, files.ShareRead, share)

	require.NoError(t, a.SetShare(ctx, ShareRequest{
		EntryID: child.ID, EntryType: "folder", Subject: testUserX, Share: "readwrite",
	}))
	share, err = a.EffectiveShare(ctx, child.ID, "folder", testUserX)
	require.NoError(t, err)
	assert.Equal(t, files.ShareReadWrite, share)

	require.NoError(t, a.SetShare(ctx, ShareRequest{
		EntryID: root.ID, EntryType: "folder", Subject: testUserX, Share: "none",
	}))
	share, err = a.EffectiveShare(ctx, child.ID, "folder", testUserX)
	require.NoError(t, err)
	assert.Equal(t, files.ShareNone, share)

	t.Run("bad input", func(t *testing.T) {
		err := a.SetShare(ctx, ShareRequest{EntryID: root.ID, EntryType: "folder", Subject: "x", Share: "read"})
		assert.True(t, errors.Is(err, errors.NotValid), "got %v", err)
		err = a.SetShare(ctx, ShareRequest{EntryID: root.ID, EntryType: "disk", Subject: testUserX, Share: "read"})
		assert.Error(t, err)
		err = a.SetShare(ctx, ShareRequest{EntryID: root.ID, EntryType: "folder", Subject: testUserX, Share: "owner"})
		assert.Error(t, err)
		err = a.SetShare(ctx, ShareRequest{EntryID: root.ID, EntryType: "folder", Subject: testUserX, Share: "varies"})
		assert.True(t, errors.Is(err, errors.NotValid), "got %v", err)
	})

	t.Run("revoke subject", func(t *testing.T) {
		require.NoError(t, a.SetShare(ctx, ShareRequest{
			EntryID: root.ID, EntryType: "folder", Subject: testUserX, Share: "comment",
		}))
		require.NoError(t, a.RevokeSubject(ctx, testUserX))
		records, err := a.Shares(ctx, child.ID, "folder")
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestDocstoreApp_Storage(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	info, err := a.StorageInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", info.Consumer.Name())
	assert.Equal(t, []string{"files", "logo"}, info.Modules)
	assert.Nil(t, info.Quota)
	assert.Zero(t, info.Used)

	n, err := a.PutContent(ctx, "files", "", "notes/a.txt", strings.NewReader("hello"), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	_, err = a.PutContent(ctx, "logo", "", "logo.png", strings.NewReader("png"), -1)
	require.NoError(t, err)

	info, err = a.StorageInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Used, "only counted modules use quota")

	require.NoError(t, a.SetQuota(ctx, 8, 0))
	_, err = a.PutContent(ctx, "files", "", "big.bin", strings.NewReader("0123456789"), 10)
	assert.True(t, files.IsQuotaExceeded(err), "got %v", err)
	assert.Error(t, a.SetQuota(ctx, -1, 0))

	info, err = a.StorageInfo(ctx)
	require.NoError(t, err)
	require.NotNil(t, info.Quota)
	assert.Equal(t, int64(8), info.Quota.MaxFileSize)

	_, err = a.PutContent(ctx, "missing", "", "x", strings.NewReader("x"), 1)
	assert.True(t, errors.Is(err, errors.NotValid), "got %v", err)

	require.NoError(t, a.SetStorage(ctx, "vault", map[string]string{"bucket": "tenant-1"}))
	info, err = a.StorageInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "vault", info.Consumer.Name())
	assert.True(t, info.Consumer.IsSet())
	assert.Equal(t, "tenant-1", info.Settings.Prop("bucket"))

	err = a.SetStorage(ctx, "nowhere", nil)
	assert.True(t, errors.Is(err, errors.NotValid), "got %v", err)

	require.NoError(t, a.ClearStorage(ctx))
	info, err = a.StorageInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", info.Consumer.Name())
}

func TestDocstoreApp_Providers(t *testing.T) {
	a, remote := newTestApp(t)
	ctx := context.Background()

	rootID, err := a.AddProvider(ctx, thirdparty.NewLink{
		Provider:       "box",
		CustomerTitle:  "Team Box",
		RootFolderType: files.FolderTypeUser,
		Token:          "tok",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rootID, "box-"), rootID)

	infos, err := a.Providers(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "Team Box", infos[0].CustomerTitle)
	assert.Equal(t, "tok", infos[0].Token)

	n, err := a.ProbeProvider(ctx, rootID)
	require.NoError(t, err)
	assert.Zero(t, n)

	created, err := a.CreateFolder(ctx, rootID, "Remote")
	require.NoError(t, err)
	n, err = a.ProbeProvider(ctx, rootID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Positive(t, remote.Closes())

	conv, err := a.ConvertID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "box", conv.Provider)
	assert.Equal(t, strings.TrimPrefix(rootID, "box-"), conv.LinkID)
	assert.Equal(t, "Remote", conv.Path)

	made, err := a.MakeID("box", infos[0].ID, "Remote/Sub")
	require.NoError(t, err)
	assert.Equal(t, rootID+"-Remote|Sub", made)
	_, err = a.MakeID("ftp", 1, "")
	assert.True(t, errors.Is(err, errors.NotValid), "got %v", err)

	native, err := a.ConvertID("42")
	require.NoError(t, err)
	assert.Equal(t, &ConvertedID{Path: "42"}, native)
	_, err = a.ConvertID("gdrive-1")
	assert.True(t, files.IsMalformedID(err), "got %v", err)

	hash, err := a.MapID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, database.HashID(created.ID), hash)
	source, err := a.ResolveID(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, created.ID, source)

	local, err := a.CreateFolder(ctx, "", "Local")
	require.NoError(t, err)
	_, err = a.MoveFolder(ctx, local.ID, rootID)
	assert.True(t, errors.Is(err, errors.NotSupported), "got %v", err)

	require.NoError(t, a.RenameProvider(ctx, infos[0].ID, "Renamed"))
	infos, err = a.Providers(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", infos[0].CustomerTitle)

	require.NoError(t, a.RemoveProvider(ctx, infos[0].ID))
	infos, err = a.Providers(ctx)
	require.NoError(t, err)
	assert.Empty(t, infos)
	source, err = a.ResolveID(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, "", source)

	_, err = a.ProbeProvider(ctx, rootID)
	assert.True(t, files.IsProviderAccess(err), "got %v", err)
}

func TestDocstoreApp_WithScopeClosesOnPanic(t *testing.T) {
	a, remote := newTestApp(t)
	ctx := context.Background()

	rootID, err := a.AddProvider(ctx, thirdparty.NewLink{
		Provider:       "box",
		CustomerTitle:  "Team Box",
		RootFolderType: files.FolderTypeUser,
		Token:          "tok",
	})
	require.NoError(t, err)

	before := remote.Closes()
	assert.Panics(t, func() {
		_ = a.withScope(func(s *dao.Scope) error {
			set, err := s.DaoSet(ctx, rootID)
			require.NoError(t, err)
			_, err = set.FolderDao().GetFolders(ctx, rootID)
			require.NoError(t, err)
			panic("boom")
		})
	})
	assert.Greater(t, remote.Closes(), before, "provider session left open")
}
