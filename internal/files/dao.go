package files

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// FolderDao provides folder operations for one storage backend.
// Implementations are bound to a single Actor.
type FolderDao interface {
	// GetFolder returns the folder or a not-found error.
	GetFolder(ctx context.Context, id string) (*Folder, error)

	// GetFolders lists the direct subfolders of parentID.
	GetFolders(ctx context.Context, parentID string) ([]*Folder, error)

	// GetParentFolders returns the ancestor chain ordered root to self.
	GetParentFolders(ctx context.Context, id string) ([]*Folder, error)

	// SaveFolder creates the folder when ID is empty and renames it otherwise.
	// It returns the folder id.
	SaveFolder(ctx context.Context, folder *Folder) (string, error)

	// MoveFolder re-parents id under toFolderID and returns its new id.
	MoveFolder(ctx context.Context, id, toFolderID string) (string, error)

	// CopyFolder copies id and its contents under toFolderID.
	CopyFolder(ctx context.Context, id, toFolderID string) (*Folder, error)

	// DeleteFolder removes the folder with everything below it.
	DeleteFolder(ctx context.Context, id string) error

	// IsEmpty reports whether the folder has no files and no subfolders.
	IsEmpty(ctx context.Context, id string) (bool, error)
}

// FileDao provides file operations for one storage backend.
type FileDao interface {
	GetFile(ctx context.Context, id string) (*File, error)

	// GetFiles lists the current version of every file directly in folderID.
	GetFiles(ctx context.Context, folderID string) ([]*File, error)

	// GetFileVersions returns every stored version, oldest first.
	GetFileVersions(ctx context.Context, id string) ([]*File, error)

	// SaveFile stores content as a new file when file.ID is empty and as a
	// new version of an existing file otherwise.
	SaveFile(ctx context.Context, file *File, content io.Reader) (*File, error)

	// GetFileStream opens the content of the given file version.
	GetFileStream(ctx context.Context, file *File) (io.ReadCloser, error)

	// MoveFile re-parents the file and returns its new id.
	MoveFile(ctx context.Context, id, toFolderID string) (string, error)

	DeleteFile(ctx context.Context, id string) error

	// IsExist reports whether a file called title is directly in folderID.
	IsExist(ctx context.Context, title, folderID string) (bool, error)
}

// TagType is a bit flag; values match the persisted encoding.
type TagType int

const (
	TagTypeNew      TagType = 1
	TagTypeFavorite TagType = 2
	TagTypeSystem   TagType = 4
	TagTypeLocked   TagType = 8
	TagTypeRecent   TagType = 16
	TagTypeTemplate TagType = 32
)

// Tag links a named marker to an entry.
type Tag struct {
	ID        int
	Name      string
	Owner     uuid.UUID
	Type      TagType
	EntryID   string
	EntryType EntryType
	Count     int
	CreateOn  time.Time
}

// TagDao stores tags. Provider-backed entries are tagged by mapped id.
type TagDao interface {
	SaveTags(ctx context.Context, tags ...*Tag) error
	GetTags(ctx context.Context, entryID string, entryType EntryType, tagType TagType) ([]*Tag, error)
	RemoveTags(ctx context.Context, tags ...*Tag) error
}

// SecurityDao stores and resolves share records.
type SecurityDao interface {
	// SetShare upserts the record, or revokes it when Share is ShareNone.
	// Revoking on a native folder also revokes the subject's records on
	// every descendant folder and every file inside them.
	SetShare(ctx context.Context, record *ShareRecord) error

	// GetShares returns records on the entries and on all their ancestor
	// folders, sorted with SortShareRecords.
	GetShares(ctx context.Context, entries ...Entry) ([]*ShareRecord, error)

	// GetPureShareRecords returns only records placed exactly on entries.
	GetPureShareRecords(ctx context.Context, entries ...Entry) ([]*ShareRecord, error)

	GetSharesForSubjects(ctx context.Context, subjects ...uuid.UUID) ([]*ShareRecord, error)

	DeleteShareRecords(ctx context.Context, records ...*ShareRecord) error

	// RemoveSubject deletes every record where subject is the subject or
	// the owner.
	RemoveSubject(ctx context.Context, subject uuid.UUID) error

	IsShared(ctx context.Context, entryID string, entryType EntryType) (bool, error)
}

// DaoSet is the capability set a provider offers for one entry.
type DaoSet interface {
	FolderDao() FolderDao
	FileDao() FileDao
	TagDao() TagDao
	SecurityDao() SecurityDao
}
