package files

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// EntryType distinguishes files from folders. The numeric values are stored
// in the security and tag tables.
type EntryType int

const (
	EntryTypeFile   EntryType = 1
	EntryTypeFolder EntryType = 2
)

func (t EntryType) String() string {
	switch t {
	case EntryTypeFile:
		return "file"
	case EntryTypeFolder:
		return "folder"
	default:
		return "unknown"
	}
}

// ParseEntryType accepts "file" or "folder".
func ParseEntryType(s string) (EntryType, error) {
	switch s {
	case "file":
		return EntryTypeFile, nil
	case "folder":
		return EntryTypeFolder, nil
	default:
		return 0, errNotValidf("entry type %q", s)
	}
}

// FolderType identifies well-known root folders.
type FolderType int

const (
	FolderTypeDefault FolderType = 0
	FolderTypeCommon  FolderType = 1
	FolderTypeUser    FolderType = 2
	FolderTypeShare   FolderType = 3
	FolderTypeTrash   FolderType = 5
)

// Actor is the tenant and user a request runs as. DAOs are bound to one
// actor for the lifetime of a logical request.
type Actor struct {
	TenantID int
	UserID   uuid.UUID
}

// Entry is the part common to files and folders.
type Entry interface {
	EntryID() string
	EntryType() EntryType
	EntryTitle() string
}

// Folder is a native or provider-backed folder.
type Folder struct {
	ID             string
	ParentID       string
	TenantID       int
	Title          string
	FolderType     FolderType
	RootFolderID   string
	RootFolderType FolderType
	CreatedBy      uuid.UUID
	CreatedOn      time.Time
	ModifiedBy     uuid.UUID
	ModifiedOn     time.Time
	TotalFiles     int
	TotalFolders   int
	ProviderID     int
	ProviderKey    string

	// Error is set when the entry stands in for a provider item that could not
	// be fetched.
	Error string
}

func (f *Folder) EntryID() string      { return f.ID }
func (f *Folder) EntryType() EntryType { return EntryTypeFolder }
func (f *Folder) EntryTitle() string   { return f.Title }

// IsProviderEntry reports whether the folder lives in a third-party store.
func (f *Folder) IsProviderEntry() bool { return f.ProviderKey != "" }

// File is a single version of a native or provider-backed file.
type File struct {
	ID             string
	FolderID       string
	TenantID       int
	Title          string
	Version        int
	ContentLength  int64
	RootFolderID   string
	RootFolderType FolderType
	CreatedBy      uuid.UUID
	CreatedOn      time.Time
	ModifiedBy     uuid.UUID
	ModifiedOn     time.Time
	ProviderID     int
	ProviderKey    string
	Error          string
}

func (f *File) EntryID() string      { return f.ID }
func (f *File) EntryType() EntryType { return EntryTypeFile }
func (f *File) EntryTitle() string   { return f.Title }

func (f *File) IsProviderEntry() bool { return f.ProviderKey != "" }

// IsNativeID reports whether id is an integer-backed local id in
// canonical form.
func IsNativeID(id string) bool {
	_, err := NativeID(id)
	return err == nil
}

// NativeID parses a local id. Only the canonical decimal form of a
// positive integer is accepted, so every local entry has exactly one id
// string.
func NativeID(id string) (int, error) {
	n, err := strconv.Atoi(id)
	if err != nil || n <= 0 || strconv.Itoa(n) != id {
		return 0, errNotValidf("native id %q", id)
	}
	return n, nil
}

// FormatNativeID is the inverse of NativeID.
func FormatNativeID(id int) string {
	return strconv.Itoa(id)
}
