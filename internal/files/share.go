package files

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Share is a permission level. The numeric values are persisted and must not
// change; strength is defined by Rank, not by the raw value.
type Share int

const (
	ShareNone      Share = 0
	ShareReadWrite Share = 1
	ShareRead      Share = 2
	ShareRestrict  Share = 3
	ShareVaries    Share = 4
	ShareReview    Share = 5
	ShareComment   Share = 6
	ShareFillForms Share = 7
)

var shareNames = map[Share]string{
	ShareNone:      "none",
	ShareReadWrite: "readwrite",
	ShareRead:      "read",
	ShareRestrict:  "restrict",
	ShareVaries:    "varies",
	ShareReview:    "review",
	ShareComment:   "comment",
	ShareFillForms: "fillforms",
}

func (s Share) String() string {
	if name, ok := shareNames[s]; ok {
		return name
	}
	return "unknown"
}

// Rank orders shares by strength:
// None < Restrict < Read < Comment < FillForms < Review < ReadWrite.
// Varies is a display-only aggregate and ranks with None.
func (s Share) Rank() int {
	switch s {
	case ShareRestrict:
		return 1
	case ShareRead:
		return 2
	case ShareComment:
		return 3
	case ShareFillForms:
		return 4
	case ShareReview:
		return 5
	case ShareReadWrite:
		return 6
	default:
		return 0
	}
}

// Storable reports whether a share value may be written as a row.
func (s Share) Storable() bool {
	return s.Rank() > 0
}

// ParseShare accepts the names produced by String.
func ParseShare(s string) (Share, error) {
	for share, name := range shareNames {
		if strings.EqualFold(name, s) {
			return share, nil
		}
	}
	return 0, errNotValidf("share %q", s)
}

// LevelDirect marks a record that was not reached through the folder
// hierarchy, i.e. a record placed directly on a file.
const LevelDirect = -1

// ShareRecord is an access-control entry. EntryID is the mapped id for
// provider-backed entries. Level is only populated by hierarchical reads.
type ShareRecord struct {
	TenantID  int
	EntryID   string
	EntryType EntryType
	Subject   uuid.UUID
	Owner     uuid.UUID
	Share     Share
	Level     int
	Timestamp time.Time
}

// SortShareRecords applies the resolution order: nearest level first, then
// strongest share. Direct file records (LevelDirect) come before any folder
// level.
func SortShareRecords(records []*ShareRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Level != records[j].Level {
			return records[i].Level < records[j].Level
		}
		return records[i].Share.Rank() > records[j].Share.Rank()
	})
}

// EffectiveShare returns the first record in resolution order whose subject
// is one of subjects. records must already be sorted. It returns ShareNone
// and nil when nothing applies.
func EffectiveShare(records []*ShareRecord, subjects ...uuid.UUID) (Share, *ShareRecord) {
	want := make(map[uuid.UUID]struct{}, len(subjects))
	for _, s := range subjects {
		want[s] = struct{}{}
	}
	for _, r := range records {
		if _, ok := want[r.Subject]; ok {
			return r.Share, r
		}
	}
	return ShareNone, nil
}
