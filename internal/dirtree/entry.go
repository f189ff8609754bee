// Package dirtree implements the Directory Tree: the persisted red-black
// tree of 128-byte directory entries described in spec.md §3 and §4.5.
package dirtree

import (
	"time"

	"github.com/warlomak/compoundfiles/internal/alloc"
)

// DirID is a 32-bit index into the flat directory entry array. Using a
// distinct type instead of bare uint32 keeps directory indices from being
// mixed up with sector IDs at call sites, the same discipline the allocator
// package applies to SectorID.
type DirID uint32

// NoStream is the DirID sentinel for "no child" / "no sibling", treated as
// a black leaf by the red-black invariants.
const NoStream DirID = 0xFFFFFFFF

// EntryType identifies what kind of node a directory entry represents.
type EntryType byte

const (
	TypeEmpty   EntryType = 0
	TypeStorage EntryType = 1
	TypeStream  EntryType = 2
	TypeRoot    EntryType = 5
)

// Color is a directory entry's red-black color.
type Color byte

const (
	Red   Color = 0
	Black Color = 1
)

// Entry is the in-memory form of one 128-byte directory entry.
type Entry struct {
	Name  string
	Type  EntryType
	Color Color

	Left, Right, Child DirID

	CLSID [16]byte
	State uint32

	// CreatedAt, ModifiedAt are 100-ns ticks since 1601-01-01 UTC, or 0.
	CreatedAt, ModifiedAt uint64

	Start alloc.SectorID
	Size  uint64

	// Parent is maintained in memory only; it is never persisted and is
	// reconstructed by Tree.rebuildParents after loading entries from disk.
	Parent DirID
}

// IsStream reports whether the entry names a stream (leaf byte sequence).
func (e Entry) IsStream() bool {
	return e.Type == TypeStream
}

// IsStorage reports whether the entry names a storage or the root storage.
func (e Entry) IsStorage() bool {
	return e.Type == TypeStorage || e.Type == TypeRoot
}

// CreatedTime returns CreatedAt converted via filetimeToTime.
func (e Entry) CreatedTime() time.Time {
	return filetimeToTime(e.CreatedAt)
}

// ModifiedTime returns ModifiedAt converted via filetimeToTime.
func (e Entry) ModifiedTime() time.Time {
	return filetimeToTime(e.ModifiedAt)
}

// SetCreatedTime stores t as a FILETIME via timeToFiletime.
func (e *Entry) SetCreatedTime(t time.Time) {
	e.CreatedAt = timeToFiletime(t)
}

// SetModifiedTime stores t as a FILETIME via timeToFiletime.
func (e *Entry) SetModifiedTime(t time.Time) {
	e.ModifiedAt = timeToFiletime(t)
}
