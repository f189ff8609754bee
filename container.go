package cfb

import (
	"errors"
	"time"

	"github.com/warlomak/compoundfiles/internal/alloc"
	"github.com/warlomak/compoundfiles/internal/chain"
	"github.com/warlomak/compoundfiles/internal/diag"
	"github.com/warlomak/compoundfiles/internal/dirtree"
	"github.com/warlomak/compoundfiles/internal/header"
	"github.com/warlomak/compoundfiles/internal/sectorio"
)

// Mode controls which mutating operations a Container permits, mirroring
// the Reader/Editor/Writer split from spec.md §4.6's open and create
// sequences.
type Mode int

const (
	// ModeReader opens an existing container read-only; every mutating
	// method returns ErrReadOnly.
	ModeReader Mode = iota
	// ModeEditor opens an existing container for in-place mutation.
	ModeEditor
	// ModeWriter is a freshly created container.
	ModeWriter
)

// Container is the Container Façade: the single entry point a caller uses
// to navigate and mutate one open CFB container. It owns the Sector
// Store, Allocator, and Directory Tree for that container and lazily
// materializes a chain.ChainStream per open stream entry.
//
// A Container takes no locks. A read-only Container may be shared across
// goroutines only if the caller serializes every access to it.
type Container struct {
	device sectorio.Device
	store  *sectorio.Store
	hdr    *header.Header
	alloc  *alloc.Allocator
	tree   *dirtree.Tree
	sink   diag.Sink
	mode   Mode

	streams      map[dirtree.DirID]*chain.ChainStream
	invalidStart map[dirtree.DirID]bool
	dirStart     alloc.SectorID
	// owner maps a DirID to the storage it's a direct child of. The
	// directory tree only threads BST parent pointers within one
	// storage's subtree (dirtree.Entry.Parent); this is the separate
	// "which storage contains this entry" relationship the Container
	// needs for Rename/Delete.
	owner map[dirtree.DirID]dirtree.DirID
}

// buildOwnerMap walks every storage reachable from root and records which
// storage directly contains each of its children.
func buildOwnerMap(tree *dirtree.Tree) map[dirtree.DirID]dirtree.DirID {
	owner := make(map[dirtree.DirID]dirtree.DirID)
	var walk func(storage dirtree.DirID)
	walk = func(storage dirtree.DirID) {
		for _, child := range tree.Children(storage) {
			owner[child] = storage
			if tree.Get(child).IsStorage() {
				walk(child)
			}
		}
	}
	walk(dirtree.Root)
	return owner
}

// ReadOnly reports whether mutating operations are rejected.
func (c *Container) ReadOnly() bool {
	return c.mode == ModeReader
}

// Diagnostics returns every diagnostic pushed so far, if the sink in use
// is a *diag.CollectingSink (the default, or one the caller supplied).
// Containers opened with a sink of any other type return nil; inspect that
// sink directly instead.
func (c *Container) Diagnostics() []diag.Diagnostic {
	if cs, ok := c.sink.(*diag.CollectingSink); ok {
		return cs.Diagnostics()
	}
	return nil
}

// Entry is a lightweight handle onto one directory entry: a DirID plus
// the Container that owns it. Entries are cheap to copy and always read
// through to the live tree, so they stay valid across mutations of
// siblings.
type Entry struct {
	c  *Container
	ID dirtree.DirID
}

// Root returns a handle to the container's single root storage.
func (c *Container) Root() Entry {
	return Entry{c: c, ID: dirtree.Root}
}

func (e Entry) raw() dirtree.Entry {
	return e.c.tree.Get(e.ID)
}

// Name returns the entry's directory name ("Root Entry" for the root).
func (e Entry) Name() string {
	return e.raw().Name
}

// IsStorage reports whether e is a storage (including the root).
func (e Entry) IsStorage() bool {
	return e.raw().IsStorage()
}

// IsStream reports whether e is a stream.
func (e Entry) IsStream() bool {
	return e.raw().IsStream()
}

// Size returns a stream's logical byte length. Zero for storages.
func (e Entry) Size() uint64 {
	return e.raw().Size
}

// CreatedAt returns the entry's creation timestamp, or the zero time if
// none was recorded on disk.
func (e Entry) CreatedAt() time.Time {
	return e.raw().CreatedTime()
}

// ModifiedAt returns the entry's last-modified timestamp, or the zero time
// if none was recorded on disk.
func (e Entry) ModifiedAt() time.Time {
	return e.raw().ModifiedTime()
}

// Children returns e's direct children in directory order. Empty for
// streams.
func (e Entry) Children() []Entry {
	ids := e.c.tree.Children(e.ID)
	out := make([]Entry, len(ids))
	for i, id := range ids {
		out[i] = Entry{c: e.c, ID: id}
	}
	return out
}

// Lookup finds a direct child of e by name.
func (e Entry) Lookup(name string) (Entry, error) {
	if !e.IsStorage() {
		return Entry{}, ErrNotStorage.WithMessage(e.Name())
	}
	id, err := e.c.tree.Lookup(e.ID, name)
	if err != nil {
		return Entry{}, mapDirErr(err)
	}
	return Entry{c: e.c, ID: id}, nil
}

// OpenPath resolves a slash-separated path from the root, per spec.md
// §6's open_path contract.
func (c *Container) OpenPath(path string) (Entry, error) {
	id, err := c.tree.LookupPath(path)
	if err != nil {
		return Entry{}, mapDirErr(err)
	}
	return Entry{c: c, ID: id}, nil
}

func mapDirErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, dirtree.ErrNotFound):
		return ErrNotFound.Wrap(err)
	case errors.Is(err, dirtree.ErrNameCollision):
		return ErrNameCollision.Wrap(err)
	case errors.Is(err, dirtree.ErrNotStorage):
		return ErrNotStorage.Wrap(err)
	case errors.Is(err, dirtree.ErrNotStream):
		return ErrNotStream.Wrap(err)
	case errors.Is(err, dirtree.ErrBadOrder):
		return ErrDirEntry.Wrap(err)
	default:
		return ErrDirEntry.Wrap(err)
	}
}

func mapAllocErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, alloc.ErrMasterLoop):
		return ErrMasterLoop.Wrap(err)
	case errors.Is(err, alloc.ErrNormalLoop):
		return ErrNormalLoop.Wrap(err)
	case errors.Is(err, alloc.ErrMiniLoop):
		return ErrMiniFat.Wrap(err)
	case errors.Is(err, alloc.ErrLargeNormalFat):
		return ErrLargeNormalFat.Wrap(err)
	case errors.Is(err, alloc.ErrLargeMiniFat):
		return ErrLargeMiniFat.Wrap(err)
	case errors.Is(err, alloc.ErrNoMiniFat):
		return ErrNoMiniFat.Wrap(err)
	default:
		return ErrNormalFat.Wrap(err)
	}
}

func mapHeaderErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, header.ErrInvalidMagic):
		return ErrInvalidMagic.Wrap(err)
	case errors.Is(err, header.ErrInvalidBom):
		return ErrInvalidBom.Wrap(err)
	default:
		return ErrHeader.Wrap(err)
	}
}
