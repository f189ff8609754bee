package cfb

import (
	"io"

	"github.com/warlomak/compoundfiles/internal/alloc"
	"github.com/warlomak/compoundfiles/internal/chain"
	"github.com/warlomak/compoundfiles/internal/dirtree"
)

// Stream is a stream entry's byte-addressable content: read, write, seek,
// and resize, mirroring the surface the teacher exposes through
// drivers/common/basicstream.BasicStream, scoped down to what a
// compound-file stream needs.
type Stream interface {
	io.Reader
	io.Writer
	io.Seeker
	Truncate(size int64) error
	Size() uint64
}

type entryStream struct {
	e  Entry
	cs *chain.ChainStream
}

func (s *entryStream) Read(p []byte) (int, error) {
	n, err := s.cs.Read(p)
	if err != nil && err != io.EOF {
		return n, mapAllocErr(err)
	}
	return n, err
}

func (s *entryStream) Write(p []byte) (int, error) {
	if s.e.c.mode == ModeReader {
		return 0, ErrReadOnly
	}
	n, err := s.cs.Write(p)
	s.sync()
	return n, err
}

func (s *entryStream) Seek(offset int64, whence int) (int64, error) {
	return s.cs.Seek(offset, whence)
}

func (s *entryStream) Truncate(size int64) error {
	if s.e.c.mode == ModeReader {
		return ErrReadOnly
	}
	err := s.cs.Truncate(size)
	s.sync()
	return err
}

func (s *entryStream) Size() uint64 {
	return s.cs.Size()
}

// sync writes the ChainStream's current start sector and size back into
// the stream's directory entry, so a subsequent Save sees the right
// values without the Container having to track them separately.
func (s *entryStream) sync() {
	entry := s.e.raw()
	entry.Start = s.cs.StartSector()
	entry.Size = s.cs.Size()
	s.e.c.tree.Put(s.e.ID, entry)
}

// Open returns a Stream over e's content. Opening the same entry twice
// returns handles sharing one underlying chain.ChainStream, so writes
// through either are visible to both, the same single-writer-per-stream
// assumption spec.md's Non-goals section states outright.
func (e Entry) Open() (Stream, error) {
	if !e.IsStream() {
		return nil, ErrNotStream.WithMessage(e.Name())
	}
	cs, err := e.c.streamFor(e.ID)
	if err != nil {
		return nil, err
	}
	return &entryStream{e: e, cs: cs}, nil
}

// streamFor lazily materializes (and caches) the chain.ChainStream for a
// stream entry. A start sector flagged invalid by validateStreamStarts is
// substituted with an empty chain per spec.md §8's out-of-range scenario.
func (c *Container) streamFor(id dirtree.DirID) (*chain.ChainStream, error) {
	if cs, ok := c.streams[id]; ok {
		return cs, nil
	}
	entry := c.tree.Get(id)
	start, size := entry.Start, entry.Size
	if c.invalidStart[id] {
		start, size = alloc.EndOfChain, 0
	}
	pool := alloc.Normal
	if size < uint64(c.hdr.MiniStreamCutoff) {
		pool = alloc.Mini
	}
	cs := chain.New(c.alloc, start, size, pool, c.hdr.MiniStreamCutoff)
	c.streams[id] = cs
	return cs, nil
}

// CreateStorage inserts an empty storage named name under parent.
func (c *Container) CreateStorage(parent Entry, name string) (Entry, error) {
	if c.mode == ModeReader {
		return Entry{}, ErrReadOnly
	}
	if !parent.IsStorage() {
		return Entry{}, ErrNotStorage.WithMessage(parent.Name())
	}
	entry := dirtree.Entry{
		Name: name, Type: dirtree.TypeStorage,
		Left: dirtree.NoStream, Right: dirtree.NoStream, Child: dirtree.NoStream,
		Start: alloc.EndOfChain,
	}
	id, err := c.tree.Insert(parent.ID, entry)
	if err != nil {
		return Entry{}, mapDirErr(err)
	}
	c.owner[id] = parent.ID
	return Entry{c: c, ID: id}, nil
}

// CreateStream inserts a stream named name under parent, pre-populated
// with data (which may be empty).
func (c *Container) CreateStream(parent Entry, name string, data []byte) (Entry, error) {
	if c.mode == ModeReader {
		return Entry{}, ErrReadOnly
	}
	if !parent.IsStorage() {
		return Entry{}, ErrNotStorage.WithMessage(parent.Name())
	}
	entry := dirtree.Entry{
		Name: name, Type: dirtree.TypeStream,
		Left: dirtree.NoStream, Right: dirtree.NoStream, Child: dirtree.NoStream,
		Start: alloc.EndOfChain,
	}
	id, err := c.tree.Insert(parent.ID, entry)
	if err != nil {
		return Entry{}, mapDirErr(err)
	}
	c.owner[id] = parent.ID

	e := Entry{c: c, ID: id}
	if len(data) == 0 {
		return e, nil
	}
	s, err := e.Open()
	if err != nil {
		return Entry{}, err
	}
	if _, err := s.Write(data); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Rename moves e to newName within its current storage, per spec.md
// §4.5's delete-then-reinsert rename semantics. e's DirID may change as a
// result; use the returned Entry afterward.
func (c *Container) Rename(e Entry, newName string) (Entry, error) {
	if c.mode == ModeReader {
		return Entry{}, ErrReadOnly
	}
	storage, ok := c.owner[e.ID]
	if !ok {
		return Entry{}, ErrNotFound.WithMessage(e.Name())
	}
	newID, err := c.tree.Rename(storage, e.ID, newName)
	if err != nil {
		return Entry{}, mapDirErr(err)
	}
	if cs, ok := c.streams[e.ID]; ok {
		delete(c.streams, e.ID)
		c.streams[newID] = cs
	}
	if c.invalidStart[e.ID] {
		delete(c.invalidStart, e.ID)
		c.invalidStart[newID] = true
	}
	delete(c.owner, e.ID)
	c.owner[newID] = storage
	return Entry{c: c, ID: newID}, nil
}

// Delete removes e. Storages are removed recursively, freeing every
// descendant stream's chain first.
func (c *Container) Delete(e Entry) error {
	if c.mode == ModeReader {
		return ErrReadOnly
	}
	if e.IsStorage() {
		for _, child := range e.Children() {
			if err := c.Delete(child); err != nil {
				return err
			}
		}
	} else if err := c.freeStreamChain(e); err != nil {
		return err
	}

	storage, ok := c.owner[e.ID]
	if !ok {
		return ErrNotFound.WithMessage(e.Name())
	}
	if err := c.tree.Delete(storage, e.ID); err != nil {
		return mapDirErr(err)
	}
	delete(c.owner, e.ID)
	delete(c.invalidStart, e.ID)
	delete(c.streams, e.ID)
	return nil
}

func (c *Container) freeStreamChain(e Entry) error {
	if cs, ok := c.streams[e.ID]; ok {
		return cs.Truncate(0)
	}
	if c.invalidStart[e.ID] {
		return nil
	}
	entry := e.raw()
	if entry.Start == alloc.EndOfChain {
		return nil
	}
	pool := alloc.Normal
	if entry.Size < uint64(c.hdr.MiniStreamCutoff) {
		pool = alloc.Mini
	}
	if err := c.alloc.Free(entry.Start, pool); err != nil {
		return mapAllocErr(err)
	}
	return nil
}
