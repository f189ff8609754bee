// Package chain implements ChainStream: a file-like abstraction over a
// single sector chain owned by a directory entry, modeled on the teacher's
// drivers/common/basicstream.BasicStream but addressing a chain of sectors
// through an Allocator instead of a block cache.
package chain

import (
	"fmt"
	"io"

	"github.com/warlomak/compoundfiles/internal/alloc"
)

// ChainStream is a file-like wrapper around one directory entry's sector
// chain. It tracks the chain's pool, start sector, and logical size, and
// migrates the chain between the mini and normal pools as its size crosses
// the mini cutoff, per the eager-migration rule: the implementation reads
// the old content end-to-end, allocates in the new pool, writes it back,
// and frees the old chain.
type ChainStream struct {
	a        *alloc.Allocator
	pool     alloc.Pool
	start    alloc.SectorID
	size     uint64
	position int64
	cutoff   uint32
}

// New wraps an existing (or brand-new, size 0) chain as a ChainStream.
func New(a *alloc.Allocator, start alloc.SectorID, size uint64, pool alloc.Pool, cutoff uint32) *ChainStream {
	return &ChainStream{a: a, pool: pool, start: start, size: size, cutoff: cutoff}
}

// StartSector returns the chain's current head sector, for the caller to
// persist back into the owning directory entry.
func (s *ChainStream) StartSector() alloc.SectorID {
	return s.start
}

// Pool returns which pool the chain currently lives in.
func (s *ChainStream) Pool() alloc.Pool {
	return s.pool
}

// Size returns the stream's current logical length in bytes.
func (s *ChainStream) Size() uint64 {
	return s.size
}

func poolFor(size uint64, cutoff uint32) alloc.Pool {
	if size < uint64(cutoff) {
		return alloc.Mini
	}
	return alloc.Normal
}

func (s *ChainStream) sectorSize() uint32 {
	if s.pool == alloc.Mini {
		return alloc.MiniSectorSize
	}
	return s.a.SectorSize()
}

func (s *ChainStream) chainSectors() ([]alloc.SectorID, error) {
	if s.start == alloc.EndOfChain {
		return nil, nil
	}
	return s.a.Chain(s.start, s.pool)
}

// ReadAt reads len(p) bytes starting at offset off, per io.ReaderAt, clamped
// to the stream's logical size. Reads entirely past the end return io.EOF.
func (s *ChainStream) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, ErrNegativeSeek
	}
	if uint64(off) >= s.size {
		return 0, io.EOF
	}
	want := uint64(off) + uint64(len(p))
	end := want
	if end > s.size {
		end = s.size
	}
	n, err := s.readRange(p, uint64(off), end)
	if err == nil && end < want {
		err = io.EOF
	}
	return n, err
}

func (s *ChainStream) readRange(p []byte, start, end uint64) (int, error) {
	if start >= end {
		return 0, nil
	}
	sectorSize := uint64(s.sectorSize())
	sectors, err := s.chainSectors()
	if err != nil {
		return 0, err
	}
	written := 0
	for pos := start; pos < end; {
		idx := pos / sectorSize
		within := pos % sectorSize
		if int(idx) >= len(sectors) {
			break
		}
		data, err := s.a.ReadSectorBytes(sectors[idx], s.pool)
		if err != nil {
			return written, err
		}
		avail := sectorSize - within
		remaining := end - pos
		n := avail
		if remaining < n {
			n = remaining
		}
		copy(p[written:uint64(written)+n], data[within:uint64(within)+n])
		written += int(n)
		pos += n
	}
	return written, nil
}

// WriteAt writes len(p) bytes starting at offset off, per io.WriterAt,
// growing (and migrating pools, if the cutoff is crossed) as needed.
func (s *ChainStream) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, ErrNegativeSeek
	}
	end := uint64(off) + uint64(len(p))
	if end > s.size {
		if err := s.SetLength(end); err != nil {
			return 0, err
		}
	}
	return s.writeRaw(p, uint64(off))
}

func (s *ChainStream) writeRaw(p []byte, start uint64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	sectorSize := uint64(s.sectorSize())
	sectors, err := s.chainSectors()
	if err != nil {
		return 0, err
	}
	written := 0
	pos := start
	end := start + uint64(len(p))
	for pos < end {
		idx := pos / sectorSize
		within := pos % sectorSize
		if int(idx) >= len(sectors) {
			return written, fmt.Errorf("chain: write at offset %d is past the end of the allocated chain", pos)
		}
		data, err := s.a.ReadSectorBytes(sectors[idx], s.pool)
		if err != nil {
			return written, err
		}
		n := copy(data[within:], p[written:])
		if err := s.a.WriteSectorBytes(sectors[idx], s.pool, data); err != nil {
			return written, err
		}
		written += n
		pos += uint64(n)
	}
	return written, nil
}

// Read implements io.Reader using the current stream position.
func (s *ChainStream) Read(p []byte) (int, error) {
	n, err := s.ReadAt(p, s.position)
	s.position += int64(n)
	return n, err
}

// Write implements io.Writer using the current stream position.
func (s *ChainStream) Write(p []byte) (int, error) {
	n, err := s.WriteAt(p, s.position)
	s.position += int64(n)
	return n, err
}

// Seek implements io.Seeker. Seeking past the end is allowed; the chain
// grows on the next write, matching BasicStream's documented behavior.
func (s *ChainStream) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = s.position + offset
	case io.SeekEnd:
		abs = int64(s.size) + offset
	default:
		return s.position, fmt.Errorf("chain: invalid seek whence %d", whence)
	}
	if abs < 0 {
		return s.position, ErrNegativeSeek
	}
	s.position = abs
	return abs, nil
}

// SetLength resizes the chain to exactly newSize bytes, migrating pools if
// newSize crosses the mini cutoff. Pool migration happens at most once per
// call, regardless of how far the size moves.
func (s *ChainStream) SetLength(newSize uint64) error {
	if newSize == s.size && s.pool == poolFor(newSize, s.cutoff) {
		return nil
	}
	targetPool := poolFor(newSize, s.cutoff)
	if targetPool != s.pool {
		if err := s.migratePool(targetPool); err != nil {
			return err
		}
	}
	return s.resizeChainTo(newSize)
}

// Truncate is an alias for SetLength matching the teacher's stream API
// naming.
func (s *ChainStream) Truncate(newSize int64) error {
	if newSize < 0 {
		return fmt.Errorf("chain: truncate to negative size %d", newSize)
	}
	return s.SetLength(uint64(newSize))
}

// migratePool moves the chain's current content into a freshly allocated
// chain in targetPool and frees the old one.
func (s *ChainStream) migratePool(targetPool alloc.Pool) error {
	data := make([]byte, s.size)
	if s.size > 0 {
		if _, err := s.readRange(data, 0, s.size); err != nil {
			return err
		}
	}
	if s.start != alloc.EndOfChain {
		if err := s.a.Free(s.start, s.pool); err != nil {
			return err
		}
	}
	s.pool = targetPool
	s.start = alloc.EndOfChain
	s.size = 0
	if len(data) == 0 {
		return nil
	}
	if err := s.resizeChainTo(uint64(len(data))); err != nil {
		return err
	}
	_, err := s.writeRaw(data, 0)
	return err
}

// resizeChainTo grows or shrinks the chain's sector count to cover newSize
// bytes within the current pool, without crossing pools.
func (s *ChainStream) resizeChainTo(newSize uint64) error {
	sectorSize := uint64(s.sectorSize())
	neededSectors := uint32((newSize + sectorSize - 1) / sectorSize)

	var curSectors uint32
	if s.start != alloc.EndOfChain {
		chain, err := s.a.Chain(s.start, s.pool)
		if err != nil {
			return err
		}
		curSectors = uint32(len(chain))
	}

	switch {
	case neededSectors > curSectors:
		newStart, _, err := s.a.Extend(s.start, neededSectors-curSectors, s.pool)
		if err != nil {
			return err
		}
		s.start = newStart
	case neededSectors < curSectors:
		newStart, err := s.a.Truncate(s.start, neededSectors, s.pool)
		if err != nil {
			return err
		}
		s.start = newStart
	}
	s.size = newSize
	return nil
}
