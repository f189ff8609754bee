// Package alloc implements the Allocator: FAT, DIFAT, and MiniFAT
// bookkeeping, chain walking with loop detection, and growth of both the
// normal and mini sector pools, per spec.md §4.3.
//
// The design follows drivers/common/allocatormap.go's bitmap-backed
// Allocator from the teacher repository: a free/used bitmap
// (github.com/boljen/go-bitmap) sits alongside the authoritative table so
// "scan for a free slot" is a bitmap scan instead of re-reading the FAT
// values on every allocation. The bitmap is kept in lockstep with the FAT
// and MiniFAT arrays, so it never disagrees with "scan the FAT linearly
// for FREESECT" — it just makes that scan cheap.
package alloc

import (
	"fmt"

	"github.com/boljen/go-bitmap"

	"github.com/warlomak/compoundfiles/internal/diag"
	"github.com/warlomak/compoundfiles/internal/sectorio"
)

const maxInlineDifat = 109

// Allocator owns the FAT, DIFAT, and MiniFAT in-memory state for one open
// container. It never holds directory entries; the Container Façade wires
// the root entry's ministream metadata in via SetMiniStreamRoot.
type Allocator struct {
	store            *sectorio.Store
	sectorSize       uint32
	entriesPerSector uint32

	// Normal pool bookkeeping.
	fat          []SectorID
	fatBitmap    bitmap.Bitmap
	fatSectorLocs    []SectorID // physical sectors holding FAT blocks, in block order
	difatSectorLocs  []SectorID // physical sectors holding DIFAT overflow, in chain order

	// Mini pool bookkeeping.
	miniFat         []SectorID
	miniBitmap      bitmap.Bitmap
	miniStreamChain []SectorID // normal sectors backing the ministream, in order
	miniStreamTail  SectorID
	miniStreamSize  uint64
	miniFatChainStart SectorID

	sink diag.Sink
}

// New creates an empty Allocator bound to store. Call either Bootstrap
// (fresh container) or LoadFAT+LoadMiniFAT+SetMiniStreamRoot (existing
// container) before using it.
func New(store *sectorio.Store, sink diag.Sink) *Allocator {
	if sink == nil {
		sink = diag.NopSink{}
	}
	sectorSize := store.SectorSize()
	return &Allocator{
		store:             store,
		sectorSize:        sectorSize,
		entriesPerSector:  sectorSize / 4,
		miniFatChainStart: EndOfChain,
		miniStreamTail:    EndOfChain,
		sink:              sink,
	}
}

// Bootstrap sets up a brand-new container's allocator state: dirSector is
// the already-allocated sector holding the (empty) root directory entry;
// Bootstrap allocates exactly one FAT sector and registers it, matching
// the create sequence in spec.md §4.6.
func (a *Allocator) Bootstrap(dirSector SectorID) error {
	a.fat = []SectorID{EndOfChain} // entry for dirSector (a 1-sector chain)
	a.fatBitmap = bitmap.New(1)
	a.fatBitmap.Set(int(dirSector), true)

	if err := a.growFATCapacity(); err != nil {
		return err
	}
	return nil
}

// LoadFAT reconstructs the DIFAT and FAT from an existing container's
// header fields, per spec.md §4.3's DIFAT traversal and §4.1.
func (a *Allocator) LoadFAT(initialDifats [109]uint32, difatStart SectorID, numDifatSectors, numFatSectors uint32) error {
	locs := make([]SectorID, 0, maxInlineDifat)
	for _, v := range initialDifats {
		if SectorID(v) == FreeSect {
			continue
		}
		locs = append(locs, SectorID(v))
	}

	extra := make([]SectorID, 0, numDifatSectors)
	if difatStart != EndOfChain {
		visited := map[SectorID]bool{}
		cur := difatStart
		walked := uint32(0)
		for cur != EndOfChain {
			if visited[cur] {
				return fmt.Errorf("alloc: %w at sector %d", ErrMasterLoop, cur)
			}
			visited[cur] = true
			extra = append(extra, cur)

			buf, err := a.store.ReadSector(cur)
			if err != nil {
				return err
			}
			n := int(a.entriesPerSector) - 1
			for i := 0; i < n; i++ {
				v := decodeU32(buf[i*4 : i*4+4])
				if SectorID(v) != FreeSect {
					locs = append(locs, SectorID(v))
				}
			}
			cur = SectorID(decodeU32(buf[n*4 : n*4+4]))
			walked++
		}
		if walked != numDifatSectors {
			a.sink.Push(diag.Diagnostic{
				Code:    diag.MasterSectorWarning,
				Message: fmt.Sprintf("DIFAT chain has %d sectors, header declares %d; using walked count", walked, numDifatSectors),
			})
		}
	}
	a.difatSectorLocs = extra

	if uint32(len(locs)) != numFatSectors {
		a.sink.Push(diag.Diagnostic{
			Code:    diag.MasterSectorWarning,
			Message: fmt.Sprintf("DIFAT names %d FAT sectors, header declares %d; using DIFAT count", len(locs), numFatSectors),
		})
	}
	a.fatSectorLocs = locs

	fat := make([]SectorID, 0, len(locs)*int(a.entriesPerSector))
	for _, loc := range locs {
		buf, err := a.store.ReadSector(loc)
		if err != nil {
			return err
		}
		for i := uint32(0); i < a.entriesPerSector; i++ {
			fat = append(fat, SectorID(decodeU32(buf[i*4:i*4+4])))
		}
	}
	a.fat = fat
	a.rebuildFatBitmap()
	return nil
}

// LoadMiniFAT reconstructs the MiniFAT chain, which (unlike the FAT) is
// just an ordinary normal-pool chain whose sectors happen to hold MiniFAT
// entries, per spec.md §3.
func (a *Allocator) LoadMiniFAT(start SectorID, count uint32) error {
	a.miniFatChainStart = start
	if start == EndOfChain || count == 0 {
		a.miniFat = nil
		a.miniBitmap = bitmap.New(0)
		return nil
	}

	chain, err := a.Chain(start, Normal)
	if err != nil {
		return err
	}
	if uint32(len(chain)) != count {
		a.sink.Push(diag.Diagnostic{
			Code:    diag.MasterSectorWarning,
			Message: fmt.Sprintf("MiniFAT chain has %d sectors, header declares %d; using walked count", len(chain), count),
		})
	}

	miniFat := make([]SectorID, 0, len(chain)*int(a.entriesPerSector))
	for _, loc := range chain {
		buf, err := a.store.ReadSector(loc)
		if err != nil {
			return err
		}
		for i := uint32(0); i < a.entriesPerSector; i++ {
			miniFat = append(miniFat, SectorID(decodeU32(buf[i*4:i*4+4])))
		}
	}
	a.miniFat = miniFat
	a.rebuildMiniBitmap()
	return nil
}

// SetMiniStreamRoot tells the allocator where the ministream (owned by the
// root directory entry) begins and how large it currently is, so mini
// sector IDs can be translated to normal-pool offsets.
func (a *Allocator) SetMiniStreamRoot(start SectorID, size uint64) error {
	a.miniStreamSize = size
	if start == EndOfChain {
		a.miniStreamChain = nil
		a.miniStreamTail = EndOfChain
		return nil
	}
	chain, err := a.Chain(start, Normal)
	if err != nil {
		return err
	}
	a.miniStreamChain = chain
	if len(chain) > 0 {
		a.miniStreamTail = chain[len(chain)-1]
	}
	return nil
}

// MiniStreamStart returns the current head sector of the ministream, or
// EndOfChain if it's empty. The Container Façade writes this back into the
// root directory entry on flush.
func (a *Allocator) MiniStreamStart() SectorID {
	if len(a.miniStreamChain) == 0 {
		return EndOfChain
	}
	return a.miniStreamChain[0]
}

// MiniStreamSize returns the ministream's current size in bytes (always a
// multiple of the normal sector size, since it grows by whole sectors).
func (a *Allocator) MiniStreamSize() uint64 {
	return uint64(len(a.miniStreamChain)) * uint64(a.sectorSize)
}

// SectorSize returns the container's normal sector size in bytes.
func (a *Allocator) SectorSize() uint32 {
	return a.sectorSize
}

// NormalFatLen returns the number of addressable entries in the current
// FAT table, for bounds-checking a sector ID without walking its chain.
func (a *Allocator) NormalFatLen() int {
	return len(a.fat)
}

// MiniFatLen returns the number of addressable entries in the current
// MiniFAT table, for bounds-checking a mini sector ID without walking its
// chain.
func (a *Allocator) MiniFatLen() int {
	return len(a.miniFat)
}

func decodeU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func encodeU32(v uint32, b []byte) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func (a *Allocator) rebuildFatBitmap() {
	a.fatBitmap = bitmap.New(len(a.fat))
	for i, v := range a.fat {
		a.fatBitmap.Set(i, v != FreeSect)
	}
}

func (a *Allocator) rebuildMiniBitmap() {
	a.miniBitmap = bitmap.New(len(a.miniFat))
	for i, v := range a.miniFat {
		a.miniBitmap.Set(i, v != FreeSect)
	}
}
