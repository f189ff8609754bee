package cfb

import (
	"fmt"
	"io"

	"github.com/warlomak/compoundfiles/internal/alloc"
	"github.com/warlomak/compoundfiles/internal/chain"
	"github.com/warlomak/compoundfiles/internal/diag"
	"github.com/warlomak/compoundfiles/internal/dirtree"
	"github.com/warlomak/compoundfiles/internal/header"
	"github.com/warlomak/compoundfiles/internal/sectorio"
)

// OpenReader opens an existing container read-only, per spec.md §4.6's
// open sequence. A caller that needs to inspect individual diagnostics
// rather than the aggregated *Container.Diagnostics() view should use
// OpenReaderWithSink instead.
func OpenReader(device sectorio.Device) (*Container, error) {
	return open(device, ModeReader, nil)
}

// OpenReaderWithSink is OpenReader with an explicit diagnostic sink,
// letting a caller install an diag.EscalatingSink policy.
func OpenReaderWithSink(device sectorio.Device, sink diag.Sink) (*Container, error) {
	return open(device, ModeReader, sink)
}

// OpenEditor opens an existing container for in-place mutation.
func OpenEditor(device sectorio.Device) (*Container, error) {
	return open(device, ModeEditor, nil)
}

// OpenEditorWithSink is OpenEditor with an explicit diagnostic sink.
func OpenEditorWithSink(device sectorio.Device, sink diag.Sink) (*Container, error) {
	return open(device, ModeEditor, sink)
}

func open(device sectorio.Device, mode Mode, sink diag.Sink) (*Container, error) {
	if sink == nil {
		sink = diag.NewCollectingSink()
	}

	length, err := device.Len()
	if err != nil {
		return nil, ErrHeader.Wrap(err)
	}
	if length < header.Size {
		return nil, ErrHeader.WithMessage("file is smaller than the fixed 512-byte header")
	}

	headerBuf := make([]byte, header.Size)
	if _, err := device.ReadAt(headerBuf, 0); err != nil && err != io.EOF {
		return nil, ErrHeader.Wrap(err)
	}

	hdr, err := header.Decode(headerBuf, sink)
	if err != nil {
		return nil, mapHeaderErr(err)
	}

	store := sectorio.New(device, hdr.SectorSize(), sink)

	a := alloc.New(store, sink)
	if err := a.LoadFAT(hdr.InitialDifats, alloc.SectorID(hdr.DifatSectorLoc), hdr.NumDifatSectors, hdr.NumFatSectors); err != nil {
		return nil, mapAllocErr(err)
	}

	entries, err := readDirectoryEntries(store, a, alloc.SectorID(hdr.DirectorySectorLoc), sink, hdr.MajorVersion)
	if err != nil {
		return nil, mapAllocErr(err)
	}

	tree, err := dirtree.Load(entries, sink)
	if err != nil {
		return nil, mapDirErr(err)
	}

	root := tree.Get(dirtree.Root)
	if !root.IsStorage() {
		return nil, ErrDirEntry.WithMessage("entry 0 is not a storage")
	}
	if root.Type != dirtree.TypeRoot {
		sink.Push(diag.Diagnostic{
			Code:    diag.DirTypeWarning,
			Message: "entry 0 is a storage but not typed as the root entry",
		})
	}

	if err := a.LoadMiniFAT(alloc.SectorID(hdr.MiniFatSectorLoc), hdr.NumMiniFatSectors); err != nil {
		return nil, mapAllocErr(err)
	}
	if err := a.SetMiniStreamRoot(root.Start, root.Size); err != nil {
		return nil, mapAllocErr(err)
	}

	c := &Container{
		device:       device,
		store:        store,
		hdr:          hdr,
		alloc:        a,
		tree:         tree,
		sink:         sink,
		mode:         mode,
		streams:      make(map[dirtree.DirID]*chain.ChainStream),
		invalidStart: make(map[dirtree.DirID]bool),
		dirStart:     alloc.SectorID(hdr.DirectorySectorLoc),
	}
	c.owner = buildOwnerMap(tree)
	c.validateStreamStarts()
	return c, nil
}

// readDirectoryEntries walks the directory sector chain rooted at start
// and decodes every 128-byte entry it holds, per spec.md §4.6.
func readDirectoryEntries(store *sectorio.Store, a *alloc.Allocator, start alloc.SectorID, sink diag.Sink, majorVersion uint16) ([]dirtree.Entry, error) {
	sectors, err := a.Chain(start, alloc.Normal)
	if err != nil {
		return nil, err
	}
	perSector := int(store.SectorSize()) / dirtree.EntrySize

	entries := make([]dirtree.Entry, 0, len(sectors)*perSector)
	idx := dirtree.DirID(0)
	for _, sec := range sectors {
		buf, err := store.ReadSector(sec)
		if err != nil {
			return nil, err
		}
		for i := 0; i < perSector; i++ {
			off := i * dirtree.EntrySize
			e, err := dirtree.DecodeEntry(buf[off:off+dirtree.EntrySize], sink, idx, majorVersion)
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
			idx++
		}
	}
	return entries, nil
}

// validateStreamStarts performs the bounds check from spec.md §8's
// out-of-range scenario: a stream's start_sector is checked against the
// current FAT/MiniFAT table length without walking its chain, so a
// garbage start sector is downgraded to a DirSectorWarning plus a
// synthetic empty stream instead of failing the whole open (which stays
// reserved for loops and entries that genuinely can't be decoded).
func (c *Container) validateStreamStarts() {
	for i, e := range c.tree.Entries() {
		if !e.IsStream() || e.Size == 0 || e.Start == alloc.EndOfChain {
			continue
		}
		pool, tableLen := alloc.Normal, c.alloc.NormalFatLen()
		if e.Size < uint64(c.hdr.MiniStreamCutoff) {
			pool, tableLen = alloc.Mini, c.alloc.MiniFatLen()
		}
		if e.Start.IsSentinel() || uint32(e.Start) >= uint32(tableLen) {
			c.invalidStart[dirtree.DirID(i)] = true
			c.sink.Push(diag.Diagnostic{
				Code:    diag.DirSectorWarning,
				Message: fmt.Sprintf("stream %q: start sector %d is out of range for the %s pool, treating as empty", e.Name, e.Start, pool),
			})
		}
	}
}
