package cfb

import (
	"github.com/warlomak/compoundfiles/internal/alloc"
	"github.com/warlomak/compoundfiles/internal/dirtree"
)

// Save flushes every pending mutation to device: the ministream metadata
// on the root entry, the directory entries themselves, the allocator's
// FAT/DIFAT/MiniFAT tables, and finally the header, in that order per
// spec.md §4.6's flush sequence ("rewrite MiniFAT, FAT, and DIFAT
// sectors ... header last").
func (c *Container) Save() error {
	if c.mode == ModeReader {
		return ErrReadOnly
	}

	c.syncRootMiniStream()
	if err := c.writeDirectorySectors(); err != nil {
		return err
	}

	result, err := c.alloc.Flush()
	if err != nil {
		return mapAllocErr(err)
	}

	c.hdr.InitialDifats = result.InitialDifats
	c.hdr.DifatSectorLoc = uint32(result.DifatSectorLoc)
	c.hdr.NumDifatSectors = result.NumDifatSectors
	c.hdr.NumFatSectors = result.NumFatSectors
	c.hdr.MiniFatSectorLoc = uint32(result.MiniFatSectorLoc)
	c.hdr.NumMiniFatSectors = result.NumMiniFatSectors
	c.hdr.DirectorySectorLoc = uint32(c.dirStart)

	if _, err := c.device.WriteAt(c.hdr.Encode(), 0); err != nil {
		return ErrHeader.Wrap(err)
	}
	if err := c.store.Flush(); err != nil {
		return ErrHeader.Wrap(err)
	}
	return nil
}

// Close saves (unless the container is read-only) and flushes the
// underlying device.
func (c *Container) Close() error {
	if c.mode != ModeReader {
		if err := c.Save(); err != nil {
			return err
		}
	}
	if err := c.device.Flush(); err != nil {
		return ErrHeader.Wrap(err)
	}
	return nil
}

func (c *Container) syncRootMiniStream() {
	root := c.tree.Get(dirtree.Root)
	root.Start = c.alloc.MiniStreamStart()
	root.Size = c.alloc.MiniStreamSize()
	c.tree.Put(dirtree.Root, root)
}

// writeDirectorySectors re-encodes every directory entry back into the
// directory sector chain, growing it first if the entry count has
// outgrown the sectors currently allocated to it.
func (c *Container) writeDirectorySectors() error {
	entries := c.tree.Entries()
	perSector := int(c.store.SectorSize()) / dirtree.EntrySize
	needed := (len(entries) + perSector - 1) / perSector
	if needed == 0 {
		needed = 1
	}

	sectors, err := c.alloc.Chain(c.dirStart, alloc.Normal)
	if err != nil {
		return mapAllocErr(err)
	}
	if len(sectors) < needed {
		if _, _, err := c.alloc.Extend(c.dirStart, uint32(needed-len(sectors)), alloc.Normal); err != nil {
			return mapAllocErr(err)
		}
		sectors, err = c.alloc.Chain(c.dirStart, alloc.Normal)
		if err != nil {
			return mapAllocErr(err)
		}
	}

	empty := dirtree.EncodeEntry(dirtree.Entry{
		Type: dirtree.TypeEmpty, Left: dirtree.NoStream, Right: dirtree.NoStream, Child: dirtree.NoStream,
	})
	for i, sec := range sectors {
		buf := make([]byte, c.store.SectorSize())
		for j := 0; j < perSector; j++ {
			idx := i*perSector + j
			enc := empty
			if idx < len(entries) {
				enc = dirtree.EncodeEntry(entries[idx])
			}
			copy(buf[j*dirtree.EntrySize:], enc)
		}
		if err := c.store.WriteSector(sec, buf); err != nil {
			return err
		}
	}
	return nil
}
