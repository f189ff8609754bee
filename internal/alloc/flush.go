package alloc

// FlushResult carries the header fields the Container Façade must write
// back after the allocator has persisted its tables, per spec.md §4.6's
// flush sequence ("rewrite MiniFAT, FAT, and DIFAT sectors ... header
// last").
type FlushResult struct {
	InitialDifats   [109]uint32
	DifatSectorLoc  SectorID
	NumDifatSectors uint32
	NumFatSectors   uint32
	MiniFatSectorLoc  SectorID
	NumMiniFatSectors uint32
}

// Flush writes the FAT, DIFAT overflow, and MiniFAT sectors to the store
// and returns the header fields that describe their new locations. The
// caller (Container Façade) is responsible for writing the header itself,
// last, per the flush ordering in spec.md §4.6.
func (a *Allocator) Flush() (FlushResult, error) {
	if err := a.materializeMiniFatStorage(); err != nil {
		return FlushResult{}, err
	}

	if err := a.writeFatSectors(); err != nil {
		return FlushResult{}, err
	}
	if err := a.writeDifatSectors(); err != nil {
		return FlushResult{}, err
	}
	if err := a.writeMiniFatSectors(); err != nil {
		return FlushResult{}, err
	}

	var result FlushResult
	for i := range result.InitialDifats {
		if i < len(a.fatSectorLocs) && i < maxInlineDifat {
			result.InitialDifats[i] = uint32(a.fatSectorLocs[i])
		} else {
			result.InitialDifats[i] = uint32(FreeSect)
		}
	}
	if len(a.difatSectorLocs) == 0 {
		result.DifatSectorLoc = EndOfChain
	} else {
		result.DifatSectorLoc = a.difatSectorLocs[0]
	}
	result.NumDifatSectors = uint32(len(a.difatSectorLocs))
	result.NumFatSectors = uint32(len(a.fatSectorLocs))

	if len(a.miniFat) == 0 {
		result.MiniFatSectorLoc = EndOfChain
		result.NumMiniFatSectors = 0
	} else {
		result.MiniFatSectorLoc = a.miniFatChainStart
		chain, err := a.Chain(a.miniFatChainStart, Normal)
		if err != nil {
			return FlushResult{}, err
		}
		result.NumMiniFatSectors = uint32(len(chain))
	}
	return result, nil
}

// materializeMiniFatStorage grows the MiniFAT's own on-disk chain (an
// ordinary normal-pool chain, unlike the FAT which needs the DIFAT) to fit
// the current MiniFAT table.
func (a *Allocator) materializeMiniFatStorage() error {
	if len(a.miniFat) == 0 {
		return nil
	}
	needed := (uint32(len(a.miniFat)) + a.entriesPerSector - 1) / a.entriesPerSector

	var have uint32
	if a.miniFatChainStart != EndOfChain {
		chain, err := a.Chain(a.miniFatChainStart, Normal)
		if err != nil {
			return err
		}
		have = uint32(len(chain))
	}
	if have >= needed {
		return nil
	}
	head, _, err := a.Extend(a.miniFatChainStart, needed-have, Normal)
	if err != nil {
		return err
	}
	a.miniFatChainStart = head
	return nil
}

func (a *Allocator) writeFatSectors() error {
	for i, loc := range a.fatSectorLocs {
		buf := make([]byte, a.sectorSize)
		base := uint32(i) * a.entriesPerSector
		for j := uint32(0); j < a.entriesPerSector; j++ {
			idx := base + j
			var v SectorID = FreeSect
			if int(idx) < len(a.fat) {
				v = a.fat[idx]
			}
			encodeU32(uint32(v), buf[j*4:j*4+4])
		}
		if err := a.store.WriteSector(loc, buf); err != nil {
			return err
		}
	}
	return nil
}

func (a *Allocator) writeDifatSectors() error {
	if len(a.difatSectorLocs) == 0 {
		return nil
	}
	perSector := int(a.entriesPerSector) - 1
	overflow := a.fatSectorLocs[maxInlineDifat:]

	for i, loc := range a.difatSectorLocs {
		buf := make([]byte, a.sectorSize)
		start := i * perSector
		for j := 0; j < perSector; j++ {
			idx := start + j
			v := uint32(FreeSect)
			if idx < len(overflow) {
				v = uint32(overflow[idx])
			}
			encodeU32(v, buf[j*4:j*4+4])
		}
		next := uint32(EndOfChain)
		if i+1 < len(a.difatSectorLocs) {
			next = uint32(a.difatSectorLocs[i+1])
		}
		encodeU32(next, buf[perSector*4:perSector*4+4])
		if err := a.store.WriteSector(loc, buf); err != nil {
			return err
		}
	}
	return nil
}

func (a *Allocator) writeMiniFatSectors() error {
	if len(a.miniFat) == 0 {
		return nil
	}
	chain, err := a.Chain(a.miniFatChainStart, Normal)
	if err != nil {
		return err
	}
	for i, loc := range chain {
		buf := make([]byte, a.sectorSize)
		base := uint32(i) * a.entriesPerSector
		for j := uint32(0); j < a.entriesPerSector; j++ {
			idx := base + j
			v := SectorID(FreeSect)
			if int(idx) < len(a.miniFat) {
				v = a.miniFat[idx]
			}
			encodeU32(uint32(v), buf[j*4:j*4+4])
		}
		if err := a.store.WriteSector(loc, buf); err != nil {
			return err
		}
	}
	return nil
}
