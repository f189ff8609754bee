package alloc

import "fmt"

func (a *Allocator) table(pool Pool) []SectorID {
	if pool == Mini {
		return a.miniFat
	}
	return a.fat
}

func (a *Allocator) setEntry(pool Pool, id SectorID, value SectorID) {
	if pool == Mini {
		a.miniFat[id] = value
		a.miniBitmap.Set(int(id), value != FreeSect)
		return
	}
	a.fat[id] = value
	a.fatBitmap.Set(int(id), value != FreeSect)
}

// Chain walks a FAT or MiniFAT chain starting at start, returning every
// sector visited (excluding the terminating ENDOFCHAIN), with loop
// detection per spec.md §4.3.
func (a *Allocator) Chain(start SectorID, pool Pool) ([]SectorID, error) {
	table := a.table(pool)
	if start == EndOfChain {
		return nil, nil
	}

	visited := make(map[SectorID]bool)
	var out []SectorID
	cur := start
	for cur != EndOfChain {
		if uint32(cur) >= uint32(len(table)) {
			return nil, a.rangeErr(pool, cur)
		}
		if visited[cur] {
			return nil, a.loopErr(pool, cur)
		}
		visited[cur] = true
		out = append(out, cur)
		cur = table[cur]
	}
	return out, nil
}

func (a *Allocator) loopErr(pool Pool, id SectorID) error {
	if pool == Mini {
		return fmt.Errorf("alloc: %w at mini sector %d", ErrMiniLoop, id)
	}
	return fmt.Errorf("alloc: %w at sector %d", ErrNormalLoop, id)
}

func (a *Allocator) rangeErr(pool Pool, id SectorID) error {
	if pool == Mini {
		return fmt.Errorf("alloc: %w: %d", ErrLargeMiniFat, id)
	}
	return fmt.Errorf("alloc: %w: %d", ErrLargeNormalFat, id)
}

// Allocate links count fresh sectors into a new chain and returns its
// head. Allocate(0, pool) returns EndOfChain.
func (a *Allocator) Allocate(count uint32, pool Pool) (SectorID, error) {
	if count == 0 {
		return EndOfChain, nil
	}
	ids := make([]SectorID, count)
	for i := range ids {
		id, err := a.allocateOne(pool)
		if err != nil {
			return EndOfChain, err
		}
		ids[i] = id
	}
	for i := 0; i < len(ids)-1; i++ {
		a.setEntry(pool, ids[i], ids[i+1])
	}
	a.setEntry(pool, ids[len(ids)-1], EndOfChain)
	return ids[0], nil
}

// Extend appends extra sectors onto the chain starting at start (or
// creates a new chain if start is EndOfChain), returning the (possibly
// new) head and the new tail sector.
func (a *Allocator) Extend(start SectorID, extra uint32, pool Pool) (head SectorID, tail SectorID, err error) {
	if extra == 0 {
		if start == EndOfChain {
			return EndOfChain, EndOfChain, nil
		}
		chain, err := a.Chain(start, pool)
		if err != nil {
			return EndOfChain, EndOfChain, err
		}
		return start, chain[len(chain)-1], nil
	}
	if start == EndOfChain {
		newHead, err := a.Allocate(extra, pool)
		if err != nil {
			return EndOfChain, EndOfChain, err
		}
		chain, err := a.Chain(newHead, pool)
		if err != nil {
			return EndOfChain, EndOfChain, err
		}
		return newHead, chain[len(chain)-1], nil
	}

	chain, err := a.Chain(start, pool)
	if err != nil {
		return EndOfChain, EndOfChain, err
	}
	oldTail := chain[len(chain)-1]

	newIDs := make([]SectorID, extra)
	for i := range newIDs {
		id, err := a.allocateOne(pool)
		if err != nil {
			return EndOfChain, EndOfChain, err
		}
		newIDs[i] = id
	}
	a.setEntry(pool, oldTail, newIDs[0])
	for i := 0; i < len(newIDs)-1; i++ {
		a.setEntry(pool, newIDs[i], newIDs[i+1])
	}
	a.setEntry(pool, newIDs[len(newIDs)-1], EndOfChain)
	return start, newIDs[len(newIDs)-1], nil
}

// Free releases every sector in the chain starting at start.
func (a *Allocator) Free(start SectorID, pool Pool) error {
	chain, err := a.Chain(start, pool)
	if err != nil {
		return err
	}
	for _, id := range chain {
		a.setEntry(pool, id, FreeSect)
	}
	return nil
}

// Truncate shortens the chain starting at start to keep sectors. If keep
// is 0, the whole chain is freed and EndOfChain is returned.
func (a *Allocator) Truncate(start SectorID, keep uint32, pool Pool) (SectorID, error) {
	if keep == 0 {
		if start == EndOfChain {
			return EndOfChain, nil
		}
		if err := a.Free(start, pool); err != nil {
			return EndOfChain, err
		}
		return EndOfChain, nil
	}

	chain, err := a.Chain(start, pool)
	if err != nil {
		return EndOfChain, err
	}
	if uint32(len(chain)) <= keep {
		return start, nil
	}
	for _, id := range chain[keep:] {
		a.setEntry(pool, id, FreeSect)
	}
	a.setEntry(pool, chain[keep-1], EndOfChain)
	return start, nil
}

func (a *Allocator) allocateOne(pool Pool) (SectorID, error) {
	if pool == Mini {
		return a.allocateOneMini()
	}
	return a.allocateOneNormal()
}

// ReadSectorBytes returns a copy of the bytes backing sector id in pool.
// For the mini pool this translates id into (ministream sector, offset)
// and reads through the normal Store.
func (a *Allocator) ReadSectorBytes(id SectorID, pool Pool) ([]byte, error) {
	if pool == Normal {
		return a.store.ReadSector(id)
	}
	normalSector, offset, err := a.miniLocation(id)
	if err != nil {
		return nil, err
	}
	buf, err := a.store.ReadSector(normalSector)
	if err != nil {
		return nil, err
	}
	out := make([]byte, MiniSectorSize)
	copy(out, buf[offset:offset+MiniSectorSize])
	return out, nil
}

// WriteSectorBytes writes exactly one sector's (or mini sector's) worth of
// data.
func (a *Allocator) WriteSectorBytes(id SectorID, pool Pool, data []byte) error {
	if pool == Normal {
		return a.store.WriteSector(id, data)
	}
	normalSector, offset, err := a.miniLocation(id)
	if err != nil {
		return err
	}
	buf, err := a.store.ReadSector(normalSector)
	if err != nil {
		return err
	}
	copy(buf[offset:offset+MiniSectorSize], data)
	return a.store.WriteSector(normalSector, buf)
}

func (a *Allocator) miniLocation(id SectorID) (normalSector SectorID, offset uint32, err error) {
	perNormal := a.sectorSize / MiniSectorSize
	block := uint32(id) / perNormal
	within := uint32(id) % perNormal
	if block >= uint32(len(a.miniStreamChain)) {
		return 0, 0, fmt.Errorf("alloc: mini sector %d is past the end of the ministream", id)
	}
	return a.miniStreamChain[block], within * MiniSectorSize, nil
}
