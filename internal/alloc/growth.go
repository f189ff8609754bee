package alloc

import "github.com/boljen/go-bitmap"

// allocateOneNormal finds (or creates) one free normal sector.
func (a *Allocator) allocateOneNormal() (SectorID, error) {
	if id, ok := a.findFree(a.fatBitmap, len(a.fat)); ok {
		a.fatBitmap.Set(id, true)
		return SectorID(id), nil
	}
	return a.growNormalPoolByOne()
}

func (a *Allocator) findFree(b interface{ Get(int) bool }, n int) (int, bool) {
	for i := 0; i < n; i++ {
		if !b.Get(i) {
			return i, true
		}
	}
	return 0, false
}

// growNormalPoolByOne appends one fresh sector to the device, extends the
// FAT to cover it, and grows FAT capacity itself if the new entry doesn't
// fit in the currently-allocated FAT sectors, per spec.md §4.3's
// allocation policy.
func (a *Allocator) growNormalPoolByOne() (SectorID, error) {
	id, err := a.store.GrowBy(1)
	if err != nil {
		return EndOfChain, err
	}
	a.fat = append(a.fat, FreeSect)
	a.fatBitmap = growBitmap(a.fatBitmap, len(a.fat)-1, len(a.fat))
	a.fatBitmap.Set(int(id), true)

	if uint32(len(a.fat)) > uint32(len(a.fatSectorLocs))*a.entriesPerSector {
		if err := a.growFATCapacity(); err != nil {
			return EndOfChain, err
		}
	}
	return id, nil
}

// growFATCapacity allocates one more sector to hold another block of FAT
// entries, marks its own entry FATSECT, and registers it in the DIFAT
// (growing the DIFAT chain itself if the 109 inline slots are exhausted).
func (a *Allocator) growFATCapacity() error {
	id, err := a.store.GrowBy(1)
	if err != nil {
		return err
	}
	a.fat = append(a.fat, FatSect)
	a.fatBitmap = growBitmap(a.fatBitmap, len(a.fat)-1, len(a.fat))
	a.fatBitmap.Set(int(id), true)
	a.fatSectorLocs = append(a.fatSectorLocs, id)

	return a.ensureDifatCapacity()
}

// ensureDifatCapacity grows the DIFAT overflow chain so every FAT sector
// location beyond the 109 inline header slots has somewhere to live. This
// is the "inserting the 110th DIFAT entry allocates a DIFAT sector"
// boundary case from spec.md §8.
func (a *Allocator) ensureDifatCapacity() error {
	if len(a.fatSectorLocs) <= maxInlineDifat {
		return nil
	}
	perDifatSector := int(a.entriesPerSector) - 1
	overflow := len(a.fatSectorLocs) - maxInlineDifat
	needed := (overflow + perDifatSector - 1) / perDifatSector

	for len(a.difatSectorLocs) < needed {
		id, err := a.allocateOneNormal()
		if err != nil {
			return err
		}
		a.fat[id] = DifSect
		a.fatBitmap.Set(int(id), true)
		a.difatSectorLocs = append(a.difatSectorLocs, id)
	}
	return nil
}

// allocateOneMini finds (or creates) one free mini sector.
func (a *Allocator) allocateOneMini() (SectorID, error) {
	if id, ok := a.findFree(a.miniBitmap, len(a.miniFat)); ok {
		a.miniBitmap.Set(id, true)
		return SectorID(id), nil
	}
	if err := a.growMiniPoolByOneNormalSector(); err != nil {
		return EndOfChain, err
	}
	id, ok := a.findFree(a.miniBitmap, len(a.miniFat))
	if !ok {
		return EndOfChain, ErrNoSpace
	}
	a.miniBitmap.Set(id, true)
	return SectorID(id), nil
}

// growMiniPoolByOneNormalSector extends the ministream (a normal chain
// owned by the root entry) by one normal sector and carves it into fresh
// 64-byte mini sectors, per spec.md §4.3's mini pool growth policy.
func (a *Allocator) growMiniPoolByOneNormalSector() error {
	normalID, err := a.allocateOneNormal()
	if err != nil {
		return err
	}
	if len(a.miniStreamChain) == 0 {
		a.fat[normalID] = EndOfChain
	} else {
		a.fat[a.miniStreamTail] = normalID
		a.fat[normalID] = EndOfChain
	}
	a.fatBitmap.Set(int(normalID), true)
	a.miniStreamChain = append(a.miniStreamChain, normalID)
	a.miniStreamTail = normalID

	perNormal := int(a.sectorSize / MiniSectorSize)
	newLen := len(a.miniFat) + perNormal
	grown := make([]SectorID, newLen)
	copy(grown, a.miniFat)
	for i := len(a.miniFat); i < newLen; i++ {
		grown[i] = FreeSect
	}
	a.miniFat = grown
	a.miniBitmap = growBitmap(a.miniBitmap, newLen-perNormal, newLen)
	return nil
}

// growBitmap returns a bitmap of the new size with the bits in
// [0, oldLen) copied over. github.com/boljen/go-bitmap's Bitmap has no
// resize operation of its own, so growth always rebuilds, the same way
// drivers/common/allocatormap.go sizes its Allocator's bitmap once up
// front; the engine instead needs to grow it as the pools grow.
func growBitmap(old bitmap.Bitmap, oldLen, newLen int) bitmap.Bitmap {
	nb := bitmap.New(newLen)
	for i := 0; i < oldLen; i++ {
		nb.Set(i, old.Get(i))
	}
	return nb
}
