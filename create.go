package cfb

import (
	"github.com/warlomak/compoundfiles/internal/alloc"
	"github.com/warlomak/compoundfiles/internal/chain"
	"github.com/warlomak/compoundfiles/internal/diag"
	"github.com/warlomak/compoundfiles/internal/dirtree"
	"github.com/warlomak/compoundfiles/internal/header"
	"github.com/warlomak/compoundfiles/internal/sectorio"
)

// CreateWriter formats device as a brand-new, empty version-3 CFB
// container and returns a Container open in ModeWriter, per spec.md
// §4.6's create sequence: allocate the directory sector, bootstrap the
// allocator around it, start with a bare root-storage tree, and leave the
// ministream empty until something is written into it.
func CreateWriter(device sectorio.Device) (*Container, error) {
	return CreateWriterWithSink(device, nil)
}

// CreateWriterWithSink is CreateWriter with an explicit diagnostic sink.
func CreateWriterWithSink(device sectorio.Device, sink diag.Sink) (*Container, error) {
	return CreateWriterWithHeader(device, header.NewV3(), sink)
}

// CreateWriterWithHeader is CreateWriter parameterized on the starting
// header, so a caller (cfbtool's profile-driven create command, for
// instance) can format a version-4/4096-byte-sector container by passing
// header.NewV4() instead of the version-3 default.
func CreateWriterWithHeader(device sectorio.Device, hdr *header.Header, sink diag.Sink) (*Container, error) {
	if sink == nil {
		sink = diag.NewCollectingSink()
	}
	if err := device.Truncate(header.Size); err != nil {
		return nil, ErrHeader.Wrap(err)
	}

	store := sectorio.New(device, hdr.SectorSize(), sink)

	dirSector, err := store.GrowBy(1)
	if err != nil {
		return nil, ErrDirEntry.Wrap(err)
	}

	a := alloc.New(store, sink)
	if err := a.Bootstrap(dirSector); err != nil {
		return nil, mapAllocErr(err)
	}
	if err := a.SetMiniStreamRoot(alloc.EndOfChain, 0); err != nil {
		return nil, mapAllocErr(err)
	}

	tree := dirtree.New(sink)

	c := &Container{
		device:       device,
		store:        store,
		hdr:          hdr,
		alloc:        a,
		tree:         tree,
		sink:         sink,
		mode:         ModeWriter,
		streams:      make(map[dirtree.DirID]*chain.ChainStream),
		invalidStart: make(map[dirtree.DirID]bool),
		dirStart:     dirSector,
	}
	c.owner = buildOwnerMap(tree)
	return c, nil
}
