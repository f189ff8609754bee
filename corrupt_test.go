package cfb

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warlomak/compoundfiles/internal/alloc"
	"github.com/warlomak/compoundfiles/internal/diag"
	"github.com/warlomak/compoundfiles/internal/header"
	"github.com/warlomak/compoundfiles/internal/sectorio"
	"github.com/warlomak/compoundfiles/testutil"
)

// These two tests reach into unexported Container state and patch raw
// bytes on purpose: both reproduce corruption scenarios from spec.md §8
// that nothing in the public API would ever legitimately produce.

func TestCorruptSelfLoopFailsOnlyWhenStreamOpened(t *testing.T) {
	dev := testutil.NewGrowableDevice()
	c, err := CreateWriter(dev)
	require.NoError(t, err)

	root := c.Root()
	entry, err := c.CreateStream(root, "loopy", bytes.Repeat([]byte{7}, int(header.DefaultMiniCutoff)+1))
	require.NoError(t, err)
	require.NoError(t, c.Save())

	start := c.tree.Get(entry.ID).Start
	patchFATSelfLoop(t, dev, start)

	reopened, err := OpenEditor(dev)
	require.NoError(t, err, "container open must succeed even though a chain will later self-loop")

	found, err := reopened.OpenPath("loopy")
	require.NoError(t, err)

	s, err := found.Open()
	require.NoError(t, err)
	buf := make([]byte, 4096)
	_, err = s.Read(buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNormalLoop)
}

// patchFATSelfLoop overwrites the FAT entry for sector so it points back
// to itself, assuming (true for this small fixture) the whole FAT still
// fits in the single bootstrap FAT sector named by InitialDifats[0].
func patchFATSelfLoop(t *testing.T, dev *testutil.GrowableDevice, sector alloc.SectorID) {
	t.Helper()
	data := dev.Bytes()
	hdr, err := header.Decode(data[:header.Size], nil)
	require.NoError(t, err)

	store := sectorio.New(dev, hdr.SectorSize(), nil)
	offset := store.Offset(alloc.SectorID(hdr.InitialDifats[0])) + int64(sector)*4

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(sector))
	_, err = dev.WriteAt(buf[:], offset)
	require.NoError(t, err)
}

func TestOutOfRangeStartSectorYieldsZeroBytesOnRead(t *testing.T) {
	dev := testutil.NewGrowableDevice()
	c, err := CreateWriter(dev)
	require.NoError(t, err)

	root := c.Root()
	entry, err := c.CreateStream(root, "ghost", bytes.Repeat([]byte{1}, int(header.DefaultMiniCutoff)+1))
	require.NoError(t, err)
	require.NoError(t, c.Save())

	raw := c.tree.Get(entry.ID)
	raw.Start = alloc.MaxRegSect
	c.tree.Put(entry.ID, raw)
	require.NoError(t, c.Save())

	sink := diag.NewCollectingSink()
	reopened, err := OpenReaderWithSink(dev, sink)
	require.NoError(t, err)
	assert.NotEmpty(t, sink.Diagnostics())

	found, err := reopened.OpenPath("ghost")
	require.NoError(t, err)
	s, err := found.Open()
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err := s.Read(buf)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}
