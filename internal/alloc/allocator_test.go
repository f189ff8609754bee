package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warlomak/compoundfiles/internal/diag"
	"github.com/warlomak/compoundfiles/internal/sectorio"
	"github.com/warlomak/compoundfiles/testutil"
)

func newTestAllocator(t *testing.T) *Allocator {
	t.Helper()
	dev := testutil.NewGrowableDevice()
	require.NoError(t, dev.Truncate(sectorio.HeaderSize))
	store := sectorio.New(sectorio.NewSeekerDevice(dev), 512, nil)
	return New(store, nil)
}

func bootstrapped(t *testing.T) *Allocator {
	t.Helper()
	a := newTestAllocator(t)
	dirSector, err := a.store.GrowBy(1)
	require.NoError(t, err)
	require.EqualValues(t, 0, dirSector)
	require.NoError(t, a.Bootstrap(dirSector))
	return a
}

func TestBootstrapCreatesOneFatSector(t *testing.T) {
	a := bootstrapped(t)
	assert.Len(t, a.fatSectorLocs, 1)
	assert.EqualValues(t, FatSect, a.fat[a.fatSectorLocs[0]])
	assert.EqualValues(t, EndOfChain, a.fat[0])
}

func TestAllocateAndChainRoundTrip(t *testing.T) {
	a := bootstrapped(t)
	head, err := a.Allocate(3, Normal)
	require.NoError(t, err)

	chain, err := a.Chain(head, Normal)
	require.NoError(t, err)
	assert.Len(t, chain, 3)
}

func TestExtendChain(t *testing.T) {
	a := bootstrapped(t)
	head, err := a.Allocate(2, Normal)
	require.NoError(t, err)

	newHead, tail, err := a.Extend(head, 2, Normal)
	require.NoError(t, err)
	assert.Equal(t, head, newHead)

	chain, err := a.Chain(head, Normal)
	require.NoError(t, err)
	assert.Len(t, chain, 4)
	assert.Equal(t, tail, chain[len(chain)-1])
}

func TestFreeThenReuse(t *testing.T) {
	a := bootstrapped(t)
	head, err := a.Allocate(2, Normal)
	require.NoError(t, err)
	require.NoError(t, a.Free(head, Normal))

	totalBefore := len(a.fat)
	next, err := a.Allocate(1, Normal)
	require.NoError(t, err)
	assert.Len(t, a.fat, totalBefore, "freed sectors should be reused, not grown past")
	_ = next
}

func TestTruncateToZeroFreesChain(t *testing.T) {
	a := bootstrapped(t)
	head, err := a.Allocate(3, Normal)
	require.NoError(t, err)

	newStart, err := a.Truncate(head, 0, Normal)
	require.NoError(t, err)
	assert.Equal(t, EndOfChain, newStart)
}

func TestTruncateShortensChain(t *testing.T) {
	a := bootstrapped(t)
	head, err := a.Allocate(4, Normal)
	require.NoError(t, err)

	newStart, err := a.Truncate(head, 2, Normal)
	require.NoError(t, err)
	assert.Equal(t, head, newStart)

	chain, err := a.Chain(head, Normal)
	require.NoError(t, err)
	assert.Len(t, chain, 2)
}

func TestChainDetectsLoop(t *testing.T) {
	a := bootstrapped(t)
	head, err := a.Allocate(3, Normal)
	require.NoError(t, err)

	chain, err := a.Chain(head, Normal)
	require.NoError(t, err)
	// Force a self-loop: FAT[last] = last.
	last := chain[len(chain)-1]
	a.fat[last] = last

	_, err = a.Chain(head, Normal)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNormalLoop)
}

func TestChainDetectsOutOfRange(t *testing.T) {
	a := bootstrapped(t)
	head, err := a.Allocate(1, Normal)
	require.NoError(t, err)
	a.fat[head] = SectorID(999999)

	_, err = a.Chain(head, Normal)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLargeNormalFat)
}

func Test110thDifatEntryAllocatesDifatSector(t *testing.T) {
	a := bootstrapped(t)
	// Already have 1 FAT sector from Bootstrap. Force 108 more directly so
	// the next growth crosses the 109-inline boundary.
	for i := 0; i < 108; i++ {
		require.NoError(t, a.growFATCapacity())
	}
	assert.Len(t, a.fatSectorLocs, 109)
	assert.Empty(t, a.difatSectorLocs)

	require.NoError(t, a.growFATCapacity())
	assert.Len(t, a.fatSectorLocs, 110)
	assert.Len(t, a.difatSectorLocs, 1, "the 110th FAT sector location needs a DIFAT overflow sector")
}

func TestMiniPoolAllocationGrowsMinistream(t *testing.T) {
	a := bootstrapped(t)
	require.NoError(t, a.SetMiniStreamRoot(EndOfChain, 0))

	head, err := a.Allocate(1, Mini)
	require.NoError(t, err)
	assert.EqualValues(t, 0, head)
	assert.Len(t, a.miniStreamChain, 1, "allocating the first mini sector must grow the ministream by one normal sector")

	perNormal := a.sectorSize / MiniSectorSize
	_, err = a.Allocate(perNormal, Mini)
	require.NoError(t, err)
	assert.Len(t, a.miniStreamChain, 2, "exhausting the mini sectors in one normal sector must grow the ministream again")
}

func TestMiniSectorReadWriteTranslatesThroughMinistream(t *testing.T) {
	a := bootstrapped(t)
	require.NoError(t, a.SetMiniStreamRoot(EndOfChain, 0))

	id, err := a.Allocate(1, Mini)
	require.NoError(t, err)

	payload := make([]byte, MiniSectorSize)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	require.NoError(t, a.WriteSectorBytes(id, Mini, payload))

	got, err := a.ReadSectorBytes(id, Mini)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDiagnosticPushedOnMismatchedDifatCount(t *testing.T) {
	a := bootstrapped(t)
	head, err := a.Allocate(1, Normal)
	require.NoError(t, err)
	_ = head

	sink := diag.NewCollectingSink()
	a2 := New(a.store, sink)
	var initial [109]uint32
	for i := range initial {
		initial[i] = uint32(FreeSect)
	}
	initial[0] = uint32(a.fatSectorLocs[0])
	require.NoError(t, a2.LoadFAT(initial, EndOfChain, 0, 2))
	require.NotNil(t, sink.Warnings())
}
