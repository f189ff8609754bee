package chain

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warlomak/compoundfiles/internal/alloc"
	"github.com/warlomak/compoundfiles/internal/sectorio"
	"github.com/warlomak/compoundfiles/testutil"
)

func newTestAllocator(t *testing.T) *alloc.Allocator {
	t.Helper()
	dev := testutil.NewGrowableDevice()
	require.NoError(t, dev.Truncate(sectorio.HeaderSize))
	store := sectorio.New(sectorio.NewSeekerDevice(dev), 512, nil)
	a := alloc.New(store, nil)

	dirSector, err := store.GrowBy(1)
	require.NoError(t, err)
	require.NoError(t, a.Bootstrap(dirSector))
	require.NoError(t, a.SetMiniStreamRoot(alloc.EndOfChain, 0))
	return a
}

func TestWriteThenReadBackWithinMiniPool(t *testing.T) {
	a := newTestAllocator(t)
	s := New(a, alloc.EndOfChain, 0, alloc.Mini, 4096)

	payload := []byte("hello, compound file")
	n, err := s.Write(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, alloc.Mini, s.Pool())

	out := make([]byte, len(payload))
	_, err = s.ReadAt(out, 0)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestCrossCutoffWriteMigratesToNormalPoolExactlyOnce(t *testing.T) {
	a := newTestAllocator(t)
	s := New(a, alloc.EndOfChain, 0, alloc.Mini, 4096)

	payload := make([]byte, 5000)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	_, err := s.Write(payload)
	require.NoError(t, err)

	assert.Equal(t, alloc.Normal, s.Pool())
	assert.EqualValues(t, 5000, s.Size())

	chain, err := a.Chain(s.StartSector(), alloc.Normal)
	require.NoError(t, err)
	assert.Len(t, chain, 10, "5000 bytes at 512-byte sectors needs 10 normal sectors")

	out := make([]byte, 5000)
	_, err = s.ReadAt(out, 0)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestTruncateBelowCutoffMigratesBackToMiniPool(t *testing.T) {
	a := newTestAllocator(t)
	s := New(a, alloc.EndOfChain, 0, alloc.Mini, 4096)

	payload := make([]byte, 5000)
	_, err := s.Write(payload)
	require.NoError(t, err)
	require.Equal(t, alloc.Normal, s.Pool())

	require.NoError(t, s.Truncate(100))
	assert.Equal(t, alloc.Mini, s.Pool())
	assert.EqualValues(t, 100, s.Size())
}

func TestReadPastEndReturnsEOF(t *testing.T) {
	a := newTestAllocator(t)
	s := New(a, alloc.EndOfChain, 0, alloc.Mini, 4096)
	_, err := s.Write([]byte("short"))
	require.NoError(t, err)

	buf := make([]byte, 10)
	n, err := s.ReadAt(buf, 2)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 3, n)
}

func TestSeekAndSequentialWrite(t *testing.T) {
	a := newTestAllocator(t)
	s := New(a, alloc.EndOfChain, 0, alloc.Mini, 4096)

	_, err := s.Write([]byte("0123456789"))
	require.NoError(t, err)

	pos, err := s.Seek(3, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 3, pos)

	_, err = s.Write([]byte("XYZ"))
	require.NoError(t, err)

	out := make([]byte, 10)
	_, err = s.ReadAt(out, 0)
	require.NoError(t, err)
	assert.Equal(t, "012XYZ6789", string(out))
}
