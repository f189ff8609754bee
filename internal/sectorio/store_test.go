package sectorio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warlomak/compoundfiles/internal/diag"
	"github.com/warlomak/compoundfiles/testutil"
)

func newTestStore(t *testing.T, size int64, sectorSize uint32, sink diag.Sink) *Store {
	t.Helper()
	dev := testutil.NewGrowableDevice()
	require.NoError(t, dev.Truncate(size))
	store := New(NewSeekerDevice(dev), sectorSize, sink)
	return store
}

func TestOffsetMath(t *testing.T) {
	s := newTestStore(t, HeaderSize+4096, 512, nil)
	assert.EqualValues(t, 512, s.Offset(0))
	assert.EqualValues(t, 1024, s.Offset(1))
	assert.EqualValues(t, 512+512*7, s.Offset(7))
}

func TestWriteThenReadSectorRoundTrip(t *testing.T) {
	s := newTestStore(t, HeaderSize+512*4, 512, nil)
	payload := make([]byte, 512)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, s.WriteSector(2, payload))

	got, err := s.ReadSector(2)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadPastEndIsTruncatedNotFatal(t *testing.T) {
	collecting := diag.NewCollectingSink()
	s := newTestStore(t, HeaderSize+256, 512, collecting)

	got, err := s.ReadSector(0)
	require.NoError(t, err)
	assert.Len(t, got, 512)
	// First 256 bytes come from the device; the remainder is zero-filled.
	for i := 256; i < 512; i++ {
		assert.Zero(t, got[i])
	}
	assert.NotNil(t, collecting.Warnings())
	assert.Contains(t, collecting.Warnings().Error(), "TruncatedWarning")
}

func TestGrowByAppendsSectors(t *testing.T) {
	s := newTestStore(t, HeaderSize, 512, nil)
	total, err := s.TotalSectors()
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)

	first, err := s.GrowBy(3)
	require.NoError(t, err)
	assert.EqualValues(t, 0, first)

	total, err = s.TotalSectors()
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
}

func TestWriteSectorRejectsWrongSize(t *testing.T) {
	s := newTestStore(t, HeaderSize+512, 512, nil)
	err := s.WriteSector(0, make([]byte, 10))
	assert.Error(t, err)
}
