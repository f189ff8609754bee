package header

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warlomak/compoundfiles/internal/diag"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := NewV3()
	h.NumFatSectors = 1
	h.DirectorySectorLoc = 1
	h.InitialDifats[0] = 0

	encoded := h.Encode()
	require.Len(t, encoded, Size)

	decoded, err := Decode(encoded, nil)
	require.NoError(t, err)
	assert.Equal(t, h.MajorVersion, decoded.MajorVersion)
	assert.Equal(t, h.MinorVersion, decoded.MinorVersion)
	assert.Equal(t, h.SectorShift, decoded.SectorShift)
	assert.Equal(t, h.NumFatSectors, decoded.NumFatSectors)
	assert.Equal(t, h.DirectorySectorLoc, decoded.DirectorySectorLoc)
	assert.Equal(t, h.MiniStreamCutoff, decoded.MiniStreamCutoff)
	assert.Equal(t, h.InitialDifats, decoded.InitialDifats)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	h := NewV3()
	encoded := h.Encode()
	encoded[0] ^= 0xFF

	_, err := Decode(encoded, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestDecodeRejectsBadBom(t *testing.T) {
	h := NewV3()
	encoded := h.Encode()
	encoded[28] = 0x00
	encoded[29] = 0x00

	_, err := Decode(encoded, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidBom)
}

func TestDecodeRejectsBadMajorVersion(t *testing.T) {
	h := NewV3()
	h.MajorVersion = 7
	encoded := h.Encode()

	_, err := Decode(encoded, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadVersion)
}

func TestDecodeWarnsOnNonstandardMiniCutoff(t *testing.T) {
	h := NewV3()
	h.MiniStreamCutoff = 2048
	encoded := h.Encode()

	sink := diag.NewCollectingSink()
	decoded, err := Decode(encoded, sink)
	require.NoError(t, err)
	assert.EqualValues(t, 2048, decoded.MiniStreamCutoff, "header value must be honored")
	require.Error(t, sink.Warnings())
	assert.Contains(t, sink.Warnings().Error(), "HeaderWarning")
}

func TestSectorSize(t *testing.T) {
	h := NewV3()
	assert.EqualValues(t, 512, h.SectorSize())

	h.MajorVersion = 4
	h.SectorShift = 12
	assert.EqualValues(t, 4096, h.SectorSize())
}
