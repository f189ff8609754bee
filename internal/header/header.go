// Package header implements the Header Codec: decoding and encoding of the
// fixed 512-byte CFB file header described in spec.md §3 and §4.1.
package header

import (
	"encoding/binary"
	"fmt"

	"github.com/noxer/bytewriter"

	"github.com/warlomak/compoundfiles/internal/diag"
)

// Signature is the magic 8 bytes every CFB file starts with.
const Signature uint64 = 0xE11AB1A1E011CFD0

// byteOrderMark is the required little-endian BOM value.
const byteOrderMark uint16 = 0xFFFE

// Size is the fixed on-disk size of the header.
const Size = 512

// DefaultMiniCutoff is the standard mini-stream cutoff size.
const DefaultMiniCutoff uint32 = 4096

// MiniSectorExponent is fixed by the format: mini sectors are always 64
// bytes (1 << 6).
const MiniSectorExponent uint16 = 6

// Header is the in-memory, already-validated form of the 512-byte on-disk
// header.
type Header struct {
	MinorVersion uint16
	MajorVersion uint16 // 3 or 4

	SectorShift     uint16 // 9 (512B) or 12 (4096B)
	MiniSectorShift uint16 // always 6 (64B)

	NumDirectorySectors uint32 // 0 for v3
	NumFatSectors       uint32
	DirectorySectorLoc  uint32

	TransactionSignature uint32

	// MiniStreamCutoff is the effective cutoff honored for pool-placement
	// decisions. Per SPEC_FULL.md §9, the header's own value is used even
	// when it differs from 4096; a HeaderWarning is pushed in that case. A
	// zero cutoff is the one exception: it is replaced by 4096.
	MiniStreamCutoff uint32

	MiniFatSectorLoc  uint32
	NumMiniFatSectors uint32

	DifatSectorLoc  uint32
	NumDifatSectors uint32

	InitialDifats [109]uint32
}

// SectorSize returns the sector size in bytes implied by SectorShift.
func (h *Header) SectorSize() uint32 {
	return 1 << h.SectorShift
}

// Decode parses the first Size bytes of a container image. Structural
// impossibilities (bad magic, bad byte order, unsupported major version)
// are returned as a fatal error; everything else non-conforming is pushed
// to sink as a recoverable diagnostic and a best-effort value is used, per
// spec.md §4.1.
func Decode(data []byte, sink diag.Sink) (*Header, error) {
	if sink == nil {
		sink = diag.NopSink{}
	}
	if len(data) < Size {
		return nil, fmt.Errorf("header: need %d bytes, got %d", Size, len(data))
	}

	sig := binary.LittleEndian.Uint64(data[0:8])
	if sig != Signature {
		return nil, fmt.Errorf("header: %w", ErrInvalidMagic)
	}

	bom := binary.LittleEndian.Uint16(data[28:30])
	if bom != byteOrderMark {
		return nil, fmt.Errorf("header: %w", ErrInvalidBom)
	}

	h := &Header{}
	h.MinorVersion = binary.LittleEndian.Uint16(data[24:26])
	h.MajorVersion = binary.LittleEndian.Uint16(data[26:28])
	h.SectorShift = binary.LittleEndian.Uint16(data[30:32])
	h.MiniSectorShift = binary.LittleEndian.Uint16(data[32:34])

	if h.MajorVersion != 3 && h.MajorVersion != 4 {
		return nil, fmt.Errorf("header: %w: major version %d", ErrBadVersion, h.MajorVersion)
	}

	expectedShift := uint16(9)
	if h.MajorVersion == 4 {
		expectedShift = 12
	}
	if h.SectorShift != expectedShift {
		sink.Push(diag.Diagnostic{
			Code: diag.SectorSizeWarning,
			Message: fmt.Sprintf(
				"sector shift %d does not match major version %d (expected %d); trusting header value",
				h.SectorShift, h.MajorVersion, expectedShift),
		})
	}

	if h.MiniSectorShift != MiniSectorExponent {
		sink.Push(diag.Diagnostic{
			Code:    diag.HeaderWarning,
			Message: fmt.Sprintf("mini sector shift %d is not the standard %d", h.MiniSectorShift, MiniSectorExponent),
		})
	}

	// Reserved bytes at offset 34..40 must be zero.
	for _, b := range data[34:40] {
		if b != 0 {
			sink.Push(diag.Diagnostic{
				Code:    diag.HeaderWarning,
				Message: "reserved header bytes are non-zero",
			})
			break
		}
	}

	h.NumDirectorySectors = binary.LittleEndian.Uint32(data[40:44])
	h.NumFatSectors = binary.LittleEndian.Uint32(data[44:48])
	h.DirectorySectorLoc = binary.LittleEndian.Uint32(data[48:52])
	h.TransactionSignature = binary.LittleEndian.Uint32(data[52:56])

	h.MiniStreamCutoff = binary.LittleEndian.Uint32(data[56:60])
	if h.MiniStreamCutoff != DefaultMiniCutoff {
		sink.Push(diag.Diagnostic{
			Code:    diag.HeaderWarning,
			Message: fmt.Sprintf("mini-stream cutoff is %d, not the standard %d; honoring header value", h.MiniStreamCutoff, DefaultMiniCutoff),
		})
		if h.MiniStreamCutoff == 0 {
			h.MiniStreamCutoff = DefaultMiniCutoff
		}
	}

	h.MiniFatSectorLoc = binary.LittleEndian.Uint32(data[60:64])
	h.NumMiniFatSectors = binary.LittleEndian.Uint32(data[64:68])
	h.DifatSectorLoc = binary.LittleEndian.Uint32(data[68:72])
	h.NumDifatSectors = binary.LittleEndian.Uint32(data[72:76])

	if h.MajorVersion == 3 && h.NumDirectorySectors != 0 {
		sink.Push(diag.Diagnostic{
			Code:    diag.VersionWarning,
			Message: "version 3 header declares non-zero directory sector count",
		})
	}

	if h.MinorVersion != 0x003E {
		sink.Push(diag.Diagnostic{
			Code:    diag.VersionWarning,
			Message: fmt.Sprintf("unrecognized minor version 0x%04X", h.MinorVersion),
		})
	}

	for i := 0; i < 109; i++ {
		off := 76 + i*4
		h.InitialDifats[i] = binary.LittleEndian.Uint32(data[off : off+4])
	}

	return h, nil
}

// Encode serializes h back into a Size-byte header, using
// github.com/noxer/bytewriter the way the teacher formats fixed-layout
// on-disk structures in file_systems/unixv1/format.go: a sequential writer
// over a pre-sized destination slice.
func (h *Header) Encode() []byte {
	buf := make([]byte, Size)
	w := bytewriter.New(buf)

	binary.Write(w, binary.LittleEndian, Signature)
	w.Write(make([]byte, 16)) // CLSID, must be zero
	binary.Write(w, binary.LittleEndian, h.MinorVersion)
	binary.Write(w, binary.LittleEndian, h.MajorVersion)
	binary.Write(w, binary.LittleEndian, byteOrderMark)
	binary.Write(w, binary.LittleEndian, h.SectorShift)
	binary.Write(w, binary.LittleEndian, h.MiniSectorShift)
	w.Write(make([]byte, 6)) // reserved
	binary.Write(w, binary.LittleEndian, h.NumDirectorySectors)
	binary.Write(w, binary.LittleEndian, h.NumFatSectors)
	binary.Write(w, binary.LittleEndian, h.DirectorySectorLoc)
	binary.Write(w, binary.LittleEndian, h.TransactionSignature)
	binary.Write(w, binary.LittleEndian, h.MiniStreamCutoff)
	binary.Write(w, binary.LittleEndian, h.MiniFatSectorLoc)
	binary.Write(w, binary.LittleEndian, h.NumMiniFatSectors)
	binary.Write(w, binary.LittleEndian, h.DifatSectorLoc)
	binary.Write(w, binary.LittleEndian, h.NumDifatSectors)
	for _, v := range h.InitialDifats {
		binary.Write(w, binary.LittleEndian, v)
	}

	return buf
}

// NewV3 builds a fresh version-3 (512-byte sector) header with an empty
// DIFAT, suitable for CreateWriter's create sequence (spec.md §4.6).
func NewV3() *Header {
	h := &Header{
		MinorVersion:     0x003E,
		MajorVersion:     3,
		SectorShift:      9,
		MiniSectorShift:  MiniSectorExponent,
		MiniStreamCutoff: DefaultMiniCutoff,
	}
	for i := range h.InitialDifats {
		h.InitialDifats[i] = uint32(0xFFFFFFFF) // FREESECT: unused slot
	}
	h.MiniFatSectorLoc = uint32(0xFFFFFFFE) // ENDOFCHAIN: no minifat yet
	h.DifatSectorLoc = uint32(0xFFFFFFFE)
	return h
}

// NewV4 builds a fresh version-4 (4096-byte sector) header, for
// containers expected to outgrow the more common v3/512-byte layout.
func NewV4() *Header {
	h := NewV3()
	h.MajorVersion = 4
	h.SectorShift = 12
	// Version 4 directories always span whole sector multiples even when
	// mostly empty; one sector is still correct for a fresh container.
	h.NumDirectorySectors = 1
	return h
}
