package sectorio

import (
	"fmt"

	"github.com/warlomak/compoundfiles/internal/diag"
)

// HeaderSize is the fixed size of the CFB header at the start of the file.
const HeaderSize = 512

// SectorID is a 32-bit sector identifier, used both for normal-pool sector
// numbers and as an index into the DIFAT/FAT. Using a distinct type (rather
// than bare uint32) keeps sector IDs and directory IDs from being mixed up
// at call sites, the same discipline the teacher applies to BlockID in
// drivers/common/blockdevice.go.
type SectorID uint32

const (
	MaxRegSect SectorID = 0xFFFFFFFA
	DifSect    SectorID = 0xFFFFFFFC
	FatSect    SectorID = 0xFFFFFFFD
	EndOfChain SectorID = 0xFFFFFFFE
	FreeSect   SectorID = 0xFFFFFFFF
)

// IsSentinel reports whether id is one of the reserved values rather than
// an addressable sector.
func (id SectorID) IsSentinel() bool {
	return id > MaxRegSect
}

// Store translates sector IDs to file offsets and performs fixed-size
// sector reads/writes against a Device. It owns no allocation policy; that
// lives in package alloc.
type Store struct {
	device     Device
	sectorSize uint32
	sink       diag.Sink
}

// New creates a Store over device using the given sector size (512 or
// 4096). sink receives Truncated diagnostics for reads that run past the
// end of the device.
func New(device Device, sectorSize uint32, sink diag.Sink) *Store {
	if sink == nil {
		sink = diag.NopSink{}
	}
	return &Store{device: device, sectorSize: sectorSize, sink: sink}
}

// SectorSize returns the configured sector size in bytes.
func (s *Store) SectorSize() uint32 {
	return s.sectorSize
}

// Offset computes the byte offset of sector id, per spec.md §4.2:
// sector_offset(id) = 512 + id * sector_size.
func (s *Store) Offset(id SectorID) int64 {
	return HeaderSize + int64(id)*int64(s.sectorSize)
}

// TotalSectors returns how many whole sectors currently exist past the
// header.
func (s *Store) TotalSectors() (uint32, error) {
	length, err := s.device.Len()
	if err != nil {
		return 0, err
	}
	if length <= HeaderSize {
		return 0, nil
	}
	return uint32((length - HeaderSize) / int64(s.sectorSize)), nil
}

// ReadSector reads one full sector. A read that runs past the end of the
// device is recoverable: the missing tail is zero-filled and a
// TruncatedWarning is pushed to the sink, per spec.md §4.2.
func (s *Store) ReadSector(id SectorID) ([]byte, error) {
	if id.IsSentinel() {
		return nil, fmt.Errorf("%w: %d is a sentinel value, not a sector", ErrOutOfRange, id)
	}
	buf := make([]byte, s.sectorSize)
	n, err := s.device.ReadAt(buf, s.Offset(id))
	if n == int(s.sectorSize) {
		return buf, nil
	}
	// Partial read: zero-fill and diagnose rather than fail.
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	s.sink.Push(diag.Diagnostic{
		Code:    diag.TruncatedWarning,
		Message: fmt.Sprintf("sector %d truncated: read %d of %d bytes", id, n, s.sectorSize),
		Err:     err,
	})
	return buf, nil
}

// WriteSector writes exactly one sector's worth of data at id, growing the
// device first if necessary.
func (s *Store) WriteSector(id SectorID, data []byte) error {
	if id.IsSentinel() {
		return fmt.Errorf("%w: %d is a sentinel value, not a sector", ErrOutOfRange, id)
	}
	if uint32(len(data)) != s.sectorSize {
		return fmt.Errorf("sectorio: write of %d bytes is not one sector (%d bytes)", len(data), s.sectorSize)
	}
	needed := s.Offset(id) + int64(s.sectorSize)
	length, err := s.device.Len()
	if err != nil {
		return err
	}
	if needed > length {
		if err := s.device.Truncate(needed); err != nil {
			return err
		}
	}
	_, err = s.device.WriteAt(data, s.Offset(id))
	return err
}

// GrowBy appends count freshly zeroed sectors to the device and returns the
// ID of the first one, implementing the Allocator's "append a fresh
// sector" growth step from spec.md §4.3.
func (s *Store) GrowBy(count uint32) (SectorID, error) {
	total, err := s.TotalSectors()
	if err != nil {
		return 0, err
	}
	first := SectorID(total)
	newLen := s.Offset(first) + int64(count)*int64(s.sectorSize)
	if err := s.device.Truncate(newLen); err != nil {
		return 0, err
	}
	return first, nil
}

// Flush delegates to the underlying Device.
func (s *Store) Flush() error {
	return s.device.Flush()
}
