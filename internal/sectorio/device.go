// Package sectorio implements the Byte Device and Sector Store layers: a
// random-access file-like abstraction and the translation from sector
// identifiers to byte offsets in the underlying device.
package sectorio

import (
	"fmt"
	"io"
)

// Device is the random-access byte device the container is built on top
// of. Both memory-mapped and plain buffered implementations satisfy it;
// the engine only ever asks for reads and writes at an absolute offset
// plus a length query, a truncate (used to grow the device), and a flush.
type Device interface {
	io.ReaderAt
	io.WriterAt
	// Len returns the current length of the device, in bytes.
	Len() (int64, error)
	// Truncate resizes the device to exactly size bytes, zero-filling any
	// new region.
	Truncate(size int64) error
	// Flush pushes any buffered writes to stable storage. A purely
	// in-memory device may treat this as a no-op.
	Flush() error
}

// SeekerDevice adapts an io.ReadWriteSeeker (such as an *os.File or the
// buffers built by testutil) into a Device by measuring length with Seek
// and serializing ReadAt/WriteAt through Seek, the same pattern the teacher
// uses in drivers/common/blockdevice.go's BlockDevice.Read/Write.
type SeekerDevice struct {
	rws io.ReadWriteSeeker
}

// NewSeekerDevice wraps rws as a Device.
func NewSeekerDevice(rws io.ReadWriteSeeker) *SeekerDevice {
	return &SeekerDevice{rws: rws}
}

func (d *SeekerDevice) Len() (int64, error) {
	cur, err := d.rws.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := d.rws.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := d.rws.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	return end, nil
}

func (d *SeekerDevice) ReadAt(p []byte, off int64) (int, error) {
	if _, err := d.rws.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return io.ReadFull(d.rws, p)
}

func (d *SeekerDevice) WriteAt(p []byte, off int64) (int, error) {
	if _, err := d.rws.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return d.rws.Write(p)
}

func (d *SeekerDevice) Truncate(size int64) error {
	if t, ok := d.rws.(interface{ Truncate(int64) error }); ok {
		return t.Truncate(size)
	}

	length, err := d.Len()
	if err != nil {
		return err
	}
	if size <= length {
		return nil
	}
	// No native Truncate: grow by writing zeros, matching the behavior
	// documented for SectorStore growth (explicit append, never shrink
	// implicitly on devices that can't shrink).
	pad := make([]byte, size-length)
	_, err = d.WriteAt(pad, length)
	return err
}

func (d *SeekerDevice) Flush() error {
	if f, ok := d.rws.(interface{ Sync() error }); ok {
		return f.Sync()
	}
	return nil
}

// ErrOutOfRange is returned by Store operations addressing a sector ID
// that cannot possibly be valid (negative offset, absurd magnitude).
var ErrOutOfRange = fmt.Errorf("sectorio: sector id out of range")
