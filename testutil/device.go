// Package testutil provides in-memory device helpers for exercising the
// container engine without touching the filesystem, in the idiom of the
// teacher's testing/images.go (which wraps byte slices as
// io.ReadWriteSeeker via github.com/xaionaro-go/bytesextra for read-only
// fixture images).
package testutil

import (
	"bytes"
	"io"

	"github.com/xaionaro-go/bytesextra"
)

// FixedDevice wraps a pre-built, fixed-size byte slice as an
// io.ReadWriteSeeker, exactly as the teacher's LoadDiskImage helper does
// for disk image fixtures. Use it for Reader scenarios where the full
// container image is already known and never needs to grow.
func FixedDevice(data []byte) io.ReadWriteSeeker {
	return bytesextra.NewReadWriteSeeker(data)
}

// GrowableDevice is a minimal io.ReadWriteSeeker over an in-memory buffer
// that grows on demand, for Writer/Editor scenarios that allocate new
// sectors. bytesextra's wrapper is intentionally fixed-size (as the
// teacher documents), so creation/growth tests need this instead.
type GrowableDevice struct {
	buf *bytes.Buffer
	pos int64
}

// NewGrowableDevice returns an empty growable device.
func NewGrowableDevice() *GrowableDevice {
	return &GrowableDevice{buf: &bytes.Buffer{}}
}

func (g *GrowableDevice) ensure(size int64) {
	if int64(g.buf.Len()) >= size {
		return
	}
	g.buf.Write(make([]byte, size-int64(g.buf.Len())))
}

func (g *GrowableDevice) Len() (int64, error) {
	return int64(g.buf.Len()), nil
}

func (g *GrowableDevice) Truncate(size int64) error {
	if size < 0 {
		return io.ErrShortBuffer
	}
	if size >= int64(g.buf.Len()) {
		g.ensure(size)
		return nil
	}
	data := g.buf.Bytes()[:size]
	g.buf = bytes.NewBuffer(append([]byte(nil), data...))
	if g.pos > size {
		g.pos = size
	}
	return nil
}

func (g *GrowableDevice) ReadAt(p []byte, off int64) (int, error) {
	data := g.buf.Bytes()
	if off >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (g *GrowableDevice) WriteAt(p []byte, off int64) (int, error) {
	g.ensure(off + int64(len(p)))
	data := g.buf.Bytes()
	copy(data[off:], p)
	return len(p), nil
}

func (g *GrowableDevice) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = g.pos + offset
	case io.SeekEnd:
		abs = int64(g.buf.Len()) + offset
	default:
		return 0, io.ErrUnexpectedEOF
	}
	if abs < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	g.pos = abs
	return abs, nil
}

func (g *GrowableDevice) Read(p []byte) (int, error) {
	n, err := g.ReadAt(p, g.pos)
	g.pos += int64(n)
	return n, err
}

func (g *GrowableDevice) Write(p []byte) (int, error) {
	n, err := g.WriteAt(p, g.pos)
	g.pos += int64(n)
	return n, err
}

// Flush is a no-op: GrowableDevice is purely in-memory, the allowance the
// sectorio.Device interface documents for in-memory devices.
func (g *GrowableDevice) Flush() error {
	return nil
}

// Bytes returns a copy of the current contents.
func (g *GrowableDevice) Bytes() []byte {
	out := make([]byte, g.buf.Len())
	copy(out, g.buf.Bytes())
	return out
}
