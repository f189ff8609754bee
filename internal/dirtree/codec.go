package dirtree

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/noxer/bytewriter"

	"github.com/warlomak/compoundfiles/internal/alloc"
	"github.com/warlomak/compoundfiles/internal/diag"
)

// EntrySize is the fixed on-disk size of one directory entry, per
// spec.md §6's directory entry layout.
const EntrySize = 128

const maxNameCodeUnits = 31

// DecodeEntry parses one 128-byte directory entry. Malformed fields are
// recoverable: the decoder substitutes a safe default and pushes a
// diagnostic rather than failing the whole load. majorVersion is the
// container's header major version (3 or 4): version 3 requires the upper
// 32 bits of the on-disk stream size to be zero, per spec.md §4.1.
func DecodeEntry(buf []byte, sink diag.Sink, index DirID, majorVersion uint16) (Entry, error) {
	if sink == nil {
		sink = diag.NopSink{}
	}
	if len(buf) < EntrySize {
		return Entry{}, fmt.Errorf("dirtree: need %d bytes, got %d", EntrySize, len(buf))
	}

	var e Entry

	nameLenBytes := binary.LittleEndian.Uint16(buf[64:66])
	nameUnits := 0
	if nameLenBytes >= 2 {
		nameUnits = int(nameLenBytes/2) - 1 // exclude the null terminator
	}
	if nameUnits < 0 || nameUnits > maxNameCodeUnits {
		sink.Push(diag.Diagnostic{
			Code:    diag.DirNameWarning,
			Message: fmt.Sprintf("entry %d: invalid name length %d bytes, truncating to empty", index, nameLenBytes),
		})
		nameUnits = 0
	}
	units := make([]uint16, nameUnits)
	for i := 0; i < nameUnits; i++ {
		units[i] = binary.LittleEndian.Uint16(buf[i*2 : i*2+2])
	}
	e.Name = string(utf16.Decode(units))

	e.Type = EntryType(buf[66])
	switch e.Type {
	case TypeEmpty, TypeStorage, TypeStream, TypeRoot:
	default:
		sink.Push(diag.Diagnostic{
			Code:    diag.DirTypeWarning,
			Message: fmt.Sprintf("entry %d: unrecognized type %d, treating as empty", index, e.Type),
		})
		e.Type = TypeEmpty
	}

	switch buf[67] {
	case 0:
		e.Color = Red
	case 1:
		e.Color = Black
	default:
		sink.Push(diag.Diagnostic{
			Code:    diag.DirIndexWarning,
			Message: fmt.Sprintf("entry %d: invalid color byte %d, defaulting to black", index, buf[67]),
		})
		e.Color = Black
	}

	e.Left = decodeDirID(buf[68:72])
	e.Right = decodeDirID(buf[72:76])
	e.Child = decodeDirID(buf[76:80])
	copy(e.CLSID[:], buf[80:96])
	e.State = binary.LittleEndian.Uint32(buf[96:100])
	e.CreatedAt = binary.LittleEndian.Uint64(buf[100:108])
	e.ModifiedAt = binary.LittleEndian.Uint64(buf[108:116])

	startRaw := binary.LittleEndian.Uint32(buf[116:120])
	e.Start = alloc.SectorID(startRaw)

	size := binary.LittleEndian.Uint64(buf[120:128])
	if majorVersion == 3 && size>>32 != 0 {
		sink.Push(diag.Diagnostic{
			Code:    diag.DirSizeWarning,
			Message: fmt.Sprintf("entry %d: version 3 stream size has non-zero high bits (0x%016X), clearing them", index, size),
		})
		size &= 0xFFFFFFFF
	}
	e.Size = size

	e.Parent = NoStream
	return e, nil
}

func decodeDirID(b []byte) DirID {
	return DirID(binary.LittleEndian.Uint32(b))
}

// EncodeEntry serializes e into a fresh EntrySize-byte buffer, using
// github.com/noxer/bytewriter the same way the header codec formats
// fixed-layout on-disk structures.
func EncodeEntry(e Entry) []byte {
	buf := make([]byte, EntrySize)
	w := bytewriter.New(buf)

	units := utf16.Encode([]rune(e.Name))
	if len(units) > maxNameCodeUnits {
		units = units[:maxNameCodeUnits]
	}
	nameBytes := make([]byte, 64)
	for i, u := range units {
		binary.LittleEndian.PutUint16(nameBytes[i*2:i*2+2], u)
	}
	w.Write(nameBytes)

	nameLenBytes := uint16(0)
	if len(units) > 0 {
		nameLenBytes = uint16((len(units) + 1) * 2)
	}
	binary.Write(w, binary.LittleEndian, nameLenBytes)

	w.Write([]byte{byte(e.Type)})
	w.Write([]byte{byte(e.Color)})

	binary.Write(w, binary.LittleEndian, uint32(e.Left))
	binary.Write(w, binary.LittleEndian, uint32(e.Right))
	binary.Write(w, binary.LittleEndian, uint32(e.Child))
	w.Write(e.CLSID[:])
	binary.Write(w, binary.LittleEndian, e.State)
	binary.Write(w, binary.LittleEndian, e.CreatedAt)
	binary.Write(w, binary.LittleEndian, e.ModifiedAt)
	binary.Write(w, binary.LittleEndian, uint32(e.Start))
	binary.Write(w, binary.LittleEndian, e.Size)

	return buf
}
