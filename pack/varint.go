// Package pack implements the git pack v2 wire format and pack-index v2
// format used to batch and transfer objects (spec §3 "Pack object type",
// §4.3 "Pack codec (C5)").
package pack

import (
	"io"
)

// byteReader is the minimal interface needed to parse pack headers: a
// plain io.ByteReader suffices, but decode also wants a position-counting
// wrapper that is NOT a *bufio.Reader, so these functions take the
// interface rather than a concrete type.
type byteReader interface {
	io.ByteReader
}

// writeObjectHeader writes the variable-length object header: 3 bits of
// kind and the low 4 bits of size in the first byte, then the rest of the
// size in 7-bit groups, continuation bit set on every byte but the last
// (spec §4.3).
func writeObjectHeader(w io.Writer, kind byte, size uint64) error {
	first := (kind << 4) | byte(size&0x0f)
	size >>= 4
	if size != 0 {
		first |= 0x80
	}
	if _, err := w.Write([]byte{first}); err != nil {
		return err
	}
	for size != 0 {
		b := byte(size & 0x7f)
		size >>= 7
		if size != 0 {
			b |= 0x80
		}
		if _, err := w.Write([]byte{b}); err != nil {
			return err
		}
	}
	return nil
}

// readObjectHeader reads the variable-length object header written by
// writeObjectHeader, returning the object kind and size.
func readObjectHeader(r byteReader) (kind byte, size uint64, err error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	kind = (b >> 4) & 0x07
	size = uint64(b & 0x0f)
	shift := uint(4)
	for b&0x80 != 0 {
		b, err = r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		size |= uint64(b&0x7f) << shift
		shift += 7
	}
	return kind, size, nil
}

// writeOfsDeltaOffset encodes a negative relative offset as a run of 7-bit
// groups with the off-by-one continuation rule used by git's OFS_DELTA
// (spec §4.3): each continuation byte after the first represents
// "value = (value+1)<<7 | payload" on decode.
func writeOfsDeltaOffset(w io.Writer, offset uint64) error {
	var buf [10]byte
	n := len(buf)
	n--
	buf[n] = byte(offset & 0x7f)
	offset >>= 7
	for offset != 0 {
		offset--
		n--
		buf[n] = byte(offset&0x7f) | 0x80
		offset >>= 7
	}
	_, err := w.Write(buf[n:])
	return err
}

func readOfsDeltaOffset(r byteReader) (uint64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	offset := uint64(b & 0x7f)
	for b&0x80 != 0 {
		b, err = r.ReadByte()
		if err != nil {
			return 0, err
		}
		offset = (offset+1)<<7 | uint64(b&0x7f)
	}
	return offset, nil
}

// readDeltaVarint reads a base-128 varint as used inside a delta's
// base-size/result-size header (spec §4.3): little-endian groups, no
// off-by-one.
func readDeltaVarint(r io.ByteReader) (uint64, error) {
	var (
		val   uint64
		shift uint
	)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		val |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return val, nil
}

func writeDeltaVarint(buf []byte, val uint64) []byte {
	for {
		b := byte(val & 0x7f)
		val >>= 7
		if val != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if val == 0 {
			break
		}
	}
	return buf
}
