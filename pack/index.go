package pack

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/zetavcs/zeta/zerr"
	"github.com/zetavcs/zeta/zoid"
)

// Pack-index v2 layout (spec §4.3 "Pack-index v2"), adapted from the
// fanout/bounds search in _examples/antgroup-hugescm's pack index but
// against 20-byte SHA-1 object names, magic 0xFF744F63, version 2:
//
//	magic(4) version(4)
//	fanout table: 256 * uint32BE
//	sorted OIDs: count * 20 bytes
//	CRC32 table: count * uint32BE
//	small offsets: count * uint32BE (high bit set means "look up in large offset table")
//	large offsets: variable * uint64BE
//	pack checksum: 20 bytes
//	index checksum: 20 bytes (SHA-1 of everything above)
var indexMagic = [4]byte{0xff, 0x74, 0x4f, 0x63}

const indexVersion = 2

const (
	fanoutEntries = 256
	oidSize       = zoid.Size
)

// Entry describes one object's location within a packfile.
type Entry struct {
	OID    zoid.OID
	Offset uint64
	CRC32  uint32
}

// Index is an in-memory (or mmap-backed, via raw bytes) pack-index v2.
type Index struct {
	fanout       [fanoutEntries]uint32
	oids         []zoid.OID
	crcs         []uint32
	smallOffsets []uint32
	largeOffsets []uint64
	packChecksum [oidSize]byte
}

// BuildIndex constructs a pack-index from a set of entries, sorting them by
// OID and building the fanout table (spec §4.3, §8 scenario 5).
func BuildIndex(entries []Entry, packChecksum [oidSize]byte) *Index {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].OID[:], sorted[j].OID[:]) < 0
	})

	idx := &Index{
		oids:         make([]zoid.OID, len(sorted)),
		crcs:         make([]uint32, len(sorted)),
		smallOffsets: make([]uint32, len(sorted)),
		packChecksum: packChecksum,
	}
	for i, e := range sorted {
		idx.oids[i] = e.OID
		idx.crcs[i] = e.CRC32
		if e.Offset > 0x7fffffff {
			idx.largeOffsets = append(idx.largeOffsets, e.Offset)
			idx.smallOffsets[i] = 0x80000000 | uint32(len(idx.largeOffsets)-1)
		} else {
			idx.smallOffsets[i] = uint32(e.Offset)
		}
	}
	for i := range idx.fanout {
		idx.fanout[i] = uint32(sort.Search(len(idx.oids), func(j int) bool {
			return idx.oids[j][0] > byte(i)
		}))
	}
	return idx
}

// Count returns the number of objects in the index.
func (idx *Index) Count() int { return len(idx.oids) }

// Lookup returns the Entry for oid, or false if it is not present. Lookup
// narrows via the fanout table then binary searches within the slot, so an
// OID whose leading byte has zero entries returns immediately without
// scanning (spec §8 scenario 5).
func (idx *Index) Lookup(oid zoid.OID) (Entry, bool) {
	lo, hi := idx.bounds(oid[0])
	if lo >= hi {
		return Entry{}, false
	}
	pos := lo + sort.Search(hi-lo, func(i int) bool {
		return bytes.Compare(idx.oids[lo+i][:], oid[:]) >= 0
	})
	if pos >= hi || idx.oids[pos] != oid {
		return Entry{}, false
	}
	return idx.entryAt(pos), true
}

func (idx *Index) entryAt(pos int) Entry {
	off := idx.smallOffsets[pos]
	var offset uint64
	if off&0x80000000 != 0 {
		offset = idx.largeOffsets[off&0x7fffffff]
	} else {
		offset = uint64(off)
	}
	return Entry{OID: idx.oids[pos], Offset: offset, CRC32: idx.crcs[pos]}
}

func (idx *Index) bounds(firstByte byte) (lo, hi int) {
	if firstByte == 0 {
		lo = 0
	} else {
		lo = int(idx.fanout[firstByte-1])
	}
	if firstByte == 255 {
		hi = len(idx.oids)
	} else {
		hi = int(idx.fanout[firstByte])
	}
	return lo, hi
}

// Encode serializes the index to the on-disk pack-index v2 format.
func (idx *Index) Encode() []byte {
	var buf bytes.Buffer
	buf.Write(indexMagic[:])
	writeU32(&buf, indexVersion)
	for _, f := range idx.fanout {
		writeU32(&buf, f)
	}
	for _, oid := range idx.oids {
		buf.Write(oid[:])
	}
	for _, c := range idx.crcs {
		writeU32(&buf, c)
	}
	for _, o := range idx.smallOffsets {
		writeU32(&buf, o)
	}
	for _, o := range idx.largeOffsets {
		writeU64(&buf, o)
	}
	buf.Write(idx.packChecksum[:])

	sum := sha1.Sum(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes()
}

// DecodeIndex parses a pack-index v2 byte stream.
func DecodeIndex(data []byte) (*Index, error) {
	if len(data) < 8+fanoutEntries*4+2*oidSize {
		return nil, zerr.NewPackFormatError("index truncated")
	}
	if !bytes.Equal(data[0:4], indexMagic[:]) {
		return nil, zerr.NewPackFormatError("bad index magic")
	}
	if v := binary.BigEndian.Uint32(data[4:8]); v != indexVersion {
		return nil, zerr.NewPackFormatError(fmt.Sprintf("unsupported index version %d", v))
	}

	want := data[len(data)-oidSize:]
	sum := sha1.Sum(data[:len(data)-oidSize])
	if !bytes.Equal(sum[:], want) {
		return nil, zerr.NewPackCorruptedError("index checksum mismatch")
	}

	idx := &Index{}
	off := 8
	for i := range idx.fanout {
		idx.fanout[i] = binary.BigEndian.Uint32(data[off : off+4])
		off += 4
	}
	count := int(idx.fanout[fanoutEntries-1])

	idx.oids = make([]zoid.OID, count)
	for i := 0; i < count; i++ {
		copy(idx.oids[i][:], data[off:off+oidSize])
		off += oidSize
	}

	idx.crcs = make([]uint32, count)
	for i := 0; i < count; i++ {
		idx.crcs[i] = binary.BigEndian.Uint32(data[off : off+4])
		off += 4
	}

	idx.smallOffsets = make([]uint32, count)
	largeCount := 0
	for i := 0; i < count; i++ {
		o := binary.BigEndian.Uint32(data[off : off+4])
		idx.smallOffsets[i] = o
		if o&0x80000000 != 0 {
			n := int(o&0x7fffffff) + 1
			if n > largeCount {
				largeCount = n
			}
		}
		off += 4
	}

	idx.largeOffsets = make([]uint64, largeCount)
	for i := 0; i < largeCount; i++ {
		idx.largeOffsets[i] = binary.BigEndian.Uint64(data[off : off+8])
		off += 8
	}

	copy(idx.packChecksum[:], data[off:off+oidSize])
	off += oidSize
	off += oidSize // index checksum, already verified above

	if off != len(data) {
		return nil, zerr.NewPackFormatError("trailing bytes after index checksum")
	}
	return idx, nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}
