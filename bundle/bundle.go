// Package bundle implements the warm-tier bundle format, writer, and
// reader (spec §4.3/§4.4, components C6-C8): an immutable, flat batch of
// objects with a fixed 64-byte header, OID-sorted payloads, and a
// fixed-size-entry index, stored in a remote object bucket. Payloads are
// stored zstd-compressed, not raw.
//
// It is grounded on the teacher's pack storage shape in
// modules/zeta/backend/pack/storage.go (fixed header + index-at-tail
// layout) simplified per spec §3: no delta chain, no spill table, and a
// 16-byte XOR checksum in place of the teacher's per-entry CRC64.
package bundle

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/zetavcs/zeta/internal/streamio"
	"github.com/zetavcs/zeta/zerr"
	"github.com/zetavcs/zeta/zoid"
)

var bundleMagic = [4]byte{'B', 'N', 'D', 'L'}

const bundleVersion = 1

// headerSize is the fixed on-disk header: magic(4) + version(4) +
// entryCount(4) + indexOffset(8) + totalSize(8) + checksum(16), then
// zero padding up to 64 bytes.
const headerSize = 64

// entrySize is one index entry: OID(20) + offset(8) + size(4) + kind(1).
const entrySize = zoid.Size + 8 + 4 + 1

// Entry describes one object's placement within a sealed bundle.
type Entry struct {
	OID    zoid.OID
	Offset int64
	Size   int64
	Kind   zoid.Kind
}

// Header is the decoded fixed-size bundle header.
type Header struct {
	Version     uint32
	EntryCount  uint32
	IndexOffset int64
	TotalSize   int64
	Checksum    [16]byte
}

// object is one payload staged for sealing.
type object struct {
	OID     zoid.OID
	Kind    zoid.Kind
	Payload []byte
}

// Create assembles a sealed bundle's bytes from objs, sorting by OID as
// spec §3 requires ("raw object payloads in OID-sorted order"). Each
// payload is zstd-compressed on the way in (matching the teacher's
// DefaultCompressionALGO); Entry.Size records the stored (compressed)
// length, not the logical object size. Returns the bytes and the entry
// list describing each object's placement.
func Create(objs map[zoid.OID]object) ([]byte, []Entry, error) {
	oids := make([]zoid.OID, 0, len(objs))
	for oid := range objs {
		oids = append(oids, oid)
	}
	zoid.Sort(oids)

	var payloads bytes.Buffer
	entries := make([]Entry, 0, len(oids))
	for _, oid := range oids {
		o := objs[oid]
		compressed, err := streamio.Compress(o.Payload)
		if err != nil {
			return nil, nil, zerr.NewIOError("bundle-create", err)
		}
		offset := int64(headerSize) + int64(payloads.Len())
		entries = append(entries, Entry{OID: oid, Offset: offset, Size: int64(len(compressed)), Kind: o.Kind})
		payloads.Write(compressed)
	}

	indexOffset := int64(headerSize) + int64(payloads.Len())
	totalSize := indexOffset + int64(len(entries))*entrySize

	var out bytes.Buffer
	out.Grow(int(totalSize))
	out.Write(bundleMagic[:])
	writeU32(&out, bundleVersion)
	writeU32(&out, uint32(len(entries)))
	writeU64(&out, uint64(indexOffset))
	writeU64(&out, uint64(totalSize))
	checksumPos := out.Len()
	out.Write(make([]byte, 16)) // checksum placeholder, filled below
	// Zero padding reserves the rest of the fixed-size header.
	out.Write(make([]byte, headerSize-out.Len()))
	out.Write(payloads.Bytes())

	for _, e := range entries {
		out.Write(e.OID[:])
		writeU64(&out, uint64(e.Offset))
		writeU32(&out, uint32(e.Size))
		out.WriteByte(byte(e.Kind))
	}

	raw := out.Bytes()
	sum := xorChecksum(raw[headerSize:])
	copy(raw[checksumPos:checksumPos+16], sum[:])

	return raw, entries, nil
}

// xorChecksum folds data into a 16-byte XOR checksum (spec §3 "16-byte
// XOR checksum"): each 16-byte block is XORed together, with a final
// partial block XORed in at its own offset.
func xorChecksum(data []byte) [16]byte {
	var sum [16]byte
	for len(data) >= 16 {
		for i := 0; i < 16; i++ {
			sum[i] ^= data[i]
		}
		data = data[16:]
	}
	for i, b := range data {
		sum[i] ^= b
	}
	return sum
}

// Parse validates and decodes a sealed bundle's header and index (spec
// §4.3 invariants: sorted index, no duplicate OIDs, no entry overlaps the
// header, no entry extends into the index).
func Parse(raw []byte) (*Header, []Entry, error) {
	if len(raw) < headerSize {
		return nil, nil, zerr.NewBundleFormatError("truncated header")
	}
	if !bytes.Equal(raw[:4], bundleMagic[:]) {
		return nil, nil, zerr.NewBundleFormatError("bad magic")
	}
	h := &Header{
		Version:     binary.BigEndian.Uint32(raw[4:8]),
		EntryCount:  binary.BigEndian.Uint32(raw[8:12]),
		IndexOffset: int64(binary.BigEndian.Uint64(raw[12:20])),
		TotalSize:   int64(binary.BigEndian.Uint64(raw[20:28])),
	}
	copy(h.Checksum[:], raw[28:44])

	if h.Version != bundleVersion {
		return nil, nil, zerr.NewBundleFormatError("unsupported version")
	}
	if h.TotalSize != int64(len(raw)) {
		return nil, nil, zerr.NewBundleCorruptedError("declared size does not match byte length")
	}
	if h.IndexOffset < headerSize || h.IndexOffset > h.TotalSize {
		return nil, nil, zerr.NewBundleIndexError("index offset out of range")
	}
	wantIndexBytes := int64(h.EntryCount) * entrySize
	if h.IndexOffset+wantIndexBytes != h.TotalSize {
		return nil, nil, zerr.NewBundleIndexError("index does not reach end of bundle")
	}

	want := xorChecksum(raw[headerSize:])
	if want != h.Checksum {
		return nil, nil, zerr.NewBundleCorruptedError("checksum mismatch")
	}

	entries := make([]Entry, h.EntryCount)
	cursor := raw[h.IndexOffset:]
	for i := range entries {
		rec := cursor[i*entrySize : (i+1)*entrySize]
		var oid zoid.OID
		copy(oid[:], rec[:zoid.Size])
		offset := int64(binary.BigEndian.Uint64(rec[zoid.Size : zoid.Size+8]))
		size := int64(binary.BigEndian.Uint32(rec[zoid.Size+8 : zoid.Size+12]))
		kind := zoid.Kind(rec[zoid.Size+12])
		entries[i] = Entry{OID: oid, Offset: offset, Size: size, Kind: kind}

		if offset < headerSize || offset+size > h.IndexOffset {
			return nil, nil, zerr.NewBundleIndexError("entry overlaps header or index")
		}
	}
	if !sort.SliceIsSorted(entries, func(i, j int) bool { return less(entries[i].OID, entries[j].OID) }) {
		return nil, nil, zerr.NewBundleIndexError("index not sorted")
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].OID == entries[i].OID {
			return nil, nil, zerr.NewBundleIndexError("duplicate OID in index")
		}
	}

	return h, entries, nil
}

func less(a, b zoid.OID) bool { return bytes.Compare(a[:], b[:]) < 0 }

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
