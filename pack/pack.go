package pack

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/zetavcs/zeta/internal/crc"
	"github.com/zetavcs/zeta/zerr"
	"github.com/zetavcs/zeta/zoid"
)

var packMagic = [4]byte{'P', 'A', 'C', 'K'}

const packVersion = 2

// Object is a single decoded pack entry, resolved to its final kind and
// payload (deltas already applied).
type Object struct {
	Kind    zoid.Kind
	OID     zoid.OID
	Payload []byte
}

// rawEntry is what is physically present at a given offset in the pack
// before delta resolution.
type rawEntry struct {
	kind    zoid.Kind
	offset  int64
	baseOfs int64 // for OFS_DELTA: offset of the base entry
	baseOID zoid.OID
	isDelta bool
	isOfs   bool
	raw     []byte
}

// Encode serializes objs into a pack v2 byte stream. baseOf maps the OID of
// each object whose Kind is OfsDelta or RefDelta to its base's OID; such
// objects carry a pre-computed delta as their Payload, and an OfsDelta's
// base must appear earlier in objs. Entries for other kinds are ignored:
// Encode computes no deltas itself.
func Encode(objs []Object, baseOf map[zoid.OID]zoid.OID) ([]byte, []Entry, error) {
	var buf bytes.Buffer
	buf.Write(packMagic[:])
	writeU32(&buf, packVersion)
	writeU32(&buf, uint32(len(objs)))

	offsetOf := make(map[zoid.OID]int64, len(objs))
	entries := make([]Entry, 0, len(objs))

	for _, o := range objs {
		start := int64(buf.Len())
		offsetOf[o.OID] = start

		if err := writeObjectHeader(&buf, byte(o.Kind), uint64(len(o.Payload))); err != nil {
			return nil, nil, err
		}
		switch o.Kind {
		case zoid.OfsDelta:
			base, ok := baseOf[o.OID]
			if !ok {
				return nil, nil, fmt.Errorf("zeta: ofs-delta object %s missing base mapping", o.OID)
			}
			baseOffset, ok := offsetOf[base]
			if !ok {
				return nil, nil, fmt.Errorf("zeta: ofs-delta base %s not yet written", base)
			}
			if err := writeOfsDeltaOffset(&buf, uint64(start-baseOffset)); err != nil {
				return nil, nil, err
			}
		case zoid.RefDelta:
			base, ok := baseOf[o.OID]
			if !ok {
				return nil, nil, fmt.Errorf("zeta: ref-delta object %s missing base mapping", o.OID)
			}
			buf.Write(base[:])
		}

		crcStart := buf.Len()
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(o.Payload); err != nil {
			return nil, nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, nil, err
		}
		sum := crc.Checksum32(buf.Bytes()[crcStart:])

		entries = append(entries, Entry{OID: o.OID, Offset: uint64(start), CRC32: sum})
	}

	sum := sha1.Sum(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes(), entries, nil
}

// Decode parses a pack v2 byte stream into fully-resolved objects, applying
// any OFS_DELTA/REF_DELTA chains and validating the trailing checksum
// (spec §4.3 "Pack parsing").
func Decode(data []byte) ([]Object, error) {
	if len(data) < 12+oidSize {
		return nil, zerr.NewPackFormatError("pack truncated")
	}
	if !bytes.Equal(data[0:4], packMagic[:]) {
		return nil, zerr.NewPackFormatError("bad pack magic")
	}
	if v := binary.BigEndian.Uint32(data[4:8]); v != packVersion {
		return nil, zerr.NewPackFormatError(fmt.Sprintf("unsupported pack version %d", v))
	}
	count := binary.BigEndian.Uint32(data[8:12])

	want := data[len(data)-oidSize:]
	sum := sha1.Sum(data[:len(data)-oidSize])
	if !bytes.Equal(sum[:], want) {
		return nil, zerr.NewPackCorruptedError("pack checksum mismatch")
	}

	cr := &countingReader{r: bytes.NewReader(data[12 : len(data)-oidSize])}

	raws := make([]rawEntry, 0, count)
	offsetIndex := make(map[int64]int, count)

	for i := uint32(0); i < count; i++ {
		entryStart := cr.n
		offsetIndex[entryStart] = len(raws)

		kindByte, size, err := readObjectHeader(cr)
		if err != nil {
			return nil, zerr.NewPackCorruptedError("object header: " + err.Error())
		}
		kind := zoid.Kind(kindByte)
		re := rawEntry{kind: kind, offset: entryStart}

		switch kind {
		case zoid.OfsDelta:
			rel, err := readOfsDeltaOffset(cr)
			if err != nil {
				return nil, zerr.NewPackCorruptedError("ofs-delta offset: " + err.Error())
			}
			re.isDelta = true
			re.isOfs = true
			re.baseOfs = entryStart - int64(rel)
		case zoid.RefDelta:
			var oid zoid.OID
			if _, err := io.ReadFull(cr, oid[:]); err != nil {
				return nil, zerr.NewPackCorruptedError("ref-delta base: " + err.Error())
			}
			re.isDelta = true
			re.baseOID = oid
		}

		payload, err := inflate(cr, int64(size))
		if err != nil {
			return nil, zerr.NewPackCorruptedError("inflate: " + err.Error())
		}
		re.raw = payload
		raws = append(raws, re)
	}

	return resolveObjects(raws, offsetIndex)
}

// resolveObjects applies delta chains (OFS_DELTA resolved by entry offset,
// REF_DELTA resolved by scanning for the matching base OID among already
// or lazily resolved entries) to recover each object's final payload.
func resolveObjects(raws []rawEntry, offsetIndex map[int64]int) ([]Object, error) {
	resolved := make([]*Object, len(raws))
	byOID := make(map[zoid.OID]*Object, len(raws))

	var resolve func(i int) (*Object, error)
	resolve = func(i int) (*Object, error) {
		if resolved[i] != nil {
			return resolved[i], nil
		}
		re := raws[i]
		if !re.isDelta {
			oid := zoid.Hash(re.kind, re.raw)
			obj := &Object{Kind: re.kind, OID: oid, Payload: re.raw}
			resolved[i] = obj
			byOID[oid] = obj
			return obj, nil
		}

		var base *Object
		var err error
		if re.isOfs {
			baseIdx, ok := offsetIndex[re.baseOfs]
			if !ok {
				return nil, fmt.Errorf("zeta: ofs-delta base offset %d not found", re.baseOfs)
			}
			base, err = resolve(baseIdx)
			if err != nil {
				return nil, err
			}
		} else {
			if b, ok := byOID[re.baseOID]; ok {
				base = b
			} else {
				for j := range raws {
					cand, cerr := resolve(j)
					if cerr != nil {
						return nil, cerr
					}
					if cand.OID == re.baseOID {
						base = cand
						break
					}
				}
			}
		}
		if base == nil {
			return nil, fmt.Errorf("zeta: ref-delta base %s not found in pack", re.baseOID)
		}

		payload, err := applyDelta(base.Payload, re.raw)
		if err != nil {
			return nil, err
		}
		oid := zoid.Hash(base.Kind, payload)
		obj := &Object{Kind: base.Kind, OID: oid, Payload: payload}
		resolved[i] = obj
		byOID[oid] = obj
		return obj, nil
	}

	out := make([]Object, len(raws))
	for i := range raws {
		obj, err := resolve(i)
		if err != nil {
			return nil, err
		}
		out[i] = *obj
	}
	return out, nil
}

// inflate reads exactly one zlib stream from r, returning the decompressed
// bytes. It relies on r being a *countingReader shared with the header
// parsing above so that subsequent reads (the next object's header) start
// exactly where the zlib stream ended.
func inflate(r io.Reader, expectedSize int64) ([]byte, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out := make([]byte, 0, expectedSize)
	buf := make([]byte, 32*1024)
	for {
		n, err := zr.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// countingReader wraps a *bytes.Reader and tracks the logical read
// position across both Read and ReadByte calls, so header parsing and
// zlib inflation can share one cursor into the pack body.
type countingReader struct {
	r *bytes.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReader) ReadByte() (byte, error) {
	b, err := c.r.ReadByte()
	if err == nil {
		c.n++
	}
	return b, err
}
