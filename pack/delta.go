package pack

import (
	"bytes"
	"fmt"
)

// applyDelta reconstructs a target payload from a base payload and a delta
// stream encoded as {base-size varint, result-size varint, ops*} where
// each op is a copy (high bit set) or an insert literal (spec §4.3).
func applyDelta(base, delta []byte) ([]byte, error) {
	r := bytes.NewReader(delta)
	baseSize, err := readDeltaVarint(r)
	if err != nil {
		return nil, fmt.Errorf("zeta: delta base-size: %w", err)
	}
	if baseSize != uint64(len(base)) {
		return nil, fmt.Errorf("zeta: delta base size mismatch: want %d got %d", baseSize, len(base))
	}
	resultSize, err := readDeltaVarint(r)
	if err != nil {
		return nil, fmt.Errorf("zeta: delta result-size: %w", err)
	}

	out := make([]byte, 0, resultSize)
	for r.Len() > 0 {
		cmd, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if cmd&0x80 != 0 {
			// Copy: up to 4 offset bytes then up to 3 size bytes,
			// little-endian, only the bytes whose flag bit is set are
			// present (spec §4.3).
			var offset, size uint32
			for i := uint(0); i < 4; i++ {
				if cmd&(1<<i) != 0 {
					b, err := r.ReadByte()
					if err != nil {
						return nil, err
					}
					offset |= uint32(b) << (8 * i)
				}
			}
			for i := uint(0); i < 3; i++ {
				if cmd&(1<<(4+i)) != 0 {
					b, err := r.ReadByte()
					if err != nil {
						return nil, err
					}
					size |= uint32(b) << (8 * i)
				}
			}
			if size == 0 {
				size = 0x10000
			}
			if uint64(offset)+uint64(size) > uint64(len(base)) {
				return nil, fmt.Errorf("zeta: delta copy out of range")
			}
			out = append(out, base[offset:offset+size]...)
		} else if cmd != 0 {
			// Insert: a 1..127-byte literal follows.
			n := int(cmd)
			lit := make([]byte, n)
			if _, err := r.Read(lit); err != nil {
				return nil, err
			}
			out = append(out, lit...)
		} else {
			return nil, fmt.Errorf("zeta: delta command byte 0 is reserved")
		}
	}
	if uint64(len(out)) != resultSize {
		return nil, fmt.Errorf("zeta: delta result size mismatch: want %d got %d", resultSize, len(out))
	}
	return out, nil
}

const copyCmdMaxSize = 0x10000

// createDelta produces a REF_DELTA/OFS_DELTA payload transforming base
// into target, using a simple greedy longest-match-from-hash-index
// encoder. It always produces a valid delta; it does not attempt to be
// maximally compact.
func createDelta(base, target []byte) []byte {
	const blockSize = 16
	index := make(map[uint64][]int)
	if len(base) >= blockSize {
		h := rollingHash(base[:blockSize])
		index[h] = append(index[h], 0)
		for i := 1; i+blockSize <= len(base); i++ {
			h = rollingHash(base[i : i+blockSize])
			index[h] = append(index[h], i)
		}
	}

	var out []byte
	out = writeDeltaVarint(out, uint64(len(base)))
	out = writeDeltaVarint(out, uint64(len(target)))

	var literal []byte
	flushLiteral := func() {
		for len(literal) > 0 {
			n := len(literal)
			if n > 127 {
				n = 127
			}
			out = append(out, byte(n))
			out = append(out, literal[:n]...)
			literal = literal[n:]
		}
	}

	i := 0
	for i < len(target) {
		bestLen, bestOff := 0, 0
		if i+blockSize <= len(target) {
			h := rollingHash(target[i : i+blockSize])
			for _, candidate := range index[h] {
				l := matchLen(base[candidate:], target[i:])
				if l > bestLen {
					bestLen, bestOff = l, candidate
				}
			}
		}
		if bestLen >= blockSize {
			flushLiteral()
			for bestLen > 0 {
				n := bestLen
				if n > copyCmdMaxSize {
					n = copyCmdMaxSize
				}
				out = append(out, encodeCopy(uint32(bestOff), uint32(n))...)
				bestOff += n
				bestLen -= n
				i += n
			}
			continue
		}
		literal = append(literal, target[i])
		i++
		if len(literal) == 127 {
			flushLiteral()
		}
	}
	flushLiteral()
	return out
}

func encodeCopy(offset, size uint32) []byte {
	var cmd byte = 0x80
	var body []byte
	for i := uint(0); i < 4; i++ {
		b := byte(offset >> (8 * i))
		if b != 0 {
			cmd |= 1 << i
			body = append(body, b)
		}
	}
	sz := size
	if sz == 0x10000 {
		sz = 0 // encoded as zero meaning 0x10000 on decode
	}
	for i := uint(0); i < 3; i++ {
		b := byte(sz >> (8 * i))
		if b != 0 {
			cmd |= 1 << (4 + i)
			body = append(body, b)
		}
	}
	return append([]byte{cmd}, body...)
}

func matchLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func rollingHash(b []byte) uint64 {
	var h uint64 = 1469598103934665603 // FNV offset basis
	for _, c := range b {
		h ^= uint64(c)
		h *= 1099511628211 // FNV prime
	}
	return h
}
