// Package zoid implements the content-addressing primitives of the object
// graph: the 40-character hex SHA-1 object identifier, framed-hash
// computation, and short-OID validation (spec §3, §4.1).
package zoid

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"sort"
)

const (
	// Size is the raw byte length of an OID (SHA-1 digest size).
	Size = 20
	// HexSize is the length of an OID's hex string representation.
	HexSize = 40
	// MinShortHex is the minimum length of a short OID prefix.
	MinShortHex = 4
)

// OID is a git object identifier: the SHA-1 digest of an object's framed
// bytes ("{kind} {size}\0{payload}").
type OID [Size]byte

// Zero is the all-zero OID, used as a sentinel for "no object"/"no parent".
var Zero OID

// IsZero reports whether o is the all-zero OID.
func (o OID) IsZero() bool {
	return o == Zero
}

// String returns the lowercase hex representation of o.
func (o OID) String() string {
	return hex.EncodeToString(o[:])
}

// Bytes returns the raw 20-byte digest.
func (o OID) Bytes() []byte {
	return o[:]
}

// Parse decodes a full 40-character hex OID.
func Parse(s string) (OID, error) {
	var o OID
	if len(s) != HexSize {
		return o, fmt.Errorf("zeta: %q is not a valid object id (want %d hex chars, got %d)", s, HexSize, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return o, fmt.Errorf("zeta: %q is not a valid object id: %w", s, err)
	}
	copy(o[:], b)
	return o, nil
}

// MustParse is like Parse but panics on error; intended for constants in
// tests and documentation examples, never for untrusted input.
func MustParse(s string) OID {
	o, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return o
}

// IsValidHex reports whether s is a syntactically valid full-length hex OID.
func IsValidHex(s string) bool {
	if len(s) != HexSize {
		return false
	}
	return isHex(s)
}

// IsValidShortHex reports whether s is a syntactically valid short OID
// prefix: 4 to 39 hex characters (spec §3).
func IsValidShortHex(s string) bool {
	if len(s) < MinShortHex || len(s) >= HexSize {
		return false
	}
	return isHex(s)
}

func isHex(s string) bool {
	for _, c := range []byte(s) {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// Sort sorts a slice of OIDs in increasing byte order. This ordering is
// invariant wherever OIDs are serialised (pack index, bundle index).
func Sort(oids []OID) {
	sort.Sort(sortable(oids))
}

type sortable []OID

func (s sortable) Len() int           { return len(s) }
func (s sortable) Less(i, j int) bool { return bytes.Compare(s[i][:], s[j][:]) < 0 }
func (s sortable) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// Kind enumerates the four object kinds plus the pack-only delta kinds
// (spec §3 "Pack object type").
type Kind int8

const (
	Invalid Kind = 0
	Commit  Kind = 1
	Tree    Kind = 2
	Blob    Kind = 3
	Tag     Kind = 4
	// 5 is reserved by the wire format.
	OfsDelta Kind = 6
	RefDelta Kind = 7
)

func (k Kind) String() string {
	switch k {
	case Commit:
		return "commit"
	case Tree:
		return "tree"
	case Blob:
		return "blob"
	case Tag:
		return "tag"
	case OfsDelta:
		return "ofs-delta"
	case RefDelta:
		return "ref-delta"
	default:
		return "invalid"
	}
}

// KindFromString parses the textual object-kind names used in framed
// headers and commit/tag target-kind fields.
func KindFromString(s string) Kind {
	switch s {
	case "commit":
		return Commit
	case "tree":
		return Tree
	case "blob":
		return Blob
	case "tag":
		return Tag
	default:
		return Invalid
	}
}

// Hasher computes an OID incrementally from framed bytes, so large blobs
// never need to be buffered in memory to be hashed (spec §4.1
// "framed-hash operation must stream").
type Hasher struct {
	h hash.Hash
}

// NewHasher starts a new streaming hash of a framed object of the given
// kind and total payload size. Write the payload (and only the payload)
// to the returned Hasher; the frame header is written immediately.
func NewHasher(kind Kind, size int64) *Hasher {
	h := sha1.New()
	fmt.Fprintf(h, "%s %d\x00", kind, size)
	return &Hasher{h: h}
}

func (hs *Hasher) Write(p []byte) (int, error) {
	return hs.h.Write(p)
}

// Sum returns the OID of everything written so far.
func (hs *Hasher) Sum() OID {
	var o OID
	copy(o[:], hs.h.Sum(nil))
	return o
}

// Hash computes the OID of an in-memory payload of the given kind in one
// call; equivalent to writing payload to a Hasher sized for len(payload).
func Hash(kind Kind, payload []byte) OID {
	hs := NewHasher(kind, int64(len(payload)))
	_, _ = hs.Write(payload)
	return hs.Sum()
}

// HashReader computes the OID of a payload read from r, given its size in
// advance (as required to build the frame header), without buffering the
// whole payload in memory.
func HashReader(kind Kind, size int64, r io.Reader) (OID, error) {
	hs := NewHasher(kind, size)
	if _, err := io.Copy(hs, r); err != nil {
		return Zero, err
	}
	return hs.Sum(), nil
}

// Frame returns the canonical framed bytes of an object: the input to the
// SHA-1 computation (spec §3 "Canonical framed bytes").
func Frame(kind Kind, payload []byte) []byte {
	header := fmt.Sprintf("%s %d\x00", kind, len(payload))
	out := make([]byte, 0, len(header)+len(payload))
	out = append(out, header...)
	out = append(out, payload...)
	return out
}
