package pack

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zetavcs/zeta/zoid"
)

func TestEncodeDecodeRoundTripNoDeltas(t *testing.T) {
	objs := []Object{
		{Kind: zoid.Blob, Payload: []byte("hello\n")},
		{Kind: zoid.Blob, Payload: []byte("world\n")},
	}
	for i := range objs {
		objs[i].OID = zoid.Hash(objs[i].Kind, objs[i].Payload)
	}

	data, entries, err := Encode(objs, nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	decoded, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	for i := range objs {
		require.Equal(t, objs[i].OID, decoded[i].OID)
		require.Equal(t, objs[i].Payload, decoded[i].Payload)
	}
}

func TestEncodeDecodeRoundTripWithRefDelta(t *testing.T) {
	base := Object{Kind: zoid.Blob, Payload: []byte("the quick brown fox jumps over the lazy dog, repeatedly, many times over")}
	base.OID = zoid.Hash(base.Kind, base.Payload)

	targetPayload := []byte("the quick brown fox jumps over the lazy cat, repeatedly, many times over and over again")
	delta := createDelta(base.Payload, targetPayload)
	targetOID := zoid.Hash(base.Kind, targetPayload)

	objs := []Object{
		base,
		{Kind: zoid.RefDelta, OID: targetOID, Payload: delta},
	}
	baseOf := map[zoid.OID]zoid.OID{targetOID: base.OID}

	data, _, err := Encode(objs, baseOf)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	require.Equal(t, base.Payload, decoded[0].Payload)
	require.Equal(t, targetPayload, decoded[1].Payload)
	require.Equal(t, targetOID, decoded[1].OID)
}

func TestEncodeDecodeRoundTripWithOfsDelta(t *testing.T) {
	base := Object{Kind: zoid.Blob, Payload: []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")}
	base.OID = zoid.Hash(base.Kind, base.Payload)

	targetPayload := []byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaab")
	delta := createDelta(base.Payload, targetPayload)
	targetOID := zoid.Hash(base.Kind, targetPayload)

	objs := []Object{
		base,
		{Kind: zoid.OfsDelta, OID: targetOID, Payload: delta},
	}
	baseOf := map[zoid.OID]zoid.OID{targetOID: base.OID}

	data, _, err := Encode(objs, baseOf)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, targetPayload, decoded[1].Payload)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := Decode([]byte("not-a-pack-file-at-all-but-long-enough"))
	require.Error(t, err)
}

func TestDeltaApplyRoundTrip(t *testing.T) {
	base := []byte("line one\nline two\nline three\nline four\n")
	target := []byte("line one\nline TWO changed\nline three\nline four\nline five\n")
	delta := createDelta(base, target)
	out, err := applyDelta(base, delta)
	require.NoError(t, err)
	require.Equal(t, target, out)
}

func TestIndexBuildAndLookup(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const n = 1000
	entries := make([]Entry, n)
	for i := 0; i < n; i++ {
		var oid zoid.OID
		_, _ = rng.Read(oid[:])
		entries[i] = Entry{OID: oid, Offset: uint64(i) * 137, CRC32: uint32(i)}
	}
	var packSum [oidSize]byte
	idx := BuildIndex(entries, packSum)
	require.Equal(t, n, idx.Count())

	for _, e := range entries {
		got, ok := idx.Lookup(e.OID)
		require.True(t, ok)
		require.Equal(t, e.Offset, got.Offset)
		require.Equal(t, e.CRC32, got.CRC32)
	}

	var unknown zoid.OID
	for i := range unknown {
		unknown[i] = 0xAB
	}
	_, ok := idx.Lookup(unknown)
	require.False(t, ok)

	encoded := idx.Encode()
	decoded, err := DecodeIndex(encoded)
	require.NoError(t, err)
	require.Equal(t, idx.Count(), decoded.Count())
	for _, e := range entries[:20] {
		got, ok := decoded.Lookup(e.OID)
		require.True(t, ok)
		require.Equal(t, e.Offset, got.Offset)
	}
}

func TestIndexLookupEmptyFanoutSlot(t *testing.T) {
	entries := []Entry{
		{OID: zoid.MustParse("0100000000000000000000000000000000000000"), Offset: 10},
		{OID: zoid.MustParse("0200000000000000000000000000000000000000"), Offset: 20},
	}
	var packSum [oidSize]byte
	idx := BuildIndex(entries, packSum)

	miss := zoid.MustParse("8000000000000000000000000000000000000000")
	_, ok := idx.Lookup(miss)
	require.False(t, ok)
}
