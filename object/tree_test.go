package object

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zetavcs/zeta/zoid"
)

func TestTreeEncodeHelloBlob(t *testing.T) {
	blobOid := zoid.Hash(zoid.Blob, []byte("hello\n"))
	require.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", blobOid.String())

	tr, err := NewTree([]TreeEntry{
		{Mode: ModeFile, Name: "greeting.txt", Target: blobOid},
	})
	require.NoError(t, err)

	payload, err := tr.Encode()
	require.NoError(t, err)

	decoded, err := DecodeTree(payload)
	require.NoError(t, err)
	require.Len(t, decoded.Entries, 1)
	require.Equal(t, "greeting.txt", decoded.Entries[0].Name)
	require.Equal(t, blobOid, decoded.Entries[0].Target)
}

func TestTreeSortIsInvariantUnderPermutation(t *testing.T) {
	a := zoid.Hash(zoid.Blob, []byte("a"))
	b := zoid.Hash(zoid.Blob, []byte("b"))
	c := zoid.Hash(zoid.Blob, []byte("c"))

	e1 := []TreeEntry{
		{Mode: ModeFile, Name: "b.txt", Target: b},
		{Mode: ModeFile, Name: "a.txt", Target: a},
		{Mode: ModeSubtree, Name: "a", Target: c},
	}
	e2 := []TreeEntry{
		{Mode: ModeSubtree, Name: "a", Target: c},
		{Mode: ModeFile, Name: "a.txt", Target: a},
		{Mode: ModeFile, Name: "b.txt", Target: b},
	}
	t1, err := NewTree(e1)
	require.NoError(t, err)
	t2, err := NewTree(e2)
	require.NoError(t, err)
	h1, err := t1.Hash()
	require.NoError(t, err)
	h2, err := t2.Hash()
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestTreeRejectsDuplicateNames(t *testing.T) {
	a := zoid.Hash(zoid.Blob, []byte("a"))
	_, err := NewTree([]TreeEntry{
		{Mode: ModeFile, Name: "x", Target: a},
		{Mode: ModeFile, Name: "x", Target: a},
	})
	require.Error(t, err)
}

func TestTreeRejectsBadNames(t *testing.T) {
	a := zoid.Hash(zoid.Blob, []byte("a"))
	for _, name := range []string{"", "a/b", ".", "..", "a\x00b"} {
		_, err := NewTree([]TreeEntry{{Mode: ModeFile, Name: name, Target: a}})
		require.Error(t, err, name)
	}
}
