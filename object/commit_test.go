package object

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zetavcs/zeta/zoid"
)

func TestCommitEncodeDecodeRoundTrip(t *testing.T) {
	tree := zoid.Hash(zoid.Tree, []byte("fake-tree"))
	parent := zoid.Hash(zoid.Commit, []byte("fake-parent"))
	c := &Commit{
		Tree:      tree,
		Parents:   []zoid.OID{parent},
		Author:    Signature{Name: "A U Thor", Email: "author@example.com", When: 1700000000, TZOffset: -420},
		Committer: Signature{Name: "A U Thor", Email: "author@example.com", When: 1700000000, TZOffset: -420},
		Message:   "initial commit\n",
	}
	payload, err := c.Encode()
	require.NoError(t, err)

	decoded, err := DecodeCommit(payload)
	require.NoError(t, err)
	require.Equal(t, c.Tree, decoded.Tree)
	require.Equal(t, c.Parents, decoded.Parents)
	require.Equal(t, c.Author, decoded.Author)
	require.Equal(t, c.Message, decoded.Message)
}

func TestCommitRejectsMissingCommitter(t *testing.T) {
	c := &Commit{Tree: zoid.Hash(zoid.Tree, []byte("x")), Author: Signature{Name: "a", Email: "a@b.c"}}
	_, err := c.Encode()
	require.Error(t, err)
}

func TestCommitWithGPGSignatureRoundTrips(t *testing.T) {
	tree := zoid.Hash(zoid.Tree, []byte("fake-tree"))
	c := &Commit{
		Tree:         tree,
		Author:       Signature{Name: "A", Email: "a@b.c", When: 1, TZOffset: 0},
		Committer:    Signature{Name: "A", Email: "a@b.c", When: 1, TZOffset: 0},
		Message:      "signed\n",
		GPGSignature: "-----BEGIN PGP SIGNATURE-----\n\nabcd\nefgh\n-----END PGP SIGNATURE-----",
	}
	payload, err := c.Encode()
	require.NoError(t, err)
	decoded, err := DecodeCommit(payload)
	require.NoError(t, err)
	require.Equal(t, c.GPGSignature, decoded.GPGSignature)
}
