package sparse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zetavcs/zeta/object"
	"github.com/zetavcs/zeta/zerr"
	"github.com/zetavcs/zeta/zoid"
)

type memResolver map[zoid.OID]*object.Tree

func (m memResolver) Tree(_ context.Context, oid zoid.OID) (*object.Tree, error) {
	tr, ok := m[oid]
	if !ok {
		return nil, zerr.NewNotFoundError("tree", oid.String())
	}
	return tr, nil
}

func blobOID(content string) zoid.OID {
	return zoid.Hash(zoid.Blob, []byte(content))
}

func mustTree(t *testing.T, r memResolver, entries []object.TreeEntry) zoid.OID {
	t.Helper()
	tr, err := object.NewTree(entries)
	require.NoError(t, err)
	oid, err := tr.Hash()
	require.NoError(t, err)
	r[oid] = tr
	return oid
}

func TestApplySelectsMatchingFiles(t *testing.T) {
	r := memResolver{}
	docOID := blobOID("docs")
	srcOID := blobOID("src")
	srcTree := mustTree(t, r, []object.TreeEntry{
		{Mode: object.ModeFile, Name: "main.go", Target: srcOID},
	})
	root := mustTree(t, r, []object.TreeEntry{
		{Mode: object.ModeFile, Name: "README.md", Target: docOID},
		{Mode: object.ModeSubtree, Name: "src", Target: srcTree},
	})

	f, err := Compile([]string{"src/**"})
	require.NoError(t, err)

	entries, err := Apply(context.Background(), r, root, f)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "src/main.go", entries[0].Path)
}

func TestApplyPrunesExcludedSubtreeWithoutRecursing(t *testing.T) {
	r := memResolver{}
	// A subtree whose only child would error if Tree() were ever called
	// on it; CouldContainMatches should keep applyTree from descending.
	missing := zoid.Hash(zoid.Tree, []byte("never fetched"))
	root := mustTree(t, r, []object.TreeEntry{
		{Mode: object.ModeSubtree, Name: "vendor", Target: missing},
		{Mode: object.ModeFile, Name: "go.mod", Target: blobOID("mod")},
	})

	f, err := Compile([]string{"/go.mod"})
	require.NoError(t, err)

	entries, err := Apply(context.Background(), r, root, f)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "go.mod", entries[0].Path)
}

func TestApplyEmptyRootReturnsNoEntries(t *testing.T) {
	r := memResolver{}
	f, err := Compile([]string{"**"})
	require.NoError(t, err)
	entries, err := Apply(context.Background(), r, zoid.Zero, f)
	require.NoError(t, err)
	require.Empty(t, entries)
}
