package blame

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zetavcs/zeta/object"
	"github.com/zetavcs/zeta/zerr"
	"github.com/zetavcs/zeta/zoid"
)

type memRepo struct {
	commits map[zoid.OID]*object.Commit
	trees   map[zoid.OID]*object.Tree
	blobs   map[zoid.OID]*object.Blob
}

func newMemRepo() *memRepo {
	return &memRepo{
		commits: map[zoid.OID]*object.Commit{},
		trees:   map[zoid.OID]*object.Tree{},
		blobs:   map[zoid.OID]*object.Blob{},
	}
}

func (m *memRepo) Commit(_ context.Context, oid zoid.OID) (*object.Commit, error) {
	c, ok := m.commits[oid]
	if !ok {
		return nil, zerr.NewNotFoundError("object", oid.String())
	}
	return c, nil
}

func (m *memRepo) Tree(_ context.Context, oid zoid.OID) (*object.Tree, error) {
	t, ok := m.trees[oid]
	if !ok {
		return nil, zerr.NewNotFoundError("object", oid.String())
	}
	return t, nil
}

func (m *memRepo) Blob(_ context.Context, oid zoid.OID) (*object.Blob, error) {
	b, ok := m.blobs[oid]
	if !ok {
		return nil, zerr.NewNotFoundError("object", oid.String())
	}
	return b, nil
}

func (m *memRepo) putBlob(content string) zoid.OID {
	b := &object.Blob{Data: []byte(content)}
	oid := b.Hash()
	m.blobs[oid] = b
	return oid
}

func (m *memRepo) putTree(t *testing.T, entries []object.TreeEntry) zoid.OID {
	t.Helper()
	tr, err := object.NewTree(entries)
	require.NoError(t, err)
	oid, err := tr.Hash()
	require.NoError(t, err)
	m.trees[oid] = tr
	return oid
}

func (m *memRepo) putCommit(t *testing.T, tree zoid.OID, parents []zoid.OID, when int64, name string) zoid.OID {
	t.Helper()
	c := &object.Commit{
		Tree:      tree,
		Parents:   parents,
		Author:    object.Signature{Name: name, Email: name + "@example.com", When: when},
		Committer: object.Signature{Name: name, Email: name + "@example.com", When: when},
		Message:   "commit by " + name,
	}
	oid, err := c.Hash()
	require.NoError(t, err)
	m.commits[oid] = c
	return oid
}

// Three commits on one file, one line changed each time: blame should
// attribute line 1 to c1, line 2 to c2, line 3 to c3.
func TestBlameAttributesEachLineToItsIntroducingCommit(t *testing.T) {
	repo := newMemRepo()

	blob1 := repo.putBlob("alpha\n")
	tree1 := repo.putTree(t, []object.TreeEntry{{Mode: object.ModeFile, Name: "f.txt", Target: blob1}})
	c1 := repo.putCommit(t, tree1, nil, 1000, "alice")

	blob2 := repo.putBlob("alpha\nbeta\n")
	tree2 := repo.putTree(t, []object.TreeEntry{{Mode: object.ModeFile, Name: "f.txt", Target: blob2}})
	c2 := repo.putCommit(t, tree2, []zoid.OID{c1}, 2000, "bob")

	blob3 := repo.putBlob("alpha\nbeta\ngamma\n")
	tree3 := repo.putTree(t, []object.TreeEntry{{Mode: object.ModeFile, Name: "f.txt", Target: blob3}})
	c3 := repo.putCommit(t, tree3, []zoid.OID{c2}, 3000, "carol")

	result, err := Blame(context.Background(), repo, c3, "f.txt")
	require.NoError(t, err)
	require.Len(t, result.Lines, 3)
	require.Equal(t, c1, result.Lines[0].Commit)
	require.Equal(t, "alice", result.Lines[0].Author.Name)
	require.Equal(t, c2, result.Lines[1].Commit)
	require.Equal(t, "bob", result.Lines[1].Author.Name)
	require.Equal(t, c3, result.Lines[2].Commit)
	require.Equal(t, "carol", result.Lines[2].Author.Name)
}

// A file renamed between commits should still be followed across the
// rename when blaming the new path.
func TestBlameFollowsRenames(t *testing.T) {
	repo := newMemRepo()

	blob := repo.putBlob("hello\n")
	oldTree := repo.putTree(t, []object.TreeEntry{{Mode: object.ModeFile, Name: "old.txt", Target: blob}})
	c1 := repo.putCommit(t, oldTree, nil, 1000, "alice")

	newTree := repo.putTree(t, []object.TreeEntry{{Mode: object.ModeFile, Name: "new.txt", Target: blob}})
	c2 := repo.putCommit(t, newTree, []zoid.OID{c1}, 2000, "bob")

	result, err := Blame(context.Background(), repo, c2, "new.txt")
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	require.Equal(t, c1, result.Lines[0].Commit)
	require.Equal(t, "alice", result.Lines[0].Author.Name)
}
