package merge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zetavcs/zeta/object"
	"github.com/zetavcs/zeta/refs"
	"github.com/zetavcs/zeta/zoid"
)

type memStore struct {
	trees   map[zoid.OID]*object.Tree
	blobs   map[zoid.OID]*object.Blob
	commits map[zoid.OID]*object.Commit
}

func newMemStore() *memStore {
	return &memStore{
		trees:   map[zoid.OID]*object.Tree{},
		blobs:   map[zoid.OID]*object.Blob{},
		commits: map[zoid.OID]*object.Commit{},
	}
}

func (s *memStore) Tree(_ context.Context, oid zoid.OID) (*object.Tree, error) {
	t, ok := s.trees[oid]
	if !ok {
		return nil, errNotFound
	}
	return t, nil
}

func (s *memStore) Blob(_ context.Context, oid zoid.OID) (*object.Blob, error) {
	b, ok := s.blobs[oid]
	if !ok {
		return nil, errNotFound
	}
	return b, nil
}

func (s *memStore) Commit(_ context.Context, oid zoid.OID) (*object.Commit, error) {
	c, ok := s.commits[oid]
	if !ok {
		return nil, errNotFound
	}
	return c, nil
}

func (s *memStore) Put(_ context.Context, kind zoid.Kind, payload []byte) (zoid.OID, error) {
	oid := zoid.Hash(kind, payload)
	switch kind {
	case zoid.Blob:
		s.blobs[oid] = &object.Blob{Data: payload}
	case zoid.Tree:
		tr, err := object.DecodeTree(payload)
		if err != nil {
			return zoid.Zero, err
		}
		s.trees[oid] = tr
	case zoid.Commit:
		c, err := object.DecodeCommit(payload)
		if err != nil {
			return zoid.Zero, err
		}
		s.commits[oid] = c
	}
	return oid, nil
}

func (s *memStore) putBlob(content string) zoid.OID {
	oid := zoid.Hash(zoid.Blob, []byte(content))
	s.blobs[oid] = &object.Blob{Data: []byte(content)}
	return oid
}

func (s *memStore) putTree(t *testing.T, entries []object.TreeEntry) zoid.OID {
	t.Helper()
	tr, err := object.NewTree(entries)
	require.NoError(t, err)
	oid, err := tr.Hash()
	require.NoError(t, err)
	s.trees[oid] = tr
	return oid
}

func (s *memStore) putCommit(t *testing.T, tree zoid.OID, parents []zoid.OID) zoid.OID {
	t.Helper()
	c := &object.Commit{
		Tree:      tree,
		Parents:   parents,
		Author:    object.Signature{Name: "tester", Email: "tester@example.com", When: 1},
		Committer: object.Signature{Name: "tester", Email: "tester@example.com", When: 1},
		Message:   "m",
	}
	oid, err := c.Hash()
	require.NoError(t, err)
	s.commits[oid] = c
	return oid
}

type memRefs struct {
	refs map[refs.Name]*refs.Reference
}

func newMemRefs(head zoid.OID) *memRefs {
	return &memRefs{refs: map[refs.Name]*refs.Reference{
		refs.HEAD: {Name: refs.HEAD, Kind: refs.Direct, Target: head.String()},
	}}
}

func (r *memRefs) Get(_ context.Context, name refs.Name) (*refs.Reference, error) {
	ref, ok := r.refs[name]
	if !ok {
		return nil, errNotFound
	}
	return ref, nil
}

func (r *memRefs) Set(_ context.Context, name refs.Name, target zoid.OID) error {
	r.refs[name] = &refs.Reference{Name: name, Kind: refs.Direct, Target: target.String()}
	return nil
}

type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }

var errNotFound = notFoundError{}

func TestRunUpToDate(t *testing.T) {
	store := newMemStore()
	tree := store.putTree(t, nil)
	head := store.putCommit(t, tree, nil)

	m := New(store, newMemRefs(head), nil)
	result, err := m.Run(context.Background(), head, head, Options{})
	require.NoError(t, err)
	require.Equal(t, UpToDate, result.Outcome)
	require.Equal(t, head, result.NewHead)
}

func TestRunFastForward(t *testing.T) {
	store := newMemStore()
	blobA := store.putBlob("a")
	treeA := store.putTree(t, []object.TreeEntry{{Mode: object.ModeFile, Name: "a.txt", Target: blobA}})
	base := store.putCommit(t, treeA, nil)

	blobB := store.putBlob("b")
	treeB := store.putTree(t, []object.TreeEntry{
		{Mode: object.ModeFile, Name: "a.txt", Target: blobA},
		{Mode: object.ModeFile, Name: "b.txt", Target: blobB},
	})
	ahead := store.putCommit(t, treeB, []zoid.OID{base})

	m := New(store, newMemRefs(base), nil)
	result, err := m.Run(context.Background(), base, ahead, Options{})
	require.NoError(t, err)
	require.Equal(t, FastForward, result.Outcome)
	require.Equal(t, ahead, result.NewHead)
}

func TestRunMergesNonConflictingAdds(t *testing.T) {
	store := newMemStore()
	baseTree := store.putTree(t, nil)
	base := store.putCommit(t, baseTree, nil)

	blobOurs := store.putBlob("ours content")
	oursTree := store.putTree(t, []object.TreeEntry{{Mode: object.ModeFile, Name: "ours.txt", Target: blobOurs}})
	ours := store.putCommit(t, oursTree, []zoid.OID{base})

	blobTheirs := store.putBlob("theirs content")
	theirsTree := store.putTree(t, []object.TreeEntry{{Mode: object.ModeFile, Name: "theirs.txt", Target: blobTheirs}})
	theirs := store.putCommit(t, theirsTree, []zoid.OID{base})

	m := New(store, newMemRefs(ours), nil)
	result, err := m.Run(context.Background(), ours, theirs, Options{Message: "merge", CommitTime: 42})
	require.NoError(t, err)
	require.Equal(t, Merged, result.Outcome)
	require.NotEqual(t, zoid.Zero, result.NewHead)

	mergedTree, err := store.Tree(context.Background(), result.MergeTree)
	require.NoError(t, err)
	require.Len(t, mergedTree.Entries, 2)
}

func TestDecideAddAddIsConflict(t *testing.T) {
	store := newMemStore()
	m := New(store, newMemRefs(zoid.Zero), nil)

	blobOurs := &object.TreeEntry{Mode: object.ModeFile, Name: "x", Target: store.putBlob("ours")}
	blobTheirs := &object.TreeEntry{Mode: object.ModeFile, Name: "x", Target: store.putBlob("theirs")}

	entry, conflict, err := m.decide(context.Background(), "x", nil, blobOurs, blobTheirs)
	require.NoError(t, err)
	require.Nil(t, entry)
	require.NotNil(t, conflict)
	require.Equal(t, ConflictAddAdd, conflict.Kind)
}

func TestDecideDeleteModifyIsConflict(t *testing.T) {
	store := newMemStore()
	m := New(store, newMemRefs(zoid.Zero), nil)

	base := &object.TreeEntry{Mode: object.ModeFile, Name: "x", Target: store.putBlob("base")}
	theirs := &object.TreeEntry{Mode: object.ModeFile, Name: "x", Target: store.putBlob("changed")}

	entry, conflict, err := m.decide(context.Background(), "x", base, nil, theirs)
	require.NoError(t, err)
	require.Nil(t, entry)
	require.NotNil(t, conflict)
	require.Equal(t, ConflictDeleteModify, conflict.Kind)
}

func TestDecideHonorsOursDeleteWhenTheirsUnchanged(t *testing.T) {
	store := newMemStore()
	m := New(store, newMemRefs(zoid.Zero), nil)

	base := &object.TreeEntry{Mode: object.ModeFile, Name: "x", Target: store.putBlob("base")}

	entry, conflict, err := m.decide(context.Background(), "x", base, nil, base)
	require.NoError(t, err)
	require.Nil(t, entry)
	require.Nil(t, conflict)
}
