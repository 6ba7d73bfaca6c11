package mirror

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zetavcs/zeta/object"
	"github.com/zetavcs/zeta/refs"
	"github.com/zetavcs/zeta/zerr"
	"github.com/zetavcs/zeta/zoid"
)

type memObjects struct {
	trees   map[zoid.OID]*object.Tree
	commits map[zoid.OID]*object.Commit
	raw     map[zoid.OID][]byte
	kinds   map[zoid.OID]zoid.Kind
}

func newMemObjects() *memObjects {
	return &memObjects{
		trees:   map[zoid.OID]*object.Tree{},
		commits: map[zoid.OID]*object.Commit{},
		raw:     map[zoid.OID][]byte{},
		kinds:   map[zoid.OID]zoid.Kind{},
	}
}

func (m *memObjects) Tree(_ context.Context, oid zoid.OID) (*object.Tree, error) {
	t, ok := m.trees[oid]
	if !ok {
		return nil, zerr.NewNotFoundError("tree", oid.String())
	}
	return t, nil
}

func (m *memObjects) Commit(_ context.Context, oid zoid.OID) (*object.Commit, error) {
	c, ok := m.commits[oid]
	if !ok {
		return nil, zerr.NewNotFoundError("commit", oid.String())
	}
	return c, nil
}

func (m *memObjects) Has(_ context.Context, oid zoid.OID) (bool, error) {
	_, ok := m.raw[oid]
	return ok, nil
}

func (m *memObjects) Get(_ context.Context, oidOrPrefix string) (zoid.Kind, []byte, error) {
	oid, err := zoid.Parse(oidOrPrefix)
	if err != nil {
		return 0, nil, err
	}
	payload, ok := m.raw[oid]
	if !ok {
		return 0, nil, zerr.NewNotFoundError("object", oidOrPrefix)
	}
	return m.kinds[oid], payload, nil
}

func (m *memObjects) Put(_ context.Context, kind zoid.Kind, payload []byte) (zoid.OID, error) {
	oid := zoid.Hash(kind, payload)
	m.raw[oid] = payload
	m.kinds[oid] = kind
	switch kind {
	case zoid.Tree:
		tr, err := object.DecodeTree(payload)
		if err != nil {
			return zoid.Zero, err
		}
		m.trees[oid] = tr
	case zoid.Commit:
		c, err := object.DecodeCommit(payload)
		if err != nil {
			return zoid.Zero, err
		}
		m.commits[oid] = c
	}
	return oid, nil
}

func (m *memObjects) putCommit(t *testing.T, tree zoid.OID, parents []zoid.OID) zoid.OID {
	t.Helper()
	c := &object.Commit{
		Tree:      tree,
		Parents:   parents,
		Author:    object.Signature{Name: "t", Email: "t@example.com", When: 1},
		Committer: object.Signature{Name: "t", Email: "t@example.com", When: 1},
		Message:   "m",
	}
	payload, err := c.Encode()
	require.NoError(t, err)
	oid, err := c.Hash()
	require.NoError(t, err)
	m.commits[oid] = c
	m.raw[oid] = payload
	m.kinds[oid] = zoid.Commit
	return oid
}

func (m *memObjects) putTree(t *testing.T, entries []object.TreeEntry) zoid.OID {
	t.Helper()
	tr, err := object.NewTree(entries)
	require.NoError(t, err)
	payload, err := tr.Encode()
	require.NoError(t, err)
	oid, err := tr.Hash()
	require.NoError(t, err)
	m.trees[oid] = tr
	m.raw[oid] = payload
	m.kinds[oid] = zoid.Tree
	return oid
}

type memRefStore struct {
	refs map[refs.Name]*refs.Reference
}

func newMemRefStore() *memRefStore {
	return &memRefStore{refs: map[refs.Name]*refs.Reference{}}
}

func (r *memRefStore) Get(_ context.Context, name refs.Name) (*refs.Reference, error) {
	ref, ok := r.refs[name]
	if !ok {
		return nil, nil
	}
	return ref, nil
}

func (r *memRefStore) Set(_ context.Context, name refs.Name, target zoid.OID) error {
	r.refs[name] = &refs.Reference{Name: name, Kind: refs.Direct, Target: target.String()}
	return nil
}

func (r *memRefStore) ListByPrefix(_ context.Context, prefix string) ([]*refs.Reference, error) {
	var out []*refs.Reference
	for name, ref := range r.refs {
		if prefix == "" || strings.HasPrefix(string(name), prefix) {
			out = append(out, ref)
		}
	}
	return out, nil
}

func TestSyncPullFastForwardsAndCopiesObjects(t *testing.T) {
	srcObjects := newMemObjects()
	tree := srcObjects.putTree(t, nil)
	commit := srcObjects.putCommit(t, tree, nil)

	srcRefStore := newMemRefStore()
	require.NoError(t, srcRefStore.Set(context.Background(), "refs/heads/main", commit))

	dstObjects := newMemObjects()
	dstRefStore := newMemRefStore()

	upstream := NewRepository(srcObjects, srcRefStore)
	downstream := NewRepository(dstObjects, dstRefStore)

	reports, err := Sync(context.Background(), upstream, downstream, Options{Direction: Pull})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.True(t, reports[0].FastForward)
	require.True(t, reports[0].Updated)
	require.Equal(t, commit, reports[0].New)

	has, err := dstObjects.Has(context.Background(), commit)
	require.NoError(t, err)
	require.True(t, has)

	ref, err := dstRefStore.Get(context.Background(), "refs/heads/main")
	require.NoError(t, err)
	require.Equal(t, commit.String(), ref.Target)
}

func TestSyncSkipsUnchangedRef(t *testing.T) {
	srcObjects := newMemObjects()
	tree := srcObjects.putTree(t, nil)
	commit := srcObjects.putCommit(t, tree, nil)

	srcRefStore := newMemRefStore()
	require.NoError(t, srcRefStore.Set(context.Background(), "refs/heads/main", commit))

	dstObjects := newMemObjects()
	dstRefStore := newMemRefStore()
	require.NoError(t, dstRefStore.Set(context.Background(), "refs/heads/main", commit))
	dstObjects.putCommit(t, tree, nil)

	upstream := NewRepository(srcObjects, srcRefStore)
	downstream := NewRepository(dstObjects, dstRefStore)

	reports, err := Sync(context.Background(), upstream, downstream, Options{Direction: Pull})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.False(t, reports[0].Updated)
	require.False(t, reports[0].FastForward)
}

func TestSyncDivergedRefErrorsWithErrorStrategy(t *testing.T) {
	srcObjects := newMemObjects()
	baseTree := srcObjects.putTree(t, nil)
	base := srcObjects.putCommit(t, baseTree, nil)
	srcBlob := zoid.Hash(zoid.Blob, []byte("src"))
	srcObjects.raw[srcBlob] = []byte("src")
	srcObjects.kinds[srcBlob] = zoid.Blob
	srcTree := srcObjects.putTree(t, []object.TreeEntry{{Mode: object.ModeFile, Name: "src.txt", Target: srcBlob}})
	srcOnly := srcObjects.putCommit(t, srcTree, []zoid.OID{base})

	srcRefStore := newMemRefStore()
	require.NoError(t, srcRefStore.Set(context.Background(), "refs/heads/main", srcOnly))

	dstObjects := newMemObjects()
	dstObjects.putTree(t, nil)
	dstObjects.putCommit(t, baseTree, nil)
	dstBlob := zoid.Hash(zoid.Blob, []byte("dst"))
	dstObjects.raw[dstBlob] = []byte("dst")
	dstObjects.kinds[dstBlob] = zoid.Blob
	dstTree := dstObjects.putTree(t, []object.TreeEntry{{Mode: object.ModeFile, Name: "dst.txt", Target: dstBlob}})
	dstOnly := dstObjects.putCommit(t, dstTree, []zoid.OID{base})
	dstRefStore := newMemRefStore()
	require.NoError(t, dstRefStore.Set(context.Background(), "refs/heads/main", dstOnly))

	upstream := NewRepository(srcObjects, srcRefStore)
	downstream := NewRepository(dstObjects, dstRefStore)

	_, err := Sync(context.Background(), upstream, downstream, Options{
		Direction:        Pull,
		ConflictStrategy: Error,
	})
	require.Error(t, err)
}

func TestSyncRefPatternFiltersByName(t *testing.T) {
	srcObjects := newMemObjects()
	tree := srcObjects.putTree(t, nil)
	mainCommit := srcObjects.putCommit(t, tree, nil)
	tagCommit := srcObjects.putCommit(t, tree, []zoid.OID{mainCommit})

	srcRefStore := newMemRefStore()
	require.NoError(t, srcRefStore.Set(context.Background(), "refs/heads/main", mainCommit))
	require.NoError(t, srcRefStore.Set(context.Background(), "refs/tags/v1", tagCommit))

	dstObjects := newMemObjects()
	dstRefStore := newMemRefStore()

	upstream := NewRepository(srcObjects, srcRefStore)
	downstream := NewRepository(dstObjects, dstRefStore)

	reports, err := Sync(context.Background(), upstream, downstream, Options{
		Direction:   Pull,
		RefPatterns: []string{"refs/heads/**"},
	})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, refs.Name("refs/heads/main"), reports[0].Ref)
}
