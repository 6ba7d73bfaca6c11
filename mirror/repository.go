package mirror

import (
	"context"

	"github.com/zetavcs/zeta/object"
	"github.com/zetavcs/zeta/refs"
	"github.com/zetavcs/zeta/zoid"
)

// ObjectStore is the object-half capability Endpoint needs, matching
// store.Store's exported surface exactly so a *store.Store can be passed
// to NewRepository without mirror importing package store.
type ObjectStore interface {
	object.TreeResolver
	Commit(ctx context.Context, oid zoid.OID) (*object.Commit, error)
	Has(ctx context.Context, oid zoid.OID) (bool, error)
	Get(ctx context.Context, oidOrPrefix string) (zoid.Kind, []byte, error)
	Put(ctx context.Context, kind zoid.Kind, payload []byte) (zoid.OID, error)
}

// RefStore is the ref-half capability, matching refs.Store's Get/Set/
// ListByPrefix method names so a *refs.Store can be passed directly.
type RefStore interface {
	Get(ctx context.Context, name refs.Name) (*refs.Reference, error)
	Set(ctx context.Context, name refs.Name, target zoid.OID) error
	ListByPrefix(ctx context.Context, prefix string) ([]*refs.Reference, error)
}

// Repository adapts an ObjectStore and RefStore pair into an Endpoint.
// The two halves keep their own method names (refs.Store calls its
// operations Get/Set/ListByPrefix, not GetRef/SetRef/ListRefs); Repository
// is the thin rename that lets one repository's store and ref stores
// stand in for the other side of a Sync without either package depending
// on mirror.
type Repository struct {
	objects  ObjectStore
	refStore RefStore
}

// NewRepository binds objects and refStore as one Endpoint.
func NewRepository(objects ObjectStore, refStore RefStore) *Repository {
	return &Repository{objects: objects, refStore: refStore}
}

func (r *Repository) Tree(ctx context.Context, oid zoid.OID) (*object.Tree, error) {
	return r.objects.Tree(ctx, oid)
}

func (r *Repository) Commit(ctx context.Context, oid zoid.OID) (*object.Commit, error) {
	return r.objects.Commit(ctx, oid)
}

func (r *Repository) Has(ctx context.Context, oid zoid.OID) (bool, error) {
	return r.objects.Has(ctx, oid)
}

func (r *Repository) Get(ctx context.Context, oidOrPrefix string) (zoid.Kind, []byte, error) {
	return r.objects.Get(ctx, oidOrPrefix)
}

func (r *Repository) Put(ctx context.Context, kind zoid.Kind, payload []byte) (zoid.OID, error) {
	return r.objects.Put(ctx, kind, payload)
}

func (r *Repository) GetRef(ctx context.Context, name refs.Name) (*refs.Reference, error) {
	return r.refStore.Get(ctx, name)
}

func (r *Repository) SetRef(ctx context.Context, name refs.Name, target zoid.OID) error {
	return r.refStore.Set(ctx, name, target)
}

func (r *Repository) ListRefs(ctx context.Context, prefix string) ([]*refs.Reference, error) {
	return r.refStore.ListByPrefix(ctx, prefix)
}
