package refs

import (
	"context"

	"github.com/zetavcs/zeta/object"
	"github.com/zetavcs/zeta/zerr"
	"github.com/zetavcs/zeta/zoid"
)

// TagObjectStore is the narrow object-store capability tag ops need:
// writing an annotated tag object and peeling through tag chains.
type TagObjectStore interface {
	Put(ctx context.Context, kind zoid.Kind, payload []byte) (zoid.OID, error)
	Get(ctx context.Context, oidOrPrefix string) (zoid.Kind, []byte, error)
}

// CreateLightweightTag creates a direct ref under refs/tags/* pointing
// straight at target (spec §4.5 "lightweight tags are direct refs").
func (s *Store) CreateLightweightTag(ctx context.Context, name string, target zoid.OID, force bool) error {
	if !ValidateTagName(name) {
		return zerr.NewRefConflictError(name, "invalid tag name")
	}
	ref := Name(TagPrefix + name)
	if existing, err := s.Get(ctx, ref); err != nil {
		return err
	} else if existing != nil && !force {
		return zerr.NewRefConflictError(string(ref), "tag already exists")
	}
	return s.Set(ctx, ref, target)
}

// CreateAnnotatedTag writes a tag object to objStore and points the ref
// at the tag object's OID (spec §4.5 "annotated tags additionally create
// a tag object whose OID is what the ref points to").
func (s *Store) CreateAnnotatedTag(ctx context.Context, objStore TagObjectStore, name string, tag *object.Tag, force bool) (zoid.OID, error) {
	if !ValidateTagName(name) {
		return zoid.Zero, zerr.NewRefConflictError(name, "invalid tag name")
	}
	ref := Name(TagPrefix + name)
	if existing, err := s.Get(ctx, ref); err != nil {
		return zoid.Zero, err
	} else if existing != nil && !force {
		return zoid.Zero, zerr.NewRefConflictError(string(ref), "tag already exists")
	}

	payload, err := tag.Encode()
	if err != nil {
		return zoid.Zero, err
	}
	oid, err := objStore.Put(ctx, zoid.Tag, payload)
	if err != nil {
		return zoid.Zero, err
	}
	if err := s.Set(ctx, ref, oid); err != nil {
		return zoid.Zero, err
	}
	return oid, nil
}

// ResolveTagToCommit peels through a chain of annotated tags starting at
// oid until it finds a commit (spec §4.5 "resolveTagToCommit").
func ResolveTagToCommit(ctx context.Context, objStore TagObjectStore, oid zoid.OID) (zoid.OID, error) {
	for i := 0; i < maxResolveRecursion; i++ {
		kind, payload, err := objStore.Get(ctx, oid.String())
		if err != nil {
			return zoid.Zero, err
		}
		switch kind {
		case zoid.Commit:
			return oid, nil
		case zoid.Tag:
			t, err := object.DecodeAs[*object.Tag](zoid.Tag, payload)
			if err != nil {
				return zoid.Zero, err
			}
			oid = t.Target
		default:
			return zoid.Zero, zerr.NewInvalidObjectError("tag does not resolve to a commit")
		}
	}
	return zoid.Zero, zerr.NewInvalidObjectError("tag chain exceeded recursion limit")
}

// ListTags returns every tag ref, sorted by name.
func (s *Store) ListTags(ctx context.Context) ([]*Reference, error) {
	return s.ListByPrefix(ctx, TagPrefix)
}
