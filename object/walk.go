package object

import (
	"context"
	"path"

	"github.com/zetavcs/zeta/zoid"
)

// TreeResolver fetches the tree referenced by oid. Implementations
// typically delegate to the object store (package store).
type TreeResolver interface {
	Tree(ctx context.Context, oid zoid.OID) (*Tree, error)
}

// WalkEntry is one (fullPath, entry) pair produced by WalkTree.
type WalkEntry struct {
	FullPath string
	Entry    TreeEntry
}

// WalkTree performs a depth-first walk of the tree rooted at root,
// invoking visit for every non-subtree entry with its path joined by "/"
// (spec §4.1 "walkTree"). Subtree entries themselves are not visited
// unless visitSubtrees is true; a subtree is always recursed into
// regardless of that flag, its own entry line is simply suppressed from
// the callback.
//
// Work yields to ctx cancellation after each subtree, so a single request
// walking a very large tree cannot starve the caller's scheduler loop
// (spec §5 "Suspension points").
func WalkTree(ctx context.Context, r TreeResolver, root zoid.OID, visitSubtrees bool, visit func(WalkEntry) error) error {
	tree, err := r.Tree(ctx, root)
	if err != nil {
		return err
	}
	return walkTree(ctx, r, tree, "", visitSubtrees, visit)
}

func walkTree(ctx context.Context, r TreeResolver, tree *Tree, prefix string, visitSubtrees bool, visit func(WalkEntry) error) error {
	for _, e := range tree.Entries {
		full := e.Name
		if prefix != "" {
			full = path.Join(prefix, e.Name)
		}
		if e.Mode.IsSubtree() {
			if visitSubtrees {
				if err := visit(WalkEntry{FullPath: full, Entry: e}); err != nil {
					return err
				}
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			sub, err := r.Tree(ctx, e.Target)
			if err != nil {
				return err
			}
			if err := walkTree(ctx, r, sub, full, visitSubtrees, visit); err != nil {
				return err
			}
			continue
		}
		if err := visit(WalkEntry{FullPath: full, Entry: e}); err != nil {
			return err
		}
	}
	return nil
}
