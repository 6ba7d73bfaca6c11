package mirror

import (
	"context"

	"github.com/zetavcs/zeta/object"
	"github.com/zetavcs/zeta/zoid"
)

// copyMissingObjects copies every object reachable from start (the
// commit, its tree, and every blob/subtree under it, then its parents
// transitively) that dst doesn't already have. A commit dst already has
// is assumed to carry its entire reachable graph already, by the
// content-addressed-immutability guarantee, so its parents are not
// revisited — this is what makes repeated syncs incremental.
func copyMissingObjects(ctx context.Context, src, dst Endpoint, start zoid.OID) error {
	visited := make(map[zoid.OID]bool)
	stack := []zoid.OID{start}
	for len(stack) > 0 {
		oid := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if oid.IsZero() || visited[oid] {
			continue
		}
		visited[oid] = true

		has, err := dst.Has(ctx, oid)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		kind, payload, err := src.Get(ctx, oid.String())
		if err != nil {
			return err
		}
		if _, err := dst.Put(ctx, kind, payload); err != nil {
			return err
		}

		switch kind {
		case zoid.Commit:
			commit, err := object.DecodeCommit(payload)
			if err != nil {
				return err
			}
			stack = append(stack, commit.Tree)
			stack = append(stack, commit.Parents...)
		case zoid.Tree:
			tree, err := object.DecodeTree(payload)
			if err != nil {
				return err
			}
			for _, e := range tree.Entries {
				stack = append(stack, e.Target)
			}
		}
	}
	return nil
}
