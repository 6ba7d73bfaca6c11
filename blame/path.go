package blame

import (
	"context"
	"strings"

	"github.com/zetavcs/zeta/zoid"
)

// resolveBlobAtPath descends root component by component, returning the
// target OID of the file entry at path, or found=false if any component
// is missing or resolves to something other than a file along the way.
func resolveBlobAtPath(ctx context.Context, r Resolver, root zoid.OID, path string) (zoid.OID, bool, error) {
	if root.IsZero() || path == "" {
		return zoid.Zero, false, nil
	}
	parts := strings.Split(path, "/")
	treeOID := root
	for i, name := range parts {
		tree, err := r.Tree(ctx, treeOID)
		if err != nil {
			return zoid.Zero, false, err
		}
		var found bool
		var target zoid.OID
		var isSubtree bool
		for _, e := range tree.Entries {
			if e.Name == name {
				found = true
				target = e.Target
				isSubtree = e.Mode.IsSubtree()
				break
			}
		}
		if !found {
			return zoid.Zero, false, nil
		}
		last := i == len(parts)-1
		if last {
			if isSubtree {
				return zoid.Zero, false, nil
			}
			return target, true, nil
		}
		if !isSubtree {
			return zoid.Zero, false, nil
		}
		treeOID = target
	}
	return zoid.Zero, false, nil
}
