package merge

import (
	"context"

	"github.com/zetavcs/zeta/object"
)

// decide classifies one path by spec §4.8's 8-case table and, for the
// "content merge" and "directory-file" rows, does the actual work
// (content.go's text merge, or reporting the type clash). It returns
// the entry to keep in the merged tree (nil if the path is deleted), or
// a Conflict if the path cannot be resolved automatically.
func (m *Merger) decide(ctx context.Context, path string, base, ours, theirs *object.TreeEntry) (*object.TreeEntry, *Conflict, error) {
	switch {
	case ours != nil && theirs != nil && sameEntry(ours, theirs):
		// X,X,X (unchanged) and -,X,X / X,Y,Y (both sides agree) all
		// collapse to the same "keep the agreed entry" action.
		return ours, nil, nil

	case base != nil && ours != nil && theirs != nil:
		return m.decideThreePresent(ctx, path, base, ours, theirs)

	case base == nil && ours != nil && theirs != nil:
		// add-add, and ours==theirs was already handled above: this is
		// a genuine conflict, two unrelated adds at the same path.
		return nil, &Conflict{Path: path, Kind: ConflictAddAdd, Ours: ours, Theirs: theirs}, nil

	case base != nil && ours == nil && theirs != nil:
		if sameEntry(base, theirs) {
			// ours deleted it, theirs left it untouched: honor the delete.
			return nil, nil, nil
		}
		return nil, &Conflict{Path: path, Kind: ConflictDeleteModify, Base: base, Theirs: theirs}, nil

	case base != nil && ours != nil && theirs == nil:
		if sameEntry(base, ours) {
			// theirs deleted it, ours left it untouched: honor the delete.
			return nil, nil, nil
		}
		return nil, &Conflict{Path: path, Kind: ConflictModifyDelete, Base: base, Ours: ours}, nil

	case base != nil && ours == nil && theirs == nil:
		// both sides deleted it independently.
		return nil, nil, nil

	default:
		// base == nil, and at most one of ours/theirs is non-nil: a
		// plain add on one side only, nothing to decide.
		if ours != nil {
			return ours, nil, nil
		}
		return theirs, nil, nil
	}
}

func sameEntry(a, b *object.TreeEntry) bool {
	return a.Mode == b.Mode && a.Target == b.Target
}

// decideThreePresent handles every row of the table where base, ours,
// and theirs all have an entry at path.
func (m *Merger) decideThreePresent(ctx context.Context, path string, base, ours, theirs *object.TreeEntry) (*object.TreeEntry, *Conflict, error) {
	baseOurs := sameEntry(base, ours)
	baseTheirs := sameEntry(base, theirs)

	switch {
	case baseOurs && baseTheirs:
		return ours, nil, nil // X,X,X
	case baseOurs && !baseTheirs:
		return theirs, nil, nil // X,X,Y: take theirs
	case !baseOurs && baseTheirs:
		return ours, nil, nil // X,Y,X: take ours
	}

	// X,Y,Z: both sides changed the path and disagree.
	if base.Mode.IsSubtree() != ours.Mode.IsSubtree() || base.Mode.IsSubtree() != theirs.Mode.IsSubtree() || ours.Mode.IsSubtree() != theirs.Mode.IsSubtree() {
		return nil, &Conflict{Path: path, Kind: ConflictDirectoryFile, Base: base, Ours: ours, Theirs: theirs}, nil
	}
	return m.mergeContent(ctx, path, base, ours, theirs)
}
