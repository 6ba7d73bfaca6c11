package merge

import (
	"context"

	"github.com/zetavcs/zeta/internal/diferenco"
	"github.com/zetavcs/zeta/object"
	"github.com/zetavcs/zeta/treediff"
	"github.com/zetavcs/zeta/zoid"
)

// mergeContent handles the X,Y,Z row of the decision table for a
// non-subtree path: a three-way text merge via internal/diferenco, or a
// conflict if either side is binary (spec §4.8 step 5 "Binary content
// never auto-merges").
func (m *Merger) mergeContent(ctx context.Context, path string, base, ours, theirs *object.TreeEntry) (*object.TreeEntry, *Conflict, error) {
	baseBlob, err := m.store.Blob(ctx, base.Target)
	if err != nil {
		return nil, nil, err
	}
	oursBlob, err := m.store.Blob(ctx, ours.Target)
	if err != nil {
		return nil, nil, err
	}
	theirsBlob, err := m.store.Blob(ctx, theirs.Target)
	if err != nil {
		return nil, nil, err
	}

	if treediff.IsBinary(baseBlob.Data) || treediff.IsBinary(oursBlob.Data) || treediff.IsBinary(theirsBlob.Data) {
		return nil, &Conflict{
			Path: path, Kind: ConflictContent, Base: base, Ours: ours, Theirs: theirs,
		}, nil
	}

	merged, conflicted := diferenco.Merge(baseBlob.Data, oursBlob.Data, theirsBlob.Data)
	if conflicted {
		return nil, &Conflict{
			Path: path, Kind: ConflictContent, Base: base, Ours: ours, Theirs: theirs, Merged: merged,
		}, nil
	}

	oid, err := m.store.Put(ctx, zoid.Blob, merged)
	if err != nil {
		return nil, nil, err
	}
	mode := ours.Mode
	return &object.TreeEntry{Mode: mode, Name: ours.Name, Target: oid}, nil, nil
}

// autoResolve replaces every remaining conflict with the nominated side's
// entry (spec §4.8 step 6 "If autoResolve with conflictStrategy, replace
// conflicts with the nominated side and clear"), rebuilding the tree to
// include the now-resolved paths. Structural conflicts with no entry on
// the nominated side (e.g. a delete-modify where the nominated side is
// the deleting one) resolve to a deletion.
func (m *Merger) autoResolve(ctx context.Context, mergedTree zoid.OID, conflicts []Conflict, strategy ConflictStrategy) (zoid.OID, []Conflict, error) {
	entries, err := flatten(ctx, m.store, mergedTree)
	if err != nil {
		return zoid.Zero, nil, err
	}
	for _, c := range conflicts {
		resolved := pickSide(c, strategy)
		if resolved == nil {
			delete(entries, c.Path)
			continue
		}
		entries[c.Path] = *resolved
	}
	newTree, err := m.buildTree(ctx, toPathEntries(entries))
	if err != nil {
		return zoid.Zero, nil, err
	}
	return newTree, nil, nil
}

func pickSide(c Conflict, strategy ConflictStrategy) *object.TreeEntry {
	if strategy == StrategyTheirs {
		return c.Theirs
	}
	return c.Ours
}

func toPathEntries(m map[string]object.TreeEntry) []pathEntry {
	out := make([]pathEntry, 0, len(m))
	for path, e := range m {
		out = append(out, pathEntry{path: path, entry: e})
	}
	return out
}
