package merge

import (
	"context"
	"sort"
	"strings"

	"github.com/zetavcs/zeta/object"
	"github.com/zetavcs/zeta/zoid"
)

// flatten recursively enumerates every file (non-subtree) path under
// root into a path -> entry map. A zero OID is treated as an empty tree,
// so a side that doesn't exist at some ancestor contributes nothing.
func flatten(ctx context.Context, r object.TreeResolver, root zoid.OID) (map[string]object.TreeEntry, error) {
	out := make(map[string]object.TreeEntry)
	if root.IsZero() {
		return out, nil
	}
	err := object.WalkTree(ctx, r, root, false, func(e object.WalkEntry) error {
		if !e.Entry.Mode.IsSubtree() {
			out[e.FullPath] = e.Entry
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func unionPaths(maps ...map[string]object.TreeEntry) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range maps {
		for p := range m {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				out = append(out, p)
			}
		}
	}
	sort.Strings(out)
	return out
}

// buildTree assembles a nested Tree object from a flat list of (path,
// entry) pairs, writing every intermediate subtree and returning the
// root's OID. An empty entries list produces an empty root tree.
func (m *Merger) buildTree(ctx context.Context, entries []pathEntry) (zoid.OID, error) {
	root := &dirNode{children: map[string]*dirNode{}}
	for _, pe := range entries {
		root.insert(strings.Split(pe.path, "/"), pe.entry)
	}
	return m.writeDir(ctx, root)
}

// dirNode is an in-memory staging tree built up from flat paths before
// being written out bottom-up as content-addressed Tree objects.
type dirNode struct {
	children map[string]*dirNode
	files    map[string]object.TreeEntry
}

func (d *dirNode) insert(parts []string, entry object.TreeEntry) {
	if len(parts) == 1 {
		if d.files == nil {
			d.files = map[string]object.TreeEntry{}
		}
		d.files[parts[0]] = entry
		return
	}
	name := parts[0]
	child, ok := d.children[name]
	if !ok {
		child = &dirNode{children: map[string]*dirNode{}}
		d.children[name] = child
	}
	child.insert(parts[1:], entry)
}

func (m *Merger) writeDir(ctx context.Context, d *dirNode) (zoid.OID, error) {
	var entries []object.TreeEntry
	for name, child := range d.children {
		childOID, err := m.writeDir(ctx, child)
		if err != nil {
			return zoid.Zero, err
		}
		entries = append(entries, object.TreeEntry{Mode: object.ModeSubtree, Name: name, Target: childOID})
	}
	for name, entry := range d.files {
		entries = append(entries, object.TreeEntry{Mode: entry.Mode, Name: name, Target: entry.Target})
	}
	tree, err := object.NewTree(entries)
	if err != nil {
		return zoid.Zero, err
	}
	payload, err := tree.Encode()
	if err != nil {
		return zoid.Zero, err
	}
	return m.store.Put(ctx, zoid.Tree, payload)
}
