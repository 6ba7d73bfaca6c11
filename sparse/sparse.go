// Package sparse implements sparse-tree filtering (spec §4.9, C18): an
// ordered pattern set, compiled once, selecting which tree entries a
// consumer materialises, with subtree pruning during a tree walk.
package sparse

import (
	"context"

	"github.com/zetavcs/zeta/internal/wildmatch"
	"github.com/zetavcs/zeta/object"
	"github.com/zetavcs/zeta/zoid"
)

// Filter is a compiled sparse-checkout pattern set.
type Filter struct {
	matcher *wildmatch.Matcher
}

// Compile parses a sparse-checkout pattern file's lines (spec §4.9
// "Pattern set -> regex").
func Compile(patterns []string) (*Filter, error) {
	m, err := wildmatch.Compile(patterns)
	if err != nil {
		return nil, err
	}
	return &Filter{matcher: m}, nil
}

// Matches reports whether path is selected by the pattern set (spec §4.9
// "path-level match with negation").
func (f *Filter) Matches(path string, isDir bool) bool {
	return f.matcher.Match(path, isDir)
}

// CouldContainMatches reports whether dirPath might contain a selected
// path beneath it, used to prune whole subtrees during a walk.
func (f *Filter) CouldContainMatches(dirPath string) bool {
	return f.matcher.CouldContainMatches(dirPath)
}

// Entry is one file entry that survived sparse filtering.
type Entry struct {
	Path  string
	Entry object.TreeEntry
}

// Apply walks the tree rooted at root, returning every non-subtree entry
// whose path matches the filter. Whole subtrees are skipped without
// recursing into them when CouldContainMatches rules them out (spec §4.9
// "tree-walk pruning"), so a large excluded directory costs one check
// instead of a full descent.
func Apply(ctx context.Context, r object.TreeResolver, root zoid.OID, f *Filter) ([]Entry, error) {
	var out []Entry
	if root.IsZero() {
		return out, nil
	}
	tree, err := r.Tree(ctx, root)
	if err != nil {
		return nil, err
	}
	if err := applyTree(ctx, r, tree, "", f, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func applyTree(ctx context.Context, r object.TreeResolver, tree *object.Tree, prefix string, f *Filter, out *[]Entry) error {
	for _, e := range tree.Entries {
		full := e.Name
		if prefix != "" {
			full = prefix + "/" + e.Name
		}
		if e.Mode.IsSubtree() {
			if !f.CouldContainMatches(full) {
				continue
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
			if err := applyTree(ctx, r, sub, full, f, out); err != nil {
				return err
			}
			continue
		}
		if f.Matches(full, false) {
			*out = append(*out, Entry{Path: full, Entry: e})
		}
	}
	return nil
}
