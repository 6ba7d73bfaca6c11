// Package blame implements per-line attribution with rename tracking
// across history (spec §4.9, C17): walk a file's first-parent lineage,
// following it through renames, and assign every line in the starting
// revision's content to the oldest ancestor commit where that line's
// text still matches.
package blame

import (
	"context"

	"github.com/zetavcs/zeta/internal/diferenco"
	"github.com/zetavcs/zeta/object"
	"github.com/zetavcs/zeta/treediff"
	"github.com/zetavcs/zeta/zoid"
)

// Resolver is the lookup capability Blame needs: commits (to follow
// parent lineage), trees (to resolve a path at each commit), and blobs
// (to read file content). Declared locally, same narrow-interface
// pattern as merge.Store and treediff.Resolver. It is a superset of
// treediff.Resolver (it adds Commit), so any value satisfying Resolver
// can be passed directly where a treediff.Resolver is expected; it does
// not include merge.Store's Put.
type Resolver interface {
	Commit(ctx context.Context, oid zoid.OID) (*object.Commit, error)
	Tree(ctx context.Context, oid zoid.OID) (*object.Tree, error)
	Blob(ctx context.Context, oid zoid.OID) (*object.Blob, error)
}

// Line is one attributed line of the blamed file's content at startCommit.
type Line struct {
	Number  int
	Commit  zoid.OID
	Author  object.Signature
	Content string
}

// Result is the full per-line attribution of path as of startCommit.
type Result struct {
	Path   string
	Commit zoid.OID
	Lines  []Line
}

// Blame attributes every line of path, as it reads at startCommit, to
// the oldest commit in startCommit's first-parent lineage where that
// line's text still matches (spec §4.9 "attribute each line to the
// first commit where it appeared").
func Blame(ctx context.Context, r Resolver, startCommit zoid.OID, path string) (*Result, error) {
	chain, err := buildChain(ctx, r, startCommit, path)
	if err != nil {
		return nil, err
	}

	contents := make([][]string, len(chain))
	for i, link := range chain {
		lines, err := contentAt(ctx, r, link.commit, link.path)
		if err != nil {
			return nil, err
		}
		contents[i] = lines
	}

	final := contents[0]
	owner := make([]zoid.OID, len(final))
	resolved := make([]bool, len(final))
	pos := make([]int, len(final))
	for i := range pos {
		pos[i] = i
	}

	for step := 0; step < len(chain)-1; step++ {
		mapping := backMapping(contents[step+1], contents[step])
		next := make([]int, len(final))
		allResolved := true
		for i := range final {
			if resolved[i] {
				continue
			}
			if parentPos, ok := mapping[pos[i]]; ok {
				next[i] = parentPos
				allResolved = false
				continue
			}
			owner[i] = chain[step].commit
			resolved[i] = true
		}
		pos = next
		if allResolved {
			break
		}
	}
	for i := range final {
		if !resolved[i] {
			owner[i] = chain[len(chain)-1].commit
		}
	}

	commits := map[zoid.OID]*object.Commit{}
	lines := make([]Line, len(final))
	for i, text := range final {
		c, ok := commits[owner[i]]
		if !ok {
			var err error
			c, err = r.Commit(ctx, owner[i])
			if err != nil {
				return nil, err
			}
			commits[owner[i]] = c
		}
		lines[i] = Line{Number: i + 1, Commit: owner[i], Author: c.Author, Content: text}
	}

	return &Result{Path: path, Commit: startCommit, Lines: lines}, nil
}

// backMapping returns, for every index in side that is unchanged from
// base, the matching index in base. Lines absent from the mapping were
// introduced (or changed) going from base to side.
func backMapping(base, side []string) map[int]int {
	hunks := diferenco.Diff(base, side)
	mapping := make(map[int]int)
	sideIdx := 0
	for _, h := range hunks {
		if !h.Changed {
			mapping[sideIdx] = h.Start
			sideIdx++
			continue
		}
		sideIdx += len(h.Lines)
	}
	return mapping
}

// link is one step in a file's lineage: the commit and the path it was
// known by at that commit (paths can change going further back, tracked
// through renames).
type link struct {
	commit zoid.OID
	path   string
}

// buildChain follows path from startCommit through first-parent history,
// switching to a prior name whenever the tree diff between a commit and
// its parent reports a rename into the current path (spec §4.9 "tracking
// renames via detectRenames between successive commits"). The walk stops
// at the root commit or at the commit that introduced path with no older
// name.
func buildChain(ctx context.Context, r Resolver, start zoid.OID, path string) ([]link, error) {
	chain := []link{{commit: start, path: path}}
	cur, curPath := start, path
	for {
		commit, err := r.Commit(ctx, cur)
		if err != nil {
			return nil, err
		}
		if len(commit.Parents) == 0 {
			break
		}
		parent := commit.Parents[0]
		parentCommit, err := r.Commit(ctx, parent)
		if err != nil {
			return nil, err
		}

		nextPath := curPath
		_, found, err := resolveBlobAtPath(ctx, r, parentCommit.Tree, curPath)
		if err != nil {
			return nil, err
		}
		if !found {
			renamedFrom, ok, err := findRenameSource(ctx, r, parentCommit.Tree, commit.Tree, curPath)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			nextPath = renamedFrom
		}

		chain = append(chain, link{commit: parent, path: nextPath})
		cur, curPath = parent, nextPath
	}
	return chain, nil
}

// findRenameSource reports the old path a rename-detecting diff between
// oldTree and newTree assigns to newPath, if any.
func findRenameSource(ctx context.Context, r Resolver, oldTree, newTree zoid.OID, newPath string) (string, bool, error) {
	changes, err := treediff.Diff(ctx, r, oldTree, newTree, treediff.Options{DetectRenames: true})
	if err != nil {
		return "", false, err
	}
	for _, c := range changes {
		if c.Status == treediff.Renamed && c.NewPath == newPath {
			return c.OldPath, true, nil
		}
	}
	return "", false, nil
}

// contentAt returns the line-split content of path at the tree of the
// given commit, or nil if path doesn't exist there.
func contentAt(ctx context.Context, r Resolver, commitOID zoid.OID, path string) ([]string, error) {
	commit, err := r.Commit(ctx, commitOID)
	if err != nil {
		return nil, err
	}
	oid, found, err := resolveBlobAtPath(ctx, r, commit.Tree, path)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	blob, err := r.Blob(ctx, oid)
	if err != nil {
		return nil, err
	}
	return diferenco.Lines(blob.Data), nil
}
