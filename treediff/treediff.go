// Package treediff computes the set of path-level changes between two
// tree objects (spec §4.7, C15): plain adds/deletes/modifies/type
// changes via internal/merkletrie's paired walk, followed by optional
// rename and copy detection.
package treediff

import (
	"context"
	"sort"

	"github.com/zetavcs/zeta/internal/merkletrie"
	"github.com/zetavcs/zeta/internal/wildmatch"
	"github.com/zetavcs/zeta/object"
	"github.com/zetavcs/zeta/zoid"
)

// Status is one of the seven change classes spec §4.7 enumerates.
type Status byte

const (
	Added      Status = 'A'
	Deleted    Status = 'D'
	Modified   Status = 'M'
	Renamed    Status = 'R'
	Copied     Status = 'C'
	TypeChange Status = 'T'
	Unmerged   Status = 'U'
)

// Change is one emitted diff entry.
type Change struct {
	Status     Status
	OldPath    string
	NewPath    string
	From       *object.TreeEntry
	To         *object.TreeEntry
	Similarity int // 0-100, set for Renamed/Copied
	IsBinary   bool
}

// BlobResolver fetches blob content for similarity scoring and binary
// detection.
type BlobResolver interface {
	Blob(ctx context.Context, oid zoid.OID) (*object.Blob, error)
}

// Resolver is the combined tree+blob lookup capability Diff needs.
type Resolver interface {
	object.TreeResolver
	BlobResolver
}

// Options configures Diff (spec §4.7's option table).
type Options struct {
	DetectRenames        bool
	DetectCopies         bool
	SimilarityThreshold  int // percent, default 50 if zero and renames/copies requested
	Pathspecs            []string
	ExcludePaths         []string
	DetectBinary         bool
	Recursive            bool // default true; merkletrie.Walk is always recursive, false is not supported here
}

const defaultSimilarityThreshold = 50

// Diff computes the changes between oldRoot and newRoot (spec §4.7
// "diffTrees(oldRoot, newRoot, options)").
func Diff(ctx context.Context, r Resolver, oldRoot, newRoot zoid.OID, opts Options) ([]Change, error) {
	var excludeMatcher, includeMatcher *wildmatch.Matcher
	var err error
	if len(opts.ExcludePaths) > 0 {
		excludeMatcher, err = wildmatch.Compile(opts.ExcludePaths)
		if err != nil {
			return nil, err
		}
	}
	if len(opts.Pathspecs) > 0 {
		includeMatcher, err = wildmatch.Compile(opts.Pathspecs)
		if err != nil {
			return nil, err
		}
	}

	var changes []Change
	visit := func(fullPath string, from, to *object.TreeEntry) error {
		if excludeMatcher != nil && excludeMatcher.Match(fullPath, false) {
			return nil
		}
		if includeMatcher != nil && !includeMatcher.Match(fullPath, false) {
			return nil
		}
		changes = append(changes, classify(fullPath, from, to))
		return nil
	}
	if err := merkletrie.Walk(ctx, r, oldRoot, newRoot, visit); err != nil {
		return nil, err
	}

	threshold := opts.SimilarityThreshold
	if threshold == 0 {
		threshold = defaultSimilarityThreshold
	}
	if opts.DetectRenames {
		changes, err = detectRenames(ctx, r, changes, threshold)
		if err != nil {
			return nil, err
		}
	}
	if opts.DetectCopies {
		changes, err = detectCopies(ctx, r, oldRoot, changes, threshold)
		if err != nil {
			return nil, err
		}
	}
	if opts.DetectBinary {
		if err := markBinary(ctx, r, changes); err != nil {
			return nil, err
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		return changePathKey(changes[i]) < changePathKey(changes[j])
	})
	return changes, nil
}

func changePathKey(c Change) string {
	if c.NewPath != "" {
		return c.NewPath
	}
	return c.OldPath
}

// classify turns one merkletrie.Visit callback into a single-path Change
// before rename/copy pairing runs.
func classify(fullPath string, from, to *object.TreeEntry) Change {
	switch {
	case from == nil:
		return Change{Status: Added, NewPath: fullPath, To: to}
	case to == nil:
		return Change{Status: Deleted, OldPath: fullPath, From: from}
	case from.Mode.IsSubtree() != to.Mode.IsSubtree():
		return Change{Status: TypeChange, OldPath: fullPath, NewPath: fullPath, From: from, To: to}
	default:
		return Change{Status: Modified, OldPath: fullPath, NewPath: fullPath, From: from, To: to}
	}
}
