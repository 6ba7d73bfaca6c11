package treediff

import (
	"context"

	"github.com/zetavcs/zeta/object"
	"github.com/zetavcs/zeta/zoid"
)

// detectCopies scans each remaining Added change against every path that
// existed in oldRoot (not just the ones in this diff's Deleted set),
// emitting a Copied change in place of the Added one when a match scores
// above threshold (spec §4.7 "Copy detection scans for each add against
// all existing old-tree paths using the same score").
func detectCopies(ctx context.Context, r Resolver, oldRoot zoid.OID, changes []Change, threshold int) ([]Change, error) {
	var adds, rest []Change
	for _, c := range changes {
		if c.Status == Added {
			adds = append(adds, c)
		} else {
			rest = append(rest, c)
		}
	}
	if len(adds) == 0 || oldRoot.IsZero() {
		return changes, nil
	}

	var oldFiles []object.WalkEntry
	err := object.WalkTree(ctx, r, oldRoot, false, func(e object.WalkEntry) error {
		if !e.Entry.Mode.IsSubtree() {
			oldFiles = append(oldFiles, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := append([]Change(nil), rest...)
	for _, a := range adds {
		if a.To.Mode.IsSubtree() {
			out = append(out, a)
			continue
		}
		best := -1
		bestScore := 0
		for i, old := range oldFiles {
			score, err := similarityScore(ctx, r, old.Entry.Target, a.To.Target)
			if err != nil {
				return nil, err
			}
			if score >= threshold && score > bestScore {
				bestScore = score
				best = i
			}
		}
		if best < 0 {
			out = append(out, a)
			continue
		}
		source := oldFiles[best]
		out = append(out, Change{
			Status:     Copied,
			OldPath:    source.FullPath,
			NewPath:    a.NewPath,
			From:       &source.Entry,
			To:         a.To,
			Similarity: bestScore,
		})
	}
	return out, nil
}
