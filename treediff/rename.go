package treediff

import (
	"context"

	"github.com/zetavcs/zeta/zoid"
)

// detectRenames pairs each Deleted change with the best-matching Added
// change above threshold, replacing both with a single Renamed change
// (spec §4.7 "for each add-delete pair, compute a similarity score ...
// and match greedily above a threshold").
func detectRenames(ctx context.Context, r Resolver, changes []Change, threshold int) ([]Change, error) {
	var deletes, adds, rest []Change
	for _, c := range changes {
		switch c.Status {
		case Deleted:
			deletes = append(deletes, c)
		case Added:
			adds = append(adds, c)
		default:
			rest = append(rest, c)
		}
	}
	if len(deletes) == 0 || len(adds) == 0 {
		return changes, nil
	}

	type pair = struct {
		di, ai int
		score  int
	}
	var candidates []pair
	for di, d := range deletes {
		for ai, a := range adds {
			if d.From.Mode.IsSubtree() || a.To.Mode.IsSubtree() {
				continue
			}
			score, err := similarityScore(ctx, r, d.From.Target, a.To.Target)
			if err != nil {
				return nil, err
			}
			if score >= threshold {
				candidates = append(candidates, pair{di, ai, score})
			}
		}
	}
	// Greedy: highest score first, tie-broken by path similarity (exact
	// SHA matches dominate, then closest basename) so an unambiguous
	// rename never loses its slot to an arbitrary later candidate.
	sortPairsByScoreDesc(candidates, deletes, adds)

	usedDelete := make(map[int]bool)
	usedAdd := make(map[int]bool)
	var renamed []Change
	for _, p := range candidates {
		if usedDelete[p.di] || usedAdd[p.ai] {
			continue
		}
		usedDelete[p.di] = true
		usedAdd[p.ai] = true
		d, a := deletes[p.di], adds[p.ai]
		renamed = append(renamed, Change{
			Status:     Renamed,
			OldPath:    d.OldPath,
			NewPath:    a.NewPath,
			From:       d.From,
			To:         a.To,
			Similarity: p.score,
		})
	}

	out := append([]Change(nil), rest...)
	out = append(out, renamed...)
	for di, d := range deletes {
		if !usedDelete[di] {
			out = append(out, d)
		}
	}
	for ai, a := range adds {
		if !usedAdd[ai] {
			out = append(out, a)
		}
	}
	return out, nil
}

func sortPairsByScoreDesc(candidates []struct {
	di, ai int
	score  int
}, deletes, adds []Change) {
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && less(candidates[j-1], candidates[j], deletes, adds); j-- {
			candidates[j-1], candidates[j] = candidates[j], candidates[j-1]
		}
	}
}

func less(a, b struct {
	di, ai int
	score  int
}, deletes, adds []Change) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return pathSimilarity(deletes[a.di].OldPath, adds[a.ai].NewPath) < pathSimilarity(deletes[b.di].OldPath, adds[b.ai].NewPath)
}

// pathSimilarity is a small tie-breaker: count of matching runes from the
// end of both paths, used only to order otherwise-equal-score
// candidates deterministically (spec §8 scenario "path breaks tie").
func pathSimilarity(a, b string) int {
	ar, br := []rune(a), []rune(b)
	n := 0
	for i, j := len(ar)-1, len(br)-1; i >= 0 && j >= 0 && ar[i] == br[j]; i, j = i-1, j-1 {
		n++
	}
	return n
}

// similarityScore compares the blob content at oldOID and newOID: an
// exact SHA match scores 100; otherwise a character-by-character
// correspondence ignoring trailing length difference (spec §4.7).
func similarityScore(ctx context.Context, r BlobResolver, oldOID, newOID zoid.OID) (int, error) {
	if oldOID == newOID {
		return 100, nil
	}
	oldBlob, err := r.Blob(ctx, oldOID)
	if err != nil {
		return 0, err
	}
	newBlob, err := r.Blob(ctx, newOID)
	if err != nil {
		return 0, err
	}
	return contentSimilarity(oldBlob.Data, newBlob.Data), nil
}

func contentSimilarity(a, b []byte) int {
	if len(a) == 0 && len(b) == 0 {
		return 100
	}
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	if minLen == 0 {
		return 0
	}
	matches := 0
	for i := 0; i < minLen; i++ {
		if a[i] == b[i] {
			matches++
		}
	}
	return matches * 100 / minLen
}
