package traversal

import (
	"context"
	"strings"

	"github.com/zetavcs/zeta/zoid"
)

// RevResolver turns a revision string (branch name, tag name, short or
// full OID) into the OID it names, the one additional capability
// rev-range parsing needs beyond CommitResolver.
type RevResolver interface {
	Resolve(ctx context.Context, rev string) (zoid.OID, error)
}

// RangeKind classifies how a rev-range expression was written (spec §4.6
// "rev-range parsing: A..B, A...B, ^X exclusions").
type RangeKind int

const (
	// RangeSingle names one endpoint with no range operator: show
	// everything reachable from it.
	RangeSingle RangeKind = iota
	// RangeTwoDot is "A..B": commits reachable from B but not from A,
	// grounded on logRevFromTo's "from..to" handling.
	RangeTwoDot
	// RangeThreeDot is "A...B": Want is B and Exclude holds A and the
	// merge bases of A and B, so the walk yields commits reachable from B
	// but not from A; commits reachable only from A are not included.
	// Grounded on logFromMergeBase.
	RangeThreeDot
)

// Range is a parsed rev-range: Want is walked, Exclude lists commits (and
// everything reachable from them) to omit from the result.
type Range struct {
	Kind    RangeKind
	Want    zoid.OID
	Exclude []zoid.OID
}

// ParseRange parses expr using git's rev-range grammar: "A...B" (B's side
// only; A and the merge bases excluded), "A..B" (asymmetric, A excluded), "^X" prefixes on
// an otherwise-single revision (additional exclusions), or a bare revision
// (spec §4.6). Three-dot is checked before two-dot since ".." is a prefix
// of "...".
func ParseRange(ctx context.Context, resolver RevResolver, r CommitResolver, expr string) (*Range, error) {
	if a, b, ok := strings.Cut(expr, "..."); ok {
		return parseThreeDot(ctx, resolver, r, a, b)
	}
	if a, b, ok := strings.Cut(expr, ".."); ok {
		return parseTwoDot(ctx, resolver, a, b)
	}
	return parseSingle(ctx, resolver, expr)
}

func parseThreeDot(ctx context.Context, resolver RevResolver, r CommitResolver, aExpr, bExpr string) (*Range, error) {
	a, err := resolver.Resolve(ctx, aExpr)
	if err != nil {
		return nil, err
	}
	b, err := resolver.Resolve(ctx, bExpr)
	if err != nil {
		return nil, err
	}
	bases, err := FindAllMergeBases(ctx, r, a, b)
	if err != nil {
		return nil, err
	}
	rg := &Range{Kind: RangeThreeDot, Want: b, Exclude: bases}
	rg.Exclude = append(rg.Exclude, a)
	return rg, nil
}

func parseTwoDot(ctx context.Context, resolver RevResolver, fromExpr, toExpr string) (*Range, error) {
	from, err := resolver.Resolve(ctx, fromExpr)
	if err != nil {
		return nil, err
	}
	to, err := resolver.Resolve(ctx, toExpr)
	if err != nil {
		return nil, err
	}
	return &Range{Kind: RangeTwoDot, Want: to, Exclude: []zoid.OID{from}}, nil
}

// parseSingle handles a bare revision, or "^X" which names X as an
// exclusion with no positive want of its own (used when combined with
// other range args by a caller that accumulates multiple Ranges).
func parseSingle(ctx context.Context, resolver RevResolver, expr string) (*Range, error) {
	if rest, ok := strings.CutPrefix(expr, "^"); ok {
		oid, err := resolver.Resolve(ctx, rest)
		if err != nil {
			return nil, err
		}
		return &Range{Kind: RangeSingle, Exclude: []zoid.OID{oid}}, nil
	}
	want, err := resolver.Resolve(ctx, expr)
	if err != nil {
		return nil, err
	}
	return &Range{Kind: RangeSingle, Want: want}, nil
}

// Resolve walks rg.Want and removes every commit reachable from any of
// rg.Exclude, returning the remaining commits in the given strategy's
// order.
func (rg *Range) Resolve(ctx context.Context, r CommitResolver, strategy Strategy, filters Filters) ([]zoid.OID, error) {
	excludedSet := map[zoid.OID]bool{}
	for _, e := range rg.Exclude {
		set, err := ancestorSet(ctx, r, e)
		if err != nil {
			return nil, err
		}
		for oid := range set {
			excludedSet[oid] = true
		}
	}

	all, err := WalkCommits(ctx, r, rg.Want, strategy, filters)
	if err != nil {
		return nil, err
	}
	out := make([]zoid.OID, 0, len(all))
	for _, oid := range all {
		if !excludedSet[oid] {
			out = append(out, oid)
		}
	}
	return out, nil
}
