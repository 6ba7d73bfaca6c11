// Package traversal implements commit-graph traversal (spec §4.6, C14):
// walkCommits in date/topo/reverse order, ancestry checks, merge-base
// computation (single, all-minimal, octopus, recursive-virtual), and
// rev-range parsing.
//
// walkCommits' date-order strategy is grounded directly on the teacher's
// modules/zeta/object/commit_walker_ctime.go: a max-heap of frontier
// commits ordered by committer timestamp, popped newest-first, pushing
// unseen parents as each commit is visited. It is adapted from an
// in-process *Commit-pointer iterator (which resolves parents through a
// captured backend handle) to a CommitResolver-driven one, since here
// commits are fetched through the object store rather than a field on
// the commit struct itself.
package traversal

import (
	"context"
	"errors"

	"github.com/emirpasic/gods/trees/binaryheap"

	"github.com/zetavcs/zeta/object"
	"github.com/zetavcs/zeta/zoid"
)

// CommitResolver fetches the commit referenced by oid.
type CommitResolver interface {
	Commit(ctx context.Context, oid zoid.OID) (*object.Commit, error)
}

// Strategy selects walkCommits' emission order (spec §4.6).
type Strategy int

const (
	ByDate Strategy = iota
	Topo
	Reverse
)

// Filters narrows walkCommits' output (SPEC_FULL.md supplemented
// feature: path/author/since/until filters alongside the base
// strategies, matching the teacher's commit_walker_bfs_filtered.go
// shape).
type Filters struct {
	Since  *int64 // committer unix timestamp lower bound, inclusive
	Until  *int64 // committer unix timestamp upper bound, inclusive
	Author string // substring match against commit author name/email
	Limit  int    // 0 = unbounded
}

func (f Filters) accepts(c *object.Commit) bool {
	when := c.Committer.When
	if f.Since != nil && when < *f.Since {
		return false
	}
	if f.Until != nil && when > *f.Until {
		return false
	}
	if f.Author != "" && !containsFold(c.Author.Name, f.Author) && !containsFold(c.Author.Email, f.Author) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	sl, subl := []rune(s), []rune(substr)
	if len(subl) == 0 {
		return true
	}
	for i := 0; i+len(subl) <= len(sl); i++ {
		match := true
		for j, r := range subl {
			if toLower(sl[i+j]) != toLower(r) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// node pairs a resolved commit with its OID for heap comparisons.
type node struct {
	oid    zoid.OID
	commit *object.Commit
}

// WalkCommits returns commits reachable from start in the given order,
// applying filters (spec §4.6 "walkCommits(start, strategy, filters)").
func WalkCommits(ctx context.Context, r CommitResolver, start zoid.OID, strategy Strategy, filters Filters) ([]zoid.OID, error) {
	switch strategy {
	case ByDate:
		return walkByDate(ctx, r, start, filters)
	case Topo, Reverse:
		order, err := walkTopo(ctx, r, start, filters)
		if err != nil {
			return nil, err
		}
		if strategy == Reverse {
			for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
				order[i], order[j] = order[j], order[i]
			}
		}
		return order, nil
	default:
		return nil, errUnknownStrategy
	}
}

// walkByDate is the max-heap-by-committer-timestamp walk grounded on
// commit_walker_ctime.go.
func walkByDate(ctx context.Context, r CommitResolver, start zoid.OID, filters Filters) ([]zoid.OID, error) {
	c, err := r.Commit(ctx, start)
	if err != nil {
		return nil, err
	}
	heap := binaryheap.NewWith(func(a, b any) int {
		an, bn := a.(node), b.(node)
		switch {
		case an.commit.Committer.When < bn.commit.Committer.When:
			return 1
		case an.commit.Committer.When > bn.commit.Committer.When:
			return -1
		default:
			return 0
		}
	})
	heap.Push(node{oid: start, commit: c})

	seen := map[zoid.OID]bool{}
	var out []zoid.OID
	for {
		if filters.Limit > 0 && len(out) >= filters.Limit {
			break
		}
		popped, ok := heap.Pop()
		if !ok {
			break
		}
		n := popped.(node)
		if seen[n.oid] {
			continue
		}
		seen[n.oid] = true

		if filters.accepts(n.commit) {
			out = append(out, n.oid)
		}
		for _, p := range n.commit.Parents {
			if seen[p] {
				continue
			}
			pc, err := r.Commit(ctx, p)
			if err != nil {
				return nil, err
			}
			heap.Push(node{oid: p, commit: pc})
		}
	}
	return out, nil
}

// walkTopo emits a commit only after all of its children within the
// traversed set have been emitted, ties broken by committer date (spec
// §4.6 "topo"): a Kahn-style emission over the reachable set, driven by
// each commit's count of children within that set, since only forward
// (parent) edges are available from a content-addressed store.
func walkTopo(ctx context.Context, r CommitResolver, start zoid.OID, filters Filters) ([]zoid.OID, error) {
	commits := map[zoid.OID]*object.Commit{}
	childCount := map[zoid.OID]int{}

	var collect func(oid zoid.OID) error
	visited := map[zoid.OID]bool{}
	collect = func(oid zoid.OID) error {
		if visited[oid] {
			return nil
		}
		visited[oid] = true
		c, err := r.Commit(ctx, oid)
		if err != nil {
			return err
		}
		commits[oid] = c
		for _, p := range c.Parents {
			childCount[p]++
			if err := collect(p); err != nil {
				return err
			}
		}
		return nil
	}
	if err := collect(start); err != nil {
		return nil, err
	}

	ready := []zoid.OID{start}
	var out []zoid.OID
	emitted := map[zoid.OID]bool{}
	for len(ready) > 0 {
		if filters.Limit > 0 && len(out) >= filters.Limit {
			break
		}
		sortByDateDesc(ready, commits)
		oid := ready[0]
		ready = ready[1:]
		if emitted[oid] {
			continue
		}
		emitted[oid] = true
		if filters.accepts(commits[oid]) {
			out = append(out, oid)
		}
		for _, p := range commits[oid].Parents {
			childCount[p]--
			if childCount[p] == 0 {
				ready = append(ready, p)
			}
		}
	}
	return out, nil
}

func sortByDateDesc(oids []zoid.OID, commits map[zoid.OID]*object.Commit) {
	for i := 1; i < len(oids); i++ {
		for j := i; j > 0 && commits[oids[j-1]].Committer.When < commits[oids[j]].Committer.When; j-- {
			oids[j-1], oids[j] = oids[j], oids[j-1]
		}
	}
}

var errUnknownStrategy = errors.New("zeta: unknown traversal strategy")
