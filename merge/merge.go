// Package merge implements three-way merge (spec §4.8, C16): fast-forward
// detection, the 8-case tree decision table, content merge for text
// files via internal/diferenco, conflict persistence, and squash mode.
package merge

import (
	"context"
	"time"

	"github.com/zetavcs/zeta/internal/diferenco"
	"github.com/zetavcs/zeta/object"
	"github.com/zetavcs/zeta/refs"
	"github.com/zetavcs/zeta/traversal"
	"github.com/zetavcs/zeta/zerr"
	"github.com/zetavcs/zeta/zoid"
)

// Store is the object-store capability merge needs: resolving trees,
// blobs, and commits, and writing the merged tree and commit objects it
// produces. Declared locally (rather than importing package store) so
// merge stays free of a dependency on the store package's tiering
// concerns; store.Store satisfies this structurally.
type Store interface {
	object.TreeResolver
	Blob(ctx context.Context, oid zoid.OID) (*object.Blob, error)
	Commit(ctx context.Context, oid zoid.OID) (*object.Commit, error)
	Put(ctx context.Context, kind zoid.Kind, payload []byte) (zoid.OID, error)
}

// ConflictStrategy picks a side when autoResolve is set (spec §4.8
// "conflictStrategy ∈ {ours, theirs}").
type ConflictStrategy string

const (
	StrategyOurs   ConflictStrategy = "ours"
	StrategyTheirs ConflictStrategy = "theirs"
)

// Options configures Run (spec §4.8 "options
// {message, allowFastForward, fastForwardOnly, squash, autoResolve,
// conflictStrategy, noCommit}").
type Options struct {
	Message string
	// DisableFastForward forces a merge commit even when ours is an
	// ancestor of theirs. The zero value allows fast-forward, matching
	// spec §4.8's "allowFastForward ≠ false" default.
	DisableFastForward bool
	FastForwardOnly    bool
	Squash             bool
	AutoResolve        bool
	ConflictStrategy   ConflictStrategy
	NoCommit           bool
	CommitTime         int64 // unix seconds stamped on a synthesised merge commit
	Committer          object.Signature
}

func (o Options) allowsFastForward() bool {
	return !o.DisableFastForward
}

// Outcome classifies the result of Run (spec §4.8 steps 1-3, 6).
type Outcome string

const (
	UpToDate              Outcome = "up-to-date"
	FastForward           Outcome = "fast-forward"
	Merged                Outcome = "merged"
	Conflicted            Outcome = "conflicted"
)

// Result is Run's return value.
type Result struct {
	Outcome    Outcome
	NewHead    zoid.OID
	Conflicts  []Conflict
	MergeTree  zoid.OID
}

// ConflictKind classifies a Conflict (spec §4.8's 8-case table's
// conflicting rows, plus "directory-file").
type ConflictKind string

const (
	ConflictAddAdd        ConflictKind = "add-add"
	ConflictDeleteModify  ConflictKind = "delete-modify"
	ConflictModifyDelete  ConflictKind = "modify-delete"
	ConflictDirectoryFile ConflictKind = "directory-file"
	ConflictContent       ConflictKind = "content"
)

// Conflict is one unresolved path at the end of Run (or persisted merge
// state).
type Conflict struct {
	Path   string
	Kind   ConflictKind
	Base   *object.TreeEntry
	Ours   *object.TreeEntry
	Theirs *object.TreeEntry
	// Merged is the conflict-marker-rendered content for a content
	// conflict; empty for structural conflicts (add-add, delete-modify,
	// and so on), which have no single blob to render markers into.
	Merged []byte
}

// RefStore is the narrow refs capability Run needs to read and move HEAD.
type RefStore interface {
	Get(ctx context.Context, name refs.Name) (*refs.Reference, error)
	Set(ctx context.Context, name refs.Name, target zoid.OID) error
}

// Merger binds a Store, RefStore, and merge-state persistence for
// repeated merge operations against one repository.
type Merger struct {
	store Store
	refs  RefStore
	state *StateStore
}

// New binds store, refStore, and state for subsequent Run/ResolveConflict/
// AbortMerge/ContinueMerge calls.
func New(store Store, refStore RefStore, state *StateStore) *Merger {
	return &Merger{store: store, refs: refStore, state: state}
}

// Run merges theirs into ours (spec §4.8 steps 1-7).
func (m *Merger) Run(ctx context.Context, ours, theirs zoid.OID, opts Options) (*Result, error) {
	if ours == theirs {
		return &Result{Outcome: UpToDate, NewHead: ours}, nil
	}

	base, found, err := traversal.FindMergeBase(ctx, m.store, ours, theirs)
	if err != nil {
		return nil, err
	}
	if found && base == theirs {
		return &Result{Outcome: UpToDate, NewHead: ours}, nil
	}
	if found && base == ours && opts.allowsFastForward() {
		if err := m.refs.Set(ctx, refs.HEAD, theirs); err != nil {
			return nil, err
		}
		return &Result{Outcome: FastForward, NewHead: theirs}, nil
	}
	if opts.FastForwardOnly {
		return nil, zerr.ErrFastForwardImpossible
	}

	oursCommit, err := m.store.Commit(ctx, ours)
	if err != nil {
		return nil, err
	}
	theirsCommit, err := m.store.Commit(ctx, theirs)
	if err != nil {
		return nil, err
	}
	var baseTree zoid.OID
	if found {
		baseCommit, err := m.store.Commit(ctx, base)
		if err != nil {
			return nil, err
		}
		baseTree = baseCommit.Tree
	}

	mergedTree, conflicts, err := m.mergeTrees(ctx, baseTree, oursCommit.Tree, theirsCommit.Tree)
	if err != nil {
		return nil, err
	}

	if opts.AutoResolve && len(conflicts) > 0 {
		mergedTree, conflicts, err = m.autoResolve(ctx, mergedTree, conflicts, opts.ConflictStrategy)
		if err != nil {
			return nil, err
		}
	}

	if len(conflicts) > 0 {
		if err := m.state.Save(ctx, &State{
			MergeHead: theirs,
			OrigHead:  ours,
			Tree:      mergedTree,
			Message:   opts.Message,
			Conflicts: conflicts,
		}); err != nil {
			return nil, err
		}
		return &Result{Outcome: Conflicted, Conflicts: conflicts, MergeTree: mergedTree}, nil
	}

	if opts.NoCommit {
		return &Result{Outcome: Merged, MergeTree: mergedTree}, nil
	}

	parents := []zoid.OID{ours, theirs}
	if opts.Squash {
		parents = []zoid.OID{ours}
	}
	commitTime := opts.CommitTime
	if commitTime == 0 {
		commitTime = time.Now().Unix()
	}
	committer := opts.Committer
	if committer.When == 0 {
		committer.When = commitTime
	}
	commit := &object.Commit{
		Tree:      mergedTree,
		Parents:   parents,
		Author:    committer,
		Committer: committer,
		Message:   opts.Message,
	}
	payload, err := commit.Encode()
	if err != nil {
		return nil, err
	}
	newHead, err := m.store.Put(ctx, zoid.Commit, payload)
	if err != nil {
		return nil, err
	}
	if err := m.refs.Set(ctx, refs.HEAD, newHead); err != nil {
		return nil, err
	}
	return &Result{Outcome: Merged, NewHead: newHead, MergeTree: mergedTree}, nil
}

// mergeTrees flattens base/ours/theirs into path maps and classifies
// every path via the 8-case decision table (spec §4.8 step 4), writing a
// new tree object for the merged result. Any path without a single
// resolved entry is reported as a Conflict and is simply omitted from
// the written tree; ContinueMerge later rebuilds from that tree overlaid
// with the entries chosen through ResolveConflict.
func (m *Merger) mergeTrees(ctx context.Context, base, ours, theirs zoid.OID) (zoid.OID, []Conflict, error) {
	baseMap, err := flatten(ctx, m.store, base)
	if err != nil {
		return zoid.Zero, nil, err
	}
	oursMap, err := flatten(ctx, m.store, ours)
	if err != nil {
		return zoid.Zero, nil, err
	}
	theirsMap, err := flatten(ctx, m.store, theirs)
	if err != nil {
		return zoid.Zero, nil, err
	}

	paths := unionPaths(baseMap, oursMap, theirsMap)
	var entries []pathEntry
	var conflicts []Conflict
	for _, path := range paths {
		b, hasB := baseMap[path]
		o, hasO := oursMap[path]
		t, hasT := theirsMap[path]

		entry, conflict, err := m.decide(ctx, path, entryOrNil(b, hasB), entryOrNil(o, hasO), entryOrNil(t, hasT))
		if err != nil {
			return zoid.Zero, nil, err
		}
		if conflict != nil {
			conflicts = append(conflicts, *conflict)
			continue
		}
		if entry != nil {
			entries = append(entries, pathEntry{path: path, entry: *entry})
		}
	}

	treeOID, err := m.buildTree(ctx, entries)
	if err != nil {
		return zoid.Zero, nil, err
	}
	return treeOID, conflicts, nil
}

func entryOrNil(e object.TreeEntry, has bool) *object.TreeEntry {
	if !has {
		return nil
	}
	return &e
}

type pathEntry struct {
	path  string
	entry object.TreeEntry
}
