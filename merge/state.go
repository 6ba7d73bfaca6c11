package merge

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/zetavcs/zeta/hostapi"
	"github.com/zetavcs/zeta/object"
	"github.com/zetavcs/zeta/refs"
	"github.com/zetavcs/zeta/zerr"
	"github.com/zetavcs/zeta/zoid"
)

// resolvedEntry is the JSON-friendly shape of a resolved conflict's chosen
// entry. Declared locally rather than adding a serialization type to
// package object, matching this package's narrow-local-type pattern
// (Store, RefStore).
type resolvedEntry struct {
	Mode   uint32
	Target string
}

// State is the single persisted merge-in-progress row (spec §5 "Merge
// state is a single row; its mutation is atomic with the accompanying
// ref update", §4.8 "persist merge state"). Tree is the tree Run wrote:
// every path that merged cleanly, with conflicting paths left out of it;
// ContinueMerge rebuilds
// from Tree overlaid with Resolved instead of starting over, so paths that
// already merged cleanly aren't lost while conflicts are outstanding.
type State struct {
	MergeHead zoid.OID
	OrigHead  zoid.OID
	Tree      zoid.OID
	Message   string
	Conflicts []Conflict
	Resolved  map[string]resolvedEntry
}

// StateStore persists State to the merge_state row-store table (spec §6
// "merge_state"). It talks to hostapi.RowStore directly with raw SQL,
// the same idiom refs.Store uses over the refs table, rather than
// introducing an ORM the teacher's stack has no equivalent for.
type StateStore struct {
	rows hostapi.RowStore
}

// NewStateStore binds rows for merge-state persistence.
func NewStateStore(rows hostapi.RowStore) *StateStore {
	return &StateStore{rows: rows}
}

// Save writes (or overwrites) the single merge_state row.
func (s *StateStore) Save(ctx context.Context, st *State) error {
	unresolved, err := json.Marshal(st.Conflicts)
	if err != nil {
		return err
	}
	resolved, err := json.Marshal(st.Resolved)
	if err != nil {
		return err
	}
	_, err = s.rows.Exec(ctx, `
		INSERT INTO merge_state (id, merge_head, orig_head, tree_oid, message, unresolved, resolved)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			merge_head = VALUES(merge_head),
			orig_head = VALUES(orig_head),
			tree_oid = VALUES(tree_oid),
			message = VALUES(message),
			unresolved = VALUES(unresolved),
			resolved = VALUES(resolved)`,
		st.MergeHead.String(), st.OrigHead.String(), st.Tree.String(), st.Message, string(unresolved), string(resolved))
	if err != nil {
		return zerr.NewIOError("merge state save", err)
	}
	return nil
}

// Load returns the current merge state, or (nil, nil) if no merge is in
// progress.
func (s *StateStore) Load(ctx context.Context) (*State, error) {
	row := s.rows.QueryRow(ctx, `SELECT merge_head, orig_head, tree_oid, message, unresolved, resolved FROM merge_state WHERE id = 1`)
	var mergeHead, origHead, treeOID, message, unresolved, resolved sql.NullString
	if err := row.Scan(&mergeHead, &origHead, &treeOID, &message, &unresolved, &resolved); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, zerr.NewIOError("merge state load", err)
	}
	st := &State{Message: message.String}
	if mergeHead.Valid {
		oid, err := zoid.Parse(mergeHead.String)
		if err != nil {
			return nil, err
		}
		st.MergeHead = oid
	}
	if origHead.Valid {
		oid, err := zoid.Parse(origHead.String)
		if err != nil {
			return nil, err
		}
		st.OrigHead = oid
	}
	if treeOID.Valid && treeOID.String != "" {
		oid, err := zoid.Parse(treeOID.String)
		if err != nil {
			return nil, err
		}
		st.Tree = oid
	}
	if unresolved.Valid && unresolved.String != "" {
		if err := json.Unmarshal([]byte(unresolved.String), &st.Conflicts); err != nil {
			return nil, err
		}
	}
	if resolved.Valid && resolved.String != "" {
		if err := json.Unmarshal([]byte(resolved.String), &st.Resolved); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// Clear removes the merge_state row (spec §4.8 "abortMerge ... clear
// merge state", "continueMerge ... clear merge state").
func (s *StateStore) Clear(ctx context.Context) error {
	_, err := s.rows.Exec(ctx, `DELETE FROM merge_state WHERE id = 1`)
	if err != nil {
		return zerr.NewIOError("merge state clear", err)
	}
	return nil
}

// InProgress reports whether a merge is currently in progress.
func (s *StateStore) InProgress(ctx context.Context) (bool, error) {
	st, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	return st != nil, nil
}

// ResolveConflict stages the chosen version of path at strategy, moving
// it from unresolved to resolved (spec §4.8 "resolveConflict(path,
// strategy)"). strategy "custom" takes the literal entry in custom.
func (m *Merger) ResolveConflict(ctx context.Context, path string, strategy string, custom *object.TreeEntry) error {
	st, err := m.state.Load(ctx)
	if err != nil {
		return err
	}
	if st == nil {
		return zerr.ErrNoMergeInProgress
	}

	idx := -1
	for i, c := range st.Conflicts {
		if c.Path == path {
			idx = i
			break
		}
	}
	if idx < 0 {
		return zerr.NewNotFoundError("conflict", path)
	}
	c := st.Conflicts[idx]

	var resolved *object.TreeEntry
	switch strategy {
	case "ours":
		resolved = c.Ours
	case "theirs":
		resolved = c.Theirs
	case "base":
		resolved = c.Base
	case "custom":
		resolved = custom
	default:
		return zerr.NewInvalidObjectError("unknown conflict resolution strategy " + strategy)
	}

	st.Conflicts = append(st.Conflicts[:idx], st.Conflicts[idx+1:]...)
	if st.Resolved == nil {
		st.Resolved = map[string]resolvedEntry{}
	}
	if resolved != nil {
		st.Resolved[path] = resolvedEntry{Mode: uint32(resolved.Mode), Target: resolved.Target.String()}
	}
	return m.state.Save(ctx, st)
}

// AbortMerge restores HEAD to origHead and clears merge state (spec
// §4.8 "abortMerge: restore HEAD to origHead, clear merge state").
func (m *Merger) AbortMerge(ctx context.Context) error {
	st, err := m.state.Load(ctx)
	if err != nil {
		return err
	}
	if st == nil {
		return zerr.ErrNoMergeInProgress
	}
	if err := m.refs.Set(ctx, refs.HEAD, st.OrigHead); err != nil {
		return err
	}
	return m.state.Clear(ctx)
}

// ContinueMerge requires every conflict to have been resolved, then
// creates the merge commit and clears state (spec §4.8 "continueMerge:
// require unresolvedConflicts.length == 0; create the commit; clear
// merge state"). The final tree rebuilds from the state's persisted
// merge tree (every path that merged without conflict) overlaid with the
// resolved entries, not from scratch.
func (m *Merger) ContinueMerge(ctx context.Context, opts Options) (*Result, error) {
	st, err := m.state.Load(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, zerr.ErrNoMergeInProgress
	}
	if len(st.Conflicts) > 0 {
		return nil, zerr.ErrUnresolvedConflicts
	}

	entries, err := flatten(ctx, m.store, st.Tree)
	if err != nil {
		return nil, err
	}
	for path, e := range st.Resolved {
		target, err := zoid.Parse(e.Target)
		if err != nil {
			return nil, err
		}
		entries[path] = object.TreeEntry{Mode: object.FileMode(e.Mode), Target: target}
	}
	mergedTree, err := m.buildTree(ctx, toPathEntries(entries))
	if err != nil {
		return nil, err
	}

	parents := []zoid.OID{st.OrigHead, st.MergeHead}
	if opts.Squash {
		parents = []zoid.OID{st.OrigHead}
	}
	committer := opts.Committer
	commit := &object.Commit{
		Tree:      mergedTree,
		Parents:   parents,
		Author:    committer,
		Committer: committer,
		Message:   firstNonEmptyMessage(opts.Message, st.Message),
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
	if err := m.state.Clear(ctx); err != nil {
		return nil, err
	}
	return &Result{Outcome: Merged, NewHead: newHead, MergeTree: mergedTree}, nil
}

func firstNonEmptyMessage(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
