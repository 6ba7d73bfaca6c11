package object

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/zetavcs/zeta/zerr"
	"github.com/zetavcs/zeta/zoid"
)

// TreeEntry is one {mode, name, target OID} triple within a Tree (spec §3).
type TreeEntry struct {
	Mode   FileMode
	Name   string
	Target zoid.OID
}

// Tree is an ordered set of entries. Entries is always kept in the
// invariant sort order (spec §3): it is safe to serialise Entries directly.
type Tree struct {
	Entries []TreeEntry
}

// sortKey applies the §3 rule that directories sort as though their name
// carried a trailing "/".
func sortKey(e TreeEntry) string {
	if e.Mode.IsSubtree() {
		return e.Name + "/"
	}
	return e.Name
}

// SortEntries sorts entries in place per the tree-entry invariant ordering.
// This ordering is part of the hashed content: callers must sort before
// encoding, and Encode does so defensively.
func SortEntries(entries []TreeEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return sortKey(entries[i]) < sortKey(entries[j])
	})
}

// NewTree validates and sorts entries, returning a ready-to-encode Tree.
func NewTree(entries []TreeEntry) (*Tree, error) {
	if err := validateEntries(entries); err != nil {
		return nil, err
	}
	sorted := append([]TreeEntry(nil), entries...)
	SortEntries(sorted)
	return &Tree{Entries: sorted}, nil
}

func validateEntries(entries []TreeEntry) error {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if len(e.Name) == 0 {
			return zerr.NewInvalidObjectError("tree entry has empty name")
		}
		if strings.ContainsAny(e.Name, "/\x00") || e.Name == "." || e.Name == ".." {
			return zerr.NewInvalidObjectError(fmt.Sprintf("tree entry name %q is not allowed", e.Name))
		}
		if !e.Mode.IsValid() {
			return zerr.NewInvalidObjectError(fmt.Sprintf("tree entry %q has invalid mode %s", e.Name, e.Mode))
		}
		if _, dup := seen[e.Name]; dup {
			return zerr.NewInvalidObjectError(fmt.Sprintf("tree has duplicate entry name %q", e.Name))
		}
		seen[e.Name] = struct{}{}
	}
	return nil
}

// Encode serialises the tree to its canonical unframed payload:
// "mode SP name \0 20-byte-raw-oid" per entry, in invariant sort order
// (spec §4.1).
func (t *Tree) Encode() ([]byte, error) {
	if err := validateEntries(t.Entries); err != nil {
		return nil, err
	}
	sorted := append([]TreeEntry(nil), t.Entries...)
	SortEntries(sorted)
	var buf bytes.Buffer
	for _, e := range sorted {
		buf.WriteString(e.Mode.String())
		buf.WriteByte(' ')
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.Write(e.Target.Bytes())
	}
	return buf.Bytes(), nil
}

// Hash returns the OID of the encoded tree.
func (t *Tree) Hash() (zoid.OID, error) {
	payload, err := t.Encode()
	if err != nil {
		return zoid.Zero, err
	}
	return zoid.Hash(zoid.Tree, payload), nil
}

// DecodeTree parses a tree's unframed payload. Malformed entries (bad
// mode, missing NUL, short OID, duplicate names) are rejected.
func DecodeTree(payload []byte) (*Tree, error) {
	entries := make([]TreeEntry, 0, 16)
	seen := make(map[string]struct{})
	i := 0
	for i < len(payload) {
		sp := bytes.IndexByte(payload[i:], ' ')
		if sp < 0 {
			return nil, zerr.NewInvalidObjectError("tree entry missing mode separator")
		}
		modeStr := string(payload[i : i+sp])
		mode, err := ParseFileMode(modeStr)
		if err != nil {
			return nil, zerr.NewInvalidObjectError(err.Error())
		}
		i += sp + 1
		nul := bytes.IndexByte(payload[i:], 0)
		if nul < 0 {
			return nil, zerr.NewInvalidObjectError("tree entry missing name terminator")
		}
		name := string(payload[i : i+nul])
		if len(name) == 0 || strings.ContainsAny(name, "/\x00") || name == "." || name == ".." {
			return nil, zerr.NewInvalidObjectError(fmt.Sprintf("tree entry name %q is not allowed", name))
		}
		if _, dup := seen[name]; dup {
			return nil, zerr.NewInvalidObjectError(fmt.Sprintf("tree has duplicate entry name %q", name))
		}
		seen[name] = struct{}{}
		i += nul + 1
		if i+zoid.Size > len(payload) {
			return nil, zerr.NewInvalidObjectError("tree entry truncated oid")
		}
		var target zoid.OID
		copy(target[:], payload[i:i+zoid.Size])
		i += zoid.Size
		entries = append(entries, TreeEntry{Mode: mode, Name: name, Target: target})
	}
	// Entries must already be in invariant sort order; re-sorting would
	// silently hide a corrupt/foreign tree, so verify instead of fixing up.
	for k := 1; k < len(entries); k++ {
		if sortKey(entries[k-1]) >= sortKey(entries[k]) {
			return nil, zerr.NewInvalidObjectError("tree entries are not in canonical sort order")
		}
	}
	return &Tree{Entries: entries}, nil
}

