// Package refs implements the reference store and its namespaces (spec
// §4.5, components C10-C13): atomic get/set/delete, symbolic refs,
// branch/tag/worktree operations, and git-compatible short-name
// resolution rules.
//
// Name validation and the rev-parse short-name rules are grounded on
// the teacher's modules/plumbing/validate.go (ValidateReferenceName,
// ValidateBranchName, ValidateTagName) and modules/zeta/refs/rules.go
// (Rule, RefRevParseRules); the DB lookup/resolve/shorten shape is
// grounded on modules/zeta/refs/references.go, adapted from an
// in-memory slice+cache to a row-store-backed store since refs here
// persist through hostapi.RowStore rather than the filesystem.
package refs

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"github.com/zetavcs/zeta/hostapi"
	"github.com/zetavcs/zeta/zerr"
	"github.com/zetavcs/zeta/zoid"
)

// Kind distinguishes a direct (OID) reference from a symbolic
// (ref-name) one (spec §3 "Reference").
type Kind string

const (
	Direct   Kind = "direct"
	Symbolic Kind = "symbolic"
)

// Name is a fully-qualified reference name, e.g. "refs/heads/main".
type Name string

const (
	HEAD          Name = "HEAD"
	BranchPrefix       = "refs/heads/"
	TagPrefix          = "refs/tags/"
	RemotePrefix       = "refs/remotes/"
	WorktreePrefix     = "refs/worktrees/"
)

func (n Name) IsBranch() bool   { return strings.HasPrefix(string(n), BranchPrefix) }
func (n Name) IsTag() bool      { return strings.HasPrefix(string(n), TagPrefix) }
func (n Name) IsRemote() bool   { return strings.HasPrefix(string(n), RemotePrefix) }
func (n Name) IsWorktree() bool { return strings.HasPrefix(string(n), WorktreePrefix) }

func (n Name) Short() string {
	switch {
	case n.IsBranch():
		return strings.TrimPrefix(string(n), BranchPrefix)
	case n.IsTag():
		return strings.TrimPrefix(string(n), TagPrefix)
	default:
		return string(n)
	}
}

// Reference is one ref row: either a direct OID or a symbolic pointer to
// another ref name.
type Reference struct {
	Name   Name
	Kind   Kind
	Target string // OID hex (Direct) or ref name (Symbolic)
}

// maxResolveRecursion bounds symbolic-ref chains to detect cycles (spec
// §4.1 invariant "Ref tree has no cycles among symbolic refs").
const maxResolveRecursion = 10

// Store is the ref store (spec §4.5 "Operations: get, set, delete,
// listByPrefix, getSymbolic, setSymbolic"), backed by hostapi.RowStore's
// refs table and logging every mutation to the ref_log table.
type Store struct {
	rows hostapi.RowStore
}

func New(rows hostapi.RowStore) *Store {
	return &Store{rows: rows}
}

// Get returns the ref named name, or nil if absent.
func (s *Store) Get(ctx context.Context, name Name) (*Reference, error) {
	var kind, target string
	err := s.rows.QueryRow(ctx, `SELECT kind, target FROM refs WHERE name = ?`, string(name)).Scan(&kind, &target)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, zerr.NewIOError("ref-get", err)
	}
	return &Reference{Name: name, Kind: Kind(kind), Target: target}, nil
}

// Set writes name -> target as a direct (OID) reference with one REPLACE,
// then appends a ref_log row carrying the previous value as a separate
// statement (spec §4.1
// "Refs are mutable; each update is atomic and logged").
func (s *Store) Set(ctx context.Context, name Name, target zoid.OID) error {
	return s.write(ctx, name, Direct, target.String())
}

// SetSymbolic writes name as a symbolic reference pointing at target.
func (s *Store) SetSymbolic(ctx context.Context, name, target Name) error {
	return s.write(ctx, name, Symbolic, string(target))
}

func (s *Store) write(ctx context.Context, name Name, kind Kind, target string) error {
	prev, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	if _, err := s.rows.Exec(ctx, `REPLACE INTO refs (name, kind, target) VALUES (?, ?, ?)`,
		string(name), string(kind), target); err != nil {
		return zerr.NewIOError("ref-set", err)
	}
	return s.logUpdate(ctx, "update", name, prev, target)
}

// logUpdate appends a ref_log row carrying {op, name, old, new,
// timestamp} (spec §4.1 "each update is atomic and logged").
func (s *Store) logUpdate(ctx context.Context, op string, name Name, prev *Reference, newTarget string) error {
	var old any
	if prev != nil {
		old = prev.Target
	}
	if _, err := s.rows.Exec(ctx, `INSERT INTO ref_log (op, name, old_target, new_target, ts) VALUES (?, ?, ?, ?, NOW())`,
		op, string(name), old, newTarget); err != nil {
		return zerr.NewIOError("ref-log", err)
	}
	return nil
}

// Delete removes name, returning whether it was present.
func (s *Store) Delete(ctx context.Context, name Name) (bool, error) {
	prev, err := s.Get(ctx, name)
	if err != nil {
		return false, err
	}
	if prev == nil {
		return false, nil
	}
	if _, err := s.rows.Exec(ctx, `DELETE FROM refs WHERE name = ?`, string(name)); err != nil {
		return false, zerr.NewIOError("ref-delete", err)
	}
	if err := s.logUpdate(ctx, "delete", name, prev, ""); err != nil {
		return false, err
	}
	return true, nil
}

// ListByPrefix returns every ref whose name starts with prefix, sorted.
func (s *Store) ListByPrefix(ctx context.Context, prefix string) ([]*Reference, error) {
	rows, err := s.rows.Query(ctx, `SELECT name, kind, target FROM refs WHERE name LIKE ? ORDER BY name`, prefix+"%")
	if err != nil {
		return nil, zerr.NewIOError("ref-list", err)
	}
	defer rows.Close()
	var out []*Reference
	for rows.Next() {
		var name, kind, target string
		if err := rows.Scan(&name, &kind, &target); err != nil {
			return nil, zerr.NewIOError("ref-list", err)
		}
		out = append(out, &Reference{Name: Name(name), Kind: Kind(kind), Target: target})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Resolve follows a (possibly symbolic) ref chain starting at name down
// to its direct OID target, detecting cycles (spec §4.1 invariant).
func (s *Store) Resolve(ctx context.Context, name Name) (zoid.OID, error) {
	cur := name
	for i := 0; i < maxResolveRecursion; i++ {
		r, err := s.Get(ctx, cur)
		if err != nil {
			return zoid.Zero, err
		}
		if r == nil {
			return zoid.Zero, zerr.NewNotFoundError("ref", string(cur))
		}
		if r.Kind == Direct {
			return zoid.Parse(r.Target)
		}
		cur = Name(r.Target)
	}
	return zoid.Zero, zerr.NewInvalidObjectError("ref resolution exceeded recursion limit (cycle?)")
}

// rule is one short-name parsing rule (spec-parallel to the teacher's
// refs/rules.go Rule), used by ShortName below.
type rule struct {
	prefix string
	suffix string
}

func (r rule) name(short string) Name    { return Name(r.prefix + short + r.suffix) }
func (r rule) short(full string) string {
	if !strings.HasPrefix(full, r.prefix) || !strings.HasSuffix(full, r.suffix) {
		return ""
	}
	return strings.TrimSuffix(strings.TrimPrefix(full, r.prefix), r.suffix)
}

var revParseRules = []rule{
	{},
	{prefix: "refs/"},
	{prefix: TagPrefix},
	{prefix: BranchPrefix},
	{prefix: RemotePrefix},
	{prefix: RemotePrefix, suffix: "/HEAD"},
}

// Lookup resolves a short or qualified name to a reference following
// git's rev-parse precedence order (spec-parallel to refs/rules.go).
func (s *Store) Lookup(ctx context.Context, short string) (*Reference, error) {
	for _, r := range revParseRules {
		if ref, err := s.Get(ctx, r.name(short)); err == nil && ref != nil {
			return ref, nil
		} else if err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// ShortName returns the shortest unambiguous name for refname, or
// refname itself if none of the rules apply unambiguously (spec-parallel
// to refs/references.go DB.ShortName).
func (s *Store) ShortName(ctx context.Context, refname Name) (string, error) {
	for i := len(revParseRules) - 1; i > 0; i-- {
		shortName := revParseRules[i].short(string(refname))
		if shortName == "" {
			continue
		}
		ambiguous := false
		for j := 0; j < len(revParseRules); j++ {
			if i == j {
				continue
			}
			ref, err := s.Get(ctx, revParseRules[j].name(shortName))
			if err != nil {
				return "", err
			}
			if ref != nil {
				ambiguous = true
				break
			}
		}
		if !ambiguous {
			return shortName, nil
		}
	}
	return string(refname), nil
}

// refnameDisposition classifies each byte a reference name component may
// contain (spec-verbatim to git's refname scan table, via the teacher's
// modules/plumbing/validate.go): 0 ok, 1 end-of-component ('/'), 2 '.'
// (reject ".."), 3 '{' (reject "@{"), 4 always bad, 5 '*' (reject).
var refnameDisposition = [256]byte{
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 0, 0, 0, 0, 0, 0, 0, 0, 0, 5, 0, 0, 0, 2, 1,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 4, 0, 0, 0, 0, 4,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 4, 4, 0, 4, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 3, 0, 0, 4, 4,
}

func checkComponent(name []byte) int {
	last := byte(0)
	i := 0
	for ; i < len(name); i++ {
		ch := name[i]
		switch refnameDisposition[ch] {
		case 1:
			goto done
		case 2:
			if last == '.' {
				return -1
			}
		case 3:
			if last == '@' {
				return -1
			}
		case 4, 5:
			return -1
		}
		last = ch
	}
done:
	if i == 0 {
		return 0
	}
	if name[0] == '.' {
		return -1
	}
	if bytes.HasSuffix(name, []byte(".lock")) {
		return -1
	}
	return i
}

// ValidateReferenceName reports whether refname is an acceptable
// `.zeta/refs/`-style path: no leading/trailing dot, no "..", no control
// characters, no "@{", no trailing ".lock" component.
func ValidateReferenceName(refname string) bool {
	if refname == "@" {
		return false
	}
	b := []byte(refname)
	for {
		n := checkComponent(b)
		if n <= 0 {
			return false
		}
		if len(b) == n {
			return b[n-1] != '.'
		}
		b = b[n+1:]
	}
}

// ValidateBranchName reports whether branch is a legal branch short
// name (spec §8 boundary case "leading -").
func ValidateBranchName(branch string) bool {
	if branch == "" || branch[0] == '-' {
		return false
	}
	return ValidateReferenceName(branch)
}

// ValidateTagName reports whether tag is a legal tag short name.
func ValidateTagName(tag string) bool {
	if tag == "" || tag[0] == '-' {
		return false
	}
	return ValidateReferenceName(tag)
}
