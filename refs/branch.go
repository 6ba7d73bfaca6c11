package refs

import (
	"context"
	"strings"

	"github.com/zetavcs/zeta/internal/wildmatch"
	"github.com/zetavcs/zeta/zerr"
	"github.com/zetavcs/zeta/zoid"
)

// AncestryChecker is the narrow capability branch ops need from
// traversal (C14) to support deleteBranch's checkMerged option. Declared
// locally rather than importing package traversal to keep refs free of
// a dependency on the commit-graph walker.
type AncestryChecker interface {
	IsAncestor(ctx context.Context, ancestor, descendant zoid.OID) (bool, error)
}

// Upstream is the tracking tuple stored alongside a branch ref (spec
// §4.5 "Upstream tracking is stored alongside the ref as a configuration
// tuple {upstream, ahead, behind}").
type Upstream struct {
	Ref    Name
	Ahead  int
	Behind int
}

// CreateBranch validates name, resolves startPoint (OID hex, branch
// name, or tag name, in that precedence), and refuses if the branch
// already exists unless force (spec §4.5 "createBranch").
func (s *Store) CreateBranch(ctx context.Context, name, startPoint string, force, checkout bool) error {
	if !ValidateBranchName(name) {
		return zerr.NewRefConflictError(name, "invalid branch name")
	}
	ref := Name(BranchPrefix + name)
	existing, err := s.Get(ctx, ref)
	if err != nil {
		return err
	}
	if existing != nil && !force {
		return zerr.NewRefConflictError(string(ref), "branch already exists")
	}

	oid, err := s.resolveStartPoint(ctx, startPoint)
	if err != nil {
		return err
	}
	if err := s.Set(ctx, ref, oid); err != nil {
		return err
	}
	if checkout {
		return s.SetSymbolic(ctx, HEAD, ref)
	}
	return nil
}

// resolveStartPoint resolves an OID, a branch name, or a tag name, in
// that precedence order (spec §4.5 "resolve start point (OID, branch
// name, tag - in that precedence)").
func (s *Store) resolveStartPoint(ctx context.Context, startPoint string) (zoid.OID, error) {
	if startPoint == "" {
		return s.Resolve(ctx, HEAD)
	}
	if zoid.IsValidHex(startPoint) {
		return zoid.Parse(startPoint)
	}
	if oid, err := s.Resolve(ctx, Name(BranchPrefix+startPoint)); err == nil {
		return oid, nil
	}
	if oid, err := s.Resolve(ctx, Name(TagPrefix+startPoint)); err == nil {
		return oid, nil
	}
	return zoid.Zero, zerr.NewNotFoundError("start point", startPoint)
}

// DeleteBranch removes name, refusing to delete the branch currently
// checked out at HEAD, and optionally requiring it be reachable from the
// default branch before deletion (spec §4.5 "deleteBranch").
func (s *Store) DeleteBranch(ctx context.Context, name string, force, checkMerged bool, defaultBranch string, ac AncestryChecker) error {
	ref := Name(BranchPrefix + name)
	head, err := s.Get(ctx, HEAD)
	if err != nil {
		return err
	}
	if head != nil && head.Kind == Symbolic && Name(head.Target) == ref {
		return zerr.NewRefConflictError(string(ref), "cannot delete the current branch")
	}
	if checkMerged {
		branchOID, err := s.Resolve(ctx, ref)
		if err != nil {
			return err
		}
		defaultOID, err := s.Resolve(ctx, Name(BranchPrefix+defaultBranch))
		if err != nil {
			return err
		}
		merged, err := ac.IsAncestor(ctx, branchOID, defaultOID)
		if err != nil {
			return err
		}
		if !merged && !force {
			return zerr.NewRefConflictError(string(ref), "branch is not fully merged")
		}
	}
	_, err = s.Delete(ctx, ref)
	return err
}

// RenameBranch moves oldName to newName, updating HEAD if the current
// branch was renamed (spec §4.5 "renameBranch").
func (s *Store) RenameBranch(ctx context.Context, oldName, newName string, force bool) error {
	if !ValidateBranchName(newName) {
		return zerr.NewRefConflictError(newName, "invalid branch name")
	}
	oldRef := Name(BranchPrefix + oldName)
	newRef := Name(BranchPrefix + newName)

	oid, err := s.Resolve(ctx, oldRef)
	if err != nil {
		return err
	}
	if existing, err := s.Get(ctx, newRef); err != nil {
		return err
	} else if existing != nil && !force {
		return zerr.NewRefConflictError(string(newRef), "branch already exists")
	}

	head, err := s.Get(ctx, HEAD)
	if err != nil {
		return err
	}
	if err := s.Set(ctx, newRef, oid); err != nil {
		return err
	}
	if _, err := s.Delete(ctx, oldRef); err != nil {
		return err
	}
	if head != nil && head.Kind == Symbolic && Name(head.Target) == oldRef {
		return s.SetSymbolic(ctx, HEAD, newRef)
	}
	return nil
}

// CheckoutOptions configures CheckoutBranch (spec §4.5 "checkoutBranch").
type CheckoutOptions struct {
	Name   string
	SHA    string
	Create bool
	Detach bool
	Track  string
}

// CheckoutBranch updates HEAD to point at a branch (symbolic) or a
// direct commit (detached), optionally creating the branch first.
func (s *Store) CheckoutBranch(ctx context.Context, opts CheckoutOptions) error {
	if opts.Create {
		if err := s.CreateBranch(ctx, opts.Name, opts.SHA, false, false); err != nil {
			return err
		}
	}
	if opts.Detach {
		oid, err := s.resolveStartPoint(ctx, firstNonEmpty(opts.SHA, opts.Name))
		if err != nil {
			return err
		}
		return s.Set(ctx, HEAD, oid)
	}
	if err := s.SetSymbolic(ctx, HEAD, Name(BranchPrefix+opts.Name)); err != nil {
		return err
	}
	if opts.Track != "" {
		return s.setUpstream(ctx, opts.Name, opts.Track)
	}
	return nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// setUpstream records branch's upstream tracking ref in the symbolic
// side-ref refs/heads/<branch>@upstream (a lightweight alternative to a dedicated
// config table, consistent with this store's ref-table-only schema).
func (s *Store) setUpstream(ctx context.Context, branch, upstream string) error {
	return s.SetSymbolic(ctx, Name(BranchPrefix+branch+"@upstream"), Name(upstream))
}

// Upstream returns the tracking tuple for branch, if set; ahead/behind
// are left zero, since computing them requires reachability counts over
// commit history, which this store does not read.
func (s *Store) Upstream(ctx context.Context, branch string) (*Upstream, error) {
	r, err := s.Get(ctx, Name(BranchPrefix+branch+"@upstream"))
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, nil
	}
	return &Upstream{Ref: Name(r.Target)}, nil
}

// ListBranchOptions filters/sorts ListBranches (spec §4.5 "listBranches").
type ListBranchOptions struct {
	Pattern string
	Sort    string // "name" or "-name" (reversed); "committerdate" is not applied
}

// ListBranches returns every branch ref, filtered by a glob pattern if
// given, in ascending name order, or descending for Sort "-name". Sorting
// by committerdate is not performed: those keys leave the name order.
func (s *Store) ListBranches(ctx context.Context, opts ListBranchOptions) ([]*Reference, error) {
	refs, err := s.ListByPrefix(ctx, BranchPrefix)
	if err != nil {
		return nil, err
	}
	var matcher *wildmatch.Matcher
	if opts.Pattern != "" {
		matcher, err = wildmatch.Compile([]string{opts.Pattern})
		if err != nil {
			return nil, err
		}
	}
	var out []*Reference
	for _, r := range refs {
		if strings.HasSuffix(string(r.Name), "@upstream") {
			continue
		}
		if matcher != nil && !matcher.Match(r.Name.Short(), false) {
			continue
		}
		out = append(out, r)
	}
	if opts.Sort == "-name" {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}
