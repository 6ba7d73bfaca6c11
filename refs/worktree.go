package refs

import (
	"context"
	"strings"

	"github.com/zetavcs/zeta/zerr"
)

const mainWorktreeSlug = "main"

// Worktree is one registered worktree entry (spec §4.5 "Worktree ops").
type Worktree struct {
	Slug   string
	Path   string
	Branch Name
	Locked bool
	Stale  bool
}

// worktreeRef builds the per-worktree HEAD ref name for slug (spec §3
// "refs/worktrees/<slug>/HEAD").
func worktreeRef(slug string) Name {
	return Name(WorktreePrefix + slug + "/HEAD")
}

// slugify normalizes a worktree path into a ref-name-safe slug (spec
// §4.5 "slug = normalized path").
func slugify(path string) string {
	slug := strings.ReplaceAll(path, "/", "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return mainWorktreeSlug
	}
	return slug
}

// AddWorktree registers a new worktree at path checked out to branch,
// refusing if branch is already checked out elsewhere unless force (spec
// §4.5 "a branch is checked out in at most one worktree unless force").
func (s *Store) AddWorktree(ctx context.Context, path string, branch Name, force bool) (*Worktree, error) {
	slug := slugify(path)
	ref := worktreeRef(slug)

	if !force {
		existing, err := s.ListWorktrees(ctx)
		if err != nil {
			return nil, err
		}
		for _, w := range existing {
			if w.Branch == branch {
				return nil, zerr.NewRefConflictError(string(branch), "branch already checked out in another worktree")
			}
		}
	}

	if err := s.SetSymbolic(ctx, ref, branch); err != nil {
		return nil, err
	}
	return &Worktree{Slug: slug, Path: path, Branch: branch}, nil
}

// RemoveWorktree drops the worktree at slug, refusing to remove the main
// worktree or a locked one without force (spec §4.5 invariants).
func (s *Store) RemoveWorktree(ctx context.Context, slug string, force bool) error {
	if slug == mainWorktreeSlug {
		return zerr.NewRefConflictError(slug, "cannot remove the main worktree")
	}
	locked, err := s.isWorktreeLocked(ctx, slug)
	if err != nil {
		return err
	}
	if locked && !force {
		return zerr.NewRefConflictError(slug, "worktree is locked")
	}
	if _, err := s.Delete(ctx, worktreeRef(slug)); err != nil {
		return err
	}
	_, err = s.Delete(ctx, lockRef(slug))
	return err
}

func lockRef(slug string) Name {
	return Name(WorktreePrefix + slug + "/locked")
}

// LockWorktree marks slug as locked, preventing removal/move without
// force.
func (s *Store) LockWorktree(ctx context.Context, slug string) error {
	return s.SetSymbolic(ctx, lockRef(slug), "true")
}

// UnlockWorktree clears slug's locked marker.
func (s *Store) UnlockWorktree(ctx context.Context, slug string) error {
	_, err := s.Delete(ctx, lockRef(slug))
	return err
}

func (s *Store) isWorktreeLocked(ctx context.Context, slug string) (bool, error) {
	r, err := s.Get(ctx, lockRef(slug))
	if err != nil {
		return false, err
	}
	return r != nil, nil
}

// ListWorktrees returns every registered worktree.
func (s *Store) ListWorktrees(ctx context.Context) ([]*Worktree, error) {
	refs, err := s.ListByPrefix(ctx, WorktreePrefix)
	if err != nil {
		return nil, err
	}
	bySlug := make(map[string]*Worktree)
	for _, r := range refs {
		rest := strings.TrimPrefix(string(r.Name), WorktreePrefix)
		slug, kind, found := strings.Cut(rest, "/")
		if !found {
			continue
		}
		w, ok := bySlug[slug]
		if !ok {
			w = &Worktree{Slug: slug}
			bySlug[slug] = w
		}
		switch kind {
		case "HEAD":
			w.Branch = Name(r.Target)
		case "locked":
			w.Locked = true
		}
	}
	out := make([]*Worktree, 0, len(bySlug))
	for _, w := range bySlug {
		out = append(out, w)
	}
	return out, nil
}

// PruneWorktrees removes every worktree whose slug isStale reports
// stale (spec §4.5 "prune drops worktree entries whose backing data is
// declared stale by the runtime").
func (s *Store) PruneWorktrees(ctx context.Context, isStale func(slug string) bool) ([]string, error) {
	worktrees, err := s.ListWorktrees(ctx)
	if err != nil {
		return nil, err
	}
	var pruned []string
	for _, w := range worktrees {
		if w.Slug == mainWorktreeSlug || !isStale(w.Slug) {
			continue
		}
		if err := s.RemoveWorktree(ctx, w.Slug, true); err != nil {
			return pruned, err
		}
		pruned = append(pruned, w.Slug)
	}
	return pruned, nil
}
