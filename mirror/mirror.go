// Package mirror implements mirror sync (spec §4.10, C19): pull, push,
// and bidirectional ref synchronisation between two repository endpoints,
// with ref pattern filtering and a configurable conflict strategy for
// diverged refs. The wire protocol that actually moves packs between two
// separate servers is out of scope (spec §1 "out of scope here"); Sync
// operates against the Endpoint abstraction below, which a transport
// layer implements on top of fetch/send-pack.
package mirror

import (
	"context"
	"sort"

	"github.com/zetavcs/zeta/internal/wildmatch"
	"github.com/zetavcs/zeta/object"
	"github.com/zetavcs/zeta/refs"
	"github.com/zetavcs/zeta/traversal"
	"github.com/zetavcs/zeta/zerr"
	"github.com/zetavcs/zeta/zoid"
)

// Endpoint is the object+ref capability mirror needs from each side of a
// sync. Repository (repository.go) adapts a store.Store-shaped
// ObjectStore and a refs.Store-shaped RefStore into one.
type Endpoint interface {
	object.TreeResolver
	Commit(ctx context.Context, oid zoid.OID) (*object.Commit, error)
	Has(ctx context.Context, oid zoid.OID) (bool, error)
	Get(ctx context.Context, oidOrPrefix string) (zoid.Kind, []byte, error)
	Put(ctx context.Context, kind zoid.Kind, payload []byte) (zoid.OID, error)
	GetRef(ctx context.Context, name refs.Name) (*refs.Reference, error)
	SetRef(ctx context.Context, name refs.Name, target zoid.OID) error
	ListRefs(ctx context.Context, prefix string) ([]*refs.Reference, error)
}

// Direction selects which side's refs drive the sync (spec §4.10
// "direction ∈ {pull, push, bidirectional}").
type Direction string

const (
	Pull          Direction = "pull"
	Push          Direction = "push"
	Bidirectional Direction = "bidirectional"
)

// ConflictStrategy resolves a diverged ref — one where neither side's tip
// is an ancestor of the other's (spec §4.10 "conflictStrategy ∈
// {force-remote, force-local, skip, error}").
type ConflictStrategy string

const (
	ForceRemote ConflictStrategy = "force-remote"
	ForceLocal  ConflictStrategy = "force-local"
	Skip        ConflictStrategy = "skip"
	Error       ConflictStrategy = "error"
)

// Options configures Sync (spec §4.10 "MirrorSync({upstream, downstream,
// direction, conflictStrategy, refPatterns, excludePatterns})").
type Options struct {
	Direction        Direction
	ConflictStrategy ConflictStrategy
	RefPatterns      []string
	ExcludePatterns  []string
	// Progress, if set, is invoked once per ref as its report is
	// finalised (spec §5 "Mirror sync exposes a progress callback").
	Progress func(RefReport)
}

// RefReport is the per-ref outcome of one directional sync pass (spec
// §4.10 "a per-ref report {ref, previous, new, updated, fastForward,
// conflict, resolution}").
type RefReport struct {
	Ref         refs.Name
	Previous    zoid.OID
	New         zoid.OID
	Updated     bool
	FastForward bool
	Conflict    bool
	Resolution  string
}

// Sync runs one or both directions between upstream and downstream
// per opts.Direction, returning every ref report produced (pull reports
// followed by push reports, for bidirectional).
func Sync(ctx context.Context, upstream, downstream Endpoint, opts Options) ([]RefReport, error) {
	matcher, err := compileRefPatterns(opts.RefPatterns, opts.ExcludePatterns)
	if err != nil {
		return nil, err
	}

	var reports []RefReport
	switch opts.Direction {
	case Pull:
		r, err := syncOneWay(ctx, upstream, downstream, matcher, opts)
		if err != nil {
			return nil, err
		}
		reports = r
	case Push:
		r, err := syncOneWay(ctx, downstream, upstream, matcher, opts)
		if err != nil {
			return nil, err
		}
		reports = r
	case Bidirectional:
		pullReports, err := syncOneWay(ctx, upstream, downstream, matcher, opts)
		if err != nil {
			return nil, err
		}
		pushReports, err := syncOneWay(ctx, downstream, upstream, matcher, opts)
		if err != nil {
			return nil, err
		}
		reports = append(pullReports, pushReports...)
	default:
		return nil, zerr.NewInvalidObjectError("unknown mirror direction " + string(opts.Direction))
	}
	return reports, nil
}

// compileRefPatterns reuses the sparse-filter glob engine for ref name
// matching: refPatterns are positive lines, excludePatterns are compiled
// as negated lines, and last-match-wins decides inclusion (spec §4.10
// "ref pattern filter"). No patterns at all means "match everything".
func compileRefPatterns(include, exclude []string) (*wildmatch.Matcher, error) {
	if len(include) == 0 && len(exclude) == 0 {
		return nil, nil
	}
	var lines []string
	if len(include) == 0 {
		lines = append(lines, "**")
	} else {
		lines = append(lines, include...)
	}
	for _, p := range exclude {
		lines = append(lines, "!"+p)
	}
	return wildmatch.Compile(lines)
}

func refMatches(m *wildmatch.Matcher, name refs.Name) bool {
	if m == nil {
		return true
	}
	return m.Match(string(name), false)
}

// syncOneWay copies every matching ref (and the objects it needs) from
// src to dst, applying opts.ConflictStrategy to diverged refs. Fast-
// forwards are always accepted regardless of strategy (spec §4.10
// "fast-forward always accepted").
func syncOneWay(ctx context.Context, src, dst Endpoint, matcher *wildmatch.Matcher, opts Options) ([]RefReport, error) {
	srcRefs, err := src.ListRefs(ctx, "")
	if err != nil {
		return nil, err
	}
	sort.Slice(srcRefs, func(i, j int) bool { return srcRefs[i].Name < srcRefs[j].Name })

	var reports []RefReport
	for _, ref := range srcRefs {
		if ref.Kind != refs.Direct || !refMatches(matcher, ref.Name) {
			continue
		}
		select {
		case <-ctx.Done():
			return reports, ctx.Err()
		default:
		}

		newOID, err := zoid.Parse(ref.Target)
		if err != nil {
			return nil, err
		}
		report, err := syncRef(ctx, src, dst, ref.Name, newOID, opts.ConflictStrategy)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
		if opts.Progress != nil {
			opts.Progress(*report)
		}
	}
	return reports, nil
}

func syncRef(ctx context.Context, src, dst Endpoint, name refs.Name, newOID zoid.OID, strategy ConflictStrategy) (*RefReport, error) {
	report := &RefReport{Ref: name, New: newOID}

	cur, err := dst.GetRef(ctx, name)
	if err != nil {
		return nil, err
	}
	var prevOID zoid.OID
	if cur != nil && cur.Kind == refs.Direct {
		prevOID, err = zoid.Parse(cur.Target)
		if err != nil {
			return nil, err
		}
	}
	report.Previous = prevOID

	if prevOID == newOID {
		return report, nil
	}

	if err := copyMissingObjects(ctx, src, dst, newOID); err != nil {
		return nil, err
	}

	fastForward := prevOID.IsZero()
	if !fastForward {
		fastForward, err = traversal.IsAncestor(ctx, dst, prevOID, newOID)
		if err != nil {
			return nil, err
		}
	}
	if fastForward {
		if err := dst.SetRef(ctx, name, newOID); err != nil {
			return nil, err
		}
		report.Updated = true
		report.FastForward = true
		return report, nil
	}

	switch strategy {
	case ForceRemote, "":
		if err := dst.SetRef(ctx, name, newOID); err != nil {
			return nil, err
		}
		report.Updated = true
		report.Resolution = string(ForceRemote)
	case ForceLocal:
		report.Conflict = true
		report.Resolution = string(ForceLocal)
	case Skip:
		report.Conflict = true
		report.Resolution = string(Skip)
	case Error:
		return nil, zerr.NewRefConflictError(string(name), "diverged and conflictStrategy is error")
	default:
		return nil, zerr.NewInvalidObjectError("unknown conflict strategy " + string(strategy))
	}
	return report, nil
}
