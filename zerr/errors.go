// Package zerr defines the error taxonomy shared by every component of the
// repository engine (see spec §7). Conditions with no payload are plain
// sentinel errors; conditions that carry data are typed structs with an
// IsXxx helper so callers can branch on kind without type assertions.
package zerr

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is returned when a caller's cancellation token fires.
	ErrCancelled = errors.New("zeta: operation cancelled")

	// ErrMergeInProgress is returned when an operation requires no active
	// merge but a merge state is already present.
	ErrMergeInProgress = errors.New("zeta: a merge is already in progress")

	// ErrFastForwardImpossible is returned when fastForwardOnly was
	// requested but the branches have diverged.
	ErrFastForwardImpossible = errors.New("zeta: fast-forward not possible, branches have diverged")

	// ErrUnresolvedConflicts is returned by continueMerge while any
	// conflict remains unresolved.
	ErrUnresolvedConflicts = errors.New("zeta: unresolved conflicts remain")

	// ErrNoMergeInProgress is returned when abortMerge/continueMerge is
	// called but no merge state exists.
	ErrNoMergeInProgress = errors.New("zeta: no merge in progress")
)

// InvalidObjectError reports a malformed object payload: a bad tree entry,
// a missing required header, or an invalid mode.
type InvalidObjectError struct {
	Reason string
}

func (e *InvalidObjectError) Error() string {
	return fmt.Sprintf("zeta: invalid object: %s", e.Reason)
}

func NewInvalidObjectError(reason string) error {
	return &InvalidObjectError{Reason: reason}
}

func IsInvalidObject(err error) bool {
	var e *InvalidObjectError
	return errors.As(err, &e)
}

// OidMismatchError reports that the framed hash of a payload does not
// match the OID it was stored or requested under.
type OidMismatchError struct {
	Want string
	Got  string
}

func (e *OidMismatchError) Error() string {
	return fmt.Sprintf("zeta: oid mismatch: want %s got %s", e.Want, e.Got)
}

func NewOidMismatchError(want, got string) error {
	return &OidMismatchError{Want: want, Got: got}
}

func IsOidMismatch(err error) bool {
	var e *OidMismatchError
	return errors.As(err, &e)
}

// NotFoundError reports a missing OID, ref, bundle, or merge state.
type NotFoundError struct {
	Kind string // "object", "ref", "bundle", "merge-state"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("zeta: %s %q not found", e.Kind, e.ID)
}

func NewNotFoundError(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// AmbiguousOidError reports that a short OID prefix resolved to more than
// one full OID.
type AmbiguousOidError struct {
	Prefix    string
	Matches   []string
}

func (e *AmbiguousOidError) Error() string {
	return fmt.Sprintf("zeta: short oid %q is ambiguous (%d matches)", e.Prefix, len(e.Matches))
}

func NewAmbiguousOidError(prefix string, matches []string) error {
	return &AmbiguousOidError{Prefix: prefix, Matches: matches}
}

func IsAmbiguousOid(err error) bool {
	var e *AmbiguousOidError
	return errors.As(err, &e)
}

// RefConflictError reports that a ref update precondition was not met:
// the branch exists and force was not given, the current branch was
// targeted for deletion, and similar.
type RefConflictError struct {
	Ref    string
	Reason string
}

func (e *RefConflictError) Error() string {
	return fmt.Sprintf("zeta: ref %q conflict: %s", e.Ref, e.Reason)
}

func NewRefConflictError(ref, reason string) error {
	return &RefConflictError{Ref: ref, Reason: reason}
}

func IsRefConflict(err error) bool {
	var e *RefConflictError
	return errors.As(err, &e)
}

// IOError wraps a failure surfaced by the row store, remote bucket, or
// transport.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("zeta: io error during %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func NewIOError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Err: err}
}

func IsIOError(err error) bool {
	var e *IOError
	return errors.As(err, &e)
}

// BundleFormatError, BundleCorruptedError, BundleIndexError report failures
// parsing or validating the bundle format (§3/§4.3).
type BundleFormatError struct{ Reason string }

func (e *BundleFormatError) Error() string { return fmt.Sprintf("zeta: bundle format: %s", e.Reason) }

type BundleCorruptedError struct{ Reason string }

func (e *BundleCorruptedError) Error() string {
	return fmt.Sprintf("zeta: bundle corrupted: %s", e.Reason)
}

type BundleIndexError struct{ Reason string }

func (e *BundleIndexError) Error() string {
	return fmt.Sprintf("zeta: bundle index: %s", e.Reason)
}

func NewBundleFormatError(reason string) error    { return &BundleFormatError{Reason: reason} }
func NewBundleCorruptedError(reason string) error { return &BundleCorruptedError{Reason: reason} }
func NewBundleIndexError(reason string) error     { return &BundleIndexError{Reason: reason} }

// PackFormatError, PackCorruptedError report pack header/version/checksum
// failures (§4.3).
type PackFormatError struct{ Reason string }

func (e *PackFormatError) Error() string { return fmt.Sprintf("zeta: pack format: %s", e.Reason) }

type PackCorruptedError struct{ Reason string }

func (e *PackCorruptedError) Error() string {
	return fmt.Sprintf("zeta: pack corrupted: %s", e.Reason)
}

func NewPackFormatError(reason string) error    { return &PackFormatError{Reason: reason} }
func NewPackCorruptedError(reason string) error { return &PackCorruptedError{Reason: reason} }
