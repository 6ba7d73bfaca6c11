package object

import "github.com/zetavcs/zeta/zoid"

// Any is the set of concrete object types Decode can return.
type Any interface {
	*Blob | *Tree | *Commit | *Tag
}

// Decode parses payload as an object of the given kind and returns one of
// *Blob, *Tree, *Commit, *Tag as `any`.
func Decode(kind zoid.Kind, payload []byte) (any, error) {
	switch kind {
	case zoid.Blob:
		return &Blob{Data: payload}, nil
	case zoid.Tree:
		return DecodeTree(payload)
	case zoid.Commit:
		return DecodeCommit(payload)
	case zoid.Tag:
		return DecodeTag(payload)
	default:
		return nil, errUnsupportedKind(kind)
	}
}

// DecodeAs is a generically-typed wrapper around Decode for callers who
// already know (or require) the object's kind.
func DecodeAs[T Any](kind zoid.Kind, payload []byte) (T, error) {
	v, err := Decode(kind, payload)
	if err != nil {
		var zero T
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, errUnsupportedKind(kind)
	}
	return t, nil
}

func errUnsupportedKind(kind zoid.Kind) error {
	return &unsupportedKindError{kind}
}

type unsupportedKindError struct {
	kind zoid.Kind
}

func (e *unsupportedKindError) Error() string {
	return "zeta: unsupported object kind: " + e.kind.String()
}
