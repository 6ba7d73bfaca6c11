package object

import "fmt"

// FileMode is a tree entry's mode, one of the five values spec §3 allows.
type FileMode uint32

const (
	ModeInvalid    FileMode = 0
	ModeFile       FileMode = 0o100644
	ModeExecutable FileMode = 0o100755
	ModeSymlink    FileMode = 0o120000
	ModeSubmodule  FileMode = 0o160000
	ModeSubtree    FileMode = 0o040000
)

// IsValid reports whether m is one of the five modes spec §3 allows.
func (m FileMode) IsValid() bool {
	switch m {
	case ModeFile, ModeExecutable, ModeSymlink, ModeSubmodule, ModeSubtree:
		return true
	default:
		return false
	}
}

// IsSubtree reports whether m identifies a tree (directory) entry.
func (m FileMode) IsSubtree() bool {
	return m == ModeSubtree
}

// String renders the mode the way it is written in a serialised tree
// entry: unpadded octal digits, e.g. "100644".
func (m FileMode) String() string {
	return fmt.Sprintf("%o", uint32(m))
}

// ParseFileMode parses the octal textual mode used in a serialised tree
// entry.
func ParseFileMode(s string) (FileMode, error) {
	var v uint32
	if _, err := fmt.Sscanf(s, "%o", &v); err != nil {
		return 0, fmt.Errorf("zeta: invalid file mode %q: %w", s, err)
	}
	m := FileMode(v)
	if !m.IsValid() {
		return 0, fmt.Errorf("zeta: unsupported file mode %q", s)
	}
	return m, nil
}
