// Package write plans and executes batch writes: a staged builder
// validates the request and applies save-mode policy, the resulting
// batch handle builds one immutable job description shared by every
// task, and task writers stage rotated output files through the
// commit protocol.
package write

import "github.com/woainirjy/tabular/tqe"

// SaveMode governs what happens when the destination already holds
// data.  The zero value is invalid; a mode must be chosen explicitly.
type SaveMode int

const (
	ErrorIfExists SaveMode = iota + 1
	Ignore
	Overwrite
	Append
)

func (m SaveMode) String() string {
	switch m {
	case ErrorIfExists:
		return "error-if-exists"
	case Ignore:
		return "ignore"
	case Overwrite:
		return "overwrite"
	case Append:
		return "append"
	default:
		return "unset"
	}
}

func ParseSaveMode(s string) (SaveMode, error) {
	for _, m := range []SaveMode{ErrorIfExists, Ignore, Overwrite, Append} {
		if s == m.String() {
			return m, nil
		}
	}
	return 0, tqe.E(tqe.Invalid, "unknown save mode %q", s)
}
