// Package tqe provides a mechanism to create or wrap errors with
// kinds that both humans and programs can act upon.
package tqe

import (
	"fmt"
	"strings"
)

type Kind int

const (
	Other Kind = iota
	Conflict
	Corrupt
	Exists
	Internal
	Invalid
	NotFound
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case Conflict:
		return "conflict with pending operation"
	case Corrupt:
		return "item is corrupt"
	case Exists:
		return "item already exists"
	case Internal:
		return "internal error"
	case Invalid:
		return "invalid operation"
	case NotFound:
		return "item does not exist"
	case Unsupported:
		return "unsupported operation"
	default:
		return "unknown error kind"
	}
}

// Error is the standard error type for this module.  Err is the
// underlying error when one exists; Kind classifies the failure so
// callers can test it without string matching.
type Error struct {
	Kind Kind
	Err  error
}

// E builds an Error from its arguments.  There must be at least one
// argument or E panics.  Arguments are interpreted by type: a Kind
// sets the classification, an error becomes the wrapped error, and a
// string starts a message assembled fmt.Sprintf style with any
// remaining arguments.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("tqe.E called with no arguments")
	}
	e := &Error{}
	for i, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
		case *Error:
			e.Err = arg
		case error:
			e.Err = arg
		case string:
			e.Err = fmt.Errorf(arg, args[i+1:]...)
			return e
		default:
			e.Err = fmt.Errorf("%v", arg)
			return e
		}
	}
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Kind != Other {
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	if b.Len() == 0 {
		return "no error"
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is supports errors.Is so that kind-only targets match any error of
// the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Err == nil
}

func IsKind(err error, k Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == k {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func IsConflict(err error) bool    { return IsKind(err, Conflict) }
func IsCorrupt(err error) bool     { return IsKind(err, Corrupt) }
func IsExists(err error) bool      { return IsKind(err, Exists) }
func IsInvalid(err error) bool     { return IsKind(err, Invalid) }
func IsNotFound(err error) bool    { return IsKind(err, NotFound) }
func IsUnsupported(err error) bool { return IsKind(err, Unsupported) }

func ErrNotFound() error { return &Error{Kind: NotFound} }
func ErrExists() error   { return &Error{Kind: Exists} }
