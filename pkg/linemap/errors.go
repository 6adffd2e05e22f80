package linemap

import (
	"errors"
	"fmt"
)

// BuildReason tells which phase of a build failed.
type BuildReason int

const (
	SessionInitFailed BuildReason = iota + 1
	SymbolEnumFailed
	LineEnumFailed
)

func (r BuildReason) String() string {
	switch r {
	case SessionInitFailed:
		return "session_init_failed"
	case SymbolEnumFailed:
		return "symbol_enum_failed"
	case LineEnumFailed:
		return "line_enum_failed"
	}
	return fmt.Sprintf("BuildReason(%d)", int(r))
}

// BuildFailure aborts a build. No partially built map is ever returned with it.
type BuildFailure struct {
	Module ModuleID
	Reason BuildReason
	Err    error
}

func (e *BuildFailure) Error() string {
	return fmt.Sprintf("build line map for %s: %s: %v", e.Module, e.Reason, e.Err)
}

func (e *BuildFailure) Unwrap() error { return e.Err }

// NotFoundReason tells why an address could not be resolved.
type NotFoundReason int

const (
	UnknownToken NotFoundReason = iota + 1
	BeforeFirstLine
)

func (r NotFoundReason) String() string {
	switch r {
	case UnknownToken:
		return "unknown_token"
	case BeforeFirstLine:
		return "before_first_line"
	}
	return fmt.Sprintf("NotFoundReason(%d)", int(r))
}

// NotFound is an expected outcome of Resolve, not a failure.
type NotFound struct {
	Reason NotFoundReason
	Token  uint64
	Offset uint64
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("no source line for token %#x offset %#x: %s", e.Token, e.Offset, e.Reason)
}

// IsNotFound reports whether err is a NotFound with the given reason. A zero
// reason matches any NotFound.
func IsNotFound(err error, reason NotFoundReason) bool {
	var nf *NotFound
	if !errors.As(err, &nf) {
		return false
	}
	return reason == 0 || nf.Reason == reason
}
