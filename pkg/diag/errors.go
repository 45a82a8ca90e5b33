// Package diag defines the compiler's error taxonomy and the per-unit
// diagnostics collected across a compilation.
package diag

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Compile-time kinds are fatal to the unit that raised them;
// ErrUnresolvedRuntimeReference is only ever produced by generated code at
// execution time.
var (
	ErrParse                       = errors.New("parse error")
	ErrUnresolvedSpecifier         = errors.New("unresolved specifier")
	ErrDuplicateExportName         = errors.New("duplicate export name")
	ErrCircularAggregationOverflow = errors.New("circular aggregation overflow")
	ErrUnresolvedRuntimeReference  = errors.New("unresolved runtime reference")
	ErrDuplicateModule             = errors.New("duplicate module id")
	ErrInvalidModuleName           = errors.New("invalid module name")
	ErrSourceTooLarge              = errors.New("source file too large")
)

// Warning kinds.
var (
	ErrShadowed      = errors.New("shadowed name")
	ErrMissingExport = errors.New("missing export")
	ErrOpaqueExports = errors.New("opaque exports")
)

// RuntimeErrorName is the error name thrown by the generated linkage runtime
// when a host lookup finds nothing registered under the requested id.
const RuntimeErrorName = "UnresolvedRuntimeReference"

// Error is a diagnostic bound to one compilation unit.
type Error struct {
	Kind error
	Unit string
	File string
	Line int
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	var sb strings.Builder

	if e.File != "" {
		sb.WriteString(e.File)

		if e.Line > 0 {
			fmt.Fprintf(&sb, ":%d", e.Line)
		}

		sb.WriteString(": ")
	} else if e.Unit != "" {
		sb.WriteString(e.Unit)
		sb.WriteString(": ")
	}

	sb.WriteString(e.Kind.Error())

	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}

	return sb.String()
}

func (e *Error) Unwrap() error { return e.Kind }

// Newf builds a diagnostic of the given kind for unit.
func Newf(kind error, unit string, format string, args ...any) *Error {
	return &Error{Kind: kind, Unit: unit, Msg: fmt.Sprintf(format, args...)}
}

// At returns a copy of e positioned at file and line.
func (e *Error) At(file string, line int) *Error {
	out := *e
	out.File = file
	out.Line = line

	return &out
}

// UnitOf returns the unit id carried by err, or "" when err is not a diagnostic.
func UnitOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Unit
	}

	return ""
}
