// Package importmodel defines the data model shared by the parser, the
// dependency graph and the code generator: modules, their import
// specifications, export declarations and the derived package nodes.
package importmodel

import "strings"

// DefaultSlot is the reserved export slot name for a module's default export.
const DefaultSlot = "default"

// ModuleUnit is one compiled source file.
type ModuleUnit struct {
	ID          string
	FilePath    string
	PackagePath string
	Imports     []ImportSpec
	Decls       []ExportDecl

	// Exports is filled once by the export normalizer during the resolve phase.
	Exports *ExportRecord

	Source *Parsed
}

// LocalName returns the last segment of the unit id.
func (u *ModuleUnit) LocalName() string {
	return LastSegment(u.ID)
}

// Parsed is the parser's view of one source file: everything the graph and the
// generator need, so the syntax tree itself can be released right after parsing.
type Parsed struct {
	Text        []byte
	Imports     []ImportSpec
	Decls       []ExportDecl
	References  []Reference
	Edits       []Edit
	Identifiers map[string]struct{}
	// DefaultLocal is the synthetic variable holding an anonymous default export.
	DefaultLocal string
}

// RefForm tells the generator how a rewritten reference must be spelled.
type RefForm int

const (
	RefPlain RefForm = iota
	// RefCallee is an identifier in call position; it is emitted as (0, expr)
	// so the callee is invoked without a receiver.
	RefCallee
	// RefShorthand is a shorthand object property ({ Foo }).
	RefShorthand
)

// Reference is one read of an import binding in the module body.
type Reference struct {
	Name  string
	Start int
	End   int
	Form  RefForm
}

// Edit replaces Text[Start:End] with Text.
type Edit struct {
	Start int
	End   int
	Text  string
}

// LastSegment returns the final dot-delimited component of a qualified id.
func LastSegment(id string) string {
	if i := strings.LastIndexByte(id, '.'); i >= 0 {
		return id[i+1:]
	}

	return id
}

// ParentPath returns the qualified path of the package containing id.
func ParentPath(id string) string {
	if i := strings.LastIndexByte(id, '.'); i >= 0 {
		return id[:i]
	}

	return ""
}
