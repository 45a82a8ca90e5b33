package importmodel

// ImportKind classifies one import binding clause.
type ImportKind int

const (
	ImportDefault ImportKind = iota
	ImportNamed
	ImportNamespace
	ImportSideEffect
	ImportReExport
)

func (k ImportKind) String() string {
	switch k {
	case ImportDefault:
		return "default"
	case ImportNamed:
		return "named"
	case ImportNamespace:
		return "namespace"
	case ImportSideEffect:
		return "side-effect"
	case ImportReExport:
		return "re-export"
	default:
		return "unknown"
	}
}

// TargetKind says what a specifier resolved to.
type TargetKind int

const (
	TargetUnresolved TargetKind = iota
	TargetModule
	TargetPackage
	TargetExternal
)

func (k TargetKind) String() string {
	switch k {
	case TargetModule:
		return "module"
	case TargetPackage:
		return "package"
	case TargetExternal:
		return "external"
	default:
		return "unresolved"
	}
}

// NamedBinding is one entry of a named import list, or of a re-export list
// where Imported is the remote name and Local the exported slot name.
type NamedBinding struct {
	Imported string
	Local    string
}

// ImportSpec is one import (or re-export) clause.
type ImportSpec struct {
	Specifier string
	Kind      ImportKind
	LocalName string
	Names     []NamedBinding
	Line      int

	ResolvedTargetID string
	TargetKind       TargetKind
}

// Resolved reports whether the resolve phase bound the spec to a target.
func (s ImportSpec) Resolved() bool {
	return s.TargetKind != TargetUnresolved && s.ResolvedTargetID != ""
}

// Bindings returns the local names this spec introduces into module scope.
func (s ImportSpec) Bindings() []string {
	switch s.Kind {
	case ImportDefault, ImportNamespace:
		return []string{s.LocalName}
	case ImportNamed:
		out := make([]string, 0, len(s.Names))
		for _, n := range s.Names {
			out = append(out, n.Local)
		}

		return out
	default:
		return nil
	}
}
