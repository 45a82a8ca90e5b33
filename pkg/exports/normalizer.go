// Package exports canonicalizes the export surface of every module into an
// importmodel.ExportRecord.
package exports

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Sumatoshi-tech/esmlink/pkg/diag"
	"github.com/Sumatoshi-tech/esmlink/pkg/importmodel"
)

// ErrUnknownModule is returned when Normalize is asked for an id the graph does not hold.
var ErrUnknownModule = errors.New("unknown module")

// Source is the read side of the dependency graph.
type Source interface {
	Unit(id string) (*importmodel.ModuleUnit, bool)
	Package(path string) (*importmodel.PackageNode, bool)
}

type state struct {
	record *importmodel.ExportRecord
	err    error
	done   bool
}

// Normalizer computes ExportRecords once per module. It is safe for concurrent
// use; computations are serialized so that export-star cycles spanning several
// callers cannot deadlock.
type Normalizer struct {
	src    Source
	diags  *diag.List
	logger *slog.Logger

	mu   sync.Mutex
	memo map[string]*state
}

// New creates a Normalizer over src. Errors and warnings go to diags.
func New(src Source, diags *diag.List, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Normalizer{
		src:    src,
		diags:  diags,
		logger: logger,
		memo:   make(map[string]*state),
	}
}

// Normalize returns the export record of module id and stores it on the unit.
// A record that failed normalization is returned together with its error.
func (n *Normalizer) Normalize(id string) (*importmodel.ExportRecord, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	unit, ok := n.src.Unit(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, id)
	}

	st := n.normalize(unit)

	return st.record, st.err
}

func (n *Normalizer) normalize(unit *importmodel.ModuleUnit) *state {
	if st, ok := n.memo[unit.ID]; ok {
		// Either finished, or in progress further up this call chain: the
		// partial record already holds the module's explicit slots.
		return st
	}

	st := &state{record: importmodel.NewExportRecord()}
	n.memo[unit.ID] = st

	st.err = n.explicit(unit, st.record)
	if st.err == nil {
		st.err = n.stars(unit, st.record)
	}

	st.done = true
	unit.Exports = st.record

	if st.err != nil {
		n.diags.Error(unit.ID, st.err)
	}

	return st
}

// explicit adds local declarations and named re-exports.
func (n *Normalizer) explicit(unit *importmodel.ModuleUnit, rec *importmodel.ExportRecord) error {
	bindings := importBindings(unit)

	for _, decl := range unit.Decls {
		if decl.Kind == importmodel.ExportReExportAll {
			continue
		}

		if rec.Has(decl.Name) {
			return n.errorf(unit, decl.Line, "%q is exported more than once", decl.Name)
		}

		var desc importmodel.ExportDescriptor

		switch {
		case decl.ImportIndex >= 0:
			spec := unit.Imports[decl.ImportIndex]
			desc = n.forward(unit, spec, decl.Local)
		case bindings[decl.Local] != nil:
			// export { X } where X is itself an import binding.
			b := bindings[decl.Local]
			desc = n.forward(unit, *b.spec, b.imported)
		default:
			desc = importmodel.ExportDescriptor{
				DeclaredName: decl.Local,
				Kind:         decl.Kind,
				Origin:       importmodel.OriginOf(unit.ID, decl.Local),
			}
		}

		rec.Set(decl.Name, desc)
	}

	return nil
}

// forward describes a slot served by name (or "*") of spec's target.
func (n *Normalizer) forward(
	unit *importmodel.ModuleUnit,
	spec importmodel.ImportSpec,
	name string,
) importmodel.ExportDescriptor {
	desc := importmodel.ExportDescriptor{
		DeclaredName: name,
		Kind:         importmodel.ExportReExport,
		From:         spec.ResolvedTargetID,
		Origin:       importmodel.OriginOf(spec.ResolvedTargetID, name),
	}

	if spec.TargetKind != importmodel.TargetModule || name == "*" {
		return desc
	}

	target, ok := n.src.Unit(spec.ResolvedTargetID)
	if !ok {
		return desc
	}

	tst := n.normalize(target)
	if remote, found := tst.record.Get(name); found {
		desc.Origin = remote.Origin
	} else if tst.done && tst.err == nil {
		n.warnf(unit, spec.Line, diag.ErrMissingExport, "%s has no export %q", target.ID, name)
	}

	return desc
}

type binding struct {
	spec     *importmodel.ImportSpec
	imported string
}

func importBindings(unit *importmodel.ModuleUnit) map[string]*binding {
	out := make(map[string]*binding)

	for i := range unit.Imports {
		spec := &unit.Imports[i]

		switch spec.Kind {
		case importmodel.ImportDefault:
			out[spec.LocalName] = &binding{spec: spec, imported: importmodel.DefaultSlot}
		case importmodel.ImportNamespace:
			out[spec.LocalName] = &binding{spec: spec, imported: "*"}
		case importmodel.ImportNamed:
			for _, name := range spec.Names {
				out[name.Local] = &binding{spec: spec, imported: name.Imported}
			}
		}
	}

	return out
}

// stars expands "export * from" declarations. Explicit slots win over star
// slots; two stars that provide the same name from different bindings collide.
func (n *Normalizer) stars(unit *importmodel.ModuleUnit, rec *importmodel.ExportRecord) error {
	explicit := make(map[string]bool, rec.Len())
	for _, name := range rec.Names() {
		explicit[name] = true
	}

	for _, decl := range unit.Decls {
		if decl.Kind != importmodel.ExportReExportAll {
			continue
		}

		spec := unit.Imports[decl.ImportIndex]

		candidates, err := n.starSlots(unit, spec)
		if err != nil {
			return err
		}

		for _, slot := range candidates {
			if explicit[slot.name] {
				if prev, _ := rec.Get(slot.name); prev.Origin == slot.desc.Origin {
					continue
				}

				n.warnf(unit, decl.Line, diag.ErrShadowed,
					"local export %q shadows the one from %s", slot.name, spec.ResolvedTargetID)

				continue
			}

			if prev, taken := rec.Get(slot.name); taken {
				if prev.Origin != slot.desc.Origin {
					return n.errorf(unit, decl.Line, "%q is exported by both %s and %s",
						slot.name, prev.From, spec.ResolvedTargetID)
				}

				continue
			}

			rec.Set(slot.name, slot.desc)
		}
	}

	return nil
}

type starSlot struct {
	name string
	desc importmodel.ExportDescriptor
}

func (n *Normalizer) starSlots(unit *importmodel.ModuleUnit, spec importmodel.ImportSpec) ([]starSlot, error) {
	from := spec.ResolvedTargetID

	switch spec.TargetKind {
	case importmodel.TargetModule:
		target, ok := n.src.Unit(from)
		if !ok {
			return nil, nil
		}

		tst := n.normalize(target)

		var out []starSlot

		for _, name := range tst.record.Names() {
			if name == importmodel.DefaultSlot {
				continue
			}

			remote, _ := tst.record.Get(name)
			out = append(out, starSlot{name: name, desc: importmodel.ExportDescriptor{
				DeclaredName: name,
				Kind:         importmodel.ExportReExportAll,
				From:         from,
				Origin:       remote.Origin,
			}})
		}

		return out, nil

	case importmodel.TargetPackage:
		node, ok := n.src.Package(from)
		if !ok {
			return nil, nil
		}

		var out []starSlot

		for _, name := range node.ChildNames() {
			out = append(out, starSlot{name: name, desc: importmodel.ExportDescriptor{
				DeclaredName: name,
				Kind:         importmodel.ExportReExportAll,
				From:         from,
				Origin:       from + "." + name,
			}})
		}

		return out, nil

	case importmodel.TargetExternal:
		n.warnf(unit, spec.Line, diag.ErrOpaqueExports,
			"export * from external module %s cannot be enumerated and is skipped", from)

		return nil, nil

	default:
		return nil, nil
	}
}

func (n *Normalizer) errorf(unit *importmodel.ModuleUnit, line int, format string, args ...any) error {
	return diag.Newf(diag.ErrDuplicateExportName, unit.ID, format, args...).At(unit.FilePath, line)
}

func (n *Normalizer) warnf(unit *importmodel.ModuleUnit, line int, kind error, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	n.logger.Warn(msg, "unit", unit.ID)
	n.diags.Warn(unit.ID, diag.Newf(kind, unit.ID, "%s", msg).At(unit.FilePath, line))
}
