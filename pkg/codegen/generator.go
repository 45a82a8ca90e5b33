// Package codegen emits the lazy linkage form of a module: a host-callable
// function whose preamble declares one deferred reference per imported target
// and whose body reads every import through those references.
package codegen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Sumatoshi-tech/esmlink/pkg/importmodel"
	"github.com/Sumatoshi-tech/esmlink/pkg/namespace"
)

const indent = "    "

// Layouts provides the aggregated namespace of package targets.
type Layouts interface {
	Aggregate(path string) (*namespace.Record, error)
}

// Generator emits units. It holds no per-unit state and is safe for concurrent use.
type Generator struct {
	runtimeID string
	layouts   Layouts
}

// New creates a Generator whose units load the runtime registered as runtimeID.
func New(runtimeID string, layouts Layouts) *Generator {
	if runtimeID == "" {
		runtimeID = DefaultRuntimeID
	}

	return &Generator{runtimeID: runtimeID, layouts: layouts}
}

// ref is the deferred reference declared for one target id.
type ref struct {
	name   string
	target string
	kind   importmodel.TargetKind
}

// unitGen holds the state of generating one unit.
type unitGen struct {
	*Generator

	unit     *importmodel.ModuleUnit
	refs     []*ref
	byTarget map[string]*ref
	// bindings maps an import's local name to the expression reading it.
	bindings map[string]string
	loads    []string
}

// Generate returns the compiled form of unit. The unit's imports must be
// resolved and its exports normalized.
func (g *Generator) Generate(unit *importmodel.ModuleUnit) ([]byte, error) {
	if unit.Source == nil {
		return nil, fmt.Errorf("unit %s has no parsed source", unit.ID)
	}

	ug := &unitGen{
		Generator: g,
		unit:      unit,
		byTarget:  make(map[string]*ref),
		bindings:  make(map[string]string),
	}

	err := ug.collectRefs()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	err = ug.writePreamble(&buf)
	if err != nil {
		return nil, err
	}

	ug.writeBody(&buf)

	buf.WriteString(indent + "return exports;\n});\n")

	return buf.Bytes(), nil
}

func (ug *unitGen) collectRefs() error {
	names := newNamer(ug.unit.Source.Identifiers)

	for _, spec := range ug.unit.Imports {
		if !spec.Resolved() {
			return fmt.Errorf("unit %s: import %q is not resolved", ug.unit.ID, spec.Specifier)
		}

		if spec.Kind == importmodel.ImportSideEffect {
			ug.loads = append(ug.loads, spec.ResolvedTargetID)

			continue
		}

		r, ok := ug.byTarget[spec.ResolvedTargetID]
		if !ok {
			r = &ref{
				name:   names.next(importmodel.LastSegment(spec.ResolvedTargetID)),
				target: spec.ResolvedTargetID,
				kind:   spec.TargetKind,
			}
			ug.byTarget[r.target] = r
			ug.refs = append(ug.refs, r)
		}

		switch spec.Kind {
		case importmodel.ImportDefault:
			ug.bindings[spec.LocalName] = r.name + "._" + property(importmodel.DefaultSlot)
		case importmodel.ImportNamespace:
			ug.bindings[spec.LocalName] = r.name + "._"
		case importmodel.ImportNamed:
			for _, name := range spec.Names {
				ug.bindings[name.Local] = r.name + "._" + property(name.Imported)
			}
		}
	}

	return nil
}

func (ug *unitGen) writePreamble(buf *bytes.Buffer) error {
	buf.WriteString("/**\n * @return {Any}\n */\n(function () {\n")
	buf.WriteString(indent + "var __global = System.getContext() || (function () {\n")
	buf.WriteString(indent + indent + "return this;\n")
	buf.WriteString(indent + "}).call(null);\n")
	fmt.Fprintf(buf, "%svar __esm = __global.__esmlink || (__global.__esmlink = System.getModule(%s).createRuntime()), exports = {};\n",
		indent, jsString(ug.runtimeID))
	fmt.Fprintf(buf, "%svar __link = __esm.linker(System, %s, exports);\n", indent, jsString(ug.unit.ID))

	for _, r := range ug.refs {
		if r.kind != importmodel.TargetPackage {
			fmt.Fprintf(buf, "%svar %s = __link.importLazy(%s);\n", indent, r.name, jsString(r.target))

			continue
		}

		layout, err := ug.packageLayout(r.target)
		if err != nil {
			return err
		}

		fmt.Fprintf(buf, "%svar %s = __link.importPackage(%s, %s);\n", indent, r.name, jsString(r.target), layout)
	}

	ug.writeExports(buf)

	// Side-effect-only imports are the one eager host lookup of the
	// declaration stage. linker() has already registered this unit's
	// exports, so a cycle back into it still resolves without re-entry.
	for _, id := range ug.loads {
		fmt.Fprintf(buf, "%s__link.load(%s);\n", indent, jsString(id))
	}

	return nil
}

func (ug *unitGen) packageLayout(path string) (string, error) {
	if ug.layouts == nil {
		return "", fmt.Errorf("unit %s: no namespace layouts for package %s", ug.unit.ID, path)
	}

	rec, err := ug.layouts.Aggregate(path)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(rec.Layout())
	if err != nil {
		return "", fmt.Errorf("encode layout of %s: %w", path, err)
	}

	return string(out), nil
}

// writeExports defines every export slot as a live getter before the body runs.
func (ug *unitGen) writeExports(buf *bytes.Buffer) {
	rec := ug.unit.Exports
	if rec == nil || rec.Len() == 0 {
		return
	}

	var getters []string

	forwarded := make(map[string][]string)

	var forwardOrder []string

	for _, name := range rec.Names() {
		desc, _ := rec.Get(name)

		if !desc.IsReExport() {
			getters = append(getters, fmt.Sprintf("%s%s%s: function () {\n%s%s%sreturn %s;\n%s%s}",
				indent, indent, jsString(name), indent, indent, indent, ug.localExpr(desc.DeclaredName), indent, indent))

			continue
		}

		if _, seen := forwarded[desc.From]; !seen {
			forwardOrder = append(forwardOrder, desc.From)
		}

		forwarded[desc.From] = append(forwarded[desc.From], jsString(name)+": "+jsString(desc.DeclaredName))
	}

	if len(getters) > 0 {
		fmt.Fprintf(buf, "%s__link.define(exports, {\n%s\n%s});\n", indent, strings.Join(getters, ",\n"), indent)
	}

	for _, from := range forwardOrder {
		r, ok := ug.byTarget[from]
		if !ok {
			continue
		}

		fmt.Fprintf(buf, "%s__link.reexport(exports, %s, { %s });\n", indent, r.name, strings.Join(forwarded[from], ", "))
	}
}

// localExpr returns the expression reading the local binding name.
func (ug *unitGen) localExpr(name string) string {
	if expr, ok := ug.bindings[name]; ok {
		return expr
	}

	return name
}

type splice struct {
	start, end int
	text       string
}

// writeBody copies the source with import and export syntax removed and every
// read of an import binding redirected through its reference.
func (ug *unitGen) writeBody(buf *bytes.Buffer) {
	src := ug.unit.Source

	splices := make([]splice, 0, len(src.Edits)+len(src.References))
	for _, e := range src.Edits {
		splices = append(splices, splice{start: e.Start, end: e.End, text: e.Text})
	}

	for _, r := range src.References {
		expr, ok := ug.bindings[r.Name]
		if !ok {
			continue
		}

		switch r.Form {
		case importmodel.RefCallee:
			expr = "(0, " + expr + ")"
		case importmodel.RefShorthand:
			expr = r.Name + ": " + expr
		}

		splices = append(splices, splice{start: r.Start, end: r.End, text: expr})
	}

	sort.SliceStable(splices, func(i, j int) bool { return splices[i].start < splices[j].start })

	pos := 0

	for _, s := range splices {
		if s.start < pos {
			continue
		}

		buf.Write(src.Text[pos:s.start])
		buf.WriteString(s.text)
		pos = s.end
	}

	buf.Write(src.Text[pos:])

	if buf.Len() > 0 && buf.Bytes()[buf.Len()-1] != '\n' {
		buf.WriteByte('\n')
	}
}
