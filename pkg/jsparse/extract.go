package jsparse

import (
	"strconv"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/esmlink/pkg/diag"
	"github.com/Sumatoshi-tech/esmlink/pkg/importmodel"
)

const defaultLocalBase = "__default"

type extractor struct {
	src          []byte
	imports      []importmodel.ImportSpec
	decls        []importmodel.ExportDecl
	edits        []importmodel.Edit
	refs         []importmodel.Reference
	identifiers  map[string]struct{}
	topKinds     map[string]importmodel.ExportKind
	bindings     map[string]bool
	defaultLocal string
}

func newExtractor(src []byte) *extractor {
	return &extractor{
		src:         src,
		identifiers: make(map[string]struct{}),
		topKinds:    make(map[string]importmodel.ExportKind),
		bindings:    make(map[string]bool),
	}
}

func (ex *extractor) result() *importmodel.Parsed {
	return &importmodel.Parsed{
		Text:         ex.src,
		Imports:      ex.imports,
		Decls:        ex.decls,
		References:   ex.refs,
		Edits:        ex.edits,
		Identifiers:  ex.identifiers,
		DefaultLocal: ex.defaultLocal,
	}
}

func (ex *extractor) run(root sitter.Node) error {
	ex.collectIdentifiers(root)
	ex.collectTopLevelKinds(root)

	for i := range root.NamedChildCount() {
		stmt := root.NamedChild(i)

		var err error

		switch stmt.Type() {
		case nodeImportStatement:
			err = ex.importStatement(stmt)
		case nodeExportStatement:
			err = ex.exportStatement(stmt)
		}

		if err != nil {
			return err
		}
	}

	w := &refWalker{ex: ex}
	w.program(root)

	return nil
}

func (ex *extractor) collectIdentifiers(n sitter.Node) {
	switch n.Type() {
	case nodeIdentifier, nodeShorthandProperty, nodeShorthandPattern:
		ex.identifiers[text(n, ex.src)] = struct{}{}

		return
	}

	for i := range n.NamedChildCount() {
		ex.collectIdentifiers(n.NamedChild(i))
	}
}

func (ex *extractor) collectTopLevelKinds(root sitter.Node) {
	for i := range root.NamedChildCount() {
		stmt := root.NamedChild(i)
		if stmt.Type() == nodeExportStatement {
			stmt = stmt.ChildByFieldName(fieldDeclaration)
			if stmt.IsNull() {
				continue
			}
		}

		names, kind := declaredNames(stmt, ex.src)
		for _, name := range names {
			ex.topKinds[name] = kind
		}
	}
}

func (ex *extractor) removeStatement(stmt sitter.Node) {
	ex.edits = append(ex.edits, importmodel.Edit{
		Start: start(stmt),
		End:   end(stmt),
		Text:  blankLines(text(stmt, ex.src)),
	})
}

func (ex *extractor) addBinding(name string, stmt sitter.Node) error {
	if ex.bindings[name] {
		return &diag.Error{
			Kind: diag.ErrParse,
			Line: line(stmt),
			Msg:  "duplicate import binding " + strconv.Quote(name),
		}
	}

	ex.bindings[name] = true

	return nil
}

func (ex *extractor) importStatement(stmt sitter.Node) error {
	source := sourceOf(stmt)
	if source.IsNull() {
		return &diag.Error{Kind: diag.ErrParse, Line: line(stmt), Msg: "import without module specifier"}
	}

	specifier := stringValue(source, ex.src)
	ln := line(stmt)
	clause := childOfType(stmt, nodeImportClause)

	ex.removeStatement(stmt)

	if clause.IsNull() {
		ex.imports = append(ex.imports, importmodel.ImportSpec{
			Specifier: specifier,
			Kind:      importmodel.ImportSideEffect,
			Line:      ln,
		})

		return nil
	}

	for i := range clause.NamedChildCount() {
		part := clause.NamedChild(i)

		switch part.Type() {
		case nodeIdentifier:
			local := text(part, ex.src)
			if err := ex.addBinding(local, stmt); err != nil {
				return err
			}

			ex.imports = append(ex.imports, importmodel.ImportSpec{
				Specifier: specifier,
				Kind:      importmodel.ImportDefault,
				LocalName: local,
				Line:      ln,
			})

		case nodeNamespaceImport:
			local := text(childOfType(part, nodeIdentifier), ex.src)
			if err := ex.addBinding(local, stmt); err != nil {
				return err
			}

			ex.imports = append(ex.imports, importmodel.ImportSpec{
				Specifier: specifier,
				Kind:      importmodel.ImportNamespace,
				LocalName: local,
				Line:      ln,
			})

		case nodeNamedImports:
			spec := importmodel.ImportSpec{Specifier: specifier, Kind: importmodel.ImportNamed, Line: ln}

			for j := range part.NamedChildCount() {
				item := part.NamedChild(j)
				if item.Type() != nodeImportSpecifier {
					continue
				}

				imported, local := specifierNames(item, ex.src)
				if err := ex.addBinding(local, stmt); err != nil {
					return err
				}

				spec.Names = append(spec.Names, importmodel.NamedBinding{Imported: imported, Local: local})
			}

			ex.imports = append(ex.imports, spec)
		}
	}

	return nil
}

// specifierNames returns (name, alias-or-name) of an import or export specifier.
func specifierNames(item sitter.Node, src []byte) (string, string) {
	nameNode := item.ChildByFieldName(fieldName)
	if nameNode.IsNull() {
		nameNode = item.NamedChild(0)
	}

	name := nameValue(nameNode, src)

	alias := item.ChildByFieldName(fieldAlias)
	if alias.IsNull() {
		return name, name
	}

	return name, nameValue(alias, src)
}

func (ex *extractor) exportStatement(stmt sitter.Node) error {
	ln := line(stmt)
	isDefault := hasToken(stmt, nodeDefault)

	if decl := stmt.ChildByFieldName(fieldDeclaration); !decl.IsNull() {
		ex.edits = append(ex.edits, importmodel.Edit{Start: start(stmt), End: start(decl)})

		names, kind := declaredNames(decl, ex.src)
		if isDefault && len(names) > 0 {
			ex.decls = append(ex.decls, localDecl(importmodel.DefaultSlot, names[0], kind, ln))

			return nil
		}

		for _, name := range names {
			ex.decls = append(ex.decls, localDecl(name, name, kind, ln))
		}

		return nil
	}

	if value := stmt.ChildByFieldName(fieldValue); !value.IsNull() {
		ex.defaultLocal = ex.uniqueName(defaultLocalBase)
		ex.edits = append(ex.edits,
			importmodel.Edit{Start: start(stmt), End: start(value), Text: "var " + ex.defaultLocal + " = "},
			importmodel.Edit{Start: end(value), End: end(stmt), Text: ";"},
		)
		ex.decls = append(ex.decls, localDecl(importmodel.DefaultSlot, ex.defaultLocal, valueKind(value.Type()), ln))

		return nil
	}

	ex.removeStatement(stmt)

	clause := childOfType(stmt, nodeExportClause)

	source := sourceOf(stmt)
	if source.IsNull() {
		for i := range clause.NamedChildCount() {
			item := clause.NamedChild(i)
			if item.Type() != nodeExportSpecifier {
				continue
			}

			local, exported := specifierNames(item, ex.src)

			kind, ok := ex.topKinds[local]
			if !ok {
				kind = importmodel.ExportValue
			}

			ex.decls = append(ex.decls, localDecl(exported, local, kind, ln))
		}

		return nil
	}

	spec := importmodel.ImportSpec{
		Specifier: stringValue(source, ex.src),
		Kind:      importmodel.ImportReExport,
		Line:      ln,
	}
	index := len(ex.imports)

	switch {
	case !childOfType(stmt, nodeNamespaceExport).IsNull():
		nsNode := childOfType(stmt, nodeNamespaceExport)
		ns := nameValue(nsNode.NamedChild(0), ex.src)
		spec.Names = append(spec.Names, importmodel.NamedBinding{Imported: keywordStar, Local: ns})
		ex.decls = append(ex.decls, reExportDecl(ns, keywordStar, importmodel.ExportReExport, index, ln))

	case !clause.IsNull():
		for i := range clause.NamedChildCount() {
			item := clause.NamedChild(i)
			if item.Type() != nodeExportSpecifier {
				continue
			}

			remote, exported := specifierNames(item, ex.src)
			spec.Names = append(spec.Names, importmodel.NamedBinding{Imported: remote, Local: exported})
			ex.decls = append(ex.decls, reExportDecl(exported, remote, importmodel.ExportReExport, index, ln))
		}

	default:
		ex.decls = append(ex.decls, reExportDecl("", keywordStar, importmodel.ExportReExportAll, index, ln))
	}

	ex.imports = append(ex.imports, spec)

	return nil
}

func localDecl(name, local string, kind importmodel.ExportKind, ln int) importmodel.ExportDecl {
	return importmodel.ExportDecl{Name: name, Local: local, Kind: kind, ImportIndex: -1, Line: ln}
}

func reExportDecl(name, remote string, kind importmodel.ExportKind, index, ln int) importmodel.ExportDecl {
	return importmodel.ExportDecl{Name: name, Local: remote, Kind: kind, ImportIndex: index, Line: ln}
}

func valueKind(typ string) importmodel.ExportKind {
	switch typ {
	case nodeClass:
		return importmodel.ExportClass
	case nodeFunctionExpression, nodeFunction, nodeGeneratorFunction, nodeArrowFunction:
		return importmodel.ExportFunction
	default:
		return importmodel.ExportValue
	}
}

// declaredNames returns the names bound by a declaration statement.
func declaredNames(decl sitter.Node, src []byte) ([]string, importmodel.ExportKind) {
	switch decl.Type() {
	case nodeClassDeclaration:
		return []string{text(decl.ChildByFieldName(fieldName), src)}, importmodel.ExportClass
	case nodeFunctionDeclaration, nodeGeneratorDeclaration:
		return []string{text(decl.ChildByFieldName(fieldName), src)}, importmodel.ExportFunction
	case nodeLexicalDeclaration, nodeVariableDeclaration:
		var names []string

		for i := range decl.NamedChildCount() {
			declarator := decl.NamedChild(i)
			if declarator.Type() != nodeVariableDeclarator {
				continue
			}

			names = append(names, patternNames(declarator.ChildByFieldName(fieldName), src)...)
		}

		return names, importmodel.ExportValue
	default:
		return nil, importmodel.ExportValue
	}
}

// patternNames returns the identifiers bound by a binding pattern.
func patternNames(n sitter.Node, src []byte) []string {
	if n.IsNull() {
		return nil
	}

	switch n.Type() {
	case nodeIdentifier, nodeShorthandPattern:
		return []string{text(n, src)}
	case nodePairPattern:
		return patternNames(n.ChildByFieldName(fieldValue), src)
	case nodeAssignmentPattern, nodeObjectAssignPattern:
		return patternNames(n.ChildByFieldName(fieldLeft), src)
	case nodeObjectPattern, nodeArrayPattern, nodeRestPattern:
		var names []string

		for i := range n.NamedChildCount() {
			names = append(names, patternNames(n.NamedChild(i), src)...)
		}

		return names
	default:
		return nil
	}
}

func (ex *extractor) uniqueName(base string) string {
	name := base

	for i := 1; ; i++ {
		if _, taken := ex.identifiers[name]; !taken {
			ex.identifiers[name] = struct{}{}

			return name
		}

		name = base + "_" + strconv.Itoa(i)
	}
}
