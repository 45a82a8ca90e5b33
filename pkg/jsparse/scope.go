package jsparse

import (
	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/esmlink/pkg/importmodel"
)

type scope map[string]struct{}

// refWalker finds uses of import bindings that are not shadowed by a local
// declaration.
type refWalker struct {
	ex     *extractor
	scopes []scope
}

func (w *refWalker) program(root sitter.Node) {
	for i := range root.NamedChildCount() {
		stmt := root.NamedChild(i)

		switch stmt.Type() {
		case nodeImportStatement:
			continue
		case nodeExportStatement:
			if decl := stmt.ChildByFieldName(fieldDeclaration); !decl.IsNull() {
				w.walk(decl)
			} else if value := stmt.ChildByFieldName(fieldValue); !value.IsNull() {
				w.walk(value)
			}
		default:
			w.walk(stmt)
		}
	}
}

func (w *refWalker) push(s scope) { w.scopes = append(w.scopes, s) }

func (w *refWalker) pop() { w.scopes = w.scopes[:len(w.scopes)-1] }

func (w *refWalker) shadowed(name string) bool {
	for i := len(w.scopes) - 1; i >= 0; i-- {
		if _, ok := w.scopes[i][name]; ok {
			return true
		}
	}

	return false
}

func (w *refWalker) reference(n sitter.Node, form importmodel.RefForm) {
	name := text(n, w.ex.src)
	if !w.ex.bindings[name] || w.shadowed(name) {
		return
	}

	w.ex.refs = append(w.ex.refs, importmodel.Reference{
		Name:  name,
		Start: start(n),
		End:   end(n),
		Form:  form,
	})
}

func (w *refWalker) walk(n sitter.Node) {
	typ := n.Type()

	switch {
	case typ == nodeIdentifier:
		w.reference(n, importmodel.RefPlain)
	case typ == nodeShorthandProperty:
		w.reference(n, importmodel.RefShorthand)
	case typ == nodeCallExpression:
		w.call(n)
	case isFunctionNode(typ):
		w.function(n)
	case typ == nodeClassDeclaration || typ == nodeClass:
		w.class(n)
	case typ == nodeStatementBlock || typ == nodeSwitchBody || typ == nodeStaticBlock:
		s := scope{}
		collectLexical(n, w.ex.src, s)
		w.push(s)
		w.children(n)
		w.pop()
	case typ == nodeForStatement || typ == nodeForInStatement:
		w.push(loopScope(n, w.ex.src))
		w.children(n)
		w.pop()
	case typ == nodeCatchClause:
		s := scope{}
		addNames(s, patternNames(n.ChildByFieldName(fieldParameter), w.ex.src))
		w.push(s)
		w.children(n)
		w.pop()
	default:
		w.children(n)
	}
}

func (w *refWalker) children(n sitter.Node) {
	for i := range n.NamedChildCount() {
		w.walk(n.NamedChild(i))
	}
}

func (w *refWalker) call(n sitter.Node) {
	fn := n.ChildByFieldName(fieldFunction)

	for i := range n.NamedChildCount() {
		child := n.NamedChild(i)
		if !fn.IsNull() && child.StartByte() == fn.StartByte() && child.Type() == nodeIdentifier {
			w.reference(child, importmodel.RefCallee)

			continue
		}

		w.walk(child)
	}
}

func (w *refWalker) class(n sitter.Node) {
	s := scope{}

	name := n.ChildByFieldName(fieldName)
	if !name.IsNull() && n.Type() == nodeClass {
		s[text(name, w.ex.src)] = struct{}{}
	}

	w.push(s)

	for i := range n.NamedChildCount() {
		child := n.NamedChild(i)
		if !name.IsNull() && child.StartByte() == name.StartByte() {
			continue
		}

		w.walk(child)
	}

	w.pop()
}

func (w *refWalker) function(n sitter.Node) {
	s := scope{}

	name := n.ChildByFieldName(fieldName)
	if !name.IsNull() && name.Type() == nodeIdentifier && n.Type() != nodeFunctionDeclaration &&
		n.Type() != nodeGeneratorDeclaration {
		s[text(name, w.ex.src)] = struct{}{}
	}

	if params := n.ChildByFieldName(fieldParameters); !params.IsNull() {
		for i := range params.NamedChildCount() {
			addNames(s, patternNames(params.NamedChild(i), w.ex.src))
		}
	}

	if param := n.ChildByFieldName(fieldParameter); !param.IsNull() {
		addNames(s, patternNames(param, w.ex.src))
	}

	body := n.ChildByFieldName(fieldBody)
	if !body.IsNull() && body.Type() == nodeStatementBlock {
		collectVars(body, w.ex.src, s)
		collectLexical(body, w.ex.src, s)
	}

	w.push(s)

	if params := n.ChildByFieldName(fieldParameters); !params.IsNull() {
		w.walk(params)
	}

	if !body.IsNull() {
		if body.Type() == nodeStatementBlock {
			w.children(body)
		} else {
			w.walk(body)
		}
	}

	w.pop()
}

func addNames(s scope, names []string) {
	for _, name := range names {
		s[name] = struct{}{}
	}
}

// collectLexical adds the block-scoped declarations directly inside block.
func collectLexical(block sitter.Node, src []byte, s scope) {
	for i := range block.NamedChildCount() {
		stmt := block.NamedChild(i)

		switch stmt.Type() {
		case nodeLexicalDeclaration, nodeClassDeclaration, nodeFunctionDeclaration, nodeGeneratorDeclaration:
			names, _ := declaredNames(stmt, src)
			addNames(s, names)
		case nodeSwitchCase, nodeSwitchDefault:
			collectLexical(stmt, src, s)
		}
	}
}

// collectVars adds every var declaration hoisted to the function owning n.
func collectVars(n sitter.Node, src []byte, s scope) {
	for i := range n.NamedChildCount() {
		child := n.NamedChild(i)
		if isFunctionNode(child.Type()) || child.Type() == nodeClassBody {
			continue
		}

		if child.Type() == nodeVariableDeclaration {
			names, _ := declaredNames(child, src)
			addNames(s, names)
		}

		collectVars(child, src, s)
	}
}

func loopScope(n sitter.Node, src []byte) scope {
	s := scope{}

	if init := n.ChildByFieldName(fieldInitializer); !init.IsNull() {
		names, _ := declaredNames(init, src)
		addNames(s, names)
	}

	if n.Type() == nodeForInStatement && (hasToken(n, "let") || hasToken(n, "const") || hasToken(n, "var")) {
		addNames(s, patternNames(n.ChildByFieldName(fieldLeft), src))
	}

	return s
}
