package jsparse

import (
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Grammar node kinds used by the extractor.
const (
	nodeImportStatement      = "import_statement"
	nodeImportClause         = "import_clause"
	nodeNamespaceImport      = "namespace_import"
	nodeNamedImports         = "named_imports"
	nodeImportSpecifier      = "import_specifier"
	nodeExportStatement      = "export_statement"
	nodeExportClause         = "export_clause"
	nodeExportSpecifier      = "export_specifier"
	nodeNamespaceExport      = "namespace_export"
	nodeIdentifier           = "identifier"
	nodeString               = "string"
	nodeStringFragment       = "string_fragment"
	nodeError                = "ERROR"
	nodeDefault              = "default"
	nodeClassDeclaration     = "class_declaration"
	nodeClass                = "class"
	nodeFunctionDeclaration  = "function_declaration"
	nodeGeneratorDeclaration = "generator_function_declaration"
	nodeFunctionExpression   = "function_expression"
	nodeFunction             = "function"
	nodeGeneratorFunction    = "generator_function"
	nodeArrowFunction        = "arrow_function"
	nodeMethodDefinition     = "method_definition"
	nodeLexicalDeclaration   = "lexical_declaration"
	nodeVariableDeclaration  = "variable_declaration"
	nodeVariableDeclarator   = "variable_declarator"
	nodeStatementBlock       = "statement_block"
	nodeForStatement         = "for_statement"
	nodeForInStatement       = "for_in_statement"
	nodeCatchClause          = "catch_clause"
	nodeCallExpression       = "call_expression"
	nodeShorthandProperty    = "shorthand_property_identifier"
	nodeShorthandPattern     = "shorthand_property_identifier_pattern"
	nodeObjectPattern        = "object_pattern"
	nodeArrayPattern         = "array_pattern"
	nodePairPattern          = "pair_pattern"
	nodeAssignmentPattern    = "assignment_pattern"
	nodeObjectAssignPattern  = "object_assignment_pattern"
	nodeRestPattern          = "rest_pattern"
	nodeSwitchBody           = "switch_body"
	nodeClassBody            = "class_body"
	nodeSwitchCase           = "switch_case"
	nodeSwitchDefault        = "switch_default"
	nodeStaticBlock          = "class_static_block"
	fieldSource              = "source"
	fieldDeclaration         = "declaration"
	fieldValue               = "value"
	fieldName                = "name"
	fieldAlias               = "alias"
	fieldParameters          = "parameters"
	fieldParameter           = "parameter"
	fieldBody                = "body"
	fieldFunction            = "function"
	fieldLeft                = "left"
	fieldInitializer         = "initializer"
	keywordStar              = "*"
)

func text(n sitter.Node, src []byte) string {
	return n.Content(src)
}

func line(n sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func start(n sitter.Node) int {
	return int(n.StartByte())
}

func end(n sitter.Node) int {
	return int(n.EndByte())
}

// stringValue returns the contents of a string literal without its quotes.
func stringValue(n sitter.Node, src []byte) string {
	for i := range n.NamedChildCount() {
		child := n.NamedChild(i)
		if child.Type() == nodeStringFragment {
			return text(child, src)
		}
	}

	raw := text(n, src)
	if len(raw) >= 2 {
		return raw[1 : len(raw)-1]
	}

	return raw
}

// nameValue reads an identifier or a string module export name.
func nameValue(n sitter.Node, src []byte) string {
	if n.Type() == nodeString {
		return stringValue(n, src)
	}

	return text(n, src)
}

func childOfType(n sitter.Node, typ string) sitter.Node {
	for i := range n.NamedChildCount() {
		child := n.NamedChild(i)
		if child.Type() == typ {
			return child
		}
	}

	return sitter.Node{}
}

func hasToken(n sitter.Node, typ string) bool {
	for i := range n.ChildCount() {
		if n.Child(i).Type() == typ {
			return true
		}
	}

	return false
}

// sourceOf returns the module specifier string node of an import or export statement.
func sourceOf(n sitter.Node) sitter.Node {
	if src := n.ChildByFieldName(fieldSource); !src.IsNull() {
		return src
	}

	return childOfType(n, nodeString)
}

func blankLines(s string) string {
	return strings.Repeat("\n", strings.Count(s, "\n"))
}

func isFunctionNode(typ string) bool {
	switch typ {
	case nodeFunctionDeclaration, nodeGeneratorDeclaration, nodeFunctionExpression,
		nodeFunction, nodeGeneratorFunction, nodeArrowFunction, nodeMethodDefinition:
		return true
	default:
		return false
	}
}
