// Package jsparse parses ES-module JavaScript with tree-sitter and extracts
// the import, export and reference information the linker needs.
package jsparse

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/esmlink/pkg/diag"
	"github.com/Sumatoshi-tech/esmlink/pkg/importmodel"
)

var (
	errPoolType   = errors.New("unexpected parser type in pool")
	errNoRootNode = errors.New("no root node")
)

// DefaultMaxSourceSize bounds the size of a single source file.
const DefaultMaxSourceSize = 4 << 20

// Parser turns source files into importmodel.Parsed values. It is safe for
// concurrent use; tree-sitter parsers are pooled.
type Parser struct {
	pool          sync.Pool
	maxSourceSize int64
}

// Option configures a Parser.
type Option func(*Parser)

// WithMaxSourceSize rejects sources larger than size bytes. Zero disables the limit.
func WithMaxSourceSize(size int64) Option {
	return func(p *Parser) {
		p.maxSourceSize = size
	}
}

// NewParser creates a Parser for the JavaScript grammar.
func NewParser(opts ...Option) *Parser {
	lang := Language()

	parser := &Parser{maxSourceSize: DefaultMaxSourceSize}
	parser.pool = sync.Pool{
		New: func() any {
			tsParser := sitter.NewParser()
			tsParser.SetLanguage(lang)

			return tsParser
		},
	}

	for _, opt := range opts {
		opt(parser)
	}

	return parser
}

// Parse parses one module. Syntax errors are reported as diag.ErrParse with
// the line of the first error node.
func (p *Parser) Parse(ctx context.Context, filename string, content []byte) (*importmodel.Parsed, error) {
	if p.maxSourceSize > 0 && int64(len(content)) > p.maxSourceSize {
		return nil, &diag.Error{
			Kind: diag.ErrSourceTooLarge,
			File: filename,
			Msg:  fmt.Sprintf("%d bytes exceeds limit of %d", len(content), p.maxSourceSize),
		}
	}

	tsParser, ok := p.pool.Get().(*sitter.Parser)
	if !ok {
		return nil, errPoolType
	}

	defer p.pool.Put(tsParser)

	tree, err := tsParser.ParseString(ctx, nil, content)
	if err != nil {
		return nil, &diag.Error{Kind: diag.ErrParse, File: filename, Msg: err.Error()}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return nil, &diag.Error{Kind: diag.ErrParse, File: filename, Msg: errNoRootNode.Error()}
	}

	if bad, found := firstError(root); found {
		return nil, &diag.Error{
			Kind: diag.ErrParse,
			File: filename,
			Line: line(bad),
			Msg:  "syntax error near " + quoteSnippet(text(bad, content)),
		}
	}

	ex := newExtractor(content)

	err = ex.run(root)
	if err != nil {
		var de *diag.Error
		if errors.As(err, &de) {
			return nil, de.At(filename, de.Line)
		}

		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}

	return ex.result(), nil
}

func firstError(n sitter.Node) (sitter.Node, bool) {
	if n.Type() == nodeError {
		return n, true
	}

	for i := range n.NamedChildCount() {
		if bad, found := firstError(n.NamedChild(i)); found {
			return bad, true
		}
	}

	return sitter.Node{}, false
}

const snippetLimit = 24

func quoteSnippet(s string) string {
	if len(s) > snippetLimit {
		s = s[:snippetLimit] + "..."
	}

	return fmt.Sprintf("%q", s)
}
