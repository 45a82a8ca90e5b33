package jsparse

import (
	"sync"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
	"github.com/alexaandru/go-sitter-forest/javascript"
)

var (
	languageOnce sync.Once
	language     *sitter.Language
)

// Language returns the tree-sitter JavaScript grammar.
func Language() *sitter.Language {
	languageOnce.Do(func() {
		language = sitter.NewLanguage(javascript.GetLanguage())
	})

	return language
}
