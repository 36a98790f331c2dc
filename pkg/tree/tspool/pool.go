// Package tspool wraps a pooled tree-sitter C parser. It centralizes
// parser pooling to reduce allocation overhead via sync.Pool, matching
// the teacher's per-language pooling pattern narrowed to the single
// grammar this engine supports.
//
// Thread-safety: a parser returned by Get is NOT safe for concurrent
// use. Each goroutine driving an independent file's Transform must Get
// its own parser, or use the Parse helper which does this for you.
package tspool

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
)

// MaxTreeDepth is a depth limit for recursive tree walks. No walk in
// this module consults it; tree wrapping and Find recurse without a
// depth bound.
const MaxTreeDepth = 1000

var (
	cLang    *sitter.Language
	langOnce sync.Once
)

func initLanguage() {
	langOnce.Do(func() {
		cLang = c.GetLanguage()
	})
}

// Language returns the tree-sitter C grammar.
func Language() *sitter.Language {
	initLanguage()
	return cLang
}

var parserPool sync.Pool

// Get returns a pooled parser configured for C. Not safe for concurrent
// use; return it with Put when done.
func Get() *sitter.Parser {
	if p := parserPool.Get(); p != nil {
		if parser, ok := p.(*sitter.Parser); ok {
			return parser
		}
	}

	initLanguage()
	parser := sitter.NewParser()
	parser.SetLanguage(cLang)
	return parser
}

// Put returns a parser to the pool.
func Put(parser *sitter.Parser) {
	if parser == nil {
		return
	}
	parserPool.Put(parser)
}

// Parse parses source using a pooled parser. Caller must call
// tree.Close() to free the underlying tree-sitter resources. The
// parser itself is returned to the pool automatically.
func Parse(ctx context.Context, source []byte) (*sitter.Tree, error) {
	parser := Get()
	defer Put(parser)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("tspool: parse failed: %w", err)
	}
	return tree, nil
}

// GetNodeText extracts the text a tree-sitter node spans.
func GetNodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return node.Content(source)
}
