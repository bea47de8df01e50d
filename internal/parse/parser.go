package parse

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Parser parses source files with one grammar. Not safe for concurrent
// use; create one per worker.
type Parser struct {
	inner *sitter.Parser
}

// NewParser creates a parser bound to the named grammar.
func NewParser(loader *Loader, grammar string) (*Parser, error) {
	lang, err := loader.Load(grammar)
	if err != nil {
		return nil, err
	}
	p := sitter.NewParser()
	if err := p.SetLanguage(lang); err != nil {
		p.Close()
		return nil, fmt.Errorf("setting %s language: %w", grammar, err)
	}
	return &Parser{inner: p}, nil
}

// Parse parses source into a syntax tree. A tree is returned even when
// the source has syntax errors; callers check RootNode().HasError()
// when they care.
func (p *Parser) Parse(source []byte) (*Tree, error) {
	tree := p.inner.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("parse produced no tree")
	}
	return &Tree{inner: tree, source: source}, nil
}

func (p *Parser) Close() {
	p.inner.Close()
}
