package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func javaParser(t *testing.T) *Parser {
	t.Helper()
	loader := NewLoader()
	if !loader.Available("java") {
		t.Skipf("grammar library %s not installed", grammarLibName("java"))
	}
	p, err := NewParser(loader, "java")
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestLoaderRejectsBadName(t *testing.T) {
	loader := NewLoader()
	_, err := loader.Load("Java; rm -rf /")
	assert.ErrorIs(t, err, ErrBadGrammarName)
}

func TestLoaderMissingGrammar(t *testing.T) {
	loader := NewLoader(t.TempDir())
	_, err := loader.Load("nosuchlang")
	assert.ErrorIs(t, err, ErrGrammarNotFound)
}

func TestParseJavaClass(t *testing.T) {
	p := javaParser(t)

	tree, err := p.Parse([]byte(`
package com.acme;

public class Greeter {
    public String greet(String name) {
        return "hello " + name;
    }
}
`))
	require.NoError(t, err)
	defer tree.Close()

	root := tree.RootNode()
	assert.Equal(t, "program", root.Type())
	assert.False(t, root.HasError())

	var classNode *Node
	for i := uint(0); i < root.NamedChildCount(); i++ {
		if c := root.NamedChild(i); c.Type() == "class_declaration" {
			classNode = c
		}
	}
	require.NotNil(t, classNode)
	assert.Equal(t, "Greeter", classNode.ChildByFieldName("name").Content())
}

func TestParseToleratesSyntaxErrors(t *testing.T) {
	p := javaParser(t)

	tree, err := p.Parse([]byte(`public class Broken { void m( {}`))
	require.NoError(t, err)
	defer tree.Close()

	assert.True(t, tree.RootNode().HasError())
}
