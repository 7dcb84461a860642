// Package languages registers the tree-sitter grammars used for
// definition-aligned chunking of source code.
package languages

import "ragchat/internal/chunker"

// NewRegistry returns a registry with every supported grammar.
func NewRegistry() *chunker.Registry {
	r := chunker.NewRegistry()
	RegisterGo(r)
	RegisterPython(r)
	RegisterJavaScript(r)
	RegisterTypeScript(r)
	RegisterC(r)
	RegisterCPP(r)
	RegisterJava(r)
	RegisterRust(r)
	return r
}
