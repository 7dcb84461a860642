package languages

import (
	"github.com/smacker/go-tree-sitter/golang"

	"ragchat/internal/chunker"
)

// RegisterGo chunks by function, method, type and top-level const/var block.
func RegisterGo(r *chunker.Registry) {
	r.Register(&chunker.Grammar{
		Name:     "go",
		Language: golang.GetLanguage(),
		Query: `
			(function_declaration name: (identifier) @name) @chunk
			(method_declaration name: (field_identifier) @name) @chunk
			(type_declaration (type_spec name: (type_identifier) @name)) @chunk
			(const_declaration) @chunk
			(var_declaration) @chunk
		`,
		Extensions: []string{"go"},
	})
}
