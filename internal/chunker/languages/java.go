package languages

import (
	"github.com/smacker/go-tree-sitter/java"

	"ragchat/internal/chunker"
)

// RegisterJava chunks by top-level type. Methods stay inside their class.
func RegisterJava(r *chunker.Registry) {
	r.Register(&chunker.Grammar{
		Name:     "java",
		Language: java.GetLanguage(),
		Query: `
			(class_declaration name: (identifier) @name) @chunk
			(interface_declaration name: (identifier) @name) @chunk
			(enum_declaration name: (identifier) @name) @chunk
			(record_declaration name: (identifier) @name) @chunk
		`,
		Extensions: []string{"java"},
	})
}
