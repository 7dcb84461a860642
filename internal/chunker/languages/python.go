package languages

import (
	"github.com/smacker/go-tree-sitter/python"

	"ragchat/internal/chunker"
)

// RegisterPython chunks modules by top-level function and class. Decorators
// stay with the definition they decorate.
func RegisterPython(r *chunker.Registry) {
	r.Register(&chunker.Grammar{
		Name:     "python",
		Language: python.GetLanguage(),
		Query: `
			(decorated_definition definition: (function_definition name: (identifier) @name)) @chunk
			(decorated_definition definition: (class_definition name: (identifier) @name)) @chunk
			(function_definition name: (identifier) @name) @chunk
			(class_definition name: (identifier) @name) @chunk
		`,
		Extensions: []string{"py", "pyi"},
	})
}
