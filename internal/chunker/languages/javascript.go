package languages

import (
	"github.com/smacker/go-tree-sitter/javascript"

	"ragchat/internal/chunker"
)

// RegisterJavaScript chunks by function, class and arrow-function binding.
// Exported forms capture the export keyword too.
func RegisterJavaScript(r *chunker.Registry) {
	r.Register(&chunker.Grammar{
		Name:     "javascript",
		Language: javascript.GetLanguage(),
		Query: `
			(export_statement (function_declaration name: (identifier) @name)) @chunk
			(export_statement (class_declaration name: (identifier) @name)) @chunk
			(export_statement (lexical_declaration (variable_declarator name: (identifier) @name value: (arrow_function)))) @chunk
			(function_declaration name: (identifier) @name) @chunk
			(generator_function_declaration name: (identifier) @name) @chunk
			(class_declaration name: (identifier) @name) @chunk
			(lexical_declaration (variable_declarator name: (identifier) @name value: (arrow_function))) @chunk
		`,
		Extensions: []string{"js", "jsx", "mjs", "cjs"},
	})
}
