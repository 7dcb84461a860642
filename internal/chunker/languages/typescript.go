package languages

import (
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"ragchat/internal/chunker"
)

// RegisterTypeScript extends the JavaScript patterns with interfaces, type
// aliases and enums.
func RegisterTypeScript(r *chunker.Registry) {
	r.Register(&chunker.Grammar{
		Name:     "typescript",
		Language: typescript.GetLanguage(),
		Query: `
			(export_statement (function_declaration name: (identifier) @name)) @chunk
			(export_statement (class_declaration name: (type_identifier) @name)) @chunk
			(export_statement (interface_declaration name: (type_identifier) @name)) @chunk
			(function_declaration name: (identifier) @name) @chunk
			(class_declaration name: (type_identifier) @name) @chunk
			(abstract_class_declaration name: (type_identifier) @name) @chunk
			(interface_declaration name: (type_identifier) @name) @chunk
			(type_alias_declaration name: (type_identifier) @name) @chunk
			(enum_declaration name: (identifier) @name) @chunk
			(lexical_declaration (variable_declarator name: (identifier) @name value: (arrow_function))) @chunk
		`,
		Extensions: []string{"ts", "tsx"},
	})
}
