package languages

import (
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"

	"ragchat/internal/chunker"
)

// RegisterC chunks by function, struct, enum and typedef.
func RegisterC(r *chunker.Registry) {
	r.Register(&chunker.Grammar{
		Name:     "c",
		Language: c.GetLanguage(),
		Query: `
			(function_definition declarator: (function_declarator declarator: (identifier) @name)) @chunk
			(function_definition declarator: (pointer_declarator declarator: (function_declarator declarator: (identifier) @name))) @chunk
			(struct_specifier name: (type_identifier) @name body: (field_declaration_list)) @chunk
			(enum_specifier name: (type_identifier) @name body: (enumerator_list)) @chunk
			(type_definition declarator: (type_identifier) @name) @chunk
		`,
		Extensions: []string{"c", "h"},
	})
}

// RegisterCPP chunks by function, class, struct and template.
func RegisterCPP(r *chunker.Registry) {
	r.Register(&chunker.Grammar{
		Name:     "cpp",
		Language: cpp.GetLanguage(),
		Query: `
			(function_definition declarator: (function_declarator declarator: (_) @name)) @chunk
			(class_specifier name: (type_identifier) @name body: (field_declaration_list)) @chunk
			(struct_specifier name: (type_identifier) @name body: (field_declaration_list)) @chunk
			(template_declaration) @chunk
		`,
		Extensions: []string{"cpp", "cc", "cxx", "hpp", "hh", "hxx"},
	})
}
