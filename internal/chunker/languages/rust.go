package languages

import (
	"github.com/smacker/go-tree-sitter/rust"

	"ragchat/internal/chunker"
)

// RegisterRust chunks by item: fn, struct, enum, trait, impl and mod.
func RegisterRust(r *chunker.Registry) {
	r.Register(&chunker.Grammar{
		Name:     "rust",
		Language: rust.GetLanguage(),
		Query: `
			(function_item name: (identifier) @name) @chunk
			(struct_item name: (type_identifier) @name) @chunk
			(enum_item name: (type_identifier) @name) @chunk
			(trait_item name: (type_identifier) @name) @chunk
			(impl_item type: (_) @name) @chunk
			(mod_item name: (identifier) @name) @chunk
		`,
		Extensions: []string{"rs"},
	})
}
