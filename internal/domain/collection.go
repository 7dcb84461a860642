package domain

// Visibility determines which namespace a collection lives in.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// Collection describes a persisted, embedding-model-bound similarity index.
type Collection struct {
	Name           string
	HashedName     string
	EmbeddingModel string
	Visibility     Visibility
	// Owner is the user namespace of a private collection, empty for public
	// ones.
	Owner string
	// CreatedBy is the user who created a public collection, if known.
	CreatedBy string
}

// IsPublic reports whether the collection lives in the common namespace.
func (c Collection) IsPublic() bool {
	return c.Visibility == VisibilityPublic
}
