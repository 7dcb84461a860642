package domain

// Chunk is one unit of retrievable text.
type Chunk struct {
	Content    string
	SourceFile string
	// Position is an optional structural tag, e.g. "abstract", "section" or
	// "function_declaration:Handle".
	Position string
}

// Metadata returns the chunk's provenance as a flat map.
func (c Chunk) Metadata() map[string]string {
	m := map[string]string{"source_file": c.SourceFile}
	if c.Position != "" {
		m["position"] = c.Position
	}
	return m
}

// Passage is a chunk returned by retrieval together with its relevance score.
// Results are ordered by descending Score.
type Passage struct {
	Chunk
	Score      float64
	Collection string
}

// PendingUpload is one-shot inline context waiting to be merged into the
// next conversation turn.
type PendingUpload struct {
	Contents       string `json:"contents"`
	SourceFilename string `json:"source_filename"`
}
