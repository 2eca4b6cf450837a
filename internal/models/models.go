package models

// PageUnit is the text of a single document page, tagged with its
// 1-indexed page number and the source identifier of the upload.
type PageUnit struct {
	Text       string
	PageNumber int
	SourceID   string
}

// Passage is a chunk of page text carrying the citation metadata of the
// page it was cut from. One page may yield many passages.
type Passage struct {
	Text       string
	PageNumber int
	SourceID   string
	ChunkID    int
}

// EmbeddedPassage pairs a passage with its embedding vector.
type EmbeddedPassage struct {
	Passage
	Embedding []float32
}
