package chunker

import (
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"

	"document-qa/internal/models"
)

// separators are tried largest-boundary first: paragraph breaks, line
// breaks, sentence-ending periods, then spaces.
var separators = []string{"\n\n", "\n", ".", " "}

// Chunker splits page text into overlapping passages bounded by
// chunkSize characters.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

func New(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = models.DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = models.DefaultChunkOverlap
	}
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators(separators),
		),
	}
}

// Split chunks each page independently, never merging content across
// pages. Every passage inherits the page number and source id of its
// page verbatim; order within and across pages follows the input.
func (c *Chunker) Split(pages []models.PageUnit) ([]models.Passage, error) {
	var passages []models.Passage
	for _, page := range pages {
		texts, err := c.splitter.SplitText(page.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to split page %d of %s: %w", page.PageNumber, page.SourceID, err)
		}
		for i, text := range texts {
			if text == "" {
				continue
			}
			passages = append(passages, models.Passage{
				Text:       text,
				PageNumber: page.PageNumber,
				SourceID:   page.SourceID,
				ChunkID:    i + 1,
			})
		}
	}
	return passages, nil
}
