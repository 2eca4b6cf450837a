package index

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"document-qa/internal/helper"
	"document-qa/internal/models"
)

const (
	collectionName = "passages"
	compress       = false

	metaSource = "source"
	metaPage   = "page"
	metaChunk  = "chunk"
)

// Index is a similarity-searchable store of passage embeddings scoped to
// one uploaded document, persisted at its own directory. Indexes are
// never reused across uploads.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	dir        string
}

// Build materializes a fresh index at dir from already-embedded
// passages. An empty passage sequence is legal and yields an index that
// always returns zero results.
func Build(ctx context.Context, dir string, embedded []models.EmbeddedPassage) (*Index, error) {
	if err := helper.CreateFolder(dir); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	ix, err := Open(dir)
	if err != nil {
		return nil, err
	}

	if len(embedded) == 0 {
		log.Info().Str("dir", dir).Msg("Built empty index")
		return ix, nil
	}

	docs := make([]chromem.Document, len(embedded))
	for i, ep := range embedded {
		docs[i] = chromem.Document{
			ID:      fmt.Sprintf("%s-p%d-c%d", ep.SourceID, ep.PageNumber, ep.ChunkID),
			Content: ep.Text,
			Metadata: map[string]string{
				metaSource: ep.SourceID,
				metaPage:   strconv.Itoa(ep.PageNumber),
				metaChunk:  strconv.Itoa(ep.ChunkID),
			},
			Embedding: ep.Embedding,
		}
	}

	if err := ix.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents: %w", err)
	}

	log.Info().Str("dir", dir).Int("passages", len(docs)).Msg("Built index")
	return ix, nil
}

// Open loads the index persisted at dir, or an empty one if the
// directory holds no collection yet.
func Open(dir string) (*Index, error) {
	db, err := chromem.NewPersistentDB(dir, compress)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	c, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	return &Index{db: db, collection: c, dir: dir}, nil
}

// Search returns up to k passages nearest to the query embedding, most
// similar first. An empty index returns zero results.
func (ix *Index) Search(ctx context.Context, queryEmbedding []float32, k int) ([]models.Passage, error) {
	if count := ix.collection.Count(); k > count {
		k = count
	}
	if k <= 0 {
		return nil, nil
	}

	results, err := ix.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: queryEmbedding,
		NResults:       k,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	passages := make([]models.Passage, 0, len(results))
	for _, res := range results {
		page, _ := strconv.Atoi(res.Metadata[metaPage])
		chunk, _ := strconv.Atoi(res.Metadata[metaChunk])
		passages = append(passages, models.Passage{
			Text:       res.Content,
			PageNumber: page,
			SourceID:   res.Metadata[metaSource],
			ChunkID:    chunk,
		})
	}
	return passages, nil
}

// Len is the number of passages stored.
func (ix *Index) Len() int { return ix.collection.Count() }

// Dir is the storage location of this index.
func (ix *Index) Dir() string { return ix.dir }
