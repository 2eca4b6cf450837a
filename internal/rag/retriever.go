package rag

import (
	"context"

	"github.com/rs/zerolog/log"

	"document-qa/internal/embedding"
	"document-qa/internal/index"
	"document-qa/internal/llmservice"
	"document-qa/internal/models"
)

// retrieve fetches the top-K passages by embedding similarity, then
// drops the ones the judge model deems irrelevant to the query. The
// filter is a quality gate, not a re-ranking: survivors keep their
// similarity order. A judge failure aborts the query rather than
// falling back to unfiltered results.
func (s *Service) retrieve(ctx context.Context, ix *index.Index, query string) ([]models.Passage, error) {
	queryEmbedding, err := embedding.EmbedQuery(ctx, s.embedder, query)
	if err != nil {
		return nil, err
	}

	candidates, err := ix.Search(ctx, queryEmbedding, s.cfg.RAG.TopK)
	if err != nil {
		return nil, err
	}

	relevant := make([]models.Passage, 0, len(candidates))
	for _, p := range candidates {
		ok, err := llmservice.JudgeRelevance(ctx, s.model, p.Text, query)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Debug().Str("source", p.SourceID).Int("page", p.PageNumber).Msg("Judge dropped passage")
			continue
		}
		relevant = append(relevant, p)
	}
	return relevant, nil
}
