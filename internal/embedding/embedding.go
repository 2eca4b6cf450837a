package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

// Error reports an embedding service failure. An upload that hits one is
// aborted without touching the active index.
type Error struct {
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("embedding service: %v", e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// NewEmbedder builds an embedder for the configured provider.
func NewEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	switch llmConfig.Provider {
	case "ollama":
		llm, err := ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
		if err != nil {
			return nil, err
		}
		return embeddings.NewEmbedder(llm)
	default:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithEmbeddingModel(llmConfig.Model),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, err
		}
		return embeddings.NewEmbedder(llm)
	}
}

// EmbedPassages computes one embedding vector per passage. A nil or
// empty input yields nil without calling the service.
func EmbedPassages(ctx context.Context, embedder embeddings.Embedder, passages []models.Passage) ([]models.EmbeddedPassage, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}

	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, &Error{Err: err}
	}
	if len(vectors) != len(passages) {
		return nil, &Error{Err: fmt.Errorf("got %d vectors for %d passages", len(vectors), len(passages))}
	}

	embedded := make([]models.EmbeddedPassage, len(passages))
	for i, p := range passages {
		embedded[i] = models.EmbeddedPassage{Passage: p, Embedding: vectors[i]}
	}
	return embedded, nil
}

// EmbedQuery embeds a single query string.
func EmbedQuery(ctx context.Context, embedder embeddings.Embedder, query string) ([]float32, error) {
	vector, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, &Error{Err: err}
	}
	return vector, nil
}
