package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/uptrace/bun"

	"document-qa/internal/chunker"
	"document-qa/internal/cleaner"
	"document-qa/internal/config"
	"document-qa/internal/embedding"
	"document-qa/internal/helper"
	"document-qa/internal/index"
	"document-qa/internal/llmservice"
	"document-qa/internal/models"
	"document-qa/internal/parser"
	"document-qa/internal/store"
)

// ErrNoIndex means a query arrived before any successful upload.
var ErrNoIndex = errors.New("no document uploaded yet")

// activeStateFile records the directory name of the active index under
// the vector dir, so the service can restore it after a restart.
const activeStateFile = "active"

var answerPrompt = prompts.NewPromptTemplate(
	models.AnswerPromptTemplate, []string{"context", "question"},
)

// Service owns the ingestion and query pipelines and the single active
// index. Uploads build isolated indexes at unique directories; the
// active reference is swapped only after a build completes, so a
// concurrent query sees either the old index or the new one, never a
// half-built one.
type Service struct {
	cfg      *config.Config
	embedder embeddings.Embedder
	model    llms.Model
	archive  *bun.DB

	active  atomic.Pointer[index.Index]
	stateMu sync.Mutex
}

// NewService wires the pipeline. archive may be nil.
func NewService(cfg *config.Config, embedder embeddings.Embedder, model llms.Model, archive *bun.DB) *Service {
	return &Service{
		cfg:      cfg,
		embedder: embedder,
		model:    model,
		archive:  archive,
	}
}

// Restore reloads the active index recorded by a previous run, if any.
func (s *Service) Restore() error {
	data, err := os.ReadFile(filepath.Join(s.cfg.RAG.VectorDir, activeStateFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	name := strings.TrimSpace(string(data))
	if name == "" {
		return nil
	}
	ix, err := index.Open(filepath.Join(s.cfg.RAG.VectorDir, name))
	if err != nil {
		return fmt.Errorf("failed to restore index %s: %w", name, err)
	}
	s.active.Store(ix)
	log.Info().Str("dir", ix.Dir()).Int("passages", ix.Len()).Msg("Restored active index")
	return nil
}

// Upload runs the ingestion pipeline on one document and, on success,
// makes the freshly built index the active one. It returns the number
// of indexed passages. Any failure aborts the upload and leaves the
// previously active index untouched.
func (s *Service) Upload(ctx context.Context, filePath string) (int, error) {
	pages, err := parser.ExtractPages(filePath)
	if err != nil {
		return 0, err
	}

	pages = cleaner.FilterPages(cleaner.NormalizePages(pages))

	passages, err := chunker.New(s.cfg.RAG.ChunkSize, s.cfg.RAG.ChunkOverlap).Split(pages)
	if err != nil {
		return 0, err
	}

	embedded, err := embedding.EmbedPassages(ctx, s.embedder, passages)
	if err != nil {
		return 0, err
	}

	dir, err := helper.NewIndexDir(s.cfg.RAG.VectorDir)
	if err != nil {
		return 0, err
	}
	ix, err := index.Build(ctx, dir, embedded)
	if err != nil {
		return 0, err
	}

	// archive failures never fail the upload
	if s.archive != nil {
		if err := store.StorePassages(ctx, s.archive, embedded); err != nil {
			log.Warn().Err(err).Msg("Failed to archive passages")
		}
	}

	s.setActive(ix)
	log.Info().Str("file", filePath).Int("passages", len(passages)).Msg("Upload indexed")
	return len(passages), nil
}

// Query answers a question from the active index: two-stage retrieval,
// then one completion over the citation-annotated context block. An
// empty retrieval result is not an error; the model is prompted with an
// empty context and expected to say it cannot find an answer.
func (s *Service) Query(ctx context.Context, query string) (string, error) {
	ix := s.active.Load()
	if ix == nil {
		return "", ErrNoIndex
	}

	passages, err := s.retrieve(ctx, ix, query)
	if err != nil {
		return "", err
	}

	return s.generateAnswer(ctx, passages, query)
}

// QueryArchive answers a question from the cross-upload Postgres
// archive instead of the active index.
func (s *Service) QueryArchive(ctx context.Context, query string) (string, error) {
	if s.archive == nil {
		return "", errors.New("passage archive is not enabled")
	}

	queryEmbedding, err := embedding.EmbedQuery(ctx, s.embedder, query)
	if err != nil {
		return "", err
	}
	passages, err := store.SearchPassages(ctx, s.archive, queryEmbedding, s.cfg.RAG.TopK)
	if err != nil {
		return "", err
	}

	return s.generateAnswer(ctx, passages, query)
}

func (s *Service) generateAnswer(ctx context.Context, passages []models.Passage, query string) (string, error) {
	prompt, err := answerPrompt.Format(map[string]any{
		"context":  FormatContext(passages),
		"question": query,
	})
	if err != nil {
		return "", &llmservice.GenerationError{Op: "format answer prompt", Err: err}
	}
	return llmservice.Generate(ctx, s.model, prompt)
}

// setActive swaps the active index reference and persists its location.
func (s *Service) setActive(ix *index.Index) {
	s.active.Store(ix)

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	tmp, err := os.CreateTemp(s.cfg.RAG.VectorDir, activeStateFile+".*")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to persist active index state")
		return
	}
	name := filepath.Base(ix.Dir())
	if _, err := tmp.WriteString(name + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		log.Warn().Err(err).Msg("Failed to persist active index state")
		return
	}
	tmp.Close()
	if err := os.Rename(tmp.Name(), filepath.Join(s.cfg.RAG.VectorDir, activeStateFile)); err != nil {
		os.Remove(tmp.Name())
		log.Warn().Err(err).Msg("Failed to persist active index state")
	}
}

// FormatContext renders passages as citation-annotated blocks separated
// by blank lines, preserving their order.
func FormatContext(passages []models.Passage) string {
	formatted := make([]string, 0, len(passages))
	for _, p := range passages {
		header := fmt.Sprintf(models.CitationFormat, p.SourceID, p.PageNumber)
		formatted = append(formatted, header+"\n"+p.Text)
	}
	return strings.Join(formatted, "\n\n")
}
