package rag

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"document-qa/internal/config"
	"document-qa/internal/embedding"
	"document-qa/internal/index"
	"document-qa/internal/llmservice"
	"document-qa/internal/models"
)

// fakeEmbedder maps keywords onto fixed unit vectors so similarity
// order is predictable.
type fakeEmbedder struct{}

func keywordVector(text string) []float32 {
	switch {
	case strings.Contains(text, "alpha"):
		return []float32{1, 0, 0}
	case strings.Contains(text, "beta"):
		return []float32{0, 1, 0}
	default:
		return []float32{0, 0, 1}
	}
}

func (fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = keywordVector(t)
	}
	return out, nil
}

func (fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return keywordVector(text), nil
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding service unreachable")
}

func (failingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding service unreachable")
}

// fakeModel answers judge prompts via judge (default YES) and every
// other prompt with answer, recording all prompts it sees.
type fakeModel struct {
	mu      sync.Mutex
	answer  string
	judge   func(prompt string) (string, error)
	prompts []string
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	var sb strings.Builder
	for _, mc := range messages {
		for _, part := range mc.Parts {
			if tc, ok := part.(llms.TextContent); ok {
				sb.WriteString(tc.Text)
			}
		}
	}
	prompt := sb.String()

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	content := m.answer
	if strings.Contains(prompt, "Relevant (YES / NO)") {
		content = "YES"
		if m.judge != nil {
			verdict, err := m.judge(prompt)
			if err != nil {
				return nil, err
			}
			content = verdict
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: content}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	resp, err := m.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(schema.ChatMessageTypeHuman, prompt)}, opts...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func (m *fakeModel) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		RAG: config.RAGConfig{
			ChunkSize:    models.DefaultChunkSize,
			ChunkOverlap: models.DefaultChunkOverlap,
			TopK:         models.DefaultTopK,
			VectorDir:    t.TempDir(),
		},
	}
}

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const alphaDoc = "The alpha protocol describes how the relay station hands off control during maintenance windows without dropping traffic."

func TestQueryBeforeAnyUpload(t *testing.T) {
	svc := NewService(testConfig(t), fakeEmbedder{}, &fakeModel{}, nil)

	_, err := svc.Query(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrNoIndex)
}

func TestUploadAndQuery(t *testing.T) {
	ctx := context.Background()
	model := &fakeModel{answer: "the relay hands off during maintenance"}
	svc := NewService(testConfig(t), fakeEmbedder{}, model, nil)

	count, err := svc.Upload(ctx, writeFixture(t, "alpha.txt", alphaDoc))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	answer, err := svc.Query(ctx, "what is the alpha protocol?")
	require.NoError(t, err)
	assert.Equal(t, "the relay hands off during maintenance", answer)

	prompt := model.lastPrompt()
	assert.Contains(t, prompt, "[Source: alpha.txt, Page: 1]")
	assert.Contains(t, prompt, "Question: what is the alpha protocol?")
}

func TestShortDocumentYieldsEmptyIndexButQueriesSucceed(t *testing.T) {
	ctx := context.Background()
	model := &fakeModel{answer: "I cannot find an answer in the context."}
	svc := NewService(testConfig(t), fakeEmbedder{}, model, nil)

	count, err := svc.Upload(ctx, writeFixture(t, "tiny.txt", "thirty characters of content.."))
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	answer, err := svc.Query(ctx, "what does it say?")
	require.NoError(t, err)
	assert.NotEmpty(t, answer)
	assert.NotContains(t, model.lastPrompt(), "[Source:")
}

func TestFailedUploadLeavesActiveIndexUntouched(t *testing.T) {
	ctx := context.Background()
	model := &fakeModel{answer: "still answering"}
	svc := NewService(testConfig(t), fakeEmbedder{}, model, nil)

	_, err := svc.Upload(ctx, writeFixture(t, "alpha.txt", alphaDoc))
	require.NoError(t, err)

	_, err = svc.Upload(ctx, writeFixture(t, "broken.pdf", "not a pdf"))
	require.Error(t, err)

	answer, err := svc.Query(ctx, "alpha?")
	require.NoError(t, err)
	assert.Equal(t, "still answering", answer)
}

func TestConcurrentQueriesDuringUpload(t *testing.T) {
	ctx := context.Background()
	model := &fakeModel{answer: "steady answer"}
	svc := NewService(testConfig(t), fakeEmbedder{}, model, nil)

	_, err := svc.Upload(ctx, writeFixture(t, "alpha.txt", alphaDoc))
	require.NoError(t, err)

	// every query racing the re-uploads must see a fully built index,
	// either the old one or the new one
	done := make(chan struct{})
	errs := make(chan error, 4)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				answer, err := svc.Query(ctx, "what is the alpha protocol?")
				if err != nil {
					errs <- err
					return
				}
				if answer != "steady answer" {
					errs <- fmt.Errorf("unexpected answer %q", answer)
					return
				}
			}
		}()
	}

	betaDoc := strings.ReplaceAll(alphaDoc, "alpha", "beta")
	for i := 0; i < 5; i++ {
		_, err := svc.Upload(ctx, writeFixture(t, "beta.txt", betaDoc))
		require.NoError(t, err)
	}

	close(done)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestEmbeddingFailureAbortsUpload(t *testing.T) {
	ctx := context.Background()
	svc := NewService(testConfig(t), failingEmbedder{}, &fakeModel{}, nil)

	_, err := svc.Upload(ctx, writeFixture(t, "alpha.txt", alphaDoc))
	var embErr *embedding.Error
	require.True(t, errors.As(err, &embErr))

	_, err = svc.Query(ctx, "alpha?")
	assert.ErrorIs(t, err, ErrNoIndex)
}

func TestRelevanceFilterPreservesSimilarityOrder(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	embedded := []models.EmbeddedPassage{
		{
			Passage:   models.Passage{Text: "first alpha point", PageNumber: 1, SourceID: "doc.txt", ChunkID: 1},
			Embedding: []float32{1, 0, 0},
		},
		{
			Passage:   models.Passage{Text: "second filler point", PageNumber: 2, SourceID: "doc.txt", ChunkID: 1},
			Embedding: []float32{0.8, 0.6, 0},
		},
		{
			Passage:   models.Passage{Text: "third trailing point", PageNumber: 3, SourceID: "doc.txt", ChunkID: 1},
			Embedding: []float32{0.6, 0.8, 0},
		},
	}
	ix, err := index.Build(ctx, filepath.Join(cfg.RAG.VectorDir, "fixture"), embedded)
	require.NoError(t, err)

	model := &fakeModel{
		judge: func(prompt string) (string, error) {
			if strings.Contains(prompt, "second filler point") {
				return "NO", nil
			}
			return "YES", nil
		},
	}
	svc := NewService(cfg, fakeEmbedder{}, model, nil)

	got, err := svc.retrieve(ctx, ix, "alpha question")
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "first alpha point", got[0].Text)
	assert.Equal(t, "third trailing point", got[1].Text)
}

func TestJudgeFailurePropagatesAsGenerationError(t *testing.T) {
	ctx := context.Background()
	model := &fakeModel{
		judge: func(string) (string, error) { return "", errors.New("model overloaded") },
	}
	svc := NewService(testConfig(t), fakeEmbedder{}, model, nil)

	_, err := svc.Upload(ctx, writeFixture(t, "alpha.txt", alphaDoc))
	require.NoError(t, err)

	_, err = svc.Query(ctx, "alpha?")
	var genErr *llmservice.GenerationError
	require.True(t, errors.As(err, &genErr))
}

func TestRestoreReloadsActiveIndexAcrossServices(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	model := &fakeModel{answer: "restored answer"}

	first := NewService(cfg, fakeEmbedder{}, model, nil)
	_, err := first.Upload(ctx, writeFixture(t, "alpha.txt", alphaDoc))
	require.NoError(t, err)

	second := NewService(cfg, fakeEmbedder{}, model, nil)
	require.NoError(t, second.Restore())

	answer, err := second.Query(ctx, "alpha?")
	require.NoError(t, err)
	assert.Equal(t, "restored answer", answer)
}

func TestFormatContext(t *testing.T) {
	passages := []models.Passage{
		{Text: "first body", PageNumber: 2, SourceID: "doc.pdf"},
		{Text: "second body", PageNumber: 5, SourceID: "doc.pdf"},
	}

	got := FormatContext(passages)
	assert.Equal(t, "[Source: doc.pdf, Page: 2]\nfirst body\n\n[Source: doc.pdf, Page: 5]\nsecond body", got)
}

func TestFormatContextEmpty(t *testing.T) {
	assert.Equal(t, "", FormatContext(nil))
}
