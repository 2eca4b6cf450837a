package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/prompts"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

// GenerationError reports a failed model call during the query path,
// whether from the relevance judge or the answer generator.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *GenerationError) Unwrap() error { return e.Err }

var relevancePrompt = prompts.NewPromptTemplate(
	models.RelevancePromptTemplate, []string{"question", "context"},
)

// New builds a generative model client for the configured provider.
func New(llmConfig *config.LLMConfig) (llms.Model, error) {
	switch llmConfig.Provider {
	case "ollama":
		return ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
	default:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		return openai.New(opts...)
	}
}

// Generate runs one completion call and returns the model's text as-is.
func Generate(ctx context.Context, model llms.Model, prompt string) (string, error) {
	answer, err := llms.GenerateFromSinglePrompt(ctx, model, prompt, llms.WithTemperature(0))
	if err != nil {
		return "", &GenerationError{Op: "generate answer", Err: err}
	}
	return answer, nil
}

// JudgeRelevance asks the model whether a passage is relevant to the
// query. Anything that does not read as a yes counts as irrelevant.
func JudgeRelevance(ctx context.Context, model llms.Model, passageText, query string) (bool, error) {
	prompt, err := relevancePrompt.Format(map[string]any{
		"question": query,
		"context":  passageText,
	})
	if err != nil {
		return false, &GenerationError{Op: "format judge prompt", Err: err}
	}

	verdict, err := llms.GenerateFromSinglePrompt(ctx, model, prompt, llms.WithTemperature(0))
	if err != nil {
		return false, &GenerationError{Op: "judge relevance", Err: err}
	}
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(verdict)), "YES"), nil
}
