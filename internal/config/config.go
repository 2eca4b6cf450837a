package config

import (
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"document-qa/internal/models"
)

type Config struct {
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	InferLLM LLMConfig      `yaml:"infer_llm"`
	RAG      RAGConfig      `yaml:"rag"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
}

// LLMConfig configures one model endpoint. Provider is "openai" (any
// OpenAI-compatible API, e.g. OpenRouter) or "ollama".
type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

type RAGConfig struct {
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	TopK         int    `yaml:"top_k"`
	VectorDir    string `yaml:"vector_dir"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	UploadDir string `yaml:"upload_dir"`
}

// DatabaseConfig configures the optional Postgres passage archive.
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Key     string `yaml:"key"`
	Debug   bool   `yaml:"debug"`
}

func LoadConfig(path string) (*Config, error) {
	// .env is optional, environment variables alone are fine
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	// defaults are seeded before unmarshal, so absent keys keep them
	// while explicit values, including chunk_overlap: 0, are honored
	cfg := Config{
		RAG: RAGConfig{
			ChunkSize:    models.DefaultChunkSize,
			ChunkOverlap: models.DefaultChunkOverlap,
			TopK:         models.DefaultTopK,
			VectorDir:    "./vector_store",
		},
		Server: ServerConfig{
			Addr:      ":8000",
			UploadDir: os.TempDir(),
		},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if c.EmbedLLM.Key == "" {
		c.EmbedLLM.Key = os.Getenv("OPENAI_API_KEY")
	}
	if c.InferLLM.Key == "" {
		c.InferLLM.Key = os.Getenv("OPENAI_API_KEY")
	}
}
