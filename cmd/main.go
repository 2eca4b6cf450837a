package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"document-qa/internal/config"
	"document-qa/internal/embedding"
	"document-qa/internal/helper"
	"document-qa/internal/llmservice"
	"document-qa/internal/rag"
	"document-qa/internal/server"
	"document-qa/internal/store"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	filePath := flag.String("file", "", "Path to a document to upload and index")
	query := flag.String("query", "", "Question to answer against the active index")
	archive := flag.Bool("archive", false, "Answer the query from the Postgres passage archive")
	serve := flag.Bool("serve", false, "Start the HTTP API server")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	ctx := context.Background()
	svc, archiveDB := newService(ctx, cfg)
	if archiveDB != nil {
		defer archiveDB.Close()
	}

	switch {
	case *serve:
		if err := svc.Restore(); err != nil {
			log.Warn().Err(err).Msg("Could not restore active index")
		}
		srv := server.NewServer(svc, cfg.Server.UploadDir)
		if err := srv.Start(cfg.Server.Addr); err != nil {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	case *filePath != "":
		uploadFile(ctx, svc, *filePath)
	case *query != "":
		askQuestion(ctx, svc, *query, *archive)
	default:
		log.Fatal().Msg("Please provide a document using the -file flag, a question using the -query flag, or start the server with -serve")
	}
}

func newService(ctx context.Context, cfg *config.Config) (*rag.Service, *bun.DB) {
	if err := helper.CreateFolder(cfg.RAG.VectorDir); err != nil {
		log.Fatal().Err(err).Msg("Error creating vector dir")
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	model, err := llmservice.New(&cfg.InferLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing LLM")
	}

	var archiveDB *bun.DB
	if cfg.Database.Enabled {
		sqldb, err := store.ConnectDB(&cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Error connecting to database")
		}
		archiveDB = store.NewDB(sqldb, cfg.Database.Debug)
		if err := store.InitDB(ctx, archiveDB); err != nil {
			log.Fatal().Err(err).Msg("Error initializing database")
		}
	}

	return rag.NewService(cfg, embedder, model, archiveDB), archiveDB
}

func uploadFile(ctx context.Context, svc *rag.Service, filePath string) {
	count, err := svc.Upload(ctx, filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error indexing document")
	}
	fmt.Printf("Indexed %d passages from %s\n", count, filePath)
}

func askQuestion(ctx context.Context, svc *rag.Service, query string, fromArchive bool) {
	var answer string
	var err error
	if fromArchive {
		answer, err = svc.QueryArchive(ctx, query)
	} else {
		if err := svc.Restore(); err != nil {
			log.Fatal().Err(err).Msg("Error restoring active index")
		}
		answer, err = svc.Query(ctx, query)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Error querying")
	}

	fmt.Printf("Query:\n%s\n\n", query)
	fmt.Printf("Assistant:\n%s\n\n", answer)
}
