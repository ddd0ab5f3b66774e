package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/uptrace/bun"

	"legal-rag/internal/config"
	"legal-rag/internal/db"
	"legal-rag/internal/embedding"
	"legal-rag/internal/helper"
	"legal-rag/internal/llmservice"
	"legal-rag/internal/models"
	"legal-rag/internal/rag"
	"legal-rag/internal/server"
)

const configFilePath = "./configs/config.yaml"

func main() {
	configPath := flag.String("config", configFilePath, "Path to the config file")
	buildOnly := flag.Bool("build-only", false, "Build or load the indexes, then exit")
	exportDir := flag.String("export", "", "Export every index to this directory, then exit")
	importDir := flag.String("import", "", "Restore indexes exported with -export from this directory before starting")
	resetHistory := flag.Bool("reset-history", false, "Drop the query history table, then exit")
	query := flag.String("query", "", "Answer one question and exit")
	corpus := flag.String("corpus", models.CorpusLegalQA, "Corpus used with -query")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		// logger is not configured yet
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	helper.SetupLogger(cfg.Log.Level, cfg.Log.Pretty)
	log.Debug().Str("path", *configPath).Msg("Loaded config")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *resetHistory {
		resetQueryLog(ctx, &cfg.Database)
		return
	}

	embedder, err := embedding.NewFromConfig(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	if closer, ok := embedder.(io.Closer); ok {
		defer closer.Close()
	}

	if *importDir != "" {
		importIndexes(cfg, embedder, *importDir)
	}

	app, err := rag.Initialize(ctx, cfg, rag.Dependencies{
		Embedder: embedder,
		NewModel: func() (llms.Model, error) { return llmservice.NewModel(&cfg.InferenceLLM) },
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing pipelines")
	}

	switch {
	case *buildOnly:
		helper.PrettyPrint(app.Health())
		return
	case *exportDir != "":
		exportIndexes(app, cfg, *exportDir)
		return
	case *query != "":
		if _, ok := cfg.Corpus(*corpus); !ok {
			log.Fatal().Str("corpus", *corpus).Msg("Corpus is not configured")
		}
		if !app.Ready(*corpus) {
			log.Fatal().Interface("health", app.Health()).Str("corpus", *corpus).Msg("Corpus cannot answer questions")
		}
		answerOnce(ctx, app, *corpus, *query)
		return
	}

	queryDB := openQueryLog(ctx, &cfg.Database)
	if queryDB != nil {
		defer queryDB.Close()
	}

	srv := server.NewServer(app, queryDB, &cfg.Server)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error during shutdown")
		}
	}
}

// openQueryLog connects the history database. An empty DSN disables it.
func openQueryLog(ctx context.Context, dbConfig *config.DatabaseConfig) *bun.DB {
	queryDB, err := db.Open(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening query history")
	}
	if queryDB == nil {
		log.Info().Msg("Query history disabled")
	}
	return queryDB
}

// resetQueryLog drops and recreates the history table.
func resetQueryLog(ctx context.Context, dbConfig *config.DatabaseConfig) {
	queryDB := openQueryLog(ctx, dbConfig)
	if queryDB == nil {
		return
	}
	defer queryDB.Close()
	if err := db.DropQueries(ctx, queryDB); err != nil {
		log.Fatal().Err(err).Msg("Error dropping query history")
	}
	if err := db.InitDB(ctx, queryDB); err != nil {
		log.Fatal().Err(err).Msg("Error recreating query history")
	}
	log.Info().Msg("Query history reset")
}

// importIndexes restores <dir>/<corpus>.gob for every configured corpus
// whose storage path does not exist yet.
func importIndexes(cfg *config.Config, embedder embedding.Embedder, dir string) {
	for _, corpus := range cfg.Corpora {
		if _, err := os.Stat(corpus.StoragePath); err == nil {
			log.Info().Str("corpus", corpus.ID).Str("path", corpus.StoragePath).Msg("Index exists; skipping import")
			continue
		}
		path := filepath.Join(dir, corpus.ID+".gob")
		if _, err := rag.ImportIndex(rag.NewIndexSpec(&cfg.RAG, corpus), embedder, path, cfg.RAG.EncryptionKey); err != nil {
			log.Fatal().Err(err).Str("corpus", corpus.ID).Str("file", path).Msg("Error importing index")
		}
	}
}

func exportIndexes(app *rag.App, cfg *config.Config, dir string) {
	if err := helper.CreateFolder(dir); err != nil {
		log.Fatal().Err(err).Msg("Error creating export folder")
	}
	for _, corpus := range cfg.Corpora {
		ix, ok := app.Index(corpus.ID)
		if !ok {
			continue
		}
		path := filepath.Join(dir, corpus.ID+".gob")
		if err := ix.Export(path, cfg.RAG.EncryptionKey); err != nil {
			log.Fatal().Err(err).Str("corpus", corpus.ID).Msg("Error exporting index")
		}
		log.Info().Str("corpus", corpus.ID).Str("file", path).Msg("Exported index")
	}
}

func answerOnce(ctx context.Context, app *rag.App, corpusID, question string) {
	response, err := app.Answer(ctx, corpusID, question)
	if err != nil {
		log.Fatal().Err(err).Msg("Error querying")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Query)

	log.Info().Msg("Sources: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%v\n\n", response.Sources)

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)
}
