package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"legal-rag/internal/assistant"
	"legal-rag/internal/config"
	"legal-rag/internal/db"
	"legal-rag/internal/helper"
	"legal-rag/internal/llmservice"
)

const configFilePath = "./configs/config.yaml"

func main() {
	configPath := flag.String("config", configFilePath, "Path to the config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	helper.SetupLogger(cfg.Log.Level, cfg.Log.Pretty)

	llm, modelErr := llmservice.NewModel(&cfg.InferenceLLM)
	if modelErr != nil {
		log.Error().Err(modelErr).Msg("Language model unavailable; /user will report errors")
	}

	client := assistant.NewRAGClient(cfg.Assistant.RAGAPIURL, time.Duration(cfg.Assistant.TimeoutSecs)*time.Second)
	a, err := assistant.NewAssistant(client, llm, modelErr)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing assistant")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queryDB, err := db.Open(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening query history")
	}
	if queryDB != nil {
		defer queryDB.Close()
	} else {
		log.Info().Msg("Query history disabled")
	}

	srv := assistant.NewServer(a, queryDB, &cfg.Assistant, cfg.Server.AllowedOrigins)
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
