package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ainova/newsrag/internal/chunker"
	"github.com/ainova/newsrag/internal/config"
	"github.com/ainova/newsrag/internal/generate"
	"github.com/ainova/newsrag/internal/index"
	"github.com/ainova/newsrag/internal/index/memory"
	"github.com/ainova/newsrag/internal/index/redisidx"
	"github.com/ainova/newsrag/internal/ingest"
	logpkg "github.com/ainova/newsrag/internal/logger"
	"github.com/ainova/newsrag/internal/metrics"
	"github.com/ainova/newsrag/internal/prompt"
	"github.com/ainova/newsrag/internal/retriever"
	"github.com/ainova/newsrag/internal/transport/httpapi"
	openaiTransport "github.com/ainova/newsrag/internal/transport/openai"
	"github.com/ainova/newsrag/internal/version"
)

func main() {
	// Local development convenience; ignored when the file is absent.
	_ = godotenv.Load()

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting newsrag API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index_backend", cfg.Index.Backend),
	)

	metrics.RegisterPipelineMetrics()

	ctx := context.Background()
	health := make(map[string]httpapi.HealthCheck)

	// Vector index backend
	var ix index.Index
	switch cfg.Index.Backend {
	case "redis":
		store, err := redisidx.NewStore(redisidx.Config{
			Addrs:       cfg.Index.Addrs,
			Password:    cfg.Index.Password,
			KeyPrefix:   cfg.Index.KeyPrefix,
			Model:       cfg.Embedding.Model,
			Dims:        cfg.Embedding.Dimensions,
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		})
		if err != nil {
			logger.Fatal("Failed to create redis index", zap.Error(err))
		}
		defer store.Close()

		readiness := time.Duration(cfg.Index.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, readiness); err != nil {
			logger.Fatal("Redis not ready", zap.Error(err))
		}
		if err := store.EnsureIndex(ctx); err != nil {
			logger.Fatal("Failed to ensure search index", zap.Error(err))
		}
		health["index"] = store.Ping
		ix = store
		logger.Info("Connected to redis index", zap.Strings("addrs", cfg.Index.Addrs))
	case "memory":
		ix = memory.New()
		logger.Info("Using in-memory index")
	default:
		logger.Fatal("Unknown index backend", zap.String("backend", cfg.Index.Backend))
	}

	// Embedding and generation providers
	embedder, err := openaiTransport.NewEmbedder(openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		MaxRetries: cfg.Embedding.MaxRetries,
		RetryBase:  time.Duration(cfg.Embedding.RetryBaseMS) * time.Millisecond,
	})
	if err != nil {
		logger.Fatal("Failed to create embedder", zap.Error(err))
	}
	health["embedding"] = embedder.HealthCheck

	generator, err := openaiTransport.NewGenerator(openaiTransport.GeneratorConfig{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		RequestTimeout: time.Duration(cfg.LLM.RequestTimeout) * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to create generator", zap.Error(err))
	}
	logger.Info("Providers created",
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("llm_model", cfg.LLM.Model),
	)

	// Pipeline components
	ret := retriever.New(embedder, ix, retriever.Config{
		K:                  cfg.Retrieval.K,
		PerDocumentCap:     cfg.Retrieval.PerDocumentCap,
		Oversample:         cfg.Retrieval.Oversample,
		RecencyWeight:      cfg.Retrieval.RecencyWeight,
		RecencyHalfLifeDay: float64(cfg.Retrieval.RecencyHalfLifeDay),
		PreferredProviders: cfg.Retrieval.PreferredProviders,
		ProviderBoost:      cfg.Retrieval.ProviderBoost,
	})
	prompts := prompt.New(prompt.Config{
		ContextBudget: cfg.Prompt.ContextBudget,
		MaxPassages:   cfg.Prompt.MaxPassages,
	})
	orchestrator := generate.New(ret, prompts, generator)

	chk := chunker.New(
		chunker.WithChunkSize(cfg.Chunking.ChunkSize),
		chunker.WithOverlap(cfg.Chunking.Overlap),
	)
	ingestSvc := ingest.New(chk, embedder, ix, ingest.Config{
		BatchSize:   cfg.Embedding.BatchSize,
		Parallelism: cfg.Embedding.Parallelism,
	})

	server := httpapi.NewServer(orchestrator, ingestSvc, health, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
