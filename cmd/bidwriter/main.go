package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bidcraft/bidwriter/internal/config"
	"github.com/bidcraft/bidwriter/internal/llm"
	"github.com/bidcraft/bidwriter/internal/prompt"
	"github.com/bidcraft/bidwriter/internal/server"
	"github.com/bidcraft/bidwriter/internal/storage"
	"github.com/bidcraft/bidwriter/internal/workflow"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to $BIDWRITER_CONFIG)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if err := run(*configPath, *debug); err != nil {
		fmt.Fprintln(os.Stderr, "bidwriter:", err)
		os.Exit(1)
	}
}

func run(configPath string, debug bool) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	backend, err := buildBackend(&cfg.LLM)
	if err != nil {
		return fmt.Errorf("configuring backend: %w", err)
	}

	client := llm.NewClient(backend, cfg.LLM.BaseURL, cfg.LLM.Model,
		llm.WithRequestTimeout(cfg.LLM.RequestTimeout),
		llm.WithRetry(cfg.LLM.MaxRetries, cfg.LLM.RetryDelay, cfg.LLM.RetryBackoff),
		llm.WithRateLimit(cfg.LLM.RateLimit.RequestsPerMinute, cfg.LLM.RateLimit.BurstSize),
		llm.WithSampling(cfg.LLM.Temperature, cfg.LLM.MaxTokens, cfg.LLM.TopP),
		llm.WithLogger(logger),
	)

	prompts, err := prompt.NewManager(cfg.Paths.PromptsFile, logger)
	if err != nil {
		return fmt.Errorf("loading prompts: %w", err)
	}

	store := storage.NewFileSystem(cfg.Paths.DataDir)
	wf := workflow.New(cfg, client, prompts, store, logger)

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.New(wf, prompts, logger).Router()

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}

	return nil
}

func buildBackend(cfg *config.LLMConfig) (llm.Backend, error) {
	switch cfg.Provider {
	case "openai":
		return &llm.OpenAIBackend{APIKey: cfg.APIKey}, nil
	case "zhipu":
		return &llm.ZhipuBackend{APIKey: cfg.APIKey}, nil
	case "baidu":
		return llm.NewBaiduBackend(nil, "", cfg.APIKey, cfg.APISecret)
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}
