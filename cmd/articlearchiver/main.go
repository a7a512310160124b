package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/archiva-hq/newsarchives/internal/app"
	"github.com/archiva-hq/newsarchives/internal/config"
	"github.com/archiva-hq/newsarchives/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "articlearchiver failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("articlearchiver starting", "config", map[string]any{
		"env":          cfg.Env,
		"chunk_size":   cfg.ChunkSize,
		"storage_type": cfg.StorageType,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	archiver, err := app.NewArchiver(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize archiver", "error", err)
		return err
	}

	if err := archiver.Run(ctx); err != nil {
		return fmt.Errorf("archiver run: %w", err)
	}

	return nil
}
