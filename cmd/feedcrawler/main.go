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
		fmt.Fprintf(os.Stderr, "feedcrawler failed: %v\n", err)
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

	logger.InfoObj("feedcrawler starting", "config", map[string]any{
		"env":          cfg.Env,
		"pages_file":   cfg.PagesFile,
		"through_date": cfg.ThroughDateRaw,
		"storage_type": cfg.StorageType,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	crawler, err := app.NewCrawler(cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize crawler", "error", err)
		return err
	}

	if err := crawler.Run(ctx); err != nil {
		return fmt.Errorf("crawler run: %w", err)
	}

	return nil
}
