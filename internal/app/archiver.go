package app

import (
	"context"
	"fmt"
	"time"

	"github.com/archiva-hq/newsarchives/internal/archive"
	"github.com/archiva-hq/newsarchives/internal/config"
	"github.com/archiva-hq/newsarchives/internal/extract"
	"github.com/archiva-hq/newsarchives/internal/logger"
	"github.com/archiva-hq/newsarchives/internal/storage"
	"github.com/archiva-hq/newsarchives/pkg/httpclient"
	"github.com/archiva-hq/newsarchives/pkg/publishers"

	"github.com/google/uuid"
)

// Archiver is the article stage runtime: it wires the store, the article
// fetcher, and the optional publisher fanout, and drains the pending set.
type Archiver struct {
	cfg      *config.Config
	archiver *archive.ArticleArchiver
	fanout   *publishers.Fanout
	store    storage.Store
	log      logger.Logger
}

// NewArchiver builds the article archival runtime from config files.
func NewArchiver(ctx context.Context, cfg *config.Config, log logger.Logger) (*Archiver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.DatabaseURL, cfg.BBoltPath)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type": cfg.StorageType,
	})

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		store.Close()
		return nil, err
	}

	fetcher := extract.NewReadabilityFetcher(httpclient.NewRestyClient(cfg.HTTPTimeout))

	return &Archiver{
		cfg:      cfg,
		archiver: archive.NewArticleArchiver(store, fetcher, fanout, log),
		fanout:   fanout,
		store:    store,
		log:      log,
	}, nil
}

// buildFanout assembles the publisher fanout when a publishers file is
// configured; without one the archiver runs silently.
func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	if cfg.PublishersFile == "" {
		return nil, nil
	}

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}

	enabled := publisherReg.Enabled()
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})

	return publishers.NewFanout(pubClients), nil
}

// Run drains the pending URL set once.
func (a *Archiver) Run(ctx context.Context) error {
	if a == nil || a.archiver == nil {
		return fmt.Errorf("archiver is not initialized")
	}
	defer a.closeStore()

	runID := uuid.NewString()
	start := time.Now()

	a.log.InfoObj("article archival started", "archive_meta", map[string]any{
		"run_id":     runID,
		"chunk_size": a.cfg.ChunkSize,
		"started_at": start.UTC(),
	})

	if err := a.archiver.GetArticles(ctx, a.cfg.ChunkSize); err != nil {
		return err
	}

	a.log.InfoObj("article archival finished", "archive_meta", map[string]any{
		"run_id":     runID,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

// closeStore safely closes the storage backend, logging any errors encountered.
func (a *Archiver) closeStore() {
	if a == nil || a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.ErrorObj("storage close failed", "error", err)
	}
}
