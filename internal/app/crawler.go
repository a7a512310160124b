package app

import (
	"context"
	"fmt"
	"time"

	"github.com/archiva-hq/newsarchives/internal/archive"
	"github.com/archiva-hq/newsarchives/internal/config"
	"github.com/archiva-hq/newsarchives/internal/feed"
	"github.com/archiva-hq/newsarchives/internal/logger"
	"github.com/archiva-hq/newsarchives/internal/storage"
	"github.com/archiva-hq/newsarchives/pkg/httpclient"
	"github.com/archiva-hq/newsarchives/pkg/pages"

	"github.com/google/uuid"
)

// Crawler is the feed stage runtime: it wires the graph client, page
// registry, and posts store, and runs one crawl pass over all pages.
type Crawler struct {
	cfg      *config.Config
	pageReg  *pages.Registry
	archiver *archive.FeedArchiver
	store    storage.Store
	log      logger.Logger
}

// NewCrawler builds the crawl runtime from config files.
func NewCrawler(cfg *config.Config, log logger.Logger) (*Crawler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}

	pageReg, err := pages.LoadRegistry(cfg.PagesFile)
	if err != nil {
		return nil, fmt.Errorf("load pages registry: %w", err)
	}
	pageList := pageReg.All()
	pageNames := make([]string, 0, len(pageList))
	for _, p := range pageList {
		pageNames = append(pageNames, p.Name)
	}
	log.InfoObj("pages registry loaded", "pages_meta", map[string]any{
		"count": len(pageNames),
		"names": pageNames,
	})

	store, err := storage.NewStore(cfg.StorageType, cfg.DatabaseURL, cfg.BBoltPath)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type": cfg.StorageType,
	})

	client := feed.NewGraphClient(
		httpclient.NewRestyClient(cfg.HTTPTimeout),
		cfg.GraphAPIBaseURL,
		cfg.AccessToken(),
	)

	return &Crawler{
		cfg:      cfg,
		pageReg:  pageReg,
		archiver: archive.NewFeedArchiver(client, store, log),
		store:    store,
		log:      log,
	}, nil
}

// Run executes one crawl pass across all configured pages.
func (c *Crawler) Run(ctx context.Context) error {
	if c == nil || c.archiver == nil {
		return fmt.Errorf("crawler is not initialized")
	}
	defer c.closeStore()

	pageList := c.pageReg.All()
	runID := uuid.NewString()
	start := time.Now()

	c.log.InfoObj("crawl started", "crawl_meta", map[string]any{
		"run_id":       runID,
		"pages_count":  len(pageList),
		"through_date": c.cfg.ThroughDateRaw,
		"started_at":   start.UTC(),
	})

	err := c.archiver.SaveAllPageFeeds(ctx, pageList, c.cfg.ThroughDate)
	if err != nil {
		// Per-page failures are already isolated and logged; what reaches
		// here is the joined summary for the exit status.
		c.log.ErrorObj("crawl finished with page errors", "crawl_errors", map[string]any{
			"run_id": runID,
			"error":  err.Error(),
		})
		return err
	}

	c.log.InfoObj("crawl completed", "crawl_meta", map[string]any{
		"run_id":      runID,
		"pages_count": len(pageList),
		"elapsed_ms":  time.Since(start).Milliseconds(),
	})
	return nil
}

// closeStore safely closes the storage backend, logging any errors encountered.
func (c *Crawler) closeStore() {
	if c == nil || c.store == nil {
		return
	}
	if err := c.store.Close(); err != nil {
		c.log.ErrorObj("storage close failed", "error", err)
	}
}
