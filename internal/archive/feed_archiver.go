package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/archiva-hq/newsarchives/internal/domain"
	"github.com/archiva-hq/newsarchives/internal/feed"
	"github.com/archiva-hq/newsarchives/internal/logger"
	"github.com/archiva-hq/newsarchives/internal/storage"
	"github.com/archiva-hq/newsarchives/pkg/pages"
)

// flushBatchSize bounds how many posts are buffered before an upsert, so a
// long feed walk commits progress as it goes.
const flushBatchSize = 100

// FeedArchiver drives the feed client across a list of pages and persists
// every yielded post.
type FeedArchiver struct {
	client feed.Client
	store  storage.Store
	log    logger.Logger
}

// NewFeedArchiver wires a feed archiver.
func NewFeedArchiver(client feed.Client, store storage.Store, log logger.Logger) *FeedArchiver {
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &FeedArchiver{client: client, store: store, log: log}
}

// SaveAllPageFeeds crawls each page in order through the cutoff date. A
// page's failure is recorded and the crawl continues with the remaining
// pages; the per-page errors come back joined after all pages were attempted.
func (a *FeedArchiver) SaveAllPageFeeds(ctx context.Context, pageList []pages.Page, through time.Time) error {
	if a == nil || a.client == nil || a.store == nil {
		return fmt.Errorf("feed archiver is not initialized")
	}
	if len(pageList) == 0 {
		return fmt.Errorf("no pages configured for crawling")
	}

	errs := make([]error, 0, len(pageList))
	for _, page := range pageList {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		if err := a.archivePage(ctx, page, through); err != nil {
			errs = append(errs, err)
			a.log.ErrorObj("page crawl failed", "page_error", map[string]any{
				"page":  page.Name,
				"error": err.Error(),
			})
		}
	}

	return errors.Join(errs...)
}

// archivePage walks one page's feed, flushing buffered posts in bounded
// batches so partial pagination progress is durable.
func (a *FeedArchiver) archivePage(ctx context.Context, page pages.Page, through time.Time) error {
	start := time.Now()

	pageID, err := a.client.ResolvePage(ctx, page.Name)
	if err != nil {
		return fmt.Errorf("resolve page %q: %w", page.Name, err)
	}

	it := a.client.FetchPageFeed(ctx, page, pageID, through)

	batch := make([]domain.Post, 0, flushBatchSize)
	yielded, inserted := 0, 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := a.store.SavePosts(ctx, batch)
		if err != nil {
			return fmt.Errorf("save posts for page %q: %w", page.Name, err)
		}
		inserted += n
		batch = batch[:0]
		return nil
	}

	for it.Next() {
		yielded++
		batch = append(batch, it.Post())
		if len(batch) >= flushBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	if err := it.Err(); err != nil {
		return err
	}

	a.log.InfoObj("page crawl completed", "page_result", map[string]any{
		"page":           page.Name,
		"page_id":        pageID,
		"posts_yielded":  yielded,
		"posts_inserted": inserted,
		"elapsed_ms":     time.Since(start).Milliseconds(),
	})
	return nil
}
