package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/archiva-hq/newsarchives/internal/domain"
	"github.com/archiva-hq/newsarchives/internal/extract"
	"github.com/archiva-hq/newsarchives/internal/logger"
	"github.com/archiva-hq/newsarchives/internal/storage"
	"github.com/archiva-hq/newsarchives/pkg/publishers"
)

// ArticleArchiver reads pending URLs from the posts store in bounded chunks,
// fetches each article, and persists the outcome (archived or failed) so a
// URL is attempted at most once.
type ArticleArchiver struct {
	store   storage.Store
	fetcher extract.Fetcher
	fanout  *publishers.Fanout
	log     logger.Logger
}

// NewArticleArchiver wires an article archiver. fanout may be nil when no
// downstream sinks are configured.
func NewArticleArchiver(store storage.Store, fetcher extract.Fetcher, fanout *publishers.Fanout, log logger.Logger) *ArticleArchiver {
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &ArticleArchiver{store: store, fetcher: fetcher, fanout: fanout, log: log}
}

// GetArticles processes the pending set (URLs in posts with no articles row)
// until it is exhausted. chunksize bounds how many URLs are held in memory at
// once; chunksize <= 0 materializes the full set in a single batch.
func (a *ArticleArchiver) GetArticles(ctx context.Context, chunksize int) error {
	if a == nil || a.store == nil || a.fetcher == nil {
		return fmt.Errorf("article archiver is not initialized")
	}

	start := time.Now()
	archived, failed, skipped := 0, 0, 0

	// URLs skipped over an unexpected extraction error get no articles row,
	// so they would reappear in every subsequent batch of this run.
	skippedURLs := map[string]bool{}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		limit := chunksize
		if chunksize > 0 {
			// Skipped URLs stay pending and sort ahead of fresh work, so widen
			// the read by their count to keep them from starving a chunk.
			limit = chunksize + len(skippedURLs)
		}
		urls, err := a.store.PendingURLs(ctx, limit)
		if err != nil {
			return fmt.Errorf("read pending urls: %w", err)
		}

		remaining := urls[:0]
		for _, url := range urls {
			if !skippedURLs[url] {
				remaining = append(remaining, url)
			}
		}
		if len(remaining) == 0 {
			break
		}
		if chunksize > 0 && len(remaining) > chunksize {
			remaining = remaining[:chunksize]
		}

		for _, url := range remaining {
			if err := ctx.Err(); err != nil {
				return err
			}

			// A concurrent run may have archived the URL since the pending
			// read; the row is write-once, so skip the fetch.
			exists, err := a.store.HasArticle(ctx, url)
			if err != nil {
				return fmt.Errorf("check article %s: %w", url, err)
			}
			if exists {
				continue
			}

			article, err := a.fetcher.FetchArticle(ctx, url)
			if err != nil {
				var fetchErr *extract.ArticleFetchError
				if errors.As(err, &fetchErr) {
					skipped++
					skippedURLs[url] = true
					a.log.ErrorObj("article fetch errored, skipping url", "article_error", map[string]any{
						"url":   url,
						"error": err.Error(),
					})
					continue
				}
				return err
			}

			// Store failures are fatal for the run; every row committed so
			// far stays durable.
			if err := a.store.SaveArticle(ctx, article); err != nil {
				return err
			}

			if article.Failed() {
				failed++
				a.log.WarnObj("article fetch failed", "article_failure", map[string]any{
					"url":    url,
					"reason": article.FailureReason,
				})
				continue
			}

			archived++
			a.publish(ctx, article)
		}

		// Without a chunk bound the first batch held the whole pending set.
		if chunksize <= 0 {
			break
		}
	}

	a.log.InfoObj("article archival completed", "archive_result", map[string]any{
		"archived":   archived,
		"failed":     failed,
		"skipped":    skipped,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

// publish announces an archived article downstream; sink errors never abort
// the archival run.
func (a *ArticleArchiver) publish(ctx context.Context, article domain.Article) {
	if a.fanout == nil || a.fanout.Size() == 0 {
		return
	}

	delivered, err := a.fanout.Publish(ctx, publishers.NewEvent(article))
	if err != nil {
		a.log.WarnObj("archive event delivery incomplete", "publish_error", map[string]any{
			"url":       article.URL,
			"delivered": delivered,
			"error":     err.Error(),
		})
	}
}
