package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/archiva-hq/newsarchives/internal/domain"
)

// Package storage provides the archive store abstraction over relational and
// embedded backends.

// Store persists crawled posts and fetched articles. The posts table is
// append-only; the articles table is write-once per URL.
type Store interface {
	Close() error

	// SavePosts upserts the batch on the (page_id, post_id) key and returns
	// how many rows were newly inserted. Duplicates from overlapping
	// pagination windows are silently deduplicated.
	SavePosts(ctx context.Context, posts []domain.Post) (int, error)

	// SaveArticle writes the article row for its URL. An existing row wins:
	// articles are never updated once created, which is also what keeps
	// previously failed URLs from being re-attempted.
	SaveArticle(ctx context.Context, article domain.Article) error

	// HasArticle reports whether a row (archived or failed) exists for url.
	HasArticle(ctx context.Context, url string) (bool, error)

	// PendingURLs returns up to limit distinct URLs present in posts but
	// absent from articles, preferring a roughly even draw across source
	// pages. limit <= 0 materializes the entire pending set.
	PendingURLs(ctx context.Context, limit int) ([]string, error)
}

// NewStore creates the configured storage backend.
func NewStore(typ, databaseURL, boltPath string) (Store, error) {
	switch strings.TrimSpace(strings.ToLower(typ)) {
	case "", "postgres":
		if strings.TrimSpace(databaseURL) == "" {
			return nil, fmt.Errorf("postgres storage requires a connection string")
		}
		return openPostgres(databaseURL)
	case "bbolt":
		if strings.TrimSpace(boltPath) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(boltPath)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}
