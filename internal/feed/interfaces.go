package feed

import (
	"context"
	"time"

	"github.com/archiva-hq/newsarchives/internal/domain"
	"github.com/archiva-hq/newsarchives/pkg/pages"
)

// Client retrieves a page's posted links from a feed source. Implementations
// other than the graph API (RSS-derived lists, other social APIs) can be
// substituted without touching the archiver logic.
type Client interface {
	// ResolvePage maps a configured page name to the source's static page id.
	ResolvePage(ctx context.Context, name string) (string, error)

	// FetchPageFeed returns a lazy, finite, non-restartable iterator over the
	// page's posts, newest first, stopping once the feed history reaches
	// `through`. A zero `through` walks the feed to its end.
	FetchPageFeed(ctx context.Context, page pages.Page, pageID string, through time.Time) Iterator
}

// Iterator walks one page's feed in the scanner style: Next advances and
// reports whether a post is available, Post returns it, Err surfaces the
// failure that terminated iteration early (if any).
type Iterator interface {
	Next() bool
	Post() domain.Post
	Err() error
}
