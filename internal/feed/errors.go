package feed

import "fmt"

// FeedFetchError reports a failure reaching the feed source for one page.
// The crawl for that page stops immediately; the caller decides whether the
// remaining pages continue.
type FeedFetchError struct {
	Page string
	Err  error
}

func (e *FeedFetchError) Error() string {
	return fmt.Sprintf("fetch feed for page %q: %v", e.Page, e.Err)
}

func (e *FeedFetchError) Unwrap() error { return e.Err }
