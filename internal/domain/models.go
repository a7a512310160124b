package domain

import "time"

// Domain contains core models shared by the crawl and archive stages.

// Post is one social-media post referencing an external URL. Posts are
// append-only historical records keyed by (PageID, PostID).
type Post struct {
	PageID      string    `json:"page_id" db:"page_id"`
	PageName    string    `json:"page_name" db:"page_name"`
	PostID      string    `json:"post_id" db:"post_id"`
	URL         string    `json:"url" db:"url"`
	BaseURL     string    `json:"base_url" db:"base_url"`
	Shares      int       `json:"shares" db:"shares"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	RetrievedAt time.Time `json:"retrieved_at" db:"retrieved_at"`
}

// ArticleStatus records the outcome of an article fetch.
type ArticleStatus string

const (
	// ArticleStatusArchived marks a row whose text extraction succeeded.
	ArticleStatusArchived ArticleStatus = "archived"
	// ArticleStatusFailed marks a row whose fetch failed; failed rows keep
	// the URL out of the pending set so it is not re-attempted.
	ArticleStatusFailed ArticleStatus = "failed"
)

// Article is the fetched content for one distinct URL. Exactly one row
// exists per URL and it is never updated after the first write.
type Article struct {
	URL           string        `json:"url" db:"url"`
	Title         string        `json:"title" db:"title"`
	Authors       []string      `json:"authors" db:"authors"`
	PublishedAt   *time.Time    `json:"published_at,omitempty" db:"published_at"`
	Text          string        `json:"text" db:"text"`
	TopImage      string        `json:"top_image" db:"top_image"`
	Status        ArticleStatus `json:"status" db:"status"`
	FailureReason string        `json:"failure_reason,omitempty" db:"failure_reason"`
	RetrievedAt   time.Time     `json:"retrieved_at" db:"retrieved_at"`
}

// Failed reports whether the article row records a fetch failure.
func (a Article) Failed() bool { return a.Status == ArticleStatusFailed }

// FailedArticle builds the write-once row persisted for a URL whose fetch
// hit an expected failure (unreachable, non-2xx, empty text).
func FailedArticle(url, reason string, retrievedAt time.Time) Article {
	return Article{
		URL:           url,
		Status:        ArticleStatusFailed,
		FailureReason: reason,
		RetrievedAt:   retrievedAt,
	}
}
