package publishers

import (
	"time"

	"github.com/archiva-hq/newsarchives/internal/domain"
)

// Event is the payload announced downstream when an article is archived.
// The full text stays in the store; sinks get the metadata needed to react.
type Event struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Authors     []string   `json:"authors,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	TopImage    string     `json:"top_image,omitempty"`
	ArchivedAt  time.Time  `json:"archived_at"`
}

// NewEvent builds the event for an archived article.
func NewEvent(article domain.Article) Event {
	return Event{
		URL:         article.URL,
		Title:       article.Title,
		Authors:     article.Authors,
		PublishedAt: article.PublishedAt,
		TopImage:    article.TopImage,
		ArchivedAt:  time.Now().UTC(),
	}
}
