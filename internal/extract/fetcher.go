package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/archiva-hq/newsarchives/internal/domain"
	"github.com/archiva-hq/newsarchives/pkg/httpclient"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

const maxHTMLBodyBytes = 2 << 20 // 2 MiB

// Fetcher downloads and parses the article behind a URL. Alternate
// implementations (other extraction backends, recorded fixtures) can be
// substituted without touching the archiver.
type Fetcher interface {
	// FetchArticle returns the parsed article for rawURL. Expected failures
	// (unreachable, non-success response, empty extracted text) come back as
	// a failure-marked article with a nil error; unexpected extraction
	// failures return an *ArticleFetchError.
	FetchArticle(ctx context.Context, rawURL string) (domain.Article, error)
}

// ReadabilityFetcher extracts article text with go-readability and refines
// metadata from the document's meta tags.
type ReadabilityFetcher struct {
	client httpclient.Client
	now    func() time.Time
}

// NewReadabilityFetcher builds a fetcher around the provided HTTP client.
func NewReadabilityFetcher(client httpclient.Client) *ReadabilityFetcher {
	if client == nil {
		client = httpclient.NewRestyClient(30 * time.Second)
	}
	return &ReadabilityFetcher{client: client, now: time.Now}
}

// FetchArticle implements Fetcher.
func (f *ReadabilityFetcher) FetchArticle(ctx context.Context, rawURL string) (domain.Article, error) {
	retrievedAt := f.now().UTC()

	pageURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || !pageURL.IsAbs() {
		return domain.FailedArticle(rawURL, "unparseable url", retrievedAt), nil
	}

	resp, err := f.client.Get(ctx, pageURL.String(), nil)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Article{}, &ArticleFetchError{URL: rawURL, Err: ctx.Err()}
		}
		return domain.FailedArticle(rawURL, fmt.Sprintf("unreachable: %v", err), retrievedAt), nil
	}
	if code := resp.StatusCode(); code < 200 || code > 299 {
		return domain.FailedArticle(rawURL, fmt.Sprintf("status %d", code), retrievedAt), nil
	}

	body := resp.Body()
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}

	parsed, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Article{}, &ArticleFetchError{URL: rawURL, Err: ctx.Err()}
		}
		// Pages without extractable article content are a routine archival
		// outcome, not a batch-stopping error.
		return domain.FailedArticle(rawURL, fmt.Sprintf("no article content: %v", err), retrievedAt), nil
	}

	text := strings.TrimSpace(parsed.TextContent)
	if text == "" {
		return domain.FailedArticle(rawURL, "empty extracted text", retrievedAt), nil
	}

	meta := parseMeta(body, pageURL)

	article := domain.Article{
		URL:         rawURL,
		Title:       firstNonEmpty(meta.Title, parsed.Title),
		Authors:     meta.Authors,
		Text:        text,
		TopImage:    firstNonEmpty(meta.ImageURL, parsed.Image),
		Status:      domain.ArticleStatusArchived,
		RetrievedAt: retrievedAt,
	}
	if len(article.Authors) == 0 {
		if byline := strings.TrimSpace(parsed.Byline); byline != "" {
			article.Authors = []string{byline}
		}
	}
	if meta.PublishedAt != nil {
		article.PublishedAt = meta.PublishedAt
	} else if parsed.PublishedTime != nil {
		article.PublishedAt = parsed.PublishedTime
	}

	return article, nil
}

type pageMeta struct {
	Title       string
	ImageURL    string
	Authors     []string
	PublishedAt *time.Time
}

// parseMeta pulls title, top image, authors, and publish date from the OG and
// standard meta tags. Parse errors are not fatal: readability already accepted
// the document, so missing metadata just falls back.
func parseMeta(body []byte, pageURL *url.URL) pageMeta {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return pageMeta{}
	}

	content := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	pm := pageMeta{}
	pm.Title = content(`meta[property="og:title"]`)
	pm.ImageURL = resolveURL(content(`meta[property="og:image"]`), pageURL)

	seen := map[string]bool{}
	doc.Find(`meta[name="author"], meta[property="article:author"]`).Each(func(_ int, node *goquery.Selection) {
		val, _ := node.Attr("content")
		val = strings.TrimSpace(val)
		// article:author is sometimes a profile URL rather than a name.
		if val == "" || strings.HasPrefix(val, "http://") || strings.HasPrefix(val, "https://") {
			return
		}
		if !seen[val] {
			seen[val] = true
			pm.Authors = append(pm.Authors, val)
		}
	})

	if raw := content(`meta[property="article:published_time"]`); raw != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-0700", "2006-01-02"} {
			if t, perr := time.Parse(layout, raw); perr == nil {
				pm.PublishedAt = &t
				break
			}
		}
	}

	return pm
}

// resolveURL turns a possibly relative reference into an absolute URL against
// the article page.
func resolveURL(ref string, pageURL *url.URL) string {
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return pageURL.ResolveReference(parsed).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
