package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/archiva-hq/newsarchives/internal/domain"
	"github.com/archiva-hq/newsarchives/pkg/httpclient"
	"github.com/archiva-hq/newsarchives/pkg/pages"
)

const (
	feedPageLimit   = "100"
	feedPostFields  = "id,type,link,created_time,shares"
	createdTimeWire = "2006-01-02T15:04:05-0700"
)

// GraphClient talks to the social graph HTTP API.
type GraphClient struct {
	client      httpclient.Client
	baseURL     string
	accessToken string
	now         func() time.Time
}

// NewGraphClient builds a feed client for the graph API at baseURL.
// accessToken is the app token (id|secret form).
func NewGraphClient(client httpclient.Client, baseURL, accessToken string) *GraphClient {
	if client == nil {
		client = httpclient.NewRestyClient(30 * time.Second)
	}
	return &GraphClient{
		client:      client,
		baseURL:     strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		accessToken: accessToken,
		now:         time.Now,
	}
}

// ResolvePage looks up the page node and returns its static numeric id.
func (c *GraphClient) ResolvePage(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &FeedFetchError{Page: name, Err: fmt.Errorf("page name is empty")}
	}

	reqURL := fmt.Sprintf("%s/%s?fields=id,name&access_token=%s",
		c.baseURL, url.PathEscape(name), url.QueryEscape(c.accessToken))

	body, err := c.get(ctx, reqURL, nil)
	if err != nil {
		return "", &FeedFetchError{Page: name, Err: err}
	}

	var node struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &node); err != nil {
		return "", &FeedFetchError{Page: name, Err: fmt.Errorf("decode page node: %w", err)}
	}
	if node.ID == "" {
		return "", &FeedFetchError{Page: name, Err: fmt.Errorf("page node has no id")}
	}
	return node.ID, nil
}

// FetchPageFeed starts a paginated walk of the page's posts feed.
func (c *GraphClient) FetchPageFeed(ctx context.Context, page pages.Page, pageID string, through time.Time) Iterator {
	firstURL := fmt.Sprintf("%s/%s/posts?fields=%s&limit=%s&access_token=%s",
		c.baseURL, url.PathEscape(pageID), url.QueryEscape(feedPostFields),
		feedPageLimit, url.QueryEscape(c.accessToken))

	return &graphFeedIterator{
		ctx:     ctx,
		client:  c,
		page:    page,
		pageID:  pageID,
		through: through,
		nextURL: firstURL,
		headers: requestHeaders(page),
	}
}

// get performs a GET and returns the body, converting transport failures and
// non-2xx statuses into plain errors for the caller to wrap.
func (c *GraphClient) get(ctx context.Context, reqURL string, headers map[string]string) ([]byte, error) {
	resp, err := c.client.Get(ctx, reqURL, headers)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("graph api status %d body: %s", resp.StatusCode(), responseSnippet(resp.Body()))
	}
	return resp.Body(), nil
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}

// resolveLink follows the link's redirect chain so shortened share links
// (bit.ly and friends) collapse onto the canonical article URL; two posts
// sharing a story then dedupe onto one articles row. A link that cannot be
// resolved is kept as-is.
func (c *GraphClient) resolveLink(ctx context.Context, link string) string {
	resolver, ok := c.client.(httpclient.Resolver)
	if !ok {
		return link
	}
	resolved, err := resolver.ResolveURL(ctx, link)
	if err != nil || strings.TrimSpace(resolved) == "" {
		return link
	}
	return strings.TrimSpace(resolved)
}

// baseURLOf reduces a link to its scheme://host origin for per-site grouping.
func baseURLOf(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func requestHeaders(p pages.Page) map[string]string {
	headers := make(map[string]string, 2)
	if v := p.ConfigString("user_agent", ""); v != "" {
		headers["User-Agent"] = v
	}
	if v := p.ConfigString("accept_language", ""); v != "" {
		headers["Accept-Language"] = v
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}

// Wire types -------------------------------------------------------------

type feedResponse struct {
	Data []struct {
		ID          string `json:"id"`
		Type        string `json:"type"`
		Link        string `json:"link"`
		CreatedTime string `json:"created_time"`
		Shares      struct {
			Count int `json:"count"`
		} `json:"shares"`
	} `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// graphFeedIterator implements Iterator over the graph API's cursor pages.
type graphFeedIterator struct {
	ctx     context.Context
	client  *GraphClient
	page    pages.Page
	pageID  string
	through time.Time
	headers map[string]string

	nextURL string
	fetched bool
	done    bool
	buf     []domain.Post
	i       int
	cur     domain.Post
	err     error
}

func (it *graphFeedIterator) Next() bool {
	for {
		if it.err != nil {
			return false
		}
		if it.i < len(it.buf) {
			it.cur = it.buf[it.i]
			it.i++
			return true
		}
		if it.done {
			return false
		}
		if err := it.fetchNext(); err != nil {
			it.err = err
			return false
		}
	}
}

func (it *graphFeedIterator) Post() domain.Post { return it.cur }

func (it *graphFeedIterator) Err() error { return it.err }

// fetchNext pulls one pagination window into the buffer and decides whether
// the walk continues (more cursors and cutoff not yet reached).
func (it *graphFeedIterator) fetchNext() error {
	if err := it.throttle(); err != nil {
		return &FeedFetchError{Page: it.page.Name, Err: err}
	}

	body, err := it.client.get(it.ctx, it.nextURL, it.headers)
	if err != nil {
		return &FeedFetchError{Page: it.page.Name, Err: err}
	}

	var resp feedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return &FeedFetchError{Page: it.page.Name, Err: fmt.Errorf("decode feed page: %w", err)}
	}

	retrievedAt := it.client.now().UTC()
	it.buf = it.buf[:0]
	it.i = 0

	var oldest time.Time
	for _, raw := range resp.Data {
		createdAt, terr := time.Parse(createdTimeWire, raw.CreatedTime)
		if terr != nil {
			// A post without a parseable timestamp cannot be compared to the
			// cutoff; skip it rather than guessing.
			continue
		}
		if oldest.IsZero() || createdAt.Before(oldest) {
			oldest = createdAt
		}

		if raw.Type != "link" || strings.TrimSpace(raw.Link) == "" {
			continue
		}
		if !it.through.IsZero() && createdAt.Before(it.through) {
			continue
		}

		link := it.client.resolveLink(it.ctx, strings.TrimSpace(raw.Link))
		it.buf = append(it.buf, domain.Post{
			PageID:      it.pageID,
			PageName:    it.page.Name,
			PostID:      raw.ID,
			URL:         link,
			BaseURL:     baseURLOf(link),
			Shares:      raw.Shares.Count,
			CreatedAt:   createdAt,
			RetrievedAt: retrievedAt,
		})
	}

	it.fetched = true
	it.nextURL = resp.Paging.Next

	pastCutoff := !it.through.IsZero() && !oldest.IsZero() && oldest.Before(it.through)
	if it.nextURL == "" || pastCutoff {
		it.done = true
	}
	return nil
}

// throttle waits the page's request delay between pagination calls, honoring
// context cancellation.
func (it *graphFeedIterator) throttle() error {
	if !it.fetched {
		// No delay before the first window.
		return it.ctx.Err()
	}

	delay := it.page.RequestDelay()
	if delay <= 0 {
		return it.ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-it.ctx.Done():
		return it.ctx.Err()
	case <-timer.C:
		return nil
	}
}
