package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/archiva-hq/newsarchives/pkg/httpclient"
	"github.com/archiva-hq/newsarchives/pkg/pages"
)

// stubHTTPResponse implements httpclient.Response.
type stubHTTPResponse struct {
	body       []byte
	statusCode int
}

func (s stubHTTPResponse) Body() []byte    { return s.body }
func (s stubHTTPResponse) StatusCode() int { return s.statusCode }

// scriptedClient returns canned responses in order and records request URLs.
type scriptedClient struct {
	responses []stubHTTPResponse
	errs      []error
	urls      []string
}

func (c *scriptedClient) Get(_ context.Context, url string, _ map[string]string) (httpclient.Response, error) {
	i := len(c.urls)
	c.urls = append(c.urls, url)
	if i >= len(c.responses) {
		return nil, fmt.Errorf("unexpected request %d to %s", i, url)
	}
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	return c.responses[i], nil
}

func testPage() pages.Page {
	return pages.Page{Name: "upworthy", RequestDelayMs: 1}
}

func feedBody(next string, posts ...string) []byte {
	data := ""
	for i, p := range posts {
		if i > 0 {
			data += ","
		}
		data += p
	}
	paging := "{}"
	if next != "" {
		paging = fmt.Sprintf(`{"next":%q}`, next)
	}
	return []byte(fmt.Sprintf(`{"data":[%s],"paging":%s}`, data, paging))
}

func linkPost(id, link, createdTime string) string {
	return fmt.Sprintf(`{"id":%q,"type":"link","link":%q,"created_time":%q,"shares":{"count":3}}`, id, link, createdTime)
}

func TestFeedIteratorPaginatesThroughCutoff(t *testing.T) {
	client := &scriptedClient{
		responses: []stubHTTPResponse{
			{statusCode: 200, body: feedBody("https://graph.example/page2",
				linkPost("42_1", "https://news.example/a", "2016-02-01T10:00:00+0000"),
				linkPost("42_2", "https://news.example/b", "2016-01-15T10:00:00+0000"),
			)},
			{statusCode: 200, body: feedBody("https://graph.example/page3",
				linkPost("42_3", "https://news.example/c", "2016-01-02T10:00:00+0000"),
				linkPost("42_4", "https://news.example/d", "2015-12-30T10:00:00+0000"),
			)},
		},
	}

	gc := NewGraphClient(client, "https://graph.example", "id|secret")
	through := time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)

	it := gc.FetchPageFeed(context.Background(), testPage(), "42", through)

	var urls []string
	for it.Next() {
		post := it.Post()
		if post.PageID != "42" || post.PageName != "upworthy" {
			t.Fatalf("unexpected post identity %+v", post)
		}
		if post.CreatedAt.Before(through) {
			t.Fatalf("post %s is older than the cutoff", post.PostID)
		}
		urls = append(urls, post.URL)
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}

	want := []string{"https://news.example/a", "https://news.example/b", "https://news.example/c"}
	if len(urls) != len(want) {
		t.Fatalf("got %d posts, want %d (%v)", len(urls), len(want), urls)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Fatalf("urls[%d] = %q, want %q", i, urls[i], want[i])
		}
	}

	// The second window's oldest post is past the cutoff, so the third
	// pagination URL must never be requested.
	if len(client.urls) != 2 {
		t.Fatalf("expected 2 requests, got %d: %v", len(client.urls), client.urls)
	}
	if client.urls[1] != "https://graph.example/page2" {
		t.Fatalf("second request went to %q", client.urls[1])
	}
}

func TestFeedIteratorSkipsNonLinkPosts(t *testing.T) {
	body := feedBody("",
		`{"id":"42_1","type":"status","created_time":"2016-02-01T10:00:00+0000"}`,
		`{"id":"42_2","type":"link","link":"","created_time":"2016-02-01T11:00:00+0000"}`,
		linkPost("42_3", "https://news.example/only", "2016-02-01T12:00:00+0000"),
	)
	client := &scriptedClient{responses: []stubHTTPResponse{{statusCode: 200, body: body}}}

	gc := NewGraphClient(client, "https://graph.example", "id|secret")
	it := gc.FetchPageFeed(context.Background(), testPage(), "42", time.Time{})

	count := 0
	for it.Next() {
		count++
		if it.Post().URL != "https://news.example/only" {
			t.Fatalf("unexpected post %+v", it.Post())
		}
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 post, got %d", count)
	}
}

func TestFeedIteratorStopsWhenNoNextPage(t *testing.T) {
	client := &scriptedClient{
		responses: []stubHTTPResponse{
			{statusCode: 200, body: feedBody("", linkPost("42_1", "https://news.example/a", "2016-02-01T10:00:00+0000"))},
		},
	}

	gc := NewGraphClient(client, "https://graph.example", "id|secret")
	it := gc.FetchPageFeed(context.Background(), testPage(), "42", time.Time{})

	for it.Next() {
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	if len(client.urls) != 1 {
		t.Fatalf("expected a single request, got %d", len(client.urls))
	}
}

func TestFeedIteratorSurfacesFetchError(t *testing.T) {
	client := &scriptedClient{
		responses: []stubHTTPResponse{{statusCode: 500, body: []byte("upstream broken")}},
	}

	gc := NewGraphClient(client, "https://graph.example", "id|secret")
	it := gc.FetchPageFeed(context.Background(), testPage(), "42", time.Time{})

	if it.Next() {
		t.Fatalf("expected no posts from a failing feed")
	}

	var fetchErr *FeedFetchError
	if !errors.As(it.Err(), &fetchErr) {
		t.Fatalf("expected FeedFetchError, got %v", it.Err())
	}
	if fetchErr.Page != "upworthy" {
		t.Fatalf("error page = %q", fetchErr.Page)
	}
}

// resolvingClient is a scriptedClient that also unshortens links.
type resolvingClient struct {
	scriptedClient
	redirects  map[string]string
	resolveErr error
}

func (c *resolvingClient) ResolveURL(_ context.Context, url string) (string, error) {
	if c.resolveErr != nil {
		return "", c.resolveErr
	}
	if final, ok := c.redirects[url]; ok {
		return final, nil
	}
	return url, nil
}

func TestFeedIteratorUnshortensLinks(t *testing.T) {
	body := feedBody("",
		linkPost("42_1", "https://bit.example/x1", "2016-02-01T10:00:00+0000"),
		linkPost("42_2", "https://bit.example/x2", "2016-02-01T11:00:00+0000"),
	)
	client := &resolvingClient{
		scriptedClient: scriptedClient{responses: []stubHTTPResponse{{statusCode: 200, body: body}}},
		redirects: map[string]string{
			// Both shortened links land on the same story.
			"https://bit.example/x1": "https://news.example/story",
			"https://bit.example/x2": "https://news.example/story",
		},
	}

	gc := NewGraphClient(client, "https://graph.example", "id|secret")
	it := gc.FetchPageFeed(context.Background(), testPage(), "42", time.Time{})

	var posts []string
	for it.Next() {
		post := it.Post()
		if post.URL != "https://news.example/story" {
			t.Fatalf("post %s url = %q, want the resolved story URL", post.PostID, post.URL)
		}
		if post.BaseURL != "https://news.example" {
			t.Fatalf("post %s base url = %q", post.PostID, post.BaseURL)
		}
		posts = append(posts, post.PostID)
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2 sharing one URL", len(posts))
	}
}

func TestFeedIteratorKeepsLinkWhenResolutionFails(t *testing.T) {
	body := feedBody("", linkPost("42_1", "https://bit.example/x1", "2016-02-01T10:00:00+0000"))
	client := &resolvingClient{
		scriptedClient: scriptedClient{responses: []stubHTTPResponse{{statusCode: 200, body: body}}},
		resolveErr:     fmt.Errorf("dial tcp: no route to host"),
	}

	gc := NewGraphClient(client, "https://graph.example", "id|secret")
	it := gc.FetchPageFeed(context.Background(), testPage(), "42", time.Time{})

	if !it.Next() {
		t.Fatalf("expected the post despite failed resolution: %v", it.Err())
	}
	if got := it.Post().URL; got != "https://bit.example/x1" {
		t.Fatalf("url = %q, want the raw link", got)
	}
}

func TestResolvePage(t *testing.T) {
	client := &scriptedClient{
		responses: []stubHTTPResponse{{statusCode: 200, body: []byte(`{"id":"4242","name":"Upworthy"}`)}},
	}

	gc := NewGraphClient(client, "https://graph.example", "id|secret")
	id, err := gc.ResolvePage(context.Background(), "upworthy")
	if err != nil {
		t.Fatalf("ResolvePage: %v", err)
	}
	if id != "4242" {
		t.Fatalf("id = %q", id)
	}
}

func TestResolvePageMissingID(t *testing.T) {
	client := &scriptedClient{
		responses: []stubHTTPResponse{{statusCode: 200, body: []byte(`{"name":"nobody"}`)}},
	}

	gc := NewGraphClient(client, "https://graph.example", "id|secret")
	if _, err := gc.ResolvePage(context.Background(), "nobody"); err == nil {
		t.Fatalf("expected error for node without id")
	}
}
