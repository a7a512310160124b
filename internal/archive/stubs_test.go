package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/archiva-hq/newsarchives/internal/domain"
	"github.com/archiva-hq/newsarchives/internal/feed"
	"github.com/archiva-hq/newsarchives/pkg/pages"
)

// memStore is an in-memory storage.Store for archiver tests.
type memStore struct {
	posts        map[string]domain.Post
	postOrder    []string
	articles     map[string]domain.Article
	pendingCalls []int
}

func newMemStore() *memStore {
	return &memStore{
		posts:    map[string]domain.Post{},
		articles: map[string]domain.Article{},
	}
}

func (m *memStore) Close() error { return nil }

func (m *memStore) SavePosts(_ context.Context, posts []domain.Post) (int, error) {
	inserted := 0
	for _, p := range posts {
		key := p.PageID + "|" + p.PostID
		if _, ok := m.posts[key]; ok {
			continue
		}
		m.posts[key] = p
		m.postOrder = append(m.postOrder, key)
		inserted++
	}
	return inserted, nil
}

func (m *memStore) SaveArticle(_ context.Context, a domain.Article) error {
	if _, ok := m.articles[a.URL]; ok {
		return nil
	}
	m.articles[a.URL] = a
	return nil
}

func (m *memStore) HasArticle(_ context.Context, url string) (bool, error) {
	_, ok := m.articles[url]
	return ok, nil
}

func (m *memStore) PendingURLs(_ context.Context, limit int) ([]string, error) {
	m.pendingCalls = append(m.pendingCalls, limit)

	var urls []string
	seen := map[string]bool{}
	for _, key := range m.postOrder {
		url := m.posts[key].URL
		if seen[url] {
			continue
		}
		seen[url] = true
		if _, archived := m.articles[url]; archived {
			continue
		}
		urls = append(urls, url)
		if limit > 0 && len(urls) >= limit {
			break
		}
	}
	return urls, nil
}

// sliceIterator yields a fixed post slice, optionally ending with an error.
type sliceIterator struct {
	posts []domain.Post
	i     int
	cur   domain.Post
	err   error
}

func (it *sliceIterator) Next() bool {
	if it.i >= len(it.posts) {
		return false
	}
	it.cur = it.posts[it.i]
	it.i++
	return true
}

func (it *sliceIterator) Post() domain.Post { return it.cur }
func (it *sliceIterator) Err() error        { return it.err }

// stubFeedClient serves canned feeds per page name.
type stubFeedClient struct {
	feeds      map[string][]domain.Post
	feedErrs   map[string]error
	resolveErr map[string]error
}

func (c *stubFeedClient) ResolvePage(_ context.Context, name string) (string, error) {
	if err := c.resolveErr[name]; err != nil {
		return "", err
	}
	return name + "-id", nil
}

func (c *stubFeedClient) FetchPageFeed(_ context.Context, page pages.Page, _ string, _ time.Time) feed.Iterator {
	if err := c.feedErrs[page.Name]; err != nil {
		return &sliceIterator{err: err}
	}
	return &sliceIterator{posts: c.feeds[page.Name]}
}

// stubFetcher maps URLs to canned fetch results.
type stubFetcher struct {
	results map[string]domain.Article
	errs    map[string]error
	calls   []string
}

func (f *stubFetcher) FetchArticle(_ context.Context, url string) (domain.Article, error) {
	f.calls = append(f.calls, url)
	if err := f.errs[url]; err != nil {
		return domain.Article{}, err
	}
	if article, ok := f.results[url]; ok {
		return article, nil
	}
	return domain.Article{}, fmt.Errorf("no canned result for %s", url)
}
