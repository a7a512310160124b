package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/archiva-hq/newsarchives/internal/domain"

	bolt "go.etcd.io/bbolt"
)

const (
	postsBucket    = "posts"
	articlesBucket = "articles"
	postKeySep     = "\x00"
)

// boltStore implements Store on BoltDB for deployments without a SQL server.
// It lacks rich query support, so the pending set is materialized and
// balanced in memory instead of in the database.
type boltStore struct {
	db *bolt.DB
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{postsBucket, articlesBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &boltStore{db: db}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func postKey(p domain.Post) []byte {
	return []byte(p.PageID + postKeySep + p.PostID)
}

// SavePosts writes the batch in one transaction; existing keys are left
// untouched so re-crawls dedupe silently.
func (b *boltStore) SavePosts(ctx context.Context, posts []domain.Post) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	inserted := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(postsBucket))
		if bucket == nil {
			return fmt.Errorf("posts bucket missing")
		}
		for _, p := range posts {
			key := postKey(p)
			if bucket.Get(key) != nil {
				continue
			}
			value, err := json.Marshal(p)
			if err != nil {
				return fmt.Errorf("encode post %s/%s: %w", p.PageID, p.PostID, err)
			}
			if err := bucket.Put(key, value); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// SaveArticle writes the row unless one already exists for the URL.
func (b *boltStore) SaveArticle(ctx context.Context, a domain.Article) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(articlesBucket))
		if bucket == nil {
			return fmt.Errorf("articles bucket missing")
		}
		key := []byte(a.URL)
		if bucket.Get(key) != nil {
			return nil
		}
		value, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode article %s: %w", a.URL, err)
		}
		return bucket.Put(key, value)
	})
}

func (b *boltStore) HasArticle(ctx context.Context, url string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var exists bool
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(articlesBucket))
		if bucket == nil {
			return fmt.Errorf("articles bucket missing")
		}
		exists = bucket.Get([]byte(url)) != nil
		return nil
	})
	return exists, err
}

// PendingURLs materializes the pending set grouped per page, orders each
// page's backlog newest first, and interleaves pages round-robin so one
// high-volume page does not starve the others.
func (b *boltStore) PendingURLs(ctx context.Context, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type pendingPost struct {
		url       string
		createdAt time.Time
	}
	perPage := map[string][]pendingPost{}
	seen := map[string]bool{}

	err := b.db.View(func(tx *bolt.Tx) error {
		posts := tx.Bucket([]byte(postsBucket))
		articles := tx.Bucket([]byte(articlesBucket))
		if posts == nil || articles == nil {
			return fmt.Errorf("storage buckets missing")
		}

		return posts.ForEach(func(_, value []byte) error {
			var p domain.Post
			if err := json.Unmarshal(value, &p); err != nil {
				return fmt.Errorf("decode post: %w", err)
			}
			if seen[p.URL] || articles.Get([]byte(p.URL)) != nil {
				return nil
			}
			seen[p.URL] = true
			perPage[p.PageID] = append(perPage[p.PageID], pendingPost{url: p.URL, createdAt: p.CreatedAt})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	pageIDs := make([]string, 0, len(perPage))
	for pageID, backlog := range perPage {
		sort.Slice(backlog, func(i, j int) bool { return backlog[i].createdAt.After(backlog[j].createdAt) })
		perPage[pageID] = backlog
		pageIDs = append(pageIDs, pageID)
	}
	sort.Strings(pageIDs)

	var urls []string
	for depth := 0; ; depth++ {
		advanced := false
		for _, pageID := range pageIDs {
			backlog := perPage[pageID]
			if depth >= len(backlog) {
				continue
			}
			advanced = true
			urls = append(urls, backlog[depth].url)
			if limit > 0 && len(urls) >= limit {
				return urls, nil
			}
		}
		if !advanced {
			return urls, nil
		}
	}
}
