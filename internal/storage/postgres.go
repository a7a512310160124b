package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/archiva-hq/newsarchives/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 2
	defaultConnMaxLifetime = 5 * time.Minute
	defaultPingTimeout     = 5 * time.Second
)

// postgresStore implements Store on PostgreSQL via sqlx.
type postgresStore struct {
	db *sqlx.DB
}

// openPostgres connects, verifies the connection, and ensures the schema.
func openPostgres(databaseURL string) (Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &postgresStore{db: db}
	if err := store.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStore wraps an existing connection (used by tests with sqlmock).
func NewPostgresStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS posts (
			page_id      TEXT        NOT NULL,
			post_id      TEXT        NOT NULL,
			page_name    TEXT        NOT NULL DEFAULT '',
			url          TEXT        NOT NULL,
			base_url     TEXT        NOT NULL DEFAULT '',
			shares       INTEGER     NOT NULL DEFAULT 0,
			created_at   TIMESTAMPTZ NOT NULL,
			retrieved_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (page_id, post_id)
		)`,
		`CREATE INDEX IF NOT EXISTS posts_url_idx ON posts (url)`,
		`CREATE TABLE IF NOT EXISTS articles (
			url            TEXT        PRIMARY KEY,
			title          TEXT        NOT NULL DEFAULT '',
			authors        TEXT[]      NOT NULL DEFAULT '{}',
			published_at   TIMESTAMPTZ,
			text           TEXT        NOT NULL DEFAULT '',
			top_image      TEXT        NOT NULL DEFAULT '',
			status         TEXT        NOT NULL,
			failure_reason TEXT        NOT NULL DEFAULT '',
			retrieved_at   TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *postgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const insertPostQuery = `
	INSERT INTO posts (page_id, post_id, page_name, url, base_url, shares, created_at, retrieved_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (page_id, post_id) DO NOTHING`

// SavePosts upserts the batch inside one transaction so a page's crawl window
// commits atomically.
func (s *postgresStore) SavePosts(ctx context.Context, posts []domain.Post) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin posts tx: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, p := range posts {
		res, err := tx.ExecContext(ctx, insertPostQuery,
			p.PageID, p.PostID, p.PageName, p.URL, p.BaseURL, p.Shares, p.CreatedAt, p.RetrievedAt)
		if err != nil {
			return 0, fmt.Errorf("insert post %s/%s: %w", p.PageID, p.PostID, err)
		}
		if n, raErr := res.RowsAffected(); raErr == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit posts tx: %w", err)
	}
	return inserted, nil
}

const insertArticleQuery = `
	INSERT INTO articles (url, title, authors, published_at, text, top_image, status, failure_reason, retrieved_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (url) DO NOTHING`

func (s *postgresStore) SaveArticle(ctx context.Context, a domain.Article) error {
	authors := a.Authors
	if authors == nil {
		authors = []string{}
	}
	_, err := s.db.ExecContext(ctx, insertArticleQuery,
		a.URL, a.Title, pq.Array(authors), a.PublishedAt, a.Text, a.TopImage,
		string(a.Status), a.FailureReason, a.RetrievedAt)
	if err != nil {
		return fmt.Errorf("insert article %s: %w", a.URL, err)
	}
	return nil
}

func (s *postgresStore) HasArticle(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM articles WHERE url = $1)`, url).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check article %s: %w", url, err)
	}
	return exists, nil
}

// pendingURLsQuery interleaves pages round-robin: rank 1 is each page's most
// recently posted pending URL, so ordering by (rank, page_id) draws evenly
// across pages before going deeper into any one backlog.
const pendingURLsQuery = `
	SELECT url FROM (
		SELECT p.url, p.page_id,
		       ROW_NUMBER() OVER (PARTITION BY p.page_id ORDER BY MAX(p.created_at) DESC) AS rank
		FROM posts p
		WHERE NOT EXISTS (SELECT 1 FROM articles a WHERE a.url = p.url)
		GROUP BY p.page_id, p.url
	) pending
	ORDER BY rank, page_id`

func (s *postgresStore) PendingURLs(ctx context.Context, limit int) ([]string, error) {
	query := pendingURLsQuery
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select pending urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	seen := map[string]bool{}
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan pending url: %w", err)
		}
		// A URL posted by several pages ranks once per page; keep the first.
		if !seen[url] {
			seen[url] = true
			urls = append(urls, url)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending urls: %w", err)
	}
	return urls, nil
}
